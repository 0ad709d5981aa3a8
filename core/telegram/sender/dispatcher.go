package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/botgate/core/logger"
	"github.com/m3rciful/botgate/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed means the dispatcher already shut down.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull means the queue rejected the job; callers fall back to a
	// synchronous send.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes the outbound dispatcher. Zero values get defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps the total time one job may spend across retries.
	MaxDuration time.Duration
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher runs outbound Telegram calls on a worker pool, retrying
// transient failures with a linear backoff.
type Dispatcher struct {
	opts     Options
	queue    chan job
	closing  chan struct{}
	stopOnce sync.Once
	workers  sync.WaitGroup
	failures atomic.Uint64
}

// NewDispatcher starts the worker pool immediately.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts:    opts,
		queue:   make(chan job, opts.QueueSize),
		closing: make(chan struct{}),
	}
	d.workers.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer d.workers.Done()
			for j := range d.queue {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run for asynchronous execution. run must be idempotent
// when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	select {
	case <-d.closing:
		return ErrQueueClosed
	default:
	}
	select {
	case d.queue <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount reports how many jobs exhausted their retries.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failures.Load()
}

// Close rejects new jobs and waits for queued ones to drain.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.closing)
		close(d.queue)
		d.workers.Wait()
	})
}

func (d *Dispatcher) process(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, "tg.sender", "send.start", jobAttrs(ctx, j)...)

	tries := d.opts.MaxRetries + 1
	var lastErr error
	logged := false

	for attempt := 1; attempt <= tries; attempt++ {
		if err := deadline.Err(); err != nil {
			lastErr = err
			break
		}

		err := j.run()
		if err == nil {
			if attempt > 1 {
				logger.Info(ctx, "tg.sender", "send.retry.success",
					append(jobAttrs(ctx, j),
						slog.Int("attempt", attempt),
						slog.Int("elapsed_ms", wholeMS(time.Since(start))),
					)...,
				)
			}
			d.logSuccess(ctx, j, attempt, time.Since(start))
			return
		}

		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == tries {
			d.logFailure(ctx, j, err, tries, time.Since(start))
			logged = true
			break
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if !sleepCtx(deadline, delay) {
			lastErr = deadline.Err()
			d.logFailure(ctx, j, lastErr, tries, time.Since(start))
			logged = true
			break
		}
		logger.Debug(ctx, "tg.sender", "send.retry.backoff",
			append(jobAttrs(ctx, j),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)...,
		)
	}

	if lastErr != nil {
		d.failures.Add(1)
		if !logged {
			d.logFailure(ctx, j, lastErr, tries, time.Since(start))
		}
	}
}

// sleepCtx waits for delay; false means the context expired first.
func sleepCtx(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func jobAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if updateID := logger.UpdateIDFrom(ctx); updateID != 0 {
		attrs = append(attrs, slog.Int("update_id", updateID))
	}
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	if userID := logger.UserIDFrom(ctx); userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
	}
	return attrs
}

func (d *Dispatcher) logSuccess(ctx context.Context, j job, attempt int, elapsed time.Duration) {
	attrs := jobAttrs(ctx, j)
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempt", attempt))
	}
	attrs = append(attrs, slog.Int("elapsed_ms", wholeMS(elapsed)))
	logger.Debug(ctx, "tg.sender", "send.success", attrs...)
}

func (d *Dispatcher) logFailure(ctx context.Context, j job, err error, tries int, elapsed time.Duration) {
	attrs := append(jobAttrs(ctx, j),
		slog.String("error", redactedError(err)),
		slog.String("error_kind", classifyError(err)),
		slog.Int("elapsed_ms", wholeMS(elapsed)),
	)
	if tries > 0 {
		attrs = append(attrs, slog.Int("attempts", tries))
	}
	logger.Error(ctx, "tg.sender", "send.fail", attrs...)
}

func wholeMS(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(logger.RoundMS(d) / time.Millisecond)
}

// redactedError keeps bot tokens out of send failure logs.
func redactedError(err error) string {
	if err == nil {
		return ""
	}
	return logger.RedactToken(err.Error())
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case opErr.Timeout():
			return "timeout"
		case opErr.Op == "dial":
			return "dial"
		case opErr.Op == "read" || opErr.Op == "write":
			if kind := classifyError(opErr.Err); kind != "" && kind != "unknown" {
				return kind
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "timeout"
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			if kind := classifyError(urlErr.Err); kind != "" && kind != "unknown" {
				return kind
			}
		}
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	switch status := httpStatusFromError(err); {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// httpStatusFromError digs an HTTP status out of telebot error types, falling
// back to the "(NNN)" suffix telebot puts in error strings.
func httpStatusFromError(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}

	msg := err.Error()
	open := strings.LastIndex(msg, "(")
	closeIdx := strings.LastIndex(msg, ")")
	if open >= 0 && closeIdx > open+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : closeIdx])); convErr == nil {
			return code
		}
	}
	return 0
}
