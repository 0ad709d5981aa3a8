package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter decouples log producers from the underlying sinks: records
// are queued and a single goroutine fans them out, so a slow stderr or
// file sink never stalls a handler.
type asyncWriter struct {
	jobs    chan []byte
	flushes chan chan error
	stopped chan struct{}

	closeOnce sync.Once

	mu      sync.Mutex // guards outs and firstErr
	outs    []*bufio.Writer
	firstErr error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	outs := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			outs = append(outs, bufio.NewWriterSize(w, bufSize))
		}
	}
	aw := &asyncWriter{
		jobs:    make(chan []byte, 256),
		flushes: make(chan chan error),
		stopped: make(chan struct{}),
		outs:    outs,
	}
	go aw.run()
	return aw
}

func (w *asyncWriter) run() {
	for {
		select {
		case rec, ok := <-w.jobs:
			if !ok {
				w.flushAll()
				close(w.stopped)
				return
			}
			if len(rec) == 0 {
				continue
			}
			if err := w.fanOut(rec); err != nil {
				w.recordErr(err)
			}
		case ack := <-w.flushes:
			ack <- w.flushAll()
		}
	}
}

// Write copies p and hands it to the fan-out goroutine. When the queue is
// full the call blocks rather than dropping the record.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	rec := make([]byte, len(p))
	copy(rec, p)
	w.jobs <- rec
	return nil
}

// Flush blocks until everything queued so far has reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.err(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushes <- ack
	return <-ack
}

// Close drains the queue, flushes the sinks and returns the first write
// error seen over the writer's lifetime.
func (w *asyncWriter) Close() error {
	w.closeOnce.Do(func() { close(w.jobs) })
	<-w.stopped
	return w.err()
}

func (w *asyncWriter) fanOut(rec []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, out := range w.outs {
		if _, err := out.Write(rec); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, out := range w.outs {
		if err := out.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firstErr
}

func (w *asyncWriter) recordErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.firstErr == nil {
		w.firstErr = err
	}
}
