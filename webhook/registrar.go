package webhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"log/slog"

	"github.com/m3rciful/botgate/core/logger"
)

// Registrar hands validated tokens to the webhook-activation service.
//
// The service terminates TLS with an operator-managed certificate, so the
// client skips chain verification; trust is point-to-point by deployment.
type Registrar struct {
	serviceURL string
	httpClient *http.Client
}

// NewRegistrar builds a Registrar for the given service base URL.
func NewRegistrar(serviceURL string) *Registrar {
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	return &Registrar{
		serviceURL: serviceURL,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
	}
}

// Register hands the token off in the background. Activation is best-effort:
// the user flow never waits on it and the outcome is only logged.
func (r *Registrar) Register(ctx context.Context, token string) {
	go func() {
		start := time.Now()
		err := r.register(token)
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.Duration("duration_ms", logger.Took(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", logger.RedactToken(err.Error())))
			logger.Error(ctx, "webhook", "register.fail", attrs...)
			return
		}
		logger.Info(ctx, "webhook", "register.ok", attrs...)
	}()
}

func (r *Registrar) register(token string) error {
	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	url := r.serviceURL + "/setWebhook"
	resp, err := r.httpClient.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: unexpected status %s", url, resp.Status)
	}
	return nil
}
