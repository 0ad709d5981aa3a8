package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"log/slog"

	"github.com/m3rciful/botgate/core/logger"
)

const maxGetMeBody = 1 << 20

// BotProfile is the upstream identity of a bot token.
type BotProfile struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Status is a validation verdict for a single token. OK false means the
// upstream rejected the token; Bot is set only when OK is true.
type Status struct {
	OK  bool
	Bot *BotProfile
}

// OK is a pointer so an upstream body without the field is distinguishable
// from an explicit "ok": false verdict.
type getMeResponse struct {
	OK     *bool       `json:"ok"`
	Result *BotProfile `json:"result"`
}

// Client checks bot tokens against the Telegram Bot API.
type Client struct {
	apiURL     string
	httpClient *http.Client
}

// NewClient constructs a Client for the given Bot API base URL.
// A nil httpClient falls back to a plain client with a conservative timeout.
func NewClient(apiURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{apiURL: apiURL, httpClient: httpClient}
}

// CheckToken asks the upstream whether the token identifies a live bot.
// An upstream "ok": false verdict is a negative Status, not an error; only
// transport failures and undecodable responses yield a *TransportError.
func (c *Client) CheckToken(ctx context.Context, token string) (Status, error) {
	start := time.Now()
	url := fmt.Sprintf("%s/bot%s/getMe", c.apiURL, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Status{}, &TransportError{Op: "getMe.request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn(ctx, "validator", "getme.transport_fail",
			slog.String("err", logger.RedactToken(err.Error())),
			slog.Duration("duration_ms", logger.RoundMS(time.Since(start))),
		)
		return Status{}, &TransportError{Op: "getMe", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGetMeBody))
	if err != nil {
		return Status{}, &TransportError{Op: "getMe.read", Err: err}
	}

	var decoded getMeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		logger.Warn(ctx, "validator", "getme.malformed",
			slog.Int("http_code", resp.StatusCode),
			slog.String("err", err.Error()),
		)
		return Status{}, &TransportError{Op: "getMe.decode", Err: err}
	}

	if decoded.OK == nil {
		logger.Warn(ctx, "validator", "getme.malformed",
			slog.Int("http_code", resp.StatusCode),
			slog.String("err", "missing ok field"),
		)
		return Status{}, &TransportError{Op: "getMe.decode", Err: fmt.Errorf("response has no ok field")}
	}
	if !*decoded.OK {
		logger.Debug(ctx, "validator", "getme.rejected",
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration_ms", logger.RoundMS(time.Since(start))),
		)
		return Status{OK: false}, nil
	}
	if decoded.Result == nil {
		logger.Warn(ctx, "validator", "getme.malformed",
			slog.Int("http_code", resp.StatusCode),
			slog.String("err", "ok without result"),
		)
		return Status{}, &TransportError{Op: "getMe.decode", Err: fmt.Errorf("ok verdict without result")}
	}

	logger.Debug(ctx, "validator", "getme.ok",
		slog.Int64("bot_id", decoded.Result.ID),
		slog.Duration("duration_ms", logger.RoundMS(time.Since(start))),
	)
	return Status{OK: true, Bot: decoded.Result}, nil
}
