package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/m3rciful/botgate/core/logger"
)

// FetchAll validates every token concurrently and returns verdicts in the
// same order as the input. The batch is all-or-nothing: if any lookup fails,
// FetchAll returns a *BatchError and no results.
func (c *Client) FetchAll(ctx context.Context, tokens []string) ([]Status, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	start := time.Now()
	results := make([]Status, len(tokens))
	errs := make([]error, len(tokens))

	var wg sync.WaitGroup
	wg.Add(len(tokens))
	for i, token := range tokens {
		go func(i int, token string) {
			defer wg.Done()
			st, err := c.CheckToken(ctx, token)
			if err != nil {
				errs[i] = fmt.Errorf("token %d: %w", i, err)
				return
			}
			results[i] = st
		}(i, token)
	}
	wg.Wait()

	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if merr != nil {
		logger.Error(ctx, "validator", "batch.fail",
			slog.Int("count", len(tokens)),
			slog.Int("failed", merr.Len()),
			slog.Duration("duration_ms", logger.RoundMS(time.Since(start))),
		)
		return nil, &BatchError{Errs: merr}
	}

	logger.Debug(ctx, "validator", "batch.ok",
		slog.Int("count", len(tokens)),
		slog.Duration("duration_ms", logger.RoundMS(time.Since(start))),
	)
	return results, nil
}
