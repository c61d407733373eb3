package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type TokenPurger interface {
	DeleteExpiredAuthTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunTokenJanitor deletes expired confirmation and reset tokens every interval.
func RunTokenJanitor(ctx context.Context, store TokenPurger, interval time.Duration, logger *zerolog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "janitor").Logger()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := store.DeleteExpiredAuthTokens(ctx, time.Now())
		switch {
		case err != nil && ctx.Err() == nil:
			l.Error().Err(err).Msg("delete expired tokens")
		case n > 0:
			l.Info().Int64("deleted", n).Msg("expired tokens removed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
