package stocks

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/fortunehq/portfolio-api/internal/quotes"
)

const _maxRetryInterval = 2 * time.Minute

// Refresher keeps the stock cache current by refreshing it on a fixed
// interval. Transient provider outages back off exponentially instead
// of hammering the provider once per tick.
type Refresher struct {
	service  *Service
	interval time.Duration
}

func NewRefresher(service *Service, interval time.Duration) *Refresher {
	return &Refresher{
		service:  service,
		interval: interval,
	}
}

// Start begins the refresh loop and blocks until the context is done.
func (r *Refresher) Start(ctx context.Context) {
	logger := log.With().Str("component", "stock_refresher").Logger()
	logger.Info().Dur("interval", r.interval).Msg("starting stock refresher")

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = _maxRetryInterval

	// Prime the cache once on startup.
	wait := r.refreshOnce(ctx, backoffCfg)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down stock refresher")
			return
		case <-time.After(wait):
			wait = r.refreshOnce(ctx, backoffCfg)
		}
	}
}

// refreshOnce runs one refresh and returns how long to wait before the
// next attempt: the configured interval on success, the next backoff
// step on a transient provider failure.
func (r *Refresher) refreshOnce(ctx context.Context, backoffCfg *backoff.ExponentialBackOff) time.Duration {
	logger := log.With().Str("component", "stock_refresher").Logger()

	_, err := r.service.RefreshCache(ctx)
	if err == nil {
		backoffCfg.Reset()
		return r.interval
	}

	if errors.Is(err, quotes.ErrProviderUnavailable) {
		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = _maxRetryInterval
		}
		logger.Warn().Err(err).Dur("retry_in", sleep).Msg("provider unavailable, backing off")
		return sleep
	}

	logger.Error().Err(err).Msg("stock cache refresh failed")
	return r.interval
}
