package cache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"weatherproxy/internal/models"
)

// ForecastFetcher is implemented by the service layer to fetch a forecast for
// a location. Used by Warmer to avoid a circular dependency on the service
// package.
type ForecastFetcher interface {
	ForecastByLocation(ctx context.Context, location string, days int) (models.ForecastPayload, error)
}

// Warmer prefetches forecasts for a list of locations at startup so the first
// real requests hit a populated cache.
type Warmer struct {
	fetcher ForecastFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer that uses the given fetcher and logger.
func NewWarmer(fetcher ForecastFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm fetches a one-day forecast for each location concurrently; the fetcher
// populates the cache as a side effect. Returns an aggregated error if any
// location failed.
func (w *Warmer) Warm(ctx context.Context, locations []string) error {
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("locations", len(locations)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(locations))
	for _, loc := range locations {
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()
			if _, err := w.fetcher.ForecastByLocation(ctx, loc, 1); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", loc, err)
			}
		}(loc)
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("locations", len(locations)), zap.Int("errors", len(errs)))
	}
	if len(errs) > 0 {
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}
