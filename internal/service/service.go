package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"weatherproxy/internal/cache"
	"weatherproxy/internal/models"
	"weatherproxy/internal/observability"
	"weatherproxy/internal/upstream"
)

// coordPrecision is the number of decimal places coordinates are rounded to
// when building cache keys and upstream queries. Four places is roughly 11m,
// well below the resolution of any forecast.
const coordPrecision = 4

// Query identifies one forecast lookup: a free-form location or an explicit
// coordinate pair, a day count, and the flags forwarded upstream.
type Query struct {
	Location string
	Lat, Lon float64
	ByCoords bool
	Days     int
	Options  upstream.Options
}

// LocationQuery builds a Query for a free-form location string.
func LocationQuery(location string, days int, opts upstream.Options) Query {
	return Query{Location: location, Days: days, Options: opts}
}

// CoordsQuery builds a Query for an explicit latitude/longitude pair.
func CoordsQuery(lat, lon float64, days int, opts upstream.Options) Query {
	return Query{Lat: lat, Lon: lon, ByCoords: true, Days: days, Options: opts}
}

// upstreamQuery returns the provider "q" parameter: the normalized location
// string, or "lat,lon" with coordinates rounded to coordPrecision.
func (q Query) upstreamQuery() string {
	if q.ByCoords {
		return strconv.FormatFloat(q.Lat, 'f', coordPrecision, 64) + "," +
			strconv.FormatFloat(q.Lon, 'f', coordPrecision, 64)
	}
	return strings.ToLower(strings.TrimSpace(q.Location))
}

// CacheKey returns the normalized key for this query. Two queries share a key
// exactly when they would produce an identical upstream request.
func (q Query) CacheKey() string {
	o := q.Options
	return strings.Join([]string{
		q.upstreamQuery(),
		"days=" + strconv.Itoa(q.Days),
		"aqi=" + o.AQI,
		"alerts=" + o.Alerts,
		"pollen=" + o.Pollen,
		"fields=" + o.CurrentFields,
		"wind100=" + o.Wind100Kph,
	}, "|")
}

// WeatherService is the fetch layer: it resolves forecast queries through the
// cache and falls back to a single synchronous upstream call on a miss.
type WeatherService struct {
	client upstream.Client
	cache  cache.Cache
	ttl    time.Duration
}

// NewWeatherService creates a WeatherService. ttl is the cache expiration
// duration applied to every stored payload.
func NewWeatherService(client upstream.Client, cache cache.Cache, ttl time.Duration) *WeatherService {
	return &WeatherService{
		client: client,
		cache:  cache,
		ttl:    ttl,
	}
}

// loggerFromContext extracts the request-scoped zap.Logger if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Forecast resolves a query using the cache-aside pattern: cache hit returns
// the stored payload with no upstream call; a miss performs one upstream GET
// and stores the result before returning it. Upstream errors pass through
// unwrapped status information via *upstream.StatusError.
func (s *WeatherService) Forecast(ctx context.Context, q Query) (models.ForecastPayload, error) {
	key := q.CacheKey()
	start := time.Now()
	logger := loggerFromContext(ctx)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		if logger != nil {
			logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
	} else if ok {
		observability.CacheHitsTotal.Inc()
		if logger != nil {
			logger.Debug("forecast served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		}
		return cached, nil
	}
	observability.CacheMissesTotal.Inc()

	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("key", key))
	}

	payload, err := s.client.Forecast(ctx, q.upstreamQuery(), q.Days, q.Options)
	if err != nil {
		return models.ForecastPayload{}, fmt.Errorf("fetch forecast for %s: %w", q.upstreamQuery(), err)
	}

	if setErr := s.cache.Set(ctx, key, payload, s.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		if logger != nil {
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	if logger != nil {
		logger.Debug("forecast served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	}
	return payload, nil
}

// ForecastByLocation is a convenience wrapper used by the cache warmer.
func (s *WeatherService) ForecastByLocation(ctx context.Context, location string, days int) (models.ForecastPayload, error) {
	return s.Forecast(ctx, LocationQuery(location, days, upstream.DefaultOptions()))
}
