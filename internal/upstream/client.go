package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"weatherproxy/internal/models"
	"weatherproxy/internal/observability"
)

// Client is implemented by upstream weather providers.
type Client interface {
	Forecast(ctx context.Context, query string, days int, opts Options) (models.ForecastPayload, error)
	Ping(ctx context.Context) error
}

var ErrInvalidAPIKey = errors.New("invalid API key")

// StatusError carries a non-2xx upstream response so callers can surface the
// upstream status code and body text unchanged.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Options holds the feature flags forwarded verbatim to the provider.
type Options struct {
	AQI           string // include air quality data
	Alerts        string // include weather alerts
	Pollen        string // include pollen data
	CurrentFields string // restrict current-weather fields
	Wind100Kph    string // include 100m wind speed
}

// DefaultOptions returns the flag values used when a request does not
// override them.
func DefaultOptions() Options {
	return Options{
		AQI:           "yes",
		Alerts:        "yes",
		Pollen:        "yes",
		CurrentFields: "temp_c,wind_mph",
		Wind100Kph:    "yes",
	}
}

// WeatherAPIClient talks to the weatherapi.com forecast endpoint. Each call is
// a single synchronous GET; failures are returned to the caller as-is.
type WeatherAPIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewWeatherAPIClient creates a client for the given base URL (e.g.
// "https://api.weatherapi.com/v1"). timeout bounds every upstream call.
func NewWeatherAPIClient(apiKey, baseURL string, timeout time.Duration) (*WeatherAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	return &WeatherAPIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Forecast fetches the forecast document for query (a location name or a
// "lat,lon" pair) covering days days.
func (c *WeatherAPIClient) Forecast(ctx context.Context, query string, days int, opts Options) (models.ForecastPayload, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, query, days, opts)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		return models.ForecastPayload{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		observability.UpstreamCallDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.ForecastPayload{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.ForecastPayload{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(status).Inc()
	observability.UpstreamCallDuration.WithLabelValues(status).Observe(duration)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.ForecastPayload{}, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.ForecastPayload{}, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var payload models.ForecastPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.ForecastPayload{}, fmt.Errorf("parse response: %w", err)
	}

	return payload, nil
}

// maxBodyBytes caps how much of an upstream response is read. Forecast
// documents for 10 days stay well under this.
const maxBodyBytes = 1 << 20

func (c *WeatherAPIClient) buildRequest(ctx context.Context, query string, days int, opts Options) (*http.Request, error) {
	endpoint, err := url.Parse(c.baseURL + "/forecast.json")
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", query)
	params.Set("days", strconv.Itoa(days))
	params.Set("aqi", opts.AQI)
	params.Set("alerts", opts.Alerts)
	params.Set("pollen", opts.Pollen)
	params.Set("current_fields", opts.CurrentFields)
	params.Set("wind100kph", opts.Wind100Kph)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Ping verifies the API key against a cheap one-day lookup. Used by /health.
func (c *WeatherAPIClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, "London", 1, DefaultOptions())
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: API key rejected", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
