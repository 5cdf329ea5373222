package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"weatherproxy/internal/lifecycle"
	"weatherproxy/internal/models"
	"weatherproxy/internal/service"
	"weatherproxy/internal/upstream"
	"weatherproxy/internal/validation"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService *service.WeatherService
	client         upstream.Client
	logger         *zap.Logger
	locationMaxLen int

	// cachePing, when set, is called by /health to check cache reachability.
	// Used when the backend is memcached.
	cachePing func() error
}

// NewHandler returns a new Handler.
func NewHandler(weatherService *service.WeatherService, client upstream.Client, logger *zap.Logger, locationMaxLen int, cachePing func() error) *Handler {
	return &Handler{
		weatherService: weatherService,
		client:         client,
		logger:         logger,
		locationMaxLen: locationMaxLen,
		cachePing:      cachePing,
	}
}

// GetWeatherByCity handles GET /weather/{city}. The response is the projected
// report: current conditions plus one entry per forecast day.
func (h *Handler) GetWeatherByCity(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateLocation(mux.Vars(r)["city"], h.locationMaxLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	days, opts, ok := h.parseForecastParams(w, r)
	if !ok {
		return
	}
	if err := validation.ValidateDays(days); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DAYS", err.Error())
		return
	}

	h.serveForecast(w, r, service.LocationQuery(city, days, opts))
}

// GetWeatherByCoords handles GET /weather/coords?lat=&lon=. Coordinates are
// validated against their geographic ranges before any upstream call.
func (h *Handler) GetWeatherByCoords(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lat and lon are required numeric query parameters")
		return
	}

	days, opts, ok := h.parseForecastParams(w, r)
	if !ok {
		return
	}
	if err := validation.ValidateCoords(lat, lon, days); err != nil {
		code := "INVALID_COORDINATES"
		if errors.Is(err, validation.ErrDaysOutOfRange) {
			code = "INVALID_DAYS"
		}
		writeError(w, r, http.StatusBadRequest, code, err.Error())
		return
	}

	h.serveForecast(w, r, service.CoordsQuery(lat, lon, days, opts))
}

// parseForecastParams reads the day count and forwarded flags from the query
// string, applying defaults. Writes a 400 and returns ok=false when days is
// not numeric.
func (h *Handler) parseForecastParams(w http.ResponseWriter, r *http.Request) (int, upstream.Options, bool) {
	q := r.URL.Query()

	days := 1
	if raw := q.Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_DAYS", "days must be an integer")
			return 0, upstream.Options{}, false
		}
		days = parsed
	}

	opts := upstream.DefaultOptions()
	if v := q.Get("aqi"); v != "" {
		opts.AQI = v
	}
	if v := q.Get("alerts"); v != "" {
		opts.Alerts = v
	}
	if v := q.Get("pollen"); v != "" {
		opts.Pollen = v
	}
	if v := q.Get("current_fields"); v != "" {
		opts.CurrentFields = v
	}
	if v := q.Get("wind100kph"); v != "" {
		opts.Wind100Kph = v
	}
	return days, opts, true
}

// serveForecast resolves the query through the fetch layer and writes the
// projected report. Upstream non-2xx responses pass through with their status
// code and body text.
func (h *Handler) serveForecast(w http.ResponseWriter, r *http.Request, q service.Query) {
	payload, err := h.weatherService.Forecast(r.Context(), q)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BuildReport(payload))
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := make(map[string]string)

	if lifecycle.IsShuttingDown() {
		status = "shutting-down"
		statusCode = http.StatusServiceUnavailable
	} else {
		if err := h.client.Ping(r.Context()); err != nil {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
			checks["upstream"] = "unhealthy"
		} else {
			checks["upstream"] = "healthy"
		}
		if h.cachePing != nil {
			if h.cachePing() == nil {
				checks["cache"] = "healthy"
			} else {
				checks["cache"] = "unhealthy"
				status = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "weatherproxy",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeUpstreamError maps fetch-layer failures onto responses: upstream
// non-2xx keeps its status code and body text; everything else (transport
// errors, timeouts) becomes 502.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.Body
		if message == "" {
			message = "upstream request failed"
		}
		writeError(w, r, statusErr.StatusCode, "UPSTREAM_ERROR", message)
		return
	}
	writeError(w, r, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
