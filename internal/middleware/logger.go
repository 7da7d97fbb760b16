package middleware

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServedLocal is the fiber.Ctx local a handler sets to say how a module was
// produced ("entry", "module", "raw", "rewritten", "cached", "static").
const ServedLocal = "served"

// RequestLoggerConfig holds configuration for request logging
type RequestLoggerConfig struct {
	// SkipPaths are paths that should not be logged
	SkipPaths []string
	// Logger is the zerolog logger to use (defaults to global log)
	Logger *zerolog.Logger
	// SuccessLevel is the level for requests below 400. A dev server fetches
	// hundreds of modules per page load, so this defaults to debug.
	SuccessLevel zerolog.Level
	// SlowRequestThreshold logs slow requests with WARN level (0 = disabled)
	SlowRequestThreshold time.Duration
}

// DefaultRequestLoggerConfig returns default configuration
func DefaultRequestLoggerConfig() RequestLoggerConfig {
	return RequestLoggerConfig{
		SkipPaths:            []string{"/metrics", "/__unbarrel/events"},
		SuccessLevel:         zerolog.DebugLevel,
		SlowRequestThreshold: 500 * time.Millisecond,
	}
}

// RequestLogger returns a middleware that logs requests with structured logging
func RequestLogger(config ...RequestLoggerConfig) fiber.Handler {
	cfg := DefaultRequestLoggerConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *fiber.Ctx) error {
		path := c.Path()
		if skip[path] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		var logEvent *zerolog.Event
		switch {
		case err != nil:
			logEvent = logger.Error().Err(err)
		case status >= 500:
			logEvent = logger.Error()
		case status >= 400:
			logEvent = logger.Warn()
		case cfg.SlowRequestThreshold > 0 && duration > cfg.SlowRequestThreshold:
			logEvent = logger.Warn().Bool("slow_request", true)
		default:
			logEvent = logger.WithLevel(cfg.SuccessLevel)
		}

		logEvent = logEvent.
			Str("request_id", toString(c.Locals("requestid"))).
			Str("method", c.Method()).
			Str("path", path).
			Int("status", status).
			Int64("duration_ms", duration.Milliseconds()).
			Int("response_bytes", len(c.Response().Body()))

		if served := toString(c.Locals(ServedLocal)); served != "" {
			logEvent = logEvent.Str("served", served)
		}
		if query := string(c.Request().URI().QueryString()); query != "" {
			if unescaped, uerr := url.QueryUnescape(query); uerr == nil {
				query = unescaped
			}
			logEvent = logEvent.Str("query", query)
		}

		logEvent.Msg("HTTP request")
		return err
	}
}

// toString safely converts a fiber local to string
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
