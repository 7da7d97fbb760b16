package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func tracedApp(cfg TracingConfig) *fiber.App {
	app := fiber.New()
	app.Use(TracingMiddleware(cfg))
	app.Get("/src/app.ts", func(c *fiber.Ctx) error {
		c.Locals(ServedLocal, "rewritten")
		c.Set("X-Handler-Trace", GetTraceID(c))
		return c.SendString("export {};")
	})
	app.Get("/missing.ts", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).SendString("")
	})
	app.Get("/broken.ts", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "bad module")
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.SendString("")
	})
	return app
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.SkipPaths, "/metrics")
}

func TestTracingMiddleware_Disabled(t *testing.T) {
	recorder := recordSpans(t)
	app := tracedApp(TracingConfig{Enabled: false})

	resp, err := app.Test(httptest.NewRequest("GET", "/src/app.ts", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-Trace-ID"))
	assert.Empty(t, recorder.Ended())
}

func TestTracingMiddleware_Spans(t *testing.T) {
	tests := []struct {
		path   string
		status codes.Code
	}{
		{path: "/src/app.ts", status: codes.Ok},
		{path: "/missing.ts", status: codes.Error},
		{path: "/broken.ts", status: codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			recorder := recordSpans(t)
			app := tracedApp(DefaultTracingConfig())

			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, "GET "+tt.path, spans[0].Name())
			assert.Equal(t, tt.status, spans[0].Status().Code)
			assert.Equal(t, spans[0].SpanContext().TraceID().String(), resp.Header.Get("X-Trace-ID"))
		})
	}
}

func TestTracingMiddleware_HandlerSeesTrace(t *testing.T) {
	recorder := recordSpans(t)
	app := tracedApp(DefaultTracingConfig())

	resp, err := app.Test(httptest.NewRequest("GET", "/src/app.ts", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, resp.Header.Get("X-Trace-ID"), resp.Header.Get("X-Handler-Trace"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("module.served", "rewritten"))
}

func TestTracingMiddleware_SkipPaths(t *testing.T) {
	recorder := recordSpans(t)
	app := tracedApp(DefaultTracingConfig())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, resp.Header.Get("X-Trace-ID"))
	assert.Empty(t, recorder.Ended())
}

func TestTraceContext_Untraced(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		assert.NotNil(t, TraceContext(c))
		assert.Empty(t, GetTraceID(c))
		return nil
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
}
