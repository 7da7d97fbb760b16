// Package devserver serves a project to the browser with barrel imports
// rewritten, and streams optimizer events to connected tools.
package devserver

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/fluxbase-eu/unbarrel/internal/config"
	"github.com/fluxbase-eu/unbarrel/internal/engine"
	"github.com/fluxbase-eu/unbarrel/internal/middleware"
	"github.com/fluxbase-eu/unbarrel/internal/observability"
	"github.com/fluxbase-eu/unbarrel/internal/pubsub"
)

const (
	apiPrefix      = "/__unbarrel"
	javascriptType = "text/javascript; charset=utf-8"
)

// cachedModule is a served module together with the source it was built from.
type cachedModule struct {
	source      string
	body        string
	contentType string
}

// Server is the development HTTP server.
type Server struct {
	cfg     *config.Config
	engine  *engine.Engine
	fs      afero.Fs
	app     *fiber.App
	cache   *lru.Cache[string, cachedModule]
	metrics *observability.Metrics
	events  pubsub.PubSub
	channel string
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes m on the configured metrics path.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithEvents streams channel of ps to websocket clients.
func WithEvents(ps pubsub.PubSub, channel string) Option {
	return func(s *Server) {
		s.events = ps
		s.channel = channel
	}
}

// New creates a server for eng. The engine must already be started.
func New(cfg *config.Config, eng *engine.Engine, fsys afero.Fs, opts ...Option) (*Server, error) {
	cache, err := lru.New[string, cachedModule](cfg.Server.CacheSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		engine:  eng,
		fs:      fsys,
		cache:   cache,
		channel: pubsub.EventsChannel,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		ServerHeader:          "unbarrel",
		AppName:               "unbarrel " + observability.ServiceVersion,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		DisableStartupMessage: !cfg.Debug,
		ErrorHandler:          errorHandler,
	})
	s.setupMiddlewares()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddlewares() {
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(middleware.RequestLogger())
	s.app.Use(middleware.TracingMiddleware(middleware.TracingConfig{
		Enabled:   s.cfg.Tracing.Enabled,
		SkipPaths: middleware.DefaultTracingConfig().SkipPaths,
	}))
	if s.metrics != nil {
		s.app.Use(s.metrics.MetricsMiddleware())
	}
	s.app.Use(middleware.Revalidate())
}

func (s *Server) setupRoutes() {
	api := s.app.Group(apiPrefix)
	api.Get("/entries", s.handleEntries)
	api.Get("/diagnostics", s.handleDiagnostics)
	if s.events != nil {
		api.Get("/events", s.handleEvents)
	}

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.app.Get(s.cfg.Metrics.Path, func(c *fiber.Ctx) error {
			s.metrics.UpdateUptime(s.started)
			return c.Next()
		}, s.metrics.Handler())
	}

	s.app.Get("/*", s.handleModule)
}

// App returns the underlying Fiber app instance for testing
func (s *Server) App() *fiber.App {
	return s.app
}

// Purge drops every cached module. Rewrites depend on entry analyses, so any
// change to the project can make a cached output stale.
func (s *Server) Purge() {
	s.cache.Purge()
}

// Start listens on the configured address until ctx is done, then shuts the
// server down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}

func (s *Server) handleEntries(c *fiber.Ctx) error {
	return c.JSON(s.engine.Reports())
}

func (s *Server) handleDiagnostics(c *fiber.Ctx) error {
	return c.JSON(s.engine.Diagnostics())
}

func (s *Server) handleModule(c *fiber.Ctx) error {
	rel, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid path")
	}
	p := path.Join(s.engine.Root(), path.Clean("/"+rel))
	raw := c.Context().QueryArgs().Has(s.cfg.Server.SourceQuery)
	ctx := middleware.TraceContext(c)

	if source, ok := s.engine.Load(p, raw); ok {
		if raw {
			c.Locals(middleware.ServedLocal, "raw")
			c.Set(fiber.HeaderContentType, contentType(p))
			return c.SendString(source)
		}
		return s.serveModule(ctx, c, p, source, "entry")
	}

	info, err := s.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fiber.ErrNotFound
		}
		return err
	}
	if info.IsDir() {
		return fiber.ErrNotFound
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		return err
	}

	if raw || !s.engine.IsCandidate(p) {
		c.Locals(middleware.ServedLocal, "static")
		c.Set(fiber.HeaderContentType, contentType(p))
		return c.Send(data)
	}
	return s.serveModule(ctx, c, p, string(data), "module")
}

// serveModule rewrites, and when enabled transpiles, source. Outputs are
// cached by path and reused while the source is unchanged.
func (s *Server) serveModule(ctx context.Context, c *fiber.Ctx, p, source, served string) error {
	if cached, ok := s.cache.Get(p); ok && cached.source == source {
		s.recordCacheLookup(true)
		c.Locals(middleware.ServedLocal, "cached")
		c.Set(fiber.HeaderContentType, cached.contentType)
		return c.SendString(cached.body)
	}
	s.recordCacheLookup(false)

	out, changed, err := s.engine.Transform(ctx, p, source)
	if err != nil {
		// The browser gets the module as written and reports the syntax error
		// itself.
		log.Warn().Err(err).Str("path", p).Msg("Failed to rewrite module")
	}
	if changed {
		served = "rewritten"
	}

	module := cachedModule{source: source, body: out, contentType: contentType(p)}
	if s.cfg.Server.Transpile && transpilable(p) {
		body, err := transpile(p, out)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		module.body = body
		module.contentType = javascriptType
	}
	s.cache.Add(p, module)

	c.Locals(middleware.ServedLocal, served)
	c.Set(fiber.HeaderContentType, module.contentType)
	return c.SendString(module.body)
}

func (s *Server) recordCacheLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(hit)
	}
}

// contentType serves every script flavour as JavaScript and falls back to
// fiber's extension table for the rest.
func contentType(p string) string {
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx":
		return javascriptType
	}
	if mime := utils.GetMIME(ext); mime != "" {
		return mime
	}
	return fiber.MIMEOctetStream
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		log.Error().Err(err).Str("path", c.Path()).Msg("Server error")
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}
