// Package engine assembles the optimizer core from configuration and is the
// one surface hosts (CLI, dev server) talk to.
package engine

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/fluxbase-eu/unbarrel/internal/barrel"
	"github.com/fluxbase-eu/unbarrel/internal/config"
	"github.com/fluxbase-eu/unbarrel/internal/lexer"
	"github.com/fluxbase-eu/unbarrel/internal/observability"
	"github.com/fluxbase-eu/unbarrel/internal/pubsub"
	"github.com/fluxbase-eu/unbarrel/internal/resolver"
	"github.com/fluxbase-eu/unbarrel/internal/targets"
)

// Engine owns one optimizer session.
type Engine struct {
	cfg  *config.Config
	fs   afero.Fs
	root string

	resolver    *resolver.PathResolver
	diagnostics *barrel.DiagnosticsCollector
	registry    *barrel.Registry
	rewriter    *barrel.Rewriter
	filter      *targets.Filter

	events  pubsub.PubSub
	channel string
	metrics *observability.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvents publishes session events on channel of ps.
func WithEvents(ps pubsub.PubSub, channel string) Option {
	return func(e *Engine) {
		e.events = ps
		e.channel = channel
	}
}

// WithMetrics records session metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New builds the resolver, lexer, collector, analyzer, registry and filter
// for cfg. Files are read through fs.
func New(cfg *config.Config, fs afero.Fs, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	root := cfg.Root
	if !path.IsAbs(filepath.ToSlash(root)) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %s: %w", root, err)
		}
		root = abs
	}
	root = resolver.Normalize(root)

	aliases, err := cfg.ResolverAliases()
	if err != nil {
		return nil, err
	}

	filter, err := targets.NewFilter(root, cfg.Extensions, cfg.IgnorePatterns)
	if err != nil {
		return nil, err
	}

	res := resolver.New(resolver.NewFSResolver(fs, resolver.DefaultExtensions), aliases)
	diags := barrel.NewDiagnosticsCollector(barrel.DiagnosticsOptions{
		DefinedWithinEntry: cfg.Diagnostics.DefinedWithinEntry,
		MaxDepthReached:    cfg.Diagnostics.MaxDepthReached,
	})
	lx := lexer.New()
	analyzer := barrel.NewAnalyzer(fs, lx, res, diags)
	registry := barrel.NewRegistry(analyzer, diags, cfg.MaxWildcardDepth)

	e := &Engine{
		cfg:         cfg,
		fs:          fs,
		root:        root,
		resolver:    res,
		diagnostics: diags,
		registry:    registry,
		rewriter:    barrel.NewRewriter(lx, res, registry),
		filter:      filter,
		channel:     pubsub.EventsChannel,
	}
	for _, opt := range opts {
		opt(e)
	}

	diags.Observe(e.onDiagnostic)
	return e, nil
}

// Root returns the absolute project root.
func (e *Engine) Root() string {
	return e.root
}

// Start expands the configured targets and analyzes every one of them. Any
// failure is fatal for the session.
func (e *Engine) Start(ctx context.Context) error {
	paths, err := targets.Expand(e.fs, e.root, e.cfg.Targets)
	if err != nil {
		return err
	}

	ctx, span := observability.StartAnalysisSpan(ctx, paths...)
	start := time.Now()
	err = e.registry.AnalyzeAll(ctx, paths)
	observability.EndSpan(span, err)
	if e.metrics != nil {
		e.metrics.RecordAnalysis("startup", time.Since(start), err)
	}
	if err != nil {
		return err
	}

	entries := e.registry.Entries()
	if e.metrics != nil {
		e.metrics.SetEntriesTracked(len(entries))
	}
	for _, entry := range entries {
		e.publish(ctx, pubsub.EventEntryAnalyzed, entry.Path, entrySummary(entry))
	}

	log.Info().
		Int("entries", len(entries)).
		Int("diagnostics", len(e.diagnostics.Records())).
		Dur("duration", time.Since(start)).
		Msg("Entries analyzed")
	return nil
}

// Load returns the source to serve for a tracked entry: the cleaned source,
// or the original when raw is set or the entry was found implicitly. The
// second result is false for files that are not entries.
func (e *Engine) Load(p string, raw bool) (string, bool) {
	entry, ok := e.registry.Get(resolver.Normalize(p))
	if !ok {
		return "", false
	}
	return entry.Served(raw), true
}

// IsEntry reports whether p is tracked.
func (e *Engine) IsEntry(p string) bool {
	_, ok := e.registry.Get(resolver.Normalize(p))
	return ok
}

// IsCandidate reports whether p passes the extension and ignore filters.
func (e *Engine) IsCandidate(p string) bool {
	return e.filter.Candidate(p)
}

// Transform rewrites the imports of src, the content of the module at p. The
// second result is false when nothing needed rewriting; src is returned then.
func (e *Engine) Transform(ctx context.Context, p, src string) (string, bool, error) {
	p = resolver.Normalize(p)
	if !e.filter.Candidate(p) {
		return src, false, nil
	}

	ctx, span := observability.StartTransformSpan(ctx, p)
	out, changed, err := e.rewriter.Rewrite(ctx, p, src)
	observability.EndSpan(span, err)
	if e.metrics != nil {
		e.metrics.RecordRewrite(changed, err)
	}
	if err != nil {
		return src, false, err
	}
	if changed {
		e.publish(ctx, pubsub.EventModuleRewritten, p, map[string]any{
			"bytes_before": len(src),
			"bytes_after":  len(out),
		})
	}
	return out, changed, nil
}

// Invalidate re-analyzes p when it is a tracked entry. The first result
// reports whether p was tracked.
func (e *Engine) Invalidate(ctx context.Context, p string) (bool, error) {
	p = resolver.Normalize(p)
	if !e.IsEntry(p) {
		return false, nil
	}

	ctx, span := observability.StartAnalysisSpan(ctx, p)
	start := time.Now()
	entry, err := e.registry.Invalidate(ctx, p)
	observability.EndSpan(span, err)
	if e.metrics != nil {
		e.metrics.RecordAnalysis("invalidate", time.Since(start), err)
	}
	if err != nil {
		return true, err
	}

	log.Debug().Str("entry", p).Msg("Entry invalidated")
	e.publish(ctx, pubsub.EventEntryInvalidated, p, entrySummary(entry))
	return true, nil
}

// Remove stops tracking p, for instance after its file was deleted.
func (e *Engine) Remove(ctx context.Context, p string) bool {
	p = resolver.Normalize(p)
	if !e.registry.Remove(p) {
		return false
	}
	if e.metrics != nil {
		e.metrics.SetEntriesTracked(len(e.registry.Entries()))
	}
	e.publish(ctx, pubsub.EventEntryInvalidated, p, map[string]any{"removed": true})
	return true
}

// Entries returns the tracked entries sorted by path.
func (e *Engine) Entries() []*barrel.EntryData {
	return e.registry.Entries()
}

// Diagnostics returns every diagnostic collected so far.
func (e *Engine) Diagnostics() []barrel.Diagnostic {
	return e.diagnostics.Records()
}

func (e *Engine) onDiagnostic(d barrel.Diagnostic) {
	if e.metrics != nil {
		e.metrics.RecordDiagnostic(d.Kind.String())
	}
	e.publish(context.Background(), pubsub.EventDiagnostic, d.Entry, map[string]any{
		"kind":    d.Kind.String(),
		"name":    d.Name,
		"message": d.Message,
	})
}

func (e *Engine) publish(ctx context.Context, typ pubsub.EventType, p string, data map[string]any) {
	if e.events == nil {
		return
	}
	if err := pubsub.PublishEvent(ctx, e.events, e.channel, pubsub.NewEvent(typ, p, data)); err != nil {
		log.Warn().Err(err).Str("event", string(typ)).Msg("Failed to publish event")
	}
}

func entrySummary(entry *barrel.EntryData) map[string]any {
	return map[string]any{
		"exports":  entry.Exports.Len(),
		"wildcard": len(entry.Wildcard.Direct),
		"depth":    entry.Depth,
		"implicit": entry.IsImplicit,
		"cleaned":  entry.UpdatedSource != entry.Source,
	}
}
