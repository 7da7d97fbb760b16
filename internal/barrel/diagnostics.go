package barrel

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DiagnosticKind identifies a non-fatal resolution limitation.
type DiagnosticKind int

const (
	// DefinedWithinEntry: the entry mixes resolvable re-exports with code of
	// its own.
	DefinedWithinEntry DiagnosticKind = iota + 1
	// MaxDepthReached: a wildcard chain was longer than max_wildcard_depth.
	MaxDepthReached
)

func (k DiagnosticKind) String() string {
	switch k {
	case DefinedWithinEntry:
		return "defined_within_entry"
	case MaxDepthReached:
		return "max_depth_reached"
	}
	return fmt.Sprintf("DiagnosticKind(%d)", int(k))
}

// MarshalText renders the kind by name.
func (k DiagnosticKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Diagnostic is one collected record.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind" yaml:"kind"`
	Entry   string         `json:"entry" yaml:"entry"`
	Name    string         `json:"name,omitempty" yaml:"name,omitempty"`
	Message string         `json:"message" yaml:"message"`
	Time    time.Time      `json:"time" yaml:"time"`
}

// DiagnosticsOptions toggles each kind.
type DiagnosticsOptions struct {
	DefinedWithinEntry bool
	MaxDepthReached    bool
}

// AllDiagnostics enables every kind.
var AllDiagnostics = DiagnosticsOptions{DefinedWithinEntry: true, MaxDepthReached: true}

type diagnosticKey struct {
	kind  DiagnosticKind
	entry string
	name  string
}

// DiagnosticsCollector gathers diagnostics for one session. Records are
// deduplicated by kind, entry and name.
type DiagnosticsCollector struct {
	opts DiagnosticsOptions

	mu        sync.RWMutex
	records   []Diagnostic
	seen      map[diagnosticKey]struct{}
	observers []func(Diagnostic)
}

// NewDiagnosticsCollector creates a collector.
func NewDiagnosticsCollector(opts DiagnosticsOptions) *DiagnosticsCollector {
	return &DiagnosticsCollector{
		opts: opts,
		seen: make(map[diagnosticKey]struct{}),
	}
}

// Enabled reports whether kind is collected.
func (c *DiagnosticsCollector) Enabled(kind DiagnosticKind) bool {
	switch kind {
	case DefinedWithinEntry:
		return c.opts.DefinedWithinEntry
	case MaxDepthReached:
		return c.opts.MaxDepthReached
	}
	return false
}

// Observe registers fn to be called for every new record.
func (c *DiagnosticsCollector) Observe(fn func(Diagnostic)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Report records d. It returns false when the kind is disabled or the record
// is a duplicate.
func (c *DiagnosticsCollector) Report(d Diagnostic) bool {
	if !c.Enabled(d.Kind) {
		return false
	}
	key := diagnosticKey{kind: d.Kind, entry: d.Entry, name: d.Name}

	c.mu.Lock()
	if _, dup := c.seen[key]; dup {
		c.mu.Unlock()
		return false
	}
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	c.seen[key] = struct{}{}
	c.records = append(c.records, d)
	observers := append([]func(Diagnostic){}, c.observers...)
	c.mu.Unlock()

	log.Warn().
		Str("kind", d.Kind.String()).
		Str("entry", d.Entry).
		Str("name", d.Name).
		Msg(d.Message)

	for _, fn := range observers {
		fn(d)
	}
	return true
}

// Records returns every record in report order.
func (c *DiagnosticsCollector) Records() []Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Diagnostic(nil), c.records...)
}

// ForEntry returns the records of one entry.
func (c *DiagnosticsCollector) ForEntry(entry string) []Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Diagnostic
	for _, d := range c.records {
		if d.Entry == entry {
			out = append(out, d)
		}
	}
	return out
}

// Forget drops the records of entry so that re-analysis can report afresh.
func (c *DiagnosticsCollector) Forget(entry string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.records[:0]
	for _, d := range c.records {
		if d.Entry == entry {
			delete(c.seen, diagnosticKey{kind: d.Kind, entry: d.Entry, name: d.Name})
			continue
		}
		kept = append(kept, d)
	}
	c.records = kept
}
