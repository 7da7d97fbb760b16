package barrel

import (
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/unbarrel/internal/lexer"
	"github.com/fluxbase-eu/unbarrel/internal/resolver"
)

// countingFs counts Open calls per path.
type countingFs struct {
	afero.Fs
	mu    sync.Mutex
	opens map[string]int
	gate  chan struct{}
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.mu.Lock()
	c.opens[name]++
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return c.Fs.Open(name)
}

func (c *countingFs) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[name]
}

type fixture struct {
	fs          *countingFs
	diagnostics *DiagnosticsCollector
	analyzer    *Analyzer
	registry    *Registry
	rewriter    *Rewriter
	resolver    *resolver.PathResolver
}

func newFixture(t *testing.T, files map[string]string, maxWildcardDepth int) *fixture {
	t.Helper()
	mem := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(mem, name, []byte(content), 0o644))
	}
	fs := &countingFs{Fs: mem, opens: make(map[string]int)}
	res := resolver.New(resolver.NewFSResolver(fs, nil), nil)
	diags := NewDiagnosticsCollector(AllDiagnostics)
	lx := lexer.New()
	analyzer := NewAnalyzer(fs, lx, res, diags)
	registry := NewRegistry(analyzer, diags, maxWildcardDepth)
	return &fixture{
		fs:          fs,
		diagnostics: diags,
		analyzer:    analyzer,
		registry:    registry,
		rewriter:    NewRewriter(lx, res, registry),
		resolver:    res,
	}
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs.Fs, name, []byte(content), 0o644))
}

func lexSource(t *testing.T, source string) *lexer.Module {
	t.Helper()
	mod, err := lexer.New().Lex(source)
	require.NoError(t, err)
	return mod
}
