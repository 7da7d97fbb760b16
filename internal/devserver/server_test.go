package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/unbarrel/internal/config"
	"github.com/fluxbase-eu/unbarrel/internal/engine"
	"github.com/fluxbase-eu/unbarrel/internal/observability"
	"github.com/fluxbase-eu/unbarrel/internal/pubsub"
	"github.com/fluxbase-eu/unbarrel/internal/targets"
)

type testServer struct {
	server  *Server
	engine  *engine.Engine
	fs      afero.Fs
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, files map[string]string, configure ...func(*config.Config)) *testServer {
	t.Helper()
	fs := afero.NewMemMapFs()
	base := map[string]string{
		"/p/src/index.ts":   "export { a } from './a';\nexport { b } from './b';\n",
		"/p/src/a.ts":       "export const a = 1;\n",
		"/p/src/b.ts":       "export const b = 2;\n",
		"/p/src/app.ts":     "import { a, b } from './index';\nconsole.log(a, b);\n",
		"/p/src/styles.css": "body {}\n",
	}
	for name, content := range files {
		base[name] = content
	}
	for name, content := range base {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	cfg := config.Default()
	cfg.Root = "/p"
	cfg.Targets = []targets.Definition{{Path: "src/index.ts"}}
	for _, fn := range configure {
		fn(cfg)
	}

	metrics := observability.NewMetrics()
	bus := pubsub.NewLocalPubSub(0)
	t.Cleanup(func() { _ = bus.Close() })

	eng, err := engine.New(cfg, fs, engine.WithEvents(bus, pubsub.EventsChannel), engine.WithMetrics(metrics))
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))

	srv, err := New(cfg, eng, fs, WithMetrics(metrics), WithEvents(bus, pubsub.EventsChannel))
	require.NoError(t, err)
	return &testServer{server: srv, engine: eng, fs: fs, metrics: metrics}
}

func (ts *testServer) get(t *testing.T, target string, headers ...string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := ts.server.App().Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_ServesRewrittenConsumer(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.get(t, "/src/app.ts")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, javascriptType, resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, "import { a as a } from './a.ts';\nimport { b as b } from './b.ts';\nconsole.log(a, b);\n", body)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderETag))

	_, again := ts.get(t, "/src/app.ts")
	assert.Equal(t, body, again)

	expected := `
# HELP unbarrel_transform_cache_lookups_total Transform cache lookups
# TYPE unbarrel_transform_cache_lookups_total counter
unbarrel_transform_cache_lookups_total{result="hit"} 1
unbarrel_transform_cache_lookups_total{result="miss"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(ts.metrics.Registry(), strings.NewReader(expected), "unbarrel_transform_cache_lookups_total"))
}

func TestServer_ServesEntries(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"/p/src/index.ts": "export { a } from './a';\nexport const own = 1;\n",
	})

	resp, body := ts.get(t, "/src/index.ts")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "export const own = 1;\n", body)

	resp, body = ts.get(t, "/src/index.ts?raw")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "export { a } from './a';\nexport const own = 1;\n", body)
}

func TestServer_CustomSourceQuery(t *testing.T) {
	ts := newTestServer(t, nil, func(cfg *config.Config) {
		cfg.Server.SourceQuery = "original"
	})

	_, body := ts.get(t, "/src/index.ts?original")
	assert.Equal(t, "export { a } from './a';\nexport { b } from './b';\n", body)

	_, body = ts.get(t, "/src/index.ts?raw")
	assert.Equal(t, "", body)
}

func TestServer_StaticAndMissingFiles(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.get(t, "/src/styles.css")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "body {}\n", body)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/css")

	resp, _ = ts.get(t, "/src/app.ts?raw")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, target := range []string{"/src/missing.ts", "/src", "/../etc/passwd"} {
		t.Run(target, func(t *testing.T) {
			resp, body := ts.get(t, target)
			assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

			var payload map[string]any
			require.NoError(t, json.Unmarshal([]byte(body), &payload))
			assert.EqualValues(t, fiber.StatusNotFound, payload["code"])
		})
	}
}

func TestServer_LexErrorServesSource(t *testing.T) {
	src := "import { a } from './index';\nfunction broken() {\n"
	ts := newTestServer(t, map[string]string{"/p/src/broken.ts": src})

	resp, body := ts.get(t, "/src/broken.ts")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, src, body)
}

func TestServer_Revalidate(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, _ := ts.get(t, "/src/app.ts")
	etag := resp.Header.Get(fiber.HeaderETag)
	require.NotEmpty(t, etag)

	resp, body := ts.get(t, "/src/app.ts", fiber.HeaderIfNoneMatch, etag)
	assert.Equal(t, fiber.StatusNotModified, resp.StatusCode)
	assert.Empty(t, body)
}

func TestServer_PurgeAfterInvalidate(t *testing.T) {
	ts := newTestServer(t, map[string]string{"/p/src/a2.ts": "export const a = 3;\n"})

	_, body := ts.get(t, "/src/app.ts")
	require.Contains(t, body, "'./a.ts'")

	require.NoError(t, afero.WriteFile(ts.fs, "/p/src/index.ts", []byte("export { a } from './a2';\nexport { b } from './b';\n"), 0o644))
	tracked, err := ts.engine.Invalidate(context.Background(), "/p/src/index.ts")
	require.NoError(t, err)
	require.True(t, tracked)

	// The consumer itself did not change, so its cached output survives
	// until the cache is purged.
	_, body = ts.get(t, "/src/app.ts")
	assert.Contains(t, body, "'./a.ts'")

	ts.server.Purge()
	_, body = ts.get(t, "/src/app.ts")
	assert.Contains(t, body, "'./a2.ts'")
}

func TestServer_ConsumerChangeMissesCache(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.get(t, "/src/app.ts")

	require.NoError(t, afero.WriteFile(ts.fs, "/p/src/app.ts", []byte("import { b } from './index';\n"), 0o644))
	_, body := ts.get(t, "/src/app.ts")
	assert.Equal(t, "import { b as b } from './b.ts';\n", body)
}

func TestServer_Transpile(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"/p/src/typed.ts": "import { a } from './index';\nconst x: number = a;\nconsole.log(x);\n",
		"/p/src/bad.ts":   "const x: number = ;\n",
	}, func(cfg *config.Config) {
		cfg.Server.Transpile = true
	})

	resp, body := ts.get(t, "/src/typed.ts")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, javascriptType, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, body, `"./a.ts"`)
	assert.NotContains(t, body, ": number")
	assert.Contains(t, body, "sourceMappingURL=data:")

	resp, body = ts.get(t, "/src/bad.ts")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "transpile /p/src/bad.ts:1:")
}

func TestServer_Introspection(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"/p/src/index.ts": "export { a } from './a';\nexport const own = 1;\n",
	})

	resp, body := ts.get(t, "/__unbarrel/entries")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "/p/src/index.ts", entries[0]["path"])
	assert.Equal(t, true, entries[0]["cleaned"])
	assert.Equal(t, []any{"defined_within_entry"}, entries[0]["diagnostics"])

	resp, body = ts.get(t, "/__unbarrel/diagnostics")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var diagnostics []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &diagnostics))
	require.Len(t, diagnostics, 1)
	assert.Equal(t, "defined_within_entry", diagnostics[0]["kind"])

	resp, body = ts.get(t, "/metrics")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "unbarrel_entries_tracked 1")
	assert.Contains(t, body, "unbarrel_system_uptime_seconds")

	resp, _ = ts.get(t, "/__unbarrel/events")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, javascriptType, contentType("/p/a.tsx"))
	assert.Equal(t, javascriptType, contentType("/p/a.MJS"))
	assert.Contains(t, contentType("/p/a.json"), "application/json")
	assert.Equal(t, fiber.MIMEOctetStream, contentType("/p/LICENSE"))
}
