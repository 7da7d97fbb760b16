package barrel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const consumerPath = "/p/src/app.ts"

func rewriteWith(t *testing.T, entrySource, consumer string) (string, bool) {
	t.Helper()
	f := newFixture(t, withFiles(map[string]string{
		entryPath:                            entrySource,
		"/p/node_modules/react/index.js":     "export const useState = 1;\n",
		"/p/node_modules/react/package.json": `{"main": "index.js"}`,
	}), 0)
	require.NoError(t, f.registry.AnalyzeAll(context.Background(), []string{entryPath}))

	out, changed, err := f.rewriter.Rewrite(context.Background(), consumerPath, consumer)
	require.NoError(t, err)
	return out, changed
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		name     string
		entry    string
		consumer string
		want     string
	}{
		{
			name:     "self-defined names stay on the entry",
			entry:    "export { X } from './m';\nexport const Y = 1;\n",
			consumer: "import { X, Y } from './index';\nconsole.log(X, Y);\n",
			want:     "import { X as X } from './m.ts';\nimport { Y } from './index';\nconsole.log(X, Y);\n",
		},
		{
			name:     "duplicate default bindings share one statement",
			entry:    "import Def from './m';\nimport DefDupe from './m';\nexport { Def, DefDupe };\n",
			consumer: "import { Def, DefDupe } from './index';\n",
			want:     "import { default as Def, default as DefDupe } from './m.ts';\n",
		},
		{
			name:     "aliases compose",
			entry:    "import { X as B } from './m';\nexport { B };\n",
			consumer: "import { B as C } from './index';\n",
			want:     "import { X as C } from './m.ts';\n",
		},
		{
			name:     "same origin is grouped in first-seen order",
			entry:    "export { a, T } from './a';\nexport { c } from './n';\n",
			consumer: "import { a, c, T } from './index'\nuse(a, c, T)\n",
			want:     "import { a as a, T as T } from './a.ts';\nimport { c as c } from './n.ts';\nuse(a, c, T)\n",
		},
		{
			name:     "default token and named list",
			entry:    "import Def from './m';\nexport default Def;\nexport { c } from './n';\n",
			consumer: "import Def, { c } from './index';\n",
			want:     "import { default as Def } from './m.ts';\nimport { c as c } from './n.ts';\n",
		},
		{
			name:     "unresolved names fall back to the entry",
			entry:    "export { a } from 'not-installed';\nexport { b } from './b';\n",
			consumer: "import { a, b as bee } from './index';\n",
			want:     "import { a } from './index';\nimport { b as bee } from './b.ts';\n",
		},
		{
			name:     "self-defined default keeps the default form",
			entry:    "export default function App() {}\nexport { b } from './b';\n",
			consumer: "import App, { b } from './index';\n",
			want:     "import { default as App } from './index';\nimport { b as b } from './b.ts';\n",
		},
		{
			name:     "namespace re-export",
			entry:    "export * as utils from './a';\n",
			consumer: "import { utils as u } from './index';\n",
			want:     "import * as u from './a.ts';\n",
		},
		{
			name:     "package specifiers are reused",
			entry:    "export { useState } from 'react';\n",
			consumer: "import { useState } from './index';\n",
			want:     "import { useState as useState } from 'react';\n",
		},
		{
			name:     "inline type items stay on the entry",
			entry:    "export { a, T } from './a';\n",
			consumer: "import { a, type T } from './index';\n",
			want:     "import { a as a } from './a.ts';\nimport { type T } from './index';\n",
		},
		{
			name:     "every statement is rewritten",
			entry:    "export { a } from './a';\nexport { b } from './b';\n",
			consumer: "import { a } from './index';\nimport { other } from './other';\nimport { b } from './index';\n",
			want:     "import { a as a } from './a.ts';\nimport { other } from './other';\nimport { b as b } from './b.ts';\n",
		},
		{
			name:     "comments inside the consumer clause",
			entry:    "export { a } from './a';\nexport { b } from './b';\nexport { c } from './n';\n",
			consumer: "import {\n  a, // first\n  b,\n  c /* third */,\n} from './index';\nuse(a, b, c);\n",
			want:     "import { a as a } from './a.ts';\nimport { b as b } from './b.ts';\nimport { c as c } from './n.ts';\nuse(a, b, c);\n",
		},
		{
			name:     "commented names falling back keep their text",
			entry:    "export { a } from './a';\nexport const own = 1;\n",
			consumer: "import { a, /* mine */ own as mine } from './index';\n",
			want:     "import { a as a } from './a.ts';\nimport { own as mine } from './index';\n",
		},
		{
			name:     "import attributes travel with the origin",
			entry:    "import data from './a' with { type: 'json' };\nexport { data };\n",
			consumer: "import { data } from './index';\n",
			want:     "import { default as data } from './a.ts' with { type: 'json' };\n",
		},
		{
			name:     "re-export attributes split the origin group",
			entry:    "export { default as cfg } from './a' with { type: 'json' };\nexport { a } from './a';\n",
			consumer: "import { cfg, a } from './index';\n",
			want:     "import { default as cfg } from './a.ts' with { type: 'json' };\nimport { a as a } from './a.ts';\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := rewriteWith(t, tt.entry, tt.consumer)
			assert.True(t, changed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewrite_LeavesUntouched(t *testing.T) {
	entry := "export { a } from './a';\nexport const own = 1;\n"
	tests := []struct {
		name     string
		consumer string
	}{
		{name: "no tracked entry", consumer: "import { a } from './a';\nimport x from 'not-installed';\n"},
		{name: "namespace import of the entry", consumer: "import * as E from './index';\n"},
		{name: "side-effect import", consumer: "import './index';\n"},
		{name: "type-only import", consumer: "import type { a } from './index';\n"},
		{name: "dynamic import", consumer: "const m = await import('./index');\n"},
		{name: "only self-defined names", consumer: "import { own } from './index';\n"},
		{name: "unknown name", consumer: "import { nothing } from './index';\n"},
		{name: "empty clause", consumer: "import {} from './index';\n"},
		{name: "unreadable clause item", consumer: "import { a, Foo<X> } from './index';\n"},
		{name: "consumer import attributes", consumer: "import { a } from './index' with { type: 'json' };\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := rewriteWith(t, entry, tt.consumer)
			assert.False(t, changed)
			assert.Equal(t, tt.consumer, got)
		})
	}
}

func TestRewrite_NeverTargetsSelfDefined(t *testing.T) {
	entry := "export const own = 1;\nexport function helper() {}\nexport { a } from './a';\n"
	got, changed := rewriteWith(t, entry, "import { own, helper, a } from './index';\n")
	require.True(t, changed)
	assert.Equal(t, "import { own, helper } from './index';\nimport { a as a } from './a.ts';\n", got)
}

func TestRewrite_LexErrorLeavesSource(t *testing.T) {
	f := newFixture(t, withFiles(map[string]string{entryPath: "export { a } from './a';\n"}), 0)
	require.NoError(t, f.registry.AnalyzeAll(context.Background(), []string{entryPath}))

	src := "import { a } from './index';\nfunction broken() {\n"
	out, changed, err := f.rewriter.Rewrite(context.Background(), consumerPath, src)
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, src, out)
}

func TestRewrite_TransitiveEntries(t *testing.T) {
	files := withFiles(map[string]string{
		entryPath:         "export { a } from './inner';\n",
		"/p/src/inner.ts": "export { a } from './a';\n",
	})

	f := newFixture(t, files, 0)
	require.NoError(t, f.registry.AnalyzeAll(context.Background(), []string{entryPath, "/p/src/inner.ts"}))
	out, changed, err := f.rewriter.Rewrite(context.Background(), consumerPath, "import { a } from './index';\n")
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, "import { a as a } from './a.ts';\n", out)

	// Without the inner barrel tracked the chain stops there.
	f = newFixture(t, files, 0)
	require.NoError(t, f.registry.AnalyzeAll(context.Background(), []string{entryPath}))
	out, changed, err = f.rewriter.Rewrite(context.Background(), consumerPath, "import { a } from './index';\n")
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, "import { a as a } from './inner.ts';\n", out)
}

func TestRewrite_ConsumerInOtherDirectory(t *testing.T) {
	f := newFixture(t, withFiles(map[string]string{entryPath: "export { a } from './a';\n"}), 0)
	require.NoError(t, f.registry.AnalyzeAll(context.Background(), []string{entryPath}))

	out, changed, err := f.rewriter.Rewrite(context.Background(), "/p/src/pages/deep/page.tsx", "import { a } from '../../index';\n")
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, "import { a as a } from '../../a.ts';\n", out)
}
