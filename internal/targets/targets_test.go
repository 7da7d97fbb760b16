package targets

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, name := range []string{
		"/p/src/index.ts",
		"/p/src/components/index.ts",
		"/p/src/components/Button.tsx",
		"/p/src/utils/index.ts",
		"/p/src/legacy/index.ts",
		"/p/node_modules/lib/index.ts",
		"/p/.git/index.ts",
	} {
		require.NoError(t, afero.WriteFile(fs, name, []byte("export {};\n"), 0o644))
	}
	return fs
}

func TestDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr error
		invalid bool
	}{
		{name: "path", def: Definition{Path: "src/index.ts"}},
		{name: "glob", def: Definition{Glob: "src/**/index.ts"}},
		{name: "neither", def: Definition{Ignore: []string{"x"}}, wantErr: ErrInvalidTargetDefinition},
		{name: "bad glob", def: Definition{Glob: "src/[a"}, invalid: true},
		{name: "bad ignore", def: Definition{Glob: "src/*", Ignore: []string{"{a"}}, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.invalid:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	fs := projectFS(t)

	got, err := Expand(fs, "/p", []Definition{
		{Path: "src/index.ts"},
		{Glob: "src/**/index.ts", Ignore: []string{"src/legacy/**"}},
		{Path: "/p/src/missing.ts"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/p/src/index.ts",
		"/p/src/components/index.ts",
		"/p/src/utils/index.ts",
		"/p/src/missing.ts",
	}, got)
}

func TestExpand_SkipsVendoredDirectories(t *testing.T) {
	fs := projectFS(t)

	got, err := Expand(fs, "/p", []Definition{{Glob: "**/index.ts"}})
	require.NoError(t, err)
	assert.NotContains(t, got, "/p/node_modules/lib/index.ts")
	assert.NotContains(t, got, "/p/.git/index.ts")

	got, err = Expand(fs, "/p", []Definition{{Glob: "node_modules/**/index.ts"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/node_modules/lib/index.ts"}, got)
}

func TestExpand_InvalidDefinition(t *testing.T) {
	_, err := Expand(afero.NewMemMapFs(), "/p", []Definition{{Path: "a.ts"}, {}})
	assert.ErrorIs(t, err, ErrInvalidTargetDefinition)
}

func TestFilter_Candidate(t *testing.T) {
	f, err := NewFilter("/p", []string{".ts", "tsx", ".VUE"}, []string{"**/node_modules/**", "src/generated/**"})
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{path: "/p/src/app.ts", want: true},
		{path: "/p/src/App.tsx", want: true},
		{path: "/p/src/App.vue", want: true},
		{path: "/p/src/style.css", want: false},
		{path: "/p/node_modules/lib/index.ts", want: false},
		{path: "/p/src/generated/api.ts", want: false},
		{path: "/p/src/./app.ts", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Candidate(tt.path))
		})
	}

	_, err = NewFilter("/p", nil, []string{"[x"})
	assert.Error(t, err)

	all, err := NewFilter("/p", nil, nil)
	require.NoError(t, err)
	assert.True(t, all.Candidate("/p/anything.md"))
}
