package devserver

import (
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var loaders = map[string]api.Loader{
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
	".cts": api.LoaderTS,
	".tsx": api.LoaderTSX,
	".jsx": api.LoaderJSX,
}

// transpilable reports whether the browser needs p compiled before it can run.
func transpilable(p string) bool {
	_, ok := loaders[strings.ToLower(path.Ext(p))]
	return ok
}

// TranspileError carries the messages esbuild reported for a module.
type TranspileError struct {
	Path     string
	Messages []api.Message
}

func (e *TranspileError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("transpile %s: failed", e.Path)
	}
	m := e.Messages[0]
	if m.Location != nil {
		return fmt.Sprintf("transpile %s:%d:%d: %s", e.Path, m.Location.Line, m.Location.Column, m.Text)
	}
	return fmt.Sprintf("transpile %s: %s", e.Path, m.Text)
}

// transpile strips types and JSX from source, keeping ES module syntax so
// the rewritten imports reach the browser as they are.
func transpile(p, source string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:     loaders[strings.ToLower(path.Ext(p))],
		Format:     api.FormatESModule,
		Target:     api.ESNext,
		Sourcefile: p,
		Sourcemap:  api.SourceMapInline,
		JSX:        api.JSXAutomatic,
	})
	if len(result.Errors) > 0 {
		return "", &TranspileError{Path: p, Messages: result.Errors}
	}
	return string(result.Code), nil
}
