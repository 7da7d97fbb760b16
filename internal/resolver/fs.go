package resolver

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// DefaultExtensions are probed, in order, for extensionless specifiers.
var DefaultExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}

// FSResolver is a Host that checks candidates against a filesystem.
type FSResolver struct {
	fs         afero.Fs
	extensions []string
}

// NewFSResolver creates a resolver over fs. Nil extensions means
// DefaultExtensions.
func NewFSResolver(fs afero.Fs, extensions []string) *FSResolver {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &FSResolver{fs: fs, extensions: extensions}
}

// Resolve implements Host. Path-like candidates are probed directly; bare
// specifiers are looked up in node_modules directories above fromFile.
func (r *FSResolver) Resolve(fromFile, candidate string) (string, bool) {
	if isAbsolute(candidate) {
		return r.probe(Normalize(candidate))
	}
	return r.resolvePackage(path.Dir(Normalize(fromFile)), candidate)
}

func (r *FSResolver) probe(target string) (string, bool) {
	for _, candidate := range r.candidates(target) {
		if r.isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// candidates lists the paths tried for target: the path itself, the path with
// each extension, then index files inside it.
func (r *FSResolver) candidates(target string) []string {
	out := make([]string, 0, 2+2*len(r.extensions))
	out = append(out, target)
	base := target
	if ext := path.Ext(target); ext == ".js" || ext == ".jsx" || ext == ".mjs" || ext == ".cjs" {
		// TypeScript sources are imported with their emitted extension.
		base = strings.TrimSuffix(target, ext)
	}
	for _, ext := range r.extensions {
		if c := base + ext; c != target {
			out = append(out, c)
		}
	}
	for _, ext := range r.extensions {
		out = append(out, path.Join(target, "index"+ext))
	}
	return out
}

func (r *FSResolver) isFile(p string) bool {
	info, err := r.fs.Stat(p)
	return err == nil && !info.IsDir()
}

type packageManifest struct {
	Module string `json:"module"`
	Main   string `json:"main"`
}

func (r *FSResolver) resolvePackage(dir, specifier string) (string, bool) {
	name, sub := splitPackage(specifier)
	if name == "" {
		return "", false
	}
	for {
		pkgDir := path.Join(dir, "node_modules", name)
		if info, err := r.fs.Stat(pkgDir); err == nil && info.IsDir() {
			if sub != "" {
				return r.probe(path.Join(pkgDir, sub))
			}
			return r.packageEntry(pkgDir)
		}
		parent := path.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func (r *FSResolver) packageEntry(pkgDir string) (string, bool) {
	data, err := afero.ReadFile(r.fs, path.Join(pkgDir, "package.json"))
	if err == nil {
		var manifest packageManifest
		if json.Unmarshal(data, &manifest) == nil {
			for _, entry := range []string{manifest.Module, manifest.Main} {
				if entry == "" {
					continue
				}
				if resolved, ok := r.probe(path.Join(pkgDir, entry)); ok {
					return resolved, true
				}
			}
		}
	}
	return r.probe(path.Join(pkgDir, "index"))
}

// splitPackage splits "@scope/name/sub/path" into "@scope/name" and "sub/path".
func splitPackage(specifier string) (string, string) {
	parts := strings.Split(specifier, "/")
	n := 1
	if strings.HasPrefix(specifier, "@") {
		n = 2
	}
	if len(parts) < n || parts[0] == "" {
		return "", ""
	}
	return strings.Join(parts[:n], "/"), strings.Join(parts[n:], "/")
}
