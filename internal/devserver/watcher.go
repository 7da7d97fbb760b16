package devserver

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/unbarrel/internal/resolver"
)

// Invalidator is the part of the engine the watcher drives.
type Invalidator interface {
	Invalidate(ctx context.Context, p string) (bool, error)
	Remove(ctx context.Context, p string) bool
}

// Watcher re-analyzes entries when their files change on disk.
type Watcher struct {
	root     string
	target   Invalidator
	onChange func(p string)
	fsw      *fsnotify.Watcher
}

// NewWatcher watches every directory below root except vendored and VCS
// directories. onChange, when set, is called after each relevant event.
func NewWatcher(root string, target Invalidator, onChange func(p string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: root, target: target, onChange: onChange, fsw: fsw}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run handles events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return w.fsw.Close()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	p := resolver.Normalize(filepath.ToSlash(ev.Name))

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if w.target.Remove(ctx, p) {
			log.Info().Str("entry", p).Msg("Entry removed")
		}
	case ev.Has(fsnotify.Create) && isDir(ev.Name):
		if err := w.addTree(ev.Name); err != nil {
			log.Warn().Err(err).Str("path", ev.Name).Msg("Failed to watch directory")
		}
	case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
		tracked, err := w.target.Invalidate(ctx, p)
		if err != nil {
			log.Warn().Err(err).Str("entry", p).Msg("Failed to re-analyze entry")
		} else if tracked {
			log.Info().Str("entry", p).Msg("Entry re-analyzed")
		}
	}

	if w.onChange != nil {
		w.onChange(p)
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

func skipDir(name string) bool {
	return name == "node_modules" || name == ".git"
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
