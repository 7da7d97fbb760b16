// Package textedit applies span-based edits to a source string.
//
// Offsets always refer to the original text, so edits can be recorded in any
// order without invalidating each other.
package textedit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrOverlap is returned when an edit intersects one recorded earlier.
var ErrOverlap = errors.New("edit overlaps an existing edit")

type edit struct {
	start int
	end   int
	text  string
}

// Buffer records replacements against an immutable original.
type Buffer struct {
	src   string
	edits []edit
}

// New creates a buffer over src.
func New(src string) *Buffer {
	return &Buffer{src: src}
}

// Original returns the unedited text.
func (b *Buffer) Original() string {
	return b.src
}

// Replace overwrites src[start:end] with text.
func (b *Buffer) Replace(start, end int, text string) error {
	if start < 0 || end > len(b.src) || start > end {
		return fmt.Errorf("edit [%d,%d) out of range for %d bytes", start, end, len(b.src))
	}
	for _, e := range b.edits {
		if start < e.end && e.start < end {
			return fmt.Errorf("[%d,%d): %w", start, end, ErrOverlap)
		}
		// Two insertions at the same point would have an ambiguous order.
		if start == end && e.start == e.end && start == e.start {
			return fmt.Errorf("[%d,%d): %w", start, end, ErrOverlap)
		}
	}
	b.edits = append(b.edits, edit{start: start, end: end, text: text})
	return nil
}

// Delete removes src[start:end].
func (b *Buffer) Delete(start, end int) error {
	return b.Replace(start, end, "")
}

// Changed reports whether any edit was recorded.
func (b *Buffer) Changed() bool {
	return len(b.edits) > 0
}

// String renders the edited text.
func (b *Buffer) String() string {
	if len(b.edits) == 0 {
		return b.src
	}
	edits := make([]edit, len(b.edits))
	copy(edits, b.edits)
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start < edits[j].start
		}
		return edits[i].end < edits[j].end
	})

	var sb strings.Builder
	sb.Grow(len(b.src))
	pos := 0
	for _, e := range edits {
		sb.WriteString(b.src[pos:e.start])
		sb.WriteString(e.text)
		pos = e.end
	}
	sb.WriteString(b.src[pos:])
	return sb.String()
}
