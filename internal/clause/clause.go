// Package clause splits the binding list of an import or export statement into
// the individual names it requests.
//
// The text handed to Parse is the part of a statement between the keyword and
// `from`, for example `Def, { a as b, default as C }` or `{ x, y }`. Parsing is
// done with a small bracket-aware tokenizer so that nested delimiters (generic
// arguments, string names) never split an item in two.
package clause

import "strings"

// Request is one binding requested by a clause.
type Request struct {
	// Name is the name in the source module. Default imports use "default".
	Name string
	// Alias is the local binding when it differs from Name.
	Alias string
	// TypeOnly marks an inline `type` modifier.
	TypeOnly bool
	// Start and End delimit the item inside the clause text.
	Start int
	End   int
}

// Local returns the name the request binds in the importing module.
func (r Request) Local() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

// IsDefault reports whether the request targets the default export.
func (r Request) IsDefault() bool {
	return r.Name == "default"
}

// Clause is the parsed form of a binding list.
type Clause struct {
	// Defaults holds `Def` and every `default as X` / `default` item.
	Defaults []Request
	// Named holds the remaining brace items in source order.
	Named []Request
	// Namespace is the local name of `* as NS`, if present.
	Namespace string
	// HasBraces reports whether a `{ ... }` list was present.
	HasBraces bool
	// Malformed reports that at least one item was not a form Parse knows.
	// Such items are missing from Defaults and Named.
	Malformed bool
}

// Requests returns defaults followed by named requests.
func (c Clause) Requests() []Request {
	out := make([]Request, 0, len(c.Defaults)+len(c.Named))
	out = append(out, c.Defaults...)
	out = append(out, c.Named...)
	return out
}

// Empty reports whether the clause binds nothing.
func (c Clause) Empty() bool {
	return len(c.Defaults) == 0 && len(c.Named) == 0 && c.Namespace == ""
}

// Parse parses a clause. Comments are ignored. Malformed items are dropped and
// flagged; filtering of type-only statements is left to the caller.
func Parse(text string) Clause {
	folded := fold(text)

	var c Clause
	open, close := braceBounds(folded)
	head := folded
	if open >= 0 {
		c.HasBraces = true
		head = folded[:open]
	}

	for _, part := range splitTopLevel(head, 0) {
		fields := tokens(part.text, part.start)
		switch {
		case len(fields) == 0:
		case len(fields) == 3 && fields[0].text == "*" && fields[1].text == "as":
			c.Namespace = fields[2].text
		case len(fields) == 1 && isIdentifier(fields[0].text):
			c.Defaults = append(c.Defaults, Request{
				Name:  "default",
				Alias: fields[0].text,
				Start: fields[0].start,
				End:   fields[0].end,
			})
		default:
			c.Malformed = true
		}
	}

	if open < 0 {
		return c
	}

	for _, part := range splitTopLevel(folded[open+1:close], open+1) {
		fields := tokens(part.text, part.start)
		if len(fields) == 0 {
			continue
		}
		req, ok := parseItem(fields)
		if !ok {
			c.Malformed = true
			continue
		}
		if req.IsDefault() {
			c.Defaults = append(c.Defaults, req)
		} else {
			c.Named = append(c.Named, req)
		}
	}
	return c
}

func parseItem(fields []token) (Request, bool) {
	if len(fields) == 0 {
		return Request{}, false
	}
	start, end := fields[0].start, fields[len(fields)-1].end

	typeOnly := false
	if fields[0].text == "type" && (len(fields) == 2 || (len(fields) == 4 && fields[2].text == "as")) {
		typeOnly = true
		fields = fields[1:]
	}

	var req Request
	switch {
	case len(fields) == 1:
		req = Request{Name: fields[0].text}
	case len(fields) == 3 && fields[1].text == "as":
		req = Request{Name: fields[0].text, Alias: fields[2].text}
		if req.Alias == req.Name {
			req.Alias = ""
		}
	default:
		return Request{}, false
	}
	if req.Name == "as" || req.Name == "" {
		return Request{}, false
	}
	req.TypeOnly = typeOnly
	req.Start, req.End = start, end
	return req, true
}

// fold blanks comments and replaces line breaks and tabs with spaces, keeping
// every offset intact.
func fold(text string) string {
	b := []byte(text)
	for i := 0; i < len(b); i++ {
		switch c := b[i]; {
		case c == '\'' || c == '"' || c == '`':
			i = skipString(text, i)
		case c == '/' && i+1 < len(b) && b[i+1] == '/':
			for ; i < len(b) && b[i] != '\n'; i++ {
				b[i] = ' '
			}
			if i < len(b) {
				b[i] = ' '
			}
		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			end := len(b)
			if j := strings.Index(text[i+2:], "*/"); j >= 0 {
				end = i + 2 + j + 2
			}
			for ; i < end; i++ {
				b[i] = ' '
			}
			i--
		case c == '\n' || c == '\r' || c == '\t':
			b[i] = ' '
		}
	}
	return string(b)
}

// braceBounds finds the first top-level `{` and its matching `}`.
func braceBounds(text string) (int, int) {
	open := -1
	depth := 0
	for i := 0; i < len(text); i++ {
		switch ch := text[i]; ch {
		case '\'', '"', '`':
			i = skipString(text, i)
		case '{':
			if open < 0 {
				open = i
				depth = 1
				continue
			}
			depth++
		case '}':
			if open < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return open, i
			}
		}
	}
	if open >= 0 {
		return open, len(text)
	}
	return -1, -1
}

type part struct {
	text  string
	start int
}

// splitTopLevel splits on commas outside of any bracket pair or string.
func splitTopLevel(text string, base int) []part {
	var parts []part
	depth := 0
	last := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\'', '"', '`':
			i = skipString(text, i)
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, part{text: text[last:i], start: base + last})
				last = i + 1
			}
		}
	}
	parts = append(parts, part{text: text[last:], start: base + last})
	return parts
}

type token struct {
	text  string
	start int
	end   int
}

// tokens splits on spaces; quoted names stay whole.
func tokens(text string, base int) []token {
	var out []token
	i := 0
	for i < len(text) {
		if text[i] == ' ' {
			i++
			continue
		}
		start := i
		if text[i] == '\'' || text[i] == '"' {
			i = skipString(text, i) + 1
		} else {
			for i < len(text) && text[i] != ' ' {
				i++
			}
		}
		if i > len(text) {
			i = len(text)
		}
		out = append(out, token{text: text[start:i], start: base + start, end: base + i})
	}
	return out
}

// skipString returns the index of the closing quote of the string at i, or
// the last index when the string is unterminated.
func skipString(text string, i int) int {
	quote := text[i]
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return len(text) - 1
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		case r > 0x7f:
		default:
			return false
		}
	}
	return true
}
