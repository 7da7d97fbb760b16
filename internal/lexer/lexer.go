package lexer

import (
	"sort"
	"strings"

	"github.com/fluxbase-eu/unbarrel/internal/clause"
)

// Lexer is the default statement lexer. The zero value is ready to use.
type Lexer struct{}

// New creates a lexer.
func New() *Lexer {
	return &Lexer{}
}

// Lex scans source and returns its top-level import and export statements.
func (l *Lexer) Lex(source string) (*Module, error) {
	s := &scanner{src: source, mod: &Module{}}
	if err := s.run(); err != nil {
		return nil, err
	}
	return s.mod, nil
}

type scanner struct {
	src string
	mod *Module
}

func (s *scanner) errorf(offset int, msg string) error {
	return &SyntaxError{Offset: offset, Msg: msg}
}

func (s *scanner) run() error {
	src := s.src
	n := len(src)
	i := 0
	if strings.HasPrefix(src, "#!") {
		i = lineEnd(src, 0)
	}

	depth := 0
	var prev byte
	prevWord := ""
	for i < n {
		c := src[i]
		switch {
		case isOpener(c):
			s.mod.HasLocalCode = true
			depth++
			prev, prevWord = c, ""
			i++
			continue
		case isCloser(c):
			depth--
			if depth < 0 {
				return s.errorf(i, "unbalanced "+string(c))
			}
			prev, prevWord = c, ""
			i++
			continue
		case isIdentStart(c):
			j := identEnd(src, i)
			word := src[i:j]
			if prev != '.' && word == "import" {
				next := s.skipTrivia(j)
				if next < n && src[next] == '(' {
					s.dynamicImport(i, next)
				} else if depth == 0 && (next >= n || src[next] != '.') {
					end, ok, err := s.importStatement(i, j)
					if err != nil {
						return err
					}
					if ok {
						i = end
						prev, prevWord = ';', ""
						continue
					}
				}
			}
			if prev != '.' && word == "export" && depth == 0 {
				end, regexOK, err := s.exportStatement(i, j)
				if err != nil {
					return err
				}
				if end > j {
					i = end
					if regexOK {
						prev, prevWord = ';', ""
					} else {
						prev, prevWord = 'a', ""
					}
					continue
				}
			}
		}

		next, p, w, err := s.skipAtom(i, prev, prevWord)
		if err != nil {
			return err
		}
		if p != prev || w != prevWord {
			s.mod.HasLocalCode = true
		}
		i, prev, prevWord = next, p, w
	}
	if depth != 0 {
		return s.errorf(n, "unexpected end of input inside a block")
	}
	return nil
}

// skipAtom advances over one token or one run of trivia starting at i. prev
// and prevWord describe the last significant token and are updated.
func (s *scanner) skipAtom(i int, prev byte, prevWord string) (int, byte, string, error) {
	src := s.src
	c := src[i]
	switch {
	case isSpace(c):
		return i + 1, prev, prevWord, nil
	case c == '/' && i+1 < len(src) && src[i+1] == '/':
		return lineEnd(src, i), prev, prevWord, nil
	case c == '/' && i+1 < len(src) && src[i+1] == '*':
		end := strings.Index(src[i+2:], "*/")
		if end < 0 {
			return 0, 0, "", s.errorf(i, "unterminated comment")
		}
		return i + 2 + end + 2, prev, prevWord, nil
	case c == '/' && regexAllowed(prev, prevWord):
		j, err := s.skipRegex(i)
		return j, 'a', "", err
	case c == '\'' || c == '"':
		j, err := s.skipString(i)
		return j, '"', "", err
	case c == '`':
		j, err := s.skipTemplate(i)
		return j, '`', "", err
	case isIdentStart(c):
		j := identEnd(src, i)
		return j, 'a', src[i:j], nil
	case isDigit(c):
		j := i + 1
		for j < len(src) && (isIdentPart(src[j]) || src[j] == '.') {
			j++
		}
		return j, '0', "", nil
	}
	return i + 1, c, "", nil
}

// skipTrivia skips whitespace and comments.
func (s *scanner) skipTrivia(i int) int {
	src := s.src
	for i < len(src) {
		switch {
		case isSpace(src[i]):
			i++
		case strings.HasPrefix(src[i:], "//"):
			i = lineEnd(src, i)
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return len(src)
			}
			i += 2 + end + 2
		default:
			return i
		}
	}
	return i
}

// skipHorizontal skips spaces and tabs only.
func (s *scanner) skipHorizontal(i int) int {
	for i < len(s.src) && (s.src[i] == ' ' || s.src[i] == '\t') {
		i++
	}
	return i
}

func (s *scanner) wordAt(i int) string {
	if i >= len(s.src) || !isIdentStart(s.src[i]) {
		return ""
	}
	return s.src[i:identEnd(s.src, i)]
}

// skipString skips a quoted string. A string broken by a line break ends
// there, which keeps JSX text such as `<p>Don't</p>` from derailing the scan.
func (s *scanner) skipString(i int) (int, error) {
	src := s.src
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case quote:
			return j + 1, nil
		case '\n':
			return j, nil
		}
	}
	return len(src), nil
}

func (s *scanner) skipTemplate(i int) (int, error) {
	src := s.src
	j := i + 1
	for j < len(src) {
		switch {
		case src[j] == '\\':
			j += 2
		case src[j] == '`':
			return j + 1, nil
		case src[j] == '$' && j+1 < len(src) && src[j+1] == '{':
			end, err := s.skipBalanced(j + 1)
			if err != nil {
				return 0, err
			}
			j = end
		default:
			j++
		}
	}
	return 0, s.errorf(i, "unterminated template literal")
}

func (s *scanner) skipRegex(i int) (int, error) {
	src := s.src
	inClass := false
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n':
			return j, nil
		case '/':
			if inClass {
				continue
			}
			j++
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			return j, nil
		}
	}
	return len(src), nil
}

// skipBalanced skips from the opener at i to just past its matching closer.
func (s *scanner) skipBalanced(i int) (int, error) {
	src := s.src
	depth := 0
	var prev byte
	prevWord := ""
	for j := i; j < len(src); {
		c := src[j]
		if isOpener(c) {
			depth++
			prev, prevWord = c, ""
			j++
			continue
		}
		if isCloser(c) {
			depth--
			prev, prevWord = c, ""
			j++
			if depth == 0 {
				return j, nil
			}
			continue
		}
		next, p, w, err := s.skipAtom(j, prev, prevWord)
		if err != nil {
			return 0, err
		}
		j, prev, prevWord = next, p, w
	}
	return 0, s.errorf(i, "unterminated "+string(src[i]))
}

// skipExpression skips an assignment expression and stops at a top-level
// comma, semicolon, unmatched closer, or a line break where a semicolon would
// be inserted.
func (s *scanner) skipExpression(i int) (int, error) {
	src := s.src
	depth := 0
	var prev byte
	prevWord := ""
	for j := i; j < len(src); {
		c := src[j]
		switch {
		case isOpener(c):
			depth++
			prev, prevWord = c, ""
			j++
			continue
		case isCloser(c):
			if depth == 0 {
				return j, nil
			}
			depth--
			prev, prevWord = c, ""
			j++
			continue
		case depth == 0 && (c == ',' || c == ';'):
			return j, nil
		case depth == 0 && c == '\n' && s.lineBreakEnds(prev, prevWord, j):
			return j, nil
		}
		next, p, w, err := s.skipAtom(j, prev, prevWord)
		if err != nil {
			return 0, err
		}
		j, prev, prevWord = next, p, w
	}
	return len(src), nil
}

// skipType skips a type annotation; angle brackets nest.
func (s *scanner) skipType(i int) (int, error) {
	src := s.src
	angle := 0
	var prev byte
	prevWord := ""
	for j := i; j < len(src); {
		c := src[j]
		switch {
		case isOpener(c):
			end, err := s.skipBalanced(j)
			if err != nil {
				return 0, err
			}
			j, prev, prevWord = end, ')', ""
			continue
		case isCloser(c):
			return j, nil
		case strings.HasPrefix(src[j:], "=>"):
			j, prev, prevWord = j+2, '>', ""
			continue
		case c == '<':
			angle++
			j, prev, prevWord = j+1, c, ""
			continue
		case c == '>' && angle > 0:
			angle--
			j, prev, prevWord = j+1, ')', ""
			continue
		case angle == 0 && (c == ',' || c == ';' || c == '='):
			return j, nil
		case angle == 0 && c == '\n' && s.lineBreakEnds(prev, prevWord, j):
			return j, nil
		}
		next, p, w, err := s.skipAtom(j, prev, prevWord)
		if err != nil {
			return 0, err
		}
		j, prev, prevWord = next, p, w
	}
	return len(src), nil
}

// lineBreakEnds applies the automatic semicolon insertion rule at a newline.
func (s *scanner) lineBreakEnds(prev byte, prevWord string, i int) bool {
	if prev == 0 {
		return false
	}
	if prevWord != "" {
		switch prevWord {
		case "new", "typeof", "void", "delete", "await", "in", "of", "instanceof", "yield", "extends":
			return false
		}
	} else if strings.IndexByte("=+-*/%&|^!~?:,.<>(", prev) >= 0 {
		return false
	}
	q := s.skipTrivia(i)
	if q >= len(s.src) {
		return true
	}
	if strings.IndexByte(".?+-*/%&|^=<>,:([`", s.src[q]) >= 0 {
		return false
	}
	switch s.wordAt(q) {
	case "instanceof", "in", "as", "satisfies":
		return false
	}
	return true
}

func (s *scanner) readSpecifier(i int) (spec string, start, end, after int, err error) {
	if i >= len(s.src) || (s.src[i] != '\'' && s.src[i] != '"') {
		return "", 0, 0, 0, s.errorf(i, "expected module specifier")
	}
	after, err = s.skipString(i)
	if err != nil {
		return "", 0, 0, 0, err
	}
	if after-1 <= i || s.src[after-1] != s.src[i] {
		return "", 0, 0, 0, s.errorf(i, "unterminated module specifier")
	}
	start, end = i+1, after-1
	return s.src[start:end], start, end, after, nil
}

// finishStatement consumes import attributes and a trailing semicolon. attrs
// is the attributes clause, if any.
func (s *scanner) finishStatement(i int) (end int, attrs string, err error) {
	q := s.skipTrivia(i)
	if w := s.wordAt(q); w == "with" || w == "assert" {
		r := s.skipTrivia(q + len(w))
		if r < len(s.src) && s.src[r] == '{' {
			close, err := s.skipBalanced(r)
			if err != nil {
				return 0, "", err
			}
			attrs = s.src[q:close]
			i = close
		}
	}
	h := s.skipHorizontal(i)
	if h < len(s.src) && s.src[h] == ';' {
		return h + 1, attrs, nil
	}
	return i, attrs, nil
}

func (s *scanner) dynamicImport(start, paren int) {
	st := ImportStatement{Start: start, End: paren + 1, Dynamic: true}
	q := s.skipTrivia(paren + 1)
	if spec, specStart, specEnd, after, err := s.readSpecifier(q); err == nil {
		st.Specifier, st.SpecStart, st.SpecEnd, st.End = spec, specStart, specEnd, after
	}
	s.mod.Imports = append(s.mod.Imports, st)
}

// importStatement reads a static import. ok is false for forms that are not
// ES import declarations, such as `import x = require('y')`.
func (s *scanner) importStatement(start, afterKeyword int) (int, bool, error) {
	src := s.src
	n := len(src)
	st := ImportStatement{Start: start}

	p := s.skipTrivia(afterKeyword)
	if p < n && (src[p] == '\'' || src[p] == '"') {
		spec, specStart, specEnd, after, err := s.readSpecifier(p)
		if err != nil {
			return 0, false, err
		}
		end, attrs, err := s.finishStatement(after)
		if err != nil {
			return 0, false, err
		}
		st.Specifier, st.SpecStart, st.SpecEnd = spec, specStart, specEnd
		st.Attributes = attrs
		st.SideEffect = true
		st.End = end
		s.mod.Imports = append(s.mod.Imports, st)
		return end, true, nil
	}

	if s.wordAt(p) == "type" {
		q := s.skipTrivia(p + 4)
		if q < n && (src[q] == '{' || src[q] == '*' || (isIdentStart(src[q]) && s.wordAt(q) != "from")) {
			st.TypeOnly = true
			p = q
		}
	}

	from := -1
	depth := 0
	for q := p; q < n && from < 0; {
		c := src[q]
		switch {
		case c == '{':
			depth++
			q++
		case c == '}':
			depth--
			q++
		case depth == 0 && (c == ';' || c == '=' || c == '('):
			return 0, false, nil
		case c == '\'' || c == '"':
			end, err := s.skipString(q)
			if err != nil {
				return 0, false, err
			}
			q = end
		case isIdentStart(c):
			w := s.wordAt(q)
			if depth == 0 && w == "from" && q > p {
				from = q
			}
			q += len(w)
		default:
			if t := s.skipTrivia(q); t > q {
				q = t
			} else {
				q++
			}
		}
	}
	if from < 0 {
		return 0, false, nil
	}

	spec, specStart, specEnd, after, err := s.readSpecifier(s.skipTrivia(from + 4))
	if err != nil {
		return 0, false, err
	}
	end, attrs, err := s.finishStatement(after)
	if err != nil {
		return 0, false, err
	}
	st.Clause = src[p:from]
	st.ClauseStart = p
	st.Specifier, st.SpecStart, st.SpecEnd = spec, specStart, specEnd
	st.Attributes = attrs
	st.End = end
	s.mod.Imports = append(s.mod.Imports, st)
	return end, true, nil
}

// exportStatement reads an export. It returns afterKeyword unchanged when the
// form is not one it understands; the caller then treats it as code.
func (s *scanner) exportStatement(start, afterKeyword int) (int, bool, error) {
	src := s.src
	n := len(src)
	st := ExportStatement{Start: start}

	p := s.skipTrivia(afterKeyword)
	if p >= n {
		return afterKeyword, false, nil
	}
	if s.wordAt(p) == "type" {
		q := s.skipTrivia(p + 4)
		if q < n && (src[q] == '{' || src[q] == '*') {
			st.TypeOnly = true
			p = q
		}
	}

	switch {
	case src[p] == '*':
		q := s.skipTrivia(p + 1)
		st.Kind = ExportAll
		if s.wordAt(q) == "as" {
			nameStart := s.skipTrivia(q + 2)
			name, nameEnd, err := s.readName(nameStart)
			if err != nil {
				return 0, false, err
			}
			st.Kind = ExportNamespace
			st.Items = []ExportItem{{Name: name, Local: "*", Start: p, End: nameEnd, TypeOnly: st.TypeOnly}}
			q = s.skipTrivia(nameEnd)
		}
		if s.wordAt(q) != "from" {
			return 0, false, s.errorf(q, "expected from")
		}
		if err := s.readFrom(&st, q); err != nil {
			return 0, false, err
		}

	case src[p] == '{':
		close, err := s.skipBalanced(p)
		if err != nil {
			return 0, false, err
		}
		st.Kind = ExportClause
		st.BraceStart, st.BraceEnd = p, close
		st.Clause, st.ClauseStart = src[p:close], p
		st.Items, st.Malformed = clauseItems(st.Clause, p, st.TypeOnly)
		q := s.skipTrivia(close)
		if s.wordAt(q) == "from" {
			if err := s.readFrom(&st, q); err != nil {
				return 0, false, err
			}
		} else {
			end, _, err := s.finishStatement(close)
			if err != nil {
				return 0, false, err
			}
			st.End = end
		}

	case s.wordAt(p) == "default":
		st.Kind = ExportDefault
		kwEnd := p + len("default")
		q := s.skipTrivia(kwEnd)
		if w := s.wordAt(q); w != "" && !reservedAfterDefault[w] {
			wEnd := q + len(w)
			h := s.skipHorizontal(wEnd)
			if h >= n || src[h] == ';' || src[h] == '\n' || src[h] == '\r' {
				st.Items = []ExportItem{{Name: "default", Local: w, Start: q, End: wEnd}}
				end, _, err := s.finishStatement(wEnd)
				if err != nil {
					return 0, false, err
				}
				st.End = end
				s.mod.Exports = append(s.mod.Exports, st)
				return end, true, nil
			}
		}
		s.mod.HasLocalCode = true
		st.Items = []ExportItem{{Name: "default", Start: p, End: kwEnd}}
		st.End = kwEnd
		s.mod.Exports = append(s.mod.Exports, st)
		return kwEnd, true, nil

	default:
		items, end, typeOnly, err := s.declaration(p)
		if err != nil {
			return 0, false, err
		}
		if len(items) == 0 {
			return afterKeyword, false, nil
		}
		s.mod.HasLocalCode = true
		st.Kind = ExportDeclaration
		st.TypeOnly = typeOnly
		st.Items = items
		st.End = end
		s.mod.Exports = append(s.mod.Exports, st)
		return end, false, nil
	}

	s.mod.Exports = append(s.mod.Exports, st)
	return st.End, true, nil
}

func (s *scanner) readFrom(st *ExportStatement, fromAt int) error {
	spec, specStart, specEnd, after, err := s.readSpecifier(s.skipTrivia(fromAt + 4))
	if err != nil {
		return err
	}
	end, attrs, err := s.finishStatement(after)
	if err != nil {
		return err
	}
	st.HasFrom = true
	st.Specifier, st.SpecStart, st.SpecEnd = spec, specStart, specEnd
	st.Attributes = attrs
	st.End = end
	return nil
}

// readName reads an identifier or a string name.
func (s *scanner) readName(i int) (string, int, error) {
	if i < len(s.src) && (s.src[i] == '\'' || s.src[i] == '"') {
		end, err := s.skipString(i)
		if err != nil {
			return "", 0, err
		}
		return s.src[i:end], end, nil
	}
	w := s.wordAt(i)
	if w == "" {
		return "", 0, s.errorf(i, "expected name")
	}
	return w, i + len(w), nil
}

var reservedAfterDefault = map[string]bool{
	"function": true, "class": true, "async": true, "new": true, "this": true,
	"null": true, "true": true, "false": true, "typeof": true, "void": true,
	"await": true, "yield": true, "delete": true, "interface": true,
	"abstract": true, "super": true, "enum": true,
}

// declaration reads the names declared by `export <declaration>`.
func (s *scanner) declaration(p int) ([]ExportItem, int, bool, error) {
	typeOnly := false
	q := p
	w := s.wordAt(q)
modifiers:
	for {
		switch w {
		case "declare":
			typeOnly = true
		case "abstract", "async":
		case "const":
			if s.wordAt(s.skipTrivia(q+len(w))) != "enum" {
				items, end, err := s.declarators(q + len(w))
				return items, end, typeOnly, err
			}
		default:
			break modifiers
		}
		q = s.skipTrivia(q + len(w))
		w = s.wordAt(q)
	}

	switch w {
	case "let", "var", "using":
		items, end, err := s.declarators(q + len(w))
		return items, end, typeOnly, err
	case "function":
		q = s.skipTrivia(q + len(w))
		if q < len(s.src) && s.src[q] == '*' {
			q = s.skipTrivia(q + 1)
		}
	case "class", "enum", "namespace", "module":
		q = s.skipTrivia(q + len(w))
	case "interface", "type":
		typeOnly = true
		q = s.skipTrivia(q + len(w))
	default:
		return nil, p, false, nil
	}
	name := s.wordAt(q)
	if name == "" {
		return nil, p, false, nil
	}
	end := q + len(name)
	return []ExportItem{{Name: name, Local: name, Start: q, End: end, TypeOnly: typeOnly}}, end, typeOnly, nil
}

// declarators reads `a = 1, { b, c: d } = obj, ...` after const/let/var.
func (s *scanner) declarators(i int) ([]ExportItem, int, error) {
	src := s.src
	var items []ExportItem
	q := s.skipTrivia(i)
	for q < len(src) {
		switch {
		case src[q] == '{' || src[q] == '[':
			close, err := s.skipBalanced(q)
			if err != nil {
				return nil, 0, err
			}
			for _, name := range patternNames(src[q:close]) {
				items = append(items, ExportItem{Name: name, Local: name, Start: q, End: close})
			}
			q = close
		default:
			name := s.wordAt(q)
			if name == "" {
				return items, q, nil
			}
			items = append(items, ExportItem{Name: name, Local: name, Start: q, End: q + len(name)})
			q += len(name)
		}

		q = s.skipTrivia(q)
		if q < len(src) && src[q] == '!' {
			q = s.skipTrivia(q + 1)
		}
		if q < len(src) && src[q] == ':' {
			end, err := s.skipType(q + 1)
			if err != nil {
				return nil, 0, err
			}
			q = s.skipTrivia(end)
		}
		if q < len(src) && src[q] == '=' {
			end, err := s.skipExpression(q + 1)
			if err != nil {
				return nil, 0, err
			}
			q = end
		}
		t := s.skipTrivia(q)
		if t < len(src) && src[t] == ',' {
			q = s.skipTrivia(t + 1)
			continue
		}
		return items, q, nil
	}
	return items, q, nil
}

// patternNames lists the bindings introduced by a destructuring pattern.
func patternNames(pattern string) []string {
	pattern = strings.TrimSpace(pattern)
	if len(pattern) < 2 {
		return nil
	}
	open, inner := pattern[0], pattern[1:len(pattern)-1]
	var names []string
	for _, el := range splitTopLevel(inner) {
		el = strings.TrimSpace(el)
		if el == "" {
			continue
		}
		if strings.HasPrefix(el, "...") {
			names = append(names, bindingTarget(el[3:])...)
			continue
		}
		if open == '{' {
			if colon := indexTopLevel(el, ':'); colon >= 0 {
				names = append(names, bindingTarget(el[colon+1:])...)
				continue
			}
		}
		names = append(names, bindingTarget(el)...)
	}
	return names
}

func bindingTarget(el string) []string {
	el = strings.TrimSpace(el)
	if eq := indexTopLevel(el, '='); eq >= 0 && !strings.HasPrefix(el[eq:], "=>") {
		el = strings.TrimSpace(el[:eq])
	}
	if el == "" {
		return nil
	}
	if el[0] == '{' || el[0] == '[' {
		return patternNames(el)
	}
	if j := identEnd(el, 0); j > 0 && isIdentStart(el[0]) {
		return []string{el[:j]}
	}
	return nil
}

func splitTopLevel(text string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '\'', '"', '`':
			i = skipQuoted(text, i)
		case ',':
			if depth == 0 {
				parts = append(parts, text[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, text[last:])
}

func indexTopLevel(text string, target byte) int {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(text, i)
		case c == target && depth == 0:
			return i
		}
	}
	return -1
}

func skipQuoted(text string, i int) int {
	quote := text[i]
	for j := i + 1; j < len(text); j++ {
		if text[j] == '\\' {
			j++
			continue
		}
		if text[j] == quote {
			return j
		}
	}
	return len(text)
}

// clauseItems turns an export clause into items with absolute offsets.
// malformed reports items that could not be read.
func clauseItems(text string, base int, typeOnly bool) (items []ExportItem, malformed bool) {
	c := clause.Parse(text)
	reqs := c.Requests()
	items = make([]ExportItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, ExportItem{
			Name:     r.Local(),
			Local:    r.Name,
			Start:    base + r.Start,
			End:      base + r.End,
			TypeOnly: typeOnly || r.TypeOnly,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Start < items[j].Start })
	return items, c.Malformed
}

// regexAllowed reports whether a '/' after the given token starts a regular
// expression rather than a division.
func regexAllowed(prev byte, prevWord string) bool {
	if prevWord != "" {
		switch prevWord {
		case "return", "typeof", "instanceof", "in", "of", "new", "delete",
			"void", "throw", "case", "do", "else", "yield", "await":
			return true
		}
		return false
	}
	switch prev {
	case 0:
		return true
	case ')', ']', '}', 'a', '0', '"', '`':
		return false
	}
	return true
}

func lineEnd(src string, i int) int {
	if j := strings.IndexByte(src[i:], '\n'); j >= 0 {
		return i + j
	}
	return len(src)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isOpener(c byte) bool { return c == '(' || c == '[' || c == '{' }

func isCloser(c byte) bool { return c == ')' || c == ']' || c == '}' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func identEnd(src string, i int) int {
	for i < len(src) && isIdentPart(src[i]) {
		i++
	}
	return i
}
