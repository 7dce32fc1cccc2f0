package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrSyntax is returned for malformed Newick or NEXUS input.
var ErrSyntax = errors.New("newick syntax error")

// rawNode is the parse result before arena numbering.
type rawNode struct {
	name      string
	length    float64
	hasLength bool
	children  []*rawNode
	comments  []annotation
}

type annotation struct {
	key    string
	value  string
	quoted bool
}

// Parse parses a single Newick tree. A trailing semicolon is optional.
// FigTree-style comments ([&key=value,...]) become annotations; other
// comments, including the [&R] rooting flag, are ignored.
func Parse(s string) (*Tree, error) {
	p := &parser{src: s}
	p.skipSpace()
	raw, err := p.subtree()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ';' {
		p.pos++
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.rest(10))
	}
	return build(raw)
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) rest(n int) string {
	end := min(p.pos+n, len(p.src))
	return p.src[p.pos:end]
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// skipSpace skips whitespace and plain comments. Annotation comments
// ([&...]) are left in place for the caller.
func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '[' && !strings.HasPrefix(p.src[p.pos:], "[&") || strings.HasPrefix(p.src[p.pos:], "[&R]") || strings.HasPrefix(p.src[p.pos:], "[&U]"):
			end := strings.IndexByte(p.src[p.pos:], ']')
			if end < 0 {
				return
			}
			p.pos += end + 1
		default:
			return
		}
	}
}

func (p *parser) subtree() (*rawNode, error) {
	n := &rawNode{}
	if p.peek() == '(' {
		p.pos++
		for {
			p.skipSpace()
			child, err := p.subtree()
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, child)
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case ')':
				p.pos++
			default:
				return nil, p.errorf("expected ',' or ')', got %q", p.rest(1))
			}
			break
		}
	}
	p.skipSpace()
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	n.name = name
	if err := p.tail(n); err != nil {
		return nil, err
	}
	if len(n.children) == 0 && n.name == "" {
		return nil, p.errorf("tip without a name")
	}
	return n, nil
}

// tail parses any mix of annotation comments and a ":length" suffix.
func (p *parser) tail(n *rawNode) error {
	for {
		p.skipSpace()
		switch {
		case strings.HasPrefix(p.src[p.pos:], "[&"):
			anns, err := p.comment()
			if err != nil {
				return err
			}
			n.comments = append(n.comments, anns...)
		case p.peek() == ':':
			p.pos++
			p.skipSpace()
			start := p.pos
			for p.pos < len(p.src) && !strings.ContainsRune("(),:;[ \t\r\n", rune(p.src[p.pos])) {
				p.pos++
			}
			v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
			if err != nil {
				return p.errorf("invalid branch length %q", p.src[start:p.pos])
			}
			n.length = v
			n.hasLength = true
		default:
			return nil
		}
	}
}

func (p *parser) name() (string, error) {
	if p.peek() == '\'' || p.peek() == '"' {
		quote := p.src[p.pos]
		p.pos++
		var sb strings.Builder
		for p.pos < len(p.src) {
			c := p.src[p.pos]
			if c == quote {
				if p.pos+1 < len(p.src) && p.src[p.pos+1] == quote {
					sb.WriteByte(quote)
					p.pos += 2
					continue
				}
				p.pos++
				return sb.String(), nil
			}
			sb.WriteByte(c)
			p.pos++
		}
		return "", p.errorf("unterminated quoted name")
	}
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("(),:;[", rune(p.src[p.pos])) {
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos]), nil
}

// comment parses "[&k=v,k2={a,b:c},k3="x"]". Commas inside braces or quotes
// do not split entries, so SIMMAP strings survive intact.
func (p *parser) comment() ([]annotation, error) {
	p.pos += 2 // "[&"
	end := -1
	depth := 0
	inQuote := false
	for i := p.pos; i < len(p.src); i++ {
		c := p.src[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '{':
			depth++
		case c == '}':
			depth--
		case c == ']' && depth == 0:
			end = i
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, p.errorf("unterminated comment")
	}
	body := p.src[p.pos:end]
	p.pos = end + 1

	var out []annotation
	for _, entry := range splitTopLevel(body) {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, p.errorf("annotation %q has no value", entry)
		}
		a := annotation{key: strings.TrimSpace(k), value: strings.TrimSpace(v)}
		if len(a.value) >= 2 && a.value[0] == '"' && a.value[len(a.value)-1] == '"' {
			a.value = a.value[1 : len(a.value)-1]
			a.quoted = true
		}
		out = append(out, a)
	}
	return out, nil
}

func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '{':
			depth++
		case c == '}':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// attachComments turns parsed annotation comments into an Annotations set.
// A key is numeric only if every value for it is unquoted and parses as a
// float; otherwise all of its values are kept as text.
func (t *Tree) attachComments(index map[*rawNode]int) error {
	numeric := make(map[string]bool)
	for n := range index {
		for _, c := range n.comments {
			_, err := strconv.ParseFloat(c.value, 64)
			isNum := err == nil && !c.quoted
			if prev, seen := numeric[c.key]; seen {
				numeric[c.key] = prev && isNum
			} else {
				numeric[c.key] = isNum
			}
		}
	}
	if len(numeric) == 0 {
		return nil
	}

	byIndex := make([]*rawNode, len(t.nodes))
	for n, i := range index {
		byIndex[i] = n
	}
	a := NewAnnotations(len(t.nodes))
	for _, i := range t.PreOrder() {
		for _, c := range byIndex[i].comments {
			if numeric[c.key] {
				v, _ := strconv.ParseFloat(c.value, 64)
				a.SetNumber(c.key, i, v)
			} else {
				a.SetText(c.key, i, c.value)
			}
		}
	}
	return t.SetAnnotations(a)
}

// ReadAll reads every tree from r. The input may be NEXUS (with an optional
// Translate table) or one Newick tree per line.
func ReadAll(r io.Reader) ([]*Tree, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trees: %w", err)
	}

	first := ""
	for _, l := range lines {
		if s := strings.TrimSpace(l); s != "" {
			first = s
			break
		}
	}
	if strings.HasPrefix(strings.ToUpper(first), "#NEXUS") {
		return readNEXUS(lines)
	}

	var trees []*Tree
	for n, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		t, err := Parse(l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		trees = append(trees, t)
	}
	return trees, nil
}

// ReadFile reads the first tree in the file at path.
func ReadFile(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	trees, err := ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyTree)
	}
	return trees[0], nil
}

func readNEXUS(lines []string) ([]*Tree, error) {
	var (
		inTrees   bool
		inTransl  bool
		translate = map[string]string{}
		trees     []*Tree
		pending   strings.Builder
	)
	for n, line := range lines {
		l := strings.TrimSpace(line)
		upper := strings.ToUpper(l)
		switch {
		case strings.HasPrefix(upper, "BEGIN TREES"):
			inTrees = true
			continue
		case !inTrees:
			continue
		case strings.HasPrefix(upper, "END"):
			inTrees = false
			continue
		case strings.HasPrefix(upper, "TRANSLATE"):
			inTransl = true
			continue
		}

		if inTransl {
			done := strings.HasSuffix(l, ";")
			for _, entry := range strings.Split(strings.TrimSuffix(l, ";"), ",") {
				fields := strings.Fields(entry)
				if len(fields) == 2 {
					translate[fields[0]] = strings.Trim(fields[1], "'\"")
				}
			}
			if done {
				inTransl = false
			}
			continue
		}

		if pending.Len() == 0 && !strings.HasPrefix(upper, "TREE ") {
			continue
		}
		pending.WriteString(l)
		if !strings.HasSuffix(l, ";") {
			continue
		}
		stmt := pending.String()
		pending.Reset()
		_, body, ok := strings.Cut(stmt, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: %w: tree statement without '='", n+1, ErrSyntax)
		}
		t, err := Parse(strings.TrimSpace(body))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		if len(translate) > 0 {
			t.translate(translate)
		}
		trees = append(trees, t)
	}
	return trees, nil
}

func (t *Tree) translate(table map[string]string) {
	taxa := make(map[string]int, len(t.taxa))
	for name, i := range t.taxa {
		if full, ok := table[name]; ok {
			name = full
			t.nodes[i].Name = full
		}
		taxa[name] = i
	}
	t.taxa = taxa
}
