package r2rml

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cayleygraph/quad"
	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
)

// ParseTurtle parses the Turtle subset the R2RML vocabulary needs: prefix
// declarations, IRIs, prefixed names, string literals with optional datatype,
// numeric literals, 'a', object/predicate lists and blank-node property
// lists. A production deployment would swap in a full Turtle parser; the
// mapping vocabulary never exercises more than this subset.
func ParseTurtle(data []byte) ([]quad.Quad, error) {
	p := &turtleParser{
		scan:     newTurtleScanner(string(data)),
		prefixes: make(map[string]string),
	}

	return p.parse()
}

// ParseTurtleMappings parses a Turtle mapping document into a mapping set.
func ParseTurtleMappings(data []byte) (*MappingSet, error) {
	quads, err := ParseTurtle(data)
	if err != nil {
		return nil, err
	}

	return FromQuads(quads)
}

type turtleTokenKind int

const (
	tokEOF turtleTokenKind = iota
	tokIRI
	tokPrefixedName
	tokLiteral
	tokNumber
	tokA
	tokPrefixDecl
	tokDot
	tokSemicolon
	tokComma
	tokLBracket
	tokRBracket
)

type turtleToken struct {
	kind turtleTokenKind
	text string
	// datatype is set for literals carrying ^^<type> or ^^pfx:type.
	datatype string
	line     int
}

type turtleScanner struct {
	input []rune
	pos   int
	line  int
}

func newTurtleScanner(input string) *turtleScanner {
	return &turtleScanner{input: []rune(input), line: 1}
}

func (s *turtleScanner) errf(format string, args ...any) error {
	return apperr.NewWithCode(apperr.KindInvalidConfiguration, constant.ErrMappingMalformed,
		"turtle line %d: %s", s.line, fmt.Sprintf(format, args...))
}

func (s *turtleScanner) skipSpace() {
	for s.pos < len(s.input) {
		r := s.input[s.pos]

		switch {
		case r == '\n':
			s.line++
			s.pos++
		case unicode.IsSpace(r):
			s.pos++
		case r == '#':
			for s.pos < len(s.input) && s.input[s.pos] != '\n' {
				s.pos++
			}
		default:
			return
		}
	}
}

func (s *turtleScanner) next() (turtleToken, error) {
	s.skipSpace()

	if s.pos >= len(s.input) {
		return turtleToken{kind: tokEOF, line: s.line}, nil
	}

	r := s.input[s.pos]

	switch r {
	case '.':
		s.pos++
		return turtleToken{kind: tokDot, line: s.line}, nil
	case ';':
		s.pos++
		return turtleToken{kind: tokSemicolon, line: s.line}, nil
	case ',':
		s.pos++
		return turtleToken{kind: tokComma, line: s.line}, nil
	case '[':
		s.pos++
		return turtleToken{kind: tokLBracket, line: s.line}, nil
	case ']':
		s.pos++
		return turtleToken{kind: tokRBracket, line: s.line}, nil
	case '<':
		return s.scanIRI()
	case '"':
		return s.scanLiteral()
	case '@':
		return s.scanDirective()
	}

	if r == '-' || r == '+' || unicode.IsDigit(r) {
		return s.scanNumber()
	}

	return s.scanName()
}

func (s *turtleScanner) scanIRI() (turtleToken, error) {
	start := s.pos + 1

	for i := start; i < len(s.input); i++ {
		if s.input[i] == '>' {
			iri := string(s.input[start:i])
			s.pos = i + 1

			return turtleToken{kind: tokIRI, text: iri, line: s.line}, nil
		}
	}

	return turtleToken{}, s.errf("unterminated IRI")
}

func (s *turtleScanner) scanLiteral() (turtleToken, error) {
	var sb strings.Builder

	i := s.pos + 1
	for i < len(s.input) {
		r := s.input[i]

		if r == '\\' && i+1 < len(s.input) {
			i++
			switch s.input[i] {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '"', '\\':
				sb.WriteRune(s.input[i])
			default:
				sb.WriteRune(s.input[i])
			}

			i++

			continue
		}

		if r == '"' {
			break
		}

		sb.WriteRune(r)
		i++
	}

	if i >= len(s.input) {
		return turtleToken{}, s.errf("unterminated string literal")
	}

	s.pos = i + 1

	tok := turtleToken{kind: tokLiteral, text: sb.String(), line: s.line}

	// Optional datatype annotation.
	if s.pos+1 < len(s.input) && s.input[s.pos] == '^' && s.input[s.pos+1] == '^' {
		s.pos += 2

		dt, err := s.next()
		if err != nil {
			return turtleToken{}, err
		}

		if dt.kind != tokIRI && dt.kind != tokPrefixedName {
			return turtleToken{}, s.errf("expected datatype IRI after '^^'")
		}

		tok.datatype = dt.text
		if dt.kind == tokPrefixedName {
			tok.datatype = "pfx:" + dt.text
		}
	}

	// Language tags are accepted and dropped; the mapping vocabulary never
	// keys on language.
	if s.pos < len(s.input) && s.input[s.pos] == '@' {
		s.pos++
		for s.pos < len(s.input) && (unicode.IsLetter(s.input[s.pos]) || s.input[s.pos] == '-') {
			s.pos++
		}
	}

	return tok, nil
}

func (s *turtleScanner) scanDirective() (turtleToken, error) {
	start := s.pos

	for s.pos < len(s.input) && !unicode.IsSpace(s.input[s.pos]) {
		s.pos++
	}

	word := string(s.input[start:s.pos])
	if word == "@prefix" || word == "@base" {
		return turtleToken{kind: tokPrefixDecl, text: word, line: s.line}, nil
	}

	return turtleToken{}, s.errf("unsupported directive %q", word)
}

func (s *turtleScanner) scanNumber() (turtleToken, error) {
	start := s.pos

	s.pos++
	for s.pos < len(s.input) && (unicode.IsDigit(s.input[s.pos]) || s.input[s.pos] == '.' || s.input[s.pos] == 'e' || s.input[s.pos] == 'E' || s.input[s.pos] == '-' || s.input[s.pos] == '+') {
		// A '.' followed by whitespace terminates the statement, not the number.
		if s.input[s.pos] == '.' && (s.pos+1 >= len(s.input) || !unicode.IsDigit(s.input[s.pos+1])) {
			break
		}

		s.pos++
	}

	return turtleToken{kind: tokNumber, text: string(s.input[start:s.pos]), line: s.line}, nil
}

func (s *turtleScanner) scanName() (turtleToken, error) {
	start := s.pos

	for s.pos < len(s.input) {
		r := s.input[s.pos]
		if unicode.IsSpace(r) || r == ';' || r == ',' || r == ']' || r == '[' {
			break
		}

		// A trailing '.' ends the statement unless it sits inside the name.
		if r == '.' && (s.pos+1 >= len(s.input) || unicode.IsSpace(s.input[s.pos+1]) || s.input[s.pos+1] == '#') {
			break
		}

		s.pos++
	}

	name := string(s.input[start:s.pos])
	if name == "" {
		return turtleToken{}, s.errf("unexpected character %q", s.input[s.pos])
	}

	if name == "a" {
		return turtleToken{kind: tokA, line: s.line}, nil
	}

	if !strings.Contains(name, ":") {
		return turtleToken{}, s.errf("expected prefixed name, got %q", name)
	}

	return turtleToken{kind: tokPrefixedName, text: name, line: s.line}, nil
}

type turtleParser struct {
	scan     *turtleScanner
	prefixes map[string]string
	quads    []quad.Quad
	peeked   *turtleToken
	bnodeSeq int
}

func (p *turtleParser) next() (turtleToken, error) {
	if p.peeked != nil {
		tok := *p.peeked
		p.peeked = nil

		return tok, nil
	}

	return p.scan.next()
}

func (p *turtleParser) peek() (turtleToken, error) {
	if p.peeked == nil {
		tok, err := p.scan.next()
		if err != nil {
			return turtleToken{}, err
		}

		p.peeked = &tok
	}

	return *p.peeked, nil
}

func (p *turtleParser) parse() ([]quad.Quad, error) {
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}

		switch tok.kind {
		case tokEOF:
			return p.quads, nil
		case tokPrefixDecl:
			if err := p.parsePrefix(); err != nil {
				return nil, err
			}
		default:
			if err := p.parseTriples(); err != nil {
				return nil, err
			}
		}
	}
}

func (p *turtleParser) parsePrefix() error {
	decl, err := p.next()
	if err != nil {
		return err
	}

	// @base carries just an IRI; it is accepted and ignored since the mapping
	// vocabulary is parsed with absolute IRIs.
	if decl.text == "@base" {
		iriTok, err := p.next()
		if err != nil {
			return err
		}

		if iriTok.kind != tokIRI {
			return p.scan.errf("expected IRI in @base declaration")
		}

		if dot, err := p.next(); err != nil || dot.kind != tokDot {
			return p.scan.errf("expected '.' after @base declaration")
		}

		return nil
	}

	nameTok, err := p.next()
	if err != nil {
		return err
	}

	iriTok, err := p.next()
	if err != nil {
		return err
	}

	if iriTok.kind != tokIRI {
		return p.scan.errf("expected IRI in @prefix declaration")
	}

	if dot, err := p.next(); err != nil || dot.kind != tokDot {
		return p.scan.errf("expected '.' after @prefix declaration")
	}

	prefix := strings.TrimSuffix(nameTok.text, ":")
	p.prefixes[prefix] = iriTok.text

	return nil
}

func (p *turtleParser) expand(name string) (string, error) {
	prefix, local, ok := strings.Cut(name, ":")
	if !ok {
		return "", p.scan.errf("malformed prefixed name %q", name)
	}

	base, ok := p.prefixes[prefix]
	if !ok {
		return "", p.scan.errf("undeclared prefix %q", prefix)
	}

	return base + local, nil
}

func (p *turtleParser) newBNode() quad.BNode {
	p.bnodeSeq++
	return quad.BNode(fmt.Sprintf("b%d", p.bnodeSeq))
}

func (p *turtleParser) parseTriples() error {
	tok, err := p.next()
	if err != nil {
		return err
	}

	var subject quad.Value

	switch tok.kind {
	case tokIRI:
		subject = quad.IRI(tok.text)
	case tokPrefixedName:
		iri, err := p.expand(tok.text)
		if err != nil {
			return err
		}

		subject = quad.IRI(iri)
	case tokLBracket:
		subject = p.newBNode()
		if err := p.parsePredicateObjectList(subject); err != nil {
			return err
		}

		if rb, err := p.next(); err != nil || rb.kind != tokRBracket {
			return p.scan.errf("expected ']' closing blank node subject")
		}
	default:
		return p.scan.errf("expected subject")
	}

	if tok.kind != tokLBracket {
		if err := p.parsePredicateObjectList(subject); err != nil {
			return err
		}
	}

	if dot, err := p.next(); err != nil || dot.kind != tokDot {
		return p.scan.errf("expected '.' terminating statement")
	}

	return nil
}

func (p *turtleParser) parsePredicateObjectList(subject quad.Value) error {
	for {
		tok, err := p.peek()
		if err != nil {
			return err
		}

		if tok.kind == tokDot || tok.kind == tokRBracket || tok.kind == tokEOF {
			return nil
		}

		predTok, err := p.next()
		if err != nil {
			return err
		}

		var predicate quad.IRI

		switch predTok.kind {
		case tokA:
			predicate = quad.IRI(rdfType)
		case tokIRI:
			predicate = quad.IRI(predTok.text)
		case tokPrefixedName:
			iri, err := p.expand(predTok.text)
			if err != nil {
				return err
			}

			predicate = quad.IRI(iri)
		default:
			return p.scan.errf("expected predicate")
		}

		if err := p.parseObjectList(subject, predicate); err != nil {
			return err
		}

		sep, err := p.peek()
		if err != nil {
			return err
		}

		if sep.kind != tokSemicolon {
			return nil
		}

		if _, err := p.next(); err != nil {
			return err
		}
	}
}

func (p *turtleParser) parseObjectList(subject quad.Value, predicate quad.IRI) error {
	for {
		object, err := p.parseObject()
		if err != nil {
			return err
		}

		p.quads = append(p.quads, quad.Quad{Subject: subject, Predicate: predicate, Object: object})

		sep, err := p.peek()
		if err != nil {
			return err
		}

		if sep.kind != tokComma {
			return nil
		}

		if _, err := p.next(); err != nil {
			return err
		}
	}
}

func (p *turtleParser) parseObject() (quad.Value, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}

	switch tok.kind {
	case tokIRI:
		return quad.IRI(tok.text), nil
	case tokPrefixedName:
		iri, err := p.expand(tok.text)
		if err != nil {
			return nil, err
		}

		return quad.IRI(iri), nil
	case tokLiteral:
		if tok.datatype == "" {
			return quad.String(tok.text), nil
		}

		dt := tok.datatype
		if pfxName, ok := strings.CutPrefix(dt, "pfx:"); ok {
			dt, err = p.expand(pfxName)
			if err != nil {
				return nil, err
			}
		}

		return quad.TypedString{Value: quad.String(tok.text), Type: quad.IRI(dt)}, nil
	case tokNumber:
		if strings.ContainsAny(tok.text, ".eE") {
			f, err := strconv.ParseFloat(tok.text, 64)
			if err != nil {
				return nil, p.scan.errf("malformed number %q", tok.text)
			}

			return quad.Float(f), nil
		}

		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, p.scan.errf("malformed number %q", tok.text)
		}

		return quad.Int(n), nil
	case tokLBracket:
		bnode := p.newBNode()

		if err := p.parsePredicateObjectList(bnode); err != nil {
			return nil, err
		}

		if rb, err := p.next(); err != nil || rb.kind != tokRBracket {
			return nil, p.scan.errf("expected ']' closing blank node")
		}

		return bnode, nil
	default:
		return nil, p.scan.errf("expected object")
	}
}
