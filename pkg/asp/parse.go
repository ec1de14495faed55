package asp

import (
	"strconv"
	"strings"
	"unicode"
)

// Location is a source range attached to parsed statements and AST nodes.
type Location struct {
	BeginFile   string
	EndFile     string
	BeginLine   int
	EndLine     int
	BeginColumn int
	EndColumn   int
}

// String renders the location as file:line:column.
func (l Location) String() string {
	return l.BeginFile + ":" + strconv.Itoa(l.BeginLine) + ":" + strconv.Itoa(l.BeginColumn)
}

// AST is a generic syntax-tree node produced by Control.Parse. The node
// kind and leaf values are encoded in Value; composite structure lives in
// Children. Statement nodes use the constant ids "rule", "constraint",
// "external", "show" and "theory"; a rule's first child is its head, the
// remaining children are body literals, and negated body literals are
// wrapped in a "not" node.
type AST struct {
	Location Location
	Value    Symbol
	Children []AST
}

// term kinds of the internal parse representation.
type termKind int

const (
	termNumber termKind = iota
	termString
	termSymbolic // identifier or function, possibly classically negated
	termCall     // @name(args): evaluated through the ground callback
	termBinop    // arithmetic over two sub-terms
	termInfimum
	termSupremum
)

type astTerm struct {
	loc  Location
	kind termKind
	num  int
	text string // name for symbolic/call, operator for binop
	sign bool
	args []astTerm
}

// bodyLiteral is one (possibly default-negated) body element.
type bodyLiteral struct {
	loc  Location
	neg  bool
	atom astTerm
}

type stmtKind int

const (
	stmtRule stmtKind = iota
	stmtConstraint
	stmtExternal
	stmtShow
	stmtTheory
)

// statement is one parsed program statement.
type statement struct {
	loc       Location
	kind      stmtKind
	head      astTerm // rule/external/theory head
	body      []bodyLiteral
	showName  string
	showArity int
}

// tokenizer

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokDirective // #external, #show, #inf, #sup
	tokPunct     // single punctuation or operator
	tokImplies   // :-
	tokNot
)

type token struct {
	kind tokenKind
	text string
	num  int
	loc  Location
}

type lexer struct {
	src  string
	file string
	pos  int
	line int
	col  int
}

func newLexer(file, src string) *lexer {
	return &lexer{src: src, file: file, line: 1, col: 1}
}

func (lx *lexer) loc() Location {
	return Location{
		BeginFile: lx.file, EndFile: lx.file,
		BeginLine: lx.line, EndLine: lx.line,
		BeginColumn: lx.col, EndColumn: lx.col,
	}
}

func (lx *lexer) advance() byte {
	c := lx.src[lx.pos]
	lx.pos++
	if c == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return c
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if c == '%' { // comment to end of line
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.advance()
			}
			continue
		}
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return
		}
		lx.advance()
	}
}

func isIdentStart(c byte) bool { return c == '_' || unicode.IsLower(rune(c)) }
func isIdentPart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

func (lx *lexer) next() (token, error) {
	lx.skipSpace()
	loc := lx.loc()
	if lx.pos >= len(lx.src) {
		return token{kind: tokEOF, loc: loc}, nil
	}
	c := lx.src[lx.pos]
	switch {
	case c >= '0' && c <= '9':
		start := lx.pos
		for lx.pos < len(lx.src) && lx.src[lx.pos] >= '0' && lx.src[lx.pos] <= '9' {
			lx.advance()
		}
		n, err := strconv.Atoi(lx.src[start:lx.pos])
		if err != nil {
			return token{}, newError(CodeRuntime, "%s: malformed number", loc)
		}
		return token{kind: tokNumber, num: n, loc: loc}, nil
	case c == '"':
		lx.advance()
		var b strings.Builder
		for {
			if lx.pos >= len(lx.src) {
				return token{}, newError(CodeRuntime, "%s: unterminated string", loc)
			}
			ch := lx.advance()
			if ch == '\\' && lx.pos < len(lx.src) {
				b.WriteByte(lx.advance())
				continue
			}
			if ch == '"' {
				break
			}
			b.WriteByte(ch)
		}
		return token{kind: tokString, text: b.String(), loc: loc}, nil
	case isIdentStart(c):
		start := lx.pos
		for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
			lx.advance()
		}
		text := lx.src[start:lx.pos]
		if text == "not" {
			return token{kind: tokNot, text: text, loc: loc}, nil
		}
		return token{kind: tokIdent, text: text, loc: loc}, nil
	case c == '#':
		lx.advance()
		start := lx.pos
		for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
			lx.advance()
		}
		return token{kind: tokDirective, text: lx.src[start:lx.pos], loc: loc}, nil
	case c == ':':
		lx.advance()
		if lx.pos < len(lx.src) && lx.src[lx.pos] == '-' {
			lx.advance()
			return token{kind: tokImplies, text: ":-", loc: loc}, nil
		}
		return token{}, newError(CodeRuntime, "%s: unexpected ':'", loc)
	default:
		lx.advance()
		return token{kind: tokPunct, text: string(c), loc: loc}, nil
	}
}

// parser

type parser struct {
	lx  *lexer
	tok token
}

func newParser(file, src string) (*parser, error) {
	p := &parser{lx: newLexer(file, src)}
	return p, p.bump()
}

func (p *parser) bump() error {
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expectPunct(s string) error {
	if p.tok.kind != tokPunct || p.tok.text != s {
		return newError(CodeRuntime, "%s: expected %q, found %q", p.tok.loc, s, p.tok.text)
	}
	return p.bump()
}

// parseProgram parses a whole program fragment into statements.
func parseProgram(file, src string) ([]statement, error) {
	p, err := newParser(file, src)
	if err != nil {
		return nil, err
	}
	var stmts []statement
	for p.tok.kind != tokEOF {
		st, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	return stmts, nil
}

func (p *parser) parseStatement() (statement, error) {
	st := statement{loc: p.tok.loc}
	switch {
	case p.tok.kind == tokDirective && p.tok.text == "external":
		st.kind = stmtExternal
		if err := p.bump(); err != nil {
			return st, err
		}
		head, err := p.parseTerm()
		if err != nil {
			return st, err
		}
		st.head = head
	case p.tok.kind == tokDirective && p.tok.text == "show":
		st.kind = stmtShow
		if err := p.bump(); err != nil {
			return st, err
		}
		if p.tok.kind != tokIdent {
			return st, newError(CodeRuntime, "%s: expected name/arity after #show", p.tok.loc)
		}
		st.showName = p.tok.text
		if err := p.bump(); err != nil {
			return st, err
		}
		if err := p.expectPunct("/"); err != nil {
			return st, err
		}
		if p.tok.kind != tokNumber {
			return st, newError(CodeRuntime, "%s: expected arity after #show %s/", p.tok.loc, st.showName)
		}
		st.showArity = p.tok.num
		if err := p.bump(); err != nil {
			return st, err
		}
	case p.tok.kind == tokPunct && p.tok.text == "&":
		st.kind = stmtTheory
		if err := p.bump(); err != nil {
			return st, err
		}
		head, err := p.parseTerm()
		if err != nil {
			return st, err
		}
		st.head = head
	case p.tok.kind == tokImplies:
		st.kind = stmtConstraint
		if err := p.bump(); err != nil {
			return st, err
		}
		body, err := p.parseBody()
		if err != nil {
			return st, err
		}
		st.body = body
	default:
		st.kind = stmtRule
		head, err := p.parseTerm()
		if err != nil {
			return st, err
		}
		st.head = head
		if p.tok.kind == tokImplies {
			if err := p.bump(); err != nil {
				return st, err
			}
			body, err := p.parseBody()
			if err != nil {
				return st, err
			}
			st.body = body
		}
	}
	if err := p.expectPunct("."); err != nil {
		return st, err
	}
	return st, nil
}

func (p *parser) parseBody() ([]bodyLiteral, error) {
	var body []bodyLiteral
	for {
		lit := bodyLiteral{loc: p.tok.loc}
		if p.tok.kind == tokNot {
			lit.neg = true
			if err := p.bump(); err != nil {
				return nil, err
			}
		}
		atom, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		lit.atom = atom
		body = append(body, lit)
		if p.tok.kind == tokPunct && p.tok.text == "," {
			if err := p.bump(); err != nil {
				return nil, err
			}
			continue
		}
		return body, nil
	}
}

// parseTerm parses additive arithmetic expressions.
func (p *parser) parseTerm() (astTerm, error) {
	left, err := p.parseMul()
	if err != nil {
		return left, err
	}
	for p.tok.kind == tokPunct && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		if err := p.bump(); err != nil {
			return left, err
		}
		right, err := p.parseMul()
		if err != nil {
			return left, err
		}
		left = astTerm{loc: left.loc, kind: termBinop, text: op, args: []astTerm{left, right}}
	}
	return left, nil
}

func (p *parser) parseMul() (astTerm, error) {
	left, err := p.parseUnary()
	if err != nil {
		return left, err
	}
	for p.tok.kind == tokPunct && p.tok.text == "*" {
		if err := p.bump(); err != nil {
			return left, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return left, err
		}
		left = astTerm{loc: left.loc, kind: termBinop, text: "*", args: []astTerm{left, right}}
	}
	return left, nil
}

func (p *parser) parseUnary() (astTerm, error) {
	if p.tok.kind == tokPunct && p.tok.text == "-" {
		loc := p.tok.loc
		if err := p.bump(); err != nil {
			return astTerm{}, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return inner, err
		}
		switch inner.kind {
		case termNumber:
			inner.num = -inner.num
			return inner, nil
		case termSymbolic:
			inner.sign = !inner.sign
			return inner, nil
		default:
			// Negation of a computed value resolves at ground time.
			return astTerm{loc: loc, kind: termBinop, text: "-",
				args: []astTerm{{loc: loc, kind: termNumber, num: 0}, inner}}, nil
		}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (astTerm, error) {
	t := astTerm{loc: p.tok.loc}
	switch {
	case p.tok.kind == tokNumber:
		t.kind = termNumber
		t.num = p.tok.num
		return t, p.bump()
	case p.tok.kind == tokString:
		t.kind = termString
		t.text = p.tok.text
		return t, p.bump()
	case p.tok.kind == tokDirective && p.tok.text == "inf":
		t.kind = termInfimum
		return t, p.bump()
	case p.tok.kind == tokDirective && p.tok.text == "sup":
		t.kind = termSupremum
		return t, p.bump()
	case p.tok.kind == tokPunct && p.tok.text == "@":
		if err := p.bump(); err != nil {
			return t, err
		}
		if p.tok.kind != tokIdent {
			return t, newError(CodeRuntime, "%s: expected function name after '@'", p.tok.loc)
		}
		t.kind = termCall
		t.text = p.tok.text
		if err := p.bump(); err != nil {
			return t, err
		}
		args, err := p.parseArgs()
		if err != nil {
			return t, err
		}
		t.args = args
		return t, nil
	case p.tok.kind == tokPunct && p.tok.text == "(":
		if err := p.bump(); err != nil {
			return t, err
		}
		inner, err := p.parseTerm()
		if err != nil {
			return inner, err
		}
		return inner, p.expectPunct(")")
	case p.tok.kind == tokIdent:
		t.kind = termSymbolic
		t.text = p.tok.text
		if err := p.bump(); err != nil {
			return t, err
		}
		if p.tok.kind == tokPunct && p.tok.text == "(" {
			args, err := p.parseArgs()
			if err != nil {
				return t, err
			}
			t.args = args
		}
		return t, nil
	default:
		return t, newError(CodeRuntime, "%s: unexpected token %q", p.tok.loc, p.tok.text)
	}
}

// parseArgs parses a parenthesized, comma-separated term list.
func (p *parser) parseArgs() ([]astTerm, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []astTerm
	if p.tok.kind == tokPunct && p.tok.text == ")" {
		return args, p.bump()
	}
	for {
		a, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.tok.kind == tokPunct && p.tok.text == "," {
			if err := p.bump(); err != nil {
				return nil, err
			}
			continue
		}
		return args, p.expectPunct(")")
	}
}

// AST construction for the parse-only entry point.

func mustID(name string) Symbol {
	s, err := NewID(name, false)
	if err != nil {
		panic(err)
	}
	return s
}

func termAST(t astTerm) AST {
	node := AST{Location: t.loc}
	switch t.kind {
	case termNumber:
		node.Value = NewNumber(t.num)
	case termString:
		node.Value = NewString(t.text)
	case termInfimum:
		node.Value = Infimum()
	case termSupremum:
		node.Value = Supremum()
	case termCall:
		node.Value = mustID("@" + t.text)
		for _, a := range t.args {
			node.Children = append(node.Children, termAST(a))
		}
	case termBinop:
		node.Value = mustID(t.text)
		for _, a := range t.args {
			node.Children = append(node.Children, termAST(a))
		}
	default:
		sym, err := NewID(t.text, t.sign)
		if err == nil {
			node.Value = sym
		}
		for _, a := range t.args {
			node.Children = append(node.Children, termAST(a))
		}
	}
	return node
}

func statementAST(st statement) AST {
	node := AST{Location: st.loc}
	switch st.kind {
	case stmtRule:
		node.Value = mustID("rule")
		node.Children = append(node.Children, termAST(st.head))
	case stmtConstraint:
		node.Value = mustID("constraint")
	case stmtExternal:
		node.Value = mustID("external")
		node.Children = append(node.Children, termAST(st.head))
	case stmtShow:
		node.Value = mustID("show")
		sig := AST{Location: st.loc, Value: mustID(st.showName)}
		sig.Children = append(sig.Children, AST{Location: st.loc, Value: NewNumber(st.showArity)})
		node.Children = append(node.Children, sig)
	case stmtTheory:
		node.Value = mustID("theory")
		node.Children = append(node.Children, termAST(st.head))
	}
	for _, bl := range st.body {
		child := termAST(bl.atom)
		if bl.neg {
			child = AST{Location: bl.loc, Value: mustID("not"), Children: []AST{child}}
		}
		node.Children = append(node.Children, child)
	}
	return node
}
