package phaseplane

import (
	"math/big"
	"strings"
	"unicode"
)

// ============================================================
// Lexer
// ============================================================

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokCaret
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && l.input[l.pos] == ' ' {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.input[l.pos]
	switch {
	case c >= '0' && c <= '9' || c == '.':
		seenDot := false
		for l.pos < len(l.input) {
			ch := l.input[l.pos]
			if ch == '.' {
				if seenDot {
					return token{}, &ParseError{Input: l.input, Pos: l.pos, Reason: "second decimal point in number"}
				}
				seenDot = true
			} else if ch < '0' || ch > '9' {
				break
			}
			l.pos++
		}
		text := l.input[start:l.pos]
		if text == "." {
			return token{}, &ParseError{Input: l.input, Pos: start, Reason: "bare decimal point"}
		}
		return token{kind: tokNumber, text: text, pos: start}, nil
	case unicode.IsLetter(rune(c)):
		for l.pos < len(l.input) && unicode.IsLetter(rune(l.input[l.pos])) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.input[start:l.pos], pos: start}, nil
	}
	l.pos++
	switch c {
	case '+':
		return token{kind: tokPlus, text: "+", pos: start}, nil
	case '-':
		return token{kind: tokMinus, text: "-", pos: start}, nil
	case '*':
		return token{kind: tokStar, text: "*", pos: start}, nil
	case '/':
		return token{kind: tokSlash, text: "/", pos: start}, nil
	case '^':
		return token{kind: tokCaret, text: "^", pos: start}, nil
	case '(':
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		return token{kind: tokRParen, text: ")", pos: start}, nil
	}
	return token{}, &ParseError{Input: l.input, Pos: start, Reason: "unexpected character " + string(c)}
}

// ============================================================
// Parser
// ============================================================

type parser struct {
	input string
	toks  []token
	idx   int
}

// Parse converts an expression string to a simplified symbolic tree.
//
// Conventions follow hand-written ODE notation: `^` is exponentiation
// (right associative, binding tighter than unary minus), juxtaposition
// is multiplication, and a multi-letter identifier that is not a known
// function name is read as a product of single-letter symbols, so
// "bcy" means b*c*y. Recognized functions are sin, cos, tan, asin,
// acos, atan, sinh, cosh, tanh, exp, ln, log (alias of ln), sqrt and
// abs.
func Parse(text string) (Expr, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ParseError{Input: text, Pos: 0, Reason: "empty expression"}
	}
	l := &lexer{input: text}
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	p := &parser{input: text, toks: toks}
	e, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, &ParseError{Input: text, Pos: p.peek().pos, Reason: "unexpected token " + p.peek().text}
	}
	return e.Simplify(), nil
}

func (p *parser) peek() token { return p.toks[p.idx] }
func (p *parser) advance() token {
	t := p.toks[p.idx]
	if t.kind != tokEOF {
		p.idx++
	}
	return t
}

func (p *parser) parseSum() (Expr, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for {
		switch p.peek().kind {
		case tokPlus:
			p.advance()
			t, err := p.parseProduct()
			if err != nil {
				return nil, err
			}
			terms = append(terms, t)
		case tokMinus:
			p.advance()
			t, err := p.parseProduct()
			if err != nil {
				return nil, err
			}
			terms = append(terms, MulOf(N(-1), t))
		default:
			if len(terms) == 1 {
				return terms[0], nil
			}
			return AddOf(terms...), nil
		}
	}
}

// startsFactor reports whether tok can begin an implicit-product factor.
func startsFactor(t token) bool {
	return t.kind == tokNumber || t.kind == tokIdent || t.kind == tokLParen
}

func (p *parser) parseProduct() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	factors := []Expr{left}
	for {
		switch {
		case p.peek().kind == tokStar:
			p.advance()
			f, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			factors = append(factors, f)
		case p.peek().kind == tokSlash:
			p.advance()
			f, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			factors = append(factors, PowOf(f, N(-1)))
		case startsFactor(p.peek()):
			// Implicit multiplication: "2x", "x(y+1)", "(a)(b)".
			f, err := p.parsePower()
			if err != nil {
				return nil, err
			}
			factors = append(factors, f)
		default:
			if len(factors) == 1 {
				return factors[0], nil
			}
			return MulOf(factors...), nil
		}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek().kind == tokMinus {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return MulOf(N(-1), inner), nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Expr, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokCaret {
		return base, nil
	}
	p.advance()
	// Right associative; the exponent may carry its own unary minus.
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return PowOf(base, exp), nil
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.advance()
		return parseNumber(t.text)
	case tokLParen:
		p.advance()
		inner, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, &ParseError{Input: p.input, Pos: p.peek().pos, Reason: "missing closing parenthesis"}
		}
		p.advance()
		return inner, nil
	case tokIdent:
		p.advance()
		// A multi-letter name before "(" must be a function; a single
		// letter before "(" is implicit multiplication, as in "x(y+1)".
		if p.peek().kind == tokLParen && len(t.text) > 1 {
			return p.parseCall(t)
		}
		return identToSymbols(t.text), nil
	case tokEOF:
		return nil, &ParseError{Input: p.input, Pos: t.pos, Reason: "unexpected end of expression"}
	}
	return nil, &ParseError{Input: p.input, Pos: t.pos, Reason: "unexpected token " + t.text}
}

func (p *parser) parseCall(name token) (Expr, error) {
	fname := strings.ToLower(name.text)
	if !knownFunction(fname) {
		return nil, &UnknownFunctionError{Name: name.text}
	}
	p.advance() // consume '('
	arg, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokRParen {
		return nil, &ParseError{Input: p.input, Pos: p.peek().pos, Reason: "missing closing parenthesis in call to " + fname}
	}
	p.advance()
	switch fname {
	case "sqrt":
		return PowOf(arg, F(1, 2)), nil
	case "log":
		return Call1("ln", arg), nil
	}
	return Call1(fname, arg), nil
}

func knownFunction(name string) bool {
	if name == "sqrt" || name == "log" {
		return true
	}
	_, ok := unaryFuncs[name]
	return ok
}

// identToSymbols reads a letter run as a product of one-letter symbols.
// "bcy" is b*c*y. This is why parameters must be single letters.
func identToSymbols(text string) Expr {
	if len(text) == 1 {
		return S(text)
	}
	factors := make([]Expr, 0, len(text))
	for _, r := range text {
		factors = append(factors, S(string(r)))
	}
	return MulOf(factors...)
}

func parseNumber(text string) (Expr, error) {
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, &ParseError{Input: text, Pos: 0, Reason: "malformed number"}
	}
	return &Num{val: r}, nil
}
