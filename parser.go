package revset

import "strings"

// Parse parses a revset expression into an expression tree.
//
// Operator precedence, low to high:
//
//	x | y, x + y, x or y      union
//	x & y, x and y            intersection
//	x - y                     difference
//	x % y                     only
//	x : y, x .. y             range
//	!x, not x, ::x, x::, x^   prefix and postfix
//	name, "literal", f(...)   atoms
//
// Binary operators at the same level are left-associative. Prefixes stack
// innermost-first; postfixes chain left-to-right.
func Parse(text string) (Expr, error) {
	toks, err := lex(text)
	if err != nil {
		return Expr{}, err
	}
	p := &parser{toks: toks, input: text}
	e, err := p.parseUnion()
	if err != nil {
		return Expr{}, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return Expr{}, &ParseError{Pos: tok.pos, Expected: "end of expression"}
	}
	return e, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokString
	tokPipe     // |
	tokPlus     // +
	tokAmp      // &
	tokMinus    // -
	tokPercent  // %
	tokColon    // :
	tokDotDot   // ..
	tokBang     // !
	tokColons   // ::
	tokCaret    // ^
	tokLParen   // (
	tokRParen   // )
	tokComma    // ,
)

type token struct {
	kind tokKind
	text string
	pos  int
	end  int
}

func isIdentByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '/' || b == '_' || b == '$' || b == '@' || b == '.':
		return true
	}
	return false
}

func lex(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		b := s[i]
		switch {
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			i++
		case b == '.' && i+1 < len(s) && s[i+1] == '.':
			toks = append(toks, token{tokDotDot, "..", i, i + 2})
			i += 2
		case isIdentByte(b):
			start := i
			for i < len(s) && isIdentByte(s[i]) {
				// A ".." sequence is always the range operator, never part
				// of an identifier.
				if s[i] == '.' && i+1 < len(s) && s[i+1] == '.' {
					break
				}
				i++
			}
			toks = append(toks, token{tokIdent, s[start:i], start, i})
		case b == '"':
			text, end, err := lexString(s, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, text, i, end})
			i = end
		case b == ':':
			if i+1 < len(s) && s[i+1] == ':' {
				toks = append(toks, token{tokColons, "::", i, i + 2})
				i += 2
			} else {
				toks = append(toks, token{tokColon, ":", i, i + 1})
				i++
			}
		default:
			kind := tokEOF
			switch b {
			case '|':
				kind = tokPipe
			case '+':
				kind = tokPlus
			case '&':
				kind = tokAmp
			case '-':
				kind = tokMinus
			case '%':
				kind = tokPercent
			case '!':
				kind = tokBang
			case '^':
				kind = tokCaret
			case '(':
				kind = tokLParen
			case ')':
				kind = tokRParen
			case ',':
				kind = tokComma
			default:
				return nil, &ParseError{Pos: i, Expected: "a valid token"}
			}
			toks = append(toks, token{kind, s[i : i+1], i, i + 1})
			i++
		}
	}
	toks = append(toks, token{tokEOF, "", len(s), len(s)})
	return toks, nil
}

// lexString scans a double-quoted literal starting at s[start]. A backslash
// escapes the next character: `\"` is a quote, `\n` is a newline, and any
// other escaped character stands for itself with the backslash dropped. A
// backslash at end of input is dropped.
func lexString(s string, start int) (text string, end int, err error) {
	var b strings.Builder
	i := start + 1
	for i < len(s) {
		switch s[i] {
		case '"':
			return b.String(), i + 1, nil
		case '\\':
			if i+1 >= len(s) {
				i++
				continue
			}
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
			default:
				b.WriteByte(s[i+1])
			}
			i += 2
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return "", 0, &ParseError{Pos: start, Expected: "closing '\"'"}
}

type parser struct {
	toks  []token
	input string
	i     int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) parseUnion() (Expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return Expr{}, err
	}
	for {
		t := p.peek()
		if t.kind == tokPipe || t.kind == tokPlus || (t.kind == tokIdent && t.text == "or") {
			p.next()
			rhs, err := p.parseAnd()
			if err != nil {
				return Expr{}, err
			}
			lhs = Call("union", lhs, rhs)
			continue
		}
		return lhs, nil
	}
}

func (p *parser) parseAnd() (Expr, error) {
	lhs, err := p.parseRange()
	if err != nil {
		return Expr{}, err
	}
	for {
		var fn string
		t := p.peek()
		switch {
		case t.kind == tokAmp, t.kind == tokIdent && t.text == "and":
			fn = "intersection"
		case t.kind == tokMinus:
			fn = "difference"
		case t.kind == tokPercent:
			fn = "only"
		default:
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseRange()
		if err != nil {
			return Expr{}, err
		}
		lhs = Call(fn, lhs, rhs)
	}
}

func (p *parser) parseRange() (Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return Expr{}, err
	}
	for {
		t := p.peek()
		if t.kind != tokColon && t.kind != tokDotDot {
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		lhs = Call("range", lhs, rhs)
	}
}

func (p *parser) parseUnary() (Expr, error) {
	t := p.peek()
	var fn string
	switch {
	case t.kind == tokBang, t.kind == tokIdent && t.text == "not":
		fn = "negate"
	case t.kind == tokColons:
		fn = "ancestors"
	}
	if fn != "" {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		return Call(fn, inner), nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	e, err := p.parseAtom()
	if err != nil {
		return Expr{}, err
	}
	for {
		switch p.peek().kind {
		case tokColons:
			p.next()
			e = Call("descendants", e)
		case tokCaret:
			p.next()
			e = Call("parents", e)
		default:
			return e, nil
		}
	}
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		e, err := p.parseUnion()
		if err != nil {
			return Expr{}, err
		}
		if close := p.next(); close.kind != tokRParen {
			return Expr{}, &ParseError{Pos: close.pos, Expected: "')'"}
		}
		return e, nil
	case tokString:
		p.next()
		return Name(t.text), nil
	case tokIdent:
		p.next()
		// A call requires the '(' to immediately follow the identifier.
		if nt := p.peek(); nt.kind == tokLParen && nt.pos == t.end {
			p.next()
			args, err := p.parseArgs()
			if err != nil {
				return Expr{}, err
			}
			return Call(t.text, args...), nil
		}
		return Name(t.text), nil
	default:
		return Expr{}, &ParseError{Pos: t.pos, Expected: "an expression"}
	}
}

// parseArgs parses a comma-separated argument list after the opening
// parenthesis has been consumed. A trailing comma before ')' is allowed.
func (p *parser) parseArgs() ([]Expr, error) {
	var args []Expr
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		a, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		switch t := p.next(); t.kind {
		case tokComma:
			if p.peek().kind == tokRParen {
				p.next()
				return args, nil
			}
		case tokRParen:
			return args, nil
		default:
			return nil, &ParseError{Pos: t.pos, Expected: "',' or ')'"}
		}
	}
}
