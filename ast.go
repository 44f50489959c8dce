package revset

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// Expr is a node in a parsed or programmatically built revset expression
// tree. A tree is built once and never mutated afterwards; it may be shared
// and re-evaluated against different repository states.
//
// There are three kinds of nodes:
//   - Name: a literal token (ref name, "." / "@" / "HEAD", or a hash),
//     resolved at evaluation time.
//   - Call: a function or operator applied to zero or more sub-expressions.
//   - Inlined: an already-evaluated list of commit ids, inserted by the
//     programmatic builder. It evaluates to exactly its recorded ids and
//     bypasses name resolution.
type Expr struct {
	kind    exprKind
	text    string // Name: the token; Call: the function name
	args    []Expr
	inlined []plumbing.Hash
}

type exprKind int

const (
	exprName exprKind = iota
	exprCall
	exprInlined
)

// Name returns a leaf that resolves text as a revision at evaluation time.
func Name(text string) Expr {
	return Expr{kind: exprName, text: text}
}

// Call returns a function application node.
func Call(name string, args ...Expr) Expr {
	return Expr{kind: exprCall, text: name, args: args}
}

// Inline returns a leaf that evaluates to exactly the ids recorded in s at
// the time of the call. Useful to embed a previously computed set into a
// larger expression without string escaping.
func Inline(s *Set) (Expr, error) {
	ids, err := s.Hashes()
	if err != nil {
		return Expr{}, err
	}
	return Expr{kind: exprInlined, inlined: ids}, nil
}

// InlineHashes returns a leaf that evaluates to exactly the given ids.
func InlineHashes(ids ...plumbing.Hash) Expr {
	cp := make([]plumbing.Hash, len(ids))
	copy(cp, ids)
	return Expr{kind: exprInlined, inlined: cp}
}

// IsName reports whether e is a Name leaf and returns its text.
func (e Expr) IsName() (string, bool) {
	if e.kind == exprName {
		return e.text, true
	}
	return "", false
}

// String renders the tree in function-call form, e.g.
// "union(draft(), desc(foo))".
func (e Expr) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e Expr) write(b *strings.Builder) {
	switch e.kind {
	case exprName:
		b.WriteString(e.text)
	case exprCall:
		b.WriteString(e.text)
		b.WriteByte('(')
		for i, a := range e.args {
			if i > 0 {
				b.WriteString(", ")
			}
			a.write(b)
		}
		b.WriteByte(')')
	case exprInlined:
		b.WriteByte('<')
		for i, h := range e.inlined {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(h.String()[:12])
		}
		b.WriteByte('>')
	}
}

// Replace returns a copy of the tree with every Name leaf equal to from
// substituted by to. It is used to expand alias parameters such as "$1".
func (e Expr) Replace(from string, to Expr) Expr {
	switch e.kind {
	case exprName:
		if e.text == from {
			return to
		}
		return e
	case exprCall:
		args := make([]Expr, len(e.args))
		for i, a := range e.args {
			args[i] = a.Replace(from, to)
		}
		return Expr{kind: exprCall, text: e.text, args: args}
	default:
		return e
	}
}

// Equal reports structural equality of two trees.
func (e Expr) Equal(o Expr) bool {
	if e.kind != o.kind || e.text != o.text || len(e.args) != len(o.args) || len(e.inlined) != len(o.inlined) {
		return false
	}
	for i := range e.args {
		if !e.args[i].Equal(o.args[i]) {
			return false
		}
	}
	for i := range e.inlined {
		if e.inlined[i] != o.inlined[i] {
			return false
		}
	}
	return true
}
