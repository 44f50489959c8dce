package revset

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
)

func TestExprString(t *testing.T) {
	e := Call("union", Call("draft"), Call("desc", Name("foo")))
	if got := e.String(); got != "union(draft(), desc(foo))" {
		t.Errorf("String() = %q", got)
	}
}

func TestInlineHashesString(t *testing.T) {
	h1 := plumbing.NewHash("0123456789abcdef0123456789abcdef01234567")
	h2 := plumbing.NewHash("fedcba9876543210fedcba9876543210fedcba98")
	e := Call("heads", InlineHashes(h1, h2))
	want := "heads(<0123456789ab, fedcba987654>)"
	if got := e.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestInlineHashesCopies(t *testing.T) {
	ids := []plumbing.Hash{plumbing.NewHash("0123456789abcdef0123456789abcdef01234567")}
	e := InlineHashes(ids...)
	ids[0] = plumbing.ZeroHash
	if e.inlined[0] == plumbing.ZeroHash {
		t.Error("InlineHashes aliases the caller's slice")
	}
}

func TestExprReplace(t *testing.T) {
	body, err := Parse("parents($1) + $1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := body.Replace("$1", Name("master"))
	want, err := Parse("parents(master) + master")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Replace = %s, want %s", got, want)
	}

	// The original tree is unchanged.
	orig, _ := Parse("parents($1) + $1")
	if !body.Equal(orig) {
		t.Errorf("Replace mutated the receiver: %s", body)
	}
}

func TestExprReplaceSubtree(t *testing.T) {
	body, _ := Parse("$1 - ::$2")
	got := body.Replace("$1", Call("draft")).Replace("$2", Name("v1.0"))
	want, _ := Parse("draft() - ::v1.0")
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestExprEqual(t *testing.T) {
	a, _ := Parse("heads(x + y)")
	b, _ := Parse("heads(x | y)")
	if !a.Equal(b) {
		t.Error("equivalent spellings produced different trees")
	}
	tests := []struct{ x, y string }{
		{"a", "b"},
		{"a", "a()"},
		{"f(a)", "f(a, a)"},
		{"f(a)", "g(a)"},
		{"::a", "a::"},
	}
	for _, tt := range tests {
		x, _ := Parse(tt.x)
		y, _ := Parse(tt.y)
		if x.Equal(y) {
			t.Errorf("Parse(%q).Equal(Parse(%q)) = true", tt.x, tt.y)
		}
	}
}

func TestIsName(t *testing.T) {
	if name, ok := Name("master").IsName(); !ok || name != "master" {
		t.Errorf("IsName = %q, %v", name, ok)
	}
	if _, ok := Call("draft").IsName(); ok {
		t.Error("IsName on a call = true")
	}
	if _, ok := InlineHashes().IsName(); ok {
		t.Error("IsName on an inlined leaf = true")
	}
}
