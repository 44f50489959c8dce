package revset

import (
	"errors"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
)

func TestAllAndHead(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	if got := tr.querySorted(r, "all()"); !equalStrings(got, []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}) {
		t.Errorf("all() = %v", got)
	}
	// head() is every ref tip plus HEAD, deduplicated.
	if got := tr.querySorted(r, "head()"); !equalStrings(got, []string{"B", "C", "D", "E", "I"}) {
		t.Errorf("head() = %v", got)
	}
}

func TestDraftAndPublic(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	if got := tr.querySorted(r, "publichead()"); !equalStrings(got, []string{"B", "C", "D"}) {
		t.Errorf("publichead() = %v", got)
	}
	if got := tr.querySorted(r, "drafthead()"); !equalStrings(got, []string{"E", "I"}) {
		t.Errorf("drafthead() = %v", got)
	}
	if got := tr.querySorted(r, "public()"); !equalStrings(got, []string{"A", "B", "C", "D", "F", "G"}) {
		t.Errorf("public() = %v", got)
	}
	if got := tr.querySorted(r, "draft()"); !equalStrings(got, []string{"E", "H", "I"}) {
		t.Errorf("draft() = %v", got)
	}
	// draft and public partition the repository.
	if got := tr.querySorted(r, "draft() & public()"); len(got) != 0 {
		t.Errorf("draft() & public() = %v", got)
	}
	if got := tr.querySorted(r, "draft() | public()"); len(got) != 9 {
		t.Errorf("draft() | public() = %v", got)
	}
}

func TestCustomPublicGlobs(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	r.publicGlobs = []string{"heads/master"}
	if got := tr.query(r, "publichead()"); !equalStrings(got, []string{"E"}) {
		t.Errorf("publichead() = %v", got)
	}
	if got := tr.querySorted(r, "draft()"); !equalStrings(got, []string{"H", "I"}) {
		t.Errorf("draft() = %v", got)
	}
}

func TestAuthorCommitterDesc(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	if got := tr.query(r, "author(D)"); !equalStrings(got, []string{"D"}) {
		t.Errorf("author(D) = %v", got)
	}
	if got := tr.query(r, "committer(D)"); !equalStrings(got, []string{"D"}) {
		t.Errorf("committer(D) = %v", got)
	}
	if got := tr.query(r, "desc(b)"); !equalStrings(got, []string{"B"}) {
		t.Errorf("desc(b) = %v", got)
	}
	// Glob patterns match the whole field.
	if got := tr.querySorted(r, `desc("[AB]")`); !equalStrings(got, []string{"A", "B"}) {
		t.Errorf(`desc("[AB]") = %v`, got)
	}
	if got := tr.querySorted(r, `author("*")`); len(got) != 9 {
		t.Errorf(`author("*") = %v`, got)
	}
	if got := tr.query(r, "desc(zzz)"); len(got) != 0 {
		t.Errorf("desc(zzz) = %v", got)
	}
	// Filters restrict the universal set and compose with set operators.
	if got := tr.query(r, "::E & author(D)"); !equalStrings(got, []string{"D"}) {
		t.Errorf("::E & author(D) = %v", got)
	}
}

func TestDateFilters(t *testing.T) {
	// Fixture commits are dated one per day from 2020-01-01 in label
	// creation order: A B C F G D E H I.
	tr := buildBranchy(t)
	r := tr.open()
	if got := tr.query(r, `date("2020-01-03")`); !equalStrings(got, []string{"C"}) {
		t.Errorf("date(2020-01-03) = %v", got)
	}
	if got := tr.querySorted(r, `date("since 2020-01-07")`); !equalStrings(got, []string{"E", "H", "I"}) {
		t.Errorf("date(since ...) = %v", got)
	}
	if got := tr.querySorted(r, `committerdate("before 2020-01-03")`); !equalStrings(got, []string{"A", "B"}) {
		t.Errorf("committerdate(before ...) = %v", got)
	}
	if got := tr.querySorted(r, `date("2020-01-02 to 2020-01-04")`); !equalStrings(got, []string{"B", "C", "F"}) {
		t.Errorf("date(to) = %v", got)
	}
	err := tr.queryErr(r, `date("purple elephant")`)
	var de *DateParseError
	if !errors.As(err, &de) {
		t.Errorf("got %v, want *DateParseError", err)
	}
}

func TestRev(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	full := tr.hash("C").String()
	if got := tr.query(r, "rev("+full+")"); !equalStrings(got, []string{"C"}) {
		t.Errorf("rev(full) = %v", got)
	}
	if got := tr.query(r, "rev("+full[:8]+")"); !equalStrings(got, []string{"C"}) {
		t.Errorf("rev(prefix) = %v", got)
	}
	if got := tr.query(r, "rev(.)"); !equalStrings(got, []string{"E"}) {
		t.Errorf("rev(.) = %v", got)
	}
	if got := tr.query(r, "id("+full+")"); !equalStrings(got, []string{"C"}) {
		t.Errorf("id(full) = %v", got)
	}
	// rev never resolves reference names.
	err := tr.queryErr(r, "rev(master)")
	var un *UnresolvedNameError
	if !errors.As(err, &un) {
		t.Errorf("rev(master) error = %v, want *UnresolvedNameError", err)
	}
}

func TestRefAndTag(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	if got := tr.query(r, "ref(origin/master)"); !equalStrings(got, []string{"D"}) {
		t.Errorf("ref(origin/master) = %v", got)
	}
	if got := tr.querySorted(r, `ref("origin/*")`); !equalStrings(got, []string{"B", "D"}) {
		t.Errorf("ref(origin/*) = %v", got)
	}
	if got := tr.querySorted(r, `ref("heads/*")`); !equalStrings(got, []string{"E", "I"}) {
		t.Errorf("ref(heads/*) = %v", got)
	}
	if got := tr.querySorted(r, "ref()"); !equalStrings(got, []string{"B", "C", "D", "E", "I"}) {
		t.Errorf("ref() = %v", got)
	}
	if got := tr.query(r, "tag()"); !equalStrings(got, []string{"C"}) {
		t.Errorf("tag() = %v", got)
	}
	if got := tr.query(r, "tag(v1)"); !equalStrings(got, []string{"C"}) {
		t.Errorf("tag(v1) = %v", got)
	}
	var un *UnresolvedNameError
	if err := tr.queryErr(r, "tag(nope)"); !errors.As(err, &un) {
		t.Errorf("tag(nope) error = %v", err)
	}
	if err := tr.queryErr(r, "ref(nope)"); !errors.As(err, &un) {
		t.Errorf("ref(nope) error = %v", err)
	}
}

func TestNameResolutionInQueries(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	// These go through real name resolution, not the test context.
	s, err := r.Revs("::master - ::origin/master")
	if err != nil {
		t.Fatalf("Revs: %v", err)
	}
	if got := tr.names(s); !equalStrings(got, []string{"E"}) {
		t.Errorf("::master - ::origin/master = %v", got)
	}
	s, err = r.Revs("gca(., topic)")
	if err != nil {
		t.Fatalf("Revs: %v", err)
	}
	if got := tr.names(s); !equalStrings(got, []string{"G"}) {
		t.Errorf("gca(., topic) = %v", got)
	}
	s, err = r.Revs("v1")
	if err != nil {
		t.Fatalf("Revs: %v", err)
	}
	if got := tr.names(s); !equalStrings(got, []string{"C"}) {
		t.Errorf("v1 = %v", got)
	}
}

func TestFirstLastEmptyPresent(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	if got := tr.query(r, "first(B:D)"); !equalStrings(got, []string{"D"}) {
		t.Errorf("first(B:D) = %v", got)
	}
	if got := tr.query(r, "last(B:D)"); !equalStrings(got, []string{"B"}) {
		t.Errorf("last(B:D) = %v", got)
	}
	// first falls through empty arguments.
	if got := tr.query(r, "first(empty(), C)"); !equalStrings(got, []string{"C"}) {
		t.Errorf("first(empty(), C) = %v", got)
	}
	if got := tr.query(r, "first()"); len(got) != 0 {
		t.Errorf("first() = %v", got)
	}
	if got := tr.query(r, "empty()"); len(got) != 0 {
		t.Errorf("empty() = %v", got)
	}
	if got := tr.query(r, "present(zzz)"); len(got) != 0 {
		t.Errorf("present(zzz) = %v", got)
	}
	if got := tr.query(r, "present(master)"); !equalStrings(got, []string{"E"}) {
		t.Errorf("present(master) = %v", got)
	}
}

func TestChildren(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	if got := tr.querySorted(r, "children(G)"); !equalStrings(got, []string{"D", "H"}) {
		t.Errorf("children(G) = %v", got)
	}
	if got := tr.querySorted(r, "children(::B)"); !equalStrings(got, []string{"B", "C", "F"}) {
		t.Errorf("children(::B) = %v", got)
	}
	if got := tr.query(r, "children(I)"); len(got) != 0 {
		t.Errorf("children(I) = %v", got)
	}
}

func TestEvalErrors(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()

	var uf *UnknownFunctionError
	if err := tr.queryErr(r, "nosuchfn(C)"); !errors.As(err, &uf) {
		t.Errorf("got %v, want *UnknownFunctionError", err)
	} else if uf.Name != "nosuchfn" {
		t.Errorf("Name = %q", uf.Name)
	}

	var ar *ArityError
	if err := tr.queryErr(r, "heads()"); !errors.As(err, &ar) {
		t.Errorf("got %v, want *ArityError", err)
	} else if ar.Func != "heads" || ar.Min != 1 || ar.Max != 1 || ar.Got != 0 {
		t.Errorf("ArityError = %+v", ar)
	}
	if err := tr.queryErr(r, "only(C)"); !errors.As(err, &ar) {
		t.Errorf("got %v, want *ArityError", err)
	}
	if err := tr.queryErr(r, "draft(C)"); !errors.As(err, &ar) {
		t.Errorf("got %v, want *ArityError", err)
	}

	var es *ExpectStringError
	if err := tr.queryErr(r, "author(heads(C))"); !errors.As(err, &es) {
		t.Errorf("got %v, want *ExpectStringError", err)
	}

	var un *UnresolvedNameError
	if err := tr.queryErr(r, "zzz"); !errors.As(err, &un) {
		t.Errorf("got %v, want *UnresolvedNameError", err)
	}
}

func TestOptionAliases(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	r.aliases = map[string]string{
		"mine": "draft()",
		"anc":  "ancestors($1)",
		"band": "$1 & $2",
	}
	s, err := r.AnyRevs("anc(master)")
	if err != nil {
		t.Fatalf("AnyRevs: %v", err)
	}
	if got := len(tr.names(s)); got != 7 {
		t.Errorf("anc(master) has %d members, want 7", got)
	}
	// A zero-parameter alias works as a bare name and as a call.
	for _, q := range []string{"mine", "mine()"} {
		s, err = r.AnyRevs(q)
		if err != nil {
			t.Fatalf("AnyRevs(%q): %v", q, err)
		}
		got := tr.names(s)
		if len(got) != 3 {
			t.Errorf("%s = %v", q, got)
		}
	}
	s, err = r.AnyRevs("band(::master, ::topic)")
	if err != nil {
		t.Fatalf("AnyRevs: %v", err)
	}
	if got := tr.names(s); !equalStrings(got, []string{"G", "F", "B", "A"}) {
		t.Errorf("band = %v", got)
	}
	// Revs ignores aliases entirely.
	if _, err := r.Revs("mine"); err == nil {
		t.Error("Revs resolved an alias")
	}
}

func TestGitConfigAliases(t *testing.T) {
	tr := buildBranchy(t)
	cfg, err := tr.gr.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	cfg.Raw.Section("revsetalias").SetOption("both", "master | topic")
	if err := tr.gr.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	r := tr.open()
	s, err := r.AnyRevs("both")
	if err != nil {
		t.Fatalf("AnyRevs: %v", err)
	}
	if got := tr.names(s); !equalStrings(got, []string{"E", "I"}) {
		t.Errorf("both = %v", got)
	}

	// Git-sourced aliases can be disabled.
	r2 := tr.open()
	r2.noGitAlias = true
	if _, err := r2.AnyRevs("both"); err == nil {
		t.Error("disabled git alias still resolved")
	}
}

func TestContextExtensions(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	picked, err := r.newHashSet([]plumbing.Hash{tr.hash("C"), tr.hash("H")})
	if err != nil {
		t.Fatalf("newHashSet: %v", err)
	}
	ctx := &Context{
		Names: map[string]*Set{"picked": picked},
		Funcs: map[string]EvalFunc{
			"tips": func(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
				s, err := eval(r, args[0], ctx)
				if err != nil {
					return nil, err
				}
				return s.Heads()
			},
		},
	}
	e, err := Parse("tips(::picked)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, err := r.Eval(e, ctx)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	got := tr.names(s)
	if !equalStrings(got, []string{"H", "C"}) {
		t.Errorf("tips(::picked) = %v", got)
	}
}

func TestInlineRoundTrip(t *testing.T) {
	tr := buildBranchy(t)
	r := tr.open()
	base := tr.eval(r, "::C")
	e, err := Inline(base)
	if err != nil {
		t.Fatalf("Inline: %v", err)
	}
	s, err := r.RevsExpr(Call("heads", e))
	if err != nil {
		t.Fatalf("RevsExpr: %v", err)
	}
	if got := tr.names(s); !equalStrings(got, []string{"C"}) {
		t.Errorf("heads(<::C>) = %v", got)
	}
}

// The shape from the package documentation: a linear chain with one side
// branch and a release tag.
func TestSmallRepoScenario(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("one")
	tr.commit("two", "one")
	tr.commit("three", "two")
	tr.commit("four", "two")
	tr.branch("main", "three")
	tr.branch("side", "four")
	tr.tag("v1", "three")
	tr.detachHead("three")
	r := tr.open()

	if got := tr.query(r, "::three"); !equalStrings(got, []string{"three", "two", "one"}) {
		t.Errorf("::three = %v", got)
	}
	if got := tr.query(r, "gca(three, four)"); !equalStrings(got, []string{"two"}) {
		t.Errorf("gca(three, four) = %v", got)
	}
	if got := tr.querySorted(r, "heads(two + three + four)"); !equalStrings(got, []string{"four", "three"}) {
		t.Errorf("heads = %v", got)
	}
	if got := tr.query(r, "roots(two + three + four)"); !equalStrings(got, []string{"two"}) {
		t.Errorf("roots = %v", got)
	}
	if got := tr.query(r, "tag()"); !equalStrings(got, []string{"three"}) {
		t.Errorf("tag() = %v", got)
	}
	if got := tr.querySorted(r, "two::"); !equalStrings(got, tr.querySorted(r, "!one")) {
		t.Errorf("two:: = %v", got)
	}
}
