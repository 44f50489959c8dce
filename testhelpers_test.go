package revset

import (
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

// testRepo builds commit graphs with explicit parent edges in an in-memory
// repository. Every commit's message and author name is its label, and
// commit dates advance one day per commit starting 2020-01-01, so tests
// can exercise author(), desc(), and date() filters.
type testRepo struct {
	t        *testing.T
	gr       *git.Repository
	treeHash plumbing.Hash
	hashes   map[string]plumbing.Hash
	labels   map[plumbing.Hash]string
	n        int
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	gr, err := git.Init(memory.NewStorage(), nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	tr := &testRepo{
		t:      t,
		gr:     gr,
		hashes: make(map[string]plumbing.Hash),
		labels: make(map[plumbing.Hash]string),
	}
	// All test commits share the empty tree; only graph shape and
	// metadata matter here.
	tree := &object.Tree{}
	obj := gr.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		t.Fatalf("encode tree: %v", err)
	}
	th, err := gr.Storer.SetEncodedObject(obj)
	if err != nil {
		t.Fatalf("store tree: %v", err)
	}
	tr.treeHash = th
	return tr
}

func (tr *testRepo) hash(label string) plumbing.Hash {
	tr.t.Helper()
	h, ok := tr.hashes[label]
	if !ok {
		tr.t.Fatalf("unknown commit label %q", label)
	}
	return h
}

// commit creates a commit labeled label with the given parent labels.
func (tr *testRepo) commit(label string, parents ...string) plumbing.Hash {
	tr.t.Helper()
	var parentHashes []plumbing.Hash
	for _, p := range parents {
		parentHashes = append(parentHashes, tr.hash(p))
	}
	when := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, tr.n)
	tr.n++
	sig := object.Signature{Name: label, Email: "test@example.com", When: when}
	c := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      label,
		TreeHash:     tr.treeHash,
		ParentHashes: parentHashes,
	}
	obj := tr.gr.Storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		tr.t.Fatalf("encode commit %s: %v", label, err)
	}
	h, err := tr.gr.Storer.SetEncodedObject(obj)
	if err != nil {
		tr.t.Fatalf("store commit %s: %v", label, err)
	}
	tr.hashes[label] = h
	tr.labels[h] = label
	return h
}

func (tr *testRepo) setRef(name, label string) {
	tr.t.Helper()
	ref := plumbing.NewHashReference(plumbing.ReferenceName(name), tr.hash(label))
	if err := tr.gr.Storer.SetReference(ref); err != nil {
		tr.t.Fatalf("set ref %s: %v", name, err)
	}
}

func (tr *testRepo) branch(name, label string) { tr.setRef("refs/heads/"+name, label) }
func (tr *testRepo) remote(name, label string) { tr.setRef("refs/remotes/"+name, label) }
func (tr *testRepo) tag(name, label string)    { tr.setRef("refs/tags/"+name, label) }

// annotatedTag creates a tag object pointing at label and a ref for it.
func (tr *testRepo) annotatedTag(name, label string) {
	tr.t.Helper()
	tag := &object.Tag{
		Name:       name,
		Message:    name,
		Tagger:     object.Signature{Name: "tagger", Email: "test@example.com", When: time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)},
		Target:     tr.hash(label),
		TargetType: plumbing.CommitObject,
	}
	obj := tr.gr.Storer.NewEncodedObject()
	if err := tag.Encode(obj); err != nil {
		tr.t.Fatalf("encode tag %s: %v", name, err)
	}
	h, err := tr.gr.Storer.SetEncodedObject(obj)
	if err != nil {
		tr.t.Fatalf("store tag %s: %v", name, err)
	}
	ref := plumbing.NewHashReference(plumbing.ReferenceName("refs/tags/"+name), h)
	if err := tr.gr.Storer.SetReference(ref); err != nil {
		tr.t.Fatalf("set tag ref %s: %v", name, err)
	}
}

// detachHead points HEAD directly at label.
func (tr *testRepo) detachHead(label string) {
	tr.t.Helper()
	ref := plumbing.NewHashReference(plumbing.HEAD, tr.hash(label))
	if err := tr.gr.Storer.SetReference(ref); err != nil {
		tr.t.Fatalf("detach HEAD: %v", err)
	}
}

// open returns a fresh handle; caches never survive fixture mutation.
func (tr *testRepo) open() *Repo {
	tr.t.Helper()
	r, err := OpenFromRepo(tr.gr)
	if err != nil {
		tr.t.Fatalf("OpenFromRepo: %v", err)
	}
	return r
}

// names maps a set to commit labels in iteration order.
func (tr *testRepo) names(s *Set) []string {
	tr.t.Helper()
	ids, err := s.Hashes()
	if err != nil {
		tr.t.Fatalf("Hashes: %v", err)
	}
	out := make([]string, 0, len(ids))
	for _, h := range ids {
		label, ok := tr.labels[h]
		if !ok {
			label = h.String()[:8]
		}
		out = append(out, label)
	}
	return out
}

// ctx binds every commit label as a pre-computed name, so expressions can
// mention fixture commits directly. Bare single-letter labels would
// otherwise be taken for abbreviated hashes.
func (tr *testRepo) ctx(r *Repo) *Context {
	tr.t.Helper()
	names := make(map[string]*Set, len(tr.hashes))
	for label, h := range tr.hashes {
		s, err := r.newHashSet([]plumbing.Hash{h})
		if err != nil {
			tr.t.Fatalf("newHashSet(%s): %v", label, err)
		}
		names[label] = s
	}
	return &Context{Names: names}
}

// query evaluates expr and returns labels in iteration order.
func (tr *testRepo) query(r *Repo, expr string) []string {
	tr.t.Helper()
	s := tr.eval(r, expr)
	return tr.names(s)
}

func (tr *testRepo) eval(r *Repo, expr string) *Set {
	tr.t.Helper()
	e, err := Parse(expr)
	if err != nil {
		tr.t.Fatalf("Parse(%q): %v", expr, err)
	}
	s, err := r.Eval(e, tr.ctx(r))
	if err != nil {
		tr.t.Fatalf("Eval(%q): %v", expr, err)
	}
	return s
}

// queryErr evaluates expr, forcing iteration, and returns the error.
func (tr *testRepo) queryErr(r *Repo, expr string) error {
	tr.t.Helper()
	e, err := Parse(expr)
	if err != nil {
		return err
	}
	s, err := r.Eval(e, tr.ctx(r))
	if err != nil {
		return err
	}
	_, err = s.Hashes()
	return err
}

// querySorted evaluates expr and returns labels sorted alphabetically, for
// assertions where iteration ties make the order fixture-dependent.
func (tr *testRepo) querySorted(r *Repo, expr string) []string {
	tr.t.Helper()
	out := tr.query(r, expr)
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// buildBranchy builds the shared branchy fixture:
//
//	A---B---C---D---E
//	     \     /
//	      F---G---H---I
//
// with branches master at E and topic at I, remotes origin/master at D and
// origin/stable at B, a tag v1 at C, and HEAD detached at E.
func buildBranchy(t *testing.T) *testRepo {
	tr := newTestRepo(t)
	tr.commit("A")
	tr.commit("B", "A")
	tr.commit("C", "B")
	tr.commit("F", "B")
	tr.commit("G", "F")
	tr.commit("D", "C", "G")
	tr.commit("E", "D")
	tr.commit("H", "G")
	tr.commit("I", "H")
	tr.branch("master", "E")
	tr.branch("topic", "I")
	tr.remote("origin/master", "D")
	tr.remote("origin/stable", "B")
	tr.tag("v1", "C")
	tr.detachHead("E")
	return tr
}
