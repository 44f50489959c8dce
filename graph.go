package revset

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// RefKind selects which references Refs enumerates.
type RefKind int

const (
	RefAll RefKind = iota
	RefLocalBranch
	RefRemoteBranch
	RefTag
)

// Ref is a named pointer to a commit.
type Ref struct {
	Name string // full name, e.g. "refs/heads/master"
	Hash plumbing.Hash
}

// Short returns the ref name without the "refs/" prefix.
func (r Ref) Short() string {
	return strings.TrimPrefix(r.Name, "refs/")
}

// Metadata is the commit metadata used by filter functions.
type Metadata struct {
	Author        string // "Name <email>"
	Committer     string
	Message       string
	When          time.Time // author date
	CommitterWhen time.Time
}

// Repo is an opened repository handle with the caches revset evaluation
// needs: resolved names, generation numbers, commit metadata, and a few
// whole-repo sets (all, public, draft). The underlying graph is assumed
// immutable for the handle's lifetime; the handle performs no locking and
// concurrent use must be read-only.
type Repo struct {
	gr *git.Repository

	publicGlobs []string
	aliases     map[string]string
	noGitAlias  bool

	commits    map[plumbing.Hash]*object.Commit
	gens       map[plumbing.Hash]int
	refsCache  map[RefKind][]Ref
	cachedSets map[string]*Set
	aliasFns   map[string]Expr
	aliasInit  bool
}

// Options configures Open.
type Options struct {
	// Path locates the repository; "." when empty. The .git directory is
	// detected upward from the path.
	Path string

	// PublicRefGlobs are doublestar patterns (matched against ref names
	// without the "refs/" prefix) whose ancestors count as public for
	// draft()/public(). Defaults to remotes/** and tags/**.
	PublicRefGlobs []string

	// Aliases maps alias names to revset source text; $1, $2… stand for
	// call arguments. Merged with the repository's revsetalias git-config
	// section unless DisableGitAliases is set.
	Aliases map[string]string

	DisableGitAliases bool
}

func defaultPublicGlobs() []string {
	return []string{"remotes/**", "tags/**"}
}

// Open opens the repository described by opts.
func Open(opts Options) (*Repo, error) {
	path := opts.Path
	if path == "" {
		path = "."
	}
	gr, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	r, err := OpenFromRepo(gr)
	if err != nil {
		return nil, err
	}
	if len(opts.PublicRefGlobs) > 0 {
		r.publicGlobs = opts.PublicRefGlobs
	}
	r.aliases = opts.Aliases
	r.noGitAlias = opts.DisableGitAliases
	return r, nil
}

// OpenPath opens the repository at path with default options.
func OpenPath(path string) (*Repo, error) {
	return Open(Options{Path: path})
}

// OpenFromRepo wraps an already opened go-git repository.
func OpenFromRepo(gr *git.Repository) (*Repo, error) {
	return &Repo{
		gr:          gr,
		publicGlobs: defaultPublicGlobs(),
		commits:     make(map[plumbing.Hash]*object.Commit),
		gens:        make(map[plumbing.Hash]int),
		refsCache:   make(map[RefKind][]Ref),
		cachedSets:  make(map[string]*Set),
	}, nil
}

// Underlying returns the wrapped go-git repository.
func (r *Repo) Underlying() *git.Repository { return r.gr }

func (r *Repo) commit(h plumbing.Hash) (*object.Commit, error) {
	if c, ok := r.commits[h]; ok {
		return c, nil
	}
	c, err := object.GetCommit(r.gr.Storer, h)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", h, err)
	}
	r.commits[h] = c
	return c, nil
}

// Parents returns the immediate parent ids of h, first parent first. Empty
// for root commits.
func (r *Repo) Parents(h plumbing.Hash) ([]plumbing.Hash, error) {
	c, err := r.commit(h)
	if err != nil {
		return nil, err
	}
	return c.ParentHashes, nil
}

// Generation returns the generation number of h: 0 for a root commit,
// otherwise 1 plus the maximum generation among its parents. Results are
// memoized on the handle.
func (r *Repo) Generation(h plumbing.Hash) (int, error) {
	if g, ok := r.gens[h]; ok {
		return g, nil
	}
	// Iterative post-order so deep histories do not blow the stack.
	stack := []plumbing.Hash{h}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if _, ok := r.gens[top]; ok {
			stack = stack[:len(stack)-1]
			continue
		}
		parents, err := r.Parents(top)
		if err != nil {
			return 0, err
		}
		ready := true
		max := -1
		for _, p := range parents {
			g, ok := r.gens[p]
			if !ok {
				stack = append(stack, p)
				ready = false
				continue
			}
			if g > max {
				max = g
			}
		}
		if ready {
			stack = stack[:len(stack)-1]
			r.gens[top] = max + 1
		}
	}
	return r.gens[h], nil
}

// Metadata returns the commit metadata for h, reading and caching the
// commit object lazily.
func (r *Repo) Metadata(h plumbing.Hash) (*Metadata, error) {
	c, err := r.commit(h)
	if err != nil {
		return nil, err
	}
	return &Metadata{
		Author:        fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email),
		Committer:     fmt.Sprintf("%s <%s>", c.Committer.Name, c.Committer.Email),
		Message:       c.Message,
		When:          c.Author.When,
		CommitterWhen: c.Committer.When,
	}, nil
}

// Refs enumerates references of the given kind as (name, id) pairs, sorted
// by name. Annotated tags are peeled to their commit.
func (r *Repo) Refs(kind RefKind) ([]Ref, error) {
	if cached, ok := r.refsCache[kind]; ok {
		return cached, nil
	}
	iter, err := r.gr.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	var out []Ref
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		switch kind {
		case RefLocalBranch:
			if !name.IsBranch() {
				return nil
			}
		case RefRemoteBranch:
			if !name.IsRemote() {
				return nil
			}
		case RefTag:
			if !name.IsTag() {
				return nil
			}
		case RefAll:
			if !strings.HasPrefix(name.String(), "refs/") {
				return nil
			}
		}
		h, err := r.peel(ref.Hash())
		if err != nil {
			return nil
		}
		out = append(out, Ref{Name: name.String(), Hash: h})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	r.refsCache[kind] = out
	return out, nil
}

// peel resolves annotated tag objects down to the commit they point at.
func (r *Repo) peel(h plumbing.Hash) (plumbing.Hash, error) {
	for {
		obj, err := r.gr.Object(plumbing.AnyObject, h)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		tag, ok := obj.(*object.Tag)
		if !ok {
			return h, nil
		}
		h = tag.Target
	}
}

// Head returns the id of the current commit.
func (r *Repo) Head() (plumbing.Hash, error) {
	ref, err := r.gr.Head()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash(), nil
}

// Resolve maps a symbolic name to a commit id. It understands the
// current-commit markers "." / "@" / "HEAD", branch, tag, and
// remote-tracking names, and full or abbreviated hex hashes. Failure is an
// UnresolvedNameError, or AmbiguousPrefixError for a short hash with
// several matches.
func (r *Repo) Resolve(name string) (plumbing.Hash, error) {
	switch name {
	case ".", "@", "HEAD":
		return r.Head()
	}
	if h, ok := r.resolveRef(name); ok {
		return h, nil
	}
	return r.resolveHex(name)
}

func (r *Repo) resolveRef(name string) (plumbing.Hash, bool) {
	candidates := []string{
		"refs/" + name,
		"refs/heads/" + name,
		"refs/tags/" + name,
		"refs/remotes/" + name,
	}
	for _, full := range candidates {
		ref, err := r.gr.Reference(plumbing.ReferenceName(full), true)
		if err != nil {
			continue
		}
		h, err := r.peel(ref.Hash())
		if err != nil {
			continue
		}
		return h, true
	}
	return plumbing.ZeroHash, false
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func (r *Repo) resolveHex(name string) (plumbing.Hash, error) {
	if !isHex(name) {
		return plumbing.ZeroHash, &UnresolvedNameError{Name: name}
	}
	lower := strings.ToLower(name)
	if len(lower) == 40 {
		h := plumbing.NewHash(lower)
		if _, err := r.commit(h); err != nil {
			return plumbing.ZeroHash, &UnresolvedNameError{Name: name}
		}
		return h, nil
	}
	// Abbreviated hash: scan commit objects for prefix matches.
	iter, err := r.gr.CommitObjects()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("scan commits: %w", err)
	}
	var matches []plumbing.Hash
	for {
		c, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if strings.HasPrefix(c.Hash.String(), lower) {
			matches = append(matches, c.Hash)
		}
	}
	switch len(matches) {
	case 0:
		return plumbing.ZeroHash, &UnresolvedNameError{Name: name}
	case 1:
		return matches[0], nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i].String() < matches[j].String() })
		return plumbing.ZeroHash, &AmbiguousPrefixError{Prefix: name, Candidates: matches}
	}
}

// allHeads returns the distinct commits pointed at by every ref plus HEAD.
// This seeds the universal set.
func (r *Repo) allHeads() ([]plumbing.Hash, error) {
	refs, err := r.Refs(RefAll)
	if err != nil {
		return nil, err
	}
	seen := make(map[plumbing.Hash]struct{}, len(refs)+1)
	var out []plumbing.Hash
	add := func(h plumbing.Hash) {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	for _, ref := range refs {
		add(ref.Hash)
	}
	if h, err := r.Head(); err == nil {
		add(h)
	}
	return out, nil
}

// cachedSet memoizes whole-repo sets such as all, public, and draft on the
// handle.
func (r *Repo) cachedSet(name string, build func() (*Set, error)) (*Set, error) {
	if s, ok := r.cachedSets[name]; ok {
		return s, nil
	}
	s, err := build()
	if err != nil {
		return nil, err
	}
	r.cachedSets[name] = s
	return s, nil
}

// allSet is the universal set: ancestors of every ref and of HEAD.
func (r *Repo) allSet() (*Set, error) {
	return r.cachedSet("all", func() (*Set, error) {
		heads, err := r.allHeads()
		if err != nil {
			return nil, err
		}
		return r.ancestorsOf(heads), nil
	})
}
