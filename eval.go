package revset

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/revsets/revset-go/internal/dates"
)

// EvalFunc implements a revset function. name is the name the function was
// invoked under (aliases share implementations).
type EvalFunc func(r *Repo, name string, args []Expr, ctx *Context) (*Set, error)

// Context supplies caller-defined extensions to evaluation.
type Context struct {
	// Names are pre-computed sets; a bare name is looked up here before
	// reference resolution.
	Names map[string]*Set

	// Funcs are extra functions, consulted before the built-in registry.
	Funcs map[string]EvalFunc

	// aliases are parsed alias bodies with $1, $2… placeholders.
	aliases map[string]Expr
}

type registryEntry struct {
	min int
	max int // -1 means unbounded
	fn  EvalFunc
}

// registry is the closed function table. It is constructed once; a name
// missing here (and from the evaluation context) is an UnknownFunctionError.
var registry map[string]registryEntry

func init() {
	registry = map[string]registryEntry{
		"union":         {2, 2, evalUnion},
		"intersection":  {2, 2, evalIntersection},
		"difference":    {2, 2, evalDifference},
		"only":          {2, 2, evalOnly},
		"range":         {2, 2, evalRange},
		"negate":        {1, 1, evalNegate},
		"ancestors":     {1, 1, evalAncestors},
		"descendants":   {1, 1, evalDescendants},
		"parents":       {1, 1, evalParents},
		"children":      {1, 1, evalChildren},
		"heads":         {1, 1, evalHeads},
		"roots":         {1, 1, evalRoots},
		"gca":           {0, -1, evalGCA},
		"ancestor":      {0, -1, evalGCA},
		"first":         {0, -1, evalFirst},
		"last":          {1, 1, evalLast},
		"head":          {0, 0, evalHead},
		"all":           {0, 0, evalAll},
		"publichead":    {0, 0, evalPublicHead},
		"drafthead":     {0, 0, evalDraftHead},
		"public":        {0, 0, evalPublic},
		"draft":         {0, 0, evalDraft},
		"author":        {1, 1, evalAuthor},
		"committer":     {1, 1, evalCommitter},
		"desc":          {1, 1, evalDesc},
		"date":          {1, 1, evalDate},
		"committerdate": {1, 1, evalCommitterDate},
		"rev":           {1, 1, evalRev},
		"commit":        {1, 1, evalRev},
		"id":            {1, 1, evalRev},
		"ref":           {0, 1, evalRef},
		"tag":           {0, 1, evalTag},
		"empty":         {0, 0, evalEmpty},
		"present":       {1, 1, evalPresent},
	}
}

// eval evaluates an expression tree against r.
func eval(r *Repo, e Expr, ctx *Context) (*Set, error) {
	switch e.kind {
	case exprName:
		return lookup(r, e.text, ctx)
	case exprInlined:
		return r.newHashSet(e.inlined)
	default:
		if ctx != nil {
			if fn, ok := ctx.Funcs[e.text]; ok {
				return fn(r, e.text, e.args, ctx)
			}
			if body, ok := ctx.aliases[e.text]; ok {
				return evalAlias(r, body, e.args, ctx)
			}
		}
		ent, ok := registry[e.text]
		if !ok {
			return nil, &UnknownFunctionError{Name: e.text}
		}
		n := len(e.args)
		if n < ent.min || (ent.max >= 0 && n > ent.max) {
			return nil, &ArityError{Func: e.text, Min: ent.min, Max: ent.max, Got: n}
		}
		return ent.fn(r, e.text, e.args, ctx)
	}
}

// lookup resolves a bare name: context names first, then zero-parameter
// aliases, then reference and hash resolution.
func lookup(r *Repo, name string, ctx *Context) (*Set, error) {
	if ctx != nil {
		if s, ok := ctx.Names[name]; ok {
			return s, nil
		}
		if body, ok := ctx.aliases[name]; ok {
			return eval(r, body, ctx)
		}
	}
	h, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return r.newHashSet([]plumbing.Hash{h})
}

// evalAlias substitutes $1, $2… in the alias body with the call arguments
// and evaluates the result.
func evalAlias(r *Repo, body Expr, args []Expr, ctx *Context) (*Set, error) {
	for i, a := range args {
		body = body.Replace("$"+strconv.Itoa(i+1), a)
	}
	return eval(r, body, ctx)
}

func evalSet(r *Repo, e Expr, ctx *Context) (*Set, error) {
	return eval(r, e, ctx)
}

// evalString extracts a raw string argument. Text-filter and resolution
// functions take patterns, not revisions; only a bare name or quoted
// literal is acceptable.
func evalString(fn string, e Expr) (string, error) {
	if s, ok := e.IsName(); ok {
		return s, nil
	}
	return "", &ExpectStringError{Func: fn, Got: e.String()}
}

func evalTwoSets(r *Repo, args []Expr, ctx *Context) (*Set, *Set, error) {
	a, err := evalSet(r, args[0], ctx)
	if err != nil {
		return nil, nil, err
	}
	b, err := evalSet(r, args[1], ctx)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func evalUnion(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	a, b, err := evalTwoSets(r, args, ctx)
	if err != nil {
		return nil, err
	}
	return a.Union(b), nil
}

func evalIntersection(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	a, b, err := evalTwoSets(r, args, ctx)
	if err != nil {
		return nil, err
	}
	return a.Intersect(b), nil
}

func evalDifference(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	a, b, err := evalTwoSets(r, args, ctx)
	if err != nil {
		return nil, err
	}
	return a.Difference(b), nil
}

func evalOnly(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	a, b, err := evalTwoSets(r, args, ctx)
	if err != nil {
		return nil, err
	}
	return a.Only(b), nil
}

func evalRange(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	a, b, err := evalTwoSets(r, args, ctx)
	if err != nil {
		return nil, err
	}
	return a.Range(b), nil
}

func evalNegate(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	s, err := evalSet(r, args[0], ctx)
	if err != nil {
		return nil, err
	}
	return s.Negate()
}

func evalAncestors(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	s, err := evalSet(r, args[0], ctx)
	if err != nil {
		return nil, err
	}
	return s.Ancestors(), nil
}

func evalDescendants(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	s, err := evalSet(r, args[0], ctx)
	if err != nil {
		return nil, err
	}
	return s.Descendants(), nil
}

func evalParents(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	s, err := evalSet(r, args[0], ctx)
	if err != nil {
		return nil, err
	}
	return s.Parents()
}

func evalChildren(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	s, err := evalSet(r, args[0], ctx)
	if err != nil {
		return nil, err
	}
	return r.filterSet(func(h plumbing.Hash) (bool, error) {
		parents, err := r.Parents(h)
		if err != nil {
			return false, err
		}
		for _, p := range parents {
			ok, err := s.Contains(p)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}), nil
}

func evalHeads(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	s, err := evalSet(r, args[0], ctx)
	if err != nil {
		return nil, err
	}
	return s.Heads()
}

func evalRoots(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	s, err := evalSet(r, args[0], ctx)
	if err != nil {
		return nil, err
	}
	return s.Roots(), nil
}

func evalGCA(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	sets := make([]*Set, 0, len(args))
	for _, a := range args {
		s, err := evalSet(r, a, ctx)
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return r.GCA(sets...)
}

func evalFirst(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	for _, a := range args {
		s, err := evalSet(r, a, ctx)
		if err != nil {
			return nil, err
		}
		h, ok, err := s.First()
		if err != nil {
			return nil, err
		}
		if ok {
			return r.newHashSet([]plumbing.Hash{h})
		}
	}
	return r.emptySet(), nil
}

func evalLast(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	s, err := evalSet(r, args[0], ctx)
	if err != nil {
		return nil, err
	}
	h, ok, err := s.Last()
	if err != nil {
		return nil, err
	}
	if !ok {
		return r.emptySet(), nil
	}
	return r.newHashSet([]plumbing.Hash{h})
}

func evalHead(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	heads, err := r.allHeads()
	if err != nil {
		return nil, err
	}
	return r.newHashSet(heads)
}

func evalAll(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	return r.allSet()
}

// matchesAnyGlob reports whether a short ref name matches one of the
// configured doublestar patterns.
func matchesAnyGlob(patterns []string, name string) (bool, error) {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, name)
		if err != nil {
			return false, &PatternError{Pattern: p, Err: err}
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// publicHeads returns the commits pointed at by refs matching the
// handle's public-ref patterns (remote-tracking branches and tags by
// default).
func (r *Repo) publicHeads() (*Set, error) {
	return r.cachedSet("publichead", func() (*Set, error) {
		refs, err := r.Refs(RefAll)
		if err != nil {
			return nil, err
		}
		var ids []plumbing.Hash
		for _, ref := range refs {
			ok, err := matchesAnyGlob(r.publicGlobs, ref.Short())
			if err != nil {
				return nil, err
			}
			if ok {
				ids = append(ids, ref.Hash)
			}
		}
		return r.newHashSet(ids)
	})
}

func evalPublicHead(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	return r.publicHeads()
}

func evalDraftHead(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	return r.cachedSet("drafthead", func() (*Set, error) {
		heads, err := evalHead(r, "head", nil, ctx)
		if err != nil {
			return nil, err
		}
		pub, err := r.publicHeads()
		if err != nil {
			return nil, err
		}
		return heads.Difference(pub), nil
	})
}

func evalPublic(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	return r.cachedSet("public", func() (*Set, error) {
		pub, err := r.publicHeads()
		if err != nil {
			return nil, err
		}
		return pub.Ancestors(), nil
	})
}

func evalDraft(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	return r.cachedSet("draft", func() (*Set, error) {
		draftHeads, err := evalDraftHead(r, "drafthead", nil, ctx)
		if err != nil {
			return nil, err
		}
		public, err := evalPublic(r, "public", nil, ctx)
		if err != nil {
			return nil, err
		}
		return draftHeads.Ancestors().Difference(public), nil
	})
}

// matcher builds a case-insensitive predicate from a filter pattern. A
// pattern containing glob metacharacters matches the whole field via
// doublestar; otherwise it is a substring match.
func matcher(pattern string) (func(string) bool, error) {
	lower := strings.ToLower(pattern)
	if strings.ContainsAny(lower, "*?[{") {
		if !doublestar.ValidatePattern(lower) {
			return nil, &PatternError{Pattern: pattern, Err: doublestar.ErrBadPattern}
		}
		return func(s string) bool {
			ok, _ := doublestar.Match(lower, strings.ToLower(s))
			return ok
		}, nil
	}
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), lower)
	}, nil
}

func evalAuthor(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	pat, err := evalString(name, args[0])
	if err != nil {
		return nil, err
	}
	match, err := matcher(pat)
	if err != nil {
		return nil, err
	}
	return r.filterSet(func(h plumbing.Hash) (bool, error) {
		md, err := r.Metadata(h)
		if err != nil {
			return false, err
		}
		return match(md.Author), nil
	}), nil
}

func evalCommitter(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	pat, err := evalString(name, args[0])
	if err != nil {
		return nil, err
	}
	match, err := matcher(pat)
	if err != nil {
		return nil, err
	}
	return r.filterSet(func(h plumbing.Hash) (bool, error) {
		md, err := r.Metadata(h)
		if err != nil {
			return false, err
		}
		return match(md.Committer), nil
	}), nil
}

func evalDesc(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	pat, err := evalString(name, args[0])
	if err != nil {
		return nil, err
	}
	match, err := matcher(pat)
	if err != nil {
		return nil, err
	}
	return r.filterSet(func(h plumbing.Hash) (bool, error) {
		md, err := r.Metadata(h)
		if err != nil {
			return false, err
		}
		return match(md.Message), nil
	}), nil
}

func evalDate(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	return evalDateField(r, name, args, ctx, func(md *Metadata) int64 {
		return md.When.Unix()
	})
}

func evalCommitterDate(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	return evalDateField(r, name, args, ctx, func(md *Metadata) int64 {
		return md.CommitterWhen.Unix()
	})
}

func evalDateField(r *Repo, name string, args []Expr, ctx *Context, field func(*Metadata) int64) (*Set, error) {
	text, err := evalString(name, args[0])
	if err != nil {
		return nil, err
	}
	rng, err := dates.ParseRange(text)
	if err != nil {
		return nil, &DateParseError{Input: text}
	}
	return r.filterSet(func(h plumbing.Hash) (bool, error) {
		md, err := r.Metadata(h)
		if err != nil {
			return false, err
		}
		return rng.ContainsUnix(field(md)), nil
	}), nil
}

// evalRev resolves a commit explicitly by hash or current-commit marker,
// never by reference name.
func evalRev(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	text, err := evalString(name, args[0])
	if err != nil {
		return nil, err
	}
	var h plumbing.Hash
	switch text {
	case ".", "@", "HEAD":
		h, err = r.Head()
	default:
		h, err = r.resolveHex(text)
	}
	if err != nil {
		return nil, err
	}
	return r.newHashSet([]plumbing.Hash{h})
}

func evalRef(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	refs, err := r.Refs(RefAll)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		ids := make([]plumbing.Hash, 0, len(refs))
		for _, ref := range refs {
			ids = append(ids, ref.Hash)
		}
		return r.newHashSet(ids)
	}
	text, err := evalString(name, args[0])
	if err != nil {
		return nil, err
	}
	if h, ok := r.resolveRef(text); ok {
		return r.newHashSet([]plumbing.Hash{h})
	}
	if strings.ContainsAny(text, "*?[{") {
		return globRefs(r, refs, text)
	}
	return nil, &UnresolvedNameError{Name: text}
}

func evalTag(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	tags, err := r.Refs(RefTag)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		ids := make([]plumbing.Hash, 0, len(tags))
		for _, t := range tags {
			ids = append(ids, t.Hash)
		}
		return r.newHashSet(ids)
	}
	text, err := evalString(name, args[0])
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if t.Short() == "tags/"+text || t.Short() == text {
			return r.newHashSet([]plumbing.Hash{t.Hash})
		}
	}
	if strings.ContainsAny(text, "*?[{") {
		return globRefs(r, tags, text)
	}
	return nil, &UnresolvedNameError{Name: text}
}

// globRefs collects commits whose ref short name matches pattern, trying
// the pattern both as written and under the standard prefixes.
func globRefs(r *Repo, refs []Ref, pattern string) (*Set, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, &PatternError{Pattern: pattern, Err: doublestar.ErrBadPattern}
	}
	prefixes := []string{"", "heads/", "tags/", "remotes/"}
	var ids []plumbing.Hash
	for _, ref := range refs {
		short := ref.Short()
		for _, pre := range prefixes {
			ok, err := doublestar.Match(pre+pattern, short)
			if err != nil {
				return nil, &PatternError{Pattern: pattern, Err: err}
			}
			if ok {
				ids = append(ids, ref.Hash)
				break
			}
		}
	}
	if len(ids) == 0 {
		return nil, &UnresolvedNameError{Name: pattern}
	}
	return r.newHashSet(ids)
}

func evalEmpty(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	return r.emptySet(), nil
}

// evalPresent evaluates its argument but converts an unresolved name into
// the empty set instead of an error.
func evalPresent(r *Repo, name string, args []Expr, ctx *Context) (*Set, error) {
	s, err := evalSet(r, args[0], ctx)
	if err != nil {
		var unresolved *UnresolvedNameError
		if errors.As(err, &unresolved) {
			return r.emptySet(), nil
		}
		return nil, err
	}
	return s, nil
}
