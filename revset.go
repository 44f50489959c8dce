// Package revset implements a query language that selects sets of commits
// from a git repository, similar to Mercurial's revsets.
//
// A commit is named by a reference ("master", "origin/master", "v1.0"), a
// full or abbreviated hash, or "." / "@" / "HEAD" for the current commit.
// Operators combine commits into sets:
//
//	x + y, x | y, x or y    union
//	x & y, x and y          intersection
//	x - y                   commits in x but not y
//	!x, not x               commits not in x
//	::x                     ancestors of x, including x
//	x::                     descendants of x, including x
//	x^                      parents of x
//	x % y                   reachable from x but not y
//	x:y, x..y               DAG range, x:: & ::y
//
// plus functions such as heads(x), roots(x), gca(x, y), draft(),
// author(pattern), desc(pattern), and date(range). See the registry in
// eval.go for the full table.
//
// Open a handle once and query it repeatedly:
//
//	repo, err := revset.OpenPath(".")
//	...
//	set, err := repo.Revs("roots(draft() & ::.)")
//	...
//	err = set.ForEach(func(h plumbing.Hash) error {
//		fmt.Println(h)
//		return nil
//	})
//
// The library never prints, logs, or exits; every failure is returned as a
// typed error.
package revset

// Revs parses and evaluates a revset expression in one call. User-defined
// aliases are ignored.
func (r *Repo) Revs(text string) (*Set, error) {
	e, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return r.RevsExpr(e)
}

// AnyRevs parses and evaluates a revset expression with user-defined
// aliases applied. Aliases come from Options.Aliases and, unless disabled,
// from the repository's "revsetalias" git-config section:
//
//	[revsetalias]
//	f = ancestor($1) + $1
func (r *Repo) AnyRevs(text string) (*Set, error) {
	e, err := Parse(text)
	if err != nil {
		return nil, err
	}
	ctx, err := r.aliasContext()
	if err != nil {
		return nil, err
	}
	return r.Eval(e, ctx)
}

// RevsExpr evaluates a pre-built expression tree, for callers using the
// programmatic builder.
func (r *Repo) RevsExpr(e Expr) (*Set, error) {
	return r.Eval(e, nil)
}

// Eval evaluates a tree with an explicit evaluation context.
func (r *Repo) Eval(e Expr, ctx *Context) (*Set, error) {
	return eval(r, e, ctx)
}

// aliasContext parses the alias table once and caches it on the handle.
func (r *Repo) aliasContext() (*Context, error) {
	if !r.aliasInit {
		r.aliasFns = make(map[string]Expr)
		if !r.noGitAlias {
			if cfg, err := r.gr.Config(); err == nil {
				for _, opt := range cfg.Raw.Section("revsetalias").Options {
					body, err := Parse(opt.Value)
					if err != nil {
						return nil, err
					}
					r.aliasFns[opt.Key] = body
				}
			}
		}
		for name, src := range r.aliases {
			body, err := Parse(src)
			if err != nil {
				return nil, err
			}
			r.aliasFns[name] = body
		}
		r.aliasInit = true
	}
	return &Context{aliases: r.aliasFns}, nil
}
