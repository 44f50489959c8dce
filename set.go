package revset

import (
	"io"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
)

// Set is a lazy, possibly unmaterialized collection of commit ids produced
// by evaluating a revset expression. Sets are read-only and defined
// extensionally: two sets are equal iff they contain the same ids,
// regardless of how they were built.
//
// Iteration order is reverse-topological: generation number descending,
// ties broken by hash. Every commit is therefore yielded before any of its
// ancestors, and the order is identical for every set produced by the same
// repository handle.
type Set struct {
	repo     *Repo
	contains func(plumbing.Hash) (bool, error)
	iterate  func() Iter
}

// Iter yields commit ids until io.EOF, following the go-git iterator
// convention. Each Set.Iter call starts a fresh traversal.
type Iter interface {
	Next() (plumbing.Hash, error)
}

// Contains reports whether id is a member of the set.
func (s *Set) Contains(id plumbing.Hash) (bool, error) {
	return s.contains(id)
}

// Iter returns a fresh iterator over the set in reverse-topological order.
func (s *Set) Iter() Iter {
	return s.iterate()
}

// ForEach calls fn for every member in iteration order. Returning
// storer.ErrStop from fn is not special-cased; any non-nil error aborts.
func (s *Set) ForEach(fn func(plumbing.Hash) error) error {
	it := s.iterate()
	for {
		h, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(h); err != nil {
			return err
		}
	}
}

// Hashes materializes the set into a slice in iteration order.
func (s *Set) Hashes() ([]plumbing.Hash, error) {
	var out []plumbing.Hash
	err := s.ForEach(func(h plumbing.Hash) error {
		out = append(out, h)
		return nil
	})
	return out, err
}

// Count iterates the set and returns its size.
func (s *Set) Count() (int, error) {
	n := 0
	err := s.ForEach(func(plumbing.Hash) error {
		n++
		return nil
	})
	return n, err
}

// First returns the first member in iteration order, or false for an empty
// set.
func (s *Set) First() (plumbing.Hash, bool, error) {
	h, err := s.iterate().Next()
	if err == io.EOF {
		return plumbing.ZeroHash, false, nil
	}
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	return h, true, nil
}

// Last returns the last member in iteration order, or false for an empty
// set.
func (s *Set) Last() (plumbing.Hash, bool, error) {
	var last plumbing.Hash
	found := false
	err := s.ForEach(func(h plumbing.Hash) error {
		last, found = h, true
		return nil
	})
	return last, found, err
}

// sliceIter iterates a pre-ordered slice.
type sliceIter struct {
	ids []plumbing.Hash
	i   int
}

func (it *sliceIter) Next() (plumbing.Hash, error) {
	if it.i >= len(it.ids) {
		return plumbing.ZeroHash, io.EOF
	}
	h := it.ids[it.i]
	it.i++
	return h, nil
}

// errIter yields a single error.
type errIter struct{ err error }

func (it *errIter) Next() (plumbing.Hash, error) { return plumbing.ZeroHash, it.err }

// filterIter yields members of src accepted by keep.
type filterIter struct {
	src  Iter
	keep func(plumbing.Hash) (bool, error)
}

func (it *filterIter) Next() (plumbing.Hash, error) {
	for {
		h, err := it.src.Next()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		ok, err := it.keep(h)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if ok {
			return h, nil
		}
	}
}

// emptySet returns the identity element for union.
func (r *Repo) emptySet() *Set {
	return &Set{
		repo:     r,
		contains: func(plumbing.Hash) (bool, error) { return false, nil },
		iterate:  func() Iter { return &sliceIter{} },
	}
}

// newHashSet materializes ids into a set, dropping duplicates and sorting
// into iteration order.
func (r *Repo) newHashSet(ids []plumbing.Hash) (*Set, error) {
	member := make(map[plumbing.Hash]struct{}, len(ids))
	uniq := make([]plumbing.Hash, 0, len(ids))
	for _, h := range ids {
		if _, ok := member[h]; ok {
			continue
		}
		member[h] = struct{}{}
		uniq = append(uniq, h)
	}
	if err := r.sortByOrder(uniq); err != nil {
		return nil, err
	}
	return &Set{
		repo: r,
		contains: func(h plumbing.Hash) (bool, error) {
			_, ok := member[h]
			return ok, nil
		},
		iterate: func() Iter { return &sliceIter{ids: uniq} },
	}, nil
}

// sortByOrder sorts ids in place into iteration order: generation
// descending, then hash ascending.
func (r *Repo) sortByOrder(ids []plumbing.Hash) error {
	gens := make(map[plumbing.Hash]int, len(ids))
	for _, h := range ids {
		g, err := r.Generation(h)
		if err != nil {
			return err
		}
		gens[h] = g
	}
	sort.Slice(ids, func(i, j int) bool {
		return orderLess(gens[ids[i]], ids[i], gens[ids[j]], ids[j])
	})
	return nil
}

// orderLess reports whether (ga, a) sorts before (gb, b) in iteration
// order.
func orderLess(ga int, a plumbing.Hash, gb int, b plumbing.Hash) bool {
	if ga != gb {
		return ga > gb
	}
	return a.String() < b.String()
}

// Union returns members of s or o, duplicates removed.
func (s *Set) Union(o *Set) *Set {
	r := s.repo
	return &Set{
		repo: r,
		contains: func(h plumbing.Hash) (bool, error) {
			ok, err := s.contains(h)
			if err != nil || ok {
				return ok, err
			}
			return o.contains(h)
		},
		iterate: func() Iter {
			return &mergeIter{r: r, a: s.iterate(), b: o.iterate()}
		},
	}
}

// mergeIter merges two iterators that are each in iteration order,
// dropping duplicates.
type mergeIter struct {
	r      *Repo
	a, b   Iter
	na, nb plumbing.Hash
	ha, hb bool // buffered value present
	ea, eb bool // source exhausted
}

func (it *mergeIter) fill() error {
	if !it.ha && !it.ea {
		h, err := it.a.Next()
		if err == io.EOF {
			it.ea = true
		} else if err != nil {
			return err
		} else {
			it.na, it.ha = h, true
		}
	}
	if !it.hb && !it.eb {
		h, err := it.b.Next()
		if err == io.EOF {
			it.eb = true
		} else if err != nil {
			return err
		} else {
			it.nb, it.hb = h, true
		}
	}
	return nil
}

func (it *mergeIter) Next() (plumbing.Hash, error) {
	for {
		if err := it.fill(); err != nil {
			return plumbing.ZeroHash, err
		}
		switch {
		case !it.ha && !it.hb:
			return plumbing.ZeroHash, io.EOF
		case it.ha && !it.hb:
			it.ha = false
			return it.na, nil
		case it.hb && !it.ha:
			it.hb = false
			return it.nb, nil
		case it.na == it.nb:
			it.hb = false // drop the duplicate, emit from a
			it.ha = false
			return it.na, nil
		default:
			ga, err := it.r.Generation(it.na)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			gb, err := it.r.Generation(it.nb)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			if orderLess(ga, it.na, gb, it.nb) {
				it.ha = false
				return it.na, nil
			}
			it.hb = false
			return it.nb, nil
		}
	}
}

// Intersect returns members present in both s and o.
func (s *Set) Intersect(o *Set) *Set {
	return &Set{
		repo: s.repo,
		contains: func(h plumbing.Hash) (bool, error) {
			ok, err := s.contains(h)
			if err != nil || !ok {
				return false, err
			}
			return o.contains(h)
		},
		iterate: func() Iter {
			return &filterIter{src: s.iterate(), keep: o.contains}
		},
	}
}

// Difference returns members of s that are not in o.
func (s *Set) Difference(o *Set) *Set {
	return &Set{
		repo: s.repo,
		contains: func(h plumbing.Hash) (bool, error) {
			ok, err := s.contains(h)
			if err != nil || !ok {
				return false, err
			}
			ok, err = o.contains(h)
			return !ok && err == nil, err
		},
		iterate: func() Iter {
			return &filterIter{src: s.iterate(), keep: func(h plumbing.Hash) (bool, error) {
				ok, err := o.contains(h)
				return !ok && err == nil, err
			}}
		},
	}
}

// filterSet restricts the universal set by a predicate on commit ids.
// Membership tests apply the predicate directly; iteration walks the
// universal set.
func (r *Repo) filterSet(pred func(plumbing.Hash) (bool, error)) *Set {
	return &Set{
		repo: r,
		contains: func(h plumbing.Hash) (bool, error) {
			all, err := r.allSet()
			if err != nil {
				return false, err
			}
			ok, err := all.Contains(h)
			if err != nil || !ok {
				return false, err
			}
			return pred(h)
		},
		iterate: func() Iter {
			all, err := r.allSet()
			if err != nil {
				return &errIter{err: err}
			}
			return &filterIter{src: all.Iter(), keep: pred}
		},
	}
}
