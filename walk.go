package revset

import (
	"container/heap"
	"io"

	"github.com/go-git/go-git/v5/plumbing"
)

// genHeap is a frontier ordered like set iteration: highest generation
// first, ties by hash.
type genHeap []genEntry

type genEntry struct {
	gen  int
	hash plumbing.Hash
}

func (h genHeap) Len() int { return len(h) }
func (h genHeap) Less(i, j int) bool {
	return orderLess(h[i].gen, h[i].hash, h[j].gen, h[j].hash)
}
func (h genHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *genHeap) Push(x interface{}) { *h = append(*h, x.(genEntry)) }
func (h *genHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// ancestry is the shared state of a lazy ancestor walk. The frontier is
// expanded on demand, one commit at a time, in iteration order. Because a
// parent's generation is strictly below its child's, emission order is
// monotone and a membership probe can stop as soon as the frontier sinks
// below the probed commit's generation.
type ancestry struct {
	r        *Repo
	seed     func() ([]plumbing.Hash, error)
	frontier genHeap
	pushed   map[plumbing.Hash]struct{}
	emitted  []plumbing.Hash
	member   map[plumbing.Hash]struct{}
	inited   bool
	done     bool
}

func (w *ancestry) init() error {
	if w.inited {
		return nil
	}
	w.inited = true
	w.pushed = make(map[plumbing.Hash]struct{})
	w.member = make(map[plumbing.Hash]struct{})
	starts, err := w.seed()
	if err != nil {
		w.done = true
		return err
	}
	for _, h := range starts {
		if err := w.push(h); err != nil {
			return err
		}
	}
	return nil
}

func (w *ancestry) push(h plumbing.Hash) error {
	if _, ok := w.pushed[h]; ok {
		return nil
	}
	w.pushed[h] = struct{}{}
	g, err := w.r.Generation(h)
	if err != nil {
		return err
	}
	heap.Push(&w.frontier, genEntry{gen: g, hash: h})
	return nil
}

// step emits the next commit of the walk, or reports done.
func (w *ancestry) step() (plumbing.Hash, bool, error) {
	if err := w.init(); err != nil {
		return plumbing.ZeroHash, false, err
	}
	if w.frontier.Len() == 0 {
		w.done = true
		return plumbing.ZeroHash, false, nil
	}
	e := heap.Pop(&w.frontier).(genEntry)
	w.emitted = append(w.emitted, e.hash)
	w.member[e.hash] = struct{}{}
	parents, err := w.r.Parents(e.hash)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	for _, p := range parents {
		if err := w.push(p); err != nil {
			return plumbing.ZeroHash, false, err
		}
	}
	return e.hash, true, nil
}

// contains extends the walk only far enough to decide membership: once no
// frontier commit can reach h's generation, h cannot appear.
func (w *ancestry) contains(h plumbing.Hash) (bool, error) {
	if err := w.init(); err != nil {
		return false, err
	}
	if _, ok := w.member[h]; ok {
		return true, nil
	}
	g, err := w.r.Generation(h)
	if err != nil {
		return false, err
	}
	for !w.done && w.frontier.Len() > 0 && w.frontier[0].gen >= g {
		if _, _, err := w.step(); err != nil {
			return false, err
		}
		if _, ok := w.member[h]; ok {
			return true, nil
		}
	}
	return false, nil
}

type ancestryIter struct {
	w *ancestry
	i int
}

func (it *ancestryIter) Next() (plumbing.Hash, error) {
	if it.i < len(it.w.emitted) {
		h := it.w.emitted[it.i]
		it.i++
		return h, nil
	}
	h, ok, err := it.w.step()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if !ok {
		return plumbing.ZeroHash, io.EOF
	}
	it.i++
	return h, nil
}

// Ancestors returns s plus all transitive parents of its members.
func (s *Set) Ancestors() *Set {
	w := &ancestry{r: s.repo, seed: s.Hashes}
	return &Set{
		repo:     s.repo,
		contains: w.contains,
		iterate:  func() Iter { return &ancestryIter{w: w} },
	}
}

// ancestorsOf is Ancestors seeded directly from ids.
func (r *Repo) ancestorsOf(ids []plumbing.Hash) *Set {
	w := &ancestry{r: r, seed: func() ([]plumbing.Hash, error) { return ids, nil }}
	return &Set{
		repo:     r,
		contains: w.contains,
		iterate:  func() Iter { return &ancestryIter{w: w} },
	}
}

// Descendants returns s plus every commit in the universal set reachable
// from s by child edges. The walk over the universal set is bounded below
// by the minimum generation among s's members.
func (s *Set) Descendants() *Set {
	r := s.repo
	var memo *Set
	get := func() (*Set, error) {
		if memo != nil {
			return memo, nil
		}
		members, err := s.Hashes()
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			memo = r.emptySet()
			return memo, nil
		}
		minGen := int(^uint(0) >> 1)
		inSeed := make(map[plumbing.Hash]struct{}, len(members))
		for _, h := range members {
			inSeed[h] = struct{}{}
			g, err := r.Generation(h)
			if err != nil {
				return nil, err
			}
			if g < minGen {
				minGen = g
			}
		}
		// Collect the slice of the universe at or above minGen.
		heads, err := r.allHeads()
		if err != nil {
			return nil, err
		}
		seen := make(map[plumbing.Hash]struct{})
		var above []plumbing.Hash
		stack := append([]plumbing.Hash(nil), heads...)
		for len(stack) > 0 {
			h := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			g, err := r.Generation(h)
			if err != nil {
				return nil, err
			}
			if g < minGen {
				continue
			}
			above = append(above, h)
			parents, err := r.Parents(h)
			if err != nil {
				return nil, err
			}
			stack = append(stack, parents...)
		}
		// Sweep upward: a commit descends from s if it is in s or any of
		// its parents does.
		if err := r.sortByOrder(above); err != nil {
			return nil, err
		}
		desc := make(map[plumbing.Hash]struct{})
		for i := len(above) - 1; i >= 0; i-- {
			h := above[i]
			if _, ok := inSeed[h]; ok {
				desc[h] = struct{}{}
				continue
			}
			parents, err := r.Parents(h)
			if err != nil {
				return nil, err
			}
			for _, p := range parents {
				if _, ok := desc[p]; ok {
					desc[h] = struct{}{}
					break
				}
			}
		}
		// Members outside the universe still belong to the result.
		ids := append([]plumbing.Hash(nil), members...)
		for _, h := range above {
			if _, ok := desc[h]; !ok {
				continue
			}
			if _, ok := inSeed[h]; ok {
				continue
			}
			ids = append(ids, h)
		}
		memo, err = r.newHashSet(ids)
		return memo, err
	}
	return &Set{
		repo: r,
		contains: func(h plumbing.Hash) (bool, error) {
			m, err := get()
			if err != nil {
				return false, err
			}
			return m.Contains(h)
		},
		iterate: func() Iter {
			m, err := get()
			if err != nil {
				return &errIter{err: err}
			}
			return m.Iter()
		},
	}
}

// Parents returns the union of the immediate parents of every member of s.
// One level only, not transitive.
func (s *Set) Parents() (*Set, error) {
	var ids []plumbing.Hash
	err := s.ForEach(func(h plumbing.Hash) error {
		parents, err := s.repo.Parents(h)
		if err != nil {
			return err
		}
		ids = append(ids, parents...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.newHashSet(ids)
}

// Heads returns the members of s that have no child in s. A member is
// excluded exactly when it appears among the parents of another member; no
// children index is built.
func (s *Set) Heads() (*Set, error) {
	members, err := s.Hashes()
	if err != nil {
		return nil, err
	}
	parentOfMember := make(map[plumbing.Hash]struct{})
	for _, h := range members {
		parents, err := s.repo.Parents(h)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			parentOfMember[p] = struct{}{}
		}
	}
	var ids []plumbing.Hash
	for _, h := range members {
		if _, ok := parentOfMember[h]; !ok {
			ids = append(ids, h)
		}
	}
	return s.repo.newHashSet(ids)
}

// Roots returns the members of s that have no parent in s. Lazy: each
// membership test inspects one level of parents.
func (s *Set) Roots() *Set {
	isRoot := func(h plumbing.Hash) (bool, error) {
		parents, err := s.repo.Parents(h)
		if err != nil {
			return false, err
		}
		for _, p := range parents {
			ok, err := s.contains(p)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
		return true, nil
	}
	return &Set{
		repo: s.repo,
		contains: func(h plumbing.Hash) (bool, error) {
			ok, err := s.contains(h)
			if err != nil || !ok {
				return false, err
			}
			return isRoot(h)
		},
		iterate: func() Iter {
			return &filterIter{src: s.iterate(), keep: isRoot}
		},
	}
}

// Negate returns the universal set minus s.
func (s *Set) Negate() (*Set, error) {
	all, err := s.repo.allSet()
	if err != nil {
		return nil, err
	}
	return all.Difference(s), nil
}

// Only returns ancestors(s) minus ancestors(o): commits reachable from s
// but not from o.
func (s *Set) Only(o *Set) *Set {
	return s.Ancestors().Difference(o.Ancestors())
}

// Range returns descendants(s) intersected with ancestors(o): commits on
// some path from s to o, inclusive.
func (s *Set) Range(o *Set) *Set {
	return s.Descendants().Intersect(o.Ancestors())
}

// bitmask is a small variable-width bit set keyed by member index.
type bitmask []uint64

func newBitmask(n int) bitmask { return make(bitmask, (n+63)/64) }

func (m bitmask) set(i int) { m[i/64] |= 1 << (uint(i) % 64) }
func (m bitmask) or(o bitmask) {
	for i := range m {
		m[i] |= o[i]
	}
}
func (m bitmask) equal(o bitmask) bool {
	for i := range m {
		if m[i] != o[i] {
			return false
		}
	}
	return true
}
func (m bitmask) clone() bitmask {
	c := make(bitmask, len(m))
	copy(c, m)
	return c
}

// GCA returns the greatest common ancestors of all members of the given
// sets: commits that are ancestors of every member and have no descendant
// that is also a common ancestor. Criss-cross merges can produce more than
// one result.
//
// Ancestor frontiers of all members are expanded in lock-step by
// generation. The first commit reached from every member is a result;
// everything below it is marked stale so deeper common ancestors are
// excluded. The walk stops once only stale commits remain on the frontier.
func (r *Repo) GCA(sets ...*Set) (*Set, error) {
	var members []plumbing.Hash
	seen := make(map[plumbing.Hash]struct{})
	for _, s := range sets {
		err := s.ForEach(func(h plumbing.Hash) error {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				members = append(members, h)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(members) == 0 {
		return r.emptySet(), nil
	}

	full := newBitmask(len(members))
	for i := range members {
		full.set(i)
	}
	flags := make(map[plumbing.Hash]bitmask)
	stale := make(map[plumbing.Hash]bool)
	var frontier genHeap
	inHeap := make(map[plumbing.Hash]struct{})

	push := func(h plumbing.Hash) error {
		if _, ok := inHeap[h]; ok {
			return nil
		}
		inHeap[h] = struct{}{}
		g, err := r.Generation(h)
		if err != nil {
			return err
		}
		heap.Push(&frontier, genEntry{gen: g, hash: h})
		return nil
	}

	for i, h := range members {
		if flags[h] == nil {
			flags[h] = newBitmask(len(members))
		}
		flags[h].set(i)
		if err := push(h); err != nil {
			return nil, err
		}
	}

	var results []plumbing.Hash
	for frontier.Len() > 0 {
		allStale := true
		for _, e := range frontier {
			if !stale[e.hash] {
				allStale = false
				break
			}
		}
		if allStale {
			break
		}
		e := heap.Pop(&frontier).(genEntry)
		delete(inHeap, e.hash)
		f := flags[e.hash]
		if f.equal(full) && !stale[e.hash] {
			results = append(results, e.hash)
			stale[e.hash] = true
		}
		parents, err := r.Parents(e.hash)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			if flags[p] == nil {
				flags[p] = newBitmask(len(members))
			}
			flags[p].or(f)
			if stale[e.hash] {
				stale[p] = true
			}
			if err := push(p); err != nil {
				return nil, err
			}
		}
	}
	return r.newHashSet(results)
}
