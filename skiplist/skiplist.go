// Package skiplist implements a lock-free multi-level skip-list ordered
// set: a probabilistic tower structure where every level follows the same
// marked-pointer discipline as the linked-list back-end, independently per
// level.
//
// A node carries its own logical-deletion mark at every level it
// participates in, rather than a single mark shared across the whole tower,
// so removal can proceed top-down one level at a time and insertion's
// upper-level links can be published lazily without risking a reader
// observing a half-marked node as live.
package skiplist

import (
	"math/bits"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lockfreeset/lockfreeset/element"
	"github.com/lockfreeset/lockfreeset/internal/counter"
	"github.com/lockfreeset/lockfreeset/internal/markref"
	"github.com/lockfreeset/lockfreeset/internal/reclaim"
)

// MaxLevel bounds tower height.
const MaxLevel = 32

// P is the level-promotion probability; nodes reach level i+1 from level i
// with probability P.
const P = 0.5

// node is a single skip-list element. next[i] carries the physical
// successor at level i plus that level's independent logical-deletion mark.
type node[T any] struct {
	key  element.Endpoint[T]
	next []markref.MarkedRef[node[T]]

	// pendingUnlinks counts the levels (0..topLevel) this node has not yet
	// been unlinked from. It starts at topLevel+1 and is decremented by
	// whichever goroutine performs the physical unlink CAS at each level,
	// and by linkUpperLevels for any level it never publishes the node at;
	// the node is fully unlinked, and handed to the reclamation service,
	// the instant it reaches zero.
	pendingUnlinks atomic.Int32
}

func (n *node[T]) topLevel() int { return len(n.next) - 1 }

// rngPool hands out a per-goroutine *rand.Rand, avoiding the contention a
// single shared RNG would create under concurrent inserts.
type rngPool struct {
	pool sync.Pool
}

func newRNGPool() *rngPool {
	r := &rngPool{}
	r.pool.New = func() any {
		return rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(newSeedSalt())))
	}
	return r
}

var seedSaltCounter atomic.Int64

func newSeedSalt() int64 { return seedSaltCounter.Add(1) }

// randomLevel draws a tower height in [0, MaxLevel-1] with P(level >= i) =
// P^i, by counting trailing zero bits of a uniform random word.
func (r *rngPool) randomLevel() int {
	rr := r.pool.Get().(*rand.Rand)
	v := rr.Uint64()
	r.pool.Put(rr)

	level := bits.TrailingZeros64(v)
	if level > MaxLevel-1 {
		level = MaxLevel - 1
	}
	return level
}

// Set is a lock-free ordered set backed by a multi-level skip list.
// The zero value is not usable; construct one with New.
type Set[T any] struct {
	less element.Less[element.Endpoint[T]]
	eq   func(a, b element.Endpoint[T]) bool

	head *node[T]
	tail *node[T]

	recl     *reclaim.Service[node[T]]
	rng      *rngPool
	topLevel atomic.Int64 // lazily-bumped hint, never decreases; may overestimate the true max tower height
	size     counter.Approximate
}

// New returns an empty set ordered by less.
func New[T any](less element.Less[T]) *Set[T] {
	s := &Set[T]{
		less: element.LessFunc(less),
		eq:   element.EqualFunc(less),
		rng:  newRNGPool(),
	}

	s.head = &node[T]{key: element.MinEndpoint[T](), next: make([]markref.MarkedRef[node[T]], MaxLevel)}
	s.tail = &node[T]{key: element.MaxEndpoint[T](), next: make([]markref.MarkedRef[node[T]], MaxLevel)}
	for i := 0; i < MaxLevel; i++ {
		s.head.next[i].Store(s.tail, false)
		s.tail.next[i].Store(nil, false)
	}

	// 2 hazard slots per level (one for the level's pred, one for its
	// curr) let a full top-to-bottom descent protect every pair it
	// touches simultaneously, so a pred a higher level still references
	// can't be pooled out from under a concurrent insert/remove that
	// hasn't finished its own per-level CAS sequence yet.
	s.recl = reclaim.New[node[T]](2*MaxLevel, nil)
	return s
}

// find descends from the current top-level hint to level 0, returning the
// predecessor/successor pair at every level such that preds[i].key <
// target <= succs[i].key, opportunistically physically unlinking any
// marked node it passes at each level. Any CAS failure restarts the whole
// descent from head at the top level.
func (s *Set[T]) find(h *reclaim.Handle[node[T]], target element.Endpoint[T]) (preds, succs [MaxLevel]*node[T]) {
retry:
	for {
		top := int(s.topLevel.Load())
		pred := s.head

		for level := top; level >= 0; level-- {
			h.Protect(2*level, pred)
			currRef, _ := pred.next[level].Load()
			curr := currRef
			h.Protect(2*level+1, curr)

			for {
				succRef, succMark := curr.next[level].Load()
				for succMark {
					if ok, _, _ := pred.next[level].CAS(curr, false, succRef, false); !ok {
						continue retry
					}
					s.onPhysicallyUnlinked(h, curr)
					curr = succRef
					h.Protect(2*level+1, curr)
					succRef, succMark = curr.next[level].Load()
				}

				if !s.less(curr.key, target) {
					break
				}

				pred = curr
				h.Protect(2*level, pred)
				curr = succRef
				h.Protect(2*level+1, curr)
			}

			preds[level] = pred
			succs[level] = curr
		}

		for level := top + 1; level < MaxLevel; level++ {
			preds[level] = s.head
			succs[level] = s.tail
		}

		return preds, succs
	}
}

// onPhysicallyUnlinked records that n has just been unlinked from one more
// level and hands it to the reclamation service once every level it was
// originally published at has been unlinked.
func (s *Set[T]) onPhysicallyUnlinked(h *reclaim.Handle[node[T]], n *node[T]) {
	if n == s.head || n == s.tail {
		return
	}
	if n.pendingUnlinks.Add(-1) == 0 {
		s.recl.Retire(h, n)
	}
}

func (s *Set[T]) bumpTopLevel(level int) {
	for {
		cur := s.topLevel.Load()
		if int64(level) <= cur {
			return
		}
		if s.topLevel.CompareAndSwap(cur, int64(level)) {
			return
		}
	}
}

// Insert adds v to the set. It reports true if v was added, false if v was
// already present.
func (s *Set[T]) Insert(v T) bool {
	h := s.recl.Begin()
	defer h.End()

	target := element.Of(v)
	topLevel := s.rng.randomLevel()

	for {
		preds, succs := s.find(h, target)
		if s.eq(succs[0].key, target) {
			return false
		}

		n := &node[T]{key: target, next: make([]markref.MarkedRef[node[T]], topLevel+1)}
		n.pendingUnlinks.Store(int32(topLevel + 1))
		for i := 0; i <= topLevel; i++ {
			n.next[i].Store(succs[i], false)
		}

		if ok, _, _ := preds[0].next[0].CAS(succs[0], false, n, false); !ok {
			continue
		}
		s.size.Add(1)
		s.bumpTopLevel(topLevel)

		s.linkUpperLevels(h, n, target, topLevel, preds, succs)
		return true
	}
}

// linkUpperLevels publishes the new node at levels 1..topLevel using the
// preds/succs the winning find already produced, re-searching only when a
// level's CAS loses a race. The node is already a live set member from the
// successful level-0 CAS in Insert; these links become visible lazily and a
// subsequent find will repair or unlink them if the node is concurrently
// removed first. Linking stops at the first level a concurrent Remove has
// already marked, and the levels never published are deducted from the
// node's pendingUnlinks.
func (s *Set[T]) linkUpperLevels(h *reclaim.Handle[node[T]], n *node[T], target element.Endpoint[T], topLevel int, preds, succs [MaxLevel]*node[T]) {
	level := 1
	for level <= topLevel {
		pred, succ := preds[level], succs[level]
		cur, mark := n.next[level].Load()
		if mark {
			break
		}
		if ok, _, _ := n.next[level].CAS(cur, false, succ, false); !ok {
			break
		}
		if ok, _, _ := pred.next[level].CAS(succ, false, n, false); ok {
			level++
			continue
		}

		var freshSuccs [MaxLevel]*node[T]
		preds, freshSuccs = s.find(h, target)
		if !s.eq(freshSuccs[0].key, target) || freshSuccs[0] != n {
			break
		}
		succs = freshSuccs
	}
	if unpublished := topLevel - level + 1; unpublished > 0 && n.pendingUnlinks.Add(int32(-unpublished)) == 0 {
		s.recl.Retire(h, n)
	}
}

// Remove deletes v from the set. It reports true if v was removed, false
// if v was not present. Exactly one concurrent Remove(v) reports true for
// any transition of v from present to absent: reporting true requires
// winning the level-0 mark CAS, never merely observing the target present.
func (s *Set[T]) Remove(v T) bool {
	h := s.recl.Begin()
	defer h.End()

	target := element.Of(v)
	preds, succs := s.find(h, target)
	if !s.eq(succs[0].key, target) {
		return false
	}
	victim := succs[0]

	for level := victim.topLevel(); level >= 1; level-- {
		for {
			ref, mark := victim.next[level].Load()
			if mark {
				break
			}
			if ok, _, _ := victim.next[level].CAS(ref, false, ref, true); ok {
				break
			}
		}
	}

	var succRef *node[T]
	for {
		ref, mark := victim.next[0].Load()
		if mark {
			return false
		}
		if ok, observedRef, _ := victim.next[0].CAS(ref, false, ref, true); ok {
			succRef = observedRef
			break
		}
	}

	s.size.Add(-1)

	for level := victim.topLevel(); level >= 0; level-- {
		pred := preds[level]
		succ := succRef
		if level > 0 {
			succ, _ = victim.next[level].Load()
		}
		if ok, _, _ := pred.next[level].CAS(victim, false, succ, false); ok {
			s.onPhysicallyUnlinked(h, victim)
		}
	}

	return true
}

// Contains reports whether v is currently a member of the set. Mirrors
// find's descent, including the same opportunistic unlinking find performs
// when it encounters marked nodes along the way.
func (s *Set[T]) Contains(v T) bool {
	h := s.recl.Begin()
	defer h.End()

	target := element.Of(v)
	_, succs := s.find(h, target)
	curr := succs[0]
	if !s.eq(curr.key, target) {
		return false
	}
	_, mark := curr.next[0].Load()
	return !mark
}

// Size returns an approximate element count read from a counter that
// Insert and Remove adjust after their linearizing CAS; no traversal is
// made. It is not linearizable.
func (s *Set[T]) Size() int {
	return s.size.Load()
}

// Destroy releases every node. The caller must guarantee no other goroutine
// is concurrently using the set; calling any method after Destroy, or
// calling Destroy concurrently with other use, is undefined behavior.
func (s *Set[T]) Destroy() {
	s.recl.Flush()
	s.head = nil
	s.tail = nil
}
