// Package llist implements Harris's lock-free singly-linked ordered-set:
// a sorted chain of nodes bounded by -∞/+∞ sentinels, where a node's
// outgoing pointer carries a one-bit mark recording logical deletion.
//
// Every search made by Insert and Remove retries from head on a lost CAS
// race and opportunistically physically unlinks any marked node it passes
// over along the way, so the list self-heals without a dedicated sweeper
// goroutine. Contains only reads and never unlinks.
package llist

import (
	"github.com/lockfreeset/lockfreeset/element"
	"github.com/lockfreeset/lockfreeset/internal/counter"
	"github.com/lockfreeset/lockfreeset/internal/markref"
	"github.com/lockfreeset/lockfreeset/internal/reclaim"
)

// node is a single list element. next carries the physical successor plus
// the logical-deletion mark, fused atomically via markref.
type node[T any] struct {
	key  element.Endpoint[T]
	next markref.MarkedRef[node[T]]
}

// Set is a lock-free ordered set backed by a Harris-style linked list.
// The zero value is not usable; construct one with New.
type Set[T any] struct {
	less element.Less[element.Endpoint[T]]
	eq   func(a, b element.Endpoint[T]) bool
	head *node[T]
	tail *node[T]
	recl *reclaim.Service[node[T]]
	size counter.Approximate
}

// New returns an empty set ordered by less.
func New[T any](less element.Less[T]) *Set[T] {
	s := &Set[T]{
		less: element.LessFunc(less),
		eq:   element.EqualFunc(less),
	}
	s.head = &node[T]{key: element.MinEndpoint[T]()}
	s.tail = &node[T]{key: element.MaxEndpoint[T]()}
	s.tail.next.Store(nil, false)
	s.head.next.Store(s.tail, false)
	s.recl = reclaim.New[node[T]](2, nil)
	return s
}

// find returns the unique pair of unmarked nodes (pred, curr) such that
// pred.key < target <= curr.key, physically unlinking any marked node it
// passes over along the way. It restarts from head whenever an unlink CAS
// loses a race.
func (s *Set[T]) find(h *reclaim.Handle[node[T]], target element.Endpoint[T]) (pred, curr *node[T]) {
retry:
	for {
		pred = s.head
		h.Protect(0, pred)
		currRef, _ := pred.next.Load()
		curr = currRef
		h.Protect(1, curr)

		for {
			succRef, succMark := curr.next.Load()
			for succMark {
				if ok, _, _ := pred.next.CAS(curr, false, succRef, false); !ok {
					continue retry
				}
				s.recl.Retire(h, curr)
				curr = succRef
				h.Protect(1, curr)
				succRef, succMark = curr.next.Load()
			}

			if !s.less(curr.key, target) {
				return pred, curr
			}

			pred = curr
			h.Protect(0, pred)
			curr = succRef
			h.Protect(1, curr)
		}
	}
}

// Insert adds v to the set. It reports true if v was added, false if v was
// already present.
func (s *Set[T]) Insert(v T) bool {
	h := s.recl.Begin()
	defer h.End()

	target := element.Of(v)
	for {
		pred, curr := s.find(h, target)
		if s.eq(curr.key, target) {
			return false
		}

		n := &node[T]{key: target}
		n.next.Store(curr, false)
		if ok, _, _ := pred.next.CAS(curr, false, n, false); ok {
			s.size.Add(1)
			return true
		}
	}
}

// Remove deletes v from the set. It reports true if v was removed, false
// if v was not present. Exactly one concurrent Remove(v) reports true for
// any transition of v from present to absent: the mark CAS on curr.next is
// the linearization point, and only the goroutine that wins it returns true.
func (s *Set[T]) Remove(v T) bool {
	h := s.recl.Begin()
	defer h.End()

	target := element.Of(v)
	pred, curr := s.find(h, target)
	if !s.eq(curr.key, target) {
		return false
	}

	succRef, succMark := curr.next.Load()
	for {
		if succMark {
			return false
		}
		if ok, observedRef, observedMark := curr.next.CAS(succRef, false, succRef, true); ok {
			succRef = observedRef
			break
		} else if observedMark {
			return false
		} else {
			succRef, succMark = observedRef, observedMark
		}
	}

	s.size.Add(-1)
	if ok, _, _ := pred.next.CAS(curr, false, succRef, false); ok {
		s.recl.Retire(h, curr)
	}
	return true
}

// Contains reports whether v is currently a member of the set. It performs
// no CAS and never modifies the list; it follows the raw reference
// component of a marked pointer to reach the first node of value >= v,
// which is safe because a node's key is never mutated after publication.
func (s *Set[T]) Contains(v T) bool {
	target := element.Of(v)
	curr := s.head
	for s.less(curr.key, target) {
		ref, _ := curr.next.Load()
		curr = ref
	}
	if !s.eq(curr.key, target) {
		return false
	}
	_, mark := curr.next.Load()
	return !mark
}

// Size returns an approximate element count read from a counter that
// Insert and Remove adjust after their linearizing CAS; no traversal is
// made. It is not linearizable: concurrent Insert/Remove calls may cause it
// to over- or under-count, and it exists only for diagnostics.
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
