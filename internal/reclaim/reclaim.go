// Package reclaim implements a hazard-pointer reclamation service: a scheme
// that defers releasing an unlinked node until no goroutine can still
// observe it through a stale reference.
//
// Freeing a node immediately after a successful unlink CAS is unsafe: a
// concurrent reader that loaded the node's address just before the unlink
// can still dereference it after the memory is reused. Protect/Retire/scan
// close that window by holding retired nodes until every hazard pointer
// that could have been acquired before the retire has moved on.
package reclaim

import (
	"sync"
	"sync/atomic"
)

// scanThreshold is the number of pending retirements a goroutine accumulates
// locally before it pays for a scan against the global hazard set,
// amortizing a relatively expensive global operation behind a per-goroutine
// batch.
const scanThreshold = 64

// record is one goroutine's set of published hazard pointers, kept in a
// freelist (via a lock-free singly-linked list rooted at Service.head)
// instead of a map keyed by goroutine ID, which Go has no stable public
// handle for. Its hazard slot count is fixed per Service, sized by the
// caller to the deepest simultaneous set of references its traversal needs
// protected at once.
type record[N any] struct {
	hazards []atomic.Pointer[N]
	active  atomic.Bool
	next    atomic.Pointer[record[N]]
}

// Service is the reclamation service for a single ordered-set instance.
// The zero value is not usable; construct one with New.
type Service[N any] struct {
	capacity int

	head atomic.Pointer[record[N]]

	retiredMu sync.Mutex
	retired   map[*record[N]][]*N

	metrics Metrics

	free func(*N)
}

// Metrics exposes atomic counters for diagnostics and tests.
type Metrics struct {
	retires  atomic.Int64
	scans    atomic.Int64
	reclaims atomic.Int64
}

func (m *Metrics) Retires() int64  { return m.retires.Load() }
func (m *Metrics) Scans() int64    { return m.scans.Load() }
func (m *Metrics) Reclaims() int64 { return m.reclaims.Load() }

// New returns a reclamation service whose handles can protect up to
// hazardCapacity references simultaneously. free is invoked on a node once
// it is provably unreachable; pass nil to leak deliberately (useful for
// stress-test scaffolding) or a function that returns the node to a
// sync.Pool to combine reclamation with reuse.
func New[N any](hazardCapacity int, free func(*N)) *Service[N] {
	if hazardCapacity < 1 {
		hazardCapacity = 1
	}
	if free == nil {
		free = func(*N) {}
	}
	return &Service[N]{
		capacity: hazardCapacity,
		retired:  make(map[*record[N]][]*N),
		free:     free,
	}
}

// Handle is a per-goroutine lease on a hazard record, obtained from Begin
// and released with End. Callers protect references through it.
type Handle[N any] struct {
	svc *Service[N]
	rec *record[N]
}

// acquireRecord finds a free record in the global list or allocates a new
// one and publishes it.
func (s *Service[N]) acquireRecord() *record[N] {
	for r := s.head.Load(); r != nil; r = r.next.Load() {
		if !r.active.Load() && r.active.CompareAndSwap(false, true) {
			return r
		}
	}
	r := &record[N]{hazards: make([]atomic.Pointer[N], s.capacity)}
	r.active.Store(true)
	for {
		head := s.head.Load()
		r.next.Store(head)
		if s.head.CompareAndSwap(head, r) {
			return r
		}
	}
}

// Begin starts a protected section for the current goroutine and returns a
// handle used to Protect references for its duration. Callers must call
// End when the traversal that needed those references is finished.
func (s *Service[N]) Begin() *Handle[N] {
	return &Handle[N]{svc: s, rec: s.acquireRecord()}
}

// End releases every hazard pointer this handle published and returns the
// record to the free pool for reuse by another goroutine.
func (h *Handle[N]) End() {
	for i := range h.rec.hazards {
		h.rec.hazards[i].Store(nil)
	}
	h.rec.active.Store(false)
	h.svc = nil
	h.rec = nil
}

// Protect publishes ref as in-use by the current protected section in the
// given slot (0-indexed, below the Service's configured hazard capacity).
// It must be called again with an updated ref every time the traversal
// re-reads the pointer it protects, since a hazard pointer only guards the
// exact reference last published.
func (h *Handle[N]) Protect(slot int, ref *N) {
	h.rec.hazards[slot].Store(ref)
}

// Retire registers node as unlinked and safe to reclaim once no hazard
// pointer can still reference it. The call returns immediately; the actual
// free happens during a later scan, possibly performed by a different
// goroutine than the one that retired the node.
func (s *Service[N]) Retire(h *Handle[N], node *N) {
	if node == nil {
		return
	}
	s.metrics.retires.Add(1)

	s.retiredMu.Lock()
	s.retired[h.rec] = append(s.retired[h.rec], node)
	pending := len(s.retired[h.rec])
	s.retiredMu.Unlock()

	if pending >= scanThreshold {
		s.scan()
	}
}

// scan walks every retirement batch and frees nodes no longer referenced by
// any published hazard pointer. A node that survives a scan stays retired
// until the next one.
func (s *Service[N]) scan() {
	s.metrics.scans.Add(1)

	live := make(map[*N]struct{})
	for r := s.head.Load(); r != nil; r = r.next.Load() {
		if !r.active.Load() {
			continue
		}
		for i := range r.hazards {
			if p := r.hazards[i].Load(); p != nil {
				live[p] = struct{}{}
			}
		}
	}

	s.retiredMu.Lock()
	defer s.retiredMu.Unlock()

	for rec, nodes := range s.retired {
		remaining := nodes[:0]
		for _, n := range nodes {
			if _, hazarded := live[n]; hazarded {
				remaining = append(remaining, n)
				continue
			}
			s.free(n)
			s.metrics.reclaims.Add(1)
		}
		if len(remaining) == 0 {
			delete(s.retired, rec)
		} else {
			s.retired[rec] = remaining
		}
	}
}

// Flush forces a scan regardless of the per-goroutine batch threshold. It is
// intended for Destroy (quiescent shutdown) and tests that need
// deterministic reclamation rather than the lazy, throughput-optimized path.
func (s *Service[N]) Flush() { s.scan() }

// Metrics returns the service's diagnostic counters.
func (s *Service[N]) Metrics() *Metrics { return &s.metrics }
