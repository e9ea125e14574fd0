// Package markref provides the marked-pointer primitive shared by both
// ordered-set back-ends: a reference to a node fused with a one-bit logical
// deletion mark, read and written as a single atomic unit.
package markref

import "sync/atomic"

// Pair is a (reference, mark) value. It is immutable once constructed;
// MarkedRef never mutates a published Pair, it swings its cell to a new one.
type Pair[N any] struct {
	Ref  *N
	Mark bool
}

// Make fuses a node reference and a mark into a single value.
func Make[N any](ref *N, mark bool) Pair[N] {
	return Pair[N]{Ref: ref, Mark: mark}
}

// Split recovers the (ref, mark) components of a previously-made pair.
func Split[N any](p Pair[N]) (ref *N, mark bool) {
	return p.Ref, p.Mark
}

// MarkedRef is an atomic cell holding a Pair[N]. The zero value must be
// initialized with Store before Load or CAS is called; New returns an
// already-initialized cell.
type MarkedRef[N any] struct {
	cell atomic.Pointer[Pair[N]]
}

// New returns a MarkedRef initialized to (ref, mark).
func New[N any](ref *N, mark bool) *MarkedRef[N] {
	m := &MarkedRef[N]{}
	p := Make(ref, mark)
	m.cell.Store(&p)
	return m
}

// Store unconditionally installs (ref, mark). Used only for single-threaded
// initialization (sentinel wiring, and nodes not yet published); mutators
// of shared cells must use CAS.
func (m *MarkedRef[N]) Store(ref *N, mark bool) {
	p := Make(ref, mark)
	m.cell.Store(&p)
}

// Load returns the current (ref, mark) pair. The load carries at least
// acquire semantics, so a reader observing a published node also observes
// every field the publishing writer set before the corresponding release.
func (m *MarkedRef[N]) Load() (ref *N, mark bool) {
	return Split(*m.cell.Load())
}

// CAS atomically tests both the reference and the mark against
// (expectedRef, expectedMark) and, on equality, installs (newRef, newMark).
// It reports success and, on failure, the pair it actually observed.
func (m *MarkedRef[N]) CAS(expectedRef *N, expectedMark bool, newRef *N, newMark bool) (ok bool, observedRef *N, observedMark bool) {
	old := m.cell.Load()
	if old.Ref != expectedRef || old.Mark != expectedMark {
		return false, old.Ref, old.Mark
	}
	next := Make(newRef, newMark)
	if m.cell.CompareAndSwap(old, &next) {
		return true, newRef, newMark
	}
	cur := m.cell.Load()
	return false, cur.Ref, cur.Mark
}
