// Package lockfreeset ties the linked-list and skip-list back-ends together
// behind one public contract, so callers can choose an implementation
// without touching the rest of their code.
package lockfreeset

import (
	"github.com/lockfreeset/lockfreeset/element"
	"github.com/lockfreeset/lockfreeset/llist"
	"github.com/lockfreeset/lockfreeset/skiplist"
)

// Backend selects which lock-free structure backs a Set.
type Backend int

const (
	// LinkedListBackend is a Harris-style singly-linked ordered list.
	LinkedListBackend Backend = iota
	// SkipListBackend is a multi-level probabilistic skip list.
	SkipListBackend
)

func (b Backend) String() string {
	if b == SkipListBackend {
		return "skiplist"
	}
	return "llist"
}

// Set is the uniform ordered-set contract either back-end satisfies.
type Set[T any] interface {
	// Insert adds v. It reports true if v was added, false if it was
	// already present.
	Insert(v T) bool
	// Remove deletes v. It reports true if v was removed, false if it
	// was not present.
	Remove(v T) bool
	// Contains reports whether v is currently a member. The result may
	// be stale by the time it is returned under concurrent mutation.
	Contains(v T) bool
	// Size returns an approximate, non-linearizable cardinality.
	Size() int
	// Destroy releases every node. The caller must guarantee no other
	// goroutine is using the set, concurrently or afterward.
	Destroy()
}

// New returns an empty ordered set over T, ordered by less, backed by the
// requested implementation.
func New[T any](backend Backend, less element.Less[T]) Set[T] {
	switch backend {
	case SkipListBackend:
		return skiplist.New(less)
	default:
		return llist.New(less)
	}
}
