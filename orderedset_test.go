package lockfreeset_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	lockfreeset "github.com/lockfreeset/lockfreeset"
)

func intLess(a, b int) bool { return a < b }

// backends enumerates both implementations so the scenario suite below runs
// identically against each.
var backends = []struct {
	name    string
	backend lockfreeset.Backend
}{
	{"LinkedList", lockfreeset.LinkedListBackend},
	{"SkipList", lockfreeset.SkipListBackend},
}

func TestScenarioS1BothBackends(t *testing.T) {
	for _, b := range backends {
		b := b
		t.Run(b.name, func(t *testing.T) {
			s := lockfreeset.New[int](b.backend, intLess)
			require.True(t, s.Insert(5))
			require.True(t, s.Contains(5))
			require.False(t, s.Contains(6))
			require.Equal(t, 1, s.Size())
			s.Destroy()
		})
	}
}

func TestIdempotentInsertBothBackends(t *testing.T) {
	for _, b := range backends {
		b := b
		t.Run(b.name, func(t *testing.T) {
			s := lockfreeset.New[int](b.backend, intLess)
			require.True(t, s.Insert(7))
			require.False(t, s.Insert(7))
			require.True(t, s.Contains(7))
			s.Destroy()
		})
	}
}

func TestRoundTripBothBackends(t *testing.T) {
	for _, b := range backends {
		b := b
		t.Run(b.name, func(t *testing.T) {
			s := lockfreeset.New[int](b.backend, intLess)
			require.True(t, s.Insert(9))
			require.True(t, s.Remove(9))
			require.False(t, s.Contains(9))
			require.False(t, s.Remove(9))
			s.Destroy()
		})
	}
}

func ExampleNew() {
	s := lockfreeset.New[int](lockfreeset.LinkedListBackend, intLess)
	s.Insert(1)
	s.Insert(2)
	fmt.Println(s.Size())
	// Output: 2
}
