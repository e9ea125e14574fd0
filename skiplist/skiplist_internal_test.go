package skiplist

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lockfreeset/lockfreeset/element"
)

func internalTestIntLess(a, b int) bool { return a < b }

// forceFullCleanup runs one top-to-bottom find past every real value, which
// opportunistically physically unlinks any marked node the descent passes
// over at each level.
func forceFullCleanup[T any](s *Set[T], beyond element.Endpoint[T]) {
	h := s.recl.Begin()
	defer h.End()
	s.find(h, beyond)
}

func TestNoMarkedResidueAfterStorm(t *testing.T) {
	s := New[int](internalTestIntLess)
	const keySpace = 400
	const goroutines = 12
	const opsPerGoroutine = 1500

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < opsPerGoroutine; i++ {
				key := r.Intn(keySpace)
				if r.Intn(2) == 0 {
					s.Insert(key)
				} else {
					s.Remove(key)
				}
			}
		}(int64(g) + 1)
	}
	wg.Wait()

	forceFullCleanup(s, element.MaxEndpoint[int]())

	top := int(s.topLevel.Load())
	for level := 0; level <= top; level++ {
		curr := s.head
		for {
			ref, mark := curr.next[level].Load()
			if !mark && ref != s.tail {
				_, succMark := ref.next[level].Load()
				require.False(t, succMark, "level %d: unmarked node points at a marked successor", level)
			}
			if ref == s.tail {
				break
			}
			curr = ref
		}
	}
}

// levelMembers returns the real values reachable by walking next[level]
// from head to tail.
func levelMembers(s *Set[int], level int) map[int]bool {
	members := make(map[int]bool)
	curr := s.head
	for {
		ref, _ := curr.next[level].Load()
		if ref == s.tail {
			break
		}
		members[ref.key.Value] = true
		curr = ref
	}
	return members
}

func TestTowerConsistencyAfterStorm(t *testing.T) {
	s := New[int](internalTestIntLess)
	const n = 20000

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s.Insert(i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i += 2 {
			s.Remove(i)
		}
	}()
	wg.Wait()

	forceFullCleanup(s, element.MaxEndpoint[int]())

	top := int(s.topLevel.Load())
	require.Greater(t, top, 1, "population too small to exercise multiple levels")

	for level := 1; level <= top; level++ {
		higher := levelMembers(s, level)
		lower := levelMembers(s, level-1)
		for v := range higher {
			require.True(t, lower[v], "value %d reachable at level %d but not at level %d", v, level, level-1)
		}
	}
}
