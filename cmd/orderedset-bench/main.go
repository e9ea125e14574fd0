// Command orderedset-bench is a small CLI harness for the lock-free
// ordered-set library: it fans worker goroutines out over disjoint
// sub-ranges of a key space to insert, then remove, then re-probes the
// whole space to validate ordering and absence of duplicates. Worker count
// (default 4) and key range (default 50000) are both clamped to positive.
//
// Usage:
//
//	orderedset-bench [-backend=ll|sl] [-workload=ascending|uniform|zipfian] [workers] [keyrange]
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lockfreeset/lockfreeset"
	"github.com/lockfreeset/lockfreeset/internal/bench"
)

const (
	defaultWorkers  = 4
	defaultKeyRange = 50000
)

func main() {
	backendFlag := flag.String("backend", "sl", "back-end to exercise: ll (linked list) or sl (skip list)")
	workloadFlag := flag.String("workload", "ascending", "key distribution for the insert phase: ascending, uniform, or zipfian")
	flag.Parse()

	workers := bench.ClampPositive(intArg(flag.Arg(0)), defaultWorkers)
	keyRange := bench.ClampPositive(intArg(flag.Arg(1)), defaultKeyRange)

	backend := lockfreeset.SkipListBackend
	if *backendFlag == "ll" {
		backend = lockfreeset.LinkedListBackend
	}

	if err := run(backend, *workloadFlag, workers, keyRange); err != nil {
		fmt.Fprintln(os.Stderr, "orderedset-bench:", err)
		os.Exit(1)
	}
}

func intArg(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func run(backend lockfreeset.Backend, workload string, workers, keyRange int) error {
	lg := bench.NewLogger()
	lg.Printf("workers=%d keyrange=%d backend=%v workload=%s", workers, keyRange, backend, workload)

	set := lockfreeset.New[int](backend, func(a, b int) bool { return a < b })
	defer set.Destroy()

	start := time.Now()
	if err := insertPhase(set, workers, keyRange, workload); err != nil {
		return err
	}
	lg.Printf("insert phase done in %s, size=%d", bench.FormatDuration(time.Since(start)), set.Size())

	probe := keyRange / 2
	lg.Printf("contains(%d)=%t contains(%d)=%t", probe, set.Contains(probe), keyRange, set.Contains(keyRange))

	start = time.Now()
	if err := removePhase(set, workers, keyRange/2); err != nil {
		return err
	}
	lg.Printf("remove phase done in %s, size=%d", bench.FormatDuration(time.Since(start)), set.Size())

	if !validate(set, keyRange) {
		return fmt.Errorf("post-quiescence validation failed")
	}
	lg.Printf("validation passed")
	return nil
}

// insertPhase fans workers goroutines out over disjoint sub-ranges of
// [0, keyRange), joined with an errgroup.
func insertPhase(set lockfreeset.Set[int], workers, keyRange int, workload string) error {
	g, _ := errgroup.WithContext(context.Background())
	chunk := keyRange / workers

	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if w == workers-1 {
			hi = keyRange
		}
		seed := int64(w+1) * 1_000_003

		g.Go(func() error {
			for _, v := range keysForWorkload(workload, lo, hi, seed) {
				set.Insert(v)
			}
			return nil
		})
	}
	return g.Wait()
}

// keysForWorkload materializes the sequence of keys one worker inserts,
// under one of three key distributions: ascending, uniform random, or
// Zipfian (skewed toward the low end of the sub-range).
func keysForWorkload(workload string, lo, hi int, seed int64) []int {
	n := hi - lo
	if n <= 0 {
		return nil
	}
	keys := make([]int, n)

	switch workload {
	case "uniform":
		r := rand.New(rand.NewSource(seed))
		for i := range keys {
			keys[i] = lo + r.Intn(n)
		}
	case "zipfian":
		r := rand.New(rand.NewSource(seed))
		z := rand.NewZipf(r, 1.2, 1, uint64(n-1))
		for i := range keys {
			keys[i] = lo + int(z.Uint64())
		}
	default: // ascending
		for i := range keys {
			keys[i] = lo + i
		}
	}
	return keys
}

// removePhase sweeps [0, n) fanned out across workers goroutines on
// disjoint sub-ranges.
func removePhase(set lockfreeset.Set[int], workers, n int) error {
	g, _ := errgroup.WithContext(context.Background())
	chunk := n / workers
	if chunk == 0 {
		chunk = n
		workers = 1
	}

	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if w == workers-1 {
			hi = n
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				set.Remove(i)
			}
			return nil
		})
	}
	return g.Wait()
}

// validate re-probes the key space after quiescence and checks that every
// present key is reported in strictly ascending order, with no repeats.
func validate(set lockfreeset.Set[int], keyRange int) bool {
	prev := -1
	seenAny := false
	for i := 0; i < keyRange; i++ {
		if !set.Contains(i) {
			continue
		}
		seenAny = true
		if i <= prev {
			return false
		}
		prev = i
	}
	return seenAny || set.Size() == 0
}
