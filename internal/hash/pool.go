// Package hash implements the hasher: a fixed-size worker pool that
// computes a content hash for every item's file, and a matching pool used
// to precompute a prior manifest's current destination hashes.
package hash

import (
	"sync"
	"time"

	"github.com/wolfire/ogda/internal/itemstore"
	"github.com/wolfire/ogda/internal/metrics"
	"github.com/wolfire/ogda/internal/pathutil"
)

// HashFunc computes a content hash for the file at path. Production callers
// pass pathutil.HashFile or, under --date-modified-hash, pathutil.HashMTime.
type HashFunc func(path string) (string, error)

// Pool is a fixed-size worker pool over a disjoint-index work list: each
// worker reads one file and writes its hash into a distinct slot, so no two
// workers ever address the same slot and no lock is required.
type Pool struct {
	Workers   int
	HashFn    HashFunc
	Surrogate bool
	Recorder  metrics.Recorder
}

// NewPool returns a Pool with workers clamped to at least 1 and a no-op
// Recorder when recorder is nil. surrogate labels metrics and should be true
// when hashFn is the --date-modified-hash mtime surrogate.
func NewPool(workers int, hashFn HashFunc, surrogate bool, recorder metrics.Recorder) *Pool {
	if workers < 1 {
		workers = 1
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Pool{Workers: workers, HashFn: hashFn, Surrogate: surrogate, Recorder: recorder}
}

// HashItems hashes every item in ids whose file is accessible, writing the
// result back into store via SetHash. Items whose file cannot be opened are
// left with an empty hash (FileMissing, diagnosed by the caller). Ordering
// guarantees: none beyond happens-before of the pool join.
func (p *Pool) HashItems(store *itemstore.Store, ids []itemstore.ItemId) {
	p.run(len(ids), func(i int) {
		id := ids[i]
		item := store.Get(id)
		hashValue, err := p.HashFn(item.AbsPath())
		p.Recorder.IncHashed(p.Surrogate)
		if err != nil {
			store.SetHash(id, "")
			return
		}
		store.SetHash(id, hashValue)
	})
}

// HashDestinations hashes the files presently at each of the given absolute
// destination paths, using the same worker-pool shape as HashItems. Missing
// destination files yield an empty hash at that slot.
func (p *Pool) HashDestinations(paths []string) []string {
	out := make([]string, len(paths))
	p.run(len(paths), func(i int) {
		hashValue, err := p.HashFn(paths[i])
		if err != nil {
			out[i] = ""
			return
		}
		out[i] = hashValue
	})
	return out
}

// run fans n independent index-addressed tasks out across p.Workers
// goroutines and blocks until every task has completed.
func (p *Pool) run(n int, task func(i int)) {
	if n == 0 {
		return
	}
	start := time.Now()
	workers := p.Workers
	if workers > n {
		workers = n
	}

	indices := make(chan int, n)
	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indices {
				task(i)
			}
		}()
	}
	wg.Wait()
	p.Recorder.ObserveHashDuration("pool", time.Since(start))
}

// SurrogateMode selects HashFile vs HashMTime per --date-modified-hash.
func SurrogateMode(dateModified bool) HashFunc {
	if dateModified {
		return pathutil.HashMTime
	}
	return pathutil.HashFile
}
