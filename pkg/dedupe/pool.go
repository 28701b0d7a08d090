package dedupe

import (
	"sync"

	"github.com/reapertools/clonereaper/pkg/hasher"
)

// hashBatch runs hashing tasks for disjoint paths over a bounded worker
// pool and drains the batch to completion. Workers only send results over
// the channel; the single collector below owns the result map.
func (e *Engine) hashBatch(paths []string, mode hasher.Mode) map[string]hasher.Result {
	results := make(map[string]hasher.Result, len(paths))
	if len(paths) == 0 {
		return results
	}

	var wg sync.WaitGroup
	workerSem := make(chan struct{}, e.workers)
	out := make(chan hasher.Result, len(paths))

	for _, path := range paths {
		wg.Add(1)
		workerSem <- struct{}{}

		go func(path string) {
			defer wg.Done()
			defer func() {
				<-workerSem
			}()

			out <- e.hasher.Compute(path, mode)
		}(path)
	}

	wg.Wait()
	close(out)

	for r := range out {
		if r.Unavailable() {
			e.log.WithError(r.Err).Warnf("Could not hash (%s): %q", mode, r.Path)
		}
		results[r.Path] = r
	}

	return results
}
