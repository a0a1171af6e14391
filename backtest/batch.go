package backtest

import (
	"context"
	"sort"
	"sync"
)

// BatchResult pairs a named run with its outcome.
type BatchResult struct {
	Name   string
	Result Result
	Err    error
}

// RunBatch executes independent runs concurrently. Each runner must own an
// isolated Portfolio and Feed; the only merge point is the returned slice,
// ordered by name. Within a run the day loop stays strictly sequential.
func RunBatch(ctx context.Context, runners map[string]*Runner) []BatchResult {
	out := make([]BatchResult, 0, len(runners))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, r := range runners {
		wg.Add(1)
		go func(name string, r *Runner) {
			defer wg.Done()
			res, err := r.Run(ctx)

			mu.Lock()
			out = append(out, BatchResult{Name: name, Result: res, Err: err})
			mu.Unlock()
		}(name, r)
	}
	wg.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
