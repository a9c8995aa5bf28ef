package sim

import (
	"context"
	"runtime"
	"sync"
)

// Factory builds an independent simulator for ensemble run i. Implementations
// typically perturb the initial condition by the run index. Engines built by
// the factory must not share a System, since a run freezes it.
type Factory func(run int) (*Simulator, error)

// Ensemble executes N independent runs on a bounded worker pool.
type Ensemble struct {
	factory Factory
	runs    int
	workers int
}

func NewEnsemble(factory Factory, runs int) *Ensemble {
	return &Ensemble{factory: factory, runs: runs, workers: runtime.NumCPU()}
}

// SetWorkers caps the pool; values below one restore the CPU-count default.
func (e *Ensemble) SetWorkers(n int) {
	if n < 1 {
		n = runtime.NumCPU()
	}
	e.workers = n
}

// Run executes all runs and returns their results by run index. The first
// run error is returned alongside the results that did complete; cancelling
// the context stops the pool between steps.
func (e *Ensemble) Run(ctx context.Context, cfg RunConfig) ([]*Result, error) {
	return e.RunWith(ctx, func(int) RunConfig { return cfg })
}

// RunWith is Run with a per-run configuration, for attaching per-run metric
// instances or perturbed controllers. The callback may be invoked from pool
// goroutines and must be safe for concurrent use.
func (e *Ensemble) RunWith(ctx context.Context, cfg func(run int) RunConfig) ([]*Result, error) {
	results := make([]*Result, e.runs)
	errs := make([]error, e.runs)

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := e.workers
	if workers > e.runs {
		workers = e.runs
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				sim, err := e.factory(i)
				if err != nil {
					errs[i] = err
					continue
				}
				results[i], errs[i] = sim.Run(ctx, cfg(i))
			}
		}()
	}

	for i := 0; i < e.runs; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
