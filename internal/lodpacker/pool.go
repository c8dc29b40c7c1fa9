package lodpacker

import (
	"sync"
	"time"

	"github.com/sogforge/sogforge/internal/sogwriter"
	"github.com/sogforge/sogforge/pkg/splat"
)

// pollInterval is how often a saturated or paused pool re-checks the
// backpressure controller before admitting the next unit, per spec §5's
// back-pressure description.
const pollInterval = 5 * time.Millisecond

// writeUnits drains p.allUnits through a bounded worker pool, each worker
// sorting, permuting and quantizing-writing one file unit. Concurrency is
// governed by a BackpressureController (queue.go) rather than a bare
// semaphore: a unit whose write fails counts against the failure rate, and
// the controller shrinks the allowed concurrency when storage is degraded.
// Admission also asks ShouldPause, passing the in-flight count; that count
// stays below the worker count (the controller's maximum), so it never
// triggers a pause here.
func (p *packer) writeUnits(table *splat.Table, factory SinkFactory, opts Options) ([]string, error) {
	if len(p.allUnits) == 0 {
		return nil, nil
	}

	workers := opts.WorkerCount
	if workers <= 0 {
		workers = 1
	}

	cfg := DefaultBackpressureConfig()
	cfg.MaxConcurrency = workers
	cfg.MinConcurrency = 1
	bp := NewBackpressureController(cfg)

	filenames := make([]string, len(p.allUnits))
	errs := make([]error, len(p.allUnits))

	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inFlight int
	)

	worker := func() {
		defer wg.Done()
		for idx := range jobs {
			name, err := p.writeOneUnit(table, factory, opts, p.allUnits[idx])

			mu.Lock()
			filenames[idx] = name
			errs[idx] = err
			inFlight--
			mu.Unlock()

			if err != nil {
				bp.RecordFailure()
			} else {
				bp.RecordSuccess()
			}
			bp.AdjustConcurrency()
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

	for idx := range p.allUnits {
		for {
			mu.Lock()
			allowed := bp.Concurrency()
			if allowed < 1 {
				allowed = 1
			}
			if inFlight < allowed && !bp.ShouldPause(inFlight) {
				inFlight++
				mu.Unlock()
				break
			}
			mu.Unlock()
			time.Sleep(pollInterval)
		}
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return filenames, nil
}

// writeOneUnit sorts a file unit's sublists, permutes the source table by the
// result, and runs the quantizing writer over the sub-table, per spec §4.11
// step 5. When opts.Scratch is set, the permuted sub-table is spilled to
// disk and then loaded straight back by the same worker before the unit's
// sink is created, so the write still works from an in-memory table.
func (p *packer) writeOneUnit(table *splat.Table, factory SinkFactory, opts Options, u *unit) (string, error) {
	order, err := sortUnitIndices(table, u.sublists)
	if err != nil {
		return "", err
	}
	sub, err := table.Permute(order)
	if err != nil {
		return "", err
	}

	name := unitName(u.lod, u.fileIndex)

	if opts.Scratch != nil {
		if err := opts.Scratch.Spill(name, sub); err != nil {
			return "", err
		}
		sub = nil
		sub, err = opts.Scratch.Load(name)
		if err != nil {
			return "", err
		}
	}

	sink, err := factory.Create(name)
	if err != nil {
		return "", err
	}
	if _, err := sogwriter.Write(sub, sink, opts.Writer); err != nil {
		sink.Close()
		return "", err
	}
	if err := sink.Close(); err != nil {
		return "", err
	}
	return name, nil
}
