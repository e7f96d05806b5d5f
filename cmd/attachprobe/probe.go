package main

import (
	"runtime"
	"sync"
	"time"

	"github.com/wippyai/jvm-attach/env"
	"github.com/wippyai/jvm-attach/vm"
)

type probeConfig struct {
	threads       int
	rounds        int
	suppressEvery int
}

type workerResult struct {
	err       error
	completed int
	pinned    bool
}

type report struct {
	source  string
	workers []workerResult
	stats   vm.Stats
	elapsed time.Duration
}

// probe runs cfg.rounds Perform calls on each of cfg.threads pinned OS
// threads. Every action nests a second Perform, which must reuse the
// attachment of the outer one.
func probe(machine *vm.VM, cfg probeConfig) *report {
	rep := &report{workers: make([]workerResult, cfg.threads)}
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < cfg.threads; i++ {
		wg.Add(1)
		go func(res *workerResult) {
			defer wg.Done()
			// Never unlocked: a thread left attached is discarded with the goroutine.
			runtime.LockOSThread()

			for r := 1; r <= cfg.rounds; r++ {
				suppress := cfg.suppressEvery > 0 && r%cfg.suppressEvery == 0
				err := machine.Perform(func(e *env.Env) error {
					if suppress {
						machine.PreventDetachDueToClassLoader()
						res.pinned = true
					}
					return e.Perform(func(*env.Env) error { return nil })
				})
				if err != nil {
					res.err = err
					return
				}
				res.completed++
			}
		}(&rep.workers[i])
	}
	wg.Wait()

	rep.elapsed = time.Since(start)
	rep.stats = machine.Stats()
	return rep
}

func (r *report) failures() int {
	n := 0
	for _, w := range r.workers {
		if w.err != nil {
			n++
		}
	}
	return n
}

func (r *report) failed() bool {
	return r.failures() > 0
}
