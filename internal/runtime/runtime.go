// Package runtime is the orchestrator (C9): it wires the plugin host,
// sequencer, worker pool, result pipe, writer and fault shell together for
// one run, in the order spec.md §2 describes -- load, init, optional
// checkpoint scan, spawn workers, tear down in reverse.
//
// Grounded on _examples/original_source/HPCsim/main.cpp's main(), which
// performs exactly this wiring in C.
package runtime

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/runningwild/hpcsim/internal/checkpoint"
	"github.com/runningwild/hpcsim/internal/faultshell"
	"github.com/runningwild/hpcsim/internal/plugin"
	"github.com/runningwild/hpcsim/internal/pool"
	"github.com/runningwild/hpcsim/internal/resultpipe"
	"github.com/runningwild/hpcsim/internal/rng"
	"github.com/runningwild/hpcsim/internal/writer"
	"github.com/runningwild/hpcsim/pkg/simsdk"
)

// simModule is the subset of *plugin.Module the orchestrator drives
// directly. Declared as an interface, rather than depending on
// *plugin.Module concretely, so tests can exercise runPerEvent/runPilot
// against a fake module without loading a real .so plugin.
type simModule interface {
	SimulationInit(pilot bool) error
	RunInit() error
	PilotInit() error
	EventInit() error
	EventRun(h simsdk.Host)
	EventClear()
	PilotClear()
	RunClear()
	SimulationUnload()
	HasReduceResult() bool
	ReduceResult(outputPath string, id simsdk.Digest, payload []byte)
}

// Config is the fully-resolved set of run parameters, after CLI parsing
// and manifest defaults have been applied (cmd/hpcsim's job).
type Config struct {
	SimPath    string
	Threads    int
	Events     int
	First      int
	Output     string
	Checkpoint bool

	// Pilot selects the pilot dispatch mode of spec.md §4.9: events are
	// distributed into N chunks, one per worker, instead of one worker per
	// event. spec.md §6 names no CLI flag for this, so cmd/hpcsim selects
	// it from the HPCSIM_PILOT environment variable, the nearest Go
	// equivalent of the source's compile-time #ifdef USE_PILOT_THREAD
	// choice.
	Pilot bool
}

// ResolveThreads turns the CLI's "a" sentinel into runtime.NumCPU() and
// coerces 0 to 1, per spec.md §6.
func ResolveThreads(raw string) (int, error) {
	if raw == "a" {
		return runtime.NumCPU(), nil
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid --threads value %q", raw)
	}
	if n == 0 {
		n = 1
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid --threads value %q", raw)
	}
	return n, nil
}

// Result summarizes one run for cmd/hpcsim's final report.
type Result struct {
	EventsRun     int
	EventsSkipped int
	Stats         *writer.Stats
}

// Run executes one full host lifecycle against cfg. It is the single
// entry point cmd/hpcsim calls.
func Run(cfg Config) (*Result, error) {
	var mod simModule
	loaded, err := plugin.Load(cfg.SimPath)
	if err != nil {
		return nil, err // Plugin-load: caller prints and exits, per spec.md §7
	}
	mod = loaded

	if err := mod.SimulationInit(cfg.Pilot); err != nil {
		return nil, fmt.Errorf("simulation init: %w", err)
	}
	if err := mod.RunInit(); err != nil {
		return nil, fmt.Errorf("run init: %w", err)
	}

	seq := rng.NewSequencer()
	seq.AdvanceStream(uint64(cfg.First))

	remaining := cfg.Events
	if cfg.Checkpoint {
		remaining, err = checkpoint.Scan(cfg.Output, seq, remaining)
		if err != nil {
			return nil, fmt.Errorf("checkpoint scan: %w", err)
		}
	}
	skipped := cfg.Events - remaining

	shell := faultshell.New()
	defer shell.Close()

	p := pool.New()
	if err := p.Configure(cfg.Threads); err != nil {
		return nil, fmt.Errorf("pool configure: %w", err)
	}

	pipe := resultpipe.New(cfg.Threads)

	var reducer writer.Reducer
	if mod.HasReduceResult() {
		reducer = mod
	}

	writeDone := make(chan struct{})
	var stats *writer.Stats
	var writeErr error
	go func() {
		defer close(writeDone)
		stats, writeErr = writer.Run(pipe, cfg.Output, cfg.Checkpoint, reducer, shell)
	}()

	var eventsRun int
	if cfg.Pilot {
		eventsRun = runPilot(p, seq, pipe, mod, shell, cfg.Threads, remaining)
	} else {
		eventsRun = runPerEvent(p, seq, pipe, mod, shell, remaining)
	}

	p.WaitAll()
	p.Shutdown()
	pipe.SendSentinel()
	<-writeDone
	if writeErr != nil {
		return nil, fmt.Errorf("writer: %w", writeErr)
	}

	mod.RunClear()
	mod.SimulationUnload()

	return &Result{EventsRun: eventsRun, EventsSkipped: skipped, Stats: stats}, nil
}

// runOneEvent performs one event's guarded lifecycle: EventInit under the
// init-lock, release, then EventRun and EventClear. Returns whether the
// event produced a fault in EventRun/EventClear, which in pilot mode ends
// that worker's remaining events (spec.md §4.7).
func runOneEvent(seq *rng.Sequencer, pipe *resultpipe.Pipe, mod simModule, shell *faultshell.Shell, release pool.Release) (ranEventRun bool, faultedAfterInit bool) {
	stream := rng.New(seq)

	var initErr error
	initOutcome := shell.Guard(func() {
		initErr = mod.EventInit()
	})
	release()

	if initOutcome.Faulted || initErr != nil {
		// Per-event init failure: skip this event, no result emitted
		// (spec.md §7).
		return false, false
	}

	host := &plugin.WorkerHost{Stream: stream, Pipe: pipe}
	runOutcome := shell.Guard(func() {
		mod.EventRun(host)
	})
	clearOutcome := shell.Guard(func() {
		mod.EventClear()
	})
	return true, runOutcome.Faulted || clearOutcome.Faulted
}

// runPerEvent implements spec.md §4.9's per-event dispatch mode: one
// Spawn per event, one event per worker.
func runPerEvent(p *pool.Pool, seq *rng.Sequencer, pipe *resultpipe.Pipe, mod simModule, shell *faultshell.Shell, count int) int {
	var run atomic.Int64
	for i := 0; i < count; i++ {
		err := p.Spawn(func(slot int, release pool.Release) {
			ran, _ := runOneEvent(seq, pipe, mod, shell, release)
			if ran {
				run.Add(1)
			}
		})
		if err != nil {
			// Pool shutting down or an internal invariant violation; either
			// way there is nothing more this orchestrator can schedule.
			break
		}
	}
	p.WaitAll()
	return int(run.Load())
}

// chunks splits count events across threads workers, giving the remainder
// one-per-thread to the lowest-indexed workers and never to an unused
// slot, per spec.md §4.9.
func chunks(count, threads int) []int {
	base := count / threads
	extra := count % threads
	out := make([]int, threads)
	for i := range out {
		out[i] = base
		if i < extra {
			out[i]++
		}
	}
	return out
}

// runPilot implements spec.md §4.9's pilot dispatch mode: each worker
// receives one chunk and loops PilotInit, then EventInit/EventRun/
// EventClear per event, then PilotClear. One worker is spawned per thread
// regardless of chunk size -- including a chunk of zero events -- so that
// PilotInit/PilotClear always run once per configured thread, matching
// testable property 6's "total thread creations equals ... total pilots
// (pilot mode) plus one writer" even when --events < --threads.
func runPilot(p *pool.Pool, seq *rng.Sequencer, pipe *resultpipe.Pipe, mod simModule, shell *faultshell.Shell, threads, count int) int {
	var run atomic.Int64
	sizes := chunks(count, threads)
	for _, n := range sizes {
		err := p.Spawn(func(slot int, release pool.Release) {
			// PilotInit runs under the same init-lock that serializes
			// EventInit, handed off from Spawn -- grounded on
			// TThreadsFactory.cpp's CreateThread acquiring fInitLock
			// before pthread_create, and main.cpp's pilot branch only
			// releasing it on PilotInit failure or after the first
			// successful EventInit.
			var pilotInitErr error
			pilotInitOutcome := shell.Guard(func() {
				pilotInitErr = mod.PilotInit()
			})
			release()

			if pilotInitOutcome.Faulted || pilotInitErr != nil {
				return // fault or error outside EventInit/EventRun/EventClear aborts this worker's pilot
			}

			for i := 0; i < n; i++ {
				stream := rng.New(seq)

				p.LockInit()
				var initErr error
				initOutcome := shell.Guard(func() {
					initErr = mod.EventInit()
				})
				p.UnlockInit()

				if initOutcome.Faulted || initErr != nil {
					continue
				}

				host := &plugin.WorkerHost{Stream: stream, Pipe: pipe}
				runOutcome := shell.Guard(func() {
					mod.EventRun(host)
				})
				clearOutcome := shell.Guard(func() {
					mod.EventClear()
				})
				run.Add(1)
				if runOutcome.Faulted || clearOutcome.Faulted {
					break // fault in EventRun/EventClear ends this pilot
				}
			}

			shell.Guard(func() {
				mod.PilotClear()
			})
		})
		if err != nil {
			break
		}
	}
	p.WaitAll()
	return int(run.Load())
}
