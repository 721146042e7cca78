// Package simsdk is the contract a simulation module implements to be
// driven by the hpcsim host (C8's plugin vtable, spec.md §6). It is the
// one piece of the host's world that a module author imports directly.
//
// The original ABI (_examples/original_source/SDK/simulation.h) is nine C
// function pointers resolved by name via dlsym, with EventRun the only
// mandatory one. Go's plugin package resolves a single exported symbol
// instead of nine, so the nine entry points become nine small optional
// interfaces plus one mandatory one, checked with a type assertion the way
// the standard library checks io.Closer/io.ReaderAt on an io.Reader: a
// module implements exactly the methods it needs and the host probes for
// the rest. This mirrors the original's "absent entries are no-ops"
// contract (spec.md §4.8) without needing nullable function pointers.
package simsdk

// Digest identifies one event; it is the 48-byte byte image of the Stream
// the host drew for that event, not a hash. Defined independently of
// internal/rng so that a simulation module (which must not import the
// host's internal packages) can still see the type of an event's ID.
type Digest [48]byte

// Host is what the host hands to EventRun: the calling worker's own
// Stream and result channel, scoped to the lifetime of exactly one
// EventRun call. Calling either method outside of EventRun is undefined,
// matching spec.md §4.8's "only valid while a worker is inside an event".
//
// The original SDK exposes RandU01/QueueResult as free functions that
// locate the calling thread's Stream via thread-local storage, because
// a C function pointer carries no context parameter. A Go interface value
// has no such restriction, so the host binds Host to the right Stream and
// passes it in explicitly -- see SPEC_FULL.md's note on this simplification.
type Host interface {
	// RandU01 returns the next uniform variate in (0,1) from the calling
	// event's Stream.
	RandU01() float64
	// QueueResult stamps payload with the calling event's digest and
	// enqueues it through the result pipe. payload must not exceed 2048
	// bytes; longer payloads are truncated to that length.
	QueueResult(payload []byte)
}

// EventRunner is the one mandatory entry point. EventRun performs the
// event: it draws from h as many times as the simulation needs and may
// call h.QueueResult any number of times, including zero.
type EventRunner interface {
	EventRun(h Host)
}

// SimulationIniter is called once, before any event, with pilot reporting
// whether the host is running in pilot dispatch mode (spec.md §4.9). A
// non-nil error aborts the run before any worker is spawned.
type SimulationIniter interface {
	SimulationInit(pilot bool) error
}

// RunIniter is called once, after SimulationInit, before any worker is
// spawned. A non-nil error aborts the run.
type RunIniter interface {
	RunInit() error
}

// PilotIniter is called once per worker in pilot dispatch mode, before
// that worker's first event. A non-nil error ends that worker's pilot
// without affecting other workers.
type PilotIniter interface {
	PilotInit() error
}

// EventIniter is called once per event, immediately before EventRun, under
// the pool's init-lock (spec.md §4.3 "Init-lock handoff"); this is the
// non-concurrent prelude the pool serializes across all workers. A non-nil
// error skips this event: no result is emitted and EventRun is not called.
type EventIniter interface {
	EventInit() error
}

// EventClearer is called once per event, after EventRun returns (whether
// or not EventRun queued a result).
type EventClearer interface {
	EventClear()
}

// PilotClearer is called once per worker in pilot dispatch mode, after that
// worker's last event.
type PilotClearer interface {
	PilotClear()
}

// ReduceResulter switches the host's writer/reducer (C5) into reduce mode:
// if present, the host calls ReduceResult for every queued record instead
// of persisting it to the output file, and opens no file of its own
// (spec.md §4.5).
type ReduceResulter interface {
	ReduceResult(outputPath string, id Digest, payload []byte)
}

// RunClearer is called once, after every worker has finished, before
// SimulationUnload.
type RunClearer interface {
	RunClear()
}

// SimulationUnloader is called once, last, immediately before the host
// unloads the plugin.
type SimulationUnloader interface {
	SimulationUnload()
}

// Symbol is the name a simulation module must export: a package-level
// variable of a type implementing at least EventRunner.
//
//	var Simulation simsdk.EventRunner = &mySim{}
const Symbol = "Simulation"
