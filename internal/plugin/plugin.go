// Package plugin is the host side of C8 (PluginHost): it loads a
// simulation module, resolves its optional lifecycle entry points against
// pkg/simsdk, and drives RandU01/QueueResult on the module's behalf.
//
// Grounded on _examples/original_source/HPCsim/main.cpp's
// LoadAndSetSimulationFunction macro (dlopen + dlsym of nine named symbols,
// each independently allowed to be absent), translated to Go's plugin.Open
// + a single Lookup plus the optional-interface pattern described in
// pkg/simsdk.
package plugin

import (
	"fmt"
	"plugin"

	"github.com/runningwild/hpcsim/internal/rng"
	"github.com/runningwild/hpcsim/internal/resultpipe"
	"github.com/runningwild/hpcsim/pkg/simsdk"
)

// Module is a loaded simulation module with its lifecycle entry points
// resolved. The zero value is not usable; construct with Load.
type Module struct {
	sim simsdk.EventRunner // mandatory; every optional interface below is checked against this same value

	simInit   simsdk.SimulationIniter
	runInit   simsdk.RunIniter
	pilotInit simsdk.PilotIniter
	evtInit   simsdk.EventIniter
	evtClear  simsdk.EventClearer
	pilotClr  simsdk.PilotClearer
	reducer   simsdk.ReduceResulter
	runClear  simsdk.RunClearer
	unloader  simsdk.SimulationUnloader
}

// Load opens the plugin at path and resolves its exported Simulation
// symbol. Fails if the symbol is absent or does not implement
// simsdk.EventRunner -- the one mandatory entry point per spec.md §4.8.
func Load(path string) (*Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: open %s: %w", path, err)
	}
	sym, err := p.Lookup(simsdk.Symbol)
	if err != nil {
		return nil, fmt.Errorf("plugin: lookup %s in %s: %w", simsdk.Symbol, path, err)
	}

	// Lookup returns a pointer to the symbol's value; a package-level
	// variable typed as an interface surfaces here as *interface{}-shaped
	// value through that pointer, so dereference before asserting.
	val, err := indirectToInterface(sym)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s in %s: %w", simsdk.Symbol, path, err)
	}

	runner, ok := val.(simsdk.EventRunner)
	if !ok {
		return nil, fmt.Errorf("plugin: %s in %s does not implement EventRun", simsdk.Symbol, path)
	}

	m := &Module{sim: runner}
	m.simInit, _ = val.(simsdk.SimulationIniter)
	m.runInit, _ = val.(simsdk.RunIniter)
	m.pilotInit, _ = val.(simsdk.PilotIniter)
	m.evtInit, _ = val.(simsdk.EventIniter)
	m.evtClear, _ = val.(simsdk.EventClearer)
	m.pilotClr, _ = val.(simsdk.PilotClearer)
	m.reducer, _ = val.(simsdk.ReduceResulter)
	m.runClear, _ = val.(simsdk.RunClearer)
	m.unloader, _ = val.(simsdk.SimulationUnloader)
	return m, nil
}

// HasReduceResult reports whether the module chose reduce mode for the
// writer (C5): a module exporting ReduceResult receives every record
// directly and the host persists nothing.
func (m *Module) HasReduceResult() bool {
	return m.reducer != nil
}

// SimulationInit calls the module's optional SimulationInit, or returns nil
// if absent.
func (m *Module) SimulationInit(pilot bool) error {
	if m.simInit == nil {
		return nil
	}
	return m.simInit.SimulationInit(pilot)
}

// RunInit calls the module's optional RunInit, or returns nil if absent.
func (m *Module) RunInit() error {
	if m.runInit == nil {
		return nil
	}
	return m.runInit.RunInit()
}

// PilotInit calls the module's optional PilotInit, or returns nil if absent.
func (m *Module) PilotInit() error {
	if m.pilotInit == nil {
		return nil
	}
	return m.pilotInit.PilotInit()
}

// EventInit calls the module's optional EventInit, or returns nil if absent.
func (m *Module) EventInit() error {
	if m.evtInit == nil {
		return nil
	}
	return m.evtInit.EventInit()
}

// EventRun calls the module's mandatory EventRun.
func (m *Module) EventRun(h simsdk.Host) {
	m.sim.EventRun(h)
}

// EventClear calls the module's optional EventClear, a no-op if absent.
func (m *Module) EventClear() {
	if m.evtClear != nil {
		m.evtClear.EventClear()
	}
}

// PilotClear calls the module's optional PilotClear, a no-op if absent.
func (m *Module) PilotClear() {
	if m.pilotClr != nil {
		m.pilotClr.PilotClear()
	}
}

// ReduceResult calls the module's ReduceResult. Only valid if
// HasReduceResult reports true.
func (m *Module) ReduceResult(outputPath string, id simsdk.Digest, payload []byte) {
	m.reducer.ReduceResult(outputPath, id, payload)
}

// RunClear calls the module's optional RunClear, a no-op if absent.
func (m *Module) RunClear() {
	if m.runClear != nil {
		m.runClear.RunClear()
	}
}

// SimulationUnload calls the module's optional SimulationUnload, a no-op if
// absent.
func (m *Module) SimulationUnload() {
	if m.unloader != nil {
		m.unloader.SimulationUnload()
	}
}

// WorkerHost binds a simsdk.Host to one worker's Stream and the shared
// result pipe, for the duration of exactly one EventRun call. Grounded on
// main.cpp's RandU01/QueueResult extern "C" functions, which did the same
// binding through thread-local storage; here it is just a short-lived
// value instead, per SPEC_FULL.md's Host-parameter simplification.
type WorkerHost struct {
	Stream *rng.Stream
	Pipe   *resultpipe.Pipe
}

// RandU01 implements simsdk.Host.
func (h *WorkerHost) RandU01() float64 {
	return h.Stream.Draw()
}

// QueueResult implements simsdk.Host. Payload longer than resultpipe's
// MaxPayload is truncated; it is never stored past that width on disk
// either, per spec.md §3.
func (h *WorkerHost) QueueResult(payload []byte) {
	var rec resultpipe.Record
	rec.ID = h.Stream.Digest()
	n := len(payload)
	if n > resultpipe.MaxPayload {
		n = resultpipe.MaxPayload
	}
	rec.Length = uint32(n)
	copy(rec.Payload[:n], payload[:n])
	h.Pipe.Send(rec)
}

// indirectToInterface dereferences the pointer plugin.Lookup returns for a
// symbol declared as an interface-typed package variable.
func indirectToInterface(sym plugin.Symbol) (interface{}, error) {
	ptr, ok := sym.(*simsdk.EventRunner)
	if ok {
		return *ptr, nil
	}
	// Fall back to a generic interface{} pointer for modules that declared
	// their exported symbol with a wider static type.
	if anyPtr, ok := sym.(*interface{}); ok {
		return *anyPtr, nil
	}
	return nil, fmt.Errorf("unexpected symbol type %T", sym)
}
