// Package faultshell implements the fault-containment shell (C7): a
// guarded region that catches a crash inside foreign simulation code and
// converts it into a local, catchable escape rather than taking down the
// whole host.
//
// The original HPCsim (_examples/original_source/HPCsim/Exceptions.h/.cpp)
// loads simulation code as native machine code via dlopen, so a crash there
// arrives as a process signal (SIGSEGV, SIGBUS, ...) caught by a
// process-wide sigaction handler that longjmps back into the guard via a
// thread-local jmp_buf. Go plugins (pkg/simsdk) are ordinary Go values
// executing on the host's own goroutines, so the equivalent "foreign code
// misbehaved" signal is a Go panic, which recover() catches directly — no
// non-local jump or thread-local jmp_buf needs reinventing. We still follow
// the original's second half faithfully: a process-wide signal handler
// (installed via os/signal, with golang.org/x/sys/unix supplying the named
// signal constants, matching the teacher's own use of x/sys/unix for OS
// constants in pkg/engine/uring.go) stands ready for a genuine native
// crash reaching the process from outside Go's own panic machinery, and a
// magic-sentinel self-raise distinguishes a deliberate escape from a real
// one, exactly as Exceptions.cpp's SignalHandler checks si_int against
// HPCSIM_MAGIC_MARKER.
package faultshell

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"

	"golang.org/x/sys/unix"
)

// backtraceScratchSize mirrors the 256-entry backtrace scratch buffer named
// in spec.md §5.
const backtraceScratchSize = 256

// fault is the typed panic value used by both a foreign panic escaping a
// guarded call and a deliberate Raise. selfRaised distinguishes the two,
// exactly as HPCSIM_MAGIC_MARKER does in the source.
type fault struct {
	reason     string
	selfRaised bool
}

// Raise performs a deliberate escape out of the current guarded region, the
// Go-idiomatic replacement for the original's sigqueue(SIGSEGV,
// HPCSIM_MAGIC_MARKER) self-raise. Must only be called from within a
// function passed to Guard.
func Raise(reason string) {
	panic(&fault{reason: reason, selfRaised: true})
}

// Outcome reports what happened inside a guarded call.
type Outcome struct {
	Faulted    bool
	SelfRaised bool
	Reason     string
}

// Shell owns the process-wide resources a guarded region needs: the
// backtrace-printing mutex (serializing diagnostic output the way
// Exceptions.cpp's gHandlerLock does) and the OS signal watcher for faults
// that arrive from outside Go's own panic/recover path.
type Shell struct {
	mu sync.Mutex // serializes backtrace printing, mirrors gHandlerLock

	sigCh  chan os.Signal
	stopCh chan struct{}
}

// fatalSignals is the set the original shell converts into a guarded
// escape: illegal instruction, bus error, arithmetic exception,
// segmentation violation, bad syscall, abort, and the CPU/file-size
// resource-limit signals, per spec.md §4.7.
var fatalSignals = []os.Signal{
	unix.SIGILL,
	unix.SIGBUS,
	unix.SIGFPE,
	unix.SIGSEGV,
	unix.SIGSYS,
	unix.SIGABRT,
	unix.SIGXCPU,
	unix.SIGXFSZ,
}

// New installs the process-wide signal watcher and returns a ready Shell.
// There is normally exactly one Shell per process, owned by the runtime
// orchestrator (C9).
func New() *Shell {
	s := &Shell{
		sigCh:  make(chan os.Signal, 1),
		stopCh: make(chan struct{}),
	}
	signal.Notify(s.sigCh, fatalSignals...)
	go s.watch()
	return s
}

// watch prints a diagnostic for any of the fatal signals that reaches the
// process outside of a Go panic (e.g. delivered to a cgo call inside a
// plugin, or a genuine Go runtime-fatal condition the scheduler can't turn
// into a recoverable panic). Go cannot resume the faulting goroutine from
// here the way the original longjmps back into the guard -- a signal that
// reaches this far is, by construction, one Go's own panic/recover could
// not intercept, so the most a handler can do is log and let the process
// die. This is noted explicitly rather than pretended away.
func (s *Shell) watch() {
	for {
		select {
		case sig := <-s.sigCh:
			s.mu.Lock()
			fmt.Fprintf(os.Stderr, "hpcsim: fatal signal %v reached the process outside any guarded region\n", sig)
			s.mu.Unlock()
			// Restore the default disposition and re-deliver the signal so
			// it takes its normal, fatal effect.
			signal.Reset(sig)
			if us, ok := sig.(unix.Signal); ok {
				_ = unix.Kill(unix.Getpid(), us)
			}
		case <-s.stopCh:
			return
		}
	}
}

// Close stops the signal watcher.
func (s *Shell) Close() {
	signal.Stop(s.sigCh)
	close(s.stopCh)
}

// Guard runs fn, catching both a deliberate Raise and any other panic
// (standing in for a foreign crash) without letting it escape past Guard.
// On a non-self-raised fault, a diagnostic is printed under the shell's
// mutex before returning, mirroring Exceptions.cpp's backtrace-under-lock
// behavior (Go's runtime/debug.Stack is the memory-safe analogue of
// backtrace_symbols, and unlike the original's comment about that function
// being signal-unsafe, debug.Stack is plain heap-allocating Go code run
// from an ordinary deferred recover, not from inside a signal handler, so
// the original's documented risk does not apply here).
func (s *Shell) Guard(fn func()) (outcome Outcome) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if f, ok := r.(*fault); ok {
			outcome = Outcome{Faulted: true, SelfRaised: f.selfRaised, Reason: f.reason}
			if !f.selfRaised {
				s.printDiagnostic(f.reason)
			}
			return
		}
		// An ordinary Go panic from foreign plugin code: treat exactly like a
		// non-self-raised fault.
		reason := fmt.Sprintf("%v", r)
		outcome = Outcome{Faulted: true, SelfRaised: false, Reason: reason}
		s.printDiagnostic(reason)
	}()
	fn()
	return Outcome{}
}

func (s *Shell) printDiagnostic(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(os.Stderr, "hpcsim: Oops! Something went wrong in the simulation library: %s\n", reason)
	os.Stderr.Write(debug.Stack())
}
