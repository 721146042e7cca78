package runtime

import (
	"sync"
	"testing"

	"github.com/runningwild/hpcsim/internal/faultshell"
	"github.com/runningwild/hpcsim/internal/pool"
	"github.com/runningwild/hpcsim/internal/resultpipe"
	"github.com/runningwild/hpcsim/internal/rng"
	"github.com/runningwild/hpcsim/pkg/simsdk"
)

// fakeModule is a simModule stand-in that lets tests drive runPerEvent and
// runPilot end-to-end without loading a real plugin.
type fakeModule struct {
	mu          sync.Mutex
	pilotInits  int
	pilotClears int
	eventRuns   int
}

func (f *fakeModule) SimulationInit(pilot bool) error { return nil }
func (f *fakeModule) RunInit() error                  { return nil }

func (f *fakeModule) PilotInit() error {
	f.mu.Lock()
	f.pilotInits++
	f.mu.Unlock()
	return nil
}

func (f *fakeModule) EventInit() error { return nil }

func (f *fakeModule) EventRun(h simsdk.Host) {
	f.mu.Lock()
	f.eventRuns++
	f.mu.Unlock()
	_ = h.RandU01()
	h.QueueResult([]byte{1})
}

func (f *fakeModule) EventClear() {}

func (f *fakeModule) PilotClear() {
	f.mu.Lock()
	f.pilotClears++
	f.mu.Unlock()
}

func (f *fakeModule) RunClear()            {}
func (f *fakeModule) SimulationUnload()    {}
func (f *fakeModule) HasReduceResult() bool { return false }
func (f *fakeModule) ReduceResult(outputPath string, id simsdk.Digest, payload []byte) {}

func TestChunksDistributesRemainderToLowestIndices(t *testing.T) {
	tests := []struct {
		count, threads int
		want           []int
	}{
		{10, 3, []int{4, 3, 3}},
		{9, 3, []int{3, 3, 3}},
		{1, 4, []int{1, 0, 0, 0}},
		{0, 4, []int{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		got := chunks(tt.count, tt.threads)
		if len(got) != len(tt.want) {
			t.Fatalf("chunks(%d,%d) len = %d, want %d", tt.count, tt.threads, len(got), len(tt.want))
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("chunks(%d,%d)[%d] = %d, want %d", tt.count, tt.threads, i, got[i], tt.want[i])
			}
		}
		sum := 0
		for _, n := range got {
			sum += n
		}
		if sum != tt.count {
			t.Errorf("chunks(%d,%d) sums to %d, want %d", tt.count, tt.threads, sum, tt.count)
		}
	}
}

func TestResolveThreadsAutoAndZeroCoercion(t *testing.T) {
	auto, err := ResolveThreads("a")
	if err != nil {
		t.Fatalf("ResolveThreads(a): %v", err)
	}
	if auto < 1 {
		t.Errorf("ResolveThreads(a) = %d, want >= 1", auto)
	}

	zero, err := ResolveThreads("0")
	if err != nil {
		t.Fatalf("ResolveThreads(0): %v", err)
	}
	if zero != 1 {
		t.Errorf("ResolveThreads(0) = %d, want 1 (coerced)", zero)
	}

	four, err := ResolveThreads("4")
	if err != nil {
		t.Fatalf("ResolveThreads(4): %v", err)
	}
	if four != 4 {
		t.Errorf("ResolveThreads(4) = %d, want 4", four)
	}

	if _, err := ResolveThreads("bogus"); err == nil {
		t.Error("expected error for non-numeric threads value")
	}
}

// drainUntilSentinel reads records off pipe, counting non-sentinel ones,
// until it observes the sentinel, then signals done.
func drainUntilSentinel(pipe *resultpipe.Pipe, count *int, done chan<- struct{}) {
	for {
		rec := pipe.Recv()
		if rec.IsSentinel() {
			close(done)
			return
		}
		*count++
	}
}

func TestRunPilotSpawnsOneWorkerPerThreadEvenWithFewerEventsThanThreads(t *testing.T) {
	const threads = 4
	const events = 2 // fewer events than threads: two chunks end up empty

	p := pool.New()
	if err := p.Configure(threads); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	pipe := resultpipe.New(threads)
	seq := rng.NewSequencer()
	shell := faultshell.New()
	defer shell.Close()

	var drained int
	done := make(chan struct{})
	go drainUntilSentinel(pipe, &drained, done)

	mod := &fakeModule{}
	ran := runPilot(p, seq, pipe, mod, shell, threads, events)
	pipe.SendSentinel()
	<-done

	if ran != events {
		t.Errorf("runPilot returned %d events run, want %d", ran, events)
	}
	if drained != events {
		t.Errorf("drained %d records, want %d", drained, events)
	}

	mod.mu.Lock()
	defer mod.mu.Unlock()
	// Testable property 6: total pilots equals total threads, regardless of
	// how many of them end up with zero events in their chunk.
	if mod.pilotInits != threads {
		t.Errorf("PilotInit called %d times, want %d (one per thread, including empty chunks)", mod.pilotInits, threads)
	}
	if mod.pilotClears != threads {
		t.Errorf("PilotClear called %d times, want %d", mod.pilotClears, threads)
	}
	if mod.eventRuns != events {
		t.Errorf("EventRun called %d times, want %d", mod.eventRuns, events)
	}
}

func TestRunPerEventRunsExactlyOncePerEvent(t *testing.T) {
	const threads = 3
	const events = 7

	p := pool.New()
	if err := p.Configure(threads); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	pipe := resultpipe.New(threads)
	seq := rng.NewSequencer()
	shell := faultshell.New()
	defer shell.Close()

	var drained int
	done := make(chan struct{})
	go drainUntilSentinel(pipe, &drained, done)

	mod := &fakeModule{}
	ran := runPerEvent(p, seq, pipe, mod, shell, events)
	pipe.SendSentinel()
	<-done

	if ran != events {
		t.Errorf("runPerEvent returned %d events run, want %d", ran, events)
	}
	if drained != events {
		t.Errorf("drained %d records, want %d", drained, events)
	}
	mod.mu.Lock()
	defer mod.mu.Unlock()
	if mod.eventRuns != events {
		t.Errorf("EventRun called %d times, want %d", mod.eventRuns, events)
	}
}
