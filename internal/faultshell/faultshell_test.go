package faultshell

import "testing"

func TestGuardReturnsCleanOutcomeOnSuccess(t *testing.T) {
	s := New()
	defer s.Close()

	out := s.Guard(func() {})
	if out.Faulted {
		t.Errorf("expected no fault, got %+v", out)
	}
}

func TestGuardCatchesSelfRaise(t *testing.T) {
	s := New()
	defer s.Close()

	out := s.Guard(func() {
		Raise("deliberate")
	})
	if !out.Faulted || !out.SelfRaised {
		t.Errorf("expected self-raised fault, got %+v", out)
	}
	if out.Reason != "deliberate" {
		t.Errorf("reason = %q, want %q", out.Reason, "deliberate")
	}
}

func TestGuardCatchesForeignPanic(t *testing.T) {
	s := New()
	defer s.Close()

	out := s.Guard(func() {
		var p *int
		_ = *p // nil dereference: stands in for a foreign crash
	})
	if !out.Faulted || out.SelfRaised {
		t.Errorf("expected non-self-raised fault, got %+v", out)
	}
}

func TestGuardIsolatesSuccessiveCalls(t *testing.T) {
	s := New()
	defer s.Close()

	s.Guard(func() { Raise("first") })
	out := s.Guard(func() {})
	if out.Faulted {
		t.Error("a fault in one Guard call must not leak into the next")
	}
}
