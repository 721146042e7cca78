package rng

import (
	"math"
	"testing"
)

func TestFirstDrawMatchesReference(t *testing.T) {
	seq := NewSequencer()
	s := New(seq)

	got := s.Draw()
	want := 0.12701112204657714
	if math.Abs(got-want) > 1e-15 {
		t.Errorf("first draw = %v, want %v", got, want)
	}

	got2 := s.Draw()
	want2 := 0.31853871872420626
	if math.Abs(got2-want2) > 1e-15 {
		t.Errorf("second draw = %v, want %v", got2, want2)
	}
}

func TestSequencerMonotonicity(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
	}{
		{"zero+five", 0, 5},
		{"three+four", 3, 4},
		{"seven+zero", 7, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s1 := NewSequencer()
			s1.AdvanceStream(tt.a)
			s1.AdvanceStream(tt.b)

			s2 := NewSequencer()
			s2.AdvanceStream(tt.a + tt.b)

			if s1.PeekNext() != s2.PeekNext() {
				t.Errorf("AdvanceStream(%d) then AdvanceStream(%d) != AdvanceStream(%d)", tt.a, tt.b, tt.a+tt.b)
			}
		})
	}
}

func TestStreamIndependence(t *testing.T) {
	seq := NewSequencer()
	a := New(seq)
	b := New(seq)

	if a.Digest() == b.Digest() {
		t.Fatal("consecutive streams must have distinct digests")
	}

	// Draws from a must not perturb b's future draws: re-derive b fresh from
	// the same starting point and compare against a b that had a's draws
	// interleaved.
	seq2 := NewSequencer()
	_ = New(seq2) // corresponds to a, discarded
	bFresh := New(seq2)

	for i := 0; i < 5; i++ {
		a.Draw()
	}
	for i := 0; i < 5; i++ {
		got := b.Draw()
		want := bFresh.Draw()
		if got != want {
			t.Fatalf("draw %d: b diverged from independently-constructed stream: got %v want %v", i, got, want)
		}
	}
}

func TestDigestRoundTrip(t *testing.T) {
	seq := NewSequencer()
	s := New(seq)
	seed := SeedFromDigest(s.Digest())
	if seed != s.state {
		t.Errorf("SeedFromDigest(Digest()) = %v, want %v", seed, s.state)
	}
}

func TestSequencerAdvanceIsJumpNotDraw(t *testing.T) {
	// --first N must skip N streams (2^127-step jumps), not N individual
	// draws: verify that AdvanceStream(1) produces the same NEXT as
	// constructing and discarding exactly one Stream.
	seq1 := NewSequencer()
	seq1.AdvanceStream(1)

	seq2 := NewSequencer()
	_ = New(seq2)

	if seq1.PeekNext() != seq2.PeekNext() {
		t.Error("AdvanceStream(1) must match the sequencer state after constructing one Stream")
	}
}
