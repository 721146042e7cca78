// Package rng implements the L'Ecuyer MRG32k3a combined multiple-recursive
// generator used to hand each simulated event its own statistically
// independent pseudo-random substream.
//
// Grounded on _examples/original_source/HPCsim/RngStream.cpp (P. L'Ecuyer's
// reference implementation) and on the teacher's worker/goroutine texture in
// pkg/engine/engine.go.
package rng

import (
	"encoding/binary"
	"math"
	"sync"
)

const (
	m1   = 4294967087.0
	m2   = 4294944443.0
	norm = 1.0 / (m1 + 1.0)
	a12  = 1403580.0
	a13n = 810728.0
	a21  = 527612.0
	a23n = 1370589.0

	two17 = 131072.0
	two53 = 9007199254740992.0
)

// a1p127 and a2p127 are the transition matrices of the two MRG components,
// raised to the power 2^127, so that applying them once advances a
// component's state by 2^127 steps. Values are L'Ecuyer's published
// constants, copied from RngStream.cpp.
var a1p127 = [3][3]float64{
	{2427906178.0, 3580155704.0, 949770784.0},
	{226153695.0, 1230515664.0, 3580155704.0},
	{1988835001.0, 986791581.0, 1230515664.0},
}

var a2p127 = [3][3]float64{
	{1464411153.0, 277697599.0, 1610723613.0},
	{32183930.0, 1464411153.0, 1022607788.0},
	{2824425944.0, 32183930.0, 2093834863.0},
}

// DigestLen is the width of a Stream's event identity: six IEEE-754 doubles
// (the initial six-word state), 8 bytes each. The width matches
// SHA384_DIGEST_LENGTH from the original SDK header, but the content is the
// raw state image, not a hash.
const DigestLen = 48

// Digest identifies the event a Stream was constructed for. It is the byte
// image of the stream's state immediately before its first draw.
type Digest [DigestLen]byte

// Seed is the six-word state shared by a Stream and the Sequencer: the first
// three words are the Component-1 register (mod m1), the last three are the
// Component-2 register (mod m2).
type Seed [6]float64

// multModM computes (a*s + c) mod m. a, s, c and m must be < 2^35. A naive
// 64-bit integer multiply is not a valid substitute: intermediate products
// can exceed 2^53 and silently lose precision in float64, which would
// desynchronize the stream from the reference implementation. The
// split-multiply fallback below is mandatory for that reason.
func multModM(a, s, c, m float64) float64 {
	v := a*s + c
	if v >= two53 || v <= -two53 {
		a1 := float64(int64(a / two17))
		a -= a1 * two17
		v = a1 * s
		a1 = float64(int64(v / m))
		v -= a1 * m
		v = v*two17 + a*s + c
	}
	a1 := float64(int64(v / m))
	v -= a1 * m
	if v < 0 {
		v += m
	}
	return v
}

// matVecModM computes v = A*s (mod m). Safe to call with v aliasing s.
func matVecModM(a [3][3]float64, s [3]float64, m float64) [3]float64 {
	var x [3]float64
	for i := 0; i < 3; i++ {
		x[i] = multModM(a[i][0], s[0], 0, m)
		x[i] = multModM(a[i][1], s[1], x[i], m)
		x[i] = multModM(a[i][2], s[2], x[i], m)
	}
	return x
}

// jumpAhead advances seed by one application of the 2^127-step jump
// matrices: the two halves of seed are independently advanced modulo m1 and
// m2 respectively.
func jumpAhead(seed Seed) Seed {
	var half1, half2 [3]float64
	copy(half1[:], seed[0:3])
	copy(half2[:], seed[3:6])
	half1 = matVecModM(a1p127, half1, m1)
	half2 = matVecModM(a2p127, half2, m2)
	var next Seed
	copy(next[0:3], half1[:])
	copy(next[3:6], half2[:])
	return next
}

// digestOf renders seed as its 48-byte little-endian image.
func digestOf(seed Seed) Digest {
	var d Digest
	for i, v := range seed {
		binary.LittleEndian.PutUint64(d[i*8:i*8+8], math.Float64bits(v))
	}
	return d
}

// SeedFromDigest reconstructs the six-word state a digest was computed from;
// it is the inverse of a Stream's digest rendering. (The checkpointer
// compares digests directly, via Sequencer.PeekDigest, and does not call
// this.)
func SeedFromDigest(d Digest) Seed {
	var s Seed
	for i := range s {
		s[i] = math.Float64frombits(binary.LittleEndian.Uint64(d[i*8 : i*8+8]))
	}
	return s
}

// Sequencer is the process-wide, monotonically advancing source of fresh
// Stream seeds (C2). It is the only source of event identity: two Streams
// ever differ in initial state if and only if they were drawn from
// different positions in the Sequencer's issuance order.
type Sequencer struct {
	mu   sync.Mutex
	next Seed
}

// defaultSeed is the package's default starting seed, matching
// RngStream::nextSeed's initializer.
var defaultSeed = Seed{12345, 12345, 12345, 12345, 12345, 12345}

// NewSequencer returns a Sequencer starting from the default seed
// (12345 repeated six times), exactly RngStream's static initializer.
func NewSequencer() *Sequencer {
	return &Sequencer{next: defaultSeed}
}

// AdvanceStream applies the jump-ahead-by-2^127 matrices k times to NEXT.
// AdvanceStream(a) followed by AdvanceStream(b) is equivalent to a single
// AdvanceStream(a+b) call from the same starting state.
func (s *Sequencer) AdvanceStream(k uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := uint64(0); i < k; i++ {
		s.next = jumpAhead(s.next)
	}
}

// TakeNext returns the current NEXT and atomically advances the sequencer
// by one jump. Constructing a Stream must always go through TakeNext so
// that the issuance order is well defined and serialized.
func (s *Sequencer) TakeNext() Seed {
	s.mu.Lock()
	defer s.mu.Unlock()
	seed := s.next
	s.next = jumpAhead(s.next)
	return seed
}

// PeekNext returns the current NEXT without advancing the sequencer. The
// checkpointer uses this to compute the digest the next-to-be-created
// Stream would carry, without consuming a seed.
func (s *Sequencer) PeekNext() Seed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// PeekDigest returns the byte image of NEXT -- the digest the
// next-to-be-created Stream would carry -- without consuming a seed.
func (s *Sequencer) PeekDigest() Digest {
	return digestOf(s.PeekNext())
}

// Stream is one independent pseudo-random substream (C1), owned by a single
// worker for the duration of one event.
type Stream struct {
	state  Seed
	digest Digest
}

// New draws the next seed from seq, storing it as both the stream's working
// state and its digest (the state before any draw), and advances seq by
// one jump.
func New(seq *Sequencer) *Stream {
	seed := seq.TakeNext()
	return &Stream{state: seed, digest: digestOf(seed)}
}

// Digest returns the stream's event identity. Stable for the stream's
// entire life; equals the byte image of its initial state.
func (s *Stream) Digest() Digest {
	return s.digest
}

// Draw returns the next uniform variate in (0,1), advancing the stream's
// state. Two component MRGs are stepped independently and combined.
func (s *Stream) Draw() float64 {
	// Component 1.
	p1 := a12*s.state[1] - a13n*s.state[0]
	k := float64(int64(p1 / m1))
	p1 -= k * m1
	if p1 < 0 {
		p1 += m1
	}
	s.state[0], s.state[1], s.state[2] = s.state[1], s.state[2], p1

	// Component 2.
	p2 := a21*s.state[5] - a23n*s.state[3]
	k = float64(int64(p2 / m2))
	p2 -= k * m2
	if p2 < 0 {
		p2 += m2
	}
	s.state[3], s.state[4], s.state[5] = s.state[4], s.state[5], p2

	if p1 > p2 {
		return (p1 - p2) * norm
	}
	return (p1 - p2 + m1) * norm
}
