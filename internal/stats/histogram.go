// Package stats wraps HdrHistogram-Go for the host's two places that
// summarize a distribution of small integers: the writer's live
// payload-size histogram (internal/writer) and the "hpcsim report"
// subcommand's read-side summary (internal/checkpoint).
//
// Adapted from the teacher's pkg/stats/histogram.go, which wrapped the
// same library for fio latency distributions in microseconds; the shape
// of the wrapper carries over, generalized to an arbitrary [min,max] range
// instead of a fixed microsecond-latency window, since what this host
// measures is payload byte length (0..resultpipe.MaxPayload), not time.
package stats

import (
	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram wraps hdrhistogram.Histogram with the small, domain-shaped API
// the host's callers need.
type Histogram struct {
	impl *hdrhistogram.Histogram
}

// New returns a Histogram tracking values in [minVal, maxVal] with
// sigFigs significant decimal digits of precision, the same construction
// signature hdrhistogram.New exposes.
func New(minVal, maxVal int64, sigFigs int) *Histogram {
	return &Histogram{impl: hdrhistogram.New(minVal, maxVal, sigFigs)}
}

// Record records val, silently dropping it if it falls outside the
// histogram's configured range -- a dropped sample does not corrupt a
// report the way a RecordValue error returned mid-run would.
func (h *Histogram) Record(val int64) {
	_ = h.impl.RecordValue(val)
}

// Merge folds other's recorded values into h.
func (h *Histogram) Merge(other *Histogram) {
	h.impl.Merge(other.impl)
}

// ValueAtQuantile returns the value at quantile q, 0.0-1.0.
func (h *Histogram) ValueAtQuantile(q float64) int64 {
	return h.impl.ValueAtQuantile(q * 100.0)
}

func (h *Histogram) Mean() float64     { return h.impl.Mean() }
func (h *Histogram) TotalCount() int64 { return h.impl.TotalCount() }
func (h *Histogram) Min() int64        { return h.impl.Min() }
func (h *Histogram) Max() int64        { return h.impl.Max() }
func (h *Histogram) StdDev() float64   { return h.impl.StdDev() }
func (h *Histogram) Reset()            { h.impl.Reset() }
func (h *Histogram) ByteSize() int     { return h.impl.ByteSize() }
