// Package writer implements the Writer/Reducer consumer (C5): the single
// goroutine draining the result pipe, either persisting each record to the
// output file or handing it to the plugin's ReduceResult.
//
// Grounded on _examples/original_source/HPCsim/main.cpp's WriteResults
// thread, which branches on gSimulation.fReduceResult == 0 in exactly the
// same way, and on the teacher's pkg/stats/histogram.go for the
// HdrHistogram wrapper used in report mode.
package writer

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/runningwild/hpcsim/internal/faultshell"
	"github.com/runningwild/hpcsim/internal/resultpipe"
	"github.com/runningwild/hpcsim/internal/stats"
	"github.com/runningwild/hpcsim/pkg/simsdk"
)

// recordHeaderLen is len(id) + len(length): the fixed portion of every
// persisted record, ahead of its length-prefixed payload.
const recordHeaderLen = resultpipe.IDLen + 4

// outputFileMode matches the original's
// S_IRUSR|S_IWUSR|S_IRGRP|S_IROTH (main.cpp's WriteResults open call).
const outputFileMode = 0o644

// Reducer is the subset of simsdk.ReduceResulter the writer needs, kept
// narrow so tests can supply a stand-in without loading a real plugin.
type Reducer interface {
	ReduceResult(outputPath string, id simsdk.Digest, payload []byte)
}

// Stats accumulates a summary of what passed through the writer: record
// count, persisted byte count, and a payload-size histogram. Returned to the
// runtime orchestrator, whose Result carries it to cmd/hpcsim's end-of-run
// print. (The "hpcsim report" subcommand does not use it; it summarizes a
// file through checkpoint.Report.)
type Stats struct {
	Records      int64
	Bytes        int64
	PayloadSizes *stats.Histogram
}

// NewStats returns a Stats ready to record payload sizes from 0 to
// resultpipe.MaxPayload with 3 significant decimal digits, the same
// precision the teacher's pkg/stats/histogram.go wraps by default.
func NewStats() *Stats {
	return &Stats{PayloadSizes: stats.New(0, resultpipe.MaxPayload, 3)}
}

func (s *Stats) observe(length uint32) {
	s.Records++
	s.Bytes += int64(recordHeaderLen) + int64(length)
	s.PayloadSizes.Record(int64(length))
}

// Run drains pipe until it observes the sentinel record, persisting or
// reducing each one according to mode. It returns the accumulated Stats.
//
// In persist mode, outputPath is opened once, append-and-seek-to-end if
// resume is true (checkpoint mode, spec.md §4.5), truncated otherwise.
//
// In reduce mode, outputPath is passed through to the plugin's
// ReduceResult unopened; the host never creates a file itself.
//
// A panic out of reducer.ReduceResult is caught by shell so that one
// plugin-caused fault in reduce mode does not drop subsequent records,
// per spec.md §7's "a plugin-caused fault in the writer's ReduceResult is
// caught by a guard around the entire reducer loop".
func Run(pipe *resultpipe.Pipe, outputPath string, resume bool, reducer Reducer, shell *faultshell.Shell) (*Stats, error) {
	stats := NewStats()

	if reducer != nil {
		for {
			rec := pipe.Recv()
			if rec.IsSentinel() {
				return stats, nil
			}
			payload := append([]byte(nil), rec.Payload[:rec.Length]...)
			shell.Guard(func() {
				reducer.ReduceResult(outputPath, simsdk.Digest(rec.ID), payload)
			})
			stats.observe(rec.Length)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(outputPath, flags, outputFileMode)
	if err != nil {
		return stats, fmt.Errorf("writer: open %s: %w", outputPath, err)
	}
	defer f.Close()

	var lenBuf [4]byte
	for {
		rec := pipe.Recv()
		if rec.IsSentinel() {
			return stats, nil
		}
		binary.LittleEndian.PutUint32(lenBuf[:], rec.Length)
		if _, err := f.Write(rec.ID[:]); err != nil {
			return stats, fmt.Errorf("writer: write id: %w", err)
		}
		if _, err := f.Write(lenBuf[:]); err != nil {
			return stats, fmt.Errorf("writer: write length: %w", err)
		}
		if _, err := f.Write(rec.Payload[:rec.Length]); err != nil {
			return stats, fmt.Errorf("writer: write payload: %w", err)
		}
		stats.observe(rec.Length)
	}
}
