// Command hpcsim is the host runtime's CLI: it parses the run parameters,
// applies a simulation module's optional manifest defaults, and drives one
// run of the orchestrator (internal/runtime).
//
// Flag parsing follows the teacher's own texture
// (_examples/runningwild-jolt/cmd/jolt/main.go: SetupFlags) -- a bare
// flag.FlagSet with no third-party flag library, long and short flag names
// registered as separate aliases of the same variable.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/runningwild/hpcsim/internal/checkpoint"
	"github.com/runningwild/hpcsim/internal/plugin"
	"github.com/runningwild/hpcsim/internal/runtime"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "report" {
		runReportCmd(os.Args[2:])
		return
	}
	runSimulateCmd(os.Args[1:])
}

// simFlags holds the resolved CLI surface of spec.md §6.
type simFlags struct {
	Simulation *string
	Threads    *string
	Events     *int
	First      *int
	Output     *string
	Checkpoint *bool
}

func setupSimFlags(fs *flag.FlagSet) *simFlags {
	f := &simFlags{}
	f.Simulation = fs.String("simulation", "", "Path to the simulation plugin (required)")
	fs.StringVar(f.Simulation, "s", "", "Shorthand for -simulation")

	f.Threads = fs.String("threads", "1", "Worker count, or 'a' for online CPU count")
	fs.StringVar(f.Threads, "t", "1", "Shorthand for -threads")

	f.Events = fs.Int("events", 100, "Total events")
	fs.IntVar(f.Events, "e", 100, "Shorthand for -events")

	f.First = fs.Int("first", 0, "Skip this many streams at the start of the sequencer")
	fs.IntVar(f.First, "f", 0, "Shorthand for -first")

	f.Output = fs.String("output", "HPCsim.out", "Output file")
	fs.StringVar(f.Output, "o", "HPCsim.out", "Shorthand for -output")

	f.Checkpoint = fs.Bool("checkpoint", false, "Enable checkpoint-resume against an existing output file")
	fs.BoolVar(f.Checkpoint, "c", false, "Shorthand for -checkpoint")

	return f
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: hpcsim --simulation PATH [--threads N|a] [--events N] [--first N] [--output PATH] [--checkpoint]")
	fmt.Fprintln(os.Stderr, "       hpcsim report OUTPUT")
	fs.PrintDefaults()
}

func runSimulateCmd(args []string) {
	fs := flag.NewFlagSet("hpcsim", flag.ContinueOnError)
	fs.Usage = func() { usage(fs) }
	f := setupSimFlags(fs)

	// fs.Usage above already prints the full usage block once, from inside
	// Parse itself, on any unrecognized flag -- spec.md §6's "unknown
	// options print usage once". Don't print it again here.
	if err := fs.Parse(args); err != nil {
		os.Exit(0)
	}

	if *f.Simulation == "" {
		// Missing --simulation prints usage and exits 0, per spec.md §6.
		usage(fs)
		os.Exit(0)
	}

	manifest, err := plugin.LoadManifest(*f.Simulation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hpcsim: %v\n", err)
		os.Exit(1)
	}
	applyManifestDefaults(fs, manifest, f)

	threads, err := runtime.ResolveThreads(*f.Threads)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hpcsim: %v\n", err)
		usage(fs)
		os.Exit(1)
	}

	cfg := runtime.Config{
		SimPath:    *f.Simulation,
		Threads:    threads,
		Events:     *f.Events,
		First:      *f.First,
		Output:     *f.Output,
		Checkpoint: *f.Checkpoint,
		// spec.md §6 names no CLI flag for dispatch mode; HPCSIM_PILOT is
		// the selection point for runtime.Config.Pilot (the nearest Go
		// equivalent of the source's compile-time USE_PILOT_THREAD choice).
		Pilot: os.Getenv("HPCSIM_PILOT") != "",
	}

	result, err := runtime.Run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hpcsim: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("hpcsim: ran %d events, skipped %d (checkpoint), wrote %d records, %d bytes\n",
		result.EventsRun, result.EventsSkipped, result.Stats.Records, result.Stats.Bytes)
}

// applyManifestDefaults fills in manifest-supplied defaults for any flag
// the user did not explicitly set, per SPEC_FULL.md's plugin manifest
// sidecar. Explicit flags always win.
func applyManifestDefaults(fs *flag.FlagSet, m *plugin.Manifest, f *simFlags) {
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if m.Threads != nil && !set["threads"] && !set["t"] {
		*f.Threads = fmt.Sprintf("%d", *m.Threads)
	}
	if m.Events != nil && !set["events"] && !set["e"] {
		*f.Events = *m.Events
	}
	if m.Output != nil && !set["output"] && !set["o"] {
		*f.Output = *m.Output
	}
}

// runReportCmd implements SPEC_FULL.md's supplementary "hpcsim report"
// subcommand: a read-side summary of a persisted output file, reusing the
// checkpointer's record-scanning shape.
func runReportCmd(args []string) {
	fs := flag.NewFlagSet("hpcsim report", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(0)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hpcsim report OUTPUT")
		os.Exit(0)
	}

	count, bytes, hist, err := checkpoint.Report(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "hpcsim: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("records: %d\n", count)
	fmt.Printf("bytes:   %d\n", bytes)
	if count > 0 {
		fmt.Printf("payload bytes: min=%d mean=%.1f max=%d p99=%d\n",
			hist.Min(), hist.Mean(), hist.Max(), hist.ValueAtQuantile(0.99))
	}
}
