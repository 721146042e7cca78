package plugin

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManifestPath(t *testing.T) {
	got := ManifestPath("/sims/pi.so")
	want := "/sims/pi.hpcsim.yaml"
	if got != want {
		t.Errorf("ManifestPath = %q, want %q", got, want)
	}
}

func TestLoadManifestMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	m, err := LoadManifest(filepath.Join(dir, "absent.so"))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Threads != nil || m.Events != nil || m.Output != nil {
		t.Errorf("expected zero-value manifest, got %+v", m)
	}
}

func TestLoadManifestParsesValues(t *testing.T) {
	dir := t.TempDir()
	simPath := filepath.Join(dir, "pi.so")
	yamlPath := ManifestPath(simPath)
	if err := os.WriteFile(yamlPath, []byte("threads: 4\nevents: 1000\noutput: pi.out\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(simPath)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Threads == nil || *m.Threads != 4 {
		t.Errorf("Threads = %v, want 4", m.Threads)
	}
	if m.Events == nil || *m.Events != 1000 {
		t.Errorf("Events = %v, want 1000", m.Events)
	}
	if m.Output == nil || *m.Output != "pi.out" {
		t.Errorf("Output = %v, want pi.out", m.Output)
	}
}
