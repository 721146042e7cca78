package plugin

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest holds the optional per-module CLI defaults a simulation module
// may ship next to its shared object, named "<plugin>.hpcsim.yaml". This is
// new surface (not present in the source this host is modeled on) grounded
// in the teacher's own pkg/config/config.go use of yaml.v3 for declarative
// defaults; see SPEC_FULL.md's Domain stack section.
//
// Explicit CLI flags always override a manifest value; a manifest supplies
// only what the user did not specify.
type Manifest struct {
	Threads *int    `yaml:"threads,omitempty"`
	Events  *int    `yaml:"events,omitempty"`
	Output  *string `yaml:"output,omitempty"`
}

// ManifestPath returns the sidecar path for a module at simPath:
// "foo.so" -> "foo.hpcsim.yaml".
func ManifestPath(simPath string) string {
	trimmed := strings.TrimSuffix(simPath, ".so")
	return trimmed + ".hpcsim.yaml"
}

// LoadManifest reads and parses the sidecar manifest for simPath. A missing
// file is not an error -- the manifest is entirely optional -- and yields
// the zero Manifest.
func LoadManifest(simPath string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(simPath))
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("plugin: read manifest for %s: %w", simPath, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("plugin: parse manifest for %s: %w", simPath, err)
	}
	return &m, nil
}
