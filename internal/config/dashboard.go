package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultOwnerOptions is offered when no dashboard file lists owners.
var DefaultOwnerOptions = []string{"Cody", "Sam", "Alex"}

// Dashboard holds operator-facing options served to dashboard clients.
type Dashboard struct {
	OwnerOptions       []string `yaml:"owner_options" json:"ownerOptions"`
	RefreshIntervalSec int      `yaml:"refresh_interval_sec" json:"refreshIntervalSec"`
	MutationPauseMs    int      `yaml:"mutation_pause_ms" json:"mutationPauseMs"`
	HideSimulator      bool     `yaml:"hide_simulator" json:"hideSimulator"`
}

// DefaultDashboard returns the options used when no file is configured.
func DefaultDashboard() *Dashboard {
	owners := make([]string, len(DefaultOwnerOptions))
	copy(owners, DefaultOwnerOptions)
	return &Dashboard{
		OwnerOptions:       owners,
		RefreshIntervalSec: 10,
		MutationPauseMs:    3000,
		HideSimulator:      true,
	}
}

// LoadDashboard reads dashboard options from a YAML file. An empty path or
// a missing file yields the defaults.
func LoadDashboard(path string) (*Dashboard, error) {
	d := DefaultDashboard()
	if path == "" {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d, nil
		}
		return nil, fmt.Errorf("failed to read dashboard config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse dashboard config %s: %w", path, err)
	}

	d.normalize()
	return d, nil
}

func (d *Dashboard) normalize() {
	seen := make(map[string]bool, len(d.OwnerOptions))
	owners := make([]string, 0, len(d.OwnerOptions))
	for _, o := range d.OwnerOptions {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		owners = append(owners, o)
	}
	if len(owners) == 0 {
		owners = append(owners, DefaultOwnerOptions...)
	}
	d.OwnerOptions = owners

	if d.RefreshIntervalSec <= 0 {
		d.RefreshIntervalSec = 10
	}
	if d.MutationPauseMs < 0 {
		d.MutationPauseMs = 0
	}
}
