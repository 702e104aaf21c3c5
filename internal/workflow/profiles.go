package workflow

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Profile describes one buildable firmware configuration.
type Profile struct {
	Name      string   `yaml:"name" json:"name"`
	Vehicle   string   `yaml:"vehicle" json:"vehicle"`
	Board     string   `yaml:"board" json:"board"`
	Target    string   `yaml:"target" json:"target"`
	Configure []string `yaml:"configure,omitempty" json:"configure,omitempty"`
	SimFrame  string   `yaml:"sim_frame,omitempty" json:"sim_frame,omitempty"`
}

// ProfileSet is the parsed profiles file.
type ProfileSet struct {
	Profiles []Profile `yaml:"profiles" json:"profiles"`
}

// LoadProfiles reads and parses a YAML profiles file.
func LoadProfiles(path string) (*ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles %s: %w", path, err)
	}
	return ParseProfiles(data)
}

// ParseProfiles parses profiles from YAML bytes.
func ParseProfiles(data []byte) (*ProfileSet, error) {
	var set ProfileSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	for i, p := range set.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profile %d has no name", i)
		}
		if p.Board == "" {
			return nil, fmt.Errorf("profile %q has no board", p.Name)
		}
		if p.Target == "" {
			return nil, fmt.Errorf("profile %q has no target", p.Name)
		}
	}
	return &set, nil
}

// Find returns the profile with the given name.
func (s *ProfileSet) Find(name string) (*Profile, bool) {
	for i := range s.Profiles {
		if s.Profiles[i].Name == name {
			return &s.Profiles[i], true
		}
	}
	return nil, false
}

// DefaultProfiles returns the built-in profile set used when no profiles
// file is configured.
func DefaultProfiles() *ProfileSet {
	return &ProfileSet{
		Profiles: []Profile{
			{Name: "sitl-copter", Vehicle: "ArduCopter", Board: "sitl", Target: "copter", SimFrame: "quad"},
			{Name: "sitl-plane", Vehicle: "ArduPlane", Board: "sitl", Target: "plane", SimFrame: "plane"},
			{Name: "cubeorange-copter", Vehicle: "ArduCopter", Board: "CubeOrange", Target: "copter"},
			{Name: "pixhawk6c-plane", Vehicle: "ArduPlane", Board: "Pixhawk6C", Target: "plane"},
		},
	}
}
