package devserver

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/danilokhury/termdock/internal/shared/types"
)

// ProfileSpec is the command a profile launches.
type ProfileSpec struct {
	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env"`
}

// ProfileTable maps profiles to launch specs.
type ProfileTable map[types.Profile]ProfileSpec

// DefaultProfiles returns the built-in launch table. Agent profiles assume
// their CLIs are on PATH; the shell profile uses $SHELL.
func DefaultProfiles() ProfileTable {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	return ProfileTable{
		types.ProfileClaudeCode: {Command: []string{"claude"}},
		types.ProfileCodex:      {Command: []string{"codex"}},
		types.ProfileGemini:     {Command: []string{"gemini"}},
		types.ProfileShell:      {Command: []string{shell}},
	}
}

// LoadProfiles returns the default table with overrides from an optional
// YAML file applied on top. An empty path means defaults only.
func LoadProfiles(path string) (ProfileTable, error) {
	table := DefaultProfiles()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile table: %w", err)
	}
	var overrides ProfileTable
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse profile table %s: %w", path, err)
	}

	for profile, spec := range overrides {
		if !profile.Valid() {
			return nil, fmt.Errorf("profile table %s: unknown profile %q", path, profile)
		}
		if len(spec.Command) == 0 {
			return nil, fmt.Errorf("profile table %s: profile %q has no command", path, profile)
		}
		table[profile] = spec
	}
	return table, nil
}
