package devserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danilokhury/termdock/internal/shared/types"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultProfilesCoverAllProfiles(t *testing.T) {
	table := DefaultProfiles()
	for _, p := range []types.Profile{
		types.ProfileClaudeCode, types.ProfileCodex, types.ProfileGemini, types.ProfileShell,
	} {
		spec, ok := table[p]
		require.True(t, ok, "missing profile %s", p)
		assert.NotEmpty(t, spec.Command)
	}
}

func TestLoadProfilesEmptyPathUsesDefaults(t *testing.T) {
	table, err := LoadProfiles("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfiles(), table)
}

func TestLoadProfilesOverride(t *testing.T) {
	path := writeProfiles(t, `
claude-code:
  command: ["claude", "--dangerously-skip-permissions"]
  env:
    CLAUDE_CONFIG_DIR: /etc/claude
`)
	table, err := LoadProfiles(path)
	require.NoError(t, err)

	spec := table[types.ProfileClaudeCode]
	assert.Equal(t, []string{"claude", "--dangerously-skip-permissions"}, spec.Command)
	assert.Equal(t, "/etc/claude", spec.Env["CLAUDE_CONFIG_DIR"])

	// Untouched profiles keep their defaults.
	assert.Equal(t, DefaultProfiles()[types.ProfileCodex], table[types.ProfileCodex])
}

func TestLoadProfilesRejectsUnknownProfile(t *testing.T) {
	path := writeProfiles(t, `
vim:
  command: ["vim"]
`)
	_, err := LoadProfiles(path)
	assert.Error(t, err)
}

func TestLoadProfilesRejectsEmptyCommand(t *testing.T) {
	path := writeProfiles(t, `
shell:
  command: []
`)
	_, err := LoadProfiles(path)
	assert.Error(t, err)
}

func TestLoadProfilesMissingFile(t *testing.T) {
	_, err := LoadProfiles("/nonexistent/profiles.yaml")
	assert.Error(t, err)
}
