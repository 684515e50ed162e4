package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"bytedge/pkg/edgetypes"
)

// Profiles returns a small agent table for tests that do not need the embedded one.
func Profiles() []edgetypes.AgentProfile {
	return []edgetypes.AgentProfile{
		{
			ID:           "brake",
			DisplayName:  "Brake Agent",
			Domain:       "Braking Systems",
			SystemPrompt: "You are a brake expert.",
			Keywords: edgetypes.KeywordSet{
				Primary:   []string{"brake", "pad"},
				Secondary: []string{"abs", "rotor"},
			},
		},
		{
			ID:           "tire",
			DisplayName:  "Tire Agent",
			Domain:       "Tires",
			SystemPrompt: "You are a tire expert.",
			Keywords: edgetypes.KeywordSet{
				Primary:   []string{"tire", "grip"},
				Secondary: []string{"tread", "pressure"},
			},
		},
		{
			ID:           "engine",
			DisplayName:  "Engine Agent",
			Domain:       "Powertrain",
			SystemPrompt: "You are an engine expert.",
			Keywords: edgetypes.KeywordSet{
				Primary:   []string{"engine", "piston"},
				Secondary: []string{"turbo", "valve"},
			},
		},
	}
}

// WriteTempFile writes content to name inside a test temp dir and returns the path.
func WriteTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
