package configpaths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCandidatePathsExplicit(t *testing.T) {
	tests := []struct {
		path                         string
		wantJSON, wantYAML, wantTOML []string
	}{
		{path: "my.json", wantJSON: []string{"my.json"}},
		{path: "my.YAML", wantYAML: []string{"my.YAML"}},
		{path: "my.yml", wantYAML: []string{"my.yml"}},
		{path: "my.toml", wantTOML: []string{"my.toml"}},
		{path: "noext", wantJSON: []string{"noext"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			j, y, to := ConfigCandidatePaths(tt.path)
			assert.Equal(t, tt.wantJSON, j)
			assert.Equal(t, tt.wantYAML, y)
			assert.Equal(t, tt.wantTOML, to)
		})
	}
}

func TestConfigCandidatePathsDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AppData", t.TempDir())

	dir, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "ibooter", filepath.Base(dir))

	j, y, to := ConfigCandidatePaths("")
	require.NotEmpty(t, j)
	assert.Equal(t, filepath.Join(dir, "config.json"), j[0])
	assert.Equal(t, filepath.Join(dir, "config.yaml"), y[0])
	assert.Equal(t, filepath.Join(dir, "config.yml"), y[1])
	assert.Equal(t, filepath.Join(dir, "config.toml"), to[0])
}

func TestHistoryFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AppData", t.TempDir())

	path, err := HistoryFile()
	require.NoError(t, err)
	assert.Equal(t, "history", filepath.Base(path))
	assert.DirExists(t, filepath.Dir(path))
}
