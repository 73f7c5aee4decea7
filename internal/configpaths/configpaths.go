// Package configpaths resolves where ibooter looks for its config file and
// keeps its console history.
package configpaths

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "ibooter"

// DefaultConfigDir returns the per-user config directory for ibooter.
func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// ConfigCandidatePaths returns config file candidates grouped by format, in
// priority order. An explicit userCfg is the only candidate for its format.
func ConfigCandidatePaths(userCfg string) (jsonPaths, yamlPaths, tomlPaths []string) {
	if userCfg != "" {
		switch strings.ToLower(filepath.Ext(userCfg)) {
		case ".yaml", ".yml":
			return nil, []string{userCfg}, nil
		case ".toml":
			return nil, nil, []string{userCfg}
		default:
			return []string{userCfg}, nil, nil
		}
	}

	var dirs []string
	if dir, err := DefaultConfigDir(); err == nil {
		dirs = append(dirs, dir)
	}
	if dir := systemConfigDir(); dir != "" {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		jsonPaths = append(jsonPaths, filepath.Join(dir, "config.json"))
		yamlPaths = append(yamlPaths, filepath.Join(dir, "config.yaml"), filepath.Join(dir, "config.yml"))
		tomlPaths = append(tomlPaths, filepath.Join(dir, "config.toml"))
	}
	return jsonPaths, yamlPaths, tomlPaths
}

// HistoryFile returns the console history location, creating its directory.
func HistoryFile() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}
