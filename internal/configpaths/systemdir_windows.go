//go:build windows

package configpaths

import (
	"os"
	"path/filepath"
)

func systemConfigDir() string {
	pd := os.Getenv("ProgramData")
	if pd == "" {
		return ""
	}
	return filepath.Join(pd, appName)
}
