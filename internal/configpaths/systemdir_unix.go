//go:build !windows

package configpaths

import (
	"os"
	"path/filepath"
)

// systemConfigDir is consulted after the user config dir. On Unix that is
// /etc/ibooter.
func systemConfigDir() string {
	return filepath.Join(string(os.PathSeparator), "etc", appName)
}
