//go:build !windows

package cmd

import (
	"os"

	"golang.org/x/sys/unix"
)

var shutdownSignals = []os.Signal{os.Interrupt, unix.SIGTERM, unix.SIGQUIT}
