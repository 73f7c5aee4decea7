package main

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = ""
	Commit  = ""
)

var descriptionTemplate = `
USB boot-ROM loader and recovery console
  Version: %s (%s)
`

func Description() string {
	return fmt.Sprintf(descriptionTemplate, Version, Commit)
}

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		if Version == "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && Commit == "" {
				Commit = setting.Value
				if len(Commit) > 7 {
					Commit = Commit[:7]
				}
			}
		}
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}
