// Package config defines the CLI structure and configuration for ibooter.
package config

import (
	"github.com/ibooter/ibooter/internal/cmd"
)

type Log struct {
	Level   string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"IBOOTER_LOG_LEVEL"`
	File    string `help:"Log file path (default: none; logs only to console)" env:"IBOOTER_LOG_FILE"`
	RawFile string `help:"Raw USB transfer log file path (default: none)" env:"IBOOTER_LOG_RAW_FILE"`
}

// CLI is the root command structure for Kong CLI parsing.
type CLI struct {
	Config string `help:"Config file (JSON, YAML or TOML)" type:"path" env:"IBOOTER_CONFIG"`

	Log `embed:"" prefix:"log."`
	USB cmd.USB `embed:"" prefix:"usb."`

	Upload   cmd.Upload   `cmd:"" help:"Upload a file to the device"`
	Shell    cmd.Shell    `cmd:"" help:"Attach to the recovery console"`
	Cmd      cmd.Cmd      `cmd:"" help:"Send a single command"`
	AutoBoot cmd.AutoBoot `cmd:"" name:"auto-boot" help:"Enable auto-boot and reboot"`
	Diags    cmd.Diags    `cmd:"" help:"Boot into diagnostics"`
	Mode     cmd.Mode     `cmd:"" help:"Print the mode of the connected device"`
}
