package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ibooter/ibooter/device"
	"github.com/ibooter/ibooter/internal/log"
)

type Cmd struct {
	Command []string `arg:"" help:"Command text, sent as one line"`
}

// Run is called by Kong when the cmd command is executed.
func (c *Cmd) Run(logger *slog.Logger, rawLogger log.RawLogger, usbCfg *USB) error {
	text := strings.Join(c.Command, " ")
	return withLink(logger, rawLogger, usbCfg, func(_ context.Context, link *device.Link) error {
		if err := link.SendCommand(text); err != nil {
			return err
		}
		if fields := strings.Fields(text); len(fields) > 0 && fields[0] == "getenv" {
			env, err := link.QueryEnvironment()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Env: %s\n", env)
		}
		return nil
	})
}

type AutoBoot struct{}

// Run is called by Kong when the auto-boot command is executed.
func (c *AutoBoot) Run(logger *slog.Logger, rawLogger log.RawLogger, usbCfg *USB) error {
	return withLink(logger, rawLogger, usbCfg, func(_ context.Context, link *device.Link) error {
		return link.AutoBoot()
	})
}

type Diags struct{}

// Run is called by Kong when the diags command is executed.
func (c *Diags) Run(logger *slog.Logger, rawLogger log.RawLogger, usbCfg *USB) error {
	return withLink(logger, rawLogger, usbCfg, func(_ context.Context, link *device.Link) error {
		logger.Info("Booting into diagnostics")
		return link.SendCommand("diags")
	})
}

type Mode struct{}

// Run is called by Kong when the mode command is executed. A missing device
// prints Disconnected rather than failing.
func (c *Mode) Run(logger *slog.Logger, rawLogger log.RawLogger, usbCfg *USB) error {
	err := withLink(logger, rawLogger, usbCfg, func(_ context.Context, link *device.Link) error {
		fmt.Fprintln(stdout, link.Mode())
		return nil
	})
	if errors.Is(err, device.ErrNoDevice) {
		logger.Debug("no device", "error", err)
		fmt.Fprintln(stdout, device.ModeDisconnected)
		return nil
	}
	return err
}
