// Package cmd holds one kong command per CLI verb. Every command opens the
// USB bus, connects to the device and closes both before returning.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/ibooter/ibooter/device"
	"github.com/ibooter/ibooter/internal/log"
	"github.com/ibooter/ibooter/usb"
)

// USB holds the transfer timing shared by all commands.
type USB struct {
	ControlTimeout time.Duration `help:"Timeout of control and bulk transfers" default:"1s" env:"IBOOTER_USB_CONTROL_TIMEOUT"`
	PollTimeout    time.Duration `help:"Timeout of each console output read" default:"100ms" env:"IBOOTER_USB_POLL_TIMEOUT"`
	StatusRetries  int           `help:"Status polls per DFU chunk before giving up" default:"20" env:"IBOOTER_USB_STATUS_RETRIES"`
	RetryDelay     time.Duration `help:"Pause between two status polls" default:"1s" env:"IBOOTER_USB_RETRY_DELAY"`
}

func (u *USB) linkOptions(logger *slog.Logger, rawLogger log.RawLogger) []device.Option {
	return []device.Option{
		device.WithLogger(logger),
		device.WithRawLogger(rawLogger),
		device.WithControlTimeout(u.ControlTimeout),
		device.WithPollTimeout(u.PollTimeout),
	}
}

func (u *USB) uploadOptions() []device.UploadOption {
	return []device.UploadOption{
		device.WithStatusPolls(u.StatusRetries),
		device.WithRetryDelay(u.RetryDelay),
	}
}

var (
	openBus = func() (usb.Bus, error) { return usb.NewGousbBus() }

	stdout io.Writer = os.Stdout
)

// withLink connects to the device and runs fn. The link and the bus are
// closed on every return path, including interruption by a signal.
func withLink(logger *slog.Logger, rawLogger log.RawLogger, cfg *USB, fn func(ctx context.Context, link *device.Link) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	bus, err := openBus()
	if err != nil {
		return fmt.Errorf("open usb: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Debug("close usb", "error", err)
		}
	}()

	link, err := device.Connect(bus, cfg.linkOptions(logger, rawLogger)...)
	if err != nil {
		return err
	}
	defer func() {
		if err := link.Close(); err != nil {
			logger.Warn("close device", "error", err)
		}
	}()

	return fn(ctx, link)
}
