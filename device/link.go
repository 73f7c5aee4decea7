// Package device drives a boot-ROM device over USB: mode detection, textual
// commands, chunked uploads and console output.
//
// A Link owns the single open handle to the device. Every operation takes
// the Link explicitly; after Close all of them fail with ErrClosed.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ibooter/ibooter/internal/log"
	"github.com/ibooter/ibooter/usb"
)

// Config holds Link settings.
type Config struct {
	// Logger receives protocol progress messages (optional).
	Logger *slog.Logger

	// Raw receives a dump of every USB transfer (optional).
	Raw log.RawLogger

	// ControlTimeout bounds control transfers, bulk uploads and status polls.
	ControlTimeout time.Duration

	// PollTimeout bounds each console output read.
	PollTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		ControlTimeout: 1000 * time.Millisecond,
		PollTimeout:    100 * time.Millisecond,
	}
}

// Option is a functional option for configuring a Link.
type Option func(*Config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

func WithRawLogger(raw log.RawLogger) Option {
	return func(c *Config) { c.Raw = raw }
}

func WithControlTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ControlTimeout = timeout
		}
	}
}

func WithPollTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.PollTimeout = timeout
		}
	}
}

// Link is an open connection to a device in one fixed Mode.
type Link struct {
	h       usb.Handle
	mode    Mode
	claimed bool
	cfg     Config
	logger  *slog.Logger
	raw     log.RawLogger
}

// Connect probes the bus for the vendor ID against the Recovery, WTF and DFU
// product IDs in that order and opens the first device found.
func Connect(bus usb.Bus, opts ...Option) (*Link, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := log.OrDefault(cfg.Logger)
	raw := cfg.Raw
	if raw == nil {
		raw = log.NewRaw(nil)
	}

	var errs error
	for _, mode := range probeOrder {
		h, err := bus.Open(VendorID, mode.ProductID())
		if err != nil {
			logger.Debug("probe failed", "mode", mode, "product", fmt.Sprintf("0x%04x", mode.ProductID()), "error", err)
			errs = multierror.Append(errs, fmt.Errorf("%s mode (%04x:%04x): %w", mode, VendorID, mode.ProductID(), err))
			continue
		}
		if h == nil {
			continue
		}
		h.SetControlTimeout(cfg.ControlTimeout)
		logger.Info("Connected", "mode", mode)
		return &Link{h: h, mode: mode, cfg: cfg, logger: logger, raw: raw}, nil
	}
	if errs != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDevice, errs)
	}
	return nil, ErrNoDevice
}

// Mode returns the mode detected at connect time, or ModeDisconnected once
// the link is closed.
func (l *Link) Mode() Mode {
	if l == nil || l.h == nil {
		return ModeDisconnected
	}
	return l.mode
}

// Logger returns the logger the link reports to.
func (l *Link) Logger() *slog.Logger {
	return l.logger
}

// Close releases the handle. It is safe to call more than once.
func (l *Link) Close() error {
	if l == nil || l.h == nil {
		return nil
	}
	l.logger.Info("Closing connection")
	err := l.h.Close()
	l.h = nil
	l.claimed = false
	l.mode = ModeDisconnected
	return err
}

// Reset issues a bus reset. It does nothing on a closed link.
func (l *Link) Reset() error {
	if l == nil || l.h == nil {
		return nil
	}
	l.logger.Info("Resetting connection")
	return l.h.Reset()
}

// ClaimInterfaces selects configuration 1 and claims interface 0 and
// interface 1 alternate setting 1, which carry the bulk endpoints.
func (l *Link) ClaimInterfaces() error {
	if err := l.live(); err != nil {
		return err
	}
	if l.claimed {
		return nil
	}
	if err := l.h.Claim(usb.DefaultConfigurationNum, 0, 0); err != nil {
		return err
	}
	if err := l.h.Claim(usb.DefaultConfigurationNum, 1, 1); err != nil {
		_ = l.h.Release()
		return err
	}
	l.claimed = true
	return nil
}

// ReleaseInterfaces undoes ClaimInterfaces.
func (l *Link) ReleaseInterfaces() error {
	if l == nil || l.h == nil || !l.claimed {
		return nil
	}
	l.claimed = false
	return l.h.Release()
}

// Receive drains currently available console output into buf. It keeps
// reading until a read yields nothing, times out or buf is full, and returns
// the number of bytes collected. A non-timeout error is returned together
// with whatever was read before it.
func (l *Link) Receive(buf []byte) (int, error) {
	if err := l.live(); err != nil {
		return 0, err
	}
	total := 0
	for total < len(buf) {
		n, err := l.h.ReadBulk(usb.EndpointBulkIn, buf[total:], l.cfg.PollTimeout)
		if n > 0 {
			l.raw.Bulk(usb.EndpointBulkIn, buf[total:], n, nil)
		}
		total += n
		if err != nil {
			if errors.Is(err, usb.ErrTimeout) {
				break
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func (l *Link) live() error {
	if l == nil || l.h == nil {
		return ErrClosed
	}
	return nil
}

func (l *Link) control(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	if err := l.live(); err != nil {
		return 0, err
	}
	n, err := l.h.Control(requestType, request, value, index, data)
	l.raw.Control(requestType, request, value, index, data, n, err)
	return n, err
}

func (l *Link) writeBulk(data []byte) (int, error) {
	if err := l.live(); err != nil {
		return 0, err
	}
	n, err := l.h.WriteBulk(usb.EndpointBulkOut, data, l.cfg.ControlTimeout)
	l.raw.Bulk(usb.EndpointBulkOut, data, n, err)
	return n, err
}

const (
	requestDownload  = 1
	requestGetStatus = 3
	requestGetState  = 5

	statusResponseLen   = 6
	statusValueOffset   = 4
	statusChunkAccepted = 5
)

// status polls the DFU status and returns the state byte.
func (l *Link) status() (byte, error) {
	buf := make([]byte, statusResponseLen)
	n, err := l.control(usb.RequestTypeClassIfIn, requestGetStatus, 0, 0, buf)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStatusRead, err)
	}
	if n != statusResponseLen {
		return 0, fmt.Errorf("%w: got %d of %d bytes", ErrStatusRead, n, statusResponseLen)
	}
	return buf[statusValueOffset], nil
}
