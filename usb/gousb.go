package usb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
)

// GousbBus is a Bus backed by a libusb context.
type GousbBus struct {
	ctx *gousb.Context
}

// NewGousbBus initializes libusb. libusb initialization panics on some
// platforms when no backend is available; that is reported as an error.
func NewGousbBus() (bus *GousbBus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to initialize USB: %v", r)
		}
	}()
	return &GousbBus{ctx: gousb.NewContext()}, nil
}

func (b *GousbBus) Open(vendorID, productID uint16) (Handle, error) {
	dev, err := b.ctx.OpenDeviceWithVIDPID(gousb.ID(vendorID), gousb.ID(productID))
	if err != nil {
		if dev != nil {
			_ = dev.Close()
		}
		return nil, err
	}
	if dev == nil {
		return nil, nil
	}
	_ = dev.SetAutoDetach(true)
	return &gousbHandle{dev: dev}, nil
}

func (b *GousbBus) Close() error {
	return b.ctx.Close()
}

type gousbHandle struct {
	mu     sync.Mutex
	dev    *gousb.Device
	cfg    *gousb.Config
	intfs  []*gousb.Interface
	in     map[uint8]*gousb.InEndpoint
	out    map[uint8]*gousb.OutEndpoint
	closed bool
}

func (h *gousbHandle) Control(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	n, err := h.dev.Control(requestType, request, value, index, data)
	return n, mapError(err)
}

func (h *gousbHandle) SetControlTimeout(timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dev.ControlTimeout = timeout
}

func (h *gousbHandle) WriteBulk(endpoint uint8, data []byte, timeout time.Duration) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	ep, err := h.outEndpoint(endpoint)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := ep.WriteContext(ctx, data)
	return n, mapError(err)
}

func (h *gousbHandle) ReadBulk(endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	ep, err := h.inEndpoint(endpoint)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := ep.ReadContext(ctx, buf)
	if n > 0 {
		return n, nil
	}
	return n, mapError(err)
}

func (h *gousbHandle) Claim(config, iface, alt int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if h.cfg == nil {
		cfg, err := h.dev.Config(config)
		if err != nil {
			return fmt.Errorf("set configuration %d: %w", config, err)
		}
		h.cfg = cfg
	}
	for _, intf := range h.intfs {
		if intf.Setting.Number == iface && intf.Setting.Alternate == alt {
			return nil
		}
	}
	intf, err := h.cfg.Interface(iface, alt)
	if err != nil {
		return fmt.Errorf("claim interface %d alt %d: %w", iface, alt, err)
	}
	h.intfs = append(h.intfs, intf)
	return nil
}

func (h *gousbHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releaseLocked()
}

func (h *gousbHandle) releaseLocked() error {
	for i := len(h.intfs) - 1; i >= 0; i-- {
		h.intfs[i].Close()
	}
	h.intfs = nil
	h.in = nil
	h.out = nil
	if h.cfg == nil {
		return nil
	}
	err := h.cfg.Close()
	h.cfg = nil
	return err
}

func (h *gousbHandle) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	return mapError(h.dev.Reset())
}

func (h *gousbHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	relErr := h.releaseLocked()
	if err := h.dev.Close(); err != nil {
		return err
	}
	return relErr
}

func (h *gousbHandle) inEndpoint(addr uint8) (*gousb.InEndpoint, error) {
	if ep, ok := h.in[addr]; ok {
		return ep, nil
	}
	for _, intf := range h.intfs {
		ep, err := intf.InEndpoint(int(addr & EndpointAddressNumMask))
		if err != nil {
			continue
		}
		if h.in == nil {
			h.in = make(map[uint8]*gousb.InEndpoint)
		}
		h.in[addr] = ep
		return ep, nil
	}
	return nil, fmt.Errorf("%w: 0x%02x", ErrNotClaimed, addr)
}

func (h *gousbHandle) outEndpoint(addr uint8) (*gousb.OutEndpoint, error) {
	if ep, ok := h.out[addr]; ok {
		return ep, nil
	}
	for _, intf := range h.intfs {
		ep, err := intf.OutEndpoint(int(addr & EndpointAddressNumMask))
		if err != nil {
			continue
		}
		if h.out == nil {
			h.out = make(map[uint8]*gousb.OutEndpoint)
		}
		h.out[addr] = ep
		return ep, nil
	}
	return nil, fmt.Errorf("%w: 0x%02x", ErrNotClaimed, addr)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, gousb.ErrorTimeout),
		errors.Is(err, gousb.TransferTimedOut),
		errors.Is(err, gousb.TransferCancelled):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return err
	}
}
