// Package testing provides an in-memory USB bus and device for exercising the
// boot-ROM protocol without hardware.
package testing

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ibooter/ibooter/usb"
)

// ControlCall is one recorded control transfer.
type ControlCall struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Data        []byte // copy of the OUT payload, or the IN buffer length in zeros
}

// BulkCall is one recorded bulk OUT transfer.
type BulkCall struct {
	Endpoint uint8
	Data     []byte
}

// Claim is one recorded interface claim.
type Claim struct {
	Config, Interface, Alt int
}

// Response overrides the default handling of a control transfer.
type Response struct {
	N   int
	Err error
}

// MockDevice is a scripted boot-ROM device.
//
// Status polls (0xA1/3) answer with successive values from Statuses and
// repeat the last one once exhausted (5 when empty). The readiness probe
// (0xA1/5) answers one byte. Environment reads (0xC0/0) copy Env. OUT
// transfers are accepted in full unless OnControl says otherwise. Bulk IN
// reads pop Output, then time out.
type MockDevice struct {
	mu sync.Mutex

	Statuses  []byte
	Env       string
	Output    [][]byte
	ReadErr   error
	BulkShort int // when > 0, bulk OUT writes report at most this many bytes
	ClaimErr  error
	ResetErr  error

	// OnControl, when set, is consulted first. Returning ok=false falls
	// back to the default behaviour.
	OnControl func(c ControlCall, data []byte) (r Response, ok bool)

	Controls []ControlCall
	Bulk     []BulkCall
	Claims   []Claim
	Releases int
	Resets   int
	Reads    int
	Closed   bool

	controlTimeout time.Duration
	statusIdx      int
}

func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

func (d *MockDevice) Control(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Closed {
		return 0, usb.ErrClosed
	}

	call := ControlCall{RequestType: requestType, Request: request, Value: value, Index: index, Data: append([]byte(nil), data...)}
	d.Controls = append(d.Controls, call)

	if d.OnControl != nil {
		if r, ok := d.OnControl(call, data); ok {
			return r.N, r.Err
		}
	}

	switch {
	case requestType == usb.RequestTypeClassIfIn && request == 3:
		st := byte(5)
		if len(d.Statuses) > 0 {
			i := d.statusIdx
			if i >= len(d.Statuses) {
				i = len(d.Statuses) - 1
			}
			st = d.Statuses[i]
			d.statusIdx++
		}
		resp := []byte{0, 0, 0, 0, st, 0}
		return copy(data, resp), nil
	case requestType == usb.RequestTypeClassIfIn && request == 5:
		if len(data) == 0 {
			return 0, nil
		}
		data[0] = 5
		return 1, nil
	case requestType == usb.RequestTypeVendorIn:
		return copy(data, d.Env), nil
	case requestType&usb.DirectionIn == 0:
		return len(data), nil
	}
	return 0, errors.New("mock: unhandled control request")
}

func (d *MockDevice) WriteBulk(endpoint uint8, data []byte, _ time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Closed {
		return 0, usb.ErrClosed
	}
	d.Bulk = append(d.Bulk, BulkCall{Endpoint: endpoint, Data: append([]byte(nil), data...)})
	if d.BulkShort > 0 && len(data) > d.BulkShort {
		return d.BulkShort, nil
	}
	return len(data), nil
}

func (d *MockDevice) ReadBulk(_ uint8, buf []byte, _ time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Closed {
		return 0, usb.ErrClosed
	}
	d.Reads++
	if len(d.Output) == 0 {
		if d.ReadErr != nil {
			return 0, d.ReadErr
		}
		return 0, usb.ErrTimeout
	}
	n := copy(buf, d.Output[0])
	if n < len(d.Output[0]) {
		d.Output[0] = d.Output[0][n:]
	} else {
		d.Output = d.Output[1:]
	}
	return n, nil
}

func (d *MockDevice) Claim(config, iface, alt int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ClaimErr != nil {
		return d.ClaimErr
	}
	d.Claims = append(d.Claims, Claim{Config: config, Interface: iface, Alt: alt})
	return nil
}

func (d *MockDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Releases++
	return nil
}

func (d *MockDevice) SetControlTimeout(timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.controlTimeout = timeout
}

// ControlTimeout returns the last timeout set through SetControlTimeout.
func (d *MockDevice) ControlTimeout() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.controlTimeout
}

func (d *MockDevice) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Resets++
	return d.ResetErr
}

func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// Requests returns the recorded control calls matching requestType/request.
func (d *MockDevice) Requests(requestType, request uint8) []ControlCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []ControlCall
	for _, c := range d.Controls {
		if c.RequestType == requestType && c.Request == request {
			out = append(out, c)
		}
	}
	return out
}

// Commands returns the text of every command written with 0x40/0, without
// the terminator.
func (d *MockDevice) Commands() []string {
	var out []string
	for _, c := range d.Requests(usb.RequestTypeVendorOut, 0) {
		s := c.Data
		if n := len(s); n > 0 && s[n-1] == 0 {
			s = s[:n-1]
		}
		out = append(out, string(s))
	}
	return out
}

// MockBus serves MockDevices keyed by product ID.
type MockBus struct {
	mu       sync.Mutex
	devices  map[uint16]*MockDevice
	openErrs map[uint16]error
	Opened   []uint16
	Closed   bool
}

func NewMockBus(t *testing.T) *MockBus {
	t.Helper()
	return &MockBus{devices: map[uint16]*MockDevice{}, openErrs: map[uint16]error{}}
}

// Attach plugs dev in under productID.
func (b *MockBus) Attach(productID uint16, dev *MockDevice) *MockDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[productID] = dev
	return dev
}

// FailOpen makes opening productID return err.
func (b *MockBus) FailOpen(productID uint16, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErrs[productID] = err
}

func (b *MockBus) Open(_ uint16, productID uint16) (usb.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.openErrs[productID]; ok {
		return nil, err
	}
	dev, ok := b.devices[productID]
	if !ok {
		return nil, nil
	}
	b.Opened = append(b.Opened, productID)
	return dev, nil
}

func (b *MockBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}
