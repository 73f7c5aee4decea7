// Package usb describes the USB transport capability the boot-ROM protocol
// is built on, and provides a libusb backed implementation.
//
// The protocol only needs a very small slice of USB: opening one device by
// vendor/product ID, control transfers on the default pipe, bulk transfers on
// two fixed endpoints, claiming interfaces and a bus reset.
package usb

import (
	"errors"
	"time"
)

// bmRequestType values used by the boot ROM.
const (
	RequestTypeVendorOut    = 0x40 // host->device, vendor, device
	RequestTypeVendorIfOut  = 0x41 // host->device, vendor, interface
	RequestTypeVendorIn     = 0xC0 // device->host, vendor, device
	RequestTypeClassIfOut   = 0x21 // host->device, class, interface
	RequestTypeClassIfIn    = 0xA1 // device->host, class, interface
	DirectionIn             = 0x80
	EndpointAddressNumMask  = 0x0F
	DefaultConfigurationNum = 1
)

// Bulk endpoint addresses.
const (
	EndpointBulkOut = 0x04
	EndpointBulkIn  = 0x81
)

var (
	// ErrTimeout is returned by Handle.ReadBulk when no data arrived before
	// the timeout elapsed. It is not a link failure.
	ErrTimeout = errors.New("usb: transfer timed out")

	// ErrNotClaimed is returned by bulk transfers when no claimed interface
	// exposes the requested endpoint.
	ErrNotClaimed = errors.New("usb: endpoint not available on any claimed interface")

	// ErrClosed is returned by every Handle method after Close.
	ErrClosed = errors.New("usb: handle closed")
)

// Bus opens devices by vendor/product ID.
type Bus interface {
	// Open returns (nil, nil) when no device with the given IDs is attached.
	Open(vendorID, productID uint16) (Handle, error)
	Close() error
}

// Handle is an open, exclusively owned USB device.
type Handle interface {
	// Control issues a control transfer on the default pipe. For IN
	// requests data receives the response; the returned count is the
	// number of bytes actually transferred.
	Control(requestType, request uint8, value, index uint16, data []byte) (int, error)

	// WriteBulk sends data to an OUT endpoint address (e.g. 0x04).
	WriteBulk(endpoint uint8, data []byte, timeout time.Duration) (int, error)

	// ReadBulk reads from an IN endpoint address (e.g. 0x81). It returns
	// ErrTimeout when nothing arrived in time.
	ReadBulk(endpoint uint8, buf []byte, timeout time.Duration) (int, error)

	// Claim selects the configuration (once) and claims iface at alt.
	Claim(config, iface, alt int) error

	// Release releases every claimed interface and the active configuration.
	Release() error

	SetControlTimeout(timeout time.Duration)
	Reset() error
	Close() error
}
