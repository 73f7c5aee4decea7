package device

import "fmt"

// VendorID is the USB vendor identifier shared by every boot-ROM mode.
const VendorID = 0x05AC

// Product identifiers distinguishing the boot-ROM modes.
const (
	ProductRecovery = 0x1281
	ProductWTF      = 0x1227
	ProductDFU      = 0x1222
)

// Mode is the low-level mode a connected device is in.
type Mode int

const (
	ModeDisconnected Mode = iota
	ModeRecovery
	ModeDFU
	ModeWTF
)

// probeOrder is the order Connect tries product IDs in. First match wins.
var probeOrder = []Mode{ModeRecovery, ModeWTF, ModeDFU}

func (m Mode) String() string {
	switch m {
	case ModeRecovery:
		return "Recovery"
	case ModeDFU:
		return "DFU"
	case ModeWTF:
		return "WTF"
	case ModeDisconnected:
		return "Disconnected"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ProductID returns the USB product identifier a device in mode m enumerates
// with, or 0 for ModeDisconnected.
func (m Mode) ProductID() uint16 {
	switch m {
	case ModeRecovery:
		return ProductRecovery
	case ModeDFU:
		return ProductDFU
	case ModeWTF:
		return ProductWTF
	}
	return 0
}

// ChunkSize is the upload chunk size for the mode: bulk chunks in Recovery,
// control (DFU download) chunks otherwise.
func (m Mode) ChunkSize() int {
	if m == ModeRecovery {
		return 0x8000
	}
	return 0x800
}

// usesControlFraming reports whether uploads go over the control pipe with
// checksum trailer and per-chunk status confirmation.
func (m Mode) usesControlFraming() bool {
	return m == ModeDFU || m == ModeWTF
}
