package device

import (
	"bytes"
	"fmt"

	"github.com/ibooter/ibooter/usb"
)

// MaxCommandLength is the size of the device command buffer, terminator
// included. Commands must be strictly shorter.
const MaxCommandLength = 0x200

const (
	requestCommand     = 0
	requestEnvironment = 0
)

// AutoBootCommands are sent by AutoBoot, in order.
var AutoBootCommands = []string{
	"setenv auto-boot true",
	"saveenv",
	"reboot",
}

// SendCommand writes a NUL terminated command string on the control pipe.
func (l *Link) SendCommand(command string) error {
	if err := l.live(); err != nil {
		return err
	}
	if len(command) >= MaxCommandLength {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrCommandTooLong, len(command), MaxCommandLength-1)
	}

	buf := make([]byte, len(command)+1)
	copy(buf, command)
	n, err := l.control(usb.RequestTypeVendorOut, requestCommand, 0, 0, buf)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrCommandSend, command, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w %q: wrote %d of %d bytes", ErrCommandSend, command, n, len(buf))
	}
	l.logger.Debug("command sent", "command", command)
	return nil
}

// QueryEnvironment reads the response to a preceding getenv command.
func (l *Link) QueryEnvironment() (string, error) {
	buf := make([]byte, MaxCommandLength)
	n, err := l.control(usb.RequestTypeVendorIn, requestEnvironment, 0, 0, buf)
	if err != nil {
		return "", fmt.Errorf("read environment: %w", err)
	}
	resp := buf[:n]
	if i := bytes.IndexByte(resp, 0); i >= 0 {
		resp = resp[:i]
	}
	return string(resp), nil
}

// AutoBoot enables auto-boot, saves the environment and reboots. It stops at
// the first command that fails.
func (l *Link) AutoBoot() error {
	if err := l.live(); err != nil {
		return err
	}
	l.logger.Info("Enabling auto-boot")
	for _, cmd := range AutoBootCommands {
		if err := l.SendCommand(cmd); err != nil {
			return fmt.Errorf("auto-boot: %w", err)
		}
	}
	return nil
}
