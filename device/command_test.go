package device

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ibooterTesting "github.com/ibooter/ibooter/internal/testing"
	"github.com/ibooter/ibooter/usb"
)

func TestSendCommandWireFormat(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	l := connectMock(t, ModeRecovery, dev)

	require.NoError(t, l.SendCommand("setenv auto-boot false"))

	calls := dev.Requests(usb.RequestTypeVendorOut, requestCommand)
	require.Len(t, calls, 1)
	assert.Equal(t, append([]byte("setenv auto-boot false"), 0), calls[0].Data)
	assert.Equal(t, uint16(0), calls[0].Value)
	assert.Equal(t, uint16(0), calls[0].Index)
}

func TestSendCommandLengthLimit(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantErr error
	}{
		{name: "empty", length: 0},
		{name: "boundary", length: MaxCommandLength - 1},
		{name: "too long", length: MaxCommandLength, wantErr: ErrCommandTooLong},
		{name: "way too long", length: 4 * MaxCommandLength, wantErr: ErrCommandTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := ibooterTesting.NewMockDevice()
			l := connectMock(t, ModeRecovery, dev)

			err := l.SendCommand(strings.Repeat("a", tt.length))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, dev.Controls)
				return
			}
			require.NoError(t, err)
			calls := dev.Requests(usb.RequestTypeVendorOut, requestCommand)
			require.Len(t, calls, 1)
			assert.Len(t, calls[0].Data, tt.length+1)
		})
	}
}

func TestSendCommandFailures(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		dev := ibooterTesting.NewMockDevice()
		dev.OnControl = func(ibooterTesting.ControlCall, []byte) (ibooterTesting.Response, bool) {
			return ibooterTesting.Response{Err: errors.New("pipe stalled")}, true
		}
		l := connectMock(t, ModeRecovery, dev)

		assert.ErrorIs(t, l.SendCommand("reboot"), ErrCommandSend)
	})

	t.Run("short write", func(t *testing.T) {
		dev := ibooterTesting.NewMockDevice()
		dev.OnControl = func(_ ibooterTesting.ControlCall, data []byte) (ibooterTesting.Response, bool) {
			return ibooterTesting.Response{N: len(data) - 1}, true
		}
		l := connectMock(t, ModeRecovery, dev)

		err := l.SendCommand("reboot")
		assert.ErrorIs(t, err, ErrCommandSend)
		assert.Contains(t, err.Error(), "reboot")
	})
}

func TestQueryEnvironment(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	dev.Env = "true\x00garbage"
	l := connectMock(t, ModeRecovery, dev)

	env, err := l.QueryEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "true", env)

	calls := dev.Requests(usb.RequestTypeVendorIn, requestEnvironment)
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Data, MaxCommandLength)
}

func TestAutoBoot(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	l := connectMock(t, ModeRecovery, dev)

	require.NoError(t, l.AutoBoot())
	assert.Equal(t, []string{"setenv auto-boot true", "saveenv", "reboot"}, dev.Commands())
}

func TestAutoBootStopsAtFirstFailure(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	dev.OnControl = func(c ibooterTesting.ControlCall, _ []byte) (ibooterTesting.Response, bool) {
		if string(c.Data) == "saveenv\x00" {
			return ibooterTesting.Response{Err: errors.New("nand busy")}, true
		}
		return ibooterTesting.Response{}, false
	}
	l := connectMock(t, ModeRecovery, dev)

	err := l.AutoBoot()
	require.ErrorIs(t, err, ErrCommandSend)
	assert.Equal(t, []string{"setenv auto-boot true", "saveenv"}, dev.Commands())
}
