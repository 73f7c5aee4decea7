package usb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	other := errors.New("pipe")
	tests := []struct {
		name        string
		in          error
		wantTimeout bool
	}{
		{name: "deadline", in: context.DeadlineExceeded, wantTimeout: true},
		{name: "wrapped deadline", in: fmt.Errorf("read: %w", context.DeadlineExceeded), wantTimeout: true},
		{name: "libusb timeout", in: gousb.ErrorTimeout, wantTimeout: true},
		{name: "transfer timed out", in: gousb.TransferTimedOut, wantTimeout: true},
		{name: "transfer cancelled", in: gousb.TransferCancelled, wantTimeout: true},
		{name: "stall", in: gousb.TransferStall},
		{name: "other", in: other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			assert.Equal(t, tt.wantTimeout, errors.Is(got, ErrTimeout))
			assert.ErrorIs(t, got, tt.in)
		})
	}
	assert.NoError(t, mapError(nil))
}

func TestClosedHandle(t *testing.T) {
	h := &gousbHandle{closed: true}

	_, err := h.Control(RequestTypeVendorOut, 0, 0, 0, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.WriteBulk(EndpointBulkOut, []byte{1}, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.ReadBulk(EndpointBulkIn, make([]byte, 1), time.Second)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, h.Claim(DefaultConfigurationNum, 0, 0), ErrClosed)
	assert.ErrorIs(t, h.Reset(), ErrClosed)
	assert.NoError(t, h.Close())
	assert.NoError(t, h.Release())
}

func TestBulkRequiresClaimedInterface(t *testing.T) {
	h := &gousbHandle{}

	_, err := h.WriteBulk(EndpointBulkOut, []byte{1}, time.Second)
	assert.ErrorIs(t, err, ErrNotClaimed)
	_, err = h.ReadBulk(EndpointBulkIn, make([]byte, 1), time.Second)
	assert.ErrorIs(t, err, ErrNotClaimed)
}
