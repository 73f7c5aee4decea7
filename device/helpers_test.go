package device

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ibooterTesting "github.com/ibooter/ibooter/internal/testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func connectMock(t *testing.T, mode Mode, dev *ibooterTesting.MockDevice) *Link {
	t.Helper()
	bus := ibooterTesting.NewMockBus(t)
	bus.Attach(mode.ProductID(), dev)
	l, err := Connect(bus, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Equal(t, mode, l.Mode())
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// withSleepCounter replaces the retry pause with a counter.
func withSleepCounter(n *int) UploadOption {
	return func(c *UploadConfig) {
		c.sleep = func(ctx context.Context, _ time.Duration) error {
			*n++
			return ctx.Err()
		}
	}
}

func patterned(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}
