package console

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ibooter/ibooter/device"
	ibooterTesting "github.com/ibooter/ibooter/internal/testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func connectRecovery(t *testing.T, dev *ibooterTesting.MockDevice) *device.Link {
	t.Helper()
	bus := ibooterTesting.NewMockBus(t)
	bus.Attach(device.ProductRecovery, dev)
	l, err := device.Connect(bus, device.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

type inputStep struct {
	line string
	err  error
}

// scriptedInput replays lines and then reports io.EOF.
type scriptedInput struct {
	steps   []inputStep
	prompts []string
	history []string
}

func lines(ls ...string) *scriptedInput {
	in := &scriptedInput{}
	for _, l := range ls {
		in.steps = append(in.steps, inputStep{line: l})
	}
	return in
}

func (s *scriptedInput) Prompt(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.steps) == 0 {
		return "", io.EOF
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.line, step.err
}

func (s *scriptedInput) AppendHistory(item string) {
	s.history = append(s.history, item)
}
