package console

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibooter/ibooter/device"
	ibooterTesting "github.com/ibooter/ibooter/internal/testing"
)

func writeScript(t *testing.T, dir, name string, ls ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(ls, "\n")), 0o644))
	return path
}

func newTestInterpreter(link *device.Link, out *bytes.Buffer) *Interpreter {
	return NewInterpreter(link, WithOutput(out), WithLogger(quietLogger()))
}

func TestRunBatchScenario(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	link := connectRecovery(t, dev)
	script := writeScript(t, t.TempDir(), "boot.txt",
		"// header comment",
		"/auto-boot",
		"setenv foo bar",
	)

	var out bytes.Buffer
	require.NoError(t, newTestInterpreter(link, &out).RunBatch(context.Background(), script))

	assert.Equal(t, []string{"setenv auto-boot true", "saveenv", "reboot", "setenv foo bar"}, dev.Commands())
	assert.Len(t, dev.Controls, 4, "the comment line produces no traffic")
	assert.Contains(t, out.String(), "Running command: /auto-boot")
}

func TestRunBatchStripsLineEndings(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	link := connectRecovery(t, dev)
	path := filepath.Join(t.TempDir(), "crlf.txt")
	require.NoError(t, os.WriteFile(path, []byte("bgcolor 0 0 255\r\n\r\ngo\r\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, newTestInterpreter(link, &out).RunBatch(context.Background(), path))
	assert.Equal(t, []string{"bgcolor 0 0 255", "go"}, dev.Commands())
}

func TestRunBatchMissingFile(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	link := connectRecovery(t, dev)

	var out bytes.Buffer
	err := newTestInterpreter(link, &out).RunBatch(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, ErrBatchFileNotFound)
	assert.Empty(t, dev.Controls)
}

func TestRunBatchContinuesAfterFailedLine(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	link := connectRecovery(t, dev)
	script := writeScript(t, t.TempDir(), "mixed.txt",
		strings.Repeat("x", device.MaxCommandLength),
		"/batch",
		"/frobnicate",
		"setenv foo bar",
	)

	var out bytes.Buffer
	err := newTestInterpreter(link, &out).RunBatch(context.Background(), script)
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrCommandTooLong)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, err.Error(), "mixed.txt:1")

	assert.Equal(t, []string{"setenv foo bar"}, dev.Commands())
	assert.Contains(t, out.String(), "Command not found: frobnicate")
	assert.Contains(t, out.String(), "Commands:")
}

func TestRunBatchNested(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	link := connectRecovery(t, dev)
	dir := t.TempDir()
	inner := writeScript(t, dir, "inner.txt", "setenv inner 1")
	outer := writeScript(t, dir, "outer.txt",
		"setenv outer 1",
		"/batch "+inner,
		"setenv outer 2",
	)

	var out bytes.Buffer
	require.NoError(t, newTestInterpreter(link, &out).RunBatch(context.Background(), outer))
	assert.Equal(t, []string{"setenv outer 1", "setenv inner 1", "setenv outer 2"}, dev.Commands())
}

func TestRunBatchDepthLimit(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	link := connectRecovery(t, dev)
	path := filepath.Join(t.TempDir(), "loop.txt")
	require.NoError(t, os.WriteFile(path, []byte("echo\n/batch "+path+"\n"), 0o644))

	var out bytes.Buffer
	interp := newTestInterpreter(link, &out)
	err := interp.RunBatch(context.Background(), path)
	assert.ErrorIs(t, err, ErrBatchDepth)
	assert.Len(t, dev.Commands(), MaxBatchDepth)
	assert.Zero(t, interp.depth)
}

func TestRunBatchExitEndsScript(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	link := connectRecovery(t, dev)
	script := writeScript(t, t.TempDir(), "exit.txt", "first", "/exit", "second")

	var out bytes.Buffer
	require.NoError(t, newTestInterpreter(link, &out).RunBatch(context.Background(), script))
	assert.Equal(t, []string{"first"}, dev.Commands())
}

func TestRunBatchHonoursCancellation(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	link := connectRecovery(t, dev)
	script := writeScript(t, t.TempDir(), "cancel.txt", "first", "second")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := newTestInterpreter(link, &out).RunBatch(ctx, script)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dev.Commands())
}

func TestExecuteUploadMeta(t *testing.T) {
	dev := ibooterTesting.NewMockDevice()
	link := connectRecovery(t, dev)
	payload := filepath.Join(t.TempDir(), "ibec.img3")
	require.NoError(t, os.WriteFile(payload, []byte("3gmI payload"), 0o644))

	var out bytes.Buffer
	action, err := newTestInterpreter(link, &out).Execute(context.Background(), Parse("/upload "+payload))
	require.NoError(t, err)
	assert.Equal(t, Continue, action)
	require.Len(t, dev.Bulk, 1)
	assert.Equal(t, []byte("3gmI payload"), dev.Bulk[0].Data)

	_, err = newTestInterpreter(link, &out).Execute(context.Background(), Parse("/upload"))
	assert.ErrorIs(t, err, ErrUsage)
}
