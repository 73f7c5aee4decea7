// Package console implements the interactive recovery console and the batch
// script runner on top of a device.Link.
//
// Console input and batch lines are parsed into an Instruction and executed
// by the same Interpreter, so both accept identical meta-commands.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/ibooter/ibooter/device"
	"github.com/ibooter/ibooter/internal/log"
)

// MaxBatchDepth bounds how deeply batch files may invoke each other.
const MaxBatchDepth = 8

// Action tells the caller whether to keep going after an instruction.
type Action int

const (
	Continue Action = iota
	Exit
)

// Config holds console settings shared by Interpreter and Session.
type Config struct {
	// Out receives device output, help text and notices. Defaults to stdout.
	Out io.Writer

	// Logger receives diagnostics (optional).
	Logger *slog.Logger

	// LogPath, when set, is opened in append mode and receives a transcript.
	LogPath string

	// Log receives a transcript in addition to LogPath (optional).
	Log io.Writer

	// BufferSize is the size of the console receive buffer.
	BufferSize int

	// Prompt is shown before every line of input.
	Prompt string

	// UploadOptions are applied to uploads started with /upload.
	UploadOptions []device.UploadOption
}

func defaultConfig() Config {
	return Config{
		Out:        os.Stdout,
		BufferSize: 0x10000,
		Prompt:     "ibooter> ",
	}
}

// Option is a functional option for configuring the console.
type Option func(*Config)

func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		if w != nil {
			c.Out = w
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithLogPath appends a session transcript to path.
func WithLogPath(path string) Option {
	return func(c *Config) { c.LogPath = path }
}

// WithLogWriter sends the session transcript to w.
func WithLogWriter(w io.Writer) Option {
	return func(c *Config) { c.Log = w }
}

func WithBufferSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

func WithPrompt(prompt string) Option {
	return func(c *Config) { c.Prompt = prompt }
}

func WithUploadOptions(opts ...device.UploadOption) Option {
	return func(c *Config) { c.UploadOptions = append(c.UploadOptions, opts...) }
}

func newConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Interpreter executes parsed instructions against a link.
type Interpreter struct {
	link   *device.Link
	cfg    Config
	out    io.Writer
	logger *slog.Logger
	depth  int
}

func NewInterpreter(link *device.Link, opts ...Option) *Interpreter {
	return newInterpreter(link, newConfig(opts))
}

func newInterpreter(link *device.Link, cfg Config) *Interpreter {
	return &Interpreter{
		link:   link,
		cfg:    cfg,
		out:    cfg.Out,
		logger: log.OrDefault(cfg.Logger),
	}
}

// Execute runs one instruction. Raw instructions are sent to the device as
// they are; comments and blank lines do nothing.
func (in *Interpreter) Execute(ctx context.Context, ins Instruction) (Action, error) {
	switch ins.Kind {
	case KindMeta:
		return in.meta(ctx, ins)
	case KindRaw:
		return Continue, in.link.SendCommand(ins.Text)
	}
	return Continue, nil
}

func (in *Interpreter) meta(ctx context.Context, ins Instruction) (Action, error) {
	switch ins.Verb {
	case "help":
		in.help()
	case "exit", "e":
		return Exit, nil
	case "batch":
		if len(ins.Args) == 0 {
			return Continue, fmt.Errorf("%w: batch <file>", ErrUsage)
		}
		return Continue, in.RunBatch(ctx, ins.Args[0])
	case "auto-boot", "up":
		return Continue, in.link.AutoBoot()
	case "upload":
		if len(ins.Args) == 0 {
			return Continue, fmt.Errorf("%w: upload <file>", ErrUsage)
		}
		up := device.NewUploader(in.link, in.cfg.UploadOptions...)
		return Continue, up.UploadFile(ctx, ins.Args[0], device.FinalizeSignal)
	default:
		fmt.Fprintf(in.out, "Command not found: %s\n", ins.Verb)
		in.help()
	}
	return Continue, nil
}

func (in *Interpreter) help() {
	fmt.Fprint(in.out, "Commands:\n"+
		"\t/help\t\t\tshow this list.\n"+
		"\t/exit, /e\t\texit from recovery console.\n"+
		"\t/upload <file>\t\tupload file to device.\n"+
		"\t/batch <file>\t\texecute commands from a batch file.\n"+
		"\t/auto-boot, /up\t\tenable auto-boot (exit recovery loop).\n")
}

// RunBatch executes a script line by line. A failing line is reported and
// the script carries on; the failures are returned together once the script
// ends. An exit meta-command ends the script early.
func (in *Interpreter) RunBatch(ctx context.Context, path string) error {
	if in.depth >= MaxBatchDepth {
		return fmt.Errorf("%w: %s", ErrBatchDepth, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBatchFileNotFound, err)
	}
	defer f.Close()

	in.depth++
	defer func() { in.depth-- }()

	in.logger.Debug("running batch file", "path", path, "depth", in.depth)

	var errs error
	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return multierror.Append(errs, err).ErrorOrNil()
		}
		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return multierror.Append(errs, fmt.Errorf("%s: %w", path, readErr)).ErrorOrNil()
		}
		if line == "" && readErr != nil {
			break
		}

		ins := Parse(line)
		if ins.Kind == KindMeta {
			fmt.Fprintf(in.out, "Running command: %s\n", strings.TrimRight(line, "\r\n"))
		}
		action, err := in.Execute(ctx, ins)
		if err != nil {
			err = fmt.Errorf("%s:%d: %w", path, lineNo, err)
			in.logger.Warn("batch line failed", "error", err)
			errs = multierror.Append(errs, err)
		}
		if action == Exit || readErr != nil {
			break
		}
	}
	return errs
}
