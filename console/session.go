package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ibooter/ibooter/device"
	"github.com/ibooter/ibooter/internal/log"
)

// LineReader supplies local input. *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Session is the interactive console: it alternates between draining device
// output and reading one line of local input.
type Session struct {
	link   *device.Link
	in     LineReader
	cfg    Config
	interp *Interpreter
	out    io.Writer
	logger *slog.Logger
}

func NewSession(link *device.Link, in LineReader, opts ...Option) *Session {
	cfg := newConfig(opts)
	return &Session{
		link:   link,
		in:     in,
		cfg:    cfg,
		interp: newInterpreter(link, cfg),
		out:    cfg.Out,
		logger: log.OrDefault(cfg.Logger),
	}
}

// Run claims the console interfaces and loops until the user exits, a reboot
// command is sent, local input ends, ctx is cancelled or reading from the
// device fails. Instruction errors are reported and do not end the session.
func (s *Session) Run(ctx context.Context) error {
	if err := s.link.ClaimInterfaces(); err != nil {
		return fmt.Errorf("claim console interfaces: %w", err)
	}
	defer func() {
		if err := s.link.ReleaseInterfaces(); err != nil {
			s.logger.Warn("release console interfaces", "error", err)
		}
	}()

	transcript, closeLog, err := s.openTranscript()
	if err != nil {
		return err
	}
	defer closeLog()

	s.logger.Info("Attached to recovery console")
	if s.cfg.LogPath != "" {
		s.logger.Info("Output being logged", "path", s.cfg.LogPath)
	}

	buf := make([]byte, s.cfg.BufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.link.Receive(buf)
		if n > 0 {
			_, _ = s.out.Write(buf[:n])
			if transcript != nil {
				_, _ = transcript.Write(buf[:n])
			}
		}
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}

		line, err := s.in.Prompt(s.cfg.Prompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			s.logger.Debug("no input line", "error", err)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		ins := Parse(line)
		if ins.Kind == KindEmpty {
			continue
		}
		s.in.AppendHistory(line)
		if transcript != nil {
			fmt.Fprintf(transcript, ">%s\n", strings.TrimRight(line, "\r\n"))
		}

		if s.execute(ctx, ins) == Exit {
			return nil
		}
	}
}

func (s *Session) execute(ctx context.Context, ins Instruction) Action {
	action, err := s.interp.Execute(ctx, ins)
	if err != nil {
		s.logger.Error("Command failed", "error", err)
		return action
	}
	if ins.Kind != KindRaw {
		return action
	}

	switch firstToken(ins.Text) {
	case "getenv":
		env, err := s.link.QueryEnvironment()
		if err != nil {
			s.logger.Error("Command failed", "error", err)
			break
		}
		fmt.Fprintf(s.out, "Env: %s\n", env)
	case "reboot":
		return Exit
	}
	return action
}

// openTranscript opens the configured log sinks. The returned close func is
// never nil.
func (s *Session) openTranscript() (io.Writer, func(), error) {
	var sinks []io.Writer
	if s.cfg.Log != nil {
		sinks = append(sinks, s.cfg.Log)
	}
	closeLog := func() {}
	if s.cfg.LogPath != "" {
		f, err := os.OpenFile(s.cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closeLog, fmt.Errorf("open console log: %w", err)
		}
		sinks = append(sinks, f)
		closeLog = func() {
			if err := f.Close(); err != nil {
				s.logger.Warn("close console log", "error", err)
			}
		}
	}
	switch len(sinks) {
	case 0:
		return nil, closeLog, nil
	case 1:
		return sinks[0], closeLog, nil
	}
	return io.MultiWriter(sinks...), closeLog, nil
}
