package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/ibooter/ibooter/device"
	"github.com/ibooter/ibooter/img3"
	"github.com/ibooter/ibooter/internal/log"
)

type Upload struct {
	File     string `arg:"" help:"IMG3 file to upload" type:"existingfile"`
	Finalize string `help:"Handshake after the last DFU chunk: none, signal or zlp" default:"signal" enum:"none,signal,zlp" env:"IBOOTER_UPLOAD_FINALIZE"`
	Force    bool   `help:"Upload even if the file is not an IMG3 container"`
}

// Run is called by Kong when the upload command is executed.
func (c *Upload) Run(logger *slog.Logger, rawLogger log.RawLogger, usbCfg *USB) error {
	finalize, err := device.ParseFinalize(c.Finalize)
	if err != nil {
		return err
	}
	if err := img3.CheckFile(c.File); err != nil {
		if !c.Force || !errors.Is(err, img3.ErrNotIMG3) {
			return err
		}
		logger.Warn("Uploading anyway", "reason", err)
	}
	payload, err := device.ReadPayload(c.File)
	if err != nil {
		return err
	}
	if ident, ok := img3.Type(payload); ok {
		logger.Info("Uploading image", "file", c.File, "type", ident, "bytes", len(payload))
	}

	return withLink(logger, rawLogger, usbCfg, func(ctx context.Context, link *device.Link) error {
		report, done := progressReporter(logger, len(payload))
		defer done()

		opts := append(usbCfg.uploadOptions(), device.WithProgressCallback(report))
		return device.NewUploader(link, opts...).Upload(ctx, payload, finalize)
	})
}

// progressReporter draws a bar on a terminal and logs chunk progress otherwise.
func progressReporter(logger *slog.Logger, total int) (device.ProgressCallback, func()) {
	if f, ok := stdout.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return func(p device.Progress) {
			logger.Info("Sent", "bytes", p.Sent, "total", p.Total, "chunk", p.Chunk, "chunks", p.Chunks)
		}, func() {}
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(stdout),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionShowBytes(true),
	)
	report := func(p device.Progress) { _ = bar.Set(p.Sent) }
	done := func() { fmt.Fprintln(stdout) }
	return report, done
}
