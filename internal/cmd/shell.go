package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/peterh/liner"

	"github.com/ibooter/ibooter/console"
	"github.com/ibooter/ibooter/device"
	"github.com/ibooter/ibooter/internal/configpaths"
	"github.com/ibooter/ibooter/internal/log"
)

type Shell struct {
	LogPath string `help:"Append the console transcript to this file (empty disables)" default:"recovery.log" env:"IBOOTER_SHELL_LOG"`
	History bool   `help:"Keep input history across sessions" default:"true" negatable:"" env:"IBOOTER_SHELL_HISTORY"`
}

// Run is called by Kong when the shell command is executed.
func (c *Shell) Run(logger *slog.Logger, rawLogger log.RawLogger, usbCfg *USB) error {
	return withLink(logger, rawLogger, usbCfg, func(ctx context.Context, link *device.Link) error {
		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)

		historyPath := ""
		if c.History {
			path, err := configpaths.HistoryFile()
			if err != nil {
				logger.Warn("Console history disabled", "error", err)
			} else {
				historyPath = path
				loadHistory(line, historyPath, logger)
			}
		}

		session := console.NewSession(link, line,
			console.WithOutput(stdout),
			console.WithLogger(logger),
			console.WithLogPath(c.LogPath),
			console.WithUploadOptions(usbCfg.uploadOptions()...),
		)
		err := session.Run(ctx)

		if historyPath != "" {
			saveHistory(line, historyPath, logger)
		}
		return err
	})
}

func loadHistory(line *liner.State, path string, logger *slog.Logger) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debug("read history", "path", path, "error", err)
		}
		return
	}
	defer f.Close()
	if _, err := line.ReadHistory(f); err != nil {
		logger.Debug("read history", "path", path, "error", err)
	}
}

func saveHistory(line *liner.State, path string, logger *slog.Logger) {
	f, err := os.Create(path)
	if err != nil {
		logger.Debug("write history", "path", path, "error", err)
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		logger.Debug("write history", "path", path, "error", err)
	}
}
