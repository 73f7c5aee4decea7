package console

import "errors"

var (
	// ErrBatchFileNotFound indicates a batch script could not be opened.
	ErrBatchFileNotFound = errors.New("unable to find batch file")

	// ErrBatchDepth indicates batch scripts nest deeper than MaxBatchDepth.
	ErrBatchDepth = errors.New("batch files nested too deeply")

	// ErrUsage indicates a meta-command is missing its argument.
	ErrUsage = errors.New("missing argument")
)
