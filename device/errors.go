package device

import "errors"

var (
	// ErrNoDevice indicates that no device answered any of the known product IDs.
	ErrNoDevice = errors.New("no device found")

	// ErrClosed indicates the link was used after Close.
	ErrClosed = errors.New("device link closed")

	// ErrTransferInit indicates the start-of-transfer signal or readiness probe failed.
	ErrTransferInit = errors.New("error initializing transfer")

	// ErrShortWrite indicates a chunk was not written in full.
	ErrShortWrite = errors.New("error sending packet")

	// ErrStatusRead indicates a status poll did not return a 6 byte response.
	ErrStatusRead = errors.New("error receiving status")

	// ErrStatusTimeout indicates the device never reported the chunk as accepted.
	ErrStatusTimeout = errors.New("invalid status during file upload")

	// ErrCommandTooLong indicates a command does not fit the device's command buffer.
	ErrCommandTooLong = errors.New("command too long")

	// ErrCommandSend indicates a command was not written in full.
	ErrCommandSend = errors.New("failed to send command")

	// ErrFileIO indicates the payload file could not be read.
	ErrFileIO = errors.New("unable to read file")

	// ErrEmptyPayload indicates an upload of zero bytes was requested.
	ErrEmptyPayload = errors.New("empty payload")
)
