package device

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ibooter/ibooter/internal/log"
	"github.com/ibooter/ibooter/usb"
)

// Finalize selects the handshake performed after the last DFU/WTF chunk.
// Recovery mode uploads ignore it.
type Finalize int

const (
	// FinalizeNone stops after the last chunk is confirmed.
	FinalizeNone Finalize = iota
	// FinalizeSignal sends the zero-length completion download, polls
	// status twice and resets the bus.
	FinalizeSignal
	// FinalizeSignalAndZLP is FinalizeSignal plus a second zero-length
	// download before the reset.
	FinalizeSignalAndZLP
)

func (f Finalize) String() string {
	switch f {
	case FinalizeNone:
		return "none"
	case FinalizeSignal:
		return "signal"
	case FinalizeSignalAndZLP:
		return "zlp"
	}
	return fmt.Sprintf("Finalize(%d)", int(f))
}

// ParseFinalize accepts the names printed by Finalize.String.
func ParseFinalize(s string) (Finalize, error) {
	for _, f := range []Finalize{FinalizeNone, FinalizeSignal, FinalizeSignalAndZLP} {
		if f.String() == s {
			return f, nil
		}
	}
	return FinalizeNone, fmt.Errorf("unknown finalize mode %q", s)
}

// footer is fed through the checksum and appended to the last DFU/WTF chunk,
// followed by the little-endian checksum.
var footer = [12]byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xAC, 0x05,
	0x00, 0x01, 0x55, 0x46, 0x44, 0x10,
}

// trailerLen is how much the last DFU/WTF chunk grows by.
const trailerLen = len(footer) + 4

// Progress is reported after every confirmed chunk.
type Progress struct {
	Chunk   int // 1-based index of the chunk just sent
	Chunks  int
	Sent    int // payload bytes sent so far, trailer excluded
	Total   int
	Elapsed time.Duration
}

type ProgressCallback func(Progress)

// UploadConfig holds Uploader settings.
type UploadConfig struct {
	// ProgressCallback is called after every chunk (optional).
	ProgressCallback ProgressCallback

	// StatusPolls is the maximum number of status polls per DFU/WTF chunk.
	StatusPolls int

	// RetryDelay is the pause between two status polls of the same chunk.
	RetryDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func defaultUploadConfig() UploadConfig {
	return UploadConfig{
		StatusPolls: 20,
		RetryDelay:  time.Second,
		sleep:       sleepContext,
	}
}

type UploadOption func(*UploadConfig)

func WithProgressCallback(callback ProgressCallback) UploadOption {
	return func(c *UploadConfig) { c.ProgressCallback = callback }
}

func WithStatusPolls(polls int) UploadOption {
	return func(c *UploadConfig) {
		if polls > 0 {
			c.StatusPolls = polls
		}
	}
}

func WithRetryDelay(delay time.Duration) UploadOption {
	return func(c *UploadConfig) {
		if delay >= 0 {
			c.RetryDelay = delay
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Uploader sends payloads to a Link using the framing of the link's mode.
type Uploader struct {
	link   *Link
	config UploadConfig
}

func NewUploader(link *Link, opts ...UploadOption) *Uploader {
	cfg := defaultUploadConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Uploader{link: link, config: cfg}
}

// ChunkLayout returns how many chunks a payload of size bytes is split into
// and the length of the last one. The last chunk is never empty.
func ChunkLayout(size, chunkSize int) (chunks, last int) {
	chunks = size / chunkSize
	last = size % chunkSize
	if last != 0 {
		chunks++
	} else {
		last = chunkSize
	}
	return chunks, last
}

// Upload sends payload chunk by chunk. The link's mode is read once and
// governs the whole transfer. Cancellation is honoured between chunks and
// while waiting for a chunk to be confirmed; the device keeps whatever it
// already accepted.
func (u *Uploader) Upload(ctx context.Context, payload []byte, finalize Finalize) error {
	l := u.link
	if err := l.live(); err != nil {
		return err
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	mode := l.Mode()
	chunkSize := mode.ChunkSize()
	chunks, last := ChunkLayout(len(payload), chunkSize)
	framed := mode.usesControlFraming()

	l.logger.Debug("starting upload", "mode", mode, "bytes", len(payload), "chunks", chunks, "chunk_size", chunkSize)

	if err := u.initiate(framed); err != nil {
		return err
	}

	sum := NewChecksum()
	start := time.Now()
	sent := 0
	for i := 0; i < chunks; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("upload aborted before chunk %d: %w", i, err)
		}

		size := chunkSize
		if i == chunks-1 {
			size = last
		}
		chunk := payload[i*chunkSize : i*chunkSize+size]

		var err error
		if framed {
			err = u.sendFramed(ctx, i, chunk, i == chunks-1, sum)
		} else {
			err = u.sendBulk(i, chunk)
		}
		if err != nil {
			return err
		}

		sent += size
		l.logger.Log(ctx, log.LevelTrace, "chunk sent", "chunk", i, "bytes", size, "sent", sent, "total", len(payload))
		if u.config.ProgressCallback != nil {
			u.config.ProgressCallback(Progress{
				Chunk:   i + 1,
				Chunks:  chunks,
				Sent:    sent,
				Total:   len(payload),
				Elapsed: time.Since(start),
			})
		}
	}

	if framed && finalize != FinalizeNone {
		if err := u.finish(chunks, finalize); err != nil {
			return err
		}
	}

	l.logger.Info("Successfully uploaded file", "bytes", sent, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// UploadFile reads path and uploads its contents.
func (u *Uploader) UploadFile(ctx context.Context, path string, finalize Finalize) error {
	payload, err := ReadPayload(path)
	if err != nil {
		return err
	}
	return u.Upload(ctx, payload, finalize)
}

// ReadPayload loads a file to upload.
func ReadPayload(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileIO, err)
	}
	return b, nil
}

func (u *Uploader) initiate(framed bool) error {
	l := u.link
	if !framed {
		if err := l.ClaimInterfaces(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferInit, err)
		}
		if _, err := l.control(usb.RequestTypeVendorIfOut, 0, 0, 0, nil); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferInit, err)
		}
		return nil
	}

	probe := make([]byte, 1)
	n, err := l.control(usb.RequestTypeClassIfIn, requestGetState, 0, 0, probe)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferInit, err)
	}
	if n != len(probe) {
		return fmt.Errorf("%w: readiness probe returned %d bytes", ErrTransferInit, n)
	}
	return nil
}

func (u *Uploader) sendBulk(seq int, chunk []byte) error {
	n, err := u.link.writeBulk(chunk)
	if err != nil {
		return fmt.Errorf("%w: chunk %d: %w", ErrShortWrite, seq, err)
	}
	if n != len(chunk) {
		return fmt.Errorf("%w: chunk %d: wrote %d of %d bytes", ErrShortWrite, seq, n, len(chunk))
	}
	return nil
}

func (u *Uploader) sendFramed(ctx context.Context, seq int, chunk []byte, final bool, sum *Checksum) error {
	_, _ = sum.Write(chunk)
	frame := chunk
	if final {
		_, _ = sum.Write(footer[:])
		frame = make([]byte, 0, len(chunk)+trailerLen)
		frame = append(frame, chunk...)
		frame = append(frame, footer[:]...)
		frame = sum.AppendDigest(frame)
	}

	n, err := u.link.control(usb.RequestTypeClassIfOut, requestDownload, uint16(seq), 0, frame)
	if err != nil {
		return fmt.Errorf("%w: chunk %d: %w", ErrShortWrite, seq, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: chunk %d: wrote %d of %d bytes", ErrShortWrite, seq, n, len(frame))
	}
	return u.awaitAccepted(ctx, seq)
}

// awaitAccepted polls status until the device reports the chunk accepted.
// A failed first poll is fatal; later failed polls count as a mismatch.
func (u *Uploader) awaitAccepted(ctx context.Context, seq int) error {
	l := u.link
	var last byte
	polls := u.config.StatusPolls
	for attempt := 1; attempt <= polls; attempt++ {
		st, err := l.status()
		switch {
		case err != nil && attempt == 1:
			return fmt.Errorf("chunk %d: %w", seq, err)
		case err != nil:
			l.logger.Debug("status poll failed", "chunk", seq, "attempt", attempt, "error", err)
		case st == statusChunkAccepted:
			return nil
		default:
			last = st
			l.logger.Debug("chunk not yet accepted", "chunk", seq, "attempt", attempt, "status", st)
		}
		if attempt == polls {
			break
		}
		if err := u.config.sleep(ctx, u.config.RetryDelay); err != nil {
			return fmt.Errorf("chunk %d: waiting for status: %w", seq, err)
		}
	}
	return fmt.Errorf("%w: chunk %d: status %d after %d polls", ErrStatusTimeout, seq, last, polls)
}

func (u *Uploader) finish(chunks int, finalize Finalize) error {
	l := u.link
	if _, err := l.control(usb.RequestTypeClassIfOut, requestDownload, uint16(chunks), 0, nil); err != nil {
		l.logger.Warn("completion signal failed", "error", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := l.status(); err != nil {
			return fmt.Errorf("completion: %w", err)
		}
	}
	if finalize == FinalizeSignalAndZLP {
		if _, err := l.control(usb.RequestTypeClassIfOut, requestDownload, 0, 0, nil); err != nil {
			l.logger.Debug("zero-length finish marker failed", "error", err)
		}
	}
	if err := l.Reset(); err != nil {
		l.logger.Warn("reset after upload failed", "error", err)
	}
	return nil
}
