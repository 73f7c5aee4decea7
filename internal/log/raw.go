package log

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger dumps USB transfers. A RawLogger built on a nil writer discards
// everything, so callers never need to nil-check it.
type RawLogger interface {
	// Control records a control transfer and the bytes moved by it.
	Control(requestType, request uint8, value, index uint16, data []byte, n int, err error)
	// Bulk records a bulk transfer on the given endpoint address.
	Bulk(endpoint uint8, data []byte, n int, err error)
}

type rawLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewRaw returns a RawLogger writing hex dumps to w. w may be nil.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

func (l *rawLogger) Control(requestType, request uint8, value, index uint16, data []byte, n int, err error) {
	if l.w == nil {
		return
	}
	dir := "OUT"
	if requestType&0x80 != 0 {
		dir = "IN "
	}
	hdr := fmt.Sprintf("CTRL %s bmRequestType=0x%02x bRequest=%d wValue=%d wIndex=%d wLength=%d",
		dir, requestType, request, value, index, len(data))
	l.write(hdr, data, n, err)
}

func (l *rawLogger) Bulk(endpoint uint8, data []byte, n int, err error) {
	if l.w == nil {
		return
	}
	dir := "OUT"
	if endpoint&0x80 != 0 {
		dir = "IN "
	}
	l.write(fmt.Sprintf("BULK %s ep=0x%02x len=%d", dir, endpoint, len(data)), data, n, err)
}

func (l *rawLogger) write(hdr string, data []byte, n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	status := fmt.Sprintf("n=%d", n)
	if err != nil {
		status += " err=" + err.Error()
	}
	fmt.Fprintf(l.w, "%s %s %s\n", time.Now().Format("15:04:05.000000"), hdr, status)
	if n > len(data) {
		n = len(data)
	}
	if n > 0 {
		_, _ = io.WriteString(l.w, hex.Dump(data[:n]))
	}
}
