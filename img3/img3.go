// Package img3 recognises IMG3 firmware containers. It only sniffs the
// header; building or parsing the tag structure is left to other tools.
package img3

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Magic is the container magic as it appears on disk (little-endian "Img3").
const Magic = "3gmI"

// headerLen covers magic, full size, unpacked size, signature area size and
// the image type identifier.
const headerLen = 20

var ErrNotIMG3 = errors.New("not an IMG3 file")

// IsIMG3 reports whether blob starts with the IMG3 magic.
func IsIMG3(blob []byte) bool {
	return len(blob) >= len(Magic) && string(blob[:len(Magic)]) == Magic
}

// Type returns the image type identifier of an IMG3 blob in readable order,
// for example "ibss" or "ibec". ok is false when blob is too short or not IMG3.
func Type(blob []byte) (ident string, ok bool) {
	if !IsIMG3(blob) || len(blob) < headerLen {
		return "", false
	}
	raw := blob[16:20]
	return string([]byte{raw[3], raw[2], raw[1], raw[0]}), true
}

// CheckFile opens path and returns ErrNotIMG3 unless it starts with Magic.
func CheckFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := make([]byte, headerLen)
	n, err := io.ReadFull(f, hdr)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if !IsIMG3(hdr[:n]) {
		return fmt.Errorf("%s: %w", path, ErrNotIMG3)
	}
	return nil
}
