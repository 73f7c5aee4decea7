package console

import "strings"

// Kind tags an Instruction.
type Kind int

const (
	// KindEmpty is a blank line.
	KindEmpty Kind = iota
	// KindComment is a line starting with "//".
	KindComment
	// KindMeta is a locally interpreted line starting with "/".
	KindMeta
	// KindRaw is forwarded to the device verbatim.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindComment:
		return "comment"
	case KindMeta:
		return "meta"
	case KindRaw:
		return "raw"
	}
	return "unknown"
}

const (
	commentMarker = "//"
	metaMarker    = "/"
)

// Instruction is one parsed line of console input or batch script.
type Instruction struct {
	Kind Kind
	// Text is the line without its line ending, and for KindMeta without
	// the leading marker.
	Text string
	// Verb and Args are the whitespace separated fields of a meta-command.
	Verb string
	Args []string
}

// Parse classifies a single line. Trailing CR and LF are dropped; everything
// else, leading whitespace included, is kept for raw commands.
func Parse(line string) Instruction {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.HasPrefix(line, commentMarker):
		return Instruction{Kind: KindComment, Text: line}
	case strings.HasPrefix(line, metaMarker):
		text := line[len(metaMarker):]
		ins := Instruction{Kind: KindMeta, Text: text}
		if fields := strings.Fields(text); len(fields) > 0 {
			ins.Verb = fields[0]
			ins.Args = fields[1:]
		}
		return ins
	case strings.TrimSpace(line) == "":
		return Instruction{Kind: KindEmpty}
	}
	return Instruction{Kind: KindRaw, Text: line}
}

// firstToken returns the first whitespace separated field of s.
func firstToken(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
