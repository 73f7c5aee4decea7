package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Instruction
	}{
		{line: "// header comment\n", want: Instruction{Kind: KindComment, Text: "// header comment"}},
		{line: "//", want: Instruction{Kind: KindComment, Text: "//"}},
		{line: "/auto-boot\r\n", want: Instruction{Kind: KindMeta, Text: "auto-boot", Verb: "auto-boot", Args: []string{}}},
		{line: "/batch  boot.txt  ", want: Instruction{Kind: KindMeta, Text: "batch  boot.txt  ", Verb: "batch", Args: []string{"boot.txt"}}},
		{line: "/", want: Instruction{Kind: KindMeta, Text: ""}},
		{line: "setenv foo bar\n", want: Instruction{Kind: KindRaw, Text: "setenv foo bar"}},
		{line: "  go  ", want: Instruction{Kind: KindRaw, Text: "  go  "}},
		{line: "\r\n", want: Instruction{Kind: KindEmpty}},
		{line: "   ", want: Instruction{Kind: KindEmpty}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.line))
		})
	}
}

func TestFirstToken(t *testing.T) {
	assert.Equal(t, "getenv", firstToken("getenv auto-boot"))
	assert.Equal(t, "reboot", firstToken("  reboot"))
	assert.Equal(t, "", firstToken(""))
}
