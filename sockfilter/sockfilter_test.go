package sockfilter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidProgram(t *testing.T) {
	text := `
# accept everything
{ 0x06, 0, 0, 0x0000ffff },
`
	prog, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, prog, 1)
	assert.Equal(t, uint16(0x06), prog[0].Code)
	assert.Equal(t, uint32(0x0000ffff), prog[0].K)
}

func TestParseSkipsComments(t *testing.T) {
	text := "; a comment\n// another\n{ 0x06, 0, 0, 0x00000000 },\n"
	prog, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, prog, 1)
}

func TestParseRejectsMalformedLine(t *testing.T) {
	text := "{ not, a, valid, line },\n"
	_, err := Parse(strings.NewReader(text))
	require.Error(t, err)
}

func TestValidateEmptyProgramIsValid(t *testing.T) {
	assert.True(t, Validate(nil))
}

func TestValidateRequiresTerminalReturn(t *testing.T) {
	prog := Program{{Code: 0x15, JT: 0, JF: 0, K: 0}} // jmp class, not a return
	assert.False(t, Validate(prog))
}

func TestValidateRejectsOutOfRangeBranch(t *testing.T) {
	prog := Program{
		{Code: 0x15, JT: 5, JF: 0, K: 0}, // jump class, jt target out of range
		{Code: 0x06, JT: 0, JF: 0, K: 0xffff},
	}
	assert.False(t, Validate(prog))
}

func TestValidateAcceptsInRangeBranch(t *testing.T) {
	prog := Program{
		{Code: 0x15, JT: 0, JF: 0, K: 0},
		{Code: 0x06, JT: 0, JF: 0, K: 0xffff},
	}
	assert.True(t, Validate(prog))
}
