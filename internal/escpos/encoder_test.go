package escpos

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandUnmarshalSimpleVariants(t *testing.T) {
	var c Command
	require.NoError(t, json.Unmarshal([]byte(`{"command":"Init"}`), &c))
	assert.Equal(t, Init, c.Type)

	require.NoError(t, json.Unmarshal([]byte(`{"command":"Bold","parameters":true}`), &c))
	assert.Equal(t, Bold, c.Type)
	assert.True(t, c.Bool)

	require.NoError(t, json.Unmarshal([]byte(`{"command":"Writeln","parameters":"hello"}`), &c))
	assert.Equal(t, "hello", c.Text)

	require.NoError(t, json.Unmarshal([]byte(`{"command":"Size","parameters":[2,3]}`), &c))
	assert.Equal(t, [2]uint8{2, 3}, c.WidthHeight)
}

func TestCommandUnmarshalUnknownType(t *testing.T) {
	var c Command
	err := json.Unmarshal([]byte(`{"command":"Frobnicate"}`), &c)
	assert.Error(t, err)
}

func TestCommandUnmarshalMissingParameters(t *testing.T) {
	var c Command
	err := json.Unmarshal([]byte(`{"command":"Bold"}`), &c)
	assert.Error(t, err)
}

func TestCommandRoundTrip(t *testing.T) {
	original := Command{Type: Justify, Justify: JustifyCenter}
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Command
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestEncodeInit(t *testing.T) {
	e := NewEncoder()
	b, err := e.Encode(Command{Type: Init})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1b, '@'}, b)
}

func TestEncodeBold(t *testing.T) {
	e := NewEncoder()
	on, err := e.Encode(Command{Type: Bold, Bool: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1b, 'E', 1}, on)

	off, err := e.Encode(Command{Type: Bold, Bool: false})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1b, 'E', 0}, off)
}

func TestEncodeWriteln(t *testing.T) {
	e := NewEncoder()
	b, err := e.Encode(Command{Type: Writeln, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []byte("hi\n"), b)
}

func TestEncodeSizeOutOfRange(t *testing.T) {
	e := NewEncoder()
	_, err := e.Encode(Command{Type: Size, WidthHeight: [2]uint8{0, 1}})
	assert.Error(t, err)
}

func TestEncodeQrcodeRejectsEmpty(t *testing.T) {
	e := NewEncoder()
	_, err := e.Encode(Command{Type: Qrcode, Text: ""})
	assert.Error(t, err)
}

func TestEncodeEan13ProducesFunctionAFrame(t *testing.T) {
	e := NewEncoder()
	b, err := e.Encode(Command{Type: Ean13, Text: "012345678905"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1d, 'k', 2, 12}, b[:4])
}

func TestIsContentCommand(t *testing.T) {
	assert.True(t, Command{Type: Writeln}.IsContentCommand())
	assert.True(t, Command{Type: Qrcode}.IsContentCommand())
	assert.False(t, Command{Type: Bold}.IsContentCommand())
	assert.False(t, Command{Type: Init}.IsContentCommand())
}

func TestFormattingStateApplyAndReset(t *testing.T) {
	s := DefaultFormattingState()
	s.Apply(Command{Type: Bold, Bool: true})
	s.Apply(Command{Type: Size, WidthHeight: [2]uint8{2, 3}})
	assert.True(t, s.Bold)
	assert.Equal(t, [2]uint8{2, 3}, s.Size)

	s.Apply(Command{Type: Init})
	assert.Equal(t, DefaultFormattingState(), s)
}

func TestFormattingStateRestoreOnlyNonDefaults(t *testing.T) {
	s := DefaultFormattingState()
	assert.Empty(t, s.RestoreCommands())

	s.Apply(Command{Type: Bold, Bool: true})
	s.Apply(Command{Type: Justify, Justify: JustifyCenter})
	cmds := s.RestoreCommands()
	assert.Len(t, cmds, 2)
}
