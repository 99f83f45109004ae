package reprint

import (
	"testing"
	"time"

	"github.com/reika/escpos-bridge/internal/escpos"
	"github.com/stretchr/testify/assert"
)

func TestFindContentMidpoint(t *testing.T) {
	commands := []escpos.Command{
		{Type: escpos.Bold, Bool: true},
		{Type: escpos.Writeln, Text: "line 1"},
		{Type: escpos.Writeln, Text: "line 2"},
		{Type: escpos.Bold, Bool: false},
		{Type: escpos.Writeln, Text: "line 3"},
		{Type: escpos.Writeln, Text: "line 4"},
	}
	// 4 content commands, target 2: the midpoint is the index of the 3rd
	// content command (index 4), so the split falls right before it
	assert.Equal(t, 4, findContentMidpoint(commands))
}

func TestFindContentMidpointNoContent(t *testing.T) {
	commands := []escpos.Command{{Type: escpos.Bold, Bool: true}, {Type: escpos.Init}}
	assert.Equal(t, len(commands), findContentMidpoint(commands))
}

func TestInjectMarkersStructure(t *testing.T) {
	commands := []escpos.Command{
		{Type: escpos.Init},
		{Type: escpos.Writeln, Text: "Hello"},
		{Type: escpos.Writeln, Text: "World"},
		{Type: escpos.PrintCut},
	}

	result := InjectMarkers(commands, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC))

	assert.Equal(t, escpos.Init, result[0].Type)
	assert.Equal(t, escpos.PrintCut, result[len(result)-1].Type)

	reprintCount := 0
	for _, c := range result {
		if c.Type == escpos.Writeln && containsReprintCopy(c.Text) {
			reprintCount++
		}
	}
	assert.Equal(t, 3, reprintCount)
}

func TestInjectMarkersRestoresFormattingAcrossMidpoint(t *testing.T) {
	commands := []escpos.Command{
		{Type: escpos.Bold, Bool: true},
		{Type: escpos.Writeln, Text: "first"},
		{Type: escpos.Writeln, Text: "second"},
	}
	result := InjectMarkers(commands, time.Now())

	// Bold(true) must reappear after the midpoint's reset-to-default block.
	foundReset := false
	foundRestore := false
	for i, c := range result {
		if c.Type == escpos.Bold && !c.Bool {
			foundReset = true
		}
		if foundReset && c.Type == escpos.Bold && c.Bool {
			foundRestore = true
			_ = i
			break
		}
	}
	assert.True(t, foundRestore, "expected Bold(true) to be restored after a reset")
}

func containsReprintCopy(text string) bool {
	return len(text) >= 14 && (text == "     ** REPRINT COPY **")
}
