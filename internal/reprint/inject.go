// Package reprint builds the reprint command stream: the original job's
// commands with a "REPRINT COPY" marker stamped at the top, the visual
// midpoint, and the bottom, so a reprinted receipt is never mistaken for
// the original at a glance.
package reprint

import (
	"fmt"
	"time"

	"github.com/reika/escpos-bridge/internal/escpos"
)

const marketingLine = "  REIKA-escpos"

// buildMarker returns the command block stamped at each marker position:
// centered, reverse (white-on-black) text bracketing a timestamp.
func buildMarker(now time.Time) []escpos.Command {
	timestamp := now.Format("2006-01-02 15:04:05")
	return []escpos.Command{
		{Type: escpos.Justify, Justify: escpos.JustifyCenter},
		{Type: escpos.Reverse, Bool: true},
		{Type: escpos.Writeln, Text: "================================"},
		{Type: escpos.Writeln, Text: "     ** REPRINT COPY **"},
		{Type: escpos.Writeln, Text: fmt.Sprintf("  %s", timestamp)},
		{Type: escpos.Writeln, Text: marketingLine},
		{Type: escpos.Writeln, Text: "================================"},
		{Type: escpos.Reverse, Bool: false},
		{Type: escpos.Justify, Justify: escpos.JustifyLeft},
	}
}

// findContentMidpoint returns the index at which to split commands for the
// midpoint marker: the index of the content-producing command at 0-based
// position floor(contentCount/2), so the split falls immediately before it.
// With no content commands it returns len(commands).
func findContentMidpoint(commands []escpos.Command) int {
	total := 0
	for _, c := range commands {
		if c.IsContentCommand() {
			total++
		}
	}
	if total == 0 {
		return len(commands)
	}

	target := total / 2
	seen := 0
	for i, c := range commands {
		if c.IsContentCommand() {
			seen++
			if seen > target {
				return i
			}
		}
	}
	return len(commands)
}

// InjectMarkers rewrites a command stream for reprint. Every
// Cut/PartialCut/PrintCut in the input, wherever it appears, and an Init
// that is the first remaining command are stripped since this function
// supplies its own; the result always begins with Init and ends with
// PrintCut.
//
// Layout:
//  1. Init, top marker, reset-to-default
//  2. first half of the original commands (by content-command count)
//  3. reset-to-default, feed, mid marker, feed, restore saved formatting state
//  4. second half of the original commands
//  5. reset-to-default, feed, bottom marker, PrintCut
func InjectMarkers(commands []escpos.Command, now time.Time) []escpos.Command {
	original := make([]escpos.Command, 0, len(commands))
	for _, c := range commands {
		switch c.Type {
		case escpos.PrintCut, escpos.Cut, escpos.PartialCut:
			continue
		}
		original = append(original, c)
	}
	if len(original) > 0 && original[0].Type == escpos.Init {
		original = original[1:]
	}

	midpoint := findContentMidpoint(original)
	firstHalf, secondHalf := original[:midpoint], original[midpoint:]

	mid := escpos.DefaultFormattingState()
	for _, c := range firstHalf {
		mid.Apply(c)
	}
	final := mid
	for _, c := range secondHalf {
		final.Apply(c)
	}

	marker := buildMarker(now)
	markerEnd := escpos.DefaultFormattingState()
	for _, c := range marker {
		markerEnd.Apply(c)
	}

	result := make([]escpos.Command, 0, len(original)+4*len(marker)+16)
	result = append(result, escpos.Command{Type: escpos.Init})
	result = append(result, marker...)
	result = append(result, markerEnd.ResetCommands()...)

	result = append(result, firstHalf...)

	result = append(result, mid.ResetCommands()...)
	result = append(result, escpos.Command{Type: escpos.Feed, Bool: true})
	result = append(result, marker...)
	result = append(result, escpos.Command{Type: escpos.Feed, Bool: true})
	result = append(result, mid.RestoreCommands()...)

	result = append(result, secondHalf...)

	result = append(result, final.ResetCommands()...)
	result = append(result, escpos.Command{Type: escpos.Feed, Bool: true})
	result = append(result, marker...)
	result = append(result, escpos.Command{Type: escpos.PrintCut})

	return result
}
