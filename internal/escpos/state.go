package escpos

// FormattingState tracks the ten formatting registers a printer holds
// between commands, so markers can be injected mid-stream without
// disturbing whatever formatting the caller had active.
type FormattingState struct {
	Bold         bool
	Underline    UnderlineMode
	DoubleStrike bool
	Reverse      bool
	Justify      JustifyMode
	Size         [2]uint8
	Smoothing    bool
	Flip         bool
	UpsideDown   bool
	Font         Font
}

// DefaultFormattingState returns the state a freshly initialized printer
// starts in.
func DefaultFormattingState() FormattingState {
	return FormattingState{
		Underline: UnderlineNone,
		Justify:   JustifyLeft,
		Size:      [2]uint8{1, 1},
		Font:      FontA,
	}
}

// Apply updates the state to reflect the effect of one command. Non
// formatting commands leave the state unchanged, except Init and Reset
// which restore all registers to their defaults.
func (s *FormattingState) Apply(c Command) {
	switch c.Type {
	case Bold:
		s.Bold = c.Bool
	case Underline:
		s.Underline = c.Underline
	case DoubleStrike:
		s.DoubleStrike = c.Bool
	case Reverse:
		s.Reverse = c.Bool
	case Justify:
		s.Justify = c.Justify
	case Size:
		s.Size = c.WidthHeight
	case ResetSize:
		s.Size = [2]uint8{1, 1}
	case Smoothing:
		s.Smoothing = c.Bool
	case Flip:
		s.Flip = c.Bool
	case UpsideDown:
		s.UpsideDown = c.Bool
	case FontCmd:
		s.Font = c.Font
	case Init, Reset:
		*s = DefaultFormattingState()
	}
}

// ResetCommands returns the minimal set of commands needed to return every
// register holding a non-default value back to its default, given the
// state as it stands after whatever commands preceded this call.
func (s FormattingState) ResetCommands() []Command {
	def := DefaultFormattingState()
	var cmds []Command

	if s.Bold != def.Bold {
		cmds = append(cmds, Command{Type: Bold, Bool: def.Bold})
	}
	if s.Underline != def.Underline {
		cmds = append(cmds, Command{Type: Underline, Underline: def.Underline})
	}
	if s.DoubleStrike != def.DoubleStrike {
		cmds = append(cmds, Command{Type: DoubleStrike, Bool: def.DoubleStrike})
	}
	if s.Reverse != def.Reverse {
		cmds = append(cmds, Command{Type: Reverse, Bool: def.Reverse})
	}
	if s.Justify != def.Justify {
		cmds = append(cmds, Command{Type: Justify, Justify: def.Justify})
	}
	if s.Size != def.Size {
		cmds = append(cmds, Command{Type: ResetSize})
	}
	if s.Smoothing != def.Smoothing {
		cmds = append(cmds, Command{Type: Smoothing, Bool: def.Smoothing})
	}
	if s.Flip != def.Flip {
		cmds = append(cmds, Command{Type: Flip, Bool: def.Flip})
	}
	if s.UpsideDown != def.UpsideDown {
		cmds = append(cmds, Command{Type: UpsideDown, Bool: def.UpsideDown})
	}
	if s.Font != def.Font {
		cmds = append(cmds, Command{Type: FontCmd, Font: def.Font})
	}

	return cmds
}

// RestoreCommands returns the minimal set of commands needed to bring a
// freshly reset printer back to this state: only registers holding a
// non-default value emit a command.
func (s FormattingState) RestoreCommands() []Command {
	var cmds []Command

	if s.Bold {
		cmds = append(cmds, Command{Type: Bold, Bool: true})
	}
	if s.Underline != UnderlineNone {
		cmds = append(cmds, Command{Type: Underline, Underline: s.Underline})
	}
	if s.DoubleStrike {
		cmds = append(cmds, Command{Type: DoubleStrike, Bool: true})
	}
	if s.Reverse {
		cmds = append(cmds, Command{Type: Reverse, Bool: true})
	}
	if s.Justify != JustifyLeft {
		cmds = append(cmds, Command{Type: Justify, Justify: s.Justify})
	}
	if s.Size != [2]uint8{1, 1} {
		cmds = append(cmds, Command{Type: Size, WidthHeight: s.Size})
	}
	if s.Smoothing {
		cmds = append(cmds, Command{Type: Smoothing, Bool: true})
	}
	if s.Flip {
		cmds = append(cmds, Command{Type: Flip, Bool: true})
	}
	if s.UpsideDown {
		cmds = append(cmds, Command{Type: UpsideDown, Bool: true})
	}
	if s.Font != FontA {
		cmds = append(cmds, Command{Type: FontCmd, Font: s.Font})
	}

	return cmds
}
