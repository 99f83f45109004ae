package escpos

import (
	"bytes"
	"fmt"
)

const (
	esc byte = 0x1b
	gs  byte = 0x1d
)

// Encoder translates Command values into raw ESC/POS byte sequences. It
// holds no state of its own — formatting state tracking belongs to
// FormattingState, used by the reprint package — so a single Encoder is
// safe to share across concurrent print jobs.
type Encoder struct{}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode renders one command to the bytes that should be written to the
// printer's bulk-OUT endpoint. Write/Writeln and the barcode/2D-code
// commands take the command's Text as payload; everything else ignores
// whatever fields don't apply to its Type.
func (e *Encoder) Encode(c Command) ([]byte, error) {
	switch c.Type {
	case Print:
		return []byte{'\n'}, nil
	case Init:
		return []byte{esc, '@'}, nil
	case Reset:
		return []byte{esc, '@'}, nil
	case Cut:
		return []byte{gs, 'V', 0x00}, nil
	case PartialCut:
		return []byte{gs, 'V', 0x01}, nil
	case PrintCut:
		return []byte{'\n', '\n', '\n', gs, 'V', 0x00}, nil

	case PageCodeCmd:
		b, ok := pageCodeByte[c.PageCode]
		if !ok {
			return nil, fmt.Errorf("unknown page code %q", c.PageCode)
		}
		return []byte{esc, 't', b}, nil

	case CharacterSetCmd:
		b, ok := characterSetByte[c.CharacterSet]
		if !ok {
			return nil, fmt.Errorf("unknown character set %q", c.CharacterSet)
		}
		return []byte{esc, 'R', b}, nil

	case Bold:
		return []byte{esc, 'E', boolByte(c.Bool)}, nil

	case Underline:
		b, ok := underlineByte[c.Underline]
		if !ok {
			return nil, fmt.Errorf("unknown underline mode %q", c.Underline)
		}
		return []byte{esc, '-', b}, nil

	case DoubleStrike:
		return []byte{esc, 'G', boolByte(c.Bool)}, nil

	case FontCmd:
		b, ok := fontByte[c.Font]
		if !ok {
			return nil, fmt.Errorf("unknown font %q", c.Font)
		}
		return []byte{esc, 'M', b}, nil

	case Flip:
		return []byte{esc, 'V', boolByte(c.Bool)}, nil

	case Justify:
		b, ok := justifyByte[c.Justify]
		if !ok {
			return nil, fmt.Errorf("unknown justify mode %q", c.Justify)
		}
		return []byte{esc, 'a', b}, nil

	case Reverse:
		return []byte{gs, 'B', boolByte(c.Bool)}, nil

	case Size:
		w, h := c.WidthHeight[0], c.WidthHeight[1]
		if w < 1 || w > 8 || h < 1 || h > 8 {
			return nil, fmt.Errorf("size out of range: width=%d height=%d", w, h)
		}
		n := ((w - 1) << 4) | (h - 1)
		return []byte{gs, '!', n}, nil

	case ResetSize:
		return []byte{gs, '!', 0x00}, nil

	case Smoothing:
		return []byte{gs, 'b', boolByte(c.Bool)}, nil

	case Feed:
		return []byte{'\n'}, nil

	case Feeds:
		return []byte{esc, 'd', c.Byte}, nil

	case LineSpacing:
		return []byte{esc, '3', c.Byte}, nil

	case ResetLineSpacing:
		return []byte{esc, '2'}, nil

	case UpsideDown:
		return []byte{esc, '{', boolByte(c.Bool)}, nil

	case CashDrawerCmd:
		b, ok := cashDrawerByte[c.CashDrawer]
		if !ok {
			return nil, fmt.Errorf("unknown cash drawer pin %q", c.CashDrawer)
		}
		pin := byte(0x00)
		if b == 1 {
			pin = 0x01
		}
		return []byte{esc, 'p', pin, 0x19, 0xfa}, nil

	case Write:
		return []byte(c.Text), nil

	case Writeln:
		return append([]byte(c.Text), '\n'), nil

	case Ean13:
		return barcode(2, c.Text)
	case Ean8:
		return barcode(3, c.Text)
	case Upca:
		return barcode(0, c.Text)
	case Upce:
		return barcode(1, c.Text)
	case Code39:
		return barcode(4, c.Text)
	case Codabar:
		return barcode(6, c.Text)
	case Itf:
		return barcode(5, c.Text)

	case Qrcode:
		return qrcode(c.Text)
	case GS1Databar2d:
		return twoDCode(0x32, c.Text)
	case Pdf417:
		return twoDCode(0x30, c.Text)
	case MaxiCode:
		return twoDCode(0x33, c.Text)
	case DataMatrix:
		return twoDCode(0x31, c.Text)
	case Aztec:
		return twoDCode(0x35, c.Text)

	default:
		return nil, fmt.Errorf("unknown command type %q", c.Type)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// barcode renders a one-dimensional barcode via GS k (function A form):
// GS k m n d1...dn.
func barcode(kind byte, data string) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("barcode data must not be empty")
	}
	if len(data) > 255 {
		return nil, fmt.Errorf("barcode data too long: %d bytes", len(data))
	}

	var buf bytes.Buffer
	buf.Write([]byte{gs, 'k', kind, byte(len(data))})
	buf.WriteString(data)
	return buf.Bytes(), nil
}

// qrcode renders a QR code via the GS ( k model-2 sequence: set model,
// set module size, set error correction, store data, then print.
func qrcode(data string) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("qrcode data must not be empty")
	}

	var buf bytes.Buffer
	buf.Write([]byte{gs, '(', 'k', 4, 0, 49, 65, 50, 0})
	buf.Write([]byte{gs, '(', 'k', 3, 0, 49, 67, 6})
	buf.Write([]byte{gs, '(', 'k', 3, 0, 49, 69, 49})

	storeLen := len(data) + 3
	pL := byte(storeLen & 0xff)
	pH := byte((storeLen >> 8) & 0xff)
	buf.Write([]byte{gs, '(', 'k', pL, pH, 49, 80, 48})
	buf.WriteString(data)

	buf.Write([]byte{gs, '(', 'k', 3, 0, 49, 81, 48})
	return buf.Bytes(), nil
}

// twoDCode renders the 2D symbologies the command set exposes (PDF417,
// Data Matrix, MaxiCode, GS1 DataBar, Aztec) through the same GS ( k
// store-then-print envelope used by qrcode, parameterized by fn.
func twoDCode(fn byte, data string) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("symbol data must not be empty")
	}

	storeLen := len(data) + 3
	pL := byte(storeLen & 0xff)
	pH := byte((storeLen >> 8) & 0xff)

	var buf bytes.Buffer
	buf.Write([]byte{gs, '(', 'k', pL, pH, 0x30, fn, 0x50})
	buf.WriteString(data)
	buf.Write([]byte{gs, '(', 'k', 3, 0, 0x30, fn, 0x51})
	return buf.Bytes(), nil
}
