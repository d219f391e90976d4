package console

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"pkt.systems/replee/schema"
)

// readKeys decodes terminal input into key events until r fails, then
// closes out.
func readKeys(r io.Reader, out chan<- schema.KeyEvent) {
	defer close(out)
	br := bufio.NewReader(r)
	lastWasCR := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		if lastWasCR {
			lastWasCR = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case 0x1b:
			readEscape(br, out)
		case '\r':
			out <- schema.KeyEvent{Code: schema.KeyEnter}
			lastWasCR = true
		case '\n':
			out <- schema.KeyEvent{Code: schema.KeyEnter}
		case 0x7f, 0x08:
			out <- schema.KeyEvent{Code: schema.KeyBackspace}
		case 0x09:
			out <- schema.KeyEvent{Code: schema.KeyTab}
		case 0x00:
			out <- schema.KeyEvent{Code: schema.KeyRune, Rune: ' ', Mods: schema.ModCtrl}
		default:
			if b < 0x20 {
				out <- schema.KeyEvent{Code: schema.KeyRune, Rune: rune('a' + b - 1), Mods: schema.ModCtrl}
				continue
			}
			if b < utf8.RuneSelf {
				out <- schema.KeyEvent{Code: schema.KeyRune, Rune: rune(b)}
				continue
			}
			_ = br.UnreadByte()
			rn, _, err := br.ReadRune()
			if err != nil {
				return
			}
			out <- schema.KeyEvent{Code: schema.KeyRune, Rune: rn}
		}
	}
}

func readEscape(br *bufio.Reader, out chan<- schema.KeyEvent) {
	b, err := br.ReadByte()
	if err != nil {
		out <- schema.KeyEvent{Code: schema.KeyEscape}
		return
	}
	switch b {
	case '[':
		readCSI(br, out)
	case 'O':
		readSS3(br, out)
	case 0x1b:
		out <- schema.KeyEvent{Code: schema.KeyEscape}
		_ = br.UnreadByte()
	case '\r', '\n':
		out <- schema.KeyEvent{Code: schema.KeyEnter, Mods: schema.ModAlt}
	case 0x7f, 0x08:
		out <- schema.KeyEvent{Code: schema.KeyBackspace, Mods: schema.ModAlt}
	default:
		if b < utf8.RuneSelf {
			out <- schema.KeyEvent{Code: schema.KeyRune, Rune: rune(b), Mods: schema.ModAlt}
			return
		}
		_ = br.UnreadByte()
		rn, _, err := br.ReadRune()
		if err != nil {
			return
		}
		out <- schema.KeyEvent{Code: schema.KeyRune, Rune: rn, Mods: schema.ModAlt}
	}
}

func readCSI(br *bufio.Reader, out chan<- schema.KeyEvent) {
	seq := []byte{}
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		seq = append(seq, b)
		if b == '~' || unicode.IsLetter(rune(b)) {
			break
		}
		if len(seq) > 8 {
			return
		}
	}
	final := seq[len(seq)-1]
	params := strings.Split(string(seq[:len(seq)-1]), ";")
	mods := csiModifiers(params)
	var code schema.KeyCode
	switch final {
	case 'A':
		code = schema.KeyUp
	case 'B':
		code = schema.KeyDown
	case 'C':
		code = schema.KeyRight
	case 'D':
		code = schema.KeyLeft
	case 'H':
		code = schema.KeyHome
	case 'F':
		code = schema.KeyEnd
	case 'Z':
		code = schema.KeyTab
		mods |= schema.ModShift
	case '~':
		switch params[0] {
		case "1", "7":
			code = schema.KeyHome
		case "4", "8":
			code = schema.KeyEnd
		case "3":
			code = schema.KeyDelete
		default:
			return
		}
	default:
		return
	}
	out <- schema.KeyEvent{Code: code, Mods: mods}
}

// csiModifiers decodes the xterm modifier parameter (1 + bitmask of
// shift=1, alt=2, ctrl=4, meta=8).
func csiModifiers(params []string) schema.Modifiers {
	if len(params) < 2 {
		return 0
	}
	n, err := strconv.Atoi(params[len(params)-1])
	if err != nil || n < 2 {
		return 0
	}
	mask := n - 1
	var mods schema.Modifiers
	if mask&1 != 0 {
		mods |= schema.ModShift
	}
	if mask&2 != 0 {
		mods |= schema.ModAlt
	}
	if mask&4 != 0 {
		mods |= schema.ModCtrl
	}
	if mask&8 != 0 {
		mods |= schema.ModMeta
	}
	return mods
}

func readSS3(br *bufio.Reader, out chan<- schema.KeyEvent) {
	b, err := br.ReadByte()
	if err != nil {
		return
	}
	switch b {
	case 'A':
		out <- schema.KeyEvent{Code: schema.KeyUp}
	case 'B':
		out <- schema.KeyEvent{Code: schema.KeyDown}
	case 'C':
		out <- schema.KeyEvent{Code: schema.KeyRight}
	case 'D':
		out <- schema.KeyEvent{Code: schema.KeyLeft}
	case 'H':
		out <- schema.KeyEvent{Code: schema.KeyHome}
	case 'F':
		out <- schema.KeyEvent{Code: schema.KeyEnd}
	}
}
