package schema

// KeyCode names a decoded key.
type KeyCode int

const (
	KeyUnknown KeyCode = iota
	KeyRune
	KeyEnter
	KeyBackspace
	KeyDelete
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyTab
	KeyEscape
)

var keyNames = map[KeyCode]string{
	KeyUnknown:   "unknown",
	KeyRune:      "rune",
	KeyEnter:     "enter",
	KeyBackspace: "backspace",
	KeyDelete:    "delete",
	KeyLeft:      "left",
	KeyRight:     "right",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyHome:      "home",
	KeyEnd:       "end",
	KeyTab:       "tab",
	KeyEscape:    "escape",
}

func (k KeyCode) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return "unknown"
}

// Modifiers is a bit set of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModAlt
	ModAltGraph
	ModCtrl
	ModMeta
)

// Has reports whether all modifiers in m are set.
func (m Modifiers) Has(mod Modifiers) bool {
	return m&mod == mod
}

// KeyEvent is a single decoded keystroke.
type KeyEvent struct {
	Code KeyCode
	Rune rune
	Mods Modifiers
}

// HasCommandModifier reports whether a modifier other than shift is held.
// Such keys are never treated as text input.
func (e KeyEvent) HasCommandModifier() bool {
	return e.Mods&(ModAlt|ModAltGraph|ModCtrl|ModMeta) != 0
}

// IsCtrl reports whether the event is ctrl plus the given letter.
func (e KeyEvent) IsCtrl(r rune) bool {
	if e.Code != KeyRune || !e.Mods.Has(ModCtrl) {
		return false
	}
	if e.Rune >= 'A' && e.Rune <= 'Z' {
		return e.Rune+('a'-'A') == r
	}
	return e.Rune == r
}
