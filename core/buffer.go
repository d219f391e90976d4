package core

// EditBuffer holds the logical input being edited and the cursor position.
// Positions are measured in runes; the cursor stays within [0, Len()].
type EditBuffer struct {
	text   []rune
	cursor int
}

// NewEditBuffer returns a buffer holding text with the cursor at the end.
func NewEditBuffer(text string) *EditBuffer {
	b := &EditBuffer{}
	b.SetText(text)
	return b
}

// Text returns the buffer contents.
func (b *EditBuffer) Text() string {
	return string(b.text)
}

// Cursor returns the cursor position in runes.
func (b *EditBuffer) Cursor() int {
	return b.cursor
}

// Len returns the buffer length in runes.
func (b *EditBuffer) Len() int {
	return len(b.text)
}

// Empty reports whether the buffer holds no text.
func (b *EditBuffer) Empty() bool {
	return len(b.text) == 0
}

// Clear empties the buffer.
func (b *EditBuffer) Clear() {
	b.text = nil
	b.cursor = 0
}

// SetText replaces the contents and moves the cursor to the end.
func (b *EditBuffer) SetText(value string) {
	if value == "" {
		b.Clear()
		return
	}
	b.text = []rune(value)
	b.cursor = len(b.text)
}

// InsertRune inserts r at the cursor and advances past it.
func (b *EditBuffer) InsertRune(r rune) {
	b.clamp()
	b.text = append(b.text[:b.cursor], append([]rune{r}, b.text[b.cursor:]...)...)
	b.cursor++
}

// Insert inserts s at the cursor and advances past it.
func (b *EditBuffer) Insert(s string) {
	if s == "" {
		return
	}
	b.clamp()
	runes := []rune(s)
	tail := append([]rune(nil), b.text[b.cursor:]...)
	b.text = append(append(b.text[:b.cursor], runes...), tail...)
	b.cursor += len(runes)
}

// AppendNewlineAtCursor inserts a line break at the cursor.
func (b *EditBuffer) AppendNewlineAtCursor() {
	b.InsertRune('\n')
}

// DeleteBackward removes the rune before the cursor.
func (b *EditBuffer) DeleteBackward() {
	if b.cursor <= 0 {
		return
	}
	b.text = append(b.text[:b.cursor-1], b.text[b.cursor:]...)
	b.cursor--
}

// DeleteForward removes the rune under the cursor.
func (b *EditBuffer) DeleteForward() {
	if b.cursor < 0 || b.cursor >= len(b.text) {
		return
	}
	b.text = append(b.text[:b.cursor], b.text[b.cursor+1:]...)
}

// MoveLeft moves the cursor one rune left.
func (b *EditBuffer) MoveLeft() {
	if b.cursor > 0 {
		b.cursor--
	}
}

// MoveRight moves the cursor one rune right.
func (b *EditBuffer) MoveRight() {
	if b.cursor < len(b.text) {
		b.cursor++
	}
}

// MoveStart moves to the start of the current physical line.
func (b *EditBuffer) MoveStart() {
	b.cursor = b.lineStart()
}

// MoveEnd moves to the end of the current physical line.
func (b *EditBuffer) MoveEnd() {
	b.cursor = b.lineEnd()
}

// CurrentLine returns the physical line holding the cursor and the cursor
// column inside it.
func (b *EditBuffer) CurrentLine() (string, int) {
	start := b.lineStart()
	end := b.lineEnd()
	return string(b.text[start:end]), b.cursor - start
}

// AtLineStart reports whether the cursor sits at column zero of a physical
// line that is not the first one.
func (b *EditBuffer) AtLineStart() bool {
	return b.cursor > 0 && b.cursor == b.lineStart()
}

// AtLineEnd reports whether the cursor sits at the end of a physical line
// that is followed by another one.
func (b *EditBuffer) AtLineEnd() bool {
	return b.cursor < len(b.text) && b.cursor == b.lineEnd()
}

// HasLineBreak reports whether the buffer spans more than one physical line.
func (b *EditBuffer) HasLineBreak() bool {
	for _, r := range b.text {
		if r == '\n' {
			return true
		}
	}
	return false
}

// OnFirstLine reports whether the cursor is on the first physical line.
func (b *EditBuffer) OnFirstLine() bool {
	return b.lineStart() == 0
}

func (b *EditBuffer) clamp() {
	if b.cursor < 0 {
		b.cursor = 0
	}
	if b.cursor > len(b.text) {
		b.cursor = len(b.text)
	}
}

func (b *EditBuffer) lineStart() int {
	for i := b.cursor - 1; i >= 0; i-- {
		if b.text[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

func (b *EditBuffer) lineEnd() int {
	for i := b.cursor; i < len(b.text); i++ {
		if b.text[i] == '\n' {
			return i
		}
	}
	return len(b.text)
}
