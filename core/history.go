package core

// HistoryLedger is the append-only log of submitted commands together with a
// navigation position. position == len(entries) means the user is on a fresh
// line and not browsing.
type HistoryLedger struct {
	entries  []string
	position int
}

// NewHistoryLedger seeds a ledger with persisted entries, oldest first.
func NewHistoryLedger(entries []string) *HistoryLedger {
	h := &HistoryLedger{entries: append([]string(nil), entries...)}
	h.position = len(h.entries)
	return h
}

// Append pushes a command and leaves browsing mode.
func (h *HistoryLedger) Append(command string) {
	h.entries = append(h.entries, command)
	h.position = len(h.entries)
}

// Rewind leaves browsing mode without appending.
func (h *HistoryLedger) Rewind() {
	h.position = len(h.entries)
}

// Previous steps back one entry. At the earliest entry it reports false and
// the position stays put.
func (h *HistoryLedger) Previous() (string, bool) {
	if h.position <= 0 {
		return "", false
	}
	h.position--
	return h.entries[h.position], true
}

// Next steps forward one entry. The newest entry is sticky: moving past it
// reports false rather than returning to an empty line.
func (h *HistoryLedger) Next() (string, bool) {
	if h.position >= len(h.entries)-1 {
		return "", false
	}
	h.position++
	return h.entries[h.position], true
}

// Last returns the newest entry.
func (h *HistoryLedger) Last() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	return h.entries[len(h.entries)-1], true
}

// Position returns the navigation position.
func (h *HistoryLedger) Position() int {
	return h.position
}

// Len returns the number of entries.
func (h *HistoryLedger) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the entries, oldest first.
func (h *HistoryLedger) Entries() []string {
	return append([]string(nil), h.entries...)
}
