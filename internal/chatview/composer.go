package chatview

import "strings"

// Composer holds the pending outgoing message text.
type Composer struct {
	draft string
}

// SetDraft replaces the pending text.
func (c *Composer) SetDraft(text string) {
	c.draft = text
}

// Draft returns the pending text as typed, untrimmed.
func (c *Composer) Draft() string {
	return c.draft
}

// Clear empties the composer after a successful send.
func (c *Composer) Clear() {
	c.draft = ""
}

// IsEmpty reports whether the draft holds no sendable text.
func (c *Composer) IsEmpty() bool {
	return strings.TrimSpace(c.draft) == ""
}

// CanSend reports whether the send control is enabled: a non-empty draft and
// no send already in flight.
func (c *Composer) CanSend(sending bool) bool {
	return !sending && !c.IsEmpty()
}

// HandleEnter implements the keyboard affordance: Enter alone requests a
// send, Shift+Enter inserts a newline into the draft instead.
func (c *Composer) HandleEnter(shift bool) (send bool) {
	if shift {
		c.draft += "\n"
		return false
	}
	return true
}
