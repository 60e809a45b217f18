package chat

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// HandoffKey is the well-known slot name used to pass a "contact this person"
// command from other parts of the application into the chat view.
const HandoffKey = "rentchat:pending-contact"

// ErrInvalidHandoff is returned when a handoff payload cannot be used.
var ErrInvalidHandoff = errors.New("chat: invalid handoff payload")

// Handoff is the one-shot payload that initiates a new conversation. It is
// written once by a contact action, read once by the chat view and then
// discarded.
type Handoff struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	Type            string `json:"type,omitempty"`
	PropertyID      string `json:"propertyId,omitempty"`
	PropertyTitle   string `json:"propertyTitle,omitempty"`
	PropertyAddress string `json:"propertyAddress,omitempty"`
}

// DecodeHandoff parses a stored handoff payload. Missing id or name makes the
// payload unusable.
func DecodeHandoff(raw []byte) (Handoff, error) {
	var h Handoff
	if err := json.Unmarshal(raw, &h); err != nil {
		return Handoff{}, errors.Join(ErrInvalidHandoff, err)
	}
	h.ID = strings.TrimSpace(h.ID)
	h.Name = strings.TrimSpace(h.Name)
	if h.ID == "" || h.Name == "" {
		return Handoff{}, ErrInvalidHandoff
	}
	return h, nil
}

// Conversation synthesizes a client-side conversation record for a contact
// that has no server-side thread yet. The id is synthetic until the first
// message persists the thread.
func (h Handoff) Conversation(now time.Time) Conversation {
	return Conversation{
		ID:              "new-" + h.ID,
		ParticipantID:   h.ID,
		ParticipantName: h.Name,
		ParticipantRole: h.Type,
		LastMessage: LastMessage{
			Content:   "Nueva conversación",
			Timestamp: now,
		},
		PropertyAddress: h.PropertyAddress,
		PropertyTitle:   h.PropertyTitle,
		Status:          ConversationActive,
		Synthetic:       true,
	}
}
