package chatview

import (
	"fmt"
	"time"

	"rentchat/internal/domain/chat"
)

// RenderedMessage is one display row of the message pane. Own messages are
// right-aligned, everything else left-aligned.
type RenderedMessage struct {
	chat.Message
	Own       bool
	TimeLabel string
}

// RenderMessages maps a message list into display rows, ascending by
// timestamp. Pure: the input slice is not modified.
func RenderMessages(messages []chat.Message, currentUserID string, now time.Time) []RenderedMessage {
	sorted := make([]chat.Message, len(messages))
	copy(sorted, messages)
	chat.SortMessages(sorted)

	out := make([]RenderedMessage, 0, len(sorted))
	for _, msg := range sorted {
		out = append(out, RenderedMessage{
			Message:   msg,
			Own:       msg.SenderID == currentUserID,
			TimeLabel: RelativeTimeLabel(msg.Timestamp, now),
		})
	}
	return out
}

// RelativeTimeLabel formats a timestamp the way the chat pane shows it:
// "Ahora" under a minute, then "Hace Nm" / "Hace Nh" / "Hace Nd" up to a
// week, and an absolute date beyond that.
func RelativeTimeLabel(ts, now time.Time) string {
	d := now.Sub(ts)
	switch {
	case d < time.Minute:
		return "Ahora"
	case d < time.Hour:
		return fmt.Sprintf("Hace %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("Hace %dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("Hace %dd", int(d.Hours()/24))
	default:
		return ts.Format("02/01/2006")
	}
}
