package hub

import "time"

// Event is a kiosk UI event pushed to connected screens. Payload is
// event-specific; screens switch on Type.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"ts"`
	Payload   any    `json:"payload,omitempty"`
}

// Event types understood by the tablet UI.
const (
	EventState           = "state"
	EventTranscript      = "transcript"
	EventReply           = "reply"
	EventEmoji           = "emoji"
	EventCart            = "cart"
	EventMenu            = "menu"
	EventRobotStatus     = "robot_status"
	EventPaymentOpen     = "payment_open"
	EventPaymentOutcome  = "payment_outcome"
	EventBill            = "bill"
	EventAddressRequired = "address_required"
	EventSessionEnded    = "session_ended"
)

func newEvent(typ string, payload any) Event {
	return Event{Type: typ, Timestamp: time.Now().UnixMilli(), Payload: payload}
}

// StateEvent announces a turn-state transition.
func StateEvent(state string) Event {
	return newEvent(EventState, map[string]string{"state": state})
}

// TranscriptEvent carries recognized speech. Partial transcripts are
// replaced by later ones; a final transcript closes the turn's input.
func TranscriptEvent(text string, final bool) Event {
	return newEvent(EventTranscript, map[string]any{"text": text, "final": final})
}

// ReplyEvent carries the assistant's spoken reply text.
func ReplyEvent(text string) Event {
	return newEvent(EventReply, map[string]string{"text": text})
}

// EmojiEvent shows a transient emoji popup on the screen.
func EmojiEvent(emojis string, durationMS int) Event {
	return newEvent(EventEmoji, map[string]any{"emojis": emojis, "duration_ms": durationMS})
}

// CartEvent pushes the full cart snapshot after any mutation.
func CartEvent(lines any, total float64) Event {
	return newEvent(EventCart, map[string]any{"lines": lines, "total": total})
}

// MenuEvent tells the screen to show or hide the menu panel.
func MenuEvent(show bool) Event {
	return newEvent(EventMenu, map[string]bool{"show": show})
}

// RobotStatusEvent pushes the latest robot status snapshot for the
// status panel.
func RobotStatusEvent(status any) Event {
	return newEvent(EventRobotStatus, status)
}

// PaymentOpenEvent opens the payment sheet with the gateway details
// the screen needs to render the QR / checkout.
func PaymentOpenEvent(payload any) Event {
	return newEvent(EventPaymentOpen, payload)
}

// PaymentOutcomeEvent closes the payment sheet with the outcome.
func PaymentOutcomeEvent(kind, detail string) Event {
	return newEvent(EventPaymentOutcome, map[string]string{"kind": kind, "detail": detail})
}

// BillEvent shows the rendered receipt for durationMS, or hides it
// when html is empty.
func BillEvent(html string, durationMS int) Event {
	return newEvent(EventBill, map[string]any{"html": html, "duration_ms": durationMS})
}

// AddressRequiredEvent asks the screen to prompt for the robot's IP,
// with the reason the stored one stopped working.
func AddressRequiredEvent(reason string) Event {
	return newEvent(EventAddressRequired, map[string]string{"reason": reason})
}

// SessionEndedEvent signals the conversation is over and the screen
// should return to the idle attract loop.
func SessionEndedEvent(reason string) Event {
	return newEvent(EventSessionEnded, map[string]string{"reason": reason})
}
