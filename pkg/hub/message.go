package hub

// MessageType distinguishes JSON event frames from raw binary frames.
type MessageType int

const (
	JSONMessage MessageType = iota
	BinaryMessage
)

// Message is a websocket frame queued for delivery to a screen.
type Message struct {
	Type MessageType
	Data []byte
}
