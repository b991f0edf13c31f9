// Package hub fans telemetry out to websocket clients through a single
// goroutine that owns the client set.
package hub

// Message is one JSON text frame queued for every client.
type Message struct {
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}
