// Package session implements the per-session streaming translation
// coordinator: event ingestion, debounced interim translation, adaptive
// batching of finals, and strictly ordered delivery to the UI transport.
package session

import "errors"

// Kind tags an outbound message as interim or final.
type Kind string

const (
	KindInterim Kind = "interim"
	KindFinal   Kind = "final"
)

// Text is one language side of an outbound message.
type Text struct {
	FullText string `json:"full_text"`
	Delta    string `json:"delta"`
	Language string `json:"language"`
}

// Message is the JSON payload delivered to the UI via the
// receive_translation method. Translation is null for original-only interim
// updates and for finals whose translation failed.
type Message struct {
	Type        Kind  `json:"type"`
	Original    Text  `json:"original"`
	Translation *Text `json:"translation"`
	Timestamp   int64 `json:"timestamp"` // unix millis
}

// Sink receives outbound messages bound for the UI transport.
type Sink interface {
	Deliver(msg Message) error
}

var (
	// ErrDispatchOverflow means the ordered dispatch buffer exceeded its
	// cap: upstream is producing finals far faster than translation
	// completes. Fatal for the session.
	ErrDispatchOverflow = errors.New("dispatch buffer overflow")

	// ErrSessionClosed is returned for deliveries attempted after teardown
	// began.
	ErrSessionClosed = errors.New("session closed")
)
