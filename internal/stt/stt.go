// Package stt adapts streaming speech-to-text engines into a stream of
// hypothesis events for the translation coordinator.
package stt

import "time"

// Hypothesis is one STT emission: an evolving interim guess or a confirmed
// final transcript.
type Hypothesis struct {
	Text     string
	IsFinal  bool
	Language string    // detected language code (e.g. "ja-jp"), may be empty
	At       time.Time // arrival timestamp
}
