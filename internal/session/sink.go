package session

import (
	"sync"
	"time"
)

// serialSink hands messages to the transport one at a time, stamps them with
// monotonic timestamps, and rejects deliveries once teardown has begun. It
// never reorders: interleaving of interim and final messages is the call
// order from the translators and the dispatcher.
type serialSink struct {
	mu     sync.Mutex
	dst    Sink
	closed bool
	lastTS int64
}

func newSerialSink(dst Sink) *serialSink {
	return &serialSink{dst: dst}
}

func (s *serialSink) deliver(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	ts := time.Now().UnixMilli()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	msg.Timestamp = ts

	return s.dst.Deliver(msg)
}

func (s *serialSink) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
