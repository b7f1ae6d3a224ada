package session

import (
	"log/slog"
	"sync"

	"github.com/christian-lee/livetrans/internal/delta"
)

// maxPendingDispatch caps the out-of-order buffer. Exceeding it means
// runaway upstream and kills the session.
const maxPendingDispatch = 256

// finalResult is one translated sentence waiting for its turn.
type finalResult struct {
	source     string
	translated string // empty when translation failed
	sourceLang string
	targetLang string
}

// dispatcher releases translated finals to the sink strictly in sequence
// order, even though the batch translator may complete them out of order
// (short sentences overtake long ones across batches).
type dispatcher struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]finalResult
	sink    *serialSink
	fatal   func(error) // invoked once on structural failure
}

func newDispatcher(sink *serialSink, fatal func(error)) *dispatcher {
	return &dispatcher{
		pending: make(map[uint64]finalResult),
		sink:    sink,
		fatal:   fatal,
	}
}

// submit buffers one result and flushes everything that is now in order.
func (d *dispatcher) submit(seq uint64, res finalResult) {
	d.mu.Lock()
	if len(d.pending) >= maxPendingDispatch {
		d.mu.Unlock()
		d.fatal(ErrDispatchOverflow)
		return
	}
	d.pending[seq] = res

	for {
		r, ok := d.pending[d.next]
		if !ok {
			break
		}
		delete(d.pending, d.next)
		d.emit(d.next, r)
		d.next++
	}
	d.mu.Unlock()
}

// emit builds and delivers one final message. Finals are whole-sentence
// atomic: the per-sentence prev snapshot is always empty, so the delta
// equals the full text.
func (d *dispatcher) emit(seq uint64, res finalResult) {
	msg := Message{
		Type: KindFinal,
		Original: Text{
			FullText: res.source,
			Delta:    delta.Compute("", res.source),
			Language: res.sourceLang,
		},
	}
	if res.translated != "" {
		msg.Translation = &Text{
			FullText: res.translated,
			Delta:    delta.Compute("", res.translated),
			Language: res.targetLang,
		}
	}

	if err := d.sink.deliver(msg); err != nil {
		slog.Debug("final dropped", "seq", seq, "err", err)
		return
	}
	slog.Debug("final delivered", "seq", seq, "translated", res.translated != "")
}
