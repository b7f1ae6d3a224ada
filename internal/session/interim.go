package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/christian-lee/livetrans/internal/config"
	"github.com/christian-lee/livetrans/internal/delta"
	"github.com/christian-lee/livetrans/internal/translate"
)

// interimTranslator translates the evolving interim source text. Rapid
// updates are coalesced by the debounce window; a newer submission or an
// arriving final cancels whatever is pending or in flight. At most one task
// is active at a time, and a cancelled task never reaches the sink.
type interimTranslator struct {
	tr   translate.Translator
	cfg  *config.Runtime
	sink *serialSink
	ctx  context.Context

	mu     sync.Mutex
	cancel context.CancelFunc // pending task, nil when idle

	// Last delivered snapshots for the interim stream. Reset when a
	// sentence finalizes so the next utterance starts a fresh delta cycle.
	prevOriginal    string
	prevTranslation string
}

func newInterimTranslator(ctx context.Context, tr translate.Translator, cfg *config.Runtime, sink *serialSink) *interimTranslator {
	return &interimTranslator{tr: tr, cfg: cfg, sink: sink, ctx: ctx}
}

// deliverOriginal emits an original-only interim update so the UI shows the
// source immediately while translation is pending. Used only when sync
// display mode is off.
func (it *interimTranslator) deliverOriginal(snapshot string, cfg config.Settings) {
	it.mu.Lock()
	defer it.mu.Unlock()

	msg := Message{
		Type: KindInterim,
		Original: Text{
			FullText: snapshot,
			Delta:    delta.Compute(it.prevOriginal, snapshot),
			Language: cfg.SourceLang,
		},
	}
	it.prevOriginal = snapshot

	if err := it.sink.deliver(msg); err != nil {
		slog.Debug("interim original dropped", "err", err)
	}
}

// submit supersedes any pending task and schedules translation of the new
// snapshot after the debounce window.
func (it *interimTranslator) submit(snapshot string) {
	cfg := it.cfg.Snapshot()

	it.mu.Lock()
	if it.cancel != nil {
		it.cancel()
	}
	tctx, cancel := context.WithCancel(it.ctx)
	it.cancel = cancel
	it.mu.Unlock()

	go it.run(tctx, snapshot, cfg)
}

// cancelPending aborts the scheduled or in-flight interim task. Once this
// returns, that task can no longer produce an outbound message.
func (it *interimTranslator) cancelPending() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.cancel != nil {
		it.cancel()
		it.cancel = nil
	}
}

// resetPrev clears the delta snapshots for the next sentence cycle.
func (it *interimTranslator) resetPrev() {
	it.mu.Lock()
	it.prevOriginal = ""
	it.prevTranslation = ""
	it.mu.Unlock()
}

func (it *interimTranslator) run(ctx context.Context, snapshot string, cfg config.Settings) {
	if cfg.InterimDebounceEnabled && cfg.Debounce > 0 {
		t := time.NewTimer(cfg.Debounce)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}

	translated, err := it.tr.Translate(ctx, snapshot, cfg.SourceLang, cfg.TargetLang)
	if err != nil || translated == "" {
		// Best effort: the source already shown stays as-is.
		if err != nil && ctx.Err() == nil {
			slog.Debug("interim translation failed", "err", err)
		}
		return
	}

	// Deliver under the lock, re-checking cancellation: a final that
	// cancelled this task while the call was completing must win. Once a
	// canceller's cancelPending returns, this task cannot emit.
	it.mu.Lock()
	defer it.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	msg := Message{
		Type: KindInterim,
		Original: Text{
			FullText: snapshot,
			Delta:    delta.Compute(it.prevOriginal, snapshot),
			Language: cfg.SourceLang,
		},
		Translation: &Text{
			FullText: translated,
			Delta:    delta.Compute(it.prevTranslation, translated),
			Language: cfg.TargetLang,
		},
	}
	it.prevOriginal = snapshot
	it.prevTranslation = translated

	if err := it.sink.deliver(msg); err != nil {
		slog.Debug("interim dropped", "err", err)
	}
}
