package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/christian-lee/livetrans/internal/config"
	"github.com/christian-lee/livetrans/internal/translate"
)

// sentence is one finalized utterance awaiting translation.
type sentence struct {
	seq        uint64
	text       string
	lang       string // detected language tag, logging only
	enqueuedAt time.Time
}

// collector implements adaptive batching of finalized sentences.
//
// Empty batch: a new sentence is translated immediately as a single-item
// request, keeping the fast path of isolated sentences. Non-empty batch
// (a translation is in flight): sentences accumulate and flush when the
// batch size is reached or the batch timer expires; a flush requested while
// a call is in flight runs as soon as that call completes. At most one
// translation request is in flight at a time.
type collector struct {
	tr   translate.Translator
	cfg  *config.Runtime
	disp *dispatcher
	ctx  context.Context

	mu       sync.Mutex
	pending  []sentence
	timer    *time.Timer
	inFlight bool
	flushReq bool // size/timeout fired while a call was in flight
	closed   bool
	wg       sync.WaitGroup
}

func newCollector(ctx context.Context, tr translate.Translator, cfg *config.Runtime, disp *dispatcher) *collector {
	return &collector{tr: tr, cfg: cfg, disp: disp, ctx: ctx}
}

// add enqueues one sentence and decides between the immediate fast path and
// batching.
func (c *collector) add(s sentence) {
	cfg := c.cfg.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.pending = append(c.pending, s)

	switch {
	case !c.inFlight && len(c.pending) == 1:
		// No backlog: translate immediately.
		slog.Debug("batch empty, immediate translation", "seq", s.seq)
		c.flushLocked(cfg)
	case len(c.pending) >= cfg.BatchSize:
		slog.Debug("batch size reached", "seq", s.seq, "size", len(c.pending))
		c.requestFlushLocked(cfg)
	default:
		slog.Debug("batched", "seq", s.seq, "size", len(c.pending))
		c.armTimerLocked(cfg.BatchTimeout)
	}
}

// requestFlushLocked flushes now, or marks the flush to run as soon as the
// in-flight call completes.
func (c *collector) requestFlushLocked(cfg config.Settings) {
	if c.inFlight {
		c.flushReq = true
		return
	}
	c.flushLocked(cfg)
}

// flushLocked takes the pending batch and starts the translation call.
// Languages are snapshotted here: in-flight calls complete under the
// settings they started with.
func (c *collector) flushLocked(cfg config.Settings) {
	if len(c.pending) == 0 {
		return
	}
	batch := c.pending
	c.pending = nil
	c.flushReq = false
	c.stopTimerLocked()
	c.inFlight = true

	c.wg.Add(1)
	go c.translateBatch(batch, cfg)
}

func (c *collector) translateBatch(batch []sentence, cfg config.Settings) {
	defer c.wg.Done()

	texts := make([]string, len(batch))
	for i, s := range batch {
		texts[i] = s.text
	}

	start := time.Now()
	translations, err := c.tr.TranslateBatch(c.ctx, texts, cfg.SourceLang, cfg.TargetLang)
	if err != nil {
		// Submit the originals anyway so ordering and source delivery
		// survive the failure.
		slog.Error("batch translate failed", "count", len(batch), "err", err)
		translations = make([]string, len(batch))
	} else {
		slog.Debug("batch translated", "count", len(batch), "elapsed", time.Since(start))
	}

	for i, s := range batch {
		translated := ""
		if i < len(translations) {
			translated = translations[i]
		}
		c.disp.submit(s.seq, finalResult{
			source:     s.text,
			translated: translated,
			sourceLang: cfg.SourceLang,
			targetLang: cfg.TargetLang,
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if c.closed || len(c.pending) == 0 {
		return
	}
	// Re-snapshot: a config update takes effect for the next flush.
	next := c.cfg.Snapshot()
	if c.flushReq || len(c.pending) >= next.BatchSize {
		c.flushLocked(next)
	}
	// Otherwise the batch timer armed on append is still running.
}

func (c *collector) onTimeout() {
	cfg := c.cfg.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.pending) == 0 {
		return
	}
	slog.Debug("batch timeout, flushing", "size", len(c.pending))
	c.requestFlushLocked(cfg)
}

func (c *collector) armTimerLocked(d time.Duration) {
	c.stopTimerLocked()
	c.timer = time.AfterFunc(d, c.onTimeout)
}

func (c *collector) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// stop cancels the timer and refuses further sentences. The in-flight call,
// if any, is abandoned to the context.
func (c *collector) stop() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()
}

// wait blocks until the in-flight translation goroutine has returned.
func (c *collector) wait() {
	c.wg.Wait()
}
