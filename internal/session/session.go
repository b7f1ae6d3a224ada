package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/christian-lee/livetrans/internal/config"
	"github.com/christian-lee/livetrans/internal/stt"
	"github.com/christian-lee/livetrans/internal/translate"
)

// Session is one streaming translation coordinator instance. It consumes a
// hypothesis stream, routes interims to the debounced translator and finals
// to the adaptive batch translator, and guarantees strictly ordered final
// delivery.
type Session struct {
	ID string

	cfg  *config.Runtime
	sink *serialSink

	interim *interimTranslator
	batch   *collector
	disp    *dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	fatalErr error

	// ingest state, touched only by the Run loop
	nextSeq     uint64
	lastInterim string
	skipped     int
}

// New creates a session wired to the given translator and transport sink.
func New(cfg *config.Runtime, tr translate.Translator, dst Sink) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		ID:     uuid.NewString(),
		cfg:    cfg,
		sink:   newSerialSink(dst),
		ctx:    ctx,
		cancel: cancel,
	}
	s.disp = newDispatcher(s.sink, s.fatal)
	s.interim = newInterimTranslator(ctx, tr, cfg, s.sink)
	s.batch = newCollector(ctx, tr, cfg, s.disp)
	return s
}

// Run processes hypotheses until the stream closes, ctx is cancelled, or a
// structural error kills the session. Always tears down before returning;
// the returned error is nil on graceful shutdown.
func (s *Session) Run(ctx context.Context, events <-chan stt.Hypothesis) error {
	slog.Info("session started", "session", s.ID)
	defer s.teardown()

	for {
		select {
		case <-ctx.Done():
			return s.err()
		case <-s.ctx.Done():
			// A structural error (dispatch overflow) killed the session.
			return s.err()
		case ev, ok := <-events:
			if !ok {
				return s.err()
			}
			s.handle(ev)
			if err := s.err(); err != nil {
				return err
			}
		}
	}
}

// handle classifies one hypothesis and routes it. Interims are deduped
// against the last seen snapshot; finals allocate a sequence number, cancel
// pending interim work, and enter the batch collector in allocation order.
func (s *Session) handle(ev stt.Hypothesis) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		s.skipped++
		slog.Debug("empty hypothesis skipped", "session", s.ID, "skipped", s.skipped)
		return
	}

	if !ev.IsFinal {
		if text == s.lastInterim {
			return
		}
		s.lastInterim = text

		cfg := s.cfg.Snapshot()
		if !cfg.SyncDisplayMode {
			// Show the source immediately; the translation follows once
			// the debounced task completes.
			s.interim.deliverOriginal(text, cfg)
		}
		s.interim.submit(text)
		return
	}

	seq := s.nextSeq
	s.nextSeq++
	s.lastInterim = ""

	// The final supersedes whatever interim is pending or in flight, and
	// starts a fresh delta cycle for the next utterance.
	s.interim.cancelPending()
	s.interim.resetPrev()

	slog.Info("final", "session", s.ID, "seq", seq, "lang", ev.Language, "text", text)
	s.batch.add(sentence{seq: seq, text: text, lang: ev.Language, enqueuedAt: time.Now()})
}

// fatal records the first structural error and begins teardown.
func (s *Session) fatal(err error) {
	s.mu.Lock()
	first := s.fatalErr == nil
	if first {
		s.fatalErr = err
	}
	s.mu.Unlock()

	if first {
		slog.Error("session fatal", "session", s.ID, "err", err)
		s.cancel()
	}
}

func (s *Session) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// teardown cancels outstanding work and closes the sink. Idempotent.
func (s *Session) teardown() {
	s.interim.cancelPending()
	s.batch.stop()
	s.cancel()
	s.sink.close()
	s.batch.wait()
	slog.Info("session stopped", "session", s.ID, "sentences", s.nextSeq, "skipped", s.skipped)
}
