package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christian-lee/livetrans/internal/config"
	"github.com/christian-lee/livetrans/internal/delta"
	"github.com/christian-lee/livetrans/internal/stt"
)

// runSession starts a session over a hypothesis channel and returns the
// channel to feed plus a done-channel carrying Run's error.
func runSession(t *testing.T, tr *fakeTranslator, mutate ...func(*config.Settings)) (*config.Runtime, *captureSink, chan<- stt.Hypothesis, <-chan error) {
	t.Helper()
	rt := config.NewRuntime(testSettings(mutate...))
	sink := &captureSink{}
	s := New(rt, tr, sink)

	events := make(chan stt.Hypothesis, 64)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), events) }()
	return rt, sink, events, done
}

func interim(text string) stt.Hypothesis {
	return stt.Hypothesis{Text: text, At: time.Now()}
}

func final(text string) stt.Hypothesis {
	return stt.Hypothesis{Text: text, IsFinal: true, At: time.Now()}
}

func finish(t *testing.T, events chan<- stt.Hypothesis, done <-chan error) error {
	t.Helper()
	close(events)
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
		return nil
	}
}

func TestSessionSingleSentence(t *testing.T) {
	// S1: two interim originals stream out immediately; the final cancels
	// the pending interim translation and arrives translated.
	tr := newFakeTranslator()
	_, sink, events, done := runSession(t, tr, func(s *config.Settings) {
		s.Debounce = 200 * time.Millisecond
	})

	events <- interim("Hello")
	events <- interim("Hello world")
	time.Sleep(30 * time.Millisecond) // well inside the debounce window
	events <- final("Hello world")

	require.True(t, waitFor(2*time.Second, func() bool { return len(sink.finals()) == 1 }))
	require.NoError(t, finish(t, events, done))

	msgs := sink.messages()
	require.Len(t, msgs, 3)

	assert.Equal(t, KindInterim, msgs[0].Type)
	assert.Equal(t, "Hello", msgs[0].Original.FullText)
	assert.Equal(t, "Hello", msgs[0].Original.Delta)
	assert.Nil(t, msgs[0].Translation)

	assert.Equal(t, KindInterim, msgs[1].Type)
	assert.Equal(t, "Hello world", msgs[1].Original.FullText)
	assert.Equal(t, " world", msgs[1].Original.Delta)
	assert.Nil(t, msgs[1].Translation)

	assert.Equal(t, KindFinal, msgs[2].Type)
	assert.Equal(t, "Hello world", msgs[2].Original.Delta)
	require.NotNil(t, msgs[2].Translation)
	assert.Equal(t, "T(Hello world)", msgs[2].Translation.FullText)
	assert.Equal(t, "T(Hello world)", msgs[2].Translation.Delta)

	// The interim translation was suppressed by the final: the only
	// service call is the final's.
	assert.Equal(t, [][]string{{"Hello world"}}, tr.callTexts())
}

func TestSessionRevisionDelta(t *testing.T) {
	// S2: the final is a fresh sentence cycle, so its delta is the whole
	// text even though it revises the interim.
	tr := newFakeTranslator()
	_, sink, events, done := runSession(t, tr, func(s *config.Settings) {
		s.Debounce = 200 * time.Millisecond
	})

	events <- interim("今天会意")
	events <- final("今天会议很重要")

	require.True(t, waitFor(2*time.Second, func() bool { return len(sink.finals()) == 1 }))
	require.NoError(t, finish(t, events, done))

	msgs := sink.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "今天会意", msgs[0].Original.Delta)
	assert.Equal(t, "今天会议很重要", msgs[1].Original.Delta)
	require.NotNil(t, msgs[1].Translation)
	assert.Equal(t, msgs[1].Translation.FullText, msgs[1].Translation.Delta)
}

func TestSessionDebounceSuppression(t *testing.T) {
	// S5: ten interim events within the window then a final; the service
	// sees exactly one call, for the final.
	tr := newFakeTranslator()
	_, sink, events, done := runSession(t, tr, func(s *config.Settings) {
		s.Debounce = 500 * time.Millisecond
	})

	full := []rune("Hello wo")
	for i := 1; i <= len(full); i++ {
		events <- interim(string(full[:i]))
	}
	time.Sleep(50 * time.Millisecond)
	events <- final("Hello world")

	require.True(t, waitFor(2*time.Second, func() bool { return len(sink.finals()) == 1 }))
	require.NoError(t, finish(t, events, done))

	assert.Equal(t, [][]string{{"Hello world"}}, tr.callTexts())

	var interims int
	for _, m := range sink.messages() {
		if m.Type == KindInterim {
			interims++
			assert.Nil(t, m.Translation)
		}
	}
	assert.Equal(t, len(full), interims)
}

func TestSessionInterimDedup(t *testing.T) {
	tr := newFakeTranslator()
	_, sink, events, done := runSession(t, tr, func(s *config.Settings) {
		s.Debounce = 300 * time.Millisecond
	})

	events <- interim("Hello")
	events <- interim("Hello") // identical, discarded
	events <- interim(" Hello ")
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, finish(t, events, done))
	assert.Len(t, sink.messages(), 1)
}

func TestSessionEmptyHypothesisSkipped(t *testing.T) {
	tr := newFakeTranslator()
	_, sink, events, done := runSession(t, tr)

	events <- interim("   ")
	events <- final("\t")
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, finish(t, events, done))
	assert.Empty(t, sink.messages())
	assert.Equal(t, 0, tr.callCount())
}

func TestSessionOrderingUnderVariableLatency(t *testing.T) {
	// Property 1 / S4: long sentences must not let later short ones
	// overtake them on the way to the UI.
	tr := newFakeTranslator()
	tr.latencyFn = func(texts []string) time.Duration {
		for _, s := range texts {
			if len(s) > 20 {
				return 120 * time.Millisecond
			}
		}
		return 10 * time.Millisecond
	}
	_, sink, events, done := runSession(t, tr, func(s *config.Settings) {
		s.BatchSize = 1 // every final flushes alone, maximizing overlap windows
		s.BatchTimeout = 50 * time.Millisecond
	})

	events <- final("a long sentence that takes a while")
	time.Sleep(20 * time.Millisecond)
	events <- final("short")

	require.True(t, waitFor(2*time.Second, func() bool { return len(sink.finals()) == 2 }))
	require.NoError(t, finish(t, events, done))

	finals := sink.finals()
	assert.Equal(t, "a long sentence that takes a while", finals[0].Original.FullText)
	assert.Equal(t, "short", finals[1].Original.FullText)
	assert.Less(t, finals[0].Timestamp, finals[1].Timestamp)
}

func TestSessionManyFinalsGapless(t *testing.T) {
	tr := newFakeTranslator()
	tr.latencyFn = func(texts []string) time.Duration {
		// Odd-length texts are slow: plenty of out-of-order completion.
		if len(texts[0])%2 == 1 {
			return 40 * time.Millisecond
		}
		return 5 * time.Millisecond
	}
	_, sink, events, done := runSession(t, tr, func(s *config.Settings) {
		s.BatchSize = 2
		s.BatchTimeout = 50 * time.Millisecond
	})

	const n = 12
	for i := 0; i < n; i++ {
		events <- final(fmt.Sprintf("sentence %d", i))
		time.Sleep(5 * time.Millisecond)
	}

	require.True(t, waitFor(5*time.Second, func() bool { return len(sink.finals()) == n }))
	require.NoError(t, finish(t, events, done))

	for i, m := range sink.finals() {
		assert.Equal(t, fmt.Sprintf("sentence %d", i), m.Original.FullText)
	}
}

func TestSessionSyncDisplayMode(t *testing.T) {
	// Sync mode: no early original-only emission; one combined interim
	// after the debounce fires.
	tr := newFakeTranslator()
	_, sink, events, done := runSession(t, tr, func(s *config.Settings) {
		s.SyncDisplayMode = true
		s.Debounce = 20 * time.Millisecond
	})

	events <- interim("Hello")
	require.True(t, waitFor(time.Second, func() bool { return len(sink.messages()) == 1 }))
	require.NoError(t, finish(t, events, done))

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, KindInterim, msgs[0].Type)
	assert.Equal(t, "Hello", msgs[0].Original.FullText)
	require.NotNil(t, msgs[0].Translation)
	assert.Equal(t, "T(Hello)", msgs[0].Translation.FullText)
}

func TestSessionFinalTranslationFailure(t *testing.T) {
	// S6: a failing final still goes out, translation null, and later
	// finals are unaffected.
	tr := newFakeTranslator()
	tr.err = assert.AnError
	tr.errOnce = true
	_, sink, events, done := runSession(t, tr)

	events <- final("first")
	require.True(t, waitFor(time.Second, func() bool { return len(sink.finals()) == 1 }))
	events <- final("second")
	require.True(t, waitFor(time.Second, func() bool { return len(sink.finals()) == 2 }))
	require.NoError(t, finish(t, events, done))

	finals := sink.finals()
	assert.Nil(t, finals[0].Translation)
	assert.Equal(t, "first", finals[0].Original.FullText)
	require.NotNil(t, finals[1].Translation)
}

func TestSessionDeltaInvariant(t *testing.T) {
	// Property 4: every delta equals full_text minus the common prefix
	// with the previous emission of the same stream.
	tr := newFakeTranslator()
	_, sink, events, done := runSession(t, tr, func(s *config.Settings) {
		s.Debounce = 10 * time.Millisecond
	})

	steps := []string{"He", "Hello", "Hello wor", "Hello world"}
	for _, s := range steps {
		events <- interim(s)
		time.Sleep(40 * time.Millisecond) // let each debounce fire
	}
	events <- final("Hello world!")
	require.True(t, waitFor(2*time.Second, func() bool { return len(sink.finals()) == 1 }))
	require.NoError(t, finish(t, events, done))

	prevOrig, prevTrans := "", ""
	for _, m := range sink.messages() {
		if m.Type == KindFinal {
			prevOrig, prevTrans = "", "" // fresh sentence cycle
		}
		assert.Equal(t, delta.Compute(prevOrig, m.Original.FullText), m.Original.Delta,
			"original delta for %q", m.Original.FullText)
		prevOrig = m.Original.FullText
		if m.Translation != nil {
			assert.Equal(t, delta.Compute(prevTrans, m.Translation.FullText), m.Translation.Delta,
				"translation delta for %q", m.Translation.FullText)
			prevTrans = m.Translation.FullText
		}
	}
}

func TestSessionRejectsDeliveryAfterTeardown(t *testing.T) {
	tr := newFakeTranslator()
	tr.latency = 80 * time.Millisecond
	_, sink, events, done := runSession(t, tr)

	events <- final("slow one")
	time.Sleep(20 * time.Millisecond) // translation in flight
	require.NoError(t, finish(t, events, done))

	count := len(sink.messages())
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, count, len(sink.messages()), "no deliveries after teardown")
}
