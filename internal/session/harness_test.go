package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeTranslator records calls and answers with "T(<text>)" after an
// optional per-call latency.
type fakeTranslator struct {
	mu      sync.Mutex
	calls   [][]string // texts per call, single calls have one entry
	targets []string   // target language per call

	latency   time.Duration
	latencyFn func(texts []string) time.Duration
	err       error
	errOnce   bool // fail only the first call
	render    func(text, target string) string
}

func newFakeTranslator() *fakeTranslator {
	return &fakeTranslator{
		render: func(text, target string) string {
			return fmt.Sprintf("T(%s)", text)
		},
	}
}

func (f *fakeTranslator) delay(ctx context.Context, texts []string) error {
	d := f.latency
	if f.latencyFn != nil {
		d = f.latencyFn(texts)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTranslator) record(texts []string, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, texts)
	f.targets = append(f.targets, target)
	if f.err != nil {
		err := f.err
		if f.errOnce {
			f.err = nil
		}
		return err
	}
	return nil
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := f.delay(ctx, []string{text}); err != nil {
		return "", err
	}
	if err := f.record([]string{text}, targetLang); err != nil {
		return "", err
	}
	return f.render(text, targetLang), nil
}

func (f *fakeTranslator) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if err := f.delay(ctx, texts); err != nil {
		return nil, err
	}
	if err := f.record(texts, targetLang); err != nil {
		return nil, err
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = f.render(text, targetLang)
	}
	return out, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTranslator) callTexts() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTranslator) callTargets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.targets))
	copy(out, f.targets)
	return out
}

// captureSink records everything delivered to it.
type captureSink struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *captureSink) Deliver(msg Message) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	return nil
}

func (c *captureSink) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *captureSink) finals() []Message {
	var out []Message
	for _, m := range c.messages() {
		if m.Type == KindFinal {
			out = append(out, m)
		}
	}
	return out
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
