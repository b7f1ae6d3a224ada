package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/genai"
)

// GeminiTranslator translates text using the Gemini API.
// Falls back to fallbackModel on 429/503, auto-recovers after 30s.
type GeminiTranslator struct {
	client         *genai.Client
	model          string
	fallbackModel  string
	requestTimeout time.Duration
	degraded       atomic.Bool
	recoverAt      atomic.Int64 // unix millis
}

func NewGeminiTranslator(ctx context.Context, apiKey, model string, opts ...TranslatorOption) (*GeminiTranslator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	t := &GeminiTranslator{
		client:         client,
		model:          model,
		fallbackModel:  "gemini-2.0-flash",
		requestTimeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// TranslatorOption configures a GeminiTranslator.
type TranslatorOption func(*GeminiTranslator)

// WithFallbackModel sets the fallback model for rate limit situations.
func WithFallbackModel(model string) TranslatorOption {
	return func(t *GeminiTranslator) {
		if model != "" {
			t.fallbackModel = model
		}
	}
}

// WithRequestTimeout bounds each generate call. Zero disables the bound.
func WithRequestTimeout(d time.Duration) TranslatorOption {
	return func(t *GeminiTranslator) {
		t.requestTimeout = d
	}
}

// Translate translates text from sourceLang to targetLang.
func (t *GeminiTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if sameLang(sourceLang, targetLang) {
		return text, nil
	}

	prompt := fmt.Sprintf(
		"Translate the following %s text to %s. "+
			"Output ONLY the translation, nothing else. "+
			"Keep it natural and concise (suitable for live captions). "+
			"For proper nouns and person names, output their romanization instead of translating them.\n\n%s",
		sourceLang, targetLang, text,
	)

	result, model, err := t.generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	// Detect untranslated output: if result looks like source language, retry
	// with the fallback model once.
	if model != t.fallbackModel && looksLikeSource(result, sourceLang, targetLang) {
		slog.Warn("translation returned source language, retrying with fallback",
			"model", model, "source", text, "result", result)
		retry, err2 := t.generateWith(ctx, t.fallbackModel, prompt)
		if err2 == nil && !looksLikeSource(retry, sourceLang, targetLang) {
			return retry, nil
		}
		// Fallback no better: skip this one.
		return "", nil
	}

	slog.Debug("translated", "from", text, "to", result, "target", targetLang, "model", model)
	return result, nil
}

// TranslateBatch translates texts in one request using a numbered-line
// prompt. Order is preserved; a dropped line comes back empty.
func (t *GeminiTranslator) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) == 1 {
		out, err := t.Translate(ctx, texts[0], sourceLang, targetLang)
		if err != nil {
			return nil, err
		}
		return []string{out}, nil
	}
	if sameLang(sourceLang, targetLang) {
		out := make([]string, len(texts))
		copy(out, texts)
		return out, nil
	}

	prompt := batchPrompt(texts, sourceLang, targetLang)
	start := time.Now()
	result, model, err := t.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	translations := parseBatchResponse(result, len(texts))
	slog.Debug("batch translated", "count", len(texts), "elapsed", time.Since(start), "model", model)
	return translations, nil
}

// generate runs the prompt against the active model, degrading to the
// fallback model for 30s on rate-limit style failures.
func (t *GeminiTranslator) generate(ctx context.Context, prompt string) (string, string, error) {
	model := t.activeModel()
	result, err := t.generateWith(ctx, model, prompt)
	if err != nil {
		if !isRateLimited(err) {
			return "", model, fmt.Errorf("gemini translate: %w", err)
		}
		if !t.degraded.Load() {
			slog.Warn("rate limited, falling back", "from", model, "to", t.fallbackModel, "duration", "30s")
		}
		t.degraded.Store(true)
		t.recoverAt.Store(time.Now().Add(30 * time.Second).UnixMilli())

		result, err = t.generateWith(ctx, t.fallbackModel, prompt)
		if err != nil {
			return "", t.fallbackModel, fmt.Errorf("gemini translate (fallback): %w", err)
		}
		return result, t.fallbackModel, nil
	}
	return result, model, nil
}

func (t *GeminiTranslator) generateWith(ctx context.Context, model, prompt string) (string, error) {
	if t.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.requestTimeout)
		defer cancel()
	}
	resp, err := t.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

func isRateLimited(err error) bool {
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "503") ||
		strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "UNAVAILABLE")
}

// batchPrompt builds a numbered-line prompt so the response can be split
// back into per-sentence translations.
func batchPrompt(texts []string, sourceLang, targetLang string) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"Translate the following %d lines of %s text to %s. "+
			"Output exactly %d lines: line N must be the translation of input line N, "+
			"with the same \"N. \" numbering and nothing else. "+
			"Keep translations natural and concise (suitable for live captions).\n\n",
		len(texts), sourceLang, targetLang, len(texts))
	for i, text := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ReplaceAll(text, "\n", " "))
	}
	return b.String()
}

// parseBatchResponse splits a numbered-line response back into n entries.
// Lines the model dropped stay empty; extra lines are ignored.
func parseBatchResponse(resp string, n int) []string {
	out := make([]string, n)
	next := 0
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx, rest, ok := splitNumbered(line); ok && idx >= 1 && idx <= n {
			out[idx-1] = rest
			next = idx
			continue
		}
		// Unnumbered line: assign to the next empty slot in order.
		if next < n {
			out[next] = line
			next++
		}
	}
	return out
}

// splitNumbered parses "12. text" style prefixes.
func splitNumbered(line string) (int, string, bool) {
	dot := strings.IndexAny(line, ".)")
	if dot <= 0 || dot > 3 {
		return 0, "", false
	}
	idx := 0
	for _, r := range line[:dot] {
		if r < '0' || r > '9' {
			return 0, "", false
		}
		idx = idx*10 + int(r-'0')
	}
	return idx, strings.TrimSpace(line[dot+1:]), true
}

func sameLang(a, b string) bool {
	short := func(s string) string {
		return strings.SplitN(strings.ToLower(s), "-", 2)[0]
	}
	return a != "" && short(a) == short(b)
}

// looksLikeSource checks if the translation result is still in the source
// language. Heuristic on character classes; cheap but catches the common
// "model echoed the input" failure for CJK/Latin pairs.
func looksLikeSource(text, sourceLang, targetLang string) bool {
	if text == "" {
		return false
	}
	srcShort := strings.SplitN(strings.ToLower(sourceLang), "-", 2)[0]
	tgtShort := strings.SplitN(strings.ToLower(targetLang), "-", 2)[0]

	if srcShort == tgtShort {
		return false // same language, can't detect
	}

	// Count character types
	jaCount := 0    // hiragana + katakana
	latinCount := 0 // ASCII letters
	cjkCount := 0   // CJK unified ideographs (shared by zh/ja)
	total := 0
	for _, r := range text {
		if r < 0x20 || r == ' ' {
			continue
		}
		total++
		if (r >= 0x3040 && r <= 0x309F) || (r >= 0x30A0 && r <= 0x30FF) {
			jaCount++
		}
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			latinCount++
		}
		if r >= 0x4E00 && r <= 0x9FFF {
			cjkCount++
		}
	}

	if total == 0 {
		return false
	}

	jaRatio := float64(jaCount) / float64(total)
	latinRatio := float64(latinCount) / float64(total)

	// Source is Japanese but target is Chinese: check for leftover kana
	if srcShort == "ja" && tgtShort == "zh" && jaRatio > 0.3 {
		return true
	}

	// Target is CJK (zh/ja/ko) but result is mostly Latin = wrong language (English)
	if (tgtShort == "zh" || tgtShort == "ja" || tgtShort == "ko") && latinRatio > 0.5 {
		return true
	}

	// Target is Latin-based (en/fr/de/es) but result is mostly CJK = wrong language
	if (tgtShort == "en" || tgtShort == "fr" || tgtShort == "de" || tgtShort == "es") &&
		float64(cjkCount)/float64(total) > 0.3 {
		return true
	}

	return false
}

// activeModel returns the current model, auto-recovering from degraded state.
func (t *GeminiTranslator) activeModel() string {
	if t.degraded.Load() {
		if time.Now().UnixMilli() >= t.recoverAt.Load() {
			t.degraded.Store(false)
			slog.Info("recovered from rate limit, back to primary model", "model", t.model)
			return t.model
		}
		return t.fallbackModel
	}
	return t.model
}

func (t *GeminiTranslator) Close() {
	// genai client doesn't need explicit close
}
