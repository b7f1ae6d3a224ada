// Package translate defines the translation service boundary and its Gemini
// implementation.
package translate

import "context"

// Translator converts text between languages. Implementations must be safe
// for concurrent use; one client is shared per session.
type Translator interface {
	// Translate translates a single string. An empty result with nil error
	// means the service produced nothing usable; callers treat it as a
	// missing translation.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// TranslateBatch translates texts in one request, preserving order.
	// The result always has len(texts) entries; entries may be empty when
	// the service dropped a line.
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}
