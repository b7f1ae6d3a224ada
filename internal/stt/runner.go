package stt

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// RunWithReconnect feeds hypotheses from a Google streaming session into
// results, reconnecting with exponential backoff when the recognize RPC
// drops (Google caps streaming sessions at a few minutes). Closes results
// on return.
func RunWithReconnect(ctx context.Context, language string, altLangs []string, audio io.Reader, results chan<- Hypothesis) error {
	defer close(results)

	client, err := NewGoogleSTT(ctx, language, altLangs)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return nil
		}
		err := client.Stream(ctx, audio, results)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			// Clean end of stream (audio EOF): nothing left to transcribe.
			return nil
		}

		slog.Warn("STT stream ended, reconnecting...", "err", err, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}

		newClient, err := NewGoogleSTT(ctx, language, altLangs)
		if err != nil {
			slog.Error("STT reconnect failed", "err", err)
			return err
		}
		if err := client.Close(); err != nil {
			slog.Warn("close old STT client", "err", err)
		}
		client = newClient
		backoff = min(backoff*2, maxBackoff)
	}
}
