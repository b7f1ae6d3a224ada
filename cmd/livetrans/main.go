package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/christian-lee/livetrans/internal/config"
	"github.com/christian-lee/livetrans/internal/session"
	"github.com/christian-lee/livetrans/internal/stt"
	"github.com/christian-lee/livetrans/internal/translate"
	"github.com/christian-lee/livetrans/internal/web"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  livetrans run [config]     Translate PCM audio from stdin (s16le 16kHz mono)")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cfgPath := "config.yaml"
		if len(os.Args) > 2 {
			cfgPath = os.Args[2]
		}
		os.Exit(run(cfgPath))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

// run returns the process exit code: 0 on graceful shutdown, 1 on a startup
// error, 2 on an unrecoverable runtime error.
func run(cfgPath string) int {
	hot, err := config.NewHotConfig(cfgPath)
	if err != nil {
		slog.Error("load config failed", "err", err)
		return 1
	}
	cfg := hot.Get()

	if cfg.Gemini.APIKey == "" {
		slog.Error("gemini api key missing (set gemini.api_key or GEMINI_API_KEY)")
		return 1
	}
	if cfg.Google.Credentials != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", cfg.Google.Credentials)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()

	translator, err := translate.NewGeminiTranslator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model,
		translate.WithFallbackModel(cfg.Gemini.FallbackModel))
	if err != nil {
		slog.Error("init translator failed", "err", err)
		return 1
	}
	defer translator.Close()

	rt := config.NewRuntime(cfg.Translation.Settings())
	hot.OnReload(func(c *config.Config) {
		rt.Reset(c.Translation.Settings())
	})
	hot.Watch()

	server := web.NewServer(rt, cfg.Web.Port)
	server.Start()

	sess := session.New(rt, translator, server)

	results := make(chan stt.Hypothesis, 50)
	sttErr := make(chan error, 1)
	go func() {
		sttErr <- stt.RunWithReconnect(ctx, cfg.Google.STTLanguage, cfg.Google.AltLangs, os.Stdin, results)
	}()

	slog.Info("livetrans started",
		"session", sess.ID,
		"source", cfg.Translation.SourceLang, "target", cfg.Translation.TargetLang,
		"web", fmt.Sprintf("http://localhost:%d", cfg.Web.Port))

	if err := sess.Run(ctx, results); err != nil {
		slog.Error("session failed", "err", err)
		return 2
	}
	if err := <-sttErr; err != nil {
		slog.Error("speech stream failed", "err", err)
		return 2
	}
	return 0
}
