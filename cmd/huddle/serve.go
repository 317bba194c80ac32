package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundbench/huddle/internal/answer"
	"github.com/soundbench/huddle/internal/anthropic"
	"github.com/soundbench/huddle/internal/api"
	"github.com/soundbench/huddle/internal/classify"
	"github.com/soundbench/huddle/internal/config"
	"github.com/soundbench/huddle/internal/detect"
	"github.com/soundbench/huddle/internal/events"
	"github.com/soundbench/huddle/internal/gemini"
	"github.com/soundbench/huddle/internal/memory"
	"github.com/soundbench/huddle/internal/pipeline"
	"github.com/soundbench/huddle/internal/prompt"
	"github.com/soundbench/huddle/internal/stt"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant: ingest segments, detect acts, answer them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel)
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	slog.Info("huddle starting", "session", cfg.Session, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url is required (set DATABASE_URL)")
	}
	store, err := memory.New(ctx, cfg.DatabaseURL, cfg.MemoryOptions())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()
	slog.Info("database connected")

	var bus *events.Client
	if cfg.Nats.URL != "" {
		bus, err = events.NewClient(cfg.Nats.URL, cfg.Nats.Token, slog.Default())
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer bus.Close()
		slog.Info("NATS connected", "url", cfg.Nats.URL)
	} else {
		slog.Warn("NATS not configured, events disabled")
	}

	router := pipeline.NewRouter(ctx, sessionFactory(ctx, cfg, bus), slog.Default())
	defer router.Close()

	if cfg.Nats.Ingest {
		if bus == nil {
			return fmt.Errorf("nats.ingest requires nats.url")
		}
		if err := bus.Subscribe(events.SubjectSegment, router.HandleSegmentEvent); err != nil {
			return fmt.Errorf("subscribe to segments: %w", err)
		}
	}

	if cfg.STT.URL != "" {
		go runSTT(ctx, cfg, router)
	}

	srv := api.NewServer(cfg.Port, store, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("huddle ready", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown failed", "error", err)
	}
	cancel()
	slog.Info("huddle stopped")
	return nil
}

// sessionFactory builds a pipeline session per conversation. Each
// session gets its own store handle scoped to its windows.
func sessionFactory(ctx context.Context, cfg *config.Config, bus *events.Client) func(sessionID string) (*pipeline.Session, error) {
	return func(sessionID string) (*pipeline.Session, error) {
		opts := cfg.MemoryOptions()
		opts.SessionID = sessionID
		store, err := memory.New(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}

		var classifier detect.SentenceClassifier
		if esc := cfg.Detection.Escalation; esc.Endpoint != "" {
			classifier = classify.NewClient(esc.Endpoint, esc.Deployment, esc.APIKey)
		}
		detector := detect.NewHybrid(cfg.Detection.MinConfidence, classifier, slog.Default())

		builder := prompt.NewBuilder(store)

		var answerer pipeline.Answerer
		if provider := answerProvider(cfg); provider != nil {
			answerer = answer.NewPipeline(provider, store, slog.Default())
		} else {
			slog.Warn("answer provider disabled", "session_id", sessionID)
		}

		var publisher pipeline.Publisher
		if bus != nil {
			publisher = bus
		}

		return pipeline.NewSession(sessionID, store, detector, builder, answerer, publisher, cfg.Detection.MinConfidence, slog.Default()), nil
	}
}

func answerProvider(cfg *config.Config) answer.Provider {
	switch cfg.Answer.Provider {
	case "anthropic":
		if cfg.Answer.AnthropicAPIKey == "" {
			return nil
		}
		return anthropic.NewClient(cfg.Answer.AnthropicAPIKey, cfg.Answer.Model)
	case "gemini":
		if cfg.Answer.GeminiAPIKey == "" {
			return nil
		}
		return gemini.NewClient(cfg.Answer.GeminiAPIKey, cfg.Answer.Model)
	default:
		return nil
	}
}

// runSTT streams PCM audio from stdin to the transcription service and
// feeds finalized segments into the pipeline.
func runSTT(ctx context.Context, cfg *config.Config, router *pipeline.Router) {
	session, err := stt.Dial(ctx, stt.Options{
		URL:        cfg.STT.URL,
		APIKey:     cfg.STT.APIKey,
		Model:      cfg.STT.Model,
		Language:   cfg.STT.Language,
		SampleRate: cfg.STT.SampleRate,
	}, slog.Default())
	if err != nil {
		slog.Error("STT dial failed", "error", err)
		return
	}
	defer session.Close()
	slog.Info("STT connected", "url", cfg.STT.URL)

	go func() {
		if err := session.Pump(ctx, os.Stdin); err != nil {
			slog.Error("STT audio pump failed", "error", err)
		}
	}()

	for segment := range session.Segments() {
		if !segment.Final {
			continue
		}
		router.Dispatch(events.SegmentEvent{
			SessionID: cfg.Session,
			Speaker:   segment.Speaker,
			Text:      segment.Text,
			T0:        segment.T0,
			T1:        segment.T1,
		})
	}
	if err := session.Err(); err != nil {
		slog.Error("STT stream failed", "error", err)
	}
}
