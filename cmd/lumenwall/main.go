// Lumenwall - a wall of lights you can talk to. Listens for a wake
// word, records a question, transcribes it, and answers one letter at
// a time on an LED strip.
package main

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lumenwall/lumenwall/internal/audio"
	"github.com/lumenwall/lumenwall/internal/capture"
	"github.com/lumenwall/lumenwall/internal/config"
	"github.com/lumenwall/lumenwall/internal/convo"
	"github.com/lumenwall/lumenwall/internal/lights"
	"github.com/lumenwall/lumenwall/internal/orchestrator"
	"github.com/lumenwall/lumenwall/internal/server"
	"github.com/lumenwall/lumenwall/internal/transcribe"
	"github.com/lumenwall/lumenwall/internal/wakeword"
)

func main() {
	// .env is optional; real deployments use the environment.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	strip := buildStrip(cfg)
	defer func() { _ = strip.Close() }()

	mapping := lights.LoadMappingWithFallback(cfg.MappingPath)
	renderer := lights.NewRenderer(strip, mapping, lights.Options{
		Hold: cfg.Hold,
		Gap:  cfg.Gap,
	})

	mic := audio.NewMic(cfg.SampleRate, 32)
	det := buildDetector(cfg)
	if det != nil {
		defer det.Close()
	}

	recorder := capture.NewRecorder(mic, cfg.SampleRate)
	dispatcher := buildDispatcher(cfg)
	engine := convo.NewEngine(cfg, convo.NewHistory(cfg.HistoryLimit))

	// A nil *Detector inside a non-nil interface value would dodge the
	// orchestrator's nil checks.
	var detSeam orchestrator.Detector
	if det != nil {
		detSeam = det
	}

	orch := orchestrator.New(cfg, mic, detSeam, recorder, dispatcher, engine, renderer)
	srv := server.New(orch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("orchestrator stopped", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("lumenwall starting",
			"http", cfg.HTTPAddr, "phrase", cfg.TriggerPhrase,
			"leds", cfg.LEDCount, "remote_whisper", cfg.RemoteWhisperURL != "")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	go stdinLoop(orch)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	slog.Info("shutdown complete")
}

// buildStrip prefers real hardware and falls back to the console echo.
func buildStrip(cfg *config.Config) lights.Strip {
	strip, err := lights.NewWS281x(cfg.LEDCount, cfg.Brightness)
	if err != nil {
		slog.Warn("led hardware unavailable, echoing to console", "error", err)
		return lights.NewConsole(os.Stdout, cfg.LEDCount)
	}
	return strip
}

func buildDetector(cfg *config.Config) *wakeword.Detector {
	det, err := wakeword.New(cfg)
	if err != nil {
		slog.Warn("wake word detection disabled", "error", err)
		return nil
	}
	return det
}

func buildDispatcher(cfg *config.Config) *transcribe.Dispatcher {
	var remote *transcribe.Remote
	if cfg.RemoteWhisperURL != "" {
		remote = transcribe.NewRemote(cfg.RemoteWhisperURL, cfg.RemoteTimeout)
		probeCtx, probeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if hs, err := remote.Health(probeCtx); err != nil {
			slog.Warn("remote whisper health check failed, will try per turn", "error", err)
		} else {
			slog.Info("remote whisper connected", "model", hs.Model, "device", hs.Device)
		}
		probeCancel()
	}

	var local transcribe.Engine
	if eng, err := transcribe.NewWhisper(cfg.WhisperModelPath); err != nil {
		slog.Warn("local whisper unavailable", "error", err)
	} else {
		local = eng
	}

	if remote == nil && local == nil {
		slog.Warn("no transcription engine available, voice turns will fail")
	}
	return transcribe.NewDispatcher(remote, local)
}

// stdinLoop mirrors the keyboard flow of the floor install: an empty
// line triggers a recording, "stop" aborts a running render, anything
// else is a typed turn.
func stdinLoop(orch *orchestrator.Orchestrator) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			if !orch.TriggerRecord() {
				slog.Info("busy, try again after the current turn")
			}
		case strings.EqualFold(line, "stop"):
			orch.Interrupt()
		default:
			if !orch.Say(line) {
				slog.Info("busy, try again after the current turn")
			}
		}
	}
}
