// Package main provides a studio mic check application that captures audio
// from a local input and serves a real-time level meter dashboard.
//
// Usage:
//
//	miccheck [-config path/to/config.json]
//
// If -config is not specified, the application looks for config.json in the
// same directory as the binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/oszuidwest/zwfm-miccheck/internal/audio"
	"github.com/oszuidwest/zwfm-miccheck/internal/config"
	"github.com/oszuidwest/zwfm-miccheck/internal/monitor"
	"github.com/oszuidwest/zwfm-miccheck/internal/util"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Check whether the platform capture backend can run. FFmpeg is only
	// required on platforms that capture through it.
	ffmpegPath := util.ResolveFFmpegPath(cfg.GetFFmpegPath())
	captureAvailable := audio.CaptureAvailable(ffmpegPath)
	if !captureAvailable {
		slog.Warn("capture backend not found - running in degraded mode",
			"backend", audio.CaptureCommand(), "configured_ffmpeg", cfg.GetFFmpegPath())
	} else {
		slog.Info("capture backend available", "backend", audio.CaptureCommand())
	}

	mon := monitor.New(cfg, ffmpegPath)
	srv := NewServer(cfg, mon, captureAvailable)

	if captureAvailable {
		slog.Info("starting monitor")
		if err := mon.Start(); err != nil {
			slog.Error("failed to start monitor", "error", err)
		}
	} else {
		slog.Warn("monitor not started - capture backend not available")
	}

	// Start web server.
	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")

	// Stop version checker goroutine
	srv.version.Stop()

	// Shut down HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := mon.Stop(); err != nil {
		slog.Error("error stopping monitor", "error", err)
	}

	slog.Info("shutdown complete")
}
