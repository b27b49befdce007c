// Run command: starts the Discord bot, the web server, and the Arc catalog
// refresh, and stops them on SIGINT or SIGTERM.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Shonas301/plutarch/internal/arc"
	"github.com/Shonas301/plutarch/internal/bot"
	"github.com/Shonas301/plutarch/internal/logging"
	"github.com/Shonas301/plutarch/internal/transcribe"
	"github.com/Shonas301/plutarch/internal/web"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Discord bot and the web server",
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := cfg.ValidateBot(); err != nil {
		return err
	}
	log := logging.L()
	if cfg.Audio.Opus != "" {
		log.Info("opus library configured", "path", cfg.Audio.Opus)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := attachBackend()
	if err != nil {
		return err
	}
	defer backend.Detach()

	svc := arc.NewService(cfg.Arc, log)
	if err := svc.StartRefresh(""); err != nil {
		return fmt.Errorf("start arc refresh: %w", err)
	}
	defer svc.StopRefresh()

	deps := bot.Deps{Store: backend, Arc: svc, Logger: log}
	scribe, err := transcribe.New(cfg.Transcribe)
	switch {
	case err == nil:
		deps.Transcriber = scribe
	case errors.Is(err, transcribe.ErrUnavailable):
		log.Warn("transcription disabled", "error", err)
	default:
		return fmt.Errorf("create transcriber: %w", err)
	}

	b, err := bot.New(cfg, deps)
	if err != nil {
		return err
	}
	if err := b.Open(); err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Error("close bot", "error", err)
		}
	}()

	srv := web.New(cfg, backend, web.WithLogger(log))
	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info("shutting down")
	return nil
}
