package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"portfolioSharpe/internal/config"
	"portfolioSharpe/internal/logger"
	"portfolioSharpe/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	l := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(l)

	if err := run(cfg, l); err != nil {
		l.Fatal().Err(err).Msg("run failed")
	}
}

// run owns the signal handler so it is released before main exits.
func run(cfg *config.Config, l zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.Run(ctx, cfg, l)
	if err != nil {
		return err
	}
	l.Info().
		Str("run_id", report.RunID).
		Str("output", report.OutputPath).
		Int("frames", report.Frames).
		Msg("done")
	return nil
}
