// Package pipeline runs one portfolio search end to end: load prices, align
// them, search the weights and render the candidate animation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"portfolioSharpe/internal/animation"
	"portfolioSharpe/internal/config"
	"portfolioSharpe/internal/finance"
	"portfolioSharpe/internal/optimizer"
	"portfolioSharpe/internal/storage"
)

// Report summarizes a finished run.
type Report struct {
	RunID       string
	Symbols     []string
	Best        []float64
	Objective   float64
	Stats       *finance.PortfolioStats // nil when the best portfolio is degenerate
	Generations int
	Reason      optimizer.StopReason
	DroppedDays int
	Frames      int
	OutputPath  string
}

// Run executes the whole analysis described by cfg.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Report, error) {
	runID := uuid.NewString()
	log = log.With().Str("run_id", runID).Logger()

	returns, dropped, err := loadReturns(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	obj := finance.NewObjective(returns, cfg.PenaltyWeight)
	opt, err := optimizer.New(cfg.Optimizer.Method, cfg.Optimizer.Settings(), log)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("method", cfg.Optimizer.Method).
		Bool("project", cfg.Optimizer.Project).
		Int("assets", returns.NumAssets()).
		Int("periods", returns.NumPeriods()).
		Msg("searching weights")

	res, err := opt.Maximize(ctx, obj.Fitness, optimizer.UnitBounds(returns.NumAssets()))
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	report := &Report{
		RunID:       runID,
		Symbols:     returns.Symbols,
		Best:        res.Best,
		Objective:   -res.Fitness,
		Generations: len(res.Generations),
		Reason:      res.Reason,
		DroppedDays: dropped,
		OutputPath:  cfg.OutputPath,
	}

	portfolio, err := returns.PortfolioReturns(res.Best)
	if err != nil {
		return nil, err
	}
	stats, err := finance.CalculatePortfolioStats(portfolio)
	switch {
	case err == nil:
		report.Stats = stats
	case errors.Is(err, finance.ErrDegenerateSeries):
		log.Warn().Err(err).Msg("best portfolio has an undefined sharpe ratio")
	default:
		return nil, err
	}

	ev := log.Info().
		Str("weights", finance.Composition(returns.Symbols, res.Best)).
		Float64("objective", report.Objective).
		Float64("penalty", finance.Penalty(res.Best)).
		Int("generations", report.Generations).
		Int("evaluations", res.Evaluations).
		Str("reason", string(res.Reason))
	if stats != nil {
		ev = ev.Float64("sharpe", stats.SharpeRatio).Float64("total_return_pct", stats.TotalReturn)
	}
	ev.Msg("search finished")

	if cfg.BestChartPath != "" {
		if err := writeBestChart(cfg, returns, res.Best); err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.BestChartPath).Msg("best portfolio chart written")
	}

	frames, err := writeAnimation(ctx, cfg, returns, res.Candidates(cfg.Animation.Candidates), log)
	if err != nil {
		return nil, err
	}
	report.Frames = frames
	log.Info().Str("path", cfg.OutputPath).Int("frames", frames).Msg("animation written")
	return report, nil
}

// loadReturns reads every asset file, joins them on date and computes returns.
func loadReturns(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*finance.ReturnMatrix, int, error) {
	series := make([]*finance.PriceSeries, len(cfg.Assets))
	g, _ := errgroup.WithContext(ctx)
	for i, asset := range cfg.Assets {
		g.Go(func() error {
			s, err := finance.LoadPriceCSV(cfg.AssetPath(asset), asset.Symbol)
			if err != nil {
				return fmt.Errorf("load %s: %w", asset.Symbol, err)
			}
			series[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	store, err := storage.OpenMemory(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("open price store: %w", err)
	}
	defer store.Close()

	for _, s := range series {
		if err := store.Insert(ctx, s); err != nil {
			return nil, 0, err
		}
		log.Debug().Str("symbol", s.Symbol).Int("points", len(s.Points)).Msg("prices loaded")
	}
	joined, err := store.Aligned(ctx, cfg.Symbols())
	if err != nil {
		return nil, 0, err
	}
	if joined.DroppedDays > 0 {
		log.Warn().Int("dropped_days", joined.DroppedDays).Msg("dates missing from some assets were dropped")
	}

	returns, err := finance.ComputeReturns(joined.Prices)
	if err != nil {
		return nil, 0, err
	}
	return returns, joined.DroppedDays, nil
}

func writeBestChart(cfg *config.Config, returns *finance.ReturnMatrix, best []float64) error {
	img, err := finance.MakeBestPortfolioChart(returns, best, cfg.Animation.ChartWidth, cfg.Animation.ChartHeight)
	if err != nil {
		return fmt.Errorf("best chart: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.BestChartPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(cfg.BestChartPath, img, 0o644)
}

func writeAnimation(ctx context.Context, cfg *config.Config, returns *finance.ReturnMatrix, candidates [][]float64, log zerolog.Logger) (int, error) {
	acfg := animation.Config{
		FPS:         cfg.Animation.FPS,
		Seconds:     cfg.Animation.Seconds,
		ChartWidth:  cfg.Animation.ChartWidth,
		ChartHeight: cfg.Animation.ChartHeight,
		Width:       cfg.Animation.GIFWidth,
		Height:      cfg.Animation.GIFHeight,
	}
	frames, err := animation.BuildFrames(returns, candidates, acfg)
	if err != nil {
		return 0, fmt.Errorf("animation frames: %w", err)
	}
	g, err := animation.Render(ctx, frames, finance.NewChartCache(), acfg, log)
	if err != nil {
		return 0, fmt.Errorf("animation render: %w", err)
	}
	if err := animation.WriteGIF(cfg.OutputPath, g); err != nil {
		return 0, err
	}
	return len(frames), nil
}
