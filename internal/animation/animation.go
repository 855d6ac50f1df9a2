// Package animation turns candidate portfolios into an animated GIF. Every
// candidate gets its own run of frames that reveal its cumulative return
// curve period by period against the per-asset curves.
package animation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	"portfolioSharpe/internal/finance"
)

// Config sizes the animation.
type Config struct {
	FPS         int
	Seconds     int
	ChartWidth  int // rendered chart size
	ChartHeight int
	Width       int // GIF size
	Height      int
}

// Frame is one picture of the animation.
type Frame struct {
	Candidate int       // index into the candidate list
	Weights   []float64 // candidate weights
	Revealed  int       // number of periods drawn
	Chart     finance.ChartFrame
}

// Key identifies the rendered image of the frame.
func (f Frame) Key() string {
	return fmt.Sprintf("%s-%dx%d", finance.FrameKey(f.Weights, f.Revealed), f.Chart.Width, f.Chart.Height)
}

// FramesPerCandidate splits FPS*Seconds evenly across n candidates, at least one each.
func FramesPerCandidate(cfg Config, n int) int {
	if n <= 0 {
		return 0
	}
	return max(1, cfg.FPS*cfg.Seconds/n)
}

// BuildFrames lays out the ordered frame list for the candidates. The y-axis
// range is fixed per candidate so the revealed curve does not jump.
func BuildFrames(returns *finance.ReturnMatrix, candidates [][]float64, cfg Config) ([]Frame, error) {
	if len(candidates) == 0 {
		return nil, &finance.InvalidInputError{Reason: "no candidates to animate"}
	}
	periods := returns.NumPeriods()
	if periods < 2 {
		return nil, &finance.InvalidInputError{Reason: fmt.Sprintf("need at least 2 return periods to animate, got %d", periods)}
	}

	perCandidate := FramesPerCandidate(cfg, len(candidates))
	labels := finance.PeriodLabels(returns.Dates())
	frames := make([]Frame, 0, perCandidate*len(candidates))

	for c, weights := range candidates {
		portfolio, err := returns.PortfolioReturns(weights)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", c, err)
		}
		subtitle, err := finance.Subtitle(portfolio)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", c, err)
		}

		series := finance.CandidateSeries(returns, "Portfolio", portfolio)
		yMin, yMax := finance.PaddedRange(series)
		title := finance.Composition(returns.Symbols, weights)

		for j := 0; j < perCandidate; j++ {
			k := 2 + (periods-2)*(j+1)/perCandidate
			frames = append(frames, Frame{
				Candidate: c,
				Weights:   weights,
				Revealed:  k,
				Chart: finance.ChartFrame{
					Title:    title,
					Subtitle: subtitle,
					Labels:   labels[:k],
					Records:  finance.LongForm(reveal(series, k)),
					YMin:     &yMin,
					YMax:     &yMax,
					Width:    cfg.ChartWidth,
					Height:   cfg.ChartHeight,
				},
			})
		}
	}
	return frames, nil
}

func reveal(series []finance.NamedSeries, k int) []finance.NamedSeries {
	out := make([]finance.NamedSeries, len(series))
	for i, s := range series {
		out[i] = finance.NamedSeries{Name: s.Name, Values: s.Values[:min(k, len(s.Values))]}
	}
	return out
}

// Render draws every frame and assembles the GIF. Identical frames are drawn
// once through cache.
func Render(ctx context.Context, frames []Frame, cache *finance.ChartCache, cfg Config, log zerolog.Logger) (*gif.GIF, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames to render")
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid fps %d", cfg.FPS)
	}
	delay := max(1, 100/cfg.FPS)

	out := &gif.GIF{LoopCount: 0}
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, ok := cache.Get(f.Key())
		if !ok {
			var err error
			raw, err = finance.RenderChartFrame(f.Chart)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			cache.Set(f.Key(), raw)
		}
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("frame %d: decode chart: %w", i, err)
		}
		out.Image = append(out.Image, toPaletted(img, cfg.Width, cfg.Height))
		out.Delay = append(out.Delay, delay)
	}
	log.Debug().Int("frames", len(frames)).Int("cache_hits", cache.Hits()).Msg("animation rendered")
	return out, nil
}

// toPaletted scales img to width x height and dithers it onto the Plan 9 palette.
// A non-positive size keeps the source size.
func toPaletted(img image.Image, width, height int) *image.Paletted {
	src := img.Bounds()
	if width <= 0 || height <= 0 {
		width, height = src.Dx(), src.Dy()
	}
	rect := image.Rect(0, 0, width, height)

	var scaled image.Image = img
	if width != src.Dx() || height != src.Dy() {
		dst := image.NewRGBA(rect)
		xdraw.CatmullRom.Scale(dst, rect, img, src, xdraw.Src, nil)
		scaled = dst
	}
	pal := image.NewPaletted(rect, palette.Plan9)
	xdraw.FloydSteinberg.Draw(pal, rect, scaled, scaled.Bounds().Min)
	return pal
}

// WriteGIF encodes g to path, creating the parent directory.
func WriteGIF(path string, g *gif.GIF) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, g); err != nil {
		f.Close()
		return fmt.Errorf("encode gif: %w", err)
	}
	return f.Close()
}
