package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"portfolioSharpe/internal/finance"
	"portfolioSharpe/internal/optimizer"
)

// Config is the run configuration. Defaults are overlaid by the YAML file
// named in PORTFOLIO_CONFIG, then by environment variables.
type Config struct {
	Assets        []Asset         `yaml:"assets"`
	DataDir       string          `yaml:"data_dir"`
	OutputPath    string          `yaml:"output_path"`
	BestChartPath string          `yaml:"best_chart_path"`
	PenaltyWeight float64         `yaml:"penalty_weight"`
	Optimizer     OptimizerConfig `yaml:"optimizer"`
	Animation     AnimationConfig `yaml:"animation"`
	Log           LogConfig       `yaml:"log"`
}

// Asset is one input series. Path defaults to DataDir/<Symbol>.csv.
type Asset struct {
	Symbol string `yaml:"symbol"`
	Path   string `yaml:"path"`
}

type OptimizerConfig struct {
	Method               string  `yaml:"method"`
	MaxIterations        int     `yaml:"max_iterations"`
	StallIterations      int     `yaml:"stall_iterations"`
	PopulationSize       int     `yaml:"population_size"`
	ParentsMating        int     `yaml:"parents_mating"`
	KeepElitism          int     `yaml:"keep_elitism"`
	Seed                 int64   `yaml:"seed"`
	Workers              int     `yaml:"workers"`
	Selection            string  `yaml:"selection"`
	Crossover            string  `yaml:"crossover"`
	CrossoverProbability float64 `yaml:"crossover_probability"`
	Mutation             string  `yaml:"mutation"`
	MutationProbability  float64 `yaml:"mutation_probability"`
	MutationScale        float64 `yaml:"mutation_scale"`

	// Project rescales every candidate onto the feasible weights before it
	// is scored. Without it only the penalty term enforces the constraints.
	Project bool `yaml:"project"`
}

type AnimationConfig struct {
	Candidates  int `yaml:"candidates"`
	FPS         int `yaml:"fps"`
	Seconds     int `yaml:"seconds"`
	ChartWidth  int `yaml:"chart_width"`
	ChartHeight int `yaml:"chart_height"`
	GIFWidth    int `yaml:"gif_width"`
	GIFHeight   int `yaml:"gif_height"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	d := optimizer.DefaultSettings()
	return &Config{
		Assets:        []Asset{{Symbol: "SPY"}, {Symbol: "TLT"}, {Symbol: "GLD"}, {Symbol: "QQQ"}},
		DataDir:       "data",
		OutputPath:    "portfolios.gif",
		PenaltyWeight: finance.DefaultPenaltyWeight,
		Optimizer: OptimizerConfig{
			Method:               optimizer.MethodGA,
			MaxIterations:        d.MaxIterations,
			StallIterations:      d.StallIterations,
			PopulationSize:       d.PopulationSize,
			ParentsMating:        d.ParentsMating,
			KeepElitism:          d.KeepElitism,
			Seed:                 42,
			Workers:              d.Workers,
			Selection:            d.Selection,
			Crossover:            d.Crossover,
			CrossoverProbability: d.CrossoverProbability,
			Mutation:             d.Mutation,
			MutationProbability:  d.MutationProbability,
			MutationScale:        d.MutationScale,
			Project:              true,
		},
		Animation: AnimationConfig{
			Candidates:  10,
			FPS:         10,
			Seconds:     20,
			ChartWidth:  800,
			ChartHeight: 500,
			GIFWidth:    640,
			GIFHeight:   400,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads .env (if present), the YAML file named by PORTFOLIO_CONFIG (if
// set) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path := os.Getenv("PORTFOLIO_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.overlayEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	// Relative asset paths are taken relative to the config file.
	for i, a := range c.Assets {
		if a.Path != "" && !filepath.IsAbs(a.Path) {
			c.Assets[i].Path = filepath.Join(filepath.Dir(path), a.Path)
		}
	}
	return nil
}

func (c *Config) overlayEnv() error {
	var errs []error
	if v := os.Getenv("ASSETS"); v != "" {
		assets, err := parseAssets(v)
		errs = append(errs, err)
		c.Assets = assets
	}
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.OutputPath, "OUTPUT_PATH")
	setString(&c.BestChartPath, "BEST_CHART_PATH")
	errs = append(errs, setFloat(&c.PenaltyWeight, "PENALTY_WEIGHT"))

	o := &c.Optimizer
	setString(&o.Method, "OPTIMIZER_METHOD")
	errs = append(errs,
		setBool(&o.Project, "OPTIMIZER_PROJECT"),
		setInt(&o.MaxIterations, "GA_MAX_ITERATIONS"),
		setInt(&o.StallIterations, "GA_STALL_ITERATIONS"),
		setInt(&o.PopulationSize, "GA_POPULATION_SIZE"),
		setInt(&o.ParentsMating, "GA_PARENTS_MATING"),
		setInt(&o.KeepElitism, "GA_KEEP_ELITISM"),
		setInt64(&o.Seed, "GA_SEED"),
		setInt(&o.Workers, "GA_WORKERS"),
		setFloat(&o.CrossoverProbability, "GA_CROSSOVER_PROBABILITY"),
		setFloat(&o.MutationProbability, "GA_MUTATION_PROBABILITY"),
		setFloat(&o.MutationScale, "GA_MUTATION_SCALE"),
	)
	setString(&o.Selection, "GA_SELECTION")
	setString(&o.Crossover, "GA_CROSSOVER")
	setString(&o.Mutation, "GA_MUTATION")

	a := &c.Animation
	errs = append(errs,
		setInt(&a.Candidates, "ANIMATION_CANDIDATES"),
		setInt(&a.FPS, "ANIMATION_FPS"),
		setInt(&a.Seconds, "ANIMATION_SECONDS"),
		setInt(&a.ChartWidth, "CHART_WIDTH"),
		setInt(&a.ChartHeight, "CHART_HEIGHT"),
		setInt(&a.GIFWidth, "GIF_WIDTH"),
		setInt(&a.GIFHeight, "GIF_HEIGHT"),
	)

	setString(&c.Log.Level, "LOG_LEVEL")
	errs = append(errs, setBool(&c.Log.Pretty, "LOG_PRETTY"))
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if len(c.Assets) == 0 {
		return errors.New("at least one asset is required")
	}
	seen := map[string]bool{}
	for _, a := range c.Assets {
		if a.Symbol == "" {
			return errors.New("asset symbol is required")
		}
		if seen[a.Symbol] {
			return fmt.Errorf("duplicate asset %s", a.Symbol)
		}
		seen[a.Symbol] = true
	}
	if c.OutputPath == "" {
		return errors.New("output path is required")
	}
	if c.PenaltyWeight <= 0 {
		return fmt.Errorf("penalty weight must be positive, got %v", c.PenaltyWeight)
	}
	switch c.Optimizer.Method {
	case optimizer.MethodGA, optimizer.MethodCMAES:
	default:
		return fmt.Errorf("unknown optimizer method %q", c.Optimizer.Method)
	}
	if c.Optimizer.MaxIterations <= 0 || c.Optimizer.StallIterations <= 0 {
		return errors.New("max and stall iterations must be positive")
	}
	if p := c.Optimizer.CrossoverProbability; p < 0 || p > 1 {
		return fmt.Errorf("crossover probability %v out of [0,1]", p)
	}
	if p := c.Optimizer.MutationProbability; p < 0 || p > 1 {
		return fmt.Errorf("mutation probability %v out of [0,1]", p)
	}
	a := c.Animation
	if a.Candidates <= 0 || a.FPS <= 0 || a.Seconds <= 0 {
		return errors.New("animation candidates, fps and seconds must be positive")
	}
	if a.ChartWidth <= 0 || a.ChartHeight <= 0 || a.GIFWidth <= 0 || a.GIFHeight <= 0 {
		return errors.New("chart and gif sizes must be positive")
	}
	return nil
}

// AssetPath returns where the prices of a are read from.
func (c *Config) AssetPath(a Asset) string {
	if a.Path != "" {
		return a.Path
	}
	return filepath.Join(c.DataDir, a.Symbol+".csv")
}

func (c *Config) Symbols() []string {
	out := make([]string, len(c.Assets))
	for i, a := range c.Assets {
		out[i] = a.Symbol
	}
	return out
}

// Settings converts the optimizer section for optimizer.New.
func (o OptimizerConfig) Settings() optimizer.Settings {
	s := optimizer.DefaultSettings()
	s.MaxIterations = o.MaxIterations
	s.StallIterations = o.StallIterations
	s.PopulationSize = o.PopulationSize
	s.ParentsMating = o.ParentsMating
	s.KeepElitism = o.KeepElitism
	s.Seed = o.Seed
	s.Workers = o.Workers
	s.Selection = o.Selection
	s.Crossover = o.Crossover
	s.CrossoverProbability = o.CrossoverProbability
	s.Mutation = o.Mutation
	s.MutationProbability = o.MutationProbability
	s.MutationScale = o.MutationScale
	if o.Project {
		s.Repair = finance.ProjectWeights
	}
	return s
}

// parseAssets reads "SPY,TLT" or "SPY=prices/spy.csv,TLT".
func parseAssets(v string) ([]Asset, error) {
	var out []Asset
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sym, path, _ := strings.Cut(part, "=")
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			return nil, fmt.Errorf("ASSETS: empty symbol in %q", part)
		}
		out = append(out, Asset{Symbol: sym, Path: strings.TrimSpace(path)})
	}
	return out, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
