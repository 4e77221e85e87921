package config

import (
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pano-bot/internal/domain/entity"
)

type Config struct {
	TelegramToken string `yaml:"telegram_token"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	Stitch        Stitch `yaml:"stitch"`
}

// Stitch параметры сборки панорамы.
type Stitch struct {
	Detector         string    `yaml:"detector"`      // ORB или AKAZE
	MaxFeatures      int       `yaml:"max_features"`  // бюджет точек ORB
	Thresholds       []float64 `yaml:"thresholds"`    // пороги RANSAC, пиксели
	MaxIterations    int       `yaml:"max_iterations"`
	Seed             uint64    `yaml:"seed"`
	Refine           bool      `yaml:"refine"`
	MinInliers       int       `yaml:"min_inliers"`
	CanvasMaxSide    int       `yaml:"canvas_max_side"`
	CanvasMaxPixels  int       `yaml:"canvas_max_pixels"`
	FeatherSharpness float64   `yaml:"feather_sharpness"`
	BlendModes       []string  `yaml:"blend_modes"`
	PreviewThreshold float64   `yaml:"preview_threshold"` // порог панорам, которые отправляет бот
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Stitch: Stitch{
			Detector:         "ORB",
			MaxFeatures:      5000,
			Thresholds:       []float64{1, 5, 15},
			MaxIterations:    2000,
			Seed:             1,
			Refine:           true,
			MinInliers:       4,
			CanvasMaxSide:    6000,
			CanvasMaxPixels:  16_000_000,
			FeatherSharpness: 0.02,
			BlendModes:       []string{"overlay", "feather"},
			PreviewThreshold: 5,
		},
	}
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("PANO_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv перекрывает значения из файла переменными окружения.
func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.TelegramToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}

	s := &c.Stitch
	if v := os.Getenv("PANO_DETECTOR"); v != "" {
		s.Detector = v
	}
	if v := os.Getenv("PANO_BLEND_MODES"); v != "" {
		s.BlendModes = SplitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PANO_MAX_FEATURES", &s.MaxFeatures},
		{"PANO_MAX_ITERATIONS", &s.MaxIterations},
		{"PANO_MIN_INLIERS", &s.MinInliers},
		{"PANO_CANVAS_MAX_SIDE", &s.CanvasMaxSide},
		{"PANO_CANVAS_MAX_PIXELS", &s.CanvasMaxPixels},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"PANO_FEATHER_SHARPNESS", &s.FeatherSharpness},
		{"PANO_PREVIEW_THRESHOLD", &s.PreviewThreshold},
	}
	for _, e := range floats {
		if v := os.Getenv(e.key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = f
		}
	}

	if v := os.Getenv("PANO_THRESHOLDS"); v != "" {
		thresholds, err := ParseThresholds(v)
		if err != nil {
			return fmt.Errorf("PANO_THRESHOLDS: %w", err)
		}
		s.Thresholds = thresholds
	}
	if v := os.Getenv("PANO_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PANO_SEED: %w", err)
		}
		s.Seed = seed
	}
	if v := os.Getenv("PANO_REFINE"); v != "" {
		refine, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PANO_REFINE: %w", err)
		}
		s.Refine = refine
	}
	return nil
}

// Validate проверяет диапазоны параметров.
func (c *Config) Validate() error {
	s := c.Stitch
	switch strings.ToUpper(s.Detector) {
	case "ORB", "AKAZE":
	default:
		return fmt.Errorf("unknown detector %q", s.Detector)
	}
	if s.MaxFeatures < 1 {
		return fmt.Errorf("max features must be positive, got %d", s.MaxFeatures)
	}
	if len(s.Thresholds) == 0 {
		return fmt.Errorf("at least one RANSAC threshold is required")
	}
	for _, t := range s.Thresholds {
		if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("invalid RANSAC threshold %v", t)
		}
	}
	// бот отправляет панорамы только этого порога
	if !slices.Contains(s.Thresholds, s.PreviewThreshold) {
		return fmt.Errorf("preview threshold %v is not among thresholds %v", s.PreviewThreshold, s.Thresholds)
	}
	if s.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", s.MaxIterations)
	}
	if s.MinInliers < 4 {
		return fmt.Errorf("min inliers must be at least 4, got %d", s.MinInliers)
	}
	if s.CanvasMaxSide < 1 || s.CanvasMaxPixels < 1 {
		return fmt.Errorf("canvas limits must be positive, got %d and %d", s.CanvasMaxSide, s.CanvasMaxPixels)
	}
	if s.FeatherSharpness < 0 || math.IsNaN(s.FeatherSharpness) {
		return fmt.Errorf("feather sharpness must be non-negative, got %v", s.FeatherSharpness)
	}
	if _, err := c.Modes(); err != nil {
		return err
	}
	return nil
}

// Modes возвращает режимы смешивания в заданном порядке.
func (c *Config) Modes() ([]entity.BlendMode, error) {
	if len(c.Stitch.BlendModes) == 0 {
		return nil, fmt.Errorf("at least one blend mode is required")
	}
	modes := make([]entity.BlendMode, 0, len(c.Stitch.BlendModes))
	for _, name := range c.Stitch.BlendModes {
		m, err := entity.ParseBlendMode(name)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	return modes, nil
}

// ParseThresholds разбирает список порогов через запятую.
func ParseThresholds(v string) ([]float64, error) {
	var out []float64
	for _, part := range SplitList(v) {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// SplitList разбирает список через запятую, пустые элементы отбрасываются.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
