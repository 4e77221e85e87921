package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pano-bot/internal/domain/entity"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PANO_CONFIG", "")
	t.Setenv("TELEGRAM_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "token", cfg.TelegramToken)
	require.Equal(t, "ORB", cfg.Stitch.Detector)
	require.Equal(t, []float64{1, 5, 15}, cfg.Stitch.Thresholds)
	require.Equal(t, 2000, cfg.Stitch.MaxIterations)
	require.True(t, cfg.Stitch.Refine)

	modes, err := cfg.Modes()
	require.NoError(t, err)
	require.Equal(t, []entity.BlendMode{entity.BlendOverlay, entity.BlendFeather}, modes)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pano.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
stitch:
  detector: AKAZE
  thresholds: [2, 4]
  seed: 99
  blend_modes: [feather]
`), 0o600))

	t.Setenv("PANO_CONFIG", path)
	t.Setenv("PANO_THRESHOLDS", "3, 9")
	t.Setenv("PANO_PREVIEW_THRESHOLD", "9")
	t.Setenv("PANO_REFINE", "false")
	t.Setenv("PANO_CANVAS_MAX_SIDE", "1200")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "AKAZE", cfg.Stitch.Detector)
	require.Equal(t, uint64(99), cfg.Stitch.Seed)
	require.Equal(t, []float64{3, 9}, cfg.Stitch.Thresholds)
	require.Equal(t, 9.0, cfg.Stitch.PreviewThreshold)
	require.False(t, cfg.Stitch.Refine)
	require.Equal(t, 1200, cfg.Stitch.CanvasMaxSide)
	require.Equal(t, []string{"feather"}, cfg.Stitch.BlendModes)
	// не заданные в файле поля остаются по умолчанию
	require.Equal(t, 5000, cfg.Stitch.MaxFeatures)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PANO_CONFIG", "")

	t.Setenv("PANO_MAX_ITERATIONS", "many")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("PANO_MAX_ITERATIONS", "")
	t.Setenv("PANO_BLEND_MODES", "overlay,multiband")
	_, err = Load()
	require.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"detector":   func(c *Config) { c.Stitch.Detector = "SIFT" },
		"thresholds": func(c *Config) { c.Stitch.Thresholds = nil },
		"negative":   func(c *Config) { c.Stitch.Thresholds = []float64{-1} },
		"inliers":    func(c *Config) { c.Stitch.MinInliers = 3 },
		"canvas":     func(c *Config) { c.Stitch.CanvasMaxPixels = 0 },
		"sharpness":  func(c *Config) { c.Stitch.FeatherSharpness = -0.1 },
		"modes":      func(c *Config) { c.Stitch.BlendModes = nil },
		"preview":    func(c *Config) { c.Stitch.PreviewThreshold = 7 },
		"no preview": func(c *Config) { c.Stitch.Thresholds = []float64{1, 15} },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		require.Error(t, cfg.Validate(), name)
	}
	require.NoError(t, Default().Validate())

	// нулевой порог допустим: инлаеры только точные
	cfg := Default()
	cfg.Stitch.Thresholds = []float64{0, 5}
	require.NoError(t, cfg.Validate())
}
