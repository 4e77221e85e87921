package container

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pano-bot/config"
	"pano-bot/internal/domain/entity"
	"pano-bot/internal/infrastructure/storage"
)

func TestStitchOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Stitch.BlendModes = []string{"feather"}
	cfg.Stitch.CanvasMaxSide = 1000

	opts, err := StitchOptions(cfg)
	require.NoError(t, err)
	require.Equal(t, []entity.BlendMode{entity.BlendFeather}, opts.Modes)
	require.Equal(t, []float64{1, 5, 15}, opts.Thresholds)
	require.Equal(t, 2000, opts.Estimator.MaxIterations)
	require.Equal(t, 1000, opts.Planner.MaxSide)
	require.Equal(t, 16_000_000, opts.Planner.MaxPixels)
}

func TestNew(t *testing.T) {
	c, err := New(config.Default(), storage.NewMemoryUserRepository(), storage.NewMemoryEstimateRepository(), nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, c.UserService)
	require.NotNil(t, c.StitchService)

	cfg := config.Default()
	cfg.Stitch.BlendModes = []string{"multiband"}
	_, err = New(cfg, storage.NewMemoryUserRepository(), storage.NewMemoryEstimateRepository(), nil, nil, nil)
	require.Error(t, err)
}
