package container

import (
	"log/slog"

	"pano-bot/config"
	app "pano-bot/internal/application"
	"pano-bot/internal/domain/port"
	"pano-bot/internal/stitching"
)

type Container struct {
	UserService   *app.UserService
	StitchService *app.StitchService
	Config        *config.Config
}

func New(cfg *config.Config, userRepo port.UserRepository, estimateRepo port.EstimateRepository,
	detector port.FeatureDetector, matcher port.DescriptorMatcher, logger *slog.Logger) (*Container, error) {
	opts, err := StitchOptions(cfg)
	if err != nil {
		return nil, err
	}

	userService := app.NewUserService(userRepo)
	stitchService := app.NewStitchService(userService, detector, matcher, estimateRepo, opts, logger)

	return &Container{
		UserService:   userService,
		StitchService: stitchService,
		Config:        cfg,
	}, nil
}

// StitchOptions переводит конфигурацию в параметры прогона.
func StitchOptions(cfg *config.Config) (app.StitchOptions, error) {
	modes, err := cfg.Modes()
	if err != nil {
		return app.StitchOptions{}, err
	}
	s := cfg.Stitch
	return app.StitchOptions{
		Thresholds: s.Thresholds,
		Modes:      modes,
		Seed:       s.Seed,
		Estimator: stitching.EstimatorConfig{
			MaxIterations: s.MaxIterations,
			MinInliers:    s.MinInliers,
			Refine:        s.Refine,
		},
		Planner:          stitching.NewPlanner(s.CanvasMaxSide, s.CanvasMaxPixels),
		FeatherSharpness: s.FeatherSharpness,
	}, nil
}
