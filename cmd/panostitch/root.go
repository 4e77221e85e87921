package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pano-bot/config"
	"pano-bot/internal/container"
	"pano-bot/internal/domain/entity"
	"pano-bot/internal/domain/port"
	"pano-bot/internal/infrastructure/storage"
	"pano-bot/internal/infrastructure/vision"
	"pano-bot/internal/logging"
	"pano-bot/internal/report"
)

type options struct {
	OutputDir  string
	Detector   string
	Thresholds string
	Modes      string
	Seed       uint64
	OpenCV     bool
	Quiet      bool
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "panostitch <left> <center> <right>",
		Short: "Stitch three overlapping photos into panoramas",
		Long: `Detects features, matches adjacent images, estimates homographies at every
RANSAC threshold and writes one panorama per threshold and blend mode, plus report.csv.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.OutputDir, "output", "o", ".", "output directory")
	f.StringVar(&opts.Detector, "detector", "", "feature detector: ORB or AKAZE (default from config)")
	f.StringVar(&opts.Thresholds, "thresholds", "", "comma-separated RANSAC thresholds in pixels")
	f.StringVar(&opts.Modes, "modes", "", "comma-separated blend modes: overlay, feather")
	f.Uint64Var(&opts.Seed, "seed", 0, "RANSAC seed (default from config)")
	f.BoolVar(&opts.OpenCV, "opencv-matcher", false, "match with OpenCV BFMatcher (needs the gocv build tag)")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func run(cmd *cobra.Command, args []string, opts options) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, opts); err != nil {
		return err
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	var images [3]*entity.Image
	for i, path := range args {
		if images[i], err = vision.LoadImage(path); err != nil {
			return err
		}
	}

	detector, err := vision.NewGoCVDetector(cfg.Stitch.Detector, cfg.Stitch.MaxFeatures)
	if err != nil {
		return err
	}
	var matcher port.DescriptorMatcher
	if opts.OpenCV {
		matcher = vision.NewGoCVMatcher()
	}

	c, err := container.New(cfg, storage.NewMemoryUserRepository(), storage.NewMemoryEstimateRepository(), detector, matcher, logger)
	if err != nil {
		return err
	}
	svc := c.StitchService

	const session = "cli"
	rep, err := svc.Analyze(ctx, session, images)
	if err != nil {
		return err
	}
	defer svc.Release(ctx, session)

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	modes, _ := cfg.Modes()
	total := len(cfg.Stitch.Thresholds) * len(modes)
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Compositing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(!opts.Quiet),
	)

	written := 0
	for _, thr := range cfg.Stitch.Thresholds {
		for _, mode := range modes {
			if err := ctx.Err(); err != nil {
				return err
			}
			pano, err := svc.Compose(ctx, session, thr, mode)
			rep.Panoramas = append(rep.Panoramas, pano)
			_ = bar.Add(1)
			if err != nil {
				continue
			}
			if err := writePanorama(opts.OutputDir, pano); err != nil {
				return err
			}
			written++
		}
	}
	_ = bar.Finish()

	// в отчёт идут сохранённые оценки: они упорядочены по паре и порогу
	if rep.Estimates, err = svc.Estimates(ctx, session); err != nil {
		return err
	}
	if err := writeReport(filepath.Join(opts.OutputDir, "report.csv"), rep); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d panoramas written to %s\n", written, total, opts.OutputDir)
	if written == 0 {
		return fmt.Errorf("no panorama could be assembled")
	}
	return nil
}

func applyFlags(cfg *config.Config, opts options) error {
	if opts.Detector != "" {
		cfg.Stitch.Detector = opts.Detector
	}
	if opts.Thresholds != "" {
		thresholds, err := config.ParseThresholds(opts.Thresholds)
		if err != nil {
			return fmt.Errorf("--thresholds: %w", err)
		}
		cfg.Stitch.Thresholds = thresholds
		// порог превью нужен только боту, CLI пишет все пороги
		if len(thresholds) > 0 && !slices.Contains(thresholds, cfg.Stitch.PreviewThreshold) {
			cfg.Stitch.PreviewThreshold = thresholds[0]
		}
	}
	if opts.Modes != "" {
		cfg.Stitch.BlendModes = config.SplitList(opts.Modes)
	}
	if opts.Seed != 0 {
		cfg.Stitch.Seed = opts.Seed
	}
	return cfg.Validate()
}

// PanoramaName имя файла панорамы: pano_thr<порог>_<режим>.png
func PanoramaName(p entity.Panorama) string {
	return fmt.Sprintf("pano_thr%g_%s.png", p.Threshold, p.Mode)
}

func writePanorama(dir string, p entity.Panorama) error {
	f, err := os.Create(filepath.Join(dir, PanoramaName(p)))
	if err != nil {
		return fmt.Errorf("create panorama file: %w", err)
	}
	if err := vision.WritePNG(f, p.Image); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeReport(path string, r *entity.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.WriteCSV(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
