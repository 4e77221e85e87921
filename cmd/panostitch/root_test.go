package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pano-bot/config"
	"pano-bot/internal/domain/entity"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, applyFlags(cfg, options{Detector: "akaze", Thresholds: "2,8", Modes: "feather", Seed: 7}))
	require.Equal(t, "akaze", cfg.Stitch.Detector)
	require.Equal(t, []float64{2, 8}, cfg.Stitch.Thresholds)
	require.Equal(t, 2.0, cfg.Stitch.PreviewThreshold)
	require.Equal(t, []string{"feather"}, cfg.Stitch.BlendModes)
	require.Equal(t, uint64(7), cfg.Stitch.Seed)

	require.Error(t, applyFlags(config.Default(), options{Thresholds: "1,x"}))
	require.Error(t, applyFlags(config.Default(), options{Modes: "multiband"}))
}

func TestPanoramaName(t *testing.T) {
	require.Equal(t, "pano_thr5_feather.png", PanoramaName(entity.Panorama{Threshold: 5, Mode: entity.BlendFeather}))
	require.Equal(t, "pano_thr1.5_overlay.png", PanoramaName(entity.Panorama{Threshold: 1.5, Mode: entity.BlendOverlay}))
}

func TestRootCmd_FlatImagesProduceReportOnly(t *testing.T) {
	t.Setenv("PANO_CONFIG", "")
	dir := t.TempDir()

	var args []string
	for _, name := range []string{"left.png", "center.png", "right.png"} {
		img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
		for i := range img.Pix {
			img.Pix[i] = 200
		}
		img.SetNRGBA(0, 0, color.NRGBA{A: 255})
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
		args = append(args, path)
	}

	out := filepath.Join(dir, "out")
	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "-o", out, "-q"))

	// на однотонных кадрах нет особых точек: панорам нет, отчёт есть
	err := cmd.Execute()
	require.Error(t, err)
	require.FileExists(t, filepath.Join(out, "report.csv"))
	require.Contains(t, stdout.String(), "0 of 6 panoramas")
}

func TestRootCmd_Args(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"only-one.png"})
	require.Error(t, cmd.Execute())
}
