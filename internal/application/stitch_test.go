package app

import (
	"context"
	"errors"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/require"

	"pano-bot/internal/domain/entity"
	"pano-bot/internal/infrastructure/storage"
	"pano-bot/internal/stitching"
)

// fakeDetector выдаёт одни и те же мировые точки, сдвинутые на 80 пикселей
// между соседними кадрами. Дескриптор точки уникален, поэтому все пары совпадают.
type fakeDetector struct {
	index map[*entity.Image]int
	fail  map[int]error
}

func (d *fakeDetector) Name() string { return "FAKE" }

func (d *fakeDetector) Detect(ctx context.Context, img *entity.Image) (entity.Features, error) {
	i := d.index[img]
	if err := d.fail[i]; err != nil {
		return entity.Features{}, err
	}
	f := entity.Features{Descriptors: entity.Descriptors{Kind: entity.DescriptorBinary}}
	shift := float64(80 * (1 - i))
	for gx := 0; gx < 6; gx++ {
		for gy := 0; gy < 5; gy++ {
			// координаты в системе центрального кадра, с лёгким нерегулярным сдвигом
			c := r2.Point{X: 5 + float64(gx*3) + float64(gy%2), Y: 8 + float64(gy*18) + float64(gx%3)}
			f.Keypoints = append(f.Keypoints, entity.Keypoint{Pt: r2.Point{X: c.X + shift, Y: c.Y}})
			k := byte(gx*5 + gy)
			f.Descriptors.Binary = append(f.Descriptors.Binary, []byte{k, ^k, k * 37, 0x5a})
		}
	}
	return f, nil
}

func solid(t *testing.T, c color.NRGBA) *entity.Image {
	t.Helper()
	img, err := entity.NewImage(100, 100, 3)
	require.NoError(t, err)
	img.Fill(c)
	return img
}

func newTestService(t *testing.T, fail map[int]error) (*StitchService, [3]*entity.Image, *storage.MemoryEstimateRepository) {
	t.Helper()
	images := [3]*entity.Image{
		solid(t, color.NRGBA{R: 255, A: 255}),
		solid(t, color.NRGBA{G: 255, A: 255}),
		solid(t, color.NRGBA{B: 255, A: 255}),
	}
	det := &fakeDetector{index: map[*entity.Image]int{images[0]: 0, images[1]: 1, images[2]: 2}, fail: fail}
	repo := storage.NewMemoryEstimateRepository()
	opts := StitchOptions{
		Thresholds:       []float64{1, 5, 15},
		Modes:            []entity.BlendMode{entity.BlendOverlay, entity.BlendFeather},
		Seed:             1,
		Estimator:        stitching.DefaultEstimatorConfig(),
		Planner:          stitching.NewPlanner(0, 0),
		FeatherSharpness: stitching.DefaultFeatherSharpness,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewStitchService(NewUserService(storage.NewMemoryUserRepository()), det, nil, repo, opts, logger)
	return svc, images, repo
}

func TestStitchService_Run(t *testing.T) {
	svc, images, repo := newTestService(t, nil)
	ctx := context.Background()

	report, err := svc.Run(ctx, "s1", images)
	require.NoError(t, err)
	require.Equal(t, "FAKE", report.Detector)

	require.Len(t, report.Features, 3)
	for _, f := range report.Features {
		require.NoError(t, f.Err)
		require.Equal(t, 30, f.Keypoints)
	}

	require.Len(t, report.Matches, 2)
	for _, m := range report.Matches {
		require.NoError(t, m.Err)
		require.Len(t, m.Matches, 30)
		require.Zero(t, m.MeanDistance)
	}

	require.Len(t, report.Estimates, 6)
	for _, est := range report.Estimates {
		require.NoError(t, est.Err)
		require.Equal(t, 30, est.InlierCount)
		p, ok := est.H.Apply(r2.Point{X: 50, Y: 50})
		require.True(t, ok)
		require.InDelta(t, -30, p.X, 1e-6)
		require.InDelta(t, 50, p.Y, 1e-6)
	}
	stored, err := repo.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, stored, 6)

	require.Len(t, report.Panoramas, 6)
	for _, pano := range report.Panoramas {
		require.NoError(t, pano.Err)
		require.Equal(t, 260, pano.Image.Width)
		require.Equal(t, 100, pano.Image.Height)
		if pano.Mode == entity.BlendOverlay {
			o := pano.Image.Offset(85, 50)
			require.Equal(t, []uint8{0, 255, 0}, pano.Image.Pix[o:o+3])
		}
	}
}

func TestStitchService_ComposeReusesEstimates(t *testing.T) {
	svc, images, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, "s2", images)
	require.NoError(t, err)

	pano, err := svc.Compose(ctx, "s2", 5, entity.BlendFeather)
	require.NoError(t, err)
	require.Equal(t, 5.0, pano.Threshold)
	require.Equal(t, entity.BlendFeather, pano.Mode)
	require.Equal(t, 260, pano.Canvas.Width)

	// порога не было в прогоне
	pano, err = svc.Compose(ctx, "s2", 7, entity.BlendOverlay)
	require.True(t, errors.Is(err, entity.ErrInsufficientData))
	require.ErrorIs(t, pano.Err, entity.ErrInsufficientData)
	require.Nil(t, pano.Image)

	_, err = svc.Compose(ctx, "missing", 5, entity.BlendOverlay)
	require.True(t, errors.Is(err, entity.ErrInvalidInput))

	require.NoError(t, svc.Release(ctx, "s2"))
	_, err = svc.Compose(ctx, "s2", 5, entity.BlendOverlay)
	require.Error(t, err)
}

func TestStitchService_FailuresAreIsolated(t *testing.T) {
	svc, images, _ := newTestService(t, map[int]error{2: errors.New("detector crashed")})

	report, err := svc.Run(context.Background(), "s3", images)
	require.NoError(t, err)
	require.Error(t, report.Features[2].Err)

	require.NoError(t, report.Matches[0].Err)
	require.Error(t, report.Matches[1].Err)

	for _, est := range report.Estimates {
		if est.Pair.From == 0 {
			require.NoError(t, est.Err)
		} else {
			require.ErrorIs(t, est.Err, entity.ErrInsufficientData)
		}
	}
	require.Len(t, report.Panoramas, 6)
	for _, pano := range report.Panoramas {
		require.ErrorIs(t, pano.Err, entity.ErrInsufficientData)
	}
}

func TestStitchService_MixedChannels(t *testing.T) {
	svc, images, _ := newTestService(t, nil)
	rgba, err := images[2].WithChannels(4)
	require.NoError(t, err)
	svc.detector.(*fakeDetector).index[rgba] = 2
	images[2] = rgba

	report, err := svc.Run(context.Background(), "mixed", images)
	require.NoError(t, err)
	require.Len(t, report.Panoramas, 6)
	for _, pano := range report.Panoramas {
		require.NoError(t, pano.Err)
		require.Equal(t, 4, pano.Image.Channels)
	}
}

func TestStitchService_Estimates(t *testing.T) {
	svc, images, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, "sorted", images)
	require.NoError(t, err)

	list, err := svc.Estimates(ctx, "sorted")
	require.NoError(t, err)
	require.Len(t, list, 6)
	require.Equal(t, entity.Pair{From: 0, To: 1}, list[0].Pair)
	require.Equal(t, 1.0, list[0].Threshold)
	require.Equal(t, entity.Pair{From: 1, To: 2}, list[5].Pair)
	require.Equal(t, 15.0, list[5].Threshold)
}

func TestStitchService_InvalidInput(t *testing.T) {
	svc, images, _ := newTestService(t, nil)
	images[1] = nil

	_, err := svc.Run(context.Background(), "s4", images)
	require.True(t, errors.Is(err, entity.ErrInvalidInput))
}

func TestStitchService_Cancelled(t *testing.T) {
	svc, images, _ := newTestService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, "s5", images)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStitchService_AcceptPhoto(t *testing.T) {
	svc, images, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.AcceptPhoto(ctx, 1, 10, images[0])
	require.ErrorIs(t, err, ErrNotAwaitingPhoto)

	user, err := svc.BeginStitch(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingLeft, user.State)

	progress, err := svc.AcceptPhoto(ctx, 1, 10, images[0])
	require.NoError(t, err)
	require.False(t, progress.Ready)
	require.Equal(t, entity.StateAwaitingCenter, progress.User.State)

	progress, err = svc.AcceptPhoto(ctx, 1, 10, images[1])
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingRight, progress.User.State)

	progress, err = svc.AcceptPhoto(ctx, 1, 10, images[2])
	require.NoError(t, err)
	require.True(t, progress.Ready)
	require.Equal(t, entity.StateProcessing, progress.User.State)
	require.Equal(t, images, progress.Frames)

	user, err = svc.Finish(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestStitchService_CancelDropsFrames(t *testing.T) {
	svc, images, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.BeginStitch(ctx, 1, 10)
	require.NoError(t, err)
	_, err = svc.AcceptPhoto(ctx, 1, 10, images[0])
	require.NoError(t, err)

	user, err := svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	_, err = svc.BeginStitch(ctx, 1, 10)
	require.NoError(t, err)
	progress, err := svc.AcceptPhoto(ctx, 1, 10, images[2])
	require.NoError(t, err)
	require.Nil(t, progress.Frames[1])
	require.Same(t, images[2], progress.Frames[0])
}

func TestPairs(t *testing.T) {
	require.Equal(t, []entity.Pair{{From: 0, To: 1}, {From: 1, To: 2}}, Pairs(3))
	require.Empty(t, Pairs(1))
	require.NotEqual(t, PairSeed(1, entity.Pair{From: 0, To: 1}), PairSeed(1, entity.Pair{From: 1, To: 2}))
}
