package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pano-bot/internal/domain/entity"
	"pano-bot/internal/domain/port"
	"pano-bot/internal/logging"
	"pano-bot/internal/stitching"
)

// ErrNotAwaitingPhoto — фото пришло вне сценария сборки.
var ErrNotAwaitingPhoto = errors.New("user is not collecting photos")

// StitchOptions параметры прогона.
type StitchOptions struct {
	Thresholds       []float64
	Modes            []entity.BlendMode
	Seed             uint64
	Estimator        stitching.EstimatorConfig
	Planner          stitching.Planner
	FeatherSharpness float64
}

// StitchService прогоняет три кадра через детекцию, сопоставление,
// оценку преобразований и композицию.
type StitchService struct {
	users     *UserService
	detector  port.FeatureDetector
	matcher   port.DescriptorMatcher
	estimates port.EstimateRepository
	estimator *stitching.Estimator
	stitcher  *stitching.Stitcher
	opts      StitchOptions
	log       *slog.Logger

	mu       sync.RWMutex
	pending  map[int64][3]*entity.Image // кадры, собираемые в боте
	sessions map[string][3]*entity.Image
}

// PhotoProgress результат приёма очередного кадра.
type PhotoProgress struct {
	User   *entity.User
	Frames [3]*entity.Image
	Ready  bool // все три кадра получены
}

// NewStitchService создаёт сервис. Матчер оборачивается в CrossCheckAdapter.
func NewStitchService(users *UserService, detector port.FeatureDetector, matcher port.DescriptorMatcher,
	estimates port.EstimateRepository, opts StitchOptions, logger *slog.Logger) *StitchService {
	if logger == nil {
		logger = slog.Default()
	}
	if matcher == nil {
		matcher = stitching.NewBruteForceMatcher()
	}
	return &StitchService{
		users:     users,
		detector:  detector,
		matcher:   stitching.CrossCheckAdapter{Backend: matcher},
		estimates: estimates,
		estimator: stitching.NewEstimator(opts.Estimator),
		stitcher:  stitching.NewStitcher(opts.Planner, opts.FeatherSharpness, logger),
		opts:      opts,
		log:       logger,
		pending:   make(map[int64][3]*entity.Image),
		sessions:  make(map[string][3]*entity.Image),
	}
}

// Pairs возвращает соседние пары для n кадров: сопоставляются только соседи.
func Pairs(n int) []entity.Pair {
	pairs := make([]entity.Pair, 0, max(n-1, 0))
	for i := 0; i+1 < n; i++ {
		pairs = append(pairs, entity.Pair{From: i, To: i + 1})
	}
	return pairs
}

// Analyze находит особые точки, сопоставляет соседние кадры и оценивает
// преобразования при всех порогах. Оценки сохраняются под ключом session.
// Ошибка возвращается только для некорректного входа или отмены контекста:
// неудачи отдельных кадров и пар остаются в отчёте.
func (s *StitchService) Analyze(ctx context.Context, session string, images [3]*entity.Image) (*entity.Report, error) {
	if s.detector == nil {
		return nil, errors.New("detector is not configured")
	}
	for i, img := range images {
		if img.Empty() {
			return nil, fmt.Errorf("image %d is empty: %w", i, entity.ErrInvalidInput)
		}
	}

	// JPEG даёт RGB, PNG с прозрачностью RGBA: композиция требует одинаковых каналов
	channels := 0
	for _, img := range images {
		channels = max(channels, img.Channels)
	}
	for i, img := range images {
		conv, err := img.WithChannels(channels)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		images[i] = conv
	}

	s.mu.Lock()
	s.sessions[session] = images
	s.mu.Unlock()
	if err := s.estimates.Delete(ctx, session); err != nil {
		return nil, err
	}

	report := &entity.Report{Session: session, Detector: s.detector.Name()}

	features := s.detect(ctx, session, images[:], report)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pairs := Pairs(len(images))
	report.Matches = s.match(ctx, session, pairs, features, report.Features)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Estimates = s.estimate(ctx, session, report.Matches, features)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, est := range report.Estimates {
		if err := s.estimates.Save(ctx, session, est); err != nil {
			return nil, fmt.Errorf("save estimate %d-%d: %w", est.Pair.From, est.Pair.To, err)
		}
	}
	return report, nil
}

func (s *StitchService) detect(ctx context.Context, session string, images []*entity.Image, report *entity.Report) []entity.Features {
	features := make([]entity.Features, len(images))
	report.Features = make([]entity.FeatureStats, len(images))

	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func(i int, img *entity.Image) {
			defer wg.Done()
			start := time.Now()
			f, err := s.detector.Detect(ctx, img)
			if err == nil {
				err = f.Validate()
			}
			stats := entity.FeatureStats{Image: i, Duration: time.Since(start), Err: err}
			if err != nil {
				logging.LogStepError(s.log, session, "detect", stats.Duration, err, "image", i)
			} else {
				features[i] = f
				stats.Keypoints = len(f.Keypoints)
				logging.LogStepComplete(s.log, session, "detect", stats.Duration, "image", i, "keypoints", stats.Keypoints)
			}
			report.Features[i] = stats
		}(i, img)
	}
	wg.Wait()
	return features
}

func (s *StitchService) match(ctx context.Context, session string, pairs []entity.Pair, features []entity.Features, stats []entity.FeatureStats) []entity.MatchResult {
	results := make([]entity.MatchResult, len(pairs))

	var wg sync.WaitGroup
	for k, p := range pairs {
		results[k].Pair = p
		if err := ctx.Err(); err != nil {
			results[k].Err = err
			continue
		}
		if err := errors.Join(stats[p.From].Err, stats[p.To].Err); err != nil {
			results[k].Err = fmt.Errorf("features missing: %w", err)
			continue
		}
		wg.Add(1)
		go func(k int, p entity.Pair) {
			defer wg.Done()
			start := time.Now()
			matches, err := s.matcher.Match(features[p.From].Descriptors, features[p.To].Descriptors)
			res := entity.MatchResult{Pair: p, Duration: time.Since(start), Err: err}
			if err != nil {
				logging.LogStepError(s.log, session, "match", res.Duration, err, "from", p.From, "to", p.To)
			} else {
				res.Matches = matches
				res.MeanDistance = stitching.MeanDistance(matches)
				logging.LogStepComplete(s.log, session, "match", res.Duration,
					"from", p.From, "to", p.To, "matches", len(matches), "mean_distance", res.MeanDistance)
			}
			results[k] = res
		}(k, p)
	}
	wg.Wait()
	return results
}

func (s *StitchService) estimate(ctx context.Context, session string, matches []entity.MatchResult, features []entity.Features) []entity.PairEstimate {
	perPair := make([][]entity.PairEstimate, len(matches))

	var wg sync.WaitGroup
	for k, m := range matches {
		if m.Err != nil || ctx.Err() != nil {
			cause := m.Err
			if cause == nil {
				cause = ctx.Err()
			}
			for _, thr := range s.opts.Thresholds {
				perPair[k] = append(perPair[k], entity.PairEstimate{
					Pair:      m.Pair,
					Threshold: thr,
					Err:       fmt.Errorf("no matches: %v: %w", cause, entity.ErrInsufficientData),
				})
			}
			continue
		}
		wg.Add(1)
		go func(k int, m entity.MatchResult) {
			defer wg.Done()
			perPair[k] = s.estimator.EstimateThresholds(PairSeed(s.opts.Seed, m.Pair), m.Pair, m.Matches,
				features[m.Pair.From].Keypoints, features[m.Pair.To].Keypoints, s.opts.Thresholds)
		}(k, m)
	}
	wg.Wait()

	var out []entity.PairEstimate
	for _, ests := range perPair {
		for _, est := range ests {
			if est.Err != nil {
				logging.LogStepError(s.log, session, "estimate", est.Duration, est.Err,
					"from", est.Pair.From, "to", est.Pair.To, "threshold", est.Threshold)
			} else {
				logging.LogStepComplete(s.log, session, "estimate", est.Duration,
					"from", est.Pair.From, "to", est.Pair.To, "threshold", est.Threshold, "inliers", est.InlierCount)
			}
			out = append(out, est)
		}
	}
	return out
}

// PairSeed выводит зерно пары из общего зерна. Для всех порогов пары оно одно.
func PairSeed(seed uint64, p entity.Pair) uint64 {
	return seed*0x100000001b3 ^ uint64(p.From)<<32 ^ uint64(p.To)
}

// Compose собирает панораму сессии по сохранённым оценкам, без повторного сопоставления.
// Ошибка дублируется в Panorama.Err.
func (s *StitchService) Compose(ctx context.Context, session string, threshold float64, mode entity.BlendMode) (entity.Panorama, error) {
	pano := entity.Panorama{Threshold: threshold, Mode: mode}
	fail := func(err error) (entity.Panorama, error) {
		pano.Err = err
		logging.LogStepError(s.log, session, "compose", pano.Duration, err, "threshold", threshold, "mode", mode.String())
		return pano, err
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	s.mu.RLock()
	images, ok := s.sessions[session]
	s.mu.RUnlock()
	if !ok {
		return fail(fmt.Errorf("session %q not found: %w", session, entity.ErrInvalidInput))
	}

	var pairwise [2]entity.Homography
	for k, p := range Pairs(len(images)) {
		est, found, err := s.estimates.Get(ctx, session, p, threshold)
		if err != nil {
			return fail(err)
		}
		if !found || !est.OK() {
			return fail(fmt.Errorf("pair %d-%d has no transform at threshold %v: %w", p.From, p.To, threshold, entity.ErrInsufficientData))
		}
		pairwise[k] = est.H
	}

	start := time.Now()
	out, canvas, err := s.stitcher.Stitch(images, pairwise, mode)
	pano.Duration = time.Since(start)
	pano.Canvas = canvas
	if err != nil {
		return fail(err)
	}
	pano.Image = out
	logging.LogStepComplete(s.log, session, "compose", pano.Duration,
		"threshold", threshold, "mode", mode.String(), "width", canvas.Width, "height", canvas.Height)
	return pano, nil
}

// Estimates возвращает сохранённые оценки сессии, упорядоченные по паре и порогу.
func (s *StitchService) Estimates(ctx context.Context, session string) ([]entity.PairEstimate, error) {
	return s.estimates.List(ctx, session)
}

// Run выполняет Analyze и собирает панораму для каждого порога и режима.
// Неудачные панорамы остаются в отчёте со своей ошибкой.
func (s *StitchService) Run(ctx context.Context, session string, images [3]*entity.Image) (*entity.Report, error) {
	report, err := s.Analyze(ctx, session, images)
	if err != nil {
		return nil, err
	}
	for _, thr := range s.opts.Thresholds {
		for _, mode := range s.opts.Modes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			pano, _ := s.Compose(ctx, session, thr, mode)
			report.Panoramas = append(report.Panoramas, pano)
		}
	}
	return report, nil
}

// Release удаляет кадры и оценки сессии.
func (s *StitchService) Release(ctx context.Context, session string) error {
	s.mu.Lock()
	delete(s.sessions, session)
	s.mu.Unlock()
	return s.estimates.Delete(ctx, session)
}

// BeginStitch начинает сбор трёх кадров.
func (s *StitchService) BeginStitch(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	s.mu.Lock()
	delete(s.pending, userID)
	s.mu.Unlock()
	return s.users.BeginStitch(ctx, userID, chatID)
}

// Cancel прерывает сбор кадров.
func (s *StitchService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	s.mu.Lock()
	delete(s.pending, userID)
	s.mu.Unlock()
	return s.users.Cancel(ctx, userID, chatID)
}

// AcceptPhoto сохраняет очередной кадр (левый, центральный, правый)
// и переводит пользователя дальше по сценарию.
func (s *StitchService) AcceptPhoto(ctx context.Context, userID, chatID int64, img *entity.Image) (*PhotoProgress, error) {
	user, err := s.users.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	idx := user.PhotoIndex()
	if idx < 0 {
		return nil, ErrNotAwaitingPhoto
	}
	if img.Empty() {
		return nil, fmt.Errorf("photo is empty: %w", entity.ErrInvalidInput)
	}

	s.mu.Lock()
	frames := s.pending[userID]
	frames[idx] = img
	next := user.NextPhotoState()
	if next == entity.StateProcessing {
		delete(s.pending, userID)
	} else {
		s.pending[userID] = frames
	}
	s.mu.Unlock()

	user, err = s.users.SetState(ctx, userID, chatID, next)
	if err != nil {
		return nil, err
	}
	return &PhotoProgress{User: user, Frames: frames, Ready: next == entity.StateProcessing}, nil
}

// Finish возвращает пользователя в главное меню после сборки.
func (s *StitchService) Finish(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.users.SetState(ctx, userID, chatID, entity.StateMainMenu)
}
