package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/phishguard/internal/model"
	"golang.org/x/sync/singleflight"
)

// Result is the outcome of Score.
type Result struct {
	// Score is in [0, 1]; 0 when Degraded.
	Score float64
	// Degraded is true when the model could not produce a score.
	Degraded bool
	// Err is the cause when Degraded.
	Err error
}

// DefaultLoadTimeout bounds one model load.
const DefaultLoadTimeout = 30 * time.Second

// Adapter owns a lazily loaded Scorer.
//
// The model is shared by every analysis in the process. It is loaded on the
// first call to Predict or Score, and concurrent first calls share one load.
// A failed load is not remembered: the next call tries again, so a model
// file that appears later is picked up without a restart.
//
// Design decision: the load is detached from the context of the caller that
// triggered it. A request that is abandoned while the model loads must not
// fail the other requests waiting for the same model; the load is bounded by
// its own timeout instead.
type Adapter struct {
	loader      Loader
	logger      *slog.Logger
	loadTimeout time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	model Scorer

	loads atomic.Int64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithLoadTimeout bounds one model load. Values below 1 select
// DefaultLoadTimeout.
func WithLoadTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		a.loadTimeout = d
	}
}

// New creates an Adapter. The model is not loaded until first use.
func New(loader Loader, opts ...Option) *Adapter {
	a := &Adapter{
		loader:      loader,
		logger:      slog.Default(),
		loadTimeout: DefaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.loadTimeout <= 0 {
		a.loadTimeout = DefaultLoadTimeout
	}
	return a
}

// Predict scores features.
//
// It returns InvalidInputError when the vector width does not match the
// model and ClassifierUnavailableError when the model cannot be loaded or
// fails during inference.
func (a *Adapter) Predict(ctx context.Context, features model.FeatureVector) (float64, error) {
	if len(features) == 0 {
		return 0, &model.InvalidInputError{Reason: model.NoFeaturesMessage}
	}

	scorer, err := a.ensureLoaded(ctx)
	if err != nil {
		return 0, &model.ClassifierUnavailableError{Err: err}
	}
	if len(features) != scorer.Width() {
		return 0, &model.InvalidInputError{
			Reason: fmt.Sprintf("feature vector has %d entries, classifier expects %d", len(features), scorer.Width()),
		}
	}

	score, err := safeScore(scorer, features)
	if err != nil {
		return 0, &model.ClassifierUnavailableError{Err: err}
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, &model.ClassifierUnavailableError{Err: fmt.Errorf("model returned %v", score)}
	}
	return math.Max(0, math.Min(1, score)), nil
}

// Score is Predict with failures converted to a neutral, degraded result.
func (a *Adapter) Score(ctx context.Context, features model.FeatureVector) Result {
	score, err := a.Predict(ctx, features)
	if err != nil {
		a.logger.Warn("classifier degraded", "error", err)
		return Result{Degraded: true, Err: err}
	}
	return Result{Score: score}
}

func safeScore(s Scorer, features []float64) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return s.Score(features)
}

// Width returns the input width of the model, loading it if needed.
func (a *Adapter) Width(ctx context.Context) (int, error) {
	scorer, err := a.ensureLoaded(ctx)
	if err != nil {
		return 0, &model.ClassifierUnavailableError{Err: err}
	}
	return scorer.Width(), nil
}

// ensureLoaded returns the cached model or loads it. Concurrent callers
// share one load, which runs detached from ctx; a caller whose ctx ends stops
// waiting without cancelling the load for the others.
func (a *Adapter) ensureLoaded(ctx context.Context) (Scorer, error) {
	a.mu.RLock()
	scorer := a.model
	a.mu.RUnlock()
	if scorer != nil {
		return scorer, nil
	}
	if a.loader == nil {
		return nil, fmt.Errorf("no model loader configured")
	}

	ch := a.group.DoChan("model", func() (any, error) {
		a.mu.RLock()
		loaded := a.model
		a.mu.RUnlock()
		if loaded != nil {
			return loaded, nil
		}

		a.loads.Add(1)
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.loadTimeout)
		defer cancel()
		s, err := a.loader.Load(loadCtx)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		if s == nil || s.Width() <= 0 {
			return nil, fmt.Errorf("load model: %w", ErrEmptyModel)
		}

		a.mu.Lock()
		a.model = s
		a.mu.Unlock()
		a.logger.Debug("classifier model loaded", "width", s.Width())
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		s, _ := res.Val.(Scorer)
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Loaded reports whether a model is cached.
func (a *Adapter) Loaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model != nil
}

// LoadAttempts returns how many times the loader was invoked.
func (a *Adapter) LoadAttempts() int64 {
	return a.loads.Load()
}

// Reset drops the cached model; the next call loads it again.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.model = nil
}
