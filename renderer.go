// Package splatrt renders 3D Gaussian splat scenes: an in-memory splat
// store, screen-space projection with opacity-aware culling, back-to-front
// ordering with interchangeable sort strategies, spherical-harmonics color
// resolution, and alpha or dithered compositing, with a bounded number of
// frames in flight.
package splatrt

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/splat3d/splatrt/core"
	"github.com/splat3d/splatrt/render"
	"github.com/splat3d/splatrt/sort"
	"github.com/splat3d/splatrt/splat"
)

// MaxViews is the number of simultaneous views a frame may render
// (stereo pairs).
const MaxViews = 2

// Renderer is the CPU pipeline facade. One Renderer owns one Store; all
// methods are safe for concurrent use, with Render calls from multiple
// goroutines bounded by the frame scheduler.
type Renderer struct {
	opts   Options
	log    Logger
	store  *splat.Store
	sched  *render.Scheduler
	proj   render.Projector
	colors *render.ColorEvaluator
	comp   render.Compositor

	// frameMu serializes frame encoding and store mutation: the engines'
	// cached orders and the color evaluator's palette are single-writer
	// state, and a Load must never swap the store's arrays while a frame
	// reads them. The scheduler still bounds how many frames may be
	// queued at once.
	frameMu sync.Mutex

	mu          sync.Mutex
	engines     [MaxViews]*sort.Engine
	engineName  [MaxViews]string
	interacting bool
	closed      bool
}

// New builds a renderer from validated options. logger may be nil.
func New(opts Options, logger Logger) (*Renderer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	sched, err := render.NewScheduler(opts.FramesInFlight)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		opts:   opts,
		log:    logger,
		store:  splat.NewStore(),
		sched:  sched,
		colors: render.NewColorEvaluator(opts.colorMode(), opts.SHSpecialized, opts.PaletteCapacity),
		comp:   render.Compositor{Mode: opts.compositeMode()},
	}, nil
}

// Store exposes the renderer's splat store for inspection. Mutate it only
// through Load and Add.
func (r *Renderer) Store() *splat.Store { return r.store }

// Load replaces the resident splat set. It waits for all in-flight frames
// to finish so no frame observes a half-swapped store. Splats with
// malformed SH layouts degrade to their flat color and are logged.
func (r *Renderer) Load(ctx context.Context, splats []splat.Splat) (splat.ModelID, error) {
	return r.update(ctx, splats, r.store.Load)
}

// Add appends a model to the resident set under the same serialization as
// Load.
func (r *Renderer) Add(ctx context.Context, splats []splat.Splat) (splat.ModelID, error) {
	return r.update(ctx, splats, r.store.Add)
}

func (r *Renderer) update(ctx context.Context, splats []splat.Splat, op func([]splat.Splat) (splat.ModelID, error)) (splat.ModelID, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	r.mu.Unlock()

	for _, le := range splat.Sanitize(splats) {
		r.log.Warnf("splat %d: %v; using flat color", le.Index, le)
	}
	if err := r.sched.Drain(ctx); err != nil {
		return "", fmt.Errorf("splatrt: waiting for in-flight frames: %w", err)
	}

	r.frameMu.Lock()
	id, err := op(splats)
	if err == nil {
		r.mu.Lock()
		for _, e := range r.engines {
			if e != nil {
				e.Invalidate()
			}
		}
		r.mu.Unlock()
	}
	r.frameMu.Unlock()
	if err != nil {
		return "", err
	}
	r.log.Infof("model %s resident, %d splats total", id, r.store.Len())
	return id, nil
}

// SetInteracting marks the start or end of user interaction. While
// interacting, engines may downgrade to the cheap counting sort; the first
// frame after interaction ends re-sorts at full precision.
func (r *Renderer) SetInteracting(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interacting = active
	for _, e := range r.engines {
		if e != nil {
			e.SetInteracting(active)
		}
	}
}

// Render draws one frame: each view into the target of the same index.
// It blocks while all scheduler slots are in flight. A transient failure
// drops the frame and returns a *FrameError; the renderer stays usable.
func (r *Renderer) Render(ctx context.Context, views []core.View, targets []*render.Target) error {
	if len(views) == 0 {
		return ErrNoViews
	}
	if len(views) > MaxViews {
		return ErrTooManyViews
	}
	if len(targets) != len(views) {
		return fmt.Errorf("splatrt: %d views but %d targets", len(views), len(targets))
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.mu.Unlock()

	slot, err := r.sched.Acquire(ctx)
	if err != nil {
		return &FrameError{Stage: "schedule", Err: err}
	}
	defer r.sched.Release(slot)

	r.frameMu.Lock()
	defer r.frameMu.Unlock()

	gen := r.store.Generation()
	for vi, view := range views {
		n := r.proj.Project(r.store, view, r.opts.cull(), &slot.Frame)
		if n == 0 {
			targets[vi].Clear(clearColor)
			continue
		}
		r.colors.Evaluate(r.store, view, &slot.Frame)

		engine := r.engine(vi, n)
		order := slot.Frame.MaskOrder(
			engine.Order(slot.Frame.Visible, slot.Frame.Depths, view, gen, view.Near, view.Far))

		targets[vi].Clear(clearColor)
		r.comp.Composite(targets[vi], order, slot.Frame.Projected)
		if r.log.DebugEnabled() {
			r.log.Debugf("view %d: %d/%d splats via %s", vi, n, r.store.Len(), engine.Strategy().Name())
		}
	}
	return nil
}

// engine returns the sort engine for a view index, rebuilding it when the
// auto strategy resolves differently for the current splat count.
func (r *Renderer) engine(vi, visible int) *sort.Engine {
	name := r.opts.SortStrategy
	var primary sort.Strategy
	if name == sort.StrategyAuto {
		primary = sort.Auto(visible)
		name = primary.Name()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engines[vi] != nil && r.engineName[vi] == name {
		return r.engines[vi]
	}
	if primary == nil {
		primary, _ = sort.ByName(name)
	}
	var fallback sort.Strategy
	if r.opts.InteractionFallback {
		fallback = sort.NewCounting(sort.DefaultBins)
	}
	e := sort.NewEngine(primary, fallback, r.opts.PositionEpsilon, r.opts.AngleEpsilon)
	e.SetInteracting(r.interacting)
	r.engines[vi] = e
	r.engineName[vi] = name
	return e
}

// Close waits for in-flight frames and rejects all further operations.
func (r *Renderer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	return r.sched.Drain(context.Background())
}

var clearColor = mgl32.Vec4{0, 0, 0, 0}
