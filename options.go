package splatrt

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/splat3d/splatrt/render"
	"github.com/splat3d/splatrt/sort"
)

// Options holds every renderer knob. The zero value is not usable; start
// from DefaultOptions and override.
type Options struct {
	// SortStrategy is one of "auto", "counting", "binned", "stable".
	SortStrategy string `toml:"sort_strategy"`
	// InteractionFallback downgrades to the counting sort while the user
	// is interacting. Ignored for non-auto strategies.
	InteractionFallback bool `toml:"interaction_fallback"`

	// PositionEpsilon and AngleEpsilon bound camera movement below which
	// the previous frame's sort order is reused. Angle in radians.
	PositionEpsilon float32 `toml:"position_epsilon"`
	AngleEpsilon    float32 `toml:"angle_epsilon"`

	// InkThreshold is the base contribution cutoff for opacity-aware
	// culling; zero disables it. DepthReference is the distance at which
	// the depth-adjusted threshold equals InkThreshold.
	InkThreshold   float32 `toml:"ink_threshold"`
	DepthReference float32 `toml:"depth_reference"`

	// SHPerSplat evaluates spherical harmonics per splat rather than per
	// palette entry. SHSpecialized selects the degree-specialized kernels.
	SHPerSplat    bool `toml:"sh_per_splat"`
	SHSpecialized bool `toml:"sh_specialized"`
	// PaletteCapacity bounds the dedup table in palette mode; overflow
	// entries fall back to per-splat evaluation.
	PaletteCapacity int `toml:"palette_capacity"`

	// Dithered switches to order-independent stochastic compositing.
	Dithered bool `toml:"dithered"`

	// FramesInFlight is the scheduler's slot count N.
	FramesInFlight int `toml:"frames_in_flight"`
}

// DefaultOptions mirrors the defaults of the original pipeline: automatic
// strategy selection, palette SH with specialization, sorted alpha
// compositing, three frames in flight.
func DefaultOptions() Options {
	return Options{
		SortStrategy:        sort.StrategyAuto,
		InteractionFallback: true,
		PositionEpsilon:     0.01,
		AngleEpsilon:        0.005,
		InkThreshold:        0,
		DepthReference:      100,
		SHPerSplat:          false,
		SHSpecialized:       true,
		PaletteCapacity:     64 * 1024,
		Dithered:            false,
		FramesInFlight:      3,
	}
}

// Validate rejects option combinations the renderer cannot honor.
func (o Options) Validate() error {
	switch o.SortStrategy {
	case sort.StrategyAuto, sort.StrategyCounting, sort.StrategyBinned, sort.StrategyStable:
	default:
		return fmt.Errorf("splatrt: unknown sort strategy %q", o.SortStrategy)
	}
	if o.FramesInFlight < 1 {
		return fmt.Errorf("splatrt: frames_in_flight must be >= 1, got %d", o.FramesInFlight)
	}
	if o.PositionEpsilon < 0 || o.AngleEpsilon < 0 {
		return fmt.Errorf("splatrt: camera epsilons must be non-negative")
	}
	if o.InkThreshold < 0 {
		return fmt.Errorf("splatrt: ink_threshold must be non-negative, got %v", o.InkThreshold)
	}
	if o.InkThreshold > 0 && o.DepthReference <= 0 {
		return fmt.Errorf("splatrt: depth_reference must be positive when ink culling is on")
	}
	if !o.SHPerSplat && o.PaletteCapacity < 1 {
		return fmt.Errorf("splatrt: palette_capacity must be >= 1 in palette mode, got %d", o.PaletteCapacity)
	}
	return nil
}

// LoadOptions reads a TOML options file over the defaults.
func LoadOptions(path string) (Options, error) {
	o := DefaultOptions()
	if _, err := toml.DecodeFile(path, &o); err != nil {
		return Options{}, fmt.Errorf("splatrt: decode options %s: %w", path, err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

func (o Options) colorMode() render.ColorMode {
	if o.SHPerSplat {
		return render.ColorPerSplat
	}
	return render.ColorPerPalette
}

func (o Options) compositeMode() render.CompositeMode {
	if o.Dithered {
		return render.CompositeDithered
	}
	return render.CompositeSorted
}

func (o Options) cull() render.CullConfig {
	return render.CullConfig{InkThreshold: o.InkThreshold, DepthReference: o.DepthReference}
}
