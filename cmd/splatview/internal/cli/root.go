// Package cli implements the splatview command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	splatrt "github.com/splat3d/splatrt"
	"github.com/splat3d/splatrt/sort"
	"github.com/splat3d/splatrt/splat"
)

// optionFlags mirrors every splatrt.Options knob as a CLI flag. Only
// flags the user actually set override the config file.
type optionFlags struct {
	configPath string

	sortStrategy        string
	interactionFallback bool
	positionEpsilon     float32
	angleEpsilon        float32
	inkThreshold        float32
	depthReference      float32
	shPerSplat          bool
	shSpecialized       bool
	paletteCapacity     int
	dithered            bool
	framesInFlight      int
}

func (f *optionFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "TOML options file")
	fl.StringVar(&f.sortStrategy, "sort", sort.StrategyAuto, "sort strategy: auto, counting, binned, stable")
	fl.BoolVar(&f.interactionFallback, "interaction-fallback", true, "downgrade to counting sort while interacting")
	fl.Float32Var(&f.positionEpsilon, "position-epsilon", 0.01, "camera movement below which the sort order is reused")
	fl.Float32Var(&f.angleEpsilon, "angle-epsilon", 0.005, "camera rotation (radians) below which the sort order is reused")
	fl.Float32Var(&f.inkThreshold, "ink-threshold", 0, "base contribution cutoff for opacity-aware culling (0 = off)")
	fl.Float32Var(&f.depthReference, "depth-reference", 100, "distance where the culling threshold reaches its base value")
	fl.BoolVar(&f.shPerSplat, "sh-per-splat", false, "evaluate SH per splat instead of per palette entry")
	fl.BoolVar(&f.shSpecialized, "sh-specialized", true, "use degree-specialized SH kernels")
	fl.IntVar(&f.paletteCapacity, "palette-capacity", 64*1024, "max unique SH sets tracked in palette mode")
	fl.BoolVar(&f.dithered, "dithered", false, "order-independent dithered compositing")
	fl.IntVar(&f.framesInFlight, "frames-in-flight", 3, "frame scheduler slot count")
}

func (f *optionFlags) options(cmd *cobra.Command) (splatrt.Options, error) {
	opts := splatrt.DefaultOptions()
	if f.configPath != "" {
		var err error
		if opts, err = splatrt.LoadOptions(f.configPath); err != nil {
			return splatrt.Options{}, err
		}
	}
	set := cmd.Flags().Changed
	if set("sort") {
		opts.SortStrategy = f.sortStrategy
	}
	if set("interaction-fallback") {
		opts.InteractionFallback = f.interactionFallback
	}
	if set("position-epsilon") {
		opts.PositionEpsilon = f.positionEpsilon
	}
	if set("angle-epsilon") {
		opts.AngleEpsilon = f.angleEpsilon
	}
	if set("ink-threshold") {
		opts.InkThreshold = f.inkThreshold
	}
	if set("depth-reference") {
		opts.DepthReference = f.depthReference
	}
	if set("sh-per-splat") {
		opts.SHPerSplat = f.shPerSplat
	}
	if set("sh-specialized") {
		opts.SHSpecialized = f.shSpecialized
	}
	if set("palette-capacity") {
		opts.PaletteCapacity = f.paletteCapacity
	}
	if set("dithered") {
		opts.Dithered = f.dithered
	}
	if set("frames-in-flight") {
		opts.FramesInFlight = f.framesInFlight
	}
	return opts, opts.Validate()
}

// cloudFlags selects which procedural cloud to generate.
type cloudFlags struct {
	kind  string
	count int
	seed  int64
}

func (f *cloudFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.kind, "cloud", "shell", "procedural cloud: shell, box, spiral")
	fl.IntVar(&f.count, "count", 100_000, "number of splats")
	fl.Int64Var(&f.seed, "seed", 1, "generator seed")
}

func (f *cloudFlags) generate() ([]splat.Splat, error) {
	switch f.kind {
	case "shell":
		return splat.ShellCloud(f.count, 1.5, f.seed), nil
	case "box":
		return splat.BoxCloud(f.count, [3]float32{2, 2, 2}, f.seed), nil
	case "spiral":
		return splat.SpiralCloud(f.count, 3, f.seed), nil
	default:
		return nil, fmt.Errorf("unknown cloud %q", f.kind)
	}
}

// Execute runs the splatview CLI.
func Execute() error {
	var verbose bool

	root := &cobra.Command{
		Use:          "splatview",
		Short:        "splatview renders 3D Gaussian splat clouds",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	logger := func() splatrt.Logger {
		return splatrt.NewDefaultLogger("splatview", verbose)
	}
	root.AddCommand(newViewCmd(logger))
	root.AddCommand(newOffscreenCmd(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}
