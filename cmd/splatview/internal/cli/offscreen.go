package cli

import (
	"fmt"
	"image/png"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"

	splatrt "github.com/splat3d/splatrt"
	"github.com/splat3d/splatrt/core"
	"github.com/splat3d/splatrt/render"
)

func newOffscreenCmd(logger func() splatrt.Logger) *cobra.Command {
	var (
		opts   optionFlags
		cloud  cloudFlags
		width  int
		height int
		out    string
		orbit  float32
	)

	cmd := &cobra.Command{
		Use:   "offscreen",
		Short: "Render a procedural cloud through the CPU pipeline to a PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := opts.options(cmd)
			if err != nil {
				return err
			}
			splats, err := cloud.generate()
			if err != nil {
				return err
			}

			r, err := splatrt.New(options, logger())
			if err != nil {
				return err
			}
			defer r.Close()

			ctx := cmd.Context()
			if _, err := r.Load(ctx, splats); err != nil {
				return err
			}

			view := core.Perspective(
				mgl32.Vec3{0, 0, orbit}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0},
				60, uint32(width), uint32(height), 0.1, 1000,
			)
			target := render.NewTarget(width, height)
			if err := r.Render(ctx, []core.View{view}, []*render.Target{target}); err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			if err := png.Encode(f, target.Image()); err != nil {
				return fmt.Errorf("encode png: %w", err)
			}
			return nil
		},
	}
	opts.register(cmd)
	cloud.register(cmd)
	cmd.Flags().IntVar(&width, "width", 1280, "image width")
	cmd.Flags().IntVar(&height, "height", 720, "image height")
	cmd.Flags().StringVar(&out, "out", "splat.png", "output PNG path")
	cmd.Flags().Float32Var(&orbit, "distance", 5, "camera distance from the origin")
	return cmd
}
