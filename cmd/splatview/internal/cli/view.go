package cli

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"

	splatrt "github.com/splat3d/splatrt"
	"github.com/splat3d/splatrt/app"
	"github.com/splat3d/splatrt/splat"
)

func init() {
	// glfw event handling must run on the main OS thread.
	runtime.LockOSThread()
}

func newViewCmd(logger func() splatrt.Logger) *cobra.Command {
	var (
		opts   optionFlags
		cloud  cloudFlags
		width  int
		height int
		font   string
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open a window and render a procedural cloud on the GPU",
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := opts.options(cmd)
			if err != nil {
				return err
			}
			splats, err := cloud.generate()
			if err != nil {
				return err
			}
			log := logger()

			if err := glfw.Init(); err != nil {
				return fmt.Errorf("glfw init: %w", err)
			}
			defer glfw.Terminate()

			store := splat.NewStore()
			for _, le := range splat.Sanitize(splats) {
				log.Warnf("splat %d: %v; using flat color", le.Index, le)
			}
			if _, err := store.Load(splats); err != nil {
				return err
			}

			viewer, err := app.NewViewer(app.Config{
				Title:    "splatview",
				Width:    width,
				Height:   height,
				FontPath: font,
				Options:  options,
				Logger:   log,
			}, store)
			if err != nil {
				return err
			}
			defer viewer.Close()

			log.Infof("rendering %d splats", store.Len())
			return viewer.Run()
		},
	}
	opts.register(cmd)
	cloud.register(cmd)
	cmd.Flags().IntVar(&width, "width", 1280, "window width")
	cmd.Flags().IntVar(&height, "height", 720, "window height")
	cmd.Flags().StringVar(&font, "font", "", "TTF font for the stats overlay (empty disables it)")
	return cmd
}
