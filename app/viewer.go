// Package app is the windowed splat viewer: a glfw window with a WebGPU
// surface, an orbit camera, and a stats overlay. Projection and
// compositing run on the device; depth ordering runs on the CPU and is
// uploaded per frame.
package app

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"

	splatrt "github.com/splat3d/splatrt"
	"github.com/splat3d/splatrt/core"
	"github.com/splat3d/splatrt/gpu"
	"github.com/splat3d/splatrt/render"
	"github.com/splat3d/splatrt/sort"
	"github.com/splat3d/splatrt/splat"
)

// Config configures the viewer window and pipeline.
type Config struct {
	Title    string
	Width    int
	Height   int
	FontPath string // empty disables the stats overlay
	Options  splatrt.Options
	Logger   splatrt.Logger
}

type Viewer struct {
	cfg Config
	log splatrt.Logger

	Window   *glfw.Window
	Instance *wgpu.Instance
	Surface  *wgpu.Surface
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	SurfCfg  *wgpu.SurfaceConfiguration

	Buffers   *gpu.BufferManager
	Pipelines *gpu.PipelineCache
	Encoder   *gpu.FrameEncoder
	Caps      gpu.Capabilities

	Store    *splat.Store
	Engine   *sort.Engine
	Camera   *OrbitCamera
	Profiler *Profiler

	overlay       *Overlay
	textPipeline  *wgpu.RenderPipeline
	textBindGroup *wgpu.BindGroup
	textVertexBuf *wgpu.Buffer
	sampler       *wgpu.Sampler

	depths  []float32
	visible []uint32

	dragging   bool
	panning    bool
	lastCursor [2]float64
}

// NewViewer creates the window and initializes the device. glfw must
// already be initialized on the main thread.
func NewViewer(cfg Config, store *splat.Store) (*Viewer, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = splatrt.NewNopLogger()
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("app: create window: %w", err)
	}

	v := &Viewer{
		cfg:      cfg,
		log:      logger,
		Window:   window,
		Store:    store,
		Camera:   NewOrbitCamera(mgl32.Vec3{}, 5),
		Profiler: NewProfiler(),
	}
	if err := v.initGPU(); err != nil {
		window.Destroy()
		return nil, err
	}
	v.initEngine()
	v.installCallbacks()
	if cfg.FontPath != "" {
		if err := v.initOverlay(); err != nil {
			logger.Warnf("stats overlay disabled: %v", err)
		}
	}
	return v, nil
}

func (v *Viewer) initGPU() error {
	v.Instance = wgpu.CreateInstance(nil)
	v.Surface = v.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(v.Window))

	adapter, err := v.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: v.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("app: request adapter: %w", err)
	}
	v.Adapter = adapter

	v.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("app: request device: %w", err)
	}
	v.Queue = v.Device.GetQueue()
	v.Caps = gpu.ProbeCapabilities(adapter, v.Device)
	v.log.Debugf("adapter: storage binding %d MiB, timestamps=%v",
		v.Caps.MaxStorageBufferBindingSize>>20, v.Caps.TimestampQueries)

	width, height := v.Window.GetFramebufferSize()
	caps := v.Surface.GetCapabilities(adapter)
	v.SurfCfg = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	v.Surface.Configure(adapter, v.Device, v.SurfCfg)

	v.Buffers = gpu.NewBufferManager(v.Device)
	v.Pipelines = gpu.NewPipelineCache(v.Device, v.SurfCfg.Format)
	v.Encoder = gpu.NewFrameEncoder(v.Device, v.Buffers, v.Pipelines, v.Caps)

	v.sampler, err = v.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("app: create sampler: %w", err)
	}
	return nil
}

func (v *Viewer) initEngine() {
	o := v.cfg.Options
	var primary sort.Strategy
	if o.SortStrategy == sort.StrategyAuto {
		primary = sort.Auto(v.Store.Len())
	} else {
		primary, _ = sort.ByName(o.SortStrategy)
	}
	var fallback sort.Strategy
	if o.InteractionFallback {
		fallback = sort.NewCounting(sort.DefaultBins)
	}
	v.Engine = sort.NewEngine(primary, fallback, o.PositionEpsilon, o.AngleEpsilon)
}

func (v *Viewer) installCallbacks() {
	v.Window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		pressed := action == glfw.Press
		switch button {
		case glfw.MouseButtonLeft:
			v.dragging = pressed
		case glfw.MouseButtonRight, glfw.MouseButtonMiddle:
			v.panning = pressed
		}
		v.Engine.SetInteracting(v.dragging || v.panning)
	})
	v.Window.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		dx := float32(x - v.lastCursor[0])
		dy := float32(y - v.lastCursor[1])
		v.lastCursor = [2]float64{x, y}
		if v.dragging {
			v.Camera.Drag(dx, dy)
		} else if v.panning {
			v.Camera.Pan(dx, dy)
		}
	})
	v.Window.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		v.Camera.Zoom(float32(yoff))
	})
	v.Window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			return
		}
		v.SurfCfg.Width = uint32(width)
		v.SurfCfg.Height = uint32(height)
		v.Surface.Configure(v.Adapter, v.Device, v.SurfCfg)
	})
	v.Window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})
}

// Run drives the frame loop until the window closes.
func (v *Viewer) Run() error {
	for !v.Window.ShouldClose() {
		glfw.PollEvents()
		if err := v.frame(); err != nil {
			// Transient surface errors (resize races) drop the frame.
			v.log.Warnf("frame dropped: %v", err)
		}
	}
	return nil
}

func (v *Viewer) frame() error {
	view := v.Camera.View(v.SurfCfg.Width, v.SurfCfg.Height)

	v.Profiler.BeginScope("sync")
	grew, err := v.Buffers.SyncStore(v.Store)
	v.Profiler.EndScope("sync")
	if err != nil {
		return err
	}
	if grew {
		v.Encoder.Invalidate()
	}

	v.Profiler.BeginScope("order")
	order := v.orderSplats(view)
	v.Profiler.EndScope("order")
	v.Profiler.SetCount("splats", v.Store.Len())
	v.Profiler.SetCount("visible", len(order))

	surfTex, err := v.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("app: surface texture: %w", err)
	}
	defer surfTex.Release()
	surfView, err := surfTex.CreateView(nil)
	if err != nil {
		return fmt.Errorf("app: surface view: %w", err)
	}
	defer surfView.Release()

	v.Profiler.BeginScope("encode")
	cull := render.CullConfig{
		InkThreshold:   v.cfg.Options.InkThreshold,
		DepthReference: v.cfg.Options.DepthReference,
	}
	err = v.Encoder.Encode(surfView, view, order, cull, v.cfg.Options.Dithered)
	v.Profiler.EndScope("encode")
	if err != nil {
		return err
	}

	if v.overlay != nil {
		v.drawOverlay(surfView)
	}
	v.Surface.Present()
	return nil
}

// orderSplats computes view-space depths on the CPU and runs the sort
// engine. The GPU re-projects; only the permutation crosses over.
func (v *Viewer) orderSplats(view core.View) []uint32 {
	positions, _, _, _, _ := v.Store.Snapshot()
	n := len(positions)
	if cap(v.depths) < n {
		v.depths = make([]float32, n)
		v.visible = make([]uint32, 0, n)
	}
	v.depths = v.depths[:n]
	v.visible = v.visible[:0]

	vm := view.ViewMatrix
	for i, p := range positions {
		d := -(vm[2]*p.X() + vm[6]*p.Y() + vm[10]*p.Z() + vm[14])
		v.depths[i] = d
		if d >= view.Near && d <= view.Far {
			v.visible = append(v.visible, uint32(i))
		}
	}
	return v.Engine.Order(v.visible, v.depths, view, v.Store.Generation(), view.Near, view.Far)
}

func (v *Viewer) initOverlay() error {
	overlay, err := NewOverlay(v.cfg.FontPath, 16)
	if err != nil {
		return err
	}

	w := overlay.Atlas.Bounds().Dx()
	h := overlay.Atlas.Bounds().Dy()
	tex, err := v.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Glyph Atlas",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return err
	}
	v.Queue.WriteTexture(tex.AsImageCopy(), overlay.Atlas.Pix, &wgpu.TextureDataLayout{
		BytesPerRow:  uint32(w),
		RowsPerImage: uint32(h),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1})
	atlasView, err := tex.CreateView(nil)
	if err != nil {
		return err
	}

	pipeline, err := v.Pipelines.Text()
	if err != nil {
		return err
	}
	v.textBindGroup, err = v.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: atlasView},
			{Binding: 1, Sampler: v.sampler},
		},
	})
	if err != nil {
		return err
	}
	v.textPipeline = pipeline
	v.overlay = overlay
	return nil
}

func (v *Viewer) drawOverlay(target *wgpu.TextureView) {
	text := v.Profiler.StatsString()
	verts := v.overlay.BuildVertices(text, 10, 10, [4]float32{1, 1, 1, 0.9},
		int(v.SurfCfg.Width), int(v.SurfCfg.Height))
	if len(verts) == 0 {
		return
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(&verts[0])), len(verts)*int(unsafe.Sizeof(verts[0])))
	if v.textVertexBuf == nil || v.textVertexBuf.GetSize() < uint64(len(data)) {
		if v.textVertexBuf != nil {
			v.textVertexBuf.Release()
		}
		buf, err := v.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Overlay Vertices",
			Size:  uint64(len(data) + 16*1024),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			v.log.Warnf("overlay vertex buffer: %v", err)
			return
		}
		v.textVertexBuf = buf
	}
	v.Queue.WriteBuffer(v.textVertexBuf, 0, data)

	encoder, err := v.Device.CreateCommandEncoder(nil)
	if err != nil {
		return
	}
	defer encoder.Release()
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	pass.SetPipeline(v.textPipeline)
	pass.SetBindGroup(0, v.textBindGroup, nil)
	pass.SetVertexBuffer(0, v.textVertexBuf, 0, uint64(len(data)))
	pass.Draw(uint32(len(verts)), 1, 0, 0)
	pass.End()
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return
	}
	defer cmd.Release()
	v.Queue.Submit(cmd)
}

// Close tears the viewer down in reverse construction order.
func (v *Viewer) Close() {
	if v.Encoder != nil {
		v.Encoder.Release()
	}
	if v.Pipelines != nil {
		v.Pipelines.Release()
	}
	if v.Buffers != nil {
		v.Buffers.Release()
	}
	if v.textVertexBuf != nil {
		v.textVertexBuf.Release()
	}
	if v.Window != nil {
		v.Window.Destroy()
	}
}
