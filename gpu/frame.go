package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/splat3d/splatrt/core"
	"github.com/splat3d/splatrt/render"
)

const projectWorkgroup = 256

// FrameEncoder records one frame's passes: the projection compute pass,
// then the instanced draw over the sorted order. Submission order provides
// the compute-to-draw dependency; no explicit barriers are needed inside
// one queue.
type FrameEncoder struct {
	device    *wgpu.Device
	queue     *wgpu.Queue
	buffers   *BufferManager
	pipelines *PipelineCache
	caps      Capabilities

	projectBG *wgpu.BindGroup
	drawBG    *wgpu.BindGroup

	depthView *wgpu.TextureView
	depthTex  *wgpu.Texture
	depthW    uint32
	depthH    uint32
}

func NewFrameEncoder(device *wgpu.Device, buffers *BufferManager, pipelines *PipelineCache, caps Capabilities) *FrameEncoder {
	return &FrameEncoder{
		device:    device,
		queue:     device.GetQueue(),
		buffers:   buffers,
		pipelines: pipelines,
		caps:      caps,
	}
}

// Invalidate drops the cached bind groups; call after any buffer the
// passes bind was reallocated (e.g. a SyncStore growth).
func (f *FrameEncoder) Invalidate() { f.invalidateBindGroups() }

func (f *FrameEncoder) invalidateBindGroups() {
	if f.projectBG != nil {
		f.projectBG.Release()
		f.projectBG = nil
	}
	if f.drawBG != nil {
		f.drawBG.Release()
		f.drawBG = nil
	}
}

func (f *FrameEncoder) ensureBindGroups(dithered bool) error {
	if f.projectBG != nil && f.drawBG != nil {
		return nil
	}
	project, err := f.pipelines.Project()
	if err != nil {
		return err
	}
	draw, err := f.pipelines.Draw(dithered)
	if err != nil {
		return err
	}

	f.projectBG, err = f.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Splat Project BG",
		Layout: project.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: f.buffers.UniformBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: f.buffers.SplatsBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: f.buffers.ProjectedBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: project bind group: %w", err)
	}
	f.drawBG, err = f.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Splat Draw BG",
		Layout: draw.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: f.buffers.UniformBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: f.buffers.ProjectedBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: f.buffers.OrderBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: draw bind group: %w", err)
	}
	return nil
}

func (f *FrameEncoder) ensureDepth(width, height uint32) error {
	if f.depthView != nil && f.depthW == width && f.depthH == height {
		return nil
	}
	if f.depthView != nil {
		f.depthView.Release()
		f.depthTex.Release()
	}
	tex, err := f.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Splat Depth",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("gpu: depth texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("gpu: depth view: %w", err)
	}
	f.depthTex, f.depthView = tex, view
	f.depthW, f.depthH = width, height
	return nil
}

// Encode records and submits one view's frame into target. order is the
// back-to-front permutation produced by the sort engine; in dithered mode
// it only selects the visible subset.
func (f *FrameEncoder) Encode(target *wgpu.TextureView, view core.View, order []uint32, cull render.CullConfig, dithered bool) error {
	grew, err := f.buffers.UpdateUniforms(view, cull, dithered)
	if err != nil {
		return err
	}
	grewOrder, err := f.buffers.UploadOrder(order)
	if err != nil {
		return err
	}
	if grew || grewOrder {
		f.invalidateBindGroups()
	}
	if err := f.ensureBindGroups(dithered); err != nil {
		return err
	}

	encoder, err := f.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("gpu: command encoder: %w", err)
	}
	defer encoder.Release()

	project, err := f.pipelines.Project()
	if err != nil {
		return err
	}
	cpass := encoder.BeginComputePass(nil)
	cpass.SetPipeline(project)
	cpass.SetBindGroup(0, f.projectBG, nil)
	groups := (f.buffers.SplatCount + projectWorkgroup - 1) / projectWorkgroup
	cpass.DispatchWorkgroups(groups, 1, 1)
	cpass.End()

	draw, err := f.pipelines.Draw(dithered)
	if err != nil {
		return err
	}
	rpDesc := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	}
	if dithered {
		if err := f.ensureDepth(view.Width, view.Height); err != nil {
			return err
		}
		rpDesc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            f.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		}
	}
	rpass := encoder.BeginRenderPass(rpDesc)
	rpass.SetPipeline(draw)
	rpass.SetBindGroup(0, f.drawBG, nil)
	rpass.Draw(6, uint32(len(order)), 0, 0)
	rpass.End()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("gpu: finish encoder: %w", err)
	}
	defer cmd.Release()
	f.queue.Submit(cmd)
	return nil
}

// Release frees the encoder's bind groups and depth attachment.
func (f *FrameEncoder) Release() {
	f.invalidateBindGroups()
	if f.depthView != nil {
		f.depthView.Release()
		f.depthTex.Release()
		f.depthView, f.depthTex = nil, nil
	}
}
