package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/splat3d/splatrt/shaders"
)

// pipelineKey identifies one compiled pipeline variant. Dithered and
// blended draws differ only in fragment entry point and blend state, so
// both come from the same shader module.
type pipelineKey struct {
	kernel   string
	dithered bool
}

const (
	kernelProject = "project"
	kernelDraw    = "draw"
	kernelBlit    = "blit"
	kernelText    = "text"
)

// Stride and offsets of the overlay vertex: pos vec2, uv vec2, color vec4.
const textVertexStride = 8 * 4

// PipelineCache builds pipeline variants lazily and owns their lifetime.
// It belongs to one renderer and dies with it; no process-wide state.
type PipelineCache struct {
	device *wgpu.Device
	format wgpu.TextureFormat

	compute map[pipelineKey]*wgpu.ComputePipeline
	rend    map[pipelineKey]*wgpu.RenderPipeline
	modules map[string]*wgpu.ShaderModule
}

func NewPipelineCache(device *wgpu.Device, surfaceFormat wgpu.TextureFormat) *PipelineCache {
	return &PipelineCache{
		device:  device,
		format:  surfaceFormat,
		compute: make(map[pipelineKey]*wgpu.ComputePipeline),
		rend:    make(map[pipelineKey]*wgpu.RenderPipeline),
		modules: make(map[string]*wgpu.ShaderModule),
	}
}

func (c *PipelineCache) module(name, code string) (*wgpu.ShaderModule, error) {
	if m, ok := c.modules[name]; ok {
		return m, nil
	}
	m, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: compile %s: %w", name, err)
	}
	c.modules[name] = m
	return m, nil
}

// Project returns the projection compute pipeline.
func (c *PipelineCache) Project() (*wgpu.ComputePipeline, error) {
	key := pipelineKey{kernel: kernelProject}
	if p, ok := c.compute[key]; ok {
		return p, nil
	}
	mod, err := c.module("splat_project", shaders.SplatProjectWGSL)
	if err != nil {
		return nil, err
	}
	p, err := c.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Splat Project Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     mod,
			EntryPoint: "project",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: project pipeline: %w", err)
	}
	c.compute[key] = p
	return p, nil
}

// Draw returns the instanced splat draw pipeline for the compositing mode.
func (c *PipelineCache) Draw(dithered bool) (*wgpu.RenderPipeline, error) {
	key := pipelineKey{kernel: kernelDraw, dithered: dithered}
	if p, ok := c.rend[key]; ok {
		return p, nil
	}
	mod, err := c.module("splat_draw", shaders.SplatDrawWGSL)
	if err != nil {
		return nil, err
	}

	entry := "fs_blend"
	target := wgpu.ColorTargetState{
		Format: c.format,
		Blend: &wgpu.BlendState{
			// Premultiplied over; instances arrive back-to-front.
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	var depth *wgpu.DepthStencilState
	if dithered {
		entry = "fs_dithered"
		target.Blend = nil
		depth = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
		}
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label: "Splat Draw Pipeline",
		Vertex: wgpu.VertexState{
			Module:     mod,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     mod,
			EntryPoint: entry,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		DepthStencil: depth,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	p, err := c.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("gpu: draw pipeline (dithered=%v): %w", dithered, err)
	}
	c.rend[key] = p
	return p, nil
}

// Blit returns the fullscreen surface blit pipeline.
func (c *PipelineCache) Blit() (*wgpu.RenderPipeline, error) {
	key := pipelineKey{kernel: kernelBlit}
	if p, ok := c.rend[key]; ok {
		return p, nil
	}
	mod, err := c.module("fullscreen", shaders.FullscreenWGSL)
	if err != nil {
		return nil, err
	}
	p, err := c.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     mod,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     mod,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    c.format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: blit pipeline: %w", err)
	}
	c.rend[key] = p
	return p, nil
}

// Text returns the overlay text pipeline.
func (c *PipelineCache) Text() (*wgpu.RenderPipeline, error) {
	key := pipelineKey{kernel: kernelText}
	if p, ok := c.rend[key]; ok {
		return p, nil
	}
	mod, err := c.module("text", shaders.TextWGSL)
	if err != nil {
		return nil, err
	}
	p, err := c.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Text Pipeline",
		Vertex: wgpu.VertexState{
			Module:     mod,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: textVertexStride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     mod,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: c.format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOne,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: text pipeline: %w", err)
	}
	c.rend[key] = p
	return p, nil
}

// Release drops every cached pipeline and module.
func (c *PipelineCache) Release() {
	for _, p := range c.compute {
		p.Release()
	}
	for _, p := range c.rend {
		p.Release()
	}
	for _, m := range c.modules {
		m.Release()
	}
	c.compute = make(map[pipelineKey]*wgpu.ComputePipeline)
	c.rend = make(map[pipelineKey]*wgpu.RenderPipeline)
	c.modules = make(map[string]*wgpu.ShaderModule)
}
