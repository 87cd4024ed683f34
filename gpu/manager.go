// Package gpu owns the WebGPU side of the splat pipeline: buffer
// management, pipeline caching and per-slot frame encoding. The CPU
// pipeline in render is the reference; this package mirrors its stages on
// the device for windowed presentation.
package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/splat3d/splatrt/core"
	"github.com/splat3d/splatrt/render"
	"github.com/splat3d/splatrt/splat"
)

const (
	HeadroomSplats  = 4 * 1024 * 1024
	HeadroomIndices = 64 * 1024

	// Byte sizes of the WGSL-side structs.
	uniformSize   = 176
	splatStride   = 64 // pos+opacity, cov halves, color: 4 x vec4
	projStride    = 48 // center+conic, depth+radius, color: 3 x vec4
	indexStride   = 4
	flagsDithered = 1
)

// BufferManager owns the device buffers shared by the projection compute
// pass and the draw pass. Splat data is uploaded once per store
// generation; uniforms and the sorted order every frame.
type BufferManager struct {
	Device *wgpu.Device

	UniformBuf   *wgpu.Buffer
	SplatsBuf    *wgpu.Buffer
	ProjectedBuf *wgpu.Buffer
	OrderBuf     *wgpu.Buffer

	SplatCount uint32
	generation uint64
	uploaded   bool
}

func NewBufferManager(device *wgpu.Device) *BufferManager {
	return &BufferManager{Device: device}
}

func (m *BufferManager) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, size int, usage wgpu.BufferUsage, headroom int) (bool, error) {
	needed := uint64(size + headroom)
	if needed%4 != 0 {
		needed += 4 - needed%4
	}

	current := *buf
	if current == nil || current.GetSize() < needed {
		if current != nil {
			current.Release()
		}
		newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name,
			Size:  needed,
			Usage: usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return false, fmt.Errorf("gpu: create %s buffer (%d bytes): %w", name, needed, err)
		}
		*buf = newBuf
		if len(data) > 0 {
			m.Device.GetQueue().WriteBuffer(*buf, 0, data)
		}
		return true, nil
	}
	if len(data) > 0 {
		m.Device.GetQueue().WriteBuffer(*buf, 0, data)
	}
	return false, nil
}

// SyncStore uploads the splat arrays when the store generation moved.
// Returns true when buffers changed and bind groups must be rebuilt. A
// failed allocation leaves the previous generation resident.
func (m *BufferManager) SyncStore(st *splat.Store) (bool, error) {
	gen := st.Generation()
	if m.uploaded && gen == m.generation {
		return false, nil
	}
	positions, covariances, opacities, colors, _ := st.Snapshot()
	n := len(positions)

	data := make([]byte, n*splatStride)
	for i := 0; i < n; i++ {
		o := i * splatStride
		putVec3(data[o:], positions[i][0], positions[i][1], positions[i][2])
		putF32(data[o+12:], opacities[i])
		c := covariances[i]
		putF32(data[o+16:], c[0]) // xx
		putF32(data[o+20:], c[1]) // xy
		putF32(data[o+24:], c[2]) // xz
		putF32(data[o+28:], c[3]) // yy
		putF32(data[o+32:], c[4]) // yz
		putF32(data[o+36:], c[5]) // zz
		putVec3(data[o+48:], colors[i][0], colors[i][1], colors[i][2])
		putF32(data[o+60:], 1)
	}

	grewSplats, err := m.ensureBuffer("splats", &m.SplatsBuf, data, len(data), wgpu.BufferUsageStorage, HeadroomSplats)
	if err != nil {
		return false, err
	}
	grewProj, err := m.ensureBuffer("projected", &m.ProjectedBuf, nil, n*projStride, wgpu.BufferUsageStorage, HeadroomSplats)
	if err != nil {
		return false, err
	}

	m.SplatCount = uint32(n)
	m.generation = gen
	m.uploaded = true
	return grewSplats || grewProj, nil
}

// UploadOrder writes the frame's back-to-front index permutation.
// Returns true when the buffer was reallocated.
func (m *BufferManager) UploadOrder(order []uint32) (bool, error) {
	data := make([]byte, len(order)*indexStride)
	for i, idx := range order {
		binary.LittleEndian.PutUint32(data[i*indexStride:], idx)
	}
	return m.ensureBuffer("order", &m.OrderBuf, data, len(data), wgpu.BufferUsageStorage, HeadroomIndices)
}

// UpdateUniforms packs the per-frame uniform block.
//
//	view: mat4x4<f32>            -- 0
//	proj: mat4x4<f32>            -- 64
//	screen: vec2<f32>            -- 128
//	splat_count: u32             -- 136
//	flags: u32                   -- 140
//	focal: vec2<f32>             -- 144
//	tan_half_fov: vec2<f32>      -- 152
//	near, far: f32               -- 160
//	ink_threshold: f32           -- 168
//	depth_reference: f32         -- 172
func (m *BufferManager) UpdateUniforms(view core.View, cull render.CullConfig, dithered bool) (bool, error) {
	buf := make([]byte, uniformSize)
	putMat4(buf[0:], view.ViewMatrix)
	putMat4(buf[64:], view.Projection)
	putF32(buf[128:], float32(view.Width))
	putF32(buf[132:], float32(view.Height))
	binary.LittleEndian.PutUint32(buf[136:], m.SplatCount)
	var flags uint32
	if dithered {
		flags |= flagsDithered
	}
	binary.LittleEndian.PutUint32(buf[140:], flags)
	fx, fy := view.FocalLengths()
	putF32(buf[144:], fx)
	putF32(buf[148:], fy)
	tx, ty := view.TanHalfFov()
	putF32(buf[152:], tx)
	putF32(buf[156:], ty)
	putF32(buf[160:], view.Near)
	putF32(buf[164:], view.Far)
	putF32(buf[168:], cull.InkThreshold)
	putF32(buf[172:], cull.DepthReference)

	return m.ensureBuffer("uniforms", &m.UniformBuf, buf, len(buf), wgpu.BufferUsageUniform, 0)
}

// Release frees every device buffer.
func (m *BufferManager) Release() {
	for _, b := range []*wgpu.Buffer{m.UniformBuf, m.SplatsBuf, m.ProjectedBuf, m.OrderBuf} {
		if b != nil {
			b.Release()
		}
	}
	m.UniformBuf, m.SplatsBuf, m.ProjectedBuf, m.OrderBuf = nil, nil, nil, nil
	m.uploaded = false
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func putVec3(b []byte, x, y, z float32) {
	putF32(b, x)
	putF32(b[4:], y)
	putF32(b[8:], z)
}

func putMat4(b []byte, m4 [16]float32) {
	for i, v := range m4 {
		putF32(b[i*4:], v)
	}
}
