package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Capabilities is the device feature set probed once at construction.
// Frame code branches on this struct instead of re-querying the adapter.
type Capabilities struct {
	MaxStorageBufferBindingSize uint64
	MaxComputeWorkgroupsPerDim  uint32
	TimestampQueries            bool
	Float32Filterable           bool
}

// ProbeCapabilities queries adapter limits and features.
func ProbeCapabilities(adapter *wgpu.Adapter, device *wgpu.Device) Capabilities {
	limits := adapter.GetLimits()
	return Capabilities{
		MaxStorageBufferBindingSize: uint64(limits.Limits.MaxStorageBufferBindingSize),
		MaxComputeWorkgroupsPerDim:  limits.Limits.MaxComputeWorkgroupsPerDimension,
		TimestampQueries:            device.HasFeature(wgpu.FeatureNameTimestampQuery),
		Float32Filterable:           device.HasFeature(wgpu.FeatureNameFloat32Filterable),
	}
}

// MaxSplats is how many splats fit in one storage binding.
func (c Capabilities) MaxSplats() int {
	return int(c.MaxStorageBufferBindingSize / splatStride)
}
