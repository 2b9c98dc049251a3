package renderer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/sirupsen/logrus"
)

// backendConfig collects the builder options shared by every backend implementation.
type backendConfig struct {
	logger logrus.FieldLogger

	// hostCoherent makes host backend buffers report coherent memory, turning Flush into a no-op.
	hostCoherent bool

	// forceFallbackAdapter requests a software adapter from WebGPU.
	forceFallbackAdapter bool
	// surfaceDescriptor is an optional window surface the WebGPU adapter must be compatible with.
	surfaceDescriptor *wgpu.SurfaceDescriptor
}

// NewRendererBackend creates the device/allocator collaborator for the requested backend type.
//
// Parameters:
//   - backendType: the backend implementation to create
//   - options: variadic list of RendererBuilderOption functions to configure the backend
//
// Returns:
//   - RendererBackend: the created backend
//   - error: an error if the backend type is unknown or the GPU device could not be acquired
func NewRendererBackend(backendType RendererBackendType, options ...RendererBuilderOption) (RendererBackend, error) {
	cfg := &backendConfig{
		logger: logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(cfg)
	}

	switch backendType {
	case BackendTypeHost:
		return newHostRendererBackend(cfg), nil
	case BackendTypeWGPU:
		return newWGPURendererBackend(cfg)
	default:
		return nil, fmt.Errorf("unknown renderer backend type %d", int(backendType))
	}
}
