package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/sirupsen/logrus"
)

// RendererBuilderOption is a functional option applied to a backend during construction via NewRendererBackend.
type RendererBuilderOption func(*backendConfig)

// WithLogger sets the logger used by the backend. Defaults to the logrus standard logger.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a backend
func WithLogger(logger logrus.FieldLogger) RendererBuilderOption {
	return func(c *backendConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHostCoherent makes host backend buffers behave as host-coherent memory, so Flush does nothing.
// It has no effect on the WebGPU backend, whose buffers always require an explicit upload.
//
// Parameters:
//   - coherent: true for coherent host buffers
//
// Returns:
//   - RendererBuilderOption: a function that applies the coherency option to a backend
func WithHostCoherent(coherent bool) RendererBuilderOption {
	return func(c *backendConfig) {
		c.hostCoherent = coherent
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a backend
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(c *backendConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithSurfaceDescriptor makes the WebGPU backend request an adapter compatible with a window surface.
// Without it the backend runs headless.
//
// Parameters:
//   - desc: the platform surface descriptor, usually from window.Window.SurfaceDescriptor
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface option to a backend
func WithSurfaceDescriptor(desc *wgpu.SurfaceDescriptor) RendererBuilderOption {
	return func(c *backendConfig) {
		c.surfaceDescriptor = desc
	}
}
