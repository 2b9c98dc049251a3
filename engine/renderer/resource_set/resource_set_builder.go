package resource_set

import (
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/sirupsen/logrus"
)

// ResourceSetBuilderOption is a functional option applied to a ResourceSet during construction via NewResourceSet.
type ResourceSetBuilderOption func(*resourceSet)

// WithFramesInFlight sets how many per-frame copies of every buffer and set are created. Defaults to 2.
//
// Parameters:
//   - frames: the number of frames in flight
//
// Returns:
//   - ResourceSetBuilderOption: a function that applies the frame count to a resource set
func WithFramesInFlight(frames int) ResourceSetBuilderOption {
	return func(rs *resourceSet) {
		rs.framesInFlight = frames
	}
}

// WithLabel sets the debug label used for the set and every object it creates.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - ResourceSetBuilderOption: a function that applies the label to a resource set
func WithLabel(label string) ResourceSetBuilderOption {
	return func(rs *resourceSet) {
		rs.label = label
	}
}

// WithStages sets the shader stages every binding is visible to. Defaults to all graphics stages.
//
// Parameters:
//   - stages: the shader stages
//
// Returns:
//   - ResourceSetBuilderOption: a function that applies the stages to a resource set
func WithStages(stages renderer.ShaderStage) ResourceSetBuilderOption {
	return func(rs *resourceSet) {
		rs.stages = stages
	}
}

// WithCoherentMemory requests host-coherent memory for the set's structured buffers.
//
// Parameters:
//   - coherent: true to request coherent memory
//
// Returns:
//   - ResourceSetBuilderOption: a function that applies the memory option to a resource set
func WithCoherentMemory(coherent bool) ResourceSetBuilderOption {
	return func(rs *resourceSet) {
		rs.coherent = coherent
	}
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - ResourceSetBuilderOption: a function that applies the logger to a resource set
func WithLogger(logger logrus.FieldLogger) ResourceSetBuilderOption {
	return func(rs *resourceSet) {
		if logger != nil {
			rs.logger = logger
		}
	}
}
