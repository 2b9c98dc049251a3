package uniform

import "github.com/sirupsen/logrus"

// ReplicatedBufferBuilderOption is a functional option applied to a ReplicatedBuffer during construction.
type ReplicatedBufferBuilderOption func(*replicatedBuffer)

// WithLabel sets the debug label used for the buffer and its per-frame copies.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - ReplicatedBufferBuilderOption: a function that applies the label option to a buffer
func WithLabel(label string) ReplicatedBufferBuilderOption {
	return func(rb *replicatedBuffer) {
		rb.label = label
	}
}

// WithCoherentMemory requests host-coherent memory, so writes need no flush.
//
// Parameters:
//   - coherent: true to request coherent memory
//
// Returns:
//   - ReplicatedBufferBuilderOption: a function that applies the memory option to a buffer
func WithCoherentMemory(coherent bool) ReplicatedBufferBuilderOption {
	return func(rb *replicatedBuffer) {
		rb.coherent = coherent
	}
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - ReplicatedBufferBuilderOption: a function that applies the logger option to a buffer
func WithLogger(logger logrus.FieldLogger) ReplicatedBufferBuilderOption {
	return func(rb *replicatedBuffer) {
		if logger != nil {
			rb.logger = logger
		}
	}
}
