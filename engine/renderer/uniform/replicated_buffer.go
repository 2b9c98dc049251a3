package uniform

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/sirupsen/logrus"
)

// replicatedBuffer is the unexported implementation of ReplicatedBuffer.
type replicatedBuffer struct {
	label    string
	logger   logrus.FieldLogger
	coherent bool

	layout  *StructuredBufferLayout
	buffers []renderer.MappedBuffer
}

// ReplicatedBuffer owns one host-mapped copy of a structured buffer per frame in flight.
//
// Writes are not synchronized. The caller must only write a frame index whose previous
// GPU use has completed, and must serialize writers of the same frame index.
type ReplicatedBuffer interface {
	// Label returns the debug label for this buffer.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Layout returns the packed layout every copy follows.
	//
	// Returns:
	//   - *StructuredBufferLayout: the layout
	Layout() *StructuredBufferLayout

	// FrameCount returns the number of per-frame copies.
	//
	// Returns:
	//   - int: the frame count
	FrameCount() int

	// Buffer returns the backing buffer for a frame.
	//
	// Parameters:
	//   - frameIndex: the frame-in-flight index
	//
	// Returns:
	//   - renderer.MappedBuffer: the buffer
	//   - error: common.ErrIndexOutOfRange if frameIndex >= FrameCount()
	Buffer(frameIndex int) (renderer.MappedBuffer, error)

	// Descriptor returns the buffer region a resource set binds for a frame: the whole buffer.
	//
	// Parameters:
	//   - frameIndex: the frame-in-flight index
	//
	// Returns:
	//   - renderer.BufferInfo: the bound region
	//   - error: common.ErrIndexOutOfRange if frameIndex >= FrameCount()
	Descriptor(frameIndex int) (renderer.BufferInfo, error)

	// WriteMember copies data into one sub-field of one frame's copy.
	//
	// Parameters:
	//   - acc: the member, array index and field to write
	//   - data: the bytes to write, exactly the sub-field's packed size
	//   - frameIndex: the frame-in-flight index
	//   - flush: true to make the write visible to the device immediately
	//
	// Returns:
	//   - error: common.ErrIndexOutOfRange or common.ErrSizeMismatch, in which case nothing is written
	WriteMember(acc MemberAccessor, data []byte, frameIndex int, flush bool) error

	// ReadMember copies one sub-field of one frame's copy out of the mapped memory.
	//
	// Parameters:
	//   - acc: the member, array index and field to read
	//   - frameIndex: the frame-in-flight index
	//
	// Returns:
	//   - []byte: a copy of the sub-field bytes
	//   - error: common.ErrIndexOutOfRange if any index is invalid
	ReadMember(acc MemberAccessor, frameIndex int) ([]byte, error)

	// Flush makes every host write to one frame's copy visible to the device.
	//
	// Parameters:
	//   - frameIndex: the frame-in-flight index
	//
	// Returns:
	//   - error: common.ErrIndexOutOfRange or the backend's flush error
	Flush(frameIndex int) error

	// Release destroys every per-frame copy.
	Release()
}

var _ ReplicatedBuffer = &replicatedBuffer{}

// NewReplicatedBuffer allocates framesInFlight host-visible uniform buffers of layout.Size() bytes.
// Either every copy is created or none is.
//
// Parameters:
//   - backend: the backend to allocate from
//   - layout: the packed layout of one copy
//   - framesInFlight: the number of copies, at least 1
//   - options: variadic list of ReplicatedBufferBuilderOption functions to configure the buffer
//
// Returns:
//   - ReplicatedBuffer: the created buffer
//   - error: an error if the arguments are invalid or any allocation fails
func NewReplicatedBuffer(backend renderer.RendererBackend, layout *StructuredBufferLayout, framesInFlight int, options ...ReplicatedBufferBuilderOption) (ReplicatedBuffer, error) {
	rb := &replicatedBuffer{
		label:  "uniform buffer",
		logger: logrus.StandardLogger(),
		layout: layout,
	}
	for _, opt := range options {
		opt(rb)
	}

	if layout == nil || layout.Size() == 0 {
		return nil, fmt.Errorf("replicated buffer %q: empty layout: %w", rb.label, common.ErrInvalidMemberDeclaration)
	}
	if framesInFlight < 1 {
		return nil, fmt.Errorf("replicated buffer %q: frames in flight %d: %w", rb.label, framesInFlight, common.ErrIndexOutOfRange)
	}

	memory := renderer.MemoryHostVisible
	if rb.coherent {
		memory |= renderer.MemoryHostCoherent
	}

	rb.buffers = make([]renderer.MappedBuffer, 0, framesInFlight)
	for f := 0; f < framesInFlight; f++ {
		buf, err := backend.CreateBuffer(renderer.BufferDescriptor{
			Label:  fmt.Sprintf("%s [frame %d]", rb.label, f),
			Size:   layout.Size(),
			Usage:  renderer.BufferUsageUniform | renderer.BufferUsageCopyDst,
			Memory: memory,
		})
		if err != nil {
			rb.Release()
			return nil, fmt.Errorf("replicated buffer %q: frame %d: %w", rb.label, f, err)
		}
		rb.buffers = append(rb.buffers, buf)
	}

	rb.logger.WithFields(logrus.Fields{
		"label":  rb.label,
		"size":   layout.Size(),
		"frames": framesInFlight,
	}).Debug("[uniform] replicated buffer created")
	return rb, nil
}

func (rb *replicatedBuffer) Label() string {
	return rb.label
}

func (rb *replicatedBuffer) Layout() *StructuredBufferLayout {
	return rb.layout
}

func (rb *replicatedBuffer) FrameCount() int {
	return len(rb.buffers)
}

func (rb *replicatedBuffer) Buffer(frameIndex int) (renderer.MappedBuffer, error) {
	if frameIndex < 0 || frameIndex >= len(rb.buffers) {
		return nil, fmt.Errorf("replicated buffer %q: frame %d of %d: %w", rb.label, frameIndex, len(rb.buffers), common.ErrIndexOutOfRange)
	}
	return rb.buffers[frameIndex], nil
}

func (rb *replicatedBuffer) Descriptor(frameIndex int) (renderer.BufferInfo, error) {
	buf, err := rb.Buffer(frameIndex)
	if err != nil {
		return renderer.BufferInfo{}, err
	}
	return renderer.BufferInfo{
		Buffer: buf.Handle(),
		Offset: 0,
		Range:  rb.layout.Size(),
	}, nil
}

func (rb *replicatedBuffer) WriteMember(acc MemberAccessor, data []byte, frameIndex int, flush bool) error {
	buf, err := rb.Buffer(frameIndex)
	if err != nil {
		return err
	}
	offset, size, err := rb.layout.FieldRange(acc)
	if err != nil {
		return fmt.Errorf("replicated buffer %q: %w", rb.label, err)
	}
	if uint64(len(data)) != size {
		return fmt.Errorf("replicated buffer %q: member %d field %d is %d bytes, got %d: %w", rb.label, acc.Member, acc.FieldIndex, size, len(data), common.ErrSizeMismatch)
	}

	copy(buf.Mapped()[offset:offset+size], data)
	if flush && !buf.Coherent() {
		return buf.Flush(offset, size)
	}
	return nil
}

func (rb *replicatedBuffer) ReadMember(acc MemberAccessor, frameIndex int) ([]byte, error) {
	buf, err := rb.Buffer(frameIndex)
	if err != nil {
		return nil, err
	}
	offset, size, err := rb.layout.FieldRange(acc)
	if err != nil {
		return nil, fmt.Errorf("replicated buffer %q: %w", rb.label, err)
	}

	out := make([]byte, size)
	copy(out, buf.Mapped()[offset:offset+size])
	return out, nil
}

func (rb *replicatedBuffer) Flush(frameIndex int) error {
	buf, err := rb.Buffer(frameIndex)
	if err != nil {
		return err
	}
	if buf.Coherent() {
		return nil
	}
	return buf.Flush(0, buf.Size())
}

func (rb *replicatedBuffer) Release() {
	for _, buf := range rb.buffers {
		buf.Release()
	}
	rb.buffers = nil
}
