package resource_set

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/uniform"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle phase of a ResourceSet.
type State int

const (
	// StateDeclaring accepts Add* calls.
	StateDeclaring State = iota
	// StateFinalized accepts writes and set lookups.
	StateFinalized
	// StateReleased accepts nothing.
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateDeclaring:
		return "declaring"
	case StateFinalized:
		return "finalized"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// resourceSet is the unexported implementation of ResourceSet.
type resourceSet struct {
	backend renderer.RendererBackend
	logger  logrus.FieldLogger

	label          string
	framesInFlight int
	stages         renderer.ShaderStage
	coherent       bool

	state        State
	declarations []Declaration
	// bufferLayouts holds one packed layout per structured buffer, in declaration order.
	bufferLayouts []*uniform.StructuredBufferLayout

	buffers   []uniform.ReplicatedBuffer
	layout    SetLayout
	allocator SetAllocator
	sets      []renderer.SetHandle
	writer    SetWriter
}

// ResourceSet declares the buffers, images and samplers a pipeline binds together, then owns
// their per-frame copies and one allocated set per frame in flight.
//
// Lifecycle: Add* calls are accepted until Finalize. Finalize derives the binding layout,
// allocates every per-frame buffer and set and binds them. Afterwards only writes and
// lookups are accepted. Release destroys everything at once.
type ResourceSet interface {
	// AddUniformBuffer declares a structured buffer. Its layout is packed immediately.
	//
	// Parameters:
	//   - members: the buffer's members, in order
	//
	// Returns:
	//   - int: the buffer's index among the set's structured buffers
	//   - error: common.ErrInvalidState after Finalize, or common.ErrInvalidMemberDeclaration
	AddUniformBuffer(members ...uniform.MemberDeclaration) (int, error)

	// AddCombinedImageSampler declares an image sampled through a sampler.
	//
	// Parameters:
	//   - view: the image view
	//   - sampler: the sampler
	//
	// Returns:
	//   - error: common.ErrInvalidState after Finalize
	AddCombinedImageSampler(view renderer.ImageViewHandle, sampler renderer.SamplerHandle) error

	// AddImageArray declares an array of images bound at one binding.
	//
	// Parameters:
	//   - views: the image views, at least one
	//
	// Returns:
	//   - error: common.ErrInvalidState after Finalize, or common.ErrInvalidDescriptorWrite for an empty array
	AddImageArray(views ...renderer.ImageViewHandle) error

	// AddSampler declares a sampler on its own binding.
	//
	// Parameters:
	//   - sampler: the sampler
	//
	// Returns:
	//   - error: common.ErrInvalidState after Finalize
	AddSampler(sampler renderer.SamplerHandle) error

	// Finalize creates the layout, the per-frame buffers and one bound set per frame in flight.
	// On failure everything created so far is released and the set stays in StateDeclaring.
	//
	// Returns:
	//   - error: common.ErrInvalidState if not declaring, or the first creation error
	Finalize() error

	// WriteMember writes one sub-field of a structured buffer for one frame.
	//
	// Parameters:
	//   - buffer: the structured buffer index returned by AddUniformBuffer
	//   - acc: the member, array index and field to write
	//   - data: the bytes to write, exactly the sub-field's packed size
	//   - frameIndex: the frame-in-flight index
	//   - flush: true to make the write visible to the device immediately
	//
	// Returns:
	//   - error: common.ErrInvalidState, common.ErrIndexOutOfRange or common.ErrSizeMismatch
	WriteMember(buffer int, acc uniform.MemberAccessor, data []byte, frameIndex int, flush bool) error

	// UniformBuffer returns the per-frame copies of a structured buffer.
	//
	// Parameters:
	//   - buffer: the structured buffer index returned by AddUniformBuffer
	//
	// Returns:
	//   - uniform.ReplicatedBuffer: the buffer
	//   - error: common.ErrInvalidState or common.ErrIndexOutOfRange
	UniformBuffer(buffer int) (uniform.ReplicatedBuffer, error)

	// DescriptorSet returns the set to bind when recording a frame.
	//
	// Parameters:
	//   - frameIndex: the frame-in-flight index
	//
	// Returns:
	//   - renderer.SetHandle: the set
	//   - error: common.ErrInvalidState or common.ErrIndexOutOfRange
	DescriptorSet(frameIndex int) (renderer.SetHandle, error)

	// Layout returns the derived binding layout.
	//
	// Returns:
	//   - SetLayout: the layout
	//   - error: common.ErrInvalidState before Finalize or after Release
	Layout() (SetLayout, error)

	// Rebind replaces the image views of a combined image sampler or image array binding and
	// rewrites every frame's set. The number of views must match the binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - views: the new views
	//
	// Returns:
	//   - error: common.ErrInvalidState, common.ErrIndexOutOfRange or common.ErrInvalidDescriptorWrite
	Rebind(binding uint32, views ...renderer.ImageViewHandle) error

	// Declarations returns a copy of the declarations in declaration order.
	//
	// Returns:
	//   - []Declaration: the declarations
	Declarations() []Declaration

	// State returns the lifecycle phase.
	//
	// Returns:
	//   - State: the phase
	State() State

	// Label returns the debug label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// FramesInFlight returns the number of per-frame copies.
	//
	// Returns:
	//   - int: the frame count
	FramesInFlight() int

	// Release destroys every buffer, set, pool and layout the set owns. Images and samplers
	// passed to Add* calls are not released.
	Release()
}

var _ ResourceSet = &resourceSet{}

// NewResourceSet creates an empty resource set in StateDeclaring.
//
// Parameters:
//   - backend: the backend the set allocates from
//   - options: variadic list of ResourceSetBuilderOption functions to configure the set
//
// Returns:
//   - ResourceSet: the new set
func NewResourceSet(backend renderer.RendererBackend, options ...ResourceSetBuilderOption) ResourceSet {
	rs := &resourceSet{
		backend:        backend,
		logger:         logrus.StandardLogger(),
		label:          "resource set",
		framesInFlight: 2,
		stages:         renderer.ShaderStageAllGraphics,
	}
	for _, opt := range options {
		opt(rs)
	}
	return rs
}

func (rs *resourceSet) requireState(want State, op string) error {
	if rs.state != want {
		return fmt.Errorf("resource set %q: %s while %s: %w", rs.label, op, rs.state, common.ErrInvalidState)
	}
	return nil
}

func (rs *resourceSet) AddUniformBuffer(members ...uniform.MemberDeclaration) (int, error) {
	if err := rs.requireState(StateDeclaring, "add uniform buffer"); err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, fmt.Errorf("resource set %q: uniform buffer without members: %w", rs.label, common.ErrInvalidMemberDeclaration)
	}
	layout, err := uniform.NewStructuredBufferLayout(members...)
	if err != nil {
		return 0, fmt.Errorf("resource set %q: uniform buffer %d: %w", rs.label, len(rs.bufferLayouts), err)
	}

	rs.declarations = append(rs.declarations, StructuredBuffer(members...))
	rs.bufferLayouts = append(rs.bufferLayouts, layout)
	return len(rs.bufferLayouts) - 1, nil
}

func (rs *resourceSet) AddCombinedImageSampler(view renderer.ImageViewHandle, sampler renderer.SamplerHandle) error {
	if err := rs.requireState(StateDeclaring, "add combined image sampler"); err != nil {
		return err
	}
	rs.declarations = append(rs.declarations, CombinedImageSampler(view, sampler))
	return nil
}

func (rs *resourceSet) AddImageArray(views ...renderer.ImageViewHandle) error {
	if err := rs.requireState(StateDeclaring, "add image array"); err != nil {
		return err
	}
	if len(views) == 0 {
		return fmt.Errorf("resource set %q: empty image array: %w", rs.label, common.ErrInvalidDescriptorWrite)
	}
	rs.declarations = append(rs.declarations, ImageArray(append([]renderer.ImageViewHandle(nil), views...)...))
	return nil
}

func (rs *resourceSet) AddSampler(sampler renderer.SamplerHandle) error {
	if err := rs.requireState(StateDeclaring, "add sampler"); err != nil {
		return err
	}
	rs.declarations = append(rs.declarations, Sampler(sampler))
	return nil
}

func (rs *resourceSet) Finalize() error {
	if err := rs.requireState(StateDeclaring, "finalize"); err != nil {
		return err
	}
	if rs.framesInFlight < 1 {
		return fmt.Errorf("resource set %q: frames in flight %d: %w", rs.label, rs.framesInFlight, common.ErrIndexOutOfRange)
	}

	if err := rs.build(); err != nil {
		rs.teardown()
		return fmt.Errorf("resource set %q: finalize: %w", rs.label, err)
	}

	rs.state = StateFinalized
	rs.logger.WithFields(logrus.Fields{
		"label":    rs.label,
		"bindings": len(rs.declarations),
		"buffers":  len(rs.buffers),
		"frames":   rs.framesInFlight,
	}).Debug("[resource_set] finalized")
	return nil
}

func (rs *resourceSet) build() error {
	for i, l := range rs.bufferLayouts {
		buf, err := uniform.NewReplicatedBuffer(rs.backend, l, rs.framesInFlight,
			uniform.WithLabel(fmt.Sprintf("%s ubo %d", rs.label, i)),
			uniform.WithCoherentMemory(rs.coherent),
			uniform.WithLogger(rs.logger),
		)
		if err != nil {
			return err
		}
		rs.buffers = append(rs.buffers, buf)
	}

	layout, err := NewSetLayout(rs.backend, rs.label+" layout", rs.declarations, rs.stages)
	if err != nil {
		return err
	}
	rs.layout = layout

	allocator, err := NewSetAllocator(rs.backend, rs.label+" pool",
		PoolSizesFor(rs.declarations, rs.framesInFlight), uint32(rs.framesInFlight), rs.logger)
	if err != nil {
		return err
	}
	rs.allocator = allocator

	for f := 0; f < rs.framesInFlight; f++ {
		set, err := allocator.Allocate(layout)
		if err != nil {
			return err
		}
		rs.sets = append(rs.sets, set)
	}

	rs.writer = NewSetWriter(layout)
	for f := range rs.sets {
		if err := rs.bindFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// bindFrame writes every binding of one frame's set in a single batch.
func (rs *resourceSet) bindFrame(frameIndex int) error {
	rs.writer.Reset()
	defer rs.writer.Reset()

	for _, b := range rs.layout.Bindings() {
		d := rs.declarations[b.Declaration]
		var err error
		switch b.Kind {
		case KindStructuredBuffer:
			var info renderer.BufferInfo
			info, err = rs.buffers[b.CategoryIndex].Descriptor(frameIndex)
			if err == nil {
				err = rs.writer.WriteBuffer(b.Index, info)
			}
		case KindCombinedImageSampler:
			err = rs.writer.WriteImages(b.Index, renderer.ImageInfo{View: d.Views[0], Sampler: d.Sampler})
		case KindImageArray:
			infos := make([]renderer.ImageInfo, len(d.Views))
			for i, v := range d.Views {
				infos[i] = renderer.ImageInfo{View: v}
			}
			err = rs.writer.WriteImages(b.Index, infos...)
		case KindSampler:
			err = rs.writer.WriteImages(b.Index, renderer.ImageInfo{Sampler: d.Sampler})
		}
		if err != nil {
			return fmt.Errorf("frame %d binding %d: %w", frameIndex, b.Index, err)
		}
	}
	return rs.writer.Submit(rs.backend, rs.sets[frameIndex])
}

// teardown releases everything build created, in reverse order.
func (rs *resourceSet) teardown() {
	if rs.allocator != nil {
		rs.allocator.Release()
		rs.allocator = nil
	}
	rs.sets = nil
	rs.writer = nil
	if rs.layout != nil {
		rs.layout.Release()
		rs.layout = nil
	}
	for _, buf := range rs.buffers {
		buf.Release()
	}
	rs.buffers = nil
}

func (rs *resourceSet) WriteMember(buffer int, acc uniform.MemberAccessor, data []byte, frameIndex int, flush bool) error {
	buf, err := rs.UniformBuffer(buffer)
	if err != nil {
		return err
	}
	return buf.WriteMember(acc, data, frameIndex, flush)
}

func (rs *resourceSet) UniformBuffer(buffer int) (uniform.ReplicatedBuffer, error) {
	if err := rs.requireState(StateFinalized, "read uniform buffer"); err != nil {
		return nil, err
	}
	if buffer < 0 || buffer >= len(rs.buffers) {
		return nil, fmt.Errorf("resource set %q: uniform buffer %d of %d: %w", rs.label, buffer, len(rs.buffers), common.ErrIndexOutOfRange)
	}
	return rs.buffers[buffer], nil
}

func (rs *resourceSet) DescriptorSet(frameIndex int) (renderer.SetHandle, error) {
	if err := rs.requireState(StateFinalized, "read descriptor set"); err != nil {
		return 0, err
	}
	if frameIndex < 0 || frameIndex >= len(rs.sets) {
		return 0, fmt.Errorf("resource set %q: frame %d of %d: %w", rs.label, frameIndex, len(rs.sets), common.ErrIndexOutOfRange)
	}
	return rs.sets[frameIndex], nil
}

func (rs *resourceSet) Layout() (SetLayout, error) {
	if err := rs.requireState(StateFinalized, "read layout"); err != nil {
		return nil, err
	}
	return rs.layout, nil
}

func (rs *resourceSet) Rebind(binding uint32, views ...renderer.ImageViewHandle) error {
	if err := rs.requireState(StateFinalized, "rebind"); err != nil {
		return err
	}
	b, err := rs.layout.Binding(binding)
	if err != nil {
		return err
	}
	if b.Kind != KindCombinedImageSampler && b.Kind != KindImageArray {
		return fmt.Errorf("resource set %q: binding %d is a %s: %w", rs.label, binding, b.Kind, common.ErrInvalidDescriptorWrite)
	}
	if uint32(len(views)) != b.Count {
		return fmt.Errorf("resource set %q: binding %d holds %d views, got %d: %w", rs.label, binding, b.Count, len(views), common.ErrInvalidDescriptorWrite)
	}

	previous := rs.declarations[b.Declaration].Views
	rs.declarations[b.Declaration].Views = append([]renderer.ImageViewHandle(nil), views...)
	for f := range rs.sets {
		if err := rs.bindFrame(f); err != nil {
			rs.declarations[b.Declaration].Views = previous
			return err
		}
	}
	return nil
}

func (rs *resourceSet) Declarations() []Declaration {
	out := make([]Declaration, len(rs.declarations))
	copy(out, rs.declarations)
	return out
}

func (rs *resourceSet) State() State {
	return rs.state
}

func (rs *resourceSet) Label() string {
	return rs.label
}

func (rs *resourceSet) FramesInFlight() int {
	return rs.framesInFlight
}

func (rs *resourceSet) Release() {
	if rs.state == StateReleased {
		return
	}
	rs.teardown()
	rs.state = StateReleased
}

// WriteValue writes a Go value into one sub-field of a structured buffer. The value's
// in-memory size must equal the sub-field's packed size, e.g. float32 for Scalar,
// mgl32.Vec3 for Vec3 and mgl32.Mat4 for Mat4.
//
// Parameters:
//   - rs: the finalized resource set
//   - buffer: the structured buffer index
//   - acc: the member, array index and field to write
//   - v: the value
//   - frameIndex: the frame-in-flight index
//   - flush: true to make the write visible to the device immediately
//
// Returns:
//   - error: the same errors as ResourceSet.WriteMember
func WriteValue[T any](rs ResourceSet, buffer int, acc uniform.MemberAccessor, v T, frameIndex int, flush bool) error {
	return rs.WriteMember(buffer, acc, common.StructToBytes(&v), frameIndex, flush)
}
