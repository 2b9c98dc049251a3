package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
)

// RendererBackendType identifies the GPU backend implementation behind a RendererBackend.
type RendererBackendType int

const (
	// BackendTypeHost keeps every resource in host memory. Used for tests, tooling and headless runs.
	BackendTypeHost RendererBackendType = iota

	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU
)

// String returns the configuration name of the backend type.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeHost:
		return "host"
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return fmt.Sprintf("RendererBackendType(%d)", int(t))
	}
}

// ParseBackendType maps a configuration name ("host", "wgpu") to its RendererBackendType.
//
// Parameters:
//   - name: the backend name
//
// Returns:
//   - RendererBackendType: the matching type
//   - error: an error if the name is not a known backend
func ParseBackendType(name string) (RendererBackendType, error) {
	switch name {
	case "host", "":
		return BackendTypeHost, nil
	case "wgpu", "webgpu":
		return BackendTypeWGPU, nil
	}
	return BackendTypeHost, fmt.Errorf("unknown renderer backend %q", name)
}

// The handle types below are opaque identifiers owned by a RendererBackend. Descriptor code never
// dereferences them, it only threads them through to the backend. The zero value is the null handle.
type (
	// BufferHandle identifies a GPU buffer.
	BufferHandle uint64
	// ImageViewHandle identifies an image view that can be sampled by shaders.
	ImageViewHandle uint64
	// SamplerHandle identifies a sampler object.
	SamplerHandle uint64
	// SetLayoutHandle identifies a resource set layout.
	SetLayoutHandle uint64
	// PoolHandle identifies a resource set pool.
	PoolHandle uint64
	// SetHandle identifies one allocated resource set.
	SetHandle uint64
)

// DescriptorType is the kind of resource bound at a layout binding.
type DescriptorType int

const (
	// DescriptorTypeUniformBuffer binds a uniform (structured) buffer.
	DescriptorTypeUniformBuffer DescriptorType = iota
	// DescriptorTypeCombinedImageSampler binds an image view together with a sampler.
	DescriptorTypeCombinedImageSampler
	// DescriptorTypeSampledImage binds an image view without a sampler.
	DescriptorTypeSampledImage
	// DescriptorTypeSampler binds a sampler without an image.
	DescriptorTypeSampler
)

// String returns a readable name for the descriptor type.
func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeUniformBuffer:
		return "uniform_buffer"
	case DescriptorTypeCombinedImageSampler:
		return "combined_image_sampler"
	case DescriptorTypeSampledImage:
		return "sampled_image"
	case DescriptorTypeSampler:
		return "sampler"
	default:
		return fmt.Sprintf("DescriptorType(%d)", int(t))
	}
}

// ShaderStage is a bit set of shader stages that may access a binding.
type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute

	// ShaderStageAllGraphics covers every graphics stage.
	ShaderStageAllGraphics = ShaderStageVertex | ShaderStageFragment
)

// BufferUsage is a bit set describing how a buffer will be bound.
type BufferUsage uint32

const (
	BufferUsageUniform BufferUsage = 1 << iota
	BufferUsageStorage
	BufferUsageCopyDst
)

// MemoryFlags is a bit set of memory properties requested for a buffer.
type MemoryFlags uint32

const (
	// MemoryHostVisible requests memory the host can map and write.
	MemoryHostVisible MemoryFlags = 1 << iota
	// MemoryHostCoherent requests memory whose host writes are visible to the device without an explicit flush.
	MemoryHostCoherent
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is a debug label for the buffer.
	Label string
	// Size is the buffer size in bytes.
	Size uint64
	// Usage describes how the buffer will be bound.
	Usage BufferUsage
	// Memory describes the memory properties the buffer must be backed by.
	Memory MemoryFlags
}

// MappedBuffer is a buffer that stays mapped into host memory for its whole lifetime.
type MappedBuffer interface {
	// Handle returns the opaque handle used to bind this buffer in descriptor writes.
	//
	// Returns:
	//   - BufferHandle: the buffer handle
	Handle() BufferHandle

	// Size returns the buffer size in bytes.
	//
	// Returns:
	//   - uint64: the size in bytes
	Size() uint64

	// Mapped returns the persistently mapped host view of the buffer memory.
	// The slice stays valid until Release is called.
	//
	// Returns:
	//   - []byte: the mapped bytes, exactly Size() long
	Mapped() []byte

	// Coherent reports whether host writes become visible without Flush.
	//
	// Returns:
	//   - bool: true for host-coherent memory
	Coherent() bool

	// Flush makes host writes in [offset, offset+size) visible to the device.
	// It is a no-op for coherent memory.
	//
	// Parameters:
	//   - offset: the first byte of the range
	//   - size: the length of the range in bytes
	//
	// Returns:
	//   - error: an error if the range lies outside the buffer or the upload fails
	Flush(offset, size uint64) error

	// Release unmaps and destroys the buffer. The mapped slice must not be used afterwards.
	Release()
}

// LayoutBinding describes one binding slot of a resource set layout.
type LayoutBinding struct {
	// Binding is the slot index shaders address this resource by.
	Binding uint32
	// Type is the descriptor type bound at the slot.
	Type DescriptorType
	// Count is the number of descriptors at the slot (array length for image arrays).
	Count uint32
	// Stages is the set of shader stages allowed to access the slot.
	Stages ShaderStage
}

// PoolSize is the descriptor capacity of one type within a pool.
type PoolSize struct {
	// Type is the descriptor type.
	Type DescriptorType
	// Count is the number of descriptors of this type the pool can hand out.
	Count uint32
}

// PoolDescriptor describes a resource set pool to create.
type PoolDescriptor struct {
	// Label is a debug label for the pool.
	Label string
	// MaxSets is the number of sets the pool can allocate before a reset.
	MaxSets uint32
	// Sizes is the per-type descriptor capacity.
	Sizes []PoolSize
}

// BufferInfo is the buffer region bound by a descriptor write.
type BufferInfo struct {
	// Buffer is the bound buffer.
	Buffer BufferHandle
	// Offset is the first byte of the bound range.
	Offset uint64
	// Range is the length of the bound range in bytes.
	Range uint64
}

// ImageInfo is the image view and/or sampler bound by a descriptor write.
type ImageInfo struct {
	// View is the bound image view, or the null handle for sampler-only bindings.
	View ImageViewHandle
	// Sampler is the bound sampler, or the null handle for image-only bindings.
	Sampler SamplerHandle
}

// SetWrite binds concrete resources to one binding of an allocated set.
// Exactly one of BufferInfo or ImageInfos is populated, depending on Type.
// The referenced info records must stay alive and unmodified until UpdateSets returns.
type SetWrite struct {
	// Set is the destination set.
	Set SetHandle
	// Binding is the destination binding slot.
	Binding uint32
	// Type is the descriptor type of the binding.
	Type DescriptorType
	// BufferInfo is the buffer region for uniform buffer bindings.
	BufferInfo *BufferInfo
	// ImageInfos are the image/sampler records for image and sampler bindings, one per descriptor.
	ImageInfos []*ImageInfo
}

// RendererBackend is the device/allocator collaborator of the descriptor subsystem.
// It owns every native object and hands out opaque handles for them.
type RendererBackend interface {
	// Type returns the backend implementation type.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	Type() RendererBackendType

	// CreateBuffer creates a persistently mapped buffer.
	//
	// Parameters:
	//   - desc: the buffer description
	//
	// Returns:
	//   - MappedBuffer: the created buffer
	//   - error: an error if the buffer could not be created
	CreateBuffer(desc BufferDescriptor) (MappedBuffer, error)

	// CreateTexture uploads RGBA pixel data and returns a view of the resulting image.
	//
	// Parameters:
	//   - label: a debug label
	//   - data: the staged RGBA pixels
	//
	// Returns:
	//   - ImageViewHandle: the image view handle
	//   - error: an error if the image could not be created
	CreateTexture(label string, data common.TextureStagingData) (ImageViewHandle, error)

	// CreateSampler creates a sampler.
	//
	// Parameters:
	//   - label: a debug label
	//   - data: the sampler configuration
	//
	// Returns:
	//   - SamplerHandle: the sampler handle
	//   - error: an error if the sampler could not be created
	CreateSampler(label string, data common.SamplerStagingData) (SamplerHandle, error)

	// ReleaseTexture destroys an image view created by CreateTexture.
	//
	// Parameters:
	//   - view: the image view to destroy
	ReleaseTexture(view ImageViewHandle)

	// ReleaseSampler destroys a sampler created by CreateSampler.
	//
	// Parameters:
	//   - sampler: the sampler to destroy
	ReleaseSampler(sampler SamplerHandle)

	// CreateSetLayout creates an immutable resource set layout from its bindings.
	//
	// Parameters:
	//   - label: a debug label
	//   - bindings: the binding slots, each binding index used at most once
	//
	// Returns:
	//   - SetLayoutHandle: the layout handle
	//   - error: an error if the layout is invalid or could not be created
	CreateSetLayout(label string, bindings []LayoutBinding) (SetLayoutHandle, error)

	// ReleaseSetLayout destroys a layout.
	//
	// Parameters:
	//   - layout: the layout to destroy
	ReleaseSetLayout(layout SetLayoutHandle)

	// CreatePool creates a fixed-capacity resource set pool. Pools never grow.
	//
	// Parameters:
	//   - desc: the pool description
	//
	// Returns:
	//   - PoolHandle: the pool handle
	//   - error: an error if the pool could not be created
	CreatePool(desc PoolDescriptor) (PoolHandle, error)

	// AllocateSet allocates one set with the given layout from a pool.
	//
	// Parameters:
	//   - pool: the pool to allocate from
	//   - layout: the layout of the new set
	//
	// Returns:
	//   - SetHandle: the new set
	//   - error: common.ErrPoolExhausted if the pool is out of capacity
	AllocateSet(pool PoolHandle, layout SetLayoutHandle) (SetHandle, error)

	// ResetPool returns every set allocated from the pool. Their handles become invalid.
	//
	// Parameters:
	//   - pool: the pool to reset
	//
	// Returns:
	//   - error: an error if the pool is unknown
	ResetPool(pool PoolHandle) error

	// ReleasePool destroys a pool and every set allocated from it.
	//
	// Parameters:
	//   - pool: the pool to destroy
	ReleasePool(pool PoolHandle)

	// UpdateSets applies a batch of descriptor writes in one submission.
	//
	// Parameters:
	//   - writes: the writes to apply, possibly targeting several sets
	//
	// Returns:
	//   - error: an error if any write targets an unknown set or binding
	UpdateSets(writes []SetWrite) error

	// Release destroys the backend and any native objects still alive.
	Release()
}
