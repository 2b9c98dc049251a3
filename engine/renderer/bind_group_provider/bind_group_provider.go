package bind_group_provider

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// bufferBinding is a buffer region bound at one binding index.
type bufferBinding struct {
	buffer *wgpu.Buffer
	offset uint64
	size   uint64
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bindGroupLayout is the layout the bind group is created against. It is owned by the renderer backend, not the provider.
	bindGroupLayout *wgpu.BindGroupLayout
	// bindGroup is the GPU bind group built from the bound resources, or nil until Rebuild succeeds.
	bindGroup *wgpu.BindGroup

	// buffers holds the buffer regions bound to this provider, keyed by binding index.
	buffers map[int]bufferBinding
	// textureViews holds the texture views bound to this provider, keyed by binding index.
	textureViews map[int]*wgpu.TextureView
	// samplers holds the samplers bound to this provider, keyed by binding index.
	samplers map[int]*wgpu.Sampler

	// generation counts successful rebuilds.
	generation int
}

// BindGroupProvider stages the resources of one resource set and turns them into a wgpu bind group.
//
// Usage pattern:
//  1. The WebGPU backend creates a provider per allocated set, carrying the set's layout
//  2. Descriptor writes stage buffers, texture views and samplers on it by binding index
//  3. Once every layout binding is staged, the backend calls Rebuild with its device
//  4. Draw code binds BindGroup()
type BindGroupProvider interface {
	// Release releases the bind group held by this provider. Staged resources and the layout
	// are owned elsewhere and are left alone.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the built bind group for shader binding.
	// Returns nil until Rebuild has succeeded.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the layout the provider's bind group is built against.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the bind group layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the buffer staged at a binding, or nil if none.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// TextureView returns the texture view staged at a binding, or nil if none.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.TextureView: the texture view or nil
	TextureView(binding int) *wgpu.TextureView

	// Sampler returns the sampler staged at a binding, or nil if none.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler or nil
	Sampler(binding int) *wgpu.Sampler

	// SetBuffer stages a buffer region at a binding, replacing anything staged there before.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	//   - offset: the first byte of the bound range
	//   - size: the length of the bound range, or wgpu.WholeSize
	SetBuffer(binding int, buf *wgpu.Buffer, offset, size uint64)

	// SetTextureView stages a texture view at a binding, replacing anything staged there before.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view
	SetTextureView(binding int, tv *wgpu.TextureView)

	// SetSampler stages a sampler at a binding, replacing anything staged there before.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler
	SetSampler(binding int, s *wgpu.Sampler)

	// Staged returns the number of distinct binding indices with a staged resource.
	//
	// Returns:
	//   - int: the staged binding count
	Staged() int

	// Entries converts the staged resources to bind group entries ordered by binding index.
	//
	// Returns:
	//   - []wgpu.BindGroupEntry: the entries
	Entries() []wgpu.BindGroupEntry

	// Rebuild creates a new bind group from the staged resources and releases the previous one.
	//
	// Parameters:
	//   - device: the device to create the bind group on
	//
	// Returns:
	//   - error: an error if no layout is set or bind group creation fails
	Rebuild(device *wgpu.Device) error

	// Generation returns how many times the bind group has been rebuilt.
	//
	// Returns:
	//   - int: the rebuild count
	Generation() int
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: a debug label for the provider
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[int]bufferBinding),
		textureViews: make(map[int]*wgpu.TextureView),
		samplers:     make(map[int]*wgpu.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding].buffer
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) clear(binding int) {
	delete(p.buffers, binding)
	delete(p.textureViews, binding)
	delete(p.samplers, binding)
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer, offset, size uint64) {
	p.clear(binding)
	p.buffers[binding] = bufferBinding{buffer: buf, offset: offset, size: size}
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	p.clear(binding)
	p.textureViews[binding] = tv
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler) {
	p.clear(binding)
	p.samplers[binding] = s
}

func (p *bindGroupProvider) Staged() int {
	return len(p.buffers) + len(p.textureViews) + len(p.samplers)
}

func (p *bindGroupProvider) Entries() []wgpu.BindGroupEntry {
	entries := make([]wgpu.BindGroupEntry, 0, p.Staged())
	for binding, b := range p.buffers {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(binding),
			Buffer:  b.buffer,
			Offset:  b.offset,
			Size:    b.size,
		})
	}
	for binding, tv := range p.textureViews {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     uint32(binding),
			TextureView: tv,
		})
	}
	for binding, s := range p.samplers {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(binding),
			Sampler: s,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Binding < entries[j].Binding
	})
	return entries
}

func (p *bindGroupProvider) Rebuild(device *wgpu.Device) error {
	if p.bindGroupLayout == nil {
		return errNoLayout(p.label)
	}

	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.label + " Bind Group",
		Layout:  p.bindGroupLayout,
		Entries: p.Entries(),
	})
	if err != nil {
		return err
	}

	if p.bindGroup != nil {
		p.bindGroup.Release()
	}
	p.bindGroup = bindGroup
	p.generation++
	return nil
}

func (p *bindGroupProvider) Generation() int {
	return p.generation
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}
