package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/sirupsen/logrus"
)

// BoundResource is a snapshot of what a host backend set has bound at one binding.
type BoundResource struct {
	Type   DescriptorType
	Buffer BufferInfo
	Images []ImageInfo
}

type hostBuffer struct {
	backend  *hostRendererBackend
	handle   BufferHandle
	label    string
	data     []byte
	coherent bool
	flushes  int
	released bool
}

type hostLayout struct {
	label    string
	bindings map[uint32]LayoutBinding
}

type hostSet struct {
	pool     PoolHandle
	layout   SetLayoutHandle
	bindings map[uint32]LayoutBinding
	bound    map[uint32]BoundResource
}

// hostRendererBackend keeps every resource in process memory. Handles are sequential and never reused.
type hostRendererBackend struct {
	mu     *sync.Mutex
	logger logrus.FieldLogger

	coherent bool
	next     uint64

	buffers  map[BufferHandle]*hostBuffer
	textures map[ImageViewHandle]common.TextureStagingData
	samplers map[SamplerHandle]common.SamplerStagingData
	layouts  map[SetLayoutHandle]*hostLayout
	pools    map[PoolHandle]*setPool
	sets     map[SetHandle]*hostSet

	updateCalls int
}

// HostRendererBackend is a RendererBackend backed by host memory, with inspection helpers
// for tests and tooling.
type HostRendererBackend interface {
	RendererBackend

	// SetBindings returns a snapshot of the resources bound to a set, keyed by binding index.
	//
	// Parameters:
	//   - set: the set to inspect
	//
	// Returns:
	//   - map[uint32]BoundResource: the bound resources, or nil if the set is unknown
	SetBindings(set SetHandle) map[uint32]BoundResource

	// SetLayoutBindings returns the bindings a layout was created with, keyed by binding index.
	//
	// Parameters:
	//   - layout: the layout to inspect
	//
	// Returns:
	//   - map[uint32]LayoutBinding: the bindings, or nil if the layout is unknown
	SetLayoutBindings(layout SetLayoutHandle) map[uint32]LayoutBinding

	// Flushes returns how many non-trivial flushes a buffer has received.
	//
	// Parameters:
	//   - buffer: the buffer to inspect
	//
	// Returns:
	//   - int: the flush count
	Flushes(buffer BufferHandle) int

	// UpdateCalls returns how many UpdateSets submissions the backend has received.
	//
	// Returns:
	//   - int: the submission count
	UpdateCalls() int

	// LiveObjects returns the number of buffers, textures, samplers, layouts, pools and sets still alive.
	//
	// Returns:
	//   - int: the live object count
	LiveObjects() int
}

var _ HostRendererBackend = &hostRendererBackend{}

// NewHostRendererBackend creates a host memory backend.
//
// Parameters:
//   - options: variadic list of RendererBuilderOption functions to configure the backend
//
// Returns:
//   - HostRendererBackend: the created backend
func NewHostRendererBackend(options ...RendererBuilderOption) HostRendererBackend {
	cfg := &backendConfig{
		logger: logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(cfg)
	}
	return newHostRendererBackend(cfg)
}

func newHostRendererBackend(cfg *backendConfig) *hostRendererBackend {
	return &hostRendererBackend{
		mu:       &sync.Mutex{},
		logger:   cfg.logger,
		coherent: cfg.hostCoherent,
		buffers:  make(map[BufferHandle]*hostBuffer),
		textures: make(map[ImageViewHandle]common.TextureStagingData),
		samplers: make(map[SamplerHandle]common.SamplerStagingData),
		layouts:  make(map[SetLayoutHandle]*hostLayout),
		pools:    make(map[PoolHandle]*setPool),
		sets:     make(map[SetHandle]*hostSet),
	}
}

func (b *hostRendererBackend) nextHandle() uint64 {
	b.next++
	return b.next
}

func (b *hostRendererBackend) Type() RendererBackendType {
	return BackendTypeHost
}

func (b *hostRendererBackend) CreateBuffer(desc BufferDescriptor) (MappedBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q: size must be greater than zero", desc.Label)
	}
	if desc.Memory&MemoryHostVisible == 0 {
		return nil, fmt.Errorf("buffer %q: host backend only provides host-visible memory", desc.Label)
	}

	buf := &hostBuffer{
		backend:  b,
		handle:   BufferHandle(b.nextHandle()),
		label:    desc.Label,
		data:     make([]byte, desc.Size),
		coherent: b.coherent || desc.Memory&MemoryHostCoherent != 0,
	}
	b.buffers[buf.handle] = buf
	return buf, nil
}

func (b *hostRendererBackend) CreateTexture(label string, data common.TextureStagingData) (ImageViewHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if data.Width == 0 || data.Height == 0 {
		return 0, fmt.Errorf("texture %q: empty extent %dx%d", label, data.Width, data.Height)
	}
	if want := int(data.Width) * int(data.Height) * 4; len(data.Pixels) != want {
		return 0, fmt.Errorf("texture %q: expected %d bytes of RGBA pixels, got %d", label, want, len(data.Pixels))
	}
	h := ImageViewHandle(b.nextHandle())
	b.textures[h] = data
	return h, nil
}

func (b *hostRendererBackend) CreateSampler(label string, data common.SamplerStagingData) (SamplerHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := SamplerHandle(b.nextHandle())
	b.samplers[h] = data
	return h, nil
}

func (b *hostRendererBackend) ReleaseTexture(view ImageViewHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.textures, view)
}

func (b *hostRendererBackend) ReleaseSampler(sampler SamplerHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.samplers, sampler)
}

func (b *hostRendererBackend) CreateSetLayout(label string, bindings []LayoutBinding) (SetLayoutHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	indexed, err := layoutBindings(label, bindings)
	if err != nil {
		return 0, err
	}
	l := &hostLayout{
		label:    label,
		bindings: indexed,
	}

	h := SetLayoutHandle(b.nextHandle())
	b.layouts[h] = l
	return h, nil
}

func (b *hostRendererBackend) ReleaseSetLayout(layout SetLayoutHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.layouts, layout)
}

func (b *hostRendererBackend) CreatePool(desc PoolDescriptor) (PoolHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := newSetPool(desc)
	if err != nil {
		return 0, err
	}

	h := PoolHandle(b.nextHandle())
	b.pools[h] = p
	return h, nil
}

func (b *hostRendererBackend) AllocateSet(pool PoolHandle, layout SetLayoutHandle) (SetHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pools[pool]
	if !ok {
		return 0, fmt.Errorf("allocate set: unknown pool %d", pool)
	}
	l, ok := b.layouts[layout]
	if !ok {
		return 0, fmt.Errorf("allocate set: unknown layout %d", layout)
	}
	if err := p.reserve(l.bindings); err != nil {
		return 0, err
	}

	h := SetHandle(b.nextHandle())
	b.sets[h] = &hostSet{
		pool:     pool,
		layout:   layout,
		bindings: l.bindings,
		bound:    make(map[uint32]BoundResource),
	}
	p.sets = append(p.sets, h)
	return h, nil
}

func (b *hostRendererBackend) ResetPool(pool PoolHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pools[pool]
	if !ok {
		return fmt.Errorf("reset pool: unknown pool %d", pool)
	}
	b.resetPool(p)
	return nil
}

func (b *hostRendererBackend) resetPool(p *setPool) {
	for _, s := range p.reset() {
		delete(b.sets, s)
	}
}

func (b *hostRendererBackend) ReleasePool(pool PoolHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.pools[pool]; ok {
		b.resetPool(p)
		delete(b.pools, pool)
	}
}

func (b *hostRendererBackend) UpdateSets(writes []SetWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Validate the whole batch before applying any of it.
	for _, w := range writes {
		if err := b.validateWrite(w); err != nil {
			return err
		}
	}
	for _, w := range writes {
		res := BoundResource{Type: w.Type}
		if w.BufferInfo != nil {
			res.Buffer = *w.BufferInfo
		}
		for _, info := range w.ImageInfos {
			res.Images = append(res.Images, *info)
		}
		b.sets[w.Set].bound[w.Binding] = res
	}
	b.updateCalls++
	return nil
}

func (b *hostRendererBackend) validateWrite(w SetWrite) error {
	s, ok := b.sets[w.Set]
	if !ok {
		return fmt.Errorf("update sets: unknown set %d", w.Set)
	}
	if err := checkSetWrite(w, s.bindings); err != nil {
		return err
	}

	if w.Type == DescriptorTypeUniformBuffer {
		buf, ok := b.buffers[w.BufferInfo.Buffer]
		if !ok {
			return fmt.Errorf("update sets: binding %d references unknown buffer %d", w.Binding, w.BufferInfo.Buffer)
		}
		if w.BufferInfo.Offset+w.BufferInfo.Range > uint64(len(buf.data)) {
			return fmt.Errorf("update sets: binding %d range exceeds buffer %q: %w", w.Binding, buf.label, common.ErrIndexOutOfRange)
		}
		return nil
	}

	for _, info := range w.ImageInfos {
		if usesView(w.Type) {
			if _, ok := b.textures[info.View]; !ok {
				return fmt.Errorf("update sets: binding %d references unknown image view %d", w.Binding, info.View)
			}
		}
		if usesSampler(w.Type) {
			if _, ok := b.samplers[info.Sampler]; !ok {
				return fmt.Errorf("update sets: binding %d references unknown sampler %d", w.Binding, info.Sampler)
			}
		}
	}
	return nil
}

func (b *hostRendererBackend) SetBindings(set SetHandle) map[uint32]BoundResource {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sets[set]
	if !ok {
		return nil
	}
	out := make(map[uint32]BoundResource, len(s.bound))
	for k, v := range s.bound {
		out[k] = v
	}
	return out
}

func (b *hostRendererBackend) SetLayoutBindings(layout SetLayoutHandle) map[uint32]LayoutBinding {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.layouts[layout]
	if !ok {
		return nil
	}
	out := make(map[uint32]LayoutBinding, len(l.bindings))
	for k, v := range l.bindings {
		out[k] = v
	}
	return out
}

func (b *hostRendererBackend) Flushes(buffer BufferHandle) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if buf, ok := b.buffers[buffer]; ok {
		return buf.flushes
	}
	return 0
}

func (b *hostRendererBackend) UpdateCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updateCalls
}

func (b *hostRendererBackend) LiveObjects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffers) + len(b.textures) + len(b.samplers) + len(b.layouts) + len(b.pools) + len(b.sets)
}

func (b *hostRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.buffers) + len(b.layouts) + len(b.pools); n > 0 {
		b.logger.WithField("objects", n).Debug("host backend released with live objects")
	}
	for _, buf := range b.buffers {
		buf.released = true
		buf.data = nil
	}
	b.buffers = make(map[BufferHandle]*hostBuffer)
	b.textures = make(map[ImageViewHandle]common.TextureStagingData)
	b.samplers = make(map[SamplerHandle]common.SamplerStagingData)
	b.layouts = make(map[SetLayoutHandle]*hostLayout)
	b.pools = make(map[PoolHandle]*setPool)
	b.sets = make(map[SetHandle]*hostSet)
}

func (hb *hostBuffer) Handle() BufferHandle {
	return hb.handle
}

func (hb *hostBuffer) Size() uint64 {
	return uint64(len(hb.data))
}

func (hb *hostBuffer) Mapped() []byte {
	return hb.data
}

func (hb *hostBuffer) Coherent() bool {
	return hb.coherent
}

func (hb *hostBuffer) Flush(offset, size uint64) error {
	if hb.released {
		return fmt.Errorf("flush buffer %q: %w", hb.label, common.ErrInvalidState)
	}
	if offset+size > uint64(len(hb.data)) {
		return fmt.Errorf("flush buffer %q: range [%d, %d) exceeds size %d: %w", hb.label, offset, offset+size, len(hb.data), common.ErrIndexOutOfRange)
	}
	if hb.coherent {
		return nil
	}

	hb.backend.mu.Lock()
	hb.flushes++
	hb.backend.mu.Unlock()
	return nil
}

func (hb *hostBuffer) Release() {
	if hb.released {
		return
	}
	hb.backend.mu.Lock()
	defer hb.backend.mu.Unlock()

	hb.released = true
	delete(hb.backend.buffers, hb.handle)
}
