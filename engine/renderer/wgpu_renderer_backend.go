package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/sirupsen/logrus"
)

type wgpuBuffer struct {
	backend  *wgpuRendererBackendImpl
	handle   BufferHandle
	label    string
	buffer   *wgpu.Buffer
	size     uint64
	shadow   []byte
	released bool
}

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

type wgpuLayout struct {
	layout   *wgpu.BindGroupLayout
	bindings map[uint32]LayoutBinding
}

type wgpuSet struct {
	pool     PoolHandle
	bindings map[uint32]LayoutBinding
	provider bind_group_provider.BindGroupProvider
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	logger logrus.FieldLogger
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	next uint64

	buffers  map[BufferHandle]*wgpuBuffer
	textures map[ImageViewHandle]*wgpuTexture
	samplers map[SamplerHandle]*wgpu.Sampler
	layouts  map[SetLayoutHandle]*wgpuLayout
	pools    map[PoolHandle]*setPool
	sets     map[SetHandle]*wgpuSet
}

// WGPURendererBackend is the WebGPU RendererBackend. Resource sets map to bind groups,
// which draw code fetches through BindGroup.
type WGPURendererBackend interface {
	RendererBackend

	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter
	Surface() *wgpu.Surface

	// BindGroup returns the bind group built for a resource set.
	// Returns nil until every binding of the set has been written.
	//
	// Parameters:
	//   - set: the resource set
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup(set SetHandle) *wgpu.BindGroup

	// BindGroupLayout returns the native layout behind a set layout handle.
	//
	// Parameters:
	//   - layout: the set layout
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the bind group layout or nil
	BindGroupLayout(layout SetLayoutHandle) *wgpu.BindGroupLayout

	// WriteBuffers writes all staged buffer writes to the GPU queue.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)
}

var _ WGPURendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(cfg *backendConfig) (RendererBackend, error) {
	w := &wgpuRendererBackendImpl{
		mu:       &sync.Mutex{},
		logger:   cfg.logger,
		instance: wgpu.CreateInstance(nil),
		buffers:  make(map[BufferHandle]*wgpuBuffer),
		textures: make(map[ImageViewHandle]*wgpuTexture),
		samplers: make(map[SamplerHandle]*wgpu.Sampler),
		layouts:  make(map[SetLayoutHandle]*wgpuLayout),
		pools:    make(map[PoolHandle]*setPool),
		sets:     make(map[SetHandle]*wgpuSet),
	}
	if cfg.surfaceDescriptor != nil {
		w.surface = w.instance.CreateSurface(cfg.surfaceDescriptor)
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		w.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Descriptor Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		w.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	w.logger.WithField("fallback", cfg.forceFallbackAdapter).Info("[wgpu] device acquired")
	return w, nil
}

func (b *wgpuRendererBackendImpl) nextHandle() uint64 {
	b.next++
	return b.next
}

func (b *wgpuRendererBackendImpl) Type() RendererBackendType {
	return BackendTypeWGPU
}

func (b *wgpuRendererBackendImpl) CreateBuffer(desc BufferDescriptor) (MappedBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q: size must be greater than zero", desc.Label)
	}

	usage := wgpu.BufferUsageCopyDst
	if desc.Usage&BufferUsageUniform != 0 {
		usage |= wgpu.BufferUsageUniform
	}
	if desc.Usage&BufferUsageStorage != 0 {
		usage |= wgpu.BufferUsageStorage
	}

	// Queue writes move whole 4-byte words, so the native buffer and its host copy are padded.
	padded := common.RoundUpToMultiple(desc.Size, 4)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  padded,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("buffer %q: %w", desc.Label, err)
	}

	wb := &wgpuBuffer{
		backend: b,
		handle:  BufferHandle(b.nextHandle()),
		label:   desc.Label,
		buffer:  buf,
		size:    desc.Size,
		shadow:  make([]byte, padded),
	}
	b.buffers[wb.handle] = wb
	return wb, nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(label string, data common.TextureStagingData) (ImageViewHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label + " Texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return 0, err
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * 4,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return 0, err
	}

	h := ImageViewHandle(b.nextHandle())
	b.textures[h] = &wgpuTexture{texture: tex, view: view}
	return h, nil
}

func (b *wgpuRendererBackendImpl) CreateSampler(label string, data common.SamplerStagingData) (SamplerHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label + " Sampler",
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(data.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(data.MaxAnisotropy, 1),
		Compare:       data.Compare,
	})
	if err != nil {
		return 0, err
	}

	h := SamplerHandle(b.nextHandle())
	b.samplers[h] = samp
	return h, nil
}

func (b *wgpuRendererBackendImpl) ReleaseTexture(view ImageViewHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.textures[view]; ok {
		t.view.Release()
		t.texture.Release()
		delete(b.textures, view)
	}
}

func (b *wgpuRendererBackendImpl) ReleaseSampler(sampler SamplerHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.samplers[sampler]; ok {
		s.Release()
		delete(b.samplers, sampler)
	}
}

// wgpuShaderStages maps stage bits to WebGPU visibility flags.
func wgpuShaderStages(stages ShaderStage) wgpu.ShaderStage {
	visibility := wgpu.ShaderStageNone
	if stages&ShaderStageVertex != 0 {
		visibility |= wgpu.ShaderStageVertex
	}
	if stages&ShaderStageFragment != 0 {
		visibility |= wgpu.ShaderStageFragment
	}
	if stages&ShaderStageCompute != 0 {
		visibility |= wgpu.ShaderStageCompute
	}
	return visibility
}

// wgpuLayoutEntry converts a binding to a bind group layout entry. WebGPU has no combined
// image samplers and no plain texture binding arrays, so those are rejected.
func wgpuLayoutEntry(lb LayoutBinding) (wgpu.BindGroupLayoutEntry, error) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    lb.Binding,
		Visibility: wgpuShaderStages(lb.Stages),
	}

	switch lb.Type {
	case DescriptorTypeUniformBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case DescriptorTypeSampledImage:
		if lb.Count > 1 {
			return entry, fmt.Errorf("binding %d: image array of %d: %w", lb.Binding, lb.Count, common.ErrUnsupportedDescriptor)
		}
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case DescriptorTypeSampler:
		if lb.Count > 1 {
			return entry, fmt.Errorf("binding %d: sampler array of %d: %w", lb.Binding, lb.Count, common.ErrUnsupportedDescriptor)
		}
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	default:
		return entry, fmt.Errorf("binding %d: %s: %w", lb.Binding, lb.Type, common.ErrUnsupportedDescriptor)
	}
	return entry, nil
}

func (b *wgpuRendererBackendImpl) CreateSetLayout(label string, bindings []LayoutBinding) (SetLayoutHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	indexed, err := layoutBindings(label, bindings)
	if err != nil {
		return 0, err
	}

	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	for _, lb := range bindings {
		entry, err := wgpuLayoutEntry(lb)
		if err != nil {
			return 0, fmt.Errorf("set layout %q: %w", label, err)
		}
		entries = append(entries, entry)
	}

	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return 0, fmt.Errorf("set layout %q: %w", label, err)
	}

	h := SetLayoutHandle(b.nextHandle())
	b.layouts[h] = &wgpuLayout{layout: layout, bindings: indexed}
	return h, nil
}

func (b *wgpuRendererBackendImpl) ReleaseSetLayout(layout SetLayoutHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.layouts[layout]; ok {
		l.layout.Release()
		delete(b.layouts, layout)
	}
}

// CreatePool only records capacity. WebGPU bind groups are not pool allocated.
func (b *wgpuRendererBackendImpl) CreatePool(desc PoolDescriptor) (PoolHandle, error) {
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

func (b *wgpuRendererBackendImpl) AllocateSet(pool PoolHandle, layout SetLayoutHandle) (SetHandle, error) {
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
	b.sets[h] = &wgpuSet{
		pool:     pool,
		bindings: l.bindings,
		provider: bind_group_provider.NewBindGroupProvider(
			fmt.Sprintf("%s set %d", p.label, h),
			bind_group_provider.WithBindGroupLayout(l.layout),
		),
	}
	p.sets = append(p.sets, h)
	return h, nil
}

func (b *wgpuRendererBackendImpl) ResetPool(pool PoolHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pools[pool]
	if !ok {
		return fmt.Errorf("reset pool: unknown pool %d", pool)
	}
	b.resetPool(p)
	return nil
}

func (b *wgpuRendererBackendImpl) resetPool(p *setPool) {
	for _, h := range p.reset() {
		if s, ok := b.sets[h]; ok {
			s.provider.Release()
			delete(b.sets, h)
		}
	}
}

func (b *wgpuRendererBackendImpl) ReleasePool(pool PoolHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.pools[pool]; ok {
		b.resetPool(p)
		delete(b.pools, pool)
	}
}

func (b *wgpuRendererBackendImpl) UpdateSets(writes []SetWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		if err := b.validateWrite(w); err != nil {
			return err
		}
	}

	touched := make(map[SetHandle]*wgpuSet)
	for _, w := range writes {
		s := b.sets[w.Set]
		binding := int(w.Binding)
		switch w.Type {
		case DescriptorTypeUniformBuffer:
			buf := b.buffers[w.BufferInfo.Buffer]
			s.provider.SetBuffer(binding, buf.buffer, w.BufferInfo.Offset, w.BufferInfo.Range)
		case DescriptorTypeSampledImage:
			s.provider.SetTextureView(binding, b.textures[w.ImageInfos[0].View].view)
		case DescriptorTypeSampler:
			s.provider.SetSampler(binding, b.samplers[w.ImageInfos[0].Sampler])
		}
		touched[w.Set] = s
	}

	var errs []error
	for h, s := range touched {
		if s.provider.Staged() < len(s.bindings) {
			continue
		}
		if err := s.provider.Rebuild(b.device); err != nil {
			errs = append(errs, fmt.Errorf("set %d: %w", h, err))
		}
	}
	return errors.Join(errs...)
}

func (b *wgpuRendererBackendImpl) validateWrite(w SetWrite) error {
	s, ok := b.sets[w.Set]
	if !ok {
		return fmt.Errorf("update sets: unknown set %d", w.Set)
	}
	if err := checkSetWrite(w, s.bindings); err != nil {
		return err
	}

	switch w.Type {
	case DescriptorTypeUniformBuffer:
		buf, ok := b.buffers[w.BufferInfo.Buffer]
		if !ok {
			return fmt.Errorf("update sets: binding %d references unknown buffer %d", w.Binding, w.BufferInfo.Buffer)
		}
		if w.BufferInfo.Offset+w.BufferInfo.Range > buf.size {
			return fmt.Errorf("update sets: binding %d range exceeds buffer %q: %w", w.Binding, buf.label, common.ErrIndexOutOfRange)
		}
	case DescriptorTypeSampledImage:
		if _, ok := b.textures[w.ImageInfos[0].View]; !ok {
			return fmt.Errorf("update sets: binding %d references unknown image view %d", w.Binding, w.ImageInfos[0].View)
		}
	case DescriptorTypeSampler:
		if _, ok := b.samplers[w.ImageInfos[0].Sampler]; !ok {
			return fmt.Errorf("update sets: binding %d references unknown sampler %d", w.Binding, w.ImageInfos[0].Sampler)
		}
	default:
		return fmt.Errorf("update sets: binding %d: %s: %w", w.Binding, w.Type, common.ErrUnsupportedDescriptor)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) BindGroup(set SetHandle) *wgpu.BindGroup {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sets[set]; ok {
		return s.provider.BindGroup()
	}
	return nil
}

func (b *wgpuRendererBackendImpl) BindGroupLayout(layout SetLayoutHandle) *wgpu.BindGroupLayout {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.layouts[layout]; ok {
		return l.layout
	}
	return nil
}

func (b *wgpuRendererBackendImpl) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeBuffers(writes)
}

func (b *wgpuRendererBackendImpl) writeBuffers(writes []bind_group_provider.BufferWrite) {
	for _, w := range writes {
		if w.Buffer == nil || len(w.Data) == 0 {
			continue
		}
		b.queue.WriteBuffer(w.Buffer, w.Offset, w.Data)
	}
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Instance() *wgpu.Instance {
	return b.instance
}

func (b *wgpuRendererBackendImpl) Adapter() *wgpu.Adapter {
	return b.adapter
}

func (b *wgpuRendererBackendImpl) Surface() *wgpu.Surface {
	return b.surface
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for h, p := range b.pools {
		b.resetPool(p)
		delete(b.pools, h)
	}
	for h, l := range b.layouts {
		l.layout.Release()
		delete(b.layouts, h)
	}
	for h, s := range b.samplers {
		s.Release()
		delete(b.samplers, h)
	}
	for h, t := range b.textures {
		t.view.Release()
		t.texture.Release()
		delete(b.textures, h)
	}
	for h, buf := range b.buffers {
		buf.buffer.Release()
		buf.released = true
		delete(b.buffers, h)
	}

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func (wb *wgpuBuffer) Handle() BufferHandle {
	return wb.handle
}

func (wb *wgpuBuffer) Size() uint64 {
	return wb.size
}

func (wb *wgpuBuffer) Mapped() []byte {
	return wb.shadow[:wb.size]
}

// Coherent is always false: host writes reach the GPU only through Flush.
func (wb *wgpuBuffer) Coherent() bool {
	return false
}

func (wb *wgpuBuffer) Flush(offset, size uint64) error {
	if offset+size > wb.size {
		return fmt.Errorf("flush buffer %q: range [%d, %d) exceeds size %d: %w", wb.label, offset, offset+size, wb.size, common.ErrIndexOutOfRange)
	}

	wb.backend.mu.Lock()
	defer wb.backend.mu.Unlock()

	if wb.released {
		return fmt.Errorf("flush buffer %q: %w", wb.label, common.ErrInvalidState)
	}
	wb.backend.writeBuffers([]bind_group_provider.BufferWrite{
		bind_group_provider.Aligned(wb.buffer, wb.shadow, offset, size),
	})
	return nil
}

func (wb *wgpuBuffer) Release() {
	wb.backend.mu.Lock()
	defer wb.backend.mu.Unlock()

	if wb.released {
		return
	}
	wb.released = true
	wb.buffer.Release()
	delete(wb.backend.buffers, wb.handle)
}
