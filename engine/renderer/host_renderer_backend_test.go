package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTexture(t *testing.T, b RendererBackend) ImageViewHandle {
	t.Helper()
	view, err := b.CreateTexture("tex", common.TextureStagingData{
		Pixels: make([]byte, 2*2*4),
		Width:  2,
		Height: 2,
	})
	require.NoError(t, err)
	return view
}

func TestNewRendererBackendHost(t *testing.T) {
	b, err := NewRendererBackend(BackendTypeHost)
	require.NoError(t, err)
	defer b.Release()

	assert.Equal(t, BackendTypeHost, b.Type())
	_, ok := b.(HostRendererBackend)
	assert.True(t, ok)
}

func TestParseBackendType(t *testing.T) {
	bt, err := ParseBackendType("wgpu")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeWGPU, bt)

	bt, err = ParseBackendType("")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeHost, bt)

	_, err = ParseBackendType("metal")
	assert.Error(t, err)
	assert.Equal(t, "host", BackendTypeHost.String())
}

func TestHostBufferFlush(t *testing.T) {
	b := NewHostRendererBackend()
	defer b.Release()

	buf, err := b.CreateBuffer(BufferDescriptor{Label: "ubo", Size: 64, Usage: BufferUsageUniform, Memory: MemoryHostVisible})
	require.NoError(t, err)
	assert.Len(t, buf.Mapped(), 64)
	assert.False(t, buf.Coherent())

	require.NoError(t, buf.Flush(0, 16))
	require.NoError(t, buf.Flush(48, 16))
	assert.Equal(t, 2, b.Flushes(buf.Handle()))

	err = buf.Flush(60, 8)
	assert.ErrorIs(t, err, common.ErrIndexOutOfRange)

	buf.Release()
	assert.ErrorIs(t, buf.Flush(0, 4), common.ErrInvalidState)
}

func TestHostBufferCoherent(t *testing.T) {
	b := NewHostRendererBackend(WithHostCoherent(true))
	defer b.Release()

	buf, err := b.CreateBuffer(BufferDescriptor{Label: "ubo", Size: 16, Memory: MemoryHostVisible})
	require.NoError(t, err)
	assert.True(t, buf.Coherent())
	require.NoError(t, buf.Flush(0, 16))
	assert.Zero(t, b.Flushes(buf.Handle()))
}

func TestHostBufferRequiresHostVisible(t *testing.T) {
	b := NewHostRendererBackend()
	_, err := b.CreateBuffer(BufferDescriptor{Label: "device-local", Size: 16})
	assert.Error(t, err)
}

func TestHostSetLayoutRejectsDuplicateBinding(t *testing.T) {
	b := NewHostRendererBackend()
	_, err := b.CreateSetLayout("dup", []LayoutBinding{
		{Binding: 0, Type: DescriptorTypeUniformBuffer, Count: 1},
		{Binding: 0, Type: DescriptorTypeSampler, Count: 1},
	})
	assert.Error(t, err)

	_, err = b.CreateSetLayout("empty", []LayoutBinding{{Binding: 0, Type: DescriptorTypeSampler}})
	assert.Error(t, err)
}

func TestHostPoolExhaustion(t *testing.T) {
	b := NewHostRendererBackend()
	defer b.Release()

	layout, err := b.CreateSetLayout("layout", []LayoutBinding{
		{Binding: 0, Type: DescriptorTypeUniformBuffer, Count: 1},
		{Binding: 1, Type: DescriptorTypeSampledImage, Count: 4},
	})
	require.NoError(t, err)

	t.Run("max sets", func(t *testing.T) {
		pool, err := b.CreatePool(PoolDescriptor{Label: "pool", MaxSets: 2, Sizes: []PoolSize{
			{Type: DescriptorTypeUniformBuffer, Count: 8},
			{Type: DescriptorTypeSampledImage, Count: 32},
		}})
		require.NoError(t, err)

		_, err = b.AllocateSet(pool, layout)
		require.NoError(t, err)
		_, err = b.AllocateSet(pool, layout)
		require.NoError(t, err)
		_, err = b.AllocateSet(pool, layout)
		assert.ErrorIs(t, err, common.ErrPoolExhausted)

		require.NoError(t, b.ResetPool(pool))
		_, err = b.AllocateSet(pool, layout)
		assert.NoError(t, err)
	})

	t.Run("descriptor count", func(t *testing.T) {
		pool, err := b.CreatePool(PoolDescriptor{Label: "small", MaxSets: 4, Sizes: []PoolSize{
			{Type: DescriptorTypeUniformBuffer, Count: 4},
			{Type: DescriptorTypeSampledImage, Count: 6},
		}})
		require.NoError(t, err)

		_, err = b.AllocateSet(pool, layout)
		require.NoError(t, err)
		_, err = b.AllocateSet(pool, layout)
		assert.ErrorIs(t, err, common.ErrPoolExhausted)
	})
}

func TestHostUpdateSets(t *testing.T) {
	b := NewHostRendererBackend()
	defer b.Release()

	buf, err := b.CreateBuffer(BufferDescriptor{Label: "ubo", Size: 128, Memory: MemoryHostVisible})
	require.NoError(t, err)
	view := newTestTexture(t, b)
	samp, err := b.CreateSampler("samp", common.SamplerStagingData{})
	require.NoError(t, err)

	layout, err := b.CreateSetLayout("layout", []LayoutBinding{
		{Binding: 0, Type: DescriptorTypeUniformBuffer, Count: 1},
		{Binding: 1, Type: DescriptorTypeCombinedImageSampler, Count: 1},
		{Binding: 2, Type: DescriptorTypeSampler, Count: 1},
	})
	require.NoError(t, err)
	pool, err := b.CreatePool(PoolDescriptor{Label: "pool", MaxSets: 1, Sizes: []PoolSize{
		{Type: DescriptorTypeUniformBuffer, Count: 1},
		{Type: DescriptorTypeCombinedImageSampler, Count: 1},
		{Type: DescriptorTypeSampler, Count: 1},
	}})
	require.NoError(t, err)
	set, err := b.AllocateSet(pool, layout)
	require.NoError(t, err)

	bufInfo := &BufferInfo{Buffer: buf.Handle(), Offset: 0, Range: 128}
	writes := []SetWrite{
		{Set: set, Binding: 0, Type: DescriptorTypeUniformBuffer, BufferInfo: bufInfo},
		{Set: set, Binding: 1, Type: DescriptorTypeCombinedImageSampler, ImageInfos: []*ImageInfo{{View: view, Sampler: samp}}},
		{Set: set, Binding: 2, Type: DescriptorTypeSampler, ImageInfos: []*ImageInfo{{Sampler: samp}}},
	}
	require.NoError(t, b.UpdateSets(writes))
	assert.Equal(t, 1, b.UpdateCalls())

	bound := b.SetBindings(set)
	require.Len(t, bound, 3)
	assert.Equal(t, *bufInfo, bound[0].Buffer)
	assert.Equal(t, []ImageInfo{{View: view, Sampler: samp}}, bound[1].Images)
	assert.Equal(t, DescriptorTypeSampler, bound[2].Type)

	t.Run("type mismatch", func(t *testing.T) {
		err := b.UpdateSets([]SetWrite{{Set: set, Binding: 2, Type: DescriptorTypeUniformBuffer, BufferInfo: bufInfo}})
		assert.ErrorIs(t, err, common.ErrInvalidDescriptorWrite)
	})

	t.Run("unknown binding", func(t *testing.T) {
		err := b.UpdateSets([]SetWrite{{Set: set, Binding: 9, Type: DescriptorTypeSampler, ImageInfos: []*ImageInfo{{Sampler: samp}}}})
		assert.ErrorIs(t, err, common.ErrIndexOutOfRange)
	})

	t.Run("range past buffer end", func(t *testing.T) {
		err := b.UpdateSets([]SetWrite{{Set: set, Binding: 0, Type: DescriptorTypeUniformBuffer, BufferInfo: &BufferInfo{Buffer: buf.Handle(), Offset: 64, Range: 128}}})
		assert.ErrorIs(t, err, common.ErrIndexOutOfRange)
	})

	t.Run("batch is atomic", func(t *testing.T) {
		err := b.UpdateSets([]SetWrite{
			{Set: set, Binding: 0, Type: DescriptorTypeUniformBuffer, BufferInfo: &BufferInfo{Buffer: buf.Handle(), Offset: 0, Range: 64}},
			{Set: set, Binding: 2, Type: DescriptorTypeSampler, ImageInfos: []*ImageInfo{{Sampler: 9999}}},
		})
		assert.Error(t, err)
		assert.Equal(t, uint64(128), b.SetBindings(set)[0].Buffer.Range)
	})
}

func TestHostReleaseClearsObjects(t *testing.T) {
	b := NewHostRendererBackend()
	_, err := b.CreateBuffer(BufferDescriptor{Label: "ubo", Size: 16, Memory: MemoryHostVisible})
	require.NoError(t, err)
	_ = newTestTexture(t, b)
	assert.Equal(t, 2, b.LiveObjects())

	b.Release()
	assert.Zero(t, b.LiveObjects())
}
