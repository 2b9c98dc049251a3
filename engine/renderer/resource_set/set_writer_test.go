package resource_set

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/uniform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writerFixture struct {
	backend renderer.HostRendererBackend
	layout  SetLayout
	set     renderer.SetHandle
	buffer  renderer.MappedBuffer
	views   []renderer.ImageViewHandle
	sampler renderer.SamplerHandle
}

func newWriterFixture(t *testing.T) *writerFixture {
	t.Helper()
	f := &writerFixture{backend: renderer.NewHostRendererBackend()}
	t.Cleanup(f.backend.Release)

	var err error
	f.buffer, err = f.backend.CreateBuffer(renderer.BufferDescriptor{Label: "ubo", Size: 64, Memory: renderer.MemoryHostVisible})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		view, err := f.backend.CreateTexture("tex", common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1})
		require.NoError(t, err)
		f.views = append(f.views, view)
	}
	f.sampler, err = f.backend.CreateSampler("samp", common.SamplerStagingData{})
	require.NoError(t, err)

	decls := []Declaration{
		StructuredBuffer(uniform.Member(uniform.Mat4)),
		ImageArray(f.views...),
		Sampler(f.sampler),
	}
	f.layout, err = NewSetLayout(f.backend, "layout", decls, renderer.ShaderStageAllGraphics)
	require.NoError(t, err)
	alloc, err := NewSetAllocator(f.backend, "pool", PoolSizesFor(decls, 1), 1, nil)
	require.NoError(t, err)
	f.set, err = alloc.Allocate(f.layout)
	require.NoError(t, err)
	return f
}

func TestSetWriterSubmitsOneBatch(t *testing.T) {
	f := newWriterFixture(t)
	w := NewSetWriter(f.layout)

	require.NoError(t, w.WriteBuffer(0, renderer.BufferInfo{Buffer: f.buffer.Handle(), Range: 64}))
	require.NoError(t, w.WriteImages(1, renderer.ImageInfo{View: f.views[0]}, renderer.ImageInfo{View: f.views[1]}))
	require.NoError(t, w.WriteImages(2, renderer.ImageInfo{Sampler: f.sampler}))
	assert.Equal(t, 3, w.Len())

	require.NoError(t, w.Submit(f.backend, f.set))
	assert.Equal(t, 1, f.backend.UpdateCalls())

	bound := f.backend.SetBindings(f.set)
	require.Len(t, bound, 3)
	assert.Equal(t, f.buffer.Handle(), bound[0].Buffer.Buffer)
	assert.Equal(t, []renderer.ImageInfo{{View: f.views[0]}, {View: f.views[1]}}, bound[1].Images)
	assert.Equal(t, f.sampler, bound[2].Images[0].Sampler)

	w.Reset()
	assert.Zero(t, w.Len())
	require.NoError(t, w.Submit(f.backend, f.set))
	assert.Equal(t, 1, f.backend.UpdateCalls())
}

func TestSetWriterRecordsStayPut(t *testing.T) {
	f := newWriterFixture(t)
	w := NewSetWriter(f.layout).(*setWriter)

	require.NoError(t, w.WriteBuffer(0, renderer.BufferInfo{Buffer: f.buffer.Handle(), Range: 64}))
	first := w.writes[0].buffer
	for i := 0; i < 64; i++ {
		require.NoError(t, w.WriteImages(2, renderer.ImageInfo{Sampler: f.sampler}))
	}
	assert.Same(t, first, w.writes[0].buffer)
	assert.Equal(t, uint64(64), first.Range)
}

func TestSetWriterValidation(t *testing.T) {
	f := newWriterFixture(t)
	w := NewSetWriter(f.layout)

	err := w.WriteBuffer(5, renderer.BufferInfo{})
	assert.ErrorIs(t, err, common.ErrIndexOutOfRange)

	err = w.WriteBuffer(1, renderer.BufferInfo{Buffer: f.buffer.Handle()})
	assert.ErrorIs(t, err, common.ErrInvalidDescriptorWrite)

	err = w.WriteImages(0, renderer.ImageInfo{View: f.views[0]})
	assert.ErrorIs(t, err, common.ErrInvalidDescriptorWrite)

	err = w.WriteImages(1, renderer.ImageInfo{View: f.views[0]})
	assert.ErrorIs(t, err, common.ErrInvalidDescriptorWrite)

	assert.Zero(t, w.Len())
}
