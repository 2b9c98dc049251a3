package uniform

import (
	"bytes"
	"testing"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T, backend renderer.RendererBackend, frames int, decls ...MemberDeclaration) ReplicatedBuffer {
	t.Helper()
	l, err := NewStructuredBufferLayout(decls...)
	require.NoError(t, err)
	rb, err := NewReplicatedBuffer(backend, l, frames, WithLabel("test"))
	require.NoError(t, err)
	t.Cleanup(rb.Release)
	return rb
}

func TestReplicatedBufferAllocation(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	rb := newTestBuffer(t, backend, 3, Member(Mat4), Member(Vec3))

	assert.Equal(t, 3, rb.FrameCount())
	for f := 0; f < 3; f++ {
		buf, err := rb.Buffer(f)
		require.NoError(t, err)
		assert.Equal(t, rb.Layout().Size(), buf.Size())

		info, err := rb.Descriptor(f)
		require.NoError(t, err)
		assert.Equal(t, buf.Handle(), info.Buffer)
		assert.Equal(t, rb.Layout().Size(), info.Range)
	}

	_, err := rb.Buffer(3)
	assert.ErrorIs(t, err, common.ErrIndexOutOfRange)
	_, err = rb.Buffer(-1)
	assert.ErrorIs(t, err, common.ErrIndexOutOfRange)
}

func TestReplicatedBufferRejectsBadArguments(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	l, err := NewStructuredBufferLayout(Member(Scalar))
	require.NoError(t, err)

	_, err = NewReplicatedBuffer(backend, l, 0)
	assert.ErrorIs(t, err, common.ErrIndexOutOfRange)

	empty, err := NewStructuredBufferLayout()
	require.NoError(t, err)
	_, err = NewReplicatedBuffer(backend, empty, 2)
	assert.ErrorIs(t, err, common.ErrInvalidMemberDeclaration)
	assert.Zero(t, backend.LiveObjects())
}

func TestWriteMemberSizeMismatch(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	rb := newTestBuffer(t, backend, 1, Member(Vec3))

	before, err := rb.ReadMember(Accessor(0), 0)
	require.NoError(t, err)

	err = rb.WriteMember(Accessor(0), EncodeScalar(1.5), 0, true)
	assert.ErrorIs(t, err, common.ErrSizeMismatch)

	after, err := rb.ReadMember(Accessor(0), 0)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	buf, err := rb.Buffer(0)
	require.NoError(t, err)
	assert.Zero(t, backend.Flushes(buf.Handle()))
}

func TestWriteMemberComparesFieldSize(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	rb := newTestBuffer(t, backend, 1, Member(Scalar, Vec3))

	// The composite spans 32 bytes, but each write targets one sub-field.
	assert.NoError(t, rb.WriteMember(Accessor(0), EncodeScalar(2), 0, false))
	assert.NoError(t, rb.WriteMember(Accessor(0).Field(1), EncodeVec3(mgl32.Vec3{1, 2, 3}), 0, false))
	assert.ErrorIs(t, rb.WriteMember(Accessor(0).Field(1), make([]byte, 32), 0, false), common.ErrSizeMismatch)
}

func TestWriteMemberIndependentFrames(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	rb := newTestBuffer(t, backend, 2, Member(Vec4))

	require.NoError(t, rb.WriteMember(Accessor(0), EncodeVec4(mgl32.Vec4{1, 1, 1, 1}), 0, true))
	require.NoError(t, rb.WriteMember(Accessor(0), EncodeVec4(mgl32.Vec4{2, 2, 2, 2}), 1, true))

	b0, err := rb.Buffer(0)
	require.NoError(t, err)
	b1, err := rb.Buffer(1)
	require.NoError(t, err)

	assert.NotEqual(t, b0.Handle(), b1.Handle())
	assert.Equal(t, EncodeVec4(mgl32.Vec4{1, 1, 1, 1}), b0.Mapped()[:16])
	assert.Equal(t, EncodeVec4(mgl32.Vec4{2, 2, 2, 2}), b1.Mapped()[:16])

	b0.Mapped()[0] = 0xFF
	assert.NotEqual(t, byte(0xFF), b1.Mapped()[0])
}

func TestWriteMemberRoundTrip(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	const frames = 3
	rb := newTestBuffer(t, backend, frames,
		Member(Scalar),
		Member(Scalar, Vec3, Vec2),
		Array(3, Mat4),
		Array(2, Vec3, Scalar),
	)

	counter := byte(1)
	fill := func(n uint64) []byte {
		out := bytes.Repeat([]byte{counter}, int(n))
		counter++
		return out
	}

	type written struct {
		acc   MemberAccessor
		frame int
		data  []byte
	}
	var writes []written
	for f := 0; f < frames; f++ {
		for mi, m := range rb.Layout().Members() {
			for k := 0; k < int(m.Instances()); k++ {
				for fi := range m.Offsets {
					acc := Accessor(mi).At(k).Field(fi)
					data := fill(m.Sizes[fi])
					require.NoError(t, rb.WriteMember(acc, data, f, true))
					writes = append(writes, written{acc, f, data})
				}
			}
		}
	}

	for _, w := range writes {
		got, err := rb.ReadMember(w.acc, w.frame)
		require.NoError(t, err)
		assert.Equalf(t, w.data, got, "accessor %+v frame %d", w.acc, w.frame)

		buf, err := rb.Buffer(w.frame)
		require.NoError(t, err)
		off, size, err := rb.Layout().FieldRange(w.acc)
		require.NoError(t, err)
		assert.Equal(t, w.data, buf.Mapped()[off:off+size])
	}

	buf, err := rb.Buffer(0)
	require.NoError(t, err)
	assert.Equal(t, len(writes)/frames, backend.Flushes(buf.Handle()))
}

func TestWriteMemberCoherentSkipsFlush(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	l, err := NewStructuredBufferLayout(Member(Scalar))
	require.NoError(t, err)
	rb, err := NewReplicatedBuffer(backend, l, 1, WithCoherentMemory(true))
	require.NoError(t, err)
	defer rb.Release()

	require.NoError(t, rb.WriteMember(Accessor(0), EncodeScalar(3), 0, true))
	buf, err := rb.Buffer(0)
	require.NoError(t, err)
	assert.True(t, buf.Coherent())
	assert.Zero(t, backend.Flushes(buf.Handle()))
	assert.NoError(t, rb.Flush(0))
}

func TestReplicatedBufferRelease(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	l, err := NewStructuredBufferLayout(Member(Scalar))
	require.NoError(t, err)
	rb, err := NewReplicatedBuffer(backend, l, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.LiveObjects())

	rb.Release()
	assert.Zero(t, backend.LiveObjects())
	assert.Zero(t, rb.FrameCount())
}

func TestEncoders(t *testing.T) {
	assert.Len(t, EncodeScalar(1), 4)
	assert.Len(t, EncodeVec2(mgl32.Vec2{}), 8)
	assert.Len(t, EncodeVec3(mgl32.Vec3{}), 12)
	assert.Len(t, EncodeVec4(mgl32.Vec4{}), 16)
	assert.Len(t, EncodeMat4(mgl32.Ident4()), 64)
}
