package uniform

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignmentOf(t *testing.T) {
	cases := []struct {
		typ         IntrinsicType
		size, align uint64
	}{
		{Scalar, 4, 4},
		{Vec2, 8, 8},
		{Vec3, 12, 16},
		{Vec4, 16, 16},
		{Mat4, 64, 16},
	}
	for _, c := range cases {
		t.Run(c.typ.String(), func(t *testing.T) {
			tl, err := AlignmentOf(c.typ)
			require.NoError(t, err)
			assert.Equal(t, c.size, tl.Size)
			assert.Equal(t, c.align, tl.Alignment)
		})
	}

	_, err := AlignmentOf(IntrinsicType(42))
	assert.ErrorIs(t, err, common.ErrUnknownType)
}

func TestParseIntrinsicType(t *testing.T) {
	for _, typ := range []IntrinsicType{Scalar, Vec2, Vec3, Vec4, Mat4} {
		parsed, err := ParseIntrinsicType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	parsed, err := ParseIntrinsicType(" Float ")
	require.NoError(t, err)
	assert.Equal(t, Scalar, parsed)

	_, err = ParseIntrinsicType("mat3")
	assert.ErrorIs(t, err, common.ErrUnknownType)
}

func TestLayoutSingleScalar(t *testing.T) {
	l, err := NewStructuredBufferLayout(Member(Scalar))
	require.NoError(t, err)

	assert.Equal(t, uint64(4), l.Size())
	m, err := l.Member(0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, m.Offsets)
	assert.Equal(t, []uint64{4}, m.Alignments)
}

func TestLayoutCompositeScalarVec3(t *testing.T) {
	l, err := NewStructuredBufferLayout(Member(Scalar, Vec3))
	require.NoError(t, err)

	m, err := l.Member(0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 16}, m.Offsets)
	assert.Equal(t, []uint64{4, 12}, m.Sizes)
	assert.Equal(t, uint64(28), m.ArrayStride)
	assert.Equal(t, uint64(32), l.Size())
}

func TestLayoutCompositeFollowedByMember(t *testing.T) {
	l, err := NewStructuredBufferLayout(Member(Scalar, Vec3), Member(Scalar))
	require.NoError(t, err)

	m, err := l.Member(1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{32}, m.Offsets)
	assert.Equal(t, uint64(36), l.Size())
}

func TestLayoutMat4Array(t *testing.T) {
	l, err := NewStructuredBufferLayout(Array(3, Mat4))
	require.NoError(t, err)

	m, err := l.Member(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), m.ArrayStride)
	assert.Equal(t, uint64(192), l.Size())

	for k := 0; k < 3; k++ {
		off, size, err := l.FieldRange(Accessor(0).At(k))
		require.NoError(t, err)
		assert.Equal(t, uint64(64*k), off)
		assert.Equal(t, uint64(64), size)
	}
}

func TestLayoutScalarArrayStride(t *testing.T) {
	l, err := NewStructuredBufferLayout(Member(Vec2), Array(4, Scalar), Member(Scalar))
	require.NoError(t, err)

	arr, err := l.Member(1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{16}, arr.Offsets)
	assert.Equal(t, uint64(16), arr.ArrayStride)

	last, err := l.Member(2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{80}, last.Offsets)
	assert.Equal(t, uint64(84), l.Size())
}

func TestLayoutMemberAfterPadding(t *testing.T) {
	l, err := NewStructuredBufferLayout(Member(Scalar), Member(Vec4), Member(Scalar))
	require.NoError(t, err)

	members := l.Members()
	assert.Equal(t, uint64(16), members[1].Offsets[0])
	assert.Equal(t, uint64(32), members[2].Offsets[0])
	assert.Equal(t, uint64(36), l.Size())
}

func TestLayoutRejectsEmptyMember(t *testing.T) {
	_, err := NewStructuredBufferLayout(Member(Scalar), Member())
	assert.ErrorIs(t, err, common.ErrInvalidMemberDeclaration)

	_, err = NewStructuredBufferLayout(Member(IntrinsicType(9)))
	assert.ErrorIs(t, err, common.ErrUnknownType)
}

func TestFieldRangeBounds(t *testing.T) {
	l, err := NewStructuredBufferLayout(Member(Scalar, Vec3), Array(2, Vec4))
	require.NoError(t, err)

	bad := []MemberAccessor{
		{Member: 2},
		{Member: -1},
		{Member: 0, ArrayIndex: 1},
		{Member: 0, FieldIndex: 2},
		{Member: 1, ArrayIndex: 2},
		{Member: 1, ArrayIndex: -1},
	}
	for _, acc := range bad {
		_, _, err := l.FieldRange(acc)
		assert.ErrorIsf(t, err, common.ErrIndexOutOfRange, "accessor %+v", acc)
	}

	off, size, err := l.FieldRange(Accessor(1).At(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(48), off)
	assert.Equal(t, uint64(16), size)
}

func TestLayoutString(t *testing.T) {
	l, err := NewStructuredBufferLayout(Member(Scalar, Vec3))
	require.NoError(t, err)

	s := l.String()
	assert.Contains(t, s, "offset")
	assert.Contains(t, s, "total")
	assert.Contains(t, s, "32")
}

func randomDeclarations(r *rand.Rand) []MemberDeclaration {
	decls := make([]MemberDeclaration, 1+r.Intn(8))
	for i := range decls {
		types := make([]IntrinsicType, 1+r.Intn(4))
		for j := range types {
			types[j] = IntrinsicType(r.Intn(len(typeLayouts)))
		}
		decls[i] = MemberDeclaration{Types: types, ArrayLength: uint32(r.Intn(5))}
	}
	return decls
}

type byteRange struct {
	start, end uint64
}

func TestLayoutInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for iter := 0; iter < 500; iter++ {
		decls := randomDeclarations(r)
		l, err := NewStructuredBufferLayout(decls...)
		require.NoError(t, err)

		var ranges []byteRange
		for mi, m := range l.Members() {
			for fi := range m.Offsets {
				tl, err := AlignmentOf(decls[mi].Types[fi])
				require.NoError(t, err)
				assert.Zero(t, m.Offsets[fi]%tl.Alignment, "base alignment")
				assert.Zero(t, m.Offsets[fi]%m.Alignments[fi], "adjusted alignment")
			}
			if decls[mi].IsComposite() || decls[mi].IsArray() {
				assert.Zero(t, m.Offsets[0]%16, "struct/array start")
			}
			for k := uint32(0); k < m.Instances(); k++ {
				for fi := range m.Offsets {
					start := m.Offsets[fi] + uint64(k)*m.ArrayStride
					ranges = append(ranges, byteRange{start, start + m.Sizes[fi]})
				}
			}
		}

		// Ranges are appended in declaration order; each must start at or after the end of the previous one.
		for i := 1; i < len(ranges); i++ {
			assert.GreaterOrEqual(t, ranges[i].start, ranges[i-1].end, "overlap in %v", decls)
		}
		if len(ranges) > 0 {
			assert.LessOrEqual(t, ranges[len(ranges)-1].end, l.Size())
		}
	}
}

func TestLayoutDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	decls := randomDeclarations(r)

	a, err := NewStructuredBufferLayout(decls...)
	require.NoError(t, err)
	b, err := NewStructuredBufferLayout(decls...)
	require.NoError(t, err)
	assert.Equal(t, a.Members(), b.Members())
	assert.Equal(t, a.Size(), b.Size())
}
