package uniform

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
)

// structAlignment is the boundary composite and array members start on.
const structAlignment = 16

// MemberDeclaration is one logical field of a structured buffer. More than one type makes
// it a composite member; an ArrayLength above 1 makes it an array.
type MemberDeclaration struct {
	Types       []IntrinsicType
	ArrayLength uint32
}

// Member declares a single (non-array) member made of the given types.
//
// Parameters:
//   - types: the member's sub-field types, in order
//
// Returns:
//   - MemberDeclaration: the declaration
func Member(types ...IntrinsicType) MemberDeclaration {
	return MemberDeclaration{Types: types}
}

// Array declares an array member of length instances of the given types.
//
// Parameters:
//   - length: the number of array instances
//   - types: the sub-field types of one instance, in order
//
// Returns:
//   - MemberDeclaration: the declaration
func Array(length uint32, types ...IntrinsicType) MemberDeclaration {
	return MemberDeclaration{Types: types, ArrayLength: length}
}

// IsArray reports whether the declaration describes more than one instance.
func (d MemberDeclaration) IsArray() bool {
	return d.ArrayLength > 1
}

// IsComposite reports whether the declaration has more than one sub-field.
func (d MemberDeclaration) IsComposite() bool {
	return len(d.Types) > 1
}

// PackedMember is the computed placement of one MemberDeclaration. Offsets, Sizes and
// Alignments hold one entry per sub-field; offsets are absolute within the buffer and
// describe array instance 0.
type PackedMember struct {
	Offsets    []uint64
	Sizes      []uint64
	Alignments []uint64
	// ArrayStride is the padded footprint of one instance.
	ArrayStride uint64
	ArrayLength uint32
}

// IsArray reports whether the member holds more than one instance.
func (m PackedMember) IsArray() bool {
	return m.ArrayLength > 1
}

// Instances returns the number of instances the member holds, at least 1.
func (m PackedMember) Instances() uint32 {
	return max(m.ArrayLength, 1)
}

// StructuredBufferLayout is the immutable packed byte layout of one uniform buffer.
type StructuredBufferLayout struct {
	members []PackedMember
	size    uint64
}

// NewStructuredBufferLayout packs the declarations in order.
//
// Per member, with a running cursor: a composite member starts on its largest sub-field
// alignment rounded up to 16, an array member starts on a multiple of 16, and every
// sub-field is placed at the cursor rounded up to its alignment. An array's stride is
// rounded up to the member's start alignment, and a composite's footprint is rounded up
// to its alignment so the next member starts past the trailing padding.
//
// Parameters:
//   - decls: the member declarations, in declaration order
//
// Returns:
//   - *StructuredBufferLayout: the packed layout
//   - error: common.ErrInvalidMemberDeclaration for a member with no types, or common.ErrUnknownType
func NewStructuredBufferLayout(decls ...MemberDeclaration) (*StructuredBufferLayout, error) {
	l := &StructuredBufferLayout{
		members: make([]PackedMember, 0, len(decls)),
	}
	for i, d := range decls {
		m, err := packMember(l.size, d)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		l.members = append(l.members, m)

		footprint := m.ArrayStride * uint64(m.Instances())
		if d.IsComposite() {
			footprint = common.RoundUpToMultiple(footprint, m.Alignments[0])
		}
		l.size = m.Offsets[0] + footprint
	}
	return l, nil
}

func packMember(cursor uint64, d MemberDeclaration) (PackedMember, error) {
	if len(d.Types) == 0 {
		return PackedMember{}, common.ErrInvalidMemberDeclaration
	}

	m := PackedMember{
		Offsets:     make([]uint64, len(d.Types)),
		Sizes:       make([]uint64, len(d.Types)),
		Alignments:  make([]uint64, len(d.Types)),
		ArrayLength: d.ArrayLength,
	}
	var maxAlign uint64
	for i, t := range d.Types {
		tl, err := AlignmentOf(t)
		if err != nil {
			return PackedMember{}, err
		}
		m.Sizes[i] = tl.Size
		m.Alignments[i] = tl.Alignment
		maxAlign = max(maxAlign, tl.Alignment)
	}

	// The member start carries the struct and array rules.
	if d.IsComposite() {
		m.Alignments[0] = common.RoundUpToMultiple(maxAlign, structAlignment)
	}
	if d.IsArray() {
		m.Alignments[0] = common.RoundUpToMultiple(m.Alignments[0], structAlignment)
	}

	for i := range d.Types {
		m.Offsets[i] = common.RoundUpToMultiple(cursor, m.Alignments[i])
		cursor = m.Offsets[i] + m.Sizes[i]
	}

	m.ArrayStride = cursor - m.Offsets[0]
	if d.IsArray() {
		m.ArrayStride = common.RoundUpToMultiple(m.ArrayStride, m.Alignments[0])
	}
	return m, nil
}

// Size returns the packed byte size of one buffer instance.
func (l *StructuredBufferLayout) Size() uint64 {
	return l.size
}

// NumMembers returns the number of packed members.
func (l *StructuredBufferLayout) NumMembers() int {
	return len(l.members)
}

// Members returns a copy of the packed members in declaration order.
func (l *StructuredBufferLayout) Members() []PackedMember {
	out := make([]PackedMember, len(l.members))
	copy(out, l.members)
	return out
}

// Member returns the packed member at index i.
//
// Parameters:
//   - i: the member index in declaration order
//
// Returns:
//   - PackedMember: the packed member
//   - error: common.ErrIndexOutOfRange if i is not a member index
func (l *StructuredBufferLayout) Member(i int) (PackedMember, error) {
	if i < 0 || i >= len(l.members) {
		return PackedMember{}, fmt.Errorf("member %d of %d: %w", i, len(l.members), common.ErrIndexOutOfRange)
	}
	return l.members[i], nil
}

// FieldRange resolves an accessor to the absolute byte range of one sub-field instance.
//
// Parameters:
//   - acc: the member, array index and field to resolve
//
// Returns:
//   - uint64: the byte offset within one buffer instance
//   - uint64: the byte size of the sub-field
//   - error: common.ErrIndexOutOfRange if any accessor index is invalid
func (l *StructuredBufferLayout) FieldRange(acc MemberAccessor) (uint64, uint64, error) {
	m, err := l.Member(acc.Member)
	if err != nil {
		return 0, 0, err
	}
	if acc.ArrayIndex < 0 || uint32(acc.ArrayIndex) >= m.Instances() {
		return 0, 0, fmt.Errorf("member %d: array index %d of %d: %w", acc.Member, acc.ArrayIndex, m.Instances(), common.ErrIndexOutOfRange)
	}
	if acc.FieldIndex < 0 || acc.FieldIndex >= len(m.Offsets) {
		return 0, 0, fmt.Errorf("member %d: field %d of %d: %w", acc.Member, acc.FieldIndex, len(m.Offsets), common.ErrIndexOutOfRange)
	}
	offset := m.Offsets[acc.FieldIndex] + m.ArrayStride*uint64(acc.ArrayIndex)
	return offset, m.Sizes[acc.FieldIndex], nil
}

// String renders the layout as a table of members and sub-fields.
func (l *StructuredBufferLayout) String() string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "member\tfield\toffset\tsize\talign\tstride\tlength")
	for mi, m := range l.members {
		for fi := range m.Offsets {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\n", mi, fi, m.Offsets[fi], m.Sizes[fi], m.Alignments[fi], m.ArrayStride, m.Instances())
		}
	}
	fmt.Fprintf(tw, "total\t\t\t%d\t\t\t\n", l.size)
	tw.Flush()
	return sb.String()
}
