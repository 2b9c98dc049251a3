// Package uniform packs typed members into uniform-buffer layouts and owns the per-frame
// host-mapped buffers those layouts are written into.
package uniform

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-descriptors/common"
)

// IntrinsicType is a shader-visible scalar, vector or matrix type that a structured buffer member is built from.
type IntrinsicType uint8

const (
	Scalar IntrinsicType = iota
	Vec2
	Vec3
	Vec4
	Mat4
)

// TypeLayout is the packed size and base alignment of an IntrinsicType in a uniform buffer.
type TypeLayout struct {
	Size      uint64
	Alignment uint64
}

// vec3 is 12 bytes but 16-aligned; its trailing 4 bytes are padding.
var typeLayouts = [...]TypeLayout{
	Scalar: {Size: 4, Alignment: 4},
	Vec2:   {Size: 8, Alignment: 8},
	Vec3:   {Size: 12, Alignment: 16},
	Vec4:   {Size: 16, Alignment: 16},
	Mat4:   {Size: 64, Alignment: 16},
}

var typeNames = [...]string{
	Scalar: "scalar",
	Vec2:   "vec2",
	Vec3:   "vec3",
	Vec4:   "vec4",
	Mat4:   "mat4",
}

// AlignmentOf returns the uniform-buffer size and base alignment of an intrinsic type.
//
// Parameters:
//   - t: the intrinsic type
//
// Returns:
//   - TypeLayout: the size and alignment in bytes
//   - error: common.ErrUnknownType if t is not one of the declared IntrinsicType values
func AlignmentOf(t IntrinsicType) (TypeLayout, error) {
	if int(t) >= len(typeLayouts) {
		return TypeLayout{}, fmt.Errorf("%w: %d", common.ErrUnknownType, t)
	}
	return typeLayouts[t], nil
}

func (t IntrinsicType) String() string {
	if int(t) >= len(typeNames) {
		return fmt.Sprintf("IntrinsicType(%d)", uint8(t))
	}
	return typeNames[t]
}

// ParseIntrinsicType maps a declaration-file type name to its IntrinsicType. Names are case
// insensitive, and "float" is accepted as an alias for "scalar".
//
// Parameters:
//   - name: the type name
//
// Returns:
//   - IntrinsicType: the matching type
//   - error: common.ErrUnknownType if the name is not recognized
func ParseIntrinsicType(name string) (IntrinsicType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "float" {
		return Scalar, nil
	}
	for i, tn := range typeNames {
		if tn == n {
			return IntrinsicType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", common.ErrUnknownType, name)
}
