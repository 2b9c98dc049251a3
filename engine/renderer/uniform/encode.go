package uniform

import (
	"github.com/Carmen-Shannon/oxy-descriptors/common"
	"github.com/go-gl/mathgl/mgl32"
)

// The encoders return the packed bytes of a value in the layout WriteMember expects for the
// matching IntrinsicType. mgl32 matrices are column-major, which is what shaders read.

// EncodeScalar packs a float for a Scalar field.
func EncodeScalar(v float32) []byte {
	return common.StructToBytes(&v)
}

// EncodeVec2 packs a vector for a Vec2 field.
func EncodeVec2(v mgl32.Vec2) []byte {
	return common.SliceToBytes(v[:])
}

// EncodeVec3 packs a vector for a Vec3 field. The result is 12 bytes; the padding is not written.
func EncodeVec3(v mgl32.Vec3) []byte {
	return common.SliceToBytes(v[:])
}

// EncodeVec4 packs a vector for a Vec4 field.
func EncodeVec4(v mgl32.Vec4) []byte {
	return common.SliceToBytes(v[:])
}

// EncodeMat4 packs a matrix for a Mat4 field.
func EncodeMat4(m mgl32.Mat4) []byte {
	return common.SliceToBytes(m[:])
}
