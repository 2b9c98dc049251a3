package camera

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/resource_set"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/uniform"
)

// Members of the camera uniform block.
const (
	MemberViewProj = iota
	MemberEye
)

// UniformSize is the packed size of the camera uniform block in bytes.
const UniformSize = 80

// UniformMembers returns the declarations of the camera uniform block:
//
//	mat4 view_proj;             // offset 0
//	struct { vec3 position;     // offset 64
//	         float fov; } eye;  // offset 76
//
// Parameters:
//   - extra: members appended after the camera block
//
// Returns:
//   - []uniform.MemberDeclaration: the member declarations
func UniformMembers(extra ...uniform.MemberDeclaration) []uniform.MemberDeclaration {
	return append([]uniform.MemberDeclaration{
		uniform.Member(uniform.Mat4),
		uniform.Member(uniform.Vec3, uniform.Scalar),
	}, extra...)
}

// WriteUniform writes the camera's view-projection matrix, position and field of view into one
// frame's copy of a structured buffer declared with UniformMembers.
//
// Parameters:
//   - cam: the camera to read from
//   - rs: the finalized resource set holding the buffer
//   - buffer: the structured buffer index within rs
//   - frameIndex: the frame slot to write
//   - flush: whether each write is uploaded immediately
//
// Returns:
//   - int: the number of bytes written
//   - error: error if any member write fails
func WriteUniform(cam Camera, rs resource_set.ResourceSet, buffer, frameIndex int, flush bool) (int, error) {
	writes := []struct {
		acc  uniform.MemberAccessor
		data []byte
	}{
		{uniform.Accessor(MemberViewProj), uniform.EncodeMat4(cam.ViewProjectionMatrix())},
		{uniform.Accessor(MemberEye).Field(0), uniform.EncodeVec3(cam.Position())},
		{uniform.Accessor(MemberEye).Field(1), uniform.EncodeScalar(cam.Fov())},
	}
	written := 0
	for _, w := range writes {
		if err := rs.WriteMember(buffer, w.acc, w.data, frameIndex, flush); err != nil {
			return written, fmt.Errorf("camera uniform: %w", err)
		}
		written += len(w.data)
	}
	return written, nil
}
