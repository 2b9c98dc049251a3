package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/resource_set"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/uniform"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerPosition(t *testing.T) {
	cc := NewCameraController(WithRadius(5), WithElevation(0), WithTarget(mgl32.Vec3{1, 2, 3}))
	pos := cc.Position()
	assert.InDeltaSlice(t, []float32{1, 2, 8}, pos[:], 1e-5)

	cc.SetAzimuth(math.Pi / 2)
	pos = cc.Position()
	assert.InDeltaSlice(t, []float32{6, 2, 3}, pos[:], 1e-5)
}

func TestControllerClamping(t *testing.T) {
	cc := NewCameraController(WithRadiusBounds(2, 20), WithElevationBounds(-0.5, 0.5), WithRadius(100))
	assert.Equal(t, float32(20), cc.Radius())

	cc.Zoom(50)
	assert.Equal(t, float32(2), cc.Radius())

	cc.SetElevation(3)
	assert.Equal(t, float32(0.5), cc.Elevation())

	cc.Orbit(0, -100)
	assert.Equal(t, float32(-0.5), cc.Elevation())
}

func TestControllerPanKeepsOffset(t *testing.T) {
	cc := NewCameraController(WithRadius(10), WithPanSpeed(1))
	before := cc.Position().Sub(cc.Target())
	cc.Pan(3, -1)
	after := cc.Position().Sub(cc.Target())
	assert.InDeltaSlice(t, before[:], after[:], 1e-4)
	assert.NotEqual(t, mgl32.Vec3{}, cc.Target())
}

func TestCameraWithoutController(t *testing.T) {
	cam := NewCamera()
	assert.Equal(t, mgl32.Ident4(), cam.ViewProjectionMatrix())
	assert.Equal(t, mgl32.Vec3{}, cam.Position())
	assert.Nil(t, cam.Controller())
}

func TestCameraMatrices(t *testing.T) {
	cc := NewCameraController(WithRadius(6))
	cam := NewCamera(WithController(cc), WithAspect(2), WithFar(50))

	view := mgl32.LookAtV(cc.Position(), cc.Target(), mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(cam.Fov(), 2, 0.1, 50)
	assert.Equal(t, view, cam.ViewMatrix())
	assert.Equal(t, proj.Mul4(view), cam.ViewProjectionMatrix())

	cc.Orbit(10, 0)
	assert.Equal(t, view, cam.ViewMatrix(), "matrices change only on Update")
	cam.Update()
	assert.NotEqual(t, view, cam.ViewMatrix())
}

func TestUniformLayout(t *testing.T) {
	layout, err := uniform.NewStructuredBufferLayout(UniformMembers()...)
	require.NoError(t, err)
	assert.Equal(t, uint64(UniformSize), layout.Size())

	eye, err := layout.Member(MemberEye)
	require.NoError(t, err)
	assert.Equal(t, []uint64{64, 76}, eye.Offsets)

	extended, err := uniform.NewStructuredBufferLayout(UniformMembers(uniform.Member(uniform.Vec4))...)
	require.NoError(t, err)
	assert.Equal(t, uint64(UniformSize+16), extended.Size())
}

func TestWriteUniform(t *testing.T) {
	backend := renderer.NewHostRendererBackend()
	defer backend.Release()

	rs := resource_set.NewResourceSet(backend, resource_set.WithFramesInFlight(2))
	_, err := rs.AddUniformBuffer(UniformMembers()...)
	require.NoError(t, err)
	require.NoError(t, rs.Finalize())
	defer rs.Release()

	cam := NewCamera(WithController(NewCameraController()), WithFov(1))
	n, err := WriteUniform(cam, rs, 0, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 64+12+4, n)

	ubo, err := rs.UniformBuffer(0)
	require.NoError(t, err)
	vp, err := ubo.ReadMember(uniform.Accessor(MemberViewProj), 1)
	require.NoError(t, err)
	assert.Equal(t, uniform.EncodeMat4(cam.ViewProjectionMatrix()), vp)

	fov, err := ubo.ReadMember(uniform.Accessor(MemberEye).Field(1), 1)
	require.NoError(t, err)
	assert.Equal(t, uniform.EncodeScalar(1), fov)

	_, err = WriteUniform(cam, rs, 3, 0, true)
	assert.Error(t, err)
}
