package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController owns the camera's positional state. The camera reads position and target
// from it and computes the view/projection matrices.
//
// Position is derived from spherical coordinates (radius, azimuth, elevation) around the target.
type CameraController interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: world-space camera position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: world-space target position
	Target() mgl32.Vec3

	// SetTarget sets the pivot point and recomputes position.
	//
	// Parameters:
	//   - target: world-space coordinates
	SetTarget(target mgl32.Vec3)

	// Orbit rotates around the target by the given angles scaled by OrbitSpeed.
	// Elevation is clamped to its bounds.
	//
	// Parameters:
	//   - dAzimuth: horizontal steps
	//   - dElevation: vertical steps
	Orbit(dAzimuth, dElevation float32)

	// Zoom moves toward the target. Positive delta zooms in.
	//
	// Parameters:
	//   - delta: zoom amount scaled by ZoomSpeed
	Zoom(delta float32)

	// Pan shifts position and target along the camera's local right and up axes.
	//
	// Parameters:
	//   - right: amount along the right axis scaled by PanSpeed
	//   - up: amount along the up axis scaled by PanSpeed
	Pan(right, up float32)

	// Radius returns the current distance from target.
	//
	// Returns:
	//   - float32: orbit radius
	Radius() float32

	// SetRadius sets the orbit radius, clamped to its bounds.
	//
	// Parameters:
	//   - radius: new distance from target
	SetRadius(radius float32)

	// Azimuth returns the current horizontal angle around the Y axis.
	//
	// Returns:
	//   - float32: azimuth in radians
	Azimuth() float32

	// SetAzimuth sets the horizontal angle and recomputes position.
	//
	// Parameters:
	//   - azimuth: new horizontal angle in radians
	SetAzimuth(azimuth float32)

	// Elevation returns the current vertical angle from the horizontal plane.
	//
	// Returns:
	//   - float32: elevation in radians
	Elevation() float32

	// SetElevation sets the vertical angle, clamped to its bounds.
	//
	// Parameters:
	//   - elevation: new vertical angle in radians
	SetElevation(elevation float32)
}
