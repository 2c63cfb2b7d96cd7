// Package rayscales maintains advected ray-march sample slices: a compact 1-D array of
// ray radii around a viewer that is warped every frame to follow camera motion so that
// volumetric samples stay pinned in world space.
//
// Angles follow a pose-relative polar parametrization where theta=π/2 is straight ahead,
// theta=0 points along the camera's right vector and angles increase towards the left.
//
//	         forward (theta = π/2)
//	           |
//	frustum \  |  /
//	         \ | /   \ theta
//	          \|/     |
//	-----------+----------- right (theta = 0)
package rayscales

import (
	"github.com/chewxy/math32"
)

// ForwardTheta is the slice angle of the camera's forward direction.
const ForwardTheta = math32.Pi / 2

const (
	piHalf = ForwardTheta
	// minDt is the smallest frame time used in any rate computation.
	minDt = 1.0 / 30
	// minGradDx is the smallest horizontal separation used to measure a slice gradient.
	minGradDx = 1e-4
	// parallelTol is the cross product magnitude under which a ray and a segment are parallel.
	parallelTol = 1e-6
	// viewTol is the angular slack in radians when testing whether an angle is in view.
	viewTol = 1e-5
	// epstol is used to check for badly conditioned denominators such as lengths used for normalization.
	epstol = 6e-7
)

func clampf(v, Min, Max float32) float32 {
	if v < Min {
		return Min
	} else if v > Max {
		return Max
	}
	return v
}

func clamp01(v float32) float32 { return clampf(v, 0, 1) }

func mixf(x, y, a float32) float32 {
	return x*(1-a) + y*a
}

// signf returns 1 for zero, unlike math32.Signbit based helpers.
func signf(a float32) float32 {
	if a < 0 {
		return -1
	}
	return 1
}

func absf(a float32) float32 {
	return math32.Abs(a)
}

// repeatf wraps t into [0, length).
func repeatf(t, length float32) float32 {
	return clampf(t-math32.Floor(t/length)*length, 0, length)
}

func isFinite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}

// frameDt floors the frame time so rates never blow up on very short frames.
func frameDt(dt float32) float32 {
	if !(dt > minDt) {
		return minDt
	}
	return dt
}
