package rayscales

import "github.com/soypat/geometry/ms3"

// ForwardPin integrates the camera's forward travel in ray march units so that a ray marcher
// can offset its sample positions and keep them stationary in world space while the camera
// dollies. Distance is measured with the slice's middle scale since rays with different
// scales travel different distances; advection compensates for the non-uniform remainder.
type ForwardPin struct {
	// Period the travelled distance is wrapped by. Must exceed the largest ray march step.
	Period float32
	dist   float32
	scale  float32
	last   ms3.Vec
	primed bool
}

// Update integrates the motion from the last call to pose. middleScale is the radius at the
// screen center of a slice with canonical radius. Middle scales outside [0.1·radius, 2·radius]
// are considered unreliable and replaced by the canonical radius.
func (fp *ForwardPin) Update(pose Pose, middleScale, radius float32) {
	if !fp.primed {
		fp.last = pose.Pos
		fp.primed = true
	}
	if !(middleScale >= 0.1*radius && middleScale <= 2*radius) {
		middleScale = radius
	}
	fp.scale = middleScale / radius
	fp.dist += ms3.Dot(ms3.Sub(pose.Pos, fp.last), pose.Forward) / fp.scale
	if fp.Period > 0 {
		// Keep the integrator positive; ray march boundary tests misbehave with negative offsets.
		fp.dist = repeatf(fp.dist, fp.Period)
	}
	if !isFinite(fp.dist) {
		fp.dist = 0
	}
	fp.last = pose.Pos
}

// Distance returns the integrated forward distance.
func (fp *ForwardPin) Distance() float32 { return fp.dist }

// Scale returns the middle scale ratio used by the last update, 1 before the first update.
func (fp *ForwardPin) Scale() float32 {
	if fp.scale == 0 {
		return 1
	}
	return fp.scale
}
