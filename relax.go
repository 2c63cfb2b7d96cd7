package rayscales

import "github.com/chewxy/math32"

// ClampBounds returns the bounds normalized radius i of a slice with n samples and the given
// half field of view is clamped into when clamping is enabled.
//
// The lower bound is an inverted circle, concave instead of convex, which still allows orbiting.
// The upper bound is the fixed-Z plane through the highest point of the canonical circle,
// which allows strafing after rotating without aliasing.
func ClampBounds(i, n int, halfFov float32) (lo, hi float32) {
	sin := math32.Sin(thetaAt(i, n, halfFov))
	lo = 0.9 * (1 - (sin - math32.Cos(halfFov)))
	hi = 1 / sin
	return lo, hi
}

func clampRadii(radii []float32, halfFov float32) {
	n := len(radii)
	for i, r := range radii {
		lo, hi := ClampBounds(i, n, halfFov)
		radii[i] = clampf(r, lo, hi)
	}
}

// Relaxer limits the gradient of the slice between angularly adjacent samples.
// Advecting each index independently produces geometric discontinuities; relaxation pulls
// each sample towards the position that keeps |d(r·sinθ)/d(r·cosθ)| within MaxGradient
// of its neighbour. The correction is blended in over time rather than applied at once.
type Relaxer struct {
	// Radius is the canonical radius the normalized samples are relative to.
	Radius      float32
	HalfFov     float32
	MaxGradient float32
	// Alpha is the gain of the relaxation.
	Alpha float32
}

// RelaxGradients relaxes the normalized radii in place. The two edge samples are never
// modified since they anchor the frustum boundary. motion and dt scale the blend rate.
//
// There are two stages: an inside-out sweep from the middle towards each edge followed by an
// outside-in sweep from each edge towards the middle.
func (rx Relaxer) RelaxGradients(radii []float32, motion, dt float32) {
	n := len(radii)
	if n < 3 {
		return
	}
	rate := clamp01(motion * rx.Alpha * 30 * frameDt(dt))
	mid := min(n/2, n-2)
	// Inside out.
	for i := mid; i < n-1; i++ {
		rx.relaxGradient(radii, i, i-1, rate)
	}
	for i := mid; i >= 1; i-- {
		rx.relaxGradient(radii, i, i+1, rate)
	}
	// Outside in.
	for i := 1; i <= mid; i++ {
		rx.relaxGradient(radii, i, i-1, rate)
	}
	for i := n - 2; i >= mid; i-- {
		rx.relaxGradient(radii, i, i+1, rate)
	}
}

// relaxGradient moves sample i so its slope to the fixed neighbour i1 is within MaxGradient.
func (rx Relaxer) relaxGradient(radii []float32, i, i1 int, rate float32) {
	n := len(radii)
	R := rx.Radius
	sin, cos := math32.Sincos(thetaAt(i, n, rx.HalfFov))
	sin1, cos1 := math32.Sincos(thetaAt(i1, n, rx.HalfFov))
	r := R * radii[i]
	r1 := R * radii[i1]

	dx := r*cos - r1*cos1
	if absf(dx) < minGradDx {
		dx = signf(dx) * minGradDx
	}
	meas := (r*sin - r1*sin1) / dx
	meas = clampf(meas, -rx.MaxGradient, rx.MaxGradient)
	// Intersect the sample's ray with the line of slope meas through the neighbour.
	denom := sin - meas*cos
	if denom < epstol {
		return
	}
	target := r1 * (sin1 - meas*cos1) / denom
	if !(target > 0) {
		return
	}
	radii[i] = mixf(r, target, rate) / R
}
