package rayscales

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
)

// Side identifies an edge of the sample slice.
type Side uint8

const (
	// SideRight is the edge at index 0 (smallest angle).
	SideRight Side = iota
	// SideLeft is the edge at index N-1 (largest angle).
	SideLeft
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// Extrapolator introduces samples at the edges of the slice for angles that had no valid
// sample in the previous frame, i.e. angular regions the camera motion just exposed.
//
// Both modes extend the slice with a line segment in the current camera frame starting at the
// last valid advected sample and ending at a point on the edge ray whose radius moves from
// the previous edge radius towards the canonical radius. The segment keeps the slice
// continuous at the boundary and lets the new region relax back to the canonical radius
// over subsequent frames.
type Extrapolator struct {
	Mode ExtrapolationMode
	// AlphaScaleReturn is the rate at which the extrapolated edge returns to the canonical radius.
	AlphaScaleReturn float32
}

// Extrapolate rewrites the runs of next at either edge whose solved angles theta0s fall outside
// the previous slice prev. It returns the length of the run filled at each side, indexed by [Side].
// The caller must ensure at least one of theta0s is within view of prev.
func (ex Extrapolator) Extrapolate(next, theta0s []float32, prev *Slice, motion, dt float32) (runs [2]int) {
	n := len(next)
	for _, side := range [2]Side{SideRight, SideLeft} {
		count := 0
		for count < n && !prev.InView(theta0s[edgeIndex(side, count, n)]) {
			count++
		}
		if count == 0 || count == n {
			continue
		}
		ex.fillRun(next, prev, side, count, motion, dt)
		runs[side] = count
	}
	return runs
}

func (ex Extrapolator) fillRun(next []float32, prev *Slice, side Side, count int, motion, dt float32) {
	n := len(next)
	R := prev.radius
	thetaEdge := prev.Theta(edgeIndex(side, 0, n))

	// Interpolate from the edge radius towards the canonical radius so radii smoothly return to a good place.
	angleSubtended := 2 * prev.halfFov * float32(count) / float32(n)
	alpha := clamp01(motion * ex.AlphaScaleReturn * dt * angleSubtended)
	rEdge := mixf(prev.SampleR(thetaEdge), R, alpha)
	extrapolated := polar(thetaEdge, rEdge)

	anchor := edgeIndex(side, count, n)
	sliceEnd := polar(prev.Theta(anchor), R*next[anchor])

	switch ex.Mode {
	case ExtrapolateIntersect:
		seg := ms2.Sub(sliceEnd, extrapolated)
		for k := 0; k < count; k++ {
			i := edgeIndex(side, k, n)
			ray := polar(prev.Theta(i), 1)
			denom := cross2(ray, seg)
			if absf(denom) < parallelTol {
				next[i] = next[anchor]
				continue
			}
			t := cross2(extrapolated, seg) / denom
			if !(t > 0) {
				next[i] = next[anchor]
				continue
			}
			next[i] = t / R
		}
	default:
		for k := 0; k < count; k++ {
			var a float32
			if count > 1 {
				a = float32(k) / float32(count-1)
			}
			p := ms2.Add(ms2.Scale(1-a, extrapolated), ms2.Scale(a, sliceEnd))
			next[edgeIndex(side, k, n)] = ms2.Norm(p) / R
		}
	}
}

// edgeIndex returns the index k samples in from the side edge of a slice of length n.
func edgeIndex(side Side, k, n int) int {
	if side == SideRight {
		return k
	}
	return n - 1 - k
}

// polar returns the point at angle theta and radius r with X along right and Y along forward.
func polar(theta, r float32) ms2.Vec {
	s, c := math32.Sincos(theta)
	return ms2.Vec{X: r * c, Y: r * s}
}

func cross2(a, b ms2.Vec) float32 {
	return a.X*b.Y - a.Y*b.X
}
