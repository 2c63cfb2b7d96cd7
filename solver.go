package rayscales

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Solver inverts the slice warp caused by camera motion. Given the angle theta1 of a sample
// after the camera moved it finds the angle theta0 of the same world point on the
// previous frame's slice using fixed point iteration.
//
// Iterative image warping with fixed point iteration is described in
// Bowles et al. "Iterative Image Warping" (2012).
type Solver struct {
	slice *Slice
	cur   Pose
	iters int
	// pullIn is the camera displacement along the current forward vector.
	pullIn     float32
	forwardPin bool
	// midR is the previous slice radius at the screen center.
	midR float32
}

// NewSolver returns a solver warping slice s, whose pose is the previous camera pose, to the cur pose.
func NewSolver(s *Slice, cur Pose, iterations int, forwardPin bool) Solver {
	return Solver{
		slice:      s,
		cur:        cur,
		iters:      iterations,
		pullIn:     ms3.Dot(ms3.Sub(cur.Pos, s.prev.Pos), cur.Forward),
		forwardPin: forwardPin,
		midR:       s.SampleR(piHalf),
	}
}

// Theta0 finds the angle before the camera moved for the angle theta1 after the move.
// The initial guess assumes the camera did not move. No convergence check is performed.
func (sv *Solver) Theta0(theta1 float32) float32 {
	theta0 := theta1
	for i := 0; i < sv.iters; i++ {
		theta0 += theta1 - sv.Theta1(theta0)
	}
	return theta0
}

// Theta1 is the forward warp: it takes the point on the previous slice at angle theta0 and
// returns the angle it is seen at from the current camera, with forward camera motion removed.
func (sv *Solver) Theta1(theta0 float32) float32 {
	local := sv.cur.ToLocal(sv.pos0(theta0))
	if !sv.forwardPin {
		local.Z += sv.pullIn
	} else {
		local = ms3.Add(local, sv.pinShift(local, theta0))
	}
	return math32.Atan2(local.Z, local.X)
}

// R1 returns the distance from the current camera to the previous slice point at theta0,
// with forward camera motion removed.
func (sv *Solver) R1(theta0 float32) float32 {
	pos0 := sv.pos0(theta0)
	pos1 := sv.cur.Pos
	if !sv.forwardPin {
		pos1 = ms3.Sub(pos1, ms3.Scale(sv.pullIn, sv.cur.Forward))
	}
	offset := ms3.Sub(pos0, pos1)
	if sv.forwardPin {
		offset = ms3.Add(offset, sv.pinShift(offset, theta0))
	}
	return ms3.Norm(offset)
}

// Residual returns how far the forward warp of the solved angle lands from theta1.
func (sv *Solver) Residual(theta1 float32) float32 {
	return absf(theta1 - sv.Theta1(sv.Theta0(theta1)))
}

// pos0 returns the world position of the previous slice point at theta.
func (sv *Solver) pos0(theta float32) ms3.Vec {
	return sv.slice.prev.SlicePoint(theta, sv.slice.SampleR(theta))
}

// pinShift returns the compensation for forward pinned samples along dir. Forward pinning
// moves samples proportionally to their radius relative to the middle radius.
func (sv *Solver) pinShift(dir ms3.Vec, theta0 float32) ms3.Vec {
	n := ms3.Norm(dir)
	if n < epstol || sv.midR < epstol {
		return ms3.Vec{}
	}
	k := sv.pullIn * sv.slice.SampleR(theta0) / sv.midR
	return ms3.Scale(k/n, dir)
}
