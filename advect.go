package rayscales

import "errors"

// AdvectParams are the per frame inputs of an [Advector].
type AdvectParams struct {
	// Current is the camera pose of the frame being computed.
	Current Pose
	// Iterations is the number of fixed point iterations for the inverse angle solve.
	Iterations int
	// ForwardPin enables forward pin compensation, see [Config.ForwardPinCompensation].
	ForwardPin bool
}

// Advector performs the raw advection step for every index of a slice: it solves for the
// previous-frame angle theta0 of each index and the corresponding radius from the current
// camera. Implementations may run on different substrates (CPU loop, GPU compute) but must
// produce the same values within floating point tolerance.
type Advector interface {
	// Advect writes the normalized advected radius of each index of prev to dst and the solved
	// previous-frame angle to theta0s. dst and theta0s must be of length prev.Len().
	Advect(dst, theta0s []float32, prev *Slice, params AdvectParams) error
}

var errAdvectBufLen = errors.New("advection buffers must match slice length")

// CPUAdvector is the reference [Advector] running the solver in a loop.
type CPUAdvector struct{}

var _ Advector = CPUAdvector{}

// Advect implements [Advector].
func (CPUAdvector) Advect(dst, theta0s []float32, prev *Slice, params AdvectParams) error {
	n := prev.Len()
	if len(dst) != n || len(theta0s) != n {
		return errAdvectBufLen
	}
	sv := NewSolver(prev, params.Current, params.Iterations, params.ForwardPin)
	invR := 1 / prev.radius
	for i := range dst {
		theta0 := sv.Theta0(prev.Theta(i))
		theta0s[i] = theta0
		dst[i] = sv.R1(theta0) * invR
	}
	return nil
}
