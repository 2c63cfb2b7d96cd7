package rayscales

import (
	"github.com/chewxy/math32"
)

// Layout describes the initial curvature of a freshly created sample slice.
type Layout struct {
	// Curvature blends between a fixed-Z layout (0), where samples lie on a plane in front
	// of the viewer, and a fixed-R layout (1), where samples lie on a circle.
	Curvature float32 `json:"curvature"`
	// FixedRNoise is the amplitude of a sinusoidal perturbation added to the fixed-R layout.
	FixedRNoise float32 `json:"fixedRNoise"`
	// FixedZProp pushes the fixed-Z plane out from cos(halfFov) towards the canonical radius.
	FixedZProp float32 `json:"fixedZProp"`
}

// Slice is the sample slice state: radii normalized by a canonical radius plus the camera
// pose the radii were computed for. The Slice is written by exactly one [Engine] and only
// at commit time; between commits it is safe for readers to query.
type Slice struct {
	radii   []float32
	radius  float32
	halfFov float32
	prev    Pose
}

// NewSlice returns a slice of n samples at canonical radius covering [π/2-halfFov, π/2+halfFov],
// initialized with layout and anchored at pose. n must be at least 2.
func NewSlice(n int, radius, halfFov float32, layout Layout, pose Pose) *Slice {
	if n < 2 {
		panic("rayscales: slice requires at least 2 samples")
	}
	s := &Slice{
		radii:   make([]float32, n),
		radius:  radius,
		halfFov: halfFov,
	}
	s.Init(layout, pose)
	return s
}

// Init overwrites all samples with layout and anchors the slice at pose.
func (s *Slice) Init(layout Layout, pose Pose) {
	n := len(s.radii)
	zPlane := mixf(math32.Cos(s.halfFov), 1, layout.FixedZProp)
	for i := range s.radii {
		fixedZ := zPlane / math32.Sin(s.Theta(i))
		fixedR := math32.Sin(8*float32(i)/float32(n))*layout.FixedRNoise + 1
		s.radii[i] = mixf(fixedZ, fixedR, layout.Curvature)
	}
	s.prev = pose
}

// ResetFixedZ overwrites all samples with the canonical fixed-distance-to-plane layout
// and anchors the slice at pose. Used to recover from teleports.
func (s *Slice) ResetFixedZ(pose Pose) {
	fixedZLayout(s.radii, s.halfFov)
	s.prev = pose
}

func fixedZLayout(dst []float32, halfFov float32) {
	z := math32.Cos(halfFov)
	for i := range dst {
		dst[i] = z / math32.Sin(thetaAt(i, len(dst), halfFov))
	}
}

// Len returns the amount of samples in the slice.
func (s *Slice) Len() int { return len(s.radii) }

// Radius returns the canonical radius R the normalized samples are relative to.
func (s *Slice) Radius() float32 { return s.radius }

// HalfFov returns the half angle covered by the slice in radians.
func (s *Slice) HalfFov() float32 { return s.halfFov }

// Pose returns the camera pose the committed samples were computed for.
func (s *Slice) Pose() Pose { return s.prev }

// At returns the normalized radius of sample i.
func (s *Slice) At(i int) float32 { return s.radii[i] }

// AppendRadii appends the normalized radii to dst and returns the result.
func (s *Slice) AppendRadii(dst []float32) []float32 {
	return append(dst, s.radii...)
}

// Theta returns the angle of sample i.
func (s *Slice) Theta(i int) float32 {
	return thetaAt(i, len(s.radii), s.halfFov)
}

func thetaAt(i, n int, halfFov float32) float32 {
	return 2*halfFov*float32(i)/float32(n-1) - halfFov + piHalf
}

// InView reports whether theta lies within the angular range covered by the slice.
// Angles within viewTol of the edges are in view so round-off never flags edge samples.
func (s *Slice) InView(theta float32) bool {
	return absf(theta-piHalf) <= s.halfFov+viewTol
}

// SampleR returns the radius in world units at angle theta by linearly interpolating the two
// bracketing samples. Angles outside the covered range return the nearest edge sample;
// callers that need a better guess there use an [Extrapolator].
func (s *Slice) SampleR(theta float32) float32 {
	return s.radius * s.SampleNorm(theta)
}

// SampleNorm is like [Slice.SampleR] but returns the normalized radius.
func (s *Slice) SampleNorm(theta float32) float32 {
	// Map theta from [π/2-halfFov, π/2+halfFov] to [0, n-1].
	t := clamp01((theta - (piHalf - s.halfFov)) / (2 * s.halfFov))
	if !(t >= 0) {
		// NaN angles sample the right edge.
		t = 0
	}
	t *= float32(len(s.radii) - 1)
	i0 := int(math32.Floor(t))
	i1 := int(math32.Ceil(t))
	return mixf(s.radii[i0], s.radii[i1], t-float32(i0))
}

// SampleGradExtension is like [Slice.SampleR] but angles outside the covered range are
// extrapolated linearly with the gradient of the two outermost samples on that side.
func (s *Slice) SampleGradExtension(theta float32) float32 {
	n := len(s.radii)
	lo := piHalf - s.halfFov
	hi := piHalf + s.halfFov
	dTheta := 2 * s.halfFov / float32(n-1)
	switch {
	case theta < lo:
		dScale := s.radii[0] - s.radii[1]
		return s.radius * (s.radii[0] + (lo-theta)*dScale/dTheta)
	case theta > hi:
		dScale := s.radii[n-1] - s.radii[n-2]
		return s.radius * (s.radii[n-1] + (theta-hi)*dScale/dTheta)
	}
	return s.SampleR(theta)
}

// setRadii copies src into the committed samples and anchors them at pose.
func (s *Slice) setRadii(src []float32, pose Pose) {
	copy(s.radii, src)
	s.prev = pose
}

// resize reallocates the sample storage for n samples. The contents are undefined until Init.
func (s *Slice) resize(n int) {
	if cap(s.radii) >= n {
		s.radii = s.radii[:n]
	} else {
		s.radii = make([]float32, n)
	}
}
