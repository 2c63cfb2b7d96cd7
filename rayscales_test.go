package rayscales_test

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/rayscales"
)

const testDt = 1.0 / 30

func bareConfig(n int) rayscales.Config {
	cfg := rayscales.DefaultConfig()
	cfg.ScaleCount = n
	cfg.Clamp = false
	cfg.LimitGradient = false
	return cfg
}

func newEngine(t *testing.T, cfg rayscales.Config, radius float32, pose rayscales.Pose) *rayscales.Engine {
	t.Helper()
	e, err := rayscales.NewEngine(cfg, radius, pose)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func approx(a, b, tol float32) bool {
	return math32.Abs(a-b) <= tol
}

func TestStationarity(t *testing.T) {
	layouts := []rayscales.Layout{
		{},
		{Curvature: 1},
		{Curvature: 1, FixedRNoise: 0.3},
		{Curvature: 0.5, FixedZProp: 0.4},
	}
	pose := rayscales.PoseAt(ms3.Vec{X: 3, Y: 1, Z: -7}, 0.7)
	for _, n := range []int{2, 3, 5, 101} {
		for _, layout := range layouts {
			for _, useMotion := range []bool{true, false} {
				cfg := bareConfig(n)
				cfg.Layout = layout
				cfg.UseMotionMeasure = useMotion
				e := newEngine(t, cfg, 5, pose)
				before := e.Slice().AppendRadii(nil)
				for frame := 0; frame < 10; frame++ {
					e.Step(pose, testDt)
				}
				for i, want := range before {
					got := e.Slice().At(i)
					if !approx(got, want, 1e-4*want) {
						t.Errorf("n=%d layout=%+v motion=%v: radius %d changed from %g to %g", n, layout, useMotion, i, want, got)
					}
				}
				st := e.Stats()
				if st.Teleported || st.Extrapolated != [2]int{} {
					t.Errorf("n=%d: unexpected stats for stationary camera %+v", n, st)
				}
			}
		}
	}
}

func TestStationarityDefaults(t *testing.T) {
	cfg := rayscales.DefaultConfig()
	cfg.Diagnostics = true
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	e := newEngine(t, cfg, 5, pose)
	before := e.Slice().AppendRadii(nil)
	e.Step(pose, testDt)
	for i, want := range before {
		if got := e.Slice().At(i); !approx(got, want, 1e-4) {
			t.Errorf("radius %d changed from %g to %g", i, want, got)
		}
	}
	if res := e.Stats().MaxResidual; res > 1e-5 {
		t.Errorf("large residual for stationary camera: %g", res)
	}
}

func TestForwardDollyPlainCompensation(t *testing.T) {
	cfg := bareConfig(21)
	cfg.ForwardPinCompensation = false
	pose := rayscales.PoseAt(ms3.Vec{}, 0.3)
	e := newEngine(t, cfg, 5, pose)
	before := e.Slice().AppendRadii(nil)
	for frame := 0; frame < 5; frame++ {
		pose = pose.Translated(0, 0.2)
		e.Step(pose, testDt)
	}
	for i, want := range before {
		if got := e.Slice().At(i); !approx(got, want, 1e-4) {
			t.Errorf("dolly changed radius %d from %g to %g", i, want, got)
		}
	}
}

func TestSolverPureRotation(t *testing.T) {
	const angle = 0.05
	pose := rayscales.PoseAt(ms3.Vec{X: 1}, 0)
	s := rayscales.NewSlice(41, 5, math32.Pi/4, rayscales.Layout{Curvature: 0.7, FixedRNoise: 0.2}, pose)
	sv := rayscales.NewSolver(s, pose.Rotated(angle), 2, true)
	for i := 4; i < s.Len()-4; i++ {
		theta1 := s.Theta(i)
		theta0 := sv.Theta0(theta1)
		if !approx(theta0, theta1-angle, 1e-5) {
			t.Errorf("index %d: got theta0=%g, want %g", i, theta0, theta1-angle)
		}
		if r1, want := sv.R1(theta0), s.SampleR(theta0); !approx(r1, want, 1e-4) {
			t.Errorf("index %d: got r1=%g, want %g", i, r1, want)
		}
		if res := sv.Residual(theta1); res > 1e-5 {
			t.Errorf("index %d: residual %g", i, res)
		}
	}
}

func TestSidewaysScenario(t *testing.T) {
	for _, tc := range []struct {
		strafe float32
		side   rayscales.Side
	}{
		{strafe: 0.1, side: rayscales.SideRight},
		{strafe: -0.1, side: rayscales.SideLeft},
	} {
		cfg := bareConfig(5)
		cfg.HalfFov = math32.Pi / 4
		pose0 := rayscales.PoseAt(ms3.Vec{}, 0)
		pose1 := pose0.Translated(tc.strafe, 0)
		e := newEngine(t, cfg, 5, pose0)
		s := e.Slice()

		sv := rayscales.NewSolver(s, pose1, cfg.Iterations, cfg.ForwardPinCompensation)
		first, last := 0, s.Len()-1
		theta0First := sv.Theta0(s.Theta(first))
		theta0Last := sv.Theta0(s.Theta(last))
		// Strafing right makes world points drift left in view, so previous angles are smaller.
		if tc.strafe > 0 && (theta0First >= s.Theta(first) || theta0Last >= s.Theta(last)) {
			t.Errorf("strafe right: edge angles did not move outward to the right: %g %g", theta0First, theta0Last)
		}
		if tc.strafe < 0 && (theta0First <= s.Theta(first) || theta0Last <= s.Theta(last)) {
			t.Errorf("strafe left: edge angles did not move outward to the left: %g %g", theta0First, theta0Last)
		}
		exposed, covered := theta0First, theta0Last
		if tc.side == rayscales.SideLeft {
			exposed, covered = covered, exposed
		}
		if s.InView(exposed) {
			t.Errorf("%v edge should leave the previous view, got theta0=%g", tc.side, exposed)
		}
		if !s.InView(covered) {
			t.Errorf("opposite edge should stay in view, got theta0=%g", covered)
		}

		e.Step(pose1, testDt)
		st := e.Stats()
		if st.Teleported {
			t.Fatal("small strafe detected as teleport")
		}
		if st.Extrapolated[tc.side] == 0 {
			t.Errorf("expected extrapolation on %v side, got %v", tc.side, st.Extrapolated)
		}
		if st.Extrapolated[1-tc.side] != 0 {
			t.Errorf("unexpected extrapolation on opposite side: %v", st.Extrapolated)
		}
	}
}

func TestTeleportSpeed(t *testing.T) {
	cfg := rayscales.DefaultConfig()
	cfg.ScaleCount = 33
	cfg.Layout = rayscales.Layout{Curvature: 1, FixedRNoise: 0.5}
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	e := newEngine(t, cfg, 5, pose)
	motion := rayscales.TestMotion{Translate: true, TranslateX: 2, Rotate: true, RotateY: 0.5}
	for frame := 0; frame < 20; frame++ {
		pose = motion.Advance(pose, testDt)
		e.Step(pose, testDt)
	}
	// 10 units in a single frame is far above the threshold.
	pose = pose.Translated(10, 0)
	e.Step(pose, testDt)
	if !e.Stats().Teleported {
		t.Fatal("teleport not detected")
	}
	s := e.Slice()
	for i := 0; i < s.Len(); i++ {
		want := math32.Cos(cfg.HalfFov) / math32.Sin(s.Theta(i))
		if got := s.At(i); !approx(got, want, 1e-6) {
			t.Errorf("radius %d: got %g, want fixed-Z %g", i, got, want)
		}
	}
	if s.Pose() != pose {
		t.Error("teleport did not reset reference pose")
	}
}

func TestTeleportIdempotent(t *testing.T) {
	cfg := rayscales.DefaultConfig()
	cfg.Layout = rayscales.Layout{Curvature: 0.8, FixedRNoise: 0.4}
	pose := rayscales.PoseAt(ms3.Vec{Z: 2}, 1)
	e := newEngine(t, cfg, 8, pose)
	e.Teleport(pose)
	first := e.Slice().AppendRadii(nil)
	e.Teleport(pose)
	second := e.Slice().AppendRadii(nil)
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("radius %d differs between resets: %g != %g", i, first[i], second[i])
		}
	}
}

func TestTeleportNoOverlap(t *testing.T) {
	cfg := bareConfig(17)
	cfg.ClearOnTeleport = false
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	e := newEngine(t, cfg, 5, pose)
	// Looking backwards shares no angles with the previous view.
	back := pose.Rotated(math32.Pi)
	e.Step(back, testDt)
	if !e.Stats().Teleported {
		t.Fatal("total decoherence not detected as teleport")
	}
	if e.Slice().Pose() != back {
		t.Error("reference pose not reset")
	}
}

func TestClampBounds(t *testing.T) {
	cfg := bareConfig(31)
	cfg.Clamp = true
	cfg.Layout = rayscales.Layout{Curvature: 1, FixedRNoise: 1}
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	e := newEngine(t, cfg, 5, pose)
	rng := rand.New(rand.NewSource(1))
	for frame := 0; frame < 30; frame++ {
		pose = pose.Rotated((rng.Float32() - 0.5) * 0.1).Translated((rng.Float32()-0.5)*0.5, (rng.Float32()-0.5)*0.5)
		e.Step(pose, testDt)
		s := e.Slice()
		for i := 0; i < s.Len(); i++ {
			lo, hi := rayscales.ClampBounds(i, s.Len(), s.HalfFov())
			if r := s.At(i); r < lo || r > hi {
				t.Fatalf("frame %d: radius %d=%g outside [%g, %g]", frame, i, r, lo, hi)
			}
		}
	}
}

func TestRelaxEdgeInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, n := range []int{2, 3, 4, 5, 10, 101} {
		radii := make([]float32, n)
		for i := range radii {
			radii[i] = 0.5 + rng.Float32()
		}
		first, last := radii[0], radii[n-1]
		rx := rayscales.Relaxer{Radius: 5, HalfFov: math32.Pi / 4, MaxGradient: 0.01, Alpha: 10}
		for iter := 0; iter < 5; iter++ {
			rx.RelaxGradients(radii, 1, testDt)
		}
		if radii[0] != first || radii[n-1] != last {
			t.Errorf("n=%d: edges modified: %g->%g, %g->%g", n, first, radii[0], last, radii[n-1])
		}
		for i, r := range radii {
			if !(r > 0) || math32.IsInf(r, 0) {
				t.Errorf("n=%d: invalid radius %d=%g", n, i, r)
			}
		}
	}
}

func TestRelaxZeroMotion(t *testing.T) {
	radii := []float32{1, 1.3, 0.7, 1.2, 1}
	want := append([]float32{}, radii...)
	rx := rayscales.Relaxer{Radius: 5, HalfFov: math32.Pi / 4, MaxGradient: 0.01, Alpha: 0.3}
	rx.RelaxGradients(radii, 0, testDt)
	for i := range radii {
		if !approx(radii[i], want[i], 1e-6) {
			t.Errorf("zero motion relaxed radius %d: %g -> %g", i, want[i], radii[i])
		}
	}
}

func TestExtrapolationContinuity(t *testing.T) {
	cfg := bareConfig(101)
	cfg.UseMotionMeasure = false
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	e := newEngine(t, cfg, 5, pose)
	prevEdge := e.Slice().At(0)
	e.BeginFrame(pose.Translated(0.4, 0), testDt)
	e.Compute()
	count := e.Stats().Extrapolated[rayscales.SideRight]
	if count < 2 {
		t.Fatalf("expected a run of newly exposed samples on the right side, got %d", count)
	}
	next := e.Next()
	// The run ends on the first advected sample so the slice has no step at the boundary.
	if !approx(next[count-1], next[count], 1e-5) {
		t.Errorf("step at extrapolation boundary: %g != %g", next[count-1], next[count])
	}
	lo, hi := min(prevEdge, 1), max(prevEdge, 1)
	if next[0] < lo-1e-6 || next[0] > hi+1e-6 {
		t.Errorf("edge radius %g not between previous edge %g and canonical radius", next[0], prevEdge)
	}
	for i := 0; i < count; i++ {
		if !(next[i] > 0) || math32.IsInf(next[i], 0) {
			t.Errorf("invalid extrapolated radius %d=%g", i, next[i])
		}
	}
	e.Commit()
}

func TestExtrapolationContinuityRelaxed(t *testing.T) {
	const R = 5
	cfg := bareConfig(101)
	cfg.UseMotionMeasure = false
	cfg.LimitGradient = true
	cfg.AlphaGradient = 1
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	e := newEngine(t, cfg, R, pose)
	e.BeginFrame(pose.Translated(0.4, 0), testDt)
	e.Compute()
	count := e.Stats().Extrapolated[rayscales.SideRight]
	if count < 2 || count >= e.Slice().Len()/2 {
		t.Fatalf("expected a short run of newly exposed samples on the right side, got %d", count)
	}
	next := e.Next()
	s := e.Slice()
	// With full relaxation gain every pair up to and including the boundary holds the maximum slope.
	for i := 1; i <= count; i++ {
		x0, y0 := polarXY(s.Theta(i-1), R*next[i-1])
		x1, y1 := polarXY(s.Theta(i), R*next[i])
		slope := (y1 - y0) / (x1 - x0)
		if math32.Abs(slope) > cfg.MaxGradient+1e-3 {
			t.Errorf("slope %g between samples %d and %d exceeds %g", slope, i-1, i, cfg.MaxGradient)
		}
	}
	e.Commit()
}

func TestExtrapolatorParallelFallback(t *testing.T) {
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	prev := rayscales.NewSlice(5, 1, math32.Pi/4, rayscales.Layout{}, pose)
	n := prev.Len()
	theta0s := make([]float32, n)
	for i := range theta0s {
		theta0s[i] = prev.Theta(i)
	}
	theta0s[0] = -1
	next := prev.AppendRadii(nil)
	// A zero radius anchor puts the segment on the edge ray itself.
	next[1] = 0
	ex := rayscales.Extrapolator{Mode: rayscales.ExtrapolateIntersect, AlphaScaleReturn: 1}
	runs := ex.Extrapolate(next, theta0s, prev, 0, testDt)
	if runs != [2]int{1, 0} {
		t.Fatalf("got runs %v", runs)
	}
	if next[0] != next[1] {
		t.Errorf("ray parallel to the segment should copy the anchor radius, got %g", next[0])
	}
}

func TestExtrapolatorBehindCamera(t *testing.T) {
	const R = 2
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	prev := rayscales.NewSlice(5, R, math32.Pi/4, rayscales.Layout{}, pose)
	n := prev.Len()
	theta0s := make([]float32, n)
	for i := range theta0s {
		theta0s[i] = prev.Theta(i)
	}
	theta0s[0], theta0s[1] = -1, -1
	next := prev.AppendRadii(nil)
	// The anchor lies behind the camera so the segment's line crosses the ray of sample 1 at t<0.
	next[2] = -0.5
	ex := rayscales.Extrapolator{Mode: rayscales.ExtrapolateIntersect, AlphaScaleReturn: 1}
	runs := ex.Extrapolate(next, theta0s, prev, 0, testDt)
	if runs != [2]int{2, 0} {
		t.Fatalf("got runs %v", runs)
	}
	if !approx(next[0], prev.At(0), 1e-5) {
		t.Errorf("edge sample %g, want previous edge %g", next[0], prev.At(0))
	}
	if next[1] != next[2] {
		t.Errorf("intersection behind the camera should copy the anchor radius, got %g", next[1])
	}
}

func TestExtrapolatorModes(t *testing.T) {
	const R = 5
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	prev := rayscales.NewSlice(9, R, math32.Pi/4, rayscales.Layout{Curvature: 0.5}, pose)
	n := prev.Len()
	theta0s := make([]float32, n)
	for i := range theta0s {
		theta0s[i] = prev.Theta(i)
	}
	// Three newly exposed samples on the left side.
	for k := 0; k < 3; k++ {
		theta0s[n-1-k] = math32.Pi
	}
	const motion = 1
	alpha := math32.Min(1, motion*testDt*(2*prev.HalfFov()*3/float32(n)))
	wantEdge := prev.At(n-1)*(1-alpha) + alpha

	for _, mode := range []rayscales.ExtrapolationMode{rayscales.ExtrapolateSegment, rayscales.ExtrapolateIntersect} {
		next := prev.AppendRadii(nil)
		ex := rayscales.Extrapolator{Mode: mode, AlphaScaleReturn: 1}
		runs := ex.Extrapolate(next, theta0s, prev, motion, testDt)
		if runs != [2]int{0, 3} {
			t.Fatalf("%v: got runs %v", mode, runs)
		}
		if !approx(next[n-1], wantEdge, 1e-5) {
			t.Errorf("%v: edge radius %g, want %g", mode, next[n-1], wantEdge)
		}
		for i := 0; i < n-3; i++ {
			if next[i] != prev.At(i) {
				t.Errorf("%v: valid sample %d modified", mode, i)
			}
		}
		// All introduced samples lie on the line from the edge point to the anchor sample.
		ex0, ey0 := polarXY(prev.Theta(n-1), R*next[n-1])
		ax, ay := polarXY(prev.Theta(n-4), R*next[n-4])
		for i := n - 3; i < n-1; i++ {
			px, py := polarXY(prev.Theta(i), R*next[i])
			if mode == rayscales.ExtrapolateSegment && i == n-3 && !approx(next[i], next[n-4], 1e-5) {
				t.Errorf("segment end radius %g should match anchor %g", next[i], next[n-4])
			}
			if mode != rayscales.ExtrapolateIntersect {
				continue
			}
			cross := (px-ex0)*(ay-ey0) - (py-ey0)*(ax-ex0)
			if math32.Abs(cross) > 1e-3 {
				t.Errorf("intersect sample %d off the extrapolation segment: cross=%g", i, cross)
			}
		}
	}
}

func TestFreeze(t *testing.T) {
	cfg := bareConfig(11)
	cfg.Freeze = true
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	e := newEngine(t, cfg, 5, pose)
	before := e.Slice().AppendRadii(nil)
	moved := pose.Rotated(0.1)
	e.Step(moved, testDt)
	changed := false
	for i, r := range e.Next() {
		changed = changed || r != before[i]
		if e.Slice().At(i) != before[i] {
			t.Fatalf("frozen slice committed radius %d", i)
		}
	}
	if !changed {
		t.Error("freeze should still compute new radii")
	}
	if e.Slice().Pose() != pose {
		t.Error("frozen slice advanced reference pose")
	}
}

func TestSampleCountMismatchReinit(t *testing.T) {
	cfg := bareConfig(11)
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	e := newEngine(t, cfg, 5, pose)
	cfg.ScaleCount = 23
	if err := e.Reload(cfg); err != nil {
		t.Fatal(err)
	}
	e.Step(pose, testDt)
	if e.Slice().Len() != 23 || len(e.Next()) != 23 {
		t.Fatalf("slice not resized: %d", e.Slice().Len())
	}
	if !e.Stats().Reinitialized {
		t.Error("reinitialization not reported")
	}
	cfg.ScaleCount = 1
	if err := e.Reload(cfg); err == nil {
		t.Error("expected error for single sample slice")
	}
}

func TestSampleR(t *testing.T) {
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	s := rayscales.NewSlice(3, 2, math32.Pi/4, rayscales.Layout{Curvature: 1, FixedRNoise: 1}, pose)
	r0, r1, r2 := s.At(0), s.At(1), s.At(2)
	mid01 := (s.Theta(0) + s.Theta(1)) / 2
	if got, want := s.SampleR(mid01), 2*(r0+r1)/2; !approx(got, want, 1e-5) {
		t.Errorf("interpolation: got %g, want %g", got, want)
	}
	if got := s.SampleR(s.Theta(2)); !approx(got, 2*r2, 1e-5) {
		t.Errorf("at sample: got %g, want %g", got, 2*r2)
	}
	// Out of range angles return the edge samples.
	if got := s.SampleR(0); !approx(got, 2*r0, 1e-6) {
		t.Errorf("below range: got %g, want %g", got, 2*r0)
	}
	if got := s.SampleR(math32.Pi); !approx(got, 2*r2, 1e-6) {
		t.Errorf("above range: got %g, want %g", got, 2*r2)
	}
	// Gradient extension continues the edge slope.
	step := s.Theta(1) - s.Theta(0)
	if got, want := s.SampleGradExtension(s.Theta(0)-step), 2*(r0+(r0-r1)); !approx(got, want, 1e-4) {
		t.Errorf("gradient extension: got %g, want %g", got, want)
	}
	if got, want := s.SampleGradExtension(s.Theta(2)+step), 2*(r2+(r2-r1)); !approx(got, want, 1e-4) {
		t.Errorf("gradient extension: got %g, want %g", got, want)
	}
}

func TestMotionMeasure(t *testing.T) {
	cfg := rayscales.DefaultConfig()
	pose := rayscales.PoseAt(ms3.Vec{}, 0)
	if m := rayscales.MotionMeasure(&cfg, pose, pose, testDt); m != 0 {
		t.Errorf("stationary motion measure %g", m)
	}
	strafe := pose.Translated(0.01, 0)
	want := math32.Min(1, cfg.MotionCoeffStrafe*0.01/testDt)
	if m := rayscales.MotionMeasure(&cfg, pose, strafe, testDt); !approx(m, want, 1e-4) {
		t.Errorf("strafe motion measure %g, want %g", m, want)
	}
	if m := rayscales.MotionMeasure(&cfg, pose, pose.Translated(5, 0), testDt); m != 1 {
		t.Errorf("fast strafe should saturate, got %g", m)
	}
	cfg.MotionCoeffRot = 1
	rot := pose.Rotated(-0.02)
	if m := rayscales.MotionMeasure(&cfg, pose, rot, testDt); !approx(m, 0.02/testDt*cfg.MotionCoeffRot, 1e-3) && m != 1 {
		t.Errorf("rotation motion measure %g", m)
	}
	cfg.UseMotionMeasure = false
	if m := rayscales.MotionMeasure(&cfg, pose, pose, testDt); m != 1 {
		t.Errorf("disabled motion measure should be 1, got %g", m)
	}
}

func TestFrameProtocolPanics(t *testing.T) {
	e := newEngine(t, bareConfig(5), 5, rayscales.PoseAt(ms3.Vec{}, 0))
	defer func() {
		if recover() == nil {
			t.Error("expected panic committing without compute")
		}
	}()
	e.Commit()
}

func polarXY(theta, r float32) (x, y float32) {
	s, c := math32.Sincos(theta)
	return r * c, r * s
}
