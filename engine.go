package rayscales

import (
	"fmt"

	"github.com/chewxy/math32"
)

// FrameStats describes what happened during the last computed frame.
type FrameStats struct {
	// Motion is the motion measure used for the frame.
	Motion float32
	// Teleported is set when the frame was discarded and the slice reset.
	Teleported bool
	// Reinitialized is set when the slice was re-created with the configured layout.
	Reinitialized bool
	// Extrapolated holds the amount of samples introduced at each [Side].
	Extrapolated [2]int
	// MaxResidual is the largest solver residual. Only computed with [Config.Diagnostics].
	MaxResidual float32
	// AdvectorErr is the error returned by a custom [Advector], if any. The frame
	// falls back to the CPU advector in that case.
	AdvectorErr error
	// InvalidPose is set when the camera pose had non-finite components. The previous
	// radii and reference pose are kept for the frame.
	InvalidPose bool
}

// Engine advects a single sample slice layer frame by frame. Each frame is a two phase step:
// [Engine.BeginFrame] takes the new camera pose, [Engine.Compute] produces the next radii into
// working storage and [Engine.Commit] publishes them to the [Slice]. Readers of the slice must
// only query it outside of the BeginFrame..Commit window.
//
// Engine is not safe for concurrent use.
type Engine struct {
	cfg   Config
	slice *Slice
	adv   Advector

	// Frame working state.
	cur      Pose
	dt       float32
	next     []float32
	theta0s  []float32
	began    bool
	computed bool
	stats    FrameStats
}

// NewEngine returns an engine for a slice of canonical radius starting at pose.
func NewEngine(cfg Config, radius float32, pose Pose) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !(radius > 0) {
		return nil, fmt.Errorf("canonical radius must be positive, got %g", radius)
	}
	e := &Engine{
		cfg:   cfg,
		slice: NewSlice(cfg.ScaleCount, radius, cfg.HalfFov, cfg.Layout, pose),
		adv:   CPUAdvector{},
	}
	e.allocWork()
	return e, nil
}

// SetAdvector replaces the raw advection substrate. A nil Advector restores the CPU advector.
func (e *Engine) SetAdvector(adv Advector) {
	if adv == nil {
		adv = CPUAdvector{}
	}
	e.adv = adv
}

// Reload replaces the configuration. A change in sample count or half field of view
// re-creates the slice at its current pose on the next frame.
func (e *Engine) Reload(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg
	return nil
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Slice returns the committed sample slice.
func (e *Engine) Slice() *Slice { return e.slice }

// Stats returns statistics of the last computed frame.
func (e *Engine) Stats() FrameStats { return e.stats }

// Next returns the radii computed by the last [Engine.Compute]. In freeze mode these are
// never committed and are only useful for visualization. The returned slice is reused.
func (e *Engine) Next() []float32 { return e.next }

// MiddleScale returns the committed radius at the screen center in world units.
// Forward pinning integrators use it to convert forward motion into ray march distance.
func (e *Engine) MiddleScale() float32 {
	return e.slice.SampleR(piHalf)
}

// Step runs a full frame: BeginFrame, Compute and Commit.
func (e *Engine) Step(pose Pose, dt float32) {
	e.BeginFrame(pose, dt)
	e.Compute()
	e.Commit()
}

// BeginFrame starts a frame for the camera at pose. dt is the frame time in seconds and is
// floored to 1/30s. A configured sample count that differs from the slice, or the reinit
// flag, re-creates the slice here.
func (e *Engine) BeginFrame(pose Pose, dt float32) {
	e.cur = pose
	e.dt = frameDt(dt)
	e.began = true
	e.computed = false
	e.stats = FrameStats{}
	cfg := &e.cfg
	if cfg.ScaleCount != e.slice.Len() || cfg.HalfFov != e.slice.halfFov || cfg.Reinit {
		e.slice.resize(cfg.ScaleCount)
		e.slice.halfFov = cfg.HalfFov
		e.slice.Init(cfg.Layout, pose)
		e.allocWork()
		e.stats.Reinitialized = true
		if !cfg.Reinit {
			cfg.logf("rayscales: reinitialized slice with %d samples", cfg.ScaleCount)
		}
	}
}

// Compute produces the next frame's radii without modifying the committed slice.
func (e *Engine) Compute() {
	if !e.began {
		panic("rayscales: Compute called before BeginFrame")
	}
	cfg := &e.cfg
	prev := e.slice
	copy(e.next, prev.radii)
	e.computed = true

	if !e.cur.isFinite() {
		e.stats.InvalidPose = true
		e.cur = prev.prev
		cfg.logf("rayscales: non-finite camera pose, keeping previous slice")
		return
	}
	if cfg.ClearOnTeleport && speed(prev.prev, e.cur, e.dt) > cfg.TeleportSpeed {
		e.setTeleport()
		return
	}
	e.stats.Motion = MotionMeasure(cfg, prev.prev, e.cur, e.dt)
	if !cfg.Advect {
		return
	}

	params := AdvectParams{
		Current:    e.cur,
		Iterations: cfg.Iterations,
		ForwardPin: cfg.ForwardPinCompensation,
	}
	err := e.adv.Advect(e.next, e.theta0s, prev, params)
	if err != nil {
		e.stats.AdvectorErr = err
		cfg.logf("rayscales: advector failed, falling back to CPU: %v", err)
		err = CPUAdvector{}.Advect(e.next, e.theta0s, prev, params)
		if err != nil {
			cfg.logf("rayscales: CPU advector failed: %v", err)
			copy(e.next, prev.radii)
			return
		}
	}
	anyIn := false
	for i, theta0 := range e.theta0s {
		if !isFinite(e.next[i]) || !isFinite(theta0) {
			// Keep the previous sample and poison the angle so edge samples are treated as newly exposed.
			e.next[i] = prev.radii[i]
			e.theta0s[i] = math32.Inf(1)
			continue
		}
		anyIn = anyIn || prev.InView(theta0)
	}
	if !anyIn {
		// No overlap between the previous and current view: advection is meaningless.
		e.setTeleport()
		return
	}
	if cfg.Diagnostics {
		sv := NewSolver(prev, e.cur, cfg.Iterations, cfg.ForwardPinCompensation)
		for i := range e.next {
			e.stats.MaxResidual = max(e.stats.MaxResidual, sv.Residual(prev.Theta(i)))
		}
	}

	ex := Extrapolator{Mode: cfg.Extrapolation, AlphaScaleReturn: cfg.AlphaScaleReturn}
	e.stats.Extrapolated = ex.Extrapolate(e.next, e.theta0s, prev, e.stats.Motion, e.dt)

	if cfg.Clamp {
		clampRadii(e.next, prev.halfFov)
	}
	if cfg.LimitGradient {
		rx := Relaxer{
			Radius:      prev.radius,
			HalfFov:     prev.halfFov,
			MaxGradient: cfg.MaxGradient,
			Alpha:       cfg.AlphaGradient,
		}
		rx.RelaxGradients(e.next, e.stats.Motion, e.dt)
	}
}

// Commit publishes the computed radii to the slice and advances the slice's reference pose
// to the current camera pose. In freeze mode nothing is committed.
func (e *Engine) Commit() {
	if !e.computed {
		panic("rayscales: Commit called before Compute")
	}
	e.began = false
	e.computed = false
	if e.cfg.Freeze {
		return
	}
	e.slice.setRadii(e.next, e.cur)
}

// Teleport immediately resets the slice to the fixed-Z layout anchored at pose,
// discarding any frame in progress.
func (e *Engine) Teleport(pose Pose) {
	e.slice.ResetFixedZ(pose)
	e.began = false
	e.computed = false
}

func (e *Engine) setTeleport() {
	e.stats.Teleported = true
	e.stats.Extrapolated = [2]int{}
	fixedZLayout(e.next, e.slice.halfFov)
	e.cfg.logf("rayscales: teleport event, resetting layout")
}

func (e *Engine) allocWork() {
	n := e.slice.Len()
	if cap(e.next) < n {
		e.next = make([]float32, n)
		e.theta0s = make([]float32, n)
	}
	e.next = e.next[:n]
	e.theta0s = e.theta0s[:n]
}
