package rayscales

import "github.com/soypat/geometry/ms3"

// MotionMeasure returns a value in [0,1] describing how fast the camera moved between the
// prev and cur poses. It is the largest of a rotational term (heading change rate) and a
// translational term (speed), each scaled by its coefficient in cfg and clamped.
// If cfg.UseMotionMeasure is false it returns 1.
func MotionMeasure(cfg *Config, prev, cur Pose, dt float32) float32 {
	if !cfg.UseMotionMeasure {
		return 1
	}
	dt = frameDt(dt)
	vel := speed(prev, cur, dt)
	rot := clamp01(absf(cfg.MotionCoeffRot * headingDelta(prev, cur) / dt))
	trans := clamp01(absf(cfg.MotionCoeffStrafe * vel))
	return max(rot, trans)
}

func speed(prev, cur Pose, dt float32) float32 {
	return ms3.Norm(ms3.Sub(cur.Pos, prev.Pos)) / dt
}
