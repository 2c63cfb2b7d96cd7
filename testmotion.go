package rayscales

// TestMotion generates synthetic camera motion: a strafe/dolly translation in the camera's
// own frame and a constant yaw rate. Useful to exercise advection without a camera rig.
type TestMotion struct {
	Translate bool
	// TranslateX is the sideways speed along the camera's right vector in units per second.
	TranslateX float32
	// TranslateZ is the forward speed in units per second.
	TranslateZ float32
	Rotate     bool
	// RotateY is the yaw rate in radians per second. Positive turns right.
	RotateY float32
}

// Advance returns the pose after dt seconds of motion starting at p.
func (tm TestMotion) Advance(p Pose, dt float32) Pose {
	if tm.Translate {
		p = p.Translated(tm.TranslateX*dt, tm.TranslateZ*dt)
	}
	if tm.Rotate {
		p = p.Rotated(tm.RotateY * dt)
	}
	return p
}
