package rayscales

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Pose is a camera position with an orthonormal basis in world space.
// World +Y is up; headings are measured about it.
type Pose struct {
	Pos     ms3.Vec
	Forward ms3.Vec
	Right   ms3.Vec
}

// PoseAt returns a level pose at pos rotated heading radians about world +Y.
// A zero heading looks down +Z with +X to the right.
func PoseAt(pos ms3.Vec, heading float32) Pose {
	s, c := math32.Sincos(heading)
	return Pose{
		Pos:     pos,
		Forward: ms3.Vec{X: s, Z: c},
		Right:   ms3.Vec{X: c, Z: -s},
	}
}

func (p Pose) isFinite() bool {
	for _, v := range [3]ms3.Vec{p.Pos, p.Forward, p.Right} {
		if !isFinite(v.X) || !isFinite(v.Y) || !isFinite(v.Z) {
			return false
		}
	}
	return true
}

// Up returns the pose's up vector.
func (p Pose) Up() ms3.Vec {
	return ms3.Cross(p.Forward, p.Right)
}

// ToLocal transforms a world point into the pose's local frame where
// X is along Right, Y along Up and Z along Forward.
func (p Pose) ToLocal(world ms3.Vec) ms3.Vec {
	d := ms3.Sub(world, p.Pos)
	return ms3.Vec{
		X: ms3.Dot(d, p.Right),
		Y: ms3.Dot(d, p.Up()),
		Z: ms3.Dot(d, p.Forward),
	}
}

// SlicePoint returns the world position of the slice point at angle theta and radius r.
func (p Pose) SlicePoint(theta, r float32) ms3.Vec {
	s, c := math32.Sincos(theta)
	pos := ms3.Add(p.Pos, ms3.Scale(r*c, p.Right))
	return ms3.Add(pos, ms3.Scale(r*s, p.Forward))
}

// Rotated returns the pose rotated by angle radians about world +Y. Positive angles turn
// the forward vector towards the right vector.
func (p Pose) Rotated(angle float32) Pose {
	p.Forward = rotateY(p.Forward, angle)
	p.Right = rotateY(p.Right, angle)
	return p
}

// Translated returns the pose moved by right/forward amounts along its own basis.
func (p Pose) Translated(right, forward float32) Pose {
	p.Pos = ms3.Add(p.Pos, ms3.Scale(right, p.Right))
	p.Pos = ms3.Add(p.Pos, ms3.Scale(forward, p.Forward))
	return p
}

func rotateY(v ms3.Vec, angle float32) ms3.Vec {
	s, c := math32.Sincos(angle)
	return ms3.Vec{
		X: v.X*c + v.Z*s,
		Y: v.Y,
		Z: -v.X*s + v.Z*c,
	}
}

// headingDelta returns the signed angle in radians the forward vector turned between from and to.
// The sign follows the Y component of from×to, with zero treated as positive.
func headingDelta(from, to Pose) float32 {
	nf := ms3.Norm(from.Forward)
	nt := ms3.Norm(to.Forward)
	if nf < epstol || nt < epstol {
		return 0
	}
	cos := clampf(ms3.Dot(from.Forward, to.Forward)/(nf*nt), -1, 1)
	crossY := from.Forward.Z*to.Forward.X - from.Forward.X*to.Forward.Z
	return math32.Acos(cos) * signf(crossY)
}
