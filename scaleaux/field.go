package scaleaux

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
)

// Field is a 2D unsigned distance field evaluated in batches.
type Field interface {
	Bounds() ms2.Box
	Evaluate(pos []ms2.Vec, dist []float32) error
}

var errBufLen = errors.New("position and distance buffer length mismatch")

// Polyline is the distance field of an open chain of segments.
type Polyline struct {
	Points []ms2.Vec
	BB     ms2.Box
}

func (pl *Polyline) Bounds() ms2.Box { return pl.BB }

func (pl *Polyline) Evaluate(pos []ms2.Vec, dist []float32) error {
	if len(pos) != len(dist) {
		return errBufLen
	}
	pts := pl.Points
	for i, p := range pos {
		d := math32.Inf(1)
		if len(pts) == 1 {
			d = ms2.Norm(ms2.Sub(p, pts[0]))
		}
		for j := 1; j < len(pts); j++ {
			d = min(d, segmentDist(p, pts[j-1], pts[j]))
		}
		dist[i] = d
	}
	return nil
}

// Circle is the distance field of a circle outline centered at the origin.
type Circle struct {
	Radius float32
	BB     ms2.Box
}

func (c *Circle) Bounds() ms2.Box { return c.BB }

func (c *Circle) Evaluate(pos []ms2.Vec, dist []float32) error {
	if len(pos) != len(dist) {
		return errBufLen
	}
	for i, p := range pos {
		dist[i] = math32.Abs(ms2.Norm(p) - c.Radius)
	}
	return nil
}

// Ray is the distance field of a half line starting at the origin along Dir. Dir must be unit length.
type Ray struct {
	Dir ms2.Vec
	BB  ms2.Box
}

func (r *Ray) Bounds() ms2.Box { return r.BB }

func (r *Ray) Evaluate(pos []ms2.Vec, dist []float32) error {
	if len(pos) != len(dist) {
		return errBufLen
	}
	for i, p := range pos {
		t := max(0, ms2.Dot(p, r.Dir))
		dist[i] = ms2.Norm(ms2.Sub(p, ms2.Scale(t, r.Dir)))
	}
	return nil
}

func segmentDist(p, a, b ms2.Vec) float32 {
	ab := ms2.Sub(b, a)
	ap := ms2.Sub(p, a)
	l2 := ms2.Dot(ab, ab)
	var h float32
	if l2 > 0 {
		h = clamp(ms2.Dot(ap, ab)/l2, 0, 1)
	}
	return ms2.Norm(ms2.Sub(ap, ms2.Scale(h, ab)))
}
