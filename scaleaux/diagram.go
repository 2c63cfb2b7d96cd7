// Package scaleaux renders top-down debug diagrams of advected sample slices.
package scaleaux

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"time"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/rayscales"
)

var (
	colorCanonical = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	colorFrustum   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	colorBounds    = color.RGBA{R: 60, G: 140, B: 60, A: 255}
	colorNext      = color.RGBA{R: 230, G: 120, B: 20, A: 255}
	colorSlice     = color.RGBA{R: 20, G: 60, B: 200, A: 255}
	colorMoving    = color.RGBA{R: 210, G: 30, B: 60, A: 255}
	colorLabel     = color.Black
)

// DiagramConfig configures [RenderDiagram].
type DiagramConfig struct {
	Width, Height int
	// Extent is the half width of the diagram in canonical radii. Zero defaults to 1.2.
	Extent float32
	// LineWidth is the half width of drawn lines in pixels. Zero defaults to 1.5.
	LineWidth float32
	// ShowNext draws the last computed radii, useful in freeze mode.
	ShowNext bool
	// ShowBounds draws the clamp bounds.
	ShowBounds bool
	// Labels draws a frame summary in the top left corner.
	Labels bool
	// Silent disables progress output of the file helpers.
	Silent bool
}

// Bounds returns the field bounds of a diagram of a slice with canonical radius. The camera
// sits at the origin looking towards +Y with +X to its right.
func (cfg DiagramConfig) Bounds(radius float32) ms2.Box {
	ext := cfg.Extent
	if ext <= 0 {
		ext = 1.2
	}
	w := ext * radius
	h := w * float32(cfg.Height) / float32(cfg.Width)
	// Leave a little room behind the camera.
	bottom := -0.1 * h
	return ms2.Box{
		Min: ms2.Vec{X: -w, Y: bottom},
		Max: ms2.Vec{X: w, Y: bottom + 2*h},
	}
}

// SlicePoints appends the diagram positions of normalized radii laid out over halfFov to dst.
func SlicePoints(dst []ms2.Vec, radii []float32, radius, halfFov float32) []ms2.Vec {
	n := len(radii)
	for i, r := range radii {
		theta := 2*halfFov*float32(i)/float32(n-1) - halfFov + rayscales.ForwardTheta
		s, c := math32.Sincos(theta)
		dst = append(dst, ms2.Vec{X: radius * r * c, Y: radius * r * s})
	}
	return dst
}

// RenderDiagram draws the engine's committed slice, with guides, in the engine slice's local frame.
func RenderDiagram(dst draw.Image, e *rayscales.Engine, cfg DiagramConfig) error {
	b := dst.Bounds()
	if b.Dx() != cfg.Width || b.Dy() != cfg.Height || cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("diagram size does not match destination image")
	}
	s := e.Slice()
	R := s.Radius()
	hf := s.HalfFov()
	bb := cfg.Bounds(R)
	pix := bb.Size().X / float32(cfg.Width)
	lw := cfg.LineWidth
	if lw <= 0 {
		lw = 1.5
	}
	lw *= pix

	committed := &Polyline{Points: SlicePoints(nil, s.AppendRadii(nil), R, hf), BB: bb}
	ir, err := NewImageRenderer(max(4096, cfg.Height), ColorConversionInigoQuilez(R/3))
	if err != nil {
		return err
	}
	err = ir.Render(committed, dst)
	if err != nil {
		return err
	}

	strokes := []stroke{
		{f: &Circle{Radius: R, BB: bb}, c: colorCanonical, w: lw / 2},
		{f: &Ray{Dir: dirAt(rayscales.ForwardTheta - hf), BB: bb}, c: colorFrustum, w: lw / 2},
		{f: &Ray{Dir: dirAt(rayscales.ForwardTheta + hf), BB: bb}, c: colorFrustum, w: lw / 2},
	}
	if cfg.ShowBounds {
		n := s.Len()
		lo := make([]float32, n)
		hi := make([]float32, n)
		for i := range lo {
			lo[i], hi[i] = rayscales.ClampBounds(i, n, hf)
		}
		strokes = append(strokes,
			stroke{f: &Polyline{Points: SlicePoints(nil, lo, R, hf), BB: bb}, c: colorBounds, w: lw / 2},
			stroke{f: &Polyline{Points: SlicePoints(nil, hi, R, hf), BB: bb}, c: colorBounds, w: lw / 2},
		)
	}
	if next := e.Next(); cfg.ShowNext && len(next) == s.Len() {
		strokes = append(strokes, stroke{f: &Polyline{Points: SlicePoints(nil, next, R, hf), BB: bb}, c: colorNext, w: lw})
	}
	for _, st := range strokes {
		err = ir.Stroke(st.f, dst, st.c, st.w)
		if err != nil {
			return err
		}
	}
	// The slice shifts from blue to red as the camera moves faster.
	err = ir.Stroke(committed, dst, SliceColor(e.Stats().Motion), lw)
	if err != nil {
		return err
	}

	if cfg.Labels {
		lb, err := NewLabeler(12, colorLabel)
		if err != nil {
			return err
		}
		st := e.Stats()
		lines := []string{
			fmt.Sprintf("N=%d R=%.2f fov=%.1f°", s.Len(), R, 2*hf*180/math32.Pi),
			fmt.Sprintf("motion=%.3f middle=%.3f", st.Motion, e.MiddleScale()),
			fmt.Sprintf("extrapolated right=%d left=%d", st.Extrapolated[rayscales.SideRight], st.Extrapolated[rayscales.SideLeft]),
		}
		if st.Teleported {
			lines = append(lines, "teleported")
		}
		err = lb.DrawLines(dst, 4, lines...)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteDiagramPNG renders the engine's diagram and encodes it as PNG to w.
func WriteDiagramPNG(w io.Writer, e *rayscales.Engine, cfg DiagramConfig) error {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	err := RenderDiagram(img, e, cfg)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// RenderDiagramPNGFile renders the engine's diagram and saves it to a PNG file with said filename.
func RenderDiagramPNGFile(filename string, e *rayscales.Engine, cfg DiagramConfig) error {
	log := func(args ...any) {
		if !cfg.Silent {
			fmt.Println(args...)
		}
	}
	watch := stopwatch()
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = WriteDiagramPNG(fp, e, cfg)
	if err != nil {
		return err
	}
	err = fp.Sync()
	if err != nil {
		return err
	}
	log("wrote", filename, "in", watch())
	return nil
}

// SliceColor returns the diagram color of the committed slice for a motion measure in [0, 1].
func SliceColor(motion float32) color.RGBA {
	return Gradient(colorSlice, colorMoving, motion)
}

type stroke struct {
	f Field
	c color.Color
	w float32
}

func dirAt(theta float32) ms2.Vec {
	s, c := math32.Sincos(theta)
	return ms2.Vec{X: c, Y: s}
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
