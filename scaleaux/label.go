package scaleaux

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	regularOnce sync.Once
	regular     *truetype.Font
	regularErr  error
)

func regularFont() (*truetype.Font, error) {
	regularOnce.Do(func() {
		regular, regularErr = freetype.ParseFont(goregular.TTF)
	})
	return regular, regularErr
}

// Labeler draws lines of text on images with the Go regular font.
type Labeler struct {
	ctx     *freetype.Context
	size    float64
	spacing float64
}

// NewLabeler returns a Labeler drawing text of size points at 72 DPI in color c.
func NewLabeler(size float64, c color.Color) (*Labeler, error) {
	f, err := regularFont()
	if err != nil {
		return nil, err
	}
	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(f)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.NewUniform(c))
	return &Labeler{ctx: ctx, size: size, spacing: 1.3}, nil
}

// DrawLines draws lines top to bottom starting at the top left corner of dst offset by margin pixels.
func (l *Labeler) DrawLines(dst draw.Image, margin int, lines ...string) error {
	l.ctx.SetDst(dst)
	l.ctx.SetClip(dst.Bounds())
	b := dst.Bounds()
	pt := freetype.Pt(b.Min.X+margin, b.Min.Y+margin+int(l.ctx.PointToFixed(l.size)>>6))
	for _, line := range lines {
		_, err := l.ctx.DrawString(line, pt)
		if err != nil {
			return err
		}
		pt.Y += l.ctx.PointToFixed(l.size * l.spacing)
	}
	return nil
}
