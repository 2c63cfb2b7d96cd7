package scaleaux

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/glgl/math/ms1"
)

type setImage = interface {
	image.Image
	Set(x, y int, c color.Color)
}

// ImageRenderer converts 2D distance fields to images. Image rows grow downwards while the
// field's Y axis grows upwards, so the top image row maps to the field's maximum Y.
type ImageRenderer struct {
	conv func(f float32) color.Color
	pos  []ms2.Vec
	dist []float32
}

// NewImageRenderer instances a new [ImageRenderer]. A nil float->color conversion function
// results in a simple black-white color scheme where black is within one unit of the field.
func NewImageRenderer(evalBufferSize int, conversion func(float32) color.Color) (*ImageRenderer, error) {
	if evalBufferSize <= 64 {
		return nil, errors.New("too small evaluation buffer size")
	}
	if conversion == nil {
		conversion = func(f float32) color.Color {
			switch {
			case math32.IsNaN(f) || math32.IsInf(f, 0):
				return red
			case f > 1:
				return color.White
			default:
				return color.Black
			}
		}
	}
	ir := &ImageRenderer{
		conv: conversion,
		pos:  make([]ms2.Vec, evalBufferSize),
		dist: make([]float32, evalBufferSize),
	}
	return ir, nil
}

// Render maps the field to the input image and renders every pixel with the renderer's color conversion.
func (ir *ImageRenderer) Render(f Field, img setImage) error {
	return ir.render(f, img, func(x, y int, d float32) {
		img.Set(x, y, ir.conv(d))
	})
}

// Stroke blends c over the pixels of img within width field units of the zero level of f.
// Edges are smoothed over one pixel.
func (ir *ImageRenderer) Stroke(f Field, img setImage, c color.Color, width float32) error {
	imgBB := img.Bounds()
	pix := f.Bounds().Size().X / float32(imgBB.Dx())
	return ir.render(f, img, func(x, y int, d float32) {
		alpha := 1 - ms1.SmoothStep(width-pix/2, width+pix/2, d)
		if alpha <= 0 {
			return
		}
		img.Set(x, y, blend(img.At(x, y), c, alpha))
	})
}

func (ir *ImageRenderer) render(f Field, img setImage, set func(x, y int, d float32)) error {
	imgBB := img.Bounds()
	dxi := imgBB.Dx()
	dyi := imgBB.Dy()
	if len(ir.dist) < dyi {
		return fmt.Errorf("require evaluation buffer (%d) to be at least of length of image rows (%d)", len(ir.dist), dyi)
	}
	bb := f.Bounds()
	sz := bb.Size()
	dx := sz.X / float32(dxi)
	dy := sz.Y / float32(dyi)
	// Offset to pixel centers.
	xmin := bb.Min.X + dx/2
	ymax := bb.Max.Y - dy/2
	for i := 0; i < dxi; i++ {
		x := float32(i)*dx + xmin
		for j := 0; j < dyi; j++ {
			ir.pos[j] = ms2.Vec{X: x, Y: ymax - float32(j)*dy}
		}
		err := f.Evaluate(ir.pos[:dyi], ir.dist[:dyi])
		if err != nil {
			return err
		}
		for j := 0; j < dyi; j++ {
			set(i+imgBB.Min.X, j+imgBB.Min.Y, ir.dist[j])
		}
	}
	return nil
}
