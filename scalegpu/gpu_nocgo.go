//go:build tinygo || !cgo

package scalegpu

import (
	"errors"

	"github.com/soypat/rayscales"
)

var errNoCGO = errors.New("GPU advection requires CGo and is not supported on TinyGo")

// Init1x1GLFW starts a hidden 1x1 sized GLFW window. Always fails without CGo.
func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

// Advector runs the raw advection of a [rayscales.Slice] on the GPU. Not available without CGo.
type Advector struct{}

var _ rayscales.Advector = (*Advector)(nil)

// NewAdvector compiles the advection compute shader. Always fails without CGo.
func NewAdvector(cfg Config) (*Advector, error) {
	return nil, errNoCGO
}

// Delete releases the compiled program.
func (adv *Advector) Delete() {}

// Advect implements [rayscales.Advector].
func (adv *Advector) Advect(dst, theta0s []float32, prev *rayscales.Slice, params rayscales.AdvectParams) error {
	return errNoCGO
}
