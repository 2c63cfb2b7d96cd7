package rayscales

import (
	"errors"
	"fmt"
	"slices"
)

// LayerSpec defines one layer of a [Layers] set.
type LayerSpec struct {
	// Index orders layers. The layer with the lowest index is the near layer.
	Index int
	// Radius is the canonical radius the layer is advected at.
	Radius float32
}

// Layers advects one or two sample slices at different canonical radii around the same viewer
// and provides the values a ray marcher interpolates between them.
type Layers struct {
	specs   []LayerSpec
	engines []*Engine
	pin     ForwardPin
	cfg     Config
}

// NewLayers creates a layer set from one or two specs sharing cfg, all starting at pose.
func NewLayers(cfg Config, pose Pose, specs ...LayerSpec) (*Layers, error) {
	if len(specs) == 0 || len(specs) > 2 {
		return nil, fmt.Errorf("need 1 or 2 layers, got %d", len(specs))
	}
	specs = slices.Clone(specs)
	slices.SortStableFunc(specs, func(a, b LayerSpec) int { return a.Index - b.Index })
	if len(specs) == 2 && specs[0].Index == specs[1].Index {
		return nil, errors.New("layer indices must be distinct")
	}
	l := &Layers{specs: specs, cfg: cfg, pin: ForwardPin{Period: cfg.LargestPosRayStep}}
	for _, spec := range specs {
		e, err := NewEngine(cfg, spec.Radius, pose)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", spec.Index, err)
		}
		l.engines = append(l.engines, e)
	}
	return l, nil
}

// Len returns the number of layers.
func (l *Layers) Len() int { return len(l.engines) }

// Engine returns the engine of the i'th layer in index order.
func (l *Layers) Engine(i int) *Engine { return l.engines[i] }

// Reload replaces the configuration of all layers.
func (l *Layers) Reload(cfg Config) error {
	for _, e := range l.engines {
		if err := e.Reload(cfg); err != nil {
			return err
		}
	}
	l.cfg = cfg
	l.pin.Period = cfg.LargestPosRayStep
	return nil
}

// Step advances every layer by one frame and then updates the forward pin integrator
// with the near layer's committed middle scale.
func (l *Layers) Step(pose Pose, dt float32) {
	for _, e := range l.engines {
		e.Step(pose, dt)
	}
	if l.cfg.IntegrateForward {
		near := l.engines[0]
		l.pin.Update(pose, near.MiddleScale(), near.slice.radius)
	}
}

// ForwardPin returns the forward integrator state: travelled distance and middle scale ratio.
func (l *Layers) ForwardPin() (distance, scale float32) {
	return l.pin.Distance(), l.pin.Scale()
}

// RadiusInterp returns the near radius and the reciprocal of the radius difference a
// ray marcher uses to interpolate between layers. The reciprocal is zero with a single
// layer or equal radii.
func (l *Layers) RadiusInterp() (radius0, invDiff float32) {
	radius0 = l.specs[0].Radius
	if len(l.specs) == 1 {
		return radius0, 0
	}
	radius1 := l.specs[1].Radius
	if radius0 == radius1 {
		return radius0, 0
	}
	return radius0, 1 / (radius1 - radius0)
}

// SampleUV returns the normalized radius of the near and far layers at theta.
// With a single layer or two-layer sampling disabled both values are the near layer's.
func (l *Layers) SampleUV(theta float32) (r0, r1 float32) {
	r0 = l.engines[0].slice.SampleNorm(theta)
	r1 = r0
	if len(l.engines) > 1 && l.cfg.TwoLayer {
		r1 = l.engines[1].slice.SampleNorm(theta)
	}
	return r0, r1
}
