package rayscales

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/chewxy/math32"
)

// ExtrapolationMode selects how samples are introduced in newly exposed angular regions.
type ExtrapolationMode uint8

const (
	// ExtrapolateSegment distributes new samples along a line segment by index.
	ExtrapolateSegment ExtrapolationMode = iota
	// ExtrapolateIntersect intersects each new sample's ray with the extrapolation segment.
	ExtrapolateIntersect
)

func (m ExtrapolationMode) String() string {
	switch m {
	case ExtrapolateSegment:
		return "segment"
	case ExtrapolateIntersect:
		return "intersect"
	}
	return fmt.Sprintf("ExtrapolationMode(%d)", uint8(m))
}

// MarshalText implements [encoding.TextMarshaler].
func (m ExtrapolationMode) MarshalText() ([]byte, error) {
	if m > ExtrapolateIntersect {
		return nil, fmt.Errorf("invalid extrapolation mode %d", uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (m *ExtrapolationMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "segment":
		*m = ExtrapolateSegment
	case "intersect":
		*m = ExtrapolateIntersect
	default:
		return fmt.Errorf("unknown extrapolation mode %q", b)
	}
	return nil
}

// Config holds the tunables of an [Engine]. A Config is copied into the engine at construction
// and never modified by it; use [Engine.Reload] to change it.
type Config struct {
	// ScaleCount is the number of samples N in the slice. Must be at least 2.
	ScaleCount int `json:"scaleCount"`
	// HalfFov is the horizontal half field of view in radians covered by the slice.
	HalfFov float32 `json:"halfFov"`

	// Reinit re-creates the slice with Layout every frame.
	Reinit bool   `json:"reinit"`
	Layout Layout `json:"layout"`

	// ClearOnTeleport enables the speed based teleport trigger.
	ClearOnTeleport bool `json:"clearOnTeleport"`
	// TeleportSpeed is the viewer speed in units per second above which a frame is a teleport.
	TeleportSpeed float32 `json:"teleportSpeed"`

	// Advect enables the advection process. When false the samples are left untouched.
	Advect bool `json:"advect"`
	// Iterations is the number of fixed point iterations used by the inverse angle solver.
	Iterations int `json:"iterations"`
	// ForwardPinCompensation scales the forward motion compensation by the ratio of the
	// sample radius to the middle radius, matching forward pinned ray marching.
	ForwardPinCompensation bool `json:"forwardPinCompensation"`
	// Extrapolation selects how newly exposed regions are filled.
	Extrapolation ExtrapolationMode `json:"extrapolation"`
	// AlphaScaleReturn is the rate at which newly introduced samples return to the canonical radius.
	AlphaScaleReturn float32 `json:"alphaScaleReturn"`

	// Clamp bounds normalized radii between an inverted circle and the fixed-Z plane.
	Clamp bool `json:"clamp"`

	// LimitGradient enables gradient relaxation.
	LimitGradient bool `json:"limitGradient"`
	// MaxGradient is the largest slope permitted between adjacent samples.
	MaxGradient float32 `json:"maxGradient"`
	// AlphaGradient is the gain of the gradient relaxation.
	AlphaGradient float32 `json:"alphaGradient"`

	// UseMotionMeasure modulates relaxation and scale return by camera motion. When false
	// the motion measure is always 1.
	UseMotionMeasure  bool    `json:"useMotionMeasure"`
	MotionCoeffRot    float32 `json:"motionCoeffRot"`
	MotionCoeffStrafe float32 `json:"motionCoeffStrafe"`

	// Freeze computes new samples every frame without committing them.
	Freeze bool `json:"freeze"`
	// Diagnostics records the largest solver residual in [FrameStats].
	Diagnostics bool `json:"diagnostics"`

	// TwoLayer enables sampling of a second layer in [Layers].
	TwoLayer bool `json:"twoLayer"`
	// IntegrateForward enables the [ForwardPin] integrator driven by [Layers].
	IntegrateForward bool `json:"integrateForward"`
	// LargestPosRayStep is the period the forward integrator is wrapped by. It must be larger
	// than any ray march step to avoid pops.
	LargestPosRayStep float32 `json:"largestPosRayStep"`

	// Logf receives teleport and reinitialization notices. A nil Logf is silent.
	Logf func(format string, args ...any) `json:"-"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		ScaleCount:             101,
		HalfFov:                math32.Pi / 4,
		ClearOnTeleport:        true,
		TeleportSpeed:          100,
		Advect:                 true,
		Iterations:             3,
		ForwardPinCompensation: true,
		Extrapolation:          ExtrapolateSegment,
		AlphaScaleReturn:       1,
		Clamp:                  true,
		LimitGradient:          true,
		MaxGradient:            0.01,
		AlphaGradient:          0.3,
		UseMotionMeasure:       true,
		MotionCoeffRot:         0.001,
		MotionCoeffStrafe:      0.65,
		TwoLayer:               true,
		IntegrateForward:       true,
		LargestPosRayStep:      128,
	}
}

// LoadConfig decodes a JSON configuration from r. Fields absent from the JSON keep their
// [DefaultConfig] values. The result is validated before being returned.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field of cfg.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.ScaleCount < 2 {
		errs = append(errs, fmt.Errorf("scale count must be at least 2, got %d", cfg.ScaleCount))
	}
	if !(cfg.HalfFov > 0 && cfg.HalfFov < piHalf) {
		errs = append(errs, fmt.Errorf("half fov must be in (0, π/2), got %g", cfg.HalfFov))
	}
	if cfg.Iterations < 0 {
		errs = append(errs, errors.New("negative solver iterations"))
	}
	if cfg.ClearOnTeleport && !(cfg.TeleportSpeed > 0) {
		errs = append(errs, errors.New("teleport speed must be positive"))
	}
	if cfg.LimitGradient && cfg.MaxGradient < 0 {
		errs = append(errs, errors.New("negative max gradient"))
	}
	if cfg.AlphaGradient < 0 || cfg.AlphaScaleReturn < 0 {
		errs = append(errs, errors.New("negative gain"))
	}
	if cfg.IntegrateForward && !(cfg.LargestPosRayStep > 0) {
		errs = append(errs, errors.New("largest ray step must be positive"))
	}
	if cfg.Extrapolation > ExtrapolateIntersect {
		errs = append(errs, fmt.Errorf("invalid extrapolation mode %d", uint8(cfg.Extrapolation)))
	}
	return errors.Join(errs...)
}

func (cfg *Config) logf(format string, args ...any) {
	if cfg.Logf != nil {
		cfg.Logf(format, args...)
	}
}
