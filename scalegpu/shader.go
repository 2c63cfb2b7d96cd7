// Package scalegpu implements a [rayscales.Advector] that runs the raw advection of every
// slice index as a single OpenGL compute dispatch.
package scalegpu

import (
	"errors"
	"fmt"
	"io"
)

// Uniform indices into uniformNames.
const (
	locN = iota
	locIters
	locForwardPin
	locHalfFov
	locRadius
	locPullIn
	locMidR
	locPrevPos
	locPrevRight
	locPrevForward
	locCurPos
	locCurRight
	locCurUp
	locCurForward
	numUniforms
)

// uniformNames are the null terminated uniform names of the advection shader, indexed by the loc constants.
var uniformNames = [numUniforms]string{
	locN:           "uN\x00",
	locIters:       "uIters\x00",
	locForwardPin:  "uForwardPin\x00",
	locHalfFov:     "uHalfFov\x00",
	locRadius:      "uRadius\x00",
	locPullIn:      "uPullIn\x00",
	locMidR:        "uMidR\x00",
	locPrevPos:     "uPrevPos\x00",
	locPrevRight:   "uPrevRight\x00",
	locPrevForward: "uPrevForward\x00",
	locCurPos:      "uCurPos\x00",
	locCurRight:    "uCurRight\x00",
	locCurUp:       "uCurUp\x00",
	locCurForward:  "uCurForward\x00",
}

// SSBO binding points of the advection shader.
const (
	bindingPrev   = 0
	bindingRadii  = 1
	bindingTheta0 = 2
)

const advectShader = `#version 430
layout(local_size_x = %d, local_size_y = 1, local_size_z = 1) in;

// Normalized radii of the previous slice.
layout(std430, binding = 0) buffer PrevBuffer {
	float prev_radii[];
};

// Normalized advected radii.
layout(std430, binding = 1) buffer RadiiBuffer {
	float out_radii[];
};

// Solved previous-frame angles.
layout(std430, binding = 2) buffer Theta0Buffer {
	float out_theta0[];
};

uniform int uN;
uniform int uIters;
uniform int uForwardPin;
uniform float uHalfFov;
uniform float uRadius;
uniform float uPullIn;
uniform float uMidR;
uniform vec3 uPrevPos;
uniform vec3 uPrevRight;
uniform vec3 uPrevForward;
uniform vec3 uCurPos;
uniform vec3 uCurRight;
uniform vec3 uCurUp;
uniform vec3 uCurForward;

const float PI_HALF = 1.5707963267948966;
const float EPS = 6e-7;

float sampleR(float theta) {
	float t = clamp((theta - (PI_HALF - uHalfFov)) / (2.0*uHalfFov), 0.0, 1.0);
	if (isnan(t)) {
		t = 0.0;
	}
	t *= float(uN-1);
	int i0 = int(floor(t));
	int i1 = int(ceil(t));
	return uRadius * mix(prev_radii[i0], prev_radii[i1], t-float(i0));
}

vec3 pos0(float theta) {
	float r = sampleR(theta);
	return uPrevPos + r*cos(theta)*uPrevRight + r*sin(theta)*uPrevForward;
}

vec3 pinShift(vec3 dir, float theta0) {
	float n = length(dir);
	if (n < EPS || uMidR < EPS) {
		return vec3(0.0);
	}
	return dir * (uPullIn*sampleR(theta0)/uMidR/n);
}

float theta1(float theta0) {
	vec3 d = pos0(theta0) - uCurPos;
	vec3 local = vec3(dot(d, uCurRight), dot(d, uCurUp), dot(d, uCurForward));
	if (uForwardPin == 0) {
		local.z += uPullIn;
	} else {
		local += pinShift(local, theta0);
	}
	return atan(local.z, local.x);
}

float r1(float theta0) {
	vec3 p1 = uCurPos;
	if (uForwardPin == 0) {
		p1 -= uPullIn*uCurForward;
	}
	vec3 offset = pos0(theta0) - p1;
	if (uForwardPin != 0) {
		offset += pinShift(offset, theta0);
	}
	return length(offset);
}

void main() {
	int idx = int( gl_GlobalInvocationID.x );
	if (idx >= uN) {
		return;
	}
	float th1 = 2.0*uHalfFov*float(idx)/float(uN-1) - uHalfFov + PI_HALF;
	float th0 = th1;
	for (int i = 0; i < uIters; i++) {
		th0 += th1 - theta1(th0);
	}
	out_theta0[idx] = th0;
	out_radii[idx] = r1(th0) / uRadius;
}
`

// WriteComputeAdvect writes the GLSL source of the advection compute shader with
// invocX invocations per work group to w. The source is not null terminated.
func WriteComputeAdvect(w io.Writer, invocX int) (int, error) {
	if invocX < 1 {
		return 0, errors.New("zero or negative invocation size")
	}
	return fmt.Fprintf(w, advectShader, invocX)
}

// Config configures a GPU [Advector].
type Config struct {
	// InvocX is the amount of compute invocations per work group.
	InvocX int
}
