//go:build !tinygo && cgo

package scalegpu

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/rayscales"
)

// Init1x1GLFW starts a hidden 1x1 sized GLFW window with a current OpenGL 4.6 context so that
// the user can start working with the GPU. It returns a termination function that should be
// called when the user is done running loads on the GPU. GLFW must be used from the main thread.
func Init1x1GLFW() (terminate func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, err
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Visible, glfw.False)
	window, err := glfw.CreateWindow(1, 1, "rayscales compute", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, err
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, err
	}
	return func() {
		window.Destroy()
		glfw.Terminate()
	}, nil
}

// Advector runs the raw advection of a [rayscales.Slice] on the GPU.
// It requires a current OpenGL 4.3+ context on the calling thread.
type Advector struct {
	prog   glgl.Program
	invocX int
	locs   [numUniforms]int32
	prev   []float32
}

var _ rayscales.Advector = (*Advector)(nil)

// NewAdvector compiles the advection compute shader.
func NewAdvector(cfg Config) (*Advector, error) {
	var src bytes.Buffer
	_, err := WriteComputeAdvect(&src, cfg.InvocX)
	if err != nil {
		return nil, err
	}
	src.WriteByte(0)
	prog, err := glgl.CompileProgram(glgl.ShaderSource{Compute: src.String()})
	if err != nil {
		return nil, fmt.Errorf("compiling advection shader: %w", err)
	}
	adv := &Advector{prog: prog, invocX: cfg.InvocX}
	prog.Bind()
	defer prog.Unbind()
	for i, name := range uniformNames {
		adv.locs[i], err = prog.UniformLocation(name)
		if err != nil {
			prog.Delete()
			return nil, fmt.Errorf("uniform %s: %w", name[:len(name)-1], err)
		}
	}
	return adv, nil
}

// Delete releases the compiled program.
func (adv *Advector) Delete() {
	adv.prog.Delete()
}

// Advect implements [rayscales.Advector].
func (adv *Advector) Advect(dst, theta0s []float32, prev *rayscales.Slice, params rayscales.AdvectParams) error {
	n := prev.Len()
	if len(dst) != n || len(theta0s) != n {
		return errors.New("advection buffers must match slice length")
	} else if adv.prog.ID() == 0 {
		return errors.New("program id is 0, did you create the Advector with NewAdvector?")
	}
	prog := adv.prog
	prog.Bind()
	defer prog.Unbind()

	prevPose := prev.Pose()
	cur := params.Current
	pullIn := ms3.Dot(ms3.Sub(cur.Pos, prevPose.Pos), cur.Forward)
	forwardPin := int32(0)
	if params.ForwardPin {
		forwardPin = 1
	}
	gl.Uniform1i(adv.locs[locN], int32(n))
	gl.Uniform1i(adv.locs[locIters], int32(params.Iterations))
	gl.Uniform1i(adv.locs[locForwardPin], forwardPin)
	gl.Uniform1f(adv.locs[locHalfFov], prev.HalfFov())
	gl.Uniform1f(adv.locs[locRadius], prev.Radius())
	gl.Uniform1f(adv.locs[locPullIn], pullIn)
	gl.Uniform1f(adv.locs[locMidR], prev.SampleR(rayscales.ForwardTheta))
	setVec3(adv.locs[locPrevPos], prevPose.Pos)
	setVec3(adv.locs[locPrevRight], prevPose.Right)
	setVec3(adv.locs[locPrevForward], prevPose.Forward)
	setVec3(adv.locs[locCurPos], cur.Pos)
	setVec3(adv.locs[locCurRight], cur.Right)
	setVec3(adv.locs[locCurUp], cur.Up())
	setVec3(adv.locs[locCurForward], cur.Forward)
	err := glgl.Err()
	if err != nil {
		return err
	}

	adv.prev = prev.AppendRadii(adv.prev[:0])
	var p runtime.Pinner
	ssboPrev := loadSSBO(adv.prev, bindingPrev, gl.STATIC_DRAW)
	ssboRadii := createSSBO(elemSize[float32]()*n, bindingRadii, gl.DYNAMIC_READ)
	ssboTheta0 := createSSBO(elemSize[float32]()*n, bindingTheta0, gl.DYNAMIC_READ)
	p.Pin(&ssboPrev)
	p.Pin(&ssboRadii)
	p.Pin(&ssboTheta0)
	defer p.Unpin()
	defer gl.DeleteBuffers(1, &ssboPrev)
	defer gl.DeleteBuffers(1, &ssboRadii)
	defer gl.DeleteBuffers(1, &ssboTheta0)
	if ssboPrev == 0 || ssboRadii == 0 || ssboTheta0 == 0 {
		return glErrOrMessage("zero SSBO id set by GL during advection loading")
	}

	nWorkX := (n + adv.invocX - 1) / adv.invocX
	gl.DispatchCompute(uint32(nWorkX), 1, 1)
	err = glgl.Err()
	if err != nil {
		return err
	}
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	err = copySSBO(dst, ssboRadii)
	if err != nil {
		return err
	}
	err = copySSBO(theta0s, ssboTheta0)
	if err != nil {
		return err
	}
	return glgl.Err()
}

func setVec3(loc int32, v ms3.Vec) {
	gl.Uniform3f(loc, v.X, v.Y, v.Z)
}

func elemSize[T any]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

func loadSSBO[T any](slice []T, base, usage uint32) (ssbo uint32) {
	var p runtime.Pinner
	p.Pin(&ssbo)
	gl.GenBuffers(1, &ssbo)
	p.Unpin()
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	size := len(slice) * elemSize[T]()
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, unsafe.Pointer(&slice[0]), usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func createSSBO(size int, base, usage uint32) (ssbo uint32) {
	gl.GenBuffers(1, &ssbo)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, nil, usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func copySSBO[T any](dst []T, ssbo uint32) error {
	bufSize := elemSize[T]() * len(dst)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	ptr := gl.MapBufferRange(gl.SHADER_STORAGE_BUFFER, 0, bufSize, gl.MAP_READ_BIT)
	if ptr == nil {
		return glErrOrMessage("failed to map SSBO buffer during copy")
	}
	defer gl.UnmapBuffer(gl.SHADER_STORAGE_BUFFER)
	gpuBytes := unsafe.Slice((*byte)(ptr), bufSize)
	bufBytes := unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), bufSize)
	copy(bufBytes, gpuBytes)
	return nil
}

func glErrOrMessage(defaultMsg string) (err error) {
	err = glgl.Err()
	if err == nil {
		err = errors.New(defaultMsg)
	} else {
		err = fmt.Errorf("%s: %w", defaultMsg, err)
	}
	return err
}
