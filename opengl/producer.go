package opengl

import (
	"errors"
	"fmt"
	"time"

	"github.com/andewx/dieselshare/handoff"
	"github.com/andewx/dieselshare/internal/glext"
	"github.com/go-gl/gl/v3.2-core/gl"
	"github.com/sirupsen/logrus"
)

var errNotColor = errors.New("opengl: shared surface is not a color texture")

// Producer renders a rotating triangle into a shared color texture and can
// show the result in the default framebuffer.
type Producer struct {
	ctx    *Context
	drv    driver
	shared *Resource

	program uint32
	vao     uint32
	vbo     uint32
	fbo     uint32
	uTime   int32
	uWidth  int32
	uHeight int32

	turn *handoff.Turn
	log  *logrus.Entry
}

func NewProducer(ctx *Context, shared *Resource, fenceTimeout time.Duration) (p *Producer, err error) {
	if shared.Format.IsDepth() {
		return nil, errNotColor
	}
	p = &Producer{
		ctx:    ctx,
		shared: shared,
		turn:   handoff.NewTurn(fenceTimeout),
		log:    ctx.log.WithField("component", "opengl-producer"),
	}
	if p.drv, err = newDriver(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			p.destroy()
		}
	}()

	gl.GenFramebuffers(1, &p.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, p.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, shared.Texture, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		return nil, fmt.Errorf("opengl: shared framebuffer incomplete: %#x", status)
	}

	gl.GenVertexArrays(1, &p.vao)
	gl.BindVertexArray(p.vao)
	gl.GenBuffers(1, &p.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, p.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(triangleVertices)*4, gl.Ptr(triangleVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(attribPosition)
	gl.EnableVertexAttribArray(attribColor)
	gl.VertexAttribPointerWithOffset(attribPosition, 2, gl.FLOAT, false, 6*4, 0)
	gl.VertexAttribPointerWithOffset(attribColor, 4, gl.FLOAT, false, 6*4, 2*4)
	gl.BindVertexArray(0)

	if p.program, err = linkProgram(triangleVertexShader, triangleFragmentShader); err != nil {
		return nil, err
	}
	p.uTime = gl.GetUniformLocation(p.program, gl.Str("t\x00"))
	p.uWidth = gl.GetUniformLocation(p.program, gl.Str("w\x00"))
	p.uHeight = gl.GetUniformLocation(p.program, gl.Str("h\x00"))
	return p, nil
}

// Frame renders the triangle rotated to t seconds. The frame is skipped
// when the previous one has not completed within the fence timeout or the
// semaphore wait was rejected.
func (p *Producer) Frame(t float32) (handoff.Outcome, error) {
	return p.turn.Run(func() (handoff.Fence, error) {
		return p.submit(t), nil
	})
}

func (p *Producer) Stats() handoff.Stats {
	return p.turn.Stats()
}

func (p *Producer) submit(t float32) handoff.Fence {
	r := p.shared
	err := checked(p.drv, "glWaitSemaphoreEXT", func() {
		p.ctx.ext.WaitSemaphore(r.Semaphore, r.Texture, glext.LayoutShaderReadOnly)
	})
	if err != nil {
		p.log.Debugf("semaphore wait rejected: %v", err)
		return nil
	}

	gl.Viewport(0, 0, r.Width, r.Height)
	gl.BindFramebuffer(gl.FRAMEBUFFER, p.fbo)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.UseProgram(p.program)
	gl.BindVertexArray(p.vao)
	gl.Uniform1f(p.uTime, t)
	gl.Uniform1i(p.uWidth, r.Width)
	gl.Uniform1i(p.uHeight, r.Height)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	p.ctx.ext.SignalSemaphore(r.Semaphore, r.Texture, glext.LayoutShaderReadOnly)
	return newSync()
}

// Present copies the shared texture into the default framebuffer of the
// given size, scaling with nearest filtering.
func (p *Producer) Present(width, height int32) {
	region := handoff.BlitRegion(
		handoff.Extent{Width: p.shared.Width, Height: p.shared.Height},
		handoff.Extent{Width: width, Height: height}, false)

	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, p.fbo)
	gl.BlitFramebuffer(
		region.Src[0].X, region.Src[0].Y, region.Src[1].X, region.Src[1].Y,
		region.Dst[0].X, region.Dst[0].Y, region.Dst[1].X, region.Dst[1].Y,
		gl.COLOR_BUFFER_BIT, gl.NEAREST)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
}

// Destroy waits for the frame in flight, bounded by timeout, and deletes
// the producer's objects. The shared resource is not touched.
func (p *Producer) Destroy(timeout time.Duration) error {
	if err := p.turn.Drain(timeout); err != nil {
		p.log.Warnf("leaving frame objects alive: %v", err)
		return err
	}
	p.destroy()
	return nil
}

func (p *Producer) destroy() {
	if p.program != 0 {
		gl.DeleteProgram(p.program)
		p.program = 0
	}
	if p.vbo != 0 {
		gl.DeleteBuffers(1, &p.vbo)
		p.vbo = 0
	}
	if p.vao != 0 {
		gl.DeleteVertexArrays(1, &p.vao)
		p.vao = 0
	}
	if p.fbo != 0 {
		gl.DeleteFramebuffers(1, &p.fbo)
		p.fbo = 0
	}
}
