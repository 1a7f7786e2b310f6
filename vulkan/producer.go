package vulkan

import (
	"time"
	"unsafe"

	"github.com/andewx/dieselshare/handoff"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// ShaderPaths locates the SPIR-V binaries of the triangle pipeline.
type ShaderPaths struct {
	Vertex   string
	Fragment string
}

// Producer renders a rotating triangle into a shared color surface.
type Producer struct {
	ctx    *Context
	shared *Resource
	plan   handoff.ProducerPlan

	view        vk.ImageView
	renderPass  vk.RenderPass
	framebuffer vk.Framebuffer
	layout      vk.PipelineLayout
	pipeline    vk.Pipeline

	commands *CommandBufferManager
	fence    *Fence
	turn     *handoff.Turn
	log      *logrus.Entry
}

func NewProducer(ctx *Context, shared *Resource, shaders ShaderPaths, fenceTimeout time.Duration) (p *Producer, err error) {
	if shared.Aspect != vk.ImageAspectFlags(vk.ImageAspectColorBit) {
		return nil, errNotColor
	}
	p = &Producer{
		ctx:         ctx,
		shared:      shared,
		plan:        handoff.NewProducerPlan(),
		view:        vk.NullImageView,
		renderPass:  vk.NullRenderPass,
		framebuffer: vk.NullFramebuffer,
		layout:      vk.NullPipelineLayout,
		pipeline:    vk.NullPipeline,
		turn:        handoff.NewTurn(fenceTimeout),
		log:         ctx.log.WithField("component", "vulkan-producer"),
	}
	defer func() {
		if err != nil {
			p.destroy()
		}
	}()

	device := ctx.device
	if p.view, err = newImageView(device, shared.Image, shared.Format); err != nil {
		return nil, err
	}
	if p.renderPass, err = NewRenderPass(device, shared.Format, p.plan); err != nil {
		return nil, err
	}
	ret := vk.CreateFramebuffer(device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      p.renderPass,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{p.view},
		Width:           shared.Width,
		Height:          shared.Height,
		Layers:          1,
	}, nil, &p.framebuffer)
	if isError(ret) {
		return nil, NewError(ret)
	}
	if p.layout, err = NewPipelineLayout(device); err != nil {
		return nil, err
	}
	if p.pipeline, err = p.buildPipeline(shaders); err != nil {
		return nil, err
	}
	if p.commands, err = NewCommandBufferManager(device, ctx.queueFamily); err != nil {
		return nil, err
	}
	if p.fence, err = NewFence(device); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Producer) buildPipeline(shaders ShaderPaths) (vk.Pipeline, error) {
	device := p.ctx.device
	vertex, err := LoadShaderModule(device, shaders.Vertex)
	if err != nil {
		return vk.NullPipeline, err
	}
	defer vk.DestroyShaderModule(device, vertex, nil)
	fragment, err := LoadShaderModule(device, shaders.Fragment)
	if err != nil {
		return vk.NullPipeline, err
	}
	defer vk.DestroyShaderModule(device, fragment, nil)

	extent := vk.Extent2D{Width: p.shared.Width, Height: p.shared.Height}
	return NewPipelineBuilder(vertex, fragment).Build(device, p.renderPass, p.layout, extent)
}

func newImageView(device vk.Device, image vk.Image, format vk.Format) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if isError(ret) {
		return vk.NullImageView, NewError(ret)
	}
	return view, nil
}

// Frame renders the triangle rotated to t seconds. It is skipped when the
// previous frame has not completed within the fence timeout.
func (p *Producer) Frame(t float32) (handoff.Outcome, error) {
	return p.turn.Run(func() (handoff.Fence, error) {
		return p.submit(t)
	})
}

func (p *Producer) Stats() handoff.Stats {
	return p.turn.Stats()
}

func (p *Producer) submit(t float32) (handoff.Fence, error) {
	p.commands.Reset()
	cmd, err := p.commands.NewCommandBuffer()
	if err != nil {
		return nil, err
	}
	if err := p.record(cmd, t); err != nil {
		return nil, err
	}
	if err := p.fence.Reset(); err != nil {
		return nil, err
	}
	ret := vk.QueueSubmit(p.ctx.queue, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{p.shared.Semaphore},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(p.plan.WaitStage)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{p.shared.Semaphore},
	}}, p.fence.handle)
	if isError(ret) {
		return nil, NewError(ret)
	}
	return p.fence, nil
}

func (p *Producer) record(cmd vk.CommandBuffer, t float32) error {
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if isError(ret) {
		return NewError(ret)
	}
	cmdBarriers(cmd, p.plan.Before, map[handoff.Role]vk.Image{handoff.RoleShared: p.shared.Image})

	background := vk.NewClearValue([]float32{0, 0, 0, 1})
	vk.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  p.renderPass,
		Framebuffer: p.framebuffer,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: p.shared.Width, Height: p.shared.Height},
		},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{background},
	}, vk.SubpassContentsInline)
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, p.pipeline)

	push := pushConstants{Time: t, Aspect: aspect(p.shared.Width, p.shared.Height)}
	vk.CmdPushConstants(cmd, p.layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		0, pushConstantsSize, unsafe.Pointer(&push))
	vk.CmdDraw(cmd, 3, 1, 0, 0)
	vk.CmdEndRenderPass(cmd)
	return NewError(vk.EndCommandBuffer(cmd))
}

// aspect is height over width, the x scale that keeps the triangle square.
func aspect(width, height uint32) float32 {
	if width == 0 {
		return 1
	}
	return float32(height) / float32(width)
}

// Destroy waits for the frame in flight, bounded by timeout, and releases the
// producer's objects. The shared resource is not touched.
func (p *Producer) Destroy(timeout time.Duration) error {
	if err := p.turn.Drain(timeout); err != nil {
		p.log.Warnf("leaving frame objects alive: %v", err)
		return err
	}
	p.destroy()
	return nil
}

func (p *Producer) destroy() {
	device := p.ctx.device
	if p.fence != nil {
		p.fence.Destroy()
		p.fence = nil
	}
	if p.commands != nil {
		p.commands.Destroy()
		p.commands = nil
	}
	if p.pipeline != vk.NullPipeline {
		vk.DestroyPipeline(device, p.pipeline, nil)
		p.pipeline = vk.NullPipeline
	}
	if p.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, p.layout, nil)
		p.layout = vk.NullPipelineLayout
	}
	if p.framebuffer != vk.NullFramebuffer {
		vk.DestroyFramebuffer(device, p.framebuffer, nil)
		p.framebuffer = vk.NullFramebuffer
	}
	if p.renderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(device, p.renderPass, nil)
		p.renderPass = vk.NullRenderPass
	}
	if p.view != vk.NullImageView {
		vk.DestroyImageView(device, p.view, nil)
		p.view = vk.NullImageView
	}
}
