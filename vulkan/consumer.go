package vulkan

import (
	"errors"
	"time"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/handoff"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Consumer copies a shared color surface into a swapchain every frame.
type Consumer struct {
	ctx       *Context
	swapchain *Swapchain
	shared    *Resource
	flipY     bool

	commands *CommandBufferManager
	acquired vk.Semaphore
	rendered vk.Semaphore
	fence    *Fence
	turn     *handoff.Turn
	log      *logrus.Entry
}

// NewConsumer prepares per-frame objects. flipY reads the shared image
// bottom up, for surfaces written by GL.
func NewConsumer(ctx *Context, swapchain *Swapchain, shared *Resource, fenceTimeout time.Duration, flipY bool) (c *Consumer, err error) {
	if shared.Aspect != vk.ImageAspectFlags(vk.ImageAspectColorBit) {
		return nil, errNotColor
	}
	c = &Consumer{
		ctx:       ctx,
		swapchain: swapchain,
		shared:    shared,
		flipY:     flipY,
		acquired:  vk.NullSemaphore,
		rendered:  vk.NullSemaphore,
		turn:      handoff.NewTurn(fenceTimeout),
		log:       ctx.log.WithField("component", "vulkan-consumer"),
	}
	defer func() {
		if err != nil {
			c.destroy()
		}
	}()
	if c.commands, err = NewCommandBufferManager(ctx.device, ctx.queueFamily); err != nil {
		return nil, err
	}
	if c.acquired, err = newSemaphore(ctx.device); err != nil {
		return nil, err
	}
	if c.rendered, err = newSemaphore(ctx.device); err != nil {
		return nil, err
	}
	if c.fence, err = NewFence(ctx.device); err != nil {
		return nil, err
	}
	return c, nil
}

// Frame takes one consumer turn. A frame is skipped when the previous one
// has not completed within the fence timeout or the swapchain had to be
// recreated.
func (c *Consumer) Frame() (handoff.Outcome, error) {
	out, err := c.turn.Run(c.submit)
	if errors.Is(err, ds.ErrOutOfDate) {
		c.log.Debug("swapchain out of date")
		return out, nil
	}
	return out, err
}

func (c *Consumer) Stats() handoff.Stats {
	return c.turn.Stats()
}

func (c *Consumer) submit() (handoff.Fence, error) {
	index, err := c.swapchain.Acquire(c.acquired)
	if err != nil {
		return nil, err
	}
	extent := c.swapchain.Extent()
	plan := handoff.NewConsumerPlan(
		handoff.Extent{Width: int32(c.shared.Width), Height: int32(c.shared.Height)},
		handoff.Extent{Width: int32(extent.Width), Height: int32(extent.Height)},
		c.flipY)

	if err := c.queueBlit(plan, index); err != nil {
		return c.abandon(err)
	}
	return c.fence, c.swapchain.Present(index, c.rendered)
}

// queueBlit records and submits the copy into swapchain image index. An
// error means nothing was queued.
func (c *Consumer) queueBlit(plan handoff.ConsumerPlan, index uint32) error {
	c.commands.Reset()
	cmd, err := c.commands.NewCommandBuffer()
	if err != nil {
		return err
	}
	if err := recordConsumer(cmd, plan, c.shared.Image, c.swapchain.Image(index)); err != nil {
		return err
	}
	if err := c.fence.Reset(); err != nil {
		return err
	}
	ret := vk.QueueSubmit(c.ctx.queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 2,
		PWaitSemaphores:    []vk.Semaphore{c.acquired, c.shared.Semaphore},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(plan.WaitStage),
			vk.PipelineStageFlags(plan.WaitStage),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd},
		SignalSemaphoreCount: 2,
		PSignalSemaphores:    []vk.Semaphore{c.rendered, c.shared.Semaphore},
	}}, c.fence.handle)
	return NewError(ret)
}

// abandon gives up a frame whose image was acquired but whose copy was never
// queued. An empty batch consumes the acquire signal so the semaphore can be
// signaled again, and the swapchain is retired so the unpresented image is
// not lost. The batch's fence is returned as the frame in flight.
func (c *Consumer) abandon(cause error) (handoff.Fence, error) {
	c.swapchain.retire()
	fence := vk.NullFence
	if c.fence.Reset() == nil {
		fence = c.fence.handle
	}
	ret := vk.QueueSubmit(c.ctx.queue, 1, []vk.SubmitInfo{waitOnly(c.acquired, handoff.StageTransfer)}, fence)
	if isError(ret) {
		c.log.Warnf("acquire semaphore left signaled: %v", NewError(ret))
		return nil, cause
	}
	if fence == vk.NullFence {
		return nil, cause
	}
	return c.fence, cause
}

// waitOnly is a batch that only waits on semaphore.
func waitOnly(semaphore vk.Semaphore, stage handoff.Stage) vk.SubmitInfo {
	return vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{semaphore},
		PWaitDstStageMask:  []vk.PipelineStageFlags{vk.PipelineStageFlags(stage)},
	}
}

func recordConsumer(cmd vk.CommandBuffer, plan handoff.ConsumerPlan, shared, target vk.Image) error {
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if isError(ret) {
		return NewError(ret)
	}
	images := map[handoff.Role]vk.Image{
		handoff.RoleShared: shared,
		handoff.RoleTarget: target,
	}
	cmdBarriers(cmd, plan.Before, images)
	vk.CmdBlitImage(cmd,
		shared, vk.ImageLayoutTransferSrcOptimal,
		target, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{imageBlit(plan.Blit)}, vk.FilterNearest)
	cmdBarriers(cmd, plan.After, images)
	return NewError(vk.EndCommandBuffer(cmd))
}

// Destroy waits for the frame in flight, bounded by timeout, and releases
// the consumer's objects. If the frame does not complete they are left alive
// since the GPU may still use them. The shared resource and swapchain are not
// touched.
func (c *Consumer) Destroy(timeout time.Duration) error {
	if err := c.turn.Drain(timeout); err != nil {
		c.log.Warnf("leaving frame objects alive: %v", err)
		return err
	}
	c.destroy()
	return nil
}

func (c *Consumer) destroy() {
	if c.fence != nil {
		c.fence.Destroy()
		c.fence = nil
	}
	if c.rendered != vk.NullSemaphore {
		vk.DestroySemaphore(c.ctx.device, c.rendered, nil)
		c.rendered = vk.NullSemaphore
	}
	if c.acquired != vk.NullSemaphore {
		vk.DestroySemaphore(c.ctx.device, c.acquired, nil)
		c.acquired = vk.NullSemaphore
	}
	if c.commands != nil {
		c.commands.Destroy()
		c.commands = nil
	}
}
