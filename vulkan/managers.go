package vulkan

import (
	"time"

	"github.com/andewx/dieselshare/handoff"
	vk "github.com/vulkan-go/vulkan"
)

// Fence tracks one submission. It satisfies handoff.Fence with a bounded wait.
type Fence struct {
	device vk.Device
	handle vk.Fence
}

func NewFence(device vk.Device) (*Fence, error) {
	var fence vk.Fence
	ret := vk.CreateFence(device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &fence)
	if isError(ret) {
		return nil, NewError(ret)
	}
	return &Fence{device: device, handle: fence}, nil
}

func (f *Fence) Handle() vk.Fence { return f.handle }

// Wait blocks at most timeout. A zero timeout only polls.
func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	if timeout < 0 {
		timeout = 0
	}
	ret := vk.WaitForFences(f.device, 1, []vk.Fence{f.handle}, vk.True, uint64(timeout.Nanoseconds()))
	switch ret {
	case vk.Success:
		return true, nil
	case vk.Timeout:
		return false, nil
	}
	return false, NewError(ret)
}

// Reset returns the fence to the unsignaled state for the next submission.
func (f *Fence) Reset() error {
	return NewError(vk.ResetFences(f.device, 1, []vk.Fence{f.handle}))
}

func (f *Fence) Destroy() {
	if f.handle != vk.NullFence {
		vk.DestroyFence(f.device, f.handle, nil)
		f.handle = vk.NullFence
	}
}

var _ handoff.Fence = (*Fence)(nil)

// CommandBufferManager allocates command buffers from one pool and recycles them.
// The manager is not thread-safe.
type CommandBufferManager struct {
	device  vk.Device
	pool    vk.CommandPool
	buffers []vk.CommandBuffer
	count   int
}

// NewCommandBufferManager creates a pool whose buffers may be reset individually.
func NewCommandBufferManager(device vk.Device, queueFamilyIndex uint32) (*CommandBufferManager, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamilyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if isError(ret) {
		return nil, NewError(ret)
	}
	return &CommandBufferManager{
		device: device,
		pool:   pool,
	}, nil
}

// Reset marks every managed buffer as recyclable. Only call once the GPU
// has finished with them.
func (c *CommandBufferManager) Reset() {
	c.count = 0
}

// NewCommandBuffer returns a fresh or recycled primary command buffer in the reset state.
func (c *CommandBufferManager) NewCommandBuffer() (vk.CommandBuffer, error) {
	if c.count < len(c.buffers) {
		buf := c.buffers[c.count]
		c.count++
		ret := vk.ResetCommandBuffer(buf,
			vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit))
		if isError(ret) {
			return buf, NewError(ret)
		}
		return buf, nil
	}
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(c.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if isError(ret) {
		return nil, NewError(ret)
	}
	c.buffers = append(c.buffers, buffers[0])
	c.count++
	return buffers[0], nil
}

func (c *CommandBufferManager) Destroy() {
	if len(c.buffers) > 0 {
		vk.FreeCommandBuffers(c.device, c.pool, uint32(len(c.buffers)), c.buffers)
		c.buffers = nil
	}
	vk.DestroyCommandPool(c.device, c.pool, nil)
	c.count = 0
}

func newSemaphore(device vk.Device) (vk.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if isError(ret) {
		return vk.NullSemaphore, NewError(ret)
	}
	return sem, nil
}
