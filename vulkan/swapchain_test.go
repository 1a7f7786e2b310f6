package vulkan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestSwapchainDestroyLeavesStalledSwapchain(t *testing.T) {
	var timeouts []time.Duration
	s := &Swapchain{ctx: stalledContext(&timeouts), handle: vk.Swapchain(fakeObject())}
	handle := s.handle

	err := s.Destroy(50 * time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, timeouts)
	assert.Equal(t, handle, s.handle)
}

func TestSwapchainDestroyWithoutHandle(t *testing.T) {
	var timeouts []time.Duration
	s := &Swapchain{ctx: stalledContext(&timeouts), handle: vk.NullSwapchain}
	assert.NoError(t, s.Destroy(time.Millisecond))
	assert.Empty(t, timeouts)
}

func TestSwapchainRetireDefersRelease(t *testing.T) {
	s := &Swapchain{handle: vk.Swapchain(fakeObject())}
	// A live swapchain is reused as is.
	assert.NoError(t, s.ensure())

	// Retiring touches neither the device nor the handle.
	s.retire()
	assert.True(t, s.retired)
	assert.NotEqual(t, vk.NullSwapchain, s.handle)

	empty := &Swapchain{handle: vk.NullSwapchain}
	empty.retire()
	assert.False(t, empty.retired)
}
