package vulkan

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// Display is a glfw window presented through Vulkan.
type Display struct {
	window *glfw.Window
}

func NewDisplay(window *glfw.Window) *Display {
	return &Display{window: window}
}

// InstanceExtensions are the extensions the window system needs.
func (d *Display) InstanceExtensions() []string {
	return d.window.GetRequiredInstanceExtensions()
}

// CreateSurface fits ContextOptions.Surface.
func (d *Display) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := d.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("vulkan error: create window surface: %w", err)
	}
	return vk.SurfaceFromPointer(ptr), nil
}

// Size is the framebuffer size in pixels.
func (d *Display) Size() (int, int) {
	return d.window.GetFramebufferSize()
}
