package vulkan

import (
	"fmt"
	"time"

	ds "github.com/andewx/dieselshare"
	vk "github.com/vulkan-go/vulkan"
)

// Swapchain presents to a Display. It is created on first use, retired
// whenever the surface reports it out of date and recreated by the next
// Acquire. Callers acquire only once their previous frame has completed, so
// a retired swapchain has no work left on it when it is replaced.
type Swapchain struct {
	ctx     *Context
	display *Display

	handle vk.Swapchain
	images []vk.Image
	format vk.SurfaceFormat
	extent vk.Extent2D
	// retired is set when the surface reports the swapchain out of date or
	// suboptimal. The handle is released by the next ensure.
	retired bool
}

func NewSwapchain(ctx *Context, display *Display) *Swapchain {
	return &Swapchain{ctx: ctx, display: display, handle: vk.NullSwapchain}
}

func (s *Swapchain) Extent() vk.Extent2D { return s.extent }
func (s *Swapchain) Format() vk.Format   { return s.format.Format }

func (s *Swapchain) Image(index uint32) vk.Image {
	return s.images[index]
}

func (s *Swapchain) ensure() error {
	if s.handle != vk.NullSwapchain && !s.retired {
		return nil
	}
	s.release()
	gpu := s.ctx.gpu
	surface := s.ctx.surface

	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &caps)
	if isError(ret) {
		return NewError(ret)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	// Get available surface pixel formats
	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &formatCount, nil)
	if formatCount == 0 {
		return fmt.Errorf("%w: surface reports no formats", ds.ErrUnavailable)
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &formatCount, formats)
	s.format = chooseSurfaceFormat(formats)

	// Match swapchain extent to the surface capabilities
	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		w, h := s.display.Size()
		extent = vk.Extent2D{
			Width:  clamp(uint32(w), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
			Height: clamp(uint32(h), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
		}
	}
	if extent.Width == 0 || extent.Height == 0 {
		// minimized
		return ds.ErrOutOfDate
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	// Figure out a suitable surface transform.
	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	// Find a supported composite alpha mode - one of these is guaranteed to be set
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	var swapchain vk.Swapchain
	ret = vk.CreateSwapchain(s.ctx.device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      s.format.Format,
		ImageColorSpace:  s.format.ColorSpace,
		ImageExtent:      extent,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		// The FIFO present mode is guaranteed to be supported
		PresentMode: vk.PresentModeFifo,
		Clipped:     vk.True,
	}, nil, &swapchain)
	if isError(ret) {
		return NewError(ret)
	}

	var count uint32
	vk.GetSwapchainImages(s.ctx.device, swapchain, &count, nil)
	images := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(s.ctx.device, swapchain, &count, images)
	if isError(ret) {
		vk.DestroySwapchain(s.ctx.device, swapchain, nil)
		return NewError(ret)
	}

	s.handle = swapchain
	s.images = images
	s.extent = extent
	s.ctx.log.Debugf("swapchain %dx%d with %d images", extent.Width, extent.Height, count)
	return nil
}

// Acquire gets the next image, signaling semaphore when it is ready.
// ds.ErrOutOfDate means the swapchain was torn down and the frame should be
// skipped.
func (s *Swapchain) Acquire(semaphore vk.Semaphore) (uint32, error) {
	if err := s.ensure(); err != nil {
		return 0, err
	}
	var index uint32
	ret := vk.AcquireNextImage(s.ctx.device, s.handle, vk.MaxUint64, semaphore, vk.NullFence, &index)
	switch ret {
	case vk.Success:
		return index, nil
	case vk.Suboptimal:
		s.retired = true
		return index, nil
	case vk.ErrorOutOfDate:
		s.retired = true
		return 0, ds.ErrOutOfDate
	}
	return 0, NewError(ret)
}

// Present queues image index once wait is signaled.
func (s *Swapchain) Present(index uint32, wait vk.Semaphore) error {
	ret := vk.QueuePresent(s.ctx.queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{index},
	})
	switch {
	case ret == vk.ErrorOutOfDate || ret == vk.Suboptimal || (ret == vk.Success && s.retired):
		s.retired = true
		return ds.ErrOutOfDate
	case isError(ret):
		return NewError(ret)
	}
	return nil
}

// retire marks the swapchain for replacement without touching the device.
func (s *Swapchain) retire() {
	if s.handle != vk.NullSwapchain {
		s.retired = true
	}
}

func (s *Swapchain) release() {
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.ctx.device, s.handle, nil)
		s.handle = vk.NullSwapchain
	}
	s.images = nil
	s.retired = false
}

// Destroy releases the swapchain once the context's queues drained, at most
// timeout. On timeout the swapchain is left alive.
func (s *Swapchain) Destroy(timeout time.Duration) error {
	if s.handle == vk.NullSwapchain {
		return nil
	}
	if err := s.ctx.drainIdle(timeout); err != nil {
		s.ctx.log.Warnf("leaving swapchain alive: %v", err)
		return err
	}
	s.release()
	return nil
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for i := range formats {
		formats[i].Deref()
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: formats[0].ColorSpace}
	}
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm || f.Format == vk.FormatR8g8b8a8Unorm {
			return f
		}
	}
	return formats[0]
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
