package vulkan

import (
	"fmt"
	"unsafe"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/internal/vkext"
	vk "github.com/vulkan-go/vulkan"
)

// driver is the set of device calls that create, import and export shared
// objects.
type driver interface {
	createImage(f imageFormat, width, height uint32) (vk.Image, error)
	destroyImage(image vk.Image)
	memoryRequirements(image vk.Image) (size uint64, typeBits uint32)
	// allocateMemory imports handle when it is valid and allocates
	// exportable memory otherwise.
	allocateMemory(size uint64, typeIndex uint32, handle ds.Handle) (vk.DeviceMemory, error)
	freeMemory(memory vk.DeviceMemory)
	bindImageMemory(image vk.Image, memory vk.DeviceMemory) error
	createSemaphore(exportable bool) (vk.Semaphore, error)
	destroySemaphore(semaphore vk.Semaphore)
	importSemaphore(semaphore vk.Semaphore, handle ds.Handle) error
	exportMemory(memory vk.DeviceMemory) (ds.Handle, error)
	exportSemaphore(semaphore vk.Semaphore) (ds.Handle, error)
	// signal submits an empty batch that signals semaphore and waits for it
	// to execute.
	signal(semaphore vk.Semaphore) error
}

type tableDriver struct {
	ctx *Context
}

func newDriver(ctx *Context) (driver, error) {
	if ctx == nil || !ctx.ext.Loaded() {
		return nil, fmt.Errorf("%w: external memory functions not loaded", ds.ErrUnavailable)
	}
	return &tableDriver{ctx: ctx}, nil
}

func (d *tableDriver) createImage(f imageFormat, width, height uint32) (vk.Image, error) {
	p, err := d.ctx.ext.CreateExternalImage(uint32(f.format), uint32(f.usage), width, height)
	if err != nil {
		return vk.NullImage, extError(err)
	}
	return vk.Image(p), nil
}

func (d *tableDriver) destroyImage(image vk.Image) {
	d.ctx.ext.DestroyImage(unsafe.Pointer(image))
}

func (d *tableDriver) memoryRequirements(image vk.Image) (uint64, uint32) {
	return d.ctx.ext.ImageMemoryRequirements(unsafe.Pointer(image))
}

func (d *tableDriver) allocateMemory(size uint64, typeIndex uint32, handle ds.Handle) (vk.DeviceMemory, error) {
	var p unsafe.Pointer
	var err error
	if handle.Valid() {
		p, err = d.ctx.ext.AllocateImported(size, typeIndex, uintptr(handle))
	} else {
		p, err = d.ctx.ext.AllocateExportable(size, typeIndex)
	}
	if err != nil {
		return vk.NullDeviceMemory, extError(err)
	}
	return vk.DeviceMemory(p), nil
}

func (d *tableDriver) freeMemory(memory vk.DeviceMemory) {
	d.ctx.ext.FreeMemory(unsafe.Pointer(memory))
}

func (d *tableDriver) bindImageMemory(image vk.Image, memory vk.DeviceMemory) error {
	return extError(d.ctx.ext.BindImageMemory(unsafe.Pointer(image), unsafe.Pointer(memory)))
}

func (d *tableDriver) createSemaphore(exportable bool) (vk.Semaphore, error) {
	p, err := d.ctx.ext.CreateSemaphore(exportable)
	if err != nil {
		return vk.NullSemaphore, extError(err)
	}
	return vk.Semaphore(p), nil
}

func (d *tableDriver) destroySemaphore(semaphore vk.Semaphore) {
	d.ctx.ext.DestroySemaphore(unsafe.Pointer(semaphore))
}

func (d *tableDriver) importSemaphore(semaphore vk.Semaphore, handle ds.Handle) error {
	return extError(d.ctx.ext.ImportSemaphore(unsafe.Pointer(semaphore), uintptr(handle)))
}

func (d *tableDriver) exportMemory(memory vk.DeviceMemory) (ds.Handle, error) {
	h, err := d.ctx.ext.ExportMemory(unsafe.Pointer(memory))
	if err != nil {
		return ds.InvalidHandle, extError(err)
	}
	return ds.Handle(h), nil
}

func (d *tableDriver) exportSemaphore(semaphore vk.Semaphore) (ds.Handle, error) {
	h, err := d.ctx.ext.ExportSemaphore(unsafe.Pointer(semaphore))
	if err != nil {
		return ds.InvalidHandle, extError(err)
	}
	return ds.Handle(h), nil
}

func (d *tableDriver) signal(semaphore vk.Semaphore) error {
	ret := vk.QueueSubmit(d.ctx.queue, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{semaphore},
	}}, vk.NullFence)
	if isError(ret) {
		return NewError(ret)
	}
	return NewError(vk.QueueWaitIdle(d.ctx.queue))
}
