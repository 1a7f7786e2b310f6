package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/adapter"
	"github.com/andewx/dieselshare/internal/vkext"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Resource is a shared surface imported into a Vulkan device.
type Resource struct {
	Image     vk.Image
	Memory    vk.DeviceMemory
	Semaphore vk.Semaphore
	Format    vk.Format
	Aspect    vk.ImageAspectFlags
	Width     uint32
	Height    uint32

	released bool
}

func (r *Resource) API() ds.API { return ds.APIVulkan }

func (r *Resource) Native() uint64 {
	return uint64(uintptr(unsafe.Pointer(r.Image)))
}

func (r *Resource) Released() bool { return r.released }

// Binder imports descriptors into the device of one Context.
type Binder struct {
	drv         driver
	memoryTypes []adapter.MemoryFlags
	// transfer is true when a successful import consumes the handle.
	transfer bool
	log      *logrus.Entry
}

func NewBinder(ctx *Context) (*Binder, error) {
	drv, err := newDriver(ctx)
	if err != nil {
		return nil, err
	}
	return &Binder{
		drv:         drv,
		memoryTypes: ctx.memoryTypes,
		transfer:    vkext.ImportTakesOwnership,
		log:         ctx.log.WithField("component", "vulkan-binder"),
	}, nil
}

func (b *Binder) API() ds.API { return ds.APIVulkan }

// Bind creates an image for d, imports d's memory behind it at offset zero
// and imports d's semaphore. The declared size is used for the import as is.
// The descriptor keeps ownership of its handles.
func (b *Binder) Bind(d ds.Descriptor) (ds.Resource, error) {
	r, err := b.bind(d)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (b *Binder) bind(d ds.Descriptor) (r *Resource, err error) {
	if !d.Valid() {
		return nil, fmt.Errorf("vulkan bind: invalid descriptor %s", d)
	}
	f, err := formatInfo(d.Format)
	if err != nil {
		return nil, err
	}
	r = &Resource{
		Format: f.format,
		Aspect: f.aspect,
		Width:  uint32(d.Width),
		Height: uint32(d.Height),
	}
	defer func() {
		if err != nil {
			b.release(r)
		}
	}()

	r.Image, err = b.drv.createImage(f, r.Width, r.Height)
	if err != nil {
		return nil, err
	}

	_, typeBits := b.drv.memoryRequirements(r.Image)
	typeIndex := adapter.FindMemoryTypeIndex(b.memoryTypes, typeBits, adapter.MemoryDeviceLocal)
	if typeIndex < 0 {
		return nil, fmt.Errorf("%w: type bits %#x", ds.ErrNoMemoryType, typeBits)
	}
	err = b.importHandle(d.Memory, func(h ds.Handle) error {
		var err error
		r.Memory, err = b.drv.allocateMemory(d.Size, uint32(typeIndex), h)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err = b.drv.bindImageMemory(r.Image, r.Memory); err != nil {
		return nil, err
	}

	r.Semaphore, err = b.drv.createSemaphore(false)
	if err != nil {
		return nil, err
	}
	err = b.importHandle(d.Semaphore, func(h ds.Handle) error {
		return b.drv.importSemaphore(r.Semaphore, h)
	})
	if err != nil {
		return nil, err
	}
	b.log.Debugf("bound %s", d)
	return r, nil
}

// importHandle hands fn a handle it may consume. When imports take
// ownership fn gets a duplicate, closed here only if the import failed.
func (b *Binder) importHandle(h ds.Handle, fn func(ds.Handle) error) error {
	if !b.transfer {
		return fn(h)
	}
	dup, err := h.Dup()
	if err != nil {
		return fmt.Errorf("%w: %v", ds.ErrDuplicate, err)
	}
	if err := fn(dup); err != nil {
		dup.Close()
		return err
	}
	return nil
}

// Unbind releases memory, then image, then semaphore.
func (b *Binder) Unbind(res ds.Resource) error {
	if res == nil {
		return nil
	}
	r, ok := res.(*Resource)
	if !ok {
		return fmt.Errorf("%w: %s resource given to vulkan binder", ds.ErrWrongAPI, res.API())
	}
	if r == nil {
		return nil
	}
	b.release(r)
	return nil
}

func (b *Binder) release(r *Resource) {
	if r.released {
		return
	}
	if r.Memory != vk.NullDeviceMemory {
		b.drv.freeMemory(r.Memory)
		r.Memory = vk.NullDeviceMemory
	}
	if r.Image != vk.NullImage {
		b.drv.destroyImage(r.Image)
		r.Image = vk.NullImage
	}
	if r.Semaphore != vk.NullSemaphore {
		b.drv.destroySemaphore(r.Semaphore)
		r.Semaphore = vk.NullSemaphore
	}
	r.released = true
}

var _ ds.Binder = (*Binder)(nil)

// errNotColor is returned by the frame recorders for depth surfaces.
var errNotColor = errors.New("vulkan: shared surface is not a color image")
