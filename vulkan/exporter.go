package vulkan

import (
	"fmt"
	"sync"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/adapter"
	"github.com/andewx/dieselshare/broker"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

type exported struct {
	image     vk.Image
	memory    vk.DeviceMemory
	semaphore vk.Semaphore
}

// Exporter allocates shared surfaces on a device of its own and exports them
// as OS handles. Its own objects are released once exported; the handles
// keep the payloads alive.
type Exporter struct {
	mu          sync.Mutex
	ctx         *Context
	drv         driver
	memoryTypes []adapter.MemoryFlags
	log         *logrus.Entry
}

// NewExporter creates a headless context for exporting. LoadCoreFunctions
// must have succeeded first.
func NewExporter(appName string, log *logrus.Logger) (*Exporter, error) {
	ctx, err := NewContext(ContextOptions{AppName: appName, Logger: log})
	if err != nil {
		return nil, err
	}
	e, err := newExporter(ctx)
	if err != nil {
		ctx.Destroy()
		return nil, err
	}
	return e, nil
}

func newExporter(ctx *Context) (*Exporter, error) {
	drv, err := newDriver(ctx)
	if err != nil {
		return nil, err
	}
	return &Exporter{
		ctx:         ctx,
		drv:         drv,
		memoryTypes: ctx.memoryTypes,
		log:         ctx.log.WithField("component", "vulkan-exporter"),
	}, nil
}

// Export creates an image with exportable memory and an exportable
// semaphore, exports both and signals the semaphore once so the first
// waiter on any side can proceed. On failure everything created is undone
// and ds.None is returned.
func (e *Exporter) Export(format ds.Format, width, height int32) (d ds.Descriptor, err error) {
	if width <= 0 || height <= 0 {
		return ds.None, fmt.Errorf("vulkan export: invalid extent %dx%d", width, height)
	}
	f, err := formatInfo(format)
	if err != nil {
		return ds.None, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var s exported
	d = ds.None
	defer func() {
		e.destroy(s)
		if err != nil {
			d.Close()
			d = ds.None
		}
	}()

	s.image, err = e.drv.createImage(f, uint32(width), uint32(height))
	if err != nil {
		return d, err
	}
	size, typeBits := e.drv.memoryRequirements(s.image)
	typeIndex := adapter.FindMemoryTypeIndex(e.memoryTypes, typeBits, adapter.MemoryDeviceLocal)
	if typeIndex < 0 {
		return d, fmt.Errorf("%w: type bits %#x", ds.ErrNoMemoryType, typeBits)
	}
	s.memory, err = e.drv.allocateMemory(size, uint32(typeIndex), ds.InvalidHandle)
	if err != nil {
		return d, err
	}
	if err = e.drv.bindImageMemory(s.image, s.memory); err != nil {
		return d, err
	}
	s.semaphore, err = e.drv.createSemaphore(true)
	if err != nil {
		return d, err
	}

	d.Format = format
	d.Width = width
	d.Height = height
	d.Size = size
	if d.Memory, err = e.drv.exportMemory(s.memory); err != nil {
		return d, err
	}
	if d.Semaphore, err = e.drv.exportSemaphore(s.semaphore); err != nil {
		return d, err
	}
	if err = e.drv.signal(s.semaphore); err != nil {
		return d, err
	}

	e.log.Infof("exported %s", d)
	return d, nil
}

func (e *Exporter) destroy(s exported) {
	if s.memory != vk.NullDeviceMemory {
		e.drv.freeMemory(s.memory)
	}
	if s.image != vk.NullImage {
		e.drv.destroyImage(s.image)
	}
	if s.semaphore != vk.NullSemaphore {
		e.drv.destroySemaphore(s.semaphore)
	}
}

// Destroy releases the exporter's context. Handles already given out stay valid.
func (e *Exporter) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		e.ctx.Destroy()
		e.ctx = nil
	}
}

var _ broker.Exporter = (*Exporter)(nil)
