package opengl

import (
	"fmt"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/internal/glext"
	"github.com/go-gl/gl/v3.2-core/gl"
)

// Internal formats of the shared surface formats.
const (
	internalRGBA8    uint32 = 0x8058
	internalDepth32F uint32 = 0x8CAC
	maxDrainedErrors        = 16
)

func formatInfo(f ds.Format) (uint32, error) {
	switch f {
	case ds.FormatRGBA8:
		return internalRGBA8, nil
	case ds.FormatDepth32:
		return internalDepth32F, nil
	}
	return 0, fmt.Errorf("%w: %s", ds.ErrBadFormat, f)
}

// driver is the set of GL calls that import shared objects.
type driver interface {
	createMemoryObject() uint32
	importMemory(memory uint32, size uint64, handle ds.Handle)
	deleteMemoryObject(memory uint32)
	createTexture() uint32
	textureStorage(texture, format uint32, width, height int32, memory uint32)
	deleteTexture(texture uint32)
	genSemaphore() uint32
	importSemaphore(semaphore uint32, handle ds.Handle)
	deleteSemaphore(semaphore uint32)
	// takeError returns and clears one GL error flag, zero when none is set.
	takeError() uint32
}

type tableDriver struct {
	ext *glext.Table
}

func newDriver(ctx *Context) (driver, error) {
	if ctx == nil || !ctx.ext.Loaded() {
		return nil, fmt.Errorf("%w: GL external memory functions not loaded", ds.ErrUnavailable)
	}
	return &tableDriver{ext: ctx.ext}, nil
}

func (d *tableDriver) createMemoryObject() uint32 { return d.ext.CreateMemoryObject() }

func (d *tableDriver) importMemory(memory uint32, size uint64, handle ds.Handle) {
	d.ext.ImportMemory(memory, size, uintptr(handle))
}

func (d *tableDriver) deleteMemoryObject(memory uint32) { d.ext.DeleteMemoryObject(memory) }

func (d *tableDriver) createTexture() uint32 { return d.ext.CreateTexture2D() }

func (d *tableDriver) textureStorage(texture, format uint32, width, height int32, memory uint32) {
	d.ext.TextureStorage(texture, format, width, height, memory)
}

func (d *tableDriver) deleteTexture(texture uint32) { gl.DeleteTextures(1, &texture) }

func (d *tableDriver) genSemaphore() uint32 { return d.ext.GenSemaphore() }

func (d *tableDriver) importSemaphore(semaphore uint32, handle ds.Handle) {
	d.ext.ImportSemaphore(semaphore, uintptr(handle))
}

func (d *tableDriver) deleteSemaphore(semaphore uint32) { d.ext.DeleteSemaphore(semaphore) }

func (d *tableDriver) takeError() uint32 { return gl.GetError() }

// GLError is a GL error flag raised by a call.
type GLError struct {
	Op   string
	Code uint32
}

func (e *GLError) Error() string {
	return fmt.Sprintf("%s: GL error %#x", e.Op, e.Code)
}

func checkError(drv driver, op string) error {
	if code := drv.takeError(); code != 0 {
		return &GLError{Op: op, Code: code}
	}
	return nil
}

// drainErrors clears stale error flags so later checks see only new ones.
func drainErrors(drv driver) {
	for i := 0; i < maxDrainedErrors; i++ {
		if drv.takeError() == 0 {
			return
		}
	}
}

// checked runs call with stale error flags cleared first, so only an error
// raised by call itself is reported.
func checked(drv driver, op string, call func()) error {
	drainErrors(drv)
	call()
	return checkError(drv, op)
}
