package opengl

import (
	"fmt"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/internal/glext"
	"github.com/sirupsen/logrus"
)

// Resource is a shared surface imported into a GL context.
type Resource struct {
	Texture   uint32
	Memory    uint32
	Semaphore uint32
	Format    ds.Format
	Width     int32
	Height    int32

	released bool
}

func (r *Resource) API() ds.API { return ds.APIOpenGL }

func (r *Resource) Native() uint64 { return uint64(r.Texture) }

func (r *Resource) Released() bool { return r.released }

// Binder imports descriptors into one GL context.
type Binder struct {
	drv      driver
	transfer bool
	log      *logrus.Entry
}

func NewBinder(ctx *Context) (*Binder, error) {
	drv, err := newDriver(ctx)
	if err != nil {
		return nil, err
	}
	return &Binder{
		drv:      drv,
		transfer: glext.ImportTakesOwnership,
		log:      ctx.log.WithField("component", "opengl-binder"),
	}, nil
}

func (b *Binder) API() ds.API { return ds.APIOpenGL }

// Bind creates a memory object from d's memory handle, a texture stored in
// it at offset zero and a semaphore from d's semaphore handle. The declared
// size is used for the import as is. The descriptor keeps its handles.
func (b *Binder) Bind(d ds.Descriptor) (ds.Resource, error) {
	r, err := b.bind(d)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (b *Binder) bind(d ds.Descriptor) (r *Resource, err error) {
	if !d.Valid() {
		return nil, fmt.Errorf("opengl bind: invalid descriptor %s", d)
	}
	format, err := formatInfo(d.Format)
	if err != nil {
		return nil, err
	}
	r = &Resource{Format: d.Format, Width: d.Width, Height: d.Height}
	defer func() {
		if err != nil {
			b.release(r)
		}
	}()
	drainErrors(b.drv)

	r.Memory = b.drv.createMemoryObject()
	err = b.importHandle(d.Memory, func(h ds.Handle) error {
		b.drv.importMemory(r.Memory, d.Size, h)
		return checkError(b.drv, "glImportMemory")
	})
	if err != nil {
		return nil, err
	}

	r.Texture = b.drv.createTexture()
	b.drv.textureStorage(r.Texture, format, d.Width, d.Height, r.Memory)
	if err = checkError(b.drv, "glTextureStorageMem2DEXT"); err != nil {
		return nil, err
	}

	r.Semaphore = b.drv.genSemaphore()
	err = b.importHandle(d.Semaphore, func(h ds.Handle) error {
		b.drv.importSemaphore(r.Semaphore, h)
		return checkError(b.drv, "glImportSemaphore")
	})
	if err != nil {
		return nil, err
	}
	b.log.Debugf("bound %s as texture %d", d, r.Texture)
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

// Unbind deletes the memory object, then the texture, then the semaphore.
func (b *Binder) Unbind(res ds.Resource) error {
	if res == nil {
		return nil
	}
	r, ok := res.(*Resource)
	if !ok {
		return fmt.Errorf("%w: %s resource given to opengl binder", ds.ErrWrongAPI, res.API())
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
	if r.Memory != 0 {
		b.drv.deleteMemoryObject(r.Memory)
		r.Memory = 0
	}
	if r.Texture != 0 {
		b.drv.deleteTexture(r.Texture)
		r.Texture = 0
	}
	if r.Semaphore != 0 {
		b.drv.deleteSemaphore(r.Semaphore)
		r.Semaphore = 0
	}
	r.released = true
}

var _ ds.Binder = (*Binder)(nil)
