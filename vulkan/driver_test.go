package vulkan

import (
	"unsafe"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/adapter"
	vk "github.com/vulkan-go/vulkan"
)

// fakeDriver records the calls made on it and fails the operations named
// in fail.
type fakeDriver struct {
	calls    []string
	fail     map[string]error
	typeBits uint32
	size     uint64

	allocSize   uint64
	allocHandle ds.Handle
	semHandle   ds.Handle
	exportMem   ds.Handle
	exportSem   ds.Handle
	exportable  []bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		fail:        map[string]error{},
		typeBits:    0x1,
		size:        4096,
		allocHandle: ds.InvalidHandle,
		semHandle:   ds.InvalidHandle,
		exportMem:   ds.InvalidHandle,
		exportSem:   ds.InvalidHandle,
	}
}

var fakeMemoryTypes = []adapter.MemoryFlags{adapter.MemoryDeviceLocal}

func fakeObject() unsafe.Pointer { return unsafe.Pointer(new(byte)) }

func (f *fakeDriver) call(op string) error {
	f.calls = append(f.calls, op)
	return f.fail[op]
}

func (f *fakeDriver) createImage(imageFormat, uint32, uint32) (vk.Image, error) {
	if err := f.call("createImage"); err != nil {
		return vk.NullImage, err
	}
	return vk.Image(fakeObject()), nil
}

func (f *fakeDriver) destroyImage(vk.Image) { f.call("destroyImage") }

func (f *fakeDriver) memoryRequirements(vk.Image) (uint64, uint32) {
	f.call("memoryRequirements")
	return f.size, f.typeBits
}

func (f *fakeDriver) allocateMemory(size uint64, _ uint32, handle ds.Handle) (vk.DeviceMemory, error) {
	f.allocSize = size
	f.allocHandle = handle
	if err := f.call("allocateMemory"); err != nil {
		return vk.NullDeviceMemory, err
	}
	return vk.DeviceMemory(fakeObject()), nil
}

func (f *fakeDriver) freeMemory(vk.DeviceMemory) { f.call("freeMemory") }

func (f *fakeDriver) bindImageMemory(vk.Image, vk.DeviceMemory) error {
	return f.call("bindImageMemory")
}

func (f *fakeDriver) createSemaphore(exportable bool) (vk.Semaphore, error) {
	f.exportable = append(f.exportable, exportable)
	if err := f.call("createSemaphore"); err != nil {
		return vk.NullSemaphore, err
	}
	return vk.Semaphore(fakeObject()), nil
}

func (f *fakeDriver) destroySemaphore(vk.Semaphore) { f.call("destroySemaphore") }

func (f *fakeDriver) importSemaphore(_ vk.Semaphore, handle ds.Handle) error {
	f.semHandle = handle
	return f.call("importSemaphore")
}

func (f *fakeDriver) exportMemory(vk.DeviceMemory) (ds.Handle, error) {
	if err := f.call("exportMemory"); err != nil {
		return ds.InvalidHandle, err
	}
	return f.exportMem, nil
}

func (f *fakeDriver) exportSemaphore(vk.Semaphore) (ds.Handle, error) {
	if err := f.call("exportSemaphore"); err != nil {
		return ds.InvalidHandle, err
	}
	return f.exportSem, nil
}

func (f *fakeDriver) signal(vk.Semaphore) error { return f.call("signal") }

// released lists the release calls in order.
func (f *fakeDriver) released() []string {
	var out []string
	for _, c := range f.calls {
		switch c {
		case "freeMemory", "destroyImage", "destroySemaphore":
			out = append(out, c)
		}
	}
	return out
}
