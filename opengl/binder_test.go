package opengl

import (
	"testing"

	ds "github.com/andewx/dieselshare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	calls  []string
	next   uint32
	errors map[string]uint32
	// pending is the error flag raised by the last call.
	pending uint32

	memHandle ds.Handle
	semHandle ds.Handle
	size      uint64
	format    uint32
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{errors: map[string]uint32{}, memHandle: ds.InvalidHandle, semHandle: ds.InvalidHandle}
}

func (f *fakeDriver) call(op string) {
	f.calls = append(f.calls, op)
	if code, ok := f.errors[op]; ok {
		f.pending = code
	}
}

func (f *fakeDriver) name() uint32 {
	f.next++
	return f.next
}

func (f *fakeDriver) createMemoryObject() uint32 {
	f.call("createMemoryObject")
	return f.name()
}

func (f *fakeDriver) importMemory(_ uint32, size uint64, handle ds.Handle) {
	f.size = size
	f.memHandle = handle
	f.call("importMemory")
}

func (f *fakeDriver) deleteMemoryObject(uint32) { f.call("deleteMemoryObject") }

func (f *fakeDriver) createTexture() uint32 {
	f.call("createTexture")
	return f.name()
}

func (f *fakeDriver) textureStorage(_, format uint32, _, _ int32, _ uint32) {
	f.format = format
	f.call("textureStorage")
}

func (f *fakeDriver) deleteTexture(uint32) { f.call("deleteTexture") }

func (f *fakeDriver) genSemaphore() uint32 {
	f.call("genSemaphore")
	return f.name()
}

func (f *fakeDriver) importSemaphore(_ uint32, handle ds.Handle) {
	f.semHandle = handle
	f.call("importSemaphore")
}

func (f *fakeDriver) deleteSemaphore(uint32) { f.call("deleteSemaphore") }

func (f *fakeDriver) takeError() uint32 {
	code := f.pending
	f.pending = 0
	return code
}

func (f *fakeDriver) deleted() []string {
	var out []string
	for _, c := range f.calls {
		switch c {
		case "deleteMemoryObject", "deleteTexture", "deleteSemaphore":
			out = append(out, c)
		}
	}
	return out
}

func newTestBinder(drv *fakeDriver) *Binder {
	return &Binder{drv: drv, log: ds.Component(ds.DiscardLogger(), "opengl-binder")}
}

func testDescriptor() ds.Descriptor {
	return ds.Descriptor{
		Format:    ds.FormatRGBA8,
		Width:     1280,
		Height:    720,
		Size:      3686400,
		Memory:    ds.Handle(5),
		Semaphore: ds.Handle(6),
	}
}

func TestBindImportsIntoTexture(t *testing.T) {
	drv := newFakeDriver()
	b := newTestBinder(drv)

	res, err := b.Bind(testDescriptor())
	require.NoError(t, err)

	r := res.(*Resource)
	assert.Equal(t, ds.APIOpenGL, r.API())
	assert.Equal(t, uint64(r.Texture), r.Native())
	assert.NotZero(t, r.Memory)
	assert.NotZero(t, r.Semaphore)
	assert.EqualValues(t, 3686400, drv.size)
	assert.Equal(t, internalRGBA8, drv.format)
	assert.Equal(t, ds.Handle(5), drv.memHandle)
	assert.Equal(t, ds.Handle(6), drv.semHandle)
	assert.Equal(t, []string{
		"createMemoryObject", "importMemory", "createTexture",
		"textureStorage", "genSemaphore", "importSemaphore",
	}, drv.calls)
}

func TestBindDepth(t *testing.T) {
	drv := newFakeDriver()
	d := testDescriptor()
	d.Format = ds.FormatDepth32

	_, err := newTestBinder(drv).Bind(d)
	require.NoError(t, err)
	assert.Equal(t, internalDepth32F, drv.format)
}

func TestBindIgnoresStaleErrors(t *testing.T) {
	drv := newFakeDriver()
	drv.pending = 0x502

	_, err := newTestBinder(drv).Bind(testDescriptor())
	assert.NoError(t, err)
}

func TestBindUnwindsOnGLError(t *testing.T) {
	tests := []struct {
		failAt  string
		deleted []string
	}{
		{"importMemory", []string{"deleteMemoryObject"}},
		{"textureStorage", []string{"deleteMemoryObject", "deleteTexture"}},
		{"importSemaphore", []string{"deleteMemoryObject", "deleteTexture", "deleteSemaphore"}},
	}
	for _, tt := range tests {
		t.Run(tt.failAt, func(t *testing.T) {
			drv := newFakeDriver()
			drv.errors[tt.failAt] = 0x501
			b := newTestBinder(drv)

			res, err := b.Bind(testDescriptor())
			var glErr *GLError
			require.ErrorAs(t, err, &glErr)
			assert.EqualValues(t, 0x501, glErr.Code)
			assert.Nil(t, res)
			assert.Equal(t, tt.deleted, drv.deleted())
		})
	}
}

func TestBindRejectsBadDescriptors(t *testing.T) {
	drv := newFakeDriver()
	b := newTestBinder(drv)

	_, err := b.Bind(ds.None)
	assert.Error(t, err)

	d := testDescriptor()
	d.Format = ds.Format(9)
	_, err = b.Bind(d)
	assert.Error(t, err)
	assert.Empty(t, drv.calls)
}

func TestUnbind(t *testing.T) {
	drv := newFakeDriver()
	b := newTestBinder(drv)
	res, err := b.Bind(testDescriptor())
	require.NoError(t, err)

	require.NoError(t, b.Unbind(res))
	assert.True(t, res.Released())
	assert.Equal(t, []string{"deleteMemoryObject", "deleteTexture", "deleteSemaphore"}, drv.deleted())

	require.NoError(t, b.Unbind(res))
	assert.Len(t, drv.deleted(), 3)

	assert.NoError(t, b.Unbind(nil))
	var none *Resource
	assert.NoError(t, b.Unbind(none))
}

type vulkanResource struct{}

func (vulkanResource) API() ds.API    { return ds.APIVulkan }
func (vulkanResource) Native() uint64 { return 1 }
func (vulkanResource) Released() bool { return false }

func TestUnbindForeignResource(t *testing.T) {
	b := newTestBinder(newFakeDriver())
	assert.ErrorIs(t, b.Unbind(vulkanResource{}), ds.ErrWrongAPI)
}

func TestMissingNames(t *testing.T) {
	assert.Empty(t, missingNames([]string{"a", "b"}, []string{"b"}))
	assert.Equal(t, []string{"c"}, missingNames([]string{"a", "b"}, []string{"a", "c"}))
}

func TestFormatInfo(t *testing.T) {
	_, err := formatInfo(ds.FormatNone)
	assert.ErrorIs(t, err, ds.ErrBadFormat)
}

func TestCheckedIgnoresStaleErrors(t *testing.T) {
	drv := newFakeDriver()
	drv.pending = 0x502 // left behind by an earlier blit

	err := checked(drv, "wait", func() {})
	assert.NoError(t, err)

	err = checked(drv, "wait", func() { drv.pending = 0x502 })
	var glErr *GLError
	require.ErrorAs(t, err, &glErr)
	assert.Equal(t, "wait", glErr.Op)
	assert.Equal(t, uint32(0x502), glErr.Code)
}
