package vulkan

import (
	"errors"
	"testing"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type foreignResource struct{}

func (foreignResource) API() ds.API    { return ds.APIOpenGL }
func (foreignResource) Native() uint64 { return 1 }
func (foreignResource) Released() bool { return false }

func newTestBinder(drv *fakeDriver) *Binder {
	return &Binder{
		drv:         drv,
		memoryTypes: fakeMemoryTypes,
		log:         ds.Component(ds.DiscardLogger(), "vulkan-binder"),
	}
}

func testDescriptor() ds.Descriptor {
	return ds.Descriptor{
		Format:    ds.FormatRGBA8,
		Width:     64,
		Height:    32,
		Size:      8192,
		Memory:    ds.Handle(7),
		Semaphore: ds.Handle(8),
	}
}

func TestBindImportsBothHandles(t *testing.T) {
	drv := newFakeDriver()
	b := newTestBinder(drv)

	res, err := b.Bind(testDescriptor())
	require.NoError(t, err)

	r := res.(*Resource)
	assert.Equal(t, ds.APIVulkan, r.API())
	assert.NotZero(t, r.Native())
	assert.EqualValues(t, 64, r.Width)
	assert.EqualValues(t, 32, r.Height)
	assert.False(t, r.Released())

	// The declared size is used, not the image's requirement.
	assert.EqualValues(t, 8192, drv.allocSize)
	assert.Equal(t, ds.Handle(7), drv.allocHandle)
	assert.Equal(t, ds.Handle(8), drv.semHandle)
	assert.Equal(t, []bool{false}, drv.exportable)
	assert.Equal(t, []string{
		"createImage", "memoryRequirements", "allocateMemory",
		"bindImageMemory", "createSemaphore", "importSemaphore",
	}, drv.calls)
}

func TestBindRejectsBadDescriptors(t *testing.T) {
	b := newTestBinder(newFakeDriver())

	_, err := b.Bind(ds.None)
	assert.Error(t, err)

	d := testDescriptor()
	d.Format = ds.Format(99)
	_, err = b.Bind(d)
	assert.Error(t, err)
}

func TestBindWithoutDeviceLocalMemory(t *testing.T) {
	drv := newFakeDriver()
	b := newTestBinder(drv)
	b.memoryTypes = []adapter.MemoryFlags{adapter.MemoryHostVisible}

	_, err := b.Bind(testDescriptor())
	assert.ErrorIs(t, err, ds.ErrNoMemoryType)
	assert.Equal(t, []string{"destroyImage"}, drv.released())
}

func TestBindUnwindsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		failAt   string
		released []string
	}{
		{"createImage", nil},
		{"allocateMemory", []string{"destroyImage"}},
		{"bindImageMemory", []string{"freeMemory", "destroyImage"}},
		{"createSemaphore", []string{"freeMemory", "destroyImage"}},
		{"importSemaphore", []string{"freeMemory", "destroyImage", "destroySemaphore"}},
	}
	for _, tt := range tests {
		t.Run(tt.failAt, func(t *testing.T) {
			drv := newFakeDriver()
			drv.fail[tt.failAt] = boom
			b := newTestBinder(drv)

			res, err := b.Bind(testDescriptor())
			assert.ErrorIs(t, err, boom)
			assert.Nil(t, res)
			assert.Equal(t, tt.released, drv.released())
		})
	}
}

func TestUnbindReleasesInOrderOnce(t *testing.T) {
	drv := newFakeDriver()
	b := newTestBinder(drv)
	res, err := b.Bind(testDescriptor())
	require.NoError(t, err)

	require.NoError(t, b.Unbind(res))
	assert.True(t, res.Released())
	assert.Equal(t, []string{"freeMemory", "destroyImage", "destroySemaphore"}, drv.released())

	require.NoError(t, b.Unbind(res))
	assert.Len(t, drv.released(), 3)
}

func TestUnbindNilAndForeign(t *testing.T) {
	b := newTestBinder(newFakeDriver())

	assert.NoError(t, b.Unbind(nil))
	var r *Resource
	assert.NoError(t, b.Unbind(r))
	assert.ErrorIs(t, b.Unbind(foreignResource{}), ds.ErrWrongAPI)
}
