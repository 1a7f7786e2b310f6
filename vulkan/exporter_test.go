package vulkan

import (
	"errors"
	"testing"

	ds "github.com/andewx/dieselshare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExporter(drv *fakeDriver) *Exporter {
	return &Exporter{
		drv:         drv,
		memoryTypes: fakeMemoryTypes,
		log:         ds.Component(ds.DiscardLogger(), "vulkan-exporter"),
	}
}

func TestExportSignalsAndReleasesOwnObjects(t *testing.T) {
	drv := newFakeDriver()
	drv.exportMem = ds.Handle(7)
	drv.exportSem = ds.Handle(8)
	e := newTestExporter(drv)

	d, err := e.Export(ds.FormatRGBA8, 1280, 720)
	require.NoError(t, err)

	assert.True(t, d.Valid())
	assert.Equal(t, ds.FormatRGBA8, d.Format)
	assert.EqualValues(t, 1280, d.Width)
	assert.EqualValues(t, 720, d.Height)
	assert.EqualValues(t, 4096, d.Size)
	assert.Equal(t, ds.Handle(7), d.Memory)
	assert.Equal(t, ds.Handle(8), d.Semaphore)

	assert.Equal(t, ds.InvalidHandle, drv.allocHandle)
	assert.EqualValues(t, 4096, drv.allocSize)
	assert.Equal(t, []bool{true}, drv.exportable)
	assert.Equal(t, []string{
		"createImage", "memoryRequirements", "allocateMemory", "bindImageMemory",
		"createSemaphore", "exportMemory", "exportSemaphore", "signal",
		"freeMemory", "destroyImage", "destroySemaphore",
	}, drv.calls)
}

func TestExportRejectsBadRequests(t *testing.T) {
	drv := newFakeDriver()
	e := newTestExporter(drv)

	d, err := e.Export(ds.FormatRGBA8, 0, 720)
	assert.Error(t, err)
	assert.Equal(t, ds.None, d)

	d, err = e.Export(ds.Format(42), 16, 16)
	assert.ErrorIs(t, err, ds.ErrBadFormat)
	assert.Equal(t, ds.None, d)
	assert.Empty(t, drv.calls)
}

func TestExportUnwindsEarlyFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		failAt   string
		released []string
	}{
		{"createImage", nil},
		{"allocateMemory", []string{"destroyImage"}},
		{"bindImageMemory", []string{"freeMemory", "destroyImage"}},
		{"createSemaphore", []string{"freeMemory", "destroyImage"}},
		{"exportMemory", []string{"freeMemory", "destroyImage", "destroySemaphore"}},
	}
	for _, tt := range tests {
		t.Run(tt.failAt, func(t *testing.T) {
			drv := newFakeDriver()
			drv.fail[tt.failAt] = boom
			e := newTestExporter(drv)

			d, err := e.Export(ds.FormatDepth32, 64, 64)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, ds.None, d)
			assert.Equal(t, tt.released, drv.released())
		})
	}
}
