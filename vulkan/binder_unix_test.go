//go:build unix

package vulkan

import (
	"errors"
	"testing"

	ds "github.com/andewx/dieselshare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func pipeDescriptor(t *testing.T) ds.Descriptor {
	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	d := testDescriptor()
	d.Memory = ds.Handle(p[0])
	d.Semaphore = ds.Handle(p[1])
	t.Cleanup(func() { d.Close() })
	return d
}

func fdOpen(h ds.Handle) bool {
	var st unix.Stat_t
	return unix.Fstat(int(h), &st) == nil
}

func TestBindPassesDuplicatesWhenImportConsumes(t *testing.T) {
	drv := newFakeDriver()
	b := newTestBinder(drv)
	b.transfer = true
	d := pipeDescriptor(t)

	_, err := b.Bind(d)
	require.NoError(t, err)

	assert.NotEqual(t, d.Memory, drv.allocHandle)
	assert.NotEqual(t, d.Semaphore, drv.semHandle)
	// The fake does not consume, so the duplicates are still open here.
	assert.True(t, fdOpen(drv.allocHandle))
	assert.True(t, fdOpen(drv.semHandle))
	assert.True(t, fdOpen(d.Memory))
	drv.allocHandle.Close()
	drv.semHandle.Close()
}

func TestBindClosesDuplicateOfFailedImport(t *testing.T) {
	drv := newFakeDriver()
	drv.fail["importSemaphore"] = errors.New("boom")
	b := newTestBinder(drv)
	b.transfer = true
	d := pipeDescriptor(t)

	_, err := b.Bind(d)
	require.Error(t, err)

	assert.False(t, fdOpen(drv.semHandle))
	assert.True(t, fdOpen(d.Semaphore))
	drv.allocHandle.Close()
}
