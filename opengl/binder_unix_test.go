//go:build unix

package opengl

import (
	"testing"

	ds "github.com/andewx/dieselshare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestBindDuplicatesConsumedHandles(t *testing.T) {
	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	d := testDescriptor()
	d.Memory, d.Semaphore = ds.Handle(p[0]), ds.Handle(p[1])
	defer d.Close()

	drv := newFakeDriver()
	drv.errors["importSemaphore"] = 0x500
	b := newTestBinder(drv)
	b.transfer = true

	_, err := b.Bind(d)
	require.Error(t, err)

	var st unix.Stat_t
	assert.NotEqual(t, d.Memory, drv.memHandle)
	// The memory import succeeded and owns its duplicate.
	assert.NoError(t, unix.Fstat(int(drv.memHandle), &st))
	drv.memHandle.Close()
	// The failed semaphore import's duplicate was closed.
	assert.Error(t, unix.Fstat(int(drv.semHandle), &st))
	assert.NoError(t, unix.Fstat(int(d.Semaphore), &st))
}
