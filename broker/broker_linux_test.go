package broker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ds "github.com/andewx/dieselshare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// memfdExporter stands in for a GPU exporter: memory is a sized memfd and
// the semaphore payload an eventfd.
type memfdExporter struct {
	calls atomic.Int32
	fail  error
	// during runs inside Export, after the name was claimed.
	during func()
}

func (e *memfdExporter) Export(format ds.Format, width, height int32) (ds.Descriptor, error) {
	e.calls.Add(1)
	if e.during != nil {
		e.during()
	}
	if e.fail != nil {
		return ds.None, e.fail
	}
	size := uint64(width) * uint64(height) * 4
	mem, err := unix.MemfdCreate("surface", unix.MFD_CLOEXEC)
	if err != nil {
		return ds.None, err
	}
	if err := unix.Ftruncate(mem, int64(size)); err != nil {
		unix.Close(mem)
		return ds.None, err
	}
	sem, err := unix.Eventfd(1, unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(mem)
		return ds.None, err
	}
	return ds.Descriptor{
		Format:    format,
		Width:     width,
		Height:    height,
		Size:      size,
		Memory:    ds.Handle(mem),
		Semaphore: ds.Handle(sem),
	}, nil
}

func surfaceName(t *testing.T) string {
	name := fmt.Sprintf("t%d-%s", os.Getpid(), t.Name())
	name = strings.NewReplacer("/", "-", "\\", "-").Replace(name)
	if len(name) > maxNameLen {
		name = name[len(name)-maxNameLen:]
	}
	return name
}

func newBroker(exp Exporter, dup Duplication) *Broker {
	return New(exp, Options{OpenTimeout: 200 * time.Millisecond, Duplication: dup, Logger: ds.DiscardLogger()})
}

func inode(t *testing.T, h ds.Handle) uint64 {
	t.Helper()
	var st unix.Stat_t
	require.NoError(t, unix.Fstat(int(h), &st))
	return st.Ino
}

func TestCreateOpenRoundTrip(t *testing.T) {
	cases := []struct {
		format ds.Format
		w, h   int32
	}{
		{ds.FormatRGBA8, 1280, 720},
		{ds.FormatDepth32, 800, 600},
		{ds.FormatRGBA8, 1, 1},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%s_%dx%d", c.format, c.w, c.h), func(t *testing.T) {
			name := surfaceName(t)
			creator := newBroker(&memfdExporter{}, DuplicateRights)
			opener := newBroker(nil, DuplicateRights)
			defer creator.Shutdown()

			created, err := creator.Create(name, c.w, c.h, c.format)
			require.NoError(t, err)
			require.True(t, created.Valid())

			opened, err := opener.Open(context.Background(), name)
			require.NoError(t, err)
			require.True(t, opened.Valid())

			assert.Equal(t, created.Format, opened.Format)
			assert.Equal(t, created.Width, opened.Width)
			assert.Equal(t, created.Height, opened.Height)
			assert.Equal(t, created.Size, opened.Size)

			// Same kernel objects, distinct descriptors.
			assert.NotEqual(t, created.Memory, opened.Memory)
			assert.Equal(t, inode(t, created.Memory), inode(t, opened.Memory))
			assert.Equal(t, inode(t, created.Semaphore), inode(t, opened.Semaphore))

			require.NoError(t, opener.Close(&opened))
			require.NoError(t, creator.Close(&created))
		})
	}
}

func TestOpenBeforeCreate(t *testing.T) {
	b := newBroker(nil, DuplicateRights)
	start := time.Now()
	d, err := b.Open(context.Background(), surfaceName(t))
	assert.ErrorIs(t, err, ds.ErrNoPublisher)
	assert.Equal(t, ds.None, d)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOpenHonoursContext(t *testing.T) {
	b := newBroker(nil, DuplicateRights)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Open(ctx, surfaceName(t))
	assert.Error(t, err)
}

func TestOpenOrCreate(t *testing.T) {
	name := surfaceName(t)
	expA, expB := &memfdExporter{}, &memfdExporter{}
	a := newBroker(expA, DuplicateRights)
	b := newBroker(expB, DuplicateRights)
	defer a.Shutdown()
	defer b.Shutdown()

	first, err := a.OpenOrCreate(context.Background(), name, 64, 32, ds.FormatRGBA8)
	require.NoError(t, err)
	second, err := b.OpenOrCreate(context.Background(), name, 64, 32, ds.FormatRGBA8)
	require.NoError(t, err)

	assert.Equal(t, int32(1), expA.calls.Load())
	assert.Equal(t, int32(0), expB.calls.Load())
	assert.Equal(t, first.Size, second.Size)
	assert.NoError(t, b.Close(&second))
	assert.NoError(t, a.Close(&first))
}

func TestCreateNameTaken(t *testing.T) {
	name := surfaceName(t)
	a := newBroker(&memfdExporter{}, DuplicateRights)
	exp := &memfdExporter{}
	b := newBroker(exp, DuplicateRights)
	defer a.Shutdown()

	d, err := a.Create(name, 16, 16, ds.FormatRGBA8)
	require.NoError(t, err)
	defer a.Close(&d)

	lost, err := b.Create(name, 16, 16, ds.FormatRGBA8)
	assert.ErrorIs(t, err, ds.ErrNameTaken)
	assert.Equal(t, ds.None, lost)
	assert.Equal(t, int32(0), exp.calls.Load(), "losing claim must not allocate")
}

func TestCreateUnwindsOnExportFailure(t *testing.T) {
	name := surfaceName(t)
	failing := newBroker(&memfdExporter{fail: errors.New("out of device memory")}, DuplicateRights)

	d, err := failing.Create(name, 16, 16, ds.FormatRGBA8)
	require.Error(t, err)
	assert.Equal(t, ds.FormatNone, d.Format)

	_, err = newBroker(nil, DuplicateRights).Open(context.Background(), name)
	assert.ErrorIs(t, err, ds.ErrNoPublisher)

	// The name was released and can be claimed again.
	ok := newBroker(&memfdExporter{}, DuplicateRights)
	d, err = ok.Create(name, 16, 16, ds.FormatRGBA8)
	require.NoError(t, err)
	assert.NoError(t, ok.Close(&d))
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	b := newBroker(&memfdExporter{}, DuplicateRights)
	_, err := b.Create("", 16, 16, ds.FormatRGBA8)
	assert.ErrorIs(t, err, ds.ErrBroker)
	_, err = b.Create("a/b", 16, 16, ds.FormatRGBA8)
	assert.ErrorIs(t, err, ds.ErrBroker)
	_, err = b.Create(surfaceName(t), 0, 16, ds.FormatRGBA8)
	assert.ErrorIs(t, err, ds.ErrBadFormat)
	_, err = b.Create(surfaceName(t), 16, 16, ds.FormatNone)
	assert.ErrorIs(t, err, ds.ErrBadFormat)
}

func TestCloseStopsPublishingButKeepsDuplicates(t *testing.T) {
	name := surfaceName(t)
	creator := newBroker(&memfdExporter{}, DuplicateRights)
	opener := newBroker(nil, DuplicateRights)

	created, err := creator.Create(name, 8, 8, ds.FormatRGBA8)
	require.NoError(t, err)
	opened, err := opener.Open(context.Background(), name)
	require.NoError(t, err)

	require.NoError(t, creator.Close(&created))
	assert.False(t, created.Memory.Valid())

	_, err = opener.Open(context.Background(), name)
	assert.ErrorIs(t, err, ds.ErrNoPublisher)

	// The opener's copies are unaffected by the creator closing.
	var st unix.Stat_t
	assert.NoError(t, unix.Fstat(int(opened.Memory), &st))
	assert.Equal(t, int64(opened.Size), st.Size)
	assert.NoError(t, opener.Close(&opened))
}

func TestServesManyOpeners(t *testing.T) {
	name := surfaceName(t)
	creator := newBroker(&memfdExporter{}, DuplicateRights)
	defer creator.Shutdown()
	created, err := creator.Create(name, 4, 4, ds.FormatRGBA8)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		d, err := newBroker(nil, DuplicateRights).Open(context.Background(), name)
		require.NoError(t, err)
		assert.Equal(t, created.Size, d.Size)
		d.Close()
	}
	assert.NoError(t, creator.Close(&created))
}

func TestPidfdDuplication(t *testing.T) {
	name := surfaceName(t)
	creator := newBroker(&memfdExporter{}, DuplicateRights)
	defer creator.Shutdown()
	created, err := creator.Create(name, 4, 4, ds.FormatRGBA8)
	require.NoError(t, err)
	defer creator.Close(&created)

	opened, err := newBroker(nil, DuplicatePidfd).Open(context.Background(), name)
	if errors.Is(err, ds.ErrDuplicate) && (errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EPERM)) {
		t.Skipf("pidfd duplication unavailable: %v", err)
	}
	if err != nil && strings.Contains(err.Error(), "pidfd") {
		t.Skipf("pidfd duplication unavailable: %v", err)
	}
	require.NoError(t, err)
	assert.Equal(t, inode(t, created.Memory), inode(t, opened.Memory))
	opened.Close()
}

func TestShutdownRefusesCreate(t *testing.T) {
	b := newBroker(&memfdExporter{}, DuplicateRights)
	require.NoError(t, b.Shutdown())
	_, err := b.Create(surfaceName(t), 4, 4, ds.FormatRGBA8)
	assert.ErrorIs(t, err, ds.ErrClosed)
}

func TestShutdownDuringCreate(t *testing.T) {
	name := surfaceName(t)
	exp := &memfdExporter{}
	b := newBroker(exp, DuplicateRights)
	exp.during = func() { require.NoError(t, b.Shutdown()) }

	d, err := b.Create(name, 4, 4, ds.FormatRGBA8)
	assert.ErrorIs(t, err, ds.ErrClosed)
	assert.Equal(t, ds.None, d)

	_, err = newBroker(nil, DuplicateRights).Open(context.Background(), name)
	assert.ErrorIs(t, err, ds.ErrNoPublisher)
}

func openFds() int {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return -1
	}
	return len(entries)
}

func TestOpenRejectsInvalidRecord(t *testing.T) {
	name := surfaceName(t)
	srv, err := listen(name)
	require.NoError(t, err)

	d, err := (&memfdExporter{}).Export(ds.FormatRGBA8, 4, 4)
	require.NoError(t, err)
	d.Width = 0
	pub, err := newPublication(name, d, srv)
	require.NoError(t, err)
	d.Close()
	pub.wg.Add(1)
	go func() {
		defer pub.wg.Done()
		srv.serve(pub, ds.Component(nil, "broker"))
	}()
	defer pub.close()

	opener := newBroker(nil, DuplicateRights)
	before := openFds()
	opened, err := opener.Open(context.Background(), name)
	assert.ErrorIs(t, err, ds.ErrBroker)
	assert.Equal(t, ds.None, opened)
	// The server closes its end of the connection asynchronously.
	assert.Eventually(t, func() bool { return openFds() <= before }, time.Second, 10*time.Millisecond,
		"received descriptors must be closed")
}
