package plugin

import (
	"context"
	"errors"
	"testing"

	ds "github.com/andewx/dieselshare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	opened   []string
	closed   []int32
	shutdown int
	next     int32
	err      error
}

func (b *fakeBroker) OpenOrCreate(_ context.Context, name string, width, height int32, format ds.Format) (ds.Descriptor, error) {
	if b.err != nil {
		return ds.None, b.err
	}
	b.opened = append(b.opened, name)
	b.next++
	return ds.Descriptor{
		Format: format, Width: width, Height: height, Size: uint64(width * height * 4),
		Memory: ds.Handle(100 + 2*b.next), Semaphore: ds.Handle(101 + 2*b.next),
	}, nil
}

// Close records the surface by its width and forgets the handles without
// closing them, they are not real.
func (b *fakeBroker) Close(d *ds.Descriptor) error {
	b.closed = append(b.closed, d.Width)
	d.Memory, d.Semaphore = ds.InvalidHandle, ds.InvalidHandle
	return nil
}

func (b *fakeBroker) Shutdown() error {
	b.shutdown++
	return nil
}

type fakeResource struct {
	native   uint64
	width    int32
	released bool
}

func (r *fakeResource) API() ds.API    { return ds.APIVulkan }
func (r *fakeResource) Native() uint64 { return r.native }
func (r *fakeResource) Released() bool { return r.released }

type fakeBinder struct {
	next     uint64
	unbound  []uint64
	bindErr  error
	resource []*fakeResource
}

func (b *fakeBinder) API() ds.API { return ds.APIVulkan }

func (b *fakeBinder) Bind(d ds.Descriptor) (ds.Resource, error) {
	if b.bindErr != nil {
		return nil, b.bindErr
	}
	b.next++
	r := &fakeResource{native: 0x1000 + b.next, width: d.Width}
	b.resource = append(b.resource, r)
	return r, nil
}

func (b *fakeBinder) Unbind(res ds.Resource) error {
	r := res.(*fakeResource)
	r.released = true
	b.unbound = append(b.unbound, r.native)
	return nil
}

func newTestSession(t *testing.T) (*Session, *fakeBroker, *fakeBinder) {
	br, bi := &fakeBroker{}, &fakeBinder{}
	s, err := New(Options{Broker: br, Binder: bi, Logger: ds.DiscardLogger()})
	require.NoError(t, err)
	return s, br, bi
}

func TestNewNeedsBrokerAndBinder(t *testing.T) {
	_, err := New(Options{Binder: &fakeBinder{}})
	assert.ErrorIs(t, err, ds.ErrUnavailable)
	_, err = New(Options{Broker: &fakeBroker{}})
	assert.ErrorIs(t, err, ds.ErrUnavailable)
}

func TestOpenBindUnbindClose(t *testing.T) {
	s, br, bi := newTestSession(t)
	ctx := context.Background()

	ref, err := s.OpenOrCreate(ctx, "demo", 1280, 720, ds.FormatRGBA8)
	require.NoError(t, err)
	assert.NotZero(t, ref)
	assert.Equal(t, []string{"demo"}, br.opened)

	d, ok := s.Descriptor(ref)
	require.True(t, ok)
	assert.EqualValues(t, 1280, d.Width)

	native, err := s.BindToContext(ref)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1001, native)
	assert.Len(t, s.Resources(), 1)
	res, ok := s.Resource(native)
	require.True(t, ok)
	assert.Equal(t, native, res.Native())

	require.NoError(t, s.Unbind(native))
	assert.Equal(t, []uint64{0x1001}, bi.unbound)
	assert.Empty(t, s.Resources())
	assert.ErrorIs(t, s.Unbind(native), ds.ErrClosed)
	_, ok = s.Resource(native)
	assert.False(t, ok)

	require.NoError(t, s.Close(ref))
	assert.Equal(t, []int32{1280}, br.closed)
	_, ok = s.Descriptor(ref)
	assert.False(t, ok)
	assert.Error(t, s.Close(ref))
}

func TestCloseUnbindsItsResources(t *testing.T) {
	s, br, bi := newTestSession(t)
	ctx := context.Background()

	a, err := s.OpenOrCreate(ctx, "a", 16, 16, ds.FormatRGBA8)
	require.NoError(t, err)
	b, err := s.OpenOrCreate(ctx, "b", 32, 32, ds.FormatDepth32)
	require.NoError(t, err)

	first, err := s.BindToContext(a)
	require.NoError(t, err)
	other, err := s.BindToContext(b)
	require.NoError(t, err)
	second, err := s.BindToContext(a)
	require.NoError(t, err)

	require.NoError(t, s.Close(a))
	assert.Equal(t, []uint64{second, first}, bi.unbound)
	assert.Equal(t, []int32{16}, br.closed)

	res := s.Resources()
	require.Len(t, res, 1)
	assert.Equal(t, other, res[0].Native())
}

func TestShutdownReleasesLatestFirst(t *testing.T) {
	s, br, bi := newTestSession(t)
	ctx := context.Background()

	a, _ := s.OpenOrCreate(ctx, "a", 16, 16, ds.FormatRGBA8)
	b, _ := s.OpenOrCreate(ctx, "b", 32, 32, ds.FormatRGBA8)
	na, err := s.BindToContext(a)
	require.NoError(t, err)
	nb, err := s.BindToContext(b)
	require.NoError(t, err)

	require.NoError(t, s.Shutdown())
	assert.Equal(t, []uint64{nb, na}, bi.unbound)
	assert.Equal(t, []int32{32, 16}, br.closed)
	assert.Equal(t, 1, br.shutdown)
	for _, r := range bi.resource {
		assert.True(t, r.Released())
	}

	require.NoError(t, s.Shutdown())
	assert.Equal(t, 1, br.shutdown)
	_, err = s.OpenOrCreate(ctx, "c", 8, 8, ds.FormatRGBA8)
	assert.ErrorIs(t, err, ds.ErrClosed)
	_, err = s.BindToContext(a)
	assert.ErrorIs(t, err, ds.ErrClosed)
}

func TestFailuresLeaveNothingBehind(t *testing.T) {
	s, br, bi := newTestSession(t)
	ctx := context.Background()

	br.err = ds.ErrNameTaken
	_, err := s.OpenOrCreate(ctx, "demo", 16, 16, ds.FormatRGBA8)
	assert.ErrorIs(t, err, ds.ErrNameTaken)
	br.err = nil

	ref, err := s.OpenOrCreate(ctx, "demo", 16, 16, ds.FormatRGBA8)
	require.NoError(t, err)
	bi.bindErr = errors.New("boom")
	_, err = s.BindToContext(ref)
	assert.ErrorIs(t, err, bi.bindErr)
	assert.Empty(t, s.Resources())

	_, err = s.BindToContext(ds.Ref(12345))
	assert.Error(t, err)
}
