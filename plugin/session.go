// Package plugin is the seam a hosting application calls into: it opens
// named surfaces through a broker, binds them into the host's graphics
// context and keeps track of both so a host only deals in references and
// native handles.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ds "github.com/andewx/dieselshare"
	"github.com/sirupsen/logrus"
)

// Broker is the part of broker.Broker a session uses.
type Broker interface {
	OpenOrCreate(ctx context.Context, name string, width, height int32, format ds.Format) (ds.Descriptor, error)
	Close(d *ds.Descriptor) error
	Shutdown() error
}

type Options struct {
	Broker Broker
	// Binder imports surfaces into the host's context.
	Binder ds.Binder
	Logger *logrus.Logger
}

type surface struct {
	name string
	desc ds.Descriptor
	// bindings of this surface, in bind order.
	bindings []ds.Ref
}

type binding struct {
	surface ds.Ref
	res     ds.Resource
}

// Session owns the surfaces a host opened and the resources it bound.
type Session struct {
	mu       sync.Mutex
	broker   Broker
	binder   ds.Binder
	surfaces *ds.Registry[*surface]
	bindings *ds.Registry[*binding]
	closed   bool
	log      *logrus.Entry
}

// New initialises a session over a broker and a binder for the host's API.
func New(opts Options) (*Session, error) {
	if opts.Broker == nil || opts.Binder == nil {
		return nil, fmt.Errorf("%w: session needs a broker and a binder", ds.ErrUnavailable)
	}
	return &Session{
		broker:   opts.Broker,
		binder:   opts.Binder,
		surfaces: ds.NewRegistry[*surface](),
		bindings: ds.NewRegistry[*binding](),
		log:      ds.Component(opts.Logger, "plugin").WithField("api", opts.Binder.API()),
	}, nil
}

// OpenOrCreate opens the surface published under name, creating it when
// nobody publishes it yet.
func (s *Session) OpenOrCreate(ctx context.Context, name string, width, height int32, format ds.Format) (ds.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ds.ErrClosed
	}
	d, err := s.broker.OpenOrCreate(ctx, name, width, height, format)
	if err != nil {
		return 0, err
	}
	ref := s.surfaces.Insert(&surface{name: name, desc: d})
	s.log.Debugf("surface %q is %#x", name, uint64(ref))
	return ref, nil
}

// Descriptor returns the descriptor behind ref. Its handles stay owned by
// the session.
func (s *Session) Descriptor(ref ds.Ref) (ds.Descriptor, bool) {
	sf, ok := s.surfaces.Get(ref)
	if !ok {
		return ds.None, false
	}
	return sf.desc, true
}

// Close unbinds every resource bound from the surface, then closes it.
func (s *Session) Close(ref ds.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.close(ref)
}

func (s *Session) close(ref ds.Ref) error {
	sf, ok := s.surfaces.Remove(ref)
	if !ok {
		return fmt.Errorf("%w: unknown surface %#x", ds.ErrClosed, uint64(ref))
	}
	var err error
	for i := len(sf.bindings) - 1; i >= 0; i-- {
		err = errors.Join(err, s.unbind(sf.bindings[i]))
	}
	err = errors.Join(err, s.broker.Close(&sf.desc))
	s.log.Debugf("closed surface %q", sf.name)
	return err
}

// BindToContext imports the surface into the host's context and returns the
// native handle the host renders with.
func (s *Session) BindToContext(ref ds.Ref) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ds.ErrClosed
	}
	sf, ok := s.surfaces.Get(ref)
	if !ok {
		return 0, fmt.Errorf("%w: unknown surface %#x", ds.ErrClosed, uint64(ref))
	}
	res, err := s.binder.Bind(sf.desc)
	if err != nil {
		return 0, fmt.Errorf("bind %q: %w", sf.name, err)
	}
	native := res.Native()
	b := s.bindings.InsertNative(&binding{surface: ref, res: res}, native)
	sf.bindings = append(sf.bindings, b)
	return native, nil
}

// Resource returns the resource bound as native.
func (s *Session) Resource(native uint64) (ds.Resource, bool) {
	_, b, ok := s.bindings.Lookup(native)
	if !ok {
		return nil, false
	}
	return b.res, true
}

// Unbind releases the resource the host knows as native.
func (s *Session) Unbind(native uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, _, ok := s.bindings.Lookup(native)
	if !ok {
		return fmt.Errorf("%w: no resource bound as %#x", ds.ErrClosed, native)
	}
	return s.unbind(ref)
}

func (s *Session) unbind(ref ds.Ref) error {
	b, ok := s.bindings.Remove(ref)
	if !ok {
		return nil
	}
	if sf, ok := s.surfaces.Get(b.surface); ok {
		sf.bindings = removeRef(sf.bindings, ref)
	}
	return s.binder.Unbind(b.res)
}

func removeRef(refs []ds.Ref, ref ds.Ref) []ds.Ref {
	for i, r := range refs {
		if r == ref {
			return append(refs[:i], refs[i+1:]...)
		}
	}
	return refs
}

// Resources lists the bound resources in bind order. A Vulkan host feeds
// their semaphores to its queue submits.
func (s *Session) Resources() []ds.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := s.bindings.Refs()
	out := make([]ds.Resource, 0, len(refs))
	for _, ref := range refs {
		if b, ok := s.bindings.Get(ref); ok {
			out = append(out, b.res)
		}
	}
	return out
}

// Shutdown unbinds every resource and closes every surface, latest first,
// then stops the broker. The session cannot be used afterwards.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	refs := s.bindings.Refs()
	for i := len(refs) - 1; i >= 0; i-- {
		err = errors.Join(err, s.unbind(refs[i]))
	}
	refs = s.surfaces.Refs()
	for i := len(refs) - 1; i >= 0; i-- {
		err = errors.Join(err, s.close(refs[i]))
	}
	err = errors.Join(err, s.broker.Shutdown())
	if err != nil {
		s.log.WithError(err).Warn("shutdown finished with errors")
	}
	return err
}
