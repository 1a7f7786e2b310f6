// Package broker maps a logical surface name to a shared surface descriptor
// across processes. The first process to claim a name exports a new surface
// and serves its descriptor on a local channel derived from the name; later
// processes connect to that channel and receive duplicates of the handles.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	ds "github.com/andewx/dieselshare"
	"github.com/sirupsen/logrus"
)

// Exporter allocates the GPU objects behind a new surface.
type Exporter interface {
	// Export creates an exportable image, its memory and a semaphore, signals
	// the semaphore once, and returns handles owned by the caller. All
	// intermediate GPU objects are released before returning.
	Export(format ds.Format, width, height int32) (ds.Descriptor, error)
}

// Duplication selects how an opener obtains its copies of the creator's handles.
type Duplication string

const (
	// DuplicateRights receives the handles over the channel itself.
	DuplicateRights Duplication = "rights"
	// DuplicatePidfd pulls the handles out of the creator's handle table by
	// process identity. Linux only.
	DuplicatePidfd Duplication = "pidfd"
)

type Options struct {
	OpenTimeout time.Duration
	Duplication Duplication
	Logger      *logrus.Logger
}

const maxNameLen = 64

// Broker creates, opens and closes shared surfaces for one process.
type Broker struct {
	exporter Exporter
	opts     Options
	log      *logrus.Entry

	mu        sync.Mutex
	published map[ds.Handle]*publication
	closed    bool
}

// publication keeps serving one descriptor until closed. It holds its own
// duplicates so the creator may close its copy independently.
type publication struct {
	name   string
	desc   ds.Descriptor
	record []byte
	srv    *server
	wg     sync.WaitGroup
}

func New(exporter Exporter, opts Options) *Broker {
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 500 * time.Millisecond
	}
	if opts.Duplication == "" {
		opts.Duplication = DuplicateRights
	}
	return &Broker{
		exporter:  exporter,
		opts:      opts,
		log:       ds.Component(opts.Logger, "broker"),
		published: make(map[ds.Handle]*publication),
	}
}

func validName(name string) error {
	if name == "" || len(name) > maxNameLen || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: invalid surface name %q", ds.ErrBroker, name)
	}
	return nil
}

// Create claims name, exports a new surface and publishes it. The returned
// descriptor belongs to the caller, who must still bind it to use it.
// On failure nothing stays published and ds.None is returned.
func (b *Broker) Create(name string, width, height int32, format ds.Format) (ds.Descriptor, error) {
	if err := validName(name); err != nil {
		return ds.None, err
	}
	if !format.Valid() || width <= 0 || height <= 0 {
		return ds.None, fmt.Errorf("%w: %s %dx%d", ds.ErrBadFormat, format, width, height)
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ds.None, ds.ErrClosed
	}
	if b.exporter == nil {
		return ds.None, fmt.Errorf("%w: no exporter", ds.ErrUnavailable)
	}

	srv, err := listen(name)
	if err != nil {
		b.log.WithError(err).Warnf("cannot claim %q", name)
		return ds.None, err
	}

	d, err := b.exporter.Export(format, width, height)
	if err != nil {
		srv.close()
		b.log.WithError(err).Errorf("export failed for %q", name)
		return ds.None, fmt.Errorf("export %q: %w", name, err)
	}

	pub, err := newPublication(name, d, srv)
	if err != nil {
		srv.close()
		d.Close()
		return ds.None, err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		pub.close()
		d.Close()
		return ds.None, ds.ErrClosed
	}
	b.published[d.Memory] = pub
	pub.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer pub.wg.Done()
		srv.serve(pub, b.log)
	}()
	b.log.Infof("published %q: %s", name, d)
	return d, nil
}

func newPublication(name string, d ds.Descriptor, srv *server) (*publication, error) {
	mem, err := d.Memory.Dup()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ds.ErrBroker, err)
	}
	sem, err := d.Semaphore.Dup()
	if err != nil {
		mem.Close()
		return nil, fmt.Errorf("%w: %v", ds.ErrBroker, err)
	}
	own := d
	own.Memory, own.Semaphore = mem, sem
	record, _ := own.MarshalBinary()
	return &publication{name: name, desc: own, record: record, srv: srv}, nil
}

// checkRecord rejects a received descriptor that does not describe a
// surface, closing the local handles already duplicated for it.
func checkRecord(name string, d *ds.Descriptor) error {
	if d.Valid() {
		return nil
	}
	err := fmt.Errorf("%w: invalid record from %q: %s", ds.ErrBroker, name, d)
	d.Close()
	return err
}

func (p *publication) close() error {
	err := p.srv.close()
	p.wg.Wait()
	return errors.Join(err, p.desc.Close())
}

// Open connects to the publisher of name and returns duplicates of its
// handles owned by this process. It returns within the open timeout or when
// ctx is done, and never retries. ds.ErrNoPublisher means nobody serves name.
func (b *Broker) Open(ctx context.Context, name string) (ds.Descriptor, error) {
	if err := validName(name); err != nil {
		return ds.None, err
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.OpenTimeout)
	defer cancel()

	d, err := receive(ctx, name, b.opts.Duplication)
	if err != nil {
		if errors.Is(err, ds.ErrNoPublisher) {
			b.log.Debugf("no publisher for %q", name)
		} else {
			b.log.WithError(err).Warnf("open %q failed", name)
		}
		return ds.None, err
	}
	b.log.Infof("opened %q: %s", name, d)
	return d, nil
}

// OpenOrCreate opens name and creates it when nobody publishes it yet.
// Losing a concurrent create race returns ds.ErrNameTaken; it is not
// retried as an open.
func (b *Broker) OpenOrCreate(ctx context.Context, name string, width, height int32, format ds.Format) (ds.Descriptor, error) {
	d, err := b.Open(ctx, name)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ds.ErrNoPublisher) {
		return ds.None, err
	}
	return b.Create(name, width, height, format)
}

// Close releases this process's copies of d's handles. If this process
// published d it stops serving it. Other processes keep their duplicates.
func (b *Broker) Close(d *ds.Descriptor) error {
	b.mu.Lock()
	pub, ok := b.published[d.Memory]
	if ok {
		delete(b.published, d.Memory)
	}
	b.mu.Unlock()

	var err error
	if ok {
		err = pub.close()
		b.log.Infof("unpublished %q", pub.name)
	}
	return errors.Join(err, d.Close())
}

// Shutdown stops every publication made by this broker.
func (b *Broker) Shutdown() error {
	b.mu.Lock()
	pubs := b.published
	b.published = make(map[ds.Handle]*publication)
	b.closed = true
	b.mu.Unlock()

	var err error
	for _, pub := range pubs {
		err = errors.Join(err, pub.close())
	}
	return err
}
