//go:build unix

package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	ds "github.com/andewx/dieselshare"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const writeTimeout = time.Second

// server is the publishing end of a name: a listening unix socket whose
// successful bind is the atomic claim of the name.
type server struct {
	ln      *net.UnixListener
	closing atomic.Bool
}

func listen(name string) (*server, error) {
	addr := &net.UnixAddr{Name: address(name), Net: "unix"}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil && errors.Is(err, syscall.EADDRINUSE) && reclaim(addr) {
		ln, err = net.ListenUnix("unix", addr)
	}
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %q", ds.ErrNameTaken, name)
		}
		return nil, fmt.Errorf("%w: listen %q: %v", ds.ErrBroker, name, err)
	}
	return &server{ln: ln}, nil
}

// serve answers every connection with the record and the two descriptors
// until the listener is closed.
func (s *server) serve(pub *publication, log *logrus.Entry) {
	rights := unix.UnixRights(int(pub.desc.Memory), int(pub.desc.Semaphore))
	for {
		conn, err := s.ln.AcceptUnix()
		if err != nil {
			if !s.closing.Load() && !errors.Is(err, net.ErrClosed) {
				log.WithError(err).Errorf("accept on %q failed, no longer serving", pub.name)
			}
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, _, err := conn.WriteMsgUnix(pub.record, rights, nil); err != nil {
			log.WithError(err).Warnf("sending %q failed", pub.name)
		} else {
			log.Debugf("served %q", pub.name)
		}
		conn.Close()
	}
}

func (s *server) close() error {
	s.closing.Store(true)
	return s.ln.Close()
}

func receive(ctx context.Context, name string, mode Duplication) (ds.Descriptor, error) {
	var dialer net.Dialer
	c, err := dialer.DialContext(ctx, "unix", address(name))
	if err != nil {
		if errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
			return ds.None, fmt.Errorf("%w: %q", ds.ErrNoPublisher, name)
		}
		return ds.None, fmt.Errorf("%w: connect %q: %v", ds.ErrBroker, name, err)
	}
	conn := c.(*net.UnixConn)
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}

	buf := make([]byte, ds.RecordSize)
	oob := make([]byte, unix.CmsgSpace(2*4))
	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	received := parseRights(oob[:oobn])
	if err != nil {
		closeHandles(received...)
		return ds.None, fmt.Errorf("%w: read %q: %v", ds.ErrBroker, name, err)
	}
	var d ds.Descriptor
	if n != ds.RecordSize {
		closeHandles(received...)
		return ds.None, fmt.Errorf("%w: short record from %q (%d bytes)", ds.ErrBroker, name, n)
	}
	if err := d.UnmarshalBinary(buf); err != nil {
		closeHandles(received...)
		return ds.None, fmt.Errorf("%w: %v", ds.ErrBroker, err)
	}

	peer, err := resolveCreatorIdentity(conn)
	if err != nil {
		closeHandles(received...)
		return ds.None, fmt.Errorf("%w: creator identity: %v", ds.ErrDuplicate, err)
	}
	remote := [2]ds.Handle{d.Memory, d.Semaphore}
	local, err := duplicate(mode, peer, remote, received)
	if err != nil {
		return ds.None, err
	}
	d.Memory, d.Semaphore = local[0], local[1]
	if err := checkRecord(name, &d); err != nil {
		return ds.None, err
	}
	return d, nil
}

func parseRights(oob []byte) []ds.Handle {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil
	}
	var handles []ds.Handle
	for i := range msgs {
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		for _, fd := range fds {
			handles = append(handles, ds.Handle(fd))
		}
	}
	return handles
}

// fromRights takes the two descriptors the kernel installed for us.
func fromRights(received []ds.Handle) ([2]ds.Handle, error) {
	if len(received) != 2 {
		closeHandles(received...)
		return [2]ds.Handle{ds.InvalidHandle, ds.InvalidHandle},
			fmt.Errorf("%w: expected 2 descriptors, got %d", ds.ErrDuplicate, len(received))
	}
	unix.CloseOnExec(int(received[0]))
	unix.CloseOnExec(int(received[1]))
	return [2]ds.Handle{received[0], received[1]}, nil
}

func closeHandles(hs ...ds.Handle) {
	for _, h := range hs {
		h.Close()
	}
}
