package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	ds "github.com/andewx/dieselshare"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

var (
	modkernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procGetNamedPipeServerProcessId = modkernel32.NewProc("GetNamedPipeServerProcessId")
)

const pipeBufferSize = 512

func address(name string) string {
	return `\\.\pipe\dieselshare_` + name
}

// server is the publishing end of a name. The first pipe instance is created
// with FILE_FLAG_FIRST_PIPE_INSTANCE, which is the atomic claim of the name.
type server struct {
	name    string
	mu      sync.Mutex
	pipe    windows.Handle
	closing atomic.Bool
}

func createInstance(name string, first bool) (windows.Handle, error) {
	path, err := windows.UTF16PtrFromString(address(name))
	if err != nil {
		return windows.InvalidHandle, err
	}
	mode := uint32(windows.PIPE_ACCESS_OUTBOUND)
	if first {
		mode |= windows.FILE_FLAG_FIRST_PIPE_INSTANCE
	}
	return windows.CreateNamedPipe(path, mode,
		windows.PIPE_TYPE_BYTE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES, pipeBufferSize, pipeBufferSize, 0, nil)
}

func listen(name string) (*server, error) {
	h, err := createInstance(name, true)
	if err != nil {
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_PIPE_BUSY) {
			return nil, fmt.Errorf("%w: %q", ds.ErrNameTaken, name)
		}
		return nil, fmt.Errorf("%w: create pipe %q: %v", ds.ErrBroker, name, err)
	}
	return &server{name: name, pipe: h}, nil
}

// serve writes the record to each connecting client. Handle values in the
// record are this process's; clients duplicate them out of our handle table.
func (s *server) serve(pub *publication, log *logrus.Entry) {
	for {
		s.mu.Lock()
		h := s.pipe
		s.mu.Unlock()

		err := windows.ConnectNamedPipe(h, nil)
		if s.closing.Load() {
			return
		}
		if err != nil && !errors.Is(err, windows.ERROR_PIPE_CONNECTED) {
			log.WithError(err).Errorf("connect on %q failed, no longer serving", pub.name)
			return
		}
		var written uint32
		if err := windows.WriteFile(h, pub.record, &written, nil); err != nil {
			log.WithError(err).Warnf("sending %q failed", pub.name)
		} else {
			windows.FlushFileBuffers(h)
			log.Debugf("served %q", pub.name)
		}
		windows.DisconnectNamedPipe(h)

		next, err := createInstance(s.name, false)
		s.mu.Lock()
		windows.CloseHandle(h)
		s.pipe = next
		s.mu.Unlock()
		if err != nil {
			log.WithError(err).Errorf("re-creating pipe %q failed, no longer serving", pub.name)
			return
		}
	}
}

// close wakes a pending ConnectNamedPipe by connecting to it, then releases
// the instance.
func (s *server) close() error {
	s.closing.Store(true)
	if path, err := windows.UTF16PtrFromString(address(s.name)); err == nil {
		if h, err := windows.CreateFile(path, windows.GENERIC_READ, 0, nil, windows.OPEN_EXISTING, 0, 0); err == nil {
			windows.CloseHandle(h)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipe == windows.InvalidHandle {
		return nil
	}
	err := windows.CloseHandle(s.pipe)
	s.pipe = windows.InvalidHandle
	return err
}

func dialPipe(ctx context.Context, name string) (windows.Handle, error) {
	path, err := windows.UTF16PtrFromString(address(name))
	if err != nil {
		return windows.InvalidHandle, fmt.Errorf("%w: %v", ds.ErrBroker, err)
	}
	for {
		h, err := windows.CreateFile(path, windows.GENERIC_READ, 0, nil, windows.OPEN_EXISTING, 0, 0)
		if err == nil {
			return h, nil
		}
		if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) {
			return windows.InvalidHandle, fmt.Errorf("%w: %q", ds.ErrNoPublisher, name)
		}
		if !errors.Is(err, windows.ERROR_PIPE_BUSY) {
			return windows.InvalidHandle, fmt.Errorf("%w: connect %q: %v", ds.ErrBroker, name, err)
		}
		select {
		case <-ctx.Done():
			return windows.InvalidHandle, fmt.Errorf("%w: connect %q: %v", ds.ErrBroker, name, ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func receive(ctx context.Context, name string, mode Duplication) (ds.Descriptor, error) {
	if mode == DuplicatePidfd {
		return ds.None, fmt.Errorf("%w: pidfd duplication needs linux", ds.ErrUnavailable)
	}
	h, err := dialPipe(ctx, name)
	if err != nil {
		return ds.None, err
	}
	defer windows.CloseHandle(h)

	type result struct {
		n   uint32
		err error
	}
	buf := make([]byte, ds.RecordSize)
	done := make(chan result, 1)
	go func() {
		var n uint32
		err := windows.ReadFile(h, buf, &n, nil)
		done <- result{n, err}
	}()
	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		windows.CancelIoEx(h, nil)
		<-done
		return ds.None, fmt.Errorf("%w: read %q: %v", ds.ErrBroker, name, ctx.Err())
	}
	if r.err != nil || int(r.n) != ds.RecordSize {
		return ds.None, fmt.Errorf("%w: read %q: %d bytes, %v", ds.ErrBroker, name, r.n, r.err)
	}

	var d ds.Descriptor
	if err := d.UnmarshalBinary(buf); err != nil {
		return ds.None, fmt.Errorf("%w: %v", ds.ErrBroker, err)
	}
	peer, err := resolveCreatorIdentity(h)
	if err != nil {
		return ds.None, fmt.Errorf("%w: creator identity: %v", ds.ErrDuplicate, err)
	}
	local, err := duplicate(peer, [2]ds.Handle{d.Memory, d.Semaphore})
	if err != nil {
		return ds.None, err
	}
	d.Memory, d.Semaphore = local[0], local[1]
	if err := checkRecord(name, &d); err != nil {
		return ds.None, err
	}
	return d, nil
}

type processRef struct {
	pid uint32
}

// resolveCreatorIdentity asks the pipe which process serves it.
func resolveCreatorIdentity(pipe windows.Handle) (processRef, error) {
	if err := procGetNamedPipeServerProcessId.Find(); err != nil {
		return processRef{}, err
	}
	var pid uint32
	r, _, err := procGetNamedPipeServerProcessId.Call(uintptr(pipe), uintptr(unsafe.Pointer(&pid)))
	if r == 0 {
		return processRef{}, err
	}
	return processRef{pid: pid}, nil
}

// duplicate copies both handles from the creator's handle table into ours.
func duplicate(peer processRef, remote [2]ds.Handle) ([2]ds.Handle, error) {
	invalid := [2]ds.Handle{ds.InvalidHandle, ds.InvalidHandle}
	proc, err := windows.OpenProcess(windows.PROCESS_DUP_HANDLE, false, peer.pid)
	if err != nil {
		return invalid, fmt.Errorf("%w: open process %d: %v", ds.ErrDuplicate, peer.pid, err)
	}
	defer windows.CloseHandle(proc)

	self := windows.CurrentProcess()
	var out [2]windows.Handle
	for i, h := range remote {
		err := windows.DuplicateHandle(proc, windows.Handle(h), self, &out[i], 0, false, windows.DUPLICATE_SAME_ACCESS)
		if err != nil {
			if i == 1 {
				windows.CloseHandle(out[0])
			}
			return invalid, fmt.Errorf("%w: duplicate handle %d: %v", ds.ErrDuplicate, i, err)
		}
	}
	return [2]ds.Handle{ds.Handle(out[0]), ds.Handle(out[1])}, nil
}
