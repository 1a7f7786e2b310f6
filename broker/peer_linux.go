package broker

import (
	"errors"
	"fmt"
	"net"

	ds "github.com/andewx/dieselshare"
	"golang.org/x/sys/unix"
)

// processRef identifies the process that created a surface.
type processRef struct {
	pid int
}

// resolveCreatorIdentity reads the publisher's pid from the connected socket.
func resolveCreatorIdentity(conn *net.UnixConn) (processRef, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return processRef{}, err
	}
	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err = errors.Join(err, credErr); err != nil {
		return processRef{}, err
	}
	return processRef{pid: int(cred.Pid)}, nil
}

func duplicate(mode Duplication, peer processRef, remote [2]ds.Handle, received []ds.Handle) ([2]ds.Handle, error) {
	if mode != DuplicatePidfd {
		return fromRights(received)
	}
	closeHandles(received...)
	invalid := [2]ds.Handle{ds.InvalidHandle, ds.InvalidHandle}

	pidfd, err := unix.PidfdOpen(peer.pid, 0)
	if err != nil {
		return invalid, fmt.Errorf("%w: pidfd_open %d: %v", ds.ErrDuplicate, peer.pid, err)
	}
	defer unix.Close(pidfd)

	mem, err := unix.PidfdGetfd(pidfd, int(remote[0]), 0)
	if err != nil {
		return invalid, fmt.Errorf("%w: pidfd_getfd memory: %v", ds.ErrDuplicate, err)
	}
	sem, err := unix.PidfdGetfd(pidfd, int(remote[1]), 0)
	if err != nil {
		unix.Close(mem)
		return invalid, fmt.Errorf("%w: pidfd_getfd semaphore: %v", ds.ErrDuplicate, err)
	}
	return [2]ds.Handle{ds.Handle(mem), ds.Handle(sem)}, nil
}
