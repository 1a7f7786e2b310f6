package broker

import (
	"errors"
	"fmt"
	"net"

	ds "github.com/andewx/dieselshare"
	"golang.org/x/sys/unix"
)

type processRef struct {
	pid int
}

func resolveCreatorIdentity(conn *net.UnixConn) (processRef, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return processRef{}, err
	}
	var pid int
	var pidErr error
	err = raw.Control(func(fd uintptr) {
		pid, pidErr = unix.GetsockoptInt(int(fd), unix.SOL_LOCAL, unix.LOCAL_PEERPID)
	})
	if err = errors.Join(err, pidErr); err != nil {
		return processRef{}, err
	}
	return processRef{pid: pid}, nil
}

func duplicate(mode Duplication, _ processRef, _ [2]ds.Handle, received []ds.Handle) ([2]ds.Handle, error) {
	if mode == DuplicatePidfd {
		closeHandles(received...)
		return [2]ds.Handle{ds.InvalidHandle, ds.InvalidHandle},
			fmt.Errorf("%w: pidfd duplication needs linux", ds.ErrUnavailable)
	}
	return fromRights(received)
}
