//go:build unix && !linux && !darwin

package broker

import (
	"fmt"
	"net"

	ds "github.com/andewx/dieselshare"
)

// processRef is empty where the socket layer does not report the peer;
// descriptor passing does not need it.
type processRef struct {
	pid int
}

func resolveCreatorIdentity(*net.UnixConn) (processRef, error) {
	return processRef{}, nil
}

func duplicate(mode Duplication, _ processRef, _ [2]ds.Handle, received []ds.Handle) ([2]ds.Handle, error) {
	if mode == DuplicatePidfd {
		closeHandles(received...)
		return [2]ds.Handle{ds.InvalidHandle, ds.InvalidHandle},
			fmt.Errorf("%w: pidfd duplication needs linux", ds.ErrUnavailable)
	}
	return fromRights(received)
}
