//go:build unix && !linux

package broker

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"syscall"
)

func address(name string) string {
	return filepath.Join(os.TempDir(), "dieselshare-"+name+".sock")
}

// reclaim removes a socket file left behind by a publisher that exited
// without closing. A live publisher keeps the name.
func reclaim(addr *net.UnixAddr) bool {
	conn, err := net.DialUnix("unix", nil, addr)
	if err == nil {
		conn.Close()
		return false
	}
	if !errors.Is(err, syscall.ECONNREFUSED) {
		return false
	}
	return os.Remove(addr.Name) == nil
}
