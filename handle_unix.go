//go:build unix

package dieselshare

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// Handle is an OS kernel handle to exported GPU memory or a semaphore payload.
// On unix systems it is a file descriptor.
type Handle int32

const InvalidHandle Handle = -1

const handleWireSize = 4

func (h Handle) Valid() bool {
	return h >= 0
}

func (h Handle) Close() error {
	if !h.Valid() {
		return nil
	}
	return unix.Close(int(h))
}

// Dup returns a new close-on-exec descriptor referring to the same object.
func (h Handle) Dup() (Handle, error) {
	fd, err := unix.FcntlInt(uintptr(h), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return InvalidHandle, err
	}
	return Handle(fd), nil
}

func putHandle(b []byte, h Handle) {
	binary.LittleEndian.PutUint32(b, uint32(int32(h)))
}

func getHandle(b []byte) Handle {
	return Handle(int32(binary.LittleEndian.Uint32(b)))
}
