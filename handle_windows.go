//go:build windows

package dieselshare

import (
	"encoding/binary"

	"golang.org/x/sys/windows"
)

// Handle is an OS kernel handle to exported GPU memory or a semaphore payload.
// On windows it is a process-local HANDLE.
type Handle uintptr

const InvalidHandle Handle = 0

const handleWireSize = 8

func (h Handle) Valid() bool {
	return h != InvalidHandle && windows.Handle(h) != windows.InvalidHandle
}

func (h Handle) Close() error {
	if !h.Valid() {
		return nil
	}
	return windows.CloseHandle(windows.Handle(h))
}

// Dup returns a second handle in this process referring to the same object.
func (h Handle) Dup() (Handle, error) {
	var out windows.Handle
	self := windows.CurrentProcess()
	err := windows.DuplicateHandle(self, windows.Handle(h), self, &out, 0, false, windows.DUPLICATE_SAME_ACCESS)
	if err != nil {
		return InvalidHandle, err
	}
	return Handle(out), nil
}

func putHandle(b []byte, h Handle) {
	binary.LittleEndian.PutUint64(b, uint64(h))
}

func getHandle(b []byte) Handle {
	return Handle(binary.LittleEndian.Uint64(b))
}
