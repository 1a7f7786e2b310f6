package opengl

import (
	"fmt"
	"time"

	"github.com/andewx/dieselshare/handoff"
	"github.com/go-gl/gl/v3.2-core/gl"
)

// Sync is a GL fence sync object marking the end of one frame's commands.
type Sync struct {
	handle uintptr
}

func newSync() *Sync {
	return &Sync{handle: gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)}
}

// Wait blocks at most timeout. The sync object is deleted once it completes.
func (s *Sync) Wait(timeout time.Duration) (bool, error) {
	if s.handle == 0 {
		return true, nil
	}
	if timeout < 0 {
		timeout = 0
	}
	switch gl.ClientWaitSync(s.handle, gl.SYNC_FLUSH_COMMANDS_BIT, uint64(timeout.Nanoseconds())) {
	case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
		s.Delete()
		return true, nil
	case gl.TIMEOUT_EXPIRED:
		return false, nil
	}
	return false, fmt.Errorf("glClientWaitSync: GL error %#x", gl.GetError())
}

func (s *Sync) Delete() {
	if s.handle != 0 {
		gl.DeleteSync(s.handle)
		s.handle = 0
	}
}

var _ handoff.Fence = (*Sync)(nil)
