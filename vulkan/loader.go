package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/internal/vkext"
	vk "github.com/vulkan-go/vulkan"
)

// The core table lives in vulkan-go and is process wide, so is the loader
// entry point it was initialised from.
var core struct {
	sync.Mutex
	procAddr unsafe.Pointer
}

// LoadCoreFunctions initialises the instance independent entry points. A nil
// procAddr opens the system Vulkan loader, otherwise procAddr must be a
// vkGetInstanceProcAddr supplied by the host (glfw.GetVulkanGetInstanceProcAddress).
// Calling it again with the same source is a no-op.
func LoadCoreFunctions(procAddr unsafe.Pointer) error {
	core.Lock()
	defer core.Unlock()

	if procAddr == nil {
		if core.procAddr != nil {
			return nil
		}
		p, err := vkext.LoaderProcAddr()
		if err != nil {
			return fmt.Errorf("%w: %v", ds.ErrUnavailable, err)
		}
		procAddr = p
	}
	if procAddr == core.procAddr {
		return nil
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("%w: vulkan init: %v", ds.ErrUnavailable, err)
	}
	core.procAddr = procAddr
	return nil
}

func coreProcAddr() unsafe.Pointer {
	core.Lock()
	defer core.Unlock()
	return core.procAddr
}
