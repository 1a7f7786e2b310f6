package vkext

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var vulkanDLL = windows.NewLazySystemDLL("vulkan-1.dll")

// LoaderProcAddr loads vulkan-1.dll and returns its vkGetInstanceProcAddr.
func LoaderProcAddr() (unsafe.Pointer, error) {
	proc := vulkanDLL.NewProc("vkGetInstanceProcAddr")
	if err := proc.Find(); err != nil {
		return nil, fmt.Errorf("no Vulkan loader found: %w", err)
	}
	return unsafe.Pointer(proc.Addr()), nil
}
