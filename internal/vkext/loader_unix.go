//go:build unix

package vkext

/*
#include <stdlib.h>
#include <dlfcn.h>

static void* stOpenLoader(const char* name) {
	return dlopen(name, RTLD_NOW | RTLD_LOCAL);
}

static void* stLoaderSymbol(void* lib) {
	return dlsym(lib, "vkGetInstanceProcAddr");
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"
)

func loaderNames() []string {
	if runtime.GOOS == "darwin" {
		return []string{"libvulkan.1.dylib", "libvulkan.dylib", "libMoltenVK.dylib"}
	}
	return []string{"libvulkan.so.1", "libvulkan.so"}
}

// LoaderProcAddr opens the system Vulkan loader and returns its
// vkGetInstanceProcAddr. The library stays loaded for the process lifetime.
func LoaderProcAddr() (unsafe.Pointer, error) {
	for _, name := range loaderNames() {
		cname := C.CString(name)
		lib := C.stOpenLoader(cname)
		C.free(unsafe.Pointer(cname))
		if lib == nil {
			continue
		}
		if sym := C.stLoaderSymbol(lib); sym != nil {
			return sym, nil
		}
		return nil, fmt.Errorf("%s has no vkGetInstanceProcAddr", name)
	}
	return nil, fmt.Errorf("no Vulkan loader found (tried %v)", loaderNames())
}
