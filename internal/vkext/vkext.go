// Package vkext resolves and calls the Vulkan entry points for external
// memory and external semaphores. Each Table is bound to one device and is
// owned by the context that loaded it.
package vkext

/*
#cgo linux LDFLAGS: -ldl
#include <stdlib.h>
#include <stdint.h>
#ifdef _WIN32
#include <windows.h>
#define VK_USE_PLATFORM_WIN32_KHR 1
#else
#include <dlfcn.h>
#endif
#include <vulkan/vulkan.h>

#ifdef _WIN32
#define ST_MEMORY_HANDLE_TYPE VK_EXTERNAL_MEMORY_HANDLE_TYPE_OPAQUE_WIN32_BIT
#define ST_SEMAPHORE_HANDLE_TYPE VK_EXTERNAL_SEMAPHORE_HANDLE_TYPE_OPAQUE_WIN32_BIT
#else
#define ST_MEMORY_HANDLE_TYPE VK_EXTERNAL_MEMORY_HANDLE_TYPE_OPAQUE_FD_BIT
#define ST_SEMAPHORE_HANDLE_TYPE VK_EXTERNAL_SEMAPHORE_HANDLE_TYPE_OPAQUE_FD_BIT
#endif

static void* stInstanceProc(void* gipa, VkInstance instance, const char* name) {
	return (void*)((PFN_vkGetInstanceProcAddr)gipa)(instance, name);
}

static void* stDeviceProc(void* gdpa, VkDevice device, const char* name) {
	return (void*)((PFN_vkGetDeviceProcAddr)gdpa)(device, name);
}

static VkResult stCreateExternalImage(void* fn, VkDevice device, VkFormat format,
	VkImageUsageFlags usage, uint32_t width, uint32_t height, VkImage* image) {
	VkExternalMemoryImageCreateInfo external = {0};
	external.sType = VK_STRUCTURE_TYPE_EXTERNAL_MEMORY_IMAGE_CREATE_INFO;
	external.handleTypes = ST_MEMORY_HANDLE_TYPE;

	VkImageCreateInfo info = {0};
	info.sType = VK_STRUCTURE_TYPE_IMAGE_CREATE_INFO;
	info.pNext = &external;
	info.flags = VK_IMAGE_CREATE_MUTABLE_FORMAT_BIT;
	info.imageType = VK_IMAGE_TYPE_2D;
	info.format = format;
	info.extent.width = width;
	info.extent.height = height;
	info.extent.depth = 1;
	info.mipLevels = 1;
	info.arrayLayers = 1;
	info.samples = VK_SAMPLE_COUNT_1_BIT;
	info.tiling = VK_IMAGE_TILING_OPTIMAL;
	info.usage = usage;
	info.sharingMode = VK_SHARING_MODE_EXCLUSIVE;
	info.initialLayout = VK_IMAGE_LAYOUT_UNDEFINED;
	return ((PFN_vkCreateImage)fn)(device, &info, NULL, image);
}

static void stDestroyImage(void* fn, VkDevice device, VkImage image) {
	((PFN_vkDestroyImage)fn)(device, image, NULL);
}

static void stImageMemoryRequirements(void* fn, VkDevice device, VkImage image,
	VkDeviceSize* size, uint32_t* typeBits) {
	VkMemoryRequirements reqs;
	((PFN_vkGetImageMemoryRequirements)fn)(device, image, &reqs);
	*size = reqs.size;
	*typeBits = reqs.memoryTypeBits;
}

static VkResult stAllocateExportable(void* fn, VkDevice device, VkDeviceSize size,
	uint32_t typeIndex, VkDeviceMemory* memory) {
	VkExportMemoryAllocateInfo export = {0};
	export.sType = VK_STRUCTURE_TYPE_EXPORT_MEMORY_ALLOCATE_INFO;
	export.handleTypes = ST_MEMORY_HANDLE_TYPE;

	VkMemoryAllocateInfo info = {0};
	info.sType = VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_INFO;
	info.pNext = &export;
	info.allocationSize = size;
	info.memoryTypeIndex = typeIndex;
	return ((PFN_vkAllocateMemory)fn)(device, &info, NULL, memory);
}

static VkResult stAllocateImported(void* fn, VkDevice device, VkDeviceSize size,
	uint32_t typeIndex, uintptr_t handle, VkDeviceMemory* memory) {
#ifdef _WIN32
	VkImportMemoryWin32HandleInfoKHR import = {0};
	import.sType = VK_STRUCTURE_TYPE_IMPORT_MEMORY_WIN32_HANDLE_INFO_KHR;
	import.handleType = ST_MEMORY_HANDLE_TYPE;
	import.handle = (HANDLE)handle;
#else
	VkImportMemoryFdInfoKHR import = {0};
	import.sType = VK_STRUCTURE_TYPE_IMPORT_MEMORY_FD_INFO_KHR;
	import.handleType = ST_MEMORY_HANDLE_TYPE;
	import.fd = (int)handle;
#endif
	VkMemoryAllocateInfo info = {0};
	info.sType = VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_INFO;
	info.pNext = &import;
	info.allocationSize = size;
	info.memoryTypeIndex = typeIndex;
	return ((PFN_vkAllocateMemory)fn)(device, &info, NULL, memory);
}

static void stFreeMemory(void* fn, VkDevice device, VkDeviceMemory memory) {
	((PFN_vkFreeMemory)fn)(device, memory, NULL);
}

static VkResult stBindImageMemory(void* fn, VkDevice device, VkImage image, VkDeviceMemory memory) {
	return ((PFN_vkBindImageMemory)fn)(device, image, memory, 0);
}

static VkResult stCreateSemaphore(void* fn, VkDevice device, int exportable, VkSemaphore* semaphore) {
	VkExportSemaphoreCreateInfo export = {0};
	export.sType = VK_STRUCTURE_TYPE_EXPORT_SEMAPHORE_CREATE_INFO;
	export.handleTypes = ST_SEMAPHORE_HANDLE_TYPE;

	VkSemaphoreCreateInfo info = {0};
	info.sType = VK_STRUCTURE_TYPE_SEMAPHORE_CREATE_INFO;
	if (exportable) {
		info.pNext = &export;
	}
	return ((PFN_vkCreateSemaphore)fn)(device, &info, NULL, semaphore);
}

static void stDestroySemaphore(void* fn, VkDevice device, VkSemaphore semaphore) {
	((PFN_vkDestroySemaphore)fn)(device, semaphore, NULL);
}

static VkResult stExportMemory(void* fn, VkDevice device, VkDeviceMemory memory, uintptr_t* out) {
#ifdef _WIN32
	VkMemoryGetWin32HandleInfoKHR info = {0};
	info.sType = VK_STRUCTURE_TYPE_MEMORY_GET_WIN32_HANDLE_INFO_KHR;
	info.memory = memory;
	info.handleType = ST_MEMORY_HANDLE_TYPE;
	HANDLE handle = NULL;
	VkResult ret = ((PFN_vkGetMemoryWin32HandleKHR)fn)(device, &info, &handle);
	*out = (uintptr_t)handle;
#else
	VkMemoryGetFdInfoKHR info = {0};
	info.sType = VK_STRUCTURE_TYPE_MEMORY_GET_FD_INFO_KHR;
	info.memory = memory;
	info.handleType = ST_MEMORY_HANDLE_TYPE;
	int fd = -1;
	VkResult ret = ((PFN_vkGetMemoryFdKHR)fn)(device, &info, &fd);
	*out = (uintptr_t)(intptr_t)fd;
#endif
	return ret;
}

static VkResult stExportSemaphore(void* fn, VkDevice device, VkSemaphore semaphore, uintptr_t* out) {
#ifdef _WIN32
	VkSemaphoreGetWin32HandleInfoKHR info = {0};
	info.sType = VK_STRUCTURE_TYPE_SEMAPHORE_GET_WIN32_HANDLE_INFO_KHR;
	info.semaphore = semaphore;
	info.handleType = ST_SEMAPHORE_HANDLE_TYPE;
	HANDLE handle = NULL;
	VkResult ret = ((PFN_vkGetSemaphoreWin32HandleKHR)fn)(device, &info, &handle);
	*out = (uintptr_t)handle;
#else
	VkSemaphoreGetFdInfoKHR info = {0};
	info.sType = VK_STRUCTURE_TYPE_SEMAPHORE_GET_FD_INFO_KHR;
	info.semaphore = semaphore;
	info.handleType = ST_SEMAPHORE_HANDLE_TYPE;
	int fd = -1;
	VkResult ret = ((PFN_vkGetSemaphoreFdKHR)fn)(device, &info, &fd);
	*out = (uintptr_t)(intptr_t)fd;
#endif
	return ret;
}

static VkResult stImportSemaphore(void* fn, VkDevice device, VkSemaphore semaphore, uintptr_t handle) {
#ifdef _WIN32
	VkImportSemaphoreWin32HandleInfoKHR info = {0};
	info.sType = VK_STRUCTURE_TYPE_IMPORT_SEMAPHORE_WIN32_HANDLE_INFO_KHR;
	info.semaphore = semaphore;
	info.handleType = ST_SEMAPHORE_HANDLE_TYPE;
	info.handle = (HANDLE)handle;
	return ((PFN_vkImportSemaphoreWin32HandleKHR)fn)(device, &info);
#else
	VkImportSemaphoreFdInfoKHR info = {0};
	info.sType = VK_STRUCTURE_TYPE_IMPORT_SEMAPHORE_FD_INFO_KHR;
	info.semaphore = semaphore;
	info.handleType = ST_SEMAPHORE_HANDLE_TYPE;
	info.fd = (int)handle;
	return ((PFN_vkImportSemaphoreFdKHR)fn)(device, &info);
#endif
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

const (
	fnCreateImage = iota
	fnDestroyImage
	fnGetImageMemoryRequirements
	fnAllocateMemory
	fnFreeMemory
	fnBindImageMemory
	fnCreateSemaphore
	fnDestroySemaphore
	fnExportMemory
	fnExportSemaphore
	fnImportSemaphore
	fnCount
)

// Error carries the VkResult of a failed call.
type Error struct {
	Op     string
	Result int32
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: VkResult %d", e.Op, e.Result)
}

func check(op string, ret C.VkResult) error {
	if ret != C.VK_SUCCESS {
		return &Error{Op: op, Result: int32(ret)}
	}
	return nil
}

// Table holds the resolved entry points for one device.
type Table struct {
	device C.VkDevice
	fns    [fnCount]unsafe.Pointer
}

// Load resolves every entry point in entryPoints for device through the given
// vkGetInstanceProcAddr. It fails on the first missing one and then returns
// no table.
func Load(getInstanceProcAddr, instance, device unsafe.Pointer) (*Table, error) {
	if getInstanceProcAddr == nil {
		return nil, fmt.Errorf("vkGetInstanceProcAddr is nil")
	}
	cname := C.CString("vkGetDeviceProcAddr")
	gdpa := C.stInstanceProc(getInstanceProcAddr, C.VkInstance(instance), cname)
	C.free(unsafe.Pointer(cname))
	if gdpa == nil {
		return nil, fmt.Errorf("missing entry point vkGetDeviceProcAddr")
	}

	t := &Table{device: C.VkDevice(device)}
	for i, name := range entryPoints {
		cname := C.CString(name)
		fn := C.stDeviceProc(gdpa, t.device, cname)
		C.free(unsafe.Pointer(cname))
		if fn == nil {
			return nil, fmt.Errorf("missing entry point %s", name)
		}
		t.fns[i] = fn
	}
	return t, nil
}

// Unload forgets every resolved entry point. Safe on a nil or unloaded table.
func (t *Table) Unload() {
	if t == nil {
		return
	}
	for i := range t.fns {
		t.fns[i] = nil
	}
	t.device = nil
}

func (t *Table) Loaded() bool {
	return t != nil && t.fns[fnCreateImage] != nil
}

func (t *Table) fn(i int) unsafe.Pointer {
	if !t.Loaded() {
		panic("vkext: table not loaded")
	}
	return t.fns[i]
}

// CreateExternalImage creates a 2D optimal-tiling image whose memory may be
// exported or imported as an OS handle.
func (t *Table) CreateExternalImage(format, usage, width, height uint32) (unsafe.Pointer, error) {
	var image C.VkImage
	ret := C.stCreateExternalImage(t.fn(fnCreateImage), t.device, C.VkFormat(format),
		C.VkImageUsageFlags(usage), C.uint32_t(width), C.uint32_t(height), &image)
	return unsafe.Pointer(image), check("vkCreateImage", ret)
}

func (t *Table) DestroyImage(image unsafe.Pointer) {
	C.stDestroyImage(t.fn(fnDestroyImage), t.device, C.VkImage(image))
}

func (t *Table) ImageMemoryRequirements(image unsafe.Pointer) (size uint64, typeBits uint32) {
	var csize C.VkDeviceSize
	var bits C.uint32_t
	C.stImageMemoryRequirements(t.fn(fnGetImageMemoryRequirements), t.device, C.VkImage(image), &csize, &bits)
	return uint64(csize), uint32(bits)
}

func (t *Table) AllocateExportable(size uint64, typeIndex uint32) (unsafe.Pointer, error) {
	var memory C.VkDeviceMemory
	ret := C.stAllocateExportable(t.fn(fnAllocateMemory), t.device, C.VkDeviceSize(size), C.uint32_t(typeIndex), &memory)
	return unsafe.Pointer(memory), check("vkAllocateMemory(export)", ret)
}

// AllocateImported imports handle as device memory. See ImportTakesOwnership.
func (t *Table) AllocateImported(size uint64, typeIndex uint32, handle uintptr) (unsafe.Pointer, error) {
	var memory C.VkDeviceMemory
	ret := C.stAllocateImported(t.fn(fnAllocateMemory), t.device, C.VkDeviceSize(size), C.uint32_t(typeIndex),
		C.uintptr_t(handle), &memory)
	return unsafe.Pointer(memory), check("vkAllocateMemory(import)", ret)
}

func (t *Table) FreeMemory(memory unsafe.Pointer) {
	C.stFreeMemory(t.fn(fnFreeMemory), t.device, C.VkDeviceMemory(memory))
}

func (t *Table) BindImageMemory(image, memory unsafe.Pointer) error {
	ret := C.stBindImageMemory(t.fn(fnBindImageMemory), t.device, C.VkImage(image), C.VkDeviceMemory(memory))
	return check("vkBindImageMemory", ret)
}

func (t *Table) CreateSemaphore(exportable bool) (unsafe.Pointer, error) {
	var semaphore C.VkSemaphore
	var flag C.int
	if exportable {
		flag = 1
	}
	ret := C.stCreateSemaphore(t.fn(fnCreateSemaphore), t.device, flag, &semaphore)
	return unsafe.Pointer(semaphore), check("vkCreateSemaphore", ret)
}

func (t *Table) DestroySemaphore(semaphore unsafe.Pointer) {
	C.stDestroySemaphore(t.fn(fnDestroySemaphore), t.device, C.VkSemaphore(semaphore))
}

func (t *Table) ExportMemory(memory unsafe.Pointer) (uintptr, error) {
	var out C.uintptr_t
	ret := C.stExportMemory(t.fn(fnExportMemory), t.device, C.VkDeviceMemory(memory), &out)
	return uintptr(out), check("export memory handle", ret)
}

func (t *Table) ExportSemaphore(semaphore unsafe.Pointer) (uintptr, error) {
	var out C.uintptr_t
	ret := C.stExportSemaphore(t.fn(fnExportSemaphore), t.device, C.VkSemaphore(semaphore), &out)
	return uintptr(out), check("export semaphore handle", ret)
}

// ImportSemaphore replaces the payload of semaphore with the one behind handle.
func (t *Table) ImportSemaphore(semaphore unsafe.Pointer, handle uintptr) error {
	ret := C.stImportSemaphore(t.fn(fnImportSemaphore), t.device, C.VkSemaphore(semaphore), C.uintptr_t(handle))
	return check("import semaphore handle", ret)
}
