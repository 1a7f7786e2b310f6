package vkext

var entryPoints = [fnCount]string{
	fnCreateImage:                "vkCreateImage",
	fnDestroyImage:               "vkDestroyImage",
	fnGetImageMemoryRequirements: "vkGetImageMemoryRequirements",
	fnAllocateMemory:             "vkAllocateMemory",
	fnFreeMemory:                 "vkFreeMemory",
	fnBindImageMemory:            "vkBindImageMemory",
	fnCreateSemaphore:            "vkCreateSemaphore",
	fnDestroySemaphore:           "vkDestroySemaphore",
	fnExportMemory:               "vkGetMemoryWin32HandleKHR",
	fnExportSemaphore:            "vkGetSemaphoreWin32HandleKHR",
	fnImportSemaphore:            "vkImportSemaphoreWin32HandleKHR",
}

// ImportTakesOwnership is true when a successful import consumes the handle.
// Win32 handles stay owned by the caller.
const ImportTakesOwnership = false

var InstanceExtensions = []string{
	"VK_KHR_get_physical_device_properties2",
	"VK_KHR_external_memory_capabilities",
	"VK_KHR_external_semaphore_capabilities",
}

var DeviceExtensions = []string{
	"VK_KHR_external_memory",
	"VK_KHR_external_semaphore",
	"VK_KHR_external_memory_win32",
	"VK_KHR_external_semaphore_win32",
}
