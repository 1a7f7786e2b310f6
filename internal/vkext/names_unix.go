//go:build unix

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
	fnExportMemory:               "vkGetMemoryFdKHR",
	fnExportSemaphore:            "vkGetSemaphoreFdKHR",
	fnImportSemaphore:            "vkImportSemaphoreFdKHR",
}

// ImportTakesOwnership is true when a successful import consumes the handle.
// File descriptors are consumed; callers import a duplicate.
const ImportTakesOwnership = true

var InstanceExtensions = []string{
	"VK_KHR_get_physical_device_properties2",
	"VK_KHR_external_memory_capabilities",
	"VK_KHR_external_semaphore_capabilities",
}

var DeviceExtensions = []string{
	"VK_KHR_external_memory",
	"VK_KHR_external_semaphore",
	"VK_KHR_external_memory_fd",
	"VK_KHR_external_semaphore_fd",
}
