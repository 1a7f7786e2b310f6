//go:build windows

package glext

var entryPoints = [fnCount]string{
	fnCreateMemoryObjects: "glCreateMemoryObjectsEXT",
	fnDeleteMemoryObjects: "glDeleteMemoryObjectsEXT",
	fnImportMemory:        "glImportMemoryWin32HandleEXT",
	fnCreateTextures:      "glCreateTextures",
	fnTextureParameteri:   "glTextureParameteri",
	fnTextureStorageMem2D: "glTextureStorageMem2DEXT",
	fnGenSemaphores:       "glGenSemaphoresEXT",
	fnDeleteSemaphores:    "glDeleteSemaphoresEXT",
	fnImportSemaphore:     "glImportSemaphoreWin32HandleEXT",
	fnWaitSemaphore:       "glWaitSemaphoreEXT",
	fnSignalSemaphore:     "glSignalSemaphoreEXT",
}

// ImportTakesOwnership is true when a successful import consumes the handle.
// Win32 handle imports leave the handle with the caller.
const ImportTakesOwnership = false

// Extensions lists the GL extensions the table needs.
var Extensions = []string{
	"GL_EXT_memory_object",
	"GL_EXT_memory_object_win32",
	"GL_EXT_semaphore",
	"GL_EXT_semaphore_win32",
}
