//go:build unix

package glext

var entryPoints = [fnCount]string{
	fnCreateMemoryObjects: "glCreateMemoryObjectsEXT",
	fnDeleteMemoryObjects: "glDeleteMemoryObjectsEXT",
	fnImportMemory:        "glImportMemoryFdEXT",
	fnCreateTextures:      "glCreateTextures",
	fnTextureParameteri:   "glTextureParameteri",
	fnTextureStorageMem2D: "glTextureStorageMem2DEXT",
	fnGenSemaphores:       "glGenSemaphoresEXT",
	fnDeleteSemaphores:    "glDeleteSemaphoresEXT",
	fnImportSemaphore:     "glImportSemaphoreFdEXT",
	fnWaitSemaphore:       "glWaitSemaphoreEXT",
	fnSignalSemaphore:     "glSignalSemaphoreEXT",
}

// ImportTakesOwnership is true when a successful import consumes the handle.
// The GL owns an imported file descriptor.
const ImportTakesOwnership = true

// Extensions lists the GL extensions the table needs.
var Extensions = []string{
	"GL_EXT_memory_object",
	"GL_EXT_memory_object_fd",
	"GL_EXT_semaphore",
	"GL_EXT_semaphore_fd",
}
