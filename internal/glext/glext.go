// Package glext resolves and calls the GL entry points of EXT_memory_object
// and EXT_semaphore, plus the direct state access texture calls the import
// needs. Each Table belongs to the GL context that was current when it was
// loaded.
package glext

/*
#include <stdint.h>
#include <stdlib.h>

#if defined(_WIN32) && !defined(_WIN64)
#define ST_APIENTRY __stdcall
#else
#define ST_APIENTRY
#endif

typedef unsigned int GLenum;
typedef unsigned int GLuint;
typedef int GLint;
typedef int GLsizei;
typedef uint64_t GLuint64;

#define ST_TEXTURE_2D 0x0DE1
#define ST_TEXTURE_TILING_EXT 0x9580
#define ST_OPTIMAL_TILING_EXT 0x9584
#ifdef _WIN32
#define ST_HANDLE_TYPE 0x9587
#else
#define ST_HANDLE_TYPE 0x9586
#endif

typedef void (ST_APIENTRY *stGenNames)(GLsizei n, GLuint* names);
typedef void (ST_APIENTRY *stDeleteNames)(GLsizei n, const GLuint* names);
typedef void (ST_APIENTRY *stCreateTextures)(GLenum target, GLsizei n, GLuint* textures);
typedef void (ST_APIENTRY *stTextureParameteri)(GLuint texture, GLenum pname, GLint param);
typedef void (ST_APIENTRY *stTextureStorageMem2D)(GLuint texture, GLsizei levels, GLenum format,
	GLsizei width, GLsizei height, GLuint memory, GLuint64 offset);
typedef void (ST_APIENTRY *stSemaphoreOp)(GLuint semaphore, GLuint numBuffers, const GLuint* buffers,
	GLuint numTextures, const GLuint* textures, const GLenum* layouts);
#ifdef _WIN32
typedef void (ST_APIENTRY *stImportMemory)(GLuint memory, GLuint64 size, GLenum handleType, void* handle);
typedef void (ST_APIENTRY *stImportSemaphore)(GLuint semaphore, GLenum handleType, void* handle);
#else
typedef void (ST_APIENTRY *stImportMemory)(GLuint memory, GLuint64 size, GLenum handleType, GLint fd);
typedef void (ST_APIENTRY *stImportSemaphore)(GLuint semaphore, GLenum handleType, GLint fd);
#endif

static GLuint stGenName(void* fn) {
	GLuint name = 0;
	((stGenNames)fn)(1, &name);
	return name;
}

static void stDeleteName(void* fn, GLuint name) {
	((stDeleteNames)fn)(1, &name);
}

static GLuint stCreateTexture2D(void* fn) {
	GLuint texture = 0;
	((stCreateTextures)fn)(ST_TEXTURE_2D, 1, &texture);
	return texture;
}

static void stTextureStorage(void* param, void* storage, GLuint texture, GLenum format,
	GLsizei width, GLsizei height, GLuint memory) {
	((stTextureParameteri)param)(texture, ST_TEXTURE_TILING_EXT, ST_OPTIMAL_TILING_EXT);
	((stTextureStorageMem2D)storage)(texture, 1, format, width, height, memory, 0);
}

static void stImportMemoryHandle(void* fn, GLuint memory, GLuint64 size, uintptr_t handle) {
#ifdef _WIN32
	((stImportMemory)fn)(memory, size, ST_HANDLE_TYPE, (void*)handle);
#else
	((stImportMemory)fn)(memory, size, ST_HANDLE_TYPE, (GLint)handle);
#endif
}

static void stImportSemaphoreHandle(void* fn, GLuint semaphore, uintptr_t handle) {
#ifdef _WIN32
	((stImportSemaphore)fn)(semaphore, ST_HANDLE_TYPE, (void*)handle);
#else
	((stImportSemaphore)fn)(semaphore, ST_HANDLE_TYPE, (GLint)handle);
#endif
}

static void stSemaphoreTexture(void* fn, GLuint semaphore, GLuint texture, GLenum layout) {
	((stSemaphoreOp)fn)(semaphore, 0, NULL, 1, &texture, &layout);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// ProcAddrFunc resolves a GL entry point in the current context, as
// glfw.GetProcAddress does.
type ProcAddrFunc func(name string) unsafe.Pointer

// Semaphore layouts from EXT_semaphore.
const (
	LayoutGeneral         uint32 = 0x958D
	LayoutColorAttachment uint32 = 0x958E
	LayoutShaderReadOnly  uint32 = 0x9591
	LayoutTransferSrc     uint32 = 0x9592
	LayoutTransferDst     uint32 = 0x9593
)

const (
	fnCreateMemoryObjects = iota
	fnDeleteMemoryObjects
	fnImportMemory
	fnCreateTextures
	fnTextureParameteri
	fnTextureStorageMem2D
	fnGenSemaphores
	fnDeleteSemaphores
	fnImportSemaphore
	fnWaitSemaphore
	fnSignalSemaphore
	fnCount
)

// Table holds the resolved entry points for one GL context.
type Table struct {
	fns [fnCount]unsafe.Pointer
}

// Load resolves every entry point in entryPoints. It fails on the first
// missing one and then returns no table. The context the table is meant for
// must be current.
func Load(getProcAddr ProcAddrFunc) (*Table, error) {
	if getProcAddr == nil {
		return nil, fmt.Errorf("GL proc address function is nil")
	}
	t := &Table{}
	for i, name := range entryPoints {
		fn := getProcAddr(name)
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
}

func (t *Table) Loaded() bool {
	return t != nil && t.fns[fnCreateMemoryObjects] != nil
}

func (t *Table) fn(i int) unsafe.Pointer {
	if !t.Loaded() {
		panic("glext: table not loaded")
	}
	return t.fns[i]
}

func (t *Table) CreateMemoryObject() uint32 {
	return uint32(C.stGenName(t.fn(fnCreateMemoryObjects)))
}

func (t *Table) DeleteMemoryObject(memory uint32) {
	C.stDeleteName(t.fn(fnDeleteMemoryObjects), C.GLuint(memory))
}

// ImportMemory imports handle as the storage of memory. See
// ImportTakesOwnership.
func (t *Table) ImportMemory(memory uint32, size uint64, handle uintptr) {
	C.stImportMemoryHandle(t.fn(fnImportMemory), C.GLuint(memory), C.GLuint64(size), C.uintptr_t(handle))
}

func (t *Table) CreateTexture2D() uint32 {
	return uint32(C.stCreateTexture2D(t.fn(fnCreateTextures)))
}

// TextureStorage gives texture a single level of optimal-tiling storage at
// offset zero of memory.
func (t *Table) TextureStorage(texture, internalFormat uint32, width, height int32, memory uint32) {
	C.stTextureStorage(t.fn(fnTextureParameteri), t.fn(fnTextureStorageMem2D), C.GLuint(texture),
		C.GLenum(internalFormat), C.GLsizei(width), C.GLsizei(height), C.GLuint(memory))
}

func (t *Table) GenSemaphore() uint32 {
	return uint32(C.stGenName(t.fn(fnGenSemaphores)))
}

func (t *Table) DeleteSemaphore(semaphore uint32) {
	C.stDeleteName(t.fn(fnDeleteSemaphores), C.GLuint(semaphore))
}

func (t *Table) ImportSemaphore(semaphore uint32, handle uintptr) {
	C.stImportSemaphoreHandle(t.fn(fnImportSemaphore), C.GLuint(semaphore), C.uintptr_t(handle))
}

// WaitSemaphore makes later GL commands wait for semaphore, with texture
// in layout.
func (t *Table) WaitSemaphore(semaphore, texture, layout uint32) {
	C.stSemaphoreTexture(t.fn(fnWaitSemaphore), C.GLuint(semaphore), C.GLuint(texture), C.GLenum(layout))
}

// SignalSemaphore signals semaphore once earlier GL commands complete,
// leaving texture in layout.
func (t *Table) SignalSemaphore(semaphore, texture, layout uint32) {
	C.stSemaphoreTexture(t.fn(fnSignalSemaphore), C.GLuint(semaphore), C.GLuint(texture), C.GLenum(layout))
}
