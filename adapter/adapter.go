// Package adapter picks a physical device and its queue families and memory
// types from what the driver reports. It only sees the Adapter interface so the
// selection rules can run against real devices or test fixtures alike.
package adapter

// Queue capability bits, numerically equal to VkQueueFlagBits.
type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

// Memory property bits, numerically equal to VkMemoryPropertyFlagBits.
type MemoryFlags uint32

const (
	MemoryDeviceLocal  MemoryFlags = 0x1
	MemoryHostVisible  MemoryFlags = 0x2
	MemoryHostCoherent MemoryFlags = 0x4
	MemoryHostCached   MemoryFlags = 0x8
)

type QueueFamily struct {
	Flags QueueFlags
	Count uint32
}

// Adapter is what the selector needs to know about one physical device.
// Surface related methods are only consulted when selecting for presentation.
type Adapter interface {
	Name() string
	QueueFamilies() []QueueFamily
	SupportsPresent(family int) bool
	Extensions() []string
	SurfaceFormatCount() int
	PresentModeCount() int
	SamplerAnisotropy() bool
	// DepthAttachment32F reports whether a 32 bit float depth format can be
	// used as a depth-stencil attachment with optimal tiling.
	DepthAttachment32F() bool
	MemoryTypes() []MemoryFlags
}
