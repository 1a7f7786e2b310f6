package vulkan

import (
	"github.com/andewx/dieselshare/adapter"
	vk "github.com/vulkan-go/vulkan"
)

// physicalAdapter answers the selector's questions about one physical device.
// Everything is queried once when the adapter is built.
type physicalAdapter struct {
	gpu        vk.PhysicalDevice
	name       string
	families   []adapter.QueueFamily
	present    []bool
	extensions []string
	formats    int
	modes      int
	anisotropy bool
	depth32f   bool
	memory     []adapter.MemoryFlags
}

// Adapters wraps every physical device of instance. Surface support is only
// queried when surface is not vk.NullSurface.
func Adapters(instance vk.Instance, surface vk.Surface) (list []adapter.Adapter, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumeratePhysicalDevices(instance, &count, nil)
	orPanic(NewError(ret))
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(instance, &count, gpus)
	orPanic(NewError(ret))

	for _, gpu := range gpus[:count] {
		a, err := newPhysicalAdapter(gpu, surface)
		orPanic(err)
		list = append(list, a)
	}
	return list, nil
}

func newPhysicalAdapter(gpu vk.PhysicalDevice, surface vk.Surface) (*physicalAdapter, error) {
	a := &physicalAdapter{gpu: gpu}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	a.name = vk.ToString(props.DeviceName[:])

	var queueCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &queueCount, nil)
	queues := make([]vk.QueueFamilyProperties, queueCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &queueCount, queues)
	a.families = make([]adapter.QueueFamily, queueCount)
	a.present = make([]bool, queueCount)
	for i := range queues {
		queues[i].Deref()
		a.families[i] = adapter.QueueFamily{
			Flags: adapter.QueueFlags(queues[i].QueueFlags),
			Count: queues[i].QueueCount,
		}
		if surface != vk.NullSurface {
			var supported vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(gpu, uint32(i), surface, &supported)
			a.present[i] = supported.B()
		}
	}

	extensions, err := DeviceExtensions(gpu)
	if err != nil {
		return nil, err
	}
	a.extensions = extensions

	if surface != vk.NullSurface {
		var formatCount, modeCount uint32
		vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &formatCount, nil)
		vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &modeCount, nil)
		a.formats = int(formatCount)
		a.modes = int(modeCount)
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(gpu, &features)
	features.Deref()
	a.anisotropy = features.SamplerAnisotropy.B()

	var depth vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(gpu, vk.FormatD32Sfloat, &depth)
	depth.Deref()
	a.depth32f = depth.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0

	a.memory = memoryTypes(gpu)
	return a, nil
}

func memoryTypes(gpu vk.PhysicalDevice) []adapter.MemoryFlags {
	var mem vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &mem)
	mem.Deref()
	types := make([]adapter.MemoryFlags, mem.MemoryTypeCount)
	for i := range types {
		mem.MemoryTypes[i].Deref()
		types[i] = adapter.MemoryFlags(mem.MemoryTypes[i].PropertyFlags)
	}
	return types
}

func (a *physicalAdapter) Name() string                         { return a.name }
func (a *physicalAdapter) QueueFamilies() []adapter.QueueFamily { return a.families }
func (a *physicalAdapter) Extensions() []string                 { return a.extensions }
func (a *physicalAdapter) SurfaceFormatCount() int              { return a.formats }
func (a *physicalAdapter) PresentModeCount() int                { return a.modes }
func (a *physicalAdapter) SamplerAnisotropy() bool              { return a.anisotropy }
func (a *physicalAdapter) DepthAttachment32F() bool             { return a.depth32f }
func (a *physicalAdapter) MemoryTypes() []adapter.MemoryFlags   { return a.memory }

func (a *physicalAdapter) SupportsPresent(family int) bool {
	return family >= 0 && family < len(a.present) && a.present[family]
}
