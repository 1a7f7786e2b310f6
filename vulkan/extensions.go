package vulkan

import (
	"github.com/andewx/dieselshare/internal/vkext"
	vk "github.com/vulkan-go/vulkan"
)

// InstanceExtensions lists the instance extensions the loader offers.
func InstanceExtensions() ([]string, error) {
	return enumerateExtensions(func(count *uint32, list []vk.ExtensionProperties) vk.Result {
		return vk.EnumerateInstanceExtensionProperties("", count, list)
	})
}

// DeviceExtensions lists the extensions gpu offers.
func DeviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	return enumerateExtensions(func(count *uint32, list []vk.ExtensionProperties) vk.Result {
		return vk.EnumerateDeviceExtensionProperties(gpu, "", count, list)
	})
}

// enumerateExtensions runs the usual count-then-fill query.
func enumerateExtensions(query func(*uint32, []vk.ExtensionProperties) vk.Result) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(NewError(query(&count, nil)))
	list := make([]vk.ExtensionProperties, count)
	orPanic(NewError(query(&count, list)))
	names = make([]string, 0, count)
	for _, ext := range list[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// ValidationLayers lists the instance layers installed on the platform.
func ValidationLayers() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	orPanic(NewError(vk.EnumerateInstanceLayerProperties(&count, nil)))
	list := make([]vk.LayerProperties, count)
	orPanic(NewError(vk.EnumerateInstanceLayerProperties(&count, list)))
	names = make([]string, 0, count)
	for _, layer := range list[:count] {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// AugmentInstanceExtensions returns names plus every instance extension the
// shared surface import needs. Names already present are not repeated and the
// input slice is not modified.
func AugmentInstanceExtensions(names []string) []string {
	return mergeNames(names, vkext.InstanceExtensions)
}

// AugmentDeviceExtensions is AugmentInstanceExtensions for device extensions.
func AugmentDeviceExtensions(names []string) []string {
	return mergeNames(names, vkext.DeviceExtensions)
}

func mergeNames(names, extra []string) []string {
	out := make([]string, 0, len(names)+len(extra))
	seen := make(map[string]struct{}, len(names)+len(extra))
	for _, list := range [][]string{names, extra} {
		for _, name := range list {
			key := trimNull(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
