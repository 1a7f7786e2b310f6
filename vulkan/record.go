package vulkan

import (
	ds "github.com/andewx/dieselshare"
	"github.com/andewx/dieselshare/handoff"
	vk "github.com/vulkan-go/vulkan"
)

// imageBarrier turns a planned transition into a barrier on image.
func imageBarrier(b handoff.Barrier, image vk.Image, aspect vk.ImageAspectFlags) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
		DstAccessMask:       vk.AccessFlags(b.DstAccess),
		OldLayout:           vk.ImageLayout(b.OldLayout),
		NewLayout:           vk.ImageLayout(b.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
}

// cmdBarriers records each barrier with its own stage pair. images maps a
// role to the image it applies to.
func cmdBarriers(cmd vk.CommandBuffer, barriers []handoff.Barrier, images map[handoff.Role]vk.Image) {
	for _, b := range barriers {
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(b.SrcStage),
			vk.PipelineStageFlags(b.DstStage),
			0, 0, nil, 0, nil, 1,
			[]vk.ImageMemoryBarrier{imageBarrier(b, images[b.Role], vk.ImageAspectFlags(vk.ImageAspectColorBit))})
	}
}

func imageBlit(b handoff.Blit) vk.ImageBlit {
	layers := vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LayerCount: 1,
	}
	return vk.ImageBlit{
		SrcSubresource: layers,
		SrcOffsets:     [2]vk.Offset3D{offset(b.Src[0]), offset(b.Src[1])},
		DstSubresource: layers,
		DstOffsets:     [2]vk.Offset3D{offset(b.Dst[0]), offset(b.Dst[1])},
	}
}

func offset(o handoff.Offset) vk.Offset3D {
	return vk.Offset3D{X: o.X, Y: o.Y, Z: o.Z}
}

// AugmentSubmit returns copies of infos where every batch also waits on and
// signals each of the shared semaphores, waiting at the fragment shader
// stage. A host uses it to take its turn on surfaces it renders into. The
// input batches are not modified.
func AugmentSubmit(infos []vk.SubmitInfo, semaphores []vk.Semaphore) []vk.SubmitInfo {
	out := make([]vk.SubmitInfo, len(infos))
	for i, info := range infos {
		waits := append(prefix(info.PWaitSemaphores, info.WaitSemaphoreCount), semaphores...)
		stages := prefix(info.PWaitDstStageMask, uint32(len(waits)-len(semaphores)))
		for range semaphores {
			stages = append(stages, vk.PipelineStageFlags(handoff.StageFragmentShader))
		}
		signals := append(prefix(info.PSignalSemaphores, info.SignalSemaphoreCount), semaphores...)

		info.WaitSemaphoreCount = uint32(len(waits))
		info.PWaitSemaphores = waits
		info.PWaitDstStageMask = stages
		info.SignalSemaphoreCount = uint32(len(signals))
		info.PSignalSemaphores = signals
		out[i] = info
	}
	return out
}

// prefix copies the first n elements of list, or all of them if there are fewer.
func prefix[T any](list []T, n uint32) []T {
	if int(n) > len(list) {
		n = uint32(len(list))
	}
	return append([]T{}, list[:n]...)
}

// SharedSemaphores collects the semaphores of the Vulkan resources among
// resources, in order, for AugmentSubmit.
func SharedSemaphores(resources []ds.Resource) []vk.Semaphore {
	var out []vk.Semaphore
	for _, res := range resources {
		if r, ok := res.(*Resource); ok && r != nil && !r.released {
			out = append(out, r.Semaphore)
		}
	}
	return out
}
