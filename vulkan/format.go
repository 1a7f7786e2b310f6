package vulkan

import (
	"fmt"

	ds "github.com/andewx/dieselshare"
	vk "github.com/vulkan-go/vulkan"
)

// imageFormat is how a shared surface format is created on the Vulkan side.
type imageFormat struct {
	format vk.Format
	usage  vk.ImageUsageFlags
	aspect vk.ImageAspectFlags
}

func formatInfo(f ds.Format) (imageFormat, error) {
	base := vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit
	switch f {
	case ds.FormatRGBA8:
		return imageFormat{
			format: vk.FormatR8g8b8a8Unorm,
			usage:  vk.ImageUsageFlags(base | vk.ImageUsageColorAttachmentBit),
			aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		}, nil
	case ds.FormatDepth32:
		return imageFormat{
			format: vk.FormatD32Sfloat,
			usage:  vk.ImageUsageFlags(base | vk.ImageUsageDepthStencilAttachmentBit),
			aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		}, nil
	}
	return imageFormat{}, fmt.Errorf("%w: %s", ds.ErrBadFormat, f)
}
