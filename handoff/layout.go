// Package handoff describes the per-frame discipline that passes exclusive
// access to a shared image between a producer and a consumer. The values here
// use Vulkan's numeric encodings so API packages can record them directly.
package handoff

import "fmt"

// Layout is an image layout, numerically equal to VkImageLayout.
type Layout uint32

const (
	LayoutUndefined       Layout = 0
	LayoutGeneral         Layout = 1
	LayoutColorAttachment Layout = 2
	LayoutShaderReadOnly  Layout = 5
	LayoutTransferSrc     Layout = 6
	LayoutTransferDst     Layout = 7
	LayoutPresentSrc      Layout = 1000001002
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutGeneral:
		return "general"
	case LayoutColorAttachment:
		return "color-attachment"
	case LayoutShaderReadOnly:
		return "shader-read-only"
	case LayoutTransferSrc:
		return "transfer-src"
	case LayoutTransferDst:
		return "transfer-dst"
	case LayoutPresentSrc:
		return "present-src"
	}
	return fmt.Sprintf("layout(%d)", uint32(l))
}

// Stage is a pipeline stage mask, numerically equal to VkPipelineStageFlagBits.
type Stage uint32

const (
	StageTopOfPipe             Stage = 0x1
	StageFragmentShader        Stage = 0x80
	StageColorAttachmentOutput Stage = 0x400
	StageTransfer              Stage = 0x1000
	StageBottomOfPipe          Stage = 0x2000
)

// Access is a memory access mask, numerically equal to VkAccessFlagBits.
type Access uint32

const (
	AccessNone                 Access = 0
	AccessShaderRead           Access = 0x20
	AccessColorAttachmentWrite Access = 0x100
	AccessTransferRead         Access = 0x800
	AccessTransferWrite        Access = 0x1000
	AccessMemoryRead           Access = 0x8000
)

// SharedState is the GPU visible state of the shared image within a turn.
type SharedState int

const (
	Uninitialized SharedState = iota
	TransferSource
	Shared
)

func (s SharedState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case TransferSource:
		return "transfer-source"
	case Shared:
		return "shared"
	}
	return "invalid"
}

// StateOf classifies a layout of the shared image.
func StateOf(l Layout) SharedState {
	switch l {
	case LayoutUndefined:
		return Uninitialized
	case LayoutTransferSrc, LayoutTransferDst, LayoutColorAttachment:
		return TransferSource
	default:
		return Shared
	}
}
