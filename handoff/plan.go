package handoff

import "fmt"

// Role names which image a barrier applies to.
type Role int

const (
	RoleShared Role = iota
	RoleTarget
)

func (r Role) String() string {
	if r == RoleShared {
		return "shared"
	}
	return "target"
}

// Barrier is a single image layout transition, always over the color
// aspect, one mip level and one array layer.
type Barrier struct {
	Role      Role
	OldLayout Layout
	NewLayout Layout
	SrcAccess Access
	DstAccess Access
	SrcStage  Stage
	DstStage  Stage
}

// ConsumerPlan is what a consumer records each frame to copy the shared
// image into a presentable target.
type ConsumerPlan struct {
	Before []Barrier
	Blit   Blit
	After  []Barrier
	// The shared semaphore is waited and signaled at these stages.
	WaitStage   Stage
	SignalStage Stage
}

// NewConsumerPlan builds the copy-out plan. The shared image's previous
// layout is assumed undefined every frame, so a missed or skipped turn
// cannot leave the plan out of step with the image. Every first barrier
// starts at the semaphore wait stage so its transition is ordered after
// the wait.
func NewConsumerPlan(src, dst Extent, flipY bool) ConsumerPlan {
	return ConsumerPlan{
		Before: []Barrier{
			{
				Role:      RoleShared,
				OldLayout: LayoutUndefined,
				NewLayout: LayoutTransferSrc,
				SrcAccess: AccessNone,
				DstAccess: AccessTransferRead,
				SrcStage:  StageTransfer,
				DstStage:  StageTransfer,
			},
			{
				Role:      RoleTarget,
				OldLayout: LayoutUndefined,
				NewLayout: LayoutTransferDst,
				SrcAccess: AccessNone,
				DstAccess: AccessTransferWrite,
				SrcStage:  StageTransfer,
				DstStage:  StageTransfer,
			},
		},
		Blit: BlitRegion(src, dst, flipY),
		After: []Barrier{
			{
				Role:      RoleShared,
				OldLayout: LayoutTransferSrc,
				NewLayout: LayoutGeneral,
				SrcAccess: AccessTransferRead,
				DstAccess: AccessNone,
				SrcStage:  StageTransfer,
				DstStage:  StageBottomOfPipe,
			},
			{
				Role:      RoleTarget,
				OldLayout: LayoutTransferDst,
				NewLayout: LayoutPresentSrc,
				SrcAccess: AccessTransferWrite,
				DstAccess: AccessMemoryRead,
				SrcStage:  StageTransfer,
				DstStage:  StageBottomOfPipe,
			},
		},
		WaitStage:   StageTransfer,
		SignalStage: StageTransfer,
	}
}

// ProducerPlan is what a Vulkan producer records around its render pass.
type ProducerPlan struct {
	Before []Barrier
	// FinalLayout is the layout the render pass leaves the shared image in.
	FinalLayout Layout
	WaitStage   Stage
}

func NewProducerPlan() ProducerPlan {
	return ProducerPlan{
		Before: []Barrier{{
			Role:      RoleShared,
			OldLayout: LayoutUndefined,
			NewLayout: LayoutColorAttachment,
			SrcAccess: AccessNone,
			DstAccess: AccessColorAttachmentWrite,
			SrcStage:  StageColorAttachmentOutput,
			DstStage:  StageColorAttachmentOutput,
		}},
		FinalLayout: LayoutGeneral,
		WaitStage:   StageColorAttachmentOutput,
	}
}

// Replay walks the barriers for one role in order and returns the states the
// image passes through. Each barrier must start from the layout the previous
// one left, except the first which starts from undefined.
func Replay(role Role, barriers ...[]Barrier) ([]SharedState, error) {
	states := []SharedState{Uninitialized}
	current := LayoutUndefined
	first := true
	for _, group := range barriers {
		for _, b := range group {
			if b.Role != role {
				continue
			}
			if !first && b.OldLayout != current {
				return states, fmt.Errorf("%s image: barrier from %s but image is %s", role, b.OldLayout, current)
			}
			if first && b.OldLayout != LayoutUndefined {
				return states, fmt.Errorf("%s image: first barrier must start undefined, got %s", role, b.OldLayout)
			}
			first = false
			current = b.NewLayout
			states = append(states, StateOf(current))
		}
	}
	return states, nil
}
