package vulkan

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// pushConstants is the vertex stage input of the triangle pipeline.
type pushConstants struct {
	Time   float32
	Aspect float32
}

const pushConstantsSize = uint32(unsafe.Sizeof(pushConstants{}))

// PipelineBuilder assembles the fixed function state of a vertex-less
// pipeline drawing into one color attachment.
type PipelineBuilder struct {
	shaderStages         []vk.PipelineShaderStageCreateInfo
	vertexInputInfo      vk.PipelineVertexInputStateCreateInfo
	inputAssembly        vk.PipelineInputAssemblyStateCreateInfo
	rasterizer           vk.PipelineRasterizationStateCreateInfo
	colorBlendAttachment vk.PipelineColorBlendAttachmentState
	multisampling        vk.PipelineMultisampleStateCreateInfo
}

func NewPipelineBuilder(vertex, fragment vk.ShaderModule) *PipelineBuilder {
	pb := &PipelineBuilder{}

	pb.shaderStages = []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertex,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragment,
			PName:  safeString("main"),
		},
	}

	// Vertices come from the shader.
	pb.vertexInputInfo = vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	pb.inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	pb.rasterizer = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	pb.multisampling = vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}
	pb.colorBlendAttachment = vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable: vk.False,
	}
	return pb
}

// NewPipelineLayout creates a layout with no descriptor sets and the
// triangle's push constant range.
func NewPipelineLayout(device vk.Device) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Offset:     0,
			Size:       pushConstantsSize,
		}},
	}, nil, &layout)
	if isError(ret) {
		return vk.NullPipelineLayout, NewError(ret)
	}
	return layout, nil
}

// Build creates the pipeline for a fixed extent.
func (p *PipelineBuilder) Build(device vk.Device, renderPass vk.RenderPass, layout vk.PipelineLayout, extent vk.Extent2D) (vk.Pipeline, error) {
	viewports := []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}}
	scissors := []vk.Rect2D{{Offset: vk.Offset2D{}, Extent: extent}}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    viewports,
		ScissorCount:  1,
		PScissors:     scissors,
	}

	// No blending, the attachment is overwritten.
	blendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{p.colorBlendAttachment},
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(p.shaderStages)),
		PStages:             p.shaderStages,
		PVertexInputState:   &p.vertexInputInfo,
		PInputAssemblyState: &p.inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &p.rasterizer,
		PMultisampleState:   &p.multisampling,
		PColorBlendState:    &blendState,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(device, nil, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if isError(ret) {
		return vk.NullPipeline, NewError(ret)
	}
	return pipelines[0], nil
}
