package gpu

import (
	"log"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-instancing/mesh"
	"vulkan-instancing/render"
)

func (d *Device) createRenderPass(format vk.Format) (render.RenderPass, error) {
	colorAttachment := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}

	colorAttachmentRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.AttachmentReference{colorAttachmentRef},
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	renderPassInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var renderPass vk.RenderPass
	res := vk.CreateRenderPass(d.device, &renderPassInfo, nil, &renderPass)
	if err := vk.Error(res); err != nil {
		return 0, errors.Wrap(err, "failed to create render pass")
	}

	return d.renderPasses.add(renderPass), nil
}

// vertexBindingDescriptions describes binding 0 as per vertex positions and
// binding 1 as per instance model matrices.
func vertexBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    uint32(mesh.VertexSize),
			InputRate: vk.VertexInputRateVertex,
		},
		{
			Binding:   1,
			Stride:    uint32(render.InstanceDataSize),
			InputRate: vk.VertexInputRateInstance,
		},
	}
}

// vertexAttributeDescriptions returns the position at location 0 followed by
// the four columns of the model matrix at locations 1 to 4.
func vertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	attrs := []vk.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(mesh.Vertex{}.Position)),
		},
	}

	const column = uint32(unsafe.Sizeof(float32(0)) * 4)
	for i := uint32(0); i < 4; i++ {
		attrs = append(attrs, vk.VertexInputAttributeDescription{
			Binding:  1,
			Location: 1 + i,
			Format:   vk.FormatR32g32b32a32Sfloat,
			Offset:   column * i,
		})
	}

	return attrs
}

// Pipeline is the graphics pipeline drawing instanced meshes together with
// its layouts.
type Pipeline struct {
	dev *Device

	descriptorSetLayout vk.DescriptorSetLayout
	layout              render.PipelineLayout
	pipeline            render.Pipeline
}

// NewPipeline builds the graphics pipeline for renderPass out of the SPIR-V
// modules vertCode and fragCode.
func NewPipeline(
	dev *Device,
	renderPass render.RenderPass,
	vertCode []byte,
	fragCode []byte,
) (*Pipeline, error) {
	p := &Pipeline{
		dev:                 dev,
		descriptorSetLayout: vk.NullDescriptorSetLayout,
	}

	if err := p.createDescriptorSetLayout(); err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "createDescriptorSetLayout")
	}

	if err := p.createGraphicsPipeline(renderPass, vertCode, fragCode); err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "createGraphicsPipeline")
	}

	return p, nil
}

// Layout returns the pipeline layout.
func (p *Pipeline) Layout() render.PipelineLayout {
	return p.layout
}

// Handle returns the pipeline.
func (p *Pipeline) Handle() render.Pipeline {
	return p.pipeline
}

// Destroy releases the pipeline and its layouts.
func (p *Pipeline) Destroy() {
	d := p.dev

	if pipeline, ok := d.pipelines.remove(p.pipeline); ok {
		vk.DestroyPipeline(d.device, pipeline, nil)
	}
	if layout, ok := d.pipelineLayouts.remove(p.layout); ok {
		vk.DestroyPipelineLayout(d.device, layout, nil)
	}
	if p.descriptorSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(d.device, p.descriptorSetLayout, nil)
		p.descriptorSetLayout = vk.NullDescriptorSetLayout
	}
}

func (p *Pipeline) createDescriptorSetLayout() error {
	uboLayoutBinding := vk.DescriptorSetLayoutBinding{
		Binding:            0,
		DescriptorType:     vk.DescriptorTypeUniformBuffer,
		DescriptorCount:    1,
		StageFlags:         vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		PImmutableSamplers: nil,
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{uboLayoutBinding},
	}

	var descriptorSetLayout vk.DescriptorSetLayout
	res := vk.CreateDescriptorSetLayout(p.dev.device, &layoutInfo, nil, &descriptorSetLayout)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "creating descriptor set layout")
	}
	p.descriptorSetLayout = descriptorSetLayout

	return nil
}

// fixedFunctionState is the non programmable part of the pipeline: indexed
// triangle lists, no culling, no depth, opaque colour writes. Viewport and
// scissor are dynamic so a resize does not invalidate the pipeline.
type fixedFunctionState struct {
	inputAssembly vk.PipelineInputAssemblyStateCreateInfo
	viewport      vk.PipelineViewportStateCreateInfo
	rasterizer    vk.PipelineRasterizationStateCreateInfo
	multisample   vk.PipelineMultisampleStateCreateInfo
	colorBlend    vk.PipelineColorBlendStateCreateInfo
	dynamic       vk.PipelineDynamicStateCreateInfo
}

func newFixedFunctionState() fixedFunctionState {
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	writeAll := vk.ColorComponentFlags(vk.ColorComponentRBit |
		vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)

	return fixedFunctionState{
		inputAssembly: vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		viewport: vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		rasterizer: vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			LineWidth:   1,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceClockwise,
		},
		multisample: vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			MinSampleShading:     1,
		},
		colorBlend: vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{
				{ColorWriteMask: writeAll},
			},
		},
		dynamic: vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		},
	}
}

func (p *Pipeline) createGraphicsPipeline(
	renderPass render.RenderPass,
	vertShaderCode []byte,
	fragShaderCode []byte,
) error {
	d := p.dev

	if d.cfg.Debug {
		log.Printf("vertex shader code size: %d", len(vertShaderCode))
		log.Printf("fragment shader code size: %d", len(fragShaderCode))
	}

	vertexShaderModule, err := d.createShaderModule(vertShaderCode)
	if err != nil {
		return errors.Wrap(err, "creating vertex shader module")
	}
	defer vk.DestroyShaderModule(d.device, vertexShaderModule, nil)

	fragmentShaderModule, err := d.createShaderModule(fragShaderCode)
	if err != nil {
		return errors.Wrap(err, "creating fragment shader module")
	}
	defer vk.DestroyShaderModule(d.device, fragmentShaderModule, nil)

	shaderStages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertexShaderModule,
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragmentShaderModule,
			PName:  "main\x00",
		},
	}

	bindings := vertexBindingDescriptions()
	attributes := vertexAttributeDescriptions()

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,

		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	fixed := newFixedFunctionState()

	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{p.descriptorSetLayout},
	}

	var pipelineLayout vk.PipelineLayout
	res := vk.CreatePipelineLayout(d.device, &pipelineLayoutInfo, nil, &pipelineLayout)
	if err := vk.Error(res); err != nil {
		return errors.Wrap(err, "failed to create pipeline layout")
	}
	p.layout = d.pipelineLayouts.add(pipelineLayout)

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &fixed.inputAssembly,
		PViewportState:      &fixed.viewport,
		PRasterizationState: &fixed.rasterizer,
		PMultisampleState:   &fixed.multisample,
		PColorBlendState:    &fixed.colorBlend,
		PDynamicState:       &fixed.dynamic,
		Layout:              pipelineLayout,
		RenderPass:          d.renderPasses.get(renderPass),
		Subpass:             0,
		BasePipelineHandle:  vk.Pipeline(vk.NullHandle),
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	res = vk.CreateGraphicsPipelines(
		d.device,
		vk.PipelineCache(vk.NullHandle),
		1,
		[]vk.GraphicsPipelineCreateInfo{pipelineInfo},
		nil,
		pipelines,
	)
	if err := vk.Error(res); err != nil {
		return errors.Wrap(err, "failed to create graphics pipeline")
	}
	p.pipeline = d.pipelines.add(pipelines[0])

	return nil
}

func (d *Device) createShaderModule(code []byte) (vk.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return vk.NullShaderModule, errors.Newf("SPIR-V code size %d is not a positive multiple of 4", len(code))
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    repackUint32(code),
	}

	var shaderModule vk.ShaderModule
	res := vk.CreateShaderModule(d.device, &createInfo, nil, &shaderModule)
	return shaderModule, vk.Error(res)
}

func repackUint32(data []byte) []uint32 {
	buf := make([]uint32, len(data)/4)
	vk.Memcopy(unsafe.Pointer(unsafe.SliceData(buf)), data)
	return buf
}
