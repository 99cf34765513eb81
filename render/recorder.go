package render

import (
	"github.com/cockroachdb/errors"
)

// ClearBlack is the opaque black the render pass clears to.
var ClearBlack = ClearColor{0, 0, 0, 1}

// DrawCall is what one frame draws: IndexCount indices of the vertex buffer,
// InstanceCount times, reading per instance matrices from Instances.
type DrawCall struct {
	Vertices      Buffer
	Indices       Buffer
	Instances     Buffer
	IndexCount    uint32
	InstanceCount uint32
}

// ImageTargets are the per swapchain image resources. Both slices have one
// entry per swapchain image.
type ImageTargets struct {
	CommandBuffers []CommandBuffer
	DescriptorSets []DescriptorSet
}

// Recorder records the draw commands of one swapchain image.
type Recorder struct {
	dev       CommandDevice
	swapchain Swapchain

	renderPass     RenderPass
	pipeline       Pipeline
	pipelineLayout PipelineLayout

	targets ImageTargets
}

// NewRecorder returns a recorder drawing with pipeline into the framebuffers
// of swapchain.
func NewRecorder(
	dev CommandDevice,
	swapchain Swapchain,
	renderPass RenderPass,
	pipeline Pipeline,
	layout PipelineLayout,
	targets ImageTargets,
) (*Recorder, error) {
	images := swapchain.ImageCount()
	if len(targets.CommandBuffers) != images || len(targets.DescriptorSets) != images {
		return nil, errors.Newf(
			"per image resources do not match %d swapchain images: %d command buffers, %d descriptor sets",
			images, len(targets.CommandBuffers), len(targets.DescriptorSets),
		)
	}

	return &Recorder{
		dev:            dev,
		swapchain:      swapchain,
		renderPass:     renderPass,
		pipeline:       pipeline,
		pipelineLayout: layout,
		targets:        targets,
	}, nil
}

// CommandBuffer returns the command buffer of image.
func (r *Recorder) CommandBuffer(image uint32) (CommandBuffer, error) {
	if int(image) >= len(r.targets.CommandBuffers) {
		return 0, errors.Wrapf(ErrImageIndex, "image %d of %d", image, len(r.targets.CommandBuffers))
	}
	return r.targets.CommandBuffers[image], nil
}

// Record re-records the command buffer of image. The buffer is begun with
// simultaneous use; the frame fences keep the GPU from executing it twice at
// the same time. The descriptor set bound is the one of image, not the one of
// the frame slot.
func (r *Recorder) Record(image uint32, draw DrawCall) error {
	commandBuffer, err := r.CommandBuffer(image)
	if err != nil {
		return err
	}
	descriptorSet := r.targets.DescriptorSets[image]
	extent := r.swapchain.Extent()

	if err := r.dev.ResetCommandBuffer(commandBuffer); err != nil {
		return errors.Wrapf(err, "resetting command buffer %d", image)
	}

	if err := r.dev.BeginCommandBuffer(commandBuffer, true); err != nil {
		return errors.Wrap(err, "cannot add begin command to the buffer")
	}

	r.dev.CmdBeginRenderPass(
		commandBuffer,
		r.renderPass,
		r.swapchain.Framebuffer(image),
		extent,
		ClearBlack,
	)
	r.dev.CmdBindPipeline(commandBuffer, r.pipeline)
	r.dev.CmdSetViewport(commandBuffer, extent)

	r.dev.CmdBindVertexBuffers(commandBuffer, 0, []Buffer{draw.Vertices, draw.Instances})
	r.dev.CmdBindIndexBuffer16(commandBuffer, draw.Indices)
	r.dev.CmdBindDescriptorSet(commandBuffer, r.pipelineLayout, descriptorSet)

	r.dev.CmdDrawIndexed(commandBuffer, draw.IndexCount, draw.InstanceCount)
	r.dev.CmdEndRenderPass(commandBuffer)

	if err := r.dev.EndCommandBuffer(commandBuffer); err != nil {
		return errors.Wrap(err, "recording commands to buffer failed")
	}

	return nil
}
