package gpu

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-instancing/render"
)

// AllocateCommandBuffers allocates count primary command buffers from the
// device's resettable pool.
func (d *Device) AllocateCommandBuffers(count int) ([]render.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	commandBuffers := make([]vk.CommandBuffer, count)
	res := vk.AllocateCommandBuffers(d.device, &allocInfo, commandBuffers)
	if err := vk.Error(res); err != nil {
		return nil, errors.Wrap(err, "failed to allocate command buffers")
	}

	handles := make([]render.CommandBuffer, count)
	for i, cb := range commandBuffers {
		handles[i] = d.commandBuffers.add(cb)
	}
	return handles, nil
}

// FreeCommandBuffers returns cbs to the pool.
func (d *Device) FreeCommandBuffers(cbs []render.CommandBuffer) {
	var commandBuffers []vk.CommandBuffer
	for _, h := range cbs {
		if cb, ok := d.commandBuffers.remove(h); ok {
			commandBuffers = append(commandBuffers, cb)
		}
	}
	if len(commandBuffers) == 0 {
		return
	}
	vk.FreeCommandBuffers(d.device, d.commandPool, uint32(len(commandBuffers)), commandBuffers)
}

func (d *Device) ResetCommandBuffer(cb render.CommandBuffer) error {
	res := vk.ResetCommandBuffer(d.commandBuffers.get(cb), 0)
	return errors.Wrap(resultError(res), "vkResetCommandBuffer")
}

func (d *Device) BeginCommandBuffer(cb render.CommandBuffer, simultaneousUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if simultaneousUse {
		beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	return resultError(vk.BeginCommandBuffer(d.commandBuffers.get(cb), &beginInfo))
}

func (d *Device) CmdBeginRenderPass(
	cb render.CommandBuffer,
	rp render.RenderPass,
	fb render.Framebuffer,
	area render.Extent,
	clear render.ClearColor,
) {
	clearColor := vk.NewClearValue(clear[:])

	renderPassInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  d.renderPasses.get(rp),
		Framebuffer: d.framebuffers.get(fb),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: toVkExtent(area),
		},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{clearColor},
	}

	vk.CmdBeginRenderPass(d.commandBuffers.get(cb), &renderPassInfo, vk.SubpassContentsInline)
}

func (d *Device) CmdBindPipeline(cb render.CommandBuffer, p render.Pipeline) {
	vk.CmdBindPipeline(d.commandBuffers.get(cb), vk.PipelineBindPointGraphics, d.pipelines.get(p))
}

// CmdSetViewport sets both the viewport and the scissor to area.
func (d *Device) CmdSetViewport(cb render.CommandBuffer, area render.Extent) {
	commandBuffer := d.commandBuffers.get(cb)

	viewport := vk.Viewport{
		X: 0, Y: 0,
		Width:    float32(area.Width),
		Height:   float32(area.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	vk.CmdSetViewport(commandBuffer, 0, 1, []vk.Viewport{viewport})

	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: toVkExtent(area),
	}
	vk.CmdSetScissor(commandBuffer, 0, 1, []vk.Rect2D{scissor})
}

func (d *Device) CmdBindVertexBuffers(cb render.CommandBuffer, firstBinding uint32, bufs []render.Buffer) {
	buffers := make([]vk.Buffer, len(bufs))
	offsets := make([]vk.DeviceSize, len(bufs))
	for i, b := range bufs {
		buffers[i] = d.buffers.get(b)
	}

	vk.CmdBindVertexBuffers(d.commandBuffers.get(cb), firstBinding, uint32(len(buffers)), buffers, offsets)
}

func (d *Device) CmdBindIndexBuffer16(cb render.CommandBuffer, buf render.Buffer) {
	vk.CmdBindIndexBuffer(d.commandBuffers.get(cb), d.buffers.get(buf), 0, vk.IndexTypeUint16)
}

func (d *Device) CmdBindDescriptorSet(cb render.CommandBuffer, layout render.PipelineLayout, set render.DescriptorSet) {
	vk.CmdBindDescriptorSets(
		d.commandBuffers.get(cb),
		vk.PipelineBindPointGraphics,
		d.pipelineLayouts.get(layout),
		0,
		1,
		[]vk.DescriptorSet{d.descriptorSets.get(set)},
		0,
		nil,
	)
}

func (d *Device) CmdDrawIndexed(cb render.CommandBuffer, indexCount, instanceCount uint32) {
	vk.CmdDrawIndexed(d.commandBuffers.get(cb), indexCount, instanceCount, 0, 0, 0)
}

func (d *Device) CmdEndRenderPass(cb render.CommandBuffer) {
	vk.CmdEndRenderPass(d.commandBuffers.get(cb))
}

func (d *Device) EndCommandBuffer(cb render.CommandBuffer) error {
	return resultError(vk.EndCommandBuffer(d.commandBuffers.get(cb)))
}

func toVkExtent(e render.Extent) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}
