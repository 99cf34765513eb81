package gpu

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-instancing/render"
)

// Descriptors is a descriptor pool with one set per swapchain image, each
// pointing at that image's uniform buffer.
type Descriptors struct {
	dev  *Device
	pool vk.DescriptorPool
	sets []render.DescriptorSet
}

// NewDescriptors allocates one descriptor set of the pipeline's layout for
// every buffer in uniformBuffers and binds the buffer to it.
func NewDescriptors(dev *Device, pipeline *Pipeline, uniformBuffers []render.Buffer) (*Descriptors, error) {
	count := uint32(len(uniformBuffers))
	if count == 0 {
		return nil, errors.New("no uniform buffers to describe")
	}

	poolSizes := []vk.DescriptorPoolSize{
		{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: count,
		},
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       count,
	}

	var descriptorPool vk.DescriptorPool
	res := vk.CreateDescriptorPool(dev.device, &poolInfo, nil, &descriptorPool)
	if res != vk.Success {
		return nil, errors.Wrap(vk.Error(res), "failed to create descriptor pool")
	}

	ds := &Descriptors{dev: dev, pool: descriptorPool}

	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = pipeline.descriptorSetLayout
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     descriptorPool,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}

	descriptorSets := make([]vk.DescriptorSet, count)
	res = vk.AllocateDescriptorSets(dev.device, &allocInfo, &descriptorSets[0])
	if res != vk.Success {
		ds.Destroy()
		return nil, errors.Wrap(vk.Error(res), "failed to allocate descriptor sets")
	}

	for i, set := range descriptorSets {
		bufferInfo := vk.DescriptorBufferInfo{
			Buffer: dev.buffers.get(uniformBuffers[i]),
			Offset: 0,
			Range:  vk.DeviceSize(render.UniformBufferSize),
		}

		descriptorWrites := []vk.WriteDescriptorSet{
			{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      0,
				DstArrayElement: 0,
				DescriptorType:  vk.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,
				PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
			},
		}

		vk.UpdateDescriptorSets(
			dev.device,
			uint32(len(descriptorWrites)),
			descriptorWrites,
			0,
			nil,
		)

		ds.sets = append(ds.sets, dev.descriptorSets.add(set))
	}

	return ds, nil
}

// Sets returns the descriptor sets in swapchain image order.
func (ds *Descriptors) Sets() []render.DescriptorSet {
	return ds.sets
}

// Destroy destroys the pool, which frees every set allocated from it.
func (ds *Descriptors) Destroy() {
	for _, set := range ds.sets {
		ds.dev.descriptorSets.remove(set)
	}
	ds.sets = nil

	if ds.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(ds.dev.device, ds.pool, nil)
		ds.pool = vk.NullDescriptorPool
	}
}
