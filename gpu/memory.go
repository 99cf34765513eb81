package gpu

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-instancing/render"
)

func toVkBufferUsage(usage render.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&render.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage&render.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage&render.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

func fromVkMemoryProperties(flags vk.MemoryPropertyFlags) render.MemoryProperty {
	var props render.MemoryProperty
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) != 0 {
		props |= render.MemoryPropertyDeviceLocal
	}
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		props |= render.MemoryPropertyHostVisible
	}
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit) != 0 {
		props |= render.MemoryPropertyHostCoherent
	}
	return props
}

func (d *Device) CreateBuffer(size uint64, usage render.BufferUsage) (render.Buffer, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       toVkBufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	if err := resultError(vk.CreateBuffer(d.device, &bufferInfo, nil, &buffer)); err != nil {
		return 0, errors.Wrap(err, "vkCreateBuffer")
	}

	return d.buffers.add(buffer), nil
}

func (d *Device) DestroyBuffer(buf render.Buffer) {
	if buffer, ok := d.buffers.remove(buf); ok {
		vk.DestroyBuffer(d.device, buffer, nil)
	}
}

func (d *Device) BufferMemoryRequirements(buf render.Buffer) render.MemoryRequirements {
	var memRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, d.buffers.get(buf), &memRequirements)
	memRequirements.Deref()

	return render.MemoryRequirements{
		Size:           uint64(memRequirements.Size),
		Alignment:      uint64(memRequirements.Alignment),
		MemoryTypeBits: memRequirements.MemoryTypeBits,
	}
}

func (d *Device) MemoryTypes() []render.MemoryType {
	return d.memoryTypes
}

func (d *Device) AllocateMemory(size uint64, memoryTypeIndex uint32) (render.Memory, error) {
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryTypeIndex,
	}

	var memory vk.DeviceMemory
	if err := resultError(vk.AllocateMemory(d.device, &allocInfo, nil, &memory)); err != nil {
		return 0, errors.Wrap(err, "vkAllocateMemory")
	}

	return d.memories.add(memory), nil
}

func (d *Device) FreeMemory(mem render.Memory) {
	if memory, ok := d.memories.remove(mem); ok {
		vk.FreeMemory(d.device, memory, nil)
	}
}

func (d *Device) BindBufferMemory(buf render.Buffer, mem render.Memory, offset uint64) error {
	res := vk.BindBufferMemory(
		d.device,
		d.buffers.get(buf),
		d.memories.get(mem),
		vk.DeviceSize(offset),
	)
	return errors.Wrap(resultError(res), "vkBindBufferMemory")
}

func (d *Device) MapMemory(mem render.Memory, offset, size uint64) ([]byte, error) {
	var pData unsafe.Pointer
	res := vk.MapMemory(
		d.device,
		d.memories.get(mem),
		vk.DeviceSize(offset),
		vk.DeviceSize(size),
		0,
		&pData,
	)
	if err := resultError(res); err != nil {
		return nil, errors.Wrap(err, "vkMapMemory")
	}

	return unsafe.Slice((*byte)(pData), size), nil
}

func (d *Device) UnmapMemory(mem render.Memory) {
	vk.UnmapMemory(d.device, d.memories.get(mem))
}
