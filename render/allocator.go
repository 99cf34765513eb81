package render

import (
	"github.com/cockroachdb/errors"
)

// FindMemoryType returns the first index in types whose bit is set in
// typeFilter and whose flags include all of properties.
func FindMemoryType(types []MemoryType, typeFilter uint32, properties MemoryProperty) (uint32, error) {
	for i, memType := range types {
		if i >= 32 {
			break
		}

		if typeFilter&(1<<uint(i)) == 0 {
			continue
		}

		if memType.PropertyFlags&properties != properties {
			continue
		}

		return uint32(i), nil
	}

	return 0, errors.Wrapf(ErrNoSuitableMemoryType,
		"filter %#x, properties %#x", typeFilter, properties)
}

// Allocator creates buffers each backed by a dedicated memory allocation.
type Allocator struct {
	dev MemoryDevice
}

// NewAllocator returns an allocator creating buffers on dev.
func NewAllocator(dev MemoryDevice) *Allocator {
	return &Allocator{dev: dev}
}

// Device returns the device the allocator creates buffers on.
func (a *Allocator) Device() MemoryDevice {
	return a.dev
}

// Allocation is a buffer together with the memory bound to it.
type Allocation struct {
	dev    MemoryDevice
	buffer Buffer
	memory Memory

	// size is the size requested by the caller, allocated is what the device
	// asked for.
	size      uint64
	allocated uint64
	usage     BufferUsage
}

// CreateBuffer creates a buffer of size bytes, allocates memory for it as the
// device requires and binds the two at offset 0. Nothing is left behind when
// an error is returned.
func (a *Allocator) CreateBuffer(
	size uint64,
	usage BufferUsage,
	properties MemoryProperty,
) (*Allocation, error) {
	if size == 0 {
		return nil, errors.New("cannot create an empty buffer")
	}

	buffer, err := a.dev.CreateBuffer(size, usage)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create buffer")
	}

	memRequirements := a.dev.BufferMemoryRequirements(buffer)

	memTypeIndex, err := FindMemoryType(
		a.dev.MemoryTypes(),
		memRequirements.MemoryTypeBits,
		properties,
	)
	if err != nil {
		a.dev.DestroyBuffer(buffer)
		return nil, err
	}

	memory, err := a.dev.AllocateMemory(memRequirements.Size, memTypeIndex)
	if err != nil {
		a.dev.DestroyBuffer(buffer)
		return nil, errors.Wrap(err, "failed to allocate buffer memory")
	}

	if err := a.dev.BindBufferMemory(buffer, memory, 0); err != nil {
		a.dev.DestroyBuffer(buffer)
		a.dev.FreeMemory(memory)
		return nil, errors.Wrap(err, "failed to bind buffer memory")
	}

	return &Allocation{
		dev:       a.dev,
		buffer:    buffer,
		memory:    memory,
		size:      size,
		allocated: memRequirements.Size,
		usage:     usage,
	}, nil
}

// CreateBufferWithData creates a host visible buffer sized for data and
// copies data into it.
func (a *Allocator) CreateBufferWithData(data []byte, usage BufferUsage) (*Allocation, error) {
	alloc, err := a.CreateBuffer(uint64(len(data)), usage, HostMemory)
	if err != nil {
		return nil, err
	}

	if err := alloc.Write(data); err != nil {
		alloc.Destroy()
		return nil, err
	}

	return alloc, nil
}

// Buffer returns the buffer handle, or zero after Destroy.
func (al *Allocation) Buffer() Buffer {
	return al.buffer
}

// Memory returns the memory handle, or zero after Destroy.
func (al *Allocation) Memory() Memory {
	return al.memory
}

// Size returns the size the buffer was created with.
func (al *Allocation) Size() uint64 {
	return al.size
}

// AllocatedSize returns the size of the backing memory allocation.
func (al *Allocation) AllocatedSize() uint64 {
	return al.allocated
}

// Usage returns the usage flags of the buffer.
func (al *Allocation) Usage() BufferUsage {
	return al.usage
}

// Write maps the memory, copies data to its start and unmaps it again. data
// must not be larger than the buffer.
func (al *Allocation) Write(data []byte) error {
	if al.buffer == 0 {
		return errors.New("write to a destroyed buffer")
	}
	if uint64(len(data)) > al.size {
		return errors.Newf("writing %d bytes into a %d byte buffer", len(data), al.size)
	}
	if len(data) == 0 {
		return nil
	}

	mapped, err := al.dev.MapMemory(al.memory, 0, uint64(len(data)))
	if err != nil {
		return errors.Wrap(err, "mapping buffer memory")
	}
	copy(mapped, data)
	al.dev.UnmapMemory(al.memory)

	return nil
}

// ReadBack copies the whole buffer out of device memory.
func (al *Allocation) ReadBack() ([]byte, error) {
	if al.buffer == 0 {
		return nil, errors.New("read from a destroyed buffer")
	}

	mapped, err := al.dev.MapMemory(al.memory, 0, al.size)
	if err != nil {
		return nil, errors.Wrap(err, "mapping buffer memory")
	}
	out := make([]byte, len(mapped))
	copy(out, mapped)
	al.dev.UnmapMemory(al.memory)

	return out, nil
}

// Destroy destroys the buffer and frees its memory. The device must not be
// using the buffer anymore. Calling Destroy twice is a no-op.
func (al *Allocation) Destroy() {
	if al == nil {
		return
	}
	if al.buffer != 0 {
		al.dev.DestroyBuffer(al.buffer)
		al.buffer = 0
	}
	if al.memory != 0 {
		al.dev.FreeMemory(al.memory)
		al.memory = 0
	}
}
