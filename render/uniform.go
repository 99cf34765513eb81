package render

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/xlab/linmath"

	"vulkan-instancing/unsafer"
)

// UniformBufferObject matches the std140 block of the vertex shader:
//
//	layout(binding = 0) uniform UBO { float time; mat4 view; mat4 projection; };
//
// std140 aligns the matrices to 16 bytes, hence the padding after Time.
type UniformBufferObject struct {
	Time       float32
	_          [3]float32
	View       linmath.Mat4x4
	Projection linmath.Mat4x4
}

// UniformBufferSize is the size of one uniform buffer.
const UniformBufferSize = uint64(unsafe.Sizeof(UniformBufferObject{}))

// UniformBuffers holds one host visible uniform buffer per swapchain image.
type UniformBuffers struct {
	buffers []*Allocation
}

// NewUniformBuffers creates count uniform buffers.
func NewUniformBuffers(alloc *Allocator, count int) (*UniformBuffers, error) {
	u := &UniformBuffers{}
	for i := 0; i < count; i++ {
		buffer, err := alloc.CreateBuffer(UniformBufferSize, BufferUsageUniform, HostMemory)
		if err != nil {
			u.Close()
			return nil, errors.Wrapf(err, "creating buffer[%d]", i)
		}
		u.buffers = append(u.buffers, buffer)
	}
	return u, nil
}

// Len returns the number of buffers.
func (u *UniformBuffers) Len() int {
	return len(u.buffers)
}

// Buffers returns the buffer handles in image order, for descriptor writes.
func (u *UniformBuffers) Buffers() []Buffer {
	out := make([]Buffer, len(u.buffers))
	for i, b := range u.buffers {
		out[i] = b.Buffer()
	}
	return out
}

// Update writes ubo into the buffer of image.
func (u *UniformBuffers) Update(image uint32, ubo *UniformBufferObject) error {
	if int(image) >= len(u.buffers) {
		return errors.Wrapf(ErrImageIndex, "uniform buffer %d of %d", image, len(u.buffers))
	}
	return u.buffers[image].Write(unsafer.StructToBytes(ubo))
}

// Read returns the current contents of the buffer of image.
func (u *UniformBuffers) Read(image uint32) (UniformBufferObject, error) {
	var ubo UniformBufferObject
	if int(image) >= len(u.buffers) {
		return ubo, errors.Wrapf(ErrImageIndex, "uniform buffer %d of %d", image, len(u.buffers))
	}
	data, err := u.buffers[image].ReadBack()
	if err != nil {
		return ubo, err
	}
	copy(unsafer.StructToBytes(&ubo), data)
	return ubo, nil
}

// Close destroys the buffers. The device must be idle.
func (u *UniformBuffers) Close() {
	for _, b := range u.buffers {
		b.Destroy()
	}
	u.buffers = nil
}
