package render

import (
	"time"
)

// Handles are opaque identifiers issued by a device implementation. Zero is
// never a valid handle.
type (
	Buffer         uint64
	Memory         uint64
	Semaphore      uint64
	Fence          uint64
	CommandBuffer  uint64
	DescriptorSet  uint64
	Framebuffer    uint64
	RenderPass     uint64
	Pipeline       uint64
	PipelineLayout uint64
)

// BufferUsage says what a buffer will be bound as.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
)

// MemoryProperty flags mirror VkMemoryPropertyFlagBits for the bits this
// renderer cares about.
type MemoryProperty uint32

const (
	MemoryPropertyDeviceLocal MemoryProperty = 1 << iota
	MemoryPropertyHostVisible
	MemoryPropertyHostCoherent
)

// HostMemory is the property set used for every buffer of the renderer. There
// is no staging path to device local memory.
const HostMemory = MemoryPropertyHostVisible | MemoryPropertyHostCoherent

// MemoryType is one entry of the physical device memory type table.
type MemoryType struct {
	PropertyFlags MemoryProperty
	HeapIndex     uint32
}

// MemoryRequirements is what the device reports for a buffer. Size may be
// larger than the size the buffer was created with.
type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// Extent is the pixel size of the swapchain images.
type Extent struct {
	Width  uint32
	Height uint32
}

// Aspect returns width/height, or 1 for a degenerate extent.
func (e Extent) Aspect() float32 {
	if e.Width == 0 || e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// MemoryDevice creates buffers and backs them with memory.
type MemoryDevice interface {
	CreateBuffer(size uint64, usage BufferUsage) (Buffer, error)
	DestroyBuffer(buf Buffer)
	BufferMemoryRequirements(buf Buffer) MemoryRequirements
	MemoryTypes() []MemoryType
	AllocateMemory(size uint64, memoryTypeIndex uint32) (Memory, error)
	FreeMemory(mem Memory)
	BindBufferMemory(buf Buffer, mem Memory, offset uint64) error

	// MapMemory returns a host view of size bytes starting at offset. The
	// slice is only valid until UnmapMemory.
	MapMemory(mem Memory, offset, size uint64) ([]byte, error)
	UnmapMemory(mem Memory)

	// WaitIdle blocks until the device has finished all submitted work.
	WaitIdle() error
}

// SyncDevice creates and waits on synchronisation primitives.
type SyncDevice interface {
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)

	// WaitForFence blocks until f is signalled. A timeout <= 0 waits forever.
	// It returns an error marked with ErrTimeout when the wait expires.
	WaitForFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error
}

// Submission is one batch of work for the graphics queue.
type Submission struct {
	CommandBuffer CommandBuffer
	// Wait is waited on at the colour attachment output stage only.
	Wait   Semaphore
	Signal Semaphore
	Fence  Fence
}

// Presenter owns the swapchain and the queues work is submitted to.
type Presenter interface {
	// AcquireNextImage returns the index of the next presentable image and
	// signals s once it is available. ErrOutOfDate means the swapchain has to be
	// recreated before anything else is presented.
	AcquireNextImage(s Semaphore, timeout time.Duration) (uint32, error)
	Submit(sub Submission) error
	// Present queues image for presentation once wait is signalled.
	// ErrOutOfDate is returned for out of date and suboptimal swapchains.
	Present(image uint32, wait Semaphore) error
}

// Swapchain exposes the per-image targets commands are recorded against.
type Swapchain interface {
	ImageCount() int
	Extent() Extent
	Framebuffer(image uint32) Framebuffer
	// Recreate rebuilds the swapchain for the current surface size. It fails if
	// the number of images changes because the per-image resources were sized
	// for the old count.
	Recreate() error
}

// ClearColor is an RGBA clear value.
type ClearColor [4]float32

// CommandDevice records draw commands.
type CommandDevice interface {
	ResetCommandBuffer(cb CommandBuffer) error
	BeginCommandBuffer(cb CommandBuffer, simultaneousUse bool) error
	CmdBeginRenderPass(cb CommandBuffer, rp RenderPass, fb Framebuffer, area Extent, clear ClearColor)
	CmdBindPipeline(cb CommandBuffer, p Pipeline)
	CmdSetViewport(cb CommandBuffer, area Extent)
	CmdBindVertexBuffers(cb CommandBuffer, firstBinding uint32, bufs []Buffer)
	CmdBindIndexBuffer16(cb CommandBuffer, buf Buffer)
	CmdBindDescriptorSet(cb CommandBuffer, layout PipelineLayout, set DescriptorSet)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount uint32)
	CmdEndRenderPass(cb CommandBuffer)
	EndCommandBuffer(cb CommandBuffer) error
}
