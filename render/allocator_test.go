package render_test

import (
	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"vulkan-instancing/render"
)

var _ = Describe("FindMemoryType", func() {
	types := []render.MemoryType{
		{PropertyFlags: render.MemoryPropertyDeviceLocal},
		{PropertyFlags: render.MemoryPropertyHostVisible},
		{PropertyFlags: render.HostMemory},
		{PropertyFlags: render.HostMemory | render.MemoryPropertyDeviceLocal},
	}

	table.DescribeTable("picks the first matching type",
		func(filter uint32, props render.MemoryProperty, want uint32) {
			got, err := render.FindMemoryType(types, filter, props)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		table.Entry("host coherent", uint32(0b1111), render.HostMemory, uint32(2)),
		table.Entry("filter skips lower types", uint32(0b1000), render.HostMemory, uint32(3)),
		table.Entry("host visible only", uint32(0b1111), render.MemoryPropertyHostVisible, uint32(1)),
		table.Entry("no properties", uint32(0b0100), render.MemoryProperty(0), uint32(2)),
	)

	It("fails when nothing matches", func() {
		_, err := render.FindMemoryType(types, 0b0011, render.HostMemory)
		Expect(errors.Is(err, render.ErrNoSuitableMemoryType)).To(BeTrue())
	})

	It("fails on an empty table", func() {
		_, err := render.FindMemoryType(nil, 0xffffffff, 0)
		Expect(errors.Is(err, render.ErrNoSuitableMemoryType)).To(BeTrue())
	})
})

var _ = Describe("Allocator", func() {
	var (
		dev   *fakeDevice
		alloc *render.Allocator
	)

	BeforeEach(func() {
		dev = newFakeDevice()
		alloc = render.NewAllocator(dev)
	})

	It("allocates what the device requires and binds it", func() {
		dev.padding = 48

		a, err := alloc.CreateBuffer(16, render.BufferUsageUniform, render.HostMemory)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Size()).To(Equal(uint64(16)))
		Expect(a.AllocatedSize()).To(Equal(uint64(64)))
		Expect(a.Usage()).To(Equal(render.BufferUsageUniform))
		Expect(dev.bound[a.Buffer()]).To(Equal(a.Memory()))
		Expect(dev.memories[a.Memory()]).To(HaveLen(64))
	})

	It("rejects empty buffers", func() {
		_, err := alloc.CreateBuffer(0, render.BufferUsageVertex, render.HostMemory)
		Expect(err).To(HaveOccurred())
		Expect(dev.liveBuffers()).To(BeZero())
	})

	It("leaves nothing behind when no memory type fits", func() {
		dev.memoryTypes = []render.MemoryType{{PropertyFlags: render.MemoryPropertyDeviceLocal}}

		_, err := alloc.CreateBuffer(32, render.BufferUsageVertex, render.HostMemory)
		Expect(errors.Is(err, render.ErrNoSuitableMemoryType)).To(BeTrue())
		Expect(dev.liveBuffers()).To(BeZero())
		Expect(dev.liveMemories()).To(BeZero())
	})

	It("leaves nothing behind when allocation fails", func() {
		dev.failAllocate = errors.New("out of device memory")

		_, err := alloc.CreateBuffer(32, render.BufferUsageVertex, render.HostMemory)
		Expect(err).To(MatchError(ContainSubstring("out of device memory")))
		Expect(dev.liveBuffers()).To(BeZero())
	})

	It("round trips data", func() {
		data := []byte{1, 2, 3, 4, 5, 6}
		a, err := alloc.CreateBufferWithData(data, render.BufferUsageVertex)
		Expect(err).NotTo(HaveOccurred())

		back, err := a.ReadBack()
		Expect(err).NotTo(HaveOccurred())
		Expect(back).To(Equal(data))
		Expect(dev.mapped[a.Memory()]).To(BeFalse())
	})

	It("refuses writes larger than the buffer", func() {
		a, err := alloc.CreateBuffer(4, render.BufferUsageVertex, render.HostMemory)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Write(make([]byte, 5))).To(HaveOccurred())
	})

	It("destroys once", func() {
		a, err := alloc.CreateBuffer(4, render.BufferUsageVertex, render.HostMemory)
		Expect(err).NotTo(HaveOccurred())

		a.Destroy()
		Expect(dev.liveBuffers()).To(BeZero())
		Expect(dev.liveMemories()).To(BeZero())
		Expect(a.Buffer()).To(BeZero())

		Expect(a.Destroy).NotTo(Panic())
		Expect(a.Write([]byte{1})).To(HaveOccurred())

		var nilAlloc *render.Allocation
		Expect(nilAlloc.Destroy).NotTo(Panic())
	})
})
