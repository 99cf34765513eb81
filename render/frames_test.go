package render_test

import (
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"vulkan-instancing/render"
)

var _ = Describe("FrameSync", func() {
	var (
		dev    *fakeDevice
		frames *render.FrameSync
	)

	const timeout = 10 * time.Millisecond

	BeforeEach(func() {
		dev = newFakeDevice()

		var err error
		frames, err = render.NewFrameSync(dev, dev, 2)
		Expect(err).NotTo(HaveOccurred())
	})

	drawFrame := func() uint32 {
		image, err := frames.Acquire(timeout)
		Expect(err).NotTo(HaveOccurred())
		Expect(frames.Submit(render.CommandBuffer(100 + image))).To(Succeed())
		Expect(frames.Present(image)).To(Succeed())
		frames.Advance()
		return image
	}

	It("creates signalled fences", func() {
		Expect(frames.Len()).To(Equal(2))
		Expect(dev.semaphores).To(HaveLen(4))
		Expect(dev.fences).To(HaveLen(2))
		for _, signalled := range dev.fences {
			Expect(signalled).To(BeTrue())
		}
	})

	It("rejects an empty ring", func() {
		_, err := render.NewFrameSync(dev, dev, 0)
		Expect(err).To(HaveOccurred())
	})

	It("cleans up after a failed creation", func() {
		other := newFakeDevice()
		other.failCreateSemAt = 4

		_, err := render.NewFrameSync(other, other, 2)
		Expect(err).To(MatchError(ContainSubstring("renderFinishedSem[1]")))
		Expect(other.semaphores).To(BeEmpty())
		Expect(other.fences).To(BeEmpty())
	})

	It("cycles through the slots", func() {
		Expect(frames.Current()).To(Equal(0))
		for i := 0; i < frames.Len()+1; i++ {
			drawFrame()
		}
		Expect(frames.Current()).To(Equal(1 % frames.Len()))
	})

	It("uses the semaphores and fence of the current slot", func() {
		drawFrame()
		drawFrame()

		Expect(dev.submissions).To(HaveLen(2))
		first, second := dev.submissions[0], dev.submissions[1]

		Expect(first.Wait).To(Equal(dev.acquiredWith[0]))
		Expect(second.Wait).To(Equal(dev.acquiredWith[1]))
		Expect(first.Wait).NotTo(Equal(second.Wait))
		Expect(first.Signal).NotTo(Equal(second.Signal))
		Expect(first.Fence).NotTo(Equal(second.Fence))
	})

	It("resets the fence only after an image was acquired", func() {
		dev.acquireErrs = []error{errors.Mark(errors.New("out of date"), render.ErrOutOfDate)}

		_, err := frames.Acquire(timeout)
		Expect(errors.Is(err, render.ErrOutOfDate)).To(BeTrue())
		Expect(dev.fenceResets).To(BeEmpty())
		Expect(frames.State(0)).To(Equal(render.SlotIdle))

		// The retry must not block on the untouched fence.
		_, err = frames.Acquire(timeout)
		Expect(err).NotTo(HaveOccurred())
		Expect(dev.fenceResets).To(HaveLen(1))
		Expect(frames.State(0)).To(Equal(render.SlotAcquired))
	})

	It("times out when the GPU never finishes", func() {
		dev.autoSignal = false
		drawFrame()
		drawFrame()

		_, err := frames.Acquire(timeout)
		Expect(errors.Is(err, render.ErrTimeout)).To(BeTrue())
	})

	It("waits for the frame that last rendered to the acquired image", func() {
		dev.autoSignal = false
		dev.nextImages = []uint32{0, 0}

		drawFrame()
		slot0Fence := dev.submissions[0].Fence

		_, err := frames.Acquire(timeout)
		Expect(errors.Is(err, render.ErrTimeout)).To(BeTrue())
		Expect(dev.fenceWaits[len(dev.fenceWaits)-1]).To(Equal(slot0Fence))
	})

	It("resumes with the acquired image after an image wait timed out", func() {
		dev.autoSignal = false
		dev.nextImages = []uint32{0, 0, 0}

		drawFrame()

		_, err := frames.Acquire(timeout)
		Expect(errors.Is(err, render.ErrTimeout)).To(BeTrue())
		Expect(dev.acquiredWith).To(HaveLen(2))
		Expect(frames.State(1)).To(Equal(render.SlotIdle))

		for f := range dev.fences {
			dev.fences[f] = true
		}

		image, err := frames.Acquire(timeout)
		Expect(err).NotTo(HaveOccurred())
		Expect(image).To(Equal(uint32(0)))
		Expect(dev.acquiredWith).To(HaveLen(2))

		Expect(frames.Submit(7)).To(Succeed())
		Expect(dev.submissions[1].Wait).To(Equal(dev.acquiredWith[1]))
		Expect(frames.Present(image)).To(Succeed())
		frames.Advance()

		// The next acquire on this slot asks the swapchain again.
		dev.autoSignal = true
		for f := range dev.fences {
			dev.fences[f] = true
		}
		drawFrame()
		drawFrame()
		Expect(dev.acquiredWith).To(HaveLen(4))
	})

	It("forgets image fences after swapchain recreation", func() {
		dev.autoSignal = false
		dev.nextImages = []uint32{0, 0}

		drawFrame()
		frames.ForgetImages()

		_, err := frames.Acquire(timeout)
		Expect(err).NotTo(HaveOccurred())
	})

	It("enforces the slot order", func() {
		Expect(errors.Is(frames.Submit(1), render.ErrSlotState)).To(BeTrue())
		Expect(errors.Is(frames.Present(0), render.ErrSlotState)).To(BeTrue())

		image, err := frames.Acquire(timeout)
		Expect(err).NotTo(HaveOccurred())
		Expect(errors.Is(frames.Present(image), render.ErrSlotState)).To(BeTrue())

		_, err = frames.Acquire(timeout)
		Expect(errors.Is(err, render.ErrSlotState)).To(BeTrue())
	})

	It("moves on after an out of date present", func() {
		dev.presentErrs = []error{errors.Mark(errors.New("suboptimal"), render.ErrOutOfDate)}

		image, err := frames.Acquire(timeout)
		Expect(err).NotTo(HaveOccurred())
		Expect(frames.Submit(1)).To(Succeed())

		err = frames.Present(image)
		Expect(errors.Is(err, render.ErrOutOfDate)).To(BeTrue())
		Expect(frames.State(0)).To(Equal(render.SlotPresenting))

		frames.Advance()
		Expect(frames.State(0)).To(Equal(render.SlotIdle))
		Expect(frames.Current()).To(Equal(1))
	})

	It("destroys everything on close", func() {
		frames.Close()
		Expect(dev.semaphores).To(BeEmpty())
		Expect(dev.fences).To(BeEmpty())
	})
})
