package render_test

import (
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"vulkan-instancing/render"
)

type fakeWindow struct {
	input  *render.InputState
	frames int
	polls  int
}

func (w *fakeWindow) ShouldClose() bool {
	return w.polls >= w.frames
}

func (w *fakeWindow) PollEvents() {
	w.polls++
}

func (w *fakeWindow) Input() *render.InputState {
	return w.input
}

var _ = Describe("Loop", func() {
	var (
		dev      *fakeDevice
		store    *render.Store
		uniforms *render.UniformBuffers
		loop     *render.Loop
		in       *render.InputState
		now      time.Duration
	)

	BeforeEach(func() {
		dev = newFakeDevice()
		alloc := render.NewAllocator(dev)
		now = 0

		var err error
		store, err = render.NewStore(alloc, 6)
		Expect(err).NotTo(HaveOccurred())

		frames, err := render.NewFrameSync(dev, dev, render.DefaultMaxFramesInFlight)
		Expect(err).NotTo(HaveOccurred())

		recorder, err := render.NewRecorder(dev, dev, 1, 2, 3, render.ImageTargets{
			CommandBuffers: []render.CommandBuffer{11, 12, 13},
			DescriptorSets: []render.DescriptorSet{21, 22, 23},
		})
		Expect(err).NotTo(HaveOccurred())

		uniforms, err = render.NewUniformBuffers(alloc, dev.ImageCount())
		Expect(err).NotTo(HaveOccurred())

		loop, err = render.NewLoop(render.LoopConfig{
			Device:    dev,
			Swapchain: dev,
			Store:     store,
			Frames:    frames,
			Recorder:  recorder,
			Uniforms:  uniforms,
			Geometry:  render.Geometry{Vertices: 91, Indices: 92, IndexCount: 36},
			Clock: func() time.Duration {
				return now
			},
			FenceTimeout: time.Second,
		})
		Expect(err).NotTo(HaveOccurred())

		in = render.NewInputState(800, 600)
	})

	It("needs its collaborators", func() {
		_, err := render.NewLoop(render.LoopConfig{Device: dev})
		Expect(err).To(HaveOccurred())
	})

	It("draws every instance once per step", func() {
		Expect(loop.Step(in)).To(Succeed())

		Expect(dev.submissions).To(HaveLen(1))
		Expect(dev.submissions[0].CommandBuffer).To(Equal(render.CommandBuffer(11)))
		Expect(dev.presented).To(Equal([]uint32{0}))
		Expect(dev.calls).To(ContainElement("draw 36 x6"))
		Expect(loop.CurrentFrame()).To(Equal(1))
	})

	It("wraps around the frames in flight", func() {
		for i := 0; i < render.DefaultMaxFramesInFlight+1; i++ {
			Expect(loop.Step(in)).To(Succeed())
		}
		Expect(loop.CurrentFrame()).To(Equal(1 % render.DefaultMaxFramesInFlight))
	})

	It("uploads the time and camera", func() {
		now = 2500 * time.Millisecond
		Expect(loop.Step(in)).To(Succeed())

		ubo, err := uniforms.Read(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ubo.Time).To(BeNumerically("~", 2.5))

		cam := render.DefaultCamera()
		Expect(ubo.View).To(Equal(cam.View()))
		Expect(ubo.Projection).To(Equal(cam.Projection(800.0 / 600.0)))
	})

	It("adds an instance on every frame the key is held", func() {
		in.Keys.Add = true
		for i := 0; i < 3; i++ {
			Expect(loop.Step(in)).To(Succeed())
		}
		Expect(store.Count()).To(Equal(9))
		Expect(dev.calls).To(ContainElement("draw 36 x9"))

		in.Keys.Add = false
		Expect(loop.Step(in)).To(Succeed())
		Expect(store.Count()).To(Equal(9))
	})

	It("removes instances down to one", func() {
		in.Keys.Remove = true
		for i := 0; i < 10; i++ {
			Expect(loop.Step(in)).To(Succeed())
		}
		Expect(store.Count()).To(Equal(1))
		Expect(store.ByteSize()).To(Equal(render.InstanceDataSize))
	})

	It("removes before it adds", func() {
		in.Keys.Add = true
		in.Keys.Remove = true
		Expect(loop.Step(in)).To(Succeed())
		Expect(store.Count()).To(Equal(6))
	})

	It("drifts the instances with the movement keys", func() {
		before := store.At(0)

		in.Keys.Forward = true
		Expect(loop.Step(in)).To(Succeed())

		t := loop.Transform()
		Expect(t.TranslateY).To(BeNumerically("~", 0.0095, 1e-6))
		Expect(t.Scale).To(BeNumerically("~", 1.2, 1e-6))

		after := store.At(0)
		Expect(after[3][1] - before[3][1]).To(BeNumerically("~", 0.0095, 1e-6))
	})

	It("rescales every instance", func() {
		in.Keys.ScaleUp = true
		Expect(loop.Step(in)).To(Succeed())
		Expect(store.At(3)[0][0]).To(BeNumerically("~", 1.02, 1e-6))

		in.Keys.ScaleUp = false
		in.Keys.ScaleDown = true
		Expect(loop.Step(in)).To(Succeed())
		Expect(store.At(3)[0][0]).To(BeNumerically("~", 1.02*0.98, 1e-6))
	})

	It("recreates the swapchain when acquiring finds it out of date", func() {
		dev.acquireErrs = []error{errors.Mark(errors.New("out of date"), render.ErrOutOfDate)}
		dev.recreateTo = render.Extent{Width: 1000, Height: 500}

		Expect(loop.Step(in)).To(Succeed())
		Expect(dev.recreates).To(Equal(1))
		Expect(dev.submissions).To(BeEmpty())
		Expect(loop.CurrentFrame()).To(Equal(0))
		Expect(loop.Projection()).To(Equal(render.DefaultCamera().Projection(2)))

		Expect(loop.Step(in)).To(Succeed())
		Expect(dev.submissions).To(HaveLen(1))
	})

	It("recreates the swapchain after an out of date present", func() {
		dev.presentErrs = []error{errors.Mark(errors.New("suboptimal"), render.ErrOutOfDate)}

		Expect(loop.Step(in)).To(Succeed())
		Expect(dev.recreates).To(Equal(1))
		Expect(loop.CurrentFrame()).To(Equal(1))
	})

	It("follows window resizes", func() {
		in.SetSize(1024, 512)
		Expect(loop.Step(in)).To(Succeed())

		Expect(in.Resized).To(BeFalse())
		Expect(loop.Projection()).To(Equal(render.DefaultCamera().Projection(2)))
	})

	It("does not draw while minimized", func() {
		in.SetSize(0, 0)
		Expect(loop.Step(in)).To(Succeed())
		Expect(dev.acquiredWith).To(BeEmpty())
	})

	It("fails when the frame never finishes", func() {
		dev.autoSignal = false
		for i := 0; i < render.DefaultMaxFramesInFlight; i++ {
			Expect(loop.Step(in)).To(Succeed())
		}

		err := loop.Step(in)
		Expect(errors.Is(err, render.ErrTimeout)).To(BeTrue())
	})

	It("runs until the window closes and waits for the device", func() {
		win := &fakeWindow{input: in, frames: 5}

		Expect(loop.Run(win)).To(Succeed())
		Expect(dev.submissions).To(HaveLen(5))
		Expect(dev.waitIdles).To(Equal(1))
	})
})

var _ = Describe("InputState", func() {
	It("reports a resize once", func() {
		in := render.NewInputState(640, 480)
		_, ok := in.ConsumeResize()
		Expect(ok).To(BeFalse())

		in.SetSize(320, 200)
		size, ok := in.ConsumeResize()
		Expect(ok).To(BeTrue())
		Expect(size).To(Equal(render.Extent{Width: 320, Height: 200}))

		_, ok = in.ConsumeResize()
		Expect(ok).To(BeFalse())
	})

	It("knows when the window is minimized", func() {
		Expect(render.NewInputState(0, 10).Minimized()).To(BeTrue())
		Expect(render.NewInputState(10, 10).Minimized()).To(BeFalse())
	})
})

var _ = Describe("FrameStats", func() {
	It("reports once per interval", func() {
		stats := render.NewFrameStats()

		for i := 0; i < 60; i++ {
			_, _, ok := stats.Tick(time.Duration(i) * time.Second / 60)
			Expect(ok).To(BeFalse())
		}

		ms, fps, ok := stats.Tick(time.Second)
		Expect(ok).To(BeTrue())
		Expect(fps).To(BeNumerically("~", 61))
		Expect(ms).To(BeNumerically("~", 1000.0/61, 1e-9))
	})
})

var _ = Describe("Camera", func() {
	It("flips the projection for Vulkan clip space", func() {
		cam := render.DefaultCamera()
		p := cam.Projection(1)
		Expect(p[1][1]).To(BeNumerically("<", 0))
		Expect(p[0][0]).To(BeNumerically(">", 0))
	})

	It("looks at the origin from the positive Z axis", func() {
		cam := render.DefaultCamera()
		v := cam.View()
		// The origin ends up 7 units in front of the eye.
		Expect(v[3][2]).To(BeNumerically("~", -7, 1e-5))
	})

	It("can be used without a variable", func() {
		cam := render.DefaultCamera()
		Expect(render.DefaultCamera().View()).To(Equal(cam.View()))
		Expect(render.DefaultCamera().Projection(2)[0][0]).
			To(BeNumerically("~", cam.Projection(1)[0][0]/2, 1e-6))
	})
})
