package render_test

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"vulkan-instancing/render"
	"vulkan-instancing/unsafer"
)

var _ = Describe("Store", func() {
	var (
		dev   *fakeDevice
		store *render.Store
	)

	BeforeEach(func() {
		dev = newFakeDevice()

		var err error
		store, err = render.NewStore(render.NewAllocator(dev), 6)
		Expect(err).NotTo(HaveOccurred())
	})

	mirror := func() []render.InstanceData {
		return unsafer.BytesToSlice[render.InstanceData](dev.memoryOf(store.Buffer())[:store.ByteSize()])
	}

	It("uploads the initial grid", func() {
		Expect(store.Count()).To(Equal(6))
		Expect(store.ByteSize()).To(Equal(6 * render.InstanceDataSize))
		Expect(mirror()).To(Equal(render.LayoutGrid(6)))
	})

	It("refuses an empty population", func() {
		_, err := render.NewStore(render.NewAllocator(dev), 0)
		Expect(err).To(HaveOccurred())
	})

	Describe("Append", func() {
		It("grows the buffer and places the instance after the grid", func() {
			old := store.Buffer()

			Expect(store.Append(render.NewTransform())).To(Succeed())

			Expect(store.Count()).To(Equal(7))
			Expect(store.ByteSize()).To(Equal(7 * render.InstanceDataSize))
			Expect(store.Buffer()).NotTo(Equal(old))
			Expect(dev.buffers).NotTo(HaveKey(old))
			Expect(dev.waitIdles).To(Equal(1))

			m := store.At(6)
			Expect(m[3][0]).To(BeZero())
			Expect(m[3][1]).To(BeNumerically("~", 3.0))
			Expect(mirror()).To(Equal(store.Instances()))
		})

		It("offsets the new instance by the drift", func() {
			t := render.Transform{TranslateX: 0.5, TranslateY: -0.25, Scale: 1}
			Expect(store.Append(t)).To(Succeed())

			m := store.At(6)
			Expect(m[3][0]).To(BeNumerically("~", 0.5))
			Expect(m[3][1]).To(BeNumerically("~", 2.75))
		})

		It("keeps the old state when the new buffer cannot be created", func() {
			old := store.Buffer()
			dev.failCreateBuffer = errors.New("out of host memory")

			Expect(store.Append(render.NewTransform())).NotTo(Succeed())

			Expect(store.Count()).To(Equal(6))
			Expect(store.Buffer()).To(Equal(old))
			Expect(dev.buffers).To(HaveKey(old))
		})
	})

	Describe("Remove", func() {
		It("moves the last instance into the hole", func() {
			last := store.At(5)

			Expect(store.Remove(1)).To(Succeed())

			Expect(store.Count()).To(Equal(5))
			Expect(store.At(1)).To(Equal(last))
		})

		It("drops the last instance without moving anything", func() {
			before := store.Instances()

			Expect(store.Remove(5)).To(Succeed())

			Expect(store.Instances()).To(Equal(before[:5]))
		})

		It("leaves the buffer until the next sync", func() {
			old := store.Buffer()

			Expect(store.Remove(0)).To(Succeed())
			Expect(store.Buffer()).To(Equal(old))
			Expect(store.ByteSize()).To(Equal(6 * render.InstanceDataSize))

			Expect(store.Sync()).To(Succeed())
			Expect(store.ByteSize()).To(Equal(5 * render.InstanceDataSize))
			Expect(mirror()).To(Equal(store.Instances()))
		})

		It("rejects out of range indices", func() {
			Expect(errors.Is(store.Remove(6), render.ErrIndexOutOfRange)).To(BeTrue())
			Expect(errors.Is(store.Remove(-1), render.ErrIndexOutOfRange)).To(BeTrue())
			Expect(store.Count()).To(Equal(6))
		})

		It("never removes the last instance", func() {
			for store.Count() > 1 {
				Expect(store.Remove(0)).To(Succeed())
			}
			Expect(store.Remove(0)).To(MatchError(render.ErrLastInstance))
			Expect(store.Count()).To(Equal(1))
		})

		It("does not let a later append clobber removed data", func() {
			Expect(store.Remove(5)).To(Succeed())
			kept := store.Instances()

			Expect(store.Append(render.NewTransform())).To(Succeed())
			Expect(store.Instances()[:5]).To(Equal(kept))
		})
	})

	It("drifts every instance", func() {
		before := store.Instances()
		store.ApplyDrift(0.1, 0.2)

		for i, inst := range store.Instances() {
			Expect(mgl32.FloatEqualThreshold(inst.Model[3][0], before[i].Model[3][0]+0.1, 1e-6)).To(BeTrue())
			Expect(mgl32.FloatEqualThreshold(inst.Model[3][1], before[i].Model[3][1]+0.2, 1e-6)).To(BeTrue())
			Expect(inst.Model[3][2]).To(Equal(before[i].Model[3][2]))
		}
	})

	It("returns to the same size after an append and a removal", func() {
		count, size := store.Count(), store.ByteSize()
		before := store.Instances()

		Expect(store.Append(render.NewTransform())).To(Succeed())
		Expect(store.Remove(store.Count() - 1)).To(Succeed())
		Expect(store.Sync()).To(Succeed())

		Expect(store.Count()).To(Equal(count))
		Expect(store.ByteSize()).To(Equal(size))
		Expect(mirror()).To(Equal(before))
	})

	It("compounds rescaling", func() {
		store.RescaleAll(2)
		store.RescaleAll(2)

		m := store.At(0)
		Expect(m[0][0]).To(BeNumerically("~", 4))
		Expect(m[1][1]).To(BeNumerically("~", 4))
		Expect(m[2][2]).To(BeNumerically("~", 4))
		Expect(m[3][3]).To(BeNumerically("~", 1))
	})

	It("syncs idempotently", func() {
		store.ApplyDrift(1, 0)
		Expect(store.Sync()).To(Succeed())
		buffer := store.Buffer()
		first := mirror()

		Expect(store.Sync()).To(Succeed())
		Expect(store.Buffer()).To(Equal(buffer))
		Expect(mirror()).To(Equal(first))
		Expect(dev.waitIdles).To(BeZero())
	})

	It("releases its buffer", func() {
		store.Close()
		Expect(dev.liveBuffers()).To(BeZero())
		Expect(dev.liveMemories()).To(BeZero())
	})
})
