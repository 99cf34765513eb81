package gpu

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"vulkan-instancing/render"
)

var _ = Describe("handleTable", func() {
	It("hands out non zero handles that are never reused", func() {
		t := newHandleTable[render.Fence, string]()

		a := t.add("a")
		b := t.add("b")
		Expect(a).NotTo(BeZero())
		Expect(b).NotTo(Equal(a))
		Expect(t.get(a)).To(Equal("a"))
		Expect(t.len()).To(Equal(2))

		v, ok := t.remove(a)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("a"))

		_, ok = t.remove(a)
		Expect(ok).To(BeFalse())

		c := t.add("c")
		Expect(c).NotTo(Equal(a))
		Expect(c).NotTo(Equal(b))
		Expect(t.len()).To(Equal(2))
	})

	It("returns the zero value for unknown handles", func() {
		t := newHandleTable[render.Buffer, int]()
		Expect(t.get(42)).To(BeZero())
	})
})
