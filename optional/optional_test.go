package optional_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"vulkan-instancing/optional"
)

var _ = Describe("Optional", func() {
	It("starts empty", func() {
		var o optional.Optional[uint32]
		Expect(o.HasValue()).To(BeFalse())
		Expect(o.Get()).To(BeZero())
	})

	It("distinguishes a set zero value from an unset one", func() {
		var o optional.Optional[uint32]
		o.Set(0)
		Expect(o.HasValue()).To(BeTrue())
		Expect(o.Get()).To(BeZero())
	})

	It("can be reset", func() {
		var o optional.Optional[string]
		o.Set("graphics")
		Expect(o.Get()).To(Equal("graphics"))

		o.Reset()
		Expect(o.HasValue()).To(BeFalse())
		Expect(o.Get()).To(BeEmpty())
	})
})
