package gpu

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-instancing/render"
)

var _ = Describe("resultError", func() {
	It("returns nil on success", func() {
		Expect(resultError(vk.Success)).To(Succeed())
	})

	table.DescribeTable("marks results the loop acts on",
		func(res vk.Result, sentinel error) {
			err := resultError(res)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, sentinel)).To(BeTrue())
		},
		table.Entry("timeout", vk.Timeout, render.ErrTimeout),
		table.Entry("not ready", vk.NotReady, render.ErrTimeout),
		table.Entry("out of date", vk.ErrorOutOfDate, render.ErrOutOfDate),
		table.Entry("suboptimal", vk.Suboptimal, render.ErrOutOfDate),
		table.Entry("device lost", vk.ErrorDeviceLost, render.ErrDeviceLost),
	)

	It("leaves other failures unmarked", func() {
		err := resultError(vk.ErrorOutOfDeviceMemory)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, render.ErrTimeout)).To(BeFalse())
		Expect(errors.Is(err, render.ErrOutOfDate)).To(BeFalse())
		Expect(errors.Is(err, render.ErrDeviceLost)).To(BeFalse())
	})
})

var _ = Describe("timeoutNanos", func() {
	It("waits forever for non positive timeouts", func() {
		Expect(timeoutNanos(0)).To(Equal(uint64(math.MaxUint64)))
		Expect(timeoutNanos(-time.Second)).To(Equal(uint64(math.MaxUint64)))
	})

	It("converts positive timeouts", func() {
		Expect(timeoutNanos(2 * time.Millisecond)).To(Equal(uint64(2_000_000)))
	})
})
