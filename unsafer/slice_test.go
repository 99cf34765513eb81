package unsafer_test

import (
	"encoding/binary"
	"math"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"vulkan-instancing/unsafer"
)

var _ = Describe("SliceToBytes", func() {
	It("aliases the element memory", func() {
		in := []uint16{0x0102, 0x0304}
		out := unsafer.SliceToBytes(in)
		Expect(out).To(HaveLen(4))
		Expect(binary.LittleEndian.Uint16(out[2:])).To(Equal(uint16(0x0304)))

		in[0] = 0xffff
		Expect(out[0]).To(Equal(byte(0xff)))
	})

	It("returns nil for an empty slice", func() {
		Expect(unsafer.SliceToBytes([]float32{})).To(BeNil())
	})

	It("round trips through BytesToSlice", func() {
		in := []float32{1.5, -2, 3}
		back := unsafer.BytesToSlice[float32](unsafer.SliceToBytes(in))
		Expect(back).To(Equal(in))
	})
})

var _ = Describe("StructToBytes", func() {
	It("covers the whole struct", func() {
		v := struct {
			A float32
			B uint32
		}{A: 1, B: 7}
		out := unsafer.StructToBytes(&v)
		Expect(out).To(HaveLen(8))
		Expect(binary.LittleEndian.Uint32(out[:4])).To(Equal(math.Float32bits(1)))
		Expect(binary.LittleEndian.Uint32(out[4:])).To(Equal(uint32(7)))
	})
})
