package mesh

import (
	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("builder", func() {
	It("narrows indices to 16 bits", func() {
		b := builder{
			vertices: make([]Vertex, 3),
			indices:  []uint32{2, 1, 0},
		}
		m, err := b.mesh()
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Indices).To(Equal([]uint16{2, 1, 0}))
	})

	It("refuses more vertices than 16 bit indices address", func() {
		b := builder{
			vertices: make([]Vertex, 1<<16+1),
			indices:  []uint32{0, 1, 2},
		}
		_, err := b.mesh()
		Expect(errors.Is(err, ErrTooManyVertices)).To(BeTrue())
	})

	It("refuses out of range indices", func() {
		b := builder{
			vertices: make([]Vertex, 3),
			indices:  []uint32{0, 1, 70000},
		}
		_, err := b.mesh()
		Expect(errors.Is(err, ErrTooManyVertices)).To(BeTrue())
	})
})
