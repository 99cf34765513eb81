package mesh

import (
	"github.com/cockroachdb/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/xlab/linmath"
)

// LoadGLTF reads the positions of every triangle primitive of every mesh in
// a .gltf or .glb file, in file order, into a single mesh. Indices of later
// primitives are rebased by the number of vertices read before them and
// primitives without indices are drawn in vertex order.
func LoadGLTF(path string) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "parsing glTF")
	}

	return meshFromDocument(doc)
}

func meshFromDocument(doc *gltf.Document) (*Mesh, error) {
	var b builder

	for mi, m := range doc.Meshes {
		for pi, prim := range m.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				return nil, errors.Newf("mesh %d primitive %d: unsupported mode %d", mi, pi, prim.Mode)
			}

			posIdx, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				return nil, errors.Newf("mesh %d primitive %d has no positions", mi, pi)
			}

			positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %d primitive %d positions", mi, pi)
			}

			base := uint32(len(b.vertices))
			for _, p := range positions {
				b.vertices = append(b.vertices, Vertex{Position: linmath.Vec3{p[0], p[1], p[2]}})
			}

			if prim.Indices == nil {
				for i := range positions {
					b.indices = append(b.indices, base+uint32(i))
				}
				continue
			}

			indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %d primitive %d indices", mi, pi)
			}
			for _, idx := range indices {
				b.indices = append(b.indices, base+idx)
			}
		}
	}

	return b.mesh()
}
