package mesh

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/xlab/linmath"
)

// LoadOBJ reads a Wavefront OBJ file. Polygons are fan triangulated and
// vertices are shared by OBJ position index. Materials are ignored.
func LoadOBJ(path string) (*Mesh, error) {
	meshFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer meshFile.Close()

	return DecodeOBJ(meshFile)
}

// DecodeOBJ is LoadOBJ for an already opened file.
func DecodeOBJ(r io.Reader) (*Mesh, error) {
	// The decoder insists on a material library; an empty one is enough.
	decoder, err := obj.DecodeReader(r, strings.NewReader(""))
	if err != nil {
		return nil, errors.Wrap(err, "decoding OBJ")
	}

	var b builder
	uniqueVertices := make(map[int]uint32)

	addVertex := func(face obj.Face, faceIndex int) error {
		vertInd := face.Vertices[faceIndex]
		index, vertexExists := uniqueVertices[vertInd]

		if !vertexExists {
			if vertInd < 0 || vertInd*3+2 >= len(decoder.Vertices) {
				return errors.Newf("face refers to missing vertex %d", vertInd)
			}

			index = uint32(len(b.vertices))
			b.vertices = append(b.vertices, Vertex{Position: linmath.Vec3{
				decoder.Vertices[vertInd*3],
				decoder.Vertices[vertInd*3+1],
				decoder.Vertices[vertInd*3+2],
			}})
			uniqueVertices[vertInd] = index
		}

		b.indices = append(b.indices, index)
		return nil
	}

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range []int{0, i - 1, i} {
					if err := addVertex(face, corner); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return b.mesh()
}
