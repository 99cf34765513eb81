// Package mesh provides the geometry every instance draws: the built in cube
// or a mesh imported from a glTF or OBJ file.
package mesh

import (
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/xlab/linmath"

	"vulkan-instancing/unsafer"
)

// Vertex is the per vertex input of the pipeline.
type Vertex struct {
	Position linmath.Vec3
}

// VertexSize is the stride of the vertex buffer.
const VertexSize = unsafe.Sizeof(Vertex{})

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint16
}

// ErrTooManyVertices is returned for meshes that cannot be addressed with
// 16 bit indices.
var ErrTooManyVertices = errors.New("mesh does not fit 16 bit indices")

// Cube returns the unit cube centred on the origin: 8 corners, 12 triangles.
func Cube() *Mesh {
	return &Mesh{
		Vertices: []Vertex{
			// front
			{linmath.Vec3{-0.5, -0.5, 0.5}},
			{linmath.Vec3{0.5, -0.5, 0.5}},
			{linmath.Vec3{0.5, 0.5, 0.5}},
			{linmath.Vec3{-0.5, 0.5, 0.5}},
			// back
			{linmath.Vec3{-0.5, -0.5, -0.5}},
			{linmath.Vec3{0.5, -0.5, -0.5}},
			{linmath.Vec3{0.5, 0.5, -0.5}},
			{linmath.Vec3{-0.5, 0.5, -0.5}},
		},
		Indices: []uint16{
			0, 1, 2, 2, 3, 0, // front
			1, 5, 6, 6, 2, 1, // right
			5, 4, 7, 7, 6, 5, // back
			4, 0, 3, 3, 7, 4, // left
			3, 2, 6, 6, 7, 3, // top
			0, 1, 5, 5, 4, 0, // bottom
		},
	}
}

// Load imports the mesh at path. The format is picked by extension: .gltf and
// .glb are read as glTF, .obj as Wavefront OBJ. An empty path yields the cube.
func Load(path string) (*Mesh, error) {
	if path == "" {
		return Cube(), nil
	}

	var (
		m   *Mesh
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
		m, err = LoadGLTF(path)
	case ".obj":
		m, err = LoadOBJ(path)
	default:
		return nil, errors.Newf("unsupported mesh format %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}

	if err := m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return m, nil
}

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() uint32 {
	return uint32(len(m.Indices))
}

// Validate checks that the mesh is a non-empty triangle list whose indices
// all refer to existing vertices.
func (m *Mesh) Validate() error {
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return errors.New("mesh has no geometry")
	}
	if len(m.Indices)%3 != 0 {
		return errors.Newf("%d indices do not form triangles", len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return errors.Newf("index %d refers to vertex %d of %d", i, idx, len(m.Vertices))
		}
	}
	return nil
}

// VertexBytes returns the vertex buffer contents. It aliases m.Vertices.
func (m *Mesh) VertexBytes() []byte {
	return unsafer.SliceToBytes(m.Vertices)
}

// IndexBytes returns the index buffer contents. It aliases m.Indices.
func (m *Mesh) IndexBytes() []byte {
	return unsafer.SliceToBytes(m.Indices)
}

// builder appends vertices and 32 bit indices and narrows them once done.
type builder struct {
	vertices []Vertex
	indices  []uint32
}

func (b *builder) mesh() (*Mesh, error) {
	if len(b.vertices) > 1<<16 {
		return nil, errors.Wrapf(ErrTooManyVertices, "%d vertices", len(b.vertices))
	}

	indices := make([]uint16, len(b.indices))
	for i, idx := range b.indices {
		if idx > 0xffff {
			return nil, errors.Wrapf(ErrTooManyVertices, "index %d", idx)
		}
		indices[i] = uint16(idx)
	}

	return &Mesh{Vertices: b.vertices, Indices: indices}, nil
}
