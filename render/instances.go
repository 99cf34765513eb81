package render

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/xlab/linmath"

	"vulkan-instancing/unsafer"
)

// InstanceData is the per instance vertex input: one column-major model
// matrix, read by the vertex shader as four vec4 attributes.
type InstanceData struct {
	Model linmath.Mat4x4
}

// InstanceDataSize is the stride of the instance buffer.
const InstanceDataSize = uint64(unsafe.Sizeof(InstanceData{}))

// Store owns the instances and their mirror in a host visible vertex buffer.
//
// Indices are not stable: Remove moves the last instance into the removed
// slot. The host slice always holds exactly Count() elements and after Sync or
// Append the mirror is exactly Count()*InstanceDataSize bytes.
type Store struct {
	alloc     *Allocator
	instances []InstanceData
	buffer    *Allocation
}

// NewStore lays out count instances in a grid and uploads them.
func NewStore(alloc *Allocator, count int) (*Store, error) {
	if count < 1 {
		return nil, errors.Newf("initial instance count must be at least 1, got %d", count)
	}

	s := &Store{
		alloc:     alloc,
		instances: LayoutGrid(count),
	}

	if err := s.recreateBuffer(); err != nil {
		return nil, errors.Wrap(err, "creating instance buffer")
	}
	if err := s.buffer.Write(s.bytes()); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "uploading instances")
	}

	return s, nil
}

// Count returns the number of instances.
func (s *Store) Count() int {
	return len(s.instances)
}

// Instances returns a copy of the instance data.
func (s *Store) Instances() []InstanceData {
	out := make([]InstanceData, len(s.instances))
	copy(out, s.instances)
	return out
}

// At returns the model matrix of instance i.
func (s *Store) At(i int) linmath.Mat4x4 {
	return s.instances[i].Model
}

// Buffer returns the current instance buffer. The handle changes whenever the
// buffer is recreated.
func (s *Store) Buffer() Buffer {
	if s.buffer == nil {
		return 0
	}
	return s.buffer.Buffer()
}

// ByteSize returns the size of the current instance buffer.
func (s *Store) ByteSize() uint64 {
	if s.buffer == nil {
		return 0
	}
	return s.buffer.Size()
}

// Append adds one instance. It is placed in the grid cell AppendSlot gives for
// the previous population and then offset by the drift of t. The instance
// buffer is recreated at the new size, which waits for the device to go idle
// first so no submitted command buffer still reads the old one.
func (s *Store) Append(t Transform) error {
	previous := len(s.instances)

	grown := make([]InstanceData, previous+1)
	copy(grown, s.instances)

	row, col := AppendSlot(previous)
	model := &grown[previous].Model
	model.Identity()
	model.TranslateInPlace(GridTranslation(row, col))
	model.TranslateInPlace(t.TranslateX, t.TranslateY, 0)

	old := s.instances
	s.instances = grown

	if err := s.recreateBuffer(); err != nil {
		s.instances = old
		return errors.Wrap(err, "growing instance buffer")
	}

	return s.buffer.Write(s.bytes())
}

// Remove deletes instance index by moving the last instance into its place.
// The order of the remaining instances is not preserved. The instance buffer
// is left untouched; call Sync before the next submission.
func (s *Store) Remove(index int) error {
	n := len(s.instances)
	if n <= 1 {
		return ErrLastInstance
	}
	if index < 0 || index >= n {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d, count %d", index, n)
	}

	if index < n-1 {
		s.instances[index] = s.instances[n-1]
	}
	s.instances = s.instances[: n-1 : n-1]

	return nil
}

// ApplyDrift right-multiplies a translation by (x, y, 0) into every model
// matrix.
func (s *Store) ApplyDrift(x, y float32) {
	if x == 0 && y == 0 {
		return
	}
	for i := range s.instances {
		s.instances[i].Model.TranslateInPlace(x, y, 0)
	}
}

// RescaleAll right-multiplies a uniform scale into every model matrix. Calls
// compound.
func (s *Store) RescaleAll(factor float32) {
	for i := range s.instances {
		m := &s.instances[i].Model
		m.ScaleAniso(m, factor, factor, factor)
	}
}

// Sync copies every instance into the instance buffer. The buffer is
// recreated first when its size no longer matches the instance count.
func (s *Store) Sync() error {
	if s.buffer == nil || s.buffer.Size() != s.wantSize() {
		if err := s.recreateBuffer(); err != nil {
			return errors.Wrap(err, "resizing instance buffer")
		}
	}

	return s.buffer.Write(s.bytes())
}

// Close destroys the instance buffer. The device must be idle.
func (s *Store) Close() {
	s.buffer.Destroy()
	s.buffer = nil
}

func (s *Store) wantSize() uint64 {
	return InstanceDataSize * uint64(len(s.instances))
}

func (s *Store) bytes() []byte {
	return unsafer.SliceToBytes(s.instances)
}

// recreateBuffer replaces the instance buffer with one sized for the current
// instances. The old buffer is kept when the new one cannot be created.
func (s *Store) recreateBuffer() error {
	if s.buffer != nil {
		if err := s.alloc.Device().WaitIdle(); err != nil {
			return errors.Wrap(err, "waiting for device idle")
		}
	}

	buffer, err := s.alloc.CreateBuffer(s.wantSize(), BufferUsageVertex, HostMemory)
	if err != nil {
		return err
	}

	s.buffer.Destroy()
	s.buffer = buffer

	return nil
}
