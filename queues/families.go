package queues

import (
	"vulkan-instancing/optional"
)

// FamilyIndices holds the indexes of Vulkan queue families needed by the renderer.
type FamilyIndices struct {

	// Graphics is the index of the graphics queue family.
	Graphics optional.Optional[uint32]

	// Present is the index of the queue family used for presenting to the drawing
	// surface.
	Present optional.Optional[uint32]
}

// IsComplete returns true if all families have been set.
func (f *FamilyIndices) IsComplete() bool {
	return f.Graphics.HasValue() && f.Present.HasValue()
}

// Shared reports whether graphics and presentation happen on the same family.
// Swapchain images can use exclusive sharing mode in that case.
func (f *FamilyIndices) Shared() bool {
	return f.IsComplete() && f.Graphics.Get() == f.Present.Get()
}

// Unique returns the distinct family indices which were set, graphics first.
// A logical device must request each family exactly once.
func (f *FamilyIndices) Unique() []uint32 {
	var out []uint32
	if f.Graphics.HasValue() {
		out = append(out, f.Graphics.Get())
	}
	if f.Present.HasValue() && !f.Shared() {
		out = append(out, f.Present.Get())
	}
	return out
}
