package render

// KeyStates holds level-triggered key states: a key reads true for every
// frame it is held, so discrete actions fire again on each of those frames.
type KeyStates struct {
	Forward bool
	Back    bool
	Left    bool
	Right   bool

	Add       bool
	Remove    bool
	ScaleUp   bool
	ScaleDown bool
}

// InputState is written by the window and read once per frame by the loop.
type InputState struct {
	Width   int
	Height  int
	Resized bool

	Keys KeyStates
}

// NewInputState returns the input state of a window of the given size.
func NewInputState(width, height int) *InputState {
	return &InputState{Width: width, Height: height}
}

// SetSize records a new framebuffer size and marks the window as resized.
func (in *InputState) SetSize(width, height int) {
	in.Width = width
	in.Height = height
	in.Resized = true
}

// Minimized reports whether the framebuffer has no area.
func (in *InputState) Minimized() bool {
	return in.Width <= 0 || in.Height <= 0
}

// ConsumeResize returns the new size and clears the resized flag. ok is false
// when the window was not resized since the last call.
func (in *InputState) ConsumeResize() (size Extent, ok bool) {
	if !in.Resized {
		return Extent{}, false
	}
	in.Resized = false
	return Extent{Width: uint32(max(in.Width, 0)), Height: uint32(max(in.Height, 0))}, true
}
