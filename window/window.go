// Package window wraps the GLFW window the renderer draws into.
package window

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"

	"vulkan-instancing/render"
)

// Window is a GLFW window without a client API. It satisfies both
// render.Window and gpu.Window.
type Window struct {
	win   *glfw.Window
	input *render.InputState
}

// New initialises GLFW and opens a window. Must be called from the main
// thread.
func New(width, height int, title string) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw.Init")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "creating window")
	}

	fbWidth, fbHeight := win.GetFramebufferSize()
	w := &Window{
		win:   win,
		input: render.NewInputState(fbWidth, fbHeight),
	}

	win.SetFramebufferSizeCallback(w.frameBufferResizeCallback)
	win.SetKeyCallback(w.keyCallback)

	return w, nil
}

func (w *Window) frameBufferResizeCallback(_ *glfw.Window, width, height int) {
	w.input.SetSize(width, height)
}

func (w *Window) keyCallback(
	gw *glfw.Window,
	key glfw.Key,
	_ int,
	action glfw.Action,
	_ glfw.ModifierKey,
) {
	if applyKey(&w.input.Keys, key, action) {
		gw.SetShouldClose(true)
	}
}

// applyKey records a key event in keys. It returns true when the event asks
// for the window to close.
func applyKey(keys *render.KeyStates, key glfw.Key, action glfw.Action) bool {
	if action == glfw.Repeat {
		return false
	}
	pressed := action == glfw.Press

	switch key {
	case glfw.KeyW:
		keys.Forward = pressed
	case glfw.KeyS:
		keys.Back = pressed
	case glfw.KeyA:
		keys.Left = pressed
	case glfw.KeyD:
		keys.Right = pressed
	case glfw.KeySpace:
		keys.Add = pressed
	case glfw.KeyBackspace:
		keys.Remove = pressed
	case glfw.Key1:
		keys.ScaleUp = pressed
	case glfw.Key2:
		keys.ScaleDown = pressed
	case glfw.KeyEscape:
		return pressed
	}

	return false
}

// Input returns the state written by the window callbacks.
func (w *Window) Input() *render.InputState {
	return w.input
}

func (w *Window) ShouldClose() bool {
	return w.win.ShouldClose()
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

func (w *Window) GetFramebufferSize() (width, height int) {
	return w.win.GetFramebufferSize()
}

func (w *Window) GetRequiredInstanceExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

func (w *Window) CreateWindowSurface(
	instance interface{},
	allocCallbacks unsafe.Pointer,
) (uintptr, error) {
	return w.win.CreateWindowSurface(instance, allocCallbacks)
}

// VulkanProcAddr returns the vkGetInstanceProcAddr GLFW found.
func (w *Window) VulkanProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// Destroy closes the window and terminates GLFW.
func (w *Window) Destroy() {
	w.win.Destroy()
	glfw.Terminate()
}
