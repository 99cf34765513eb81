package render

import (
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/xlab/linmath"
)

// Window is the windowing side of the loop.
type Window interface {
	ShouldClose() bool
	PollEvents()
	Input() *InputState
}

// Controls are the constants of the keyboard controls.
type Controls struct {
	// MoveStep is added to the drift per frame a movement key is held.
	MoveStep float32
	// ForwardScale multiplies the transform scale per frame forward is held.
	ForwardScale float32
	RescaleUp    float32
	RescaleDown  float32
	Friction     float32
}

// DefaultControls returns the controls of the demo.
func DefaultControls() Controls {
	return Controls{
		MoveStep:     0.01,
		ForwardScale: 1.2,
		RescaleUp:    1.02,
		RescaleDown:  0.98,
		Friction:     DefaultFriction,
	}
}

// Geometry is the mesh every instance draws.
type Geometry struct {
	Vertices   Buffer
	Indices    Buffer
	IndexCount uint32
}

// LoopConfig wires a Loop to its collaborators. All fields but Clock, Camera,
// Controls, FenceTimeout and Debug are required.
type LoopConfig struct {
	Device    MemoryDevice
	Swapchain Swapchain
	Store     *Store
	Frames    *FrameSync
	Recorder  *Recorder
	Uniforms  *UniformBuffers
	Geometry  Geometry

	Camera   *Camera
	Controls *Controls

	// FenceTimeout bounds every wait for a frame. Zero waits forever.
	FenceTimeout time.Duration

	// Clock returns the time since an arbitrary fixed point. Defaults to
	// hrtime.Now.
	Clock func() time.Duration

	Debug bool
}

// Loop drives one frame per Step.
type Loop struct {
	dev       MemoryDevice
	swapchain Swapchain
	store     *Store
	frames    *FrameSync
	recorder  *Recorder
	uniforms  *UniformBuffers
	geometry  Geometry

	camera   Camera
	controls Controls
	timeout  time.Duration
	clock    func() time.Duration
	debug    bool

	transform  Transform
	view       linmath.Mat4x4
	projection linmath.Mat4x4

	stats *FrameStats
}

// NewLoop validates cfg and returns a loop ready to step.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	switch {
	case cfg.Device == nil:
		return nil, errors.New("loop needs a device")
	case cfg.Swapchain == nil:
		return nil, errors.New("loop needs a swapchain")
	case cfg.Store == nil:
		return nil, errors.New("loop needs an instance store")
	case cfg.Frames == nil:
		return nil, errors.New("loop needs frame synchronisation")
	case cfg.Recorder == nil:
		return nil, errors.New("loop needs a command recorder")
	case cfg.Uniforms == nil:
		return nil, errors.New("loop needs uniform buffers")
	}

	if cfg.Uniforms.Len() != cfg.Swapchain.ImageCount() {
		return nil, errors.Newf("%d uniform buffers for %d swapchain images",
			cfg.Uniforms.Len(), cfg.Swapchain.ImageCount())
	}

	l := &Loop{
		dev:       cfg.Device,
		swapchain: cfg.Swapchain,
		store:     cfg.Store,
		frames:    cfg.Frames,
		recorder:  cfg.Recorder,
		uniforms:  cfg.Uniforms,
		geometry:  cfg.Geometry,
		camera:    DefaultCamera(),
		controls:  DefaultControls(),
		timeout:   cfg.FenceTimeout,
		clock:     cfg.Clock,
		debug:     cfg.Debug,
		transform: NewTransform(),
		stats:     NewFrameStats(),
	}
	if cfg.Camera != nil {
		l.camera = *cfg.Camera
	}
	if cfg.Controls != nil {
		l.controls = *cfg.Controls
	}
	if l.clock == nil {
		l.clock = hrtime.Now
	}

	l.view = l.camera.View()
	l.projection = l.camera.Projection(l.swapchain.Extent().Aspect())

	return l, nil
}

// Transform returns the current drift transform.
func (l *Loop) Transform() Transform {
	return l.transform
}

// CurrentFrame returns the frame slot the next Step will use.
func (l *Loop) CurrentFrame() int {
	return l.frames.Current()
}

// Projection returns the projection matrix currently uploaded.
func (l *Loop) Projection() linmath.Mat4x4 {
	return l.projection
}

// Run steps the loop until the window asks to close, then waits for the
// device to finish.
func (l *Loop) Run(win Window) error {
	log.Printf("main loop!\n")

	for !win.ShouldClose() {
		win.PollEvents()

		if err := l.Step(win.Input()); err != nil {
			return errors.Wrap(err, "error drawing a frame")
		}
	}

	return errors.Wrap(l.dev.WaitIdle(), "waiting for device idle")
}

// Step renders one frame for the input in.
func (l *Loop) Step(in *InputState) error {
	now := l.clock()

	if err := l.applyKeys(in.Keys); err != nil {
		return err
	}

	l.transform.ApplyFriction(l.controls.Friction)
	l.store.ApplyDrift(l.transform.TranslateX, l.transform.TranslateY)

	if in.Minimized() {
		return nil
	}

	imageIndex, err := l.frames.Acquire(l.timeout)
	if errors.Is(err, ErrOutOfDate) {
		return l.recreateSwapchain()
	} else if err != nil {
		return err
	}

	if size, ok := in.ConsumeResize(); ok {
		l.projection = l.camera.Projection(size.Aspect())
	}

	ubo := UniformBufferObject{
		Time:       float32(now.Seconds()),
		View:       l.view,
		Projection: l.projection,
	}
	if err := l.uniforms.Update(imageIndex, &ubo); err != nil {
		return errors.Wrap(err, "updating uniform buffer")
	}

	if err := l.store.Sync(); err != nil {
		return errors.Wrap(err, "syncing instances")
	}

	err = l.recorder.Record(imageIndex, DrawCall{
		Vertices:      l.geometry.Vertices,
		Indices:       l.geometry.Indices,
		Instances:     l.store.Buffer(),
		IndexCount:    l.geometry.IndexCount,
		InstanceCount: uint32(l.store.Count()),
	})
	if err != nil {
		return errors.Wrap(err, "recording command buffer")
	}

	commandBuffer, err := l.recorder.CommandBuffer(imageIndex)
	if err != nil {
		return err
	}
	if err := l.frames.Submit(commandBuffer); err != nil {
		return err
	}

	presentErr := l.frames.Present(imageIndex)
	l.frames.Advance()

	if l.debug {
		if ms, fps, ok := l.stats.Tick(now); ok {
			log.Printf("%.3f ms/frame, %.0f frames/sec, %d instances", ms, fps, l.store.Count())
		}
	}

	if errors.Is(presentErr, ErrOutOfDate) {
		return l.recreateSwapchain()
	}
	return presentErr
}

// applyKeys turns held keys into drift and fires the discrete actions. The
// actions are level-triggered: holding a key repeats its action every frame.
func (l *Loop) applyKeys(keys KeyStates) error {
	c := l.controls
	t := &l.transform

	if keys.Forward {
		t.TranslateY += c.MoveStep
		t.Scale *= c.ForwardScale
	}
	if keys.Back {
		t.TranslateY -= c.MoveStep
	}
	if keys.Left {
		t.TranslateX -= c.MoveStep
	}
	if keys.Right {
		t.TranslateX += c.MoveStep
	}

	if keys.Remove && l.store.Count() > 1 {
		if err := l.store.Remove(l.store.Count() - 1); err != nil {
			return errors.Wrap(err, "removing instance")
		}
		if l.debug {
			log.Printf("removed instance, %d left", l.store.Count())
		}
	}

	if keys.Add {
		if err := l.store.Append(*t); err != nil {
			return errors.Wrap(err, "adding instance")
		}
		if l.debug {
			log.Printf("added instance, %d total", l.store.Count())
		}
	}

	if keys.ScaleUp {
		l.store.RescaleAll(c.RescaleUp)
	}
	if keys.ScaleDown {
		l.store.RescaleAll(c.RescaleDown)
	}

	return nil
}

func (l *Loop) recreateSwapchain() error {
	if err := l.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for device idle")
	}

	if err := l.swapchain.Recreate(); err != nil {
		return errors.Wrap(err, "recreateSwapChain")
	}
	l.frames.ForgetImages()

	l.projection = l.camera.Projection(l.swapchain.Extent().Aspect())
	return nil
}
