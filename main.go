package main

import (
	"flag"
	"log"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vulkan-instancing/gpu"
	"vulkan-instancing/mesh"
	"vulkan-instancing/render"
	"vulkan-instancing/shaders"
	"vulkan-instancing/window"
)

const title = "Vulkan Instancing"

func init() {
	// This is needed to arrange that main() runs on main thread.
	// See documentation for functions that are only allowed to be called
	// from the main thread.
	runtime.LockOSThread()

	flag.BoolVar(&args.debug, "debug", false, "Enable Vulkan validation layers and frame stats")
	flag.IntVar(&args.width, "width", 800, "Initial window width")
	flag.IntVar(&args.height, "height", 600, "Initial window height")
	flag.IntVar(&args.instances, "instances", 6, "Number of instances drawn at start")
	flag.IntVar(&args.frames, "frames", 3, "Maximum number of frames in flight")
	flag.StringVar(&args.mesh, "mesh", "", "glTF, GLB or OBJ file to draw instead of the cube")
	flag.StringVar(&args.vert, "vert", shaders.DefaultVertexPath, "Compiled vertex shader")
	flag.StringVar(&args.frag, "frag", shaders.DefaultFragmentPath, "Compiled fragment shader")
	flag.DurationVar(&args.fenceTimeout, "fence-timeout", 0, "Give up waiting for a frame after this long, 0 waits forever")
}

var args struct {
	debug        bool
	width        int
	height       int
	instances    int
	frames       int
	mesh         string
	vert         string
	frag         string
	fenceTimeout time.Duration
}

func main() {
	flag.Parse()

	log.SetPrefix("[" + uuid.NewString()[:8] + "] ")

	app := &InstancingApp{
		width:  args.width,
		height: args.height,
	}
	if err := app.Run(); err != nil {
		log.Fatalf("ERROR: %s", err)
	}
}

// InstancingApp draws a grid of instances of one mesh.
type InstancingApp struct {
	width  int
	height int

	vertCode []byte
	fragCode []byte
	mesh     *mesh.Mesh

	window    *window.Window
	device    *gpu.Device
	swapchain *gpu.Swapchain
	pipeline  *gpu.Pipeline

	vertexBuffer *render.Allocation
	indexBuffer  *render.Allocation
	uniforms     *render.UniformBuffers

	descriptors    *gpu.Descriptors
	commandBuffers []render.CommandBuffer

	frames *render.FrameSync
	store  *render.Store
	loop   *render.Loop
}

// Run loads the assets, initialises Vulkan, draws until the window is closed
// and then releases everything.
func (a *InstancingApp) Run() error {
	if err := a.loadAssets(); err != nil {
		return errors.Wrap(err, "loadAssets")
	}

	if err := a.initWindow(); err != nil {
		return errors.Wrap(err, "initWindow")
	}
	defer a.window.Destroy()

	err := a.initVulkan()
	if err == nil {
		err = a.loop.Run(a.window)
	}
	a.cleanup()

	return err
}

func (a *InstancingApp) loadAssets() error {
	var g errgroup.Group

	g.Go(func() error {
		code, err := shaders.Load(args.vert)
		a.vertCode = code
		return err
	})
	g.Go(func() error {
		code, err := shaders.Load(args.frag)
		a.fragCode = code
		return err
	})
	g.Go(func() error {
		m, err := mesh.Load(args.mesh)
		a.mesh = m
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if args.debug {
		log.Printf("vertex shader %d bytes, fragment shader %d bytes, mesh %d vertices %d indices",
			len(a.vertCode), len(a.fragCode), len(a.mesh.Vertices), len(a.mesh.Indices))
	}

	return nil
}

func (a *InstancingApp) initWindow() error {
	win, err := window.New(a.width, a.height, title)
	if err != nil {
		return err
	}
	a.window = win
	return nil
}

func (a *InstancingApp) initVulkan() error {
	dev, err := gpu.NewDevice(a.window, gpu.DefaultConfig(title, args.debug))
	if err != nil {
		return errors.Wrap(err, "NewDevice")
	}
	a.device = dev

	steps := []struct {
		name string
		fn   func() error
	}{
		{"createSwapChain", a.createSwapChain},
		{"createGraphicsPipeline", a.createGraphicsPipeline},
		{"createMeshBuffers", a.createMeshBuffers},
		{"createUniformBuffers", a.createUniformBuffers},
		{"createDescriptorSets", a.createDescriptorSets},
		{"createCommandBuffers", a.createCommandBuffers},
		{"createSyncObjects", a.createSyncObjects},
		{"createInstances", a.createInstances},
		{"createLoop", a.createLoop},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return errors.Wrap(err, step.name)
		}
	}

	return nil
}

func (a *InstancingApp) createSwapChain() error {
	sc, err := gpu.NewSwapchain(a.device)
	if err != nil {
		return err
	}
	a.swapchain = sc
	return nil
}

func (a *InstancingApp) createGraphicsPipeline() error {
	p, err := gpu.NewPipeline(a.device, a.swapchain.RenderPass(), a.vertCode, a.fragCode)
	if err != nil {
		return err
	}
	a.pipeline = p
	return nil
}

func (a *InstancingApp) createMeshBuffers() error {
	alloc := render.NewAllocator(a.device)

	vb, err := alloc.CreateBufferWithData(a.mesh.VertexBytes(), render.BufferUsageVertex)
	if err != nil {
		return errors.Wrap(err, "vertex buffer")
	}
	a.vertexBuffer = vb

	ib, err := alloc.CreateBufferWithData(a.mesh.IndexBytes(), render.BufferUsageIndex)
	if err != nil {
		return errors.Wrap(err, "index buffer")
	}
	a.indexBuffer = ib

	return nil
}

func (a *InstancingApp) createUniformBuffers() error {
	ubs, err := render.NewUniformBuffers(render.NewAllocator(a.device), a.swapchain.ImageCount())
	if err != nil {
		return err
	}
	a.uniforms = ubs
	return nil
}

func (a *InstancingApp) createDescriptorSets() error {
	ds, err := gpu.NewDescriptors(a.device, a.pipeline, a.uniforms.Buffers())
	if err != nil {
		return err
	}
	a.descriptors = ds
	return nil
}

func (a *InstancingApp) createCommandBuffers() error {
	cbs, err := a.device.AllocateCommandBuffers(a.swapchain.ImageCount())
	if err != nil {
		return err
	}
	a.commandBuffers = cbs
	return nil
}

func (a *InstancingApp) createSyncObjects() error {
	frames, err := render.NewFrameSync(a.device, a.swapchain, args.frames)
	if err != nil {
		return err
	}
	a.frames = frames
	return nil
}

func (a *InstancingApp) createInstances() error {
	store, err := render.NewStore(render.NewAllocator(a.device), args.instances)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

func (a *InstancingApp) createLoop() error {
	recorder, err := render.NewRecorder(
		a.device,
		a.swapchain,
		a.swapchain.RenderPass(),
		a.pipeline.Handle(),
		a.pipeline.Layout(),
		render.ImageTargets{
			CommandBuffers: a.commandBuffers,
			DescriptorSets: a.descriptors.Sets(),
		},
	)
	if err != nil {
		return errors.Wrap(err, "NewRecorder")
	}

	loop, err := render.NewLoop(render.LoopConfig{
		Device:    a.device,
		Swapchain: a.swapchain,
		Store:     a.store,
		Frames:    a.frames,
		Recorder:  recorder,
		Uniforms:  a.uniforms,
		Geometry: render.Geometry{
			Vertices:   a.vertexBuffer.Buffer(),
			Indices:    a.indexBuffer.Buffer(),
			IndexCount: a.mesh.IndexCount(),
		},
		FenceTimeout: args.fenceTimeout,
		Debug:        args.debug,
	})
	if err != nil {
		return errors.Wrap(err, "NewLoop")
	}
	a.loop = loop

	return nil
}

// cleanup destroys whatever initVulkan managed to create, in reverse order.
func (a *InstancingApp) cleanup() {
	if a.device == nil {
		return
	}

	if err := a.device.WaitIdle(); err != nil {
		log.Printf("waiting for the device before cleanup: %s", err)
	}

	if a.store != nil {
		a.store.Close()
	}
	if a.frames != nil {
		a.frames.Close()
	}
	if a.commandBuffers != nil {
		a.device.FreeCommandBuffers(a.commandBuffers)
	}
	if a.descriptors != nil {
		a.descriptors.Destroy()
	}
	if a.uniforms != nil {
		a.uniforms.Close()
	}
	if a.indexBuffer != nil {
		a.indexBuffer.Destroy()
	}
	if a.vertexBuffer != nil {
		a.vertexBuffer.Destroy()
	}
	if a.pipeline != nil {
		a.pipeline.Destroy()
	}
	if a.swapchain != nil {
		a.swapchain.Destroy()
	}

	a.device.Destroy()
}
