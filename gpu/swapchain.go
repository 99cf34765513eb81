package gpu

import (
	"cmp"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-instancing/render"
)

// swapchainSupportDetails describes a present surface.
type swapchainSupportDetails struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

func querySwapchainSupport(
	device vk.PhysicalDevice,
	surface vk.Surface,
) (swapchainSupportDetails, error) {
	details := swapchainSupportDetails{}

	var capabilities vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, &capabilities)
	if err := vk.Error(res); err != nil {
		return details, errors.Wrap(err, "failed to query device surface capabilities")
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()

	details.capabilities = capabilities

	var formatCount uint32
	res = vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil)
	if err := vk.Error(res); err != nil {
		return details, errors.Wrap(err, "failed to query device surface formats")
	}

	if formatCount != 0 {
		formats := make([]vk.SurfaceFormat, formatCount)
		vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, formats)
		for _, format := range formats {
			format.Deref()
			details.formats = append(details.formats, format)
		}
	}

	var presentModeCount uint32
	res = vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &presentModeCount, nil)
	if err := vk.Error(res); err != nil {
		return details, errors.Wrap(err, "failed to query device surface present modes")
	}

	if presentModeCount != 0 {
		presentModes := make([]vk.PresentMode, presentModeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &presentModeCount, presentModes)
		details.presentModes = presentModes
	}

	return details, nil
}

// Swapchain owns the swapchain, its image views and framebuffers, and the
// render pass they are compatible with. It implements render.Presenter and
// render.Swapchain.
type Swapchain struct {
	dev *Device

	swapchain    vk.Swapchain
	images       []vk.Image
	imageViews   []vk.ImageView
	framebuffers []render.Framebuffer
	format       vk.Format
	extent       vk.Extent2D

	renderPass render.RenderPass
}

var (
	_ render.Presenter = (*Swapchain)(nil)
	_ render.Swapchain = (*Swapchain)(nil)
)

// NewSwapchain creates the swapchain for the device's surface together with a
// render pass for its format.
func NewSwapchain(dev *Device) (*Swapchain, error) {
	s := &Swapchain{
		dev:       dev,
		swapchain: vk.NullSwapchain,
	}

	if err := s.create(); err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "createSwapChain")
	}

	renderPass, err := dev.createRenderPass(s.format)
	if err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "createRenderPass")
	}
	s.renderPass = renderPass

	if err := s.createFramebuffers(); err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "createFramebuffers")
	}

	return s, nil
}

// RenderPass returns the render pass the framebuffers were created for.
func (s *Swapchain) RenderPass() render.RenderPass {
	return s.renderPass
}

func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

func (s *Swapchain) Extent() render.Extent {
	return render.Extent{Width: s.extent.Width, Height: s.extent.Height}
}

func (s *Swapchain) Framebuffer(image uint32) render.Framebuffer {
	return s.framebuffers[image]
}

// Recreate waits until the window has a non-empty framebuffer, then rebuilds
// the swapchain, its image views and framebuffers. The render pass is kept.
func (s *Swapchain) Recreate() error {
	for {
		width, height := s.dev.window.GetFramebufferSize()
		if width != 0 && height != 0 {
			break
		}

		s.dev.window.WaitEvents()
	}

	if err := s.dev.WaitIdle(); err != nil {
		return err
	}

	oldCount := len(s.images)
	s.cleanup()

	if err := s.create(); err != nil {
		return errors.Wrap(err, "createSwapChain")
	}
	if len(s.images) != oldCount {
		return errors.Newf("swapchain image count changed from %d to %d", oldCount, len(s.images))
	}
	if err := s.createFramebuffers(); err != nil {
		return errors.Wrap(err, "createFramebuffers")
	}

	return nil
}

// Destroy releases everything the swapchain owns.
func (s *Swapchain) Destroy() {
	s.cleanup()

	if renderPass, ok := s.dev.renderPasses.remove(s.renderPass); ok {
		vk.DestroyRenderPass(s.dev.device, renderPass, nil)
	}
}

func (s *Swapchain) AcquireNextImage(sem render.Semaphore, timeout time.Duration) (uint32, error) {
	var imageIndex uint32
	res := vk.AcquireNextImage(
		s.dev.device,
		s.swapchain,
		timeoutNanos(timeout),
		s.dev.semaphores.get(sem),
		vk.Fence(vk.NullHandle),
		&imageIndex,
	)
	if res == vk.Suboptimal {
		return imageIndex, nil
	}
	if err := resultError(res); err != nil {
		return 0, err
	}

	return imageIndex, nil
}

func (s *Swapchain) Submit(sub render.Submission) error {
	d := s.dev
	signalSemaphores := []vk.Semaphore{
		d.semaphores.get(sub.Signal),
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{d.semaphores.get(sub.Wait)},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{d.commandBuffers.get(sub.CommandBuffer)},
		PSignalSemaphores:    signalSemaphores,
		SignalSemaphoreCount: uint32(len(signalSemaphores)),
	}

	res := vk.QueueSubmit(
		d.graphicsQueue,
		1,
		[]vk.SubmitInfo{submitInfo},
		d.fences.get(sub.Fence),
	)
	return resultError(res)
}

func (s *Swapchain) Present(image uint32, wait render.Semaphore) error {
	waitSemaphores := []vk.Semaphore{s.dev.semaphores.get(wait)}
	swapChains := []vk.Swapchain{s.swapchain}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waitSemaphores)),
		PWaitSemaphores:    waitSemaphores,
		SwapchainCount:     uint32(len(swapChains)),
		PSwapchains:        swapChains,
		PImageIndices:      []uint32{image},
	}

	return resultError(vk.QueuePresent(s.dev.presentQueue, &presentInfo))
}

func (s *Swapchain) create() error {
	d := s.dev

	support, err := querySwapchainSupport(d.physicalDevice, d.surface)
	if err != nil {
		return err
	}

	surfaceFormat := chooseSwapSurfaceFormat(support.formats)
	presentMode := chooseSwapPresentMode(support.presentModes)
	extent := s.chooseSwapExtent(support.capabilities)

	imageCount := support.capabilities.MinImageCount + 1
	if support.capabilities.MaxImageCount > 0 &&
		imageCount > support.capabilities.MaxImageCount {
		imageCount = support.capabilities.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    imageCount,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageFormat:      surfaceFormat.Format,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}

	if d.families.Shared() {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	} else {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{
			d.families.Graphics.Get(),
			d.families.Present.Get(),
		}
	}

	var swapchain vk.Swapchain
	res := vk.CreateSwapchain(d.device, &createInfo, nil, &swapchain)
	if err := vk.Error(res); err != nil {
		return errors.Wrap(err, "failed to create swap chain")
	}
	s.swapchain = swapchain

	var imagesCount uint32
	vk.GetSwapchainImages(d.device, s.swapchain, &imagesCount, nil)

	images := make([]vk.Image, imagesCount)
	vk.GetSwapchainImages(d.device, s.swapchain, &imagesCount, images)

	s.images = images
	s.format = surfaceFormat.Format
	s.extent = extent

	return s.createImageViews()
}

func (s *Swapchain) createImageViews() error {
	for i, image := range s.images {
		createInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   s.format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}

		var imageView vk.ImageView
		res := vk.CreateImageView(s.dev.device, &createInfo, nil, &imageView)
		if err := vk.Error(res); err != nil {
			return errors.Wrapf(err, "failed to create image view %d", i)
		}

		s.imageViews = append(s.imageViews, imageView)
	}

	return nil
}

func (s *Swapchain) createFramebuffers() error {
	d := s.dev
	s.framebuffers = make([]render.Framebuffer, 0, len(s.imageViews))

	for i, imageView := range s.imageViews {
		frameBufferInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      d.renderPasses.get(s.renderPass),
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{imageView},
			Width:           s.extent.Width,
			Height:          s.extent.Height,
			Layers:          1,
		}

		var frameBuffer vk.Framebuffer
		res := vk.CreateFramebuffer(d.device, &frameBufferInfo, nil, &frameBuffer)
		if err := vk.Error(res); err != nil {
			return errors.Wrapf(err, "failed to create frame buffer %d", i)
		}

		s.framebuffers = append(s.framebuffers, d.framebuffers.add(frameBuffer))
	}

	return nil
}

// cleanup destroys the framebuffers, image views and the swapchain itself.
func (s *Swapchain) cleanup() {
	d := s.dev

	for _, fb := range s.framebuffers {
		if frameBuffer, ok := d.framebuffers.remove(fb); ok {
			vk.DestroyFramebuffer(d.device, frameBuffer, nil)
		}
	}
	s.framebuffers = nil

	for _, imageView := range s.imageViews {
		vk.DestroyImageView(d.device, imageView, nil)
	}
	s.imageViews = nil

	if s.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(d.device, s.swapchain, nil)
		s.swapchain = vk.NullSwapchain
	}
	s.images = nil
}

func chooseSwapSurfaceFormat(availableFormats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == vk.FormatB8g8r8a8Srgb &&
			format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

func chooseSwapPresentMode(available []vk.PresentMode) vk.PresentMode {
	for _, mode := range available {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}

	return vk.PresentModeFifo
}

func (s *Swapchain) chooseSwapExtent(capabilities vk.SurfaceCapabilities) vk.Extent2D {
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		return capabilities.CurrentExtent
	}

	width, height := s.dev.window.GetFramebufferSize()

	return vk.Extent2D{
		Width: clamp(
			uint32(width),
			capabilities.MinImageExtent.Width,
			capabilities.MaxImageExtent.Width,
		),
		Height: clamp(
			uint32(height),
			capabilities.MinImageExtent.Height,
			capabilities.MaxImageExtent.Height,
		),
	}
}

func clamp[T cmp.Ordered](val, min, max T) T {
	if val < min {
		val = min
	}
	if val > max {
		val = max
	}
	return val
}
