package gpu

import (
	"log"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-instancing/queues"
	"vulkan-instancing/render"
)

// Window is what the backend needs from the windowing system.
type Window interface {
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
	GetRequiredInstanceExtensions() []string
	GetFramebufferSize() (width, height int)
	// VulkanProcAddr returns the vkGetInstanceProcAddr of the loader.
	VulkanProcAddr() unsafe.Pointer
	// WaitEvents blocks until the window system has events to process.
	WaitEvents()
}

// Config controls device creation.
type Config struct {
	AppName string

	// Debug enables the validation layers and logs device selection.
	Debug bool

	ValidationLayers []string
	DeviceExtensions []string
}

// DefaultConfig returns the configuration the renderer needs.
func DefaultConfig(appName string, debug bool) Config {
	return Config{
		AppName: appName,
		Debug:   debug,
		ValidationLayers: []string{
			"VK_LAYER_KHRONOS_validation\x00",
		},
		DeviceExtensions: []string{
			vk.KhrSwapchainExtensionName + "\x00",
		},
	}
}

// Device owns the Vulkan instance, surface and logical device. It implements
// render.MemoryDevice, render.SyncDevice and render.CommandDevice on top of
// them.
type Device struct {
	cfg    Config
	window Window

	instance       vk.Instance
	surface        vk.Surface
	physicalDevice vk.PhysicalDevice
	device         vk.Device

	families      queues.FamilyIndices
	graphicsQueue vk.Queue
	presentQueue  vk.Queue

	memoryTypes []render.MemoryType

	commandPool vk.CommandPool

	buffers         handleTable[render.Buffer, vk.Buffer]
	memories        handleTable[render.Memory, vk.DeviceMemory]
	semaphores      handleTable[render.Semaphore, vk.Semaphore]
	fences          handleTable[render.Fence, vk.Fence]
	commandBuffers  handleTable[render.CommandBuffer, vk.CommandBuffer]
	descriptorSets  handleTable[render.DescriptorSet, vk.DescriptorSet]
	framebuffers    handleTable[render.Framebuffer, vk.Framebuffer]
	renderPasses    handleTable[render.RenderPass, vk.RenderPass]
	pipelines       handleTable[render.Pipeline, vk.Pipeline]
	pipelineLayouts handleTable[render.PipelineLayout, vk.PipelineLayout]
}

var (
	_ render.MemoryDevice  = (*Device)(nil)
	_ render.SyncDevice    = (*Device)(nil)
	_ render.CommandDevice = (*Device)(nil)
)

// NewDevice initialises Vulkan and creates a logical device able to render
// to and present on window.
func NewDevice(window Window, cfg Config) (*Device, error) {
	d := &Device{
		cfg:            cfg,
		window:         window,
		physicalDevice: vk.PhysicalDevice(vk.NullHandle),
		device:         vk.Device(vk.NullHandle),
		surface:        vk.NullSurface,

		buffers:         newHandleTable[render.Buffer, vk.Buffer](),
		memories:        newHandleTable[render.Memory, vk.DeviceMemory](),
		semaphores:      newHandleTable[render.Semaphore, vk.Semaphore](),
		fences:          newHandleTable[render.Fence, vk.Fence](),
		commandBuffers:  newHandleTable[render.CommandBuffer, vk.CommandBuffer](),
		descriptorSets:  newHandleTable[render.DescriptorSet, vk.DescriptorSet](),
		framebuffers:    newHandleTable[render.Framebuffer, vk.Framebuffer](),
		renderPasses:    newHandleTable[render.RenderPass, vk.RenderPass](),
		pipelines:       newHandleTable[render.Pipeline, vk.Pipeline](),
		pipelineLayouts: newHandleTable[render.PipelineLayout, vk.PipelineLayout](),
	}

	vk.SetGetInstanceProcAddr(window.VulkanProcAddr())

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to init Vulkan Go")
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"createInstance", d.createInstance},
		{"createSurface", d.createSurface},
		{"pickPhysicalDevice", d.pickPhysicalDevice},
		{"createLogicalDevice", d.createLogicalDevice},
		{"createCommandPool", d.createCommandPool},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			d.Destroy()
			return nil, errors.Wrap(err, step.name)
		}
	}

	d.memoryTypes = d.queryMemoryTypes()

	return d, nil
}

// Destroy releases the command pool, the device, the surface and the
// instance. Every other object must have been destroyed already.
func (d *Device) Destroy() {
	if d.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(d.device, d.commandPool, nil)
		d.commandPool = vk.NullCommandPool
	}
	if d.device != vk.Device(vk.NullHandle) {
		vk.DestroyDevice(d.device, nil)
		d.device = vk.Device(vk.NullHandle)
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

// WaitIdle blocks until the device has finished all submitted work.
func (d *Device) WaitIdle() error {
	return errors.Wrap(resultError(vk.DeviceWaitIdle(d.device)), "vkDeviceWaitIdle")
}

func (d *Device) createInstance() error {
	if d.cfg.Debug && !d.checkValidationSupport() {
		return errors.New("validation layers requested but not available")
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   d.cfg.AppName + "\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "No Engine\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion10,
	}

	extensions := d.window.GetRequiredInstanceExtensions()
	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	if d.cfg.Debug {
		createInfo.EnabledLayerCount = uint32(len(d.cfg.ValidationLayers))
		createInfo.PpEnabledLayerNames = d.cfg.ValidationLayers
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&createInfo, nil, &instance)); err != nil {
		return errors.Wrap(err, "failed to create Vulkan instance")
	}
	d.instance = instance

	if err := vk.InitInstance(instance); err != nil {
		return errors.Wrap(err, "failed to load instance functions")
	}

	return nil
}

func (d *Device) checkValidationSupport() bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	availableLayers := make([]vk.LayerProperties, count)

	if vk.EnumerateInstanceLayerProperties(&count, availableLayers) != vk.Success {
		return false
	}

	available := make(map[string]struct{}, count)
	for _, layer := range availableLayers {
		layer.Deref()
		available[vk.ToString(layer.LayerName[:])+"\x00"] = struct{}{}
	}

	for _, validationLayer := range d.cfg.ValidationLayers {
		if _, ok := available[validationLayer]; !ok {
			return false
		}
	}

	return true
}

func (d *Device) createSurface() error {
	surfacePtr, err := d.window.CreateWindowSurface(d.instance, nil)
	if err != nil {
		return errors.Wrap(err, "cannot create surface within GLFW window")
	}

	d.surface = vk.SurfaceFromPointer(surfacePtr)
	return nil
}

func (d *Device) pickPhysicalDevice() error {
	var deviceCount uint32
	err := vk.Error(vk.EnumeratePhysicalDevices(d.instance, &deviceCount, nil))
	if err != nil {
		return errors.Wrap(err, "failed to get the number of physical devices")
	}
	if deviceCount == 0 {
		return errors.New("failed to find GPUs with Vulkan support")
	}

	pDevices := make([]vk.PhysicalDevice, deviceCount)
	err = vk.Error(vk.EnumeratePhysicalDevices(d.instance, &deviceCount, pDevices))
	if err != nil {
		return errors.Wrap(err, "failed to enumerate the physical devices")
	}

	var (
		selectedDevice = vk.PhysicalDevice(vk.NullHandle)
		score          uint32
	)

	for _, device := range pDevices {
		deviceScore := d.deviceScore(device)

		if deviceScore > score {
			selectedDevice = device
			score = deviceScore
		}
	}

	if selectedDevice == vk.PhysicalDevice(vk.NullHandle) {
		return errors.New("failed to find suitable physical devices")
	}

	d.physicalDevice = selectedDevice
	d.families = d.findQueueFamilies(selectedDevice)
	return nil
}

// deviceScore returns how suitable device is. Bigger is better and zero means
// the device cannot be used.
func (d *Device) deviceScore(device vk.PhysicalDevice) uint32 {
	var (
		deviceScore uint32
		properties  vk.PhysicalDeviceProperties
	)

	vk.GetPhysicalDeviceProperties(device, &properties)
	properties.Deref()

	if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
		deviceScore += 1000
	} else {
		deviceScore++
	}

	if !d.isDeviceSuitable(device) {
		deviceScore = 0
	}

	if d.cfg.Debug {
		log.Printf(
			"Available device: %s (score: %d)",
			vk.ToString(properties.DeviceName[:]),
			deviceScore,
		)
	}

	return deviceScore
}

func (d *Device) isDeviceSuitable(device vk.PhysicalDevice) bool {
	indices := d.findQueueFamilies(device)
	if !indices.IsComplete() || !d.checkDeviceExtensionSupport(device) {
		return false
	}

	support, err := querySwapchainSupport(device, d.surface)
	if err != nil {
		log.Printf("WARNING: querying swapchain support: %s", err)
		return false
	}

	return len(support.formats) > 0 && len(support.presentModes) > 0
}

// findQueueFamilies returns the graphics and present queue families of device.
func (d *Device) findQueueFamilies(device vk.PhysicalDevice) queues.FamilyIndices {
	indices := queues.FamilyIndices{}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)

	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i, family := range queueFamilies {
		family.Deref()

		if family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			indices.Graphics.Set(uint32(i))
		}

		var hasPresent vk.Bool32
		err := vk.Error(
			vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), d.surface, &hasPresent),
		)
		if err != nil {
			log.Printf("error querying surface support for queue family %d: %s", i, err)
		} else if hasPresent.B() {
			indices.Present.Set(uint32(i))
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices
}

func (d *Device) checkDeviceExtensionSupport(device vk.PhysicalDevice) bool {
	var extensionsCount uint32
	res := vk.EnumerateDeviceExtensionProperties(device, "", &extensionsCount, nil)
	if err := vk.Error(res); err != nil {
		log.Printf("WARNING: enumerating device extension properties count: %s", err)
		return false
	}

	availableExtensions := make([]vk.ExtensionProperties, extensionsCount)
	res = vk.EnumerateDeviceExtensionProperties(device, "", &extensionsCount,
		availableExtensions)
	if err := vk.Error(res); err != nil {
		log.Printf("WARNING: getting device extension properties: %s", err)
		return false
	}

	requiredExtensions := make(map[string]struct{})
	for _, extensionName := range d.cfg.DeviceExtensions {
		requiredExtensions[extensionName] = struct{}{}
	}

	for _, extension := range availableExtensions {
		extension.Deref()
		extensionName := vk.ToString(extension.ExtensionName[:])

		delete(requiredExtensions, extensionName+"\x00")
	}

	return len(requiredExtensions) == 0
}

func (d *Device) createLogicalDevice() error {
	if !d.families.IsComplete() {
		return errors.New("physical device does not have all the queues required by the program")
	}

	queueCreateInfos := []vk.DeviceQueueCreateInfo{}
	for _, familyIndex := range d.families.Unique() {
		queueCreateInfos = append(
			queueCreateInfos,
			vk.DeviceQueueCreateInfo{
				SType:            vk.StructureTypeDeviceQueueCreateInfo,
				QueueFamilyIndex: familyIndex,
				QueueCount:       1,
				PQueuePriorities: []float32{1.0},
			},
		)
	}

	createInfo := vk.DeviceCreateInfo{
		SType:            vk.StructureTypeDeviceCreateInfo,
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{}},

		PQueueCreateInfos:    queueCreateInfos,
		QueueCreateInfoCount: uint32(len(queueCreateInfos)),

		EnabledExtensionCount:   uint32(len(d.cfg.DeviceExtensions)),
		PpEnabledExtensionNames: d.cfg.DeviceExtensions,
	}

	if d.cfg.Debug {
		createInfo.PpEnabledLayerNames = d.cfg.ValidationLayers
		createInfo.EnabledLayerCount = uint32(len(d.cfg.ValidationLayers))
	}

	var device vk.Device
	err := vk.Error(vk.CreateDevice(d.physicalDevice, &createInfo, nil, &device))
	if err != nil {
		return errors.Wrap(err, "failed to create logical device")
	}
	d.device = device

	var graphicsQueue vk.Queue
	vk.GetDeviceQueue(d.device, d.families.Graphics.Get(), 0, &graphicsQueue)
	d.graphicsQueue = graphicsQueue

	var presentQueue vk.Queue
	vk.GetDeviceQueue(d.device, d.families.Present.Get(), 0, &presentQueue)
	d.presentQueue = presentQueue

	return nil
}

func (d *Device) createCommandPool() error {
	poolInfo := vk.CommandPoolCreateInfo{
		SType: vk.StructureTypeCommandPoolCreateInfo,
		Flags: vk.CommandPoolCreateFlags(
			vk.CommandPoolCreateResetCommandBufferBit,
		),
		QueueFamilyIndex: d.families.Graphics.Get(),
	}

	var commandPool vk.CommandPool
	res := vk.CreateCommandPool(d.device, &poolInfo, nil, &commandPool)
	if err := vk.Error(res); err != nil {
		return errors.Wrap(err, "failed to create command pool")
	}
	d.commandPool = commandPool

	return nil
}

func (d *Device) queryMemoryTypes() []render.MemoryType {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(d.physicalDevice, &memProperties)
	memProperties.Deref()

	types := make([]render.MemoryType, 0, memProperties.MemoryTypeCount)
	for i := uint32(0); i < memProperties.MemoryTypeCount; i++ {
		memType := memProperties.MemoryTypes[i]
		memType.Deref()

		types = append(types, render.MemoryType{
			PropertyFlags: fromVkMemoryProperties(memType.PropertyFlags),
			HeapIndex:     memType.HeapIndex,
		})
	}

	return types
}
