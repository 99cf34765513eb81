/*
Package render implements the per-frame engine of the instanced renderer: the
instance store and its GPU mirror, the ring of frames in flight, command
recording for a swapchain image and the loop which drives them.

The package never calls Vulkan directly. Everything it needs from the device is
described by the small interfaces in device.go and implemented by package gpu,
so the synchronisation and buffer lifetime rules can be exercised without a GPU.

A frame goes through these steps, in order:

	poll input -> read clock -> keys to transform -> friction -> drift
	-> acquire (fence wait) -> projection on resize -> uniform buffer
	-> instance sync -> record -> submit -> present -> advance slot

Two indices are involved in every frame and they must not be mixed up: the
frame slot (0..MaxFramesInFlight) selects semaphores and fences, while the
swapchain image index selects the framebuffer, command buffer, uniform buffer
and descriptor set.
*/
package render
