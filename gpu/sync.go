package gpu

import (
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-instancing/render"
)

func (d *Device) CreateSemaphore() (render.Semaphore, error) {
	semaphoreInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var semaphore vk.Semaphore
	if err := resultError(vk.CreateSemaphore(d.device, &semaphoreInfo, nil, &semaphore)); err != nil {
		return 0, errors.Wrap(err, "vkCreateSemaphore")
	}

	return d.semaphores.add(semaphore), nil
}

func (d *Device) DestroySemaphore(s render.Semaphore) {
	if semaphore, ok := d.semaphores.remove(s); ok {
		vk.DestroySemaphore(d.device, semaphore, nil)
	}
}

func (d *Device) CreateFence(signaled bool) (render.Fence, error) {
	fenceInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := resultError(vk.CreateFence(d.device, &fenceInfo, nil, &fence)); err != nil {
		return 0, errors.Wrap(err, "vkCreateFence")
	}

	return d.fences.add(fence), nil
}

func (d *Device) DestroyFence(f render.Fence) {
	if fence, ok := d.fences.remove(f); ok {
		vk.DestroyFence(d.device, fence, nil)
	}
}

func (d *Device) WaitForFence(f render.Fence, timeout time.Duration) error {
	fences := []vk.Fence{d.fences.get(f)}
	res := vk.WaitForFences(d.device, 1, fences, vk.True, timeoutNanos(timeout))
	return errors.Wrap(resultError(res), "vkWaitForFences")
}

func (d *Device) ResetFence(f render.Fence) error {
	fences := []vk.Fence{d.fences.get(f)}
	return errors.Wrap(resultError(vk.ResetFences(d.device, 1, fences)), "vkResetFences")
}
