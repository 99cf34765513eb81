package render

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrTimeout is returned when a bounded wait on the device expires.
	ErrTimeout = errors.New("timed out waiting for the device")

	// ErrOutOfDate means the swapchain no longer matches the surface.
	ErrOutOfDate = errors.New("swapchain out of date")

	// ErrDeviceLost is returned when the logical device has been lost. Every
	// resource created from it has to be recreated.
	ErrDeviceLost = errors.New("device lost")

	// ErrNoSuitableMemoryType is returned when no memory type satisfies both the
	// type filter and the requested property flags.
	ErrNoSuitableMemoryType = errors.New("failed to find suitable memory type")

	// ErrLastInstance is returned when removing the only remaining instance.
	ErrLastInstance = errors.New("cannot remove the last instance")

	// ErrIndexOutOfRange is returned for instance indices past the end.
	ErrIndexOutOfRange = errors.New("instance index out of range")

	// ErrImageIndex is returned for a swapchain image index without resources.
	ErrImageIndex = errors.New("swapchain image index out of range")

	// ErrSlotState is returned when a frame slot is driven out of order.
	ErrSlotState = errors.New("frame slot used out of order")
)
