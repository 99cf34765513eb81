package gpu

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-instancing/render"
)

// resultError converts res into an error. Results callers have to act on are
// marked with the matching render sentinel.
func resultError(res vk.Result) error {
	switch res {
	case vk.Success:
		return nil
	case vk.Timeout, vk.NotReady:
		return errors.Mark(errors.Newf("vulkan: %d", res), render.ErrTimeout)
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return errors.Mark(errors.Newf("vulkan: swapchain out of date (%d)", res), render.ErrOutOfDate)
	case vk.ErrorDeviceLost:
		return errors.Mark(vk.Error(res), render.ErrDeviceLost)
	}

	if err := vk.Error(res); err != nil {
		return err
	}
	return errors.Newf("vulkan: unexpected result %d", res)
}

// timeoutNanos converts a timeout to the nanoseconds Vulkan expects. Zero and
// negative timeouts wait forever.
func timeoutNanos(timeout time.Duration) uint64 {
	if timeout <= 0 {
		return math.MaxUint64
	}
	return uint64(timeout.Nanoseconds())
}
