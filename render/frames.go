package render

import (
	"time"

	"github.com/cockroachdb/errors"

	"vulkan-instancing/optional"
)

// DefaultMaxFramesInFlight allows full triple buffering.
const DefaultMaxFramesInFlight = 3

// SlotState is where a frame slot is in its cycle.
type SlotState int

const (
	// SlotIdle means the slot can be acquired. Its fence may still be pending
	// from the previous use.
	SlotIdle SlotState = iota
	// SlotAcquired means the fence was waited on and reset and an image was
	// requested.
	SlotAcquired
	// SlotSubmitted means work was queued that signals the slot fence.
	SlotSubmitted
	// SlotPresenting means presentation was queued.
	SlotPresenting
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotAcquired:
		return "acquired"
	case SlotSubmitted:
		return "submitted"
	case SlotPresenting:
		return "presenting"
	}
	return "unknown"
}

type frameSlot struct {
	imageAvailable Semaphore
	renderFinished Semaphore
	inFlight       Fence
	state          SlotState

	// pendingImage is an image acquired by an Acquire which then timed out
	// waiting for the image's previous frame. imageAvailable has a signal
	// pending for it, so it must not be used to acquire again.
	pendingImage optional.Optional[uint32]
}

// FrameSync is the ring of frames in flight. Each slot owns the semaphores
// and fence of one frame; a slot is only reused once its fence shows the GPU
// has finished the previous frame recorded with it.
type FrameSync struct {
	sync      SyncDevice
	presenter Presenter

	slots   []frameSlot
	current int

	// imageFences remembers the fence of the frame which last rendered to each
	// swapchain image. Images are not handed out in slot order, so a slot's own
	// fence does not prove the image's command buffer is no longer pending.
	imageFences map[uint32]Fence
}

// NewFrameSync creates maxFrames slots with signalled fences so the first
// acquire of every slot does not block.
func NewFrameSync(sync SyncDevice, presenter Presenter, maxFrames int) (*FrameSync, error) {
	if maxFrames < 1 {
		return nil, errors.Newf("frames in flight must be at least 1, got %d", maxFrames)
	}

	f := &FrameSync{
		sync:        sync,
		presenter:   presenter,
		imageFences: make(map[uint32]Fence),
	}

	for i := 0; i < maxFrames; i++ {
		var (
			slot frameSlot
			err  error
		)

		slot.imageAvailable, err = sync.CreateSemaphore()
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "failed to create imageAvailableSem[%d]", i)
		}

		slot.renderFinished, err = sync.CreateSemaphore()
		if err != nil {
			sync.DestroySemaphore(slot.imageAvailable)
			f.Close()
			return nil, errors.Wrapf(err, "failed to create renderFinishedSem[%d]", i)
		}

		slot.inFlight, err = sync.CreateFence(true)
		if err != nil {
			sync.DestroySemaphore(slot.imageAvailable)
			sync.DestroySemaphore(slot.renderFinished)
			f.Close()
			return nil, errors.Wrapf(err, "failed to create inFlightFence[%d]", i)
		}

		f.slots = append(f.slots, slot)
	}

	return f, nil
}

// Len returns the number of slots.
func (f *FrameSync) Len() int {
	return len(f.slots)
}

// Current returns the index of the current slot.
func (f *FrameSync) Current() int {
	return f.current
}

// State returns the state of slot i.
func (f *FrameSync) State(i int) SlotState {
	return f.slots[i].state
}

// Acquire waits until the GPU is done with the current slot, then asks for
// the next swapchain image. A timeout <= 0 waits forever.
//
// The fence is only reset once an image was acquired. When the swapchain is
// out of date the slot stays idle with its fence signalled, so the next
// attempt does not wait on a fence nothing will ever signal. When the wait for
// the image's previous frame times out the slot keeps the acquired image and
// the next attempt resumes with it.
func (f *FrameSync) Acquire(timeout time.Duration) (uint32, error) {
	slot := &f.slots[f.current]
	if slot.state != SlotIdle {
		return 0, errors.Wrapf(ErrSlotState, "acquire on slot %d in state %s", f.current, slot.state)
	}

	if err := f.sync.WaitForFence(slot.inFlight, timeout); err != nil {
		return 0, errors.Wrapf(err, "waiting for frame %d", f.current)
	}

	var imageIndex uint32
	if slot.pendingImage.HasValue() {
		imageIndex = slot.pendingImage.Get()
	} else {
		var err error
		imageIndex, err = f.presenter.AcquireNextImage(slot.imageAvailable, timeout)
		if err != nil {
			return 0, errors.Wrap(err, "failed to acquire swap chain image")
		}
	}

	if fence, ok := f.imageFences[imageIndex]; ok && fence != slot.inFlight {
		if err := f.sync.WaitForFence(fence, timeout); err != nil {
			slot.pendingImage.Set(imageIndex)
			return 0, errors.Wrapf(err, "waiting for image %d", imageIndex)
		}
	}
	slot.pendingImage.Reset()
	f.imageFences[imageIndex] = slot.inFlight

	if err := f.sync.ResetFence(slot.inFlight); err != nil {
		return 0, errors.Wrapf(err, "resetting fence of frame %d", f.current)
	}
	slot.state = SlotAcquired

	return imageIndex, nil
}

// Submit queues cb. The GPU waits for the acquired image only at the colour
// attachment output stage and signals the render finished semaphore and the
// slot fence when done.
func (f *FrameSync) Submit(cb CommandBuffer) error {
	slot := &f.slots[f.current]
	if slot.state != SlotAcquired {
		return errors.Wrapf(ErrSlotState, "submit on slot %d in state %s", f.current, slot.state)
	}

	err := f.presenter.Submit(Submission{
		CommandBuffer: cb,
		Wait:          slot.imageAvailable,
		Signal:        slot.renderFinished,
		Fence:         slot.inFlight,
	})
	if err != nil {
		return errors.Wrap(err, "queue submit error")
	}
	slot.state = SlotSubmitted

	return nil
}

// Present queues image for presentation after rendering finished. The slot
// counts as presenting even when the swapchain turned out to be out of date,
// because the submitted work still signals the slot fence.
func (f *FrameSync) Present(image uint32) error {
	slot := &f.slots[f.current]
	if slot.state != SlotSubmitted {
		return errors.Wrapf(ErrSlotState, "present on slot %d in state %s", f.current, slot.state)
	}

	slot.state = SlotPresenting
	if err := f.presenter.Present(image, slot.renderFinished); err != nil {
		return errors.Wrap(err, "failed to present swap chain image")
	}

	return nil
}

// Advance moves on to the next slot.
func (f *FrameSync) Advance() {
	f.slots[f.current].state = SlotIdle
	f.current = (f.current + 1) % len(f.slots)
}

// Close destroys all semaphores and fences. The device must be idle.
func (f *FrameSync) Close() {
	for _, slot := range f.slots {
		f.sync.DestroySemaphore(slot.imageAvailable)
		f.sync.DestroySemaphore(slot.renderFinished)
		f.sync.DestroyFence(slot.inFlight)
	}
	f.slots = nil
	f.current = 0
	f.imageFences = make(map[uint32]Fence)
}

// ForgetImages drops the image to fence mapping. Call it after the swapchain
// was recreated, once the device is idle.
func (f *FrameSync) ForgetImages() {
	f.imageFences = make(map[uint32]Fence)
}
