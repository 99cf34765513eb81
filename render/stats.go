package render

import (
	"time"
)

// FrameStats counts frames and reports the average frame time once per
// interval.
type FrameStats struct {
	Interval time.Duration

	last   time.Duration
	frames int
	primed bool
}

// NewFrameStats returns stats reporting once per second.
func NewFrameStats() *FrameStats {
	return &FrameStats{Interval: time.Second}
}

// Tick counts one frame at time now. When a full interval has passed since the
// last report it returns the milliseconds per frame and frames per second over
// that interval.
func (s *FrameStats) Tick(now time.Duration) (msPerFrame, fps float64, ok bool) {
	if !s.primed {
		s.last = now
		s.primed = true
	}

	s.frames++
	if now-s.last < s.Interval {
		return 0, 0, false
	}

	seconds := s.Interval.Seconds()
	fps = float64(s.frames) / seconds
	msPerFrame = 1000 * seconds / float64(s.frames)

	s.frames = 0
	s.last += s.Interval

	return msPerFrame, fps, true
}
