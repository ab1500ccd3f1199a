// Package playback maps elapsed wall time onto the historical time window of
// the loaded track set and decides which tracks are visible at the current
// playback instant.
//
// The clock is a plain state machine with an explicit Advance step: binaries
// call Advance from their frame tick, tests call it directly with synthetic
// deltas. Nothing in here touches timers.
package playback

import (
	"errors"
	"fmt"
)

// ErrNoTimestamps means the loaded track set had no valid timestamps, so a
// playback window cannot be derived. Callers report it and leave the
// playback controls inert; it is never fatal.
var ErrNoTimestamps = errors.New("no valid timestamps in loaded tracks")

// Fade is the per-track visibility grace period after a track's last sample.
type Fade struct {
	// Never keeps tracks visible forever once they appear
	Never bool

	// Seconds is the grace period when Never is false
	Seconds int
}

// FadeNever is the accumulate-forever setting.
func FadeNever() Fade { return Fade{Never: true} }

// FadeAfter fades tracks out the given number of seconds after their last
// sample.
func FadeAfter(seconds int) Fade { return Fade{Seconds: seconds} }

func (f Fade) String() string {
	if f.Never {
		return "never"
	}
	return fmt.Sprintf("%ds", f.Seconds)
}

// Clock is the playback state machine. States are Playing and Paused
// (Stopped is Paused at t=0). All times are seconds of historical time
// unless suffixed Ms.
type Clock struct {
	startMs int64
	endMs   int64

	duration float64
	current  float64
	speed    float64
	playing  bool
	fade     Fade
}

// NewClock initializes playback over the historical window [startMs, endMs].
// Returns ErrNoTimestamps for an empty or inverted window.
func NewClock(startMs, endMs int64) (*Clock, error) {
	if endMs <= startMs {
		return nil, ErrNoTimestamps
	}
	return &Clock{
		startMs:  startMs,
		endMs:    endMs,
		duration: float64(endMs-startMs) / 1000.0,
		speed:    1.0,
		fade:     FadeNever(),
	}, nil
}

// Duration returns the playback length in seconds of historical time.
func (c *Clock) Duration() float64 { return c.duration }

// Current returns the playback position in [0, duration].
func (c *Clock) Current() float64 { return c.current }

// Playing reports whether the clock is advancing.
func (c *Clock) Playing() bool { return c.playing }

// Speed returns the time multiplier.
func (c *Clock) Speed() float64 { return c.speed }

// SetSpeed sets the multiplier applied to wall deltas. Non-positive values
// are ignored.
func (c *Clock) SetSpeed(speed float64) {
	if speed > 0 {
		c.speed = speed
	}
}

// FadeSetting returns the current fade window.
func (c *Clock) FadeSetting() Fade { return c.fade }

// SetFade changes the fade window.
func (c *Clock) SetFade(fade Fade) { c.fade = fade }

// Play starts advancing from the current position.
func (c *Clock) Play() { c.playing = true }

// Pause halts the clock. No further Advance calls have any effect until
// Play; the caller's tick loop may keep running.
func (c *Clock) Pause() { c.playing = false }

// Restart pauses and rewinds to the beginning.
func (c *Clock) Restart() {
	c.playing = false
	c.current = 0
}

// Seek jumps to an absolute position, clamped into [0, duration]. Allowed
// in any state.
func (c *Clock) Seek(seconds float64) {
	c.current = clamp(seconds, 0, c.duration)
}

// Skip seeks relative to the current position, clamped.
func (c *Clock) Skip(deltaSeconds float64) {
	c.Seek(c.current + deltaSeconds)
}

// Advance moves the clock by a wall-time delta scaled by the speed
// multiplier. On reaching the end it wraps to 0 and keeps playing: playback
// loops until the user pauses. A paused clock ignores Advance entirely.
func (c *Clock) Advance(wallDeltaSeconds float64) {
	if !c.playing || wallDeltaSeconds <= 0 {
		return
	}
	c.current += wallDeltaSeconds * c.speed
	if c.current >= c.duration {
		// Wrap, preserving the overshoot so playback speed stays smooth
		// across the loop boundary.
		for c.current >= c.duration {
			c.current -= c.duration
		}
	}
}

// CurrentTimestampMs converts the playback position to an absolute
// historical timestamp.
func (c *Clock) CurrentTimestampMs() int64 {
	return c.startMs + int64(c.current*1000.0)
}

// TrackVisible evaluates the visibility rule for a track's sample span at
// the current playback instant: visible once playback reaches the track's
// first sample, and (unless fade is 'never') until fade seconds past its
// last sample.
func (c *Clock) TrackVisible(firstMs, lastMs int64) bool {
	now := c.CurrentTimestampMs()
	if now < firstMs {
		return false
	}
	if c.fade.Never {
		return true
	}
	return now <= lastMs+int64(c.fade.Seconds)*1000
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
