package playback

import (
	"errors"
	"testing"
)

// newTestClock builds a clock over a window of the given duration in seconds.
func newTestClock(t *testing.T, durationSeconds float64) *Clock {
	t.Helper()
	c, err := NewClock(0, int64(durationSeconds*1000))
	if err != nil {
		t.Fatalf("NewClock failed: %v", err)
	}
	return c
}

func TestNewClockRejectsEmptyWindow(t *testing.T) {
	for _, tt := range []struct{ start, end int64 }{{0, 0}, {100, 100}, {200, 100}} {
		if _, err := NewClock(tt.start, tt.end); !errors.Is(err, ErrNoTimestamps) {
			t.Errorf("NewClock(%d, %d): expected ErrNoTimestamps, got %v", tt.start, tt.end, err)
		}
	}
}

func TestAdvanceWrapsAtDuration(t *testing.T) {
	c := newTestClock(t, 100)
	c.Play()

	// 150 simulated seconds in 10s steps; the position must stay in
	// [0, 100) the whole time and wrap rather than stop.
	for i := 0; i < 15; i++ {
		c.Advance(10)
		if c.Current() < 0 || c.Current() >= c.Duration() {
			t.Fatalf("Step %d: position %v outside [0, %v)", i, c.Current(), c.Duration())
		}
	}
	if got := c.Current(); got != 50 {
		t.Errorf("Expected wrap to 50 after 150s over a 100s window, got %v", got)
	}
	if !c.Playing() {
		t.Error("Expected clock still playing after wrap (loop, not stop)")
	}
}

func TestAdvanceAppliesSpeedMultiplier(t *testing.T) {
	c := newTestClock(t, 100)
	c.Play()
	c.SetSpeed(4)

	c.Advance(10)
	if got := c.Current(); got != 40 {
		t.Errorf("Expected 40 after 10s at 4x, got %v", got)
	}

	c.SetSpeed(0) // ignored
	c.Advance(10)
	if got := c.Current(); got != 80 {
		t.Errorf("Expected speed unchanged by invalid SetSpeed, got position %v", got)
	}
}

func TestPausedClockIgnoresAdvance(t *testing.T) {
	c := newTestClock(t, 100)
	c.Play()
	c.Advance(30)
	c.Pause()

	c.Advance(30)
	if got := c.Current(); got != 30 {
		t.Errorf("Expected paused clock to hold at 30, got %v", got)
	}
}

func TestSeekClamps(t *testing.T) {
	c := newTestClock(t, 60)

	c.Seek(-5)
	if c.Current() != 0 {
		t.Errorf("Expected seek(-5) clamped to 0, got %v", c.Current())
	}

	c.Seek(1000)
	if c.Current() != 60 {
		t.Errorf("Expected seek(1000) clamped to 60, got %v", c.Current())
	}

	c.Seek(30)
	if c.Current() != 30 {
		t.Errorf("Expected seek(30) to land at 30, got %v", c.Current())
	}
}

func TestSkipIsRelativeAndClamped(t *testing.T) {
	c := newTestClock(t, 60)
	c.Seek(50)

	c.Skip(30)
	if c.Current() != 60 {
		t.Errorf("Expected skip clamped to duration, got %v", c.Current())
	}

	c.Skip(-120)
	if c.Current() != 0 {
		t.Errorf("Expected skip clamped to 0, got %v", c.Current())
	}
}

func TestRestart(t *testing.T) {
	c := newTestClock(t, 100)
	c.Play()
	c.Advance(42)

	c.Restart()
	if c.Current() != 0 {
		t.Errorf("Expected restart to rewind, got %v", c.Current())
	}
	if c.Playing() {
		t.Error("Expected restart to pause")
	}
}

func TestCurrentTimestampMs(t *testing.T) {
	c, err := NewClock(1_000_000, 1_100_000)
	if err != nil {
		t.Fatal(err)
	}
	c.Seek(25)
	if got := c.CurrentTimestampMs(); got != 1_025_000 {
		t.Errorf("Expected absolute timestamp 1025000, got %d", got)
	}
}

func TestTrackVisibility(t *testing.T) {
	// Track spans t=[0s, 30s] of a 2000s window.
	c, err := NewClock(0, 2_000_000)
	if err != nil {
		t.Fatal(err)
	}
	const firstMs, lastMs = 0, 30_000

	t.Run("Hidden before first sample", func(t *testing.T) {
		track2 := int64(500_000)
		c.Seek(100)
		if c.TrackVisible(track2, track2+10_000) {
			t.Error("Expected track hidden before its first sample")
		}
	})

	t.Run("Fade never keeps tracks forever", func(t *testing.T) {
		c.SetFade(FadeNever())
		c.Seek(1000)
		if !c.TrackVisible(firstMs, lastMs) {
			t.Error("Expected track visible at t=1000 with fade=never")
		}
	})

	t.Run("Fade window boundary", func(t *testing.T) {
		c.SetFade(FadeAfter(60))
		c.Seek(89) // 30 + 59: inside the window
		if !c.TrackVisible(firstMs, lastMs) {
			t.Error("Expected track visible at t=89 with 60s fade")
		}
		c.Seek(91) // past 30 + 60
		if c.TrackVisible(firstMs, lastMs) {
			t.Error("Expected track hidden at t=91 with 60s fade")
		}
	})
}

func TestFadeString(t *testing.T) {
	if got := FadeNever().String(); got != "never" {
		t.Errorf("Expected \"never\", got %q", got)
	}
	if got := FadeAfter(60).String(); got != "60s" {
		t.Errorf("Expected \"60s\", got %q", got)
	}
}
