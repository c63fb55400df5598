// Package tradinghours maps timestamps to "is trading currently permitted".
// Evaluation is stateless: a window plus a timestamp fully determine the
// answer, which keeps dry-run checks trivially idempotent.
package tradinghours

import (
	"time"

	"tokengate/internal/compliance/models"
)

const secondsPerDay = 86400

// Window is a validated trading window. Construct via NewWindow so an
// inexpressible window (overnight wrap, empty day mask) can never reach
// evaluation.
type Window struct {
	startSec int
	endSec   int
	dayMask  uint8
}

// NewWindow validates the config and returns a Window.
func NewWindow(cfg models.TradingHoursConfig) (Window, error) {
	if err := cfg.Validate(); err != nil {
		return Window{}, err
	}
	return Window{startSec: cfg.StartSec, endSec: cfg.EndSec, dayMask: cfg.DayMask}, nil
}

// Permits reports whether the timestamp falls inside the window. Day-of-week
// is epoch-relative: bit N of the mask covers Unix day number mod 7, so bit 0
// is the weekday of 1970-01-01. Time-of-day is seconds since midnight UTC and
// the window bounds are inclusive.
func (w Window) Permits(now time.Time) bool {
	secs := now.Unix()
	if secs < 0 {
		return false
	}
	day := int((secs / secondsPerDay) % 7)
	if w.dayMask&(1<<day) == 0 {
		return false
	}
	tod := int(secs % secondsPerDay)
	return tod >= w.startSec && tod <= w.endSec
}

// Permitted is the stateless entry point for callers holding a raw config.
func Permitted(cfg models.TradingHoursConfig, now time.Time) (bool, error) {
	w, err := NewWindow(cfg)
	if err != nil {
		return false, err
	}
	return w.Permits(now), nil
}
