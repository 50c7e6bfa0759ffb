// Package interaction debounces interaction boosts before they reach the
// hint engine.
package interaction

import (
	"log/slog"
	"sync"
	"time"
)

// Booster is the engine entry point a Handler drives.
type Booster interface {
	BeginFor(name string, d time.Duration)
}

const (
	hintName = "INTERACTION"

	// The requested duration is padded so the boost outlives the frame
	// work it covers, then clamped to a sane window.
	padding     = 650 * time.Millisecond
	minDuration = 1400 * time.Millisecond
	maxDuration = 5650 * time.Millisecond
)

// Handler turns raw interaction requests into debounced timed boosts.
// A request is dropped when the previous boost already covers its
// deadline.
type Handler struct {
	engine Booster
	log    *slog.Logger

	mu        sync.Mutex
	lastIssue time.Time
	lastDur   time.Duration
	now       func() time.Time
}

// New builds a Handler issuing boosts through engine.
func New(engine Booster, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		engine: engine,
		log:    log,
		now:    time.Now,
	}
}

// Acquire requests a boost of strength milliseconds. The effective
// duration is strength plus the padding, clamped to
// [minDuration, maxDuration].
func (h *Handler) Acquire(strength int32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d := time.Duration(strength)*time.Millisecond + padding
	if d < minDuration {
		d = minDuration
	} else if d > maxDuration {
		d = maxDuration
	}

	now := h.now()
	if !h.lastIssue.IsZero() && d <= h.lastDur {
		// Skip if the live boost ends no earlier than this one would.
		if now.Sub(h.lastIssue) <= h.lastDur-d {
			h.log.Debug("interaction boost covered", "duration", d)
			return
		}
	}

	h.lastIssue = now
	h.lastDur = d
	h.log.Debug("interaction boost", "duration", d)
	h.engine.BeginFor(hintName, d)
}
