package domain

import (
	"context"
	"fmt"
	"time"
)

// DefaultWindow is the look-back used when no duration is configured.
const DefaultWindow = 24 * time.Hour

// Source is an addressable room or channel enumerated from a platform.
type Source struct {
	ID       string
	Name     string
	Platform string
	Site     string
	Readable bool
}

// Message is one raw entry read from a source.
type Message struct {
	ID         string
	SourceID   string
	SourceName string
	Timestamp  time.Time
	Body       string
}

// TimeWindow bounds the messages collected by a single run.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow ends the window at end and reaches back by duration.
func NewTimeWindow(end time.Time, duration time.Duration) (TimeWindow, error) {
	if duration <= 0 {
		return TimeWindow{}, fmt.Errorf("time window duration must be positive, got %s", duration)
	}
	return TimeWindow{Start: end.Add(-duration), End: end}, nil
}

// Before reports whether t precedes the start of the window.
func (w TimeWindow) Before(t time.Time) bool {
	return t.Before(w.Start)
}

// After reports whether t is later than the end of the window.
func (w TimeWindow) After(t time.Time) bool {
	return t.After(w.End)
}

// Duration returns the span covered by the window.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

type windowKey struct{}

// WithWindow attaches the run's window to ctx for platforms whose listings
// only carry coarse timestamps.
func WithWindow(ctx context.Context, w TimeWindow) context.Context {
	return context.WithValue(ctx, windowKey{}, w)
}

// WindowFrom returns the window attached by WithWindow.
func WindowFrom(ctx context.Context) (TimeWindow, bool) {
	w, ok := ctx.Value(windowKey{}).(TimeWindow)
	return w, ok
}
