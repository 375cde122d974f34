package activity

import (
	"context"
	"slices"
	"sync"
)

// CaptureHook records events for assertions in tests.
type CaptureHook struct {
	Err    error
	mu     sync.Mutex
	events []Event
}

// Notify records the event and returns any configured error.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, NormalizeEvent(event))
	return h.Err
}

// Events returns a copy of the recorded events.
func (h *CaptureHook) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.events)
}

// Verbs returns the recorded verbs in order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, 0, len(h.events))
	for _, event := range h.events {
		verbs = append(verbs, event.Verb)
	}
	return verbs
}
