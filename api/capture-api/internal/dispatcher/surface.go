// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_dispatcher

import (
	"sync"

	internal_signal "github.com/rapidaai/capture/api/capture-api/internal/signal"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
)

// eventSurface adapts the inbound SIGNAL_EVENT feed to the signal
// capturer's surface contract. Bounds come from the start command and
// default to a 1920x1080 surface until one is received.
type eventSurface struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(internal_signal.RawEvent)
	width     float64
	height    float64
}

func newEventSurface() *eventSurface {
	return &eventSurface{
		listeners: make(map[int]func(internal_signal.RawEvent)),
		width:     1920,
		height:    1080,
	}
}

func (s *eventSurface) Subscribe(listener func(internal_signal.RawEvent)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *eventSurface) Bounds() (width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *eventSurface) setBounds(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	s.width = width
	s.height = height
	s.mu.Unlock()
}

// publish fans one raw sample out to the subscribed listeners. The
// listener set is snapshotted so a listener may cancel itself.
func (s *eventSurface) publish(raw internal_signal.RawEvent) {
	s.mu.Lock()
	snapshot := make([]func(internal_signal.RawEvent), 0, len(s.listeners))
	for _, listener := range s.listeners {
		snapshot = append(snapshot, listener)
	}
	s.mu.Unlock()
	for _, listener := range snapshot {
		listener(raw)
	}
}

func rawEventFromData(data SignalEventData) internal_signal.RawEvent {
	return internal_signal.RawEvent{
		Kind:    internal_type.SignalKind(data.Kind),
		X:       data.X,
		Y:       data.Y,
		Button:  data.Button,
		DeltaX:  data.DeltaX,
		DeltaY:  data.DeltaY,
		BoundsX: data.BoundsX,
		BoundsY: data.BoundsY,
		BoundsW: data.BoundsW,
		BoundsH: data.BoundsH,
		Target:  data.Target,
	}
}
