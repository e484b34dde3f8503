/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import "sync"

// EventType enumerates engine state-change notifications.
type EventType string

const (
	EventTransport EventType = "transport"
	EventTrack     EventType = "track"
	EventLoop      EventType = "loop"
	EventVolume    EventType = "volume"
	EventMode      EventType = "mode"
	EventTracks    EventType = "tracks"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus is an in-process fan-out of engine state changes. Publish delivers
// under the read lock with non-blocking sends, so subscribers can come and
// go from their own goroutines at any time: Unsubscribe's close waits for
// every delivery in flight before it can run.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers drop events rather
// than stall the engine. The read lock is held through delivery; since no
// send can block, that only excludes concurrent Unsubscribe closes.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			b.subs[eventType] = subs
			close(sub)
			return
		}
	}
}
