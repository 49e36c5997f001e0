// Package bus fans alert events out to observers. The in-process layer is a
// copy-on-write callback list invoked synchronously; the optional external
// layer mirrors every event onto a Redis pub/sub topic so other processes
// (the WebSocket gateway) can re-emit them locally.
package bus

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

// Observer receives one published event. Observers run synchronously on the
// publisher's goroutine and must not block for long.
type Observer func(eventType string, alert *models.Alert)

// External mirrors events to a cross-process channel. Failures are the
// implementation's problem: Publish on the bus never fails.
type External interface {
	Publish(eventType string, alert *models.Alert)
}

// Bus is the process-local observer list plus the optional external mirror.
type Bus struct {
	mu        sync.Mutex
	observers []Observer
	external  External
}

// New creates an empty bus. external may be nil.
func New(external External) *Bus {
	return &Bus{external: external}
}

// Subscribe registers an observer. Registration copies the list so
// publishers iterating a snapshot are never disturbed.
func (b *Bus) Subscribe(obs Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make([]Observer, len(b.observers), len(b.observers)+1)
	copy(next, b.observers)
	b.observers = append(next, obs)
}

// Publish delivers the event to every local observer in registration order,
// then mirrors it externally. A panicking observer is contained and logged;
// it never blocks the rest.
func (b *Bus) Publish(eventType string, alert *models.Alert) {
	b.Dispatch(eventType, alert)
	if b.external != nil {
		b.external.Publish(eventType, alert)
	}
}

// Dispatch delivers to local observers only. The cross-process subscriber
// uses this to re-emit remote events without echoing them back out.
func (b *Bus) Dispatch(eventType string, alert *models.Alert) {
	b.mu.Lock()
	observers := b.observers
	b.mu.Unlock()

	for _, obs := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("event", eventType).
						Msg("Alert event observer panicked")
				}
			}()
			obs(eventType, alert.Clone())
		}()
	}
}
