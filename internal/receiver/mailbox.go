// Package receiver runs the background read loop that turns serial bytes
// into detections and hands the freshest one to the consumer.
package receiver

import "sync"

// Mailbox is a single-slot hand-off between one producer and one consumer.
// Publish overwrites whatever is in the slot; Take reads and clears it in one
// step. The consumer therefore never sees the same value twice, and a slow
// consumer loses stale values rather than building a backlog.
type Mailbox[T any] struct {
	mu      sync.Mutex
	value   T
	present bool
}

// Publish stores v in the slot, replacing any unread value. Never blocks.
func (m *Mailbox[T]) Publish(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = v
	m.present = true
}

// Take removes and returns the slot's value. The second return is false when
// the slot is empty, including immediately after a previous Take.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		var zero T
		return zero, false
	}
	v := m.value
	var zero T
	m.value = zero
	m.present = false
	return v, true
}
