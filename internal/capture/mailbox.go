package capture

import "sync"

// #region mailbox
// Mailbox is a single-slot buffer shared between the capture goroutine and
// a consumer. Offer overwrites whatever is unconsumed (newest wins, the old
// value counts as a drop); Take consumes and clears the slot.
//
// Thread-safety: all methods are safe for concurrent use.
type Mailbox[T any] struct {
	mu     sync.Mutex
	value  T
	full   bool
	drops  uint64
	notify chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{notify: make(chan struct{}, 1)}
}

// Offer stores v, replacing any unconsumed value. Never blocks.
func (b *Mailbox[T]) Offer(v T) {
	b.mu.Lock()
	if b.full {
		b.drops++
	}
	b.value = v
	b.full = true
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Take returns the stored value and empties the slot. ok is false when the
// slot was empty.
func (b *Mailbox[T]) Take() (v T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return v, false
	}
	v = b.value
	var zero T
	b.value = zero
	b.full = false
	return v, true
}

// Peek returns the stored value without consuming it.
func (b *Mailbox[T]) Peek() (v T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, b.full
}

// Clear empties the slot without reading it.
func (b *Mailbox[T]) Clear() {
	b.Take()
}

// Notify returns a channel that receives after an Offer. Signals coalesce:
// several offers between two receives produce one signal.
func (b *Mailbox[T]) Notify() <-chan struct{} {
	return b.notify
}

// Drops counts values overwritten before anyone took them.
func (b *Mailbox[T]) Drops() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drops
}

// #endregion mailbox
