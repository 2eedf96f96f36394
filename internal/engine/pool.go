package engine

import "fmt"

// MaxCredentialSlots caps the pool size; the environment exposes at most
// six independent credentials.
const MaxCredentialSlots = 6

// Slot pairs one credential index with its bound backend client.
// Slots are interchangeable and independent.
type Slot struct {
	Index  int
	Client LLMClient
}

// CredentialPool holds 1..6 credential slots. The pool is immutable after
// construction: slots are never created or destroyed at runtime, so
// concurrent invocations can read it without locking. Each invocation pins
// one slot for its own retries and only moves off it by rotation.
type CredentialPool struct {
	slots []Slot
}

// NewCredentialPool builds a pool from the given clients, one slot per
// client in order.
func NewCredentialPool(clients []LLMClient) (*CredentialPool, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("credential pool requires at least one client")
	}
	if len(clients) > MaxCredentialSlots {
		return nil, fmt.Errorf("credential pool supports at most %d slots, got %d", MaxCredentialSlots, len(clients))
	}
	slots := make([]Slot, len(clients))
	for i, c := range clients {
		slots[i] = Slot{Index: i, Client: c}
	}
	return &CredentialPool{slots: slots}, nil
}

// Size returns the number of slots.
func (p *CredentialPool) Size() int { return len(p.slots) }

// Slot returns the slot at index i. Out-of-range indexes wrap so a caller
// handed a stale index still lands on a valid slot.
func (p *CredentialPool) Slot(i int) Slot {
	i %= len(p.slots)
	if i < 0 {
		i += len(p.slots)
	}
	return p.slots[i]
}

// Next returns the index of the next slot in rotation order: the next
// higher index, wrapping from the highest back to the lowest.
func (p *CredentialPool) Next(i int) int {
	return (i + 1) % len(p.slots)
}
