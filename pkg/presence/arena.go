package presence

import "fmt"

// ConnID identifies one registered session. The zero value is never issued.
type ConnID struct {
	slot uint32
	gen  uint32
}

func (id ConnID) IsZero() bool {
	return id.gen == 0
}

func (id ConnID) String() string {
	return fmt.Sprintf("%d.%d", id.slot, id.gen)
}

type arenaSlot[T any] struct {
	gen   uint32
	value *T
}

// arena stores values in reusable slots. Not safe for concurrent use.
type arena[T any] struct {
	slots []arenaSlot[T]
	free  []uint32
	live  int
}

func (a *arena[T]) alloc(v *T) ConnID {
	var slot uint32
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		slot = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot[T]{})
	}
	s := &a.slots[slot]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.value = v
	a.live++
	return ConnID{slot: slot, gen: s.gen}
}

func (a *arena[T]) get(id ConnID) (*T, bool) {
	if id.IsZero() || int(id.slot) >= len(a.slots) {
		return nil, false
	}
	s := a.slots[id.slot]
	if s.gen != id.gen || s.value == nil {
		return nil, false
	}
	return s.value, true
}

func (a *arena[T]) release(id ConnID) (*T, bool) {
	v, ok := a.get(id)
	if !ok {
		return nil, false
	}
	a.slots[id.slot].value = nil
	a.free = append(a.free, id.slot)
	a.live--
	return v, true
}

func (a *arena[T]) len() int {
	return a.live
}
