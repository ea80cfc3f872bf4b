package hooks

import (
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// SlotKind tags what a slot stores.
type SlotKind uint8

const (
	SlotNone SlotKind = iota
	SlotState
	SlotEffect
	SlotMemo
	SlotCallback
	SlotRef
)

func (k SlotKind) String() string {
	switch k {
	case SlotState:
		return "state"
	case SlotEffect:
		return "effect"
	case SlotMemo:
		return "memo"
	case SlotCallback:
		return "callback"
	case SlotRef:
		return "ref"
	default:
		return "none"
	}
}

// Slot is the persistent storage of one hook call. Its identity is its
// position in the call order of the owning instance's body.
type Slot struct {
	kind  SlotKind
	index int
	// fresh is set on slots created by this render rather than cloned from
	// the committed table.
	fresh bool

	value any
	deps  Deps
	// queue is shared by the committed and work-in-progress copies of a
	// state slot so that dispatches land in one place.
	queue queueConsumer
	// consumed is how many queued updates this render folded; they are
	// dropped from the queue only when the render commits.
	consumed int

	effect *effectRecord
}

// Kind returns the slot's tag.
func (s *Slot) Kind() SlotKind { return s.kind }

// Index returns the slot's position in call order.
func (s *Slot) Index() int { return s.index }

// Mounting reports whether the slot was created by the current render.
func (s *Slot) Mounting() bool { return s.fresh }

func (s *Slot) clone() *Slot {
	c := *s
	c.fresh = false
	c.consumed = 0
	return &c
}

// slotValue returns the slot's value as a T. It reports false when the slot
// holds a value of another type.
func slotValue[T any](s *Slot) (T, bool) {
	if s.value == nil {
		var zero T
		return zero, true
	}
	v, ok := s.value.(T)
	return v, ok
}

// checkedSlot returns s when its stored value is a T, and otherwise records
// a type mismatch on inst and returns a detached slot.
func checkedSlot[T any](inst *Instance, s *Slot) *Slot {
	if s.fresh {
		return s
	}
	if _, ok := slotValue[T](s); ok {
		return s
	}
	return inst.typeMismatch(s, fmt.Sprintf("%T", s.value), reflect.TypeFor[T]().String())
}

type queueConsumer interface {
	consume(n int)
}

// slotTable is one buffer of an instance: the ordered slot arena plus the
// circular list of its effect records.
type slotTable struct {
	slots      []*Slot
	lastEffect *effectRecord

	digest    *xxhash.Digest
	signature uint64
}

func newSlotTable(capacity int) *slotTable {
	return &slotTable{
		slots:  make([]*Slot, 0, capacity),
		digest: xxhash.New(),
	}
}

func (t *slotTable) record(kind SlotKind) {
	t.digest.Write([]byte{byte(kind)})
}

func (t *slotTable) seal() {
	t.signature = t.digest.Sum64()
	t.digest = nil
}

// pushEffect appends e after lastEffect in O(1).
func (t *slotTable) pushEffect(e *effectRecord) {
	if t.lastEffect == nil {
		e.next = e
	} else {
		e.next = t.lastEffect.next
		t.lastEffect.next = e
	}
	t.lastEffect = e
}

// forEachEffect visits every effect record once, starting at lastEffect.next.
func (t *slotTable) forEachEffect(fn func(e *effectRecord)) {
	if t == nil || t.lastEffect == nil {
		return
	}
	first := t.lastEffect.next
	e := first
	for {
		next := e.next
		fn(e)
		if next == first {
			return
		}
		e = next
	}
}
