package hooks

import (
	"strconv"

	"github.com/rs/zerolog"
)

// Body is a component body. It issues its hook calls against inst in the
// same order on every render.
type Body func(inst *Instance) error

// InstanceOption configures an Instance at creation.
type InstanceOption func(*Instance)

// AsErrorBoundary makes the instance catch render and effect errors raised
// by its descendants. The handler usually dispatches a state update that
// swaps in fallback content.
func AsErrorBoundary(handler func(err error)) InstanceOption {
	return func(i *Instance) {
		i.boundary = handler
	}
}

// Instance is one mounted component: a committed slot table, the table
// being built by the current render, and the call-order cursor.
//
// Instance is NOT safe for concurrent use; it belongs to the goroutine that
// drives its Scheduler.
type Instance struct {
	id       uint64
	name     string
	sched    *Scheduler
	parent   *Instance
	children []*Instance
	body     Body
	boundary func(err error)

	current *slotTable
	wip     *slotTable
	base    *slotTable
	cursor  int

	mismatch  *OrderMismatchError
	rendering bool
	finished  bool
	unmounted bool
}

// ID returns the scheduler-unique id of the instance.
func (i *Instance) ID() uint64 { return i.id }

// Name returns the name given at creation.
func (i *Instance) Name() string { return i.name }

// Parent returns the parent instance, or nil for a root.
func (i *Instance) Parent() *Instance { return i.parent }

// Children returns the child instances in mount order.
func (i *Instance) Children() []*Instance { return i.children }

// Mounted reports whether the instance has committed at least once and has
// not been unmounted.
func (i *Instance) Mounted() bool { return i.current != nil && !i.unmounted }

// Unmounted reports whether Unmount has run for the instance.
func (i *Instance) Unmounted() bool { return i.unmounted }

// Rendering reports whether a render is in progress.
func (i *Instance) Rendering() bool { return i.rendering }

// Signature is a fingerprint of the committed hook call sequence. It is
// zero before the first commit.
func (i *Instance) Signature() uint64 {
	if i.current == nil {
		return 0
	}
	return i.current.signature
}

// Len returns the number of slots in the committed table.
func (i *Instance) Len() int {
	if i.current == nil {
		return 0
	}
	return len(i.current.slots)
}

func (i *Instance) String() string {
	return i.name + "#" + strconv.FormatUint(i.id, 10)
}

// MarshalZerologObject lets instances be logged with Event.Object.
func (i *Instance) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("id", i.id).Str("name", i.name)
}

// BeginRender starts a render: the cursor goes back to zero and the
// committed table, if any, becomes the base the new table is built from.
// Pending passive effects are flushed first.
func (i *Instance) BeginRender() error {
	if i.unmounted {
		return ErrUnmounted
	}
	i.sched.FlushPassiveEffects()

	i.base = i.current
	capacity := 0
	if i.base != nil {
		capacity = len(i.base.slots)
	}
	i.wip = newSlotTable(capacity)
	i.cursor = 0
	i.mismatch = nil
	i.rendering = true
	i.finished = false
	return nil
}

// NextSlot returns the slot at the cursor and advances it. On update it is a
// clone of the committed slot at the same position; on mount it is new.
//
// A call that does not line up with the committed table records an
// OrderMismatchError and returns a detached slot; the render can then never
// commit. NextSlot panics with ErrNotRendering outside of a render.
func (i *Instance) NextSlot(kind SlotKind) *Slot {
	if !i.rendering {
		panic(ErrNotRendering)
	}
	pos := i.cursor
	i.cursor++
	i.wip.record(kind)

	if i.mismatch != nil {
		return &Slot{kind: kind, index: pos, fresh: true}
	}

	if i.base == nil {
		s := &Slot{kind: kind, index: pos, fresh: true}
		i.wip.slots = append(i.wip.slots, s)
		return s
	}

	if pos >= len(i.base.slots) {
		i.mismatch = &OrderMismatchError{
			Instance: i.String(),
			Position: pos,
			Got:      kind,
			Want:     len(i.base.slots),
		}
		return &Slot{kind: kind, index: pos, fresh: true}
	}
	prev := i.base.slots[pos]
	if prev.kind != kind {
		i.mismatch = &OrderMismatchError{
			Instance: i.String(),
			Position: pos,
			Expected: prev.kind,
			Got:      kind,
			Want:     len(i.base.slots),
		}
		return &Slot{kind: kind, index: pos, fresh: true}
	}

	s := prev.clone()
	i.wip.slots = append(i.wip.slots, s)
	return s
}

// typeMismatch records that the committed slot s holds a different Go type
// than the current hook call expects and returns a detached slot of the same
// kind. As with any order mismatch the render can never commit.
func (i *Instance) typeMismatch(s *Slot, expected, got string) *Slot {
	if i.mismatch == nil {
		want := 0
		if i.base != nil {
			want = len(i.base.slots)
		}
		i.mismatch = &OrderMismatchError{
			Instance:     i.String(),
			Position:     s.index,
			Expected:     s.kind,
			Got:          s.kind,
			ExpectedType: expected,
			GotType:      got,
			Want:         want,
		}
	}
	return &Slot{kind: s.kind, index: s.index, fresh: true}
}

// finishRender closes the render and validates the call count. On a
// mismatch the work-in-progress table is discarded.
func (i *Instance) finishRender() error {
	if !i.rendering {
		return ErrNotRendering
	}
	i.rendering = false

	if i.mismatch == nil && i.base != nil && i.cursor != len(i.base.slots) {
		mm := &OrderMismatchError{
			Instance: i.String(),
			Position: i.cursor,
			Want:     len(i.base.slots),
		}
		if i.cursor < len(i.base.slots) {
			mm.Expected = i.base.slots[i.cursor].kind
		}
		i.mismatch = mm
	}
	if mm := i.mismatch; mm != nil {
		mm.Have = i.cursor
		i.discard()
		return mm
	}

	i.wip.seal()
	i.finished = true
	return nil
}

// CommitRender ends the current render, if one is open, and atomically
// replaces the committed table with the new one. Effects that need to run
// are queued with the scheduler; the host runs the layout tier with
// Scheduler.RunLayoutEffects, the passive tier is posted to the host.
//
// Calling CommitRender again without a new render returns
// ErrNothingToCommit and changes nothing.
func (i *Instance) CommitRender() error {
	if i.unmounted {
		return ErrUnmounted
	}
	if i.rendering {
		if err := i.finishRender(); err != nil {
			return err
		}
	}
	if !i.finished || i.wip == nil {
		return ErrNothingToCommit
	}
	i.commit()
	i.sched.enqueueEffects(i)
	i.sched.schedulePassiveEffects()
	return nil
}

func (i *Instance) commit() {
	wip := i.wip
	for _, s := range wip.slots {
		s.fresh = false
		if s.consumed > 0 {
			s.queue.consume(s.consumed)
			s.consumed = 0
		}
	}
	i.current = wip
	i.wip = nil
	i.base = nil
	i.cursor = 0
	i.finished = false
	i.sched.stats.Commits++
}

// discard drops the work-in-progress table. Queued updates stay queued.
func (i *Instance) discard() {
	i.wip = nil
	i.base = nil
	i.cursor = 0
	i.rendering = false
	i.finished = false
}

func (i *Instance) nearestBoundary() *Instance {
	for p := i.parent; p != nil; p = p.parent {
		if p.boundary != nil && !p.unmounted {
			return p
		}
	}
	return nil
}

func (i *Instance) removeChild(child *Instance) {
	for idx, c := range i.children {
		if c == child {
			i.children = append(i.children[:idx], i.children[idx+1:]...)
			return
		}
	}
}
