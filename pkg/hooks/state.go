package hooks

import (
	"fmt"
	"reflect"
)

// Dispatch enqueues an action for a reducer slot. It never blocks and never
// recomputes; the action is folded in on the next render of the instance.
type Dispatch[A any] func(action A)

// SetState enqueues updates for a slot created by UseState.
type SetState[T any] struct {
	dispatch Dispatch[stateUpdate[T]]
}

// Set queues a replacement value.
func (s SetState[T]) Set(value T) {
	s.dispatch(stateUpdate[T]{value: value})
}

// Update queues a function of the value accumulated so far.
func (s SetState[T]) Update(fn func(prev T) T) {
	s.dispatch(stateUpdate[T]{fn: fn})
}

type stateUpdate[T any] struct {
	value T
	fn    func(prev T) T
}

func basicStateReducer[T any](state T, u stateUpdate[T]) T {
	if u.fn != nil {
		return u.fn(state)
	}
	return u.value
}

// updateQueue holds the dispatched, not yet committed actions of one state
// slot. It is shared by both buffers of the slot.
type updateQueue[S, A any] struct {
	inst     *Instance
	index    int
	reducer  func(S, A) S
	pending  []A
	dispatch Dispatch[A]
}

func (q *updateQueue[S, A]) push(action A) {
	inst := q.inst
	if inst.unmounted {
		inst.sched.reportDispatchAfterUnmount(inst, q.index)
		return
	}
	q.pending = append(q.pending, action)
	inst.sched.markPending(inst)
}

func (q *updateQueue[S, A]) consume(n int) {
	if n >= len(q.pending) {
		clear(q.pending)
		q.pending = q.pending[:0]
		return
	}
	rest := copy(q.pending, q.pending[n:])
	clear(q.pending[rest:])
	q.pending = q.pending[:rest]
}

// fold reduces the queued actions over the committed state in FIFO order.
func (q *updateQueue[S, A]) fold(state S) (S, int) {
	for _, action := range q.pending {
		state = q.reducer(state, action)
	}
	return state, len(q.pending)
}

// UseState returns the current value of a state slot and a handle to queue
// updates to it. initial is only used at mount.
func UseState[T any](inst *Instance, initial T) (T, SetState[T]) {
	value, dispatch := UseReducer(inst, basicStateReducer[T], initial)
	return value, SetState[T]{dispatch: dispatch}
}

// UseReducer returns the state of a reducer slot and a dispatch function.
// Every queued action goes through reducer, which is fixed at mount.
func UseReducer[S, A any](inst *Instance, reducer func(state S, action A) S, initial S) (S, Dispatch[A]) {
	slot := inst.NextSlot(SlotState)
	if !slot.fresh {
		if _, ok := slot.queue.(*updateQueue[S, A]); !ok {
			slot = inst.typeMismatch(slot,
				fmt.Sprintf("%T", slot.queue),
				reflect.TypeFor[*updateQueue[S, A]]().String())
		}
	}
	if slot.fresh {
		q := &updateQueue[S, A]{
			inst:    inst,
			index:   slot.index,
			reducer: reducer,
		}
		q.dispatch = q.push
		slot.queue = q
		slot.value = initial
	}

	q := slot.queue.(*updateQueue[S, A])
	committed, _ := slotValue[S](slot)
	state, n := q.fold(committed)
	slot.value = state
	slot.consumed = n
	return state, q.dispatch
}
