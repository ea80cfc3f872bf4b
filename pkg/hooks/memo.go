package hooks

import (
	"fmt"
	"reflect"
)

// Ref is a mutable box that survives renders. Writing Current does not
// schedule a render.
type Ref[T any] struct {
	Current T
}

// UseMemo returns compute's result, recomputing only when deps changed.
func UseMemo[T any](inst *Instance, compute func() T, deps Deps) T {
	slot := checkedSlot[T](inst, inst.NextSlot(SlotMemo))
	if slot.fresh || !DepsEqual(slot.deps, deps) {
		slot.value = compute()
		slot.deps = deps
	}
	v, _ := slotValue[T](slot)
	return v
}

// UseCallback returns the fn passed on the render where deps last changed,
// so callers see a stable value while deps hold.
func UseCallback[F any](inst *Instance, fn F, deps Deps) F {
	slot := checkedSlot[F](inst, inst.NextSlot(SlotCallback))
	if slot.fresh || !DepsEqual(slot.deps, deps) {
		slot.value = fn
		slot.deps = deps
	}
	v, _ := slotValue[F](slot)
	return v
}

// UseRef returns the same *Ref on every render of the instance.
func UseRef[T any](inst *Instance, initial T) *Ref[T] {
	slot := inst.NextSlot(SlotRef)
	if !slot.fresh {
		if ref, ok := slot.value.(*Ref[T]); ok {
			return ref
		}
		slot = inst.typeMismatch(slot,
			fmt.Sprintf("%T", slot.value),
			reflect.TypeFor[*Ref[T]]().String())
	}
	ref := &Ref[T]{Current: initial}
	slot.value = ref
	return ref
}
