package hooks

// EffectTier decides when an effect runs relative to the host's paint.
type EffectTier uint8

const (
	// TierPassive effects run on a later idle callback, after the host painted.
	TierPassive EffectTier = iota
	// TierLayout effects run synchronously right after commit, before paint.
	TierLayout
)

func (t EffectTier) String() string {
	if t == TierLayout {
		return "layout"
	}
	return "passive"
}

// Cleanup undoes an effect. It runs before the effect's next create and at
// unmount.
type Cleanup func() error

// EffectFunc performs a side effect and optionally returns its cleanup.
type EffectFunc func() (Cleanup, error)

type effectTag uint8

const (
	tagHasEffect effectTag = 1 << iota
	tagLayout
)

// effectHandle carries the cleanup returned by the latest create. It is
// shared by every record of the same slot across renders.
type effectHandle struct {
	cleanup Cleanup
}

type effectRecord struct {
	create EffectFunc
	deps   Deps
	tags   effectTag
	handle *effectHandle
	slot   int
	next   *effectRecord
}

func (e *effectRecord) tier() EffectTier {
	if e.tags&tagLayout != 0 {
		return TierLayout
	}
	return TierPassive
}

func (e *effectRecord) pending() bool {
	return e.tags&tagHasEffect != 0
}

// UseEffect registers a passive effect. create runs after commit when deps
// changed since the last committed render; a nil deps runs it every commit.
func UseEffect(inst *Instance, create EffectFunc, deps Deps) {
	UseEffectTier(inst, create, deps, TierPassive)
}

// UseLayoutEffect registers an effect that runs synchronously after commit,
// before the host paints.
func UseLayoutEffect(inst *Instance, create EffectFunc, deps Deps) {
	UseEffectTier(inst, create, deps, TierLayout)
}

// UseEffectTier registers an effect in the given tier.
func UseEffectTier(inst *Instance, create EffectFunc, deps Deps, tier EffectTier) {
	slot := inst.NextSlot(SlotEffect)
	prev := slot.effect

	rec := &effectRecord{
		create: create,
		deps:   deps,
		slot:   slot.index,
	}
	if tier == TierLayout {
		rec.tags |= tagLayout
	}

	switch {
	case prev == nil:
		rec.tags |= tagHasEffect
		rec.handle = &effectHandle{}
	case !DepsEqual(prev.deps, deps):
		rec.tags |= tagHasEffect
		rec.handle = prev.handle
	default:
		rec.create = prev.create
		rec.deps = prev.deps
		rec.handle = prev.handle
	}

	slot.effect = rec
	inst.wip.pushEffect(rec)
}
