package hooks

import mapset "github.com/deckarep/golang-set/v2"

// enqueueEffects queues inst for each tier that has effects to run after
// its latest commit.
func (s *Scheduler) enqueueEffects(inst *Instance) {
	inst.current.forEachEffect(func(e *effectRecord) {
		if !e.pending() {
			return
		}
		if e.tier() == TierLayout {
			s.layoutQueue.Add(inst)
		} else {
			s.passiveQueue.Add(inst)
		}
	})
}

// RunLayoutEffects runs the layout tier of every committed instance,
// children before parents. The scheduler calls it right after its own
// commits; hosts that commit through Instance.CommitRender call it before
// painting.
func (s *Scheduler) RunLayoutEffects() {
	if s.layoutQueue.Cardinality() == 0 {
		return
	}
	queued := s.layoutQueue
	s.layoutQueue = mapset.NewThreadUnsafeSet[*Instance]()
	for _, inst := range s.ordered(queued, true) {
		s.commitEffects(inst, TierLayout)
	}
}

// FlushPassiveEffects runs the passive tier of every committed instance,
// children before parents. It is what the scheduler posts to the host's
// idle queue; calling it directly is allowed and makes the posted callback
// a no-op.
func (s *Scheduler) FlushPassiveEffects() {
	if s.flushingPassive || s.passiveQueue.Cardinality() == 0 {
		return
	}
	s.flushingPassive = true
	defer func() { s.flushingPassive = false }()

	queued := s.passiveQueue
	s.passiveQueue = mapset.NewThreadUnsafeSet[*Instance]()
	for _, inst := range s.ordered(queued, true) {
		s.commitEffects(inst, TierPassive)
	}
	if !s.busy() {
		s.settle()
	}
}

func (s *Scheduler) schedulePassiveEffects() {
	if s.host == nil || s.idleScheduled || s.passiveQueue.Cardinality() == 0 {
		return
	}
	s.idleScheduled = true
	s.host.ScheduleIdle(func() {
		s.idleScheduled = false
		if s.closed {
			return
		}
		s.FlushPassiveEffects()
	})
}

// commitEffects runs cleanup then create for each effect of one tier that
// was flagged by the last render.
func (s *Scheduler) commitEffects(inst *Instance, tier EffectTier) {
	if inst.unmounted {
		return
	}
	inst.current.forEachEffect(func(e *effectRecord) {
		if !e.pending() || e.tier() != tier {
			return
		}
		e.tags &^= tagHasEffect

		if cleanup := e.handle.cleanup; cleanup != nil {
			e.handle.cleanup = nil
			s.runCleanup(inst, e, cleanup)
		}
		s.runCreate(inst, e)
	})
}

func (s *Scheduler) runCreate(inst *Instance, e *effectRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.effectFailed(inst, &EffectExecutionError{
				Instance:   inst.String(),
				Slot:       e.slot,
				Tier:       e.tier(),
				Recovered:  r,
				StackTrace: captureStack(),
			})
		}
	}()
	s.stats.Effects++
	cleanup, err := e.create()
	e.handle.cleanup = cleanup
	if err != nil {
		s.effectFailed(inst, &EffectExecutionError{
			Instance: inst.String(),
			Slot:     e.slot,
			Tier:     e.tier(),
			Err:      err,
		})
	}
}

func (s *Scheduler) runCleanup(inst *Instance, e *effectRecord, cleanup Cleanup) {
	defer func() {
		if r := recover(); r != nil {
			s.effectFailed(inst, &EffectExecutionError{
				Instance:   inst.String(),
				Slot:       e.slot,
				Tier:       e.tier(),
				Cleanup:    true,
				Recovered:  r,
				StackTrace: captureStack(),
			})
		}
	}()
	s.stats.Cleanups++
	if err := cleanup(); err != nil {
		s.effectFailed(inst, &EffectExecutionError{
			Instance: inst.String(),
			Slot:     e.slot,
			Tier:     e.tier(),
			Cleanup:  true,
			Err:      err,
		})
	}
}

func (s *Scheduler) effectFailed(inst *Instance, err *EffectExecutionError) {
	s.log.Error().Err(err).Object("instance", inst).Int("slot", err.Slot).Stringer("tier", err.Tier).Msg("effect failed")
	s.reportEffectError(inst, err)
}

// Unmount runs every cleanup in the subtree rooted at inst, layout tier
// first and passive tier second, children before parents in both, then
// discards the slot tables and detaches the subtree.
func (s *Scheduler) Unmount(inst *Instance) error {
	if inst.unmounted {
		return ErrUnmounted
	}
	if s.busy() {
		return ErrSyncInRender
	}
	s.FlushPassiveEffects()

	subtree := mapset.NewThreadUnsafeSet[*Instance]()
	var collect func(i *Instance)
	collect = func(i *Instance) {
		subtree.Add(i)
		for _, c := range i.children {
			collect(c)
		}
	}
	collect(inst)
	order := s.ordered(subtree, true)

	for _, tier := range []EffectTier{TierLayout, TierPassive} {
		for _, i := range order {
			s.destroyEffects(i, tier)
		}
	}

	for _, i := range order {
		i.unmounted = true
		i.discard()
		i.current = nil
		s.urgent.Remove(i)
		s.transitions.Remove(i)
		s.layoutQueue.Remove(i)
		s.passiveQueue.Remove(i)
	}
	if s.work != nil {
		s.work.drop(subtree)
	}

	if inst.parent != nil {
		inst.parent.removeChild(inst)
	} else {
		for idx, r := range s.roots {
			if r == inst {
				s.roots = append(s.roots[:idx], s.roots[idx+1:]...)
				break
			}
		}
	}
	s.log.Debug().Object("instance", inst).Int("instances", len(order)).Msg("unmounted")
	s.settle()
	return nil
}

func (s *Scheduler) destroyEffects(inst *Instance, tier EffectTier) {
	inst.current.forEachEffect(func(e *effectRecord) {
		if e.tier() != tier {
			return
		}
		if cleanup := e.handle.cleanup; cleanup != nil {
			e.handle.cleanup = nil
			s.runCleanup(inst, e, cleanup)
		}
	})
}
