package hooks

import mapset "github.com/deckarep/golang-set/v2"

// transitionWork is a low-priority batch whose renders are spread over idle
// callbacks. Nothing in it has committed, so it can be thrown away whole.
type transitionWork struct {
	queue    []*Instance
	rendered []*Instance
}

func (w *transitionWork) drop(set mapset.Set[*Instance]) {
	keep := func(list []*Instance) []*Instance {
		out := list[:0]
		for _, inst := range list {
			if !set.Contains(inst) {
				out = append(out, inst)
			}
		}
		return out
	}
	w.queue = keep(w.queue)
	w.rendered = keep(w.rendered)
}

func (s *Scheduler) scheduleTransitionWork() {
	if s.host == nil || s.transitionScheduled {
		return
	}
	if s.work == nil && s.transitions.Cardinality() == 0 {
		return
	}
	s.transitionScheduled = true
	s.host.ScheduleIdle(func() {
		s.transitionScheduled = false
		if s.closed {
			return
		}
		more, err := s.StepTransition()
		if err != nil {
			s.onFatal(err)
		}
		if more {
			s.scheduleTransitionWork()
		}
	})
}

// StepTransition performs one slice of transition work: it renders the next
// instance of the current low-priority batch, or commits the batch once all
// of it rendered. It reports whether more slices are needed.
//
// The scheduler calls it from idle callbacks; with a nil host the caller
// drives it.
func (s *Scheduler) StepTransition() (bool, error) {
	if s.closed {
		return false, ErrSchedulerClosed
	}
	if s.busy() {
		return false, ErrSyncInRender
	}
	if s.work == nil {
		if s.transitions.Cardinality() == 0 {
			return false, nil
		}
		s.FlushPassiveEffects()
		s.work = &transitionWork{queue: s.ordered(s.transitions, false)}
		s.transitions.Clear()
		s.log.Debug().Int("instances", len(s.work.queue)).Msg("transition started")
	}

	w := s.work
	if len(w.queue) > 0 {
		inst := w.queue[0]
		w.queue = w.queue[1:]
		if !inst.unmounted && inst.body != nil {
			s.phase = PhaseRendering
			err := s.render(inst)
			s.settle()
			switch {
			case err == nil:
				w.rendered = append(w.rendered, inst)
			case s.handleRenderError(inst, err):
			default:
				for _, r := range w.rendered {
					r.discard()
				}
				s.work = nil
				s.settle()
				return false, err
			}
		}
		if len(w.queue) > 0 {
			return true, nil
		}
	}

	s.work = nil
	s.log.Debug().Int("instances", len(w.rendered)).Msg("transition committed")
	s.commitBatch(w.rendered)
	return s.transitions.Cardinality() > 0, nil
}

// abandonTransition throws away every render of the in-flight transition
// and puts its instances back in the low-priority pending set.
func (s *Scheduler) abandonTransition() {
	w := s.work
	s.work = nil
	for _, inst := range w.rendered {
		inst.discard()
		s.transitions.Add(inst)
		s.stats.AbandonedRenders++
	}
	for _, inst := range w.queue {
		s.transitions.Add(inst)
	}
	s.log.Debug().Int("abandoned", len(w.rendered)).Msg("transition preempted")
}
