package hooks

import (
	"errors"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
)

// Phase is the scheduler's position in the render/commit cycle.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseScheduled
	PhaseRendering
	PhaseCommitting
	PhaseEffectsPending
)

func (p Phase) String() string {
	switch p {
	case PhaseScheduled:
		return "scheduled"
	case PhaseRendering:
		return "rendering"
	case PhaseCommitting:
		return "committing"
	case PhaseEffectsPending:
		return "effects-pending"
	default:
		return "idle"
	}
}

// Host is the rendering layer's event loop as seen by the scheduler.
type Host interface {
	// ScheduleTick runs fn at the next tick boundary, before the host paints.
	ScheduleTick(fn func())
	// ScheduleIdle runs fn after the host had a chance to paint.
	ScheduleIdle(fn func())
}

// Stats counts the work a scheduler has done.
type Stats struct {
	Flushes           uint64
	Renders           uint64
	Commits           uint64
	Effects           uint64
	Cleanups          uint64
	AbandonedRenders  uint64
	DroppedDispatches uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithErrorHandler receives every reported, non-fatal error: effect
// failures and dispatches after unmount.
func WithErrorHandler(fn func(err error)) Option {
	return func(s *Scheduler) {
		s.onError = fn
	}
}

// WithFatalHandler receives errors from flushes started by the host that no
// error boundary caught. The default logs the error and panics.
func WithFatalHandler(fn func(err error)) Option {
	return func(s *Scheduler) {
		s.onFatal = fn
	}
}

// Scheduler coalesces dispatches into one render and commit per tick and
// commits effects in two tiers. It owns the pending set shared by all of its
// instances, so independent schedulers can coexist in one process.
//
// Scheduler is NOT safe for concurrent use. Other goroutines should hand
// work to the host loop instead of calling it directly.
type Scheduler struct {
	host    Host
	log     zerolog.Logger
	onError func(err error)
	onFatal func(err error)

	phase  Phase
	nextID uint64
	roots  []*Instance

	urgent          mapset.Set[*Instance]
	transitions     mapset.Set[*Instance]
	transitionDepth int
	work            *transitionWork

	tickScheduled       bool
	idleScheduled       bool
	transitionScheduled bool
	syncDepth           int

	layoutQueue     mapset.Set[*Instance]
	passiveQueue    mapset.Set[*Instance]
	flushingPassive bool

	closed bool
	stats  Stats
}

// NewScheduler creates a scheduler driven by host. With a nil host nothing
// is scheduled automatically and the caller drives Flush,
// FlushPassiveEffects and StepTransition.
func NewScheduler(host Host, opts ...Option) *Scheduler {
	s := &Scheduler{
		host:         host,
		log:          zerolog.Nop(),
		urgent:       mapset.NewThreadUnsafeSet[*Instance](),
		transitions:  mapset.NewThreadUnsafeSet[*Instance](),
		layoutQueue:  mapset.NewThreadUnsafeSet[*Instance](),
		passiveQueue: mapset.NewThreadUnsafeSet[*Instance](),
	}
	s.onFatal = func(err error) {
		s.log.Error().Err(err).Msg("unhandled render error")
		panic(err)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the current phase.
func (s *Scheduler) Phase() Phase { return s.phase }

// Stats returns a snapshot of the work counters.
func (s *Scheduler) Stats() Stats { return s.stats }

// Roots returns the instances created without a parent, in mount order.
func (s *Scheduler) Roots() []*Instance { return s.roots }

// Pending reports whether any instance waits for a render.
func (s *Scheduler) Pending() bool {
	return s.urgent.Cardinality() > 0 || s.transitions.Cardinality() > 0 || s.work != nil
}

// NewInstance creates an instance under parent (nil for a root) and
// schedules its mount render. An instance with a nil body is driven by the
// host through BeginRender and CommitRender; the scheduler never renders it.
func (s *Scheduler) NewInstance(parent *Instance, name string, body Body, opts ...InstanceOption) *Instance {
	s.nextID++
	inst := &Instance{
		id:     s.nextID,
		name:   name,
		sched:  s,
		parent: parent,
		body:   body,
	}
	for _, opt := range opts {
		opt(inst)
	}
	if parent != nil {
		parent.children = append(parent.children, inst)
	} else {
		s.roots = append(s.roots, inst)
	}
	s.log.Debug().Object("instance", inst).Msg("instance created")
	if body != nil {
		s.markPending(inst)
	}
	return inst
}

// StartTransition runs fn; updates it dispatches are low priority. Their
// renders are time-sliced over idle callbacks and thrown away if an urgent
// update arrives before they commit.
func (s *Scheduler) StartTransition(fn func()) {
	s.transitionDepth++
	defer func() { s.transitionDepth-- }()
	fn()
}

func (s *Scheduler) markPending(inst *Instance) {
	if s.closed {
		return
	}
	if s.transitionDepth > 0 && !s.urgent.Contains(inst) {
		s.transitions.Add(inst)
		if s.phase == PhaseIdle {
			s.phase = PhaseScheduled
		}
		s.scheduleTransitionWork()
		return
	}
	s.urgent.Add(inst)
	if s.phase == PhaseIdle {
		s.phase = PhaseScheduled
	}
	s.scheduleTick()
}

func (s *Scheduler) scheduleTick() {
	if s.host == nil || s.tickScheduled || s.syncDepth > 0 {
		return
	}
	s.tickScheduled = true
	s.host.ScheduleTick(s.onTick)
}

func (s *Scheduler) onTick() {
	s.tickScheduled = false
	if s.closed {
		return
	}
	if err := s.Flush(); err != nil {
		s.onFatal(err)
	}
}

// Flush renders every urgently pending instance exactly once, parents
// first, commits them together, runs the layout tier and posts the passive
// tier. Dispatches that arrive during the flush wait for the next one.
//
// A render error is passed to the nearest error boundary. An
// OrderMismatchError, or any error without a boundary, aborts the whole
// batch: nothing commits and the error is returned.
func (s *Scheduler) Flush() error {
	if s.closed {
		return ErrSchedulerClosed
	}
	if s.busy() {
		return ErrSyncInRender
	}
	s.stats.Flushes++
	s.FlushPassiveEffects()

	err := s.flushUrgent()
	s.scheduleTransitionWork()
	return err
}

// FlushSync runs fn and immediately renders and commits whatever it
// dispatched, together with anything else already pending, before
// returning. Layout effects have run when it returns; passive effects are
// still deferred.
func (s *Scheduler) FlushSync(fn func()) error {
	if s.closed {
		return ErrSchedulerClosed
	}
	if s.busy() {
		return ErrSyncInRender
	}
	s.syncDepth++
	func() {
		defer func() { s.syncDepth-- }()
		fn()
	}()
	s.FlushPassiveEffects()
	err := s.flushUrgent()
	s.scheduleTransitionWork()
	return err
}

func (s *Scheduler) busy() bool {
	return s.phase == PhaseRendering || s.phase == PhaseCommitting
}

func (s *Scheduler) flushUrgent() error {
	if s.urgent.Cardinality() == 0 {
		s.settle()
		return nil
	}
	if s.work != nil {
		s.abandonTransition()
	}

	batch := s.ordered(s.urgent, false)
	s.urgent.Clear()
	for _, inst := range batch {
		s.transitions.Remove(inst)
	}
	s.log.Debug().Int("instances", len(batch)).Msg("flush")

	s.phase = PhaseRendering
	rendered := make([]*Instance, 0, len(batch))
	var fatal []error
	for _, inst := range batch {
		if inst.unmounted || inst.body == nil {
			continue
		}
		if err := s.render(inst); err != nil {
			if s.handleRenderError(inst, err) {
				continue
			}
			fatal = append(fatal, err)
			continue
		}
		rendered = append(rendered, inst)
	}

	if len(fatal) > 0 {
		for _, inst := range rendered {
			inst.discard()
		}
		s.settle()
		return errors.Join(fatal...)
	}

	s.commitBatch(rendered)
	return nil
}

func (s *Scheduler) commitBatch(rendered []*Instance) {
	s.phase = PhaseCommitting
	for _, inst := range rendered {
		if inst.unmounted || !inst.finished {
			continue
		}
		inst.commit()
		s.enqueueEffects(inst)
	}
	s.phase = PhaseEffectsPending
	s.RunLayoutEffects()
	s.schedulePassiveEffects()
	s.settle()
}

// render runs inst's body into a fresh work-in-progress table. On error the
// table is discarded and queued updates are kept.
func (s *Scheduler) render(inst *Instance) (err error) {
	defer func() {
		if r := recover(); r != nil {
			mm := inst.mismatch
			inst.discard()
			if mm != nil {
				err = mm
				return
			}
			err = &RenderError{
				Instance:   inst.String(),
				Recovered:  r,
				StackTrace: captureStack(),
				Timestamp:  time.Now(),
			}
		}
	}()

	if err = inst.BeginRender(); err != nil {
		return err
	}
	s.stats.Renders++
	if err = inst.body(inst); err != nil {
		mm := inst.mismatch
		inst.discard()
		if mm != nil {
			return mm
		}
		return &RenderError{
			Instance:  inst.String(),
			Err:       err,
			Timestamp: time.Now(),
		}
	}
	return inst.finishRender()
}

func (s *Scheduler) handleRenderError(inst *Instance, err error) bool {
	var mm *OrderMismatchError
	if errors.As(err, &mm) {
		s.log.Error().Err(err).Object("instance", inst).Msg("hook order changed")
		return false
	}
	b := inst.nearestBoundary()
	if b == nil {
		return false
	}
	s.log.Warn().Err(err).Object("instance", inst).Object("boundary", b).Msg("render error caught by boundary")
	b.boundary(err)
	return true
}

func (s *Scheduler) reportEffectError(inst *Instance, err error) {
	if s.onError != nil {
		s.onError(err)
	}
	if b := inst.nearestBoundary(); b != nil {
		b.boundary(err)
	}
}

func (s *Scheduler) reportDispatchAfterUnmount(inst *Instance, slot int) {
	s.stats.DroppedDispatches++
	err := &DispatchAfterUnmountError{Instance: inst.String(), Slot: slot}
	s.log.Warn().Err(err).Object("instance", inst).Msg("dispatch after unmount ignored")
	if s.onError != nil {
		s.onError(err)
	}
}

// settle moves the phase to wherever outstanding work says it is.
func (s *Scheduler) settle() {
	switch {
	case s.urgent.Cardinality() > 0, s.transitions.Cardinality() > 0, s.work != nil:
		s.phase = PhaseScheduled
	case s.layoutQueue.Cardinality() > 0 || s.passiveQueue.Cardinality() > 0:
		s.phase = PhaseEffectsPending
	default:
		s.phase = PhaseIdle
	}
}

// ordered returns the members of set in tree order: pre-order (parents
// first) or post-order (children first).
func (s *Scheduler) ordered(set mapset.Set[*Instance], post bool) []*Instance {
	out := make([]*Instance, 0, set.Cardinality())
	var walk func(inst *Instance)
	walk = func(inst *Instance) {
		if !post && set.Contains(inst) {
			out = append(out, inst)
		}
		for _, c := range inst.children {
			walk(c)
		}
		if post && set.Contains(inst) {
			out = append(out, inst)
		}
	}
	for _, r := range s.roots {
		walk(r)
	}
	return out
}

// Close unmounts every root and stops accepting work.
func (s *Scheduler) Close() error {
	if s.closed {
		return nil
	}
	var errs []error
	for len(s.roots) > 0 {
		if err := s.Unmount(s.roots[0]); err != nil {
			errs = append(errs, err)
			break
		}
	}
	s.closed = true
	s.urgent.Clear()
	s.transitions.Clear()
	s.work = nil
	s.tickScheduled = false
	s.idleScheduled = false
	s.transitionScheduled = false
	s.phase = PhaseIdle
	return errors.Join(errs...)
}
