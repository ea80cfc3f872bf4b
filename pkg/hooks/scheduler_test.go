package hooks_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/hookparty/pkg/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhases(t *testing.T) {
	s := newManual(t)
	assert.Equal(t, hooks.PhaseIdle, s.Phase())

	var seen []hooks.Phase
	s.NewInstance(nil, "widget", func(inst *hooks.Instance) error {
		seen = append(seen, s.Phase())
		hooks.UseEffect(inst, func() (hooks.Cleanup, error) {
			seen = append(seen, s.Phase())
			return nil, nil
		}, hooks.Deps{})
		return nil
	})
	assert.Equal(t, hooks.PhaseScheduled, s.Phase())
	assert.True(t, s.Pending())

	require.NoError(t, s.Flush())
	assert.Equal(t, hooks.PhaseEffectsPending, s.Phase())
	assert.False(t, s.Pending())

	s.FlushPassiveEffects()
	assert.Equal(t, hooks.PhaseIdle, s.Phase())
	assert.Equal(t, []hooks.Phase{hooks.PhaseRendering, hooks.PhaseEffectsPending}, seen)
	assert.Equal(t, "effects-pending", hooks.PhaseEffectsPending.String())
}

func TestParentsRenderBeforeChildren(t *testing.T) {
	s := newManual(t)
	var order []string
	body := func(name string) hooks.Body {
		return func(inst *hooks.Instance) error {
			order = append(order, name)
			return nil
		}
	}
	// mount order differs from tree order on purpose
	root := s.NewInstance(nil, "root", body("root"))
	b := s.NewInstance(root, "b", body("b"))
	a := s.NewInstance(root, "a", body("a"))
	s.NewInstance(b, "b1", body("b1"))
	require.NoError(t, s.Flush())
	assert.Equal(t, []string{"root", "b", "b1", "a"}, order)
	assert.Equal(t, []*hooks.Instance{b, a}, root.Children())
}

func TestNoReentrantFlush(t *testing.T) {
	s := newManual(t)
	var flushErr, syncErr, unmountErr error
	s.NewInstance(nil, "widget", func(inst *hooks.Instance) error {
		flushErr = s.Flush()
		syncErr = s.FlushSync(func() {})
		unmountErr = s.Unmount(inst)
		return nil
	})
	require.NoError(t, s.Flush())
	assert.ErrorIs(t, flushErr, hooks.ErrSyncInRender)
	assert.ErrorIs(t, syncErr, hooks.ErrSyncInRender)
	assert.ErrorIs(t, unmountErr, hooks.ErrSyncInRender)
}

// a dispatch issued while rendering is picked up by the next flush
func TestDispatchDuringRenderWaitsForNextFlush(t *testing.T) {
	s := newManual(t)
	c := &counter{}
	c.inst = s.NewInstance(nil, "counter", func(inst *hooks.Instance) error {
		c.renders++
		c.value, c.set = hooks.UseState(inst, 0)
		if c.value == 0 {
			c.set.Set(1)
		}
		return nil
	})
	require.NoError(t, s.Flush())
	assert.Equal(t, 0, c.value)
	assert.Equal(t, hooks.PhaseScheduled, s.Phase())

	require.NoError(t, s.Flush())
	assert.Equal(t, 1, c.value)
	assert.Equal(t, 2, c.renders)
	assert.False(t, s.Pending())
}

func TestFlushSync(t *testing.T) {
	s, l := newRuntime(t)
	events := &eventLog{}
	c := &counter{}
	c.inst = s.NewInstance(nil, "counter", func(inst *hooks.Instance) error {
		c.value, c.set = hooks.UseState(inst, 0)
		hooks.UseLayoutEffect(inst, events.logged("layout"), hooks.Deps{c.value})
		hooks.UseEffect(inst, events.logged("passive"), hooks.Deps{c.value})
		return nil
	})
	l.RunUntilIdle()
	events.take()

	var during []string
	require.NoError(t, l.Submit(func() {
		require.NoError(t, s.FlushSync(func() { c.set.Set(3) }))
		assert.Equal(t, 3, c.value)
		during = events.take()
	}))
	l.RunUntilIdle()

	assertEvents(t, []string{"layout-cleanup", "layout-create"}, during)
	assertEvents(t, []string{"passive-cleanup", "passive-create"}, events.take())
}

// a render error with no boundary aborts the batch; nothing commits
func TestUncaughtRenderErrorAbortsBatch(t *testing.T) {
	s := newManual(t)
	boom := errors.New("boom")
	events := &eventLog{}

	a := &counter{}
	a.inst = s.NewInstance(nil, "a", func(inst *hooks.Instance) error {
		a.value, a.set = hooks.UseState(inst, 0)
		hooks.UseEffect(inst, events.logged("a"), nil)
		return nil
	})
	fail := false
	var setB hooks.SetState[int]
	s.NewInstance(nil, "b", func(inst *hooks.Instance) error {
		_, setB = hooks.UseState(inst, 0)
		if fail {
			return boom
		}
		return nil
	})
	require.NoError(t, s.Flush())
	s.FlushPassiveEffects()
	events.take()

	fail = true
	a.set.Update(addOne)
	setB.Update(addOne)
	err := s.Flush()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var re *hooks.RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "b#2", re.Instance)

	s.FlushPassiveEffects()
	assert.Empty(t, events.take())
	assert.Equal(t, hooks.PhaseIdle, s.Phase())

	// the update that was folded into the aborted render is still queued
	fail = false
	a.set.Update(addOne)
	require.NoError(t, s.Flush())
	assert.Equal(t, 2, a.value)
}

func TestRenderPanicIsCaughtByBoundary(t *testing.T) {
	s := newManual(t)
	var caught []error
	boundary := s.NewInstance(nil, "boundary", func(*hooks.Instance) error { return nil },
		hooks.AsErrorBoundary(func(err error) { caught = append(caught, err) }))
	s.NewInstance(boundary, "child", func(*hooks.Instance) error {
		panic("render exploded")
	})
	require.NoError(t, s.Flush())

	require.Len(t, caught, 1)
	var re *hooks.RenderError
	require.ErrorAs(t, caught[0], &re)
	assert.Equal(t, "render exploded", re.Recovered)
	assert.NotEmpty(t, re.StackTrace)
	assert.Contains(t, re.Error(), "child#2")
}

// changing the hook order is a programming error no boundary can handle
func TestOrderMismatchIsFatalEvenWithBoundary(t *testing.T) {
	s := newManual(t)
	var caught []error
	boundary := s.NewInstance(nil, "boundary", func(*hooks.Instance) error { return nil },
		hooks.AsErrorBoundary(func(err error) { caught = append(caught, err) }))

	extra := false
	var set hooks.SetState[int]
	child := s.NewInstance(boundary, "child", func(inst *hooks.Instance) error {
		_, set = hooks.UseState(inst, 0)
		if extra {
			hooks.UseRef(inst, 0)
		}
		return nil
	})
	require.NoError(t, s.Flush())
	sig := child.Signature()

	extra = true
	set.Set(1)
	err := s.Flush()
	var mm *hooks.OrderMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, 1, mm.Want)
	assert.Equal(t, 2, mm.Have)
	assert.Empty(t, caught)
	assert.Equal(t, sig, child.Signature())
}

// the same slot kind holding a different Go type is a changed hook order too
func TestChangedHookTypeIsFatalEvenWithBoundary(t *testing.T) {
	for _, tc := range []struct {
		name    string
		kind    hooks.SlotKind
		before  func(inst *hooks.Instance)
		after   func(inst *hooks.Instance)
		gotType string
	}{
		{
			name:    "state",
			kind:    hooks.SlotState,
			before:  func(inst *hooks.Instance) { hooks.UseState(inst, 0) },
			after:   func(inst *hooks.Instance) { hooks.UseState(inst, "x") },
			gotType: "string",
		},
		{
			name: "memo",
			kind: hooks.SlotMemo,
			before: func(inst *hooks.Instance) {
				hooks.UseMemo(inst, func() int { return 1 }, hooks.Deps{})
			},
			after: func(inst *hooks.Instance) {
				hooks.UseMemo(inst, func() string { return "x" }, hooks.Deps{})
			},
			gotType: "string",
		},
		{
			name: "callback",
			kind: hooks.SlotCallback,
			before: func(inst *hooks.Instance) {
				hooks.UseCallback(inst, func() {}, hooks.Deps{})
			},
			after: func(inst *hooks.Instance) {
				hooks.UseCallback(inst, func(int) {}, hooks.Deps{})
			},
			gotType: "func(int)",
		},
		{
			name:    "ref",
			kind:    hooks.SlotRef,
			before:  func(inst *hooks.Instance) { hooks.UseRef(inst, 0) },
			after:   func(inst *hooks.Instance) { hooks.UseRef(inst, "x") },
			gotType: "*hooks.Ref[string]",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newManual(t)
			var caught []error
			boundary := s.NewInstance(nil, "boundary", func(*hooks.Instance) error { return nil },
				hooks.AsErrorBoundary(func(err error) { caught = append(caught, err) }))

			changed := false
			var bump hooks.SetState[int]
			child := s.NewInstance(boundary, "child", func(inst *hooks.Instance) error {
				if changed {
					tc.after(inst)
				} else {
					tc.before(inst)
				}
				_, bump = hooks.UseState(inst, 0)
				return nil
			})
			require.NoError(t, s.Flush())
			sig := child.Signature()

			changed = true
			bump.Set(1)
			err := s.Flush()
			var mm *hooks.OrderMismatchError
			require.ErrorAs(t, err, &mm)
			assert.Equal(t, 0, mm.Position)
			assert.Equal(t, tc.kind, mm.Expected)
			assert.Equal(t, tc.kind, mm.Got)
			assert.Contains(t, mm.GotType, tc.gotType)
			assert.NotEqual(t, mm.ExpectedType, mm.GotType)
			assert.Contains(t, mm.Error(), "changed hook type at slot 0")
			assert.Empty(t, caught)
			assert.Equal(t, sig, child.Signature())
		})
	}
}

func TestFatalErrorOnHostTickGoesToFatalHandler(t *testing.T) {
	var fatal []error
	s, l := newRuntime(t, hooks.WithFatalHandler(func(err error) {
		fatal = append(fatal, err)
	}))
	s.NewInstance(nil, "broken", func(*hooks.Instance) error {
		return errors.New("broken")
	})
	l.RunUntilIdle()
	require.Len(t, fatal, 1)
	var re *hooks.RenderError
	require.ErrorAs(t, fatal[0], &re)
	assert.EqualError(t, re.Err, "broken")
}

// an urgent update throws away an unfinished transition and keeps its updates
func TestUrgentUpdatePreemptsTransition(t *testing.T) {
	s := newManual(t)
	a := mountCounter(s, nil, 0)
	b := mountCounter(s, nil, 0)
	require.NoError(t, s.Flush())

	s.StartTransition(func() {
		a.set.Set(1)
		b.set.Set(1)
	})
	assert.True(t, s.Pending())
	assert.Equal(t, hooks.PhaseScheduled, s.Phase())

	more, err := s.StepTransition()
	require.NoError(t, err)
	require.True(t, more)
	assert.Equal(t, 2, a.renders)
	assert.Equal(t, 1, a.value)
	assert.Equal(t, hooks.PhaseScheduled, s.Phase())

	b.set.Update(func(prev int) int { return prev + 10 })
	require.NoError(t, s.Flush())
	assert.Equal(t, uint64(1), s.Stats().AbandonedRenders)
	assert.Equal(t, 11, b.value)

	// a's transition render never committed, so it renders again
	more, err = s.StepTransition()
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, 3, a.renders)
	assert.Equal(t, 1, a.value)
	assert.Equal(t, 2, b.renders)
	assert.False(t, s.Pending())
	assert.Equal(t, hooks.PhaseIdle, s.Phase())
}

func TestTransitionOnHostCompletes(t *testing.T) {
	s, l := newRuntime(t)
	var counters []*counter
	for i := 0; i < 5; i++ {
		counters = append(counters, mountCounter(s, nil, 0))
	}
	l.RunUntilIdle()

	require.NoError(t, l.Submit(func() {
		s.StartTransition(func() {
			for _, c := range counters {
				c.set.Set(7)
			}
		})
	}))
	l.RunUntilIdle()
	for _, c := range counters {
		assert.Equal(t, 7, c.value)
		assert.Equal(t, 2, c.renders)
	}
	assert.False(t, s.Pending())
	assert.Zero(t, s.Stats().AbandonedRenders)
}

func TestSchedulersAreIsolated(t *testing.T) {
	s1 := newManual(t)
	s2 := newManual(t)
	c1 := mountCounter(s1, nil, 0)
	c2 := mountCounter(s2, nil, 0)
	require.NoError(t, s1.Flush())
	require.NoError(t, s2.Flush())

	c1.set.Set(4)
	assert.True(t, s1.Pending())
	assert.False(t, s2.Pending())

	require.NoError(t, s2.Flush())
	assert.Equal(t, 0, c1.value)
	require.NoError(t, s1.Flush())
	assert.Equal(t, 4, c1.value)
	assert.Equal(t, 1, c2.renders)
}

func TestCloseUnmountsEverything(t *testing.T) {
	s, l := newRuntime(t)
	events := &eventLog{}
	root := s.NewInstance(nil, "root", func(inst *hooks.Instance) error {
		hooks.UseEffect(inst, events.logged("root"), hooks.Deps{})
		return nil
	})
	s.NewInstance(root, "child", func(inst *hooks.Instance) error {
		hooks.UseLayoutEffect(inst, events.logged("child"), hooks.Deps{})
		return nil
	})
	other := s.NewInstance(nil, "other", func(inst *hooks.Instance) error {
		hooks.UseEffect(inst, events.logged("other"), hooks.Deps{})
		return nil
	})
	l.RunUntilIdle()
	events.take()

	require.NoError(t, s.Close())
	assertEvents(t, []string{"child-cleanup", "root-cleanup", "other-cleanup"}, events.take())
	assert.Empty(t, s.Roots())
	assert.True(t, other.Unmounted())

	assert.ErrorIs(t, s.Flush(), hooks.ErrSchedulerClosed)
	_, err := s.StepTransition()
	assert.ErrorIs(t, err, hooks.ErrSchedulerClosed)
	require.NoError(t, s.Close())
}

// callbacks already posted to the host when Close runs do nothing
func TestCloseWithPostedCallbacksIsQuiet(t *testing.T) {
	var fatal []error
	s, l := newRuntime(t, hooks.WithFatalHandler(func(err error) {
		fatal = append(fatal, err)
	}))
	events := &eventLog{}
	a := mountCounter(s, nil, 0)
	b := mountCounter(s, nil, 0)
	s.NewInstance(nil, "effects", func(inst *hooks.Instance) error {
		hooks.UseEffect(inst, events.logged("e"), nil)
		return nil
	})
	l.RunUntilIdle()
	events.take()

	require.NoError(t, l.Submit(func() {
		a.set.Set(1)
		s.StartTransition(func() { b.set.Set(1) })
		require.NoError(t, s.Close())
	}))
	l.RunUntilIdle()

	assert.Empty(t, fatal)
	assert.Equal(t, 0, a.value)
	assert.Equal(t, 0, b.value)
	assert.Equal(t, 1, a.renders)
	assert.Equal(t, 1, b.renders)
	assertEvents(t, []string{"e-cleanup"}, events.take())
	assert.False(t, s.Pending())
	assert.Equal(t, hooks.PhaseIdle, s.Phase())
}

func TestStatsCountWork(t *testing.T) {
	s := newManual(t)
	events := &eventLog{}
	c := &counter{}
	c.inst = s.NewInstance(nil, "counter", func(inst *hooks.Instance) error {
		c.value, c.set = hooks.UseState(inst, 0)
		hooks.UseEffect(inst, events.logged("e"), hooks.Deps{c.value})
		return nil
	})
	require.NoError(t, s.Flush())
	c.set.Set(1)
	require.NoError(t, s.Flush())
	require.NoError(t, s.Unmount(c.inst))

	st := s.Stats()
	assert.Equal(t, uint64(2), st.Flushes)
	assert.Equal(t, uint64(2), st.Renders)
	assert.Equal(t, uint64(2), st.Commits)
	assert.Equal(t, uint64(2), st.Effects)
	assert.Equal(t, uint64(2), st.Cleanups)
}
