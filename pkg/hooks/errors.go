package hooks

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNothingToCommit is returned by CommitRender when there is no
	// finished render to commit, e.g. when it is called twice in a row.
	ErrNothingToCommit = errors.New("hooks: nothing to commit")

	// ErrNotRendering is returned when a slot is requested outside of a render.
	ErrNotRendering = errors.New("hooks: instance is not rendering")

	// ErrUnmounted is returned when an operation targets an unmounted instance.
	ErrUnmounted = errors.New("hooks: instance is unmounted")

	// ErrSyncInRender is returned when FlushSync is called from inside a render.
	ErrSyncInRender = errors.New("hooks: cannot flush synchronously while rendering")

	// ErrSchedulerClosed is returned when a closed scheduler is asked to do work.
	ErrSchedulerClosed = errors.New("hooks: scheduler is closed")
)

// OrderMismatchError reports that an instance did not issue the same
// sequence of hook calls as its previous render.
type OrderMismatchError struct {
	Instance string
	// Position is the first slot index at which the sequences diverged.
	Position int
	// Expected and Got are the slot kinds at Position. Expected is
	// SlotNone when the render made more calls than the committed table
	// holds; Got is SlotNone when it made fewer.
	Expected SlotKind
	Got      SlotKind
	// ExpectedType and GotType are set when the kinds match but the slot
	// holds a different Go type than the hook call asked for.
	ExpectedType, GotType string
	// Want and Have are the total call counts.
	Want, Have int
}

func (e *OrderMismatchError) Error() string {
	if e.ExpectedType != "" || e.GotType != "" {
		return fmt.Sprintf("hooks: %s changed hook type at slot %d: expected %s %s, got %s %s",
			e.Instance, e.Position, e.Expected, e.ExpectedType, e.Got, e.GotType)
	}
	if e.Expected != SlotNone && e.Got != SlotNone {
		return fmt.Sprintf("hooks: %s changed hook order at slot %d: expected %s, got %s",
			e.Instance, e.Position, e.Expected, e.Got)
	}
	return fmt.Sprintf("hooks: %s rendered %d hooks, previous render had %d",
		e.Instance, e.Have, e.Want)
}

// RenderError wraps a failure of a component body, either a returned error
// or a recovered panic.
type RenderError struct {
	Instance   string
	Err        error
	Recovered  any
	StackTrace string
	Timestamp  time.Time
}

func (e *RenderError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("hooks: panic rendering %s: %v", e.Instance, e.Recovered)
	}
	return fmt.Sprintf("hooks: error rendering %s: %v", e.Instance, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// EffectExecutionError reports a failed effect create or cleanup. It never
// stops sibling effects in the same pass.
type EffectExecutionError struct {
	Instance string
	// Slot is the slot index of the effect in its instance.
	Slot       int
	Tier       EffectTier
	Cleanup    bool
	Err        error
	Recovered  any
	StackTrace string
}

func (e *EffectExecutionError) Error() string {
	phase := "create"
	if e.Cleanup {
		phase = "cleanup"
	}
	if e.Recovered != nil {
		return fmt.Sprintf("hooks: %s effect %s#%d %s panicked: %v", e.Tier, e.Instance, e.Slot, phase, e.Recovered)
	}
	return fmt.Sprintf("hooks: %s effect %s#%d %s failed: %v", e.Tier, e.Instance, e.Slot, phase, e.Err)
}

func (e *EffectExecutionError) Unwrap() error {
	return e.Err
}

// DispatchAfterUnmountError is reported, never returned, when an update is
// dispatched to a slot whose instance is gone. The update is dropped.
type DispatchAfterUnmountError struct {
	Instance string
	Slot     int
}

func (e *DispatchAfterUnmountError) Error() string {
	return fmt.Sprintf("hooks: dispatch to %s#%d after unmount", e.Instance, e.Slot)
}

func (e *DispatchAfterUnmountError) Unwrap() error {
	return ErrUnmounted
}

// captureStack returns the current call stack, skipping runtime frames and
// this function.
func captureStack() string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		sb.WriteString(frame.Function)
		sb.WriteString("\n\t")
		sb.WriteString(frame.File)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(frame.Line))
		sb.WriteString("\n")
		if !more {
			break
		}
	}
	return sb.String()
}
