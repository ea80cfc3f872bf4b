package hooks_test

import (
	"fmt"
	"testing"

	"github.com/delaneyj/hookparty/pkg/hooks"
	"github.com/delaneyj/hookparty/pkg/loop"
	"github.com/rs/zerolog"
)

func testLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.WarnLevel)
}

// newRuntime returns a scheduler hosted on a loop that the test drives with
// RunUntilIdle.
func newRuntime(t *testing.T, opts ...hooks.Option) (*hooks.Scheduler, *loop.Loop) {
	t.Helper()
	l := loop.New(loop.WithPanicHandler(func(r any) {
		t.Errorf("loop callback panicked: %v", r)
	}))
	base := []hooks.Option{
		hooks.WithLogger(testLogger(t)),
		hooks.WithFatalHandler(func(err error) {
			t.Errorf("fatal render error: %v", err)
		}),
	}
	return hooks.NewScheduler(l, append(base, opts...)...), l
}

// newManual returns a scheduler with no host; the test calls Flush and
// FlushPassiveEffects itself.
func newManual(t *testing.T, opts ...hooks.Option) *hooks.Scheduler {
	t.Helper()
	return hooks.NewScheduler(nil, append([]hooks.Option{hooks.WithLogger(testLogger(t))}, opts...)...)
}

type eventLog struct {
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) take() []string {
	out := l.events
	l.events = nil
	return out
}

// logged returns an effect that records its create and cleanup under name.
func (l *eventLog) logged(name string) hooks.EffectFunc {
	return func() (hooks.Cleanup, error) {
		l.add("%s-create", name)
		return func() error {
			l.add("%s-cleanup", name)
			return nil
		}, nil
	}
}
