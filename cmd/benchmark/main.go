package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/hookparty/cmd/benchmark/templates"
	"github.com/delaneyj/hookparty/pkg/hooks"
	"github.com/delaneyj/hookparty/pkg/loop"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

const (
	iterationsKey = "iterations"
	profileKey    = "profile"
	reportKey     = "report"
	verboseKey    = "verbose"
)

var (
	ww = []int{1, 10, 100}
	hh = []int{1, 10, 100}
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure dispatch to commit latency of the hook runtime",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  iterationsKey,
				Usage: "Updates measured per case",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to this file",
			},
			&cli.StringFlag{
				Name:  reportKey,
				Usage: "Also write a markdown report to this file",
			},
			&cli.BoolFlag{
				Name:  verboseKey,
				Usage: "Log scheduler debug events",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd, log)
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("benchmark failed")
	}
}

type mode string

const (
	modeTick       mode = "tick"
	modeSync       mode = "sync"
	modeTransition mode = "transition"
)

func run(ctx context.Context, cmd *cli.Command, log zerolog.Logger) error {
	if path := cmd.String(profileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	schedLog := zerolog.Nop()
	if cmd.Bool(verboseKey) {
		schedLog = log.Level(zerolog.DebugLevel)
	}
	iters := int(cmd.Uint(iterationsKey))

	report := &templates.Report{
		Title:      "hookparty propagation",
		Generated:  time.Now(),
		GoVersion:  runtime.Version(),
		Iterations: iters,
	}

	log.Info().Int("iterations", iters).Msg("running propagation benchmarks")
	for _, m := range []mode{modeTick, modeSync, modeTransition} {
		if err := ctx.Err(); err != nil {
			return err
		}
		tbl := table.NewWriter()
		tbl.SetTitle(fmt.Sprintf("propagate (%s)", m))
		tbl.SetOutputMirror(os.Stdout)
		tbl.AppendHeader(table.Row{"benchmark", "instances", "avg", "min", "p75", "p99", "max", "renders"})

		for _, w := range ww {
			for _, h := range hh {
				row, err := benchmarkPropagate(m, w, h, iters, schedLog)
				if err != nil {
					return err
				}
				report.Rows = append(report.Rows, row)
				tbl.AppendRows([]table.Row{{
					row.Name,
					row.Instances,
					row.Avg,
					row.Min,
					row.P75,
					row.P99,
					row.Max,
					row.Renders,
				}})
			}
		}
		tbl.Render()
	}

	if path := cmd.String(reportKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		templates.WriteMarkdownReport(f, report)
		log.Info().Str("path", path).Msg("report written")
	}
	return nil
}

// node is one instance of a chain. Its layout effect forwards every new
// value to its child, so one dispatch at the head renders the whole chain
// within the same frame.
type node struct {
	value int
	seen  int
	set   hooks.SetState[int]
	child *node
}

func (n *node) body(inst *hooks.Instance) error {
	n.value, n.set = hooks.UseState(inst, 0)
	value := n.value
	doubled := hooks.UseMemo(inst, func() int { return value * 2 }, hooks.Deps{value})
	hooks.UseLayoutEffect(inst, func() (hooks.Cleanup, error) {
		if n.child != nil {
			n.child.set.Set(value)
		}
		return nil, nil
	}, hooks.Deps{value})
	hooks.UseEffect(inst, func() (hooks.Cleanup, error) {
		n.seen = doubled
		return func() error { return nil }, nil
	}, hooks.Deps{doubled})
	return nil
}

func mountChain(s *hooks.Scheduler, parent *hooks.Instance, depth int) *node {
	n := &node{}
	inst := s.NewInstance(parent, fmt.Sprintf("node%d", depth), n.body)
	if depth > 1 {
		n.child = mountChain(s, inst, depth-1)
	}
	return n
}

func (n *node) leaf() *node {
	for n.child != nil {
		n = n.child
	}
	return n
}

func benchmarkPropagate(m mode, w, h, iters int, log zerolog.Logger) (templates.Row, error) {
	var fatal error
	l := loop.New(loop.WithLogger(log))
	s := hooks.NewScheduler(l,
		hooks.WithLogger(log),
		hooks.WithFatalHandler(func(err error) { fatal = err }),
	)
	defer s.Close()

	heads := make([]*node, w)
	for i := range heads {
		heads[i] = mountChain(s, nil, h)
	}
	l.RunUntilIdle()
	mounted := s.Stats()

	update := func() {
		for _, head := range heads {
			head.set.Update(addOne)
		}
	}
	var task loop.Task
	switch m {
	case modeSync:
		task = func() {
			if err := s.FlushSync(update); err != nil {
				fatal = err
			}
		}
	case modeTransition:
		task = func() { s.StartTransition(update) }
	default:
		task = update
	}

	tach := tachymeter.New(&tachymeter.Config{Size: iters})
	for i := 0; i < iters; i++ {
		start := time.Now()
		if err := l.Submit(task); err != nil {
			return templates.Row{}, err
		}
		l.RunUntilIdle()
		tach.AddTime(time.Since(start))
		if fatal != nil {
			return templates.Row{}, fatal
		}
	}

	for i, head := range heads {
		if leaf := head.leaf(); leaf.value != iters || leaf.seen != 2*iters {
			return templates.Row{}, fmt.Errorf("chain %d of %d * %d: leaf saw %d, want %d", i, w, h, leaf.value, iters)
		}
	}

	st := s.Stats()
	calc := tach.Calc()
	return templates.Row{
		Name:      fmt.Sprintf("%s: %d * %d", m, w, h),
		Instances: w * h,
		Avg:       calc.Time.Avg,
		Min:       calc.Time.Min,
		P75:       calc.Time.P75,
		P99:       calc.Time.P99,
		Max:       calc.Time.Max,
		Renders:   st.Renders - mounted.Renders,
		Commits:   st.Commits - mounted.Commits,
		Effects:   st.Effects - mounted.Effects,
		Cleanups:  st.Cleanups - mounted.Cleanups,
	}, nil
}

func addOne(prev int) int {
	return prev + 1
}
