package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/hookparty/pkg/hooks"
	"github.com/delaneyj/hookparty/pkg/loop"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

const (
	repeatsKey = "repeats"
	seedKey    = "seed"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	cmd := &cli.Command{
		Name:  "benchmark_tree",
		Usage: "Measure mount, update and unmount throughput of instance trees",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  repeatsKey,
				Usage: "Runs per config, the fastest is reported",
				Value: 5,
			},
			&cli.UintFlag{
				Name:  seedKey,
				Usage: "Seed for picking updated instances",
				Value: 1,
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

type treeConfig struct {
	name           string  // friendly name, unique per config
	fanout         int     // children per instance
	depth          int     // levels below the root
	updateFraction float64 // fraction of instances dispatched to per iteration
	effectFraction float64 // fraction of instances with a passive effect
	iterations     int64
}

var treeConfigs = []treeConfig{
	{name: "small form", fanout: 4, depth: 2, updateFraction: 0.5, effectFraction: 1, iterations: 20000},
	{name: "list", fanout: 1000, depth: 1, updateFraction: 0.05, effectFraction: 0.2, iterations: 2000},
	{name: "dashboard", fanout: 8, depth: 4, updateFraction: 0.1, effectFraction: 0.5, iterations: 1000},
	{name: "deep", fanout: 1, depth: 200, updateFraction: 1, effectFraction: 1, iterations: 500},
	{name: "wide dense", fanout: 30, depth: 2, updateFraction: 1, effectFraction: 1, iterations: 300},
}

type result struct {
	mount, update, unmount time.Duration
	renders, effects       uint64
}

func run(ctx context.Context, cmd *cli.Command, log zerolog.Logger) error {
	log.Info().Msg("starting tree benchmark, please wait...")
	defer log.Info().Msg("finished tree benchmark")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"size", "instances", "update%", "effect%",
		"nTimes", "test", "mount", "update", "unmount",
		"updateRate", "effects", "title",
	})

	repeats := int(cmd.Uint(repeatsKey))
	for _, cfg := range treeConfigs {
		if err := ctx.Err(); err != nil {
			return err
		}
		best := &result{update: time.Hour}
		var instances int
		for i := 0; i < repeats; i++ {
			log.Info().Str("config", cfg.name).Msgf("run %d/%d %d%%", i+1, repeats, (i+1)*100/repeats)
			rng := rand.New(rand.NewSource(int64(cmd.Uint(seedKey))))
			res, n, err := runTree(cfg, rng)
			if err != nil {
				return fmt.Errorf("%s: %w", cfg.name, err)
			}
			instances = n
			if res.update < best.update {
				best = res
			}
		}

		updateRate := float64(best.renders) / (float64(best.update) / float64(time.Millisecond))
		table.Append([]string{
			fmt.Sprintf("%dx%d", cfg.fanout, cfg.depth),
			humanize.Comma(int64(instances)),
			fmt.Sprint(cfg.updateFraction),
			fmt.Sprint(cfg.effectFraction),
			humanize.Comma(cfg.iterations),
			cfg.name,
			fmt.Sprint(best.mount),
			fmt.Sprint(best.update),
			fmt.Sprint(best.unmount),
			humanize.Comma(int64(updateRate)),
			humanize.Comma(int64(best.effects)),
			title(cfg),
		})
	}
	table.Render()
	return nil
}

func title(cfg treeConfig) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%d wide, %d deep", cfg.fanout, cfg.depth))
	if cfg.updateFraction < 1 {
		sb.WriteString(fmt.Sprintf(" update %0.2f%%", 100*cfg.updateFraction))
	}
	if cfg.effectFraction < 1 {
		sb.WriteString(" sparse effects")
	}
	return sb.String()
}

type component struct {
	set    hooks.SetState[int]
	effect bool
	sum    *int64
}

func (c *component) body(inst *hooks.Instance) error {
	var value int
	value, c.set = hooks.UseState(inst, 0)
	label := hooks.UseMemo(inst, func() string { return humanize.Ordinal(value) }, hooks.Deps{value})
	ref := hooks.UseRef(inst, 0)
	ref.Current++
	if c.effect {
		hooks.UseEffect(inst, func() (hooks.Cleanup, error) {
			*c.sum += int64(len(label))
			return nil, nil
		}, hooks.Deps{label})
	}
	return nil
}

func runTree(cfg treeConfig, rng *rand.Rand) (*result, int, error) {
	l := loop.New()
	var fatal error
	s := hooks.NewScheduler(l, hooks.WithFatalHandler(func(err error) { fatal = err }))

	var sum int64
	var comps []*component
	var build func(parent *hooks.Instance, level int) *hooks.Instance
	build = func(parent *hooks.Instance, level int) *hooks.Instance {
		c := &component{effect: rng.Float64() < cfg.effectFraction, sum: &sum}
		comps = append(comps, c)
		inst := s.NewInstance(parent, fmt.Sprintf("level%d", level), c.body)
		if level < cfg.depth {
			for i := 0; i < cfg.fanout; i++ {
				build(inst, level+1)
			}
		}
		return inst
	}

	res := &result{}
	start := time.Now()
	root := build(nil, 0)
	l.RunUntilIdle()
	res.mount = time.Since(start)
	if fatal != nil {
		return nil, 0, fatal
	}
	mounted := s.Stats()

	perIteration := max(1, int(cfg.updateFraction*float64(len(comps))))
	var want uint64
	start = time.Now()
	for i := int64(0); i < cfg.iterations; i++ {
		picked := mapset.NewThreadUnsafeSet[*component]()
		for j := 0; j < perIteration; j++ {
			picked.Add(comps[rng.Intn(len(comps))])
		}
		want += uint64(picked.Cardinality())
		if err := l.Submit(func() {
			picked.Each(func(c *component) bool {
				c.set.Update(addOne)
				return false
			})
		}); err != nil {
			return nil, 0, err
		}
		l.RunUntilIdle()
	}
	res.update = time.Since(start)
	if fatal != nil {
		return nil, 0, fatal
	}

	st := s.Stats()
	res.renders = st.Renders - mounted.Renders
	res.effects = st.Effects - mounted.Effects
	if res.renders != want {
		return nil, 0, fmt.Errorf("rendered %d instances, want %d", res.renders, want)
	}

	start = time.Now()
	if err := s.Unmount(root); err != nil {
		return nil, 0, err
	}
	res.unmount = time.Since(start)
	return res, len(comps), nil
}

func addOne(prev int) int {
	return prev + 1
}
