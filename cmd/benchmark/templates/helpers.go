package templates

import (
	"strconv"
	"strings"
	"time"
)

// Report is the input of MarkdownReport.
type Report struct {
	Title      string
	Generated  time.Time
	GoVersion  string
	Iterations int
	Rows       []Row
}

// Row is one benchmark case.
type Row struct {
	Name              string
	Instances         int
	Avg, Min, P75     time.Duration
	P99, Max          time.Duration
	Renders, Commits  uint64
	Effects, Cleanups uint64
}

var headers = []string{"benchmark", "instances", "avg", "min", "p75", "p99", "max", "renders", "commits", "effects", "cleanups"}

func (r Row) cells() []string {
	return []string{
		r.Name,
		strconv.Itoa(r.Instances),
		r.Avg.String(),
		r.Min.String(),
		r.P75.String(),
		r.P99.String(),
		r.Max.String(),
		strconv.FormatUint(r.Renders, 10),
		strconv.FormatUint(r.Commits, 10),
		strconv.FormatUint(r.Effects, 10),
		strconv.FormatUint(r.Cleanups, 10),
	}
}

func tableRow(cells ...string) string {
	var sb strings.Builder
	sb.WriteString("|")
	for _, c := range cells {
		sb.WriteString(" ")
		sb.WriteString(strings.ReplaceAll(c, "|", `\|`))
		sb.WriteString(" |")
	}
	return sb.String()
}

func separator(count int) string {
	cells := make([]string, count)
	for i := range cells {
		cells[i] = "---"
	}
	return tableRow(cells...)
}
