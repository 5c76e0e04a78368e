package charts

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/testkube/suiterunner/internal/history"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func label(p history.Point) string {
	return p.Date.Format("Jan 02 15:04")
}

// PassRateChart plots the pass rate of each retained run, oldest first.
func (g *Generator) PassRateChart(points []history.Point) string {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Pass Rate Trend"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithInitializationOpts(opts.Initialization{
			Height: "200px",
			Width:  "100%",
		}),
	)

	xAxis := make([]string, len(points))
	yAxis := make([]opts.LineData, len(points))
	for i, p := range points {
		xAxis[i] = label(p)
		yAxis[i] = opts.LineData{Value: p.PassRate}
	}

	line.SetXAxis(xAxis).
		AddSeries("Pass Rate %", yAxis).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return g.renderToString(line)
}

// ResultsChart stacks passed and failed counts per run.
func (g *Generator) ResultsChart(points []history.Point) string {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Results per Run"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Height: "200px",
			Width:  "100%",
		}),
	)

	xAxis := make([]string, len(points))
	passed := make([]opts.BarData, len(points))
	failed := make([]opts.BarData, len(points))
	for i, p := range points {
		xAxis[i] = label(p)
		passed[i] = opts.BarData{Value: p.Passed}
		failed[i] = opts.BarData{Value: p.Failed}
	}

	bar.SetXAxis(xAxis).
		AddSeries("Passed", passed, charts.WithBarChartOpts(opts.BarChart{Stack: "runs"})).
		AddSeries("Failed", failed, charts.WithBarChartOpts(opts.BarChart{Stack: "runs"}))

	return g.renderToString(bar)
}

func (g *Generator) Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	width := 100
	height := 30

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		hi = lo + 1
	}

	step := 0.0
	if len(values) > 1 {
		step = float64(width) / float64(len(values)-1)
	}

	points := make([]string, len(values))
	for i, v := range values {
		x := float64(i) * step
		y := float64(height) - ((v - lo) / (hi - lo) * float64(height))
		points[i] = fmt.Sprintf("%.1f,%.1f", x, y)
	}

	return fmt.Sprintf(`<svg width="%d" height="%d" class="sparkline"><polyline points="%s" fill="none" stroke="currentColor" stroke-width="2"/></svg>`,
		width, height, strings.Join(points, " "))
}

// Renderer is anything that can render itself to an io.Writer.
type Renderer interface {
	Render(w io.Writer) error
}

func (g *Generator) renderToString(c Renderer) string {
	var buf bytes.Buffer
	c.Render(&buf)
	return buf.String()
}
