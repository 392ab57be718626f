// Package render draws chart blocks as go-echarts HTML.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"spreadboard/internal/board"
	"spreadboard/internal/ohlc"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorTextPrimary   = "#1f2937"
	colorTextSecondary = "#6b7280"
	colorError         = "#dc2626"

	chartWidth  = "1100px"
	mainHeight  = "420px"
	diffHeight  = "300px"
	axisLayout  = "01-02 15:04"
	dailyLayout = "2006-01-02"

	PageTitle = "Spreadboard"
)

var columnColors = map[string]string{
	ohlc.ColOpen:  "#3b82f6",
	ohlc.ColHigh:  "#34d399",
	ohlc.ColLow:   "#f87171",
	ohlc.ColClose: "#fbbf24",
}

// BlockCharts returns the main chart plus, when computed, the percent and raw
// difference charts. Titles follow the config the results were fetched with.
func BlockCharts(b board.Block) []components.Charter {
	cfg := b.Config
	if b.FetchedWith != nil {
		cfg = *b.FetchedWith
	}
	title := fmt.Sprintf("%s | %s | %s", cfg.Symbol, cfg.Leg, cfg.Interval)
	span := cfg.From.Format(dailyLayout)
	if !cfg.To.Equal(cfg.From) {
		span += " to " + cfg.To.Format(dailyLayout)
	}

	var mainTable *ohlc.Table
	if b.Main != nil {
		mainTable = b.Main.Table
	}
	subtitle := span
	switch {
	case b.MainError != "":
		subtitle = b.MainError
	case b.Main == nil:
		subtitle = span + " (not fetched)"
	}
	out := []components.Charter{lineChart(title, subtitle, mainHeight, mainTable, b.MainError != "")}

	if !cfg.ShowDiff {
		return out
	}
	diffTitle := fmt.Sprintf("%s | %s", cfg.Pair, cfg.TradeMode)
	if b.Difference == nil {
		if b.DiffError != "" {
			out = append(out, lineChart("Difference (%) "+diffTitle, b.DiffError, diffHeight, nil, true))
		}
		return out
	}
	d := b.Difference
	pctSubtitle := fmt.Sprintf("relative to %s", d.Baseline)
	if d.PercentError != "" {
		pctSubtitle = d.PercentError
	}
	out = append(out,
		lineChart("Difference (%) "+diffTitle, pctSubtitle, diffHeight, d.Percent, d.PercentError != ""),
		lineChart("Raw Difference "+diffTitle, span, diffHeight, d.Raw, false),
	)
	return out
}

func lineChart(title, subtitle, height string, table *ohlc.Table, failed bool) *charts.Line {
	subColor := colorTextSecondary
	if failed {
		subColor = colorError
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  chartWidth,
			Height: height,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         title,
			Subtitle:      subtitle,
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 16},
			SubtitleStyle: &opts.TextStyle{Color: subColor},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	line.SetXAxis(xAxis(table))
	for _, col := range ohlc.Columns {
		values, _ := table.Column(col)
		line.AddSeries(col, toLineData(values),
			charts.WithLineStyleOpts(opts.LineStyle{Color: columnColors[col], Width: 2}))
	}
	return line
}

func xAxis(table *ohlc.Table) []string {
	times := table.Times()
	x := make([]string, len(times))
	for i, ts := range times {
		x[i] = ts.Format(axisLayout)
	}
	return x
}

func toLineData(series []float64) []opts.LineData {
	line := make([]opts.LineData, len(series))
	for i, val := range series {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			line[i] = opts.LineData{Value: nil}
		} else {
			line[i] = opts.LineData{Value: round(val, 4)}
		}
	}
	return line
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

// Block writes a standalone page for one block.
func Block(w io.Writer, b board.Block) error {
	page := newPage(fmt.Sprintf("%s | %s", PageTitle, b.Config.Symbol))
	page.AddCharts(BlockCharts(b)...)
	return page.Render(w)
}

// Dashboard writes every block of a session, in order, on one page.
func Dashboard(w io.Writer, blocks []board.Block) error {
	page := newPage(PageTitle)
	for _, b := range blocks {
		page.AddCharts(BlockCharts(b)...)
	}
	if len(blocks) == 0 {
		empty := charts.NewLine()
		empty.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: "120px"}),
			charts.WithTitleOpts(opts.Title{Title: "No chart blocks", Subtitle: "POST /api/blocks to add one"}),
		)
		page.AddCharts(empty)
	}
	return page.Render(w)
}

func newPage(title string) *components.Page {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = strings.TrimSpace(title)
	return page
}
