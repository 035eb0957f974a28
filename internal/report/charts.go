package report

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"lossless/internal/dsp"
	"lossless/internal/eeg"
	"lossless/internal/lossless"
)

// echartsAssets serves the chart runtime. Reports are static files opened
// from disk, so they load the script from the public go-echarts CDN.
const echartsAssets = "https://go-echarts.github.io/go-echarts-assets/assets/"

const colorFlagged = "#ff5252"

// reportInput is everything one recording's report needs.
type reportInput struct {
	Label    string
	Subtitle string
	Raw      *eeg.Raw
	Flags    *lossless.Flags
	Steps    []stepMetric
}

// writeRecordingReport renders the recording's charts into one HTML page.
func writeRecordingReport(path string, in reportInput) error {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssets)
	page.AddCharts(channelDispersionChart(in))
	if c := flaggedWindowsChart(in.Flags); c != nil {
		page.AddCharts(c)
	}
	if c := componentChart(in.Flags); c != nil {
		page.AddCharts(c)
	}
	if c := stepTimingsChart(in.Steps); c != nil {
		page.AddCharts(c)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// channelDispersionChart plots each EEG channel's robust spread, flagged
// channels in red, so a glance shows which channels were excluded and how
// far they sit from the rest.
func channelDispersionChart(in reportInput) *charts.Bar {
	flagged := make(map[string]bool)
	for _, name := range in.Flags.AllChannels() {
		flagged[name] = true
	}
	indices := in.Raw.ChannelsOfType(eeg.ChannelEEG)
	names := make([]string, 0, len(indices))
	values := make([]opts.BarData, 0, len(indices))
	for _, c := range indices {
		name := in.Raw.Channels[c].Name
		item := opts.BarData{Value: dsp.MAD(in.Raw.Data[c])}
		if flagged[name] {
			item.ItemStyle = &opts.ItemStyle{Color: colorFlagged}
		}
		names = append(names, name)
		values = append(values, item)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssets}),
		charts.WithTitleOpts(opts.Title{Title: in.Label, Subtitle: in.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "MAD (uV)", NameLocation: "middle", NameGap: 40}),
	)
	bar.SetXAxis(names).AddSeries("channel dispersion", values)
	return bar
}

// flaggedWindowsChart counts how many criteria flagged each window. Clean
// recordings produce no chart.
func flaggedWindowsChart(flags *lossless.Flags) *charts.Bar {
	counts := make(map[int]int)
	for _, indices := range flags.Epochs {
		for _, idx := range indices {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	labels := make([]string, len(indices))
	values := make([]opts.BarData, len(indices))
	for i, idx := range indices {
		labels[i] = strconv.Itoa(idx)
		values[i] = opts.BarData{Value: counts[idx]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px", AssetsHost: echartsAssets}),
		charts.WithTitleOpts(opts.Title{Title: "Flagged windows", Subtitle: fmt.Sprintf("%d windows failed at least one criterion", len(indices))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "window"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "criteria"}),
	)
	bar.SetXAxis(labels).
		AddSeries("window flags", values,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// componentChart plots flagged components by score, one series per reason.
func componentChart(flags *lossless.Flags) *charts.Scatter {
	if len(flags.Components) == 0 {
		return nil
	}
	byReason := make(map[string][]opts.ScatterData)
	for _, c := range flags.Components {
		byReason[c.Reason] = append(byReason[c.Reason], opts.ScatterData{Value: []interface{}{c.Index, c.Score}})
	}
	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px", AssetsHost: echartsAssets}),
		charts.WithTitleOpts(opts.Title{Title: "Flagged components", Subtitle: "artifact score by component index"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "component"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "score"}),
	)
	for _, reason := range reasons {
		scatter.AddSeries(reason, byReason[reason], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	}
	return scatter
}

// stepTimingsChart shows where the pipeline spent its wall time.
func stepTimingsChart(steps []stepMetric) *charts.Bar {
	if len(steps) == 0 {
		return nil
	}
	names := make([]string, len(steps))
	values := make([]opts.BarData, len(steps))
	for i, st := range steps {
		names[i] = st.Step
		values[i] = opts.BarData{Value: st.Seconds}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px", AssetsHost: echartsAssets}),
		charts.WithTitleOpts(opts.Title{Title: "Step timings"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "seconds", NameLocation: "middle", NameGap: 40}),
	)
	bar.SetXAxis(names).AddSeries("step seconds", values)
	return bar
}
