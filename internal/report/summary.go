package report

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"lossless/internal/lossless"
)

const (
	summaryFile      = "summary.html"
	summaryChartFile = "summary_flags.html"
)

const summaryHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>lossless QC summary</title>
<style>
 body { font-family: sans-serif; margin: 24px; background: #fafafa; }
 h1 { font-size: 20px; }
 table { border-collapse: collapse; width: 100%%; background: #fff; }
 th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; font-size: 14px; }
 th { background: #f0f0f0; }
 iframe { border: 0; width: 100%%; height: 460px; margin-top: 16px; background: #fff; }
</style>
</head>
<body>
<h1>QC summary</h1>
<p>%d recordings, generated %s</p>
<table>
<tr><th>Recording</th><th>Status</th><th>Channels</th><th>Windows</th><th>Components</th><th>Report</th></tr>
%s</table>
%s
</body>
</html>
`

type summaryRow struct {
	Label      string
	Status     string
	Counts     lossless.Counts
	ReportLink string
}

// writeSummary regenerates the dataset summary page from every queue item
// that has been preprocessed or reported on.
func (r *Reporter) writeSummary(ctx context.Context) error {
	items, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list queue items: %w", err)
	}
	rows := make([]summaryRow, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.FlagsJSON) == "" && strings.TrimSpace(item.ReportPath) == "" {
			continue
		}
		row := summaryRow{Label: item.DisplayName(), Status: string(item.Status)}
		if flags, err := lossless.ParseFlags(item.FlagsJSON); err == nil {
			row.Counts = flags.Counts()
		}
		if strings.TrimSpace(item.ReportPath) != "" {
			row.ReportLink = filepath.Base(item.ReportPath)
		}
		rows = append(rows, row)
	}

	reportsDir := strings.TrimSpace(r.cfg.Paths.ReportsDir)
	iframe := ""
	if len(rows) > 0 {
		chartPath := filepath.Join(reportsDir, summaryChartFile)
		if err := renderSummaryChart(chartPath, rows); err != nil {
			return err
		}
		iframe = fmt.Sprintf("<iframe src=%q></iframe>", summaryChartFile)
	}

	var table strings.Builder
	for _, row := range rows {
		link := "pending"
		if row.ReportLink != "" {
			link = fmt.Sprintf("<a href=%q>open</a>", row.ReportLink)
		}
		fmt.Fprintf(&table, "<tr><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%s</td></tr>\n",
			html.EscapeString(row.Label),
			html.EscapeString(row.Status),
			row.Counts.Channels,
			row.Counts.Epochs,
			row.Counts.Components,
			link)
	}

	doc := fmt.Sprintf(summaryHTML, len(rows), time.Now().Format(time.RFC3339), table.String(), iframe)
	if err := os.WriteFile(filepath.Join(reportsDir, summaryFile), []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write summary page: %w", err)
	}
	return nil
}

// renderSummaryChart draws flag counts per recording as grouped bars.
func renderSummaryChart(path string, rows []summaryRow) error {
	labels := make([]string, len(rows))
	channels := make([]opts.BarData, len(rows))
	windows := make([]opts.BarData, len(rows))
	components := make([]opts.BarData, len(rows))
	for i, row := range rows {
		labels[i] = row.Label
		channels[i] = opts.BarData{Value: row.Counts.Channels}
		windows[i] = opts.BarData{Value: row.Counts.Epochs}
		components[i] = opts.BarData{Value: row.Counts.Components}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssets}),
		charts.WithTitleOpts(opts.Title{Title: "Flags per recording", Subtitle: fmt.Sprintf("%d recordings", len(rows))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("channels", channels).
		AddSeries("windows", windows).
		AddSeries("components", components)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return fmt.Errorf("render summary chart: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write summary chart: %w", err)
	}
	return nil
}
