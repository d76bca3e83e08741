// Package report renders offline artifacts from the run index: HTML
// training-curve charts and BEV label-grid heatmaps.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/openlidar/bevtrain/internal/runs"
)

// TrainingCurves renders a run's train and validation loss curves as
// a standalone HTML chart.
func TrainingCurves(store *runs.Store, runID string, w io.Writer) error {
	rec, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	train, err := store.MetricSeries(runID, "train")
	if err != nil {
		return err
	}
	val, err := store.MetricSeries(runID, "val")
	if err != nil {
		return err
	}
	if len(train) == 0 && len(val) == 0 {
		return fmt.Errorf("report: run %s has no recorded metrics", runID)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Training curves", Width: "1000px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    rec.RunName,
			Subtitle: fmt.Sprintf("policy=%s batch=%d", rec.Policy, rec.BatchSize),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "epoch"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "loss"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	line.SetXAxis(epochAxis(train, val)).
		AddSeries("train", lossSeries(train)).
		AddSeries("val", lossSeries(val))
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("report: rendering chart: %w", err)
	}
	return nil
}

// epochAxis spans from zero through the largest epoch either series
// reaches, so both series align on one axis.
func epochAxis(series ...[]runs.EpochMetrics) []int {
	max := -1
	for _, s := range series {
		for _, m := range s {
			if m.Epoch > max {
				max = m.Epoch
			}
		}
	}
	axis := make([]int, max+1)
	for i := range axis {
		axis[i] = i
	}
	return axis
}

// lossSeries aligns metrics to the epoch axis; epochs with no row
// (e.g. validation intervals > 1) render as gaps.
func lossSeries(series []runs.EpochMetrics) []opts.LineData {
	max := -1
	for _, m := range series {
		if m.Epoch > max {
			max = m.Epoch
		}
	}
	data := make([]opts.LineData, max+1)
	for i := range data {
		data[i] = opts.LineData{Value: nil}
	}
	for _, m := range series {
		data[m.Epoch] = opts.LineData{Value: m.Loss}
	}
	return data
}
