package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/branchweight/internal/accounting"
)

const (
	plotFileName   = "branches.html"
	plotBranchCap  = 30
	plotAxisRotate = 60

	uniqueSeriesColor = "#5470c6"
	sharedSeriesColor = "#fac858"
)

// WritePlot renders a stacked bar chart of the heaviest branches as a
// standalone HTML file in the report directory and returns its path.
func (w *Writer) WritePlot(defaultBranch string, result *accounting.Result) (string, error) {
	weights := result.Weights
	if len(weights) > plotBranchCap {
		weights = weights[:plotBranchCap]
	}

	labels := make([]string, len(weights))
	unique := make([]opts.BarData, len(weights))
	shared := make([]opts.BarData, len(weights))

	for i, weight := range weights {
		labels[i] = weight.Branch
		unique[i] = opts.BarData{Value: toMB(weight.UniqueSize)}
		shared[i] = opts.BarData{Value: toMB(weight.SharedSize)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Branch object weight",
			Subtitle: fmt.Sprintf("on-disk size of objects not merged into %s, MB", defaultBranch),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: plotAxisRotate, Interval: "0"},
		}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("Unique", unique,
		charts.WithBarChartOpts(opts.BarChart{Stack: "size"}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: uniqueSeriesColor}))
	bar.AddSeries("Shared", shared,
		charts.WithBarChartOpts(opts.BarChart{Stack: "size"}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: sharedSeriesColor}))

	path := filepath.Join(w.dir, plotFileName)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating plot file: %w", err)
	}
	defer file.Close()

	if err := bar.Render(file); err != nil {
		return "", fmt.Errorf("rendering plot: %w", err)
	}

	return path, nil
}

func toMB(bytes uint64) float64 {
	return float64(bytes) / bytesPerMB
}
