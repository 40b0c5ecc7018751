package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"

	"github.com/ahmedibraahiim/asl/internal/classifier"
)

var heatColors = []string{"#f7fbff", "#c6dbef", "#6baed6", "#2171b5", "#08306b"}

// Page describes the model behind an HTML report.
type Page struct {
	Title       string
	Subtitle    string
	Evaluation  *classifier.Evaluation
	Importances []float64 // optional
}

// WriteHTML renders the confusion matrix, per-class F1 and, when present,
// feature importances as one go-echarts page.
func WriteHTML(w io.Writer, p Page) error {
	ev := p.Evaluation
	if ev == nil || ev.Confusion == nil {
		return fmt.Errorf("no evaluation to render")
	}

	page := components.NewPage().SetPageTitle(p.Title)
	page.AddCharts(confusionChart(p), f1Chart(ev))
	if len(p.Importances) > 0 {
		page.AddCharts(importanceChart(p.Importances))
	}
	return page.Render(w)
}

func confusionChart(p Page) *charts.HeatMap {
	ev := p.Evaluation
	n, _ := ev.Confusion.Dims()

	data := make([]opts.HeatMapData, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c, r, ev.Confusion.At(r, c)}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    p.Title,
			Subtitle: fmt.Sprintf("%s accuracy=%.4f macro-F1=%.4f", p.Subtitle, ev.Accuracy, ev.MacroF1()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: ev.Labels, Name: "Predicted"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ev.Labels, Name: "True"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(mat.Max(ev.Confusion)),
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	hm.AddSeries("confusion", data)
	return hm
}

func f1Chart(ev *classifier.Evaluation) *charts.Bar {
	names := make([]string, len(ev.Classes))
	f1 := make([]opts.BarData, len(ev.Classes))
	support := make([]opts.BarData, len(ev.Classes))
	for i, c := range ev.Classes {
		names[i] = c.Label
		f1[i] = opts.BarData{Value: c.F1}
		support[i] = opts.BarData{Value: c.Support}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Per-class F1"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("f1", f1).
		AddSeries("support", support)
	return bar
}

func importanceChart(importances []float64) *charts.Bar {
	names := landmarkNames()
	if len(names) != len(importances) {
		names = make([]string, len(importances))
		for i := range names {
			names[i] = fmt.Sprint(i)
		}
	}
	data := make([]opts.BarData, len(importances))
	for i, v := range importances {
		data[i] = opts.BarData{Value: v}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Feature importances"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).AddSeries("importance", data)
	return bar
}
