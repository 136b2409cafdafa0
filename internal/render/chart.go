package render

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// palette is reused cyclically, one color per category series.
var palette = []drawing.Color{
	drawing.ColorFromHex("4e79a7"),
	drawing.ColorFromHex("f28e2b"),
	drawing.ColorFromHex("e15759"),
	drawing.ColorFromHex("76b7b2"),
	drawing.ColorFromHex("59a14f"),
	drawing.ColorFromHex("edc948"),
}

// ChartPNG draws a chart descriptor as a PNG. Points are grouped into one
// series per distinct category, categories keeping first-appearance order.
func ChartPNG(spec *ChartSpec) ([]byte, error) {
	if spec == nil || len(spec.Points) == 0 {
		return nil, fmt.Errorf("chart has no points")
	}

	var (
		order  []string
		byCat  = map[string][]Point{}
		series []chart.Series
	)
	for _, p := range spec.Points {
		if _, seen := byCat[p.Category]; !seen {
			order = append(order, p.Category)
		}
		byCat[p.Category] = append(byCat[p.Category], p)
	}

	scatter := spec.Type == "scatter"
	for i, cat := range order {
		pts := byCat[cat]
		xs := make([]float64, len(pts))
		ys := make([]float64, len(pts))
		for j, p := range pts {
			xs[j], ys[j] = p.X, p.Y
		}
		color := palette[i%len(palette)]
		style := chart.Style{StrokeColor: color, StrokeWidth: 2}
		if scatter {
			style = chart.Style{
				StrokeWidth: chart.Disabled,
				DotColor:    color,
				DotWidth:    4,
			}
		}
		name := cat
		if name == "" {
			name = spec.Title
		}
		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   style,
		})
	}

	graph := chart.Chart{
		Title:  spec.Title,
		Width:  640,
		Height: 400,
		XAxis:  chart.XAxis{Name: spec.XLabel},
		YAxis:  chart.YAxis{Name: spec.YLabel},
		Series: series,
	}
	if len(order) > 1 {
		graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render: %w", err)
	}
	return buf.Bytes(), nil
}

func base64PNG(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
