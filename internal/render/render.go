// Package render turns a provider solution string into displayable output.
// A solution may interleave prose with chart blocks delimited by the
// GRAPH_DATA_START / GRAPH_DATA_END sentinel pair, each holding a JSON chart
// descriptor.
package render

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"taskmate/internal/util"
)

const (
	ChartStart = "GRAPH_DATA_START"
	ChartEnd   = "GRAPH_DATA_END"
)

type SegmentKind int

const (
	SegmentProse SegmentKind = iota
	SegmentChart
)

type Segment struct {
	Kind  SegmentKind
	Text  string     // prose segments
	Raw   string     // chart segments: the JSON payload as found
	Chart *ChartSpec // chart segments: parsed descriptor
}

type Point struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Category string  `json:"category,omitempty"`
}

type ChartSpec struct {
	Type   string  `json:"type"` // "line" | "scatter"; anything else draws a line
	Title  string  `json:"title"`
	XLabel string  `json:"xLabel"`
	YLabel string  `json:"yLabel"`
	Points []Point `json:"points"`
}

var chartBlockRe = regexp.MustCompile(`(?s)` + ChartStart + `(.*?)` + ChartEnd)

// Split breaks a solution string into ordered prose and chart segments.
// A chart block whose payload is not valid JSON is logged and omitted; the
// surrounding prose is kept.
func Split(s string) []Segment {
	var (
		segs []Segment
		last int
	)
	for _, m := range chartBlockRe.FindAllStringSubmatchIndex(s, -1) {
		if prose := s[last:m[0]]; strings.TrimSpace(prose) != "" {
			segs = append(segs, Segment{Kind: SegmentProse, Text: prose})
		}
		payload := util.StripCodeFences(s[m[2]:m[3]])
		var spec ChartSpec
		if err := json.Unmarshal([]byte(payload), &spec); err != nil {
			logrus.WithError(err).Warn("skipping malformed chart block")
		} else {
			segs = append(segs, Segment{Kind: SegmentChart, Raw: payload, Chart: &spec})
		}
		last = m[1]
	}
	if prose := s[last:]; strings.TrimSpace(prose) != "" {
		segs = append(segs, Segment{Kind: SegmentProse, Text: prose})
	}
	return segs
}

// ChartPayloads returns the raw JSON of every well-formed chart block, in order.
func ChartPayloads(s string) []string {
	var out []string
	for _, seg := range Split(s) {
		if seg.Kind == SegmentChart {
			out = append(out, seg.Raw)
		}
	}
	return out
}

var (
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*\n]+?)\*`)
)

// ProseHTML renders a prose segment with minimal inline emphasis and
// paragraph/line-break substitution. Input is escaped first.
func ProseHTML(s string) string {
	s = html.EscapeString(strings.TrimSpace(s))
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "<em>$1</em>")

	paras := strings.Split(s, "\n\n")
	for i, p := range paras {
		paras[i] = "<p>" + strings.ReplaceAll(strings.TrimSpace(p), "\n", "<br>") + "</p>"
	}
	return strings.Join(paras, "\n")
}

// SolutionHTML renders the whole solution as a standalone HTML document with
// charts embedded as PNG data URIs. A chart that fails to draw is logged and
// omitted, matching the parse behavior.
func SolutionHTML(title, solution string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</title></head><body>\n")

	for _, seg := range Split(solution) {
		switch seg.Kind {
		case SegmentProse:
			sb.WriteString(ProseHTML(seg.Text))
			sb.WriteByte('\n')
		case SegmentChart:
			png, err := ChartPNG(seg.Chart)
			if err != nil {
				logrus.WithError(err).Warn("skipping chart that failed to draw")
				continue
			}
			sb.WriteString(fmt.Sprintf("<img alt=%q src=\"data:image/png;base64,%s\">\n",
				seg.Chart.Title, base64PNG(png)))
		}
	}
	sb.WriteString("</body></html>\n")
	return sb.String()
}
