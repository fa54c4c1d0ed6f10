package backtest

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
)

type SVGChartOptions struct {
	Width  int
	Height int
}

func (o SVGChartOptions) withDefaults() SVGChartOptions {
	if o.Width <= 0 {
		o.Width = 980
	}
	if o.Height <= 0 {
		o.Height = 520
	}
	return o
}

const svgFont = `font-family="ui-monospace, Menlo, Monaco, Consolas, monospace"`

// RenderEquitySVG draws the total-value curve with the cash line underneath and a marker
// for every trade. Trades are placed on the equity point with the same date.
func RenderEquitySVG(title string, curve []EquityPoint, trades []Trade, opt SVGChartOptions) ([]byte, error) {
	opt = opt.withDefaults()
	if len(curve) < 2 {
		return nil, fmt.Errorf("not enough equity points: %d", len(curve))
	}

	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, p := range curve {
		minV = math.Min(minV, math.Min(p.TotalValue, p.Cash))
		maxV = math.Max(maxV, p.TotalValue)
	}
	if math.IsInf(minV, 0) || math.IsInf(maxV, 0) {
		return nil, fmt.Errorf("invalid value range")
	}
	pad := (maxV - minV) * 0.05
	if pad <= 0 {
		pad = math.Max(math.Abs(minV)*0.02, 1)
	}
	minV -= pad
	maxV += pad

	w := float64(opt.Width)
	h := float64(opt.Height)
	mLeft := 90.0
	mRight := 20.0
	mTop := 24.0
	mBottom := 40.0
	plotW := w - mLeft - mRight
	plotH := h - mTop - mBottom
	if plotW <= 10 || plotH <= 10 {
		return nil, fmt.Errorf("invalid chart size")
	}

	valueToY := func(v float64) float64 {
		r := (v - minV) / (maxV - minV)
		r = math.Max(0, math.Min(1, r))
		return mTop + (1.0-r)*plotH
	}
	step := plotW / float64(len(curve)-1)
	xAt := func(i int) float64 {
		return mLeft + float64(i)*step
	}

	bg := "#0b1220"
	grid := "rgba(255,255,255,0.08)"
	equity := "#38bdf8"
	cash := "rgba(255,255,255,0.35)"
	buy := "#22c55e"
	sell := "#ef4444"
	txt := "rgba(255,255,255,0.85)"

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + strconv.Itoa(opt.Width) + `" height="` + strconv.Itoa(opt.Height) + `" viewBox="0 0 ` + strconv.Itoa(opt.Width) + ` ` + strconv.Itoa(opt.Height) + `">` + "\n")
	buf.WriteString(`<rect x="0" y="0" width="100%" height="100%" fill="` + bg + `"/>` + "\n")

	firstD := curve[0].Date.Format("2006-01-02")
	lastD := curve[len(curve)-1].Date.Format("2006-01-02")
	title = strings.TrimSpace(title)
	if title == "" {
		title = "EQUITY"
	}
	buf.WriteString(`<text x="` + fmtFloat(mLeft) + `" y="16" fill="` + txt + `" font-size="14" ` + svgFont + `>` +
		html.EscapeString(title) + `  ` + html.EscapeString(firstD) + ` ~ ` + html.EscapeString(lastD) + `</text>` + "\n")

	for k := 0; k <= 5; k++ {
		y := mTop + (float64(k)/5.0)*plotH
		buf.WriteString(`<line x1="` + fmtFloat(mLeft) + `" y1="` + fmtFloat(y) + `" x2="` + fmtFloat(mLeft+plotW) + `" y2="` + fmtFloat(y) + `" stroke="` + grid + `" stroke-width="1"/>` + "\n")
		v := maxV - (float64(k)/5.0)*(maxV-minV)
		buf.WriteString(`<text x="6" y="` + fmtFloat(y+4) + `" fill="` + txt + `" font-size="12" ` + svgFont + `>` +
			html.EscapeString(fmtValue(v)) + `</text>` + "\n")
	}

	writePolyline(&buf, curve, xAt, valueToY, func(p EquityPoint) float64 { return p.Cash }, cash, true)
	writePolyline(&buf, curve, xAt, valueToY, func(p EquityPoint) float64 { return p.TotalValue }, equity, false)

	index := make(map[string]int, len(curve))
	for i, p := range curve {
		index[p.Date.Format("2006-01-02")] = i
	}
	for _, t := range trades {
		i, ok := index[t.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		col := buy
		label := "B"
		if t.Side.Closing() {
			col = sell
			label = "S"
			if t.Side == SideForcedLiquidation {
				label = "L"
			}
		}
		x := xAt(i)
		y := valueToY(curve[i].TotalValue)
		buf.WriteString(`<circle cx="` + fmtFloat(x) + `" cy="` + fmtFloat(y) + `" r="3.5" fill="` + col + `" />` + "\n")
		buf.WriteString(`<text x="` + fmtFloat(x+6) + `" y="` + fmtFloat(y-6) + `" fill="` + col + `" font-size="12" ` + svgFont + `>` +
			label + `</text>` + "\n")
	}

	buf.WriteString(`<text x="` + fmtFloat(mLeft) + `" y="` + fmtFloat(mTop+plotH+mBottom-12) + `" fill="` + txt + `" font-size="12" ` + svgFont + `>` +
		html.EscapeString(firstD) + `</text>` + "\n")
	buf.WriteString(`<text x="` + fmtFloat(mLeft+plotW-70) + `" y="` + fmtFloat(mTop+plotH+mBottom-12) + `" fill="` + txt + `" font-size="12" ` + svgFont + `>` +
		html.EscapeString(lastD) + `</text>` + "\n")

	buf.WriteString(`</svg>` + "\n")
	return buf.Bytes(), nil
}

func writePolyline(buf *bytes.Buffer, curve []EquityPoint, xAt func(int) float64, yAt func(float64) float64, value func(EquityPoint) float64, color string, dash bool) {
	pts := make([]string, 0, len(curve))
	for i, p := range curve {
		pts = append(pts, fmtFloat(xAt(i))+","+fmtFloat(yAt(value(p))))
	}
	style := ""
	if dash {
		style = ` stroke-dasharray="6 6"`
	}
	buf.WriteString(`<polyline fill="none" stroke="` + color + `" stroke-width="1.6"` + style + ` points="` + strings.Join(pts, " ") + `"/>` + "\n")
}

func fmtFloat(x float64) string {
	// stable compact formatting for SVG attributes
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func fmtValue(v float64) string {
	if math.Abs(v) >= 1000 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
