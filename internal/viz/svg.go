// Package viz renders route plans as standalone SVG documents.
package viz

import (
	"bytes"
	"fmt"

	"fleetopt/internal/solver"
)

const (
	width   = 640.0
	height  = 640.0
	padding = 32.0
)

var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// RenderSVG draws each route as a polyline over the customer scatter, depot
// marked as a black square. Coordinates scale to fit the canvas.
func RenderSVG(nodes []solver.Node, routes [][]int) []byte {
	minX, maxX := nodes[0].X, nodes[0].X
	minY, maxY := nodes[0].Y, nodes[0].Y
	for _, nd := range nodes[1:] {
		if nd.X < minX {
			minX = nd.X
		}
		if nd.X > maxX {
			maxX = nd.X
		}
		if nd.Y < minY {
			minY = nd.Y
		}
		if nd.Y > maxY {
			maxY = nd.Y
		}
	}
	spanX := maxX - minX
	spanY := maxY - minY
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}
	sx := func(x float64) float64 { return padding + (x-minX)/spanX*(width-2*padding) }
	// SVG y axis grows downward
	sy := func(y float64) float64 { return height - padding - (y-minY)/spanY*(height-2*padding) }

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">`+"\n", width, height, width, height)
	buf.WriteString(`<rect width="100%" height="100%" fill="white"/>` + "\n")

	for ri, route := range routes {
		color := palette[ri%len(palette)]
		buf.WriteString(`<polyline fill="none" stroke="` + color + `" stroke-width="1.5" points="`)
		for i, idx := range route {
			if i > 0 {
				buf.WriteByte(' ')
			}
			fmt.Fprintf(&buf, "%.1f,%.1f", sx(nodes[idx].X), sy(nodes[idx].Y))
		}
		buf.WriteString(`"/>` + "\n")
	}

	for i, nd := range nodes {
		if i == 0 {
			fmt.Fprintf(&buf, `<rect x="%.1f" y="%.1f" width="10" height="10" fill="black"/>`+"\n", sx(nd.X)-5, sy(nd.Y)-5)
			continue
		}
		fmt.Fprintf(&buf, `<circle cx="%.1f" cy="%.1f" r="3" fill="#444"/>`+"\n", sx(nd.X), sy(nd.Y))
	}
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}
