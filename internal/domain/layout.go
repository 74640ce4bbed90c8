package domain

import (
	"math"
	"slices"
)

// Layout names a graph placement algorithm.
type Layout string

// Supported layouts.
const (
	LayoutHierarchical Layout = "hierarchical"
	LayoutForce        Layout = "force"
)

// ParseLayout validates a layout name; empty means hierarchical.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "", LayoutHierarchical:
		return LayoutHierarchical, nil
	case LayoutForce:
		return LayoutForce, nil
	default:
		return "", NewValidationErrorWithValue("layout", "must be hierarchical or force", s)
	}
}

// LayoutOptions sizes the drawing.
type LayoutOptions struct {
	Width      float64
	Height     float64
	LevelGap   float64
	NodeGap    float64
	Iterations int
}

// DefaultLayoutOptions match the dashboard canvas.
var DefaultLayoutOptions = LayoutOptions{
	Width:      960,
	Height:     640,
	LevelGap:   120,
	NodeGap:    180,
	Iterations: 300,
}

func (o LayoutOptions) withDefaults() LayoutOptions {
	d := DefaultLayoutOptions
	if o.Width <= 0 {
		o.Width = d.Width
	}

	if o.Height <= 0 {
		o.Height = d.Height
	}

	if o.LevelGap <= 0 {
		o.LevelGap = d.LevelGap
	}

	if o.NodeGap <= 0 {
		o.NodeGap = d.NodeGap
	}

	if o.Iterations <= 0 {
		o.Iterations = d.Iterations
	}

	return o
}

// ApplyLayout positions g's nodes in place.
func ApplyLayout(g *Graph, layout Layout, opts LayoutOptions) {
	opts = opts.withDefaults()

	if layout == LayoutForce {
		ForceLayout(g, opts)
		return
	}

	HierarchicalLayout(g, opts)
}

// HierarchicalLayout puts each level on its own row, top to bottom, with the
// nodes of a row centred on x = 0 and ordered by ID.
func HierarchicalLayout(g *Graph, opts LayoutOptions) {
	opts = opts.withDefaults()

	rows := make(map[int][]*GraphNode)
	for _, n := range g.Nodes {
		rows[n.Level] = append(rows[n.Level], n)
	}

	for level, row := range rows {
		slices.SortFunc(row, func(a, b *GraphNode) int {
			switch {
			case a.ID < b.ID:
				return -1
			case a.ID > b.ID:
				return 1
			default:
				return 0
			}
		})

		mid := float64(len(row)-1) / 2
		for i, n := range row {
			n.X = (float64(i) - mid) * opts.NodeGap
			n.Y = float64(level) * opts.LevelGap
		}
	}
}

// minDistance keeps forces finite when two nodes coincide.
const minDistance = 0.01

// ForceLayout runs a deterministic Fruchterman-Reingold simulation inside the
// Width x Height box. Nodes start evenly spaced on a circle in ID order, and the
// temperature cools linearly to zero, so equal inputs give equal positions.
func ForceLayout(g *Graph, opts LayoutOptions) {
	opts = opts.withDefaults()

	n := len(g.Nodes)
	if n == 0 {
		return
	}

	cx, cy := opts.Width/2, opts.Height/2
	if n == 1 {
		g.Nodes[0].X, g.Nodes[0].Y = cx, cy
		return
	}

	pos := make(map[string]int, n)
	x := make([]float64, n)
	y := make([]float64, n)
	radius := math.Min(opts.Width, opts.Height) / 3

	for i, node := range g.Nodes {
		pos[node.ID] = i
		angle := 2 * math.Pi * float64(i) / float64(n)
		x[i] = cx + radius*math.Cos(angle)
		y[i] = cy + radius*math.Sin(angle)
	}

	k := math.Sqrt(opts.Width * opts.Height / float64(n))
	temp0 := opts.Width / 10
	dx := make([]float64, n)
	dy := make([]float64, n)

	for iter := range opts.Iterations {
		clear(dx)
		clear(dy)

		for i := range n {
			for j := i + 1; j < n; j++ {
				ddx, ddy := x[i]-x[j], y[i]-y[j]
				dist := math.Max(math.Hypot(ddx, ddy), minDistance)
				force := k * k / dist
				fx, fy := ddx/dist*force, ddy/dist*force
				dx[i] += fx
				dy[i] += fy
				dx[j] -= fx
				dy[j] -= fy
			}
		}

		for _, l := range g.Links {
			s, t := pos[l.Source], pos[l.Target]
			ddx, ddy := x[s]-x[t], y[s]-y[t]
			dist := math.Max(math.Hypot(ddx, ddy), minDistance)
			force := dist * dist / k
			fx, fy := ddx/dist*force, ddy/dist*force
			dx[s] -= fx
			dy[s] -= fy
			dx[t] += fx
			dy[t] += fy
		}

		temp := temp0 * (1 - float64(iter)/float64(opts.Iterations))
		for i := range n {
			disp := math.Max(math.Hypot(dx[i], dy[i]), minDistance)
			step := math.Min(disp, temp)
			x[i] = clamp(x[i]+dx[i]/disp*step, 0, opts.Width)
			y[i] = clamp(y[i]+dy[i]/disp*step, 0, opts.Height)
		}
	}

	for i, node := range g.Nodes {
		node.X = math.Round(x[i]*100) / 100
		node.Y = math.Round(y[i]*100) / 100
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
