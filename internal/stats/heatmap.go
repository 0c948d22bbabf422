package stats

import (
	"math"

	"github.com/huangsam/skysched/schema"
)

// ComputeHeatmapBins bins two features on independent equal-width grids of nBins
// each and returns one row per non-empty cell, ordered by x then y index.
// An axis with zero range puts every value in its first bin.
func ComputeHeatmapBins(samples []Sample, getX, getY Feature, nBins int) []schema.HeatmapBin {
	if nBins < 1 {
		nBins = 1
	}

	type point struct {
		x, y      float64
		scheduled bool
	}
	points := make([]point, 0, len(samples))
	for _, s := range samples {
		x, y := getX(s), getY(s)
		if !finite(x) || !finite(y) {
			continue
		}
		points = append(points, point{x: x, y: y, scheduled: s.Scheduled})
	}
	if len(points) == 0 {
		return nil
	}

	xMin, xMax := points[0].x, points[0].x
	yMin, yMax := points[0].y, points[0].y
	for _, p := range points[1:] {
		xMin, xMax = math.Min(xMin, p.x), math.Max(xMax, p.x)
		yMin, yMax = math.Min(yMin, p.y), math.Max(yMax, p.y)
	}
	xWidth := (xMax - xMin) / float64(nBins)
	yWidth := (yMax - yMin) / float64(nBins)

	type cell struct {
		count, scheduled int
		sumX, sumY       float64
	}
	grid := make([]cell, nBins*nBins)
	for _, p := range points {
		xi := binIndex(p.x, xMin, xWidth, nBins)
		yi := binIndex(p.y, yMin, yWidth, nBins)
		c := &grid[xi*nBins+yi]
		c.count++
		if p.scheduled {
			c.scheduled++
		}
		c.sumX += p.x
		c.sumY += p.y
	}

	var out []schema.HeatmapBin
	for xi := 0; xi < nBins; xi++ {
		for yi := 0; yi < nBins; yi++ {
			c := grid[xi*nBins+yi]
			if c.count == 0 {
				continue
			}
			n := float64(c.count)
			out = append(out, schema.HeatmapBin{
				XIndex:         xi,
				YIndex:         yi,
				XMean:          c.sumX / n,
				YMean:          c.sumY / n,
				TotalCount:     c.count,
				ScheduledCount: c.scheduled,
				SchedulingRate: float64(c.scheduled) / n,
			})
		}
	}
	return out
}
