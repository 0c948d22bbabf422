package outwriter

import (
	"fmt"
	"regexp"

	"github.com/fatih/color"
	"github.com/huangsam/skysched/schema"
)

// Rate labels.
const (
	PoorRate      = "Poor"
	FairRate      = "Fair"
	GoodRate      = "Good"
	ExcellentRate = "Excellent"
)

var (
	poorColor      = color.New(color.FgRed, color.Bold)
	fairColor      = color.New(color.FgYellow)
	goodColor      = color.New(color.FgGreen)
	excellentColor = color.New(color.FgCyan, color.Bold)
	fastColor      = color.New(color.FgGreen)
	slowColor      = color.New(color.FgYellow)
)

// SetColors turns terminal colors on or off for every label.
func SetColors(enabled bool) {
	color.NoColor = !enabled
}

// PlainRateLabel buckets a scheduling rate in [0, 1].
func PlainRateLabel(rate float64) string {
	switch {
	case rate >= 0.75:
		return ExcellentRate
	case rate >= 0.5:
		return GoodRate
	case rate >= 0.25:
		return FairRate
	default:
		return PoorRate
	}
}

// ColorRateLabel is PlainRateLabel colored for terminals.
func ColorRateLabel(rate float64) string {
	text := PlainRateLabel(rate)
	switch text {
	case ExcellentRate:
		return excellentColor.Sprint(text)
	case GoodRate:
		return goodColor.Sprint(text)
	case FairRate:
		return fairColor.Sprint(text)
	default:
		return poorColor.Sprint(text)
	}
}

// pathLabel describes which query path answered.
func pathLabel(path schema.QueryPath) string {
	switch path {
	case schema.FastPath:
		return fastColor.Sprint("fast (precomputed)")
	case schema.SlowPath:
		return slowColor.Sprint("slow (recomputed)")
	}
	return string(path)
}

func footer(path schema.QueryPath) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("Answered via the %s path", pathLabel(path))
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripColors removes terminal escapes so CSV cells stay plain.
func stripColors(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			out[i][j] = ansiPattern.ReplaceAllString(cell, "")
		}
	}
	return out
}
