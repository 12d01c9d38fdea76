package models

import "github.com/fatih/color"

// Normalized score thresholds for the qualitative color buckets.
const (
	scoreUpperBound = 0.8
	scoreLowerBound = 0.4
)

// ScoreRange declares the scale a plugin scores rows on. Min must not exceed
// Max; a degenerate range resolves to ColorWhite rather than erroring.
type ScoreRange struct {
	Min float64
	Max float64
}

// ScoreColor is the qualitative bucket a score falls into on its range.
type ScoreColor string

// Score color buckets, from unscored to best.
const (
	ColorWhite  ScoreColor = "white"
	ColorGreen  ScoreColor = "green"
	ColorYellow ScoreColor = "yellow"
	ColorRed    ScoreColor = "red"
)

// Paint wraps s in the ANSI codes for the color bucket. Output respects
// color.NoColor, so non-TTY writers receive plain text.
func (c ScoreColor) Paint(s string) string {
	switch c {
	case ColorGreen:
		return color.GreenString(s)
	case ColorYellow:
		return color.YellowString(s)
	case ColorRed:
		return color.RedString(s)
	default:
		return color.WhiteString(s)
	}
}

// ColorFor maps a raw score and its declared range to a color bucket. It is a
// pure function used both for the inline progress display and for the
// aggregate summary.
func ColorFor(score float64, r ScoreRange) ScoreColor {
	if r.Max <= r.Min {
		return ColorWhite
	}

	normalized := (score - r.Min) / (r.Max - r.Min)
	switch {
	case normalized >= scoreUpperBound:
		return ColorGreen
	case normalized >= scoreLowerBound:
		return ColorYellow
	default:
		return ColorRed
	}
}
