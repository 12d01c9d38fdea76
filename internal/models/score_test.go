package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorFor(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		r     ScoreRange
		want  ScoreColor
	}{
		{
			name:  "high score is green",
			score: 0.9,
			r:     ScoreRange{Min: 0, Max: 1},
			want:  ColorGreen,
		},
		{
			name:  "middle score is yellow",
			score: 0.5,
			r:     ScoreRange{Min: 0, Max: 1},
			want:  ColorYellow,
		},
		{
			name:  "low score is red",
			score: 0.1,
			r:     ScoreRange{Min: 0, Max: 1},
			want:  ColorRed,
		},
		{
			name:  "green boundary is inclusive",
			score: 0.8,
			r:     ScoreRange{Min: 0, Max: 1},
			want:  ColorGreen,
		},
		{
			name:  "yellow boundary is inclusive",
			score: 0.4,
			r:     ScoreRange{Min: 0, Max: 1},
			want:  ColorYellow,
		},
		{
			name:  "five point scale normalizes",
			score: 4.5,
			r:     ScoreRange{Min: 1, Max: 5},
			want:  ColorGreen,
		},
		{
			name:  "degenerate range is white",
			score: 5,
			r:     ScoreRange{Min: 5, Max: 5},
			want:  ColorWhite,
		},
		{
			name:  "inverted range is white",
			score: 3,
			r:     ScoreRange{Min: 5, Max: 1},
			want:  ColorWhite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ColorFor(tt.score, tt.r))
		})
	}
}

func TestPaintWhitePassesThrough(t *testing.T) {
	// White never wraps the text in color codes when color is disabled,
	// and Paint must preserve the text either way.
	assert.Contains(t, ColorWhite.Paint("1.00"), "1.00")
	assert.Contains(t, ColorGreen.Paint("4.50"), "4.50")
}
