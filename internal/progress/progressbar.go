package progress

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
)

const defaultBarWidth = 20

// Bar tracks overall suite completion as an ASCII progress bar. One Bar spans
// all runs: its total is runs * cases and it advances once per finished case,
// whatever the outcome.
type Bar struct {
	mu          sync.RWMutex
	current     int
	total       int
	width       int
	enableColor bool
}

// NewBar creates a progress bar for total units of work.
func NewBar(total, width int, enableColor bool) *Bar {
	if width < 1 {
		width = defaultBarWidth
	}
	return &Bar{
		total:       total,
		width:       width,
		enableColor: enableColor,
	}
}

// Advance increments completion by one unit.
func (b *Bar) Advance() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current++
}

// Current returns the number of completed units.
func (b *Bar) Current() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Done reports whether every unit has completed.
func (b *Bar) Done() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total > 0 && b.current >= b.total
}

// Render generates the bar string, e.g. "[=====     ] 6/12 (50%)".
// In-progress bars render cyan, completed bars green.
func (b *Bar) Render() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	perc := 0
	if b.total > 0 {
		perc = (b.current * 100) / b.total
		if perc > 100 {
			perc = 100
		}
	}

	filled := (perc * b.width) / 100
	if filled > b.width {
		filled = b.width
	}

	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", b.width-filled) + "]"
	result := fmt.Sprintf("%s %d/%d (%d%%)", bar, b.current, b.total, perc)

	if b.enableColor {
		if perc < 100 {
			return color.CyanString(result)
		}
		return color.GreenString(result)
	}

	return result
}
