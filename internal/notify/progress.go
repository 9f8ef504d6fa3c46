package notify

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
)

const barWidth = 30

// Progress draws upload progress. On a terminal it redraws one bar in place;
// elsewhere it prints a line every 10%.
type Progress struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	tty   bool
	last  int
}

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer, label string) *Progress {
	return &Progress{w: w, label: label, tty: IsTerminal(w), last: -1}
}

// Update draws percent, which is expected to be in [0, 100].
func (p *Progress) Update(percent float64) {
	pct := int(math.Floor(math.Max(0, math.Min(100, percent))))
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		if pct == p.last {
			return
		}
		p.last = pct
		filled := pct * barWidth / 100
		bar := successStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", barWidth-filled))
		fmt.Fprintf(p.w, "\r%s %s %3d%%", p.label, bar, pct)
		return
	}
	step := pct / 10 * 10
	if step <= p.last {
		return
	}
	p.last = step
	fmt.Fprintf(p.w, "%s %d%%\n", p.label, step)
}

// Done ends the bar line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty && p.last >= 0 {
		fmt.Fprintln(p.w)
	}
}
