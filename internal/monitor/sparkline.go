package monitor

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// ring is a fixed-size buffer of the most recent fused medians.
type ring struct {
	buf  []float64
	next int
	full bool
}

func newRing(size int) *ring {
	return &ring{buf: make([]float64, size)}
}

func (r *ring) push(v float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// values returns the buffered values oldest first.
func (r *ring) values() []float64 {
	if !r.full {
		out := make([]float64, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]float64, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// sparkline renders the last width values scaled to their own min/max.
// Missing history on the left is padded with a dim dashed line.
func sparkline(values []float64, width int) string {
	if width <= 0 {
		return ""
	}
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	if len(values) == 0 {
		return dim.Render(strings.Repeat("╌", width))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	sb.WriteString(dim.Render(strings.Repeat("╌", width-len(values))))

	line := make([]rune, len(values))
	for i, v := range values {
		idx := int((v - lo) / span * 7)
		if idx > 7 {
			idx = 7
		}
		line[i] = sparkBlocks[idx]
	}
	sb.WriteString(lipgloss.NewStyle().Foreground(colorOk).Render(string(line)))
	return sb.String()
}
