package actuator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/fusionwatch/fusionwatch/internal/config"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

// GPIO writes alert lines to sysfs GPIO value files. The pins must already
// be exported and configured as outputs.
//
// A pin is written on the first Apply and afterwards only when its line
// changes. A failed write is retried on the next Apply.
type GPIO struct {
	base      string
	pins      map[int]int
	activeLow bool

	mu      sync.Mutex
	written map[int]bool // line -> last value successfully written
}

// NewGPIO returns a GPIO actuator for cfg.
func NewGPIO(cfg config.GPIOConfig) *GPIO {
	return &GPIO{
		base:      cfg.BasePath,
		pins:      cfg.Pins,
		activeLow: cfg.ActiveLow,
		written:   make(map[int]bool),
	}
}

// Apply writes the mapped lines whose value changed. Lines without a pin
// are skipped.
func (g *GPIO) Apply(_ context.Context, lines fusion.AlertVector) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := make([]int, 0, len(g.pins))
	for line := range g.pins {
		idx = append(idx, line)
	}
	sort.Ints(idx)

	var errs []error
	for _, line := range idx {
		if line < 0 || line >= fusion.AlertCount {
			continue
		}
		if last, ok := g.written[line]; ok && last == lines[line] {
			continue
		}
		on := lines[line] != g.activeLow
		val := []byte("0")
		if on {
			val = []byte("1")
		}
		if err := os.WriteFile(g.valuePath(g.pins[line]), val, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("actuator: line %d (%s) gpio%d: %w",
				line, fusion.AlertName(line), g.pins[line], err))
			continue
		}
		g.written[line] = lines[line]
	}
	return errors.Join(errs...)
}

func (g *GPIO) valuePath(pin int) string {
	return filepath.Join(g.base, "gpio"+strconv.Itoa(pin), "value")
}
