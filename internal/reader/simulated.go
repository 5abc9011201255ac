package reader

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fusionwatch/fusionwatch/internal/config"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

// Simulated produces plausible greenhouse readings without hardware. Each
// series follows the same slow daily curve plus its own small offset and
// noise, so the fused range behaves like three real sensors that mostly agree.
type Simulated struct {
	series      []config.Series
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulated returns a simulated reader. A zero seed picks one from the clock.
func NewSimulated(series []config.Series, failureRate float64, seed int64) *Simulated {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulated{
		series:      series,
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
		now:         time.Now,
	}
}

// ReadSeries returns one simulated reading for series id.
func (s *Simulated) ReadSeries(_ context.Context, id int) (fusion.SeriesReading, error) {
	if id < 0 || id >= len(s.series) {
		return fusion.SeriesReading{}, fmt.Errorf("unknown series id %d", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() < s.failureRate {
		return fusion.SeriesReading{Failed: true}, nil
	}

	t := s.now()
	// Fraction of the local day, 0 at midnight.
	day := float64(t.Hour()*3600+t.Minute()*60+t.Second()) / 86400
	sun := math.Max(0, math.Sin(2*math.Pi*(day-0.25)))
	offset := float64(id-1) * 0.05

	return fusion.SeriesReading{
		Temperature:    20.5 + 1.5*sun + offset + s.rng.NormFloat64()*0.05,
		Humidity:       55 - 12*sun + offset*10 + s.rng.NormFloat64()*0.5,
		Lux:            math.Max(0, 180*sun+s.rng.NormFloat64()*2),
		HasTemperature: true,
		HasHumidity:    true,
		HasLux:         true,
	}, nil
}
