// Package reader obtains raw per-series readings for the fusion cycle.
//
// Selecting the multiplexer channel and talking to the sensor drivers is the
// reader's job; the fusion core only sees fusion.SeriesReading values. Series
// are always read one at a time because the multiplexer exposes a single
// active channel.
package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/fusionwatch/fusionwatch/internal/config"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

// Reader is the common interface implemented by every series reader.
//
// A failed read is reported through SeriesReading.Failed, not the error.
// The error is reserved for programming errors such as an unknown series id.
type Reader interface {
	ReadSeries(ctx context.Context, id int) (fusion.SeriesReading, error)
}

// New returns the appropriate Reader for the agent configuration.
func New(cfg config.AgentConfig) (Reader, error) {
	switch cfg.Reader.Type {
	case "gateway":
		return newGatewayReader(cfg.Series, cfg.Reader.Timeout), nil
	case "simulated":
		return NewSimulated(cfg.Series, cfg.Reader.FailureRate, cfg.Reader.Seed), nil
	default:
		return nil, fmt.Errorf("reader: unsupported type %q", cfg.Reader.Type)
	}
}

// ReadAll reads every series in order, one at a time. A series whose read
// returns an error is marked failed and the remaining series are still read;
// the errors are joined.
func ReadAll(ctx context.Context, r Reader) ([fusion.SeriesCount]fusion.SeriesReading, error) {
	var (
		out  [fusion.SeriesCount]fusion.SeriesReading
		errs []error
	)
	for id := range out {
		rd, err := r.ReadSeries(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("reader: series %d: %w", id+1, err))
			rd = fusion.SeriesReading{Failed: true}
		}
		out[id] = rd
	}
	return out, errors.Join(errs...)
}
