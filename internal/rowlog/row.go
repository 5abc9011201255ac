// Package rowlog records one fixed-schema row per fusion cycle.
//
// The CSV logger writes rows to a file per local calendar day named
// sensor_log_<Mon-DD-YYYY>.csv, writing the header the first time a day's
// file is created.
package rowlog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

// Layouts for the date and time-of-day columns.
const (
	DateLayout = "Jan-02-2006"
	TimeLayout = "15:04:05.000000"
)

// Series status column values.
const (
	StatusOK   = "OK"
	StatusDown = "DOWN"
)

// Row is one logged cycle.
type Row struct {
	Date               string                     `json:"date"`
	TimeOfDay          string                     `json:"time"`
	FusedTemperature   float64                    `json:"temperature"`
	FusedHumidity      float64                    `json:"humidity"`
	FusedLux           float64                    `json:"lux"`
	CumulativeLuxHours float64                    `json:"lux_hours"`
	SeriesStatus       [fusion.SeriesCount]string `json:"series_status"`
	Alerts             [fusion.AlertCount]bool    `json:"alerts"`

	// Timestamp is the cycle time in UTC. The local Date and TimeOfDay
	// columns repeat an hour when clocks fall back; this does not.
	Timestamp time.Time `json:"-"`
}

// Logger accepts one row per cycle.
type Logger interface {
	Log(ctx context.Context, row Row) error
}

// FromResult builds the row for a cycle result. Date and time use the local
// calendar of res.Timestamp.
func FromResult(res *fusion.Result) Row {
	ts := res.Timestamp.Local()
	row := Row{
		Date:               ts.Format(DateLayout),
		TimeOfDay:          ts.Format(TimeLayout),
		FusedTemperature:   res.Temperature.Median,
		FusedHumidity:      res.Humidity.Median,
		FusedLux:           res.Lux.Median,
		CumulativeLuxHours: res.LuxHours,
		Alerts:             res.Alerts,
		Timestamp:          res.Timestamp.UTC(),
	}
	for i, s := range res.Series {
		row.SeriesStatus[i] = StatusOK
		if s.Health.CurrentlyDown {
			row.SeriesStatus[i] = StatusDown
		}
	}
	return row
}

// Header returns the column names in record order.
func Header() []string {
	h := []string{"Date", "Time Stamp", "Temperature", "Relative Humidity", "Current Lux", "Cumulative Lux Hours"}
	for i := 1; i <= fusion.SeriesCount; i++ {
		h = append(h, "Series "+strconv.Itoa(i)+" Status")
	}
	for i := 0; i < fusion.AlertCount; i++ {
		h = append(h, fusion.AlertName(i))
	}
	return h
}

// Record returns the row as CSV fields matching Header.
func (r Row) Record() []string {
	rec := []string{
		r.Date,
		r.TimeOfDay,
		formatFloat(r.FusedTemperature),
		formatFloat(r.FusedHumidity),
		formatFloat(r.FusedLux),
		formatFloat(r.CumulativeLuxHours),
	}
	rec = append(rec, r.SeriesStatus[:]...)
	for _, on := range r.Alerts {
		if on {
			rec = append(rec, "1")
		} else {
			rec = append(rec, "0")
		}
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Multi fans a row out to several loggers. Every logger is called even when
// an earlier one fails; the errors are joined.
type Multi []Logger

// Log implements Logger.
func (m Multi) Log(ctx context.Context, row Row) error {
	var errs []error
	for _, l := range m {
		if err := l.Log(ctx, row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
