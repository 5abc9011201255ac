package reader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"

	"github.com/fusionwatch/fusionwatch/internal/config"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

// Metric names exposed by the sensor gateway. Every sample carries a
// channel label with the multiplexer channel it was read from.
const (
	// HTU31D temperature in degrees Celsius.
	gwTemperature = "htu31d_temperature_celsius"

	// HTU31D relative humidity in percent.
	gwHumidity = "htu31d_relative_humidity_percent"

	// LTR390 ambient light in lux.
	gwLux = "ltr390_ambient_lux"

	// 1 when the sensor answered on the bus during the last poll, 0 otherwise.
	// Labelled with sensor="htu31d" or sensor="ltr390".
	gwSensorUp = "sensor_up"

	labelChannel = "channel"
	labelSensor  = "sensor"
)

// gatewayReader fetches the gateway's Prometheus text exposition for each
// series and extracts the samples of that series' channel.
type gatewayReader struct {
	series []config.Series
	client *http.Client
}

func newGatewayReader(series []config.Series, timeout time.Duration) *gatewayReader {
	if timeout <= 0 {
		timeout = config.DefaultReadTimeout
	}
	return &gatewayReader{
		series: series,
		client: &http.Client{Timeout: timeout},
	}
}

// ReadSeries fetches the series' endpoint and returns its readings.
//
// A transport or parse failure, or both sensors reporting down, marks the
// series Failed. A single sensor reporting down only drops that sensor's
// quantities.
func (g *gatewayReader) ReadSeries(ctx context.Context, id int) (fusion.SeriesReading, error) {
	if id < 0 || id >= len(g.series) {
		return fusion.SeriesReading{}, fmt.Errorf("unknown series id %d", id)
	}
	src := g.series[id]

	mfs, err := fetchMetrics(ctx, g.client, src.Endpoint)
	if err != nil {
		slog.Warn("reader: gateway fetch failed", "series", src.ID, "channel", src.Channel, "err", err)
		return fusion.SeriesReading{Failed: true}, nil
	}
	return extract(mfs, src.Channel), nil
}

// extract builds a SeriesReading from the families for one channel.
func extract(mfs map[string]*dto.MetricFamily, channel int) fusion.SeriesReading {
	ch := strconv.Itoa(channel)
	var out fusion.SeriesReading

	htuUp, htuKnown := sensorUp(mfs[gwSensorUp], ch, "htu31d")
	ltrUp, ltrKnown := sensorUp(mfs[gwSensorUp], ch, "ltr390")

	if !htuKnown || htuUp {
		out.Temperature, out.HasTemperature = channelValue(mfs[gwTemperature], ch)
		out.Humidity, out.HasHumidity = channelValue(mfs[gwHumidity], ch)
	}
	if !ltrKnown || ltrUp {
		out.Lux, out.HasLux = channelValue(mfs[gwLux], ch)
	}

	if !out.HasTemperature && !out.HasHumidity && !out.HasLux {
		out.Failed = true
	}
	return out
}

// channelValue returns the value of the first sample in mf whose channel
// label equals ch. A sample without a channel label matches any channel.
func channelValue(mf *dto.MetricFamily, ch string) (float64, bool) {
	if mf == nil {
		return 0, false
	}
	for _, m := range mf.GetMetric() {
		if l, ok := labelValue(m, labelChannel); ok && l != ch {
			continue
		}
		v, ok := sampleValue(m)
		if !ok {
			continue
		}
		// A sensor that answered with NaN or Inf has no usable reading.
		if !finite(v) {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// sensorUp looks up sensor_up{channel=ch, sensor=name}. known is false when
// the gateway did not report the sensor at all.
func sensorUp(mf *dto.MetricFamily, ch, name string) (up, known bool) {
	if mf == nil {
		return false, false
	}
	for _, m := range mf.GetMetric() {
		if l, ok := labelValue(m, labelChannel); ok && l != ch {
			continue
		}
		if l, _ := labelValue(m, labelSensor); l != name {
			continue
		}
		v, _ := sampleValue(m)
		return finite(v) && v != 0, true
	}
	return false, false
}

func sampleValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue(), true
	case m.Untyped != nil:
		return m.Untyped.GetValue(), true
	case m.Counter != nil:
		return m.Counter.GetValue(), true
	}
	return 0, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func labelValue(m *dto.Metric, name string) (string, bool) {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue(), true
		}
	}
	return "", false
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	parser := expfmt.NewTextParser(model.LegacyValidation)
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}
