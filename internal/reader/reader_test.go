package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fusionwatch/fusionwatch/internal/config"
)

// gatewayMetrics is what the sensor gateway exposes for a mux with three
// populated channels. Channel 7's light sensor did not answer this poll.
const gatewayMetrics = `
# HELP htu31d_temperature_celsius HTU31D temperature.
# TYPE htu31d_temperature_celsius gauge
htu31d_temperature_celsius{channel="0"} 21.10
htu31d_temperature_celsius{channel="3"} 21.25
htu31d_temperature_celsius{channel="7"} 20.90

# HELP htu31d_relative_humidity_percent HTU31D relative humidity.
# TYPE htu31d_relative_humidity_percent gauge
htu31d_relative_humidity_percent{channel="0"} 45.5
htu31d_relative_humidity_percent{channel="3"} 46.0
htu31d_relative_humidity_percent{channel="7"} 44.8

# HELP ltr390_ambient_lux LTR390 ambient light.
# TYPE ltr390_ambient_lux gauge
ltr390_ambient_lux{channel="0"} 120
ltr390_ambient_lux{channel="3"} 118
ltr390_ambient_lux{channel="7"} 0

# HELP sensor_up Whether the sensor answered during the last poll.
# TYPE sensor_up gauge
sensor_up{channel="0",sensor="htu31d"} 1
sensor_up{channel="0",sensor="ltr390"} 1
sensor_up{channel="3",sensor="htu31d"} 1
sensor_up{channel="3",sensor="ltr390"} 1
sensor_up{channel="7",sensor="htu31d"} 1
sensor_up{channel="7",sensor="ltr390"} 0
`

func newGateway(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func gatewaySeries(url string) []config.Series {
	return []config.Series{
		{ID: "s1", Channel: 0, Endpoint: url},
		{ID: "s2", Channel: 3, Endpoint: url},
		{ID: "s3", Channel: 7, Endpoint: url},
	}
}

func TestGateway_ReadSeries(t *testing.T) {
	srv := newGateway(t, gatewayMetrics, http.StatusOK)
	g := newGatewayReader(gatewaySeries(srv.URL), time.Second)

	r, err := g.ReadSeries(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReadSeries() error = %v", err)
	}
	if r.Failed {
		t.Fatal("series 2 marked failed")
	}
	if !r.HasTemperature || r.Temperature != 21.25 {
		t.Errorf("temperature = %v (has=%v), want 21.25", r.Temperature, r.HasTemperature)
	}
	if !r.HasHumidity || r.Humidity != 46.0 {
		t.Errorf("humidity = %v (has=%v), want 46.0", r.Humidity, r.HasHumidity)
	}
	if !r.HasLux || r.Lux != 118 {
		t.Errorf("lux = %v (has=%v), want 118", r.Lux, r.HasLux)
	}
}

func TestGateway_SensorDownDropsItsQuantities(t *testing.T) {
	srv := newGateway(t, gatewayMetrics, http.StatusOK)
	g := newGatewayReader(gatewaySeries(srv.URL), time.Second)

	r, err := g.ReadSeries(context.Background(), 2)
	if err != nil {
		t.Fatalf("ReadSeries() error = %v", err)
	}
	if r.Failed {
		t.Fatal("series 3 should not be failed while its HTU31D answers")
	}
	if r.HasLux {
		t.Errorf("lux should be missing when ltr390 is down, got %v", r.Lux)
	}
	if !r.HasTemperature || r.Temperature != 20.90 {
		t.Errorf("temperature = %v (has=%v), want 20.90", r.Temperature, r.HasTemperature)
	}
}

func TestGateway_FailureModes(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"server error", "boom", http.StatusInternalServerError},
		{"garbage", "this is {not prometheus", http.StatusOK},
		{"channel missing", `htu31d_temperature_celsius{channel="5"} 20`, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newGateway(t, tc.body, tc.status)
			g := newGatewayReader(gatewaySeries(srv.URL), time.Second)
			r, err := g.ReadSeries(context.Background(), 0)
			if err != nil {
				t.Fatalf("ReadSeries() error = %v", err)
			}
			if !r.Failed {
				t.Errorf("expected Failed reading, got %+v", r)
			}
		})
	}
}

func TestGateway_Unreachable(t *testing.T) {
	srv := newGateway(t, gatewayMetrics, http.StatusOK)
	url := srv.URL
	srv.Close()

	g := newGatewayReader(gatewaySeries(url), 200*time.Millisecond)
	r, err := g.ReadSeries(context.Background(), 0)
	if err != nil {
		t.Fatalf("ReadSeries() error = %v", err)
	}
	if !r.Failed {
		t.Error("unreachable gateway should yield a failed reading")
	}
}

func TestGateway_UnknownID(t *testing.T) {
	g := newGatewayReader(gatewaySeries("http://unused"), time.Second)
	if _, err := g.ReadSeries(context.Background(), 3); err == nil {
		t.Error("expected error for series id 3")
	}
}

func TestGateway_NonFiniteSamplesAreMissing(t *testing.T) {
	const body = `
htu31d_temperature_celsius{channel="0"} +Inf
htu31d_relative_humidity_percent{channel="0"} 45.5
ltr390_ambient_lux{channel="0"} NaN
htu31d_temperature_celsius{channel="3"} 21.0
sensor_up{channel="3",sensor="htu31d"} NaN
`
	srv := newGateway(t, body, http.StatusOK)
	g := newGatewayReader(gatewaySeries(srv.URL), time.Second)

	r, err := g.ReadSeries(context.Background(), 0)
	if err != nil {
		t.Fatalf("ReadSeries() error = %v", err)
	}
	if r.HasLux {
		t.Errorf("NaN lux accepted: %v", r.Lux)
	}
	if r.HasTemperature {
		t.Errorf("+Inf temperature accepted: %v", r.Temperature)
	}
	if !r.HasHumidity || r.Humidity != 45.5 || r.Failed {
		t.Errorf("humidity should survive: %+v", r)
	}

	// A NaN sensor_up reads as down.
	r, err = g.ReadSeries(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReadSeries() error = %v", err)
	}
	if r.HasTemperature || !r.Failed {
		t.Errorf("series with NaN sensor_up: got %+v, want failed", r)
	}
}

func TestReadAll_Order(t *testing.T) {
	srv := newGateway(t, gatewayMetrics, http.StatusOK)
	g := newGatewayReader(gatewaySeries(srv.URL), time.Second)

	got, err := ReadAll(context.Background(), g)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	want := []float64{21.10, 21.25, 20.90}
	for i, w := range want {
		if got[i].Temperature != w {
			t.Errorf("series %d temperature = %v, want %v", i+1, got[i].Temperature, w)
		}
	}
}

func TestSimulated_Deterministic(t *testing.T) {
	series := gatewaySeries("")
	a := NewSimulated(series, 0, 42)
	b := NewSimulated(series, 0, 42)
	fixed := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	a.now, b.now = fixed, fixed

	for id := 0; id < 3; id++ {
		ra, _ := a.ReadSeries(context.Background(), id)
		rb, _ := b.ReadSeries(context.Background(), id)
		if ra != rb {
			t.Fatalf("series %d: same seed gave %+v and %+v", id+1, ra, rb)
		}
		if ra.Failed || !ra.HasTemperature || !ra.HasHumidity || !ra.HasLux {
			t.Errorf("series %d: expected a full reading, got %+v", id+1, ra)
		}
		if ra.Lux <= 0 {
			t.Errorf("series %d: midday lux = %v, want > 0", id+1, ra.Lux)
		}
	}
}

func TestSimulated_AlwaysFails(t *testing.T) {
	s := NewSimulated(gatewaySeries(""), 1, 7)
	for i := 0; i < 10; i++ {
		r, err := s.ReadSeries(context.Background(), i%3)
		if err != nil {
			t.Fatal(err)
		}
		if !r.Failed {
			t.Fatalf("failure_rate 1 produced a good reading: %+v", r)
		}
	}
}

func TestNew_Type(t *testing.T) {
	if _, err := New(config.AgentConfig{Reader: config.ReaderConfig{Type: "simulated"}}); err != nil {
		t.Errorf("simulated: %v", err)
	}
	_, err := New(config.AgentConfig{Reader: config.ReaderConfig{Type: "i2c"}})
	if err == nil || !strings.Contains(err.Error(), "i2c") {
		t.Errorf("unknown type: got %v", err)
	}
}
