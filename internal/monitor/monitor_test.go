package monitor

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/fusionwatch/fusionwatch/internal/api"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
	"github.com/fusionwatch/fusionwatch/internal/store"
	"github.com/fusionwatch/fusionwatch/internal/ws"
)

func snapshot(cycle uint64, temp float64, active ...string) streamMsg {
	return streamMsg(ws.Message{
		Event: "cycle",
		Data: api.SnapshotResponse{
			Latest: &api.CycleResponse{
				Cycle:       cycle,
				Temperature: api.QuantityResponse{Low: temp - 0.1, High: temp + 0.1, Median: temp, Precision: 0.1, Agreement: 3, Path: "consensus"},
				Humidity:    api.QuantityResponse{Median: 45, Agreement: 3, Path: "consensus"},
				Lux:         api.QuantityResponse{Median: 120, Agreement: 2, Path: "degraded"},
				Active:      active,
			},
			Series: []api.SeriesResponse{
				{Series: 1}, {Series: 2}, {Series: 3, Down: true, ConsecutiveFailures: 4, Stuck: true},
			},
		},
	})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return mm, cmd
}

func TestRing_Wraps(t *testing.T) {
	r := newRing(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		r.push(v)
	}
	got := r.values()
	if len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Errorf("values: got %v, want [3 4 5]", got)
	}
}

func TestSparkline_Width(t *testing.T) {
	for _, n := range []int{0, 3, 30} {
		values := make([]float64, n)
		for i := range values {
			values[i] = float64(i)
		}
		s := sparkline(values, 10)
		if got := lipgloss.Width(s); got != 10 {
			t.Errorf("n=%d: width %d, want 10 (%q)", n, got, s)
		}
	}
}

func TestUpdate_StreamRecordsEachCycleOnce(t *testing.T) {
	m := New("ws://example/ws/stream")

	m, _ = update(t, m, snapshot(1, 21.0))
	m, _ = update(t, m, snapshot(1, 21.0)) // periodic re-broadcast
	m, _ = update(t, m, snapshot(2, 21.3))

	got := m.history["temperature"].values()
	if len(got) != 2 || got[1] != 21.3 {
		t.Errorf("temperature history: got %v", got)
	}
	if m.latest.Cycle != 2 {
		t.Errorf("latest cycle: got %d", m.latest.Cycle)
	}
}

func TestUpdate_PauseFreezesView(t *testing.T) {
	m := New("ws://example/ws/stream")
	m, _ = update(t, m, snapshot(1, 21.0))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m, _ = update(t, m, snapshot(2, 22.0))

	if m.latest.Cycle != 1 {
		t.Errorf("paused: latest cycle got %d, want 1", m.latest.Cycle)
	}
}

func TestUpdate_QuitKey(t *testing.T) {
	_, cmd := update(t, New("ws://x"), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q: want a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q: want tea.Quit")
	}
}

func TestUpdate_ErrorSchedulesRetry(t *testing.T) {
	m, cmd := update(t, New("ws://x"), errMsg{errors.New("refused")})
	if m.err == nil || cmd == nil {
		t.Fatalf("err=%v cmd=%v", m.err, cmd)
	}
}

func TestView(t *testing.T) {
	m := New("ws://example/ws/stream")
	if got := m.View(); !strings.Contains(got, "Initializing") {
		t.Errorf("before size: got %q", got)
	}

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	if got := m.View(); !strings.Contains(got, "Waiting for the first cycle") {
		t.Error("empty view: missing waiting text")
	}

	m, _ = update(t, m, snapshot(7, 21.25, "series3_down", "series3_down_3"))
	view := m.View()
	for _, want := range []string{"FUSIONWATCH", "cycle 7", "21.25", "degraded", "DOWN x4", "series3_down_3"} {
		if !strings.Contains(view, want) {
			t.Errorf("view: missing %q", want)
		}
	}
}

func TestConnectAndListen(t *testing.T) {
	st := store.New(4, time.Hour)
	res := &fusion.Result{Cycle: 9, Timestamp: time.Now()}
	res.Temperature.Median = 20.5
	st.Put(res)

	hub := ws.New(st, time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	m := New("ws" + strings.TrimPrefix(srv.URL, "http"))
	msg := m.connect()
	connected, ok := msg.(connectedMsg)
	if !ok {
		t.Fatalf("connect: got %T (%v)", msg, msg)
	}
	defer connected.conn.Close()
	connected.conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck

	m, cmd := update(t, m, connected)
	got, ok := cmd().(streamMsg)
	if !ok {
		t.Fatal("listen: want a stream message")
	}
	m, _ = update(t, m, got)
	if m.latest == nil || m.latest.Cycle != 9 || m.latest.Temperature.Median != 20.5 {
		t.Errorf("latest: got %+v", m.latest)
	}
}

func TestConnect_Failure(t *testing.T) {
	m := New("ws://127.0.0.1:1/ws/stream")
	m.dial = func(string) (*websocket.Conn, error) { return nil, errors.New("refused") }
	if _, ok := m.connect().(errMsg); !ok {
		t.Error("connect: want errMsg")
	}
}
