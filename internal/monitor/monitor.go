// Package monitor implements the live terminal view of a running agent. It
// follows the agent's WebSocket stream and renders the fused readings with
// sparklines, the per-series health and the raised alert lines.
package monitor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/fusionwatch/fusionwatch/internal/api"
	"github.com/fusionwatch/fusionwatch/internal/ws"
)

const (
	historySize = 240
	retryDelay  = 2 * time.Second
)

// ── Messages ─────────────────────────────────────────────────────────

type streamMsg ws.Message

type connectedMsg struct{ conn *websocket.Conn }

type retryMsg struct{}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the live monitor.
type Model struct {
	url  string
	dial func(url string) (*websocket.Conn, error)
	conn *websocket.Conn

	latest    *api.CycleResponse
	series    []api.SeriesResponse
	history   map[string]*ring
	err       error
	width     int
	height    int
	paused    bool
	startTime time.Time
	lastMsg   time.Time
}

// New creates the initial model following the stream at url.
func New(url string) Model {
	return Model{
		url:       url,
		dial:      dialStream,
		history:   newHistory(),
		startTime: time.Now(),
	}
}

// Run launches the monitor TUI and blocks until the user quits.
func Run(url string) error {
	p := tea.NewProgram(New(url), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func newHistory() map[string]*ring {
	return map[string]*ring{
		"temperature": newRing(historySize),
		"humidity":    newRing(historySize),
		"lux":         newRing(historySize),
	}
}

// ── Commands ─────────────────────────────────────────────────────────

func dialStream(url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

func (m Model) connect() tea.Msg {
	conn, err := m.dial(m.url)
	if err != nil {
		return errMsg{fmt.Errorf("connect %s: %w", m.url, err)}
	}
	return connectedMsg{conn: conn}
}

func listen(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return errMsg{fmt.Errorf("stream: %w", err)}
		}
		var msg ws.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return errMsg{fmt.Errorf("decode: %w", err)}
		}
		return streamMsg(msg)
	}
}

func retry() tea.Cmd {
	return tea.Tick(retryDelay, func(time.Time) tea.Msg { return retryMsg{} })
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return m.connect
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.conn != nil {
				m.conn.Close()
			}
			return m, tea.Quit
		case " ", "p":
			m.paused = !m.paused
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case connectedMsg:
		m.conn = msg.conn
		m.err = nil
		return m, listen(m.conn)

	case streamMsg:
		m.lastMsg = time.Now()
		if !m.paused {
			m.apply(msg.Data)
		}
		if m.conn == nil {
			return m, nil
		}
		return m, listen(m.conn)

	case retryMsg:
		return m, m.connect

	case errMsg:
		m.err = msg.err
		if m.conn != nil {
			m.conn.Close()
			m.conn = nil
		}
		return m, retry()
	}

	return m, nil
}

// apply records a snapshot. A cycle already seen (periodic re-broadcast) is
// not added to the sparklines again.
func (m *Model) apply(snap api.SnapshotResponse) {
	m.series = snap.Series
	if snap.Latest == nil {
		return
	}
	if m.latest != nil && m.latest.Cycle == snap.Latest.Cycle {
		return
	}
	m.latest = snap.Latest
	m.history["temperature"].push(snap.Latest.Temperature.Median)
	m.history["humidity"].push(snap.Latest.Humidity.Median)
	m.history["lux"].push(snap.Latest.Lux.Median)
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorOk       = lipgloss.Color("78")
	colorWarn     = lipgloss.Color("220")
	colorCrit     = lipgloss.Color("196")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := m.width - 2
	if contentWidth < 60 {
		contentWidth = 60
	}

	sections := []string{m.renderTitleBar(contentWidth)}

	if m.err != nil {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Width(contentWidth).
			Padding(0, 1).
			Render(fmt.Sprintf(" ERROR: %v (retrying)", m.err)))
	}

	if m.latest == nil {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("Waiting for the first cycle..."))
	} else {
		sections = append(sections,
			m.renderQuantities(contentWidth),
			m.renderSeries(contentWidth),
			m.renderAlerts(contentWidth),
		)
	}

	sections = append(sections, m.renderFooter(contentWidth))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("FUSIONWATCH")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	parts := []string{dimS.Render("up " + fmtDuration(time.Since(m.startTime)))}
	if m.latest != nil {
		parts = append(parts, dimS.Render(fmt.Sprintf("cycle %d", m.latest.Cycle)))
	}
	if m.paused {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorCrit).Bold(true).Render("PAUSED"))
	}
	right := strings.Join(parts, dimS.Render(" │ "))

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m Model) renderQuantities(width int) string {
	chartWidth := width - 70
	if chartWidth < 10 {
		chartWidth = 10
	}

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	labelS := lipgloss.NewStyle().Foreground(colorLabel).Width(12)

	rows := []string{
		m.quantityRow("temperature", "°C", m.latest.Temperature, labelS, dimS, chartWidth),
		m.quantityRow("humidity", "%RH", m.latest.Humidity, labelS, dimS, chartWidth),
		m.quantityRow("lux", "lx", m.latest.Lux, labelS, dimS, chartWidth),
		labelS.Render("lux-hours") + " " + fmt.Sprintf("%9.1f", m.latest.LuxHours),
	}
	return panel(width, rows)
}

func (m Model) quantityRow(name, unit string, q api.QuantityResponse, labelS, dimS lipgloss.Style, chartWidth int) string {
	color := colorOk
	switch q.Path {
	case "degraded":
		color = colorWarn
	case "none":
		color = colorCrit
	}
	value := lipgloss.NewStyle().Foreground(color).Width(10).Align(lipgloss.Right).
		Render(fmt.Sprintf("%.2f", q.Median))
	detail := dimS.Render(fmt.Sprintf(" %-4s ±%.2f [%.2f, %.2f] n=%d %-9s ",
		unit, q.Precision, q.Low, q.High, q.Agreement, q.Path))
	return labelS.Render(name) + " " + value + detail + sparkline(m.history[name].values(), chartWidth)
}

func (m Model) renderSeries(width int) string {
	var cells []string
	for _, s := range m.series {
		state, color := "OK", colorOk
		switch {
		case s.Down:
			state, color = fmt.Sprintf("DOWN x%d", s.ConsecutiveFailures), colorCrit
		case s.Stuck:
			state, color = "RECOVERED", colorWarn
		}
		cells = append(cells, lipgloss.NewStyle().Foreground(colorLabel).Render(fmt.Sprintf("series %d ", s.Series))+
			lipgloss.NewStyle().Foreground(color).Bold(s.Down).Render(state))
	}
	return panel(width, []string{strings.Join(cells, "   ")})
}

func (m Model) renderAlerts(width int) string {
	if len(m.latest.Active) == 0 {
		return panel(width, []string{lipgloss.NewStyle().Foreground(colorOk).Render("no alert lines raised")})
	}
	var tags []string
	for _, name := range m.latest.Active {
		color := colorWarn
		if strings.Contains(name, "hard") || strings.HasSuffix(name, "_3") {
			color = colorCrit
		}
		tags = append(tags, lipgloss.NewStyle().Foreground(color).Bold(true).Render(name))
	}
	return panel(width, []string{strings.Join(tags, "  ")})
}

func (m Model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)
	keys := dimS.Render("q") + keyS.Render(":quit") + dimS.Render("  p") + keyS.Render(":pause")

	status := dimS.Render(m.url)
	if !m.lastMsg.IsZero() {
		status += dimS.Render("  last update " + m.lastMsg.Format("15:04:05"))
	}

	gap := width - lipgloss.Width(status) - lipgloss.Width(keys) - 4
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(status + strings.Repeat(" ", gap) + keys)
}

func panel(width int, rows []string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
