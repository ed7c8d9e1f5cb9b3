// board-monitor is a terminal preview of the skyboard display: it polls
// the daemon's status API and renders the last notification as a
// split-flap board, alongside the session counters.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/acollins/skyboard/pkg/board"
	"github.com/acollins/skyboard/pkg/detector"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	statStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// status mirrors the daemon's /api/status payload.
type status struct {
	Stats          detector.Snapshot   `json:"stats"`
	TrackedCount   int                 `json:"tracked_count"`
	CachedRecords  int                 `json:"cached_records"`
	LastNotified   *detector.Detection `json:"last_notified"`
	CurrentInFence int                 `json:"current_in_fence"`
}

// boardLines mirrors the daemon's /api/board payload.
type boardLines struct {
	Lines []string `json:"lines"`
}

type model struct {
	apiURL   string
	interval time.Duration
	client   *http.Client

	status *status
	frame  board.Frame
	err    error
}

type tickMsg time.Time

type refreshMsg struct {
	status status
	lines  []string
	err    error
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh fetches both API endpoints off the UI goroutine.
func (m model) refresh() tea.Cmd {
	return func() tea.Msg {
		var msg refreshMsg

		resp, err := m.client.Get(m.apiURL + "/api/status")
		if err != nil {
			msg.err = err
			return msg
		}
		err = json.NewDecoder(resp.Body).Decode(&msg.status)
		resp.Body.Close()
		if err != nil {
			msg.err = err
			return msg
		}

		resp, err = m.client.Get(m.apiURL + "/api/board")
		if err != nil {
			msg.err = err
			return msg
		}
		var lines boardLines
		err = json.NewDecoder(resp.Body).Decode(&lines)
		resp.Body.Close()
		if err != nil {
			msg.err = err
			return msg
		}
		msg.lines = lines.Lines
		return msg
	}
}

func (m model) Init() tea.Cmd {
	return m.refresh()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}

	case tickMsg:
		return m, m.refresh()

	case refreshMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, m.tick()
		}
		m.err = nil
		s := msg.status
		m.status = &s
		m.frame = board.Encode(strings.Join(msg.lines, "\n"))
		return m, m.tick()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("skyboard monitor"))
	b.WriteString("\n\n")
	b.WriteString(board.RenderFrame(m.frame))
	b.WriteString("\n")

	if m.status != nil {
		s := m.status
		b.WriteString(statStyle.Render(fmt.Sprintf(
			"checks %d   detected %d   in fence %d   errors %d   cached %d",
			s.Stats.Checks, s.Stats.TotalDetected, s.CurrentInFence,
			s.Stats.Errors, s.CachedRecords,
		)))
		b.WriteString("\n")
		if s.LastNotified != nil {
			b.WriteString(statStyle.Render(fmt.Sprintf(
				"last: %s %s at %.0f ft, %.1f km out",
				strings.TrimSpace(s.LastNotified.State.Callsign),
				s.LastNotified.Meta.Registration,
				s.LastNotified.State.AltitudeFt,
				s.LastNotified.DistanceKm,
			)))
			b.WriteString("\n")
		}
	}
	if m.err != nil {
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("r refresh   q quit"))
	b.WriteString("\n")
	return b.String()
}

func main() {
	apiURL := flag.String("api", "http://localhost:8039", "Base URL of the skyboard status API")
	interval := flag.Duration("interval", 2*time.Second, "Refresh interval")
	flag.Parse()

	m := model{
		apiURL:   strings.TrimRight(*apiURL, "/"),
		interval: *interval,
		client:   &http.Client{Timeout: 5 * time.Second},
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "board-monitor: %v\n", err)
		os.Exit(1)
	}
}
