// Command mount-dashboard is a bubbletea TUI that polls the mount
// daemon's admin API and renders a live sky view: the telescope
// crosshair, current mode, fused RaDec, and the alignment point
// count.
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

	"github.com/skywatch/altaz-mount/internal/skymath"
)

// skyWidth/skyHeight size the AltAz crosshair viewport.
const (
	skyWidth  = 80
	skyHeight = 24
)

type status struct {
	Mode  string `json:"mode"`
	RaDec struct {
		RightAscensionDeg float64 `json:"rightAscensionDeg"`
		DeclinationDeg    float64 `json:"declinationDeg"`
	} `json:"raDec"`
	Observer struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"observer"`
}

type alignmentSummary struct {
	Count int `json:"count"`
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *client) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type model struct {
	c              *client
	status         status
	alignmentCount int
	err            error
	zoom           float64
	lastUpdate     time.Time
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "+", "=":
			if m.zoom < 4.0 {
				m.zoom *= 1.5
			}
		case "-", "_":
			if m.zoom > 0.5 {
				m.zoom /= 1.5
			}
		case "0":
			m.zoom = 1.0
		}
	case tickMsg:
		m.refresh()
		return m, tick()
	}
	return m, nil
}

func (m *model) refresh() {
	var s status
	if err := m.c.get("/api/v1/status", &s); err != nil {
		m.err = err
		return
	}
	m.status = s

	var a alignmentSummary
	if err := m.c.get("/api/v1/alignment/points", &a); err == nil {
		m.alignmentCount = a.Count
	}

	m.err = nil
	m.lastUpdate = time.Now()
}

func (m model) View() string {
	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	s.WriteString(titleStyle.Render("ALT/AZ MOUNT DASHBOARD"))
	s.WriteString("\n\n")

	if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		s.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	sky := m.renderSky()
	info := m.renderInfo()

	skyLines := strings.Split(sky, "\n")
	infoLines := strings.Split(info, "\n")
	maxLines := len(skyLines)
	if len(infoLines) > maxLines {
		maxLines = len(infoLines)
	}
	for i := 0; i < maxLines; i++ {
		if i < len(skyLines) {
			s.WriteString(skyLines[i])
		} else {
			s.WriteString(strings.Repeat(" ", skyWidth))
		}
		s.WriteString("  ")
		if i < len(infoLines) {
			s.WriteString(infoLines[i])
		}
		s.WriteString("\n")
	}

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	s.WriteString(helpStyle.Render("+/-: Zoom  0: Reset  Q: Quit"))
	s.WriteString("\n")

	return s.String()
}

func (m model) renderSky() string {
	var sky strings.Builder
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	sky.WriteString(borderStyle.Render("┌" + strings.Repeat("─", skyWidth-2) + "┐"))
	sky.WriteString("\n")

	grid := make([][]rune, skyHeight)
	for i := range grid {
		grid[i] = make([]rune, skyWidth-2)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	horizonY := int(float64(skyHeight) * 0.95)
	for x := range grid[horizonY] {
		grid[horizonY][x] = '·'
	}
	grid[skyHeight-1][0] = 'N'
	grid[skyHeight-1][(skyWidth-2)/4] = 'E'
	grid[skyHeight-1][(skyWidth-2)/2] = 'S'
	grid[skyHeight-1][3*(skyWidth-2)/4] = 'W'

	observer := skymath.Observer{Location: skymath.Geographic{Latitude: m.status.Observer.Latitude, Longitude: m.status.Observer.Longitude}}
	raDec := skymath.EquatorialCoordinates{RightAscension: m.status.RaDec.RightAscensionDeg / 15, Declination: m.status.RaDec.DeclinationDeg}
	altAz := skymath.EquatorialToHorizontal(raDec, observer, time.Now())
	x, y := m.altAzToScreen(altAz.Altitude, altAz.Azimuth)
	if x >= 0 && x < skyWidth-2 && y >= 0 && y < skyHeight {
		grid[y][x] = '+'
	}

	for y := 0; y < skyHeight; y++ {
		sky.WriteString(borderStyle.Render("│"))
		for x := 0; x < skyWidth-2; x++ {
			ch := grid[y][x]
			switch ch {
			case '+':
				sky.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true).Render(string(ch)))
			case 'N', 'E', 'S', 'W':
				sky.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(string(ch)))
			case '·':
				sky.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(string(ch)))
			default:
				sky.WriteRune(ch)
			}
		}
		sky.WriteString(borderStyle.Render("│"))
		sky.WriteString("\n")
	}
	sky.WriteString(borderStyle.Render("└" + strings.Repeat("─", skyWidth-2) + "┘"))

	return sky.String()
}

func (m model) altAzToScreen(altitude, azimuth float64) (int, int) {
	for azimuth < 0 {
		azimuth += 360
	}
	for azimuth >= 360 {
		azimuth -= 360
	}
	x := int((azimuth / 360.0) * float64(skyWidth-2))

	altRange := 90.0 / m.zoom
	y := skyHeight - 1 - int((altitude/altRange)*float64(skyHeight-1))
	return x, y
}

func (m model) renderInfo() string {
	var info strings.Builder
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

	info.WriteString(headerStyle.Render("Status"))
	info.WriteString("\n\n")
	info.WriteString(fmt.Sprintf("Mode:       %s\n", m.status.Mode))
	info.WriteString(fmt.Sprintf("RA:         %.3f°\n", m.status.RaDec.RightAscensionDeg))
	info.WriteString(fmt.Sprintf("Dec:        %.3f°\n", m.status.RaDec.DeclinationDeg))
	info.WriteString(fmt.Sprintf("Observer:   %.3f°N %.3f°E\n", m.status.Observer.Latitude, m.status.Observer.Longitude))
	info.WriteString(fmt.Sprintf("Alignment:  %d points\n", m.alignmentCount))
	info.WriteString(fmt.Sprintf("Zoom:       %.1fx\n", m.zoom))
	if !m.lastUpdate.IsZero() {
		info.WriteString(fmt.Sprintf("Updated:    %s\n", m.lastUpdate.Format("15:04:05")))
	}

	return info.String()
}

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8081", "mount daemon admin API base URL")
	token := flag.String("token", os.Getenv("MOUNTD_TOKEN"), "bearer token for the admin API")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "mount-dashboard: -token or MOUNTD_TOKEN is required")
		os.Exit(1)
	}

	c := &client{baseURL: *addr, token: *token, http: &http.Client{Timeout: 5 * time.Second}}

	m := model{c: c, zoom: 1.0}
	m.refresh()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
