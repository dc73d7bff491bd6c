// Command mount-console is a tview/tcell manual jog console: arrow
// keys nudge the mount N/E/S/W, space stops, and number keys select
// the slew rate. Those commands go to the mount daemon's LX200 TCP
// port; telemetry is polled from its admin API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// App wires the tview layout to the admin API client and owns the
// periodic telemetry refresh.
type App struct {
	tviewApp  *tview.Application
	telemetry *tview.TextView
	controls  *tview.TextView
	log       *tview.TextView
	root      *tview.Flex

	client *adminClient

	mu     sync.RWMutex
	status status
}

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

// adminClient talks to the mount daemon's authenticated JSON admin API.
type adminClient struct {
	baseURL   string
	token     string
	http      *http.Client
	lx200Addr string
}

func (c *adminClient) getStatus() (status, error) {
	var s status
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/v1/status", nil)
	if err != nil {
		return s, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return s, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return s, fmt.Errorf("status %d", resp.StatusCode)
	}
	return s, json.NewDecoder(resp.Body).Decode(&s)
}

// nudge issues a direction jog over the LX200 TCP socket. The admin
// API itself exposes only read/audit endpoints (see
// internal/httpapi), so direction commands go over the LX200 TCP
// socket the same way any other client would issue them; this helper
// speaks that wire protocol directly rather than duplicating it behind
// HTTP.
func (c *adminClient) nudge(verb string) error {
	return sendLX200(c.lx200Addr, ":"+verb+"#")
}

func (c *adminClient) stop() error {
	return sendLX200(c.lx200Addr, ":Q#")
}

func (c *adminClient) setRate(verb string) error {
	return sendLX200(c.lx200Addr, ":"+verb+"#")
}

func sendLX200(addr, line string) error {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write([]byte(line))
	return err
}

func NewApp(client *adminClient) *App {
	a := &App{client: client}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.tviewApp = tview.NewApplication()

	a.telemetry = tview.NewTextView().SetDynamicColors(true)
	a.telemetry.SetBorder(true).SetTitle(" Telemetry ")

	a.controls = tview.NewTextView().SetDynamicColors(true)
	a.controls.SetBorder(true).SetTitle(" Controls ")
	a.controls.SetText(`[yellow]JOG[-]
  [white]↑/k[-]  North
  [white]↓/j[-]  South
  [white]←/h[-]  West
  [white]→/l[-]  East
  [white]SPACE[-] Stop

[yellow]RATE[-]
  [white]1[-]   Centering
  [white]2[-]   Guiding
  [white]3[-]   Find
  [white]4[-]   High

[yellow]CONTROL[-]
  [white]q[-]   Quit`)

	a.log = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	a.log.SetBorder(true).SetTitle(" Log ")

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.controls, 0, 4, false).
		AddItem(a.log, 0, 6, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.telemetry, 0, 7, true).
		AddItem(sidebar, 0, 3, false)

	a.tviewApp.SetRoot(a.root, true)
	a.tviewApp.SetInputCapture(a.handleKeyboard)
}

func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	key := event.Key()
	r := event.Rune()

	switch {
	case key == tcell.KeyEscape || r == 'q' || r == 'Q' || key == tcell.KeyCtrlC:
		a.tviewApp.Stop()
		return nil
	case key == tcell.KeyUp || r == 'k':
		a.issue(a.client.nudge("Mn"))
		return nil
	case key == tcell.KeyDown || r == 'j':
		a.issue(a.client.nudge("Ms"))
		return nil
	case key == tcell.KeyLeft || r == 'h':
		a.issue(a.client.nudge("Mw"))
		return nil
	case key == tcell.KeyRight || r == 'l':
		a.issue(a.client.nudge("Me"))
		return nil
	case r == ' ':
		a.issue(a.client.stop())
		return nil
	case r == '1':
		a.issue(a.client.setRate("RC"))
		return nil
	case r == '2':
		a.issue(a.client.setRate("RG"))
		return nil
	case r == '3':
		a.issue(a.client.setRate("RM"))
		return nil
	case r == '4':
		a.issue(a.client.setRate("RS"))
		return nil
	}
	return event
}

func (a *App) issue(err error) {
	ts := time.Now().Format("15:04:05")
	if err != nil {
		fmt.Fprintf(a.log, "[red]%s command failed: %v[-]\n", ts, err)
		return
	}
	fmt.Fprintf(a.log, "[green]%s command sent[-]\n", ts)
}

func (a *App) pollTelemetry() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		s, err := a.client.getStatus()
		if err != nil {
			a.tviewApp.QueueUpdateDraw(func() {
				fmt.Fprintf(a.telemetry, "[red]status error: %v[-]\n", err)
			})
			continue
		}
		a.mu.Lock()
		a.status = s
		a.mu.Unlock()
		a.tviewApp.QueueUpdateDraw(a.renderTelemetry)
	}
}

func (a *App) renderTelemetry() {
	a.mu.RLock()
	defer a.mu.RUnlock()

	a.telemetry.Clear()
	fmt.Fprintf(a.telemetry, "[yellow]MODE:[-]      [white]%s[-]\n", a.status.Mode)
	fmt.Fprintf(a.telemetry, "[yellow]RA:[-]        [white]%.3f°[-]\n", a.status.RaDec.RightAscensionDeg)
	fmt.Fprintf(a.telemetry, "[yellow]DEC:[-]       [white]%.3f°[-]\n", a.status.RaDec.DeclinationDeg)
	fmt.Fprintf(a.telemetry, "[yellow]OBSERVER:[-]  [white]%.3f°N %.3f°E[-]\n", a.status.Observer.Latitude, a.status.Observer.Longitude)
	fmt.Fprintf(a.telemetry, "[yellow]UPDATED:[-]   [white]%s[-]\n", time.Now().Format("15:04:05"))
}

func (a *App) Run() error {
	go a.pollTelemetry()
	return a.tviewApp.Run()
}

func main() {
	adminAddr := flag.String("admin-addr", "http://127.0.0.1:8081", "mount daemon admin API base URL")
	lx200Addr := flag.String("lx200-addr", "127.0.0.1:11880", "mount daemon LX200 TCP address")
	token := flag.String("token", os.Getenv("MOUNTD_TOKEN"), "bearer token for the admin API")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "mount-console: -token or MOUNTD_TOKEN is required")
		os.Exit(1)
	}

	client := &adminClient{
		baseURL:   *adminAddr,
		token:     *token,
		http:      &http.Client{Timeout: 5 * time.Second},
		lx200Addr: *lx200Addr,
	}

	app := NewApp(client)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
