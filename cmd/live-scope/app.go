package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/tracklapse/tracklapse/pkg/coordinates"
	"github.com/tracklapse/tracklapse/pkg/military"
	"github.com/tracklapse/tracklapse/pkg/trackapi"
)

// updateInterval is the live snapshot poll period. The collector behind
// /live/aircraft refreshes every 5 seconds, so polling faster buys nothing.
const updateInterval = 2 * time.Second

// liveRetryConfig keeps retries inside one poll period. A blip gets a second
// chance; anything longer waits for the next tick.
var liveRetryConfig = trackapi.RetryConfig{
	MaxRetries:   2,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     time.Second,
	Multiplier:   2.0,
}

// AppConfig holds the wiring the scope needs.
type AppConfig struct {
	Client    *trackapi.Client
	Projector projector
	Military  *military.Database
	Home      coordinates.Geographic
	SiteName  string
}

// App is the live scope application: a plan view of the current traffic
// picture around the observer, fed by the track service's live endpoint.
type App struct {
	client    *trackapi.Client
	projector projector
	milDB     *military.Database
	home      coordinates.Geographic
	siteName  string

	// UI components
	tviewApp  *tview.Application
	scopeView *tview.TextView
	telemetry *tview.TextView
	controls  *tview.TextView
	logs      *tview.TextView

	// State
	aircraft      []scopeAircraft
	selectedIndex int
	zoom          float64
	militaryOnly  bool
	lastFetchErr  bool

	mu          sync.RWMutex
	updateTimer *time.Ticker
	stopChan    chan struct{}
}

// NewApp creates the scope application.
func NewApp(cfg *AppConfig) *App {
	app := &App{
		client:    cfg.Client,
		projector: cfg.Projector,
		milDB:     cfg.Military,
		home:      cfg.Home,
		siteName:  cfg.SiteName,
		zoom:      0.5,
		stopChan:  make(chan struct{}),
	}
	app.setupUI()
	return app
}

func (a *App) setupUI() {
	a.tviewApp = tview.NewApplication()

	a.scopeView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	a.scopeView.SetBorder(true).SetTitle(" Scope ")

	a.telemetry = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	a.telemetry.SetBorder(true).SetTitle(" Telemetry ")

	a.controls = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	a.controls.SetBorder(true).SetTitle(" Controls ")
	a.controls.SetText(`[yellow]NAVIGATION[-]
  [white]↑/↓, j/k[-]  Select aircraft

[yellow]DISPLAY[-]
  [white]m[-]         Military only
  [white]+/-[-]       Zoom
  [white]0[-]         Reset zoom

[yellow]CONTROL[-]
  [white]q[-]         Quit`)

	a.logs = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(100)
	a.logs.SetBorder(true).SetTitle(" Logs ")
	a.addLog("INFO", "Live scope started")

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.telemetry, 0, 4, false).
		AddItem(a.controls, 0, 3, false).
		AddItem(a.logs, 0, 3, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.scopeView, 0, 7, true).
		AddItem(sidebar, 0, 3, false)

	a.tviewApp.SetRoot(root, true)
	a.tviewApp.SetInputCapture(a.handleKeyboard)
}

func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	key := event.Key()
	r := event.Rune()

	switch {
	case key == tcell.KeyEscape || r == 'q':
		a.Stop()
		return nil

	case key == tcell.KeyUp || r == 'k':
		a.moveSelection(-1)
		return nil
	case key == tcell.KeyDown || r == 'j':
		a.moveSelection(1)
		return nil

	case r == 'm':
		a.toggleMilitaryOnly()
		return nil

	case r == '+' || r == '=':
		a.adjustZoom(1.5)
		return nil
	case r == '-':
		a.adjustZoom(1 / 1.5)
		return nil
	case r == '0':
		a.mu.Lock()
		a.zoom = 0.5
		a.mu.Unlock()
		a.redraw()
		return nil
	}

	return event
}

func (a *App) moveSelection(delta int) {
	a.mu.Lock()
	if n := len(a.aircraft); n > 0 {
		a.selectedIndex = ((a.selectedIndex+delta)%n + n) % n
	}
	a.mu.Unlock()
	a.redraw()
}

func (a *App) toggleMilitaryOnly() {
	a.mu.Lock()
	a.militaryOnly = !a.militaryOnly
	on := a.militaryOnly
	a.selectedIndex = 0
	a.mu.Unlock()

	if on {
		a.addLog("INFO", "Showing military traffic only")
	} else {
		a.addLog("INFO", "Showing all traffic")
	}
	a.redraw()
}

func (a *App) adjustZoom(factor float64) {
	a.mu.Lock()
	a.zoom *= factor
	if a.zoom > 8 {
		a.zoom = 8
	}
	if a.zoom < 0.05 {
		a.zoom = 0.05
	}
	a.mu.Unlock()
	a.redraw()
}

func (a *App) addLog(level, message string) {
	timestamp := time.Now().Format("15:04:05")
	var color string
	switch level {
	case "ERROR":
		color = "red"
	case "WARN":
		color = "yellow"
	default:
		color = "white"
	}
	fmt.Fprintf(a.logs, "[gray]%s[-] [%s]%-5s[-] %s\n", timestamp, color, level, message)
}

// Run starts the poll loop and the tview event loop.
func (a *App) Run() error {
	a.updateTimer = time.NewTicker(updateInterval)
	go a.updateLoop()
	return a.tviewApp.Run()
}

func (a *App) updateLoop() {
	a.fetchLiveData()
	for {
		select {
		case <-a.updateTimer.C:
			a.fetchLiveData()
		case <-a.stopChan:
			return
		}
	}
}

func (a *App) fetchLiveData() {
	ctx, cancel := context.WithTimeout(context.Background(), updateInterval)
	defer cancel()

	snap, err := trackapi.Retry(ctx, liveRetryConfig, func() (*trackapi.LiveSnapshot, error) {
		return a.client.Live(ctx)
	})
	if err != nil {
		a.mu.Lock()
		wasOK := !a.lastFetchErr
		a.lastFetchErr = true
		a.mu.Unlock()
		if wasOK {
			a.addLog("ERROR", fmt.Sprintf("Live fetch failed: %v", err))
		}
		return
	}

	var isMilitary func(string) bool
	if a.milDB != nil {
		isMilitary = a.milDB.IsMilitary
	}
	aircraft := buildScopeAircraft(snap, a.projector, isMilitary)

	a.mu.Lock()
	recovered := a.lastFetchErr
	a.lastFetchErr = false
	oldCount := len(a.aircraft)
	a.aircraft = aircraft
	if a.selectedIndex >= len(aircraft) {
		a.selectedIndex = 0
	}
	newCount := len(aircraft)
	a.mu.Unlock()

	if recovered {
		a.addLog("INFO", "Live feed recovered")
	}
	if oldCount != newCount {
		a.addLog("INFO", fmt.Sprintf("Aircraft count: %d", newCount))
	}
	a.redraw()
}

// visibleAircraft applies the military-only toggle. Caller holds the lock.
func (a *App) visibleAircraft() []scopeAircraft {
	if !a.militaryOnly {
		return a.aircraft
	}
	out := make([]scopeAircraft, 0, len(a.aircraft))
	for _, ac := range a.aircraft {
		if ac.Military {
			out = append(out, ac)
		}
	}
	return out
}

func (a *App) redraw() {
	a.tviewApp.QueueUpdateDraw(func() {
		a.updateScope()
		a.updateTelemetry()
	})
}

func (a *App) updateScope() {
	a.mu.RLock()
	aircraft := a.visibleAircraft()
	zoom := a.zoom
	selected := ""
	if a.selectedIndex >= 0 && a.selectedIndex < len(aircraft) {
		selected = aircraft[a.selectedIndex].ICAO
	}
	a.mu.RUnlock()

	_, _, width, height := a.scopeView.GetInnerRect()
	if width <= 0 || height <= 0 {
		width, height = 80, 30
	}
	a.scopeView.SetText(renderScope(aircraft, width, height, zoom, selected))
}

func (a *App) updateTelemetry() {
	a.mu.RLock()
	defer a.mu.RUnlock()

	aircraft := a.visibleAircraft()

	var text string
	if a.selectedIndex >= 0 && a.selectedIndex < len(aircraft) {
		ac := aircraft[a.selectedIndex]
		text += fmt.Sprintf("[yellow]AIRCRAFT:[-] [white]%s[-] [gray](%s)[-]\n", ac.label(), ac.ICAO)
		if ac.OnGround {
			text += "[gray]Alt:[-]  [white]ground[-]"
		} else {
			text += fmt.Sprintf("[gray]Alt:[-]  [white]%.0f ft[-]", ac.AltitudeFeet)
		}
		text += fmt.Sprintf("  [gray]Spd:[-] [white]%.0f kts[-]\n", ac.SpeedKnots)
		text += fmt.Sprintf("[gray]Hdg:[-]  [white]%.0f°[-]   [gray]Age:[-] [white]%.1fs[-]\n", ac.Heading, ac.AgeSeconds)
		text += fmt.Sprintf("[gray]Pos:[-]  [white]%.4f°, %.4f°[-]\n", ac.Lat, ac.Lon)
		acGeo := coordinates.Geographic{Latitude: ac.Lat, Longitude: ac.Lon}
		text += fmt.Sprintf("[gray]Rng:[-]  [white]%.1f NM[-]  [gray]Brg:[-] [white]%.0f°[-]\n",
			coordinates.DistanceNauticalMiles(a.home, acGeo),
			coordinates.Bearing(a.home, acGeo))
		if ac.Military {
			text += "[red]MILITARY[-]\n"
		}
	} else {
		text += "[gray]No aircraft selected[-]\n"
	}

	text += "\n"
	text += fmt.Sprintf("[yellow]SITE:[-] [white]%s[-]\n", a.siteName)
	text += fmt.Sprintf("[gray]Time:[-] [white]%s[-]\n", time.Now().Format("15:04:05"))
	text += fmt.Sprintf("[gray]Aircraft:[-] [white]%d visible[-]\n", len(aircraft))
	text += fmt.Sprintf("[gray]Zoom:[-] [white]%.2fx[-]", a.zoom)
	if a.militaryOnly {
		text += "  [red]military only[-]"
	}
	text += "\n"
	if a.milDB != nil {
		text += fmt.Sprintf("[gray]Mil DB:[-] [white]%d aircraft[-]\n", a.milDB.Size())
	}

	a.telemetry.SetText(text)
}

// Stop shuts down the poll loop and the UI.
func (a *App) Stop() {
	if a.updateTimer != nil {
		a.updateTimer.Stop()
	}
	close(a.stopChan)
	a.tviewApp.Stop()
}
