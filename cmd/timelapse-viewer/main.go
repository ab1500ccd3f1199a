package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tracklapse/tracklapse/internal/playback"
	"github.com/tracklapse/tracklapse/internal/scene"
	"github.com/tracklapse/tracklapse/internal/session"
	"github.com/tracklapse/tracklapse/internal/store"
	"github.com/tracklapse/tracklapse/pkg/config"
	"github.com/tracklapse/tracklapse/pkg/coordinates"
	"github.com/tracklapse/tracklapse/pkg/military"
	"github.com/tracklapse/tracklapse/pkg/track"
	"github.com/tracklapse/tracklapse/pkg/trackapi"
)

// frameInterval drives playback. 100ms keeps motion smooth without
// saturating the terminal.
const frameInterval = 100 * time.Millisecond

// Speed multiplier bounds for the +/- controls.
const (
	minSpeed = 0.25
	maxSpeed = 512
)

// basePan is the pan distance in screen cells; panStep divides by the
// zoom (cells per scene unit) so each keypress moves the viewport a
// constant distance on screen regardless of zoom level.
const basePan = 10.0

func panStep(zoom float64) float64 {
	return basePan / zoom
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// loadResultMsg reports an asynchronous historical load.
type loadResultMsg struct {
	err error
}

// militaryLoadedMsg reports the background military database fetch.
type militaryLoadedMsg struct {
	size int
	err  error
}

type model struct {
	cfg    *config.Config
	sess   *session.Session
	canvas *canvas
	milDB  *military.Database

	// query parameters for the next load
	windowHours int
	resolution  string
	maxTracks   int

	width  int
	height int

	// viewport pan/zoom
	centerX float64
	centerZ float64
	zoom    float64

	lastTick  time.Time
	statusMsg string
	loadErr   error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), m.loadMilitaryCmd(), m.loadCmd())
}

// loadCmd fetches the configured window into the session off the Update
// loop. The session's busy flag serializes overlapping requests.
func (m model) loadCmd() tea.Cmd {
	sess := m.sess
	end := time.Now().UTC()
	start := end.Add(-time.Duration(m.windowHours) * time.Hour)
	q := trackapi.BulkQuery{
		Start:      start,
		End:        end,
		Resolution: m.resolution,
		MaxTracks:  m.maxTracks,
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		return loadResultMsg{err: sess.LoadHistorical(ctx, q)}
	}
}

func (m model) loadMilitaryCmd() tea.Cmd {
	db := m.milDB
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		err := db.Load(ctx)
		return militaryLoadedMsg{size: db.Size(), err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		now := time.Time(msg)
		if !m.lastTick.IsZero() {
			m.sess.Tick(now.Sub(m.lastTick).Seconds())
		}
		m.lastTick = now
		return m, tick()

	case loadResultMsg:
		m.loadErr = msg.err
		if msg.err == nil {
			m.statusMsg = fmt.Sprintf("loaded %d tracks", m.sess.Store().Len())
		} else {
			m.statusMsg = fmt.Sprintf("load failed: %v", msg.err)
		}
		return m, nil

	case militaryLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("military db unavailable: %v", msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("military db loaded (%d aircraft)", msg.size)
		}
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	clock := m.sess.Clock()

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case " ", "space":
		if clock != nil {
			if clock.Playing() {
				clock.Pause()
				m.statusMsg = "paused"
			} else {
				clock.Play()
				m.statusMsg = "playing"
			}
		}

	case "r":
		if clock != nil {
			clock.Restart()
			clock.Play()
			m.statusMsg = "restarted"
		}

	case "left":
		if clock != nil {
			clock.Skip(-skipStep(clock.Duration()))
		}
	case "right":
		if clock != nil {
			clock.Skip(skipStep(clock.Duration()))
		}

	case "+", "=":
		if clock != nil {
			clock.SetSpeed(clampSpeed(clock.Speed() * 2))
			m.statusMsg = fmt.Sprintf("speed x%g", clock.Speed())
		}
	case "-", "_":
		if clock != nil {
			clock.SetSpeed(clampSpeed(clock.Speed() / 2))
			m.statusMsg = fmt.Sprintf("speed x%g", clock.Speed())
		}

	case "f":
		if clock != nil {
			next := toggleFade(clock.FadeSetting(), m.cfg.Viewer.FadeAfterSeconds)
			clock.SetFade(next)
			m.statusMsg = "fade: " + next.String()
		}

	case "h":
		enabled := !m.sess.HeatmapEnabled()
		if err := m.sess.SetHeatmapEnabled(enabled); err != nil {
			m.statusMsg = fmt.Sprintf("heatmap: %v", err)
		} else if enabled {
			m.statusMsg = "heatmap on"
		} else {
			m.statusMsg = "heatmap off"
		}

	case "m":
		c := m.sess.Criteria()
		c.MilitaryOnly = !c.MilitaryOnly
		m.sess.SetCriteria(c)
		if c.MilitaryOnly {
			m.statusMsg = "military only"
		} else {
			m.statusMsg = "all traffic"
		}

	case "l":
		m.statusMsg = fmt.Sprintf("loading last %dh...", m.windowHours)
		return m, m.loadCmd()

	case "c":
		m.sess.ClearHistorical()
		m.statusMsg = "cleared"

	case "1", "2", "3":
		hours := map[string]int{"1": 1, "2": 6, "3": 24}[msg.String()]
		m.windowHours = hours
		m.statusMsg = fmt.Sprintf("loading last %dh...", hours)
		return m, m.loadCmd()

	// pan and zoom
	case "w":
		m.centerZ -= panStep(m.zoom)
	case "s":
		m.centerZ += panStep(m.zoom)
	case "a":
		m.centerX -= panStep(m.zoom)
	case "d":
		m.centerX += panStep(m.zoom)
	case "]":
		if m.zoom < 32 {
			m.zoom *= 1.5
		}
	case "[":
		if m.zoom > 0.05 {
			m.zoom /= 1.5
		}
	case "0":
		m.zoom = 1.0
		m.centerX, m.centerZ = 0, 0
	}

	return m, nil
}

// skipStep is the seek increment for the arrow keys: a twentieth of the
// playback window, at least one historical minute.
func skipStep(duration float64) float64 {
	step := duration / 20
	if step < 60 {
		step = 60
	}
	return step
}

func clampSpeed(s float64) float64 {
	if s < minSpeed {
		return minSpeed
	}
	if s > maxSpeed {
		return maxSpeed
	}
	return s
}

// toggleFade flips between accumulate-forever and the configured fade
// window. A non-positive configured window falls back to 30 seconds so the
// toggle always does something visible.
func toggleFade(current playback.Fade, configuredSeconds int) playback.Fade {
	if !current.Never {
		return playback.FadeNever()
	}
	if configuredSeconds <= 0 {
		configuredSeconds = 30
	}
	return playback.FadeAfter(configuredSeconds)
}

// playbackLine formats the status bar's playback segment.
func playbackLine(clock *playback.Clock) string {
	if clock == nil {
		return "no data loaded"
	}
	state := "paused"
	if clock.Playing() {
		state = "playing"
	}
	at := time.UnixMilli(clock.CurrentTimestampMs()).UTC()
	return fmt.Sprintf("%s  %s  x%g  %s/%s",
		state,
		at.Format("2006-01-02 15:04:05"),
		clock.Speed(),
		formatSeconds(clock.Current()),
		formatSeconds(clock.Duration()))
}

func formatSeconds(s float64) string {
	d := time.Duration(s) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	return fmt.Sprintf("%dm%02ds", m, sec)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("TRACKLAPSE TIMELAPSE VIEWER"))
	s.WriteString("\n")

	visible, total := m.visibleCounts()
	info := fmt.Sprintf("%s | tracks %d/%d visible", playbackLine(m.sess.Clock()), visible, total)
	if m.sess.Loading() {
		info += " | loading..."
	}
	if m.sess.HeatmapEnabled() {
		info += " | heatmap"
	}
	if m.sess.Criteria().MilitaryOnly {
		info += " | military only"
	}
	s.WriteString(statusStyle.Render(info))
	s.WriteString("\n")

	rows := m.height - 5
	if rows < 5 {
		rows = 5
	}
	cols := m.width
	if cols < 20 {
		cols = 80
	}
	s.WriteString(m.canvas.Render(viewport{
		CenterX: m.centerX,
		CenterZ: m.centerZ,
		Zoom:    m.zoom,
		Cols:    cols,
		Rows:    rows,
	}, m.markers()))
	s.WriteString("\n")

	if m.statusMsg != "" {
		s.WriteString(statusStyle.Render(m.statusMsg))
	}
	if m.loadErr != nil {
		s.WriteString("  ")
		s.WriteString(errStyle.Render(m.loadErr.Error()))
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("space play/pause | r restart | ←/→ seek | +/- speed | f fade | h heatmap | m military | 1/2/3 window 1h/6h/24h | l reload | c clear | wasd pan | [/] zoom | q quit"))

	return s.String()
}

// Marker colors for the interpolated current-position overlay.
var (
	markerCivilian = scene.RGB{R: 255, G: 255, B: 255}
	markerMilitary = scene.RGB{R: 255, G: 80, B: 80}
)

// markers interpolates each visible track to the playback instant. A track
// whose span does not cover the instant gets no marker even while its line
// is still visible (fade keeps lines up past their last sample).
func (m model) markers() []marker {
	clock := m.sess.Clock()
	if clock == nil {
		return nil
	}
	ts := clock.CurrentTimestampMs()

	var out []marker
	m.sess.Store().ForEach(func(st *store.TrackState) {
		if !st.Visible {
			return
		}
		p, ok := st.Track.PositionAt(ts)
		if !ok {
			return
		}
		color := markerCivilian
		if st.Track.IsMilitary {
			color = markerMilitary
		}
		out = append(out, marker{
			Pos:   scene.Vec3{X: p.X, Y: p.Y, Z: p.Z},
			Color: color,
		})
	})
	return out
}

// visibleCounts reports how many loaded tracks pass the current playback
// and filter verdict.
func (m model) visibleCounts() (visible, total int) {
	m.sess.Store().ForEach(func(st *store.TrackState) {
		total++
		if st.Visible {
			visible++
		}
	})
	return visible, total
}

func main() {
	configPath := flag.String("config", "configs/config.json", "path to config file")
	serviceURL := flag.String("service", "", "track service base URL (overrides config)")
	hours := flag.Int("hours", 0, "historical window in hours (overrides config)")
	resolution := flag.String("resolution", "5min", "track resolution: full, 1min or 5min")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *serviceURL != "" {
		cfg.TrackService.BaseURL = *serviceURL
	}
	windowHours := cfg.TrackService.DefaultWindowHours
	if *hours > 0 {
		windowHours = *hours
	}

	client := trackapi.NewClient(cfg.TrackService.BaseURL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = client.Health(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Track service not reachable at %s: %v", cfg.TrackService.BaseURL, err)
	}

	home := coordinates.Geographic{
		Latitude:  cfg.Observer.Latitude,
		Longitude: cfg.Observer.Longitude,
		Altitude:  cfg.Observer.Elevation,
	}
	projector := coordinates.NewSceneProjector(home, cfg.Viewer.UnitsPerNauticalMile)

	milDB := military.New(cfg.Military.DatabaseURL)

	cv := newCanvas()
	sess := session.New(session.Options{
		Fetcher:   client,
		Allocator: cv,
		Normalizer: track.Normalizer{
			Projector:         projector,
			AltitudeScale:     cfg.Viewer.AltitudeScale,
			MinRenderAltitude: cfg.Viewer.MinRenderAltitude,
		},
		Smoother: track.Smoother{
			OutlierThresholdFeet: cfg.Viewer.OutlierThresholdFeet,
			LowAltitudeFloorFeet: cfg.Viewer.LowAltitudeFloorFeet,
			AltitudeScale:        cfg.Viewer.AltitudeScale,
			MinRenderAltitude:    cfg.Viewer.MinRenderAltitude,
		},
		MilitaryLookup:  milDB.IsMilitary,
		GridSize:        cfg.Viewer.GridSize,
		SaturationCount: cfg.Viewer.SaturationCount,
		Jitter:          cfg.Viewer.JitterUnits,
		Rand:            rand.New(rand.NewSource(time.Now().UnixNano())),
	})

	m := model{
		cfg:         cfg,
		sess:        sess,
		canvas:      cv,
		milDB:       milDB,
		windowHours: windowHours,
		resolution:  *resolution,
		maxTracks:   cfg.TrackService.MaxTracks,
		zoom:        1.0,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
