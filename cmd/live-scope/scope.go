package main

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tracklapse/tracklapse/pkg/trackapi"
)

// scopeAircraft is one live aircraft prepared for display: position
// projected into scene coordinates, altitude resolved, military flag
// attached.
type scopeAircraft struct {
	ICAO     string
	Callsign string
	Lat      float64
	Lon      float64

	// X/Z are scene coordinates relative to the observer
	X float64
	Z float64

	AltitudeFeet float64
	OnGround     bool
	SpeedKnots   float64
	Heading      float64
	AgeSeconds   float64
	Military     bool
}

// liveAltitude resolves the readsb alt_baro field, which is a number in
// feet or the string "ground".
func liveAltitude(raw interface{}) (feet float64, onGround, ok bool) {
	switch v := raw.(type) {
	case float64:
		return v, false, true
	case string:
		if strings.EqualFold(strings.TrimSpace(v), "ground") {
			return 0, true, true
		}
	}
	return 0, false, false
}

// projector is the slice of the scene projector the scope needs.
type projector interface {
	Project(lat, lon float64) (x, z float64)
}

// buildScopeAircraft filters a live snapshot down to displayable aircraft:
// positionless entries are dropped, the rest are projected and sorted by
// distance from the observer.
func buildScopeAircraft(snap *trackapi.LiveSnapshot, proj projector, isMilitary func(string) bool) []scopeAircraft {
	out := make([]scopeAircraft, 0, len(snap.Aircraft))
	for _, ac := range snap.Aircraft {
		if ac.Lat == nil || ac.Lon == nil || ac.Hex == "" {
			continue
		}
		x, z := proj.Project(*ac.Lat, *ac.Lon)
		view := scopeAircraft{
			ICAO:     strings.ToLower(strings.TrimSpace(ac.Hex)),
			Callsign: strings.TrimSpace(ac.Flight),
			Lat:      *ac.Lat,
			Lon:      *ac.Lon,
			X:        x,
			Z:        z,
		}
		if feet, ground, ok := liveAltitude(ac.AltBaro); ok {
			view.AltitudeFeet = feet
			view.OnGround = ground
		}
		if ac.Gs != nil {
			view.SpeedKnots = *ac.Gs
		}
		if ac.Track != nil {
			view.Heading = *ac.Track
		}
		if ac.Seen != nil {
			view.AgeSeconds = *ac.Seen
		}
		if isMilitary != nil {
			view.Military = isMilitary(view.ICAO)
		}
		out = append(out, view)
	}

	sort.Slice(out, func(i, j int) bool {
		di := out[i].X*out[i].X + out[i].Z*out[i].Z
		dj := out[j].X*out[j].X + out[j].Z*out[j].Z
		return di < dj
	})
	return out
}

// label is the short display name: callsign if reported, otherwise the
// ICAO address.
func (a scopeAircraft) label() string {
	if a.Callsign != "" {
		return a.Callsign
	}
	return strings.ToUpper(a.ICAO)
}

// symbolColor picks the tview color tag for an aircraft mark.
func symbolColor(a scopeAircraft, selected bool) string {
	switch {
	case selected:
		return "green"
	case a.Military:
		return "red"
	case a.OnGround:
		return "gray"
	default:
		return "aqua"
	}
}

// renderScope draws the plan view as tview-tagged text. The observer sits
// at the center; zoom is grid cells per scene unit. Rows count half because
// terminal cells are roughly twice as tall as wide.
func renderScope(aircraft []scopeAircraft, cols, rows int, zoom float64, selectedICAO string) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	type mark struct {
		ch    rune
		color string
	}
	grid := make(map[[2]int]mark)

	// Range rings every 25 scene units.
	for _, radius := range []float64{25, 50, 100} {
		for deg := 0; deg < 360; deg += 3 {
			rad := float64(deg) * math.Pi / 180
			col := cols/2 + int(math.Round(math.Cos(rad)*radius*zoom))
			row := rows/2 + int(math.Round(math.Sin(rad)*radius*zoom/2))
			if col >= 0 && col < cols && row >= 0 && row < rows {
				key := [2]int{row, col}
				if _, taken := grid[key]; !taken {
					grid[key] = mark{ch: '·', color: "gray"}
				}
			}
		}
	}

	grid[[2]int{rows / 2, cols / 2}] = mark{ch: '+', color: "yellow"}

	for _, ac := range aircraft {
		col := cols/2 + int(math.Round(ac.X*zoom))
		row := rows/2 + int(math.Round(ac.Z*zoom/2))
		if col < 0 || col >= cols || row < 0 || row >= rows {
			continue
		}
		grid[[2]int{row, col}] = mark{
			ch:    headingRune(ac.Heading),
			color: symbolColor(ac, ac.ICAO == selectedICAO),
		}
	}

	var b strings.Builder
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if m, ok := grid[[2]int{row, col}]; ok {
				fmt.Fprintf(&b, "[%s]%c[-]", m.color, m.ch)
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// headingRune picks an arrow glyph for the aircraft's track over the
// ground, one of eight compass sectors.
func headingRune(heading float64) rune {
	arrows := []rune{'↑', '↗', '→', '↘', '↓', '↙', '←', '↖'}
	h := math.Mod(heading, 360)
	if h < 0 {
		h += 360
	}
	sector := int(math.Round(h/45)) % 8
	return arrows[sector]
}
