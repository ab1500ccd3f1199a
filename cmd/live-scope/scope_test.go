package main

import (
	"strings"
	"testing"

	"github.com/tracklapse/tracklapse/pkg/trackapi"
)

func fptr(v float64) *float64 { return &v }

func TestLiveAltitude(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		wantFeet float64
		wantGnd  bool
		wantOK   bool
	}{
		{name: "number", raw: float64(35000), wantFeet: 35000, wantOK: true},
		{name: "ground", raw: "ground", wantGnd: true, wantOK: true},
		{name: "ground mixed case", raw: " Ground ", wantGnd: true, wantOK: true},
		{name: "missing", raw: nil},
		{name: "garbage string", raw: "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feet, ground, ok := liveAltitude(tt.raw)
			if ok != tt.wantOK || feet != tt.wantFeet || ground != tt.wantGnd {
				t.Errorf("liveAltitude(%v) = (%g, %v, %v), want (%g, %v, %v)",
					tt.raw, feet, ground, ok, tt.wantFeet, tt.wantGnd, tt.wantOK)
			}
		})
	}
}

func TestBuildScopeAircraft(t *testing.T) {
	snap := &trackapi.LiveSnapshot{
		Aircraft: []trackapi.LiveAircraft{
			{Hex: "AE01CE", Flight: "RCH456 ", Lat: fptr(40.5), Lon: fptr(-74.5), AltBaro: float64(28000), Gs: fptr(440)},
			{Hex: "a1b2c3", Flight: "UAL123", Lat: fptr(40.01), Lon: fptr(-74.01), AltBaro: "ground"},
			{Hex: "ffffff", Lat: nil, Lon: fptr(-74)},
			{Hex: "", Lat: fptr(40), Lon: fptr(-74)},
		},
	}
	isMilitary := func(icao string) bool { return icao == "ae01ce" }

	// Observer near 40.0, -74.0 so the second aircraft is closest.
	got := buildScopeAircraft(snap, offsetProjector{lat: 40, lon: -74}, isMilitary)
	if len(got) != 2 {
		t.Fatalf("got %d aircraft, want 2 (positionless and unidentified dropped)", len(got))
	}

	// Sorted by distance: UAL123 first.
	if got[0].ICAO != "a1b2c3" || got[1].ICAO != "ae01ce" {
		t.Errorf("order = [%s %s], want closest first", got[0].ICAO, got[1].ICAO)
	}
	if !got[0].OnGround || got[0].AltitudeFeet != 0 {
		t.Errorf("ground aircraft = %+v, want on-ground at 0 ft", got[0])
	}
	if got[1].Callsign != "RCH456" {
		t.Errorf("callsign = %q, want trimmed RCH456", got[1].Callsign)
	}
	if !got[1].Military {
		t.Error("ae01ce should be flagged military")
	}
	if got[1].SpeedKnots != 440 {
		t.Errorf("speed = %g, want 440", got[1].SpeedKnots)
	}
}

type offsetProjector struct {
	lat, lon float64
}

func (p offsetProjector) Project(lat, lon float64) (x, z float64) {
	return lon - p.lon, -(lat - p.lat)
}

func TestLabel(t *testing.T) {
	withCall := scopeAircraft{ICAO: "a1b2c3", Callsign: "UAL123"}
	if got := withCall.label(); got != "UAL123" {
		t.Errorf("label = %q, want UAL123", got)
	}
	anon := scopeAircraft{ICAO: "a1b2c3"}
	if got := anon.label(); got != "A1B2C3" {
		t.Errorf("label = %q, want A1B2C3", got)
	}
}

func TestHeadingRune(t *testing.T) {
	tests := []struct {
		heading float64
		want    rune
	}{
		{heading: 0, want: '↑'},
		{heading: 90, want: '→'},
		{heading: 180, want: '↓'},
		{heading: 270, want: '←'},
		{heading: 359, want: '↑'},
		{heading: 45, want: '↗'},
		{heading: -90, want: '←'},
	}
	for _, tt := range tests {
		if got := headingRune(tt.heading); got != tt.want {
			t.Errorf("headingRune(%g) = %c, want %c", tt.heading, got, tt.want)
		}
	}
}

func TestRenderScopeCentersObserver(t *testing.T) {
	out := renderScope(nil, 21, 11, 1.0, "")
	if !strings.Contains(out, "[yellow]+[-]") {
		t.Error("observer marker missing from empty scope")
	}
}

func TestRenderScopePlacesAircraft(t *testing.T) {
	aircraft := []scopeAircraft{
		{ICAO: "a1b2c3", X: 2, Z: 0, Heading: 90},
	}
	out := renderScope(aircraft, 21, 11, 1.0, "a1b2c3")
	if !strings.Contains(out, "[green]→[-]") {
		t.Errorf("selected eastbound aircraft not drawn green, output:\n%s", out)
	}

	out = renderScope(aircraft, 21, 11, 1.0, "")
	if !strings.Contains(out, "[aqua]→[-]") {
		t.Error("unselected civilian aircraft should be aqua")
	}
}

func TestRenderScopeZeroSize(t *testing.T) {
	if out := renderScope(nil, 0, 0, 1.0, ""); out != "" {
		t.Errorf("zero-size scope rendered %q", out)
	}
}
