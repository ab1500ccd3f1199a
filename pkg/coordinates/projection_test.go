package coordinates

import (
	"math"
	"testing"
)

func TestSceneProjectorHomeIsOrigin(t *testing.T) {
	home := Geographic{Latitude: 45.0, Longitude: -90.0}
	p := NewSceneProjector(home, 1.0)

	x, z := p.Project(45.0, -90.0)
	if x != 0 || z != 0 {
		t.Errorf("Expected home to project to origin, got (%v, %v)", x, z)
	}
}

func TestSceneProjectorAxes(t *testing.T) {
	home := Geographic{Latitude: 45.0, Longitude: -90.0}
	p := NewSceneProjector(home, 1.0)

	// One degree north of home: 60 NM toward -Z.
	_, z := p.Project(46.0, -90.0)
	if math.Abs(z-(-60.0)) > 1e-9 {
		t.Errorf("Expected 1 degree north to map to z=-60, got %v", z)
	}

	// One degree east of home: 60*cos(45 deg) NM toward +X.
	x, _ := p.Project(45.0, -89.0)
	want := 60.0 * math.Cos(45.0*DegreesToRadians)
	if math.Abs(x-want) > 1e-9 {
		t.Errorf("Expected 1 degree east to map to x=%v, got %v", want, x)
	}
}

func TestSceneProjectorScale(t *testing.T) {
	home := Geographic{Latitude: 0, Longitude: 0}
	p := NewSceneProjector(home, 0.5)

	_, z := p.Project(1.0, 0)
	if math.Abs(z-(-30.0)) > 1e-9 {
		t.Errorf("Expected half-scale z=-30, got %v", z)
	}
}

func TestSceneProjectorNonFinitePropagates(t *testing.T) {
	p := NewSceneProjector(Geographic{}, 1.0)
	x, _ := p.Project(0, math.NaN())
	if !math.IsNaN(x) {
		t.Errorf("Expected NaN input to propagate, got %v", x)
	}
}

func TestDistanceAndBearing(t *testing.T) {
	from := Geographic{Latitude: 45.0, Longitude: -90.0}
	north := Geographic{Latitude: 46.0, Longitude: -90.0}

	d := DistanceNauticalMiles(from, north)
	if math.Abs(d-60.0) > 0.2 {
		t.Errorf("Expected ~60 NM for one degree of latitude, got %v", d)
	}

	b := Bearing(from, north)
	if math.Abs(b-0.0) > 0.1 && math.Abs(b-360.0) > 0.1 {
		t.Errorf("Expected bearing ~0 (north), got %v", b)
	}
}
