package geo

import (
	"math"
	"testing"
)

func TestDistance_KnownPoints(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolerance              float64
	}{
		{
			name: "same point",
			lat1: 40.0, lon1: -73.0, lat2: 40.0, lon2: -73.0,
			wantKm: 0, tolerance: 0.001,
		},
		{
			name: "subscriber five and a half km north of event",
			lat1: 40.05, lon1: -73.00, lat2: 40.00, lon2: -73.00,
			wantKm: 5.56, tolerance: 0.01,
		},
		{
			name: "one degree of latitude",
			lat1: 0, lon1: 0, lat2: 1, lon2: 0,
			wantKm: 111.19, tolerance: 0.1,
		},
		{
			name: "london to paris",
			lat1: 51.5074, lon1: -0.1278, lat2: 48.8566, lon2: 2.3522,
			wantKm: 343.5, tolerance: 1.0,
		},
		{
			name: "across the antimeridian",
			lat1: 0, lon1: 179.5, lat2: 0, lon2: -179.5,
			wantKm: 111.19, tolerance: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("Distance() = %.4f km, want %.4f ± %.4f", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	d1 := Distance(40.05, -73.00, 40.00, -73.00)
	d2 := Distance(40.00, -73.00, 40.05, -73.00)

	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance is not symmetric: %v vs %v", d1, d2)
	}
}

func TestDistance_NearAntipodalIsFinite(t *testing.T) {
	// Near-antipodal pairs drive the haversine term against 1, where
	// rounding can push a naive asin(sqrt(a)) out of domain. The store's
	// SQL clamps for the same reason; both sides must stay finite here.
	halfCircumference := math.Pi * EarthRadiusKm

	pairs := [][4]float64{
		{40.0, -73.0, -40.0, 107.0},
		{0.0, 0.0, 0.0, 180.0},
		{89.999999, 0.0, -89.999999, 180.0},
	}

	for _, p := range pairs {
		d := Distance(p[0], p[1], p[2], p[3])
		if math.IsNaN(d) || math.IsInf(d, 0) {
			t.Fatalf("Distance(%v) = %v", p, d)
		}
		if d > halfCircumference+1 {
			t.Errorf("Distance(%v) = %v, exceeds half the circumference", p, d)
		}
	}
}

func TestWithinRadius_InclusiveBoundary(t *testing.T) {
	lat1, lon1 := 40.05, -73.00
	lat2, lon2 := 40.00, -73.00
	d := Distance(lat1, lon1, lat2, lon2)

	if !WithinRadius(lat1, lon1, lat2, lon2, d) {
		t.Error("a point exactly at the radius must be included")
	}
	if WithinRadius(lat1, lon1, lat2, lon2, d-0.001) {
		t.Error("a point just outside the radius must be excluded")
	}
	if !WithinRadius(lat1, lon1, lat2, lon2, 10) {
		t.Error("5.56 km apart should be within 10 km")
	}
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		wantErr  bool
	}{
		{"valid", 40.0, -73.0, false},
		{"north pole", 90, 0, false},
		{"antimeridian", 0, -180, false},
		{"latitude too big", 90.1, 0, true},
		{"latitude too small", -91, 0, true},
		{"longitude too big", 0, 180.5, true},
		{"latitude NaN", math.NaN(), 0, true},
		{"longitude infinite", 0, math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lon)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCoordinates(%v, %v) error = %v, wantErr %v", tt.lat, tt.lon, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRadius(t *testing.T) {
	tests := []struct {
		name    string
		radius  float64
		wantErr bool
	}{
		{"positive", 10, false},
		{"small positive", 0.001, false},
		{"zero", 0, true},
		{"negative", -5, true},
		{"NaN", math.NaN(), true},
		{"infinite", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRadius(tt.radius)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRadius(%v) error = %v, wantErr %v", tt.radius, err, tt.wantErr)
			}
		})
	}
}
