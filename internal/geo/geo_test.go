package geo

import (
	"math"
	"testing"
)

func TestIsValidCoordinate(t *testing.T) {
	cases := []struct {
		name string
		loc  *LatLng
		want bool
	}{
		{name: "nil", loc: nil, want: false},
		{name: "zero pair", loc: &LatLng{}, want: false},
		{name: "zero lat", loc: &LatLng{Lat: 0, Lng: 18.4}, want: false},
		{name: "zero lng", loc: &LatLng{Lat: -33.9, Lng: 0}, want: false},
		{name: "nan", loc: &LatLng{Lat: math.NaN(), Lng: 18.4}, want: false},
		{name: "inf", loc: &LatLng{Lat: -33.9, Lng: math.Inf(1)}, want: false},
		{name: "cape town", loc: &LatLng{Lat: -33.9249, Lng: 18.4241}, want: true},
		{name: "negative both", loc: &LatLng{Lat: -1e-9, Lng: -1e-9}, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidCoordinate(tc.loc); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestWorldPoint_RoundTrip(t *testing.T) {
	in := LatLng{Lat: -33.9249, Lng: 18.4241}
	out := FromWorldPoint(WorldPoint(in))

	if math.Abs(out.Lat-in.Lat) > 1e-9 || math.Abs(out.Lng-in.Lng) > 1e-9 {
		t.Fatalf("expected round trip to %v, got %v", in, out)
	}
}

func TestWorldPoint_Origin(t *testing.T) {
	p := WorldPoint(LatLng{Lat: 0, Lng: 0})
	if p[0] != 128 || p[1] != 128 {
		t.Fatalf("expected origin at (128,128), got %v", p)
	}
}

func TestCellKey_Colocation(t *testing.T) {
	a := LatLng{Lat: -33.92490, Lng: 18.42410}
	b := LatLng{Lat: -33.92490, Lng: 18.42410}
	c := LatLng{Lat: -33.93000, Lng: 18.42410}

	if CellKey(a) != CellKey(b) {
		t.Fatalf("expected identical coordinates to share a cell")
	}
	if CellKey(a) == CellKey(c) {
		t.Fatalf("expected coordinates ~500m apart to land in different cells")
	}
	if d := Distance(a, c); d < 500 || d > 620 {
		t.Fatalf("expected ~567m between points, got %f", d)
	}
}
