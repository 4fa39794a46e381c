package geo

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"igx_tracker/internal/models"
)

func TestPointWKB(t *testing.T) {
	b, err := PointWKB(decimal.RequireFromString("48.1173"), decimal.RequireFromString("11.516667"))
	if err != nil {
		t.Fatalf("PointWKB: %v", err)
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		t.Fatalf("got %T", g)
	}
	if pt.X() != 11.516667 || pt.Y() != 48.1173 {
		t.Errorf("point = %v", pt.Coords())
	}
}

func TestDistance(t *testing.T) {
	// one degree of latitude
	d := Distance(geom.Coord{0, 0}, geom.Coord{0, 1})
	if math.Abs(d-111195) > 1 {
		t.Errorf("distance = %f", d)
	}
	if Distance(geom.Coord{11, 48}, geom.Coord{11, 48}) != 0 {
		t.Errorf("zero distance expected")
	}
}

func position(seq int64, ts time.Time, lat, lon string) models.Position {
	p := models.Position{
		Seq:       seq,
		Timestamp: ts,
		Lat:       decimal.RequireFromString(lat),
		Lon:       decimal.RequireFromString(lon),
	}
	return p
}

func TestTrackFeature(t *testing.T) {
	dev := models.Device{IMEI: "356307042441013"}
	dev.ID = 3
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	p2 := position(2, base.Add(time.Minute), "48.2", "11.6")
	p2.Point, _ = PointWKB(p2.Lat, p2.Lon)
	// newest first, as the store returns them
	positions := []models.Position{
		position(3, base.Add(2*time.Minute), "48.3", "11.7"),
		p2,
		position(1, base, "48.1", "11.5"),
	}

	f, err := TrackFeature(dev, positions)
	if err != nil {
		t.Fatalf("TrackFeature: %v", err)
	}
	ls, ok := f.Geometry.(*geom.LineString)
	if !ok {
		t.Fatalf("geometry = %T", f.Geometry)
	}
	coords := ls.Coords()
	if len(coords) != 3 || coords[0].Y() != 48.1 || coords[2].Y() != 48.3 {
		t.Errorf("coords not chronological: %v", coords)
	}
	if f.Properties["from_seq"] != int64(1) || f.Properties["to_seq"] != int64(3) {
		t.Errorf("properties = %v", f.Properties)
	}
	if d, _ := f.Properties["distance_m"].(float64); d <= 0 {
		t.Errorf("distance = %v", f.Properties["distance_m"])
	}
	if positions[0].Seq != 3 {
		t.Errorf("input slice was reordered")
	}
}

func TestTrackFeature_SingleAndEmpty(t *testing.T) {
	dev := models.Device{IMEI: "X"}
	if _, err := TrackFeature(dev, nil); !errors.Is(err, ErrEmptyTrack) {
		t.Errorf("err = %v", err)
	}
	f, err := TrackFeature(dev, []models.Position{position(1, time.Now(), "1", "2")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.Geometry.(*geom.Point); !ok {
		t.Errorf("single fix should render as a point, got %T", f.Geometry)
	}
}
