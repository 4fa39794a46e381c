// Package geo converts stored positions to WKB and GeoJSON for map clients.
// Stored coordinates stay exact decimals; float64 only appears here, at the
// presentation edge.
package geo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"

	"igx_tracker/internal/models"
)

// ErrEmptyTrack is returned when there is nothing to draw.
var ErrEmptyTrack = errors.New("no positions for track")

// PointWKB encodes lon/lat as a little-endian WKB point.
func PointWKB(lat, lon decimal.Decimal) ([]byte, error) {
	pt, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{lon.InexactFloat64(), lat.InexactFloat64()})
	if err != nil {
		return nil, err
	}
	return wkb.Marshal(pt, binary.LittleEndian)
}

// coordOf prefers the stored WKB point and falls back to the decimal columns.
func coordOf(p models.Position) (geom.Coord, error) {
	if len(p.Point) == 0 {
		return geom.Coord{p.Lon.InexactFloat64(), p.Lat.InexactFloat64()}, nil
	}
	g, err := wkb.Unmarshal(p.Point)
	if err != nil {
		return nil, fmt.Errorf("position %d: %w", p.ID, err)
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return nil, fmt.Errorf("position %d: expected point, got %T", p.ID, g)
	}
	return pt.Coords(), nil
}

// TrackFeature renders positions (any order) as a GeoJSON LineString feature in
// chronological order. A single fix is rendered as a Point.
func TrackFeature(dev models.Device, positions []models.Position) (*gjson.Feature, error) {
	if len(positions) == 0 {
		return nil, ErrEmptyTrack
	}
	ordered := make([]models.Position, len(positions))
	copy(ordered, positions)
	sortChronological(ordered)

	coords := make([]geom.Coord, 0, len(ordered))
	for _, p := range ordered {
		c, err := coordOf(p)
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}

	var g geom.T
	if len(coords) == 1 {
		pt, err := geom.NewPoint(geom.XY).SetCoords(coords[0])
		if err != nil {
			return nil, err
		}
		g = pt
	} else {
		ls, err := geom.NewLineString(geom.XY).SetCoords(coords)
		if err != nil {
			return nil, err
		}
		g = ls
	}

	var distance float64
	for i := 1; i < len(coords); i++ {
		distance += Distance(coords[i-1], coords[i])
	}

	first, last := ordered[0], ordered[len(ordered)-1]
	return &gjson.Feature{
		ID:       dev.IMEI,
		Geometry: g,
		Properties: map[string]interface{}{
			"device_id":  dev.ID,
			"name":       dev.DisplayName(),
			"points":     len(ordered),
			"distance_m": math.Round(distance*10) / 10,
			"from":       first.Timestamp,
			"to":         last.Timestamp,
			"from_seq":   first.Seq,
			"to_seq":     last.Seq,
		},
	}, nil
}

func sortChronological(ps []models.Position) {
	sort.SliceStable(ps, func(i, j int) bool { return before(ps[i], ps[j]) })
}

func before(a, b models.Position) bool {
	if a.Timestamp.Equal(b.Timestamp) {
		return a.Seq < b.Seq
	}
	return a.Timestamp.Before(b.Timestamp)
}

// Distance is the great-circle distance in meters between two lon/lat coords.
func Distance(a, b geom.Coord) float64 {
	const earthRadius = 6371000 // meters
	lat1, lat2 := toRadians(a.Y()), toRadians(b.Y())
	dLat := lat2 - lat1
	dLon := toRadians(b.X() - a.X())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
