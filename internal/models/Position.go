package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Scales of the numeric position columns.
const (
	CoordinateScale  = 6
	MeasurementScale = 1
)

// Position is one decoded and validated fix. (DeviceID, Seq) is unique.
type Position struct {
	gorm.Model
	DeviceID  uint      `json:"device_id" gorm:"not null;uniqueIndex:idx_positions_device_seq,priority:1;index:idx_positions_device_time,priority:1"`
	Device    *Device   `json:"device,omitempty" gorm:"foreignKey:DeviceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Seq       int64     `json:"seq" gorm:"not null;uniqueIndex:idx_positions_device_seq,priority:2"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index;index:idx_positions_device_time,priority:2"`

	Lat decimal.Decimal `json:"lat" gorm:"type:numeric(10,6);not null"`
	Lon decimal.Decimal `json:"lon" gorm:"type:numeric(11,6);not null"`

	SpeedKmh  decimal.Decimal `json:"speed_kmh" gorm:"type:numeric(6,1)"`
	CourseDeg int             `json:"course_deg"`
	AltM      decimal.Decimal `json:"alt_m" gorm:"type:numeric(7,1)"`
	Fix       int             `json:"fix"`
	Sats      int             `json:"sats"`
	HDOP      decimal.Decimal `json:"hdop" gorm:"type:numeric(4,1)"`
	OdomKm    decimal.Decimal `json:"odom_km" gorm:"type:numeric(9,1)"`
	FuelPct   decimal.Decimal `json:"fuel_pct" gorm:"type:numeric(5,1)"`
	BattV     decimal.Decimal `json:"batt_v" gorm:"type:numeric(5,1)"`

	IOHex      string            `json:"io_hex" gorm:"size:4"`
	IOFlags    datatypes.JSONMap `json:"io_flags" gorm:"type:jsonb"`
	Extensions datatypes.JSONMap `json:"extensions" gorm:"type:jsonb"`

	FrameID *uint `json:"frame_id" gorm:"uniqueIndex"`

	// Point is the fix as little-endian WKB, used for map rendering only.
	Point []byte `json:"-" gorm:"type:bytea"`
}

// MarshalJSON renders the decimal columns at their stored scale, so 48.1173
// goes out as "48.117300" and 55.5 as "55.5".
func (p Position) MarshalJSON() ([]byte, error) {
	type plain Position
	return json.Marshal(struct {
		plain
		Lat      string `json:"lat"`
		Lon      string `json:"lon"`
		SpeedKmh string `json:"speed_kmh"`
		AltM     string `json:"alt_m"`
		HDOP     string `json:"hdop"`
		OdomKm   string `json:"odom_km"`
		FuelPct  string `json:"fuel_pct"`
		BattV    string `json:"batt_v"`
	}{
		plain:    plain(p),
		Lat:      p.Lat.StringFixed(CoordinateScale),
		Lon:      p.Lon.StringFixed(CoordinateScale),
		SpeedKmh: p.SpeedKmh.StringFixed(MeasurementScale),
		AltM:     p.AltM.StringFixed(MeasurementScale),
		HDOP:     p.HDOP.StringFixed(MeasurementScale),
		OdomKm:   p.OdomKm.StringFixed(MeasurementScale),
		FuelPct:  p.FuelPct.StringFixed(MeasurementScale),
		BattV:    p.BattV.StringFixed(MeasurementScale),
	})
}
