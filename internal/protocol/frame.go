package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// Header is the literal every frame starts with.
	Header = "$IGX"

	// MinFields is the count below which a frame is reported as incomplete.
	MinFields = 20
	// FrameFields is the number of positional fields consumed; extras are ignored.
	// The 21st (extensions) must be present even when empty.
	FrameFields = 21

	// MaxIMEILength matches the device registry column.
	MaxIMEILength = 17

	// MeasurementPlaces is the fractional precision of speed, altitude, HDOP, odometer, fuel and battery.
	MeasurementPlaces = 1
)

// DecodedFrame is the typed form of one frame.
type DecodedFrame struct {
	Protocol string `json:"proto"`
	Version  string `json:"ver"`
	IMEI     string `json:"imei"`
	Seq      int64  `json:"seq"`
	Date     string `json:"date"`
	Time     string `json:"time"`

	Lat     decimal.Decimal `json:"lat"`
	LatHemi string          `json:"lat_hemi"`
	Lon     decimal.Decimal `json:"lon"`
	LonHemi string          `json:"lon_hemi"`

	SpeedKmh  decimal.Decimal `json:"speed_kmh"`
	CourseDeg int             `json:"course_deg"`
	AltM      decimal.Decimal `json:"alt_m"`
	Fix       int             `json:"fix"`
	Sats      int             `json:"sats"`
	HDOP      decimal.Decimal `json:"hdop"`
	OdomKm    decimal.Decimal `json:"odom_km"`
	FuelPct   decimal.Decimal `json:"fuel_pct"`
	BattV     decimal.Decimal `json:"batt_v"`

	IORaw      string            `json:"io_raw"`
	IOFlags    map[string]bool   `json:"io_flags"`
	Extensions map[string]string `json:"extensions"`
}

// Decode parses and validates one raw frame. It performs no I/O; on failure the
// error is always a *DecodeError.
func Decode(raw string) (*DecodedFrame, error) {
	frame := strings.TrimSpace(raw)
	if !strings.HasPrefix(frame, Header) {
		return nil, &DecodeError{Kind: KindInvalidHeader}
	}

	body := frame[1:]
	star := strings.LastIndexByte(body, '*')
	if star < 0 {
		return nil, &DecodeError{Kind: KindMissingChecksum}
	}
	payload, claimed := body[:star], body[star+1:]

	if expected := Checksum([]byte(payload)); !strings.EqualFold(expected, claimed) {
		return nil, &DecodeError{Kind: KindChecksumMismatch, Received: claimed, Expected: expected}
	}

	parts := strings.Split(payload, ",")
	if len(parts) < MinFields {
		return nil, &DecodeError{
			Kind: KindIncompleteFrame,
			Err:  fmt.Errorf("got %d fields, need at least %d", len(parts), MinFields),
		}
	}
	if len(parts) < FrameFields {
		return nil, fieldError("extensions", fmt.Errorf("missing extension field"))
	}
	f := parts[:FrameFields]

	out := &DecodedFrame{
		Protocol: f[0],
		Version:  f[1],
		IMEI:     f[2],
		Date:     f[4],
		Time:     f[5],
		LatHemi:  f[7],
		LonHemi:  f[9],
		IORaw:    f[19],
	}

	if out.IMEI == "" {
		return nil, fieldError("imei", fmt.Errorf("empty device identifier"))
	}
	if len(out.IMEI) > MaxIMEILength {
		return nil, fieldError("imei", fmt.Errorf("identifier longer than %d characters", MaxIMEILength))
	}

	var err error
	if out.Seq, err = parseInt(f[3]); err != nil {
		return nil, fieldError("seq", err)
	}
	if out.Lat, err = ParseCoordinate(f[6], out.LatHemi); err != nil {
		return nil, fieldError("lat", err)
	}
	if out.Lon, err = ParseCoordinate(f[8], out.LonHemi); err != nil {
		return nil, fieldError("lon", err)
	}

	measurements := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"speed_kmh", f[10], &out.SpeedKmh},
		{"alt_m", f[12], &out.AltM},
		{"hdop", f[15], &out.HDOP},
		{"odom_km", f[16], &out.OdomKm},
		{"fuel_pct", f[17], &out.FuelPct},
		{"batt_v", f[18], &out.BattV},
	}
	for _, m := range measurements {
		if *m.dst, err = parseMeasurement(m.raw); err != nil {
			return nil, fieldError(m.name, err)
		}
	}

	integers := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"course_deg", f[11], &out.CourseDeg},
		{"fix", f[13], &out.Fix},
		{"sats", f[14], &out.Sats},
	}
	for _, n := range integers {
		v, err := parseInt(n.raw)
		if err != nil {
			return nil, fieldError(n.name, err)
		}
		*n.dst = int(v)
	}

	if out.IOFlags, err = ParseIOBitmask(out.IORaw); err != nil {
		return nil, fieldError("io_hex", err)
	}
	out.Extensions = ParseExtensions(f[20])

	return out, nil
}

func parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func parseMeasurement(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", s)
	}
	return d.Round(MeasurementPlaces), nil
}

// FallbackIdentifier pulls the third comma-separated field out of text that
// failed to decode. The result is unverified: it is only good enough to
// attribute an audit record to a device.
func FallbackIdentifier(raw string) (string, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) < 3 || parts[2] == "" || len(parts[2]) > MaxIMEILength {
		return "", false
	}
	return parts[2], true
}
