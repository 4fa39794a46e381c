package ingest

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"igx_tracker/internal/models"
)

// Violation is one out-of-range field.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string { return v.Field + ": " + v.Message }

// ValidationError carries every violation found on a candidate Position.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

// Fields lists the offending field names in order.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Field
	}
	return out
}

type decimalRule struct {
	field    string
	value    decimal.Decimal
	digits   int // total digits, as in numeric(digits, places)
	places   int
	min, max *decimal.Decimal
}

var (
	decMinus90  = decimal.NewFromInt(-90)
	dec90       = decimal.NewFromInt(90)
	decMinus180 = decimal.NewFromInt(-180)
	dec180      = decimal.NewFromInt(180)
	dec0        = decimal.Zero
	dec100      = decimal.NewFromInt(100)
)

// validatePosition checks every range and precision constraint of the positions
// table and returns all violations (including the ones passed in), or nil.
func validatePosition(p *models.Position, found ...Violation) error {
	vs := append([]Violation(nil), found...)
	add := func(field, format string, args ...any) {
		vs = append(vs, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if p.Seq < 0 || p.Seq > math.MaxInt32 {
		add("seq", "must be between 0 and %d", math.MaxInt32)
	}

	decimals := []decimalRule{
		{field: "lat", value: p.Lat, digits: 10, places: 6, min: &decMinus90, max: &dec90},
		{field: "lon", value: p.Lon, digits: 11, places: 6, min: &decMinus180, max: &dec180},
		{field: "speed_kmh", value: p.SpeedKmh, digits: 6, places: 1},
		{field: "alt_m", value: p.AltM, digits: 7, places: 1},
		{field: "hdop", value: p.HDOP, digits: 4, places: 1},
		{field: "odom_km", value: p.OdomKm, digits: 9, places: 1},
		{field: "fuel_pct", value: p.FuelPct, digits: 5, places: 1, min: &dec0, max: &dec100},
		{field: "batt_v", value: p.BattV, digits: 5, places: 1},
	}
	for _, r := range decimals {
		switch {
		case r.min != nil && r.value.LessThan(*r.min):
			add(r.field, "must be greater than or equal to %s", r.min)
		case r.max != nil && r.value.GreaterThan(*r.max):
			add(r.field, "must be less than or equal to %s", r.max)
		case wholeDigits(r.value) > r.digits-r.places:
			add(r.field, "must have no more than %d digits before the decimal point", r.digits-r.places)
		}
	}

	if p.CourseDeg < 0 || p.CourseDeg > 359 {
		add("course_deg", "must be between 0 and 359")
	}
	if p.Fix < 0 || p.Fix > 3 {
		add("fix", "must be between 0 and 3")
	}
	if p.Sats < 0 || p.Sats > math.MaxInt16 {
		add("sats", "must be between 0 and %d", math.MaxInt16)
	}
	if len(p.IOHex) > 4 {
		add("io_hex", "must have at most 4 characters")
	}

	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

func wholeDigits(d decimal.Decimal) int {
	whole := d.Abs().Truncate(0)
	if whole.IsZero() {
		return 0
	}
	return len(whole.String())
}
