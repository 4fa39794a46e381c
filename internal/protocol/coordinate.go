package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CoordinatePlaces is the number of fractional digits kept for lat/lon.
const CoordinatePlaces = 6

var sixty = decimal.NewFromInt(60)

// ParseCoordinate converts an NMEA style DDMM.mmmm / DDDMM.mmmm value into
// signed decimal degrees rounded half-up to six places.
//
// The protocol carries no field-type tag, so the degree width is inferred from
// the integer part: more than four digits means a three digit longitude.
func ParseCoordinate(value, hemi string) (decimal.Decimal, error) {
	if len(value) < 4 {
		return decimal.Zero, errors.New("invalid coordinate format")
	}
	dot := strings.IndexByte(value, '.')
	if dot < 0 {
		return decimal.Zero, errors.New("coordinate missing decimal part")
	}

	degLen := 2
	if dot > 4 {
		degLen = 3
	}

	deg, err := decimal.NewFromString(value[:degLen])
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid coordinate degrees %q", value[:degLen])
	}
	minutes, err := decimal.NewFromString(value[degLen:])
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid coordinate minutes %q", value[degLen:])
	}

	out := deg.Add(minutes.Div(sixty))
	if hemi == "S" || hemi == "W" {
		out = out.Neg()
	}
	// Round is half away from zero, which is ROUND_HALF_UP for both signs.
	return out.Round(CoordinatePlaces), nil
}
