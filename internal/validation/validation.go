package validation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// ErrLocationInvalidChars is returned when location contains disallowed characters.
var ErrLocationInvalidChars = errors.New("location contains invalid characters")

// ErrDaysOutOfRange is returned when the forecast day count is outside 1-10.
var ErrDaysOutOfRange = errors.New("days must be between 1 and 10")

// ErrCoordinatesOutOfRange is returned when latitude or longitude is outside
// its valid range.
var ErrCoordinatesOutOfRange = errors.New("latitude must be in [-90,90] and longitude in [-180,180]")

var validate = validator.New()

// ForecastParams bounds the forecast day count accepted before any upstream
// call is made.
type ForecastParams struct {
	Days int `validate:"min=1,max=10"`
}

// CoordsParams bounds an explicit coordinate lookup.
type CoordsParams struct {
	Lat  float64 `validate:"gte=-90,lte=90"`
	Lon  float64 `validate:"gte=-180,lte=180"`
	Days int     `validate:"min=1,max=10"`
}

// ValidateDays rejects day counts outside 1-10.
func ValidateDays(days int) error {
	if err := validate.Struct(ForecastParams{Days: days}); err != nil {
		return ErrDaysOutOfRange
	}
	return nil
}

// ValidateCoords rejects coordinates outside valid ranges and day counts
// outside 1-10.
func ValidateCoords(lat, lon float64, days int) error {
	err := validate.Struct(CoordsParams{Lat: lat, Lon: lon, Days: days})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Days" {
				return ErrDaysOutOfRange
			}
		}
	}
	return ErrCoordinatesOutOfRange
}

// ValidateLocation trims the input, enforces the length bound (maxLen in
// runes, 0 = unlimited), and restricts to letters (Unicode), digits, space,
// comma, hyphen, period. Returns the trimmed string or an error suitable for
// 400 INVALID_LOCATION responses. Normalization (e.g. lowercase) is left to
// the service layer.
func ValidateLocation(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

// isAllowedLocationRune returns true for letters (Unicode), digits, space,
// comma, hyphen, period.
func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.':
		return true
	}
	return false
}
