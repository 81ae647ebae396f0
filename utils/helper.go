package utils

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// ValidateStruct runs the `validate` tags of s.
func ValidateStruct(s any) error {
	return validate.Struct(s)
}

// ValidateStructExcept skips the named fields.
func ValidateStructExcept(s any, fields ...string) error {
	return validate.StructExcept(s, fields...)
}

func ProcessValidationErrors(err error) map[string]string {

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"error": err.Error()}
	}

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// DateOnly keeps the calendar day of t, as seen in t's own offset, at
// midnight UTC. Invoice dates carry no time of day.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts 2006-01-02, RFC3339 and 02/01/2006.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return DateOnly(t), nil
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("invalid date " + strconv.Quote(value))
}

// ParseDecimal converts a string to a decimal.Decimal value.
// Both "1.234,56" and "1,234.56" are accepted, with or without an "R$" prefix.
// Dots are thousands separators when the value is prefixed with "R$", holds
// more than one dot, or has a single dot followed by exactly three digits
// ("1.500" is 1500).
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	currency := strings.HasPrefix(value, "R$")
	value = strings.TrimSpace(strings.TrimPrefix(value, "R$"))
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	lastComma := strings.LastIndex(value, ",")
	lastDot := strings.LastIndex(value, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		value = strings.ReplaceAll(value, ".", "")
		value = strings.Replace(value, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		value = strings.ReplaceAll(value, ",", "")
	case lastComma >= 0:
		if strings.Count(value, ",") > 1 {
			value = strings.ReplaceAll(value, ",", "")
		} else {
			value = strings.Replace(value, ",", ".", 1)
		}
	case lastDot >= 0 && dotsGroupThousands(value, currency):
		value = strings.ReplaceAll(value, ".", "")
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// dotsGroupThousands reports whether every dot in a comma-free number is a
// thousands separator. Each group after the first must have three digits.
func dotsGroupThousands(value string, currency bool) bool {
	groups := strings.Split(strings.TrimPrefix(value, "-"), ".")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	if currency || len(groups) > 2 {
		return true
	}
	// a lone "0.125" stays fractional
	return strings.TrimLeft(groups[0], "0") != ""
}

func EnvBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

func IntFromEnv(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func SplitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
