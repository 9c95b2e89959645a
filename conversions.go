package rca

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var dateFormats = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "20060102", "2006-01", "1/2/2006", "01/02/2006"}

// toFloat coerces a database value to float64. NULL becomes NaN. Decimal types are handled
// through their string form so fixed-point values never mix with floats.
func toFloat(x any) (float64, bool) {
	if x == nil {
		return math.NaN(), true
	}

	switch v := x.(type) {
	case float64:
		return v, true
	case []byte:
		return parseFloat(string(v))
	case string:
		return parseFloat(v)
	}

	xv := reflect.ValueOf(x)
	if xv.Kind() == reflect.Pointer {
		if xv.IsNil() {
			return math.NaN(), true
		}

		return toFloat(xv.Elem().Interface())
	}

	if xv.CanFloat() {
		return xv.Float(), true
	}

	if xv.CanInt() {
		return float64(xv.Int()), true
	}

	if xv.CanUint() {
		return float64(xv.Uint()), true
	}

	if s, ok := x.(fmt.Stringer); ok {
		return parseFloat(s.String())
	}

	return math.NaN(), false
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan") {
		return math.NaN(), true
	}

	f, e := strconv.ParseFloat(s, 64)
	if e != nil {
		return math.NaN(), false
	}

	return f, true
}

// toString returns "" for NULL.
func toString(x any) string {
	if x == nil {
		return ""
	}

	switch v := x.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case time.Time:
		return v.Format("2006-01-02")
	}

	xv := reflect.ValueOf(x)
	if xv.Kind() == reflect.Pointer {
		if xv.IsNil() {
			return ""
		}

		return toString(xv.Elem().Interface())
	}

	return fmt.Sprintf("%v", x)
}

// toDate normalizes to midnight UTC.
func toDate(x any) (time.Time, bool) {
	switch v := x.(type) {
	case time.Time:
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return toDate(*v)
	case []byte:
		return toDate(string(v))
	case string:
		for _, f := range dateFormats {
			if dt, e := time.Parse(f, strings.TrimSpace(v)); e == nil {
				return toDate(dt)
			}
		}
	}

	return time.Time{}, false
}

func toInt(x any) (int, bool) {
	f, ok := toFloat(x)
	if !ok || math.IsNaN(f) {
		return 0, false
	}

	return int(f), true
}

func toBool(x any) bool {
	switch v := x.(type) {
	case bool:
		return v
	case *bool:
		return v != nil && *v
	}

	s := strings.ToLower(toString(x))

	return s == "true" || s == "t" || s == "1" || s == "yes"
}
