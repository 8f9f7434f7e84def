package housing

import (
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"houseprice/apperr"
)

// ParseForm reads an attribute set from submitted form values. Numeric fields
// follow "value or 0": an empty or missing field is 0, a malformed one is a
// Parse error naming the form key. Integer fields reject fractional input.
// NaN and infinities are malformed. Empty categorical fields are absent. Keys outside the catalog are ignored.
func ParseForm(form url.Values) (Attributes, error) {
	const op = "housing.ParseForm"

	var (
		attrs Attributes
		errs  error
	)
	rv := reflect.ValueOf(&attrs).Elem()
	for _, col := range catalog {
		raw := strings.TrimSpace(form.Get(col.FormKey))
		field := rv.Field(col.field)

		if col.Kind == Categorical {
			if raw != "" {
				field.Set(reflect.ValueOf(Ptr(raw)))
			}
			continue
		}

		value, err := parseNumber(col, raw)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		field.Set(reflect.ValueOf(Ptr(value)))
	}
	if errs != nil {
		return Attributes{}, apperr.E(apperr.Parse, op, errs)
	}
	return attrs, nil
}

func parseNumber(col Column, raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	if col.Integer {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, apperr.Errorf(apperr.Parse, "housing.parseNumber", "field %s: %q is not an integer", col.FormKey, raw)
		}
		return float64(n), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Errorf(apperr.Parse, "housing.parseNumber", "field %s: %q is not a number", col.FormKey, raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperr.Errorf(apperr.Parse, "housing.parseNumber", "field %s: %q is not a finite number", col.FormKey, raw)
	}
	return f, nil
}
