package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
)

// Validator checks one value and returns its normalised form. path is the
// dotted location used in issues; the root is "".
type Validator interface {
	Validate(value any, path string) (any, apperrors.Issues)
}

// omittable validators accept a missing key inside an object.
type omittable interface {
	omittable() bool
}

func isOmittable(v Validator) bool {
	o, ok := v.(omittable)
	return ok && o.omittable()
}

func invalidType(path, expected string, got any) apperrors.Issues {
	return apperrors.Issues{{
		Path:    path,
		Code:    apperrors.CodeInvalidType,
		Message: fmt.Sprintf("expected %s, received %s", expected, typeName(got)),
	}}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return reflect.TypeOf(v).String()
}

type stringRule struct{}

// String accepts strings only.
func String() Validator { return stringRule{} }

func (stringRule) Validate(v any, path string) (any, apperrors.Issues) {
	s, ok := v.(string)
	if !ok {
		return nil, invalidType(path, "string", v)
	}
	return s, nil
}

type intRule struct{}

// Int accepts integral numbers and yields int64.
func Int() Validator { return intRule{} }

func (intRule) Validate(v any, path string) (any, apperrors.Issues) {
	n, ok := toInt64(v)
	if !ok {
		return nil, invalidType(path, "integer", v)
	}
	return n, nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		if f, err := x.Float64(); err == nil {
			return floatToInt(f)
		}
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

type numberRule struct{}

// Number accepts any finite number and yields float64.
func Number() Validator { return numberRule{} }

func (numberRule) Validate(v any, path string) (any, apperrors.Issues) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil, invalidType(path, "number", v)
		}
		f = parsed
	default:
		n, ok := toInt64(v)
		if !ok {
			return nil, invalidType(path, "number", v)
		}
		f = float64(n)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, invalidType(path, "number", v)
	}
	return f, nil
}

type bigIntRule struct{}

// BigInt accepts integers of any size, including digit strings, and yields *big.Int.
func BigInt() Validator { return bigIntRule{} }

func (bigIntRule) Validate(v any, path string) (any, apperrors.Issues) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			break
		}
		return new(big.Int).Set(x), nil
	case string:
		if n, ok := new(big.Int).SetString(strings.TrimSpace(x), 10); ok {
			return n, nil
		}
	case json.Number:
		if n, ok := new(big.Int).SetString(x.String(), 10); ok {
			return n, nil
		}
	default:
		if n, ok := toInt64(v); ok {
			return big.NewInt(n), nil
		}
	}
	return nil, invalidType(path, "bigint", v)
}

type dateRule struct{}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DateTime accepts time.Time, date strings and epoch milliseconds.
func DateTime() Validator { return dateRule{} }

func (dateRule) Validate(v any, path string) (any, apperrors.Issues) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, apperrors.Issues{{Path: path, Code: apperrors.CodeInvalidType, Message: "invalid date " + strconv.Quote(x)}}
	default:
		if ms, ok := toInt64(v); ok {
			return time.UnixMilli(ms).UTC(), nil
		}
	}
	return nil, invalidType(path, "date", v)
}

type boolRule struct{}

func Boolean() Validator { return boolRule{} }

func (boolRule) Validate(v any, path string) (any, apperrors.Issues) {
	b, ok := v.(bool)
	if !ok {
		return nil, invalidType(path, "boolean", v)
	}
	return b, nil
}

type anyRule struct{}

// Any accepts every value, including a missing one.
func Any() Validator { return anyRule{} }

func (anyRule) Validate(v any, _ string) (any, apperrors.Issues) { return v, nil }
func (anyRule) omittable() bool { return true }

type bytesRule struct{}

// Bytes accepts []byte or string.
func Bytes() Validator { return bytesRule{} }

func (bytesRule) Validate(v any, path string) (any, apperrors.Issues) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return x, nil
	}
	return nil, invalidType(path, "bytes or string", v)
}

type arrayRule struct {
	elem Validator
}

// Array validates every element with elem.
func Array(elem Validator) Validator { return arrayRule{elem: elem} }

func (a arrayRule) Validate(v any, path string) (any, apperrors.Issues) {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case nil:
		return nil, invalidType(path, "array", v)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, invalidType(path, "array", v)
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	out := make([]any, len(items))
	var issues apperrors.Issues
	for i, item := range items {
		val, is := a.elem.Validate(item, fmt.Sprintf("%s[%d]", path, i))
		if len(is) > 0 {
			issues = append(issues, is...)
			continue
		}
		out[i] = val
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return out, nil
}

type optionalRule struct {
	inner Validator
}

// Optional lets an object omit the key. An explicit null still goes to inner.
func Optional(inner Validator) Validator {
	if o, ok := inner.(optionalRule); ok {
		return o
	}
	return optionalRule{inner: inner}
}

func (o optionalRule) Validate(v any, path string) (any, apperrors.Issues) {
	return o.inner.Validate(v, path)
}
func (optionalRule) omittable() bool { return true }

type nullableRule struct {
	inner Validator
}

// Nullable accepts null in addition to what inner accepts.
func Nullable(inner Validator) Validator {
	if n, ok := inner.(nullableRule); ok {
		return n
	}
	return nullableRule{inner: inner}
}

func (n nullableRule) Validate(v any, path string) (any, apperrors.Issues) {
	if v == nil {
		return nil, nil
	}
	return n.inner.Validate(v, path)
}

func (n nullableRule) omittable() bool { return isOmittable(n.inner) }

type idRule struct{}

// relation ids may be strings or integers
func (idRule) Validate(v any, path string) (any, apperrors.Issues) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	if n, ok := toInt64(v); ok {
		return n, nil
	}
	return nil, invalidType(path, "string or integer", v)
}

// RelationStub accepts an object carrying at most an identifier, or
// nothing at all. Related records are never validated in depth.
func RelationStub() Validator {
	return Optional(NewObject([]Field{{Name: "id", Validator: Optional(idRule{})}}))
}
