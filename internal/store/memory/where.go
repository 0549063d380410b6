package memory

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MM25Zamanian/prismate/internal/store"
)

// matches reports whether row satisfies a Prisma-style where clause:
//
//	{"status": "PAID", "total": {"gte": 100}, "OR": [{...}, {...}]}
func matches(row store.Record, where map[string]any) bool {
	for key, cond := range where {
		switch key {
		case "AND":
			for _, sub := range subClauses(cond) {
				if !matches(row, sub) {
					return false
				}
			}
		case "OR":
			subs := subClauses(cond)
			if len(subs) == 0 {
				continue
			}
			hit := false
			for _, sub := range subs {
				if matches(row, sub) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		case "NOT":
			for _, sub := range subClauses(cond) {
				if matches(row, sub) {
					return false
				}
			}
		default:
			got, present := row[key]
			if !present {
				got = nil
			}
			if !matchField(got, cond) {
				return false
			}
		}
	}
	return true
}

func subClauses(v any) []map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return []map[string]any{x}
	case []map[string]any:
		return x
	case []any:
		out := make([]map[string]any, 0, len(x))
		for _, it := range x {
			if m, ok := it.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

var filterOps = map[string]bool{
	"equals": true, "not": true, "in": true, "notIn": true,
	"lt": true, "lte": true, "gt": true, "gte": true,
	"contains": true, "startsWith": true, "endsWith": true, "mode": true,
}

// isOperatorMap tells {"gte": 1} apart from a Json field compared to an object.
func isOperatorMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !filterOps[k] {
			return false
		}
	}
	return true
}

func matchField(got, cond any) bool {
	ops, ok := cond.(map[string]any)
	if !ok || !isOperatorMap(ops) {
		return equal(got, cond)
	}
	fold := ops["mode"] == "insensitive"
	for op, want := range ops {
		switch op {
		case "mode":
			continue
		case "equals":
			if fold {
				if !strings.EqualFold(toString(got), toString(want)) {
					return false
				}
			} else if !equal(got, want) {
				return false
			}
		case "not":
			if sub, isMap := want.(map[string]any); isMap && isOperatorMap(sub) {
				if matchField(got, sub) {
					return false
				}
			} else if equal(got, want) {
				return false
			}
		case "in", "notIn":
			found := false
			for _, w := range toList(want) {
				if equal(got, w) {
					found = true
					break
				}
			}
			if found != (op == "in") {
				return false
			}
		case "lt", "lte", "gt", "gte":
			c, ok := compare(got, want)
			if !ok {
				return false
			}
			switch op {
			case "lt":
				ok = c < 0
			case "lte":
				ok = c <= 0
			case "gt":
				ok = c > 0
			case "gte":
				ok = c >= 0
			}
			if !ok {
				return false
			}
		case "contains", "startsWith", "endsWith":
			s, isStr := got.(string)
			if !isStr {
				return false
			}
			w := toString(want)
			if fold {
				s, w = strings.ToLower(s), strings.ToLower(w)
			}
			var hit bool
			switch op {
			case "contains":
				hit = strings.Contains(s, w)
			case "startsWith":
				hit = strings.HasPrefix(s, w)
			default:
				hit = strings.HasSuffix(s, w)
			}
			if !hit {
				return false
			}
		}
	}
	return true
}

func toList(v any) []any {
	if v == nil {
		return nil
	}
	if l, ok := v.([]any); ok {
		return l
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two scalars of compatible kinds. Two strings always
// compare as text. Numbers compare across Go types, and a string is
// coerced only against a number or time so that ids taken from a URL
// still match.
func compare(a, b any) (int, bool) {
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(sa, sb), true
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	if fa, ok := toNumber(a); ok {
		if fb, ok := toNumber(b); ok {
			return fa.Cmp(fb), true
		}
	}
	if aStr || bStr {
		return 0, false
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0, true
			case !ba:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func toNumber(v any) (*big.Float, bool) {
	f := new(big.Float)
	switch x := v.(type) {
	case int:
		return f.SetInt64(int64(x)), true
	case int32:
		return f.SetInt64(int64(x)), true
	case int64:
		return f.SetInt64(x), true
	case uint64:
		return f.SetUint64(x), true
	case float32:
		return f.SetFloat64(float64(x)), true
	case float64:
		return f.SetFloat64(x), true
	case *big.Int:
		return f.SetInt(x), true
	case json.Number:
		_, ok := f.SetString(x.String())
		return f, ok
	case string:
		if _, err := strconv.ParseFloat(x, 64); err != nil {
			return nil, false
		}
		_, ok := f.SetString(x)
		return f, ok
	}
	return nil, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// sortRows orders rows by keys; nulls sort last in either direction.
func sortRows(rows []store.Record, keys []store.SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			if c := cmpByKey(rows[i], rows[j], k); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func cmpByKey(a, b store.Record, k store.SortKey) int {
	va, vb := a[k.Field], b[k.Field]
	na, nb := va == nil, vb == nil
	if na && nb {
		return 0
	}
	if na != nb {
		if na {
			return 1
		}
		return -1
	}
	rel, ok := compare(va, vb)
	if !ok {
		rel = strings.Compare(toString(va), toString(vb))
	}
	if k.Desc {
		rel = -rel
	}
	return rel
}
