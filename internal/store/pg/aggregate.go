package pg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MM25Zamanian/prismate/internal/schema"
	"github.com/MM25Zamanian/prismate/internal/store"
)

type aggTerm struct {
	group string // "_count", "_sum", ...
	field string
	expr  string
	meta  schema.FieldMetadata
}

var aggFuncs = []struct {
	group, fn string
}{
	{"_sum", "sum"},
	{"_avg", "avg"},
	{"_min", "min"},
	{"_max", "max"},
}

// Aggregate computes all requested aggregates in a single select.
func (d *delegate) Aggregate(ctx context.Context, args store.Args) (map[string]any, error) {
	b := newBuilder(d.m)
	var terms []aggTerm

	countAll := false
	switch sel := args.Count.(type) {
	case nil:
	case bool:
		if sel {
			countAll = true
			terms = append(terms, aggTerm{group: "_count", expr: "count(*)"})
		}
	default:
		for _, name := range store.SelectedFields(sel) {
			if name == "_all" {
				terms = append(terms, aggTerm{group: "_count", field: name, expr: "count(*)"})
				continue
			}
			f, col, err := b.column(name)
			if err != nil {
				return nil, err
			}
			terms = append(terms, aggTerm{group: "_count", field: f.Name, expr: "count(" + col + ")", meta: f})
		}
	}

	groups := map[string]any{"_sum": args.Sum, "_avg": args.Avg, "_min": args.Min, "_max": args.Max}
	for _, fn := range aggFuncs {
		for _, name := range store.SelectedFields(groups[fn.group]) {
			f, col, err := b.column(name)
			if err != nil {
				return nil, err
			}
			terms = append(terms, aggTerm{group: fn.group, field: f.Name, expr: fn.fn + "(" + col + ")", meta: f})
		}
	}
	out := map[string]any{}
	if len(terms) == 0 {
		return out, nil
	}

	cond, err := b.where(args.Where)
	if err != nil {
		return nil, err
	}
	exprs := make([]string, len(terms))
	for i, t := range terms {
		exprs[i] = t.expr
	}
	q := fmt.Sprintf("select %s from %s where %s", strings.Join(exprs, ", "), qualified(d.m), cond)
	rows, err := d.c.db.QueryContext(ctx, q, b.args...)
	if err != nil {
		return nil, d.mapError(err)
	}
	defer rows.Close()

	vals := make([]any, len(terms))
	ptrs := make([]any, len(terms))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, t := range terms {
		v := aggValue(t, vals[i])
		if countAll {
			out["_count"] = v
			continue
		}
		g, ok := out[t.group].(map[string]any)
		if !ok {
			g = map[string]any{}
			out[t.group] = g
		}
		g[t.field] = v
	}
	return out, nil
}

// aggValue converts a scanned aggregate: counts and integer sums are int64,
// averages float64, min and max keep the column type.
func aggValue(t aggTerm, v any) any {
	if v == nil {
		return nil
	}
	switch t.group {
	case "_count":
		n, _ := toInt64(v)
		return n
	case "_avg":
		return toFloat(v)
	case "_sum":
		if t.meta.Type == "Int" || t.meta.Type == "BigInt" {
			if n, ok := toInt64(v); ok {
				return n
			}
		}
		return toFloat(v)
	}
	return decode(t.meta, v)
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case float64:
		return int64(x), x == float64(int64(x))
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat(v any) any {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	case []byte:
		if f, err := strconv.ParseFloat(string(x), 64); err == nil {
			return f
		}
	}
	return v
}
