package memory

import (
	"context"

	"github.com/MM25Zamanian/prismate/internal/store"
)

// Aggregate computes _count, _sum, _avg, _min and _max over rows that
// match args.Where. Selectors are {"field": true} maps; _count may also be
// plain true.
func (d *delegate) Aggregate(ctx context.Context, args store.Args) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.c.mu.RLock()
	defer d.c.mu.RUnlock()

	var rows []store.Record
	for _, r := range d.table().rows {
		if matches(r, args.Where) {
			rows = append(rows, r)
		}
	}

	out := map[string]any{}
	switch sel := args.Count.(type) {
	case nil:
	case bool:
		if sel {
			out["_count"] = int64(len(rows))
		}
	default:
		counts := map[string]any{}
		for _, f := range store.SelectedFields(sel) {
			if f == "_all" {
				counts[f] = int64(len(rows))
				continue
			}
			var n int64
			for _, r := range rows {
				if r[f] != nil {
					n++
				}
			}
			counts[f] = n
		}
		out["_count"] = counts
	}

	if fs := store.SelectedFields(args.Sum); len(fs) > 0 {
		res := map[string]any{}
		for _, f := range fs {
			res[f] = sum(rows, f)
		}
		out["_sum"] = res
	}
	if fs := store.SelectedFields(args.Avg); len(fs) > 0 {
		res := map[string]any{}
		for _, f := range fs {
			res[f] = avg(rows, f)
		}
		out["_avg"] = res
	}
	if fs := store.SelectedFields(args.Min); len(fs) > 0 {
		res := map[string]any{}
		for _, f := range fs {
			res[f] = extreme(rows, f, -1)
		}
		out["_min"] = res
	}
	if fs := store.SelectedFields(args.Max); len(fs) > 0 {
		res := map[string]any{}
		for _, f := range fs {
			res[f] = extreme(rows, f, 1)
		}
		out["_max"] = res
	}
	return out, nil
}

// sum keeps integer sums integral; it is nil when no row has a number.
func sum(rows []store.Record, field string) any {
	var (
		ints    int64
		floats  float64
		seen    bool
		isFloat bool
	)
	for _, r := range rows {
		switch x := r[field].(type) {
		case int:
			ints += int64(x)
			seen = true
		case int64:
			ints += x
			seen = true
		case float64:
			floats += x
			seen, isFloat = true, true
		}
	}
	switch {
	case !seen:
		return nil
	case isFloat:
		return floats + float64(ints)
	}
	return ints
}

func avg(rows []store.Record, field string) any {
	var (
		total float64
		n     int
	)
	for _, r := range rows {
		switch x := r[field].(type) {
		case int:
			total += float64(x)
		case int64:
			total += float64(x)
		case float64:
			total += x
		default:
			continue
		}
		n++
	}
	if n == 0 {
		return nil
	}
	return total / float64(n)
}

// extreme returns the smallest (dir < 0) or largest (dir > 0) value.
func extreme(rows []store.Record, field string, dir int) any {
	var best any
	for _, r := range rows {
		v := r[field]
		if v == nil {
			continue
		}
		if best == nil {
			best = v
			continue
		}
		if c, ok := compare(v, best); ok && c*dir > 0 {
			best = v
		}
	}
	return best
}
