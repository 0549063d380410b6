package store

import (
	"fmt"
	"sort"
	"strings"
)

// SortKey is one ORDER BY term.
type SortKey struct {
	Field string
	Desc  bool
}

// ParseOrderBy reads {"f": "asc"}, [{"f": "desc"}, ...] or "-f,g".
// Keys of a single map are taken in name order.
func ParseOrderBy(orderBy any) []SortKey {
	var keys []SortKey
	add := func(m map[string]any) {
		names := make([]string, 0, len(m))
		for k := range m {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			keys = append(keys, SortKey{Field: k, Desc: strings.EqualFold(fmt.Sprint(m[k]), "desc")})
		}
	}
	switch x := orderBy.(type) {
	case map[string]any:
		add(x)
	case []map[string]any:
		for _, m := range x {
			add(m)
		}
	case []any:
		for _, it := range x {
			if m, ok := it.(map[string]any); ok {
				add(m)
			}
		}
	case string:
		for _, p := range strings.Split(x, ",") {
			p = strings.TrimSpace(p)
			desc := strings.HasPrefix(p, "-")
			p = strings.TrimLeft(p, "+-")
			if p != "" {
				keys = append(keys, SortKey{Field: p, Desc: desc})
			}
		}
	}
	return keys
}

// Selection reads a {"field": true} selector. Non-boolean values count as
// selected, so nested {"select": ...} forms keep the key. Nil means no
// selector was given.
func Selection(v any) map[string]bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, on := range m {
		if b, isBool := on.(bool); !isBool || b {
			out[k] = true
		}
	}
	return out
}

// SelectedFields returns the keys of a selector in name order.
func SelectedFields(v any) []string {
	m := Selection(v)
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
