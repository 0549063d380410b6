package api

import (
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/schema"
	"github.com/MM25Zamanian/prismate/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// reserved query keys that are not filters.
var reserved = map[string]bool{
	"_limit": true, "limit": true,
	"_offset": true, "offset": true,
	"_sort": true, "sort": true,
	"_select": true, "_include": true,
}

// filter operators accepted as field__op=value.
var operators = map[string]string{
	"eq":         "equals",
	"ne":         "not",
	"in":         "in",
	"nin":        "notIn",
	"gt":         "gt",
	"gte":        "gte",
	"lt":         "lt",
	"lte":        "lte",
	"contains":   "contains",
	"icontains":  "contains",
	"startsWith": "startsWith",
	"endsWith":   "endsWith",
}

// parseListParams turns list query parameters into QueryOptions for m:
//
//	?_limit=20&_offset=40&_sort=-createdAt,name
//	?status__in=NEW,PAID&total__gte=100&name__icontains=ann
func parseListParams(m *schema.ModelSchema, q url.Values) (store.QueryOptions, error) {
	limit := defaultLimit
	if v := first(q, "_limit", "limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxLimit {
			return store.QueryOptions{}, paramError(m, "_limit", fmt.Sprintf("must be an integer between 0 and %d", maxLimit))
		}
		limit = n
	}
	offset := 0
	if v := first(q, "_offset", "offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return store.QueryOptions{}, paramError(m, "_offset", "must be a non-negative integer")
		}
		offset = n
	}

	where, err := buildWhere(m, q)
	if err != nil {
		return store.QueryOptions{}, err
	}
	opts := store.QueryOptions{Where: where, Take: &limit, Skip: &offset}

	if v := first(q, "_sort", "sort"); v != "" {
		order, err := buildOrder(m, v)
		if err != nil {
			return store.QueryOptions{}, err
		}
		opts.OrderBy = order
	}
	sel, inc, err := shapeParams(m, q)
	if err != nil {
		return store.QueryOptions{}, err
	}
	opts.Select, opts.Include = sel, inc
	return opts, nil
}

// shapeParams reads _select and _include. Both are comma separated field
// lists; _include only accepts relation fields.
func shapeParams(m *schema.ModelSchema, q url.Values) (any, any, error) {
	var sel, inc map[string]any
	for _, name := range splitList(q.Get("_select")) {
		f, ok := m.Field(name)
		if !ok {
			return nil, nil, unknownField(m, name)
		}
		if sel == nil {
			sel = map[string]any{}
		}
		sel[f.Name] = true
	}
	for _, name := range splitList(q.Get("_include")) {
		f, ok := m.Field(name)
		if !ok || !f.IsRelation() {
			return nil, nil, paramError(m, name, "is not a relation")
		}
		if inc == nil {
			inc = map[string]any{}
		}
		inc[f.Name] = true
	}
	var s, i any
	if sel != nil {
		s = sel
	}
	if inc != nil {
		i = inc
	}
	return s, i, nil
}

func buildOrder(m *schema.ModelSchema, raw string) ([]any, error) {
	var out []any
	for _, p := range splitList(raw) {
		dir := "asc"
		if strings.HasPrefix(p, "-") {
			dir = "desc"
			p = p[1:]
		} else {
			p = strings.TrimPrefix(p, "+")
		}
		f, ok := m.Field(p)
		if !ok {
			return nil, unknownField(m, p)
		}
		out = append(out, map[string]any{f.Name: dir})
	}
	return out, nil
}

// buildWhere collects field filters. Conditions on the same field merge
// into one operator map.
func buildWhere(m *schema.ModelSchema, q url.Values) (map[string]any, error) {
	keys := make([]string, 0, len(q))
	for k := range q {
		if !reserved[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	where := map[string]any{}
	for _, key := range keys {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			continue
		}
		name, op := key, "eq"
		if i := strings.LastIndex(key, "__"); i > 0 {
			name, op = key[:i], key[i+2:]
		}
		raw := op
		op, ok := canonicalOp(raw)
		if !ok {
			return nil, paramError(m, key, fmt.Sprintf("unknown operator %q", raw))
		}
		f, ok := m.Field(name)
		if !ok {
			return nil, unknownField(m, name)
		}
		if f.Kind == schema.KindObject {
			return nil, paramError(m, f.Name, "relation fields cannot be filtered")
		}

		ops, _ := where[f.Name].(map[string]any)
		if ops == nil {
			ops = map[string]any{}
		}
		target := operators[op]
		switch op {
		case "in", "nin":
			var vals []any
			for _, part := range splitList(v) {
				tv, err := typed(m, f, part)
				if err != nil {
					return nil, err
				}
				vals = append(vals, tv)
			}
			ops[target] = vals
		case "contains", "icontains", "startsWith", "endsWith":
			ops[target] = v
			if op == "icontains" {
				ops["mode"] = "insensitive"
			}
		default:
			tv, err := typed(m, f, v)
			if err != nil {
				return nil, err
			}
			ops[target] = tv
		}
		where[f.Name] = ops
	}
	if len(where) == 0 {
		return nil, nil
	}
	return where, nil
}

// canonicalOp matches operators case-insensitively.
func canonicalOp(op string) (string, bool) {
	if _, ok := operators[op]; ok {
		return op, true
	}
	for k := range operators {
		if strings.EqualFold(k, op) {
			return k, true
		}
	}
	return "", false
}

// typed converts a query string value to the field's scalar type.
func typed(m *schema.ModelSchema, f schema.FieldMetadata, s string) (any, error) {
	if s == "null" && !f.IsRequired {
		return nil, nil
	}
	switch f.Type {
	case "Int":
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, typeError(m, f, "integer", s)
		}
		return n, nil
	case "BigInt":
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, typeError(m, f, "integer", s)
		}
		if n.IsInt64() {
			return n.Int64(), nil
		}
		return n, nil
	case "Float", "Decimal":
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, typeError(m, f, "number", s)
		}
		return n, nil
	case "Boolean":
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, typeError(m, f, "boolean", s)
		}
		return b, nil
	case "DateTime":
		for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, typeError(m, f, "date", s)
	}
	return s, nil
}

func first(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func paramError(m *schema.ModelSchema, path, msg string) error {
	return &apperrors.ValidationError{
		Model:  m.Name(),
		Issues: apperrors.Issues{{Path: path, Code: codeBadParam, Message: msg}},
	}
}

func unknownField(m *schema.ModelSchema, name string) error {
	return &apperrors.ValidationError{
		Model:  m.Name(),
		Issues: apperrors.Issues{{Path: name, Code: codeUnknownField, Message: "unknown field"}},
	}
}

func typeError(m *schema.ModelSchema, f schema.FieldMetadata, want, got string) error {
	return &apperrors.ValidationError{
		Model: m.Name(),
		Issues: apperrors.Issues{{
			Path:    f.Name,
			Code:    apperrors.CodeInvalidType,
			Message: fmt.Sprintf("expected %s, received %q", want, got),
		}},
	}
}

// Issue codes for query parameters.
const (
	codeBadParam     = "invalid_param"
	codeUnknownField = "unknown_field"
)
