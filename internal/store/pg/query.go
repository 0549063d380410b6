package pg

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/MM25Zamanian/prismate/internal/schema"
	"github.com/MM25Zamanian/prismate/internal/store"
)

// builder accumulates positional arguments for one statement.
type builder struct {
	model *schema.ModelSchema
	args  []any
}

func newBuilder(m *schema.ModelSchema) *builder { return &builder{model: m} }

func (b *builder) bind(f schema.FieldMetadata, v any) (string, error) {
	enc, err := encode(f, v)
	if err != nil {
		return "", err
	}
	b.args = append(b.args, enc)
	return "$" + strconv.Itoa(len(b.args)), nil
}

func (b *builder) column(name string) (schema.FieldMetadata, string, error) {
	f, ok := b.model.Field(name)
	if !ok || !stored(f) {
		return schema.FieldMetadata{}, "", fmt.Errorf("%s has no column for %q", b.model.Name(), name)
	}
	return f, sqlIdent(columnName(f)), nil
}

// where renders a Prisma-style filter as a boolean SQL expression. An empty
// filter is "true".
func (b *builder) where(w map[string]any) (string, error) {
	if len(w) == 0 {
		return "true", nil
	}
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		cond := w[key]
		switch key {
		case "AND", "OR", "NOT":
			var subs []string
			for _, sub := range subClauses(cond) {
				s, err := b.where(sub)
				if err != nil {
					return "", err
				}
				subs = append(subs, "("+s+")")
			}
			if len(subs) == 0 {
				continue
			}
			switch key {
			case "AND":
				parts = append(parts, strings.Join(subs, " and "))
			case "OR":
				parts = append(parts, "("+strings.Join(subs, " or ")+")")
			default:
				parts = append(parts, "not ("+strings.Join(subs, " or ")+")")
			}
		default:
			f, col, err := b.column(key)
			if err != nil {
				return "", err
			}
			s, err := b.field(f, col, cond)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "true", nil
	}
	return strings.Join(parts, " and "), nil
}

var filterOps = map[string]bool{
	"equals": true, "not": true, "in": true, "notIn": true,
	"lt": true, "lte": true, "gt": true, "gte": true,
	"contains": true, "startsWith": true, "endsWith": true, "mode": true,
}

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

var comparisons = map[string]string{"lt": "<", "lte": "<=", "gt": ">", "gte": ">="}

func (b *builder) field(f schema.FieldMetadata, col string, cond any) (string, error) {
	ops, ok := cond.(map[string]any)
	if !ok || !isOperatorMap(ops) {
		return b.equals(f, col, cond, false)
	}
	fold := ops["mode"] == "insensitive"
	names := make([]string, 0, len(ops))
	for k := range ops {
		names = append(names, k)
	}
	sort.Strings(names)

	var parts []string
	for _, op := range names {
		want := ops[op]
		var (
			s   string
			err error
		)
		switch op {
		case "mode":
			continue
		case "equals":
			s, err = b.equals(f, col, want, fold)
		case "not":
			if sub, isMap := want.(map[string]any); isMap && isOperatorMap(sub) {
				s, err = b.field(f, col, sub)
				s = "not (" + s + ")"
			} else if want == nil {
				s = col + " is not null"
			} else {
				s, err = b.equals(f, col, want, fold)
				s = "(" + s + ") is not true"
			}
		case "in", "notIn":
			list := toList(want)
			if len(list) == 0 {
				if op == "in" {
					s = "false"
				} else {
					s = "true"
				}
				break
			}
			ph := make([]string, 0, len(list))
			for _, v := range list {
				p, bErr := b.bind(f, v)
				if bErr != nil {
					return "", bErr
				}
				ph = append(ph, p)
			}
			neg := ""
			if op == "notIn" {
				neg = "not "
			}
			s = fmt.Sprintf("%s %sin (%s)", col, neg, strings.Join(ph, ", "))
		case "lt", "lte", "gt", "gte":
			var p string
			p, err = b.bind(f, want)
			s = fmt.Sprintf("%s %s %s", col, comparisons[op], p)
		case "contains", "startsWith", "endsWith":
			pattern := escapeLike(fmt.Sprint(want))
			switch op {
			case "contains":
				pattern = "%" + pattern + "%"
			case "startsWith":
				pattern += "%"
			default:
				pattern = "%" + pattern
			}
			b.args = append(b.args, pattern)
			like := "like"
			if fold {
				like = "ilike"
			}
			s = fmt.Sprintf("%s::text %s $%d", col, like, len(b.args))
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "true", nil
	}
	return strings.Join(parts, " and "), nil
}

func (b *builder) equals(f schema.FieldMetadata, col string, want any, fold bool) (string, error) {
	if want == nil {
		return col + " is null", nil
	}
	p, err := b.bind(f, want)
	if err != nil {
		return "", err
	}
	if fold {
		return fmt.Sprintf("lower(%s::text) = lower(%s)", col, p), nil
	}
	return fmt.Sprintf("%s = %s", col, p), nil
}

// orderBy renders ORDER BY terms with nulls last in both directions.
func (b *builder) orderBy(v any) (string, error) {
	keys := store.ParseOrderBy(v)
	if len(keys) == 0 {
		return "", nil
	}
	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		_, col, err := b.column(k.Field)
		if err != nil {
			return "", err
		}
		dir := "asc"
		if k.Desc {
			dir = "desc"
		}
		terms = append(terms, fmt.Sprintf("%s %s nulls last", col, dir))
	}
	return " order by " + strings.Join(terms, ", "), nil
}

func page(skip, take *int) string {
	var s string
	if take != nil && *take >= 0 {
		s += " limit " + strconv.Itoa(*take)
	}
	if skip != nil && *skip > 0 {
		s += " offset " + strconv.Itoa(*skip)
	}
	return s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// encode converts a Go value into something the pgx driver binds for the
// field's column type.
func encode(f schema.FieldMetadata, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f.IsList || f.Type == "Json" {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		return string(raw), nil
	}
	switch f.Type {
	case "Int", "BigInt":
		switch x := v.(type) {
		case float64:
			if x == float64(int64(x)) {
				return int64(x), nil
			}
		case json.Number:
			return x.Int64()
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n, nil
			}
		case *big.Int:
			if x.IsInt64() {
				return x.Int64(), nil
			}
			return x.String(), nil
		}
	case "Decimal":
		if x, ok := v.(*big.Float); ok {
			return x.Text('f', -1), nil
		}
	}
	return v, nil
}

// decode turns a scanned column value back into the field's Go type.
func decode(f schema.FieldMetadata, v any) any {
	if v == nil {
		return nil
	}
	if f.IsList || f.Type == "Json" {
		var raw []byte
		switch x := v.(type) {
		case []byte:
			raw = x
		case string:
			raw = []byte(x)
		default:
			return v
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return string(raw)
		}
		return out
	}
	switch f.Type {
	case "Decimal", "Float":
		switch x := v.(type) {
		case string:
			if n, err := strconv.ParseFloat(x, 64); err == nil {
				return n
			}
		case []byte:
			if n, err := strconv.ParseFloat(string(x), 64); err == nil {
				return n
			}
		}
	case "String":
		if x, ok := v.([]byte); ok {
			return string(x)
		}
	}
	if f.Kind == schema.KindEnum {
		if x, ok := v.([]byte); ok {
			return string(x)
		}
	}
	return v
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
