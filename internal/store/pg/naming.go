package pg

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"

	"github.com/MM25Zamanian/prismate/internal/schema"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// snake turns any spelling of a name into snake_case: "orderItem" and
// "OrderItem" become "order_item".
func snake(name string) string {
	canon := schema.Normalize(name)
	var b strings.Builder
	b.Grow(len(canon) + 4)
	for i, r := range canon {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tableName is the plural snake form of a model name. Plurals that collide
// with SQL keywords get an "e_" prefix.
func tableName(m *schema.ModelSchema) string {
	t := snake(m.DBName())
	if i := strings.LastIndexByte(t, '_'); i >= 0 {
		t = t[:i+1] + inflection.Plural(t[i+1:])
	} else {
		t = inflection.Plural(t)
	}
	if isReserved(t) {
		t = "e_" + t
	}
	return t
}

func columnName(f schema.FieldMetadata) string {
	if f.DBName != "" {
		return snake(f.DBName)
	}
	return snake(f.Name)
}

func schemaName(m *schema.ModelSchema) string {
	if m.Module() == "" {
		return ""
	}
	return strings.ToLower(m.Module())
}

func sqlIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// qualified renders "schema"."table", or just "table" for the default schema.
func qualified(m *schema.ModelSchema) string {
	if s := schemaName(m); s != "" {
		return sqlIdent(s) + "." + sqlIdent(tableName(m))
	}
	return sqlIdent(tableName(m))
}

// stored reports whether a field has a column. Relation fields live in
// their foreign keys.
func stored(f schema.FieldMetadata) bool {
	return f.Kind != schema.KindObject && f.Kind != schema.KindUnsupported
}
