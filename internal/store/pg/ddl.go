package pg

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/MM25Zamanian/prismate/internal/schema"
)

// DDL step keys. ApplyDDL runs steps in key order, so tables exist before
// foreign keys reference them.
const (
	StepTables      = "000_schemas_and_tables"
	StepForeignKeys = "200_foreign_keys"
)

var columnTypes = map[string]string{
	"String":   "text",
	"Int":      "bigint",
	"BigInt":   "bigint",
	"Float":    "double precision",
	"Decimal":  "numeric",
	"Boolean":  "boolean",
	"DateTime": "timestamp with time zone",
	"Json":     "jsonb",
	"Bytes":    "bytea",
}

var referentialActions = map[string]string{
	"Cascade":    "cascade",
	"Restrict":   "restrict",
	"SetNull":    "set null",
	"SetDefault": "set default",
	"NoAction":   "no action",
}

func mapType(f schema.FieldMetadata) (string, error) {
	if f.IsList {
		// lists of scalars and enums are stored as json arrays
		return "jsonb", nil
	}
	if f.Kind == schema.KindEnum {
		return "text", nil
	}
	t, ok := columnTypes[f.Type]
	if !ok {
		return "", fmt.Errorf("unknown type: %s", f.Type)
	}
	return t, nil
}

// defaultName returns the generator name of a default such as "now" or
// {"name": "autoincrement", "args": []}.
func defaultName(v any) string {
	if m, ok := v.(map[string]any); ok {
		v = m["name"]
	}
	s, _ := v.(string)
	return strings.TrimSuffix(strings.ToLower(s), "()")
}

// generated reports whether the application supplies the value at insert.
func generated(f schema.FieldMetadata) bool {
	switch defaultName(f.Default) {
	case "uuid", "cuid", "ulid":
		return f.HasDefaultValue
	}
	return false
}

func autoincrement(f schema.FieldMetadata) bool {
	return f.HasDefaultValue && defaultName(f.Default) == "autoincrement"
}

func literal(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(x), "'", "''") + "'"
	}
}

func columnDef(f schema.FieldMetadata, enums map[string][]string) (string, error) {
	typ, err := mapType(f)
	if err != nil {
		return "", err
	}
	col := sqlIdent(columnName(f))
	parts := []string{col, typ}
	switch {
	case autoincrement(f):
		parts = append(parts, "generated by default as identity")
	case f.HasDefaultValue && defaultName(f.Default) == "now":
		parts = append(parts, "default now()")
	case f.HasDefaultValue && !generated(f) && f.Default != nil && !f.IsList && typ != "jsonb":
		parts = append(parts, "default "+literal(f.Default))
	}
	if f.IsID {
		parts = append(parts, "primary key")
	} else if f.IsRequired {
		parts = append(parts, "not null")
	}
	if f.Kind == schema.KindEnum && !f.IsList {
		if values := enums[f.Type]; len(values) > 0 {
			quoted := make([]string, len(values))
			for i, v := range values {
				quoted[i] = literal(v)
			}
			parts = append(parts, fmt.Sprintf("check (%s in (%s))", col, strings.Join(quoted, ", ")))
		}
	}
	return strings.Join(parts, " "), nil
}

// GenerateDDL renders idempotent DDL for every model of reg: schemas,
// tables and unique indexes first, then foreign keys.
func GenerateDDL(reg *schema.Registry) (map[string]string, error) {
	out := make(map[string]string, 2)
	enums := reg.Enums()

	var tables strings.Builder
	seenSchemas := map[string]struct{}{}
	type fkStmt struct {
		table, name, cols, refTable, refCols, onDelete, onUpdate string
	}
	var fks []fkStmt

	for _, name := range reg.Models() {
		m, _ := reg.Model(name)
		if s := schemaName(m); s != "" {
			if _, ok := seenSchemas[s]; !ok {
				fmt.Fprintf(&tables, "create schema if not exists %s;\n", sqlIdent(s))
				seenSchemas[s] = struct{}{}
			}
		}
		tbl := tableName(m)

		var cols []string
		seen := map[string]string{}
		for _, f := range m.Fields() {
			if !stored(f) {
				continue
			}
			col := columnName(f)
			if prev, dup := seen[col]; dup {
				return nil, fmt.Errorf("%s: fields %q and %q map to column %q", m.DBName(), prev, f.Name, col)
			}
			seen[col] = f.Name
			def, err := columnDef(f, enums)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", m.DBName(), f.Name, err)
			}
			cols = append(cols, def)
		}
		fmt.Fprintf(&tables, "create table if not exists %s (\n  %s\n);\n", qualified(m), strings.Join(cols, ",\n  "))

		for _, f := range m.Fields() {
			if f.IsUnique && !f.IsID && stored(f) {
				fmt.Fprintf(&tables, "create unique index if not exists %s on %s(%s);\n",
					sqlIdent(tbl+"_"+columnName(f)+"_uq"), qualified(m), sqlIdent(columnName(f)))
			}
		}
		for _, set := range m.UniqueFields() {
			if len(set) == 0 {
				continue
			}
			idx, parts, err := columns(m, set)
			if err != nil {
				return nil, fmt.Errorf("%s unique: %w", m.DBName(), err)
			}
			fmt.Fprintf(&tables, "create unique index if not exists %s on %s(%s);\n",
				sqlIdent(tbl+"_"+strings.Join(idx, "_")+"_uq"), qualified(m), strings.Join(parts, ", "))
		}

		for _, rel := range m.Relations() {
			if len(rel.RelationFromFields) == 0 {
				continue
			}
			target, ok := reg.Model(rel.Target)
			if !ok {
				continue
			}
			from, fromCols, err := columns(m, rel.RelationFromFields)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", m.DBName(), rel.Name, err)
			}
			_, toCols, err := columns(target, rel.RelationToFields)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", m.DBName(), rel.Name, err)
			}
			onDelete := referentialActions[rel.RelationOnDelete]
			if onDelete == "" {
				onDelete = "restrict"
			}
			fks = append(fks, fkStmt{
				table:    qualified(m),
				name:     tbl + "_" + strings.Join(from, "_") + "_fk",
				cols:     strings.Join(fromCols, ", "),
				refTable: qualified(target),
				refCols:  strings.Join(toCols, ", "),
				onDelete: onDelete,
				onUpdate: referentialActions[rel.RelationOnUpdate],
			})
		}
	}
	out[StepTables] = tables.String()

	sort.SliceStable(fks, func(i, j int) bool { return fks[i].name < fks[j].name })
	var fkSQL strings.Builder
	for _, fk := range fks {
		fmt.Fprintf(&fkSQL, "alter table %s add constraint %s foreign key (%s) references %s(%s) on delete %s",
			fk.table, sqlIdent(fk.name), fk.cols, fk.refTable, fk.refCols, fk.onDelete)
		if fk.onUpdate != "" {
			fmt.Fprintf(&fkSQL, " on update %s", fk.onUpdate)
		}
		fkSQL.WriteString(";\n")
	}
	if fkSQL.Len() > 0 {
		out[StepForeignKeys] = fkSQL.String()
	}
	return out, nil
}

// columns resolves field names of m to bare and quoted column names.
func columns(m *schema.ModelSchema, fields []string) ([]string, []string, error) {
	bare := make([]string, 0, len(fields))
	quoted := make([]string, 0, len(fields))
	for _, name := range fields {
		f, ok := m.Field(name)
		if !ok {
			return nil, nil, fmt.Errorf("unknown field %q", name)
		}
		bare = append(bare, columnName(f))
		quoted = append(quoted, sqlIdent(columnName(f)))
	}
	return bare, quoted, nil
}
