package dsl

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	entityRe      = regexp.MustCompile(`^entity\s+(\w+):`)
	fieldRe       = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	enumRe        = regexp.MustCompile(`^enum\[(.*)\]$`)
	refRe         = regexp.MustCompile(`^ref\[([A-Za-z0-9_.]+)\]$`)
	arrayRe       = regexp.MustCompile(`^array\[(.+)\]$`)
	moduleRe      = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
	constraintsRe = regexp.MustCompile(`^\s*constraints\s*:\s*$`)
	uniqueRe      = regexp.MustCompile(`^\s*unique\s*\(\s*([^)]+)\s*\)\s*$`)
)

// scalar type names of the line format mapped to description types
var dslScalars = map[string]string{
	"string":   "String",
	"text":     "String",
	"int":      "Int",
	"bigint":   "BigInt",
	"float":    "Float",
	"decimal":  "Decimal",
	"bool":     "Boolean",
	"date":     "DateTime",
	"datetime": "DateTime",
	"json":     "Json",
	"bytes":    "Bytes",
}

var onDeleteActions = map[string]string{
	"cascade":   "Cascade",
	"restrict":  "Restrict",
	"set_null":  "SetNull",
	"no_action": "NoAction",
}

// optionTokens splits the option tail of a field line on blanks and
// commas. Quoted values and bracketed lists stay whole, and a '#' outside
// them starts a comment.
func optionTokens(s string) []string {
	var (
		out   []string
		tok   strings.Builder
		quote rune
		depth int
	)
	emit := func() {
		if tok.Len() > 0 {
			out = append(out, tok.String())
			tok.Reset()
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case depth > 0:
			switch r {
			case '[':
				depth++
			case ']':
				depth--
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[':
			depth++
		case r == '#':
			emit()
			return out
		case r == ' ' || r == '\t' || r == ',':
			emit()
			continue
		}
		tok.WriteRune(r)
	}
	emit()
	return out
}

// ParseDSL reads the line-oriented entity format:
//
//	module shop
//	entity Order:
//	  number: int required unique
//	  status: enum[NEW, PAID] default=NEW
//	  customer: ref[Customer] required on_delete=cascade
//	  constraints:
//	    unique(number, customer)
//
// Enum fields get a synthesized enum named <Entity><Field>. A ref field
// becomes a relation plus a scalar "<name>Id" foreign key. Entities
// without an id field get a generated String id.
func ParseDSL(r io.Reader) (*Description, error) {
	desc := &Description{}
	var current *Model
	currentModule := ""
	inConstraints := false
	lineNo := 0

	closeEntity := func() {
		if current != nil {
			ensureID(current)
			desc.Models = append(desc.Models, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}

		if m := entityRe.FindStringSubmatch(line); m != nil {
			closeEntity()
			current = &Model{Name: m[1], Module: currentModule}
			inConstraints = false
			continue
		}
		if current == nil {
			continue
		}

		if constraintsRe.MatchString(line) {
			inConstraints = true
			continue
		}
		if inConstraints {
			if m := uniqueRe.FindStringSubmatch(line); m != nil {
				set := splitList(m[1])
				if len(set) > 0 {
					current.UniqueFields = append(current.UniqueFields, set)
				}
				continue
			}
			inConstraints = false
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: cannot parse %q", lineNo, line)
		}
		fields, enum, err := parseFieldLine(current.Name, m[1], m[2], m[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		current.Fields = append(current.Fields, fields...)
		if enum != nil {
			desc.Enums = append(desc.Enums, *enum)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	closeEntity()
	resolveForeignKeys(desc)
	return desc, nil
}

func parseFieldLine(entity, name, rawType, tail string) ([]Field, *Enum, error) {
	// glue "enum[A, B]" that the field regexp cut at the first blank
	for !balanced(rawType) {
		idx := strings.Index(tail, "]")
		if idx < 0 {
			return nil, nil, fmt.Errorf("field %q: unterminated type %q", name, rawType)
		}
		rawType += tail[:idx+1]
		tail = tail[idx+1:]
	}

	tail = strings.TrimSpace(tail)
	if strings.HasPrefix(strings.ToLower(tail), "options:") {
		tail = tail[len("options:"):]
	}
	opts := parseOptions(optionTokens(tail))

	f := Field{Name: name, Kind: KindScalar}
	elem := rawType
	if mm := arrayRe.FindStringSubmatch(rawType); mm != nil {
		f.IsList = true
		elem = strings.TrimSpace(mm[1])
	}

	var enum *Enum
	var fk *Field
	switch {
	case enumRe.MatchString(elem):
		values := splitList(enumRe.FindStringSubmatch(elem)[1])
		if len(values) == 0 {
			return nil, nil, fmt.Errorf("field %q: empty enum", name)
		}
		enum = &Enum{Name: entity + upperFirst(name)}
		for _, v := range values {
			enum.Values = append(enum.Values, EnumValue{Name: v})
		}
		f.Kind = KindEnum
		f.Type = enum.Name
	case refRe.MatchString(elem):
		target := refRe.FindStringSubmatch(elem)[1]
		if i := strings.LastIndexByte(target, '.'); i >= 0 {
			target = target[i+1:]
		}
		f.Kind = KindObject
		f.Type = target
		f.RelationName = entity + "To" + target + upperFirst(name)
		if !f.IsList {
			fkName := name + "Id"
			f.RelationFromFields = []string{fkName}
			f.RelationToFields = []string{"id"}
			fk = &Field{Name: fkName, Kind: KindScalar, Type: "String"}
		}
	default:
		t, ok := dslScalars[strings.ToLower(elem)]
		if !ok {
			return nil, nil, fmt.Errorf("field %q: unknown type %q", name, elem)
		}
		f.Type = t
	}

	for k, v := range opts {
		switch k {
		case "required":
			f.IsRequired = v == "true"
		case "unique":
			f.IsUnique = v == "true"
		case "id", "primary":
			f.IsID = v == "true"
			f.IsRequired = f.IsRequired || f.IsID
		case "readonly":
			f.IsReadOnly = v == "true"
		case "default":
			f.HasDefaultValue = true
			f.Default = defaultValue(f.Type, v)
		case "on_delete":
			action, ok := onDeleteActions[strings.ToLower(v)]
			if !ok {
				return nil, nil, fmt.Errorf("field %q: unknown on_delete %q", name, v)
			}
			f.RelationOnDelete = action
		}
	}

	if fk == nil {
		return []Field{f}, enum, nil
	}
	fk.IsRequired = f.IsRequired
	return []Field{f, *fk}, enum, nil
}

func parseOptions(tokens []string) map[string]string {
	out := map[string]string{}
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !strings.Contains(tok, "=") {
			out[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if len(v) >= 2 {
			if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
				v = v[1 : len(v)-1]
			}
		}
		if k != "" {
			out[k] = v
		}
	}
	return out
}

func defaultValue(typ, raw string) any {
	switch typ {
	case "Int":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case "Float", "Decimal":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "Boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

func ensureID(m *Model) {
	for _, f := range m.Fields {
		if f.IsID {
			return
		}
	}
	id := Field{Name: "id", Kind: KindScalar, Type: "String", IsID: true, IsRequired: true, HasDefaultValue: true, Default: "ulid"}
	m.Fields = append([]Field{id}, m.Fields...)
}

// resolveForeignKeys gives each generated "<ref>Id" column the type of the
// target's id field.
func resolveForeignKeys(d *Description) {
	idTypes := make(map[string]string, len(d.Models))
	for _, m := range d.Models {
		for _, f := range m.Fields {
			if f.IsID {
				idTypes[m.Name] = f.Type
				break
			}
		}
	}
	for mi := range d.Models {
		fields := d.Models[mi].Fields
		for _, rel := range fields {
			if rel.Kind != KindObject || len(rel.RelationFromFields) != 1 {
				continue
			}
			t, ok := idTypes[rel.Type]
			if !ok {
				continue
			}
			for fi := range fields {
				if fields[fi].Name == rel.RelationFromFields[0] {
					fields[fi].Type = t
				}
			}
		}
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func balanced(s string) bool {
	return strings.Count(s, "[") == strings.Count(s, "]")
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
