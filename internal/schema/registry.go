package schema

import (
	"slices"

	"github.com/jinzhu/inflection"

	"github.com/MM25Zamanian/prismate/internal/dsl"
)

// scalarTypes are the built-in field types of a description.
var scalarTypes = map[string]bool{
	"String": true, "Int": true, "Float": true, "BigInt": true, "DateTime": true,
	"Boolean": true, "Json": true, "Bytes": true, "Decimal": true,
}

// Registry maps canonical model names to their schemas. It has no
// mutating methods; a changed description means a new Registry.
type Registry struct {
	order  []string
	models map[string]*ModelSchema
	enums  map[string][]string
}

// BuildRegistry extracts field metadata for every model that appears both
// in desc and in known. A nil description or one without models yields an
// empty registry.
func BuildRegistry(desc *dsl.Description, known []string) *Registry {
	r := &Registry{
		models: map[string]*ModelSchema{},
		enums:  map[string][]string{},
	}
	if desc == nil || len(desc.Models) == 0 {
		return r
	}

	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[Normalize(k)] = true
	}
	modelNames := make(map[string]bool, len(desc.Models))
	for _, m := range desc.Models {
		modelNames[m.Name] = true
	}
	enumNames := make(map[string]bool, len(desc.Enums))
	for _, e := range desc.Enums {
		values := make([]string, 0, len(e.Values))
		for _, v := range e.Values {
			values = append(values, v.Name)
		}
		r.enums[e.Name] = values
		enumNames[e.Name] = true
	}

	for _, m := range desc.Models {
		name := Normalize(m.Name)
		if name == "" || !allowed[name] {
			continue
		}
		if _, dup := r.models[name]; dup {
			continue
		}
		ms := &ModelSchema{
			name:   name,
			dbName: m.Name,
			module: m.Module,
			index:  make(map[string]int, len(m.Fields)),
		}
		for _, f := range m.Fields {
			fm := extractField(f, modelNames, enumNames)
			if fm.Name == "" {
				continue
			}
			if _, dup := ms.index[fm.Name]; dup {
				continue
			}
			ms.index[fm.Name] = len(ms.fields)
			ms.fields = append(ms.fields, fm)
		}
		for _, set := range m.UniqueFields {
			u := make([]string, 0, len(set))
			for _, n := range set {
				u = append(u, Normalize(n))
			}
			ms.uniques = append(ms.uniques, u)
		}
		r.order = append(r.order, name)
		r.models[name] = ms
	}
	return r
}

func extractField(f dsl.Field, models, enums map[string]bool) FieldMetadata {
	fm := FieldMetadata{
		Name:               Normalize(f.Name),
		DBName:             f.Name,
		Type:               f.Type,
		Kind:               f.Kind,
		IsRequired:         f.IsRequired || f.IsID,
		IsList:             f.IsList,
		IsUnique:           f.IsUnique,
		IsID:               f.IsID,
		IsReadOnly:         f.IsReadOnly,
		RelationName:       f.RelationName,
		RelationOnDelete:   f.RelationOnDelete,
		RelationOnUpdate:   f.RelationOnUpdate,
		HasDefaultValue:    f.HasDefaultValue,
		Default:            f.Default,
		RelationFromFields: normalizeAll(f.RelationFromFields),
		RelationToFields:   normalizeAll(f.RelationToFields),
	}
	if fm.Kind == "" {
		fm.Kind = inferKind(f.Type, models, enums)
	}
	if fm.Kind == KindObject {
		fm.Target = Normalize(f.Type)
	}
	return fm
}

func inferKind(typ string, models, enums map[string]bool) string {
	switch {
	case scalarTypes[typ]:
		return KindScalar
	case enums[typ]:
		return KindEnum
	case models[typ]:
		return KindObject
	}
	return KindUnsupported
}

func normalizeAll(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Normalize(n)
	}
	return out
}

// Models returns canonical model names in declaration order.
func (r *Registry) Models() []string {
	return slices.Clone(r.order)
}

func (r *Registry) Len() int { return len(r.order) }

// Model returns the schema for a canonical (or normalizable) model name.
func (r *Registry) Model(name string) (*ModelSchema, bool) {
	m, ok := r.models[Normalize(name)]
	return m, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.models[Normalize(name)]
	return ok
}

// Resolve maps a user supplied name such as "Users" or "blog_posts" to a
// registry key, falling back to the singular form.
func (r *Registry) Resolve(raw string) (string, bool) {
	name := Normalize(raw)
	if _, ok := r.models[name]; ok {
		return name, true
	}
	single := Normalize(inflection.Singular(name))
	if _, ok := r.models[single]; ok {
		return single, true
	}
	return "", false
}

// Enums returns declared enum values keyed by enum name.
func (r *Registry) Enums() map[string][]string {
	out := make(map[string][]string, len(r.enums))
	for k, v := range r.enums {
		out[k] = slices.Clone(v)
	}
	return out
}

func (r *Registry) Enum(name string) ([]string, bool) {
	v, ok := r.enums[name]
	return slices.Clone(v), ok
}
