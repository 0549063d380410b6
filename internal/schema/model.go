package schema

import "slices"

// Field kinds.
const (
	KindScalar      = "scalar"
	KindObject      = "object"
	KindEnum        = "enum"
	KindUnsupported = "unsupported"
)

// FieldMetadata is the frozen description of one model field. Name is the
// canonical key; DBName keeps the declared spelling for storage layers.
type FieldMetadata struct {
	Name               string   `json:"name"`
	DBName             string   `json:"dbName"`
	Type               string   `json:"type"`
	Kind               string   `json:"kind"`
	IsRequired         bool     `json:"isRequired"`
	IsList             bool     `json:"isList"`
	IsUnique           bool     `json:"isUnique"`
	IsID               bool     `json:"isId"`
	IsReadOnly         bool     `json:"isReadOnly,omitempty"`
	RelationName       string   `json:"relationName,omitempty"`
	RelationFromFields []string `json:"relationFromFields,omitempty"`
	RelationToFields   []string `json:"relationToFields,omitempty"`
	RelationOnDelete   string   `json:"relationOnDelete,omitempty"`
	RelationOnUpdate   string   `json:"relationOnUpdate,omitempty"`
	HasDefaultValue    bool     `json:"hasDefaultValue"`
	Default            any      `json:"default,omitempty"`
	// Target is the canonical model name of an object field's type.
	Target string `json:"target,omitempty"`
}

// IsRelation reports whether the field links to another model.
func (f FieldMetadata) IsRelation() bool {
	return f.Kind == KindObject && f.RelationName != ""
}

func (f FieldMetadata) clone() FieldMetadata {
	f.RelationFromFields = slices.Clone(f.RelationFromFields)
	f.RelationToFields = slices.Clone(f.RelationToFields)
	return f
}

// ModelSchema is an ordered, read-only set of fields.
type ModelSchema struct {
	name    string
	dbName  string
	module  string
	fields  []FieldMetadata
	index   map[string]int
	uniques [][]string
}

func (m *ModelSchema) Name() string   { return m.name }
func (m *ModelSchema) DBName() string { return m.dbName }
func (m *ModelSchema) Module() string { return m.module }
func (m *ModelSchema) Len() int       { return len(m.fields) }

// Fields returns a copy of the fields in declaration order.
func (m *ModelSchema) Fields() []FieldMetadata {
	out := make([]FieldMetadata, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.clone()
	}
	return out
}

// FieldNames returns canonical field names in declaration order.
func (m *ModelSchema) FieldNames() []string {
	out := make([]string, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.Name
	}
	return out
}

// Field looks a field up by any spelling of its name.
func (m *ModelSchema) Field(name string) (FieldMetadata, bool) {
	i, ok := m.index[Normalize(name)]
	if !ok {
		return FieldMetadata{}, false
	}
	return m.fields[i].clone(), true
}

// IDField returns the first field flagged as identifier.
func (m *ModelSchema) IDField() (FieldMetadata, bool) {
	for _, f := range m.fields {
		if f.IsID {
			return f.clone(), true
		}
	}
	return FieldMetadata{}, false
}

func (m *ModelSchema) Relations() []FieldMetadata {
	var out []FieldMetadata
	for _, f := range m.fields {
		if f.IsRelation() {
			out = append(out, f.clone())
		}
	}
	return out
}

// UniqueFields returns composite unique constraints as canonical names.
func (m *ModelSchema) UniqueFields() [][]string {
	out := make([][]string, len(m.uniques))
	for i, u := range m.uniques {
		out[i] = slices.Clone(u)
	}
	return out
}
