package dsl

// Description is a raw data-model document. Its shape follows the DMMF
// "datamodel" section so generator output can be loaded as is.
type Description struct {
	Models []Model `json:"models" yaml:"models"`
	Enums  []Enum  `json:"enums,omitempty" yaml:"enums,omitempty"`
}

// Model describes one entity as declared by its source.
type Model struct {
	Name         string     `json:"name" yaml:"name"`
	Module       string     `json:"module,omitempty" yaml:"module,omitempty"`
	Fields       []Field    `json:"fields" yaml:"fields"`
	UniqueFields [][]string `json:"uniqueFields,omitempty" yaml:"uniqueFields,omitempty"`
}

// Field describes one declared field. Kind is scalar, object, enum or unsupported.
type Field struct {
	Name               string   `json:"name" yaml:"name"`
	Kind               string   `json:"kind" yaml:"kind"`
	Type               string   `json:"type" yaml:"type"`
	IsRequired         bool     `json:"isRequired" yaml:"isRequired"`
	IsList             bool     `json:"isList" yaml:"isList"`
	IsUnique           bool     `json:"isUnique" yaml:"isUnique"`
	IsID               bool     `json:"isId" yaml:"isId"`
	IsReadOnly         bool     `json:"isReadOnly,omitempty" yaml:"isReadOnly,omitempty"`
	RelationName       string   `json:"relationName,omitempty" yaml:"relationName,omitempty"`
	RelationFromFields []string `json:"relationFromFields,omitempty" yaml:"relationFromFields,omitempty"`
	RelationToFields   []string `json:"relationToFields,omitempty" yaml:"relationToFields,omitempty"`
	RelationOnDelete   string   `json:"relationOnDelete,omitempty" yaml:"relationOnDelete,omitempty"`
	RelationOnUpdate   string   `json:"relationOnUpdate,omitempty" yaml:"relationOnUpdate,omitempty"`
	HasDefaultValue    bool     `json:"hasDefaultValue" yaml:"hasDefaultValue"`
	Default            any      `json:"default,omitempty" yaml:"default,omitempty"`
}

type Enum struct {
	Name   string      `json:"name" yaml:"name"`
	Values []EnumValue `json:"values" yaml:"values"`
}

type EnumValue struct {
	Name string `json:"name" yaml:"name"`
}

// Field kinds.
const (
	KindScalar      = "scalar"
	KindObject      = "object"
	KindEnum        = "enum"
	KindUnsupported = "unsupported"
)

// ModelNames lists declared model names in order.
func (d *Description) ModelNames() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.Models))
	for _, m := range d.Models {
		out = append(out, m.Name)
	}
	return out
}

// Enum finds an enum by its declared name.
func (d *Description) Enum(name string) (Enum, bool) {
	if d == nil {
		return Enum{}, false
	}
	for _, e := range d.Enums {
		if e.Name == name {
			return e, true
		}
	}
	return Enum{}, false
}

// Merge appends models and enums of other into d.
func (d *Description) Merge(other *Description) {
	if other == nil {
		return
	}
	d.Models = append(d.Models, other.Models...)
	d.Enums = append(d.Enums, other.Enums...)
}
