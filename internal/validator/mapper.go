package validator

import "github.com/MM25Zamanian/prismate/internal/schema"

// FieldMapper turns field metadata into a validator.
type FieldMapper func(f schema.FieldMetadata) Validator

// baseTypes maps scalar type names to validators. Types not listed here
// (enums included) validate as strings.
var baseTypes = map[string]func() Validator{
	"String":   String,
	"Int":      Int,
	"Float":    Number,
	"Decimal":  Number,
	"BigInt":   BigInt,
	"DateTime": DateTime,
	"Boolean":  Boolean,
	"Json":     Any,
	"Bytes":    Bytes,
}

// Base returns the validator for a type name.
func Base(typ string) Validator {
	if mk, ok := baseTypes[typ]; ok {
		return mk()
	}
	return String()
}

// MapField is the default FieldMapper.
func MapField(f schema.FieldMetadata) Validator {
	var v Validator
	if f.IsRelation() {
		v = RelationStub()
	} else {
		v = Base(f.Type)
	}

	if f.IsList {
		v = Array(v)
	}

	switch {
	case !f.IsRequired && f.IsList:
		v = Optional(v)
	case !f.IsRequired:
		v = Optional(Nullable(v))
	case f.HasDefaultValue:
		// the store fills it in
		v = Optional(v)
	}
	return v
}

// ModelObject composes field validators for a model in declaration order.
func ModelObject(m *schema.ModelSchema, mapper FieldMapper) *Object {
	if mapper == nil {
		mapper = MapField
	}
	fields := m.Fields()
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, Field{Name: f.Name, Validator: mapper(f)})
	}
	return NewObject(out)
}
