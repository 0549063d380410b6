package validator

import (
	"github.com/MM25Zamanian/prismate/internal/apperrors"
)

// Field is a named entry of an Object validator.
type Field struct {
	Name      string
	Validator Validator
}

// Object validates a map against named fields. Keys with no field are
// dropped from the output.
type Object struct {
	fields []Field
}

func NewObject(fields []Field) *Object {
	return &Object{fields: append([]Field(nil), fields...)}
}

// Fields returns field names in declaration order.
func (o *Object) Fields() []string {
	out := make([]string, len(o.fields))
	for i, f := range o.fields {
		out[i] = f.Name
	}
	return out
}

func (o *Object) Validate(v any, path string) (any, apperrors.Issues) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalidType(path, "object", v)
	}

	out := make(map[string]any, len(o.fields))
	var issues apperrors.Issues
	for _, f := range o.fields {
		p := join(path, f.Name)
		raw, present := m[f.Name]
		if !present {
			if !isOmittable(f.Validator) {
				issues = append(issues, apperrors.Issue{Path: p, Code: apperrors.CodeRequired, Message: "is required"})
			}
			continue
		}
		val, is := f.Validator.Validate(raw, p)
		if len(is) > 0 {
			issues = append(issues, is...)
			continue
		}
		out[f.Name] = val
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return out, nil
}

// Partial returns a copy in which every field may be omitted.
func (o *Object) Partial() *Object {
	fields := make([]Field, len(o.fields))
	for i, f := range o.fields {
		fields[i] = Field{Name: f.Name, Validator: Optional(f.Validator)}
	}
	return &Object{fields: fields}
}

// Omit returns a copy without the named fields.
func (o *Object) Omit(names ...string) *Object {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	fields := make([]Field, 0, len(o.fields))
	for _, f := range o.fields {
		if !skip[f.Name] {
			fields = append(fields, f)
		}
	}
	return &Object{fields: fields}
}

// Check validates a whole payload and wraps the result in an Outcome.
func (o *Object) Check(data any) Outcome {
	val, issues := o.Validate(data, "")
	if len(issues) > 0 {
		return Failure(issues)
	}
	return Success(val.(map[string]any))
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
