package schema

import (
	"fmt"

	"github.com/MM25Zamanian/prismate/internal/dsl"
)

// LintIssue is a contradiction found in a raw description.
type LintIssue struct {
	Model   string `json:"model"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i LintIssue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s (%s)", i.Model, i.Message, i.Code)
	}
	return fmt.Sprintf("%s.%s: %s (%s)", i.Model, i.Field, i.Message, i.Code)
}

var referentialActions = map[string]bool{
	"Cascade": true, "Restrict": true, "NoAction": true, "SetNull": true, "SetDefault": true,
}

var knownKinds = map[string]bool{
	KindScalar: true, KindObject: true, KindEnum: true, KindUnsupported: true,
}

// Lint checks a description for problems BuildRegistry would silently
// paper over: duplicates after normalisation, unknown kinds or types,
// dangling relations and conflicting relation options.
func Lint(desc *dsl.Description) []LintIssue {
	if desc == nil {
		return nil
	}
	var issues []LintIssue
	add := func(model, field, code, msg string) {
		issues = append(issues, LintIssue{Model: model, Field: field, Code: code, Message: msg})
	}

	models := map[string]bool{}
	seenModels := map[string]string{}
	for _, m := range desc.Models {
		models[m.Name] = true
		n := Normalize(m.Name)
		if n == "" {
			add(m.Name, "", "model_name_empty", "model name normalises to an empty string")
			continue
		}
		if prev, ok := seenModels[n]; ok {
			add(m.Name, "", "duplicate_model", fmt.Sprintf("model collides with %q as %q", prev, n))
			continue
		}
		seenModels[n] = m.Name
	}
	enums := map[string]bool{}
	for _, e := range desc.Enums {
		enums[e.Name] = true
		if len(e.Values) == 0 {
			add(e.Name, "", "enum_empty", "enum has no values")
		}
	}

	for _, m := range desc.Models {
		seenFields := map[string]string{}
		hasID := false
		for _, f := range m.Fields {
			n := Normalize(f.Name)
			if prev, ok := seenFields[n]; ok {
				add(m.Name, f.Name, "duplicate_field", fmt.Sprintf("field collides with %q as %q", prev, n))
			}
			seenFields[n] = f.Name

			kind := f.Kind
			if kind == "" {
				kind = inferKind(f.Type, models, enums)
			}
			if !knownKinds[kind] {
				add(m.Name, f.Name, "kind_unknown", fmt.Sprintf("unknown field kind %q", f.Kind))
			}
			switch kind {
			case KindScalar:
				if !scalarTypes[f.Type] {
					add(m.Name, f.Name, "type_unsupported", fmt.Sprintf("unsupported scalar type %q", f.Type))
				}
			case KindEnum:
				if !enums[f.Type] {
					add(m.Name, f.Name, "enum_undeclared", fmt.Sprintf("enum %q is not declared", f.Type))
				}
			case KindObject:
				if !models[f.Type] {
					add(m.Name, f.Name, "relation_target_missing", fmt.Sprintf("relation target %q is not declared", f.Type))
				}
				if f.RelationName == "" {
					add(m.Name, f.Name, "relation_name_empty", "object field has no relation name")
				}
			}

			if f.IsID {
				hasID = true
				if !f.IsRequired {
					add(m.Name, f.Name, "id_not_required", "identifier field is not marked required; it will be treated as required")
				}
			}
			if od := f.RelationOnDelete; od != "" {
				if !referentialActions[od] {
					add(m.Name, f.Name, "on_delete_unknown", fmt.Sprintf("unknown onDelete action %q", od))
				}
				if f.IsRequired && od == "SetNull" {
					add(m.Name, f.Name, "required_conflicts_on_delete", "required relation cannot use onDelete SetNull")
				}
			}
			if ou := f.RelationOnUpdate; ou != "" && !referentialActions[ou] {
				add(m.Name, f.Name, "on_update_unknown", fmt.Sprintf("unknown onUpdate action %q", ou))
			}
		}
		if !hasID {
			add(m.Name, "", "id_missing", "model has no identifier field")
		}
	}
	return issues
}
