package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Relation summarises one relation field of a model.
type Relation struct {
	Field    string `json:"field"`
	Target   string `json:"target"`
	IsList   bool   `json:"isList"`
	Name     string `json:"relationName"`
	OnDelete string `json:"onDelete,omitempty"`
}

// Definition is the full introspection view of a model.
type Definition struct {
	Name      string          `json:"name"`
	Module    string          `json:"module,omitempty"`
	IDField   string          `json:"idField,omitempty"`
	Fields    []FieldMetadata `json:"fields"`
	Relations []Relation      `json:"relations"`
	Unique    [][]string      `json:"unique,omitempty"`
}

type Summary struct {
	Name          string `json:"name"`
	FieldCount    int    `json:"fieldCount"`
	RequiredCount int    `json:"requiredCount"`
	RelationCount int    `json:"relationCount"`
	IDField       string `json:"idField,omitempty"`
}

// Export is the serialisable form of a registry.
type Export struct {
	Models     []Definition        `json:"models"`
	Enums      map[string][]string `json:"enums,omitempty"`
	ModelCount int                 `json:"modelCount"`
	FieldCount int                 `json:"fieldCount"`
}

func (r *Registry) Definition(name string) (Definition, bool) {
	m, ok := r.Model(name)
	if !ok {
		return Definition{}, false
	}
	def := Definition{
		Name:      m.Name(),
		Module:    m.Module(),
		Fields:    m.Fields(),
		Relations: []Relation{},
		Unique:    m.UniqueFields(),
	}
	if id, ok := m.IDField(); ok {
		def.IDField = id.Name
	}
	for _, f := range m.Relations() {
		def.Relations = append(def.Relations, Relation{
			Field:    f.Name,
			Target:   f.Target,
			IsList:   f.IsList,
			Name:     f.RelationName,
			OnDelete: f.RelationOnDelete,
		})
	}
	return def, true
}

func (r *Registry) Summary() []Summary {
	out := make([]Summary, 0, len(r.order))
	for _, name := range r.order {
		m := r.models[name]
		s := Summary{Name: name, FieldCount: len(m.fields)}
		for _, f := range m.fields {
			if f.IsRequired {
				s.RequiredCount++
			}
			if f.IsRelation() {
				s.RelationCount++
			}
			if f.IsID && s.IDField == "" {
				s.IDField = f.Name
			}
		}
		out = append(out, s)
	}
	return out
}

func (r *Registry) Export() Export {
	e := Export{Models: make([]Definition, 0, len(r.order)), Enums: r.Enums()}
	for _, name := range r.order {
		def, _ := r.Definition(name)
		e.ModelCount++
		e.FieldCount += len(def.Fields)
		e.Models = append(e.Models, def)
	}
	return e
}

// Checksum is a stable digest of the exported registry.
func (r *Registry) Checksum() (string, error) {
	data, err := json.Marshal(r.Export())
	if err != nil {
		return "", fmt.Errorf("marshal registry: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// PrismaText renders the registry as a Prisma-like schema document.
func (r *Registry) PrismaText() string {
	var b strings.Builder
	for i, name := range r.order {
		if i > 0 {
			b.WriteByte('\n')
		}
		m := r.models[name]
		fmt.Fprintf(&b, "model %s {\n", m.dbName)
		for _, f := range m.fields {
			typ := f.Type
			switch {
			case f.IsList:
				typ += "[]"
			case !f.IsRequired:
				typ += "?"
			}
			line := fmt.Sprintf("  %s %s", f.DBName, typ)
			if f.IsID {
				line += " @id"
			}
			if f.IsUnique {
				line += " @unique"
			}
			if f.IsRelation() && len(f.RelationFromFields) > 0 {
				line += fmt.Sprintf(" @relation(fields: [%s], references: [%s])",
					strings.Join(f.RelationFromFields, ", "), strings.Join(f.RelationToFields, ", "))
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}
