package service

import (
	"errors"
	"fmt"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/cache"
	"github.com/MM25Zamanian/prismate/internal/schema"
)

// GetAvailableModels lists canonical model names in declaration order.
func (s *Service) GetAvailableModels() []string { return s.reg.Models() }

func (s *Service) HasModel(model string) bool { return s.reg.Has(model) }

// ResolveModel maps a route segment such as "Users" to a model name.
func (s *Service) ResolveModel(raw string) (string, bool) { return s.reg.Resolve(raw) }

func (s *Service) GetModelSchema(model string) ([]schema.FieldMetadata, error) {
	m, err := s.model(model)
	if err != nil {
		return nil, err
	}
	return m.Fields(), nil
}

func (s *Service) GetModelFields(model string) ([]string, error) {
	m, err := s.model(model)
	if err != nil {
		return nil, err
	}
	return m.FieldNames(), nil
}

// GetModelDefinition returns the model's definition from the definition
// cache, building it on a miss.
func (s *Service) GetModelDefinition(model string) (schema.Definition, error) {
	name := schema.Normalize(model)
	if def, ok := s.definitions.Get(name); ok {
		return def, nil
	}
	def, ok := s.reg.Definition(name)
	if !ok {
		return schema.Definition{}, &apperrors.SchemaError{Model: model}
	}
	if err := s.definitions.Set(name, def); err != nil {
		return schema.Definition{}, fmt.Errorf("cache definition for %s: %w", name, err)
	}
	return def, nil
}

func (s *Service) ModelSummary() []schema.Summary { return s.reg.Summary() }

func (s *Service) ExportSchema() schema.Export { return s.reg.Export() }

// FieldView is a field as an admin screen shows it.
type FieldView struct {
	schema.FieldMetadata
	Label    string `json:"label"`
	Hidden   bool   `json:"hidden,omitempty"`
	Readonly bool   `json:"readonly,omitempty"`
}

type ModelView struct {
	Name    string      `json:"name"`
	IDField string      `json:"idField,omitempty"`
	Fields  []FieldView `json:"fields"`
}

// GetModelView merges field metadata with the model's field mappings.
// Labels default to the field name.
func (s *Service) GetModelView(model string) (ModelView, error) {
	def, err := s.GetModelDefinition(model)
	if err != nil {
		return ModelView{}, err
	}
	cfg, _ := s.configs.get(def.Name)
	view := ModelView{Name: def.Name, IDField: def.IDField, Fields: make([]FieldView, 0, len(def.Fields))}
	for _, f := range def.Fields {
		fm := cfg.FieldMappings[f.Name]
		label := fm.Alias
		if label == "" {
			label = f.Name
		}
		view.Fields = append(view.Fields, FieldView{
			FieldMetadata: f,
			Label:         label,
			Hidden:        fm.IsHidden(),
			Readonly:      fm.IsReadonly() || f.IsReadOnly,
		})
	}
	return view, nil
}

// Cache names used by CacheStats.
const (
	CacheValidators  = "validators"
	CacheDefinitions = "definitions"
)

func (s *Service) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		CacheValidators:  s.validators.CacheStats(),
		CacheDefinitions: s.definitions.Stats(),
	}
}

func (s *Service) ClearCache() {
	s.validators.ClearCache()
	s.definitions.Clear()
}

// UpdateCacheConfig applies u to both caches.
func (s *Service) UpdateCacheConfig(u cache.Update) error {
	return errors.Join(
		s.validators.UpdateCacheConfig(u),
		s.definitions.UpdateConfig(u),
	)
}
