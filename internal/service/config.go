package service

import (
	"maps"
	"sync"

	"github.com/MM25Zamanian/prismate/internal/schema"
)

// FieldMapping adjusts how one field is presented and written.
// Alias is a display label, Hidden drops the field from returned records
// and Readonly rejects it in write payloads. Nil flags are unset and keep
// whatever an earlier mapping said.
type FieldMapping struct {
	Alias    string `json:"alias,omitempty" yaml:"alias"`
	Hidden   *bool  `json:"hidden,omitempty" yaml:"hidden"`
	Readonly *bool  `json:"readonly,omitempty" yaml:"readonly"`
}

func (m FieldMapping) IsHidden() bool { return m.Hidden != nil && *m.Hidden }
func (m FieldMapping) IsReadonly() bool { return m.Readonly != nil && *m.Readonly }

// merge overlays the set values of o on m; an explicit false clears a flag.
func (m FieldMapping) merge(o FieldMapping) FieldMapping {
	if o.Alias != "" {
		m.Alias = o.Alias
	}
	if o.Hidden != nil {
		m.Hidden = o.Hidden
	}
	if o.Readonly != nil {
		m.Readonly = o.Readonly
	}
	return m
}

type ModelConfig struct {
	FieldMappings map[string]FieldMapping `json:"fieldMappings,omitempty" yaml:"fieldMappings"`
}

// configs holds per-model configuration under canonical model and field
// names.
type configs struct {
	mu     sync.RWMutex
	models map[string]ModelConfig
}

func newConfigs() *configs {
	return &configs{models: map[string]ModelConfig{}}
}

// set merges cfg into the model's configuration; mappings for the same
// field are merged key by key.
func (c *configs) set(model string, cfg ModelConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.models[model]
	next := ModelConfig{FieldMappings: maps.Clone(prev.FieldMappings)}
	if next.FieldMappings == nil {
		next.FieldMappings = map[string]FieldMapping{}
	}
	for field, fm := range cfg.FieldMappings {
		key := schema.Normalize(field)
		next.FieldMappings[key] = next.FieldMappings[key].merge(fm)
	}
	c.models[model] = next
}

func (c *configs) get(model string) (ModelConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.models[model]
	if !ok {
		return ModelConfig{}, false
	}
	return ModelConfig{FieldMappings: maps.Clone(cfg.FieldMappings)}, true
}

func (c *configs) mapping(model, field string) FieldMapping {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.models[model].FieldMappings[field]
}
