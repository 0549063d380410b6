// Package service composes the schema registry, the validator builder and
// the data-access facade into model-level operations.
package service

import (
	"context"
	"fmt"
	"maps"
	"math/big"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/cache"
	"github.com/MM25Zamanian/prismate/internal/dsl"
	"github.com/MM25Zamanian/prismate/internal/schema"
	"github.com/MM25Zamanian/prismate/internal/store"
	"github.com/MM25Zamanian/prismate/internal/validator"
)

// UpdateMode selects how update payloads are validated.
type UpdateMode string

const (
	// UpdateModeFull validates updates like creates: required fields must
	// be present.
	UpdateModeFull UpdateMode = "full"
	// UpdateModePartial lets every field be omitted; present fields are
	// still type checked.
	UpdateModePartial UpdateMode = "partial"
)

// ParseUpdateMode accepts "full", "partial" or "" (full).
func ParseUpdateMode(s string) (UpdateMode, error) {
	switch UpdateMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", UpdateModeFull:
		return UpdateModeFull, nil
	case UpdateModePartial:
		return UpdateModePartial, nil
	}
	return "", fmt.Errorf("unknown update mode %q", s)
}

type Options struct {
	Validators  cache.Config
	Definitions cache.Config
	UpdateMode  UpdateMode
	// FieldMapper replaces validator.MapField when set.
	FieldMapper validator.FieldMapper
	// Models is applied with ConfigureModel at construction.
	Models map[string]ModelConfig
	Clock  func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Validators:  cache.DefaultConfig(),
		Definitions: cache.DefaultConfig(),
		UpdateMode:  UpdateModeFull,
	}
}

// Service owns one registry, one validator builder, one definition cache
// and one facade. The facade holds the client but does not own it.
type Service struct {
	reg         *schema.Registry
	validators  *validator.Builder
	definitions *cache.Cache[string, schema.Definition]
	db          *store.Database
	configs     *configs
	mode        UpdateMode
	logger      *zap.Logger
	disposed    atomic.Bool
}

// New builds the registry from desc. Known models are the client's model
// keys; without a client every described model is known, so writes reach
// the facade and fail there with a ClientError.
func New(desc *dsl.Description, client store.Client, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("service")

	var known []string
	if client != nil {
		known = schema.KnownModels(client.Models())
	} else if desc != nil {
		known = desc.ModelNames()
	}

	vopts := []validator.Option{validator.WithLogger(logger)}
	if opts.FieldMapper != nil {
		vopts = append(vopts, validator.WithFieldMapper(opts.FieldMapper))
	}
	var dopts []cache.Option[string, schema.Definition]
	if opts.Clock != nil {
		vopts = append(vopts, validator.WithClock(opts.Clock))
		dopts = append(dopts, cache.WithClock[string, schema.Definition](opts.Clock))
	}
	mode := opts.UpdateMode
	if mode == "" {
		mode = UpdateModeFull
	}

	s := &Service{
		reg:         schema.BuildRegistry(desc, known),
		validators:  validator.NewBuilder(opts.Validators, vopts...),
		definitions: cache.New[string, schema.Definition](opts.Definitions, dopts...),
		db:          store.NewDatabase(client, logger),
		configs:     newConfigs(),
		mode:        mode,
		logger:      logger,
	}
	for model, cfg := range opts.Models {
		s.ConfigureModel(model, cfg)
	}
	logger.Info("service ready",
		zap.Int("models", s.reg.Len()),
		zap.Bool("client", client != nil),
		zap.String("update_mode", string(mode)))
	return s
}

func (s *Service) Registry() *schema.Registry { return s.reg }

func (s *Service) UpdateMode() UpdateMode { return s.mode }

func (s *Service) model(name string) (*schema.ModelSchema, error) {
	m, ok := s.reg.Model(name)
	if !ok {
		return nil, &apperrors.SchemaError{Model: name}
	}
	return m, nil
}

// CreateModel validates data and creates the record through the facade.
func (s *Service) CreateModel(ctx context.Context, model string, data map[string]any) (store.Record, error) {
	m, err := s.model(model)
	if err != nil {
		return nil, err
	}
	v, err := s.validators.ModelValidator(m.Name(), s.reg)
	if err != nil {
		return nil, err
	}
	clean, err := s.check(m, v, data)
	if err != nil {
		return nil, err
	}
	rec, err := s.db.Create(ctx, m.Name(), clean)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("created", zap.String("model", m.Name()))
	return s.present(m.Name(), rec), nil
}

// UpdateModel validates data and updates the record whose id field equals
// id. The delegate is not called when validation fails.
func (s *Service) UpdateModel(ctx context.Context, model string, id any, data map[string]any) (store.Record, error) {
	return s.update(ctx, model, id, data, s.mode == UpdateModePartial)
}

// PatchModel is UpdateModel with partial validation whatever the
// configured update mode.
func (s *Service) PatchModel(ctx context.Context, model string, id any, data map[string]any) (store.Record, error) {
	return s.update(ctx, model, id, data, true)
}

func (s *Service) update(ctx context.Context, model string, id any, data map[string]any, partial bool) (store.Record, error) {
	m, err := s.model(model)
	if err != nil {
		return nil, err
	}
	where, err := s.idWhere(m, id)
	if err != nil {
		return nil, err
	}
	v, err := s.validators.ModelValidator(m.Name(), s.reg)
	if err != nil {
		return nil, err
	}
	if partial {
		v = v.Partial()
	}
	clean, err := s.check(m, v, data)
	if err != nil {
		return nil, err
	}
	rec, err := s.db.Update(ctx, m.Name(), where, clean)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("updated", zap.String("model", m.Name()), zap.Any("id", where))
	return s.present(m.Name(), rec), nil
}

// DeleteModel deletes by id without validation.
func (s *Service) DeleteModel(ctx context.Context, model string, id any) (store.Record, error) {
	m, err := s.model(model)
	if err != nil {
		return nil, err
	}
	where, err := s.idWhere(m, id)
	if err != nil {
		return nil, err
	}
	rec, err := s.db.Delete(ctx, m.Name(), where)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("deleted", zap.String("model", m.Name()), zap.Any("id", where))
	return s.present(m.Name(), rec), nil
}

// GetModels passes straight through to FindMany. It does not consult the
// registry, so an unconfigured backend still lists as empty.
func (s *Service) GetModels(ctx context.Context, model string, opts store.QueryOptions) ([]store.Record, error) {
	name := schema.Normalize(model)
	recs, err := s.db.FindMany(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	out := make([]store.Record, len(recs))
	for i, r := range recs {
		out[i] = s.present(name, r)
	}
	return out, nil
}

// GetModel finds one record by id. A missing record is ErrNotFound.
func (s *Service) GetModel(ctx context.Context, model string, id any, opts store.QueryOptions) (store.Record, error) {
	m, err := s.model(model)
	if err != nil {
		return nil, err
	}
	where, err := s.idWhere(m, id)
	if err != nil {
		return nil, err
	}
	rec, err := s.db.FindUnique(ctx, m.Name(), where, opts)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%s %v: %w", m.Name(), id, apperrors.ErrNotFound)
	}
	return s.present(m.Name(), rec), nil
}

func (s *Service) CountModels(ctx context.Context, model string, where map[string]any) (int64, error) {
	return s.db.Count(ctx, schema.Normalize(model), where)
}

func (s *Service) AggregateModels(ctx context.Context, model string, opts store.AggregateOptions) (map[string]any, error) {
	return s.db.Aggregate(ctx, schema.Normalize(model), opts)
}

// check rejects readonly fields, then validates data with v.
func (s *Service) check(m *schema.ModelSchema, v *validator.Object, data map[string]any) (map[string]any, error) {
	var issues apperrors.Issues
	for key := range data {
		f, ok := m.Field(key)
		if !ok {
			continue
		}
		if f.IsReadOnly || s.configs.mapping(m.Name(), f.Name).IsReadonly() {
			issues = append(issues, apperrors.Issue{Path: f.Name, Code: apperrors.CodeReadonly, Message: "is read-only"})
		}
	}
	if len(issues) > 0 {
		return nil, &apperrors.ValidationError{Model: m.Name(), Issues: issues}
	}

	out := v.Check(canonicalKeys(m, data))
	if !out.OK() {
		s.logger.Debug("validation failed", zap.String("model", m.Name()), zap.String("error", out.Message()))
		return nil, out.Err(m.Name())
	}
	return out.Data(), nil
}

// canonicalKeys renames payload keys to canonical field names so that
// "first_name" and "FirstName" reach the firstName validator. Unknown keys
// are kept and later stripped by the validator.
func canonicalKeys(m *schema.ModelSchema, data map[string]any) any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if f, ok := m.Field(k); ok {
			k = f.Name
		}
		out[k] = v
	}
	return out
}

// idWhere builds {<idField>: id}, coercing string ids to integer id types.
func (s *Service) idWhere(m *schema.ModelSchema, id any) (map[string]any, error) {
	f, ok := m.IDField()
	if !ok {
		f = schema.FieldMetadata{Name: "id", Type: "String"}
	}
	v, err := coerceID(f, id)
	if err != nil {
		return nil, &apperrors.ValidationError{
			Model:  m.Name(),
			Issues: apperrors.Issues{{Path: f.Name, Code: apperrors.CodeInvalidType, Message: err.Error()}},
		}
	}
	return map[string]any{f.Name: v}, nil
}

func coerceID(f schema.FieldMetadata, id any) (any, error) {
	switch f.Type {
	case "Int":
		switch x := id.(type) {
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("expected integer id, got %q", x)
			}
			return n, nil
		case float64:
			if x != float64(int64(x)) {
				return nil, fmt.Errorf("expected integer id, got %v", x)
			}
			return int64(x), nil
		case int:
			return int64(x), nil
		}
	case "BigInt":
		if x, ok := id.(string); ok {
			n, ok := new(big.Int).SetString(strings.TrimSpace(x), 10)
			if !ok {
				return nil, fmt.Errorf("expected integer id, got %q", x)
			}
			if n.IsInt64() {
				return n.Int64(), nil
			}
			return n, nil
		}
	}
	return id, nil
}

// present returns rec without hidden fields. rec belongs to the delegate
// and is copied before anything is dropped.
func (s *Service) present(model string, rec store.Record) store.Record {
	cfg, ok := s.configs.get(model)
	if !ok || rec == nil {
		return rec
	}
	var out store.Record
	for field, fm := range cfg.FieldMappings {
		if _, set := rec[field]; !set || !fm.IsHidden() {
			continue
		}
		if out == nil {
			out = maps.Clone(rec)
		}
		delete(out, field)
	}
	if out == nil {
		return rec
	}
	return out
}

// ConfigureModel merges cfg into the model's configuration.
func (s *Service) ConfigureModel(model string, cfg ModelConfig) {
	s.configs.set(schema.Normalize(model), cfg)
}

func (s *Service) SetFieldMapping(model, field string, mapping FieldMapping) {
	s.configs.set(schema.Normalize(model), ModelConfig{
		FieldMappings: map[string]FieldMapping{field: mapping},
	})
}

func (s *Service) ModelConfig(model string) (ModelConfig, bool) {
	return s.configs.get(schema.Normalize(model))
}

// Dispose clears the caches and disposes the facade. Later calls do
// nothing.
func (s *Service) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.validators.ClearCache()
	s.definitions.Clear()
	s.db.Dispose()
	s.logger.Debug("disposed")
}
