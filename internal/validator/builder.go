package validator

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/cache"
	"github.com/MM25Zamanian/prismate/internal/schema"
)

type Option func(*Builder)

func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithFieldMapper replaces MapField.
func WithFieldMapper(m FieldMapper) Option {
	return func(b *Builder) { b.mapper = m }
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// Builder compiles and caches one Object validator per model.
type Builder struct {
	cache  *cache.Cache[string, *Object]
	mapper FieldMapper
	logger *zap.Logger
	now    func() time.Time
	builds atomic.Uint64
}

func NewBuilder(cfg cache.Config, opts ...Option) *Builder {
	b := &Builder{mapper: MapField, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	var copts []cache.Option[string, *Object]
	if b.now != nil {
		copts = append(copts, cache.WithClock[string, *Object](b.now))
	}
	copts = append(copts, cache.WithOnEvict[string, *Object](func(model string, _ *Object) {
		b.logger.Debug("validator evicted", zap.String("model", model))
	}))
	b.cache = cache.New[string, *Object](cfg, copts...)
	return b
}

// ModelValidator returns the cached validator for model, compiling it from
// reg on a miss. Unknown models are a SchemaError.
func (b *Builder) ModelValidator(model string, reg *schema.Registry) (*Object, error) {
	name := schema.Normalize(model)
	if v, ok := b.cache.Get(name); ok {
		return v, nil
	}

	m, ok := reg.Model(name)
	if !ok {
		return nil, &apperrors.SchemaError{Model: model}
	}
	// two callers may build the same model at once; the later Set wins
	v := ModelObject(m, b.mapper)
	b.builds.Add(1)
	if err := b.cache.Set(name, v); err != nil {
		return nil, fmt.Errorf("cache validator for %s: %w", name, err)
	}
	b.logger.Debug("validator built", zap.String("model", name), zap.Int("fields", m.Len()))
	return v, nil
}

// ValidateData validates data against the model validator.
func (b *Builder) ValidateData(model string, reg *schema.Registry, data any) (Outcome, error) {
	v, err := b.ModelValidator(model, reg)
	if err != nil {
		return Outcome{}, err
	}
	return v.Check(data), nil
}

// Builds counts validator compilations, i.e. cache misses for known models.
func (b *Builder) Builds() uint64 { return b.builds.Load() }

func (b *Builder) CacheStats() cache.Stats { return b.cache.Stats() }

func (b *Builder) ClearCache() { b.cache.Clear() }

func (b *Builder) UpdateCacheConfig(u cache.Update) error {
	return b.cache.UpdateConfig(u)
}
