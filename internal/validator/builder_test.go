package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/cache"
	"github.com/MM25Zamanian/prismate/internal/dsl"
	"github.com/MM25Zamanian/prismate/internal/schema"
)

func shopRegistry() *schema.Registry {
	str := func(name string, required bool) dsl.Field {
		return dsl.Field{Name: name, Kind: "scalar", Type: "String", IsRequired: required}
	}
	desc := &dsl.Description{Models: []dsl.Model{
		{Name: "User", Fields: []dsl.Field{{Name: "id", Kind: "scalar", Type: "Int", IsID: true}, str("name", true), str("email", true)}},
		{Name: "Post", Fields: []dsl.Field{{Name: "id", Kind: "scalar", Type: "String", IsID: true}, str("title", true)}},
		{Name: "Order", Fields: []dsl.Field{{Name: "id", Kind: "scalar", Type: "String", IsID: true}, str("note", false)}},
	}}
	return schema.BuildRegistry(desc, []string{"user", "post", "order"})
}

func TestBuilderCachesPerModel(t *testing.T) {
	b := NewBuilder(cache.DefaultConfig(), WithLogger(zaptest.NewLogger(t)))
	reg := shopRegistry()

	v1, err := b.ModelValidator("User", reg)
	require.NoError(t, err)
	v2, err := b.ModelValidator("user", reg)
	require.NoError(t, err)
	require.Same(t, v1, v2)
	require.Equal(t, uint64(1), b.Builds())
	require.Equal(t, []string{"id", "name", "email"}, v1.Fields())
}

func TestBuilderUnknownModel(t *testing.T) {
	b := NewBuilder(cache.DefaultConfig())
	_, err := b.ModelValidator("ghost", shopRegistry())
	require.ErrorIs(t, err, apperrors.ErrSchema)

	_, err = b.ValidateData("ghost", shopRegistry(), map[string]any{})
	require.ErrorIs(t, err, apperrors.ErrSchema)
	require.Equal(t, uint64(0), b.Builds())
}

func TestBuilderEvictionTriggersRebuild(t *testing.T) {
	b := NewBuilder(cache.Config{MaxSize: 2, TTL: time.Minute})
	reg := shopRegistry()

	for _, m := range []string{"user", "post", "order"} {
		_, err := b.ModelValidator(m, reg)
		require.NoError(t, err)
	}
	require.Equal(t, uint64(3), b.Builds())
	require.Equal(t, uint64(1), b.CacheStats().Evictions)

	out, err := b.ValidateData("user", reg, map[string]any{"id": 1, "name": "a", "email": "a@x"})
	require.NoError(t, err)
	require.True(t, out.OK())
	require.Equal(t, uint64(4), b.Builds())
	require.Equal(t, uint64(1), b.CacheStats().Misses-3)
}

func TestBuilderTTL(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBuilder(cache.Config{TTL: time.Second}, WithClock(func() time.Time { return now }))
	reg := shopRegistry()

	_, err := b.ModelValidator("post", reg)
	require.NoError(t, err)
	now = now.Add(2 * time.Second)
	_, err = b.ModelValidator("post", reg)
	require.NoError(t, err)
	require.Equal(t, uint64(2), b.Builds())
}

func TestBuilderCustomMapperAndCacheControl(t *testing.T) {
	b := NewBuilder(cache.DefaultConfig(), WithFieldMapper(func(f schema.FieldMetadata) Validator {
		return Optional(Any())
	}))
	reg := shopRegistry()

	out, err := b.ValidateData("user", reg, map[string]any{})
	require.NoError(t, err)
	require.True(t, out.OK())

	b.ClearCache()
	require.Equal(t, 0, b.CacheStats().Size)

	size := 1
	require.NoError(t, b.UpdateCacheConfig(cache.Update{MaxSize: &size}))
	_, _ = b.ModelValidator("user", reg)
	_, _ = b.ModelValidator("post", reg)
	require.Equal(t, 1, b.CacheStats().Size)
}

func TestRequiredWithDefaultMayBeOmitted(t *testing.T) {
	desc := &dsl.Description{Models: []dsl.Model{{Name: "Ticket", Fields: []dsl.Field{
		{Name: "id", Kind: "scalar", Type: "Int", IsID: true, IsRequired: true, HasDefaultValue: true, Default: "autoincrement"},
		{Name: "state", Kind: "scalar", Type: "String", IsRequired: true, HasDefaultValue: true, Default: "open"},
		{Name: "title", Kind: "scalar", Type: "String", IsRequired: true},
	}}}}
	reg := schema.BuildRegistry(desc, []string{"ticket"})
	b := NewBuilder(cache.DefaultConfig())

	out, err := b.ValidateData("ticket", reg, map[string]any{"title": "t"})
	require.NoError(t, err)
	require.True(t, out.OK())
	require.Equal(t, map[string]any{"title": "t"}, out.Data())

	out, err = b.ValidateData("ticket", reg, map[string]any{"title": "t", "state": nil})
	require.NoError(t, err)
	require.False(t, out.OK(), "a defaulted field is omittable, not nullable")
}
