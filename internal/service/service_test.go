package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/cache"
	"github.com/MM25Zamanian/prismate/internal/dsl"
	"github.com/MM25Zamanian/prismate/internal/store"
)

func userDescription() *dsl.Description {
	return &dsl.Description{
		Models: []dsl.Model{
			{
				Name: "User",
				Fields: []dsl.Field{
					{Name: "id", Kind: "scalar", Type: "Int", IsID: true, IsRequired: true, HasDefaultValue: true, Default: "autoincrement"},
					{Name: "name", Kind: "scalar", Type: "String", IsRequired: true},
					{Name: "email", Kind: "scalar", Type: "String", IsRequired: true},
					{Name: "secret", Kind: "scalar", Type: "String", IsReadOnly: true},
					{Name: "createdAt", Kind: "scalar", Type: "DateTime"},
				},
			},
			{
				Name: "Post",
				Fields: []dsl.Field{
					{Name: "id", Kind: "scalar", Type: "String", IsID: true, IsRequired: true},
					{Name: "title", Kind: "scalar", Type: "String", IsRequired: true},
				},
			},
		},
	}
}

// recorder is a user delegate that counts calls and echoes its input.
type recorder struct {
	creates, updates atomic.Int32
	lastWhere        map[string]any
	lastData         map[string]any
}

func (r *recorder) funcs() store.Funcs {
	return store.Funcs{
		CreateFn: func(_ context.Context, args store.Args) (store.Record, error) {
			r.creates.Add(1)
			out := store.Record{"id": int64(1)}
			for k, v := range args.Data {
				out[k] = v
			}
			return out, nil
		},
		UpdateFn: func(_ context.Context, args store.Args) (store.Record, error) {
			r.updates.Add(1)
			r.lastWhere, r.lastData = args.Where, args.Data
			out := store.Record{"id": args.Where["id"], "email": "jane@x.com"}
			for k, v := range args.Data {
				out[k] = v
			}
			return out, nil
		},
		FindManyFn: func(_ context.Context, _ store.Args) ([]store.Record, error) {
			return []store.Record{{"id": int64(1), "name": "Jane", "email": "jane@x.com"}}, nil
		},
		FindUniqueFn: func(_ context.Context, args store.Args) (store.Record, error) {
			if args.Where["id"] == int64(1) {
				return store.Record{"id": int64(1), "name": "Jane"}, nil
			}
			return nil, nil
		},
	}
}

func newService(t *testing.T, opts Options) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	client := store.Delegates{"user": rec.funcs(), "$connect": store.Funcs{}}
	return New(userDescription(), client, opts, zaptest.NewLogger(t)), rec
}

func TestAvailableModelsFollowClientKeys(t *testing.T) {
	svc, _ := newService(t, DefaultOptions())
	require.Equal(t, []string{"user"}, svc.GetAvailableModels())
	assert.False(t, svc.HasModel("post"))
	assert.True(t, svc.HasModel("User"))

	name, ok := svc.ResolveModel("users")
	require.True(t, ok)
	assert.Equal(t, "user", name)
}

func TestReadsDegradeWithoutClient(t *testing.T) {
	svc := New(userDescription(), nil, DefaultOptions(), nil)
	ctx := context.Background()

	recs, err := svc.GetModels(ctx, "user", store.QueryOptions{})
	require.NoError(t, err)
	require.NotNil(t, recs)
	require.Empty(t, recs)

	n, err := svc.CountModels(ctx, "user", nil)
	require.NoError(t, err)
	require.Zero(t, n)

	require.Equal(t, []string{"user", "post"}, svc.GetAvailableModels())
}

func TestWritesFailWithoutClient(t *testing.T) {
	svc := New(userDescription(), nil, DefaultOptions(), nil)
	_, err := svc.CreateModel(context.Background(), "user", map[string]any{"name": "Jane", "email": "jane@x.com"})
	require.ErrorIs(t, err, apperrors.ErrClient)

	var ce *apperrors.ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "create", ce.Op)

	_, err = svc.DeleteModel(context.Background(), "user", 1)
	require.ErrorIs(t, err, apperrors.ErrClient)
}

func TestCreateModelEchoesDelegate(t *testing.T) {
	svc, rec := newService(t, DefaultOptions())
	got, err := svc.CreateModel(context.Background(), "user", map[string]any{"name": "Jane", "email": "jane@x.com"})
	require.NoError(t, err)
	require.Equal(t, store.Record{"id": int64(1), "name": "Jane", "email": "jane@x.com"}, got)
	require.EqualValues(t, 1, rec.creates.Load())
}

func TestCreateModelValidates(t *testing.T) {
	svc, rec := newService(t, DefaultOptions())
	ctx := context.Background()

	_, err := svc.CreateModel(ctx, "user", map[string]any{"name": 5})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, apperrors.Issues{
		{Path: "name", Code: apperrors.CodeInvalidType, Message: "expected string, received number"},
		{Path: "email", Code: apperrors.CodeRequired, Message: "is required"},
	}, apperrors.IssuesOf(err))

	_, err = svc.CreateModel(ctx, "user", map[string]any{"name": "Jane", "email": "j@x", "secret": "s"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, apperrors.CodeReadonly, apperrors.IssuesOf(err)[0].Code)

	_, err = svc.CreateModel(ctx, "comment", map[string]any{})
	require.ErrorIs(t, err, apperrors.ErrSchema)

	require.Zero(t, rec.creates.Load(), "delegate is never reached")

	got, err := svc.CreateModel(ctx, "user", map[string]any{"Name": "Jane", "email": "j@x", "extra": true})
	require.NoError(t, err)
	assert.Equal(t, "Jane", got["name"])
	assert.NotContains(t, got, "extra")
}

func TestUpdateModelFullModeRejectsMissingRequired(t *testing.T) {
	svc, rec := newService(t, DefaultOptions())
	_, err := svc.UpdateModel(context.Background(), "user", 7, map[string]any{"name": "Jane2"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, apperrors.IssuesOf(err), apperrors.Issue{Path: "email", Code: apperrors.CodeRequired, Message: "is required"})
	require.Zero(t, rec.updates.Load())
}

func TestUpdateModelPartialMode(t *testing.T) {
	opts := DefaultOptions()
	opts.UpdateMode = UpdateModePartial
	svc, rec := newService(t, opts)
	ctx := context.Background()

	got, err := svc.UpdateModel(ctx, "user", "7", map[string]any{"name": "Jane2"})
	require.NoError(t, err)
	require.EqualValues(t, 1, rec.updates.Load())
	assert.Equal(t, map[string]any{"id": int64(7)}, rec.lastWhere)
	assert.Equal(t, map[string]any{"name": "Jane2"}, rec.lastData)
	assert.Equal(t, "Jane2", got["name"])

	_, err = svc.UpdateModel(ctx, "user", "seven", map[string]any{"name": "x"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "id", apperrors.IssuesOf(err)[0].Path)

	_, err = svc.UpdateModel(ctx, "user", 7, map[string]any{"name": 1})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.EqualValues(t, 1, rec.updates.Load())
}

func TestParseUpdateMode(t *testing.T) {
	for in, want := range map[string]UpdateMode{"": UpdateModeFull, "FULL": UpdateModeFull, "partial": UpdateModePartial} {
		got, err := ParseUpdateMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseUpdateMode("lenient")
	require.Error(t, err)
}

func TestUnsupportedOperation(t *testing.T) {
	svc, _ := newService(t, DefaultOptions())
	_, err := svc.DeleteModel(context.Background(), "user", 1)
	require.ErrorIs(t, err, apperrors.ErrOperation)
}

func TestGetModel(t *testing.T) {
	svc, _ := newService(t, DefaultOptions())
	ctx := context.Background()

	got, err := svc.GetModel(ctx, "user", "1", store.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Jane", got["name"])

	_, err = svc.GetModel(ctx, "user", 2, store.QueryOptions{})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFieldMappings(t *testing.T) {
	svc, _ := newService(t, Options{
		Models: map[string]ModelConfig{
			"User": {FieldMappings: map[string]FieldMapping{"email": {Alias: "E-mail"}}},
		},
	})
	svc.SetFieldMapping("user", "email", FieldMapping{Hidden: flag(true)})
	svc.SetFieldMapping("user", "name", FieldMapping{Readonly: flag(true)})

	cfg, ok := svc.ModelConfig("USER")
	require.True(t, ok)
	assert.Equal(t, FieldMapping{Alias: "E-mail", Hidden: flag(true)}, cfg.FieldMappings["email"])

	recs, err := svc.GetModels(context.Background(), "user", store.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotContains(t, recs[0], "email")

	_, err = svc.CreateModel(context.Background(), "user", map[string]any{"name": "Jane", "email": "j@x"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, apperrors.Issues{{Path: "name", Code: apperrors.CodeReadonly, Message: "is read-only"}}, apperrors.IssuesOf(err))

	view, err := svc.GetModelView("user")
	require.NoError(t, err)
	assert.Equal(t, "id", view.IDField)
	byName := map[string]FieldView{}
	for _, f := range view.Fields {
		byName[f.Name] = f
	}
	assert.Equal(t, "E-mail", byName["email"].Label)
	assert.True(t, byName["email"].Hidden)
	assert.True(t, byName["name"].Readonly)
	assert.True(t, byName["secret"].Readonly)
	assert.Equal(t, "createdAt", byName["createdAt"].Label)
}

func TestFieldMappingFlagsCanBeCleared(t *testing.T) {
	svc, rec := newService(t, DefaultOptions())
	ctx := context.Background()

	svc.SetFieldMapping("user", "email", FieldMapping{Alias: "E-mail", Hidden: flag(true), Readonly: flag(true)})
	_, err := svc.CreateModel(ctx, "user", map[string]any{"name": "Jane", "email": "j@x"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	svc.SetFieldMapping("user", "email", FieldMapping{Hidden: flag(false), Readonly: flag(false)})
	cfg, _ := svc.ModelConfig("user")
	fm := cfg.FieldMappings["email"]
	assert.Equal(t, "E-mail", fm.Alias)
	assert.False(t, fm.IsHidden())
	assert.False(t, fm.IsReadonly())

	got, err := svc.CreateModel(ctx, "user", map[string]any{"name": "Jane", "email": "j@x"})
	require.NoError(t, err)
	assert.Equal(t, "j@x", got["email"])
	require.EqualValues(t, 1, rec.creates.Load())
}

func TestHiddenFieldsLeaveDelegateRecordsIntact(t *testing.T) {
	shared := store.Record{"id": int64(1), "name": "Jane", "email": "jane@x.com"}
	client := store.Delegates{"user": store.Funcs{
		FindManyFn: func(context.Context, store.Args) ([]store.Record, error) {
			return []store.Record{shared}, nil
		},
	}}
	svc := New(userDescription(), client, DefaultOptions(), zaptest.NewLogger(t))
	svc.SetFieldMapping("user", "email", FieldMapping{Hidden: flag(true)})

	recs, err := svc.GetModels(context.Background(), "user", store.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotContains(t, recs[0], "email")
	assert.Equal(t, "jane@x.com", shared["email"])
}

func TestPatchModelIgnoresUpdateMode(t *testing.T) {
	svc, rec := newService(t, DefaultOptions())
	ctx := context.Background()

	_, err := svc.UpdateModel(ctx, "user", 7, map[string]any{"name": "Jane2"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	got, err := svc.PatchModel(ctx, "user", 7, map[string]any{"name": "Jane2"})
	require.NoError(t, err)
	assert.Equal(t, "Jane2", got["name"])
	require.EqualValues(t, 1, rec.updates.Load())

	_, err = svc.PatchModel(ctx, "user", 7, map[string]any{"name": 1})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestIntrospection(t *testing.T) {
	svc, _ := newService(t, DefaultOptions())

	fields, err := svc.GetModelFields("User")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "email", "secret", "createdAt"}, fields)

	meta, err := svc.GetModelSchema("user")
	require.NoError(t, err)
	require.Len(t, meta, 5)
	assert.True(t, meta[0].IsID)

	_, err = svc.GetModelFields("post")
	require.ErrorIs(t, err, apperrors.ErrSchema)

	export := svc.ExportSchema()
	assert.Equal(t, 1, export.ModelCount)
	require.Len(t, svc.ModelSummary(), 1)
}

func TestDefinitionCache(t *testing.T) {
	svc, _ := newService(t, DefaultOptions())

	def, err := svc.GetModelDefinition("user")
	require.NoError(t, err)
	assert.Equal(t, "id", def.IDField)
	_, err = svc.GetModelDefinition("User")
	require.NoError(t, err)

	stats := svc.CacheStats()[CacheDefinitions]
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Size)

	_, err = svc.GetModelDefinition("comment")
	require.ErrorIs(t, err, apperrors.ErrSchema)

	one := 1
	require.NoError(t, svc.UpdateCacheConfig(cache.Update{MaxSize: &one}))
	assert.Equal(t, 1, svc.CacheStats()[CacheValidators].MaxSize)

	svc.ClearCache()
	assert.Zero(t, svc.CacheStats()[CacheDefinitions].Size)
}

func TestDisposeIsIdempotent(t *testing.T) {
	svc, _ := newService(t, DefaultOptions())
	_, err := svc.CreateModel(context.Background(), "user", map[string]any{"name": "Jane", "email": "j@x"})
	require.NoError(t, err)
	require.Equal(t, 1, svc.CacheStats()[CacheValidators].Size)

	require.NotPanics(t, func() {
		svc.Dispose()
		svc.Dispose()
	})
	assert.Zero(t, svc.CacheStats()[CacheValidators].Size)
}

func flag(b bool) *bool { return &b }
