package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
)

func TestNoClientReadsDegrade(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase(nil, zaptest.NewLogger(t))
	require.False(t, db.HasClient())

	recs, err := db.FindMany(ctx, "user", QueryOptions{})
	require.NoError(t, err)
	require.NotNil(t, recs)
	require.Empty(t, recs)

	n, err := db.Count(ctx, "user", nil)
	require.NoError(t, err)
	require.Zero(t, n)

	rec, err := db.FindUnique(ctx, "user", map[string]any{"id": 1}, QueryOptions{})
	require.NoError(t, err)
	require.Nil(t, rec)

	agg, err := db.Aggregate(ctx, "user", AggregateOptions{})
	require.NoError(t, err)
	require.Nil(t, agg)
}

func TestNoClientWritesFail(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase(nil, nil)

	_, err := db.Create(ctx, "user", map[string]any{"name": "a"})
	require.ErrorIs(t, err, apperrors.ErrClient)
	_, err = db.Update(ctx, "user", map[string]any{"id": 1}, map[string]any{})
	require.ErrorIs(t, err, apperrors.ErrClient)
	_, err = db.Delete(ctx, "user", map[string]any{"id": 1})
	require.ErrorIs(t, err, apperrors.ErrClient)
}

func TestMissingCapability(t *testing.T) {
	ctx := context.Background()
	client := Delegates{
		"user": Funcs{FindManyFn: func(context.Context, Args) ([]Record, error) { return nil, nil }},
	}
	db := NewDatabase(client, zaptest.NewLogger(t))

	_, err := db.Create(ctx, "user", map[string]any{})
	require.ErrorIs(t, err, apperrors.ErrOperation)
	require.NotErrorIs(t, err, apperrors.ErrClient)

	_, err = db.Count(ctx, "user", nil)
	require.ErrorIs(t, err, apperrors.ErrOperation)

	_, err = db.FindMany(ctx, "post", QueryOptions{})
	require.ErrorIs(t, err, apperrors.ErrOperation, "unknown model on a present client")

	recs, err := db.FindMany(ctx, "user", QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, []Record{}, recs)
}

func TestArgumentsPassThrough(t *testing.T) {
	ctx := context.Background()
	var got Args
	take, skip := 5, 10
	client := Delegates{"User": Funcs{
		FindManyFn: func(_ context.Context, a Args) ([]Record, error) {
			got = a
			return []Record{{"id": 1}}, nil
		},
		AggregateFn: func(_ context.Context, a Args) (map[string]any, error) {
			got = a
			return map[string]any{"_count": 3}, nil
		},
	}}
	db := NewDatabase(client, nil)

	opts := QueryOptions{
		Where:   map[string]any{"name": map[string]any{"contains": "a"}},
		OrderBy: []any{map[string]any{"name": "desc"}},
		Select:  map[string]any{"id": true},
		Take:    &take,
		Skip:    &skip,
	}
	recs, err := db.FindMany(ctx, "user", opts)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, opts.Where, got.Where)
	assert.Equal(t, opts.OrderBy, got.OrderBy)
	assert.Equal(t, opts.Select, got.Select)
	assert.Equal(t, &take, got.Take)
	assert.Equal(t, &skip, got.Skip)

	res, err := db.Aggregate(ctx, "user", AggregateOptions{Count: true, Sum: map[string]any{"total": true}})
	require.NoError(t, err)
	assert.Equal(t, 3, res["_count"])
	assert.Equal(t, true, got.Count)
	assert.Equal(t, map[string]any{"total": true}, got.Sum)
}

func TestDelegateErrorsAreWrapped(t *testing.T) {
	boom := errors.New("boom")
	db := NewDatabase(Delegates{"user": Funcs{
		DeleteFn: func(context.Context, Args) (Record, error) { return nil, boom },
	}}, nil)
	_, err := db.Delete(context.Background(), "user", map[string]any{"id": 1})
	require.ErrorIs(t, err, boom)
	require.EqualError(t, err, "delete user: boom")
}

type createOnly struct{}

func (createOnly) Create(_ context.Context, a Args) (Record, error) { return a.Data, nil }

func TestHasCapability(t *testing.T) {
	require.True(t, HasCapability(createOnly{}, OpCreate))
	require.False(t, HasCapability(createOnly{}, OpUpdate))
	require.False(t, HasCapability(nil, OpCreate))
	require.False(t, HasCapability(Funcs{}, OpCreate))
	require.True(t, HasCapability(Funcs{CountFn: func(context.Context, Args) (int64, error) { return 0, nil }}, OpCount))
}

func TestDisposeIdempotent(t *testing.T) {
	db := NewDatabase(Delegates{}, nil)
	db.Dispose()
	db.Dispose()
	require.True(t, db.HasClient())
	require.Empty(t, db.Models())
}
