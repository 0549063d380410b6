package pg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/store"
)

// openTestDB starts a throwaway PostgreSQL container.
func openTestDB(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("prismate"),
		postgres.WithUsername("prismate"),
		postgres.WithPassword("prismate"),
		postgres.BasicWaitStrategies(),
	)
	t.Cleanup(func() {
		if ctr != nil {
			_ = ctr.Terminate(context.Background())
		}
	})
	require.NoError(t, err)

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg := shopRegistry(t)
	ddl, err := GenerateDDL(reg)
	require.NoError(t, err)
	require.NoError(t, ApplyDDL(ctx, db, ddl, nil))
	// a second run only hits already-existing objects
	require.NoError(t, ApplyDDL(ctx, db, ddl, nil))

	return New(db, reg, nil)
}

func TestPostgresRoundTrip(t *testing.T) {
	c := openTestDB(t)
	ctx := context.Background()
	db := store.NewDatabase(c, nil)

	alice, err := db.Create(ctx, "customer", map[string]any{"email": "a@x", "name": "Alice"})
	require.NoError(t, err)
	require.Equal(t, int64(1), alice["id"])

	_, err = db.Create(ctx, "customer", map[string]any{"email": "a@x"})
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = db.Create(ctx, "customer", map[string]any{"name": "no email"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	for i, total := range []any{10.0, 30.0, nil} {
		o, err := db.Create(ctx, "order", map[string]any{
			"number": i + 1, "customerId": alice["id"], "total": total, "tags": []any{"t"},
		})
		require.NoError(t, err)
		assert.Len(t, o["id"], 26)
		assert.Equal(t, "NEW", o["status"])
		assert.Equal(t, []any{"t"}, o["tags"])
		assert.NotNil(t, o["placedAt"])
	}

	recs, err := db.FindMany(ctx, "order", store.QueryOptions{
		OrderBy: map[string]any{"total": "desc"},
		Include: map[string]any{"customer": true},
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 30.0, recs[0]["total"])
	assert.Nil(t, recs[2]["total"], "nulls last")
	assert.Equal(t, "Alice", recs[0]["customer"].(store.Record)["name"])

	upd, err := db.Update(ctx, "order", map[string]any{"number": 3}, map[string]any{"status": "PAID", "total": 5})
	require.NoError(t, err)
	assert.Equal(t, "PAID", upd["status"])

	_, err = db.Update(ctx, "order", map[string]any{"number": 3}, map[string]any{"status": "LOST"})
	require.ErrorIs(t, err, apperrors.ErrValidation, "enum check constraint")

	n, err := db.Count(ctx, "order", map[string]any{"status": "NEW"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	agg, err := db.Aggregate(ctx, "order", store.AggregateOptions{
		Count: map[string]any{"_all": true},
		Sum:   map[string]any{"number": true, "total": true},
		Max:   map[string]any{"total": true},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"_all": int64(3)}, agg["_count"])
	assert.Equal(t, map[string]any{"number": int64(6), "total": 45.0}, agg["_sum"])
	assert.Equal(t, map[string]any{"total": 30.0}, agg["_max"])

	del, err := db.Delete(ctx, "order", map[string]any{"number": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), del["number"])
	_, err = db.Delete(ctx, "order", map[string]any{"number": 1})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := db.FindUnique(ctx, "customer", map[string]any{"email": "a@x"}, store.QueryOptions{Select: map[string]any{"name": true}})
	require.NoError(t, err)
	assert.Equal(t, store.Record{"name": "Alice"}, got)
}
