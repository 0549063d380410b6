package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
)

// QueryOptions shape a findMany call. Take and Skip are pointers so that
// zero is distinct from absent.
type QueryOptions struct {
	Where   map[string]any `json:"where,omitempty"`
	Select  any            `json:"select,omitempty"`
	Include any            `json:"include,omitempty"`
	OrderBy any            `json:"orderBy,omitempty"`
	Take    *int           `json:"take,omitempty"`
	Skip    *int           `json:"skip,omitempty"`
}

// AggregateOptions select the aggregates to compute, e.g.
// Sum: map[string]any{"total": true}.
type AggregateOptions struct {
	Where map[string]any `json:"where,omitempty"`
	Count any            `json:"_count,omitempty"`
	Avg   any            `json:"_avg,omitempty"`
	Sum   any            `json:"_sum,omitempty"`
	Min   any            `json:"_min,omitempty"`
	Max   any            `json:"_max,omitempty"`
}

// Database is a typed pass-through to a Client. It holds the client but
// does not manage its connection lifecycle.
type Database struct {
	client   Client
	logger   *zap.Logger
	disposed atomic.Bool
}

func NewDatabase(client Client, logger *zap.Logger) *Database {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Database{client: client, logger: logger.Named("database")}
}

func (d *Database) HasClient() bool { return d.client != nil }

func (d *Database) Client() Client { return d.client }

// Models lists the client's model keys, or nil without a client.
func (d *Database) Models() []string {
	if d.client == nil {
		return nil
	}
	return d.client.Models()
}

// delegate finds a model delegate that can perform op.
func (d *Database) delegate(model string, op Op) (ModelDelegate, error) {
	del, ok := d.client.Delegate(model)
	if !ok || !HasCapability(del, op) {
		return nil, &apperrors.OperationError{Op: string(op), Model: model}
	}
	return del, nil
}

func (d *Database) Create(ctx context.Context, model string, data map[string]any) (Record, error) {
	if d.client == nil {
		return nil, &apperrors.ClientError{Op: string(OpCreate)}
	}
	del, err := d.delegate(model, OpCreate)
	if err != nil {
		return nil, err
	}
	rec, err := del.(Creator).Create(ctx, Args{Data: data})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", model, err)
	}
	return rec, nil
}

func (d *Database) FindMany(ctx context.Context, model string, opts QueryOptions) ([]Record, error) {
	if d.client == nil {
		// no client configured: listings render empty instead of failing
		d.logger.Debug("findMany without client", zap.String("model", model))
		return []Record{}, nil
	}
	del, err := d.delegate(model, OpFindMany)
	if err != nil {
		return nil, err
	}
	recs, err := del.(ManyFinder).FindMany(ctx, Args{
		Where:   opts.Where,
		Select:  opts.Select,
		Include: opts.Include,
		OrderBy: opts.OrderBy,
		Take:    opts.Take,
		Skip:    opts.Skip,
	})
	if err != nil {
		return nil, fmt.Errorf("findMany %s: %w", model, err)
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}

// FindUnique returns nil, nil without a client, like the other reads.
func (d *Database) FindUnique(ctx context.Context, model string, where map[string]any, opts QueryOptions) (Record, error) {
	if d.client == nil {
		d.logger.Debug("findUnique without client", zap.String("model", model))
		return nil, nil
	}
	del, err := d.delegate(model, OpFindUnique)
	if err != nil {
		return nil, err
	}
	rec, err := del.(UniqueFinder).FindUnique(ctx, Args{Where: where, Select: opts.Select, Include: opts.Include})
	if err != nil {
		return nil, fmt.Errorf("findUnique %s: %w", model, err)
	}
	return rec, nil
}

func (d *Database) Update(ctx context.Context, model string, where, data map[string]any) (Record, error) {
	if d.client == nil {
		return nil, &apperrors.ClientError{Op: string(OpUpdate)}
	}
	del, err := d.delegate(model, OpUpdate)
	if err != nil {
		return nil, err
	}
	rec, err := del.(Updater).Update(ctx, Args{Where: where, Data: data})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", model, err)
	}
	return rec, nil
}

func (d *Database) Delete(ctx context.Context, model string, where map[string]any) (Record, error) {
	if d.client == nil {
		return nil, &apperrors.ClientError{Op: string(OpDelete)}
	}
	del, err := d.delegate(model, OpDelete)
	if err != nil {
		return nil, err
	}
	rec, err := del.(Deleter).Delete(ctx, Args{Where: where})
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", model, err)
	}
	return rec, nil
}

func (d *Database) Count(ctx context.Context, model string, where map[string]any) (int64, error) {
	if d.client == nil {
		d.logger.Debug("count without client", zap.String("model", model))
		return 0, nil
	}
	del, err := d.delegate(model, OpCount)
	if err != nil {
		return 0, err
	}
	n, err := del.(Counter).Count(ctx, Args{Where: where})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", model, err)
	}
	return n, nil
}

func (d *Database) Aggregate(ctx context.Context, model string, opts AggregateOptions) (map[string]any, error) {
	if d.client == nil {
		d.logger.Debug("aggregate without client", zap.String("model", model))
		return nil, nil
	}
	del, err := d.delegate(model, OpAggregate)
	if err != nil {
		return nil, err
	}
	res, err := del.(Aggregator).Aggregate(ctx, Args{
		Where: opts.Where,
		Count: opts.Count,
		Avg:   opts.Avg,
		Sum:   opts.Sum,
		Min:   opts.Min,
		Max:   opts.Max,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", model, err)
	}
	return res, nil
}

// Dispose is safe to call any number of times. The client is left open.
func (d *Database) Dispose() {
	if d.disposed.CompareAndSwap(false, true) {
		d.logger.Debug("disposed")
	}
}
