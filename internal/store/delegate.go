package store

import (
	"context"
	"sort"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/schema"
)

// Record is one row as returned by a delegate.
type Record = map[string]any

// Op names a delegate capability.
type Op string

const (
	OpCreate     Op = "create"
	OpFindMany   Op = "findMany"
	OpFindUnique Op = "findUnique"
	OpUpdate     Op = "update"
	OpDelete     Op = "delete"
	OpCount      Op = "count"
	OpAggregate  Op = "aggregate"
)

// Args is the single argument object handed to a delegate. The facade
// never looks inside Where, Select, Include, OrderBy or the aggregate
// selectors.
type Args struct {
	Data    map[string]any
	Where   map[string]any
	Select  any
	Include any
	OrderBy any
	Take    *int
	Skip    *int

	Count any
	Avg   any
	Sum   any
	Min   any
	Max   any
}

type Creator interface {
	Create(ctx context.Context, args Args) (Record, error)
}

type ManyFinder interface {
	FindMany(ctx context.Context, args Args) ([]Record, error)
}

type UniqueFinder interface {
	FindUnique(ctx context.Context, args Args) (Record, error)
}

type Updater interface {
	Update(ctx context.Context, args Args) (Record, error)
}

type Deleter interface {
	Delete(ctx context.Context, args Args) (Record, error)
}

type Counter interface {
	Count(ctx context.Context, args Args) (int64, error)
}

type Aggregator interface {
	Aggregate(ctx context.Context, args Args) (map[string]any, error)
}

// Supporter lets a delegate that implements every method still opt out
// of some operations.
type Supporter interface {
	Supports(op Op) bool
}

// ModelDelegate is any value implementing some of the capability interfaces.
type ModelDelegate any

// Client exposes one delegate per model.
type Client interface {
	Models() []string
	Delegate(model string) (ModelDelegate, bool)
}

// HasCapability reports whether d can perform op.
func HasCapability(d ModelDelegate, op Op) bool {
	if d == nil {
		return false
	}
	var ok bool
	switch op {
	case OpCreate:
		_, ok = d.(Creator)
	case OpFindMany:
		_, ok = d.(ManyFinder)
	case OpFindUnique:
		_, ok = d.(UniqueFinder)
	case OpUpdate:
		_, ok = d.(Updater)
	case OpDelete:
		_, ok = d.(Deleter)
	case OpCount:
		_, ok = d.(Counter)
	case OpAggregate:
		_, ok = d.(Aggregator)
	}
	if !ok {
		return false
	}
	if s, isSupporter := d.(Supporter); isSupporter {
		return s.Supports(op)
	}
	return true
}

// Delegates is a Client backed by a plain map.
type Delegates map[string]ModelDelegate

func (ds Delegates) Models() []string {
	out := make([]string, 0, len(ds))
	for k := range ds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (ds Delegates) Delegate(model string) (ModelDelegate, bool) {
	if d, ok := ds[model]; ok {
		return d, true
	}
	want := schema.Normalize(model)
	for k, d := range ds {
		if schema.Normalize(k) == want {
			return d, true
		}
	}
	return nil, false
}

// Funcs adapts plain functions into a delegate. Nil functions are
// reported as unsupported.
type Funcs struct {
	CreateFn     func(ctx context.Context, args Args) (Record, error)
	FindManyFn   func(ctx context.Context, args Args) ([]Record, error)
	FindUniqueFn func(ctx context.Context, args Args) (Record, error)
	UpdateFn     func(ctx context.Context, args Args) (Record, error)
	DeleteFn     func(ctx context.Context, args Args) (Record, error)
	CountFn      func(ctx context.Context, args Args) (int64, error)
	AggregateFn  func(ctx context.Context, args Args) (map[string]any, error)
}

func (f Funcs) Supports(op Op) bool {
	switch op {
	case OpCreate:
		return f.CreateFn != nil
	case OpFindMany:
		return f.FindManyFn != nil
	case OpFindUnique:
		return f.FindUniqueFn != nil
	case OpUpdate:
		return f.UpdateFn != nil
	case OpDelete:
		return f.DeleteFn != nil
	case OpCount:
		return f.CountFn != nil
	case OpAggregate:
		return f.AggregateFn != nil
	}
	return false
}

func unsupported(op Op) error { return &apperrors.OperationError{Op: string(op)} }

func (f Funcs) Create(ctx context.Context, args Args) (Record, error) {
	if f.CreateFn == nil {
		return nil, unsupported(OpCreate)
	}
	return f.CreateFn(ctx, args)
}

func (f Funcs) FindMany(ctx context.Context, args Args) ([]Record, error) {
	if f.FindManyFn == nil {
		return nil, unsupported(OpFindMany)
	}
	return f.FindManyFn(ctx, args)
}

func (f Funcs) FindUnique(ctx context.Context, args Args) (Record, error) {
	if f.FindUniqueFn == nil {
		return nil, unsupported(OpFindUnique)
	}
	return f.FindUniqueFn(ctx, args)
}

func (f Funcs) Update(ctx context.Context, args Args) (Record, error) {
	if f.UpdateFn == nil {
		return nil, unsupported(OpUpdate)
	}
	return f.UpdateFn(ctx, args)
}

func (f Funcs) Delete(ctx context.Context, args Args) (Record, error) {
	if f.DeleteFn == nil {
		return nil, unsupported(OpDelete)
	}
	return f.DeleteFn(ctx, args)
}

func (f Funcs) Count(ctx context.Context, args Args) (int64, error) {
	if f.CountFn == nil {
		return 0, unsupported(OpCount)
	}
	return f.CountFn(ctx, args)
}

func (f Funcs) Aggregate(ctx context.Context, args Args) (map[string]any, error) {
	if f.AggregateFn == nil {
		return nil, unsupported(OpAggregate)
	}
	return f.AggregateFn(ctx, args)
}
