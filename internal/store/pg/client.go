// Package pg is a store.Client backed by PostgreSQL. Tables and columns
// are derived from the schema registry; GenerateDDL creates them.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/schema"
	"github.com/MM25Zamanian/prismate/internal/store"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Client struct {
	db     Querier
	reg    *schema.Registry
	logger *zap.Logger
}

func New(db Querier, reg *schema.Registry, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{db: db, reg: reg, logger: logger.Named("pg")}
}

func (c *Client) Models() []string { return c.reg.Models() }

func (c *Client) Delegate(model string) (store.ModelDelegate, bool) {
	m, ok := c.reg.Model(model)
	if !ok {
		return nil, false
	}
	return &delegate{c: c, m: m}, true
}

type delegate struct {
	c *Client
	m *schema.ModelSchema
}

// columnList returns the stored fields of the model and their quoted
// column names in declaration order.
func (d *delegate) columnList() ([]schema.FieldMetadata, string) {
	var (
		fields []schema.FieldMetadata
		cols   []string
	)
	for _, f := range d.m.Fields() {
		if stored(f) {
			fields = append(fields, f)
			cols = append(cols, sqlIdent(columnName(f)))
		}
	}
	return fields, strings.Join(cols, ", ")
}

func (d *delegate) query(ctx context.Context, q string, args []any) ([]store.Record, error) {
	d.c.logger.Debug("query", zap.String("model", d.m.Name()), zap.String("sql", q), zap.Int("args", len(args)))
	rows, err := d.c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, d.mapError(err)
	}
	defer rows.Close()

	fields, _ := d.columnList()
	var out []store.Record
	for rows.Next() {
		vals := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(store.Record, len(fields))
		for i, f := range fields {
			rec[f.Name] = decode(f, vals[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, d.mapError(err)
	}
	return out, nil
}

// mapError translates constraint violations into the store's error kinds.
func (d *delegate) mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505", "23503":
		return fmt.Errorf("%s %s: %w", d.m.Name(), pgErr.ConstraintName, apperrors.ErrConflict)
	case "23502", "23514", "22P02":
		path := pgErr.ColumnName
		for _, f := range d.m.Fields() {
			if stored(f) && columnName(f) == pgErr.ColumnName {
				path = f.Name
			}
		}
		code := apperrors.CodeInvalidType
		if pgErr.Code == "23502" {
			code = apperrors.CodeRequired
		}
		return &apperrors.ValidationError{
			Model:  d.m.Name(),
			Issues: apperrors.Issues{{Path: path, Code: code, Message: pgErr.Message}},
		}
	}
	return err
}

func (d *delegate) Create(ctx context.Context, args store.Args) (store.Record, error) {
	b := newBuilder(d.m)
	var (
		cols []string
		ph   []string
	)
	for _, f := range d.m.Fields() {
		if !stored(f) {
			continue
		}
		v, present := lookup(args.Data, f)
		if !present && generated(f) {
			v, present = newID(f), true
		}
		if !present {
			continue
		}
		p, err := b.bind(f, v)
		if err != nil {
			return nil, err
		}
		cols = append(cols, sqlIdent(columnName(f)))
		ph = append(ph, p)
	}
	_, list := d.columnList()
	var q string
	if len(cols) == 0 {
		q = fmt.Sprintf("insert into %s default values returning %s", qualified(d.m), list)
	} else {
		q = fmt.Sprintf("insert into %s (%s) values (%s) returning %s",
			qualified(d.m), strings.Join(cols, ", "), strings.Join(ph, ", "), list)
	}
	recs, err := d.query(ctx, q, b.args)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: insert returned no row", d.m.Name())
	}
	return d.shape(ctx, recs[0], args.Select, args.Include)
}

// lookup finds a data key for f under any spelling of its name.
func lookup(data map[string]any, f schema.FieldMetadata) (any, bool) {
	if v, ok := data[f.Name]; ok {
		return v, true
	}
	for k, v := range data {
		if schema.Normalize(k) == f.Name {
			return v, true
		}
	}
	return nil, false
}

func newID(f schema.FieldMetadata) any {
	if defaultName(f.Default) == "uuid" {
		return uuid.NewString()
	}
	return ulid.Make().String()
}

func (d *delegate) FindMany(ctx context.Context, args store.Args) ([]store.Record, error) {
	b := newBuilder(d.m)
	cond, err := b.where(args.Where)
	if err != nil {
		return nil, err
	}
	order, err := b.orderBy(args.OrderBy)
	if err != nil {
		return nil, err
	}
	_, list := d.columnList()
	q := fmt.Sprintf("select %s from %s where %s%s%s", list, qualified(d.m), cond, order, page(args.Skip, args.Take))
	recs, err := d.query(ctx, q, b.args)
	if err != nil {
		return nil, err
	}
	out := make([]store.Record, 0, len(recs))
	for _, r := range recs {
		shaped, err := d.shape(ctx, r, args.Select, args.Include)
		if err != nil {
			return nil, err
		}
		out = append(out, shaped)
	}
	return out, nil
}

func (d *delegate) FindUnique(ctx context.Context, args store.Args) (store.Record, error) {
	rec, err := d.first(ctx, args.Where)
	if err != nil || rec == nil {
		return nil, err
	}
	return d.shape(ctx, rec, args.Select, args.Include)
}

func (d *delegate) first(ctx context.Context, where map[string]any) (store.Record, error) {
	b := newBuilder(d.m)
	cond, err := b.where(where)
	if err != nil {
		return nil, err
	}
	_, list := d.columnList()
	recs, err := d.query(ctx, fmt.Sprintf("select %s from %s where %s limit 1", list, qualified(d.m), cond), b.args)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// target renders a row locator for update and delete: the first row that
// matches where, addressed by ctid.
func (d *delegate) target(b *builder, where map[string]any) (string, error) {
	cond, err := b.where(where)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ctid = (select ctid from %s where %s limit 1)", qualified(d.m), cond), nil
}

func (d *delegate) Update(ctx context.Context, args store.Args) (store.Record, error) {
	b := newBuilder(d.m)
	var sets []string
	for _, f := range d.m.Fields() {
		if !stored(f) || f.IsID {
			continue
		}
		v, present := lookup(args.Data, f)
		if !present {
			continue
		}
		p, err := b.bind(f, v)
		if err != nil {
			return nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", sqlIdent(columnName(f)), p))
	}
	if len(sets) == 0 {
		rec, err := d.first(ctx, args.Where)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("%s: %w", d.m.Name(), apperrors.ErrNotFound)
		}
		return d.shape(ctx, rec, args.Select, args.Include)
	}
	loc, err := d.target(b, args.Where)
	if err != nil {
		return nil, err
	}
	_, list := d.columnList()
	q := fmt.Sprintf("update %s set %s where %s returning %s", qualified(d.m), strings.Join(sets, ", "), loc, list)
	recs, err := d.query(ctx, q, b.args)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: %w", d.m.Name(), apperrors.ErrNotFound)
	}
	return d.shape(ctx, recs[0], args.Select, args.Include)
}

func (d *delegate) Delete(ctx context.Context, args store.Args) (store.Record, error) {
	b := newBuilder(d.m)
	loc, err := d.target(b, args.Where)
	if err != nil {
		return nil, err
	}
	_, list := d.columnList()
	recs, err := d.query(ctx, fmt.Sprintf("delete from %s where %s returning %s", qualified(d.m), loc, list), b.args)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: %w", d.m.Name(), apperrors.ErrNotFound)
	}
	return recs[0], nil
}

func (d *delegate) Count(ctx context.Context, args store.Args) (int64, error) {
	b := newBuilder(d.m)
	cond, err := b.where(args.Where)
	if err != nil {
		return 0, err
	}
	rows, err := d.c.db.QueryContext(ctx, fmt.Sprintf("select count(*) from %s where %s", qualified(d.m), cond), b.args...)
	if err != nil {
		return 0, d.mapError(err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// shape projects selected fields and loads included relations with one
// extra query per relation.
func (d *delegate) shape(ctx context.Context, row store.Record, sel, include any) (store.Record, error) {
	picked := store.Selection(sel)
	out := make(store.Record, len(row))
	for k, v := range row {
		if picked == nil || picked[k] {
			out[k] = v
		}
	}
	for name := range store.Selection(include) {
		f, ok := d.m.Field(name)
		if !ok || !f.IsRelation() {
			continue
		}
		v, err := d.related(ctx, row, f)
		if err != nil {
			return nil, fmt.Errorf("include %s: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func (d *delegate) related(ctx context.Context, row store.Record, f schema.FieldMetadata) (any, error) {
	target, ok := d.c.reg.Model(f.Target)
	if !ok {
		return nil, nil
	}
	td := &delegate{c: d.c, m: target}
	if len(f.RelationFromFields) > 0 {
		where := map[string]any{}
		for i, from := range f.RelationFromFields {
			if i < len(f.RelationToFields) {
				if row[from] == nil {
					return nil, nil
				}
				where[f.RelationToFields[i]] = row[from]
			}
		}
		return td.first(ctx, where)
	}

	var mirror *schema.FieldMetadata
	for _, tf := range target.Relations() {
		if tf.RelationName == f.RelationName && tf.Target == d.m.Name() && len(tf.RelationFromFields) > 0 {
			tf := tf
			mirror = &tf
			break
		}
	}
	if mirror == nil {
		if f.IsList {
			return []store.Record{}, nil
		}
		return nil, nil
	}
	where := map[string]any{}
	for i, from := range mirror.RelationFromFields {
		if i < len(mirror.RelationToFields) {
			where[from] = row[mirror.RelationToFields[i]]
		}
	}
	found, err := td.FindMany(ctx, store.Args{Where: where})
	if err != nil {
		return nil, err
	}
	if f.IsList {
		if found == nil {
			found = []store.Record{}
		}
		return found, nil
	}
	if len(found) > 0 {
		return found[0], nil
	}
	return nil, nil
}
