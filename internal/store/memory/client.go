// Package memory is an in-process store.Client that keeps rows in maps.
// It interprets the common Prisma query arguments so the service can run
// without a database.
package memory

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/schema"
	"github.com/MM25Zamanian/prismate/internal/store"
)

type table struct {
	model *schema.ModelSchema
	rows  []store.Record
	seq   int64
}

type Client struct {
	mu      sync.RWMutex
	reg     *schema.Registry
	tables  map[string]*table
	entropy io.Reader
	now     func() time.Time
}

// New creates an empty table for every model of reg.
func New(reg *schema.Registry) *Client {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	c := &Client{
		reg:     reg,
		tables:  make(map[string]*table, reg.Len()),
		entropy: ulid.Monotonic(src, 0),
		now:     time.Now,
	}
	for _, name := range reg.Models() {
		m, _ := reg.Model(name)
		c.tables[name] = &table{model: m}
	}
	return c
}

// Models returns the canonical names of all tables.
func (c *Client) Models() []string { return c.reg.Models() }

func (c *Client) Delegate(model string) (store.ModelDelegate, bool) {
	name := schema.Normalize(model)
	if _, ok := c.tables[name]; !ok {
		return nil, false
	}
	return &delegate{c: c, model: name}, true
}

func (c *Client) newID() string {
	return ulid.MustNew(ulid.Timestamp(c.now()), c.entropy).String()
}

type delegate struct {
	c     *Client
	model string
}

func (d *delegate) table() *table { return d.c.tables[d.model] }

func (d *delegate) Create(ctx context.Context, args store.Args) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.c.mu.Lock()
	defer d.c.mu.Unlock()

	t := d.table()
	row := make(store.Record, t.model.Len())
	for k, v := range args.Data {
		if f, ok := t.model.Field(k); ok {
			row[f.Name] = v
		}
	}
	if err := d.c.applyDefaults(t, row); err != nil {
		return nil, err
	}
	if err := checkUnique(t, row, -1); err != nil {
		return nil, err
	}
	t.rows = append(t.rows, row)
	return d.c.shape(t, row, args.Select, args.Include), nil
}

// applyDefaults fills missing fields: the id first, then declared defaults.
func (c *Client) applyDefaults(t *table, row store.Record) error {
	for _, f := range t.model.Fields() {
		if _, present := row[f.Name]; present {
			if f.IsID && f.Type == "Int" {
				if n, ok := toInt(row[f.Name]); ok && n > t.seq {
					t.seq = n
				}
			}
			continue
		}
		switch {
		case f.IsID && f.Type == "Int":
			t.seq++
			row[f.Name] = t.seq
		case f.IsID && f.Type == "String":
			row[f.Name] = c.newID()
		case f.HasDefaultValue:
			v, ok := c.defaultValue(t, f)
			if ok {
				row[f.Name] = v
			}
		case f.IsRequired && f.Kind != schema.KindObject && !f.IsList && f.Type != "Json":
			return &apperrors.ValidationError{
				Model:  t.model.Name(),
				Issues: apperrors.Issues{{Path: f.Name, Code: apperrors.CodeRequired, Message: "is required"}},
			}
		}
	}
	return nil
}

// defaultValue evaluates literal defaults and the usual generator names.
func (c *Client) defaultValue(t *table, f schema.FieldMetadata) (any, bool) {
	raw := f.Default
	if m, ok := raw.(map[string]any); ok {
		raw = m["name"]
	}
	if s, ok := raw.(string); ok {
		switch strings.TrimSuffix(strings.ToLower(s), "()") {
		case "autoincrement":
			t.seq++
			return t.seq, true
		case "now":
			return c.now().UTC(), true
		case "uuid", "cuid", "ulid":
			return c.newID(), true
		}
	}
	if f.Type == "Int" {
		if n, ok := toInt(raw); ok {
			return n, true
		}
	}
	return raw, raw != nil
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	}
	return 0, false
}

func checkUnique(t *table, row store.Record, self int) error {
	check := func(fields []string) error {
		for i, other := range t.rows {
			if i == self {
				continue
			}
			same := true
			for _, f := range fields {
				v, ok := row[f]
				if !ok || v == nil || !equal(v, other[f]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%s %v: %w", t.model.Name(), fields, apperrors.ErrConflict)
			}
		}
		return nil
	}
	for _, f := range t.model.Fields() {
		if f.IsID || f.IsUnique {
			if err := check([]string{f.Name}); err != nil {
				return err
			}
		}
	}
	for _, set := range t.model.UniqueFields() {
		if err := check(set); err != nil {
			return err
		}
	}
	return nil
}

func (d *delegate) FindMany(ctx context.Context, args store.Args) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.c.mu.RLock()
	defer d.c.mu.RUnlock()

	t := d.table()
	hits := make([]store.Record, 0, len(t.rows))
	for _, r := range t.rows {
		if matches(r, args.Where) {
			hits = append(hits, r)
		}
	}
	sortRows(hits, store.ParseOrderBy(args.OrderBy))
	hits = page(hits, args.Skip, args.Take)

	out := make([]store.Record, len(hits))
	for i, r := range hits {
		out[i] = d.c.shape(t, r, args.Select, args.Include)
	}
	return out, nil
}

func page(rows []store.Record, skip, take *int) []store.Record {
	start := 0
	if skip != nil && *skip > 0 {
		start = *skip
	}
	if start > len(rows) {
		start = len(rows)
	}
	end := len(rows)
	if take != nil && *take >= 0 && start+*take < end {
		end = start + *take
	}
	return rows[start:end]
}

func (d *delegate) FindUnique(ctx context.Context, args store.Args) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.c.mu.RLock()
	defer d.c.mu.RUnlock()

	t := d.table()
	i := t.find(args.Where)
	if i < 0 {
		return nil, nil
	}
	return d.c.shape(t, t.rows[i], args.Select, args.Include), nil
}

func (t *table) find(where map[string]any) int {
	for i, r := range t.rows {
		if matches(r, where) {
			return i
		}
	}
	return -1
}

func (d *delegate) Update(ctx context.Context, args store.Args) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.c.mu.Lock()
	defer d.c.mu.Unlock()

	t := d.table()
	i := t.find(args.Where)
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", d.model, apperrors.ErrNotFound)
	}
	next := make(store.Record, len(t.rows[i]))
	for k, v := range t.rows[i] {
		next[k] = v
	}
	for k, v := range args.Data {
		if f, ok := t.model.Field(k); ok && !f.IsID {
			next[f.Name] = v
		}
	}
	if err := checkUnique(t, next, i); err != nil {
		return nil, err
	}
	t.rows[i] = next
	return d.c.shape(t, next, args.Select, args.Include), nil
}

func (d *delegate) Delete(ctx context.Context, args store.Args) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.c.mu.Lock()
	defer d.c.mu.Unlock()

	t := d.table()
	i := t.find(args.Where)
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", d.model, apperrors.ErrNotFound)
	}
	row := t.rows[i]
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	return d.c.shape(t, row, nil, nil), nil
}

func (d *delegate) Count(ctx context.Context, args store.Args) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.c.mu.RLock()
	defer d.c.mu.RUnlock()

	var n int64
	for _, r := range d.table().rows {
		if matches(r, args.Where) {
			n++
		}
	}
	return n, nil
}

// shape copies row, keeps only selected fields and resolves included relations.
func (c *Client) shape(t *table, row store.Record, sel, include any) store.Record {
	picked := store.Selection(sel)
	out := make(store.Record, len(row))
	for k, v := range row {
		if picked == nil || picked[k] {
			out[k] = v
		}
	}
	for name := range store.Selection(include) {
		f, ok := t.model.Field(name)
		if !ok || !f.IsRelation() {
			continue
		}
		out[f.Name] = c.related(t, row, f)
	}
	return out
}

// related follows a relation without further includes. Owning sides use
// their foreign keys; back relations scan the target for the mirror field.
func (c *Client) related(t *table, row store.Record, f schema.FieldMetadata) any {
	target, ok := c.tables[f.Target]
	if !ok {
		return nil
	}
	if len(f.RelationFromFields) > 0 {
		where := make(map[string]any, len(f.RelationFromFields))
		for i, from := range f.RelationFromFields {
			if i >= len(f.RelationToFields) {
				break
			}
			where[f.RelationToFields[i]] = row[from]
		}
		if i := target.find(where); i >= 0 {
			return c.shape(target, target.rows[i], nil, nil)
		}
		return nil
	}

	var mirror *schema.FieldMetadata
	for _, tf := range target.model.Relations() {
		if tf.RelationName == f.RelationName && tf.Target == t.model.Name() && len(tf.RelationFromFields) > 0 {
			tf := tf
			mirror = &tf
			break
		}
	}
	var found []store.Record
	if mirror != nil {
		where := make(map[string]any, len(mirror.RelationFromFields))
		for i, from := range mirror.RelationFromFields {
			if i < len(mirror.RelationToFields) {
				where[from] = row[mirror.RelationToFields[i]]
			}
		}
		for _, r := range target.rows {
			if matches(r, where) {
				found = append(found, c.shape(target, r, nil, nil))
			}
		}
	}
	if f.IsList {
		if found == nil {
			found = []store.Record{}
		}
		return found
	}
	if len(found) > 0 {
		return found[0]
	}
	return nil
}
