package validator

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/schema"
)

func personObject() *Object {
	return NewObject([]Field{
		{Name: "name", Validator: MapField(schema.FieldMetadata{Name: "name", Type: "String", Kind: schema.KindScalar, IsRequired: true})},
		{Name: "age", Validator: MapField(schema.FieldMetadata{Name: "age", Type: "Int", Kind: schema.KindScalar})},
	})
}

func TestRequiredAndOptional(t *testing.T) {
	obj := personObject()

	out := obj.Check(map[string]any{"name": "a"})
	require.True(t, out.OK())
	require.Equal(t, map[string]any{"name": "a"}, out.Data())

	out = obj.Check(map[string]any{"age": 5})
	require.False(t, out.OK())
	require.Equal(t, "name", out.Issues()[0].Path)
	require.Equal(t, apperrors.CodeRequired, out.Issues()[0].Code)

	out = obj.Check(map[string]any{"name": "a", "age": "x"})
	require.False(t, out.OK())
	require.Equal(t, "age: expected integer, received string", out.Message())
}

func TestNullableScalarButNotList(t *testing.T) {
	scalar := MapField(schema.FieldMetadata{Name: "nick", Type: "String"})
	list := MapField(schema.FieldMetadata{Name: "tags", Type: "String", IsList: true})
	obj := NewObject([]Field{{Name: "nick", Validator: scalar}, {Name: "tags", Validator: list}})

	out := obj.Check(map[string]any{"nick": nil})
	require.True(t, out.OK())
	require.Contains(t, out.Data(), "nick")
	require.Nil(t, out.Data()["nick"])

	require.True(t, obj.Check(map[string]any{}).OK())
	require.False(t, obj.Check(map[string]any{"tags": nil}).OK())
}

func TestListWrapping(t *testing.T) {
	v := MapField(schema.FieldMetadata{Name: "tags", Type: "String", IsList: true, IsRequired: true})

	got, issues := v.Validate([]any{"a", "b"}, "tags")
	require.Empty(t, issues)
	require.Equal(t, []any{"a", "b"}, got)

	_, issues = v.Validate("a", "tags")
	require.NotEmpty(t, issues)

	_, issues = v.Validate([]any{1, 2}, "tags")
	require.Len(t, issues, 2)
	require.Equal(t, "tags[0]", issues[0].Path)

	got, issues = v.Validate([]string{"x"}, "tags")
	require.Empty(t, issues)
	require.Equal(t, []any{"x"}, got)
}

func TestBaseTypes(t *testing.T) {
	cases := []struct {
		typ  string
		in   any
		want any
		ok   bool
	}{
		{"String", "s", "s", true},
		{"String", 1, nil, false},
		{"Int", 3, int64(3), true},
		{"Int", 3.0, int64(3), true},
		{"Int", 3.5, nil, false},
		{"Int", json.Number("42"), int64(42), true},
		{"Float", 1.5, 1.5, true},
		{"Float", 2, 2.0, true},
		{"Decimal", json.Number("2.25"), 2.25, true},
		{"Float", "1.5", nil, false},
		{"Boolean", true, true, true},
		{"Boolean", "true", nil, false},
		{"Json", map[string]any{"a": 1}, map[string]any{"a": 1}, true},
		{"Bytes", []byte("x"), []byte("x"), true},
		{"Bytes", "x", "x", true},
		{"Bytes", 1, nil, false},
		{"Role", "ADMIN", "ADMIN", true},
		{"Role", 1, nil, false},
	}
	for _, tc := range cases {
		got, issues := Base(tc.typ).Validate(tc.in, "f")
		if !tc.ok {
			assert.NotEmpty(t, issues, "%s %v", tc.typ, tc.in)
			continue
		}
		assert.Empty(t, issues, "%s %v", tc.typ, tc.in)
		assert.Equal(t, tc.want, got, "%s %v", tc.typ, tc.in)
	}
}

func TestBigInt(t *testing.T) {
	huge := "123456789012345678901234567890"
	for _, in := range []any{huge, json.Number(huge)} {
		got, issues := BigInt().Validate(in, "n")
		require.Empty(t, issues)
		require.Equal(t, huge, got.(*big.Int).String())
	}
	got, issues := BigInt().Validate(7, "n")
	require.Empty(t, issues)
	require.Equal(t, int64(7), got.(*big.Int).Int64())

	_, issues = BigInt().Validate("12a", "n")
	require.NotEmpty(t, issues)
}

func TestDateTime(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	for _, in := range []any{"2024-03-01T10:30:00Z", want, want.UnixMilli()} {
		got, issues := DateTime().Validate(in, "at")
		require.Empty(t, issues, "%v", in)
		require.True(t, want.Equal(got.(time.Time)), "%v", in)
	}
	got, issues := DateTime().Validate("2024-03-01", "at")
	require.Empty(t, issues)
	require.Equal(t, 2024, got.(time.Time).Year())

	_, issues = DateTime().Validate("yesterday", "at")
	require.Len(t, issues, 1)
	_, issues = DateTime().Validate(true, "at")
	require.Len(t, issues, 1)
}

func TestRequiredJsonMayBeOmitted(t *testing.T) {
	obj := NewObject([]Field{{Name: "meta", Validator: MapField(schema.FieldMetadata{Name: "meta", Type: "Json", IsRequired: true})}})
	require.True(t, obj.Check(map[string]any{}).OK())
}

func TestRelationStub(t *testing.T) {
	f := schema.FieldMetadata{Name: "author", Type: "User", Kind: schema.KindObject, RelationName: "PostAuthor", IsRequired: true}
	obj := NewObject([]Field{{Name: "author", Validator: MapField(f)}})

	out := obj.Check(map[string]any{"author": map[string]any{"id": "u1", "name": "dropped"}})
	require.True(t, out.OK())
	require.Equal(t, map[string]any{"id": "u1"}, out.Data()["author"])

	out = obj.Check(map[string]any{"author": map[string]any{"id": 7.0}})
	require.True(t, out.OK())
	require.Equal(t, map[string]any{"id": int64(7)}, out.Data()["author"])

	require.True(t, obj.Check(map[string]any{}).OK(), "relation may be omitted")
	require.True(t, obj.Check(map[string]any{"author": map[string]any{}}).OK())

	out = obj.Check(map[string]any{"author": map[string]any{"id": true}})
	require.False(t, out.OK())
	require.Equal(t, "author.id", out.Issues()[0].Path)

	// an object field without a relation name is not a stub
	plain := MapField(schema.FieldMetadata{Name: "x", Type: "User", Kind: schema.KindObject, IsRequired: true})
	_, issues := plain.Validate(map[string]any{}, "x")
	require.NotEmpty(t, issues)
}

func TestUnknownKeysStripped(t *testing.T) {
	out := personObject().Check(map[string]any{"name": "a", "admin": true})
	require.True(t, out.OK())
	require.NotContains(t, out.Data(), "admin")
}

func TestNonObjectPayload(t *testing.T) {
	out := personObject().Check([]any{1})
	require.False(t, out.OK())
	require.Equal(t, "expected object, received array", out.Message())
}

func TestPartialAndOmit(t *testing.T) {
	p := personObject().Partial()
	require.True(t, p.Check(map[string]any{}).OK())
	require.False(t, p.Check(map[string]any{"name": 1}).OK())

	o := personObject().Omit("name")
	require.Equal(t, []string{"age"}, o.Fields())
}

func TestOutcomeJSON(t *testing.T) {
	ok, err := json.Marshal(Success(map[string]any{"a": 1}))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"data":{"a":1}}`, string(ok))

	bad, err := json.Marshal(Failure(apperrors.Issues{{Path: "a", Code: "required", Message: "is required"}}))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":false,"error":"a: is required","issues":[{"path":"a","code":"required","message":"is required"}]}`, string(bad))

	require.ErrorIs(t, Failure(nil).Err("user"), apperrors.ErrValidation)
	require.NoError(t, Success(nil).Err("user"))
}
