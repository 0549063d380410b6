package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{&ValidationError{Model: "user"}, ErrValidation},
		{&SchemaError{Model: "user"}, ErrSchema},
		{&ClientError{Op: "create"}, ErrClient},
		{&OperationError{Op: "count", Model: "user"}, ErrOperation},
		{&CacheError{Op: "set", Reason: "broken"}, ErrCache},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", tc.err)
		assert.ErrorIs(t, wrapped, tc.sentinel)
		assert.NotErrorIs(t, wrapped, ErrNotFound)
	}
}

func TestIssuesFormatting(t *testing.T) {
	is := Issues{
		{Path: "email", Code: CodeRequired, Message: "is required"},
		{Path: "age", Code: CodeInvalidType, Message: "expected integer"},
	}
	require.Equal(t, "email: is required; age: expected integer", is.Error())

	err := fmt.Errorf("create: %w", &ValidationError{Model: "user", Issues: is})
	require.Len(t, IssuesOf(err), 2)
	require.Nil(t, IssuesOf(errors.New("plain")))
}

func TestSchemaErrorMessage(t *testing.T) {
	require.Equal(t, `model "ghost" not found in schema`, (&SchemaError{Model: "ghost"}).Error())
	require.Equal(t, `model "user" has no field "x"`, (&SchemaError{Model: "user", Field: "x"}).Error())
}
