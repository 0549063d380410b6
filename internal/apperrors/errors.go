package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrSchema     = errors.New("schema error")
	ErrClient     = errors.New("data client unavailable")
	ErrOperation  = errors.New("operation not supported")
	ErrCache      = errors.New("cache error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Issue is a single field-level validation problem.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Issue codes.
const (
	CodeRequired    = "required"
	CodeInvalidType = "invalid_type"
	CodeReadonly    = "readonly_field"
	CodeInvalidItem = "invalid_item"
)

type Issues []Issue

func (is Issues) Error() string {
	parts := make([]string, 0, len(is))
	for _, i := range is {
		if i.Path == "" {
			parts = append(parts, i.Message)
			continue
		}
		parts = append(parts, i.Path+": "+i.Message)
	}
	return strings.Join(parts, "; ")
}

type ValidationError struct {
	Model  string
	Issues Issues
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("%s: %s", e.Model, ErrValidation)
	}
	return fmt.Sprintf("%s: %s", e.Model, e.Issues.Error())
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// SchemaError reports an unknown model or field.
type SchemaError struct {
	Model string
	Field string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("model %q has no field %q", e.Model, e.Field)
	}
	return fmt.Sprintf("model %q not found in schema", e.Model)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ClientError is returned by write operations when no data client is configured.
type ClientError struct {
	Op string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: data client is not available", e.Op)
}

func (e *ClientError) Is(target error) bool { return target == ErrClient }

type OperationError struct {
	Op    string
	Model string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s operation not available for model %q", e.Op, e.Model)
}

func (e *OperationError) Is(target error) bool { return target == ErrOperation }

type CacheError struct {
	Op     string
	Reason string
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %s", e.Op, e.Reason)
}

func (e *CacheError) Is(target error) bool { return target == ErrCache }

// IssuesOf extracts validation issues from err, if any.
func IssuesOf(err error) Issues {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Issues
	}
	return nil
}
