package validator

import (
	"github.com/goccy/go-json"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
)

// Outcome is either a success carrying validated data or a failure
// carrying issues. Build it with Success or Failure.
type Outcome struct {
	ok     bool
	data   map[string]any
	issues apperrors.Issues
}

func Success(data map[string]any) Outcome {
	return Outcome{ok: true, data: data}
}

func Failure(issues apperrors.Issues) Outcome {
	if len(issues) == 0 {
		issues = apperrors.Issues{{Code: apperrors.CodeInvalidType, Message: "invalid payload"}}
	}
	return Outcome{issues: issues}
}

func (o Outcome) OK() bool                 { return o.ok }
func (o Outcome) Data() map[string]any     { return o.data }
func (o Outcome) Issues() apperrors.Issues { return o.issues }

// Message is the formatted "path: message; ..." string of a failure, empty on success.
func (o Outcome) Message() string {
	if o.ok {
		return ""
	}
	return o.issues.Error()
}

// Err converts a failure into a *apperrors.ValidationError for model.
func (o Outcome) Err(model string) error {
	if o.ok {
		return nil
	}
	return &apperrors.ValidationError{Model: model, Issues: o.issues}
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.ok {
		return json.Marshal(struct {
			Success bool           `json:"success"`
			Data    map[string]any `json:"data"`
		}{true, o.data})
	}
	return json.Marshal(struct {
		Success bool             `json:"success"`
		Error   string           `json:"error"`
		Issues  apperrors.Issues `json:"issues"`
	}{false, o.Message(), o.issues})
}
