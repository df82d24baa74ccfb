package paypal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
)

// ErrorDetail is one entry of the processor's structured validation output.
type ErrorDetail struct {
	Field       string `json:"field,omitempty"`
	Value       string `json:"value,omitempty"`
	Location    string `json:"location,omitempty"`
	Issue       string `json:"issue,omitempty"`
	Description string `json:"description,omitempty"`
}

// ProcessorError is a decoded non-2xx response.
type ProcessorError struct {
	StatusCode       int           `json:"-"`
	Name             string        `json:"name,omitempty"`
	Message          string        `json:"message,omitempty"`
	DebugID          string        `json:"debug_id,omitempty"`
	Details          []ErrorDetail `json:"details,omitempty"`
	ErrorCode        string        `json:"error,omitempty"`
	ErrorDescription string        `json:"error_description,omitempty"`
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("paypal %d %s: %s", e.StatusCode, e.Name, e.UserMessage())
}

// UserMessage picks the most specific human readable text in priority order:
// detail description/issue, top-level message, error_description, then name.
func (e *ProcessorError) UserMessage() string {
	if e == nil {
		return ""
	}
	for _, d := range e.Details {
		if msg := strings.TrimSpace(d.Description); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(d.Issue); msg != "" {
			return msg
		}
	}
	for _, candidate := range []string{e.Message, e.ErrorDescription, e.Name, e.ErrorCode} {
		if msg := strings.TrimSpace(candidate); msg != "" {
			return msg
		}
	}
	return http.StatusText(e.StatusCode)
}

// IsNameConflict reports whether the processor rejected a create because the
// resource name already exists.
func (e *ProcessorError) IsNameConflict() bool {
	if e == nil {
		return false
	}
	if e.StatusCode == http.StatusConflict {
		return true
	}
	switch strings.ToUpper(e.Name) {
	case "DUPLICATE_RESOURCE", "RESOURCE_CONFLICT", "DUPLICATE_REQUEST_ID":
		return true
	}
	for _, d := range e.Details {
		if strings.Contains(strings.ToUpper(d.Issue), "DUPLICATE") {
			return true
		}
	}
	return false
}

// FieldHint returns the first detail field and location, if any.
func (e *ProcessorError) FieldHint() (field, location string) {
	if e == nil {
		return "", ""
	}
	for _, d := range e.Details {
		if d.Field != "" || d.Location != "" {
			return d.Field, d.Location
		}
	}
	return "", ""
}

func (e *ProcessorError) detailsMap() map[string]any {
	out := map[string]any{
		"status":  e.StatusCode,
		"message": e.UserMessage(),
	}
	if e.Name != "" {
		out["name"] = e.Name
	}
	if e.DebugID != "" {
		out["debugId"] = e.DebugID
	}
	if field, location := e.FieldHint(); field != "" || location != "" {
		out["field"] = field
		out["location"] = location
	}
	return out
}

// AsProcessorError extracts a ProcessorError from an error chain.
func AsProcessorError(err error) *ProcessorError {
	var procErr *ProcessorError
	if errors.As(err, &procErr) {
		return procErr
	}
	return nil
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeConfiguration
	default:
		return pkgerrors.CodeDependency
	}
}

func mapProcessorError(procErr *ProcessorError, op string) error {
	return pkgerrors.Wrap(domainCodeForStatus(procErr.StatusCode), procErr, fmt.Sprintf("paypal %s failed", op)).
		WithDetails(procErr.detailsMap())
}
