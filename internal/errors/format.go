package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal display.
// Errors that are not ViewErrors are reported as internal.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ve, ok := As(err)
	if !ok {
		ve = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ve.Message))
	if ve.Cause != nil && ve.Cause.Error() != ve.Message {
		sb.WriteString(fmt.Sprintf("  Cause: %s\n", ve.Cause.Error()))
	}
	if ve.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ve.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ve.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ve, ok := As(err)
	if !ok {
		ve = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ve.Code,
		Message:    ve.Message,
		Category:   string(ve.Category),
		Severity:   string(ve.Severity),
		Details:    ve.Details,
		Suggestion: ve.Suggestion,
		Retryable:  ve.Retryable,
	}
	if ve.Cause != nil {
		je.Cause = ve.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ve, ok := As(err)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": ve.Code,
		"message":    ve.Message,
		"category":   string(ve.Category),
		"severity":   string(ve.Severity),
		"retryable":  ve.Retryable,
	}
	if ve.Cause != nil {
		result["cause"] = ve.Cause.Error()
	}
	if ve.Suggestion != "" {
		result["suggestion"] = ve.Suggestion
	}
	for k, v := range ve.Details {
		result["detail_"+k] = v
	}

	return result
}
