package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const nonFieldErrors = "non_field_errors"

// Error is a non-2xx upstream answer. Validation failures arrive as a mapping
// from field name to messages; everything else usually carries a detail string.
type Error struct {
	Status int
	Detail string
	Fields map[string][]string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("upstream %d: %s", e.Status, e.Detail)
	}
	if msg, ok := e.FieldMessage(); ok {
		return fmt.Sprintf("upstream %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("upstream %d: %s", e.Status, http.StatusText(e.Status))
}

// FieldMessage returns the first message of the first populated field. When
// fields is empty every field is considered: non_field_errors first, then the
// rest in name order.
func (e *Error) FieldMessage(fields ...string) (string, bool) {
	if len(fields) == 0 {
		fields = e.fieldOrder()
	}
	for _, name := range fields {
		for _, msg := range e.Fields[name] {
			if msg = strings.TrimSpace(msg); msg != "" {
				return msg, true
			}
		}
	}
	return "", false
}

func (e *Error) fieldOrder() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		if name != nonFieldErrors {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := e.Fields[nonFieldErrors]; ok {
		names = append([]string{nonFieldErrors}, names...)
	}
	return names
}

func parseError(status int, body []byte) *Error {
	apiErr := &Error{Status: status, Fields: map[string][]string{}}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}

	for key, raw := range payload {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			if key == "detail" {
				apiErr.Detail = text
			} else {
				apiErr.Fields[key] = []string{text}
			}
			continue
		}

		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			if key == "detail" {
				apiErr.Detail = strings.Join(list, " ")
			} else {
				apiErr.Fields[key] = list
			}
		}
	}
	return apiErr
}

// Message turns err into user-facing text: the first message of the first
// populated field (in the given priority, or all fields when none are given),
// then the detail, then fallback.
func Message(err error, fallback string, fields ...string) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return fallback
	}
	if msg, ok := apiErr.FieldMessage(fields...); ok {
		return msg
	}
	if apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// DetailOr returns the upstream detail carried by err, or fallback. Field
// errors are ignored.
func DetailOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
