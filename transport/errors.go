package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

type errorBody struct {
	Code    *int64          `json:"code"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: error statuscode %d: %s", e.Method, e.Path, e.StatusCode, e.Message())
}

// Message extracts the error message of the common REST error bodies,
// {"message": ...}, {"error": ...} and {"error": {"message": ...}}.
func (e *StatusError) Message() string {
	var body errorBody
	if err := json.Unmarshal(e.Body, &body); err != nil {
		var s string
		if err := json.Unmarshal(e.Body, &s); err == nil {
			return s
		}
		return strings.TrimSpace(string(e.Body))
	}

	if body.Message != "" {
		return body.Message
	}

	if len(body.Error) > 0 {
		var s string
		if err := json.Unmarshal(body.Error, &s); err == nil {
			return s
		}

		var nested errorBody
		if err := json.Unmarshal(body.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}

	return strings.TrimSpace(string(e.Body))
}

// Code extracts a numeric error code from the body, if present.
func (e *StatusError) Code() (int64, bool) {
	var body errorBody
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return 0, false
	}
	if body.Code != nil {
		return *body.Code, true
	}

	var nested errorBody
	if len(body.Error) > 0 && json.Unmarshal(body.Error, &nested) == nil && nested.Code != nil {
		return *nested.Code, true
	}

	return 0, false
}

// AsStatusError returns the StatusError in err's chain, if any.
func AsStatusError(err error) (*StatusError, bool) {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr, true
	}

	return nil, false
}
