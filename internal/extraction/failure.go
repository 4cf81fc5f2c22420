package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTransport indicates the request never produced a response.
	ErrTransport = errors.New("extraction request failed")
	// ErrUnexpectedStatus indicates the service answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("extraction service returned an error status")
	// ErrMalformedResponse indicates a 2xx answer whose body is not a test case list.
	ErrMalformedResponse = errors.New("malformed extraction response")
)

// FailurePayload is the failure side of an upload: the status and body the
// service answered with, or only a cause when no usable body exists.
type FailurePayload struct {
	StatusCode int
	Body       []byte
	Cause      error
}

func (f *FailurePayload) Error() string {
	switch {
	case f.Cause != nil && f.StatusCode != 0:
		return fmt.Sprintf("status %d: %v", f.StatusCode, f.Cause)
	case f.Cause != nil:
		return f.Cause.Error()
	default:
		return fmt.Sprintf("status %d", f.StatusCode)
	}
}

func (f *FailurePayload) Unwrap() error {
	return f.Cause
}

// ServiceError returns the body's "error" field when it is a JSON string, or "".
func (f *FailurePayload) ServiceError() string {
	if f == nil || len(bytes.TrimSpace(f.Body)) == 0 {
		return ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(f.Body, &fields); err != nil {
		return ""
	}

	raw, ok := fields["error"]
	if !ok {
		return ""
	}

	var message string
	if err := json.Unmarshal(raw, &message); err != nil {
		return ""
	}
	return message
}
