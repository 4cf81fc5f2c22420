package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidRecordID indicates a test case id that is neither a string nor a number.
var ErrInvalidRecordID = errors.New("test case id must be a string or a number")

// RecordID identifies a test case within one extraction response.
// The service sends either strings ("TC1") or plain numbers (1); both are kept as text.
type RecordID string

// UnmarshalJSON accepts JSON strings and numbers.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrInvalidRecordID
	}

	if trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*id = RecordID(value)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRecordID, trimmed)
	}
	*id = RecordID(number.String())
	return nil
}

// String returns the id as text.
func (id RecordID) String() string {
	return string(id)
}

// TestCase is one record returned by the extraction service.
type TestCase struct {
	ID             RecordID `json:"id"`
	Description    string   `json:"description"`
	ExpectedResult string   `json:"expected_result"`
}
