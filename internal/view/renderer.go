package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/testgen-workbench/internal/models"
)

const (
	ResultsHeading      = "Generated Test Cases:"
	LabelID             = "ID"
	LabelDescription    = "Description"
	LabelExpectedResult = "Expected Result"
)

// Entry is one rendered test case.
type Entry struct {
	Position       int    `json:"position"`
	Key            string `json:"key"`
	ID             string `json:"id"`
	Description    string `json:"description"`
	ExpectedResult string `json:"expected_result"`
}

// RenderEntries maps records to entries in input order. Record text is kept
// verbatim; escaping belongs to whichever output format consumes it.
func RenderEntries(records []models.TestCase) []Entry {
	entries := make([]Entry, 0, len(records))
	for i, record := range records {
		id := record.ID.String()
		entries = append(entries, Entry{
			Position:       i + 1,
			Key:            id,
			ID:             id,
			Description:    record.Description,
			ExpectedResult: record.ExpectedResult,
		})
	}
	return entries
}

// RenderText writes the entries in a terminal friendly layout.
func RenderText(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No test cases returned.")
		return err
	}

	var b strings.Builder
	b.WriteString(ResultsHeading)
	b.WriteString("\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "\n%s: %s\n", LabelID, entry.ID)
		fmt.Fprintf(&b, "%s: %s\n", LabelDescription, entry.Description)
		fmt.Fprintf(&b, "%s: %s\n", LabelExpectedResult, entry.ExpectedResult)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
