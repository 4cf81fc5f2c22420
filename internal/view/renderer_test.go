package view

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/testgen-workbench/internal/models"
)

func TestRenderEntriesKeepsOrder(t *testing.T) {
	records := []models.TestCase{
		{ID: "TC2", Description: "second", ExpectedResult: "b"},
		{ID: "TC1", Description: "first", ExpectedResult: "a"},
		{ID: "7", Description: "third", ExpectedResult: "c"},
	}

	entries := RenderEntries(records)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		require.Equal(t, i+1, entry.Position)
		require.Equal(t, records[i].ID.String(), entry.ID)
		require.Equal(t, entry.ID, entry.Key)
		require.Equal(t, records[i].Description, entry.Description)
		require.Equal(t, records[i].ExpectedResult, entry.ExpectedResult)
	}
}

func TestRenderEntriesEmpty(t *testing.T) {
	entries := RenderEntries(nil)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestRenderEntriesIsDeterministic(t *testing.T) {
	records := []models.TestCase{{ID: "1", Description: "Login with valid credentials", ExpectedResult: "User logged in"}}
	require.Equal(t, RenderEntries(records), RenderEntries(records))
}

func TestRenderEntriesKeepsTextVerbatim(t *testing.T) {
	records := []models.TestCase{
		{ID: "TC1", Description: "Enter <script>alert(1)</script> in the name field", ExpectedResult: "Input is rejected"},
		{ID: "TC2", Description: "  Verify x<y  ", ExpectedResult: "List<String> is returned"},
	}

	entries := RenderEntries(records)
	require.Equal(t, "Enter <script>alert(1)</script> in the name field", entries[0].Description)
	require.Equal(t, "  Verify x<y  ", entries[1].Description)
	require.Equal(t, "List<String> is returned", entries[1].ExpectedResult)
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	err := RenderText(&buf, RenderEntries([]models.TestCase{
		{ID: "1", Description: "Login with valid credentials", ExpectedResult: "User logged in"},
	}))
	require.NoError(t, err)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, ResultsHeading))
	require.Contains(t, out, "ID: 1\n")
	require.Contains(t, out, "Description: Login with valid credentials\n")
	require.Contains(t, out, "Expected Result: User logged in\n")
}

func TestRenderTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, RenderEntries(nil)))
	require.NotContains(t, buf.String(), ResultsHeading)
}
