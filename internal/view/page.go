package view

import (
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/noah-isme/testgen-workbench/internal/service"
)

const (
	PageTitle         = "SRS Test Case Generator"
	SubmitLabel       = "Upload & Generate"
	SubmittingLabel   = "Generating..."
	refreshWhileBusy  = 2
	defaultFileAccept = ".pdf"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/workbench.html"))

// Page is the view model of one workbench session.
type Page struct {
	Title          string
	SessionID      string
	Accept         string
	SelectionName  string
	ButtonLabel    string
	ButtonDisabled bool
	InFlight       bool
	RefreshSeconds int
	ShowError      bool
	ErrorMessage   string
	ShowResults    bool
	Heading        string
	Entries        []Entry
}

// NewPage derives the page model from a controller snapshot.
func NewPage(sessionID string, state service.State, accept []string) Page {
	page := Page{
		Title:         PageTitle,
		SessionID:     sessionID,
		Accept:        strings.Join(accept, ","),
		SelectionName: state.SelectionName(),
		ButtonLabel:   ButtonLabel(state),
		InFlight:      state.InFlight(),
		Heading:       ResultsHeading,
		Entries:       RenderEntries(state.Results),
	}
	if page.Accept == "" {
		page.Accept = defaultFileAccept
	}
	if page.InFlight {
		page.ButtonDisabled = true
		page.RefreshSeconds = refreshWhileBusy
	}
	if state.Phase == service.PhaseFailed {
		page.ShowError = true
		page.ErrorMessage = state.ErrorMessage
	}
	page.ShowResults = len(page.Entries) > 0
	return page
}

// ButtonLabel is the submit control text for the given state.
func ButtonLabel(state service.State) string {
	if state.InFlight() {
		return SubmittingLabel
	}
	return SubmitLabel
}

// Render writes the workbench HTML document.
func Render(w io.Writer, page Page) error {
	return pageTemplate.Execute(w, page)
}
