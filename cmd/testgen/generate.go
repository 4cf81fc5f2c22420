package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/testgen-workbench/internal/config"
	"github.com/noah-isme/testgen-workbench/internal/extraction"
	"github.com/noah-isme/testgen-workbench/internal/models"
	"github.com/noah-isme/testgen-workbench/internal/service"
	"github.com/noah-isme/testgen-workbench/internal/view"
)

// ErrGenerationFailed is returned when the extraction service rejects the document.
var ErrGenerationFailed = errors.New("generation failed")

type generateOptions struct {
	Path     string
	Endpoint string
	JSON     bool
	LogLevel string
}

func runGenerate(ctx context.Context, opts generateOptions, out, errOut io.Writer) error {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(strings.TrimSpace(opts.LogLevel))
	if err != nil || opts.LogLevel == "" {
		level = zerolog.WarnLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: errOut, NoColor: true}).Level(level).With().Timestamp().Logger()

	baseURL := cfg.ExtractionBaseURL
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		baseURL = endpoint
	}

	client, err := extraction.NewClient(baseURL, logger)
	if err != nil {
		return err
	}

	doc, err := readDocument(opts.Path)
	if err != nil {
		return err
	}
	if !cfg.AcceptsExtension(doc.Extension()) {
		logger.Warn().
			Str("document", doc.Name).
			Strs("accepted", cfg.UploadAccept).
			Msg("document extension is not in the accepted list, submitting anyway")
	}

	controller := service.NewSubmissionController(client, logger)
	controller.SelectFile(doc)
	controller.Submit(ctx)

	state := controller.Snapshot()
	if state.Phase == service.PhaseFailed {
		return fmt.Errorf("%w: %s", ErrGenerationFailed, state.ErrorMessage)
	}

	entries := view.RenderEntries(state.Results)
	if opts.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}
	return view.RenderText(out, entries)
}

func readDocument(path string) (*models.Document, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("document path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	return &models.Document{
		Name:        filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}
