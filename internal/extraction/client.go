package extraction

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/testgen-workbench/internal/middleware"
	"github.com/noah-isme/testgen-workbench/internal/models"
	"github.com/noah-isme/testgen-workbench/internal/observability"
)

const (
	// GenerateTestCasesPath is appended to the configured base URL.
	GenerateTestCasesPath = "/generate-test-cases/"
	// FileField is the multipart field carrying the document bytes.
	FileField = "file"

	schemaURL = "https://testgen.local/schemas/test_cases.schema.json"
)

// ErrInvalidBaseURL indicates the configured service address cannot be used.
var ErrInvalidBaseURL = errors.New("extraction base url must be an absolute http(s) url")

//go:embed schema/test_cases.schema.json
var testCasesSchema string

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Dispatcher uploads one document and returns the extracted test cases.
// Failures are reported as *FailurePayload.
type Dispatcher interface {
	Upload(ctx context.Context, doc models.Document) ([]models.TestCase, error)
}

// Client is the HTTP Dispatcher. It holds no state between uploads and
// neither retries nor applies a timeout of its own.
type Client struct {
	endpoint string
	http     *http.Client
	schema   *jsonschema.Schema
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default traced HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// NewClient builds a client posting to {baseURL}/generate-test-cases/.
func NewClient(baseURL string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, ErrInvalidBaseURL
	}

	schema, err := jsonschema.CompileString(schemaURL, testCasesSchema)
	if err != nil {
		return nil, fmt.Errorf("compile test case schema: %w", err)
	}

	client := &Client{
		endpoint: strings.TrimRight(parsed.String(), "/") + GenerateTestCasesPath,
		http:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		schema:   schema,
		logger:   logger.With().Str("component", "extraction_client").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/testgen-workbench/internal/extraction"),
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Endpoint returns the full upload URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Upload posts the document as multipart/form-data and decodes the test case list.
func (c *Client) Upload(ctx context.Context, doc models.Document) ([]models.TestCase, error) {
	ctx, span := c.tracer.Start(ctx, "extraction.upload", trace.WithAttributes(
		attribute.String("document.name", doc.Name),
		attribute.Int64("document.size_bytes", doc.Size()),
	))
	defer span.End()

	logger := c.logger.With().
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Str("document", doc.Name).
		Logger()

	start := time.Now()
	records, err := c.upload(ctx, doc)
	elapsed := time.Since(start)

	if err != nil {
		observability.DispatchLatency().WithLabelValues("failure").Observe(elapsed.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("extraction upload failed")
		return nil, err
	}

	observability.DispatchLatency().WithLabelValues("success").Observe(elapsed.Seconds())
	span.SetAttributes(attribute.Int("extraction.test_cases", len(records)))
	span.SetStatus(codes.Ok, "extracted")
	logger.Info().Int("test_cases", len(records)).Dur("elapsed", elapsed).Msg("extraction upload completed")

	return records, nil
}

func (c *Client) upload(ctx context.Context, doc models.Document) ([]models.TestCase, error) {
	body, contentType, err := encodeDocument(doc)
	if err != nil {
		return nil, &FailurePayload{Cause: fmt.Errorf("%w: %w", ErrTransport, err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, &FailurePayload{Cause: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	middleware.PropagateCorrelation(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FailurePayload{Cause: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FailurePayload{StatusCode: resp.StatusCode, Body: raw, Cause: ErrUnexpectedStatus}
	}
	if readErr != nil {
		return nil, &FailurePayload{StatusCode: resp.StatusCode, Cause: fmt.Errorf("%w: %w", ErrTransport, readErr)}
	}

	records, err := c.decode(raw)
	if err != nil {
		return nil, &FailurePayload{StatusCode: resp.StatusCode, Cause: fmt.Errorf("%w: %w", ErrMalformedResponse, err)}
	}

	return records, nil
}

func (c *Client) decode(raw []byte) ([]models.TestCase, error) {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, err
	}
	if err := c.schema.Validate(document); err != nil {
		return nil, err
	}

	var payload struct {
		TestCases []models.TestCase `json:"test_cases"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.TestCases == nil {
		return []models.TestCase{}, nil
	}
	return payload.TestCases, nil
}

func encodeDocument(doc models.Document) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FileField, quoteEscaper.Replace(fileName(doc))))
	header.Set("Content-Type", partContentType(doc))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func fileName(doc models.Document) string {
	if name := strings.TrimSpace(doc.Name); name != "" {
		return name
	}
	return "document" + mimetype.Detect(doc.Data).Extension()
}

func partContentType(doc models.Document) string {
	declared := strings.TrimSpace(doc.ContentType)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(doc.Data).String()
}
