package extraction

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/testgen-workbench/internal/middleware"
	"github.com/noah-isme/testgen-workbench/internal/models"
)

var pdfDocument = models.Document{Name: "srs.pdf", Data: []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF")}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, zerolog.New(io.Discard), WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return client, &calls
}

func TestUploadSendsMultipartDocument(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, GenerateTestCasesPath, r.URL.Path)

		file, header, err := r.FormFile(FileField)
		require.NoError(t, err)
		defer file.Close()

		body, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, pdfDocument.Data, body)
		require.Equal(t, "srs.pdf", header.Filename)
		require.Equal(t, "application/pdf", header.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"test_cases": []}`))
	})

	records, err := client.Upload(context.Background(), pdfDocument)
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)
	require.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestUploadForwardsCorrelationID(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "corr-upload-1", r.Header.Get(middleware.HeaderCorrelationID))
		_, _ = w.Write([]byte(`{"test_cases": []}`))
	})

	ctx := middleware.ContextWithCorrelation(context.Background(), "corr-upload-1")
	_, err := client.Upload(ctx, pdfDocument)
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestUploadWithoutCorrelationSendsNoHeader(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header[middleware.HeaderCorrelationID]
		require.False(t, present)
		_, _ = w.Write([]byte(`{"test_cases": []}`))
	})

	_, err := client.Upload(context.Background(), pdfDocument)
	require.NoError(t, err)
}

func TestUploadKeepsDeclaredContentType(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile(FileField)
		require.NoError(t, err)
		require.Equal(t, "application/vnd.custom", header.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"test_cases": []}`))
	})

	doc := pdfDocument
	doc.ContentType = "application/vnd.custom"
	_, err := client.Upload(context.Background(), doc)
	require.NoError(t, err)
}

func TestUploadPreservesResponseOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"test_cases": [
			{"id": "TC2", "description": "second", "expected_result": "b"},
			{"id": 1, "description": "Login with valid credentials", "expected_result": "User logged in"},
			{"id": "TC3", "description": "third", "expected_result": "c"}
		]}`))
	})

	records, err := client.Upload(context.Background(), pdfDocument)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []models.RecordID{"TC2", "1", "TC3"}, []models.RecordID{records[0].ID, records[1].ID, records[2].ID})
	require.Equal(t, "User logged in", records[1].ExpectedResult)
}

func TestUploadFailureShapes(t *testing.T) {
	cases := []struct {
		name         string
		status       int
		body         string
		sentinel     error
		serviceError string
	}{
		{name: "error_field", status: http.StatusInternalServerError, body: `{"error":"File too large"}`, sentinel: ErrUnexpectedStatus, serviceError: "File too large"},
		{name: "empty_body", status: http.StatusInternalServerError, body: "", sentinel: ErrUnexpectedStatus},
		{name: "no_error_field", status: http.StatusBadRequest, body: `{"detail":"nope"}`, sentinel: ErrUnexpectedStatus},
		{name: "non_string_error", status: http.StatusBadRequest, body: `{"error":{"code":7}}`, sentinel: ErrUnexpectedStatus},
		{name: "html_body", status: http.StatusBadGateway, body: "<html>bad gateway</html>", sentinel: ErrUnexpectedStatus},
		{name: "missing_test_cases", status: http.StatusOK, body: `{"error":"ignored on success"}`, sentinel: ErrMalformedResponse},
		{name: "wrong_shape", status: http.StatusOK, body: `{"test_cases":[{"id":"TC1"}]}`, sentinel: ErrMalformedResponse},
		{name: "not_json", status: http.StatusOK, body: "ok", sentinel: ErrMalformedResponse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			records, err := client.Upload(context.Background(), pdfDocument)
			require.Nil(t, records)
			require.ErrorIs(t, err, tc.sentinel)

			var failure *FailurePayload
			require.True(t, errors.As(err, &failure))
			require.Equal(t, tc.status, failure.StatusCode)
			require.Equal(t, tc.serviceError, failure.ServiceError())
		})
	}
}

func TestUploadTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := NewClient(baseURL, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), pdfDocument)
	require.ErrorIs(t, err, ErrTransport)

	var failure *FailurePayload
	require.True(t, errors.As(err, &failure))
	require.Zero(t, failure.StatusCode)
	require.Empty(t, failure.Body)
	require.Empty(t, failure.ServiceError())
}

func TestNewClientEndpoint(t *testing.T) {
	client, err := NewClient("http://localhost:8000/", zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/generate-test-cases/", client.Endpoint())

	for _, raw := range []string{"", "localhost:8000", "ftp://host", "http://"} {
		_, err := NewClient(raw, zerolog.Nop())
		require.ErrorIs(t, err, ErrInvalidBaseURL, raw)
	}
}
