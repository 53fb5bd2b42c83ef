package upload

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ticos-device/ticosd/internal/logging"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New(baseURL, "PK", logging.NewLogger(&logging.Config{Level: logging.LevelError}))
}

func TestDoClassifiesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "PK", r.Header.Get("Ticos-Project-Key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	result, _, err := c.Do(context.Background(), http.MethodPost, "/api/v0/events", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, Ok, result)
}

func TestDoClassifiesRetryableServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	result, _, err := c.Do(context.Background(), http.MethodPost, "/api/v0/events", nil)
	require.NoError(t, err)
	require.Equal(t, ErrorRetryLater, result)
}

func TestDoClassifiesNonRetryableClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	result, _, err := c.Do(context.Background(), http.MethodPost, "/api/v0/events", nil)
	require.NoError(t, err)
	require.Equal(t, ErrorNoRetry, result)
}

func TestUploadCoreFilePutLeg(t *testing.T) {
	var putBody bytes.Buffer
	var gzipHeaderSeen atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/upload-body", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gzipHeaderSeen.Store(r.Header.Get("Content-Encoding") == "gzip")
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		putBody.Write(buf[:n])
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(t, srv.URL)
	body := bytes.NewReader([]byte("compressed-bytes"))

	result, err := c.putFile(context.Background(), srv.URL+"/upload-body", body, int64(body.Len()), true)
	require.NoError(t, err)
	require.Equal(t, Ok, result)
	require.True(t, gzipHeaderSeen.Load())
	require.Equal(t, "compressed-bytes", putBody.String())
}

func TestDoPostsCoredumpFileURLRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chunks/D1/fileUrl", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Coredump", r.URL.Query().Get("type"))
		w.Write([]byte(`{"upload_url":"http://unused.invalid/put"}`))
	})
	mux.HandleFunc("/api/v0/upload/elf_coredump", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(t, srv.URL)
	result, _, err := c.Do(context.Background(), http.MethodPost, "/chunks/D1/fileUrl?type=Coredump", nil)
	require.NoError(t, err)
	require.Equal(t, Ok, result)
}

func TestLogOutcomeOnlyReportsFirstFailureAndFirstRecovery(t *testing.T) {
	var buf bytes.Buffer
	c := New("http://example.invalid", "PK", logging.NewLogger(&logging.Config{
		Level: logging.LevelDebug, Output: &buf, Sync: true,
	}))

	c.logOutcome("drain", ErrorRetryLater, nil)
	c.logOutcome("drain", ErrorRetryLater, nil)
	c.logOutcome("drain", ErrorRetryLater, nil)
	firstPass := buf.String()
	require.Equal(t, 1, strings.Count(firstPass, "request failed"), "only the first failure of a streak should be logged")

	buf.Reset()
	c.logOutcome("drain", Ok, nil)
	secondPass := buf.String()
	require.Contains(t, secondPass, "network recovered")
}
