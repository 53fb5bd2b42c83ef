// Package upload implements ticosd's upload engine: generic POST/PATCH,
// the three-legged presigned-file-upload flow, and the result taxonomy
// that drives the supervisor's retry/backoff decisions (spec §4.8).
//
// There is no HTTP client library anywhere in the retrieval pack — even
// launix-de-memcp's aws-sdk-go-v2 usage is itself built on net/http — so
// this stays on the standard library's client rather than adopting an
// out-of-pack dependency.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ticos-device/ticosd/internal/logging"
)

// Result is the three-way outcome of an upload attempt (spec §4.8).
type Result int

const (
	// Ok means the request succeeded (2xx).
	Ok Result = iota
	// ErrorRetryLater means a transport error, 5xx, or 408/429 — the
	// caller should back off and retry without discarding the record.
	ErrorRetryLater
	// ErrorNoRetry means a non-retryable 4xx or a permanent local failure
	// (e.g. the attached file is missing) — the caller should discard the
	// record.
	ErrorNoRetry
)

// Client performs the outbound HTTP calls for the reboot, attributes, and
// coredump upload paths, carrying the log-first-failure/first-recovery
// policy so a sustained outage produces one log line, not a flood.
type Client struct {
	BaseURL    string
	ProjectKey string
	HTTP       *http.Client
	Log        *logging.Logger

	mu       sync.Mutex
	failing  bool
	reported bool
}

// New constructs a Client with a sane default http.Client timeout.
func New(baseURL, projectKey string, log *logging.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		ProjectKey: projectKey,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		Log:        log,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ticos-Project-Key", c.ProjectKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func classify(resp *http.Response, err error) Result {
	if err != nil {
		return ErrorRetryLater
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Ok
	case resp.StatusCode >= 500, resp.StatusCode == 408, resp.StatusCode == 429:
		return ErrorRetryLater
	default:
		return ErrorNoRetry
	}
}

// logOutcome implements the spec's log-first-failure/first-recovery
// policy: only the first failure of a streak and the first success that
// ends a streak are logged.
func (c *Client) logOutcome(op string, result Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result != Ok {
		if !c.failing {
			c.failing = true
			c.reported = true
			if err != nil {
				c.Log.WithOp(op).Errorf("request failed: %v", err)
			} else {
				c.Log.WithOp(op).Errorf("request failed")
			}
		}
		return
	}

	if c.failing && c.reported {
		c.Log.WithOp(op).Infof("network recovered")
	}
	c.failing = false
	c.reported = false
}

// Do issues a generic POST/PATCH with an optional JSON body and returns
// the classified result plus the response body (if any).
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (Result, []byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return ErrorNoRetry, nil, err
	}
	resp, err := c.HTTP.Do(req)
	result := classify(resp, err)
	c.logOutcome(method+" "+path, result, err)
	if err != nil {
		return result, nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	return result, respBody, nil
}

// PostEvents submits a reboot event (spec §6: POST /api/v0/events).
func (c *Client) PostEvents(ctx context.Context, jsonBody []byte) (Result, error) {
	result, _, err := c.Do(ctx, http.MethodPost, "/api/v0/events", jsonBody)
	return result, err
}

// PatchAttributes submits an attributes update (spec §6).
func (c *Client) PatchAttributes(ctx context.Context, deviceSerial, capturedDate string, jsonBody []byte) (Result, error) {
	path := fmt.Sprintf("/api/v0/attributes?device_serial=%s&captured_date=%s",
		url.QueryEscape(deviceSerial), url.QueryEscape(capturedDate))
	result, _, err := c.Do(ctx, http.MethodPatch, path, jsonBody)
	return result, err
}

type fileURLResponse struct {
	UploadURL string `json:"upload_url"`
}

type commitBody struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
	Size int64  `json:"size"`
}

// UploadCoreFile runs the three-legged presigned-upload flow described in
// spec §4.8: prepare, PUT the body, commit.
func (c *Client) UploadCoreFile(ctx context.Context, deviceID, hardwareVersion, softwareType, softwareVersion string, body io.Reader, size int64, gzipped bool) (Result, error) {
	preparePath := fmt.Sprintf("/chunks/%s/fileUrl?type=Coredump&hardwareVersion=%s&softwareType=%s&softwareVersion=%s",
		url.PathEscape(deviceID), url.QueryEscape(hardwareVersion), url.QueryEscape(softwareType), url.QueryEscape(softwareVersion))

	result, respBody, err := c.Do(ctx, http.MethodPost, preparePath, nil)
	if result != Ok {
		return result, err
	}

	var prepared fileURLResponse
	if err := json.Unmarshal(respBody, &prepared); err != nil {
		return ErrorNoRetry, fmt.Errorf("upload: malformed fileUrl response: %w", err)
	}

	if result, err := c.putFile(ctx, prepared.UploadURL, body, size, gzipped); result != Ok {
		return result, err
	}

	commit, err := json.Marshal(commitBody{URL: prepared.UploadURL, Kind: "COREDUMP", Size: size})
	if err != nil {
		return ErrorNoRetry, err
	}
	result, _, err = c.Do(ctx, http.MethodPost, "/api/v0/upload/elf_coredump", commit)
	return result, err
}

func (c *Client) putFile(ctx context.Context, presignedURL string, body io.Reader, size int64, gzipped bool) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, body)
	if err != nil {
		return ErrorNoRetry, err
	}
	req.ContentLength = size
	if gzipped {
		req.Header.Set("Content-Encoding", "gzip")
	}
	resp, err := c.HTTP.Do(req)
	result := classify(resp, err)
	c.logOutcome("PUT "+presignedURL, result, err)
	if err == nil {
		defer resp.Body.Close()
	}
	return result, err
}
