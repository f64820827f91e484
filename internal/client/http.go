package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/model"
)

// Options configure an HTTPClient.
type Options struct {
	URL      string
	APIKey   string
	AuthID   string // x-xdr-auth-id, XSOAR 8 only
	Insecure bool   // skip TLS verification
	Timeout  time.Duration
	Logger   *slog.Logger
}

// HTTPClient implements XSOARClient over the XSOAR REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	authID     string
	httpClient *http.Client
	logger     *slog.Logger

	// RetryDelays are the waits before each attempt of an idempotent GET.
	// Writes are never retried.
	RetryDelays []time.Duration
}

var _ XSOARClient = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the server at opts.URL.
func NewHTTPClient(opts Options) *HTTPClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: opts.Insecure},
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(opts.URL, "/"),
		apiKey:  opts.APIKey,
		authID:  opts.AuthID,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			// XSOAR answers 303 for endpoints that are not available.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:      logger,
		RetryDelays: []time.Duration{0, time.Second, 5 * time.Second},
	}
}

// --- Discovery ---

// TestConnection reads /about, falling back to /xsoar/about used by
// XSOAR 8 deployments.
func (c *HTTPClient) TestConnection(ctx context.Context) (*About, error) {
	var about About
	err := c.getJSON(ctx, "/about", &about)
	if err != nil {
		if ferr := c.getJSON(ctx, "/xsoar/about", &about); ferr != nil {
			return nil, err
		}
	}
	return &about, nil
}

// fieldDefinition is an entry of GET /incidentfields.
type fieldDefinition struct {
	CliName         string   `json:"cliName"`
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	System          bool     `json:"system"`
	Required        bool     `json:"required"`
	SelectValues    []string `json:"selectValues"`
	AssociatedTypes []string `json:"associatedTypes"`
	AssociatedToAll bool     `json:"associatedToAll"`
	Group           int      `json:"group"`
}

// FetchFieldDefinitions lists the server's incident fields ordered by
// short name. Indicator and evidence fields are skipped.
func (c *HTTPClient) FetchFieldDefinitions(ctx context.Context) ([]model.FieldSchema, error) {
	var defs []fieldDefinition
	if err := c.getJSON(ctx, "/incidentfields", &defs); err != nil {
		return nil, fmt.Errorf("fetching incident fields: %w", err)
	}
	return toFieldSchemas(defs), nil
}

func toFieldSchemas(defs []fieldDefinition) []model.FieldSchema {
	seen := make(map[string]bool, len(defs))
	out := make([]model.FieldSchema, 0, len(defs))
	for _, d := range defs {
		if d.Group != 0 || d.CliName == "" || seen[d.CliName] {
			continue
		}
		seen[d.CliName] = true
		out = append(out, model.FieldSchema{
			ShortName:               d.CliName,
			LongName:                d.Name,
			Type:                    model.ParseFieldType(d.Type),
			Custom:                  !d.System,
			Required:                d.Required,
			SelectOptions:           nonEmpty(d.SelectValues),
			AssociatedIncidentTypes: d.AssociatedTypes,
			AssociatedToAll:         d.AssociatedToAll,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortName < out[j].ShortName })
	return out
}

// nonEmpty drops the blank entry XSOAR puts at the head of select lists.
func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FetchIncidentTypes lists the server's incident types ordered by name.
func (c *HTTPClient) FetchIncidentTypes(ctx context.Context) ([]model.IncidentType, error) {
	var types []model.IncidentType
	if err := c.getJSON(ctx, "/incidenttype", &types); err != nil {
		return nil, fmt.Errorf("fetching incident types: %w", err)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types, nil
}

// --- Submission ---

// CreateIncident posts an assembled payload to /incident.
func (c *HTTPClient) CreateIncident(ctx context.Context, payload jsonval.Value) Result {
	data, err := payload.MarshalJSON()
	if err != nil {
		return Result{Error: fmt.Sprintf("encoding payload: %v", err)}
	}
	return c.submit(ctx, "/incident", "application/json", data)
}

// CreateFromRawJSON posts a document to /incident/json, letting the
// server's own mapping build the incident.
func (c *HTTPClient) CreateFromRawJSON(ctx context.Context, doc json.RawMessage) Result {
	if !json.Valid(doc) {
		return Result{Error: "document is not valid JSON"}
	}
	return c.submit(ctx, "/incident/json", "application/json", doc)
}

// UploadAttachment sends one file to /incident/upload/{id} as multipart
// form data.
func (c *HTTPClient) UploadAttachment(ctx context.Context, req *UploadRequest) Result {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := []struct{ name, value string }{
		{"fileName", req.Filename},
		{"fileComment", req.Comment},
		{"field", req.Field},
		{"showMediaFile", strconv.FormatBool(req.MediaFile)},
		{"last", strconv.FormatBool(req.Last)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return Result{Error: fmt.Sprintf("encoding upload: %v", err)}
		}
	}
	part, err := w.CreateFormFile("file", req.Filename)
	if err != nil {
		return Result{Error: fmt.Sprintf("encoding upload: %v", err)}
	}
	if _, err := part.Write(req.Content); err != nil {
		return Result{Error: fmt.Sprintf("encoding upload: %v", err)}
	}
	if err := w.Close(); err != nil {
		return Result{Error: fmt.Sprintf("encoding upload: %v", err)}
	}
	res := c.submit(ctx, "/incident/upload/"+url.PathEscape(req.IncidentID), w.FormDataContentType(), buf.Bytes())
	if res.Success && res.ID == "" {
		res.ID = req.IncidentID
	}
	return res
}

// CreateInvestigation starts the investigation of a created incident.
func (c *HTTPClient) CreateInvestigation(ctx context.Context, incidentID string, version int) Result {
	data, err := json.Marshal(map[string]any{"id": incidentID, "version": version})
	if err != nil {
		return Result{Error: fmt.Sprintf("encoding request: %v", err)}
	}
	res := c.submit(ctx, "/incident/investigate", "application/json", data)
	if res.Success && res.ID == "" {
		res.ID = incidentID
	}
	return res
}

// submitResponse is the part of an incident returned by write endpoints.
type submitResponse struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// submit posts body once and folds every failure into the Result.
func (c *HTTPClient) submit(ctx context.Context, path, contentType string, body []byte) Result {
	respBody, status, err := c.do(ctx, http.MethodPost, path, contentType, body)
	if err != nil {
		res := Result{StatusCode: status, Error: err.Error()}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			res.Error = apiErr.Message
		}
		return res
	}
	var parsed submitResponse
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return Result{StatusCode: status, Error: fmt.Sprintf("decoding response: %v", err)}
		}
	}
	return Result{ID: parsed.ID, Version: parsed.Version, Success: true, StatusCode: status}
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Path       string
}

func (e *APIError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("XSOAR API error (HTTP %d) on %s: %s", e.StatusCode, e.Path, e.Message)
	}
	return fmt.Sprintf("XSOAR API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 or 403 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// getJSON performs a GET, retrying transport failures and 5xx responses,
// and decodes the JSON response into result.
func (c *HTTPClient) getJSON(ctx context.Context, path string, result any) error {
	var lastErr error
	for attempt, delay := range c.RetryDelays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		body, status, err := c.do(ctx, http.MethodGet, path, "", nil)
		if err != nil {
			lastErr = err
			if status != 0 && status < 500 {
				return err
			}
			c.logger.Debug("xsoar request failed", "path", path, "attempt", attempt+1, "err", err)
			continue
		}
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", len(c.RetryDelays), lastErr)
}

// do sends one request with the auth headers and returns the body and
// status. Responses outside 2xx become an *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, int, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.authID != "" {
		req.Header.Set("x-xdr-auth-id", c.authID)
	}

	c.logger.Debug("xsoar request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("performing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 300 {
		msg := errorMessage(respBody)
		if loc := resp.Header.Get("Location"); loc != "" && resp.StatusCode < 400 {
			msg = fmt.Sprintf("redirect to %s: %s", loc, msg)
		}
		return respBody, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: msg, Path: path}
	}
	return respBody, resp.StatusCode, nil
}

// errorMessage extracts the message of an XSOAR error body, or the body
// itself truncated.
func errorMessage(body []byte) string {
	var errResp struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Detail != "" {
			return errResp.Detail
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}
	return truncateMessage(strings.TrimSpace(string(body)), 500)
}

func truncateMessage(msg string, maxLen int) string {
	if len(msg) > maxLen {
		return msg[:maxLen] + "..."
	}
	return msg
}
