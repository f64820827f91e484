package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	body        string
	contentType string
	auth        string
	authID      string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	h.authID = r.Header.Get("x-xdr-auth-id")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with instant retries.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(Options{URL: srv.URL + "/", APIKey: "secret", AuthID: "7"})
	c.RetryDelays = []time.Duration{0, 0, 0}
	return c, srv
}

func TestHTTPClient_AuthHeaders(t *testing.T) {
	h := &testHandler{responseBody: `{"demistoVersion":"6.12.0"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	about, err := c.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("TestConnection() error = %v", err)
	}
	if about.Version != "6.12.0" {
		t.Errorf("version = %q", about.Version)
	}
	if h.auth != "secret" {
		t.Errorf("Authorization = %q, want secret", h.auth)
	}
	if h.authID != "7" {
		t.Errorf("x-xdr-auth-id = %q, want 7", h.authID)
	}
	if h.path != "/about" {
		t.Errorf("path = %q, want /about", h.path)
	}
}

func TestHTTPClient_TestConnectionFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/elsewhere")
		w.WriteHeader(http.StatusSeeOther)
	})
	mux.HandleFunc("/xsoar/about", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"demistoVersion":"8.4.0","deploymentMode":"saas"}`))
	})
	c, srv := newTestClient(mux)
	defer srv.Close()

	about, err := c.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("TestConnection() error = %v", err)
	}
	if about.Version != "8.4.0" || about.DeploymentMode != "saas" {
		t.Errorf("about = %+v", about)
	}
}

func TestHTTPClient_TestConnectionUnauthorized(t *testing.T) {
	h := &testHandler{statusCode: http.StatusUnauthorized, responseBody: `{"error":"bad key"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.TestConnection(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsUnauthorized(err) {
		t.Errorf("IsUnauthorized(%v) = false", err)
	}
	if !strings.Contains(err.Error(), "bad key") {
		t.Errorf("error = %v, want server message", err)
	}
}

func TestHTTPClient_FetchFieldDefinitions(t *testing.T) {
	h := &testHandler{responseBody: `[
		{"cliName":"severity","name":"Severity","type":"number","system":true,"associatedToAll":true},
		{"cliName":"category","name":"Category","type":"singleSelect","selectValues":["","phishing","malware"],"associatedTypes":["Phishing"]},
		{"cliName":"indicatorthing","name":"Indicator","type":"shortText","group":2},
		{"cliName":"","name":"Nameless","type":"shortText"},
		{"cliName":"weird","name":"Weird","type":"somethingNew"},
		{"cliName":"category","name":"Category again","type":"shortText"}
	]`}
	c, srv := newTestClient(h)
	defer srv.Close()

	fields, err := c.FetchFieldDefinitions(context.Background())
	if err != nil {
		t.Fatalf("FetchFieldDefinitions() error = %v", err)
	}
	if h.path != "/incidentfields" {
		t.Errorf("path = %q", h.path)
	}
	if len(fields) != 3 {
		t.Fatalf("got %d fields, want 3: %+v", len(fields), fields)
	}
	if fields[0].ShortName != "category" || fields[1].ShortName != "severity" || fields[2].ShortName != "weird" {
		t.Errorf("order = %s, %s, %s", fields[0].ShortName, fields[1].ShortName, fields[2].ShortName)
	}
	cat := fields[0]
	if !cat.Custom || cat.Type != model.FieldTypeSingleSelect || cat.LongName != "Category" {
		t.Errorf("category = %+v", cat)
	}
	if len(cat.SelectOptions) != 2 || cat.SelectOptions[0] != "phishing" {
		t.Errorf("options = %v", cat.SelectOptions)
	}
	if !cat.AppliesTo("Phishing") || cat.AppliesTo("Malware") {
		t.Error("category association wrong")
	}
	if fields[1].Custom || !fields[1].AssociatedToAll {
		t.Errorf("severity = %+v", fields[1])
	}
	if fields[2].Type != model.FieldTypeUndefined {
		t.Errorf("weird type = %q, want undefined", fields[2].Type)
	}
}

func TestHTTPClient_FetchIncidentTypes(t *testing.T) {
	h := &testHandler{responseBody: `[{"id":"b","name":"Phishing"},{"id":"a","name":"Malware","disabled":true}]`}
	c, srv := newTestClient(h)
	defer srv.Close()

	types, err := c.FetchIncidentTypes(context.Background())
	if err != nil {
		t.Fatalf("FetchIncidentTypes() error = %v", err)
	}
	if len(types) != 2 || types[0].Name != "Malware" || !types[0].Disabled {
		t.Errorf("types = %+v", types)
	}
}

func TestHTTPClient_GetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	c := NewHTTPClient(Options{URL: srv.URL})
	c.RetryDelays = []time.Duration{0, 0, 0}

	if _, err := c.FetchIncidentTypes(context.Background()); err != nil {
		t.Fatalf("FetchIncidentTypes() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestHTTPClient_GetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	c := NewHTTPClient(Options{URL: srv.URL})
	c.RetryDelays = []time.Duration{0, 0, 0}

	if _, err := c.FetchFieldDefinitions(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestHTTPClient_CreateIncident(t *testing.T) {
	h := &testHandler{responseBody: `{"id":"101","version":2,"name":"x"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	payload := jsonval.MustDecode(`{"name":"x","CustomFields":{"category":"phishing"}}`)
	res := c.CreateIncident(context.Background(), payload)
	if !res.Success || res.ID != "101" || res.Version != 2 || res.StatusCode != 200 {
		t.Fatalf("result = %+v", res)
	}
	if h.method != http.MethodPost || h.path != "/incident" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q", h.contentType)
	}
	if h.body != `{"name":"x","CustomFields":{"category":"phishing"}}` {
		t.Errorf("body = %s", h.body)
	}
}

func TestHTTPClient_CreateIncidentFailure(t *testing.T) {
	h := &testHandler{statusCode: http.StatusBadRequest, responseBody: `{"detail":"invalid field"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	res := c.CreateIncident(context.Background(), jsonval.MustDecode(`{}`))
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.StatusCode != http.StatusBadRequest || res.Error != "invalid field" {
		t.Errorf("result = %+v", res)
	}
}

func TestHTTPClient_TransportErrorFoldedIntoResult(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(Options{URL: url, Timeout: time.Second})
	res := c.CreateIncident(context.Background(), jsonval.MustDecode(`{}`))
	if res.Success || res.Error == "" || res.StatusCode != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestHTTPClient_CreateFromRawJSON(t *testing.T) {
	h := &testHandler{responseBody: `{"id":"5"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	res := c.CreateFromRawJSON(context.Background(), json.RawMessage(`{"alert":{"id":1}}`))
	if !res.Success || res.ID != "5" {
		t.Fatalf("result = %+v", res)
	}
	if h.path != "/incident/json" || h.body != `{"alert":{"id":1}}` {
		t.Errorf("request = %s %s", h.path, h.body)
	}

	res = c.CreateFromRawJSON(context.Background(), json.RawMessage(`{`))
	if res.Success || res.Error == "" {
		t.Errorf("invalid JSON result = %+v", res)
	}
}

func TestHTTPClient_UploadAttachment(t *testing.T) {
	var got struct {
		path, file, fileName, comment, field, media, last string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		got.file = hdr.Filename + ":" + string(data)
		got.fileName = r.FormValue("fileName")
		got.comment = r.FormValue("fileComment")
		got.field = r.FormValue("field")
		got.media = r.FormValue("showMediaFile")
		got.last = r.FormValue("last")
		_, _ = w.Write([]byte(`{"version":3}`))
	}))
	defer srv.Close()
	c := NewHTTPClient(Options{URL: srv.URL})

	res := c.UploadAttachment(context.Background(), &UploadRequest{
		IncidentID: "101",
		Field:      "evidence",
		Filename:   "shot.png",
		Comment:    "first",
		MediaFile:  true,
		Last:       false,
		Content:    []byte("PNG"),
	})
	if !res.Success || res.ID != "101" || res.Version != 3 {
		t.Fatalf("result = %+v", res)
	}
	if got.path != "/incident/upload/101" {
		t.Errorf("path = %q", got.path)
	}
	if got.file != "shot.png:PNG" || got.fileName != "shot.png" || got.comment != "first" {
		t.Errorf("file parts = %+v", got)
	}
	if got.field != "evidence" || got.media != "true" || got.last != "false" {
		t.Errorf("flags = %+v", got)
	}
}

func TestHTTPClient_CreateInvestigation(t *testing.T) {
	h := &testHandler{responseBody: `{}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	res := c.CreateInvestigation(context.Background(), "101", 4)
	if !res.Success || res.ID != "101" {
		t.Fatalf("result = %+v", res)
	}
	if h.path != "/incident/investigate" {
		t.Errorf("path = %q", h.path)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(h.body), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["id"] != "101" || body["version"] != float64(4) {
		t.Errorf("body = %v", body)
	}
}

func TestAPIError_Format(t *testing.T) {
	e := &APIError{StatusCode: 500, Message: "boom", Path: "/incident"}
	if e.Error() != "XSOAR API error (HTTP 500) on /incident: boom" {
		t.Errorf("Error() = %q", e.Error())
	}
	e.Path = ""
	if e.Error() != "XSOAR API error (HTTP 500): boom" {
		t.Errorf("Error() = %q", e.Error())
	}
}
