package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAPIClient_SendsBearerToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /profile": `{"role":"other","industry":"other","complexity":"basic"}`,
	})

	resp, err := ts.client().get(ctx, "/profile")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("missing bearer token: %q", ts.requests[0].Auth)
	}
}

func TestAPIClient_PostSendsJSON(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /checkins": `{"id":"ci-1","triggers":[]}`,
	})

	resp, err := ts.client().post(ctx, "/checkins", map[string]any{"stress_rating": 4})
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	if result.ID != "ci-1" {
		t.Errorf("unexpected id %q", result.ID)
	}
	if !strings.Contains(ts.requests[0].Body, `"stress_rating":4`) {
		t.Errorf("body missing stress rating: %s", ts.requests[0].Body)
	}
}

func TestDecodeJSON_ErrorStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().get(ctx, "/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	var v any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should mention status code: %v", err)
	}
}

// --- parseCheckoutTime ---

func TestParseCheckoutTime_ClockOnly(t *testing.T) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.Local)

	got, err := parseCheckoutTime("21:30", now)
	if err != nil {
		t.Fatalf("parseCheckoutTime: %v", err)
	}
	want := time.Date(2026, 8, 23, 21, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseCheckoutTime_RFC3339(t *testing.T) {
	got, err := parseCheckoutTime("2026-08-23T21:30:00Z", time.Now())
	if err != nil {
		t.Fatalf("parseCheckoutTime: %v", err)
	}
	if got.Hour() != 21 || got.Minute() != 30 {
		t.Errorf("unexpected time %v", got)
	}
}

func TestParseCheckoutTime_Invalid(t *testing.T) {
	if _, err := parseCheckoutTime("half past nine", time.Now()); err == nil {
		t.Error("expected error for unparseable time")
	}
}

// --- output helpers ---

func TestColorize(t *testing.T) {
	noColor = false
	defer func() { noColor = false }()

	got := colorize(colorGreen, "ok")
	if !strings.HasPrefix(got, colorGreen) || !strings.HasSuffix(got, colorReset) {
		t.Errorf("expected color codes, got %q", got)
	}

	noColor = true
	if got := colorize(colorGreen, "ok"); got != "ok" {
		t.Errorf("expected plain text with --no-color, got %q", got)
	}
}

func TestCountLabel(t *testing.T) {
	if got := countLabel(5, 100); got != "5" {
		t.Errorf("countLabel(5, 100) = %q", got)
	}
	if got := countLabel(100, 100); got != "100+" {
		t.Errorf("countLabel(100, 100) = %q", got)
	}
}
