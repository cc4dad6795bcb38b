package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type captured struct {
	method      string
	contentType string
	body        string
}

func newCaptureServer(status int, respBody string) (*httptest.Server, *captured) {
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.contentType = r.Header.Get("Content-Type")
		got.body = string(b)
		w.WriteHeader(status)
		if respBody != "" {
			w.Write([]byte(respBody))
		}
	}))
	return srv, got
}

func TestExecuteRawJSONBodyIsParsed(t *testing.T) {
	srv, got := newCaptureServer(http.StatusOK, "")
	defer srv.Close()

	eng := New(nil, 0)
	out, err := eng.Execute(context.Background(), Request{
		Method:   "post",
		URL:      srv.URL,
		Body:     `{"name": "ada",   "age": 36}`,
		BodyType: BodyTypeRaw,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if out.Status != http.StatusOK {
		t.Errorf("status = %d, want %d", out.Status, http.StatusOK)
	}
	if got.method != http.MethodPost {
		t.Errorf("origin saw method %q, want POST", got.method)
	}
	// The origin must receive the parsed value, not the caller's spacing.
	if got.body != `{"age":36,"name":"ada"}` {
		t.Errorf("origin saw body %q", got.body)
	}
	if got.contentType != "application/json" {
		t.Errorf("origin saw Content-Type %q, want application/json", got.contentType)
	}
}

func TestExecuteRawInvalidJSONPassesThrough(t *testing.T) {
	srv, got := newCaptureServer(http.StatusOK, "")
	defer srv.Close()

	eng := New(nil, 0)
	if _, err := eng.Execute(context.Background(), Request{
		Method: "POST",
		URL:    srv.URL,
		Body:   "{not json at all",
	}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got.body != "{not json at all" {
		t.Errorf("origin saw body %q, want the raw text unchanged", got.body)
	}
	if got.contentType != "application/json" {
		t.Errorf("origin saw Content-Type %q, want the raw default", got.contentType)
	}
}

func TestExecuteBodyEncodings(t *testing.T) {
	tests := []struct {
		name            string
		bodyType        BodyType
		headers         map[string]string
		body            string
		wantBody        string
		wantContentType string
	}{
		{
			name:            "urlencoded default content type",
			bodyType:        BodyTypeURLEncoded,
			body:            "a=1&b=2",
			wantBody:        "a=1&b=2",
			wantContentType: "application/x-www-form-urlencoded",
		},
		{
			name:            "form data default content type",
			bodyType:        BodyTypeFormData,
			body:            "field=value",
			wantBody:        "field=value",
			wantContentType: "multipart/form-data",
		},
		{
			name:            "caller content type wins",
			bodyType:        BodyTypeRaw,
			headers:         map[string]string{"Content-Type": "text/plain"},
			body:            "hello",
			wantBody:        "hello",
			wantContentType: "text/plain",
		},
		{
			name:            "caller content type wins regardless of casing",
			bodyType:        BodyTypeURLEncoded,
			headers:         map[string]string{"content-type": "text/plain; charset=utf-8"},
			body:            "a=1",
			wantBody:        "a=1",
			wantContentType: "text/plain; charset=utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := newCaptureServer(http.StatusOK, "")
			defer srv.Close()

			eng := New(nil, 0)
			if _, err := eng.Execute(context.Background(), Request{
				Method:   "POST",
				URL:      srv.URL,
				Headers:  tt.headers,
				Body:     tt.body,
				BodyType: tt.bodyType,
			}); err != nil {
				t.Fatalf("Execute returned error: %v", err)
			}
			if got.body != tt.wantBody {
				t.Errorf("origin saw body %q, want %q", got.body, tt.wantBody)
			}
			if got.contentType != tt.wantContentType {
				t.Errorf("origin saw Content-Type %q, want %q", got.contentType, tt.wantContentType)
			}
		})
	}
}

func TestExecuteGetIgnoresBody(t *testing.T) {
	srv, got := newCaptureServer(http.StatusOK, "")
	defer srv.Close()

	eng := New(nil, 0)
	if _, err := eng.Execute(context.Background(), Request{
		Method: "GET",
		URL:    srv.URL,
		Body:   `{"should":"not travel"}`,
	}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got.body != "" {
		t.Errorf("origin saw body %q, want none on GET", got.body)
	}
	if got.contentType != "" {
		t.Errorf("origin saw Content-Type %q, want none on GET", got.contentType)
	}
}

func TestExecuteErrorStatusIsStillData(t *testing.T) {
	srv, _ := newCaptureServer(http.StatusInternalServerError, "boom")
	defer srv.Close()

	eng := New(nil, 0)
	out, err := eng.Execute(context.Background(), Request{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("a 500 must not surface as an error, got: %v", err)
	}
	if out.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", out.Status)
	}
	if out.StatusText != "Internal Server Error" {
		t.Errorf("statusText = %q", out.StatusText)
	}
	if out.Data != "boom" {
		t.Errorf("data = %q, want %q", out.Data, "boom")
	}
}

func TestExecuteFormatsJSONResponse(t *testing.T) {
	raw := `{"b":{"c":1},"a":[1,2]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(raw))
	}))
	defer srv.Close()

	eng := New(nil, 0)
	out, err := eng.Execute(context.Background(), Request{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	var want bytes.Buffer
	if err := json.Indent(&want, []byte(raw), "", "  "); err != nil {
		t.Fatal(err)
	}
	if out.Data != want.String() {
		t.Errorf("data = %q, want indented form %q", out.Data, want.String())
	}

	// Formatting must not change the value.
	var a, b interface{}
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(out.Data), &b); err != nil {
		t.Fatalf("formatted data no longer parses: %v", err)
	}
}

func TestExecuteNonJSONResponsePassesThrough(t *testing.T) {
	srv, _ := newCaptureServer(http.StatusOK, "plain text, 100% intact")
	defer srv.Close()

	eng := New(nil, 0)
	out, err := eng.Execute(context.Background(), Request{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if out.Data != "plain text, 100% intact" {
		t.Errorf("data = %q", out.Data)
	}
}

func TestExecuteFlattensMultiValueHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("X-Tag", "a")
		w.Header().Add("X-Tag", "b")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	eng := New(nil, 0)
	out, err := eng.Execute(context.Background(), Request{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got := out.Headers["X-Tag"]; got != "a, b" {
		t.Errorf("X-Tag = %q, want %q", got, "a, b")
	}
}

func TestExecuteTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	eng := New(nil, 0)
	out, err := eng.Execute(context.Background(), Request{Method: "GET", URL: url})
	if err == nil {
		t.Fatal("want an error for a refused connection")
	}
	if out.Status != 0 {
		t.Errorf("status = %d, want 0 when no response arrived", out.Status)
	}
	if out.StatusText == "" || out.Data == "" {
		t.Errorf("failure outcome must carry the error text, got %+v", out)
	}
	if out.Headers == nil {
		t.Error("headers must be an empty map, not nil")
	}
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	eng := New(nil, 50*time.Millisecond)
	out, err := eng.Execute(context.Background(), Request{Method: "GET", URL: srv.URL})
	if err == nil {
		t.Fatal("want an error when the origin exceeds the timeout")
	}
	if out.Status != 0 {
		t.Errorf("status = %d, want 0", out.Status)
	}
	if out.Time < 40 {
		t.Errorf("time = %dms, want at least the timeout to have elapsed", out.Time)
	}
}

func TestExecuteRedirectLoopKeepsLastResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	}))
	defer srv.Close()

	eng := New(nil, 0)
	out, err := eng.Execute(context.Background(), Request{Method: "GET", URL: srv.URL})
	if err == nil {
		t.Fatal("want an error when the client gives up on redirects")
	}
	// The client surrenders holding the last 302; its status survives.
	if out.Status != http.StatusFound {
		t.Errorf("status = %d, want %d", out.Status, http.StatusFound)
	}
	if out.Headers["Location"] == "" {
		t.Error("want the Location header of the last response")
	}
	if !strings.Contains(err.Error(), "redirect") {
		t.Errorf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid GET", Request{Method: "GET", URL: "https://example.com"}, false},
		{"valid lowercase method", Request{Method: "delete", URL: "https://example.com"}, false},
		{"valid with body type", Request{Method: "POST", URL: "https://example.com", BodyType: BodyTypeURLEncoded}, false},
		{"missing method", Request{URL: "https://example.com"}, true},
		{"unknown method", Request{Method: "FROB", URL: "https://example.com"}, true},
		{"missing url", Request{Method: "GET"}, true},
		{"relative url", Request{Method: "GET", URL: "/only/a/path"}, true},
		{"scheme without host", Request{Method: "GET", URL: "https://"}, true},
		{"unknown body type", Request{Method: "POST", URL: "https://example.com", BodyType: "yaml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseBodyType(t *testing.T) {
	tests := []struct {
		in      string
		want    BodyType
		wantErr bool
	}{
		{"", BodyTypeRaw, false},
		{"raw", BodyTypeRaw, false},
		{"RAW", BodyTypeRaw, false},
		{"form-data", BodyTypeFormData, false},
		{"urlencoded", BodyTypeURLEncoded, false},
		{"xml", "", true},
		{"form_data", "", true},
	}

	for _, tt := range tests {
		t.Run("in="+tt.in, func(t *testing.T) {
			got, err := ParseBodyType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBodyType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBodyType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeResponseBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"scalar json stays as is", "42", "42"},
		{"invalid json stays as is", "{broken", "{broken"},
		{"array gets indented", `[1,2]`, "[\n  1,\n  2\n]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeResponseBody([]byte(tt.in)); got != tt.want {
				t.Errorf("normalizeResponseBody(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
