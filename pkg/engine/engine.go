package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every outbound call.
const DefaultTimeout = 30 * time.Second

// Doer issues a single outbound HTTP request. *http.Client satisfies it; a
// fake can stand in for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Engine turns request descriptions into outbound HTTP calls and folds
// whatever comes back into one Outcome shape.
type Engine struct {
	client  Doer
	timeout time.Duration
}

// New builds an Engine around the given client. A nil client falls back to a
// plain http.Client, a non-positive timeout to DefaultTimeout.
func New(client Doer, timeout time.Duration) *Engine {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{client: client, timeout: timeout}
}

// Execute runs one request description against its origin. The returned
// Outcome is always complete; the error is non-nil only when no HTTP
// response was obtained, and repeats what the Outcome already carries.
func (e *Engine) Execute(ctx context.Context, req Request) (Outcome, error) {
	out, err := normalize(req)
	if err != nil {
		return Outcome{StatusText: err.Error(), Headers: map[string]string{}, Data: err.Error()}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(out.body) > 0 {
		bodyReader = bytes.NewReader(out.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, out.method, out.url, bodyReader)
	if err != nil {
		return Outcome{StatusText: err.Error(), Headers: map[string]string{}, Data: err.Error()}, err
	}
	for k, v := range out.header {
		httpReq.Header[k] = v
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	elapsed := time.Since(start)
	outboundLatency.Observe(elapsed.Seconds())

	if err != nil {
		executionFailures.Inc()
		return failureOutcome(err, resp, elapsed), err
	}
	defer resp.Body.Close()

	executionsTotal.With(statusLabel(resp.StatusCode)).Inc()
	return responseOutcome(resp, elapsed), nil
}

// outbound is the normalized form of a Request, ready for dispatch.
type outbound struct {
	method string
	url    string
	header http.Header
	body   []byte
}

// normalize canonicalizes the method, builds the header set and encodes the
// body. Bodies travel only on POST, PUT and PATCH; for every other verb the
// body text is ignored. The Content-Type default applies only when the
// caller set none, whatever the key casing they used.
func normalize(req Request) (outbound, error) {
	if err := req.Validate(); err != nil {
		return outbound{}, err
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	header := make(http.Header, len(req.Headers))
	for k, v := range req.Headers {
		header.Set(k, v)
	}

	var body []byte
	if methodHasBody(method) && req.Body != "" {
		bodyType, _ := ParseBodyType(string(req.BodyType))
		body = encodeBody(bodyType, req.Body)
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", bodyType.contentType())
		}
	}

	return outbound{method: method, url: req.URL, header: header, body: body}, nil
}

func methodHasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// encodeBody shapes the outbound payload for one encoding mode. A raw body
// that parses as JSON is re-serialized, so the origin receives the parsed
// value rather than the caller's original spacing; a raw body that does not
// parse, and form or urlencoded bodies, pass through byte for byte.
func encodeBody(bodyType BodyType, body string) []byte {
	if bodyType == BodyTypeRaw {
		var v interface{}
		if err := json.Unmarshal([]byte(body), &v); err == nil {
			if b, err := json.Marshal(v); err == nil {
				return b
			}
		}
	}
	return []byte(body)
}

// responseOutcome maps a received HTTP response onto the unified shape.
// Status codes are data here, never errors.
func responseOutcome(resp *http.Response, elapsed time.Duration) Outcome {
	data := ""
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		data = "error reading response body: " + err.Error()
	} else {
		data = normalizeResponseBody(body)
	}
	return Outcome{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    flattenHeader(resp.Header),
		Data:       data,
		Time:       elapsed.Milliseconds(),
	}
}

// failureOutcome maps a transport failure onto the same shape a response
// would take. Some failures still carry the last response seen (a client
// giving up mid-redirect does); its status and headers are kept. Status 0
// marks that no response was ever received.
func failureOutcome(err error, resp *http.Response, elapsed time.Duration) Outcome {
	out := Outcome{
		StatusText: err.Error(),
		Headers:    map[string]string{},
		Data:       err.Error(),
		Time:       elapsed.Milliseconds(),
	}
	if resp != nil {
		out.Status = resp.StatusCode
		out.Headers = flattenHeader(resp.Header)
		if resp.Body != nil {
			if body, readErr := io.ReadAll(resp.Body); readErr == nil && len(body) > 0 {
				out.Data = normalizeResponseBody(body)
			}
			resp.Body.Close()
		}
	}
	return out
}

// statusText prefers the reason phrase the origin actually sent, falling
// back to the standard text for the code.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// flattenHeader collapses multi-valued headers into single comma-joined
// strings.
func flattenHeader(h http.Header) map[string]string {
	m := make(map[string]string, len(h))
	for k, v := range h {
		m[k] = strings.Join(v, ", ")
	}
	return m
}

// normalizeResponseBody renders a response payload for storage and
// transport. JSON objects and arrays come back 2-space indented, so stored
// history stays readable and still parses to the same value; every other
// payload passes through untouched.
func normalizeResponseBody(body []byte) string {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') || !json.Valid(body) {
		return string(body)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}
