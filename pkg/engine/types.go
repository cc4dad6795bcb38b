package engine

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// BodyType selects how a request body is encoded before dispatch.
type BodyType string

const (
	BodyTypeRaw        BodyType = "raw"
	BodyTypeFormData   BodyType = "form-data"
	BodyTypeURLEncoded BodyType = "urlencoded"
)

// ParseBodyType maps a wire value onto the closed set of body encodings.
// The empty string means raw; anything else unknown is rejected instead of
// being silently treated as raw.
func ParseBodyType(s string) (BodyType, error) {
	switch BodyType(strings.ToLower(s)) {
	case "", BodyTypeRaw:
		return BodyTypeRaw, nil
	case BodyTypeFormData:
		return BodyTypeFormData, nil
	case BodyTypeURLEncoded:
		return BodyTypeURLEncoded, nil
	default:
		return "", fmt.Errorf("unknown body type %q", s)
	}
}

// contentType returns the Content-Type applied when the caller did not set
// one explicitly.
func (b BodyType) contentType() string {
	switch b {
	case BodyTypeFormData:
		return "multipart/form-data"
	case BodyTypeURLEncoded:
		return "application/x-www-form-urlencoded"
	default:
		return "application/json"
	}
}

// Request describes one outbound HTTP request as supplied by the caller.
type Request struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     string
	BodyType BodyType
}

var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// Validate rejects descriptions that must never reach the network: a missing
// or unknown method, a missing or non-absolute URL, an unknown body type.
// Method matching is case-insensitive.
func (r Request) Validate() error {
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		return errors.New("method is required")
	}
	if _, ok := allowedMethods[method]; !ok {
		return fmt.Errorf("unsupported method %q", r.Method)
	}
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("url %q is not absolute", r.URL)
	}
	if _, err := ParseBodyType(string(r.BodyType)); err != nil {
		return err
	}
	return nil
}

// Outcome is the unified result of one execution. Both delivery paths fill
// it: a response received from the origin (any status code, 500s included)
// and a transport failure that never produced one.
type Outcome struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Data       string            `json:"data"`
	Time       int64             `json:"time"`
}
