package storage

import (
	"time"

	"github.com/courierhq/courier/pkg/engine"
)

// Exchange is one recorded request/response pair. It is written once when an
// execution finishes, transport failures included, and never updated
// afterwards.
type Exchange struct {
	ID        string            `json:"id"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	BodyType  string            `json:"bodyType"`
	Response  engine.Outcome    `json:"response"`
	CreatedAt time.Time         `json:"createdAt"`
}
