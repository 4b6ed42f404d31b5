package connection

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one call against the PocketBase REST API.
type Request struct {
	Method string
	// Path is relative to the base URL, e.g. "/api/collections/orders/records".
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Response is the raw outcome of a successful (2xx) call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// APIError is the error envelope PocketBase returns for non-2xx responses:
//
//	{"code": 400, "message": "Failed to authenticate.", "data": {}}
type APIError struct {
	Status  int            `json:"-"`
	Code    int            `json:"code"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("pocketbase: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("pocketbase: %d %s", e.Status, http.StatusText(e.Status))
}

func (e *APIError) Is(target error) bool {
	if target == nil {
		return e == nil
	}

	_, ok := target.(*APIError)
	return ok
}

// Unauthorized reports whether the remote rejected the session token.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}
