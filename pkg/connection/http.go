package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/buger/jsonparser"
)

type HTTPConnection struct {
	baseURL  string
	authPath string

	httpClient *http.Client
}

type NewConnectionParams struct {
	BaseURL string
	// AuthPath defaults to DefaultAuthPath.
	AuthPath string
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

func NewHTTPConnection(p NewConnectionParams) (*HTTPConnection, error) {
	if p.BaseURL == "" {
		return nil, ErrNoBaseURL
	}

	con := HTTPConnection{
		baseURL:  strings.TrimRight(p.BaseURL, "/"),
		authPath: p.AuthPath,
	}
	if con.authPath == "" {
		con.authPath = DefaultAuthPath
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	con.httpClient = &http.Client{
		Timeout: timeout,
	}

	return &con, nil
}

func (h *HTTPConnection) SetTimeout(timeout time.Duration) *HTTPConnection {
	h.httpClient.Timeout = timeout
	return h
}

func (h *HTTPConnection) SetHTTPClient(client *http.Client) *HTTPConnection {
	h.httpClient = client
	return h
}

func (h *HTTPConnection) BaseURL() string {
	return h.baseURL
}

func (h *HTTPConnection) AuthWithPassword(ctx context.Context, identity, password string) (string, error) {
	if identity == "" || password == "" {
		return "", ErrEmptyIdentity
	}

	res, err := h.Do(ctx, "", Request{
		Method: http.MethodPost,
		Path:   h.authPath,
		Body: map[string]string{
			"identity": identity,
			"password": password,
		},
	})
	if err != nil {
		return "", err
	}

	token, err := jsonparser.GetString(res.Body, "token")
	if err != nil || token == "" {
		return "", ErrNoToken
	}

	return token, nil
}

func (h *HTTPConnection) Health(ctx context.Context) error {
	_, err := h.Do(ctx, "", Request{Method: http.MethodGet, Path: HealthPath})
	return err
}

func (h *HTTPConnection) Do(ctx context.Context, token string, r Request) (*Response, error) {
	req, err := h.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set(AuthorizationHeader, token)
	}

	return h.MakeRequest(req)
}

func (h *HTTPConnection) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target := h.baseURL + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader = http.NoBody
	if r.Body != nil {
		// Strings and byte slices are sent as-is, anything else is marshaled to JSON.
		switch v := r.Body.(type) {
		case string:
			body = strings.NewReader(v)
		case []byte:
			body = bytes.NewReader(v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("marshal request body: %w", err)
			}
			body = bytes.NewReader(b)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (h *HTTPConnection) MakeRequest(req *http.Request) (*Response, error) {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       respBytes,
		}, nil
	}

	return nil, parseAPIError(resp.StatusCode, respBytes)
}

// parseAPIError extracts the PocketBase error envelope. Bodies that are not
// JSON (proxies, load balancers) still yield an APIError with the status set.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Code: status}

	if code, err := jsonparser.GetInt(body, "code"); err == nil {
		apiErr.Code = int(code)
	}
	if msg, err := jsonparser.GetString(body, "message"); err == nil {
		apiErr.Message = msg
	}
	if data, dataType, _, err := jsonparser.Get(body, "data"); err == nil && dataType == jsonparser.Object {
		var m map[string]any
		if json.Unmarshal(data, &m) == nil && len(m) > 0 {
			apiErr.Data = m
		}
	}

	return apiErr
}
