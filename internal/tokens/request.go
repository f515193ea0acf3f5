package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const maxResourceResponseBytes = 8 << 20

// maxAttempts bounds resource calls per CallAuthenticated: the first
// request plus one retry after a refresh.
const maxAttempts = 2

// RequestSpec describes a provider resource call. Path is resolved against
// the provider API base URL unless URL is set.
type RequestSpec struct {
	Method string
	Path   string
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is a buffered provider reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CallAuthenticated sends the request with a valid bearer token. A 401 triggers
// exactly one refresh and one retry; a second 401 drops the stored record.
func (m *Manager) CallAuthenticated(ctx context.Context, userID string, spec RequestSpec) (*Response, error) {
	p := m.Provider()

	token, err := m.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := m.send(ctx, spec, token)
		if err != nil {
			providerRequestsTotal.WithLabelValues(string(p), statusLabel(0)).Inc()
			return nil, newError(ErrProviderRequest, p, err)
		}
		providerRequestsTotal.WithLabelValues(string(p), statusLabel(resp.StatusCode)).Inc()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode != http.StatusUnauthorized:
			return nil, &Error{
				Kind:     ErrProviderRequest,
				Provider: p,
				Status:   resp.StatusCode,
				Message:  providerMessage(resp.Body, resp.StatusCode),
			}
		}

		if attempt == maxAttempts-1 {
			m.log.Warn("token rejected after refresh", zap.String("user_id", userID))
			m.discard(ctx, userID)
			return nil, &Error{
				Kind:     ErrUnauthenticated,
				Provider: p,
				Status:   resp.StatusCode,
				Message:  providerMessage(resp.Body, resp.StatusCode),
			}
		}

		m.log.Info("token rejected, refreshing", zap.String("user_id", userID))
		rec, err := m.refresh(ctx, userID, token)
		if err != nil {
			return nil, unauthenticated(p, err)
		}
		token = rec.AccessToken
	}

	// unreachable: the last attempt always returns above
	return nil, newError(ErrProviderRequest, p, errors.New("retry budget exhausted"))
}

func (m *Manager) send(ctx context.Context, spec RequestSpec, token string) (*Response, error) {
	target, err := m.resolve(spec)
	if err != nil {
		return nil, err
	}

	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader = http.NoBody
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range spec.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

func (m *Manager) resolve(spec RequestSpec) (string, error) {
	raw := spec.URL
	if raw == "" {
		raw = strings.TrimRight(m.adapter.APIBaseURL(), "/") + "/" + strings.TrimLeft(spec.Path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	if len(spec.Query) > 0 {
		q := u.Query()
		for k, vs := range spec.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
