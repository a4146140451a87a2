package login

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
	"time"
)

// HTTPClient matches the subset of http.Client used by HTTPService.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPService implements Service against the authentication API.
type HTTPService struct {
	base   *url.URL
	client HTTPClient
}

// NewHTTPService constructs a Service that talks to the authentication API at baseURL.
// A nil client gets an http.Client bounded by timeout.
func NewHTTPService(baseURL string, client HTTPClient, timeout time.Duration) (*HTTPService, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrNotConfigured)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("login: parse base URL: %w", err)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPService{
		base:   parsed,
		client: client,
	}, nil
}

type loginPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password,omitempty"`
	Code        string `json:"code,omitempty"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// Login forwards the credentials and optional redirect target to POST /auth/login.
func (s *HTTPService) Login(ctx context.Context, creds Credentials, callbackURL string) (*Outcome, error) {
	return s.post(ctx, "auth/login", loginPayload{
		Email:       creds.Email,
		Password:    creds.Password,
		Code:        creds.Code,
		CallbackURL: callbackURL,
	})
}

// LoginFederated forwards a provider authorization code to POST /auth/federated.
func (s *HTTPService) LoginFederated(ctx context.Context, req FederatedRequest) (*Outcome, error) {
	return s.post(ctx, "auth/federated", req)
}

func (s *HTTPService) post(ctx context.Context, endpoint string, payload any) (*Outcome, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("login: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base.ResolveReference(&url.URL{Path: endpoint}).String(), &buf)
	if err != nil {
		return nil, fmt.Errorf("login: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var outcome Outcome
		if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("login: decode outcome: %w", err)
		}
		return &outcome, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		upstream := errorFromResponse(resp)
		if upstream.Message == "" {
			return nil, upstream
		}
		return &Outcome{Error: upstream.Message, ErrorCode: upstream.Code}, nil
	default:
		return nil, errorFromResponse(resp)
	}
}

func errorFromResponse(resp *http.Response) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	out := &UpstreamError{Status: resp.StatusCode}
	var payload struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		out.Code = strings.TrimSpace(payload.Code)
		out.Message = strings.TrimSpace(payload.Error)
		if out.Message == "" {
			out.Message = strings.TrimSpace(payload.Message)
		}
	}
	return out
}
