package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
)

// SessionTokenSource obtains a session token by logging in with the
// configured credentials, and rotates it through the refresh endpoint
// when asked. Safe for concurrent use.
type SessionTokenSource struct {
	mu         sync.Mutex
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	token      string
}

func NewSessionTokenSource(baseURL, username, password string) *SessionTokenSource {
	return &SessionTokenSource{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

func (s *SessionTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}
	return s.login(ctx)
}

// Refresh rotates the current token via the refresh endpoint. When the
// backend no longer recognizes the session it falls back to a full
// login.
func (s *SessionTokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return s.login(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/a/refresh", nil)
	if err != nil {
		return "", fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	token, err := s.tokenRequest(req)
	if err != nil {
		log.Debugf("token refresh failed [%s], retrying with full login", err)
		return s.login(ctx)
	}

	s.token = token
	return token, nil
}

func (s *SessionTokenSource) login(ctx context.Context) (string, error) {
	credentialsJson, err := json.Marshal(map[string]string{
		"username": s.username,
		"password": s.password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		s.baseURL+"/a/login",
		bytes.NewReader(credentialsJson),
	)
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := s.tokenRequest(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	s.token = token
	return token, nil
}

func (s *SessionTokenSource) tokenRequest(req *http.Request) (string, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", categorizeTransportErr(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	var tokenResponse struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &tokenResponse); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResponse.Token == "" {
		return "", fmt.Errorf("empty token received")
	}

	return tokenResponse.Token, nil
}

// staticTokenSource is used in tests and for one-off scripts.
type staticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) TokenSource {
	return &staticTokenSource{token: token}
}

func (s *staticTokenSource) Token(context.Context) (string, error) {
	return s.token, nil
}

func (s *staticTokenSource) Refresh(context.Context) (string, error) {
	return s.token, nil
}
