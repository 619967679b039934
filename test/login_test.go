package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestLogin() {
	ctx := context.Background()
	token := doLogin(ctx, s.T())
	require.NotEmpty(s.T(), token)

	// now logout, and the token should no longer work
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/a/logout", serverEndpoint), nil)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	req, err = http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/workout/v2/workouts", serverEndpoint), nil)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err = s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestLogin_wrongCredentials() {
	ctx := context.Background()

	loginReqJson, err := json.Marshal(loginRequest{
		Username: testUsername,
		Password: "try-me",
	})
	require.NoError(s.T(), err)

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/a/login", serverEndpoint), bytes.NewBuffer(loginReqJson))
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestRefresh() {
	ctx := context.Background()
	token := doLogin(ctx, s.T())

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/a/refresh", serverEndpoint), nil)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var refreshResp loginResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&refreshResp))
	require.NotEmpty(s.T(), refreshResp.Token)
	require.NotEqual(s.T(), token, refreshResp.Token)
}

func (s *IntegrationTestSuite) TestUnauthorizedAccess() {
	ctx := context.Background()

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/workout/v2/workouts", serverEndpoint), nil)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
}
