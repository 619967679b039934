package garmin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestConnector(t *testing.T, tokenURL string) (*Connector, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	connector := NewConnector(ConnectorParams{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		AuthURL:      "https://connect.garmin.example/oauth/authorize",
		TokenURL:     tokenURL,
		CallbackURL:  "https://api.paceriz.app/garmin/callback",
		AppDeepLink:  "paceriz://callback/garmin",
	}, db)
	connector.RandStateFunc = func(s int) (string, error) {
		return "test-state", nil
	}
	return connector, mock
}

func TestConnector_connectRedirects(t *testing.T) {
	connector, _ := newTestConnector(t, "https://connect.garmin.example/oauth/token")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/garmin/connect", nil)
	connector.handleConnect(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "connect.garmin.example", location.Host)
	assert.Equal(t, "test-state", location.Query().Get("state"))
	assert.Equal(t, "test-client", location.Query().Get("client_id"))
}

func TestConnector_callback(t *testing.T) {
	// fake garmin token endpoint
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"garmin-token","token_type":"Bearer","refresh_token":"garmin-refresh","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	connector, mock := newTestConnector(t, tokenServer.URL)
	connector.state = "test-state"

	mock.CustomMatch(func(expected, actual []interface{}) error {
		return nil
	}).ExpectSet(tokenRedisKey, nil, 0).SetVal("OK")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/garmin/callback?state=test-state&code=test-code", nil)
	connector.handleCallback(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "paceriz://callback/garmin")
	assert.Contains(t, rec.Header().Get("Location"), "status=connected")
}

func TestConnector_callbackStateMismatch(t *testing.T) {
	connector, _ := newTestConnector(t, "https://connect.garmin.example/oauth/token")
	connector.state = "test-state"

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/garmin/callback?state=evil-state&code=test-code", nil)
	connector.handleCallback(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestConnector_tokenNotConnected(t *testing.T) {
	connector, mock := newTestConnector(t, "https://connect.garmin.example/oauth/token")

	mock.ExpectGet(tokenRedisKey).RedisNil()

	_, err := connector.Token(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnector_tokenFromRedis(t *testing.T) {
	connector, mock := newTestConnector(t, "https://connect.garmin.example/oauth/token")

	stored := oauth2.Token{
		AccessToken: "garmin-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}
	storedJson, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectGet(tokenRedisKey).SetVal(string(storedJson))

	token, err := connector.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "garmin-token", token.AccessToken)
	assert.True(t, token.Valid())
}
