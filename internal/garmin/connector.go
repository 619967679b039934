package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/paceriz/paceriz/internal/telemetry/tracing"
	"github.com/paceriz/paceriz/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const tokenRedisKey = "paceriz-garmin-token"

var ErrNotConnected = errors.New("garmin account not connected")

type ConnectorParams struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	CallbackURL  string
	// AppDeepLink is where the browser gets sent after the oauth dance,
	// e.g. paceriz://callback/garmin, which hands control back to the app.
	AppDeepLink string
}

// Connector runs the Garmin OAuth dance and keeps the obtained token in
// redis so it survives restarts.
type Connector struct {
	oauthConfig *oauth2.Config
	appDeepLink string
	redisClient *redis.Client

	// ability to inject random state generator (for testing)
	RandStateFunc func(s int) (string, error)
	state         string
}

func NewConnector(params ConnectorParams, redisClient *redis.Client) *Connector {
	return &Connector{
		oauthConfig: &oauth2.Config{
			ClientID:     params.ClientID,
			ClientSecret: params.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  params.AuthURL,
				TokenURL: params.TokenURL,
			},
			RedirectURL: params.CallbackURL,
			Scopes:      []string{"activity:read"},
		},
		appDeepLink:   params.AppDeepLink,
		redisClient:   redisClient,
		RandStateFunc: pkg.GenerateRandomString,
	}
}

func (c *Connector) SetupRoutes(router *mux.Router) {
	garminRouter := router.PathPrefix("/garmin").Subrouter()
	garminRouter.HandleFunc("/connect", c.handleConnect).Methods("GET").Name("garmin-connect")
	garminRouter.HandleFunc("/callback", c.handleCallback).Methods("GET").Name("garmin-callback")
	garminRouter.HandleFunc("/status", c.handleStatus).Methods("GET").Name("garmin-status")
}

func (c *Connector) handleConnect(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "garmin.connect")
	defer span.End()

	state, err := c.RandStateFunc(24)
	if err != nil {
		log.Errorf("garmin connect, generate state: %s", err)
		http.Error(w, "connect error", http.StatusInternalServerError)
		return
	}
	c.state = state

	redirectURL := c.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (c *Connector) handleCallback(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "garmin.callback")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if st := r.FormValue("state"); st == "" || st != c.state {
		log.Errorf("garmin callback state mismatch")
		http.Error(w, "state mismatch", http.StatusForbidden)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		http.Error(w, "code missing", http.StatusBadRequest)
		return
	}

	token, err := c.oauthConfig.Exchange(ctx, code)
	if err != nil {
		log.Errorf("garmin callback, exchange code: %s", err)
		http.Error(w, "failed to get token", http.StatusForbidden)
		return
	}

	if err = c.storeToken(ctx, token); err != nil {
		log.Errorf("garmin callback, store token: %s", err)
		http.Error(w, "failed to store token", http.StatusInternalServerError)
		return
	}

	log.Debugln("garmin account connected")

	// hand control back to the app
	http.Redirect(w, r, c.appDeepLink+"?status=connected", http.StatusFound)
}

func (c *Connector) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "garmin.status")
	defer span.End()

	_, err := c.Token(ctx)
	connected := err == nil
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"connected": %t}`, connected))
}

// Token returns the stored Garmin token, refreshing and re-storing it
// when expired.
func (c *Connector) Token(ctx context.Context) (*oauth2.Token, error) {
	cmd := c.redisClient.Get(ctx, tokenRedisKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotConnected
		}
		return nil, err
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(cmd.Val()), &token); err != nil {
		return nil, fmt.Errorf("unmarshal stored token: %w", err)
	}

	if token.Valid() {
		return &token, nil
	}

	// expired, let the token source refresh it
	fresh, err := c.oauthConfig.TokenSource(ctx, &token).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if err := c.storeToken(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// HTTPClient returns a client that authenticates requests against the
// Garmin API with the stored token.
func (c *Connector) HTTPClient(ctx context.Context) (*http.Client, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	client := c.oauthConfig.Client(ctx, token)
	client.Timeout = 30 * time.Second
	return client, nil
}

func (c *Connector) storeToken(ctx context.Context, token *oauth2.Token) error {
	tokenJson, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	return c.redisClient.Set(ctx, tokenRedisKey, tokenJson, 0).Err()
}
