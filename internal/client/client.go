package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/paceriz/paceriz/internal/telemetry/tracing"
	"github.com/paceriz/paceriz/internal/workout"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultRequestTimeout = 30 * time.Second

// TokenSource provides the bearer token for backend requests and knows
// how to get a fresh one after a 401.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Client is the backend API client used by the sync daemon.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	tokens     TokenSource
}

func NewClient(baseURL, userAgent string, tokens TokenSource) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: tokens,
	}
}

func (c *Client) UploadWorkouts(ctx context.Context, workouts []workout.Workout) (*workout.UploadResponse, error) {
	ctx, span := tracing.GlobalSyncTracer.Start(ctx, "client.uploadWorkouts")
	defer span.End()
	span.SetAttributes(attribute.Int("workouts.count", len(workouts)))

	var uploadResponse workout.UploadResponse
	if err := c.do(ctx, http.MethodPost, "/workout/v2/workouts", nil, workouts, &uploadResponse); err != nil {
		return nil, err
	}
	return &uploadResponse, nil
}

func (c *Client) ListWorkouts(ctx context.Context, cursor string, size int) (*workout.ListResponse, error) {
	ctx, span := tracing.GlobalSyncTracer.Start(ctx, "client.listWorkouts")
	defer span.End()

	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if size > 0 {
		query.Set("size", fmt.Sprintf("%d", size))
	}

	var listResponse workout.ListResponse
	if err := c.do(ctx, http.MethodGet, "/workout/v2/workouts", query, nil, &listResponse); err != nil {
		return nil, err
	}
	return &listResponse, nil
}

func (c *Client) GetWorkout(ctx context.Context, id string) (*workout.Workout, error) {
	ctx, span := tracing.GlobalSyncTracer.Start(ctx, "client.getWorkout")
	defer span.End()
	span.SetAttributes(attribute.String("workout.id", id))

	var w workout.Workout
	if err := c.do(ctx, http.MethodGet, "/workout/v2/workouts/"+id, nil, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *Client) GetStats(ctx context.Context, from, to time.Time) (*workout.Stats, error) {
	ctx, span := tracing.GlobalSyncTracer.Start(ctx, "client.getStats")
	defer span.End()

	query := url.Values{}
	query.Set("from", from.Format(time.RFC3339))
	query.Set("to", to.Format(time.RFC3339))

	var stats workout.Stats
	if err := c.do(ctx, http.MethodGet, "/workout/v2/stats", query, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// do executes an authenticated request. On a 401 it asks the token
// source for a fresh token and retries exactly once, a second 401 means
// the session is gone for good and ErrUnauthorized is returned.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body, result any,
) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}

	statusCode, respBody, err := c.execute(ctx, method, path, query, body, token)
	if err != nil {
		// flaky networks get one more chance, a cancelled context does not
		if !errors.Is(err, ErrNoConnection) && !errors.Is(err, ErrTimeout) {
			return err
		}
		log.Debugf("request [%s %s] transport error [%s], retrying", method, path, err)
		statusCode, respBody, err = c.execute(ctx, method, path, query, body, token)
		if err != nil {
			return err
		}
	}

	if statusCode == http.StatusUnauthorized {
		log.Debugf("request [%s %s] unauthorized, refreshing token and retrying", method, path)
		token, err = c.tokens.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("refresh token: %w", err)
		}
		statusCode, respBody, err = c.execute(ctx, method, path, query, body, token)
		if err != nil {
			return err
		}
		if statusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
	}

	if statusCode < 200 || statusCode >= 300 {
		return &APIError{
			StatusCode: statusCode,
			Message:    string(respBody),
		}
	}

	if result == nil {
		return nil
	}
	return decodeResponse(respBody, result)
}

func (c *Client) execute(
	ctx context.Context,
	method, path string,
	query url.Values,
	body any,
	token string,
) (statusCode int, _ []byte, err error) {
	ctx, span := tracing.GlobalSyncTracer.Start(
		ctx, "client.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.target", path),
		),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(bodyJson)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, categorizeTransportErr(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, respBody, nil
}

// decodeResponse unmarshals the payload into result, first trying the
// raw body, then the {"data": ...} and {"result": ...} envelopes some
// providers wrap their payloads in.
func decodeResponse(respBody []byte, result any) error {
	directErr := json.Unmarshal(respBody, result)
	if directErr == nil {
		return nil
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err == nil {
		if len(envelope.Data) > 0 {
			if err := json.Unmarshal(envelope.Data, result); err == nil {
				return nil
			}
		}
		if len(envelope.Result) > 0 {
			if err := json.Unmarshal(envelope.Result, result); err == nil {
				return nil
			}
		}
	}

	return fmt.Errorf("decode response: %w", directErr)
}
