package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/MKhiriev/go-spirit-connect/internal/config"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/utils"
	"github.com/MKhiriev/go-spirit-connect/models"
	"github.com/go-resty/resty/v2"
)

// HashHeader carries the HMAC-SHA256 of the request body when a hash key is
// configured.
const HashHeader = "HashSHA256"

// IdempotencyHeader repeats the client-side id of an upserted object.
const IdempotencyHeader = "Idempotency-Key"

var resourcePattern = regexp.MustCompile(`^[a-z][a-z_]*$`)

type httpServerAdapter struct {
	client *utils.HTTPClient

	signer *utils.BodySigner

	mu    sync.RWMutex
	token string

	logger *logger.Logger
}

// NewHTTPServerAdapter constructs an HTTP/REST implementation of [ServerAdapter].
// It normalises and validates the base URL from adapterCfg.HTTPAddress,
// configures the underlying HTTP client with the resolved base URL and request
// timeout, and builds the body signer when a hash key is set.
//
// Returns an error if adapterCfg.HTTPAddress is empty or cannot be parsed as a
// valid URL.
func NewHTTPServerAdapter(adapterCfg config.ClientAdapter, appCfg config.ClientApp, logger *logger.Logger) (ServerAdapter, error) {
	baseURL, err := normalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	client := utils.NewHTTPClient(baseURL, adapterCfg.RequestTimeout)

	a := &httpServerAdapter{client: client, signer: utils.NewBodySigner(appCfg.HashKey), logger: logger}
	a.SetToken(adapterCfg.Token)
	return a, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [ServerAdapter]. It stores token (whitespace-trimmed) for
// use in the Authorization header of all subsequent requests.
func (h *httpServerAdapter) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

// Token implements [ServerAdapter].
func (h *httpServerAdapter) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Upsert implements [ServerAdapter] as PUT /api/{resource}/{id}.
func (h *httpServerAdapter) Upsert(ctx context.Context, resource, id string, data json.RawMessage) (json.RawMessage, error) {
	if err := checkTarget(resource, id); err != nil {
		return nil, err
	}

	resp, err := h.signedRequest(ctx, data).
		SetHeader(IdempotencyHeader, id).
		SetPathParams(map[string]string{"resource": resource, "id": id}).
		Put("/api/{resource}/{id}")
	if err != nil {
		return nil, fmt.Errorf("upsert %s request: %w", resource, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	h.logger.Debug().
		Str("func", "*httpServerAdapter.Upsert").
		Str("resource", resource).
		Str("id", id).
		Msg("object upserted")

	return responseObject(resp, data), nil
}

// Patch implements [ServerAdapter] as PATCH /api/{resource}/{id}.
func (h *httpServerAdapter) Patch(ctx context.Context, resource, id string, data json.RawMessage) (json.RawMessage, error) {
	if err := checkTarget(resource, id); err != nil {
		return nil, err
	}

	resp, err := h.signedRequest(ctx, data).
		SetPathParams(map[string]string{"resource": resource, "id": id}).
		Patch("/api/{resource}/{id}")
	if err != nil {
		return nil, fmt.Errorf("patch %s request: %w", resource, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	return responseObject(resp, data), nil
}

// Get implements [ServerAdapter] as GET /api/{resource}/{id}.
func (h *httpServerAdapter) Get(ctx context.Context, resource, id string) (json.RawMessage, error) {
	if err := checkTarget(resource, id); err != nil {
		return nil, err
	}

	resp, err := h.authedRequest(ctx).
		SetPathParams(map[string]string{"resource": resource, "id": id}).
		Get("/api/{resource}/{id}")
	if err != nil {
		return nil, fmt.Errorf("get %s request: %w", resource, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	return json.RawMessage(resp.Body()), nil
}

// List implements [ServerAdapter] as GET /api/{resource}?key=value.
func (h *httpServerAdapter) List(ctx context.Context, resource string, filter map[string]string) ([]json.RawMessage, error) {
	if !resourcePattern.MatchString(resource) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResource, resource)
	}

	resp, err := h.authedRequest(ctx).
		SetQueryParams(filter).
		SetPathParam("resource", resource).
		Get("/api/{resource}")
	if err != nil {
		return nil, fmt.Errorf("list %s request: %w", resource, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err = json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, fmt.Errorf("decode %s list response: %w", resource, err)
	}
	return items, nil
}

// Delete implements [ServerAdapter] as DELETE /api/{resource}/{id}. A 404 is
// treated as success.
func (h *httpServerAdapter) Delete(ctx context.Context, resource, id string) error {
	if err := checkTarget(resource, id); err != nil {
		return err
	}

	resp, err := h.authedRequest(ctx).
		SetPathParams(map[string]string{"resource": resource, "id": id}).
		Delete("/api/{resource}/{id}")
	if err != nil {
		return fmt.Errorf("delete %s request: %w", resource, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}

	return mapHTTPError(resp)
}

type replayRequest struct {
	Actions []models.SyncAction `json:"actions"`
	Length  int                 `json:"length"`
}

// Replay implements [ServerAdapter] as POST /api/actions.
func (h *httpServerAdapter) Replay(ctx context.Context, actions []models.SyncAction) error {
	if len(actions) == 0 {
		return nil
	}

	body, err := json.Marshal(replayRequest{Actions: actions, Length: len(actions)})
	if err != nil {
		return fmt.Errorf("encode replay request: %w", err)
	}

	resp, err := h.signedRequest(ctx, body).Post("/api/actions")
	if err != nil {
		return fmt.Errorf("replay request: %w", err)
	}

	return mapHTTPError(resp)
}

// Ping implements [ServerAdapter] as GET /api/health.
func (h *httpServerAdapter) Ping(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get("/api/health")
	if err != nil {
		return fmt.Errorf("ping request: %w", err)
	}

	return mapHTTPError(resp)
}

func (h *httpServerAdapter) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

func (h *httpServerAdapter) signedRequest(ctx context.Context, body []byte) *resty.Request {
	req := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if sig := h.signer.Sign(body); sig != "" {
		req.SetHeader(HashHeader, sig)
	}
	return req
}

func checkTarget(resource, id string) error {
	if !resourcePattern.MatchString(resource) {
		return fmt.Errorf("%w: %q", ErrInvalidResource, resource)
	}
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	return nil
}

// responseObject returns the object echoed by the server, or sent when the
// server answered without a body.
func responseObject(resp *resty.Response, sent json.RawMessage) json.RawMessage {
	body := resp.Body()
	if len(strings.TrimSpace(string(body))) == 0 || !json.Valid(body) {
		return sent
	}
	return json.RawMessage(body)
}
