package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"kazi/apperrors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrAuth is the cause carried by every token acquisition failure.
var ErrAuth = errors.New("gateway: access token request failed")

type Config struct {
	BaseURL            string
	ConsumerKey        string
	ConsumerSecret     string
	ShortCode          string
	B2CShortCode       string
	InitiatorName      string
	SecurityCredential string
	// CallbackBaseURL is the public origin the gateway posts results to.
	CallbackBaseURL string
	TokenMargin     time.Duration
	Timeout         time.Duration
}

func (c Config) callbackURL(path string) string {
	return strings.TrimRight(c.CallbackBaseURL, "/") + path
}

// Callback paths mounted by the HTTP layer.
const (
	PathC2BConfirmation = "/api/mpesa/c2b/confirmation"
	PathC2BValidation   = "/api/mpesa/c2b/validation"
	PathB2CResult       = "/api/mpesa/b2c/result"
	PathB2CTimeout      = "/api/mpesa/b2c/timeout"
	PathBalanceResult   = "/api/mpesa/balance/result"
)

// Client talks to a Daraja style mobile-money API. It is safe for
// concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	refresh   singleflight.Group
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.TokenMargin <= 0 {
		cfg.TokenMargin = time.Minute
	}
	return &Client{cfg: cfg, http: httpClient, now: time.Now}
}

// Response is the synchronous acknowledgement returned by request endpoints.
type Response struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
	RequestID                string `json:"requestId,omitempty"`
	ErrorCode                string `json:"errorCode,omitempty"`
	ErrorMessage             string `json:"errorMessage,omitempty"`
}

// RequestError describes a request the gateway refused.
type RequestError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("gateway: status %d code %s: %s", e.StatusCode, e.Code, e.Description)
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// AccessToken returns a cached bearer token, fetching a new one when the
// cached token is within the safety margin of expiry. Concurrent callers
// share one in-flight fetch per consumer key.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if tok, ok := c.cachedToken(); ok {
		return tok, nil
	}
	v, err, _ := c.refresh.Do(c.cfg.ConsumerKey, func() (interface{}, error) {
		if tok, ok := c.cachedToken(); ok {
			return tok, nil
		}
		// The fetch is shared, so one caller's cancellation must not fail
		// the others.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		tok, ttl, err := c.fetchToken(fetchCtx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = tok
		c.expiresAt = c.now().Add(ttl - c.cfg.TokenMargin)
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/oauth/v1/generate?grant_type=client_credentials"), nil)
	if err != nil {
		return "", 0, apperrors.Gateway(apperrors.MsgGatewayAuth, fmt.Errorf("%w: %v", ErrAuth, err))
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, apperrors.Gateway(apperrors.MsgGatewayAuth, fmt.Errorf("%w: %v", ErrAuth, err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return "", 0, apperrors.Gateway(apperrors.MsgGatewayAuth, fmt.Errorf("%w: status %d: %s", ErrAuth, resp.StatusCode, string(body)))
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", 0, apperrors.Gateway(apperrors.MsgGatewayAuth, fmt.Errorf("%w: malformed token response", ErrAuth))
	}
	secs, err := strconv.Atoi(tok.ExpiresIn.String())
	if err != nil || secs <= 0 {
		secs = 3599
	}
	zap.L().Debug("gateway token refreshed", zap.Int("expires_in", secs))
	return tok.AccessToken, time.Duration(secs) * time.Second, nil
}

// post sends an authenticated JSON request and decodes the acknowledgement.
func (c *Client) post(ctx context.Context, path string, payload interface{}) (*Response, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Gateway(apperrors.MsgGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var out Response
	decodeErr := json.Unmarshal(respBody, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		desc := out.ErrorMessage
		if desc == "" {
			desc = strings.TrimSpace(string(respBody))
		}
		kind := apperrors.MsgGatewayRejected
		if resp.StatusCode >= 500 {
			kind = apperrors.MsgGatewayUnavailable
		}
		return nil, apperrors.Gateway(kind, &RequestError{StatusCode: resp.StatusCode, Code: out.ErrorCode, Description: desc})
	}
	if decodeErr != nil {
		return nil, apperrors.Gateway(apperrors.MsgGatewayUnavailable, fmt.Errorf("gateway: decode response: %w", decodeErr))
	}
	if out.ResponseCode != "" && out.ResponseCode != "0" {
		return nil, apperrors.Gateway(apperrors.MsgGatewayRejected, &RequestError{StatusCode: resp.StatusCode, Code: out.ResponseCode, Description: out.ResponseDescription})
	}
	return &out, nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}
