package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	paydomain "github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/domain/shared"
)

const (
	paypalPathToken         = "/v1/oauth2/token"
	paypalPathOrders        = "/v2/checkout/orders"
	paypalPathCaptures      = "/v2/payments/captures"
	paypalPathRefunds       = "/v2/payments/refunds"
	paypalPathVerifyWebhook = "/v1/notifications/verify-webhook-signature"

	// tokens are refreshed this long before PayPal expires them
	paypalTokenLeeway = 30 * time.Second
	// used when the token response carries no expires_in
	paypalDefaultTokenTTL = 5 * time.Minute

	paypalIssueAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
)

// PayPalAdapter implements the payment gateway port against the PayPal REST API
type PayPalAdapter struct {
	config     *PayPalConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	replay     shared.IdempotencyStore
	clock      shared.Clock
	logger     *zap.Logger

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// PayPalOption configures a PayPalAdapter
type PayPalOption func(*PayPalAdapter)

// WithPayPalHTTPClient replaces the HTTP client
func WithPayPalHTTPClient(c *http.Client) PayPalOption {
	return func(a *PayPalAdapter) { a.httpClient = c }
}

// WithPayPalClock replaces the clock used for token expiry and webhook skew
func WithPayPalClock(c shared.Clock) PayPalOption {
	return func(a *PayPalAdapter) { a.clock = c }
}

// WithPayPalLogger sets the logger
func WithPayPalLogger(l *zap.Logger) PayPalOption {
	return func(a *PayPalAdapter) { a.logger = l }
}

// NewPayPalAdapter creates a new PayPal adapter. replay records processed webhook ids.
func NewPayPalAdapter(config *PayPalConfig, replay shared.IdempotencyStore, opts ...PayPalOption) (*PayPalAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if replay == nil {
		return nil, errors.New("paypal: replay store is required")
	}

	a := &PayPalAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), max(1, int(config.RequestsPerSecond))),
		replay:  replay,
		clock:   shared.SystemClock{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// CreateOrder creates a CAPTURE-intent checkout order
func (a *PayPalAdapter) CreateOrder(ctx context.Context, req paydomain.CreateOrderRequest) (paydomain.GatewayOrder, error) {
	if req.IdempotencyKey == "" {
		return paydomain.GatewayOrder{}, shared.NewIllegalParamError("paypal: idempotency key is required")
	}
	body := paypalCreateOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnitRequest{{
			ReferenceID: req.ReferenceID,
			Amount:      paypalAmount{CurrencyCode: req.Currency, Value: req.Value},
		}},
		ApplicationContext: paypalApplicationContext{
			ReturnURL:  req.ReturnURL,
			CancelURL:  req.CancelURL,
			UserAction: "PAY_NOW",
		},
	}

	var resp paypalOrderResponse
	if err := a.doRequest(ctx, http.MethodPost, paypalPathOrders, body, req.IdempotencyKey, &resp); err != nil {
		return paydomain.GatewayOrder{}, err
	}
	if resp.ID == "" {
		return paydomain.GatewayOrder{}, shared.NewGatewayError(nil, "paypal: create order response without id")
	}
	order := toGatewayOrder(resp)
	if order.ApproveURL == "" {
		return paydomain.GatewayOrder{}, shared.NewGatewayError(nil, "paypal: order %s has no approve link", resp.ID)
	}
	return order, nil
}

// GetOrder reads a checkout order with its first capture
func (a *PayPalAdapter) GetOrder(ctx context.Context, externalOrderID string) (paydomain.GatewayOrder, error) {
	if externalOrderID == "" {
		return paydomain.GatewayOrder{}, shared.NewIllegalParamError("paypal: order id is required")
	}
	var resp paypalOrderResponse
	path := paypalPathOrders + "/" + url.PathEscape(externalOrderID)
	if err := a.doRequest(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return paydomain.GatewayOrder{}, err
	}
	return toGatewayOrder(resp), nil
}

// CaptureOrder captures an approved order. A repeated capture of an already
// captured order returns the order as it stands.
func (a *PayPalAdapter) CaptureOrder(ctx context.Context, externalOrderID, idempotencyKey string) (paydomain.GatewayOrder, error) {
	if externalOrderID == "" || idempotencyKey == "" {
		return paydomain.GatewayOrder{}, shared.NewIllegalParamError("paypal: order id and idempotency key are required")
	}
	var resp paypalOrderResponse
	path := paypalPathOrders + "/" + url.PathEscape(externalOrderID) + "/capture"
	err := a.doRequest(ctx, http.MethodPost, path, struct{}{}, idempotencyKey, &resp)
	if err != nil {
		var apiErr *paypalAPIError
		if errors.As(err, &apiErr) && apiErr.hasIssue(paypalIssueAlreadyCaptured) {
			a.logger.Info("paypal order already captured, reading current state",
				zap.String("external_order_id", externalOrderID))
			return a.GetOrder(ctx, externalOrderID)
		}
		return paydomain.GatewayOrder{}, err
	}
	return toGatewayOrder(resp), nil
}

// RefundCapture refunds part or all of a capture
func (a *PayPalAdapter) RefundCapture(ctx context.Context, req paydomain.RefundCaptureRequest) (paydomain.GatewayRefund, error) {
	if req.CaptureID == "" || req.IdempotencyKey == "" {
		return paydomain.GatewayRefund{}, shared.NewIllegalParamError("paypal: capture id and idempotency key are required")
	}
	body := paypalRefundRequest{
		Amount:      paypalAmount{CurrencyCode: req.Currency, Value: req.Value},
		NoteToPayer: truncate(req.Note, 255),
	}
	var resp paypalRefundResponse
	path := paypalPathCaptures + "/" + url.PathEscape(req.CaptureID) + "/refund"
	if err := a.doRequest(ctx, http.MethodPost, path, body, req.IdempotencyKey, &resp); err != nil {
		return paydomain.GatewayRefund{}, err
	}
	if resp.ID == "" {
		return paydomain.GatewayRefund{}, shared.NewGatewayError(nil, "paypal: refund response without id")
	}
	return paydomain.GatewayRefund{ID: resp.ID, Status: resp.Status}, nil
}

// GetRefund reads the current state of a refund
func (a *PayPalAdapter) GetRefund(ctx context.Context, externalRefundID string) (paydomain.GatewayRefund, error) {
	if externalRefundID == "" {
		return paydomain.GatewayRefund{}, shared.NewIllegalParamError("paypal: refund id is required")
	}
	var resp paypalRefundResponse
	if err := a.doRequest(ctx, http.MethodGet, paypalPathRefunds+"/"+url.PathEscape(externalRefundID), nil, "", &resp); err != nil {
		return paydomain.GatewayRefund{}, err
	}
	return paydomain.GatewayRefund{ID: resp.ID, Status: resp.Status}, nil
}

// doRequest sends an authenticated JSON request and decodes the response into out.
// A 401 drops the cached token and retries once.
func (a *PayPalAdapter) doRequest(ctx context.Context, method, path string, payload any, requestID string, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("paypal: failed to marshal request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		token, err := a.accessToken(ctx)
		if err != nil {
			return err
		}
		status, respBody, err := a.send(ctx, method, path, body, func(h http.Header) {
			h.Set("Authorization", "Bearer "+token)
			h.Set("Content-Type", "application/json")
			h.Set("Prefer", "return=representation")
			if requestID != "" {
				h.Set("PayPal-Request-Id", requestID)
			}
		})
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized && attempt == 0 {
			a.invalidateToken(token)
			continue
		}
		if status >= 400 {
			return statusError(method, path, status, respBody)
		}
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return shared.NewGatewayError(err, "paypal: failed to parse %s %s response", method, path)
			}
		}
		return nil
	}
}

// send performs one throttled HTTP exchange
func (a *PayPalAdapter) send(ctx context.Context, method, path string, body []byte, headers func(http.Header)) (int, []byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return 0, nil, shared.NewGatewayError(err, "paypal: throttled %s %s", method, path)
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("paypal: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	headers(req.Header)

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, nil, shared.NewGatewayError(err, "paypal: %s %s failed", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, shared.NewGatewayError(err, "paypal: failed to read %s %s response", method, path)
	}
	a.logger.Debug("paypal request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("debug_id", resp.Header.Get("Paypal-Debug-Id")),
		zap.Duration("latency", time.Since(start)),
	)
	return resp.StatusCode, respBody, nil
}

// accessToken returns a cached client-credentials token, fetching a new one when it is about to expire
func (a *PayPalAdapter) accessToken(ctx context.Context) (string, error) {
	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()

	now := a.clock.Now()
	if a.token != "" && now.Add(paypalTokenLeeway).Before(a.tokenExpiry) {
		return a.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	status, body, err := a.send(ctx, http.MethodPost, paypalPathToken, []byte(form.Encode()), func(h http.Header) {
		h.Set("Content-Type", "application/x-www-form-urlencoded")
		h.Set("Authorization", "Basic "+basicAuth(a.config.ClientID, a.config.ClientSecret))
	})
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", statusError(http.MethodPost, paypalPathToken, status, body)
	}

	var resp paypalTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", shared.NewGatewayError(err, "paypal: failed to parse token response")
	}
	if resp.AccessToken == "" {
		return "", shared.NewGatewayError(nil, "paypal: empty access token")
	}
	ttl := time.Duration(resp.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = paypalDefaultTokenTTL
	}
	a.token = resp.AccessToken
	a.tokenExpiry = now.Add(ttl)
	return a.token, nil
}

// invalidateToken drops token unless another caller already replaced it
func (a *PayPalAdapter) invalidateToken(token string) {
	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()
	if a.token == token {
		a.token = ""
		a.tokenExpiry = time.Time{}
	}
}

// paypalAPIError is a non-2xx REST response
type paypalAPIError struct {
	Status  int
	Name    string
	Message string
	DebugID string
	Issues  []string
}

func (e *paypalAPIError) Error() string {
	msg := fmt.Sprintf("HTTP %d", e.Status)
	if e.Name != "" {
		msg += " " + e.Name
	}
	if len(e.Issues) > 0 {
		msg += " [" + strings.Join(e.Issues, ",") + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.DebugID != "" {
		msg += " (debug_id " + e.DebugID + ")"
	}
	return msg
}

func (e *paypalAPIError) hasIssue(issue string) bool {
	for _, i := range e.Issues {
		if i == issue {
			return true
		}
	}
	return false
}

// statusError maps an error response onto the domain taxonomy. 404 is NotFound,
// everything else is a gateway failure left for the sync jobs to retry.
func statusError(method, path string, status int, body []byte) error {
	apiErr := &paypalAPIError{Status: status}
	var parsed paypalErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Name = parsed.Name
		apiErr.Message = parsed.Message
		apiErr.DebugID = parsed.DebugID
		if parsed.Error != "" {
			apiErr.Name = parsed.Error
			apiErr.Message = parsed.ErrorDescription
		}
		for _, d := range parsed.Details {
			apiErr.Issues = append(apiErr.Issues, d.Issue)
		}
	}
	if status == http.StatusNotFound {
		return shared.NewNotFoundError("paypal: %s not found", path)
	}
	return shared.NewGatewayError(apiErr, "paypal: %s %s rejected", method, path)
}

// toGatewayOrder normalizes an order response
func toGatewayOrder(resp paypalOrderResponse) paydomain.GatewayOrder {
	out := paydomain.GatewayOrder{
		ID:         resp.ID,
		Status:     resp.Status,
		ApproveURL: findApproveURL(resp.Links),
	}
	for _, pu := range resp.PurchaseUnits {
		if pu.Payments == nil || len(pu.Payments.Captures) == 0 {
			continue
		}
		c := pu.Payments.Captures[0]
		out.Capture = &paydomain.GatewayCapture{
			ID:         c.ID,
			Status:     c.Status,
			CreateTime: parseTime(c.CreateTime),
		}
		break
	}
	return out
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

func findApproveURL(links []paypalLink) string {
	for _, l := range links {
		if strings.EqualFold(l.Rel, "approve") || strings.EqualFold(l.Rel, "payer-action") {
			return l.Href
		}
	}
	return ""
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}

var _ paydomain.Gateway = (*PayPalAdapter)(nil)
