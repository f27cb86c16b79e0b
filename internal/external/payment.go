package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

type PaymentClient struct {
	baseURL    string
	teamSlug   string
	password   string
	httpClient *http.Client
}

type PaymentConfig struct {
	BaseURL  string
	TeamSlug string
	Password string
	Timeout  time.Duration
}

// Intent statuses reported by the gateway
const (
	IntentRequiresCapture = "requires_capture"
	IntentRequiresAction  = "requires_action"
	IntentSucceeded       = "succeeded"
	IntentCanceled        = "canceled"
)

// Gateway error codes the adapter distinguishes
const (
	CodeCardDeclined    = "card_declined"
	CodeAlreadyCaptured = "already_captured"
	CodeIntentNotFound  = "intent_not_found"
	CodeInvalidState    = "invalid_state"
)

type AuthorizeRequest struct {
	TeamSlug        string `json:"teamSlug"`
	Token           string `json:"token"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaymentMethodID string `json:"paymentMethodId"`
	OrderID         string `json:"orderId"`
	Description     string `json:"description,omitempty"`
}

type IntentRequest struct {
	TeamSlug string `json:"teamSlug"`
	Token    string `json:"token"`
	IntentID string `json:"intentId"`
}

type RefundRequest struct {
	TeamSlug string `json:"teamSlug"`
	Token    string `json:"token"`
	ChargeID string `json:"chargeId"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason,omitempty"`
}

type gatewayResponse struct {
	Success      bool   `json:"success"`
	IntentID     string `json:"intentId"`
	ChargeID     string `json:"chargeId"`
	RefundID     string `json:"refundId"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	ClientSecret string `json:"clientSecret"`
	ErrorCode    string `json:"errorCode"`
	Message      string `json:"message"`
}

// AuthorizeResult - funds earmarked, or a step-up is required
type AuthorizeResult struct {
	IntentID     string
	Status       string
	ClientSecret string
}

// RequiresAction reports whether the customer must confirm client-side before capture
func (r *AuthorizeResult) RequiresAction() bool {
	return r.Status == IntentRequiresAction
}

type CaptureResult struct {
	ChargeID        string
	AlreadyCaptured bool
}

type RefundResult struct {
	RefundID string
	Amount   int64
}

// GatewayError is a rejected gateway call
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

// IsDeclined reports whether err is a card decline
func IsDeclined(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Code == CodeCardDeclined
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &PaymentClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		teamSlug: cfg.TeamSlug,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (pc *PaymentClient) generateToken(params map[string]string) string {
	params["TeamSlug"] = pc.teamSlug
	params["Password"] = pc.password

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(params[key])
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// Authorize places a hold of amount on the payment method
func (pc *PaymentClient) Authorize(ctx context.Context, idempotencyKey string, amount int64, currency, paymentMethodID, orderID string) (*AuthorizeResult, error) {
	token := pc.generateToken(map[string]string{
		"Amount":          strconv.FormatInt(amount, 10),
		"Currency":        currency,
		"OrderId":         orderID,
		"PaymentMethodId": paymentMethodID,
	})

	req := AuthorizeRequest{
		TeamSlug:        pc.teamSlug,
		Token:           token,
		Amount:          amount,
		Currency:        currency,
		PaymentMethodID: paymentMethodID,
		OrderID:         orderID,
		Description:     "Parking reservation",
	}

	resp, err := pc.post(ctx, "/api/v1/payments/authorize", idempotencyKey, req)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize payment: %w", err)
	}

	return &AuthorizeResult{
		IntentID:     resp.IntentID,
		Status:       resp.Status,
		ClientSecret: resp.ClientSecret,
	}, nil
}

// Capture moves authorized funds. Capturing an already captured intent returns its charge.
func (pc *PaymentClient) Capture(ctx context.Context, idempotencyKey, intentID string) (*CaptureResult, error) {
	req := IntentRequest{
		TeamSlug: pc.teamSlug,
		Token:    pc.generateToken(map[string]string{"IntentId": intentID}),
		IntentID: intentID,
	}

	resp, err := pc.post(ctx, "/api/v1/payments/capture", idempotencyKey, req)
	if err != nil {
		var ge *GatewayError
		if errors.As(err, &ge) && ge.Code == CodeAlreadyCaptured {
			return pc.capturedCharge(ctx, intentID)
		}
		return nil, fmt.Errorf("failed to capture payment: %w", err)
	}

	return &CaptureResult{ChargeID: resp.ChargeID, AlreadyCaptured: resp.Status == CodeAlreadyCaptured}, nil
}

func (pc *PaymentClient) capturedCharge(ctx context.Context, intentID string) (*CaptureResult, error) {
	req := IntentRequest{
		TeamSlug: pc.teamSlug,
		Token:    pc.generateToken(map[string]string{"IntentId": intentID}),
		IntentID: intentID,
	}

	resp, err := pc.post(ctx, "/api/v1/payments/check", "", req)
	if err != nil {
		return nil, fmt.Errorf("failed to check captured payment: %w", err)
	}
	if resp.ChargeID == "" {
		return nil, &GatewayError{StatusCode: http.StatusConflict, Code: CodeInvalidState, Message: "intent reported captured without a charge"}
	}

	return &CaptureResult{ChargeID: resp.ChargeID, AlreadyCaptured: true}, nil
}

// Void releases an authorization without moving funds
func (pc *PaymentClient) Void(ctx context.Context, idempotencyKey, intentID string) error {
	req := IntentRequest{
		TeamSlug: pc.teamSlug,
		Token:    pc.generateToken(map[string]string{"IntentId": intentID}),
		IntentID: intentID,
	}

	if _, err := pc.post(ctx, "/api/v1/payments/void", idempotencyKey, req); err != nil {
		return fmt.Errorf("failed to void payment: %w", err)
	}
	return nil
}

// Refund returns amount of a captured charge
func (pc *PaymentClient) Refund(ctx context.Context, idempotencyKey, chargeID string, amount int64, reason string) (*RefundResult, error) {
	req := RefundRequest{
		TeamSlug: pc.teamSlug,
		Token: pc.generateToken(map[string]string{
			"Amount":   strconv.FormatInt(amount, 10),
			"ChargeId": chargeID,
		}),
		ChargeID: chargeID,
		Amount:   amount,
		Reason:   reason,
	}

	resp, err := pc.post(ctx, "/api/v1/payments/refund", idempotencyKey, req)
	if err != nil {
		return nil, fmt.Errorf("failed to refund payment: %w", err)
	}

	refunded := resp.Amount
	if refunded == 0 {
		refunded = amount
	}
	return &RefundResult{RefundID: resp.RefundID, Amount: refunded}, nil
}

func (pc *PaymentClient) post(ctx context.Context, path, idempotencyKey string, body interface{}) (*gatewayResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result gatewayResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest || !result.Success {
		code := result.ErrorCode
		if code == "" {
			code = "http_" + strconv.Itoa(resp.StatusCode)
		}
		return nil, &GatewayError{StatusCode: resp.StatusCode, Code: code, Message: result.Message}
	}

	return &result, nil
}
