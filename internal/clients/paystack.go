package clients

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// InitializeTransaction is the gateway-side request. Amount is in minor units.
type InitializeTransaction struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"`
	Currency    string                 `json:"currency,omitempty"`
	Reference   string                 `json:"reference,omitempty"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// paystackEnvelope is the wrapper around every Paystack API response.
type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// PaystackClient talks to the Paystack transaction API.
type PaystackClient struct {
	baseURL    string
	httpClient *http.Client
	secretKey  string
	logger     *logrus.Entry
}

// NewPaystackClient creates a new Paystack client.
func NewPaystackClient(cfg config.PaystackConfig, logger *logrus.Entry) *PaystackClient {
	return &PaystackClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		secretKey: cfg.SecretKey,
		logger:    logger,
	}
}

// Initialize starts a transaction and returns the checkout redirect.
func (c *PaystackClient) Initialize(ctx context.Context, req *InitializeTransaction) (*models.PaymentInitialization, error) {
	c.logger.WithFields(logrus.Fields{
		"amount":    req.Amount,
		"reference": req.Reference,
	}).Debug("Initializing transaction")

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var result models.PaymentInitialization
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &result); err != nil {
		c.logger.WithError(err).WithField("reference", req.Reference).Error("Transaction initialization failed")
		return nil, err
	}

	c.logger.WithField("reference", result.Reference).Info("Transaction initialized")
	return &result, nil
}

// Verify fetches the gateway's view of a transaction.
func (c *PaystackClient) Verify(ctx context.Context, reference string) (*models.PaymentVerification, error) {
	c.logger.WithField("reference", reference).Debug("Verifying transaction")

	var data struct {
		Reference       string     `json:"reference"`
		Status          string     `json:"status"`
		Amount          int64      `json:"amount"`
		Currency        string     `json:"currency"`
		GatewayResponse string     `json:"gateway_response"`
		PaidAt          *time.Time `json:"paid_at"`
	}
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return nil, err
	}

	return &models.PaymentVerification{
		Reference:       data.Reference,
		Status:          data.Status,
		Amount:          data.Amount,
		Currency:        data.Currency,
		GatewayResponse: data.GatewayResponse,
		PaidAt:          data.PaidAt,
	}, nil
}

// ValidateWebhook checks x-paystack-signature: the hex HMAC-SHA512 of the raw
// body keyed with the secret key, compared in constant time.
func (c *PaystackClient) ValidateWebhook(payload []byte, signature string) bool {
	return ValidPaystackSignature(c.secretKey, payload, signature)
}

func ValidPaystackSignature(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), got)
}

// SignPaystackPayload produces the signature Paystack would send for payload.
func SignPaystackPayload(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *PaystackClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(ctx, httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope paystackEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("paystack returned status %d with unreadable body: %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !envelope.Status {
		return fmt.Errorf("paystack returned status %d: %s", resp.StatusCode, envelope.Message)
	}

	return json.Unmarshal(envelope.Data, out)
}

func (c *PaystackClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(middleware.HeaderRequestID, requestID)
	}
}

// MockPaymentGateway is a mock implementation for testing.
type MockPaymentGateway struct {
	Secret       string
	Initialized  []*InitializeTransaction
	InitErr      error
	Verification *models.PaymentVerification
}

func NewMockPaymentGateway(secret string) *MockPaymentGateway {
	return &MockPaymentGateway{Secret: secret}
}

func (m *MockPaymentGateway) Initialize(ctx context.Context, req *InitializeTransaction) (*models.PaymentInitialization, error) {
	if m.InitErr != nil {
		return nil, m.InitErr
	}
	m.Initialized = append(m.Initialized, req)
	return &models.PaymentInitialization{
		AuthorizationURL: "https://checkout.paystack.com/mock",
		AccessCode:       "mock_access",
		Reference:        req.Reference,
	}, nil
}

func (m *MockPaymentGateway) Verify(ctx context.Context, reference string) (*models.PaymentVerification, error) {
	if m.Verification != nil {
		return m.Verification, nil
	}
	return &models.PaymentVerification{Reference: reference, Status: "success"}, nil
}

func (m *MockPaymentGateway) ValidateWebhook(payload []byte, signature string) bool {
	return ValidPaystackSignature(m.Secret, payload, signature)
}
