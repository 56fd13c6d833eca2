package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
)

// Email is one transactional message.
type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// HTTPMailer sends email through a transactional email HTTP API.
type HTTPMailer struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	from       string
	logger     *logrus.Entry
}

// NewHTTPMailer creates a new HTTP-based mailer.
func NewHTTPMailer(cfg config.EmailConfig, logger *logrus.Entry) *HTTPMailer {
	return &HTTPMailer{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		from:   cfg.From,
		logger: logger,
	}
}

// Send delivers one email.
func (c *HTTPMailer) Send(ctx context.Context, email *Email) error {
	c.logger.WithFields(logrus.Fields{
		"to":      email.To,
		"subject": email.Subject,
	}).Debug("Sending email")

	payload := struct {
		From string `json:"from"`
		*Email
	}{From: c.from, Email: email}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}

	c.setHeaders(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("subject", email.Subject).Error("Failed to send email")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	c.logger.WithField("subject", email.Subject).Info("Email sent")
	return nil
}

func (c *HTTPMailer) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(middleware.HeaderRequestID, requestID)
	}
}

// MockMailer is a mock implementation for testing.
type MockMailer struct {
	mu   sync.Mutex
	sent []*Email
	Err  error
}

func NewMockMailer() *MockMailer {
	return &MockMailer{sent: make([]*Email, 0)}
}

func (m *MockMailer) Send(ctx context.Context, email *Email) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

// Sent returns a copy of every email sent so far.
func (m *MockMailer) Sent() []*Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Email, len(m.sent))
	copy(out, m.sent)
	return out
}
