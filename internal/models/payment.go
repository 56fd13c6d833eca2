package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Paystack webhook event names.
const (
	PaystackEventChargeSuccess = "charge.success"
)

type InitializePaymentRequest struct {
	Email    string                 `json:"email" binding:"required,email"`
	Amount   decimal.Decimal        `json:"amount"`
	OrderID  string                 `json:"order_id"`
	Metadata map[string]interface{} `json:"metadata"`
}

// PaymentInitialization is what the client needs to redirect the payer.
type PaymentInitialization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type PaymentVerification struct {
	Reference       string     `json:"reference"`
	Status          string     `json:"status"`
	Amount          int64      `json:"amount"`
	Currency        string     `json:"currency"`
	GatewayResponse string     `json:"gateway_response"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

// WebhookEvent is the subset of a Paystack webhook body the service reads.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	ID        int64           `json:"id"`
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	Metadata  WebhookMetadata `json:"metadata"`
}

// WebhookMetadata carries what we attached at initialization. Paystack echoes
// metadata back either as an object or, when it was sent as text, as a JSON
// string; both are accepted. db_order_id may arrive as a string or a number.
type WebhookMetadata struct {
	DBOrderID string
}

func (m *WebhookMetadata) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		if !strings.HasPrefix(strings.TrimSpace(inner), "{") {
			return nil
		}
		data = []byte(inner)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	v, ok := raw["db_order_id"]
	if !ok {
		return nil
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		m.DBOrderID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			m.DBOrderID = strconv.FormatInt(i, 10)
		}
	}
	return nil
}
