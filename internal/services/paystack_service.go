package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fransoakusi/quickbill-360-sub009/internal/models"
)

type PaystackConfig struct {
	SecretKey string

	// API base, e.g. https://api.paystack.co
	BaseURL string

	// Where the payer lands after checkout (front end).
	CallbackURL string

	// ISO currency code the assembly collects in; verified amounts in any
	// other currency are rejected.
	Currency string

	Client *http.Client
	Logger *slog.Logger
}

// PaystackService is the server-to-server gateway client. Nothing in the
// engine trusts a client-asserted payment status: every credit goes
// through Verify (or the signed webhook) first.
type PaystackService struct {
	secretKey   string
	baseURL     *url.URL
	callbackURL string
	currency    string

	httpClient *http.Client
	logger     *slog.Logger
}

func NewPaystackService(cfg PaystackConfig) (*PaystackService, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" || strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("paystack: secret_key/base_url are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "GHS"
	}

	s := &PaystackService{
		secretKey:   cfg.SecretKey,
		baseURL:     u,
		callbackURL: cfg.CallbackURL,
		currency:    strings.ToUpper(currency),
		httpClient:  client,
		logger:      logger,
	}
	logger.Info("Paystack initialized",
		"baseURL", s.baseURL.String(),
		"currency", s.currency,
		"callbackURL_set", s.callbackURL != "",
	)
	return s, nil
}

func (s *PaystackService) Currency() string { return s.currency }

type PaystackError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *PaystackError) Error() string {
	if e == nil {
		return "<nil>"
	}
	bt := strings.TrimSpace(e.Body)
	if bt == "" {
		return fmt.Sprintf("paystack error: %s", e.Status)
	}
	return fmt.Sprintf("paystack error: %s: %s", e.Status, bt)
}

// ------- VERIFY -------

// VerifiedTransaction is the settlement data the gateway confirmed for a
// reference. Amount is in cedis; AmountMinor is the raw pesewa figure the
// API returned.
type VerifiedTransaction struct {
	Reference     string
	AmountMinor   int64
	Amount        decimal.Decimal
	Currency      string
	Channel       string
	PaidAt        time.Time
	CustomerEmail string
	Raw           json.RawMessage
}

// Verify confirms a transaction reference directly with Paystack.
// It returns models.ErrVerificationFailed (wrapped) when the gateway
// answers but reports anything other than a settled "success", and a
// transport or *PaystackError for everything that kept the gateway from
// answering. Repeating the call for the same reference yields the same
// data; verification never mutates gateway state.
func (s *PaystackService) Verify(ctx context.Context, reference string) (*VerifiedTransaction, error) {
	logger := s.logger.With("op", "Verify", "reference", reference)
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("%w: empty reference", models.ErrVerificationFailed)
	}

	endpoint := *s.baseURL
	endpoint.Path = path.Join(endpoint.Path, "/transaction/verify/", url.PathEscape(reference))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		logger.Warn("verify non-200", "status", resp.Status)
		return nil, &PaystackError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status    string `json:"status"`
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
			Channel   string `json:"channel"`
			PaidAt    string `json:"paid_at"`
			Customer  struct {
				Email string `json:"email"`
			} `json:"customer"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode verify: %w", err)
	}
	if !out.Status {
		return nil, fmt.Errorf("%w: %s", models.ErrVerificationFailed, out.Message)
	}
	if !strings.EqualFold(out.Data.Status, "success") {
		logger.Info("transaction not settled", "gateway_status", out.Data.Status)
		return nil, fmt.Errorf("%w: gateway status %q", models.ErrVerificationFailed, out.Data.Status)
	}
	if out.Data.Amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount %d", models.ErrVerificationFailed, out.Data.Amount)
	}

	paidAt := time.Now()
	if out.Data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, out.Data.PaidAt); err == nil {
			paidAt = t
		}
	}
	return &VerifiedTransaction{
		Reference:     out.Data.Reference,
		AmountMinor:   out.Data.Amount,
		Amount:        decimal.New(out.Data.Amount, -2),
		Currency:      strings.ToUpper(out.Data.Currency),
		Channel:       out.Data.Channel,
		PaidAt:        paidAt,
		CustomerEmail: out.Data.Customer.Email,
		Raw:           json.RawMessage(b),
	}, nil
}

// ------- INITIALIZE -------

type InitializeRequest struct {
	BillID    int64
	Email     string
	Amount    decimal.Decimal
	Reference string
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeTransaction opens a checkout session for a bill and returns
// the hosted payment page URL. The amount goes over the wire in pesewas.
func (s *PaystackService) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	logger := s.logger.With("op", "InitializeTransaction", "bill_id", req.BillID)

	endpoint := *s.baseURL
	endpoint.Path = path.Join(endpoint.Path, "/transaction/initialize")

	payload := map[string]any{
		"email":     req.Email,
		"amount":    req.Amount.Shift(2).IntPart(),
		"currency":  s.currency,
		"reference": req.Reference,
		"metadata":  map[string]any{"bill_id": req.BillID},
	}
	if s.callbackURL != "" {
		payload["callback_url"] = s.callbackURL
	}
	body, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("initialize request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	logger.Debug("initialize raw", "status", resp.Status, "body", trimBody(string(b), 2000))

	if resp.StatusCode != http.StatusOK {
		return nil, &PaystackError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}

	var out struct {
		Status  bool               `json:"status"`
		Message string             `json:"message"`
		Data    InitializeResponse `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode initialize: %w", err)
	}
	if !out.Status || strings.TrimSpace(out.Data.AuthorizationURL) == "" {
		return nil, fmt.Errorf("initialize: %s", out.Message)
	}
	return &out.Data, nil
}

// ------- WEBHOOK -------

// WebhookEvent is a parsed Paystack event notification.
type WebhookEvent struct {
	Event     string
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Status    string
	BillID    int64
	Raw       json.RawMessage
}

func (e *WebhookEvent) UnmarshalJSON(data []byte) error {
	type rawEvent struct {
		Event string `json:"event"`
		Data  struct {
			Reference string          `json:"reference"`
			Amount    int64           `json:"amount"`
			Currency  string          `json:"currency"`
			Status    string          `json:"status"`
			Metadata  struct {
				BillID json.RawMessage `json:"bill_id"`
			} `json:"metadata"`
		} `json:"data"`
	}

	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	// Metadata survives a round trip through the checkout page, which may
	// stringify numbers. Accept both shapes.
	var billID int64
	if len(raw.Data.Metadata.BillID) > 0 {
		if err := json.Unmarshal(raw.Data.Metadata.BillID, &billID); err != nil {
			var idStr string
			if err := json.Unmarshal(raw.Data.Metadata.BillID, &idStr); err != nil {
				return fmt.Errorf("paystack: parse webhook bill_id: %w", err)
			}
			idStr = strings.TrimSpace(idStr)
			if idStr != "" {
				parsed, err := strconv.ParseInt(idStr, 10, 64)
				if err != nil {
					return fmt.Errorf("paystack: parse webhook bill_id: %w", err)
				}
				billID = parsed
			}
		}
	}

	e.Event = strings.TrimSpace(raw.Event)
	e.Reference = strings.TrimSpace(raw.Data.Reference)
	e.Amount = decimal.New(raw.Data.Amount, -2)
	e.Currency = strings.ToUpper(strings.TrimSpace(raw.Data.Currency))
	e.Status = strings.TrimSpace(raw.Data.Status)
	e.BillID = billID
	return nil
}

func (s *PaystackService) ParseWebhook(r io.Reader) (*WebhookEvent, error) {
	if s == nil {
		return nil, fmt.Errorf("paystack service is not initialised")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read webhook body: %w", err)
	}
	var e WebhookEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	e.Raw = json.RawMessage(data)
	return &e, nil
}

// ValidateWebhookSignature checks the x-paystack-signature header: an
// HMAC-SHA512 of the raw body keyed with the secret key.
func (s *PaystackService) ValidateWebhookSignature(body []byte, signature string) bool {
	if strings.TrimSpace(signature) == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(s.secretKey))
	mac.Write(body)
	expected := mac.Sum(nil)

	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, sigBytes)
}

// ---------- helpers ----------

func trimBody(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
