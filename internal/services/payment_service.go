package services

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shamaqar/booking-backend/internal/config"
	"github.com/shamaqar/booking-backend/internal/models"
)

// GatewayEnvironmentURLs maps environment names to hosted-checkout endpoints
var GatewayEnvironmentURLs = map[string]string{
	"dev":        "https://checkout-dev.qistas-pay.example.com/ipg/dev",
	"sandbox":    "https://sandbox.qistas-pay.example.com/ipg/sandbox",
	"production": "https://checkout.qistas-pay.example.com/ipg/pro",
}

// SessionStore is the persistence surface the payment service needs
type SessionStore interface {
	Create(session *models.PaymentSession) error
	GetOpenByBookingID(bookingID uuid.UUID) (*models.PaymentSession, error)
	GetByExternalID(externalID string) (*models.PaymentSession, error)
	MarkCompleted(sessionID uuid.UUID) error
	MarkCanceled(sessionID uuid.UUID) error
	ExpireOpenForBooking(bookingID uuid.UUID) error
}

// AuditStore records payment events
type AuditStore interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	CheckDuplicate(ctx context.Context, externalSessionID string, eventType models.PaymentEventType, idempotencyKey string) (bool, error)
}

// PaymentService brokers hosted-checkout sessions at the external gateway and
// enforces the one-open-session-per-booking rule.
type PaymentService struct {
	config   *config.PaymentConfig
	sessions SessionStore
	audits   AuditStore
	logger   *logrus.Logger
	client   *http.Client
}

// NewPaymentService creates a new payment service
func NewPaymentService(cfg *config.PaymentConfig, sessions SessionStore, audits AuditStore, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		config:   cfg,
		sessions: sessions,
		audits:   audits,
		logger:   logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ============================================================================
// GATEWAY WIRE TYPES
// ============================================================================

// GatewayCheckoutRequest is what we send to open a hosted-checkout session.
// The merchant token is never sent; it only feeds the checkValue.
type GatewayCheckoutRequest struct {
	MerchantKey      string `json:"merchantKey"`
	InvoiceID        string `json:"invoiceId"`
	Amount           string `json:"amount"`
	CurrencyCode     string `json:"currencyCode"`
	OrderDescription string `json:"orderDescription,omitempty"`
	ReturnURL        string `json:"returnUrl"`
	WebhookURL       string `json:"webhookUrl,omitempty"`
	CheckValue       string `json:"checkValue"`
}

// GatewayCheckoutResponse is the gateway's answer to a checkout request
type GatewayCheckoutResponse struct {
	Status      string `json:"status"` // "success", "PENDING" or "error"
	UID         string `json:"uid"`
	PaymentPage string `json:"paymentPage"`
	Message     string `json:"message,omitempty"`
}

// GatewayStatusResponse is the gateway's answer to a status check
type GatewayStatusResponse struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"` // "pending", "success", "failed", "cancelled"
	Amount        string `json:"amount"`
	InvoiceID     string `json:"invoiceId"`
	TransactionID string `json:"transactionId,omitempty"`
	Message       string `json:"message,omitempty"`
}

// GatewayWebhookPayload is the webhook the gateway posts after the customer
// finishes (or abandons) checkout
type GatewayWebhookPayload struct {
	Status        string `json:"status"`
	UID           string `json:"uid"`
	InvoiceID     string `json:"invoiceId"`
	Amount        string `json:"amount"`
	CurrencyCode  string `json:"currencyCode"`
	PaymentStatus string `json:"paymentStatus"` // "SUCCESS", "FAILED", "CANCELLED"
	TransactionID string `json:"transactionId,omitempty"`
}

// ============================================================================
// SESSION LIFECYCLE
// ============================================================================

// CreateSession opens a checkout session for a booking's next due amount.
// Idempotent: if an open session already exists it is returned unchanged and
// no gateway call is made, so repeated checkout clicks never double-charge.
func (s *PaymentService) CreateSession(ctx context.Context, booking *models.Booking) (*models.PaymentSession, error) {
	existing, err := s.sessions.GetOpenByBookingID(booking.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open session: %w", err)
	}
	if existing != nil {
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"session_id": existing.ID,
		}).Info("Reusing open payment session")
		s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventSessionReused, models.PaymentSourceBackend).
			SetBooking(booking.ID).
			SetSession(existing.ID, existing.ExternalSessionID))
		return existing, nil
	}

	amount := s.amountDue(booking)
	amountStr := formatAmount(amount, booking.Currency)

	resp, err := s.openCheckout(ctx, booking, amountStr)
	if err != nil {
		s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGatewayAPI).
			SetBooking(booking.ID).
			SetError(err.Error(), nil))
		return nil, &models.GatewayError{Op: "create_session", Err: err}
	}

	session := &models.PaymentSession{
		ID:                uuid.New(),
		BookingID:         booking.ID,
		ExternalSessionID: resp.UID,
		RedirectURL:       resp.PaymentPage,
		Amount:            amount,
		Currency:          booking.Currency,
	}

	if err := s.sessions.Create(session); err != nil {
		if models.IsConflict(err) {
			// Lost a create race; the winner's session is the open one
			winner, getErr := s.sessions.GetOpenByBookingID(booking.ID)
			if getErr == nil && winner != nil {
				return winner, nil
			}
		}
		return nil, fmt.Errorf("failed to persist payment session: %w", err)
	}

	s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventSessionCreated, models.PaymentSourceBackend).
		SetBooking(booking.ID).
		SetSession(session.ID, session.ExternalSessionID).
		SetRequestPayload(map[string]interface{}{
			"amount":   amountStr,
			"currency": string(booking.Currency),
		}))

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"session_id": session.ID,
		"amount":     amount,
		"currency":   booking.Currency,
	}).Info("Payment session created")

	return session, nil
}

// CancelOpenSession voids the open session for a booking, if any
func (s *PaymentService) CancelOpenSession(ctx context.Context, bookingID uuid.UUID) error {
	session, err := s.sessions.GetOpenByBookingID(bookingID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	if err := s.sessions.MarkCanceled(session.ID); err != nil {
		return err
	}
	s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventSessionCanceled, models.PaymentSourceBackend).
		SetBooking(bookingID).
		SetSession(session.ID, session.ExternalSessionID))
	return nil
}

// amountDue is the deposit until it has cleared, then the remaining balance
func (s *PaymentService) amountDue(booking *models.Booking) float64 {
	if booking.AmountPaid < booking.DepositAmount {
		return booking.Currency.Round(booking.DepositAmount - booking.AmountPaid)
	}
	return booking.RemainingBalance()
}

// openCheckout performs the gateway call, or fabricates a placeholder session
// when credentials are absent outside production
func (s *PaymentService) openCheckout(ctx context.Context, booking *models.Booking, amount string) (*GatewayCheckoutResponse, error) {
	if !s.IsConfigured() {
		if s.config.Environment == "production" {
			return nil, fmt.Errorf("payment gateway not configured: missing merchant credentials")
		}
		uid := "PLACEHOLDER-" + uuid.New().String()
		s.logger.WithField("booking_id", booking.ID).Warn("Gateway unconfigured, issuing placeholder session")
		return &GatewayCheckoutResponse{
			Status:      "success",
			UID:         uid,
			PaymentPage: fmt.Sprintf("%s?session=%s", s.config.ReturnURL, uid),
		}, nil
	}

	invoiceID := booking.ID.String()
	request := &GatewayCheckoutRequest{
		MerchantKey:      s.config.MerchantKey,
		InvoiceID:        invoiceID,
		Amount:           amount,
		CurrencyCode:     string(booking.Currency),
		OrderDescription: fmt.Sprintf("Booking %s deposit", booking.ID),
		ReturnURL:        s.config.ReturnURL,
		WebhookURL:       s.config.WebhookURL,
		CheckValue:       s.GenerateCheckValue(invoiceID, amount, string(booking.Currency)),
	}

	endpointURL, ok := GatewayEnvironmentURLs[s.config.Environment]
	if !ok {
		endpointURL = GatewayEnvironmentURLs["sandbox"]
	}

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call payment gateway")
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var checkoutResp GatewayCheckoutResponse
	if err := json.Unmarshal(body, &checkoutResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// "PENDING" means the checkout page is ready for the customer
	if checkoutResp.Status != "success" && checkoutResp.Status != "PENDING" {
		errMsg := checkoutResp.Message
		if errMsg == "" {
			errMsg = fmt.Sprintf("status=%s, raw=%s", checkoutResp.Status, string(body))
		}
		return nil, fmt.Errorf("checkout initiation failed: %s", errMsg)
	}
	if checkoutResp.PaymentPage == "" {
		return nil, fmt.Errorf("checkout initiation failed: no payment page URL returned")
	}

	return &checkoutResp, nil
}

// ============================================================================
// STATUS AND WEBHOOKS
// ============================================================================

// CheckStatus queries the gateway for the current state of a session
func (s *PaymentService) CheckStatus(ctx context.Context, externalSessionID string) (*GatewayStatusResponse, error) {
	endpointURL, ok := GatewayEnvironmentURLs[s.config.Environment]
	if !ok {
		endpointURL = GatewayEnvironmentURLs["sandbox"]
	}
	statusURL := strings.Replace(endpointURL, "/ipg/", "/check-status/", 1)

	reqBody := map[string]string{
		"uid":        externalSessionID,
		"checkValue": s.GenerateCheckValue(externalSessionID, "", ""),
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, statusURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.GatewayError{Op: "check_status", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.GatewayError{Op: "check_status", Err: err}
	}

	var statusResp GatewayStatusResponse
	if err := json.Unmarshal(body, &statusResp); err != nil {
		return nil, &models.GatewayError{Op: "check_status", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return &statusResp, nil
}

// VerifyWebhook validates and parses a webhook payload from the gateway
func (s *PaymentService) VerifyWebhook(body []byte) (*GatewayWebhookPayload, error) {
	var payload GatewayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	if payload.UID == "" || payload.InvoiceID == "" {
		return nil, fmt.Errorf("webhook missing required fields")
	}

	s.logger.WithFields(logrus.Fields{
		"uid":            payload.UID,
		"invoice_id":     payload.InvoiceID,
		"payment_status": payload.PaymentStatus,
		"amount":         payload.Amount,
	}).Info("Webhook payload verified")

	return &payload, nil
}

// IsPaymentSuccessful checks if a webhook indicates successful payment
func (s *PaymentService) IsPaymentSuccessful(payload *GatewayWebhookPayload) bool {
	return strings.ToUpper(payload.PaymentStatus) == "SUCCESS"
}

// ============================================================================
// HELPERS
// ============================================================================

// GenerateCheckValue creates the SHA-512 checkValue for gateway authentication
// Step 1: hash1 = SHA512(merchantToken) uppercase hex
// Step 2: hash2 = SHA512("merchantKey|invoiceId|amount|currencyCode|hash1") uppercase hex
func (s *PaymentService) GenerateCheckValue(invoiceID, amount, currencyCode string) string {
	hash1 := sha512.Sum512([]byte(s.config.MerchantToken))
	hash1Hex := strings.ToUpper(hex.EncodeToString(hash1[:]))

	data := fmt.Sprintf("%s|%s|%s|%s|%s",
		s.config.MerchantKey,
		invoiceID,
		amount,
		currencyCode,
		hash1Hex,
	)
	hash2 := sha512.Sum512([]byte(data))
	return strings.ToUpper(hex.EncodeToString(hash2[:]))
}

// IsConfigured returns true if the payment gateway is properly configured
func (s *PaymentService) IsConfigured() bool {
	return s.config.MerchantKey != "" && s.config.MerchantToken != ""
}

// logAudit records a payment event, logging rather than failing the caller
func (s *PaymentService) logAudit(ctx context.Context, audit *models.PaymentAudit) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Log(ctx, audit); err != nil {
		s.logger.WithError(err).Error("Failed to write payment audit")
	}
}

// formatAmount renders an amount the way the gateway expects it
func formatAmount(amount float64, cur models.Currency) string {
	return strconv.FormatFloat(amount, 'f', cur.Precision(), 64)
}
