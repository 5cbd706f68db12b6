package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrRejected: the gateway refused the creation request (bad payload,
	// invalid credentials, unsupported amount). Terminal for this attempt.
	ErrRejected = errors.New("gateway rejected payment creation")

	// ErrMalformedResponse: the gateway accepted the request but the response
	// lacks the data needed to present the payment. Terminal for this attempt.
	ErrMalformedResponse = errors.New("gateway response missing payment data")

	// ErrUnavailable: transport failure or 5xx. Retryable without side effects
	// on the caller's state.
	ErrUnavailable = errors.New("gateway unavailable")
)

// Client talks to the Mercado Pago payments API. Every creation call carries a
// fresh X-Idempotency-Key so network-level retries of the same HTTP request
// never open two billable intents.
type Client struct {
	baseURL         string
	accessToken     string
	notificationURL string
	http            *http.Client
}

func NewClient(baseURL, accessToken, notificationURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("gateway access token is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:         baseURL,
		accessToken:     accessToken,
		notificationURL: notificationURL,
		http:            httpClient,
	}, nil
}

type CreateIntentRequest struct {
	Amount      decimal.Decimal
	Description string
	OrderID     string // carried as the gateway's external_reference
	PayerEmail  string
}

type PaymentIntent struct {
	GatewayPaymentID string
	Status           NormalizedStatus
	PixCopyPaste     string
	QRCodeBase64     string
}

type createPaymentBody struct {
	TransactionAmount float64      `json:"transaction_amount"`
	Description       string       `json:"description"`
	PaymentMethodID   string       `json:"payment_method_id"`
	ExternalReference string       `json:"external_reference"`
	NotificationURL   string       `json:"notification_url,omitempty"`
	Payer             paymentPayer `json:"payer"`
}

type paymentPayer struct {
	Email string `json:"email"`
}

type paymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// CreatePaymentIntent opens a PIX payment. The returned copy-paste code is the
// presentation payload; its absence is a hard failure for this attempt.
func (c *Client) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*PaymentIntent, error) {
	body := createPaymentBody{
		TransactionAmount: req.Amount.InexactFloat64(),
		Description:       req.Description,
		PaymentMethodID:   "pix",
		ExternalReference: req.OrderID,
		NotificationURL:   c.notificationURL,
		Payer:             paymentPayer{Email: req.PayerEmail},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Idempotency-Key", uuid.NewString())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, detail)
	}

	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if pr.ID.String() == "" {
		return nil, fmt.Errorf("%w: no payment id", ErrMalformedResponse)
	}
	if pr.PointOfInteraction.TransactionData.QRCode == "" {
		return nil, fmt.Errorf("%w: no pix code", ErrMalformedResponse)
	}

	return &PaymentIntent{
		GatewayPaymentID: pr.ID.String(),
		Status:           Normalize(pr.Status),
		PixCopyPaste:     pr.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64:     pr.PointOfInteraction.TransactionData.QRCodeBase64,
	}, nil
}

// GetPaymentStatus fetches the authoritative status of a payment.
func (c *Client) GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (NormalizedStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+gatewayPaymentID, nil)
	if err != nil {
		return StatusUnknown, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return StatusUnknown, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return StatusUnknown, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return StatusUnknown, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return StatusUnknown, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return Normalize(strings.ToLower(pr.Status)), nil
}
