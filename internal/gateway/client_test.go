package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeMP is a minimal Mercado Pago stand-in. It rejects reused idempotency
// tokens with 409 the way the real API does.
type fakeMP struct {
	mu         sync.Mutex
	seenTokens map[string]bool
	status     string
	omitQR     bool
	failWith   int
	created    int
}

func (f *fakeMP) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			f.handleCreate(w, r)
			return
		}
		f.handleGet(w, r)
	}
}

func (f *fakeMP) handleCreate(w http.ResponseWriter, r *http.Request) {
	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		_, _ = w.Write([]byte(`{"message":"nope"}`))
		return
	}
	token := r.Header.Get("X-Idempotency-Key")
	f.mu.Lock()
	if token == "" || f.seenTokens[token] {
		f.mu.Unlock()
		w.WriteHeader(http.StatusConflict)
		return
	}
	f.seenTokens[token] = true
	f.created++
	f.mu.Unlock()

	resp := map[string]any{
		"id":     123456,
		"status": "pending",
	}
	if !f.omitQR {
		resp["point_of_interaction"] = map[string]any{
			"transaction_data": map[string]any{
				"qr_code":        "00020126pixcode",
				"qr_code_base64": "aGVsbG8=",
			},
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeMP) handleGet(w http.ResponseWriter, r *http.Request) {
	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"id": 123456, "status": f.status})
}

func newTestClient(t *testing.T, f *fakeMP) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, "test-token", "", srv.Client())
	require.NoError(t, err)
	return c
}

func createReq() CreateIntentRequest {
	return CreateIntentRequest{
		Amount:      decimal.RequireFromString("9.90"),
		Description: "VIP 7 days",
		OrderID:     "order-1",
		PayerEmail:  "user42@example.com",
	}
}

func TestCreatePaymentIntent_Success(t *testing.T) {
	f := &fakeMP{seenTokens: map[string]bool{}}
	c := newTestClient(t, f)

	intent, err := c.CreatePaymentIntent(context.Background(), createReq())
	require.NoError(t, err)
	require.Equal(t, "123456", intent.GatewayPaymentID)
	require.Equal(t, StatusPending, intent.Status)
	require.Equal(t, "00020126pixcode", intent.PixCopyPaste)
}

func TestCreatePaymentIntent_FreshIdempotencyTokenPerCall(t *testing.T) {
	f := &fakeMP{seenTokens: map[string]bool{}}
	c := newTestClient(t, f)

	// The fake 409s on token reuse, so two logical creations only pass if
	// each carries its own token.
	_, err := c.CreatePaymentIntent(context.Background(), createReq())
	require.NoError(t, err)
	_, err = c.CreatePaymentIntent(context.Background(), createReq())
	require.NoError(t, err)
	require.Equal(t, 2, f.created)
	require.Len(t, f.seenTokens, 2)
}

func TestCreatePaymentIntent_MissingPixCode(t *testing.T) {
	f := &fakeMP{seenTokens: map[string]bool{}, omitQR: true}
	c := newTestClient(t, f)

	_, err := c.CreatePaymentIntent(context.Background(), createReq())
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestCreatePaymentIntent_ClientError(t *testing.T) {
	f := &fakeMP{failWith: http.StatusBadRequest}
	c := newTestClient(t, f)

	_, err := c.CreatePaymentIntent(context.Background(), createReq())
	require.ErrorIs(t, err, ErrRejected)
}

func TestCreatePaymentIntent_ServerError(t *testing.T) {
	f := &fakeMP{failWith: http.StatusBadGateway}
	c := newTestClient(t, f)

	_, err := c.CreatePaymentIntent(context.Background(), createReq())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestGetPaymentStatus(t *testing.T) {
	f := &fakeMP{status: "approved"}
	c := newTestClient(t, f)

	st, err := c.GetPaymentStatus(context.Background(), "123456")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, st)
}

func TestGetPaymentStatus_Unavailable(t *testing.T) {
	f := &fakeMP{failWith: http.StatusInternalServerError}
	c := newTestClient(t, f)

	_, err := c.GetPaymentStatus(context.Background(), "123456")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNormalize(t *testing.T) {
	cases := map[string]NormalizedStatus{
		"pending":      StatusPending,
		"in_process":   StatusProcessing,
		"in_mediation": StatusProcessing,
		"authorized":   StatusProcessing,
		"approved":     StatusApproved,
		"rejected":     StatusRejected,
		"cancelled":    StatusExpired,
		"expired":      StatusExpired,
		"charged_back": StatusUnknown,
		"weird_status": StatusUnknown,
		"":             StatusUnknown,
	}
	for raw, want := range cases {
		require.Equal(t, want, Normalize(raw), "raw=%q", raw)
	}
}
