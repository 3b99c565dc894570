// Package provider holds the outbound game-provider adapter the wallet
// engine notifies on bet/win settlement. Grounded on the teacher's
// internal/provider/stripe.go (build request, HMAC-sign, call out, check
// status, decode) for the HTTP-call shape, generalized from a payment
// processor's checkout-session API to a generic game-provider settlement
// webhook, and on internal/provider/betsolutions.go's HMAC-over-stripped-
// JSON signing convention for computing the outbound signature.
package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/musig5344/ocasino/internal/domain"
	"github.com/musig5344/ocasino/internal/guard"
)

// SettlementNotification is the outbound payload sent to a game provider
// after a bet or win has been durably recorded in the wallet ledger.
type SettlementNotification struct {
	TransactionID string `json:"transactionId"`
	ReferenceID   string `json:"referenceId"`
	PlayerID      string `json:"playerId"`
	GameID        string `json:"gameId,omitempty"`
	RoundID       string `json:"roundId,omitempty"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Balance       int64  `json:"balance"`
}

// SettlementResponse is the provider's acknowledgement.
type SettlementResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// HTTPAdapter notifies a single game provider endpoint over HTTP, signing
// every request the same way the teacher signs outbound Stripe calls and
// verifies inbound BetSolutions ones: HMAC-SHA256 over the JSON body.
type HTTPAdapter struct {
	baseURL    string
	hmacSecret string
	client     *http.Client
	breaker    *guard.CircuitBreaker
	breakerKey string
}

// NewHTTPAdapter builds an adapter for one provider endpoint. breaker is
// shared across every provider the process talks to; breakerKey scopes
// this adapter's failures to its own circuit.
func NewHTTPAdapter(baseURL, hmacSecret, breakerKey string, breaker *guard.CircuitBreaker, timeout time.Duration) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL:    baseURL,
		hmacSecret: hmacSecret,
		client:     &http.Client{Timeout: timeout},
		breaker:    breaker,
		breakerKey: breakerKey,
	}
}

// NotifySettlement posts a settlement notification to the provider,
// respecting the circuit breaker and the caller's context deadline. While
// the circuit is open the call fails with dependency-unavailable without
// reaching the provider; a transport failure or any status other than 200
// counts as a breaker failure. The wallet write that triggered this call is never rolled back
// because of the outcome here (spec §4.4's settlement notification is
// best-effort, not transactional with the ledger write).
func (a *HTTPAdapter) NotifySettlement(ctx context.Context, notification SettlementNotification) (*SettlementResponse, error) {
	result := a.breaker.Check(ctx, a.breakerKey)
	if !result.Allowed {
		return nil, domain.ErrDependencyUnavailable(a.breakerKey)
	}

	resp, err := a.doNotify(ctx, notification)
	if err != nil {
		a.breaker.RecordFailure(a.breakerKey)
		return nil, err
	}
	a.breaker.RecordSuccess(a.breakerKey)
	return resp, nil
}

func (a *HTTPAdapter) doNotify(ctx context.Context, notification SettlementNotification) (*SettlementResponse, error) {
	body, err := json.Marshal(notification)
	if err != nil {
		return nil, fmt.Errorf("marshal settlement notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build settlement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", a.sign(body))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, domain.ErrDependencyUnavailable(a.breakerKey)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("provider %s returned status %d: %s", a.breakerKey, resp.StatusCode, string(respBody))
	}

	var settled SettlementResponse
	if err := json.NewDecoder(resp.Body).Decode(&settled); err != nil {
		return nil, fmt.Errorf("decode settlement response: %w", err)
	}
	return &settled, nil
}

// sign computes the HMAC-SHA256 signature the teacher's BetSolutions
// adapter verifies on inbound requests, applied here to outbound ones.
func (a *HTTPAdapter) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(a.hmacSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an HMAC-SHA256 signature against the configured
// secret, used for providers that call back into this system (the
// inbound half of the same HMAC convention).
func (a *HTTPAdapter) VerifySignature(body []byte, providedSignature string) bool {
	expected := a.sign(body)
	return hmac.Equal([]byte(expected), []byte(providedSignature))
}
