// Package paystack wraps the payment gateway's transaction endpoints and
// webhook signature scheme. Transport failures never escape as errors; they
// become unsuccessful typed outcomes.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/stokvelhq/patron/internal/config"
	"go.uber.org/zap"
)

// ErrAmountRequired signals a once-off initialize call without an amount.
var ErrAmountRequired = errors.New("amount is required when initializing a once-off payment")

type Client struct {
	baseURL    string
	secretKey  string
	initClient *http.Client
	verClient  *http.Client
	log        *zap.Logger
}

func NewClient(cfg config.PaystackConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		secretKey:  cfg.SecretKey,
		initClient: &http.Client{Timeout: cfg.InitializeTimeout},
		verClient:  &http.Client{Timeout: cfg.VerifyTimeout},
		log:        log.Named("paystack.client"),
	}
}

// InitializeRequest describes a transaction initialize call.
type InitializeRequest struct {
	Email       string
	CallbackURL string
	Reference   string
	AmountCents int64
	PlanCode    string
	Metadata    map[string]any
}

// InitializeResponse is the gateway's initialize outcome. Status false with
// a message covers every failure mode, including transport errors.
type InitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// TransactionData is the subset of a verify response the core consumes.
type TransactionData struct {
	Amount    int64           `json:"amount"`
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Plan      json.RawMessage `json:"plan"`
}

// HasPlan reports whether the transaction is attached to a billing plan.
func (d TransactionData) HasPlan() bool {
	trimmed := bytes.TrimSpace(d.Plan)
	switch {
	case len(trimmed) == 0:
		return false
	case bytes.Equal(trimmed, []byte("null")):
		return false
	case bytes.Equal(trimmed, []byte(`""`)):
		return false
	case bytes.Equal(trimmed, []byte("{}")):
		return false
	default:
		return true
	}
}

// Initialize starts a checkout session and returns the gateway outcome.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (InitializeResponse, error) {
	if req.AmountCents <= 0 && req.PlanCode == "" {
		return InitializeResponse{}, ErrAmountRequired
	}

	body := map[string]any{
		"email":        req.Email,
		"callback_url": req.CallbackURL,
		"currency":     "ZAR",
		"reference":    req.Reference,
	}
	if req.PlanCode != "" {
		body["plan"] = req.PlanCode
	}
	if req.AmountCents > 0 {
		// The gateway expects the amount even when attaching a plan.
		body["amount"] = strconv.FormatInt(req.AmountCents, 10)
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return InitializeResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(encoded))
	if err != nil {
		return InitializeResponse{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.initClient.Do(httpReq)
	if err != nil {
		c.log.Warn("initialize request failed", zap.Error(err))
		return InitializeResponse{Status: false, Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return InitializeResponse{Status: false, Message: err.Error()}, nil
	}

	var out InitializeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return InitializeResponse{Status: false, Message: "unexpected response from gateway"}, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		message := out.Message
		if message == "" {
			message = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		}
		return InitializeResponse{Status: false, Message: message}, nil
	}

	return out, nil
}

// VerifyTransaction confirms a transaction by reference. The boolean is the
// gateway's own status flag; transport failures return (false, zero, nil).
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (bool, TransactionData, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return false, TransactionData{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.verClient.Do(httpReq)
	if err != nil {
		c.log.Warn("verify request failed", zap.String("reference", reference), zap.Error(err))
		return false, TransactionData{}, nil
	}
	defer resp.Body.Close()

	var out struct {
		Status bool            `json:"status"`
		Data   TransactionData `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Warn("verify response unparseable", zap.String("reference", reference), zap.Error(err))
		return false, TransactionData{}, nil
	}

	return out.Status, out.Data, nil
}
