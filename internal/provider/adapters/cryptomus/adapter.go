package cryptomus

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/smallbiznis/payvault/internal/observability/tracing"
	"github.com/smallbiznis/payvault/internal/provider/adapters"
	"github.com/smallbiznis/payvault/internal/provider/domain"
)

const (
	providerName   = "cryptomus"
	defaultBaseURL = "https://api.cryptomus.com"
	requestTimeout = 15 * time.Second
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (*Factory) Provider() string { return providerName }

func (*Factory) EnvConfig() map[string]any {
	merchant := strings.TrimSpace(os.Getenv("CRYPTOMUS_MERCHANT_ID"))
	apiKey := strings.TrimSpace(os.Getenv("CRYPTOMUS_API_KEY"))
	if merchant == "" || apiKey == "" {
		return nil
	}
	return map[string]any{"merchant_id": merchant, "api_key": apiKey}
}

func (*Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	merchant := domain.ConfigString(cfg.Config, "merchant_id")
	apiKey := domain.ConfigString(cfg.Config, "api_key")
	if merchant == "" || apiKey == "" {
		return nil, domain.ConfigurationMissing(providerName)
	}
	baseURL := domain.ConfigString(cfg.Config, "base_url")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		merchantID: merchant,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client: tracing.WrapHTTPClient(
			&http.Client{Timeout: requestTimeout},
			tracing.GatewayAttributes(providerName, "")...,
		),
	}, nil
}

// Adapter integrates the Cryptomus crypto gateway. Requests are signed with
// MD5 over the base64-encoded JSON body plus the API key.
type Adapter struct {
	merchantID string
	apiKey     string
	baseURL    string
	client     *http.Client
}

func (a *Adapter) Provider() string { return providerName }

// paymentStatus is the total mapping from Cryptomus payment statuses to
// canonical ones. Statuses outside the table are ignored on webhooks and
// normalize to PENDING on polls.
var paymentStatus = map[string]domain.PaymentStatus{
	"paid":                 domain.StatusCompleted,
	"paid_over":            domain.StatusCompleted,
	"cancel":               domain.StatusFailed,
	"fail":                 domain.StatusFailed,
	"wrong_amount":         domain.StatusFailed,
	"system_fail":          domain.StatusFailed,
	"refund_paid":          domain.StatusRefunded,
	"check":                domain.StatusPending,
	"process":              domain.StatusPending,
	"confirm_check":        domain.StatusPending,
	"wrong_amount_waiting": domain.StatusPending,
}

type paymentResult struct {
	State  int `json:"state"`
	Result struct {
		UUID     string `json:"uuid"`
		OrderID  string `json:"order_id"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
		URL      string `json:"url"`
		Status   string `json:"status"`
	} `json:"result"`
}

func (a *Adapter) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatePaymentResult, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, domain.ErrInvalidCurrency
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, domain.ErrInvalidPayload
	}

	payload := map[string]any{
		"amount":   adapters.MinorToDecimal(req.Amount),
		"currency": currency,
		"order_id": orderID,
	}
	body, err := a.do(ctx, "/v1/payment", payload, "create_payment")
	if err != nil {
		return nil, err
	}

	var result paymentResult
	if err := json.Unmarshal(body, &result); err != nil || result.Result.UUID == "" {
		return nil, &domain.ProviderError{Provider: providerName, Op: "create_payment", Body: body, Err: fmt.Errorf("malformed response")}
	}
	if result.State != 0 {
		return nil, &domain.ProviderError{Provider: providerName, Op: "create_payment", Body: body}
	}

	return &domain.CreatePaymentResult{
		ExternalID:  result.Result.UUID,
		Status:      statusOf(result.Result.Status),
		ApprovalURL: result.Result.URL,
		Raw:         body,
	}, nil
}

func (a *Adapter) VerifyPayment(ctx context.Context, externalID string) (*domain.PaymentResult, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.ErrInvalidPayload
	}

	body, err := a.do(ctx, "/v1/payment/info", map[string]any{"uuid": externalID}, "verify_payment")
	if err != nil {
		return nil, err
	}

	var result paymentResult
	if err := json.Unmarshal(body, &result); err != nil || result.Result.UUID == "" {
		return nil, &domain.ProviderError{Provider: providerName, Op: "verify_payment", Body: body, Err: fmt.Errorf("malformed response")}
	}

	amount, err := adapters.DecimalToMinor(result.Result.Amount)
	if err != nil {
		amount = 0
	}
	return &domain.PaymentResult{
		ExternalID: result.Result.UUID,
		Status:     statusOf(result.Result.Status),
		Amount:     amount,
		Currency:   strings.ToUpper(result.Result.Currency),
		Raw:        body,
	}, nil
}

func (a *Adapter) do(ctx context.Context, path string, payload map[string]any, op string) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant", a.merchantID)
	req.Header.Set("sign", sign(encoded, a.apiKey))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.ProviderError{Provider: providerName, Op: op, StatusCode: resp.StatusCode, Body: raw}
	}
	return raw, nil
}

func sign(body []byte, apiKey string) string {
	encoded := base64.StdEncoding.EncodeToString(body)
	sum := md5.Sum([]byte(encoded + apiKey))
	return hex.EncodeToString(sum[:])
}

func statusOf(raw string) domain.PaymentStatus {
	if status, ok := paymentStatus[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return domain.StatusPending
}
