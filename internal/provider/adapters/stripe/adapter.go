package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/payvault/internal/observability/tracing"
	"github.com/smallbiznis/payvault/internal/provider/domain"
)

const (
	providerName   = "stripe"
	defaultBaseURL = "https://api.stripe.com"
	requestTimeout = 15 * time.Second
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (*Factory) Provider() string { return providerName }

func (*Factory) EnvConfig() map[string]any {
	secret := strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY"))
	if secret == "" {
		return nil
	}
	cfg := map[string]any{"secret_key": secret}
	if whsec := strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")); whsec != "" {
		cfg["webhook_secret"] = whsec
	}
	return cfg
}

func (*Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	secret := domain.ConfigString(cfg.Config, "secret_key")
	if secret == "" {
		return nil, domain.ConfigurationMissing(providerName)
	}
	baseURL := domain.ConfigString(cfg.Config, "base_url")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		secretKey:     secret,
		webhookSecret: domain.ConfigString(cfg.Config, "webhook_secret"),
		baseURL:       strings.TrimRight(baseURL, "/"),
		client: tracing.WrapHTTPClient(
			&http.Client{Timeout: requestTimeout},
			tracing.GatewayAttributes(providerName, "")...,
		),
	}, nil
}

// Adapter integrates the Stripe card gateway through its payment_intents API.
type Adapter struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

func (a *Adapter) Provider() string { return providerName }

// intentStatus maps every Stripe payment_intent status we act on. Unlisted
// statuses normalize to PENDING, which triggers no ledger mutation.
var intentStatus = map[string]domain.PaymentStatus{
	"succeeded":               domain.StatusCompleted,
	"canceled":                domain.StatusFailed,
	"processing":              domain.StatusPending,
	"requires_payment_method": domain.StatusPending,
	"requires_confirmation":   domain.StatusPending,
	"requires_action":         domain.StatusPending,
	"requires_capture":        domain.StatusPending,
}

type paymentIntent struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
	NextAction     *struct {
		RedirectToURL *struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
}

func (a *Adapter) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatePaymentResult, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, domain.ErrInvalidCurrency
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", currency)
	form.Set("metadata[order_id]", req.OrderID)
	form.Set("automatic_payment_methods[enabled]", "true")
	for key, value := range req.Metadata {
		if key == "" || key == "order_id" {
			continue
		}
		form.Set(fmt.Sprintf("metadata[%s]", key), fmt.Sprint(value))
	}

	body, err := a.do(ctx, http.MethodPost, "/v1/payment_intents", strings.NewReader(form.Encode()), "create_payment")
	if err != nil {
		return nil, err
	}

	var intent paymentIntent
	if err := json.Unmarshal(body, &intent); err != nil || intent.ID == "" {
		return nil, &domain.ProviderError{Provider: providerName, Op: "create_payment", Body: body, Err: fmt.Errorf("malformed response")}
	}

	result := &domain.CreatePaymentResult{
		ExternalID: intent.ID,
		Status:     statusOf(intent.Status),
		Raw:        body,
	}
	if intent.NextAction != nil && intent.NextAction.RedirectToURL != nil {
		result.ApprovalURL = intent.NextAction.RedirectToURL.URL
	}
	return result, nil
}

func (a *Adapter) VerifyPayment(ctx context.Context, externalID string) (*domain.PaymentResult, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.ErrInvalidPayload
	}

	body, err := a.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(externalID), nil, "verify_payment")
	if err != nil {
		return nil, err
	}

	var intent paymentIntent
	if err := json.Unmarshal(body, &intent); err != nil || intent.ID == "" {
		return nil, &domain.ProviderError{Provider: providerName, Op: "verify_payment", Body: body, Err: fmt.Errorf("malformed response")}
	}

	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}
	return &domain.PaymentResult{
		ExternalID: intent.ID,
		Status:     statusOf(intent.Status),
		Amount:     amount,
		Currency:   strings.ToUpper(intent.Currency),
		Raw:        body,
	}, nil
}

func (a *Adapter) do(ctx context.Context, method, path string, body io.Reader, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+a.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

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

func statusOf(raw string) domain.PaymentStatus {
	if status, ok := intentStatus[raw]; ok {
		return status
	}
	return domain.StatusPending
}
