package payeer

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/smallbiznis/payvault/internal/observability/tracing"
	"github.com/smallbiznis/payvault/internal/provider/adapters"
	"github.com/smallbiznis/payvault/internal/provider/domain"
)

const (
	providerName   = "payeer"
	merchantURL    = "https://payeer.com/merchant/"
	statusURL      = "https://payeer.com/merchant/status/"
	requestTimeout = 15 * time.Second
)

var supportedCurrencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"RUB": true,
}

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (*Factory) Provider() string { return providerName }

func (*Factory) EnvConfig() map[string]any {
	merchant := strings.TrimSpace(os.Getenv("PAYEER_MERCHANT_ID"))
	secret := strings.TrimSpace(os.Getenv("PAYEER_SECRET_KEY"))
	if merchant == "" || secret == "" {
		return nil
	}
	return map[string]any{"merchant_id": merchant, "secret_key": secret}
}

func (*Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	merchant := domain.ConfigString(cfg.Config, "merchant_id")
	secret := domain.ConfigString(cfg.Config, "secret_key")
	if merchant == "" || secret == "" {
		return nil, domain.ConfigurationMissing(providerName)
	}
	statusEndpoint := domain.ConfigString(cfg.Config, "status_url")
	if statusEndpoint == "" {
		statusEndpoint = statusURL
	}
	return &Adapter{
		merchantID: merchant,
		secretKey:  secret,
		statusURL:  statusEndpoint,
		client: tracing.WrapHTTPClient(
			&http.Client{Timeout: requestTimeout},
			tracing.GatewayAttributes(providerName, "")...,
		),
	}, nil
}

// Adapter integrates the Payeer wallet gateway. Collections are a signed
// redirect: the buyer is sent to an approval URL and Payeer reports the
// outcome on the merchant callback.
type Adapter struct {
	merchantID string
	secretKey  string
	statusURL  string
	client     *http.Client
}

func (a *Adapter) Provider() string { return providerName }

// CreatePayment builds the signed approval URL. Payeer has no server-side
// create call; the external id is the merchant order id carried through the
// redirect and the callback.
func (a *Adapter) CreatePayment(_ context.Context, req domain.CreatePaymentRequest) (*domain.CreatePaymentResult, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if !supportedCurrencies[currency] {
		return nil, domain.ErrInvalidCurrency
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, domain.ErrInvalidPayload
	}

	amount := adapters.MinorToDecimal(req.Amount)
	desc := base64.StdEncoding.EncodeToString([]byte("Order " + orderID))
	sign := signFields(a.merchantID, orderID, amount, currency, desc, a.secretKey)

	query := url.Values{}
	query.Set("m_shop", a.merchantID)
	query.Set("m_orderid", orderID)
	query.Set("m_amount", amount)
	query.Set("m_curr", currency)
	query.Set("m_desc", desc)
	query.Set("m_sign", sign)

	return &domain.CreatePaymentResult{
		ExternalID:  orderID,
		Status:      domain.StatusPending,
		ApprovalURL: merchantURL + "?" + query.Encode(),
	}, nil
}

type statusResponse struct {
	OrderID string `json:"m_orderid"`
	Amount  string `json:"m_amount"`
	Curr    string `json:"m_curr"`
	Status  string `json:"m_status"`
}

func (a *Adapter) VerifyPayment(ctx context.Context, externalID string) (*domain.PaymentResult, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.ErrInvalidPayload
	}

	form := url.Values{}
	form.Set("m_shop", a.merchantID)
	form.Set("m_orderid", externalID)
	form.Set("m_sign", signFields(a.merchantID, externalID, a.secretKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.statusURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "verify_payment", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "verify_payment", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: "verify_payment", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{Provider: providerName, Op: "verify_payment", StatusCode: resp.StatusCode, Body: body}
	}

	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil || status.OrderID == "" {
		return nil, &domain.ProviderError{Provider: providerName, Op: "verify_payment", Body: body, Err: fmt.Errorf("malformed response")}
	}

	amount, err := adapters.DecimalToMinor(status.Amount)
	if err != nil {
		amount = 0
	}
	return &domain.PaymentResult{
		ExternalID: status.OrderID,
		Status:     statusOf(status.Status),
		Amount:     amount,
		Currency:   strings.ToUpper(status.Curr),
		Raw:        body,
	}, nil
}

func signFields(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, ":")))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
