package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storix-vn/payment-service/internal/domain"
	"github.com/storix-vn/payment-service/internal/domain/ports"
)

const requestTypeATM = "payWithATM"

// Config holds the MoMo ATM gateway credentials and endpoints plus the
// application URLs echoed into redirect/IPN fields.
type Config struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	PaymentURL  string // provider create-payment endpoint
	BaseURL     string // this application's public base URL
	ReturnURL   string // browser redirect path
	NotifyURL   string // IPN path
}

// Validate reports the first missing credential or URL.
func (c Config) Validate() error {
	missing := ""
	switch {
	case strings.TrimSpace(c.PartnerCode) == "":
		missing = "partner code"
	case strings.TrimSpace(c.AccessKey) == "":
		missing = "access key"
	case strings.TrimSpace(c.SecretKey) == "":
		missing = "secret key"
	case strings.TrimSpace(c.PaymentURL) == "":
		missing = "payment url"
	case strings.TrimSpace(c.BaseURL) == "":
		missing = "base url"
	case strings.TrimSpace(c.ReturnURL) == "":
		missing = "return url"
	case strings.TrimSpace(c.NotifyURL) == "":
		missing = "notify url"
	}
	if missing != "" {
		return domain.NewDomainErrorf(domain.ErrorCodeProviderConfig, "MoMo ATM configuration is missing: %s", missing)
	}
	return nil
}

// AtmAdapter implements ports.AtmGateway against the MoMo ATM API.
type AtmAdapter struct {
	config     Config
	httpClient ports.HTTPClient
	logger     ports.Logger
}

// NewAtmAdapter creates a new MoMo ATM adapter with dependency injection
func NewAtmAdapter(config Config, httpClient ports.HTTPClient, logger ports.Logger) *AtmAdapter {
	return &AtmAdapter{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// createPayload is the signed JSON body posted to the provider.
type createPayload struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      string `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Signature   string `json:"signature"`
	Lang        string `json:"lang"`
}

// createResponse is the provider's answer to a create-payment request.
type createResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	OrderID    string `json:"orderId"`
	RequestID  string `json:"requestId"`
}

// CreateCheckoutURL builds a signed create-payment request, posts it to the
// provider and returns the checkout URL plus provider identifiers.
func (a *AtmAdapter) CreateCheckoutURL(ctx context.Context, req ports.CheckoutRequest) (*ports.CheckoutResult, error) {
	if err := a.config.Validate(); err != nil {
		return nil, err
	}

	orderID := fmt.Sprintf("PAY-%d-%d", req.PaymentID, time.Now().UnixMilli())
	requestID := strings.ReplaceAll(uuid.New().String(), "-", "")
	amount := req.Amount.Round(0).BigInt().String()
	redirectURL := combineURL(a.config.BaseURL, a.config.ReturnURL)
	ipnURL := combineURL(a.config.BaseURL, a.config.NotifyURL)

	signature := SignCreateRequest(
		a.config.AccessKey, a.config.SecretKey,
		amount, "", ipnURL, orderID, req.OrderInfo,
		a.config.PartnerCode, redirectURL, requestID, requestTypeATM,
	)

	payload := createPayload{
		PartnerCode: a.config.PartnerCode,
		AccessKey:   a.config.AccessKey,
		RequestID:   requestID,
		Amount:      amount,
		OrderID:     orderID,
		OrderInfo:   req.OrderInfo,
		RedirectURL: redirectURL,
		IpnURL:      ipnURL,
		ExtraData:   "",
		RequestType: requestTypeATM,
		Signature:   signature,
		Lang:        "vi",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeProviderError, "cannot encode MoMo request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.PaymentURL, bytes.NewReader(body))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeProviderError, "cannot build MoMo request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		a.logger.Error("MoMo provider call failed",
			ports.Int64("payment_id", req.PaymentID),
			ports.Err(err))
		return nil, domain.WrapError(domain.ErrorCodeProviderError, "cannot connect to MoMo provider", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeProviderError, "cannot read MoMo provider response", err)
	}

	var resp createResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		a.logger.Error("MoMo provider response parse failed",
			ports.Int64("payment_id", req.PaymentID),
			ports.Err(err))
		return nil, domain.WrapError(domain.ErrorCodeProviderError, "MoMo provider response is invalid", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		a.logger.Error("MoMo provider returned non-2xx status",
			ports.Int("status_code", httpResp.StatusCode),
			ports.Int64("payment_id", req.PaymentID))
		return nil, domain.NewDomainErrorf(domain.ErrorCodeProviderError, "MoMo provider returned HTTP %d", httpResp.StatusCode)
	}

	if resp.ResultCode != 0 || strings.TrimSpace(resp.PayURL) == "" {
		a.logger.Warn("MoMo provider rejected request",
			ports.Int("result_code", resp.ResultCode),
			ports.String("message", resp.Message))
		msg := resp.Message
		if msg == "" {
			msg = "MoMo rejected payment creation"
		}
		return nil, domain.NewDomainError(domain.ErrorCodeProviderError, msg)
	}

	result := &ports.CheckoutResult{
		OrderID:    resp.OrderID,
		RequestID:  resp.RequestID,
		PayURL:     resp.PayURL,
		ResultCode: resp.ResultCode,
		Message:    resp.Message,
	}
	// Fall back to locally generated identifiers when the provider omits them.
	if result.OrderID == "" {
		result.OrderID = orderID
	}
	if result.RequestID == "" {
		result.RequestID = requestID
	}
	if result.Message == "" {
		result.Message = "Success"
	}
	return result, nil
}

// VerifyCallbackSignature recomputes the signature over the documented field
// set and compares it to the envelope's, case-insensitively. It never errors.
func (a *AtmAdapter) VerifyCallbackSignature(envelope ports.CallbackEnvelope) bool {
	if a.config.Validate() != nil {
		return false
	}
	if strings.TrimSpace(envelope.Signature) == "" {
		return false
	}
	expected := SignCallback(a.config.AccessKey, a.config.SecretKey, envelope)
	return EqualSignatures(expected, envelope.Signature)
}

func combineURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
