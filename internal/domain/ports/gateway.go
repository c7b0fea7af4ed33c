package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// CheckoutRequest is the internal payment intent handed to the gateway.
type CheckoutRequest struct {
	PaymentID int64
	Amount    decimal.Decimal
	OrderInfo string
}

// CheckoutResult carries the provider-issued identifiers and checkout URL.
// OrderID embeds the payment id (PAY-{id}-{millis}) and is the join key used
// to reconcile the asynchronous callback with the payment row.
type CheckoutResult struct {
	OrderID    string
	RequestID  string
	PayURL     string
	ResultCode int
	Message    string
}

// CallbackEnvelope is the untrusted inbound provider message, delivered both
// on the browser redirect and on the server-to-server IPN. It is verified
// against its signature and then discarded.
type CallbackEnvelope struct {
	PartnerCode  string `json:"partnerCode" form:"partnerCode"`
	OrderID      string `json:"orderId" form:"orderId"`
	RequestID    string `json:"requestId" form:"requestId"`
	Amount       string `json:"amount" form:"amount"`
	OrderInfo    string `json:"orderInfo" form:"orderInfo"`
	OrderType    string `json:"orderType" form:"orderType"`
	TransID      string `json:"transId" form:"transId"`
	ResultCode   string `json:"resultCode" form:"resultCode"`
	Message      string `json:"message" form:"message"`
	PayType      string `json:"payType" form:"payType"`
	ResponseTime string `json:"responseTime" form:"responseTime"`
	ExtraData    string `json:"extraData" form:"extraData"`
	Signature    string `json:"signature" form:"signature"`
}

// AtmGateway translates payment intents into signed provider requests and
// authenticates inbound provider messages.
type AtmGateway interface {
	// CreateCheckoutURL builds a signed create-payment request and posts it to
	// the provider. Misconfiguration fails with PROVIDER_CONFIGURATION_ERROR
	// before any network call; transport and provider rejections surface as
	// PROVIDER_ERROR.
	CreateCheckoutURL(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)

	// VerifyCallbackSignature recomputes the callback signature over the
	// documented field set and compares it to the envelope's. Stateless and
	// side-effect free; returns false rather than erroring on malformed input.
	VerifyCallbackSignature(envelope CallbackEnvelope) bool
}
