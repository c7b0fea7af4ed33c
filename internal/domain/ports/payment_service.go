package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storix-vn/payment-service/internal/domain/models"
)

// CreatePaymentRequest is the boundary shape for payment creation.
type CreatePaymentRequest struct {
	CompanyID int64
	Amount    decimal.Decimal
	Method    string
}

// PaymentStatusResult is the answer to a tenant status query.
type PaymentStatusResult struct {
	CompanyID  int64
	IsUnlocked bool
	Status     string
	PaymentID  *int64
	Amount     *decimal.Decimal
	Method     *models.PaymentMethod
	PaidAt     *time.Time
}

// CheckoutURLResult is returned after a checkout URL has been provisioned.
type CheckoutURLResult struct {
	PaymentID         int64
	Status            models.PaymentStatus
	ProviderRequestID string
	ProviderOrderID   string
	PayURL            string
}

// CallbackResult reports the reconciled outcome of a provider callback/IPN.
type CallbackResult struct {
	PaymentID          int64
	CompanyID          int64
	Status             models.PaymentStatus
	IsUnlocked         bool
	ProviderResultCode int
	ProviderMessage    string
}

// PaymentService enforces the payment lifecycle, tenant isolation and the
// write-access gate. Every caller-scoped operation receives the caller's
// company id resolved by the external auth layer; the service trusts it and
// uses it only for equality checks against the target company.
type PaymentService interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest, callerCompanyID int64) (*models.Payment, error)
	MarkPaymentSuccess(ctx context.Context, paymentID, callerCompanyID int64) (*models.Payment, error)
	GetPaymentStatus(ctx context.Context, companyID, callerCompanyID int64) (*PaymentStatusResult, error)
	CheckWriteAccess(ctx context.Context, companyID int64) error
	CreateCheckoutURL(ctx context.Context, paymentID int64, orderInfo string, callerCompanyID int64) (*CheckoutURLResult, error)
	ProcessCallback(ctx context.Context, envelope CallbackEnvelope, isIPN bool) (*CallbackResult, error)
}
