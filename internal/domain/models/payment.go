package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a company payment.
// PENDING is the only initial state; SUCCESS and FAILED are terminal.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "PENDING"
	StatusSuccess PaymentStatus = "SUCCESS"
	StatusFailed  PaymentStatus = "FAILED"
)

// StatusNotPaid is reported by status queries when a company has no payment
// row at all. It is never persisted.
const StatusNotPaid = "NOT_PAID"

// IsTerminal reports whether the status admits no further transitions.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// PaymentMethod identifies how a payment is settled.
type PaymentMethod string

const (
	MethodManual PaymentMethod = "MANUAL"
	MethodMomo   PaymentMethod = "MOMO"
	MethodVNPay  PaymentMethod = "VNPAY"
)

// CompanyStatus represents the tenant account state.
type CompanyStatus string

const (
	CompanyActive      CompanyStatus = "ACTIVE"
	CompanyInactive    CompanyStatus = "INACTIVE"
	CompanyDeactivated CompanyStatus = "DEACTIVATED"
)

// Company is the tenant. The payment core only ever reads it.
type Company struct {
	ID     int64
	Status CompanyStatus
}

// IsActive reports whether the company may process payment operations.
func (c *Company) IsActive() bool {
	switch CompanyStatus(strings.ToUpper(string(c.Status))) {
	case CompanyInactive, CompanyDeactivated:
		return false
	}
	return true
}

// Payment is a single monetization attempt for a company. At most one PENDING
// and at most one SUCCESS row exist per company; both invariants are enforced
// by the service and backed by partial unique indexes in storage.
type Payment struct {
	ID        int64
	CompanyID int64
	Status    PaymentStatus
	Amount    decimal.Decimal
	Method    PaymentMethod
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeStatus maps a persisted or inbound status string to the closed
// enum. Unrecognized values are rejected rather than passed through.
func NormalizeStatus(raw string) (PaymentStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(StatusPending):
		return StatusPending, true
	case string(StatusSuccess):
		return StatusSuccess, true
	case string(StatusFailed):
		return StatusFailed, true
	}
	return "", false
}

// NormalizeMethod maps a request-supplied method string to the closed enum,
// case-insensitively.
func NormalizeMethod(raw string) (PaymentMethod, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(MethodManual):
		return MethodManual, true
	case string(MethodMomo):
		return MethodMomo, true
	case string(MethodVNPay):
		return MethodVNPay, true
	}
	return "", false
}
