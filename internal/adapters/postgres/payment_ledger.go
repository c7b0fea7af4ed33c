package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/storix-vn/payment-service/internal/domain"
	"github.com/storix-vn/payment-service/internal/domain/models"
	"github.com/storix-vn/payment-service/internal/domain/ports"
)

const paymentColumns = `id, company_id, status, amount::text, method, paid_at, created_at, updated_at`

const (
	queryFindPaymentByID = `SELECT ` + paymentColumns + `
FROM company_payments
WHERE id = $1`

	queryFindLatestPayment = `SELECT ` + paymentColumns + `
FROM company_payments
WHERE company_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1`

	queryFindLatestPendingPayment = `SELECT ` + paymentColumns + `
FROM company_payments
WHERE company_id = $1 AND status = 'PENDING'
ORDER BY created_at DESC, id DESC
LIMIT 1`

	queryFindSuccessfulPayment = `SELECT ` + paymentColumns + `
FROM company_payments
WHERE company_id = $1 AND status = 'SUCCESS'
LIMIT 1`

	queryInsertPayment = `INSERT INTO company_payments (company_id, status, amount, method, paid_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + paymentColumns

	queryUpdatePayment = `UPDATE company_payments
SET status = $2, amount = $3, method = $4, paid_at = $5, updated_at = $6
WHERE id = $1
RETURNING ` + paymentColumns

	queryTouchPayment = `UPDATE company_payments
SET updated_at = $2
WHERE id = $1`
)

// PaymentLedger implements ports.PaymentLedger on PostgreSQL. The partial
// unique indexes on company_payments back the one-PENDING and one-SUCCESS
// invariants; insert races surface as unique violations.
type PaymentLedger struct {
	db     *DB
	logger ports.Logger
}

// NewPaymentLedger creates a new PostgreSQL payment ledger
func NewPaymentLedger(db *DB, logger ports.Logger) *PaymentLedger {
	return &PaymentLedger{db: db, logger: logger}
}

func (l *PaymentLedger) FindByID(ctx context.Context, paymentID int64) (*models.Payment, error) {
	return l.queryOne(ctx, queryFindPaymentByID, paymentID)
}

func (l *PaymentLedger) FindLatest(ctx context.Context, companyID int64) (*models.Payment, error) {
	return l.queryOne(ctx, queryFindLatestPayment, companyID)
}

func (l *PaymentLedger) FindLatestPending(ctx context.Context, companyID int64) (*models.Payment, error) {
	return l.queryOne(ctx, queryFindLatestPendingPayment, companyID)
}

func (l *PaymentLedger) FindSuccessful(ctx context.Context, companyID int64) (*models.Payment, error) {
	return l.queryOne(ctx, queryFindSuccessfulPayment, companyID)
}

func (l *PaymentLedger) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	row := l.db.Pool.QueryRow(ctx, queryInsertPayment,
		payment.CompanyID,
		string(payment.Status),
		payment.Amount.String(),
		string(payment.Method),
		payment.PaidAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	created, err := scanPayment(row)
	if err != nil {
		if dup := mapUniqueViolation(err); dup != nil {
			return nil, dup
		}
		l.logger.Error("insert payment failed",
			ports.Int64("company_id", payment.CompanyID),
			ports.Err(err))
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return created, nil
}

func (l *PaymentLedger) Update(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	row := l.db.Pool.QueryRow(ctx, queryUpdatePayment,
		payment.ID,
		string(payment.Status),
		payment.Amount.String(),
		string(payment.Method),
		payment.PaidAt,
		payment.UpdatedAt,
	)
	updated, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		if dup := mapUniqueViolation(err); dup != nil {
			return nil, dup
		}
		l.logger.Error("update payment failed",
			ports.Int64("payment_id", payment.ID),
			ports.Err(err))
		return nil, fmt.Errorf("update payment: %w", err)
	}
	return updated, nil
}

func (l *PaymentLedger) Touch(ctx context.Context, paymentID int64, updatedAt time.Time) error {
	tag, err := l.db.Pool.Exec(ctx, queryTouchPayment, paymentID, updatedAt)
	if err != nil {
		l.logger.Error("touch payment failed",
			ports.Int64("payment_id", paymentID),
			ports.Err(err))
		return fmt.Errorf("touch payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (l *PaymentLedger) queryOne(ctx context.Context, query string, arg int64) (*models.Payment, error) {
	payment, err := scanPayment(l.db.Pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment: %w", err)
	}
	return payment, nil
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var (
		p      models.Payment
		status string
		amount string
		method string
	)
	if err := row.Scan(&p.ID, &p.CompanyID, &status, &amount, &method, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse payment amount %q: %w", amount, err)
	}
	p.Status = models.PaymentStatus(status)
	p.Amount = dec
	p.Method = models.PaymentMethod(method)
	return &p, nil
}

// mapUniqueViolation translates the partial unique index violations into
// domain errors. The PENDING index signals a lost insert race; the SUCCESS
// index means the company already unlocked.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "success") {
		return domain.NewDomainError(domain.ErrorCodeDuplicateSuccess, "company already has a SUCCESS payment")
	}
	return domain.ErrDuplicatePending
}
