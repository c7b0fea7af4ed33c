package ports

import (
	"context"
	"time"

	"github.com/storix-vn/payment-service/internal/domain/models"
)

// PaymentLedger is the persistence abstraction over payment records.
// It carries no business logic; ordering for the "latest" lookups is
// created_at descending, tie-broken by id descending.
//
// Create must enforce the one-PENDING-per-company and one-SUCCESS-per-company
// uniqueness at the storage layer and return domain.ErrDuplicatePending when
// a concurrent insert loses that race.
type PaymentLedger interface {
	FindByID(ctx context.Context, paymentID int64) (*models.Payment, error)
	FindLatest(ctx context.Context, companyID int64) (*models.Payment, error)
	FindLatestPending(ctx context.Context, companyID int64) (*models.Payment, error)
	FindSuccessful(ctx context.Context, companyID int64) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) (*models.Payment, error)

	// Touch stamps updated_at without writing any other column, so a caller
	// holding a stale snapshot cannot clobber a concurrent status transition.
	Touch(ctx context.Context, paymentID int64, updatedAt time.Time) error
}

// CompanyDirectory is the read-only tenant lookup consumed by the core.
type CompanyDirectory interface {
	FindCompany(ctx context.Context, companyID int64) (*models.Company, error)
}
