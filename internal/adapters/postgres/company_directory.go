package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/storix-vn/payment-service/internal/domain"
	"github.com/storix-vn/payment-service/internal/domain/models"
	"github.com/storix-vn/payment-service/internal/domain/ports"
)

const queryFindCompany = `SELECT id, status
FROM companies
WHERE id = $1`

// CompanyDirectory implements ports.CompanyDirectory on PostgreSQL.
type CompanyDirectory struct {
	db     *DB
	logger ports.Logger
}

// NewCompanyDirectory creates a new PostgreSQL company directory
func NewCompanyDirectory(db *DB, logger ports.Logger) *CompanyDirectory {
	return &CompanyDirectory{db: db, logger: logger}
}

func (d *CompanyDirectory) FindCompany(ctx context.Context, companyID int64) (*models.Company, error) {
	var (
		company models.Company
		status  string
	)
	err := d.db.Pool.QueryRow(ctx, queryFindCompany, companyID).Scan(&company.ID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCompanyNotFound
	}
	if err != nil {
		d.logger.Error("query company failed",
			ports.Int64("company_id", companyID),
			ports.Err(err))
		return nil, fmt.Errorf("query company: %w", err)
	}
	company.Status = models.CompanyStatus(status)
	return &company, nil
}
