package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storix-vn/payment-service/internal/domain"
	"github.com/storix-vn/payment-service/internal/domain/models"
	"github.com/storix-vn/payment-service/internal/domain/ports"
	"github.com/storix-vn/payment-service/internal/observability"
)

// MoMo ATM accepts amounts between 1,000 and 50,000,000 VND.
var (
	atmAmountMin = decimal.NewFromInt(1_000)
	atmAmountMax = decimal.NewFromInt(50_000_000)
)

// Service implements ports.PaymentService. It owns every lifecycle rule:
// at most one PENDING and one SUCCESS payment per company, monotonic
// PENDING->SUCCESS / PENDING->FAILED transitions, tenant isolation, and the
// fail-closed write-access gate.
type Service struct {
	ledger    ports.PaymentLedger
	companies ports.CompanyDirectory
	gateway   ports.AtmGateway
	logger    ports.Logger
	metrics   *observability.Metrics
	locks     *companyLocks
}

// NewService creates a new payment service
func NewService(
	ledger ports.PaymentLedger,
	companies ports.CompanyDirectory,
	gateway ports.AtmGateway,
	logger ports.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		ledger:    ledger,
		companies: companies,
		gateway:   gateway,
		logger:    logger,
		metrics:   metrics,
		locks:     newCompanyLocks(),
	}
}

// CreatePayment records a new PENDING payment for the caller's company.
// Creation is idempotent: an existing PENDING row is returned unchanged, and
// a company that already holds a SUCCESS payment is rejected.
func (s *Service) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest, callerCompanyID int64) (*models.Payment, error) {
	if req.CompanyID <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidInput, "companyId must be a positive integer")
	}
	if err := ensureSameCompany(callerCompanyID, req.CompanyID); err != nil {
		return nil, err
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidInput, "amount must be greater than 0")
	}
	method, ok := models.NormalizeMethod(req.Method)
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidInput, "paymentMethod must be one of: MANUAL, MOMO, VNPAY")
	}

	unlock := s.locks.Lock(req.CompanyID)
	defer unlock()

	company, err := s.findCompany(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	if err := ensureCompanyActive(company); err != nil {
		return nil, err
	}

	successful, err := s.ledger.FindSuccessful(ctx, req.CompanyID)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}
	if successful != nil {
		return nil, domain.NewDomainError(domain.ErrorCodeDuplicateSuccess, "company has already unlocked full feature")
	}

	pending, err := s.ledger.FindLatestPending(ctx, req.CompanyID)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}
	if pending != nil {
		s.logger.Info("returning existing pending payment",
			ports.Int64("company_id", req.CompanyID),
			ports.Int64("payment_id", pending.ID))
		return pending, nil
	}

	now := timestamp()
	created, err := s.ledger.Create(ctx, &models.Payment{
		CompanyID: req.CompanyID,
		Status:    models.StatusPending,
		Amount:    req.Amount,
		Method:    method,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, domain.ErrDuplicatePending) {
		// A concurrent request won the insert; the partial unique index is
		// authoritative, so surface the row it persisted.
		existing, findErr := s.ledger.FindLatestPending(ctx, req.CompanyID)
		if findErr != nil {
			return nil, findErr
		}
		return existing, nil
	}
	if err != nil {
		s.logger.Error("create payment failed",
			ports.Int64("company_id", req.CompanyID),
			ports.Err(err))
		return nil, err
	}

	s.metrics.PaymentCreated(string(method))
	s.logger.Info("payment created",
		ports.Int64("payment_id", created.ID),
		ports.Int64("company_id", created.CompanyID),
		ports.String("method", string(method)))
	return created, nil
}

// MarkPaymentSuccess transitions a PENDING payment to SUCCESS. Marking an
// already-successful payment is an idempotent no-op; resurrecting a FAILED
// payment is rejected.
func (s *Service) MarkPaymentSuccess(ctx context.Context, paymentID, callerCompanyID int64) (*models.Payment, error) {
	if paymentID <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPaymentUpdate, "payment id must be a positive integer")
	}

	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := ensureSameCompany(callerCompanyID, payment.CompanyID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(payment.CompanyID)
	defer unlock()

	// Re-read under the company lock; the first read raced other writers.
	payment, err = s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	company, err := s.findCompany(ctx, payment.CompanyID)
	if err != nil {
		return nil, err
	}
	if err := ensureCompanyActive(company); err != nil {
		return nil, err
	}

	status, ok := models.NormalizeStatus(string(payment.Status))
	if !ok {
		s.logger.Error("invalid payment status transition",
			ports.Int64("payment_id", payment.ID),
			ports.String("current_status", string(payment.Status)))
		return nil, domain.NewDomainErrorf(domain.ErrorCodeInvalidPaymentStatus, "cannot mark payment as success from status %q", payment.Status)
	}

	switch status {
	case models.StatusSuccess:
		return payment, nil
	case models.StatusFailed:
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPaymentUpdate, "cannot unlock from FAILED payment")
	}

	successful, err := s.ledger.FindSuccessful(ctx, payment.CompanyID)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}
	if successful != nil && successful.ID != payment.ID {
		return nil, domain.NewDomainError(domain.ErrorCodeDuplicateSuccess, "company already has a SUCCESS payment")
	}

	now := timestamp()
	payment.Status = models.StatusSuccess
	payment.PaidAt = &now
	payment.UpdatedAt = now

	updated, err := s.ledger.Update(ctx, payment)
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(models.StatusSuccess))
	s.logger.Info("payment marked success",
		ports.Int64("payment_id", updated.ID),
		ports.Int64("company_id", updated.CompanyID))
	return updated, nil
}

// GetPaymentStatus answers the tenant status query. A SUCCESS payment always
// wins; otherwise the latest payment's normalized status (or NOT_PAID) is
// reported with isUnlocked=false.
func (s *Service) GetPaymentStatus(ctx context.Context, companyID, callerCompanyID int64) (*ports.PaymentStatusResult, error) {
	if companyID <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidInput, "companyId must be a positive integer")
	}
	if err := ensureSameCompany(callerCompanyID, companyID); err != nil {
		return nil, err
	}
	if _, err := s.findCompany(ctx, companyID); err != nil {
		return nil, err
	}

	successful, err := s.ledger.FindSuccessful(ctx, companyID)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, err
	}
	if successful != nil {
		return toStatusResult(companyID, successful, true, string(models.StatusSuccess)), nil
	}

	latest, err := s.ledger.FindLatest(ctx, companyID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		return &ports.PaymentStatusResult{
			CompanyID:  companyID,
			IsUnlocked: false,
			Status:     models.StatusNotPaid,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	status, ok := models.NormalizeStatus(string(latest.Status))
	if !ok {
		return nil, domain.NewDomainErrorf(domain.ErrorCodeInvalidPaymentStatus, "invalid payment status %q", latest.Status)
	}
	return toStatusResult(companyID, latest, false, string(status)), nil
}

// CheckWriteAccess is the access gate consulted before any tenant mutation.
// It returns nil only when the company is active and holds a SUCCESS payment.
// Verification failures of any kind deny access; they never allow.
func (s *Service) CheckWriteAccess(ctx context.Context, companyID int64) error {
	if companyID <= 0 {
		return domain.NewDomainError(domain.ErrorCodeInvalidInput, "companyId must be a positive integer")
	}

	err := s.checkWriteAccess(ctx, companyID)
	if err == nil {
		return nil
	}
	if code := domain.GetErrorCode(err); code != "" {
		if domain.IsGateDenial(err) || code == domain.ErrorCodePaymentCheckFailed {
			s.metrics.GateDenied(string(code))
		}
		return err
	}

	// Infrastructure failure while verifying: deny rather than guess.
	s.logger.Error("payment check failed",
		ports.Int64("company_id", companyID),
		ports.Err(err))
	s.metrics.GateDenied(string(domain.ErrorCodePaymentCheckFailed))
	return domain.WrapError(domain.ErrorCodePaymentCheckFailed,
		"cannot verify payment status right now; write actions are blocked for safety", err)
}

func (s *Service) checkWriteAccess(ctx context.Context, companyID int64) error {
	company, err := s.findCompany(ctx, companyID)
	if err != nil {
		return err
	}
	if err := ensureCompanyActive(company); err != nil {
		return err
	}

	successful, err := s.ledger.FindSuccessful(ctx, companyID)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		return err
	}
	if successful != nil {
		return nil
	}

	latest, err := s.ledger.FindLatest(ctx, companyID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		return domain.NewDomainError(domain.ErrorCodePaymentRequired, "company has not completed payment; write actions are blocked")
	}
	if err != nil {
		return err
	}

	status, ok := models.NormalizeStatus(string(latest.Status))
	if !ok {
		s.logger.Error("invalid payment status when checking write access",
			ports.Int64("company_id", companyID),
			ports.String("status", string(latest.Status)))
		return domain.NewDomainError(domain.ErrorCodePaymentCheckFailed, "cannot verify payment status right now; write actions are blocked for safety")
	}

	switch status {
	case models.StatusPending:
		return domain.NewDomainError(domain.ErrorCodePaymentPending, "payment is pending; company remains in view-only mode")
	case models.StatusFailed:
		return domain.NewDomainError(domain.ErrorCodePaymentFailed, "payment failed; retry payment to unlock full feature")
	}
	return nil
}

// CreateCheckoutURL provisions a MoMo ATM checkout URL for a PENDING payment.
func (s *Service) CreateCheckoutURL(ctx context.Context, paymentID int64, orderInfo string, callerCompanyID int64) (*ports.CheckoutURLResult, error) {
	if paymentID <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPaymentUpdate, "payment id must be a positive integer")
	}

	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := ensureSameCompany(callerCompanyID, payment.CompanyID); err != nil {
		return nil, err
	}

	company, err := s.findCompany(ctx, payment.CompanyID)
	if err != nil {
		return nil, err
	}
	if err := ensureCompanyActive(company); err != nil {
		return nil, err
	}

	if payment.Method != models.MethodMomo {
		return nil, domain.NewDomainError(domain.ErrorCodeProviderError, "this payment is not configured for MoMo")
	}

	status, ok := models.NormalizeStatus(string(payment.Status))
	if !ok {
		return nil, domain.NewDomainErrorf(domain.ErrorCodeInvalidPaymentStatus, "invalid payment status %q", payment.Status)
	}
	switch status {
	case models.StatusSuccess:
		return nil, domain.NewDomainError(domain.ErrorCodeDuplicateSuccess, "payment already completed successfully")
	case models.StatusFailed:
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidPaymentUpdate, "cannot create MoMo URL from FAILED payment; create a new payment")
	}

	if payment.Amount.LessThan(atmAmountMin) || payment.Amount.GreaterThan(atmAmountMax) {
		return nil, domain.NewDomainError(domain.ErrorCodeProviderError, "MoMo ATM amount must be between 1,000 and 50,000,000 VND")
	}

	info := strings.TrimSpace(orderInfo)
	if info == "" {
		info = "Unlock full feature for company " + strconv.FormatInt(payment.CompanyID, 10)
	}

	result, err := s.gateway.CreateCheckoutURL(ctx, ports.CheckoutRequest{
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		OrderInfo: info,
	})
	if err != nil {
		if domain.AsDomainError(err) != nil {
			return nil, err
		}
		s.logger.Error("MoMo checkout URL creation failed",
			ports.Int64("payment_id", paymentID),
			ports.Err(err))
		return nil, domain.WrapError(domain.ErrorCodeProviderError, "cannot create MoMo ATM payment URL", err)
	}

	// A callback can land while the gateway round trip is in flight, so the
	// pre-call snapshot must never be written back whole. Only updated_at is
	// stamped here; the transition columns belong to the locked paths.
	if err := s.ledger.Touch(ctx, payment.ID, timestamp()); err != nil {
		return nil, err
	}

	return &ports.CheckoutURLResult{
		PaymentID:         payment.ID,
		Status:            status,
		ProviderRequestID: result.RequestID,
		ProviderOrderID:   result.OrderID,
		PayURL:            result.PayURL,
	}, nil
}

// ProcessCallback reconciles an inbound provider message (redirect callback
// or IPN) with the payment row its order id points at. Re-delivery of an
// already-applied outcome is a no-op; terminal-to-terminal transitions fail.
func (s *Service) ProcessCallback(ctx context.Context, envelope ports.CallbackEnvelope, isIPN bool) (*ports.CallbackResult, error) {
	source := "callback"
	if isIPN {
		source = "ipn"
	}

	if !s.gateway.VerifyCallbackSignature(envelope) {
		s.logger.Warn("invalid MoMo signature",
			ports.String("source", source),
			ports.String("order_id", envelope.OrderID))
		s.metrics.CallbackProcessed(source, "signature_rejected")
		return nil, domain.NewDomainError(domain.ErrorCodeCallbackMismatch, "invalid callback signature")
	}

	paymentID, ok := extractPaymentID(envelope.OrderID)
	if !ok {
		s.logger.Warn("cannot parse payment id from order id",
			ports.String("order_id", envelope.OrderID))
		s.metrics.CallbackProcessed(source, "rejected")
		return nil, domain.NewDomainError(domain.ErrorCodeCallbackMismatch, "invalid orderId from callback")
	}

	payment, err := s.ledger.FindByID(ctx, paymentID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		s.logger.Warn("payment not found for callback",
			ports.String("order_id", envelope.OrderID))
		s.metrics.CallbackProcessed(source, "rejected")
		return nil, domain.NewDomainError(domain.ErrorCodeCallbackMismatch, "payment not found for callback")
	}
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(payment.CompanyID)
	defer unlock()

	payment, err = s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Method != models.MethodMomo {
		s.metrics.CallbackProcessed(source, "rejected")
		return nil, domain.NewDomainError(domain.ErrorCodeCallbackMismatch, "callback does not match payment method")
	}

	callbackAmount, err := decimal.NewFromString(strings.TrimSpace(envelope.Amount))
	if err != nil || !callbackAmount.Equal(payment.Amount) {
		s.logger.Warn("callback amount mismatch",
			ports.Int64("payment_id", payment.ID),
			ports.String("expected", payment.Amount.String()),
			ports.String("actual", envelope.Amount))
		s.metrics.CallbackProcessed(source, "rejected")
		return nil, domain.NewDomainError(domain.ErrorCodeCallbackMismatch, "callback amount mismatch")
	}

	resultCode, err := strconv.Atoi(strings.TrimSpace(envelope.ResultCode))
	if err != nil {
		s.metrics.CallbackProcessed(source, "rejected")
		return nil, domain.NewDomainError(domain.ErrorCodeCallbackMismatch, "callback resultCode is invalid")
	}

	status, ok := models.NormalizeStatus(string(payment.Status))
	if !ok {
		return nil, domain.NewDomainErrorf(domain.ErrorCodeInvalidPaymentStatus, "invalid payment status %q", payment.Status)
	}

	if resultCode == 0 {
		if status == models.StatusFailed {
			return nil, domain.NewDomainError(domain.ErrorCodeInvalidPaymentUpdate, "invalid transition from FAILED to SUCCESS")
		}
		if status == models.StatusPending {
			now := timestamp()
			payment.Status = models.StatusSuccess
			payment.PaidAt = &now
			payment.UpdatedAt = now
			if _, err := s.ledger.Update(ctx, payment); err != nil {
				return nil, err
			}
			status = models.StatusSuccess
			s.metrics.Transition(string(models.StatusSuccess))
		}
	} else {
		if status == models.StatusSuccess {
			return nil, domain.NewDomainError(domain.ErrorCodeInvalidPaymentUpdate, "invalid transition from SUCCESS to FAILED")
		}
		if status == models.StatusPending {
			payment.Status = models.StatusFailed
			payment.UpdatedAt = timestamp()
			if _, err := s.ledger.Update(ctx, payment); err != nil {
				return nil, err
			}
			status = models.StatusFailed
			s.metrics.Transition(string(models.StatusFailed))
		}
	}

	message := envelope.Message
	if message == "" {
		if resultCode == 0 {
			message = "Success"
		} else {
			message = "Failed"
		}
	}

	s.metrics.CallbackProcessed(source, strings.ToLower(string(status)))
	s.logger.Info("callback reconciled",
		ports.String("source", source),
		ports.Int64("payment_id", payment.ID),
		ports.String("status", string(status)),
		ports.Int("result_code", resultCode))

	return &ports.CallbackResult{
		PaymentID:          payment.ID,
		CompanyID:          payment.CompanyID,
		Status:             status,
		IsUnlocked:         status == models.StatusSuccess,
		ProviderResultCode: resultCode,
		ProviderMessage:    message,
	}, nil
}

func (s *Service) findPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	payment, err := s.ledger.FindByID(ctx, paymentID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, domain.NewDomainErrorf(domain.ErrorCodeInvalidPaymentUpdate, "payment with id %d not found", paymentID)
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) findCompany(ctx context.Context, companyID int64) (*models.Company, error) {
	company, err := s.companies.FindCompany(ctx, companyID)
	if errors.Is(err, domain.ErrCompanyNotFound) {
		return nil, domain.NewDomainErrorf(domain.ErrorCodeCompanyNotFound, "company with id %d not found", companyID)
	}
	if err != nil {
		return nil, err
	}
	return company, nil
}

func ensureCompanyActive(company *models.Company) error {
	if !company.IsActive() {
		return domain.NewDomainError(domain.ErrorCodeCompanyInactive, "company is inactive and cannot process payment unlock")
	}
	return nil
}

func ensureSameCompany(callerCompanyID, targetCompanyID int64) error {
	if callerCompanyID <= 0 {
		return domain.NewDomainError(domain.ErrorCodeCompanyNotFound, "companyId in token is invalid")
	}
	if targetCompanyID <= 0 {
		return domain.NewDomainError(domain.ErrorCodeCompanyNotFound, "companyId must be a positive integer")
	}
	if callerCompanyID != targetCompanyID {
		return domain.NewDomainError(domain.ErrorCodeCrossCompanyDenied, "cannot operate on payments of another company")
	}
	return nil
}

// extractPaymentID parses the payment id out of a PAY-{id}-{timestamp} order
// id: at least three dash-separated segments, literal PAY prefix, positive id.
func extractPaymentID(orderID string) (int64, bool) {
	parts := strings.Split(strings.TrimSpace(orderID), "-")
	if len(parts) < 3 || !strings.EqualFold(parts[0], "PAY") {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func toStatusResult(companyID int64, payment *models.Payment, isUnlocked bool, status string) *ports.PaymentStatusResult {
	amount := payment.Amount
	method := payment.Method
	id := payment.ID
	return &ports.PaymentStatusResult{
		CompanyID:  companyID,
		IsUnlocked: isUnlocked,
		Status:     status,
		PaymentID:  &id,
		Amount:     &amount,
		Method:     &method,
		PaidAt:     payment.PaidAt,
	}
}

// timestamp truncates to microseconds, the precision the ledger stores.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
