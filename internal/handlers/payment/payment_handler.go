package payment

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/storix-vn/payment-service/internal/auth"
	"github.com/storix-vn/payment-service/internal/domain"
	"github.com/storix-vn/payment-service/internal/domain/models"
	"github.com/storix-vn/payment-service/internal/domain/ports"
)

// Handler exposes the payment service over HTTP.
type Handler struct {
	service  ports.PaymentService
	logger   ports.Logger
	validate *validator.Validate
}

// NewHandler creates a new payment HTTP handler
func NewHandler(service ports.PaymentService, logger ports.Logger) *Handler {
	return &Handler{
		service:  service,
		logger:   logger,
		validate: validator.New(),
	}
}

// Routes mounts the payment endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/payments", h.CreatePayment)
	r.Put("/api/payments/{id}/success", h.MarkPaymentSuccess)
	r.Get("/api/payments/status", h.GetPaymentStatus)
	r.Get("/api/payments/access", h.CheckWriteAccess)
	r.Post("/api/payments/{id}/momo/atm-url", h.CreateCheckoutURL)
	r.Get("/api/payments/momo/atm/callback", h.MomoCallback)
	r.Post("/api/payments/momo/atm/ipn", h.MomoIPN)
}

type createPaymentRequest struct {
	CompanyID     int64           `json:"companyId" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod string          `json:"paymentMethod" validate:"required"`
}

type checkoutURLRequest struct {
	OrderInfo string `json:"orderInfo"`
}

type paymentResponse struct {
	ID        int64           `json:"id"`
	CompanyID int64           `json:"companyId"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"paymentMethod"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type statusResponse struct {
	CompanyID  int64            `json:"companyId"`
	IsUnlocked bool             `json:"isUnlocked"`
	Status     string           `json:"status"`
	PaymentID  *int64           `json:"paymentId,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Method     *string          `json:"paymentMethod,omitempty"`
	PaidAt     *time.Time       `json:"paidAt,omitempty"`
}

type checkoutURLResponse struct {
	PaymentID int64  `json:"paymentId"`
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
	OrderID   string `json:"orderId"`
	PayURL    string `json:"payUrl"`
}

type callbackResponse struct {
	PaymentID  int64  `json:"paymentId"`
	Status     string `json:"status"`
	IsUnlocked bool   `json:"isUnlocked"`
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// ipnAck is the fixed acknowledgment envelope MoMo expects, always HTTP 200.
type ipnAck struct {
	ResultCode    int    `json:"resultCode"`
	Message       string `json:"message"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
	Code          string `json:"code,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreatePayment handles POST /api/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CompanyIDFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeCompanyNotFound, "companyId in token is invalid"))
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeInvalidInput, "request body is not valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeInvalidInput, "companyId, amount and paymentMethod are required"))
		return
	}

	created, err := h.service.CreatePayment(r.Context(), ports.CreatePaymentRequest{
		CompanyID: req.CompanyID,
		Amount:    req.Amount,
		Method:    req.PaymentMethod,
	}, caller)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toPaymentResponse(created))
}

// MarkPaymentSuccess handles PUT /api/payments/{id}/success
func (h *Handler) MarkPaymentSuccess(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CompanyIDFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeCompanyNotFound, "companyId in token is invalid"))
		return
	}

	paymentID, err := pathID(r)
	if err != nil {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeInvalidInput, "payment id must be a positive integer"))
		return
	}

	updated, err := h.service.MarkPaymentSuccess(r.Context(), paymentID, caller)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toPaymentResponse(updated))
}

// GetPaymentStatus handles GET /api/payments/status?companyId=
func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CompanyIDFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeCompanyNotFound, "companyId in token is invalid"))
		return
	}

	companyID, err := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	if err != nil {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeInvalidInput, "companyId must be a positive integer"))
		return
	}

	result, err := h.service.GetPaymentStatus(r.Context(), companyID, caller)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := statusResponse{
		CompanyID:  result.CompanyID,
		IsUnlocked: result.IsUnlocked,
		Status:     result.Status,
		PaymentID:  result.PaymentID,
		Amount:     result.Amount,
		PaidAt:     result.PaidAt,
	}
	if result.Method != nil {
		method := string(*result.Method)
		resp.Method = &method
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CheckWriteAccess handles GET /api/payments/access?companyId=. Internal
// services consult it before allowing tenant mutations; 204 means unlocked.
func (h *Handler) CheckWriteAccess(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.URL.Query().Get("companyId"), 10, 64)
	if err != nil {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeInvalidInput, "companyId must be a positive integer"))
		return
	}

	if err := h.service.CheckWriteAccess(r.Context(), companyID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateCheckoutURL handles POST /api/payments/{id}/momo/atm-url
func (h *Handler) CreateCheckoutURL(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CompanyIDFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeCompanyNotFound, "companyId in token is invalid"))
		return
	}

	paymentID, err := pathID(r)
	if err != nil {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeInvalidInput, "payment id must be a positive integer"))
		return
	}

	var req checkoutURLRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, domain.NewDomainError(domain.ErrorCodeInvalidInput, "request body is not valid JSON"))
			return
		}
	}

	result, err := h.service.CreateCheckoutURL(r.Context(), paymentID, req.OrderInfo, caller)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, checkoutURLResponse{
		PaymentID: result.PaymentID,
		Status:    string(result.Status),
		RequestID: result.ProviderRequestID,
		OrderID:   result.ProviderOrderID,
		PayURL:    result.PayURL,
	})
}

// MomoCallback handles GET /api/payments/momo/atm/callback, the browser
// redirect leg. It reconciles state exactly like the IPN but reports errors
// with regular status codes.
func (h *Handler) MomoCallback(w http.ResponseWriter, r *http.Request) {
	envelope := envelopeFromQuery(r.URL.Query())

	result, err := h.service.ProcessCallback(r.Context(), envelope, false)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, callbackResponse{
		PaymentID:  result.PaymentID,
		Status:     string(result.Status),
		IsUnlocked: result.IsUnlocked,
		ResultCode: result.ProviderResultCode,
		Message:    result.ProviderMessage,
	})
}

// MomoIPN handles POST /api/payments/momo/atm/ipn, the server-to-server leg.
// The provider retries on non-200, so every outcome is acknowledged with 200
// and the result encoded in the ack body.
func (h *Handler) MomoIPN(w http.ResponseWriter, r *http.Request) {
	envelope, err := envelopeFromJSON(r)
	if err != nil {
		h.writeJSON(w, http.StatusOK, ipnAck{
			ResultCode: 1,
			Message:    "request body is not valid JSON",
			Code:       string(domain.ErrorCodeInvalidInput),
		})
		return
	}

	result, err := h.service.ProcessCallback(r.Context(), envelope, true)
	if err != nil {
		code := domain.GetErrorCode(err)
		message := "cannot process payment notification"
		if dErr := domain.AsDomainError(err); dErr != nil {
			message = dErr.Message
		} else {
			h.logger.Error("IPN processing failed", ports.Err(err))
			code = domain.ErrorCodePaymentCheckFailed
		}
		h.writeJSON(w, http.StatusOK, ipnAck{
			ResultCode: 1,
			Message:    message,
			Code:       string(code),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, ipnAck{
		ResultCode:    0,
		Message:       "Success",
		PaymentStatus: string(result.Status),
	})
}

// envelopeFromQuery maps the redirect query parameters onto the callback
// envelope. Absent parameters become empty strings, as the signature expects.
func envelopeFromQuery(q url.Values) ports.CallbackEnvelope {
	return ports.CallbackEnvelope{
		PartnerCode:  q.Get("partnerCode"),
		OrderID:      q.Get("orderId"),
		RequestID:    q.Get("requestId"),
		Amount:       q.Get("amount"),
		OrderInfo:    q.Get("orderInfo"),
		OrderType:    q.Get("orderType"),
		TransID:      q.Get("transId"),
		ResultCode:   q.Get("resultCode"),
		Message:      q.Get("message"),
		PayType:      q.Get("payType"),
		ResponseTime: q.Get("responseTime"),
		ExtraData:    q.Get("extraData"),
		Signature:    q.Get("signature"),
	}
}

// ipnRequest mirrors the provider's JSON notification. Numeric fields arrive
// as JSON numbers; json.Number keeps their exact textual form so the signature
// recomputation matches what the provider signed.
type ipnRequest struct {
	PartnerCode  string      `json:"partnerCode"`
	OrderID      string      `json:"orderId"`
	RequestID    string      `json:"requestId"`
	Amount       json.Number `json:"amount"`
	OrderInfo    string      `json:"orderInfo"`
	OrderType    string      `json:"orderType"`
	TransID      json.Number `json:"transId"`
	ResultCode   json.Number `json:"resultCode"`
	Message      string      `json:"message"`
	PayType      string      `json:"payType"`
	ResponseTime json.Number `json:"responseTime"`
	ExtraData    string      `json:"extraData"`
	Signature    string      `json:"signature"`
}

func envelopeFromJSON(r *http.Request) (ports.CallbackEnvelope, error) {
	var req ipnRequest
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		return ports.CallbackEnvelope{}, err
	}
	return ports.CallbackEnvelope{
		PartnerCode:  req.PartnerCode,
		OrderID:      req.OrderID,
		RequestID:    req.RequestID,
		Amount:       req.Amount.String(),
		OrderInfo:    req.OrderInfo,
		OrderType:    req.OrderType,
		TransID:      req.TransID.String(),
		ResultCode:   req.ResultCode.String(),
		Message:      req.Message,
		PayType:      req.PayType,
		ResponseTime: req.ResponseTime.String(),
		ExtraData:    req.ExtraData,
		Signature:    req.Signature,
	}, nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func toPaymentResponse(p *models.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		Status:    string(p.Status),
		Amount:    p.Amount,
		Method:    string(p.Method),
		PaidAt:    p.PaidAt,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", ports.Err(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	dErr := domain.AsDomainError(err)
	if dErr == nil {
		h.logger.Error("unhandled error", ports.Err(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		})
		return
	}
	h.writeJSON(w, statusCodeFor(dErr.Code), errorResponse{
		Code:    string(dErr.Code),
		Message: dErr.Message,
	})
}

// statusCodeFor maps domain error codes onto HTTP status codes. Gate denials
// reflecting ledger state use 402; verification failures use 503 so callers
// retry instead of treating the tenant as unpaid.
func statusCodeFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorCodePaymentRequired, domain.ErrorCodePaymentPending, domain.ErrorCodePaymentFailed:
		return http.StatusPaymentRequired
	case domain.ErrorCodeDuplicateSuccess, domain.ErrorCodeCompanyInactive, domain.ErrorCodeInvalidPaymentUpdate:
		return http.StatusConflict
	case domain.ErrorCodeCompanyNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeCrossCompanyDenied:
		return http.StatusForbidden
	case domain.ErrorCodePaymentCheckFailed:
		return http.StatusServiceUnavailable
	case domain.ErrorCodeProviderConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
