package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storix-vn/payment-service/internal/domain"
	"github.com/storix-vn/payment-service/internal/domain/models"
	"github.com/storix-vn/payment-service/internal/domain/ports"
	handler "github.com/storix-vn/payment-service/internal/handlers/payment"
	"github.com/storix-vn/payment-service/internal/middleware"
)

// MockPaymentService mocks the payment service port
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest, callerCompanyID int64) (*models.Payment, error) {
	args := m.Called(ctx, req, callerCompanyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentService) MarkPaymentSuccess(ctx context.Context, paymentID, callerCompanyID int64) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, callerCompanyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentService) GetPaymentStatus(ctx context.Context, companyID, callerCompanyID int64) (*ports.PaymentStatusResult, error) {
	args := m.Called(ctx, companyID, callerCompanyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentStatusResult), args.Error(1)
}

func (m *MockPaymentService) CheckWriteAccess(ctx context.Context, companyID int64) error {
	args := m.Called(ctx, companyID)
	return args.Error(0)
}

func (m *MockPaymentService) CreateCheckoutURL(ctx context.Context, paymentID int64, orderInfo string, callerCompanyID int64) (*ports.CheckoutURLResult, error) {
	args := m.Called(ctx, paymentID, orderInfo, callerCompanyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.CheckoutURLResult), args.Error(1)
}

func (m *MockPaymentService) ProcessCallback(ctx context.Context, envelope ports.CallbackEnvelope, isIPN bool) (*ports.CallbackResult, error) {
	args := m.Called(ctx, envelope, isIPN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.CallbackResult), args.Error(1)
}

// MockLogger mocks the logger port
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Info(msg string, fields ...ports.Field)  { m.Called(msg, fields) }
func (m *MockLogger) Error(msg string, fields ...ports.Field) { m.Called(msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...ports.Field)  { m.Called(msg, fields) }
func (m *MockLogger) Debug(msg string, fields ...ports.Field) { m.Called(msg, fields) }

func noopLogger() *MockLogger {
	l := new(MockLogger)
	l.On("Info", mock.Anything, mock.Anything).Return().Maybe()
	l.On("Error", mock.Anything, mock.Anything).Return().Maybe()
	l.On("Warn", mock.Anything, mock.Anything).Return().Maybe()
	l.On("Debug", mock.Anything, mock.Anything).Return().Maybe()
	return l
}

func newRouter(svc *MockPaymentService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CompanyContext)
	handler.NewHandler(svc, noopLogger()).Routes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, target, body string, companyID string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if companyID != "" {
		req.Header.Set(middleware.CompanyIDHeader, companyID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreatePayment_Created(t *testing.T) {
	svc := new(MockPaymentService)
	now := time.Now().UTC()
	svc.On("CreatePayment", mock.Anything, mock.Anything, int64(10)).
		Return(&models.Payment{
			ID: 1, CompanyID: 10, Status: models.StatusPending,
			Amount: decimal.NewFromInt(500000), Method: models.MethodMomo,
			CreatedAt: now, UpdatedAt: now,
		}, nil)

	rec := doRequest(t, newRouter(svc), http.MethodPost, "/api/payments",
		`{"companyId":10,"amount":500000,"paymentMethod":"MOMO"}`, "10")

	assert.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, float64(10), body["companyId"])

	sent := svc.Calls[0].Arguments.Get(1).(ports.CreatePaymentRequest)
	assert.Equal(t, "MOMO", sent.Method)
	assert.True(t, sent.Amount.Equal(decimal.NewFromInt(500000)))
}

func TestCreatePayment_MissingCaller(t *testing.T) {
	svc := new(MockPaymentService)

	rec := doRequest(t, newRouter(svc), http.MethodPost, "/api/payments",
		`{"companyId":10,"amount":500000,"paymentMethod":"MOMO"}`, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertNotCalled(t, "CreatePayment")
}

func TestCreatePayment_InvalidBody(t *testing.T) {
	svc := new(MockPaymentService)

	rec := doRequest(t, newRouter(svc), http.MethodPost, "/api/payments", `{not json`, "10")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "CreatePayment")
}

func TestCreatePayment_ErrorStatusMapping(t *testing.T) {
	cases := map[string]struct {
		code       domain.ErrorCode
		wantStatus int
	}{
		"duplicate success": {domain.ErrorCodeDuplicateSuccess, http.StatusConflict},
		"company inactive":  {domain.ErrorCodeCompanyInactive, http.StatusConflict},
		"company missing":   {domain.ErrorCodeCompanyNotFound, http.StatusNotFound},
		"cross company":     {domain.ErrorCodeCrossCompanyDenied, http.StatusForbidden},
		"invalid input":     {domain.ErrorCodeInvalidInput, http.StatusBadRequest},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := new(MockPaymentService)
			svc.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).
				Return(nil, domain.NewDomainError(tc.code, "rejected"))

			rec := doRequest(t, newRouter(svc), http.MethodPost, "/api/payments",
				`{"companyId":10,"amount":500000,"paymentMethod":"MOMO"}`, "10")

			assert.Equal(t, tc.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, string(tc.code), body["code"])
		})
	}
}

func TestMarkPaymentSuccess_OK(t *testing.T) {
	svc := new(MockPaymentService)
	paidAt := time.Now().UTC()
	svc.On("MarkPaymentSuccess", mock.Anything, int64(5), int64(10)).
		Return(&models.Payment{
			ID: 5, CompanyID: 10, Status: models.StatusSuccess,
			Amount: decimal.NewFromInt(500000), Method: models.MethodManual,
			PaidAt: &paidAt, CreatedAt: paidAt, UpdatedAt: paidAt,
		}, nil)

	rec := doRequest(t, newRouter(svc), http.MethodPut, "/api/payments/5/success", "", "10")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SUCCESS", body["status"])
	assert.NotEmpty(t, body["paidAt"])
}

func TestMarkPaymentSuccess_BadID(t *testing.T) {
	svc := new(MockPaymentService)

	rec := doRequest(t, newRouter(svc), http.MethodPut, "/api/payments/abc/success", "", "10")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "MarkPaymentSuccess")
}

func TestGetPaymentStatus_OK(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("GetPaymentStatus", mock.Anything, int64(10), int64(10)).
		Return(&ports.PaymentStatusResult{
			CompanyID:  10,
			IsUnlocked: false,
			Status:     models.StatusNotPaid,
		}, nil)

	rec := doRequest(t, newRouter(svc), http.MethodGet, "/api/payments/status?companyId=10", "", "10")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_PAID", body["status"])
	assert.Equal(t, false, body["isUnlocked"])
	_, hasPaymentID := body["paymentId"]
	assert.False(t, hasPaymentID)
}

func TestCheckWriteAccess_GateStatuses(t *testing.T) {
	t.Run("unlocked", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("CheckWriteAccess", mock.Anything, int64(10)).Return(nil)

		rec := doRequest(t, newRouter(svc), http.MethodGet, "/api/payments/access?companyId=10", "", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	for name, tc := range map[string]struct {
		code       domain.ErrorCode
		wantStatus int
	}{
		"required":     {domain.ErrorCodePaymentRequired, http.StatusPaymentRequired},
		"pending":      {domain.ErrorCodePaymentPending, http.StatusPaymentRequired},
		"failed":       {domain.ErrorCodePaymentFailed, http.StatusPaymentRequired},
		"check failed": {domain.ErrorCodePaymentCheckFailed, http.StatusServiceUnavailable},
	} {
		t.Run(name, func(t *testing.T) {
			svc := new(MockPaymentService)
			svc.On("CheckWriteAccess", mock.Anything, int64(10)).
				Return(domain.NewDomainError(tc.code, "denied"))

			rec := doRequest(t, newRouter(svc), http.MethodGet, "/api/payments/access?companyId=10", "", "")
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestCreateCheckoutURL_OK(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("CreateCheckoutURL", mock.Anything, int64(42), "Unlock full feature", int64(10)).
		Return(&ports.CheckoutURLResult{
			PaymentID:         42,
			Status:            models.StatusPending,
			ProviderRequestID: "req-1",
			ProviderOrderID:   "PAY-42-1690000000000",
			PayURL:            "https://pay.momo.vn/atm/x",
		}, nil)

	rec := doRequest(t, newRouter(svc), http.MethodPost, "/api/payments/42/momo/atm-url",
		`{"orderInfo":"Unlock full feature"}`, "10")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://pay.momo.vn/atm/x", body["payUrl"])
	assert.Equal(t, "PAY-42-1690000000000", body["orderId"])
}

func TestCreateCheckoutURL_EmptyBodyAllowed(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("CreateCheckoutURL", mock.Anything, int64(42), "", int64(10)).
		Return(&ports.CheckoutURLResult{PaymentID: 42, Status: models.StatusPending, PayURL: "https://pay.momo.vn/atm/x"}, nil)

	rec := doRequest(t, newRouter(svc), http.MethodPost, "/api/payments/42/momo/atm-url", "", "10")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMomoCallback_MapsQueryToEnvelope(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("ProcessCallback", mock.Anything, mock.AnythingOfType("ports.CallbackEnvelope"), false).
		Return(&ports.CallbackResult{
			PaymentID:       42,
			CompanyID:       10,
			Status:          models.StatusSuccess,
			IsUnlocked:      true,
			ProviderMessage: "Success",
		}, nil)

	q := url.Values{}
	q.Set("partnerCode", "STORIX")
	q.Set("orderId", "PAY-42-1690000000000")
	q.Set("requestId", "req-1")
	q.Set("amount", "500000")
	q.Set("resultCode", "0")
	q.Set("message", "Success")
	q.Set("signature", "deadbeef")

	rec := doRequest(t, newRouter(svc), http.MethodGet, "/api/payments/momo/atm/callback?"+q.Encode(), "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	sent := svc.Calls[0].Arguments.Get(1).(ports.CallbackEnvelope)
	assert.Equal(t, "PAY-42-1690000000000", sent.OrderID)
	assert.Equal(t, "500000", sent.Amount)
	assert.Equal(t, "0", sent.ResultCode)
	assert.Equal(t, "deadbeef", sent.Signature)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["isUnlocked"])
}

func TestMomoCallback_MismatchRejected(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("ProcessCallback", mock.Anything, mock.Anything, false).
		Return(nil, domain.NewDomainError(domain.ErrorCodeCallbackMismatch, "invalid callback signature"))

	rec := doRequest(t, newRouter(svc), http.MethodGet, "/api/payments/momo/atm/callback?orderId=PAY-42-1", "", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMomoIPN_AlwaysAcks200(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("ProcessCallback", mock.Anything, mock.AnythingOfType("ports.CallbackEnvelope"), true).
			Return(&ports.CallbackResult{
				PaymentID: 42, CompanyID: 10,
				Status: models.StatusSuccess, IsUnlocked: true,
			}, nil)

		rec := doRequest(t, newRouter(svc), http.MethodPost, "/api/payments/momo/atm/ipn",
			`{"partnerCode":"STORIX","orderId":"PAY-42-1690000000000","requestId":"req-1","amount":500000,"resultCode":0,"message":"Success","transId":2147483647,"responseTime":1690000001000,"signature":"deadbeef"}`, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		var ack map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
		assert.Equal(t, float64(0), ack["resultCode"])
		assert.Equal(t, "Success", ack["message"])
		assert.Equal(t, "SUCCESS", ack["paymentStatus"])

		// Numeric JSON fields keep their exact textual form for re-signing.
		sent := svc.Calls[0].Arguments.Get(1).(ports.CallbackEnvelope)
		assert.Equal(t, "500000", sent.Amount)
		assert.Equal(t, "0", sent.ResultCode)
		assert.Equal(t, "1690000001000", sent.ResponseTime)
	})

	t.Run("domain rejection", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("ProcessCallback", mock.Anything, mock.Anything, true).
			Return(nil, domain.NewDomainError(domain.ErrorCodeCallbackMismatch, "callback amount mismatch"))

		rec := doRequest(t, newRouter(svc), http.MethodPost, "/api/payments/momo/atm/ipn",
			`{"orderId":"PAY-42-1","amount":1,"resultCode":0,"signature":"x"}`, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		var ack map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
		assert.Equal(t, float64(1), ack["resultCode"])
		assert.Equal(t, "PAYMENT_CALLBACK_MISMATCH", ack["code"])
	})

	t.Run("bad body", func(t *testing.T) {
		svc := new(MockPaymentService)

		rec := doRequest(t, newRouter(svc), http.MethodPost, "/api/payments/momo/atm/ipn", `{nope`, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		var ack map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
		assert.Equal(t, float64(1), ack["resultCode"])
		svc.AssertNotCalled(t, "ProcessCallback")
	})
}
