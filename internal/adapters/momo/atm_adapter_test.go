package momo_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storix-vn/payment-service/internal/adapters/momo"
	"github.com/storix-vn/payment-service/internal/domain"
	"github.com/storix-vn/payment-service/internal/domain/ports"
)

// MockHTTPClient mocks the HTTP client port
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
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

func testConfig() momo.Config {
	return momo.Config{
		PartnerCode: "STORIX",
		AccessKey:   "access-key",
		SecretKey:   "secret-key",
		PaymentURL:  "https://test-payment.momo.vn/v2/gateway/api/create",
		BaseURL:     "https://api.example.com",
		ReturnURL:   "/api/payments/momo/atm/callback",
		NotifyURL:   "/api/payments/momo/atm/ipn",
	}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func TestAtmAdapter_CreateCheckoutURL_MissingConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SecretKey = ""
	mockClient := new(MockHTTPClient)

	adapter := momo.NewAtmAdapter(cfg, mockClient, noopLogger())

	_, err := adapter.CreateCheckoutURL(context.Background(), ports.CheckoutRequest{
		PaymentID: 42,
		Amount:    decimal.NewFromInt(500000),
		OrderInfo: "Unlock full feature",
	})

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeProviderConfig, domain.GetErrorCode(err))
	mockClient.AssertNotCalled(t, "Do")
}

func TestAtmAdapter_CreateCheckoutURL_Success(t *testing.T) {
	mockClient := new(MockHTTPClient)
	adapter := momo.NewAtmAdapter(testConfig(), mockClient, noopLogger())

	var captured *http.Request
	mockClient.On("Do", mock.AnythingOfType("*http.Request")).
		Run(func(args mock.Arguments) { captured = args.Get(0).(*http.Request) }).
		Return(jsonResponse(200, `{"resultCode":0,"message":"Success","payUrl":"https://pay.momo.vn/atm/x","orderId":"PAY-42-1690000000000","requestId":"req-1"}`), nil)

	result, err := adapter.CreateCheckoutURL(context.Background(), ports.CheckoutRequest{
		PaymentID: 42,
		Amount:    decimal.NewFromInt(500000),
		OrderInfo: "Unlock full feature",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://pay.momo.vn/atm/x", result.PayURL)
	assert.Equal(t, "PAY-42-1690000000000", result.OrderID)
	assert.Equal(t, "req-1", result.RequestID)
	assert.Equal(t, 0, result.ResultCode)

	require.NotNil(t, captured)
	body, readErr := io.ReadAll(captured.Body)
	require.NoError(t, readErr)
	payload := string(body)
	assert.Contains(t, payload, `"amount":"500000"`)
	assert.Contains(t, payload, `"requestType":"payWithATM"`)
	assert.Contains(t, payload, `"orderId":"PAY-42-`)
	assert.Contains(t, payload, `"signature":"`)
	assert.Contains(t, payload, `"ipnUrl":"https://api.example.com/api/payments/momo/atm/ipn"`)
}

func TestAtmAdapter_CreateCheckoutURL_AmountRoundedHalfAwayFromZero(t *testing.T) {
	mockClient := new(MockHTTPClient)
	adapter := momo.NewAtmAdapter(testConfig(), mockClient, noopLogger())

	var captured *http.Request
	mockClient.On("Do", mock.AnythingOfType("*http.Request")).
		Run(func(args mock.Arguments) { captured = args.Get(0).(*http.Request) }).
		Return(jsonResponse(200, `{"resultCode":0,"payUrl":"https://pay.momo.vn/atm/x"}`), nil)

	_, err := adapter.CreateCheckoutURL(context.Background(), ports.CheckoutRequest{
		PaymentID: 7,
		Amount:    decimal.RequireFromString("1000.5"),
		OrderInfo: "info",
	})

	require.NoError(t, err)
	body, _ := io.ReadAll(captured.Body)
	assert.Contains(t, string(body), `"amount":"1001"`)
}

func TestAtmAdapter_CreateCheckoutURL_FallbackIdentifiers(t *testing.T) {
	mockClient := new(MockHTTPClient)
	adapter := momo.NewAtmAdapter(testConfig(), mockClient, noopLogger())

	mockClient.On("Do", mock.AnythingOfType("*http.Request")).
		Return(jsonResponse(200, `{"resultCode":0,"payUrl":"https://pay.momo.vn/atm/y"}`), nil)

	result, err := adapter.CreateCheckoutURL(context.Background(), ports.CheckoutRequest{
		PaymentID: 9,
		Amount:    decimal.NewFromInt(2000),
		OrderInfo: "info",
	})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.OrderID, "PAY-9-"))
	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, "Success", result.Message)
}

func TestAtmAdapter_CreateCheckoutURL_NetworkError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	adapter := momo.NewAtmAdapter(testConfig(), mockClient, noopLogger())

	mockClient.On("Do", mock.AnythingOfType("*http.Request")).
		Return(nil, errors.New("connection refused"))

	_, err := adapter.CreateCheckoutURL(context.Background(), ports.CheckoutRequest{
		PaymentID: 42,
		Amount:    decimal.NewFromInt(500000),
	})

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeProviderError, domain.GetErrorCode(err))
}

func TestAtmAdapter_CreateCheckoutURL_ProviderRejection(t *testing.T) {
	mockClient := new(MockHTTPClient)
	adapter := momo.NewAtmAdapter(testConfig(), mockClient, noopLogger())

	mockClient.On("Do", mock.AnythingOfType("*http.Request")).
		Return(jsonResponse(200, `{"resultCode":41,"message":"Duplicated order id"}`), nil)

	_, err := adapter.CreateCheckoutURL(context.Background(), ports.CheckoutRequest{
		PaymentID: 42,
		Amount:    decimal.NewFromInt(500000),
	})

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeProviderError, domain.GetErrorCode(err))
	assert.Contains(t, err.Error(), "Duplicated order id")
}

func TestAtmAdapter_CreateCheckoutURL_Non2xxStatus(t *testing.T) {
	mockClient := new(MockHTTPClient)
	adapter := momo.NewAtmAdapter(testConfig(), mockClient, noopLogger())

	mockClient.On("Do", mock.AnythingOfType("*http.Request")).
		Return(jsonResponse(503, `{}`), nil)

	_, err := adapter.CreateCheckoutURL(context.Background(), ports.CheckoutRequest{
		PaymentID: 42,
		Amount:    decimal.NewFromInt(500000),
	})

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeProviderError, domain.GetErrorCode(err))
}

func signedEnvelope(cfg momo.Config) ports.CallbackEnvelope {
	env := ports.CallbackEnvelope{
		PartnerCode:  cfg.PartnerCode,
		OrderID:      "PAY-42-1690000000000",
		RequestID:    "req-1",
		Amount:       "500000",
		OrderInfo:    "Unlock full feature",
		OrderType:    "momo_wallet",
		TransID:      "2147483647",
		ResultCode:   "0",
		Message:      "Success",
		PayType:      "atm",
		ResponseTime: "1690000001000",
	}
	env.Signature = momo.SignCallback(cfg.AccessKey, cfg.SecretKey, env)
	return env
}

func TestAtmAdapter_VerifyCallbackSignature(t *testing.T) {
	cfg := testConfig()
	adapter := momo.NewAtmAdapter(cfg, new(MockHTTPClient), noopLogger())

	env := signedEnvelope(cfg)
	assert.True(t, adapter.VerifyCallbackSignature(env))

	// Case-insensitive comparison.
	env.Signature = strings.ToUpper(env.Signature)
	assert.True(t, adapter.VerifyCallbackSignature(env))
}

func TestAtmAdapter_VerifyCallbackSignature_TamperedField(t *testing.T) {
	cfg := testConfig()
	adapter := momo.NewAtmAdapter(cfg, new(MockHTTPClient), noopLogger())

	for name, mutate := range map[string]func(*ports.CallbackEnvelope){
		"amount":     func(e *ports.CallbackEnvelope) { e.Amount = "999999" },
		"resultCode": func(e *ports.CallbackEnvelope) { e.ResultCode = "1" },
		"orderId":    func(e *ports.CallbackEnvelope) { e.OrderID = "PAY-43-1690000000000" },
	} {
		env := signedEnvelope(cfg)
		mutate(&env)
		assert.False(t, adapter.VerifyCallbackSignature(env), "tampered %s must be rejected", name)
	}
}

func TestAtmAdapter_VerifyCallbackSignature_MissingSignature(t *testing.T) {
	cfg := testConfig()
	adapter := momo.NewAtmAdapter(cfg, new(MockHTTPClient), noopLogger())

	env := signedEnvelope(cfg)
	env.Signature = ""
	assert.False(t, adapter.VerifyCallbackSignature(env))
}
