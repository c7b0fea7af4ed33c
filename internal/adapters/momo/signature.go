package momo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/storix-vn/payment-service/internal/domain/ports"
)

// SignCreateRequest builds the canonical parameter string for a create-payment
// request and signs it. Key order is fixed by the provider contract.
func SignCreateRequest(accessKey, secretKey, amount, extraData, ipnURL, orderID, orderInfo, partnerCode, redirectURL, requestID, requestType string) string {
	raw := "accessKey=" + accessKey +
		"&amount=" + amount +
		"&extraData=" + extraData +
		"&ipnUrl=" + ipnURL +
		"&orderId=" + orderID +
		"&orderInfo=" + orderInfo +
		"&partnerCode=" + partnerCode +
		"&redirectUrl=" + redirectURL +
		"&requestId=" + requestID +
		"&requestType=" + requestType
	return HmacSHA256(raw, secretKey)
}

// SignCallback recomputes the signature a genuine provider callback carries.
// Absent fields contribute empty strings, matching provider behavior.
func SignCallback(accessKey, secretKey string, env ports.CallbackEnvelope) string {
	raw := "accessKey=" + accessKey +
		"&amount=" + env.Amount +
		"&extraData=" + env.ExtraData +
		"&message=" + env.Message +
		"&orderId=" + env.OrderID +
		"&orderInfo=" + env.OrderInfo +
		"&orderType=" + env.OrderType +
		"&partnerCode=" + env.PartnerCode +
		"&payType=" + env.PayType +
		"&requestId=" + env.RequestID +
		"&responseTime=" + env.ResponseTime +
		"&resultCode=" + env.ResultCode +
		"&transId=" + env.TransID
	return HmacSHA256(raw, secretKey)
}

// HmacSHA256 returns the lowercase hex HMAC-SHA256 of data under key.
func HmacSHA256(data, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// EqualSignatures compares two hex signatures case-insensitively in constant
// time.
func EqualSignatures(expected, actual string) bool {
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(actual)))
}
