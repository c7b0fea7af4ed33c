package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	for raw, want := range map[string]PaymentStatus{
		"PENDING":   StatusPending,
		"pending":   StatusPending,
		" Success ": StatusSuccess,
		"failed":    StatusFailed,
	} {
		got, ok := NormalizeStatus(raw)
		assert.True(t, ok, "raw %q", raw)
		assert.Equal(t, want, got)
	}

	for _, raw := range []string{"", "REFUNDED", "SUCCESSFUL", "0"} {
		_, ok := NormalizeStatus(raw)
		assert.False(t, ok, "raw %q", raw)
	}
}

func TestNormalizeMethod(t *testing.T) {
	got, ok := NormalizeMethod("momo")
	assert.True(t, ok)
	assert.Equal(t, MethodMomo, got)

	_, ok = NormalizeMethod("CASH")
	assert.False(t, ok)
}

func TestPaymentStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestCompany_IsActive(t *testing.T) {
	assert.True(t, (&Company{Status: CompanyActive}).IsActive())
	assert.False(t, (&Company{Status: CompanyInactive}).IsActive())
	assert.False(t, (&Company{Status: CompanyDeactivated}).IsActive())
	assert.False(t, (&Company{Status: "inactive"}).IsActive())
}
