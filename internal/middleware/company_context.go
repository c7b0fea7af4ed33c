package middleware

import (
	"net/http"
	"strconv"

	"github.com/storix-vn/payment-service/internal/auth"
)

// CompanyIDHeader carries the authenticated caller's company id, set by the
// upstream gateway after token validation.
const CompanyIDHeader = "X-Company-Id"

// CompanyContext extracts the caller's company id from the trusted header and
// attaches it to the request context. Requests without the header pass through
// untouched; handlers that require a caller reject them.
func CompanyContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get(CompanyIDHeader); raw != "" {
			if companyID, err := strconv.ParseInt(raw, 10, 64); err == nil && companyID > 0 {
				r = r.WithContext(auth.WithCompanyID(r.Context(), companyID))
			}
		}
		next.ServeHTTP(w, r)
	})
}
