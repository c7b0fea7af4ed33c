package auth

import "context"

type companyIDKey struct{}

// WithCompanyID stamps the caller's company id onto the context. The id is
// resolved by the upstream authentication layer, not by this service.
func WithCompanyID(ctx context.Context, companyID int64) context.Context {
	return context.WithValue(ctx, companyIDKey{}, companyID)
}

// CompanyIDFromContext returns the caller's company id, if one was attached.
func CompanyIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(companyIDKey{}).(int64)
	return id, ok
}
