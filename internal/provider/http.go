package provider

import (
	"fmt"
	"net/http"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
)

// ClassifyStatus maps a non-2xx provider response to a typed error. Shared
// by the HTTP adapters so status handling stays consistent across providers.
func ClassifyStatus(provider string, status int, body []byte) error {
	err := fmt.Errorf("status %d: %s", status, truncate(body, 256))

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewProviderError(provider, domain.KindAuth, err)
	case status == http.StatusNotFound:
		return domain.NewProviderError(provider, domain.KindNoData, err)
	case status == http.StatusTooManyRequests:
		return domain.NewProviderError(provider, domain.KindRateLimited, err)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return domain.NewProviderError(provider, domain.KindInvalidParam, err)
	case status >= 500:
		return domain.NewProviderError(provider, domain.KindServerError, err)
	default:
		return domain.NewProviderError(provider, domain.KindNetwork, err)
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
