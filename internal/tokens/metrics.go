package tokens

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitdash_token_exchanges_total",
		Help: "Authorization code exchanges by provider and result.",
	}, []string{"provider", "result"})
	refreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitdash_token_refreshes_total",
		Help: "Access token refreshes by provider and result.",
	}, []string{"provider", "result"})
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitdash_provider_requests_total",
		Help: "Authenticated provider resource calls by provider and HTTP status.",
	}, []string{"provider", "code"})
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusLabel(status int) string {
	if status == 0 {
		return "transport_error"
	}
	return strconv.Itoa(status)
}
