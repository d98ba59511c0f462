package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ReTrace-Network/ledger_layer/internal/app/metrics"
)

// MetricsMiddleware records HTTP metrics for each request.
func MetricsMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return metrics.InstrumentHandler(next)
	}
}
