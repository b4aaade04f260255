package director

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the HTTP surface. ledger may be nil.
func NewRouter(registrar *Registrar, ledger RunLister) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/register-suites", registrar.RegisterSuitesHandler).Methods(http.MethodPost)
	r.HandleFunc("/suites/{suiteName}/runs", SuiteRunsHandler(ledger)).Methods(http.MethodGet)
	r.HandleFunc("/healthcheck", HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}
