package director

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/suitedirector/suitedirector/types"
)

// RunLister reads ledger rows.
type RunLister interface {
	RunsForSuite(ctx context.Context, suiteName string) ([]types.DeviceRun, error)
}

// SuiteRunsHandler serves GET /suites/{suiteName}/runs. Without a ledger it
// returns an empty list.
func SuiteRunsHandler(ledger RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		suiteName := mux.Vars(r)["suiteName"]

		runs := []types.DeviceRun{}
		if ledger != nil {
			var err error
			runs, err = ledger.RunsForSuite(r.Context(), suiteName)
			if err != nil {
				ErrorLogger(LogHolder{SuiteName: suiteName, Message: err.Error()})
				http.Error(w, "couldn't read suite runs", http.StatusInternalServerError)
				return
			}
		}

		writeJSON(w, http.StatusOK, runs)
	}
}
