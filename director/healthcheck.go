package director

import "net/http"

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	output := []byte("{\"status\":\"UP\"}")
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write(output)
	if err != nil {
		http.Error(w, "couldn't report status", http.StatusInternalServerError)
		return
	}
}
