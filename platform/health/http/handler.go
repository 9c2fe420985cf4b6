package http

import (
	"encoding/json"
	"net/http"
)

// Check описывает одну проверку готовности (например, гидратация корзины)
type Check struct {
	Name  string
	Ready func() bool
}

type response struct {
	Status string          `json:"status"`
	Checks map[string]bool `json:"checks,omitempty"`
}

// Handler возвращает HTTP handler для health endpoint.
// 200 {"status":"ok"} если все проверки готовы (или проверок нет),
// иначе 503 {"status":"not ready"} с картой проверок.
func Handler(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := response{Status: "ok"}
		if len(checks) > 0 {
			resp.Checks = make(map[string]bool, len(checks))
		}

		for _, c := range checks {
			ready := c.Ready == nil || c.Ready()
			resp.Checks[c.Name] = ready
			if !ready {
				resp.Status = "not ready"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
