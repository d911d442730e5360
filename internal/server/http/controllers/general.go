package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/luismedel/quiu/internal/runtime"
)

// GeneralController serves endpoints that are not tied to a channel.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given router.
func (c *GeneralController) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", c.handleHealth).Methods(http.MethodGet)
}

// handleHealth returns 200 {"status":"ok"} while the registry is serving and
// 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
