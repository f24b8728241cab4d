package handlers

import "net/http"

// HealthHandler serves GET /health.
type HealthHandler struct {
	converter    string
	nativeLoaded func() bool
}

// NewHealthHandler creates a HealthHandler. nativeLoaded may be nil.
func NewHealthHandler(converter string, nativeLoaded func() bool) *HealthHandler {
	return &HealthHandler{converter: converter, nativeLoaded: nativeLoaded}
}

type healthResponse struct {
	Status       string `json:"status"`
	Converter    string `json:"converter"`
	NativeLoaded bool   `json:"nativeLoaded"`
}

// Health always answers 200 while the process serves; library state is
// informational only.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	loaded := false
	if h.nativeLoaded != nil {
		loaded = h.nativeLoaded()
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Converter:    h.converter,
		NativeLoaded: loaded,
	})
}
