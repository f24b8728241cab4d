package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/ifcglb/internal/domain/conversion"
)

// ConversionHandler serves the conversion history.
type ConversionHandler struct {
	svc *conversion.Service
	log *zap.Logger
}

// NewConversionHandler creates a ConversionHandler. log may be nil.
func NewConversionHandler(svc *conversion.Service, log *zap.Logger) *ConversionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConversionHandler{svc: svc, log: log}
}

// ListConversionsResponse is the response body for listing conversions.
type ListConversionsResponse struct {
	Data []*conversion.Conversion `json:"data"`
	Meta Meta                     `json:"meta"`
}

// ListConversions handles GET /conversions, newest first.
func (h *ConversionHandler) ListConversions(w http.ResponseWriter, r *http.Request) {
	page := parsePaginationParams(r)

	items, total, err := h.svc.List(r.Context(), conversion.ListInput{Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		h.log.Error("list conversions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list conversions.")
		return
	}

	writeJSON(w, http.StatusOK, ListConversionsResponse{
		Data: items,
		Meta: Meta{Total: total, Limit: page.Limit, Offset: page.Offset},
	})
}

// GetConversion handles GET /conversions/{id}.
func (h *ConversionHandler) GetConversion(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DownloadGLB handles GET /conversions/{id}/glb.
func (h *ConversionHandler) DownloadGLB(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !rec.OK() {
		writeError(w, http.StatusConflict, string(rec.Outcome), "Conversion did not produce an output.")
		return
	}

	f, err := os.Open(rec.OutputPath)
	if err != nil {
		writeError(w, http.StatusGone, "output_missing", "Converted file is no longer available.")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusGone, "output_missing", "Converted file is no longer available.")
		return
	}

	w.Header().Set(headerContentType, mimeGLB)
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName(rec)+`"`)
	http.ServeContent(w, r, "", info.ModTime(), f)
}

func (h *ConversionHandler) lookup(w http.ResponseWriter, r *http.Request) (*conversion.Conversion, bool) {
	id := chi.URLParam(r, "id")
	rec, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, conversion.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Conversion not found.")
		return nil, false
	}
	if err != nil {
		h.log.Error("get conversion", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load conversion.")
		return nil, false
	}
	return rec, true
}

// downloadName derives "<upload base name>.glb" for the attachment header.
func downloadName(rec *conversion.Conversion) string {
	base := filepath.Base(rec.InputName)
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	if base == "" || base == "." || base == "/" {
		base = rec.ID
	}
	return sanitizeHeaderValue(base) + glbExtension
}

func sanitizeHeaderValue(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c < 0x20 || c == '"' || c == '\\' || c == 0x7f {
			c = '_'
		}
		out = append(out, c)
	}
	return string(out)
}
