package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/ifcglb/internal/domain/conversion"
)

const (
	uploadField    = "file"
	defaultUpload  = "upload.ifc"
	ifcExtension   = ".ifc"
	glbExtension   = ".glb"
	uploadFileMode = 0o644
)

var errPayloadTooLarge = errors.New("upload exceeds limit")

// ConvertConfig tells ConvertHandler where to stage files and how much to accept.
type ConvertConfig struct {
	InDir          string
	OutDir         string
	MaxUploadBytes int64
}

// ConvertHandler serves POST /convert.
type ConvertHandler struct {
	svc *conversion.Service
	cfg ConvertConfig
	log *zap.Logger
}

// NewConvertHandler creates a ConvertHandler. log may be nil.
func NewConvertHandler(svc *conversion.Service, cfg ConvertConfig, log *zap.Logger) *ConvertHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConvertHandler{svc: svc, cfg: cfg, log: log}
}

// ConvertResponse is the body of a successful conversion.
type ConvertResponse struct {
	Status     string `json:"status"`
	ID         string `json:"id"`
	InputFile  string `json:"inputFile"`
	OutputFile string `json:"outputFile"`
	DurationMs int64  `json:"durationMs"`
	SizeBytes  int64  `json:"sizeBytes"`
}

// Convert streams the first multipart "file" part to disk, converts it with
// options from the query string, and reports the result.
//
// Flow:
//  1. Stream upload → 413 over the limit, 400 when no file part
//  2. Reject non-.ifc names → 415
//  3. Parse query options → 400 when invalid
//  4. Run the conversion → status mapped from the converter outcome
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	if err := ensureDirs(h.cfg.InDir, h.cfg.OutDir); err != nil {
		h.log.Error("prepare storage", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "Conversion storage is not writable.")
		return
	}

	id := conversion.NewID()
	inputPath := filepath.Join(h.cfg.InDir, id+ifcExtension)
	outputPath := filepath.Join(h.cfg.OutDir, id+glbExtension)

	originalName, received, err := h.receiveUpload(r, inputPath)
	switch {
	case errors.Is(err, errPayloadTooLarge):
		removeQuietly(inputPath)
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large",
			fmt.Sprintf("Upload exceeds limit of %d MB", h.cfg.MaxUploadBytes/(1024*1024)))
		return
	case err != nil:
		removeQuietly(inputPath)
		h.log.Warn("read upload", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusBadRequest, "missing_file", "Upload could not be read as multipart/form-data.")
		return
	case !received:
		removeQuietly(inputPath)
		writeError(w, http.StatusBadRequest, "missing_file", "No IFC file was provided in the 'file' field.")
		return
	}

	if originalName == "" {
		originalName = defaultUpload
	}
	if !strings.HasSuffix(strings.ToLower(originalName), ifcExtension) {
		removeQuietly(inputPath)
		writeError(w, http.StatusUnsupportedMediaType, "invalid_type", "Only .ifc files are accepted.")
		return
	}

	opts := conversion.ParseOptionsQuery(r.URL.Query())
	if err := opts.Validate(); err != nil {
		removeQuietly(inputPath)
		writeError(w, http.StatusBadRequest, string(conversion.OutcomeInvalidOptions), err.Error())
		return
	}

	rec, err := h.svc.Convert(r.Context(), conversion.ConvertInput{
		ID:         id,
		InputName:  originalName,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Options:    opts,
	})
	if err != nil {
		// without a record nothing references the upload, and the janitor
		// never hears about it
		if rec == nil {
			removeQuietly(inputPath)
			removeQuietly(outputPath)
		}
		h.writeServiceError(w, id, err)
		return
	}

	if !rec.OK() {
		removeQuietly(outputPath)
		writeError(w, rec.Outcome.HTTPStatus(), string(rec.Outcome), rec.Outcome.Message(rec.StatusCode))
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		Status:     "ok",
		ID:         rec.ID,
		InputFile:  rec.InputName,
		OutputFile: rec.OutputPath,
		DurationMs: rec.DurationMs,
		SizeBytes:  rec.SizeBytes,
	})
}

func (h *ConvertHandler) writeServiceError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, conversion.ErrConverterUnavailable):
		h.log.Error("converter unavailable", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "library_unavailable", conversion.OutcomeLoadFailed.Message(0))
	case errors.Is(err, conversion.ErrInvalidOptions):
		writeError(w, http.StatusBadRequest, string(conversion.OutcomeInvalidOptions), err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "server_busy", "All conversion slots are busy; retry later.")
	case errors.Is(err, context.Canceled):
		h.log.Info("conversion cancelled", zap.String("id", id))
		writeError(w, http.StatusServiceUnavailable, "cancelled", "Request was cancelled before the conversion started.")
	default:
		h.log.Error("conversion failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Conversion could not be recorded.")
	}
}

// receiveUpload copies the first file part named "file" to dst. Other parts
// are skipped.
func (h *ConvertHandler) receiveUpload(r *http.Request, dst string) (string, bool, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return "", false, err
	}

	var (
		name     string
		received bool
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return name, received, nil
		}
		if err != nil {
			return name, received, err
		}
		if received || part.FormName() != uploadField || part.FileName() == "" {
			part.Close()
			continue
		}

		name = part.FileName()
		// an oversized part is not drained; the server drops the rest
		if err := writePart(part, dst, h.cfg.MaxUploadBytes); err != nil {
			return name, false, err
		}
		part.Close()
		received = true
	}
}

// writePart streams part into dst and fails once more than limit bytes arrive.
func writePart(part *multipart.Part, dst string, limit int64) error {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, uploadFileMode)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	n, copyErr := io.Copy(f, io.LimitReader(part, limit+1))
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("write upload: %w", copyErr)
	}
	if n > limit {
		return errPayloadTooLarge
	}
	if closeErr != nil {
		return fmt.Errorf("close upload: %w", closeErr)
	}
	return nil
}

func ensureDirs(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}
