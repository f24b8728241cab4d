package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/ifcglb/internal/domain/conversion"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/sqlite"
)

const sampleIFC = "ISO-10303-21;\nHEADER;\nENDSEC;\nDATA;\nENDSEC;\nEND-ISO-10303-21;\n"

// stubConverter returns a fixed status or error without touching the output.
type stubConverter struct {
	code int
	err  error
}

func (s stubConverter) Name() string { return "stub" }

func (s stubConverter) Convert(context.Context, string, string, string) (int, error) {
	return s.code, s.err
}

// mustOpenDBWithMigrations opens an in-memory DB with migrations applied.
func mustOpenDBWithMigrations(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("NewDB error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp error = %v", err)
	}
	return db
}

func newService(t *testing.T, c conversion.Converter) *conversion.Service {
	t.Helper()
	return conversion.NewService(mustOpenDBWithMigrations(t), c, nil, nil, conversion.Config{MaxConcurrent: 2})
}

func newConvertHandler(t *testing.T, svc *conversion.Service, limit int64) (*ConvertHandler, ConvertConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := ConvertConfig{
		InDir:          dir + "/in",
		OutDir:         dir + "/out",
		MaxUploadBytes: limit,
	}
	return NewConvertHandler(svc, cfg, nil), cfg
}

type filePart struct {
	field, name, content string
}

// multipartRequest builds POST /convert with the given parts.
func multipartRequest(t *testing.T, query string, parts ...filePart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		var (
			fw  io.Writer
			err error
		)
		if p.name == "" {
			fw, err = mw.CreateFormField(p.field)
		} else {
			fw, err = mw.CreateFormFile(p.field, p.name)
		}
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(p.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/convert"+query, &body)
	req.Header.Set(headerContentType, mw.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json unmarshal error = %v (body %q)", err, rr.Body.String())
	}
	return resp
}

func jsonDecode(rr *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(rr.Body.Bytes(), v)
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0
		}
		t.Fatal(err)
	}
	return len(entries)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// convertOK runs one successful builtin conversion and returns its id.
func convertOK(t *testing.T, h *ConvertHandler, name string) string {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Convert(rr, multipartRequest(t, "", filePart{"file", name, sampleIFC}))
	if rr.Code != http.StatusOK {
		t.Fatalf("Convert status = %d; want 200 (body %s)", rr.Code, rr.Body.String())
	}
	id, _ := decodeJSON(t, rr)["id"].(string)
	return id
}
