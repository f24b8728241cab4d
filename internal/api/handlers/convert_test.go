package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/matiasleandrokruk/ifcglb/internal/domain/conversion"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/builtin"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/glb"
)

func TestConvertHandler_Success(t *testing.T) {
	t.Parallel()

	h, cfg := newConvertHandler(t, newService(t, builtin.New()), 1<<20)

	rr := httptest.NewRecorder()
	h.Convert(rr, multipartRequest(t, "?units=millimeter&lod=HIGH",
		filePart{"note", "", "ignored"},
		filePart{"file", "Tower.IFC", sampleIFC},
	))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var resp ConvertResponse
	if err := jsonDecode(rr, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.InputFile != "Tower.IFC" || resp.ID == "" {
		t.Errorf("resp = %+v", resp)
	}
	if !strings.HasPrefix(resp.OutputFile, cfg.OutDir) || !strings.HasSuffix(resp.OutputFile, resp.ID+".glb") {
		t.Errorf("OutputFile = %q; want %s/<id>.glb", resp.OutputFile, cfg.OutDir)
	}

	f, err := os.Open(resp.OutputFile)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	hdr, err := glb.ReadHeader(f)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if int64(hdr.Length) != resp.SizeBytes {
		t.Errorf("SizeBytes = %d; header length %d", resp.SizeBytes, hdr.Length)
	}
	if dirEntries(t, cfg.InDir) != 1 {
		t.Error("uploaded input was not kept in InDir")
	}
}

func TestConvertHandler_OnlyFirstFilePartUsed(t *testing.T) {
	t.Parallel()

	h, _ := newConvertHandler(t, newService(t, builtin.New()), 1<<20)

	rr := httptest.NewRecorder()
	h.Convert(rr, multipartRequest(t, "",
		filePart{"file", "first.ifc", sampleIFC},
		filePart{"file", "second.txt", "not ifc"},
	))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body %s)", rr.Code, rr.Body.String())
	}
	if got := decodeJSON(t, rr)["inputFile"]; got != "first.ifc" {
		t.Errorf("inputFile = %v; want first.ifc", got)
	}
}

func TestConvertHandler_RequestErrors(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("x", 64)
	tests := []struct {
		name     string
		query    string
		parts    []filePart
		wantCode int
		wantErr  string
	}{
		{"no file part", "", []filePart{{"other", "", "value"}}, http.StatusBadRequest, "missing_file"},
		{"file field without filename", "", []filePart{{"file", "", sampleIFC}}, http.StatusBadRequest, "missing_file"},
		{"too large", "", []filePart{{"file", "big.ifc", big}}, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"wrong extension", "", []filePart{{"file", "model.step", sampleIFC}}, http.StatusUnsupportedMediaType, "invalid_type"},
		{"invalid options", "?triangulation_tolerance=-1", []filePart{{"file", "m.ifc", sampleIFC}}, http.StatusBadRequest, "invalid_options"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, cfg := newConvertHandler(t, newService(t, builtin.New()), 32)
			rr := httptest.NewRecorder()
			h.Convert(rr, multipartRequest(t, tt.query, tt.parts...))

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d; want %d (body %s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			resp := decodeJSON(t, rr)
			if resp["error"] != tt.wantErr {
				t.Errorf("error = %v; want %s", resp["error"], tt.wantErr)
			}
			if msg, _ := resp["message"].(string); msg == "" {
				t.Error("message is empty")
			}
			if n := dirEntries(t, cfg.InDir); n != 0 {
				t.Errorf("InDir has %d files; want rejected upload removed", n)
			}
		})
	}
}

func TestConvertHandler_NotMultipart(t *testing.T) {
	t.Parallel()

	h, _ := newConvertHandler(t, newService(t, builtin.New()), 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(`{"file":"x"}`))
	req.Header.Set(headerContentType, mimeJSON)

	rr := httptest.NewRecorder()
	h.Convert(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rr.Code)
	}
	if got := decodeJSON(t, rr)["error"]; got != "missing_file" {
		t.Errorf("error = %v; want missing_file", got)
	}
}

func TestConvertHandler_ConverterStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     int
		wantCode int
		wantErr  string
	}{
		{conversion.StatusInputNotFound, http.StatusBadRequest, "input_not_found"},
		{conversion.StatusInvalidOptions, http.StatusBadRequest, "invalid_options"},
		{conversion.StatusParseFailed, http.StatusInternalServerError, "conversion_failed"},
		{conversion.StatusGeometryFailed, http.StatusInternalServerError, "conversion_failed"},
		{conversion.StatusWriteFailed, http.StatusInternalServerError, "conversion_failed"},
		{conversion.StatusNativeException, http.StatusInternalServerError, "unknown_error"},
		{42, http.StatusInternalServerError, "unknown_error"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.wantErr, func(t *testing.T) {
			t.Parallel()

			h, _ := newConvertHandler(t, newService(t, stubConverter{code: tt.code}), 1<<20)
			rr := httptest.NewRecorder()
			h.Convert(rr, multipartRequest(t, "", filePart{"file", "m.ifc", sampleIFC}))

			if rr.Code != tt.wantCode {
				t.Fatalf("code %d: status = %d; want %d", tt.code, rr.Code, tt.wantCode)
			}
			if got := decodeJSON(t, rr)["error"]; got != tt.wantErr {
				t.Errorf("code %d: error = %v; want %s", tt.code, got, tt.wantErr)
			}
		})
	}
}

func TestConvertHandler_LibraryUnavailable_Returns503(t *testing.T) {
	t.Parallel()

	svc := newService(t, stubConverter{err: errors.New("dlopen libifcglb.so: no such file")})
	h, _ := newConvertHandler(t, svc, 1<<20)

	rr := httptest.NewRecorder()
	h.Convert(rr, multipartRequest(t, "", filePart{"file", "m.ifc", sampleIFC}))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d; want 503", rr.Code)
	}
	if got := decodeJSON(t, rr)["error"]; got != "library_unavailable" {
		t.Errorf("error = %v; want library_unavailable", got)
	}

	items, total, err := svc.List(t.Context(), conversion.ListInput{Limit: 10})
	if err != nil || total != 1 || items[0].Outcome != conversion.OutcomeLoadFailed {
		t.Fatalf("history = %v total=%d err=%v; want one load_failed record", items, total, err)
	}
}

// blockingConverter holds every conversion until release is closed.
type blockingConverter struct {
	started chan struct{}
	release chan struct{}
}

func (b blockingConverter) Name() string { return "blocking" }

func (b blockingConverter) Convert(ctx context.Context, _, _, _ string) (int, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return conversion.StatusWriteFailed, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestConvertHandler_ServerBusy_RemovesRejectedUpload(t *testing.T) {
	t.Parallel()

	conv := blockingConverter{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := conversion.NewService(mustOpenDBWithMigrations(t), conv, nil, nil, conversion.Config{
		MaxConcurrent: 1,
		QueueTimeout:  20 * time.Millisecond,
	})
	h, cfg := newConvertHandler(t, svc, 1<<20)

	firstReq := multipartRequest(t, "", filePart{"file", "a.ifc", sampleIFC})
	first := make(chan int, 1)
	go func() {
		rr := httptest.NewRecorder()
		h.Convert(rr, firstReq)
		first <- rr.Code
	}()
	select {
	case <-conv.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first conversion did not start")
	}

	rr := httptest.NewRecorder()
	h.Convert(rr, multipartRequest(t, "", filePart{"file", "b.ifc", sampleIFC}))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d; want 503 (body %s)", rr.Code, rr.Body.String())
	}
	if got := decodeJSON(t, rr)["error"]; got != "server_busy" {
		t.Errorf("error = %v; want server_busy", got)
	}
	if n := dirEntries(t, cfg.InDir); n != 1 {
		t.Errorf("InDir entries = %d; want 1 (only the in-flight upload)", n)
	}

	close(conv.release)
	select {
	case code := <-first:
		if code != http.StatusInternalServerError {
			t.Errorf("first status = %d; want 500", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first conversion did not finish")
	}

	_, total, err := svc.List(context.Background(), conversion.ListInput{Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 {
		t.Errorf("recorded conversions = %d; want 1", total)
	}
}
