package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chirho-events/internal/audit"
	"chirho-events/internal/seating/application"
	seating "chirho-events/internal/seating/domain"
	"chirho-events/internal/seating/infrastructure/memory"
)

func newTestHandler(t *testing.T, maxBytes int64) (*Handler, *audit.MemoryLogger) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	repo := memory.NewRepository()
	repo.AddCandidates("retreat-2026",
		seating.NewCandidate("ind-1", seating.ParticipantIndividual, "IND-100", "Jane Doe", "St. Mary's Parish"),
		seating.NewCandidate("grp-1", seating.ParticipantGroup, "GRP-200", "Maria O'Neil", "Sacred Heart Youth"),
	)
	importer, err := application.NewImporter(repo, application.WithLogger(logger))
	if err != nil {
		t.Fatalf("importer: %v", err)
	}
	auditLog := &audit.MemoryLogger{}
	handler, err := NewHandler(importer, auditLog, maxBytes, logger)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler, auditLog
}

func postCSV(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func decodeResult(t *testing.T, resp *httptest.ResponseRecorder) seating.ImportResult {
	t.Helper()
	var result seating.ImportResult
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v (%s)", err, resp.Body.String())
	}
	return result
}

func TestImportCSVEndpoint(t *testing.T) {
	handler, auditLog := newTestHandler(t, 0)
	resp := postCSV(handler, "/api/v1/events/retreat-2026/imports/seating",
		"Section Name,Participant Name\nA,Jane Doe\nA,Jane Doe\n")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	result := decodeResult(t, resp)
	if !result.Success || result.AssignmentsCreated != 1 || len(result.Warnings) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	entries := auditLog.Entries()
	if len(entries) != 1 || entries[0].Action != audit.ActionImportRun || entries[0].PayloadDigest == "" {
		t.Fatalf("unexpected audit entries %+v", entries)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/retreat-2026/sections?kind=seating", nil)
	listResp := httptest.NewRecorder()
	handler.ServeHTTP(listResp, req)
	var sections []sectionView
	if err := json.Unmarshal(listResp.Body.Bytes(), &sections); err != nil {
		t.Fatalf("decode sections: %v", err)
	}
	if len(sections) != 1 || sections[0].Name != "A" || sections[0].Occupied != 1 {
		t.Fatalf("unexpected sections %+v", sections)
	}
}

func TestImportMissingColumnsIsBadRequest(t *testing.T) {
	handler, _ := newTestHandler(t, 0)
	resp := postCSV(handler, "/api/v1/events/retreat-2026/imports/housing", "Participant Name\nJane Doe\n")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	result := decodeResult(t, resp)
	if result.Success || len(result.Errors) != 1 || result.Errors[0].Message != "Missing required columns: room" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestImportMultipartUpload(t *testing.T) {
	handler, _ := newTestHandler(t, 0)
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "rooms.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte("Room,Registration ID\nCabin 4,GRP-200\n"))
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/retreat-2026/imports/housing", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if result := decodeResult(t, resp); result.AssignmentsCreated != 1 || result.SectionsCreated != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestImportRequestErrors(t *testing.T) {
	handler, _ := newTestHandler(t, 16)

	if resp := postCSV(handler, "/api/v1/events/retreat-2026/imports/parking", "Section\n"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown kind, got %d", resp.Code)
	}

	large := "Section Name,Participant Name\n" + strings.Repeat("A,Jane Doe\n", 10)
	if resp := postCSV(handler, "/api/v1/events/retreat-2026/imports/seating", large); resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/retreat-2026/imports/seating", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported content type, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events/retreat-2026/imports/seating", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/events/retreat-2026/imports/seating", strings.NewReader("not a workbook"))
	req.Header.Set("Content-Type", contentXLSX)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unreadable workbook, got %d", resp.Code)
	}
}
