package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"chirho-events/internal/audit"
	"chirho-events/internal/seating/application"
	seating "chirho-events/internal/seating/domain"
)

const (
	contentCSV          = "text/csv"
	contentXLSX         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultMaxBodyBytes = 10 << 20
	defaultActor        = "api"
)

// Handler serves the import and section endpoints under /api/v1/events/.
type Handler struct {
	importer *application.Importer
	audit    audit.Logger
	maxBytes int64
	logger   *log.Logger
}

// NewHandler constructs a handler. auditLogger may be nil; maxBytes <= 0 uses 10 MiB.
func NewHandler(importer *application.Importer, auditLogger audit.Logger, maxBytes int64, logger *log.Logger) (*Handler, error) {
	if importer == nil {
		return nil, errors.New("seating handler: nil importer")
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{importer: importer, audit: auditLogger, maxBytes: maxBytes, logger: logger}, nil
}

// ServeHTTP handles /api/v1/events/{eventID}/imports/{kind} and /api/v1/events/{eventID}/sections.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/v1/events/")
	switch {
	case len(parts) == 3 && parts[1] == "imports":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleImport(w, r, parts[0], parts[2])
	case len(parts) == 2 && parts[1] == "sections":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSections(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type sectionView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Occupied  int       `json:"occupied"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request, eventID, rawKind string) {
	kind, err := seating.ParseKind(rawKind)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown import kind"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	upload, isXLSX, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "import file too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	var result seating.ImportResult
	if isXLSX {
		result, err = h.importer.ImportXLSX(r.Context(), eventID, kind, bytes.NewReader(upload))
	} else {
		lines := application.SplitContent(string(upload))
		result, err = h.importer.ImportCSV(r.Context(), eventID, kind, lines)
	}
	if err != nil && result.Success {
		h.logger.Printf("seating handler: import failed event=%s kind=%s err=%v", eventID, kind, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}

	h.logAudit(r, audit.Entry{
		EventID:       eventID,
		Action:        audit.ActionImportRun,
		ResourceType:  "import",
		ResourceID:    eventID + "/" + string(kind),
		Metadata:      audit.MarshalMetadata(result),
		PayloadDigest: audit.DigestJSON(upload),
	})

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleSections(w http.ResponseWriter, r *http.Request, eventID string) {
	kind, err := seating.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "kind must be seating or housing"})
		return
	}
	sections, err := h.importer.Sections(r.Context(), eventID, kind)
	if err != nil {
		h.logger.Printf("seating handler: list sections failed event=%s err=%v", eventID, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	views := make([]sectionView, 0, len(sections))
	for _, section := range sections {
		views = append(views, sectionView{
			ID:        section.ID,
			Kind:      string(section.Kind),
			Name:      section.Name,
			Capacity:  section.Capacity,
			Occupied:  section.Occupied,
			UpdatedAt: section.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// readUpload returns the uploaded bytes and whether they are a workbook.
func readUpload(r *http.Request) ([]byte, bool, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, false, err
			}
			return nil, false, errors.New(`multipart body must contain a "file" part`)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, false, err
		}
		partType, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
		isXLSX := partType == contentXLSX || strings.EqualFold(filepath.Ext(header.Filename), ".xlsx")
		return data, isXLSX, nil
	case contentXLSX:
		data, err := io.ReadAll(r.Body)
		return data, true, err
	case contentCSV, "text/plain", "application/csv", "":
		data, err := io.ReadAll(r.Body)
		return data, false, err
	default:
		return nil, false, errors.New("unsupported content type " + mediaType)
	}
}

func (h *Handler) logAudit(r *http.Request, entry audit.Entry) {
	if h.audit == nil {
		return
	}
	entry.Actor = actor(r)
	entry.IP = clientIP(r)
	entry.UserAgent = r.UserAgent()
	if err := h.audit.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit write failed: action=%s resource=%s err=%v", entry.Action, entry.ResourceID, err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func splitPath(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func actor(r *http.Request) string {
	if value := strings.TrimSpace(r.Header.Get("X-Actor")); value != "" {
		return value
	}
	return defaultActor
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
