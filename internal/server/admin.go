package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/ThiagoRGoveia/club-power/internal/ingestion"
	"github.com/ThiagoRGoveia/club-power/internal/models"
	"go.uber.org/zap"
)

const (
	AdminTokenHeader = "X-Admin-Token"
	uploadField      = "file"
)

var ErrUnauthorized = errors.New("unauthorized")

// Ingester runs one uploaded feed through the ingest pipeline.
type Ingester interface {
	Execute(ctx context.Context, upload ingestion.Upload) (*models.IngestResult, error)
}

type AdminService struct {
	ingester       Ingester
	adminToken     string
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewAdminService(ingester Ingester, adminToken string, maxUploadBytes int64, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		ingester:       ingester,
		adminToken:     adminToken,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RequireAdminToken lets a request through only when its admin header matches
// the configured secret. A server without a secret refuses every request.
func (h *AdminService) RequireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			h.logger.Error("Admin upload refused: ADMIN_TOKEN is not configured")
			writeError(w, http.StatusInternalServerError, "admin token is not configured on the server")
			return
		}
		provided := r.Header.Get(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.adminToken)) != 1 {
			h.logger.Warn("Admin upload refused", zap.Error(ErrUnauthorized), zap.String("remote", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, ErrUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

type uploadResponse struct {
	OK bool `json:"ok"`
	*models.IngestResult
}

// UploadBase replaces the progress snapshot with the uploaded file.
func (h *AdminService) UploadBase(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "the file exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "a multipart field named 'file' is required")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read the uploaded file")
		return
	}

	result, err := h.ingester.Execute(r.Context(), ingestion.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Payload:     payload,
	})
	if err != nil {
		writeError(w, statusForIngestError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{OK: true, IngestResult: result})
}

// statusForIngestError maps the ingest taxonomy onto HTTP: anything wrong with
// the file is the caller's fault, anything else is ours.
func statusForIngestError(err error) int {
	var schemaErr *ingestion.SchemaError
	var parseErr *ingestion.ParseError
	switch {
	case errors.Is(err, ingestion.ErrUnsupportedFormat),
		errors.Is(err, ingestion.ErrEmptyBatch),
		errors.As(err, &schemaErr),
		errors.As(err, &parseErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
