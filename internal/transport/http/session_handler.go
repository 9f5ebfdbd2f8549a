package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mitchens84/APPLE-HEALTH/internal/config"
	apierrors "github.com/mitchens84/APPLE-HEALTH/internal/errors"
	"github.com/mitchens84/APPLE-HEALTH/internal/exporter"
	"github.com/mitchens84/APPLE-HEALTH/internal/middleware"
	"github.com/mitchens84/APPLE-HEALTH/internal/report"
	"github.com/mitchens84/APPLE-HEALTH/internal/services"
)

const (
	// uploadFieldName is the multipart form field carrying export.xml.
	uploadFieldName = "file"

	// uploadMemoryLimit bounds how much of a multipart upload stays in
	// memory before spilling to temp files.
	uploadMemoryLimit = 32 << 20

	// archiveFileName is the download name for the session zip.
	archiveFileName = "apple_health_data.zip"
)

type contextKey string

const sessionContextKey contextKey = "session"

// extractRequest is the body of POST /datasets.
type extractRequest struct {
	Type string `json:"type" validate:"required,healthtype"`
}

// processRequest is the optional body of POST /process.
type processRequest struct {
	Types    []string `json:"types" validate:"dive,healthtype"`
	Workouts bool     `json:"workouts"`
}

// SessionHandler handles upload session HTTP requests
type SessionHandler struct {
	sessions     *services.SessionManager
	processing   ProcessingServiceInterface
	validation   *middleware.ValidationMiddleware
	errorHandler *apierrors.ErrorHandler
	maxUpload    int64
	logger       *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessions *services.SessionManager,
	processing ProcessingServiceInterface,
	validation *middleware.ValidationMiddleware,
	cfg *config.Config,
	logger *slog.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		processing:   processing,
		validation:   validation,
		errorHandler: apierrors.NewErrorHandler(logger, false),
		maxUpload:    cfg.MaxUploadBytes(),
		logger:       logger.With(slog.String("handler", "sessions")),
	}
}

// Routes returns the session API router
func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.CreateSession)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)

		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Get("/types", h.ListTypes)
		r.Get("/report", h.GetReport)
		r.Get("/archive", h.DownloadArchive)
		r.Get("/files/{filename}", h.DownloadFile)

		r.With(
			middleware.ContentTypeValidator("application/json"),
			h.validation.ValidateRequest,
		).Post("/datasets", h.ExtractDataset)

		r.Post("/workouts", h.ExtractWorkouts)

		// The body is optional here, so no content type middleware.
		r.With(h.validation.ValidateRequest).Post("/process", h.Process)
	})

	return r
}

// SessionCtx loads the session named in the URL into the request context.
func (h *SessionHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")

		sess, err := h.sessions.Get(id)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *services.Session {
	sess, _ := ctx.Value(sessionContextKey).(*services.Session)
	return sess
}

func sessionInfo(sess *services.Session) map[string]interface{} {
	return map[string]interface{}{
		"id":         sess.ID,
		"created_at": sess.CreatedAt.UTC().Format(time.RFC3339),
		"datasets":   sess.Report.Len(),
	}
}

// CreateSession handles POST /api/sessions. The export file arrives as
// multipart form data in the "file" field.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	if r.ContentLength > h.maxUpload {
		h.errorHandler.HandleError(w, r, apierrors.ErrUploadTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(uploadFieldName,
			"multipart field \"file\" with the export file is required"))
		return
	}
	defer file.Close()

	h.logger.InfoContext(r.Context(), "export upload received",
		slog.String("request_id", reqID),
		slog.String("filename", header.Filename),
		slog.Int64("size_bytes", header.Size))

	sess, err := h.sessions.Create(r.Context(), file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   sessionInfo(sess),
	})
}

// GetSession handles GET /api/sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   sessionInfo(sess),
	})
}

// DeleteSession handles DELETE /api/sessions/{sessionID}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   map[string]string{"id": sess.ID},
	})
}

// ListTypes handles GET /api/sessions/{sessionID}/types
func (h *SessionHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	types, err := h.processing.ListTypes(r.Context(), sess)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	data := make([]map[string]string, len(types))
	for i, rawType := range types {
		data[i] = map[string]string{
			"type": rawType,
			"name": report.CleanMetricName(rawType),
		}
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
		"count":  len(types),
	})
}

// ExtractDataset handles POST /api/sessions/{sessionID}/datasets
func (h *SessionHandler) ExtractDataset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req extractRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	summary, err := h.processing.ExtractDataset(r.Context(), sess, req.Type)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "dataset extracted",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("dataset", summary.Name),
		slog.Int("records", summary.RecordCount))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// ExtractWorkouts handles POST /api/sessions/{sessionID}/workouts
func (h *SessionHandler) ExtractWorkouts(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	summary, err := h.processing.ExtractWorkouts(r.Context(), sess)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// Process handles POST /api/sessions/{sessionID}/process. Without a body the
// whole export is processed: every detected record type plus workouts.
func (h *SessionHandler) Process(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req processRequest
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		if err := h.validation.ValidateStruct(req); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
	}

	if len(req.Types) == 0 && !req.Workouts {
		types, err := h.processing.ListTypes(r.Context(), sess)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		req.Types = types
		req.Workouts = true
	}

	result, err := h.processing.ProcessAll(r.Context(), sess, req.Types, req.Workouts)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "batch processing finished",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed))

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// GetReport handles GET /api/sessions/{sessionID}/report
func (h *SessionHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	summaries := sess.Report.Summaries()
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summaries,
		"count":  len(summaries),
	})
}

// DownloadFile handles GET /api/sessions/{sessionID}/files/{filename} and
// serves one generated artifact from the session output directory.
func (h *SessionHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	filename := chi.URLParam(r, "filename")

	cleanFilename := filepath.Clean(filepath.FromSlash(filename))
	if cleanFilename != filename || strings.ContainsAny(cleanFilename, `/\`) || cleanFilename == "." || cleanFilename == ".." {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("filename", "invalid file name"))
		return
	}

	absFilePath, err := filepath.Abs(filepath.Join(sess.OutputDir, cleanFilename))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.FileSystemError("resolve path", err))
		return
	}
	absOutputDir, err := filepath.Abs(sess.OutputDir)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.FileSystemError("resolve path", err))
		return
	}
	if !strings.HasPrefix(absFilePath, absOutputDir+string(os.PathSeparator)) {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("filename",
			"file path escapes the session directory"))
		return
	}

	if _, err := os.Stat(absFilePath); os.IsNotExist(err) {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError(cleanFilename))
		return
	}

	h.logger.InfoContext(r.Context(), "file download",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("file", cleanFilename))

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", cleanFilename))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, absFilePath)
}

// DownloadArchive handles GET /api/sessions/{sessionID}/archive, streaming a
// zip of every file generated in the session.
func (h *SessionHandler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	if sess.Report.Len() == 0 {
		h.errorHandler.HandleError(w, r, apierrors.New(http.StatusConflict,
			"NOTHING_PROCESSED", "No datasets have been processed in this session yet"))
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", archiveFileName))
	w.Header().Set("Content-Type", "application/zip")

	if err := exporter.BuildArchive(w, sess.OutputDir); err != nil {
		// The response is already streaming, so an error response is no
		// longer possible here.
		h.logger.ErrorContext(r.Context(), "archive streaming failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
	}
}
