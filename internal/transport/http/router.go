package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"alpharia-assessment/internal/app"
	"alpharia-assessment/internal/domain"
	"alpharia-assessment/internal/export"
	"alpharia-assessment/internal/itembank"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

type validatorErrors = validator.ValidationErrors

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger      *slog.Logger
	CORSOrigins []string
}

// NewRouter mounts the websocket and REST endpoints.
func NewRouter(service *app.AssessmentService, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	api := &restHandler{service: service, logger: opts.Logger}
	ws := NewWSHandler(service, opts.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(opts.Logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/sessions", api.createSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", api.getSession)
			r.Get("/summary", api.getSummary)
			r.Get("/export", api.exportSession)
		})
		r.Get("/students/{studentID}/attempts", api.listAttempts)
		r.Route("/attempts/{attemptID}", func(r chi.Router) {
			r.Get("/", api.getAttempt)
			r.Delete("/", api.deleteAttempt)
		})
		r.Route("/banks/{bankID}", func(r chi.Router) {
			r.Get("/", api.getBank)
			r.Put("/", api.putBank)
		})
	})
	return r
}

type restHandler struct {
	service *app.AssessmentService
	logger  *slog.Logger
}

type createSessionRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	BankID    string `json:"bankId"`
}

func (h *restHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errBadPayload)
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	snap, err := h.service.CreateSession(r.Context(), req.StudentID, req.BankID)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

func (h *restHandler) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *restHandler) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// exportSession serves a section export when section is set, otherwise the attempt summary.
func (h *restHandler) exportSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = string(export.FormatCSV)
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		h.fail(w, err)
		return
	}

	var file export.File
	if section := r.URL.Query().Get("section"); section != "" {
		file, err = h.service.ExportSection(sessionID, section, format)
	} else {
		file, err = h.service.ExportSummary(sessionID, format)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

func (h *restHandler) listAttempts(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListAttempts(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (h *restHandler) getAttempt(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *restHandler) deleteAttempt(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAttempt(r.Context(), chi.URLParam(r, "attemptID")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *restHandler) getBank(w http.ResponseWriter, r *http.Request) {
	bank, err := h.service.GetBank(r.Context(), chi.URLParam(r, "bankID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bank)
}

func (h *restHandler) putBank(w http.ResponseWriter, r *http.Request) {
	var bank itembank.Bank
	if err := json.NewDecoder(r.Body).Decode(&bank); err != nil {
		respondError(w, http.StatusBadRequest, errBadPayload)
		return
	}
	bank.ID = chi.URLParam(r, "bankID")
	if err := h.service.SaveBank(r.Context(), bank); err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bank)
}

func (h *restHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	respondError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case app.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBankReadOnly):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrEmptyCategory),
		errors.Is(err, domain.ErrDuplicateItem),
		errors.Is(err, domain.ErrInvalidItem):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNavigationLocked):
		return http.StatusConflict
	}
	var verrs validatorErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, toPayload(err))
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
