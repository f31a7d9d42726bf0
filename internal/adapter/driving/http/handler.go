// Package httphandler is the HTTP driving adapter. It exposes the noise map
// workflows as a REST API: session handshake, record listing, encrypted
// submission, and verified decryption.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noisemap/noisemap/internal/application"
	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	gate     *application.SessionGate
	records  *application.RecordService
	submit   *application.SubmitService
	decrypt  *application.DecryptService
	notifier *application.Notifier
	reader   driven.LedgerReader
	tokens   *SessionTokens
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	gate *application.SessionGate,
	records *application.RecordService,
	submit *application.SubmitService,
	decrypt *application.DecryptService,
	notifier *application.Notifier,
	reader driven.LedgerReader,
	tokens *SessionTokens,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		gate:     gate,
		records:  records,
		submit:   submit,
		decrypt:  decrypt,
		notifier: notifier,
		reader:   reader,
		tokens:   tokens,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. Record reads are public so the map
// renders from the cached snapshot; workflow mutations require a session
// token from the connect handshake.
func NewServeMux(h *Handler, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/session", h.Connect)
	mux.HandleFunc("GET /api/v1/session", h.Session)
	mux.HandleFunc("DELETE /api/v1/session", h.requireSession(h.Disconnect))

	mux.HandleFunc("GET /api/v1/records", h.ListRecords)
	mux.HandleFunc("GET /api/v1/records/{id}", h.GetRecord)
	mux.HandleFunc("POST /api/v1/records", h.requireSession(h.SubmitRecord))
	mux.HandleFunc("POST /api/v1/records/{id}/decrypt", h.requireSession(h.DecryptRecord))
	mux.HandleFunc("POST /api/v1/reload", h.requireSession(h.Reload))

	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/availability", h.Availability)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Connect performs the session handshake: authenticates the identity, kicks
// off encryption-system initialization, and issues a bearer token. A failed
// initialization does not fail the handshake; the session stays authenticated
// and a later connect retries.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "identity is required")
		return
	}

	if err := h.gate.Connect(r.Context(), req.Identity); err != nil {
		h.logger.Error("encryption system initialization failed", "identity", req.Identity, "error", err)
	}

	// Initial load: the map renders right after the handshake response.
	// Failures surface through the notifier, not the handshake.
	if err := h.records.Reload(r.Context()); err != nil {
		h.logger.Error("post-connect reload failed", "error", err)
	}

	token, err := h.tokens.Issue(req.Identity)
	if err != nil {
		h.logger.Error("failed to issue session token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := h.sessionResponse()
	resp.Token = token
	writeJSON(w, http.StatusOK, resp)
}

// Session returns the current session gate state.
func (h *Handler) Session(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sessionResponse())
}

// Disconnect ends the session. Initialization state survives so a reconnect
// is immediate.
func (h *Handler) Disconnect(w http.ResponseWriter, _ *http.Request) {
	h.gate.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

// ListRecords returns the current record snapshot, newest first.
func (h *Handler) ListRecords(w http.ResponseWriter, _ *http.Request) {
	records := h.records.Snapshot()

	resp := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, toRecordResponse(record))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRecord returns a single record by id.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	record, ok := h.records.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(record))
}

// SubmitRecord runs the encrypted submission workflow.
func (h *Handler) SubmitRecord(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.submit.Submit(r.Context(), req.Label, req.Decibel, req.AreaCode)
	if err != nil {
		var validation *application.ValidationError
		switch {
		case errors.As(err, &validation):
			writeError(w, http.StatusBadRequest, validation.Error())
		case errors.Is(err, application.ErrNotReady):
			writeError(w, http.StatusConflict, "session not ready")
		case errors.Is(err, driven.ErrRejectedBySigner):
			writeError(w, http.StatusBadRequest, "transaction rejected")
		default:
			h.logger.Error("submission failed", "error", err)
			writeError(w, http.StatusBadGateway, "upload failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResponse{ID: id})
}

// DecryptRecord runs the verified decryption workflow for a record.
func (h *Handler) DecryptRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	result, err := h.decrypt.Decrypt(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, driven.ErrRecordNotFound):
			writeError(w, http.StatusNotFound, "record not found")
		case errors.Is(err, application.ErrNotReady):
			writeError(w, http.StatusConflict, "session not ready")
		default:
			h.logger.Error("decryption failed", "record_id", id, "error", err)
			writeError(w, http.StatusBadGateway, "decryption failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, toDecryptResponse(result))
}

// Reload refreshes the record snapshot from the ledger.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Reload(r.Context()); err != nil {
		h.logger.Error("reload failed", "error", err)
		writeError(w, http.StatusBadGateway, "reload failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats returns aggregate statistics over the current snapshot.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toStatsResponse(h.records.Stats(time.Now())))
}

// Status returns the workflow phases and the current notification.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		SubmitPhase:  string(h.submit.Phase()),
		DecryptPhase: string(h.decrypt.Phase()),
		Refreshing:   h.records.Refreshing(),
		Notification: toNotificationResponse(h.notifier.Current()),
	})
}

// Availability probes whether the ledger gateway is reachable. Probe errors
// report as unavailable rather than failing the request.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	available, err := h.reader.IsAvailable(r.Context())
	if err != nil {
		h.logger.Warn("availability probe failed", "error", err)
		available = false
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{Available: available})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   healthNow(),
	})
}

func (h *Handler) sessionResponse() SessionResponse {
	return SessionResponse{
		Authenticated: h.gate.Authenticated(),
		Identity:      h.gate.Identity(),
		Initialized:   h.gate.Initialized(),
		Initializing:  h.gate.Initializing(),
		Ready:         h.gate.Ready(),
	}
}
