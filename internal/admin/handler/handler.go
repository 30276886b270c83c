// Package handler exposes the administrative HTTP surface. Every route sits
// behind the admin token middleware; mutating routes additionally require a
// one-time action nonce. Handlers stay thin and delegate to the services.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"reengage/internal/customer/coupon"
	"reengage/internal/customer/lock"
	"reengage/internal/customer/store"
	"reengage/internal/customer/sync"
	"reengage/internal/export"
	"reengage/internal/mail"
	"reengage/internal/platform/metrics"
	"reengage/internal/platform/middleware"
	"reengage/internal/settings"
	domainerrors "reengage/pkg/domain-errors"
)

// TestMailSubject is the fixed subject of the preview mail.
const TestMailSubject = "Your personal voucher"

// Action names bound to anti-replay nonces.
const (
	ActionRefresh        = "refresh"
	ActionDeleteAll      = "delete"
	ActionDeleteRow      = "delete_row"
	ActionGenerate       = "generate_coupons"
	ActionSendTestMail   = "send_test_mail"
	ActionUpdateTemplate = "update_template"
)

// Syncer rebuilds the registry.
type Syncer interface {
	Sync(ctx context.Context) (sync.Result, error)
}

// Issuer runs the coupon issuance workflow.
type Issuer interface {
	Issue(ctx context.Context) (coupon.Result, error)
}

// Nonces issues and consumes per-action anti-replay tokens.
type Nonces interface {
	Issue(action string) string
	Verify(action, token string) error
}

// Handler wires the admin routes to the core services.
type Handler struct {
	logger   *slog.Logger
	syncer   Syncer
	issuer   Issuer
	store    store.Store
	settings settings.Store
	mailer   mail.Mailer
	nonces   Nonces
	lock     *lock.RegistryLock
	metrics  *metrics.Metrics
}

func New(
	logger *slog.Logger,
	syncer Syncer,
	issuer Issuer,
	st store.Store,
	set settings.Store,
	mailer mail.Mailer,
	nonces Nonces,
	l *lock.RegistryLock,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		logger:   logger,
		syncer:   syncer,
		issuer:   issuer,
		store:    st,
		settings: set,
		mailer:   mailer,
		nonces:   nonces,
		lock:     l,
		metrics:  m,
	}
}

// Register mounts the admin routes on the given router. The caller applies
// the platform middleware chain (recovery, request id, logging, admin token).
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/nonce", h.handleIssueNonce)
	r.Post("/admin/registry/refresh", h.withNonce(ActionRefresh, h.handleRefresh))
	r.Delete("/admin/registry", h.withNonce(ActionDeleteAll, h.handleDeleteAll))
	r.Delete("/admin/registry/rows/{id}", h.withNonce(ActionDeleteRow, h.handleDeleteRow))
	r.Post("/admin/coupons/generate", h.withNonce(ActionGenerate, h.handleGenerateCoupons))
	r.Get("/admin/registry/export", h.handleExportCSV)
	r.Post("/admin/mail/test", h.withNonce(ActionSendTestMail, h.handleSendTestMail))
	r.Get("/admin/settings/template", h.handleGetTemplate)
	r.Put("/admin/settings/template", h.withNonce(ActionUpdateTemplate, h.handleSetTemplate))
}

// withNonce consumes the X-Action-Nonce header before running the handler.
func (h *Handler) withNonce(action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Action-Nonce")
		if token == "" {
			writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "missing action nonce"))
			return
		}
		if err := h.nonces.Verify(action, token); err != nil {
			h.logger.WarnContext(r.Context(), "nonce rejected",
				"request_id", middleware.GetRequestID(r.Context()),
				"action", action,
				"error", err.Error(),
			)
			writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid action nonce"))
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleIssueNonce(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action == "" {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "action query parameter is required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"action": action,
		"nonce":  h.nonces.Issue(action),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.syncer.Sync(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "registry refresh failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.lock.TryAcquire("delete registry"); err != nil {
		writeError(w, domainerrors.Wrap(domainerrors.CodeConflict, "a registry operation is already running", err))
		return
	}
	defer h.lock.Release()

	if err := h.store.Truncate(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "registry truncate failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		writeError(w, domainerrors.New(domainerrors.CodeInternal, "failed to delete registry"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid row id"))
		return
	}

	if err := h.lock.TryAcquire("delete row"); err != nil {
		writeError(w, domainerrors.Wrap(domainerrors.CodeConflict, "a registry operation is already running", err))
		return
	}
	defer h.lock.Release()

	deleted, err := h.store.DeleteByID(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "row delete failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"row_id", id,
			"error", err.Error(),
		)
		writeError(w, domainerrors.New(domainerrors.CodeInternal, "failed to delete row"))
		return
	}
	if deleted && h.metrics != nil {
		h.metrics.RowsDeleted.Inc()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) handleGenerateCoupons(w http.ResponseWriter, r *http.Request) {
	res, err := h.issuer.Issue(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "coupon generation failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.ListAll(r.Context())
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInternal, "failed to list registry"))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="reengage-customers.csv"`)
	if err := export.WriteCSV(w, recs); err != nil {
		// headers are already out; log and drop the connection
		h.logger.ErrorContext(r.Context(), "csv export failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
	}
}

type testMailRequest struct {
	// Index selects which record of the last issuance run receives the
	// preview; defaults to the first.
	Index *int `json:"index,omitempty"`
}

type testMailResponse struct {
	Sent  bool   `json:"sent"`
	To    string `json:"to,omitempty"`
	Error string `json:"error,omitempty"`
}

func (h *Handler) handleSendTestMail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req testMailRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	coupons, err := h.settings.LastGeneratedCoupons(ctx)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInternal, "failed to load last generated coupons"))
		return
	}
	if len(coupons) == 0 {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "no coupons generated yet"))
		return
	}

	idx := 0
	if req.Index != nil {
		idx = *req.Index
	}
	if idx < 0 || idx >= len(coupons) {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest,
			"index out of range, valid range is 0.."+strconv.Itoa(len(coupons)-1)))
		return
	}
	target := coupons[idx]

	tpl, err := h.settings.EmailTemplate(ctx)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInternal, "failed to load mail template"))
		return
	}
	body := mail.Render(tpl, target.FirstName, target.Voucher, target.Email)

	if err := h.mailer.Send(ctx, target.Email, TestMailSubject, body); err != nil {
		// mail failure is reported, never fatal to the request
		h.logger.WarnContext(ctx, "test mail failed",
			"request_id", middleware.GetRequestID(ctx),
			"to", target.Email,
			"error", err.Error(),
		)
		h.countMail("error")
		writeJSON(w, http.StatusOK, testMailResponse{Sent: false, To: target.Email, Error: err.Error()})
		return
	}
	h.countMail("ok")
	writeJSON(w, http.StatusOK, testMailResponse{Sent: true, To: target.Email})
}

type templatePayload struct {
	Template string `json:"template"`
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.settings.EmailTemplate(r.Context())
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInternal, "failed to load mail template"))
		return
	}
	writeJSON(w, http.StatusOK, templatePayload{Template: tpl})
}

func (h *Handler) handleSetTemplate(w http.ResponseWriter, r *http.Request) {
	var req templatePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Template == "" {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "template must not be empty"))
		return
	}
	if err := h.settings.SetEmailTemplate(r.Context(), req.Template); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInternal, "failed to store mail template"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) countMail(outcome string) {
	if h.metrics != nil {
		h.metrics.MailSends.WithLabelValues(outcome).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError centralizes domain error translation so every route returns the
// same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(domainerrors.ToHTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
