package mail

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/workdesk-erp/workdesk-erp/internal/platform/httpx"
	"github.com/workdesk-erp/workdesk-erp/internal/rbac"
	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Handler serves the mailbox connection endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    *rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard *rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		guard:    guard,
		validate: validator.New(),
	}
}

// MountRoutes registers mail routes. The callback is mounted without the
// permission guard because Microsoft redirects the browser there directly;
// it is protected by the state nonce instead.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(shared.PermMailManage)).Get("/oauth/connect", h.connect)
	r.Get("/oauth/callback", h.callback)
	r.With(h.guard.RequireAny(shared.PermMailManage)).Get("/accounts", h.accounts)
	r.With(h.guard.RequireAny(shared.PermMailManage)).Delete("/accounts/{accountID}", h.disconnect)
	r.With(h.guard.RequireAny(shared.PermMailManage)).Post("/test", h.sendTest)
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.ConnectURL(r.Context(), shared.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		httpx.Error(w, shared.ErrValidation)
		return
	}

	account, err := h.service.HandleCallback(r.Context(), state, code)
	if err != nil {
		h.logger.Error("oauth callback failed", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, "mailbox connected", account)
}

func (h *Handler) accounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.Accounts(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, accounts)
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.service.Disconnect(r.Context(), id, shared.UserIDFromContext(r.Context())); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, "mailbox disconnected", nil)
}

type testMailRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=255"`
	Body    string `json:"body" validate:"required"`
}

func (h *Handler) sendTest(w http.ResponseWriter, r *http.Request) {
	var req testMailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, err)
		return
	}

	msg := Message{To: []string{req.To}, Subject: req.Subject, Body: req.Body}
	if err := h.service.Send(r.Context(), msg); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, "test mail sent", nil)
}
