package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/device-cloud/pkg/oidcflow"
	"github.com/tendant/device-cloud/pkg/session"
)

// Error is the JSON body returned for rejected requests
type Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Handle implements the OIDC login and callback endpoints
type Handle struct {
	flowService *oidcflow.Service
	sessions    *session.Manager
}

// NewHandle creates a new OIDC flow API handler
func NewHandle(flowService *oidcflow.Service, sessions *session.Manager) *Handle {
	return &Handle{
		flowService: flowService,
		sessions:    sessions,
	}
}

// Routes registers the flow endpoints on the router
func (h *Handle) Routes(r chi.Router) {
	r.Get("/oidc/login", h.Login)
	r.Post("/oidc/login", h.Login)
	// Kept for backward compatibility with clients that still call the
	// Google-specific route.
	r.Get("/oidc/google", h.Login)
	r.Get("/oidc/callback", h.Callback)
}

// Login starts the authorization-code flow and redirects to the provider
func (h *Handle) Login(w http.ResponseWriter, r *http.Request) {
	deviceID := r.FormValue("deviceId")
	returnTo := r.FormValue("returnTo")

	authURL, err := h.flowService.InitiateLogin(r.Context(), h.sessions.Key(r), deviceID, returnTo)
	if err != nil {
		slog.Error("Failed to initiate login", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, Error{Error: "internal_error", ErrorDescription: "Failed to initiate authentication"})
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the flow: CSRF/PKCE validation, code exchange, user
// upsert and conditional device adoption, then redirects to the outcome
func (h *Handle) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	result, err := h.flowService.HandleCallback(r.Context(), h.sessions.Key(r), code, state)
	if err != nil {
		var flowErr *oidcflow.FlowError
		if errors.As(err, &flowErr) {
			slog.Warn("Callback rejected", "code", flowErr.Code)
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, Error{Error: flowErr.Code, ErrorDescription: flowErr.Message})
			return
		}

		slog.Error("Callback failed", "error", err)
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, Error{Error: "upstream_error", ErrorDescription: "Authentication failed, please retry the login"})
		return
	}

	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}
