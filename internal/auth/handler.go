package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/platform/httpx"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	store          credentials.Store
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	loginLimit     int
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, store credentials.Store, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		store:          store,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		loginLimit:     10,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.With(httprate.LimitByIP(h.loginLimit, time.Minute)).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	Remember bool
	Next     string
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if creds, err := h.store.Get(r.Context(), sess.ID); err == nil && !creds.Empty() {
			http.Redirect(w, r, SafeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
			return
		}
	}
	form := loginForm{Next: SafeNext(r.URL.Query().Get("next"))}
	h.render(w, r, http.StatusOK, loginPageData{Form: form})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Remember: r.PostFormValue("remember") != "",
		Next:     SafeNext(r.PostFormValue("next")),
	}
	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		fieldErrors = shared.FieldErrors(err)
	}

	if len(fieldErrors) == 0 {
		// New identity, new session ID: the old one may have been observed.
		h.sessionManager.Renew(sess)
		user, err := h.service.Login(r.Context(), sess.ID, form.Email, form.Password, form.Remember)
		switch {
		case err == nil:
			sess.SetRemember(form.Remember)
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Bienvenido, " + displayName(user)})
			http.Redirect(w, r, form.Next, http.StatusSeeOther)
			return
		case errors.Is(err, shared.ErrInvalidCredentials):
			fieldErrors["general"] = "Correo o contraseña incorrectos"
		default:
			h.logger.Error("login", slog.Any("error", err))
			fieldErrors["general"] = "No fue posible contactar al servidor, intente nuevamente"
		}
	}

	form.Password = ""
	h.render(w, r, http.StatusBadRequest, loginPageData{Form: form, Errors: fieldErrors})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.Logout(r.Context(), sess.ID); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	viewData := view.Page(r, h.csrfManager, "Iniciar sesión", data)
	viewData.User = nil
	if err := h.templates.RenderStatus(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

type meResponse struct {
	User        credentials.User  `json:"user"`
	Permissions []rbac.Permission `json:"permissions"`
}

// Me answers the signed-in user and the permission table merged from its
// roles. It must be mounted behind RequireLogin.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := credentials.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{User: user, Permissions: rbac.TableFromContext(r.Context()).Permissions()})
}

func displayName(user credentials.User) string {
	if user.Name != "" {
		return user.Name
	}
	return user.Email
}
