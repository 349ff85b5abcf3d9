package handlers

import (
	"errors"
	"net/http"
	"strings"

	applog "moneymate/internal/log"
	"moneymate/internal/models"
)

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Page
	Email string
}

// RegisterViewModel holds data for the registration page.
type RegisterViewModel struct {
	Page
	Email string
}

// Index redirects to the dashboard when a session is active, otherwise to login.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	if h.hasSession(w, r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) hasSession(w http.ResponseWriter, r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	session, err := h.auth.Authenticate(r.Context(), cookie.Value)
	if err != nil {
		return false
	}
	if session.Renewed {
		_ = h.setSessionCookie(w, &session.Session)
	}
	return true
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to dashboard
	if h.hasSession(w, r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", LoginViewModel{Page: h.page(w, r, "Log in")})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	vm := LoginViewModel{Page: Page{Title: "Log in"}}
	if err := r.ParseForm(); err != nil {
		vm.Error = "Invalid form submission"
		h.render(w, r, http.StatusBadRequest, "login.html", vm)
		return
	}

	vm.Email = strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if vm.Email == "" || password == "" {
		vm.Error = "Email and password are required"
		h.render(w, r, http.StatusUnprocessableEntity, "login.html", vm)
		return
	}

	session, err := h.auth.Login(r.Context(), vm.Email, password)
	if err != nil {
		if errors.Is(err, models.ErrAuthentication) {
			vm.Error = "Invalid email or password"
			h.render(w, r, http.StatusUnauthorized, "login.html", vm)
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Login failed", applog.FieldError, err)
		vm.Error = "An error occurred. Please try again."
		h.render(w, r, http.StatusInternalServerError, "login.html", vm)
		return
	}

	if err := h.setSessionCookie(w, session); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to sign session cookie", applog.FieldError, err)
		vm.Error = "An error occurred. Please try again."
		h.render(w, r, http.StatusInternalServerError, "login.html", vm)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// RegisterForm renders the registration page.
func (h *Handlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", RegisterViewModel{Page: h.page(w, r, "Register")})
}

// Register handles the registration form submission. It does not log the user in.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	vm := RegisterViewModel{Page: Page{Title: "Register"}}
	if err := r.ParseForm(); err != nil {
		vm.Error = "Invalid form submission"
		h.render(w, r, http.StatusBadRequest, "register.html", vm)
		return
	}
	vm.Email = strings.TrimSpace(r.FormValue("email"))

	_, err := h.auth.Register(r.Context(), vm.Email, r.FormValue("password"), r.FormValue("confirm_password"))
	switch {
	case err == nil:
		redirectWithFlash(w, r, "/login", "Registration successful. Please log in.")
	case errors.Is(err, models.ErrValidation):
		vm.Error = userMessage(err)
		h.render(w, r, http.StatusUnprocessableEntity, "register.html", vm)
	case errors.Is(err, models.ErrConflict):
		vm.Error = "An account with this email already exists"
		h.render(w, r, http.StatusConflict, "register.html", vm)
	default:
		h.serverError(w, r, "Register failed", err)
	}
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		h.auth.Logout(r.Context(), cookie.Value)
	}
	h.clearSessionCookie(w)
	redirectWithFlash(w, r, "/login", "You have been logged out.")
}
