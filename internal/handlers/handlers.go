package handlers

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"moneymate/internal/auth"
	"moneymate/internal/ledger"
	applog "moneymate/internal/log"
	"moneymate/internal/models"
	"moneymate/internal/storage"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	auth         *auth.Service
	ledger       *ledger.Service
	db           *storage.DB
	templates    fs.FS
	secureCookie bool
}

// NewHandlers creates a new Handlers instance. templates must contain base.html
// and one file per view.
func NewHandlers(authSvc *auth.Service, ledgerSvc *ledger.Service, db *storage.DB, templates fs.FS, secureCookie bool) *Handlers {
	return &Handlers{
		auth:         authSvc,
		ledger:       ledgerSvc,
		db:           db,
		templates:    templates,
		secureCookie: secureCookie,
	}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// AuthMiddleware wraps handlers to require an authenticated session.
// The session is resolved once and the user is stored in the request context.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var value string
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			value = cookie.Value
		}

		session, err := h.auth.Authenticate(r.Context(), value)
		if err != nil {
			if !errors.Is(err, models.ErrUnauthenticated) {
				h.serverError(w, r, "Session lookup failed", err)
				return
			}
			if value != "" {
				h.clearSessionCookie(w)
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		if session.Renewed {
			if err := h.setSessionCookie(w, &session.Session); err != nil {
				// The old cookie is still valid until it expires.
				applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to reissue session cookie", applog.FieldError, err)
			}
		}

		logger := applog.FromContext(r.Context()).With(applog.FieldUserID, session.User.ID)
		ctx := applog.WithContext(WithUser(r.Context(), session.User), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Health reports whether the database is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Health check failed", applog.FieldError, err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, session *models.Session) error {
	value, err := h.auth.Cookie(session)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Page carries what base.html needs on every view.
type Page struct {
	Title     string
	UserEmail string
	Flash     string
	Error     string
}

func (h *Handlers) page(w http.ResponseWriter, r *http.Request, title string) Page {
	p := Page{Title: title, Flash: popFlash(w, r)}
	if user := GetUserFromContext(r); user != nil {
		p.UserEmail = user.Email
	}
	return p
}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date":  func(t time.Time) string { return t.Format(models.DateLayout) },
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, viewName string, data any) {
	logger := applog.FromContext(r.Context())
	tmpl, err := template.New(viewName).Funcs(funcs).ParseFS(h.templates, "base.html", viewName)
	if err != nil {
		logger.ErrorContext(r.Context(), "Template error", applog.FieldError, err, applog.FieldOperation, applog.OpRender)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, target, data); err != nil {
		logger.ErrorContext(r.Context(), "Template execution error", applog.FieldError, err, applog.FieldOperation, applog.OpRender)
	}
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), msg, applog.FieldError, err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// pathID returns the {id} route variable. ok is false if it is not a valid id.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// userMessage strips the taxonomy prefix from a wrapped validation or conflict error.
func userMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{models.ErrValidation, models.ErrConflict} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
	}
	return msg
}
