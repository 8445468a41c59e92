package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/big"
	"mime"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/traderpath/internal/i18n"
	"github.com/pavelanni/traderpath/internal/model"
	"github.com/pavelanni/traderpath/internal/progression"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"

	usernamePrefix   = "student"
	usernameAttempts = 10
	passwordLength   = 8
	passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge int, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// csrfMiddleware implements the double-submit cookie check. Safe requests get
// a token cookie when they have none; mutating requests must echo the cookie
// in the X-CSRF-Token header or, for urlencoded forms, the csrf_token field.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, _ := r.Cookie(csrfCookieName)

		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			token := ""
			if cookie != nil {
				token = cookie.Value
			}
			if token == "" {
				var err error
				if token, err = generateCSRFToken(); err != nil {
					h.writeError(w, r, fmt.Errorf("generate CSRF token: %w", err))
					return
				}
				h.setCookie(w, csrfCookieName, token, 0, false)
			}
			ctx := model.ContextWithCSRFToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if cookie == nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, errorBody{Error: appI18n.T(r.Context(), "ErrCSRF")})
			return
		}
		sent := r.Header.Get(csrfHeaderName)
		if sent == "" {
			if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/x-www-form-urlencoded" {
				sent = r.PostFormValue("csrf_token")
			}
		}
		if sent == "" || len(sent) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(sent), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, errorBody{Error: appI18n.T(r.Context(), "ErrCSRF")})
			return
		}
		ctx := model.ContextWithCSRFToken(r.Context(), cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loadUser attaches the signed-in user, if any, to the request context.
func (h *Handler) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := h.store.UserForSession(cookie.Value)
		if err != nil {
			slog.Error("failed to load auth session", "error", err)
		}
		if user != nil {
			r = r.WithContext(model.ContextWithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects requests without a signed-in user.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if model.UserFromContext(r.Context()) == nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: appI18n.T(r.Context(), "ErrUnauthorized")})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireCapability returns middleware that checks the user's role grants c.
func (h *Handler) requireCapability(c progression.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: appI18n.T(r.Context(), "ErrUnauthorized")})
				return
			}
			if err := progression.Authorize(user.Role, c); err != nil {
				h.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": model.CSRFTokenFromContext(r.Context())})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, "login", &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user == nil || !user.Active ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: appI18n.T(r.Context(), "ErrLogin")})
		return
	}

	token, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("create auth session: %w", err))
		return
	}
	h.setCookie(w, sessionCookieName, token, int((24 * time.Hour).Seconds()), true)
	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.store.DeleteAuthSession(cookie.Value); err != nil {
			slog.Warn("failed to delete auth session", "error", err)
		}
	}
	h.setCookie(w, sessionCookieName, "", -1, true)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}

type registerRequest struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
	Gender string `json:"gender"`
}

type registerResponse struct {
	User     *model.User `json:"user"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	Message  string      `json:"message"`
}

// handleRegister creates a prospective student with a generated username and
// password. The password is returned once and never stored in clear.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, "register", &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	existing, err := h.store.GetUserByPhone(req.Phone)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if existing != nil {
		h.writeError(w, r, &model.StateConflictError{Resource: "user", Reason: "phone already registered"})
		return
	}

	username, err := h.freeUsername()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	password, err := randomString(passwordAlphabet, passwordLength)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("generate password: %w", err))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	id, err := h.store.CreateUser(model.User{
		Username:        username,
		DisplayName:     req.Name,
		PasswordHash:    string(hash),
		Role:            progression.RegistrationRole(),
		Age:             req.Age,
		Phone:           req.Phone,
		Email:           req.Email,
		Gender:          req.Gender,
		InterviewStatus: model.InterviewNotApplied,
		Active:          true,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		User:     user,
		Username: username,
		Password: password,
		Message:  appI18n.T(r.Context(), "Registered"),
	})
}

func (h *Handler) freeUsername() (string, error) {
	for i := 0; i < usernameAttempts; i++ {
		digits, err := randomString("0123456789", 8)
		if err != nil {
			return "", fmt.Errorf("generate username: %w", err)
		}
		name := usernamePrefix + digits
		u, err := h.store.GetUserByUsername(name)
		if err != nil {
			return "", err
		}
		if u == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free username after %d attempts", usernameAttempts)
}

func randomString(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[k.Int64()]
	}
	return string(out), nil
}
