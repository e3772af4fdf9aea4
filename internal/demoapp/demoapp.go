// Package demoapp is a small web application the harness's own suite runs
// against: form login with bcrypt-hashed users, cookie sessions, a profile
// page, logout, and a token-authenticated JSON items API. It stands in for
// the real application under test so browser and API tests can run fully
// in-process.
package demoapp

import (
	"encoding/json"
	"html/template"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/kuitang/e2ekit/internal/obs"
)

// SessionCookieName is the session cookie the app sets after login.
const SessionCookieName = "demo_session"

// Item is an API resource for exercising the HTTP helper.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// App is the demo application. Zero-value maps are initialized by New.
type App struct {
	mu            sync.Mutex
	users         map[string]string // email -> bcrypt hash
	sessions      map[string]string // session ID -> email
	items         map[string]Item
	loginAttempts int

	apiToken     string
	loginLimiter *rate.Limiter
	mux          *http.ServeMux
}

// Option customizes the demo app.
type Option func(*App)

// WithAPIToken sets the bearer token required by the items API.
func WithAPIToken(token string) Option {
	return func(a *App) { a.apiToken = token }
}

// WithLoginRate throttles POST /login attempts.
func WithLoginRate(rps float64, burst int) Option {
	return func(a *App) { a.loginLimiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New builds the demo app and registers its routes.
func New(opts ...Option) *App {
	a := &App{
		users:        make(map[string]string),
		sessions:     make(map[string]string),
		items:        make(map[string]Item),
		loginLimiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(a)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /{$}", a.handleRoot)
	mux.HandleFunc("GET /login", a.handleLoginForm)
	mux.HandleFunc("POST /login", a.handleLoginSubmit)
	mux.HandleFunc("GET /profile", a.handleProfile)
	mux.HandleFunc("POST /logout", a.handleLogout)

	mux.HandleFunc("GET /api/items", a.requireToken(a.handleListItems))
	mux.HandleFunc("POST /api/items", a.requireToken(a.handleCreateItem))
	mux.HandleFunc("PUT /api/items/{id}", a.requireToken(a.handleUpdateItem))
	mux.HandleFunc("DELETE /api/items/{id}", a.requireToken(a.handleDeleteItem))

	a.mux = mux
	return a
}

// Handler returns the app's HTTP handler.
func (a *App) Handler() http.Handler {
	return a.mux
}

// AddUser registers a user with a bcrypt-hashed password.
func (a *App) AddUser(email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[email] = string(hash)
	return nil
}

// SessionCount reports active sessions; used by tests to assert logout.
func (a *App) SessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// LoginAttempts reports how many credential submissions the app has seen;
// used by tests to assert single-shot login flows.
func (a *App) LoginAttempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginAttempts
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign In</title></head>
<body>
<h1>Sign In</h1>
{{if .Error}}<div class="flash-error" role="alert">Invalid email or password</div>{{end}}
<form method="post" action="/login">
  <input id="email" name="email" type="email" placeholder="Email">
  <input id="password" name="password" type="password" placeholder="Password">
  <button id="login-btn" type="submit">Sign In</button>
</form>
</body>
</html>`))

var profileTemplate = template.Must(template.New("profile").Parse(`<!DOCTYPE html>
<html>
<head><title>Profile</title></head>
<body>
<nav><span id="nav-user">{{.Email}}</span></nav>
<h1>Your Profile</h1>
<p id="profile-email">{{.Email}}</p>
<form method="post" action="/logout">
  <button id="logout-btn" type="submit">Sign Out</button>
</form>
</body>
</html>`))

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}

func (a *App) handleRoot(w http.ResponseWriter, r *http.Request) {
	if a.sessionEmail(r) != "" {
		http.Redirect(w, r, "/profile", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (a *App) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginTemplate.Execute(w, map[string]any{
		"Error": r.URL.Query().Get("error") != "",
	})
}

func (a *App) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow() {
		http.Error(w, "Too many login attempts", http.StatusTooManyRequests)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	a.mu.Lock()
	a.loginAttempts++
	hash, exists := a.users[email]
	a.mu.Unlock()

	if !exists || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		obs.Pkg("demoapp").Info("login rejected", "email", email)
		http.Redirect(w, r, "/login?error=1", http.StatusFound)
		return
	}

	sessionID := uuid.NewString()
	a.mu.Lock()
	a.sessions[sessionID] = email
	a.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	obs.Pkg("demoapp").Info("login accepted", "email", email)
	http.Redirect(w, r, "/profile", http.StatusFound)
}

func (a *App) sessionEmail(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[cookie.Value]
}

func (a *App) handleProfile(w http.ResponseWriter, r *http.Request) {
	email := a.sessionEmail(r)
	if email == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = profileTemplate.Execute(w, map[string]any{"Email": email})
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		a.mu.Lock()
		delete(a.sessions, cookie.Value)
		a.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

// =============================================================================
// Items API
// =============================================================================

func (a *App) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.apiToken == "" || r.Header.Get("Authorization") != "Bearer "+a.apiToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		next(w, r)
	}
}

func (a *App) handleListItems(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	items := make([]Item, 0, len(a.items))
	for _, item := range a.items {
		items = append(items, item)
	}
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var params struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil || params.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	item := Item{ID: uuid.NewString(), Name: params.Name}
	a.mu.Lock()
	a.items[item.ID] = item
	a.mu.Unlock()
	writeJSON(w, http.StatusCreated, item)
}

func (a *App) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var params struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil || params.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	a.mu.Lock()
	item, exists := a.items[id]
	if exists {
		item.Name = params.Name
		a.items[id] = item
	}
	a.mu.Unlock()

	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *App) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	a.mu.Lock()
	_, exists := a.items[id]
	delete(a.items, id)
	a.mu.Unlock()

	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
