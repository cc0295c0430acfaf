// Package auth holds the session: the credential, the identity it belongs
// to, and the calls that create, renew and destroy them.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/fentz26/taskflow/internal/api"
	"github.com/fentz26/taskflow/internal/models"
	"github.com/fentz26/taskflow/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNoSession is returned by operations that need a logged-in user.
var ErrNoSession = errors.New("not logged in")

// ErrStaleRefresh is returned when the session changed while a refresh was
// in flight. The refreshed token is discarded.
var ErrStaleRefresh = errors.New("session changed during refresh")

// RegisterRequest is the account-creation payload.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
}

// authResponse is the login/register envelope of the task-management backend.
type authResponse struct {
	User   *models.User `json:"user"`
	Tokens *struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
}

// Manager is the single source of truth for the current session.
// It implements api.CredentialSource.
type Manager struct {
	store  *store.Store
	client *api.Client
	logger *log.Logger

	mu         sync.RWMutex
	session    *models.Session
	authHeader string
}

// NewManager creates a session manager that logs in through client and
// persists the session in st. A previously persisted session is restored.
func NewManager(st *store.Store, client *api.Client, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		store:  st,
		client: client,
		logger: logger,
	}
	if err := m.loadSession(); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return m, nil
}

// Attach makes every client send this session's credential and report
// authorization failures back to it.
func (m *Manager) Attach(clients ...*api.Client) {
	for _, c := range clients {
		c.SetCredentials(m)
	}
}

// IsAuthenticated reports whether a credential is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil
}

// User returns the current identity, or nil when logged out.
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	u := *m.session.User
	return &u
}

// Token returns a copy of the current credential, or nil when logged out.
func (m *Manager) Token() *oauth2.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	t := *m.session.Token
	return &t
}

// AuthorizationHeader returns the default header value for outbound calls.
func (m *Manager) AuthorizationHeader() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authHeader
}

// Expire clears the session after a backend rejected the credential.
func (m *Manager) Expire() {
	if err := m.clear(); err != nil {
		m.logger.Printf("Error clearing expired session: %v", err)
	}
}

// Login exchanges username and password for a session.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.Session, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}
	resp, err := m.client.DoPublic(ctx, http.MethodPost, "/users/login/", body)
	if err != nil {
		var verr *api.ValidationError
		var statusErr *api.StatusError
		if errors.As(err, &verr) || (errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized) {
			return nil, fmt.Errorf("login: %w", api.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	return m.establish(resp)
}

// Register creates an account and logs it in.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*models.Session, error) {
	resp, err := m.client.DoPublic(ctx, http.MethodPost, "/users/register/", req)
	if err != nil {
		return nil, registrationError(err)
	}
	return m.establish(resp)
}

func registrationError(err error) error {
	var verr *api.ValidationError
	if errors.As(err, &verr) {
		if len(verr.Fields) > 0 {
			return verr
		}
		return &api.RegistrationError{Message: verr.Message, Err: err}
	}
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.Message
		if msg == "" {
			msg = statusErr.Error()
		}
		return &api.RegistrationError{Message: msg, Err: err}
	}
	return fmt.Errorf("register: %w", err)
}

// Logout clears the session. It is safe to call when already logged out.
func (m *Manager) Logout() error {
	return m.clear()
}

// Refresh trades the refresh token for a new access token.
// A rejected refresh token ends the session.
func (m *Manager) Refresh(ctx context.Context) error {
	current := m.Token()
	if current == nil || current.RefreshToken == "" {
		return ErrNoSession
	}

	resp, err := m.client.DoPublic(ctx, http.MethodPost, "/auth/refresh/", map[string]string{
		"refresh": current.RefreshToken,
	})
	if err != nil {
		var verr *api.ValidationError
		var statusErr *api.StatusError
		if errors.As(err, &verr) || (errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized) {
			m.expireIfCurrent(current.RefreshToken)
			return fmt.Errorf("refresh: %w", api.ErrAuthorizationExpired)
		}
		return fmt.Errorf("refresh: %w", err)
	}

	var payload struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.Unmarshal(resp, &payload); err != nil {
		return &api.SchemaError{Resource: "token refresh", Reason: err.Error()}
	}
	if payload.Access == "" {
		return &api.SchemaError{Resource: "token refresh", Field: "access", Reason: "missing"}
	}

	refresh := current.RefreshToken
	if payload.Refresh != "" {
		refresh = payload.Refresh
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(current.RefreshToken) {
		// Logged out, or logged in again, while the refresh was in flight.
		return ErrStaleRefresh
	}
	next := &models.Session{Token: newToken(payload.Access, refresh), User: m.session.User}
	return m.setLocked(next)
}

// currentLocked reports whether the session still holds refresh.
// Callers must hold m.mu.
func (m *Manager) currentLocked(refresh string) bool {
	return m.session != nil && m.session.Token != nil && m.session.Token.RefreshToken == refresh
}

// expireIfCurrent ends the session only if it still holds refresh.
func (m *Manager) expireIfCurrent(refresh string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(refresh) {
		return
	}
	if err := m.clearLocked(); err != nil {
		m.logger.Printf("Error clearing expired session: %v", err)
	}
}

// Profile fetches the current identity and updates the stored copy.
func (m *Manager) Profile(ctx context.Context) (*models.User, error) {
	if !m.IsAuthenticated() {
		return nil, ErrNoSession
	}
	resp, err := m.client.Do(ctx, http.MethodGet, "/users/profile/", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	user, err := decodeUser(resp)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		next := &models.Session{Token: m.session.Token, User: user}
		if err := m.setLocked(next); err != nil {
			return nil, err
		}
	}
	u := *user
	return &u, nil
}

// establish validates a login/register response and installs the session.
func (m *Manager) establish(resp []byte) (*models.Session, error) {
	var payload authResponse
	if err := json.Unmarshal(resp, &payload); err != nil {
		return nil, &api.SchemaError{Resource: "auth response", Reason: err.Error()}
	}
	if payload.Tokens == nil || payload.Tokens.Access == "" {
		return nil, &api.SchemaError{Resource: "auth response", Field: "tokens.access", Reason: "missing"}
	}
	if payload.User == nil || payload.User.ID == 0 || payload.User.Username == "" {
		return nil, &api.SchemaError{Resource: "auth response", Field: "user", Reason: "missing id or username"}
	}

	session := &models.Session{
		Token: newToken(payload.Tokens.Access, payload.Tokens.Refresh),
		User:  payload.User,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.setLocked(session); err != nil {
		return nil, err
	}
	out := *session
	return &out, nil
}

// setLocked installs s in memory and on disk. m.mu must be held.
func (m *Manager) setLocked(s *models.Session) error {
	tokenJSON, err := json.Marshal(s.Token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	userJSON, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := m.store.SetMany(map[string]string{
		store.KeyToken: string(tokenJSON),
		store.KeyUser:  string(userJSON),
	}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	m.session = s
	m.authHeader = s.Token.Type() + " " + s.Token.AccessToken
	return nil
}

// clear drops the session from memory first, then from disk.
func (m *Manager) clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked()
}

func (m *Manager) clearLocked() error {
	m.session = nil
	m.authHeader = ""
	if err := m.store.Delete(store.KeyToken, store.KeyUser); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// loadSession restores the persisted session. A half-written or corrupt
// pair is discarded.
func (m *Manager) loadSession() error {
	tokenJSON, hasToken, err := m.store.Get(store.KeyToken)
	if err != nil {
		return err
	}
	userJSON, hasUser, err := m.store.Get(store.KeyUser)
	if err != nil {
		return err
	}
	if !hasToken && !hasUser {
		return nil
	}

	var tok oauth2.Token
	var user models.User
	if !hasToken || !hasUser ||
		json.Unmarshal([]byte(tokenJSON), &tok) != nil || tok.AccessToken == "" ||
		json.Unmarshal([]byte(userJSON), &user) != nil {
		m.logger.Printf("Discarding incomplete persisted session")
		return m.clear()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &models.Session{Token: &tok, User: &user}
	m.authHeader = tok.Type() + " " + tok.AccessToken
	return nil
}

func decodeUser(resp []byte) (*models.User, error) {
	var user models.User
	if err := json.Unmarshal(resp, &user); err != nil {
		return nil, &api.SchemaError{Resource: "user", Reason: err.Error()}
	}
	if user.ID == 0 || user.Username == "" {
		return nil, &api.SchemaError{Resource: "user", Field: "id", Reason: "missing id or username"}
	}
	return &user, nil
}

// newToken builds a bearer credential. The expiry is read from the JWT exp
// claim when the access token is a JWT; opaque tokens have no known expiry.
func newToken(access, refresh string) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err == nil && claims.ExpiresAt != nil {
		tok.Expiry = claims.ExpiresAt.Time
	}
	return tok
}
