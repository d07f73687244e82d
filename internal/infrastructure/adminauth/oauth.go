// SPDX-License-Identifier: AGPL-3.0-or-later

// Package adminauth gates the admin surface (operator session, audit history)
// behind an OAuth2 + PKCE login, session-backed by a signed cookie.
package adminauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"golang.org/x/oauth2"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/pkg/crypto"
	"github.com/trellisfw/masklink/pkg/logger"
)

// Operator is the authenticated admin identity kept in the session.
type Operator struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Config configures the admin OAuth2 login flow.
type Config struct {
	SessionName   string
	BaseURL       string
	ClientID      string
	ClientSecret  string
	AuthURL       string
	TokenURL      string
	UserInfoURL   string
	Scopes        []string
	AllowedDomain string
	CookieSecret  []byte
	SecureCookies bool
}

// Service implements the OAuth2 + PKCE login flow and session lookup for the admin
// surface.
type Service struct {
	sessionName   string
	oauthConfig   *oauth2.Config
	sessionStore  *sessions.CookieStore
	userInfoURL   string
	allowedDomain string
}

// NewService constructs an admin auth Service.
func NewService(cfg Config) *Service {
	sessionName := cfg.SessionName
	if sessionName == "" {
		sessionName = "masklink_admin"
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.BaseURL + "/api/v1/admin/callback",
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}

	store := sessions.NewCookieStore(cfg.CookieSecret)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // 1 day: admin sessions are shorter-lived than a regular login
	}

	return &Service{
		sessionName:   sessionName,
		oauthConfig:   oauthConfig,
		sessionStore:  store,
		userInfoURL:   cfg.UserInfoURL,
		allowedDomain: cfg.AllowedDomain,
	}
}

// GetOperator reads the authenticated operator from the session, or
// models.ErrUnauthorized if none is present.
func (s *Service) GetOperator(r *http.Request) (*Operator, error) {
	session, err := s.sessionStore.Get(r, s.sessionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin session: %w", err)
	}

	raw, ok := session.Values["operator"].(string)
	if !ok || raw == "" {
		return nil, models.ErrUnauthorized
	}

	var op Operator
	if err := json.Unmarshal([]byte(raw), &op); err != nil {
		return nil, fmt.Errorf("failed to decode admin session: %w", err)
	}
	return &op, nil
}

func (s *Service) setOperator(w http.ResponseWriter, r *http.Request, op *Operator) error {
	session, err := s.sessionStore.New(r, s.sessionName)
	if err != nil {
		return fmt.Errorf("failed to create admin session: %w", err)
	}

	raw, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to encode admin session: %w", err)
	}
	session.Values["operator"] = string(raw)

	return session.Save(r, w)
}

// Logout expires the admin session cookie.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionStore.Get(r, s.sessionName)
	session.Options.MaxAge = -1
	_ = session.Save(r, w)
}

// CreateAuthURL starts a PKCE-protected login, storing state and the code verifier in
// the pre-login session.
func (s *Service) CreateAuthURL(w http.ResponseWriter, r *http.Request) (string, error) {
	codeVerifier, err := crypto.GenerateCodeVerifier()
	if err != nil {
		return "", fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}
	codeChallenge := crypto.GenerateCodeChallenge(codeVerifier)

	state := base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(20))

	session, err := s.sessionStore.New(r, s.sessionName)
	if err != nil {
		return "", fmt.Errorf("failed to create login session: %w", err)
	}
	session.Values["oauth_state"] = state
	session.Values["code_verifier"] = codeVerifier
	if err := session.Save(r, w); err != nil {
		logger.Logger.Warn("adminauth: failed to persist login session", "error", err.Error())
	}

	return s.oauthConfig.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

// HandleCallback exchanges the authorization code for a token, fetches the operator's
// identity, checks the allowed domain, and establishes the admin session.
func (s *Service) HandleCallback(ctx context.Context, w http.ResponseWriter, r *http.Request, code, state string) (*Operator, error) {
	session, _ := s.sessionStore.Get(r, s.sessionName)
	storedState, _ := session.Values["oauth_state"].(string)
	codeVerifier, _ := session.Values["code_verifier"].(string)

	if storedState == "" || state == "" || !constantTimeEqual(storedState, state) {
		return nil, models.ErrUnauthorized
	}

	token, err := s.oauthConfig.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("admin oauth exchange failed: %w", err)
	}

	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("admin userinfo request failed: %w", err)
	}
	defer func(body io.ReadCloser) { _ = body.Close() }(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("admin userinfo request returned status %d", resp.StatusCode)
	}

	op, err := s.parseOperator(resp)
	if err != nil {
		return nil, err
	}

	if s.allowedDomain != "" && !strings.HasSuffix(strings.ToLower(op.Email), "@"+strings.ToLower(s.allowedDomain)) {
		return nil, models.ErrUnauthorized
	}

	if err := s.setOperator(w, r, op); err != nil {
		return nil, err
	}

	logger.Logger.Info("adminauth: operator logged in", "email", op.Email)
	return op, nil
}

func (s *Service) parseOperator(resp *http.Response) (*Operator, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	email, _ := raw["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("userinfo response is missing email")
	}
	name, _ := raw["name"].(string)

	return &Operator{Email: email, Name: name}, nil
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
