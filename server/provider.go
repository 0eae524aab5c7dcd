package server

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/existflow/learnportal/internal/logger"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"
	"golang.org/x/oauth2"
)

const (
	providerClientID     = "learnportal-dev"
	providerClientSecret = "learnportal-dev-secret"

	authCodeTTL = 5 * time.Minute
	stateTTL    = 10 * time.Minute

	codePrefix  = "code:"
	statePrefix = "state:"
)

// oauthConfig describes the built-in provider as seen by the backend's
// OAuth client
func (s *Server) oauthConfig(redirectURI string) *oauth2.Config {
	base := s.baseURL()
	return &oauth2.Config{
		ClientID:     providerClientID,
		ClientSecret: providerClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/oauth/authorize",
			TokenURL:  base + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURI,
		Scopes:      []string{"openid", "email", "profile"},
	}
}

type googleOAuthRequest struct {
	Code        string `json:"code" validate:"required"`
	RedirectURI string `json:"redirectUri" validate:"required,url"`
	State       string `json:"state"`
}

// handleGoogleAuthURL returns the provider URL the client should open
func (s *Server) handleGoogleAuthURL(c echo.Context) error {
	redirectURI := c.QueryParam("redirectUri")
	if !validRedirect(redirectURI) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "redirectUri is required"})
	}

	state := ksuid.New().String()
	if err := s.codes.Put(c.Request().Context(), statePrefix+state, redirectURI, stateTTL); err != nil {
		return internalError(c, "failed to store state", err)
	}

	authURL := s.oauthConfig(redirectURI).AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"))

	return c.JSON(http.StatusOK, map[string]string{"authUrl": authURL})
}

// handleGoogleOAuth exchanges an authorization code for a portal session
func (s *Server) handleGoogleOAuth(c echo.Context) error {
	var req googleOAuthRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()

	if req.State != "" {
		expected, err := s.codes.Redeem(ctx, statePrefix+req.State)
		if errors.Is(err, ErrCodeNotFound) || (err == nil && expected != req.RedirectURI) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid state"})
		}
		if err != nil {
			return internalError(c, "failed to check state", err)
		}
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: 10 * time.Second})
	tok, err := s.oauthConfig(req.RedirectURI).Exchange(exchangeCtx, req.Code)
	if err != nil {
		logger.Warn("Code exchange failed", logger.Err(err))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to authenticate with Google."})
	}

	email, _ := tok.Extra("email").(string)
	if email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "provider did not return an email"})
	}

	u, err := s.googleUser(ctx, email)
	if err != nil {
		return internalError(c, "failed to load user", err)
	}

	return s.respondWithSession(c, u)
}

// googleUser finds or creates the account for a provider-verified email
func (s *Server) googleUser(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		u = &User{Email: normalizeEmail(email), Confirmed: true}
		if err := s.repo.CreateUser(ctx, u); err != nil {
			return nil, err
		}
		logger.Info("User created from Google sign-in", logger.F("user_id", u.ID.String()))
		return u, nil
	}
	if err != nil {
		return nil, err
	}

	// The provider has verified the address
	if !u.Confirmed {
		u.Confirmed = true
		u.VerificationCode = ""
		if err := s.repo.UpdateUser(ctx, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

var consentPage = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in to Learn Portal</h1>
<form method="get" action="/oauth/authorize">
<input type="hidden" name="client_id" value="{{.ClientID}}">
<input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
<input type="hidden" name="state" value="{{.State}}">
<label>Email <input type="email" name="login_hint" required></label>
<button type="submit">Continue</button>
<button type="submit" name="deny" value="1" formnovalidate>Cancel</button>
</form>
</body>
</html>
`))

// handleAuthorize is the provider's consent step. With login_hint it issues
// a code immediately, otherwise it asks for an email address.
func (s *Server) handleAuthorize(c echo.Context) error {
	clientID := c.QueryParam("client_id")
	redirectURI := c.QueryParam("redirect_uri")
	state := c.QueryParam("state")

	if clientID != providerClientID {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown client"})
	}
	if !validRedirect(redirectURI) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid redirect_uri"})
	}

	if c.QueryParam("deny") != "" {
		return c.Redirect(http.StatusFound, withQuery(redirectURI, url.Values{
			"error":             {"access_denied"},
			"error_description": {"The user denied access"},
			"state":             {state},
		}))
	}

	email := strings.TrimSpace(c.QueryParam("login_hint"))
	if email == "" {
		var buf bytes.Buffer
		err := consentPage.Execute(&buf, map[string]string{
			"ClientID":    clientID,
			"RedirectURI": redirectURI,
			"State":       state,
		})
		if err != nil {
			return internalError(c, "failed to render consent page", err)
		}
		return c.HTMLBlob(http.StatusOK, buf.Bytes())
	}

	code := ksuid.New().String()
	if err := s.codes.Put(c.Request().Context(), codePrefix+code, normalizeEmail(email)+"\n"+redirectURI, authCodeTTL); err != nil {
		return internalError(c, "failed to store code", err)
	}

	return c.Redirect(http.StatusFound, withQuery(redirectURI, url.Values{
		"code":     {code},
		"state":    {state},
		"scope":    {"openid email profile"},
		"authuser": {"0"},
	}))
}

// handleToken redeems an authorization code. Codes are single use.
func (s *Server) handleToken(c echo.Context) error {
	if c.FormValue("grant_type") != "authorization_code" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
	if c.FormValue("client_id") != providerClientID || c.FormValue("client_secret") != providerClientSecret {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
	}

	stored, err := s.codes.Redeem(c.Request().Context(), codePrefix+c.FormValue("code"))
	if errors.Is(err, ErrCodeNotFound) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
	}
	if err != nil {
		return internalError(c, "failed to redeem code", err)
	}

	email, redirectURI, _ := strings.Cut(stored, "\n")
	if redirectURI != c.FormValue("redirect_uri") {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"access_token": ksuid.New().String(),
		"token_type":   "Bearer",
		"expires_in":   3600,
		"email":        email,
	})
}

func validRedirect(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func withQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	merged := u.Query()
	for k, v := range q {
		merged[k] = v
	}
	u.RawQuery = merged.Encode()
	return u.String()
}
