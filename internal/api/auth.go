package api

import (
	"context"
	"net/http"
	"net/url"
)

// AuthResponse is returned by login and the Google code exchange
type AuthResponse struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// RegisterRequest is the body of POST /api/auth/register
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// RegisterResponse carries either a verification requirement or a session
type RegisterResponse struct {
	RequiresVerification bool   `json:"requiresVerification,omitempty"`
	Token                string `json:"token,omitempty"`
	Email                string `json:"email,omitempty"`
	FirstName            string `json:"firstName,omitempty"`
	LastName             string `json:"lastName,omitempty"`
}

// Login authenticates with email and password
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmSignUp submits an email verification code
func (c *Client) ConfirmSignUp(ctx context.Context, email, code string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/confirm-signup", map[string]string{
		"email":            email,
		"confirmationCode": code,
	}, nil)
}

// ResendConfirmation asks the backend to send a new verification code
func (c *Client) ResendConfirmation(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/resend-confirmation", map[string]string{
		"email": email,
	}, nil)
}

// GoogleAuthURL requests the provider authorization URL for redirectURI
func (c *Client) GoogleAuthURL(ctx context.Context, redirectURI string) (string, error) {
	var out struct {
		AuthURL string `json:"authUrl"`
	}
	path := "/api/auth/google-auth-url?redirectUri=" + url.QueryEscape(redirectURI)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.AuthURL, nil
}

// GoogleOAuth exchanges an authorization code for a portal session
func (c *Client) GoogleOAuth(ctx context.Context, code, redirectURI, state string) (*AuthResponse, error) {
	body := struct {
		Code        string `json:"code"`
		RedirectURI string `json:"redirectUri"`
		State       string `json:"state,omitempty"`
	}{code, redirectURI, state}

	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/google-oauth", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
