package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/existflow/learnportal/internal/api"
	"github.com/existflow/learnportal/internal/auth"
	"github.com/existflow/learnportal/internal/logger"
	"github.com/existflow/learnportal/internal/model"
	"github.com/existflow/learnportal/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNav struct {
	mu   sync.Mutex
	urls []string
}

func (n *recordingNav) Navigate(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	return nil
}

// stubBackend answers every call from its fields
type stubBackend struct {
	loginResp    *api.AuthResponse
	loginErr     error
	registerResp *api.RegisterResponse
	registerErr  error
	confirmErr   error
	resendErr    error
	authURL      string
	authURLErr   error
	oauthResp    *api.AuthResponse
	oauthErr     error

	gotRedirect string
	gotState    string
}

func (b *stubBackend) Login(context.Context, string, string) (*api.AuthResponse, error) {
	return b.loginResp, b.loginErr
}

func (b *stubBackend) Register(context.Context, api.RegisterRequest) (*api.RegisterResponse, error) {
	return b.registerResp, b.registerErr
}

func (b *stubBackend) ConfirmSignUp(context.Context, string, string) error { return b.confirmErr }

func (b *stubBackend) ResendConfirmation(context.Context, string) error { return b.resendErr }

func (b *stubBackend) GoogleAuthURL(_ context.Context, redirectURI string) (string, error) {
	b.gotRedirect = redirectURI
	return b.authURL, b.authURLErr
}

func (b *stubBackend) GoogleOAuth(_ context.Context, _, redirectURI, state string) (*api.AuthResponse, error) {
	b.gotRedirect = redirectURI
	b.gotState = state
	return b.oauthResp, b.oauthErr
}

func newManager(t *testing.T, b auth.Backend) (*auth.Manager, *store.Memory, *recordingNav) {
	t.Helper()
	st := store.NewMemory()
	nav := &recordingNav{}
	return auth.New(b, st, "http://127.0.0.1:8089", nav), st, nav
}

func storedKey(t *testing.T, st store.Store, key string) (string, bool) {
	t.Helper()
	v, ok, err := st.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

func TestLoginAndLogoutAgainstBackend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "t1", "email": "a@x.com"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	m, st, _ := newManager(t, api.New(srv.URL))

	require.NoError(t, m.Login(ctx, "a@x.com", "pw"))
	s := m.State()
	require.NotNil(t, s.User)
	assert.Equal(t, "a@x.com", s.User.Email)
	assert.Equal(t, "t1", s.Token)
	assert.False(t, s.IsLoading)

	token, ok := storedKey(t, st, store.KeyAuthToken)
	assert.True(t, ok)
	assert.Equal(t, "t1", token)
	rawUser, ok := storedKey(t, st, store.KeyAuthUser)
	assert.True(t, ok)
	assert.JSONEq(t, `{"email":"a@x.com"}`, rawUser)

	m.Logout(ctx)
	s = m.State()
	assert.Nil(t, s.User)
	assert.Empty(t, s.Token)
	_, ok = storedKey(t, st, store.KeyAuthToken)
	assert.False(t, ok)
	_, ok = storedKey(t, st, store.KeyAuthUser)
	assert.False(t, ok)
}

func TestLoginNotConfirmedRequiresVerification(t *testing.T) {
	for _, body := range []string{
		`{"error":"User is not confirmed."}`,
		`UserNotConfirmedException: confirm first`,
		`{"message":"Email NOT VERIFIED"}`,
	} {
		t.Run(body, func(t *testing.T) {
			b := &stubBackend{loginErr: &api.HTTPError{Status: 403, Body: body}}
			m, st, _ := newManager(t, b)

			err := m.Login(context.Background(), "new@x.com", "pw")
			require.Error(t, err)
			assert.True(t, errors.Is(err, auth.ErrVerificationRequired))
			assert.False(t, errors.Is(err, auth.ErrAuthFailed))

			s := m.State()
			assert.True(t, s.RequiresVerification)
			assert.Equal(t, "new@x.com", s.VerificationEmail)
			assert.Nil(t, s.User)
			_, ok := storedKey(t, st, store.KeyAuthToken)
			assert.False(t, ok)
		})
	}
}

func TestLoginFailureCarriesBackendMessage(t *testing.T) {
	b := &stubBackend{loginErr: &api.HTTPError{Status: 401, Body: `{"error":"invalid credentials"}`}}
	m, _, _ := newManager(t, b)

	err := m.Login(context.Background(), "a@x.com", "bad")
	var authErr *auth.Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, auth.KindAuthFailed, authErr.Kind)
	assert.Equal(t, "invalid credentials", authErr.Error())
	assert.False(t, m.State().RequiresVerification)

	b.loginErr = errors.New("failed to connect: refused")
	err = m.Login(context.Background(), "a@x.com", "bad")
	assert.Equal(t, "Login failed", err.Error())
}

func TestLoginClearsPriorVerificationState(t *testing.T) {
	b := &stubBackend{loginErr: &api.HTTPError{Status: 403, Body: "not confirmed"}}
	m, _, _ := newManager(t, b)
	ctx := context.Background()

	_ = m.Login(ctx, "a@x.com", "pw")
	require.True(t, m.State().RequiresVerification)

	b.loginErr = nil
	b.loginResp = &api.AuthResponse{Token: "t2", Email: "a@x.com"}
	require.NoError(t, m.Login(ctx, "a@x.com", "pw"))
	s := m.State()
	assert.False(t, s.RequiresVerification)
	assert.Empty(t, s.VerificationEmail)
}

func TestIsLoadingTogglesOncePerOperation(t *testing.T) {
	b := &stubBackend{loginErr: &api.HTTPError{Status: 500, Body: "boom"}}
	m, _, _ := newManager(t, b)

	var flips []bool
	last := false
	m.OnChange(func(s auth.State) {
		if s.IsLoading != last {
			flips = append(flips, s.IsLoading)
			last = s.IsLoading
		}
	})

	_ = m.Login(context.Background(), "a@x.com", "pw")
	assert.Equal(t, []bool{true, false}, flips)
	assert.False(t, m.State().IsLoading)
}

func TestRegisterWithVerification(t *testing.T) {
	b := &stubBackend{registerResp: &api.RegisterResponse{RequiresVerification: true}}
	m, st, _ := newManager(t, b)

	pending, err := m.Register(context.Background(), api.RegisterRequest{Email: "n@x.com", Password: "password1"})
	require.NoError(t, err)
	assert.True(t, pending)

	s := m.State()
	assert.True(t, s.RequiresVerification)
	assert.Equal(t, "n@x.com", s.VerificationEmail)
	assert.Nil(t, s.User)
	_, ok := storedKey(t, st, store.KeyAuthToken)
	assert.False(t, ok)
}

func TestRegisterWithoutVerificationEstablishesSession(t *testing.T) {
	b := &stubBackend{registerResp: &api.RegisterResponse{Token: "t3", Email: "n@x.com"}}
	m, st, _ := newManager(t, b)

	pending, err := m.Register(context.Background(), api.RegisterRequest{
		Email: "n@x.com", Password: "password1", FirstName: "Nia", LastName: "Ode",
	})
	require.NoError(t, err)
	assert.False(t, pending)

	s := m.State()
	require.NotNil(t, s.User)
	assert.Equal(t, "Nia Ode", s.User.DisplayName())
	token, _ := storedKey(t, st, store.KeyAuthToken)
	assert.Equal(t, "t3", token)
}

func TestRegisterFailure(t *testing.T) {
	b := &stubBackend{registerErr: &api.HTTPError{Status: 409, Body: `{"error":"email already registered"}`}}
	m, _, _ := newManager(t, b)

	_, err := m.Register(context.Background(), api.RegisterRequest{Email: "n@x.com", Password: "password1"})
	assert.True(t, errors.Is(err, auth.ErrRegistrationFailed))
	assert.Equal(t, "email already registered", err.Error())
}

func TestConfirmSignUpDoesNotLogIn(t *testing.T) {
	b := &stubBackend{registerResp: &api.RegisterResponse{RequiresVerification: true}}
	m, _, _ := newManager(t, b)
	ctx := context.Background()

	_, err := m.Register(ctx, api.RegisterRequest{Email: "n@x.com", Password: "password1"})
	require.NoError(t, err)

	require.NoError(t, m.ConfirmSignUp(ctx, "n@x.com", "123456"))
	s := m.State()
	assert.False(t, s.RequiresVerification)
	assert.Empty(t, s.VerificationEmail)
	assert.Nil(t, s.User)
	assert.Empty(t, s.Token)
}

func TestConfirmAndResendFailures(t *testing.T) {
	b := &stubBackend{
		confirmErr: errors.New("network down"),
		resendErr:  &api.HTTPError{Status: 429, Body: "slow down"},
	}
	m, _, _ := newManager(t, b)
	ctx := context.Background()

	err := m.ConfirmSignUp(ctx, "n@x.com", "000000")
	assert.True(t, errors.Is(err, auth.ErrConfirmFailed))
	assert.Equal(t, "Confirmation failed", err.Error())

	err = m.ResendConfirmationCode(ctx, "n@x.com")
	assert.True(t, errors.Is(err, auth.ErrResendFailed))
	assert.Equal(t, "slow down", err.Error())
}

func TestLoginWithGoogleNavigates(t *testing.T) {
	b := &stubBackend{authURL: "https://accounts.example/auth?x=1"}
	m, _, nav := newManager(t, b)

	require.NoError(t, m.LoginWithGoogle(context.Background()))
	assert.Equal(t, "http://127.0.0.1:8089/", b.gotRedirect)
	assert.Equal(t, []string{"https://accounts.example/auth?x=1"}, nav.urls)
	assert.False(t, m.State().IsLoading)
}

func TestLoginWithGoogleFailure(t *testing.T) {
	b := &stubBackend{authURLErr: errors.New("refused")}
	m, _, nav := newManager(t, b)

	err := m.LoginWithGoogle(context.Background())
	assert.True(t, errors.Is(err, auth.ErrGoogleAuthURLFailed))
	assert.Equal(t, "Failed to get Google auth URL", err.Error())
	assert.Empty(t, nav.urls)
}

func TestHandleGoogleCallback(t *testing.T) {
	b := &stubBackend{oauthResp: &api.AuthResponse{Token: "g1", Email: "g@x.com", FirstName: "Gee"}}
	m, st, _ := newManager(t, b)

	var seen []*model.User
	m.OnIdentityChange(func(_ context.Context, u *model.User) { seen = append(seen, u) })

	require.NoError(t, m.HandleGoogleCallback(context.Background(), "code-1", "st-1"))
	assert.Equal(t, "http://127.0.0.1:8089/", b.gotRedirect)
	assert.Equal(t, "st-1", b.gotState)

	s := m.State()
	require.NotNil(t, s.User)
	assert.Equal(t, "g@x.com", s.User.Email)
	assert.Equal(t, "g1", s.Token)
	token, _ := storedKey(t, st, store.KeyAuthToken)
	assert.Equal(t, "g1", token)

	require.Len(t, seen, 1)
	assert.Equal(t, "g@x.com", seen[0].Email)
}

func TestHandleGoogleCallbackFailure(t *testing.T) {
	b := &stubBackend{oauthErr: &api.HTTPError{Status: 400, Body: `{"error":"invalid_grant"}`}}
	m, _, _ := newManager(t, b)

	err := m.HandleGoogleCallback(context.Background(), "used", "")
	assert.True(t, errors.Is(err, auth.ErrGoogleOAuthFailed))
	assert.Equal(t, "invalid_grant", err.Error())
	assert.Nil(t, m.State().User)
}

func TestHydrateRestoresSession(t *testing.T) {
	m, st, _ := newManager(t, &stubBackend{})
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.KeyAuthToken, "t9"))
	require.NoError(t, st.Set(ctx, store.KeyAuthUser, `{"email":"h@x.com","firstName":"H"}`))

	var seen *model.User
	m.OnIdentityChange(func(_ context.Context, u *model.User) { seen = u })

	require.NoError(t, m.Hydrate(ctx))
	s := m.State()
	require.NotNil(t, s.User)
	assert.Equal(t, "h@x.com", s.User.Email)
	assert.Equal(t, "t9", s.Token)
	require.NotNil(t, seen)
	assert.Equal(t, "h@x.com", seen.Email)
}

func TestHydrateClearsCorruptOrPartialState(t *testing.T) {
	cases := map[string]struct {
		entries map[string]string
		warning string
	}{
		"corrupt user": {map[string]string{store.KeyAuthToken: "t9", store.KeyAuthUser: "{not json"}, "Stored user is corrupt"},
		"empty email":  {map[string]string{store.KeyAuthToken: "t9", store.KeyAuthUser: `{"email":""}`}, "Stored user has no email"},
		"token only":   {map[string]string{store.KeyAuthToken: "t9"}, "Stored session is incomplete"},
		"user only":    {map[string]string{store.KeyAuthUser: `{"email":"h@x.com"}`}, "Stored session is incomplete"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var logs bytes.Buffer
			t.Cleanup(logger.ReplaceGlobal(logger.NewWriter(&logs, logger.DEBUG)))

			m, st, _ := newManager(t, &stubBackend{})
			ctx := context.Background()
			for k, v := range tc.entries {
				require.NoError(t, st.Set(ctx, k, v))
			}

			require.NoError(t, m.Hydrate(ctx))
			assert.Nil(t, m.State().User)
			assert.Contains(t, logs.String(), "WARN")
			assert.Contains(t, logs.String(), tc.warning)
			_, ok := storedKey(t, st, store.KeyAuthToken)
			assert.False(t, ok)
			_, ok = storedKey(t, st, store.KeyAuthUser)
			assert.False(t, ok)
		})
	}
}

func TestStateReturnsCopy(t *testing.T) {
	b := &stubBackend{loginResp: &api.AuthResponse{Token: "t1", Email: "a@x.com"}}
	m, _, _ := newManager(t, b)
	require.NoError(t, m.Login(context.Background(), "a@x.com", "pw"))

	s := m.State()
	s.User.Email = "mutated@x.com"
	assert.Equal(t, "a@x.com", m.State().User.Email)
}
