package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/device-cloud/pkg/device"
	"github.com/tendant/device-cloud/pkg/oidcflow"
	"github.com/tendant/device-cloud/pkg/oidcprovider"
	"github.com/tendant/device-cloud/pkg/session"
	"github.com/tendant/device-cloud/pkg/user"
)

// scriptedProvider drives the flow service without any network traffic
type scriptedProvider struct {
	subject     string
	email       string
	idToken     string
	exchangeErr error
}

func (p *scriptedProvider) Name() string     { return "google" }
func (p *scriptedProvider) ClientID() string { return "test-client" }

func (p *scriptedProvider) ExternalIDField() user.ExternalIDField { return user.FieldGoogleID }
func (p *scriptedProvider) IDTokenParam() string                  { return "oidcGoogle" }

func (p *scriptedProvider) AuthCodeURL(state, codeVerifier string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (p *scriptedProvider) Exchange(ctx context.Context, code, codeVerifier string) (*oidcprovider.TokenSet, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oidcprovider.TokenSet{IDToken: p.idToken}, nil
}

func (p *scriptedProvider) Userinfo(ctx context.Context, tokens *oidcprovider.TokenSet) (*oidcprovider.UserInfo, error) {
	return &oidcprovider.UserInfo{Subject: p.subject, Email: p.email}, nil
}

func (p *scriptedProvider) Verify(ctx context.Context, rawIDToken string) (*oidcprovider.Claims, error) {
	return &oidcprovider.Claims{
		Subject: p.subject,
		Email:   p.email,
		Expiry:  time.Now().Add(time.Hour),
	}, nil
}

type handleFixture struct {
	provider *scriptedProvider
	manager  *session.Manager
	router   chi.Router
}

func setupHandle(t *testing.T) *handleFixture {
	provider := &scriptedProvider{
		subject: "google-sub-1",
		email:   "dev@example.com",
		idToken: "signed-id-token",
	}
	manager := session.NewManager(session.NewInMemStore(), session.WithSecureCookie(false))

	flowService := oidcflow.NewService(
		provider,
		manager.Store(),
		user.NewInMemUserRepository(),
		device.NewAdoptionService(device.NewInMemDeviceRepository()),
		"http://localhost:3000",
	)

	router := chi.NewRouter()
	router.Use(manager.Handler)
	NewHandle(flowService, manager).Routes(router)

	return &handleFixture{provider: provider, manager: manager, router: router}
}

func (f *handleFixture) get(target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	f := setupHandle(t)

	rec := f.get("/oidc/login?deviceId=device-1", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "https://idp.example.com/authorize")
	assert.Contains(t, location, "csrf%3D")
}

func TestLogin_GoogleAliasRoute(t *testing.T) {
	f := setupHandle(t)

	rec := f.get("/oidc/google", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestCallback_MissingParams(t *testing.T) {
	f := setupHandle(t)

	rec := f.get("/oidc/callback", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing_callback_params", body.Error)
}

func TestCallback_NoFlowInProgress(t *testing.T) {
	f := setupHandle(t)

	rec := f.get("/oidc/callback?code=abc&state=csrf%3Dxyz", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing_csrf", body.Error)
}

func TestCallback_UpstreamFailure(t *testing.T) {
	f := setupHandle(t)
	f.provider.exchangeErr = errors.New("token endpoint down")

	// Full round trip: login issues the session cookie and stores the flow
	// state the callback consumes.
	login := f.get("/oidc/login", nil)
	require.Equal(t, http.StatusFound, login.Code)
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	authURL, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	rec := f.get("/oidc/callback?code=abc&state="+url.QueryEscape(state), cookies)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "upstream_error", body.Error)
}

func TestCallback_SuccessRedirect(t *testing.T) {
	f := setupHandle(t)

	login := f.get("/oidc/login", nil)
	require.Equal(t, http.StatusFound, login.Code)
	cookies := login.Result().Cookies()

	authURL, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := authURL.Query().Get("state")

	rec := f.get("/oidc/callback?code=abc&state="+url.QueryEscape(state), cookies)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://localhost:3000/devices", rec.Header().Get("Location"))
}
