package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/carelink/portal-auth/internal/config"
	"github.com/carelink/portal-auth/internal/handler"
	"github.com/carelink/portal-auth/internal/middleware"
	"github.com/carelink/portal-auth/internal/model"
	"github.com/carelink/portal-auth/internal/repository"
	"github.com/carelink/portal-auth/internal/router"
	"github.com/carelink/portal-auth/internal/service"
	"github.com/carelink/portal-auth/internal/utils"
)

// memStore is an in-memory AccountStore for exercising the HTTP surface.
type memStore struct {
	role model.Role

	mu       sync.Mutex
	accounts map[string]model.Account
}

func newMemStore(role model.Role) *memStore {
	return &memStore{role: role, accounts: map[string]model.Account{}}
}

func (s *memStore) Role() model.Role { return s.role }

func (s *memStore) Create(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return repository.ErrEmailExists
		}
		if a.Username != "" && existing.Username == a.Username {
			return repository.ErrUsernameExists
		}
	}
	a.ID = uuid.NewString()
	a.Role = s.role
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	s.accounts[a.ID] = *a
	return nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (s *memStore) FindByUsername(_ context.Context, username string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (s *memStore) FindByID(_ context.Context, id string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (s *memStore) UpdatePassword(_ context.Context, id, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.PasswordHash = newHash
	s.accounts[id] = a
	return nil
}

func (s *memStore) UpdateProfile(_ context.Context, id string, patch repository.ProfilePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Username != nil {
		a.Username = *patch.Username
	}
	s.accounts[id] = a
	return nil
}

func (s *memStore) SetBlocked(_ context.Context, id string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Blocked = blocked
	s.accounts[id] = a
	return nil
}

func (s *memStore) IsBlocked(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	return a.Blocked, nil
}

func (s *memStore) TouchLastLogin(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	a.LastLogin = &now
	s.accounts[id] = a
	return nil
}

func (s *memStore) List(_ context.Context) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out, nil
}

// nullMailer swallows mail; the tests read codes out of the token store.
type nullMailer struct{}

func (nullMailer) Send(context.Context, string, string, string) error { return nil }

var appSecrets = utils.SecretSet{
	AccessSecret:        "app-access",
	RefreshSecret:       "app-refresh",
	DoctorAccessSecret:  "app-dr-access",
	DoctorRefreshSecret: "app-dr-refresh",
}

// testApp is a fully wired HTTP surface over in-memory stores.
type testApp struct {
	e        *echo.Echo
	patients *memStore
	doctors  *memStore
	admins   *memStore
	tokens   *repository.TokenRepo
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := &testApp{
		e:        echo.New(),
		patients: newMemStore(model.RolePatient),
		doctors:  newMemStore(model.RoleDoctor),
		admins:   newMemStore(model.RoleAdmin),
		tokens:   repository.NewTokenRepo(rdb),
	}
	mail := nullMailer{}

	register := func(prefix string, store *memStore, accessTTL, resetTTL time.Duration) {
		auth := service.NewAuthService(store, app.tokens, appSecrets, accessTTL, 7*24*time.Hour, 10, nil)
		signup := service.NewSignupService(store, app.tokens, auth, mail, 90*time.Second, 7*time.Minute)
		reset := service.NewPasswordResetService(store, app.tokens, mail, resetTTL, 10, nil)
		h := handler.NewAuthHandler(auth, signup, reset, "https://portal.test/reset", false)
		router.RegisterRole(app.e, prefix, store.Role(), router.RoleDeps{
			Handler:  h,
			Secrets:  appSecrets,
			Accounts: store,
			Tokens:   app.tokens,
		})
	}
	register("/v1/patient", app.patients, 15*time.Minute, time.Hour)
	register("/v1/doctor", app.doctors, 5*time.Minute, 5*time.Minute)

	adminAuth := service.NewAuthService(app.admins, app.tokens, appSecrets, 15*time.Minute, 7*24*time.Hour, 10, nil)
	adminH := handler.NewAuthHandler(adminAuth, nil, nil, "", false)
	adminSvc := service.NewAdminService(app.patients, app.doctors, app.tokens, nil)
	router.RegisterAdmin(app.e, router.RoleDeps{
		Handler:  adminH,
		Secrets:  appSecrets,
		Accounts: app.admins,
		Tokens:   app.tokens,
	}, handler.NewAdminHandler(adminSvc))

	router.RegisterRoutes(app.e)
	return app
}

// do sends a JSON request (with optional cookies) and returns the recorder.
func (a *testApp) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, ck := range cookies {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

// seed inserts an account with a bcrypt-hashed password.
func seed(t *testing.T, store *memStore, username, email, password string) model.Account {
	t.Helper()
	hash, err := utils.HashPassword(password, 10)
	require.NoError(t, err)
	a := model.Account{Username: username, Email: email, PasswordHash: hash}
	require.NoError(t, store.Create(context.Background(), &a))
	return a
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSignupFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	rec := app.do(http.MethodPost, "/v1/patient/send-otp", map[string]string{
		"username": "pat",
		"email":    "P@X.com", // normalized to lower case by the handler
		"password": "pass-1234",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	otp, err := app.tokens.GetSignupOTP(ctx, model.RolePatient, "p@x.com")
	require.NoError(t, err)
	require.Len(t, otp, 6)

	rec = app.do(http.MethodPost, "/v1/patient/verify-otp", map[string]string{
		"email": "p@x.com",
		"otp":   otp,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	require.NotEmpty(t, body["accessToken"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "pat", user["username"])
	require.NotContains(t, user, "password_hash")

	cookies := rec.Result().Cookies()
	require.NotNil(t, cookieByName(cookies, "accessToken"))
	refresh := cookieByName(cookies, "refreshToken")
	require.NotNil(t, refresh)
	require.True(t, refresh.HttpOnly)

	// Replaying the consumed code must not mint another account.
	rec = app.do(http.MethodPost, "/v1/patient/verify-otp", map[string]string{
		"email": "p@x.com",
		"otp":   otp,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendOTPConflict(t *testing.T) {
	app := newTestApp(t)
	seed(t, app.patients, "pat", "p@x.com", "pass-1234")

	rec := app.do(http.MethodPost, "/v1/patient/send-otp", map[string]string{
		"username": "newbie",
		"email":    "p@x.com",
		"password": "pass-1234",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginOverHTTP(t *testing.T) {
	app := newTestApp(t)
	seed(t, app.patients, "pat", "p@x.com", "pass-1234")

	rec := app.do(http.MethodPost, "/v1/patient/login", map[string]string{
		"email": "p@x.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(http.MethodPost, "/v1/patient/login", map[string]string{
		"email": "p@x.com", "password": "pass-1234",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, cookieByName(rec.Result().Cookies(), "refreshToken"))
}

func TestMeAndBlockOverHTTP(t *testing.T) {
	app := newTestApp(t)
	a := seed(t, app.patients, "pat", "p@x.com", "pass-1234")
	seed(t, app.admins, "root", "admin@x.com", "admin-pass")

	rec := app.do(http.MethodPost, "/v1/patient/login", map[string]string{
		"email": "p@x.com", "password": "pass-1234",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	access := cookieByName(rec.Result().Cookies(), "accessToken")
	require.NotNil(t, access)

	rec = app.do(http.MethodGet, "/v1/patient/me", nil, access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Admin blocks the patient; the same access token now bounces.
	rec = app.do(http.MethodPost, "/v1/admin/login", map[string]string{
		"email": "admin@x.com", "password": "admin-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	adminAccess := cookieByName(rec.Result().Cookies(), "adminAccessToken")
	require.NotNil(t, adminAccess)

	rec = app.do(http.MethodPut, "/v1/admin/patients/"+a.ID+"/block", nil, adminAccess)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(http.MethodGet, "/v1/patient/me", nil, access)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateMeOverHTTP(t *testing.T) {
	app := newTestApp(t)
	seed(t, app.patients, "pat", "p@x.com", "pass-1234")

	rec := app.do(http.MethodPost, "/v1/patient/login", map[string]string{
		"email": "p@x.com", "password": "pass-1234",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	access := cookieByName(rec.Result().Cookies(), "accessToken")

	rec = app.do(http.MethodPut, "/v1/patient/me", map[string]string{
		"username": "renamed",
	}, access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	user, _ := body["user"].(map[string]any)
	require.Equal(t, "renamed", user["username"])

	// Unauthenticated update bounces.
	rec = app.do(http.MethodPut, "/v1/patient/me", map[string]string{"username": "x"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	app := newTestApp(t)
	seed(t, app.patients, "pat", "p@x.com", "pass-1234")

	rec := app.do(http.MethodPost, "/v1/patient/login", map[string]string{
		"email": "p@x.com", "password": "pass-1234",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	oldRefresh := cookieByName(rec.Result().Cookies(), "refreshToken")
	require.NotNil(t, oldRefresh)

	rec = app.do(http.MethodPost, "/v1/patient/refresh-token", nil, oldRefresh)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	newRefresh := cookieByName(rec.Result().Cookies(), "refreshToken")
	require.NotNil(t, newRefresh)
	require.NotEqual(t, oldRefresh.Value, newRefresh.Value)

	// The displaced cookie is dead.
	rec = app.do(http.MethodPost, "/v1/patient/refresh-token", nil, oldRefresh)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(http.MethodPost, "/v1/patient/refresh-token", nil, newRefresh)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutOverHTTP(t *testing.T) {
	app := newTestApp(t)
	seed(t, app.patients, "pat", "p@x.com", "pass-1234")

	rec := app.do(http.MethodPost, "/v1/patient/login", map[string]string{
		"email": "p@x.com", "password": "pass-1234",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	access := cookieByName(rec.Result().Cookies(), "accessToken")
	refresh := cookieByName(rec.Result().Cookies(), "refreshToken")

	rec = app.do(http.MethodPost, "/v1/patient/logout", nil, access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The refresh token died with the session.
	rec = app.do(http.MethodPost, "/v1/patient/refresh-token", nil, refresh)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	a := seed(t, app.patients, "pat", "p@x.com", "old-pass")

	// Unknown address gets the same answer as a known one.
	rec := app.do(http.MethodPost, "/v1/patient/forgot-password", map[string]string{"email": "ghost@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(http.MethodPost, "/v1/patient/forgot-password", map[string]string{"email": "p@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	token, err := app.tokens.GetResetToken(ctx, model.RolePatient, a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	rec = app.do(http.MethodGet, "/v1/patient/verify-reset-token?token="+token+"&email=p@x.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(http.MethodGet, "/v1/patient/verify-reset-token?token=bogus&email=p@x.com", nil)
	require.Equal(t, http.StatusGone, rec.Code)

	rec = app.do(http.MethodPost, "/v1/patient/reset-password", map[string]string{
		"token": token, "email": "p@x.com", "new_password": "new-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Token is single use.
	rec = app.do(http.MethodPost, "/v1/patient/reset-password", map[string]string{
		"token": token, "email": "p@x.com", "new_password": "third-pass",
	})
	require.Equal(t, http.StatusGone, rec.Code)

	// Old password is out, the new one is in.
	rec = app.do(http.MethodPost, "/v1/patient/login", map[string]string{
		"email": "p@x.com", "password": "old-pass",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = app.do(http.MethodPost, "/v1/patient/login", map[string]string{
		"email": "p@x.com", "password": "new-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleIsolationOverHTTP(t *testing.T) {
	app := newTestApp(t)
	seed(t, app.patients, "pat", "p@x.com", "pass-1234")

	rec := app.do(http.MethodPost, "/v1/patient/login", map[string]string{
		"email": "p@x.com", "password": "pass-1234",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	access := cookieByName(rec.Result().Cookies(), "accessToken")

	// A patient token on the doctor group fails verification outright.
	rec = app.do(http.MethodGet, "/v1/doctor/me", nil, access)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// And the admin group does not even see the patient cookie.
	rec = app.do(http.MethodGet, "/v1/admin/patients", nil, access)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCodeGuessingEndpointsAreThrottled(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemStore(model.RolePatient)
	tokens := repository.NewTokenRepo(rdb)
	auth := service.NewAuthService(store, tokens, appSecrets, 15*time.Minute, 7*24*time.Hour, 10, nil)
	signup := service.NewSignupService(store, tokens, auth, nullMailer{}, 90*time.Second, 7*time.Minute)
	reset := service.NewPasswordResetService(store, tokens, nullMailer{}, time.Hour, 10, nil)
	h := handler.NewAuthHandler(auth, signup, reset, "https://portal.test/reset", false)

	limiter := middleware.NewTokenBucket(config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		Prefix:         "rl",
	}, rdb)

	e := echo.New()
	router.RegisterRole(e, "/v1/patient", model.RolePatient, router.RoleDeps{
		Handler:  h,
		Secrets:  appSecrets,
		Accounts: store,
		Tokens:   tokens,
		Limiter:  limiter,
	})

	fire := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	// Each route has its own bucket of 2; the third attempt must bounce
	// before the handler even sees the code.
	for _, path := range []string{"/v1/patient/verify-otp", "/v1/patient/reset-password"} {
		for i := 0; i < 2; i++ {
			code := fire(path)
			require.NotEqual(t, http.StatusTooManyRequests, code, "%s attempt %d", path, i)
		}
		require.Equal(t, http.StatusTooManyRequests, fire(path), path)
	}
}

func TestAdminListsOverHTTP(t *testing.T) {
	app := newTestApp(t)
	seed(t, app.patients, "p1", "p1@x.com", "pw-123456")
	seed(t, app.patients, "p2", "p2@x.com", "pw-123456")
	seed(t, app.doctors, "dr", "d@x.com", "pw-123456")
	seed(t, app.admins, "root", "admin@x.com", "admin-pass")

	rec := app.do(http.MethodPost, "/v1/admin/login", map[string]string{
		"email": "admin@x.com", "password": "admin-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	adminAccess := cookieByName(rec.Result().Cookies(), "adminAccessToken")

	rec = app.do(http.MethodGet, "/v1/admin/patients", nil, adminAccess)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	patients, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, patients, 2)

	rec = app.do(http.MethodGet, "/v1/admin/doctors", nil, adminAccess)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	doctors, _ := body["data"].([]any)
	require.Len(t, doctors, 1)

	// Unknown account id on a block action.
	rec = app.do(http.MethodPut, "/v1/admin/patients/no-such-id/block", nil, adminAccess)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
