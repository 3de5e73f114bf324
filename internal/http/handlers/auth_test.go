package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jsensharma/carhub/internal/auth"
	"github.com/jsensharma/carhub/internal/domain/user"
	"github.com/jsensharma/carhub/internal/http/handlers"
	"github.com/jsensharma/carhub/internal/http/middlewares"
	"github.com/jsensharma/carhub/internal/mail"
	"github.com/jsensharma/carhub/internal/oauth"
	"github.com/jsensharma/carhub/internal/observability"
	"github.com/jsensharma/carhub/internal/security"
	"github.com/prometheus/client_golang/prometheus"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// In-memory credential store with the same uniqueness behavior the
// database enforces.

type memUsers struct {
	byID map[string]user.User
	seq  int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]user.User{}}
}

func (m *memUsers) Create(ctx context.Context, u user.User) (user.User, error) {
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return user.User{}, user.ErrEmailTaken
		}
		if u.Role == user.RoleAdmin && existing.Role == user.RoleAdmin {
			return user.User{}, user.ErrAdminExists
		}
	}

	m.seq++
	if u.ID == "" {
		u.ID = fmt.Sprintf("u-%d", m.seq)
	}

	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (user.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id string) (user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpdateProfile(ctx context.Context, id string, name, email *string) (user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if email != nil {
		for _, other := range m.byID {
			if other.ID != id && other.Email == *email {
				return user.User{}, user.ErrEmailTaken
			}
		}
		u.Email = *email
	}

	if name != nil {
		u.Name = *name
	}

	u.UpdatedAt = time.Now().UTC()
	m.byID[id] = u
	return u, nil
}

func (m *memUsers) SetResetOTP(ctx context.Context, id, otp string, expiry time.Time) error {
	u, ok := m.byID[id]
	if !ok {
		return user.ErrNotFound
	}

	u.ResetOTP = &otp
	u.OTPExpiry = &expiry
	m.byID[id] = u
	return nil
}

func (m *memUsers) ResetPassword(ctx context.Context, id, passwordHash string) error {
	u, ok := m.byID[id]
	if !ok {
		return user.ErrNotFound
	}

	u.PasswordHash = &passwordHash
	u.ResetOTP = nil
	u.OTPExpiry = nil
	m.byID[id] = u
	return nil
}

type fakeMailer struct {
	err  error
	sent []mail.SendPasswordResetInput
}

func (f *fakeMailer) SendPasswordReset(ctx context.Context, in mail.SendPasswordResetInput) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, in)
	return nil
}

type fakeVerifier struct {
	verifyFn func(ctx context.Context, raw string) (oauth.Identity, error)
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (oauth.Identity, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, raw)
	}
	return oauth.Identity{}, oauth.ErrInvalidToken
}

type testEnv struct {
	router   *gin.Engine
	users    *memUsers
	mailer   *fakeMailer
	verifier *fakeVerifier
	jwt      *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUsers()
	mailer := &fakeMailer{}
	verifier := &fakeVerifier{}
	jwtManager := auth.NewManager("test-secret-key", time.Hour)
	prom := observability.NewProm(prometheus.NewRegistry())

	h := handlers.NewAuthHandler(users, jwtManager, mailer, verifier, prom)
	mw := middlewares.NewAuthMiddleware(jwtManager, users)

	r := gin.New()
	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/login", h.Login)
	r.POST("/admin/signup", h.AdminSignUp)
	r.POST("/admin/login", h.AdminLogin)
	r.GET("/user/profile", mw.RequireAuth(), h.GetProfile)
	r.PUT("/user/profile", mw.RequireAuth(), h.UpdateProfile)
	r.POST("/user/forgot-password", h.ForgotPassword)
	r.POST("/user/verify-otp", h.VerifyOTPAndReset)
	r.POST("/user/google-login", h.GoogleLogin)
	r.POST("/user/logout", h.Logout)

	return &testEnv{
		router:   r,
		users:    users,
		mailer:   mailer,
		verifier: verifier,
		jwt:      jwtManager,
	}
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("could not parse error body %s: %v", body, err)
	}

	return resp.Error.Code
}

func TestSignUp(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/auth/signup",
		`{"name":"Alice","email":"a@x.com","password":"pw123456"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if strings.Contains(strings.ToLower(w.Body.String()), "password") {
		t.Fatalf("signup response leaks a password field: %s", w.Body.String())
	}

	var resp struct {
		Token string       `json:"token"`
		User  user.Profile `json:"user"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("could not parse signup response: %v", err)
	}

	if resp.User.Name != "Alice" || resp.User.Email != "a@x.com" || resp.User.Role != user.RoleUser {
		t.Fatalf("unexpected profile: %+v", resp.User)
	}

	claims, err := env.jwt.VerifyToken(resp.Token)

	if err != nil {
		t.Fatalf("signup token does not verify: %v", err)
	}

	if claims.UserID != resp.User.ID || claims.Role != user.RoleUser {
		t.Fatalf("token identity mismatch: %+v vs %+v", claims, resp.User)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	body := `{"name":"Alice","email":"a@x.com","password":"pw123456"}`

	if w := env.do(http.MethodPost, "/auth/signup", body); w.Code != http.StatusCreated {
		t.Fatalf("first signup failed: %d", w.Code)
	}

	w := env.do(http.MethodPost, "/auth/signup", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", w.Code)
	}

	if code := errorCode(t, w.Body.Bytes()); code != "email_taken" {
		t.Fatalf("expected email_taken, got %q", code)
	}
}

func TestAdminSignUpSingleAdmin(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodPost, "/admin/signup",
		`{"name":"Root","email":"root@x.com","password":"pw123456"}`); w.Code != http.StatusCreated {
		t.Fatalf("first admin signup failed: %d: %s", w.Code, w.Body.String())
	}

	// a second admin must be rejected regardless of email
	w := env.do(http.MethodPost, "/admin/signup",
		`{"name":"Other","email":"other@x.com","password":"pw123456"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for second admin, got %d", w.Code)
	}

	if code := errorCode(t, w.Body.Bytes()); code != "admin_exists" {
		t.Fatalf("expected admin_exists, got %q", code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodPost, "/auth/signup",
		`{"name":"Alice","email":"a@x.com","password":"pw123456"}`)

	// google-only account, no password hash
	subject := "google-sub-1"
	_, err := env.users.Create(context.Background(), user.User{
		Email:           "g@x.com",
		Name:            "Gina",
		Role:            user.RoleUser,
		AuthProvider:    user.ProviderGoogle,
		ProviderSubject: &subject,
	})
	if err != nil {
		t.Fatalf("could not seed google user: %v", err)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "success",
			body:       `{"email":"a@x.com","password":"pw123456"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown email",
			body:       `{"email":"nobody@x.com","password":"pw123456"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong password",
			body:       `{"email":"a@x.com","password":"wrongwrong"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "google-only account",
			body:       `{"email":"g@x.com","password":"pw123456"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	var failureBodies []string

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/auth/login", tc.body)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, w.Code, w.Body.String())
			}

			if tc.wantStatus == http.StatusBadRequest {
				failureBodies = append(failureBodies, w.Body.String())
			}
		})
	}

	// the failure body must not distinguish missing user from bad password
	for i := 1; i < len(failureBodies); i++ {
		if failureBodies[i] != failureBodies[0] {
			t.Fatalf("login failures are distinguishable:\n%s\n%s", failureBodies[0], failureBodies[i])
		}
	}
}

func TestAdminLoginRejectsNonAdmin(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodPost, "/auth/signup",
		`{"name":"Alice","email":"a@x.com","password":"pw123456"}`)

	w := env.do(http.MethodPost, "/admin/login", `{"email":"a@x.com","password":"pw123456"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-admin on admin login, got %d", w.Code)
	}

	if code := errorCode(t, w.Body.Bytes()); code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %q", code)
	}
}

func TestGoogleLogin(t *testing.T) {
	env := newTestEnv(t)

	env.verifier.verifyFn = func(ctx context.Context, raw string) (oauth.Identity, error) {
		if raw != "good-token" {
			return oauth.Identity{}, oauth.ErrInvalidToken
		}
		return oauth.Identity{Subject: "sub-123", Email: "g@x.com", Name: "Gina"}, nil
	}

	// first sight creates the account
	w := env.do(http.MethodPost, "/user/google-login", `{"tokenId":"good-token"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	u, err := env.users.GetByEmail(context.Background(), "g@x.com")

	if err != nil {
		t.Fatalf("google login did not create the account: %v", err)
	}

	if u.AuthProvider != user.ProviderGoogle || u.ProviderSubject == nil || *u.ProviderSubject != "sub-123" {
		t.Fatalf("account not marked as google-authenticated: %+v", u)
	}

	if u.PasswordHash != nil {
		t.Fatalf("google account must not carry a password hash")
	}

	// second call logs into the same account
	before := len(env.users.byID)

	if w := env.do(http.MethodPost, "/user/google-login", `{"tokenId":"good-token"}`); w.Code != http.StatusOK {
		t.Fatalf("repeat google login failed: %d", w.Code)
	}

	if len(env.users.byID) != before {
		t.Fatalf("repeat google login created another account")
	}

	// invalid external token
	w = env.do(http.MethodPost, "/user/google-login", `{"tokenId":"bad-token"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad google token, got %d", w.Code)
	}
}

func signupAndToken(t *testing.T, env *testEnv, name, email string) string {
	t.Helper()

	w := env.do(http.MethodPost, "/auth/signup",
		`{"name":"`+name+`","email":"`+email+`","password":"pw123456"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("could not parse signup response: %v", err)
	}

	return resp.Token
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)

	token := signupAndToken(t, env, "Alice", "a@x.com")

	w := env.do(http.MethodGet, "/user/profile", "", "Authorization", "Bearer "+token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if strings.Contains(strings.ToLower(w.Body.String()), "password") {
		t.Fatalf("profile response leaks a password field: %s", w.Body.String())
	}

	var p user.Profile

	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("could not parse profile: %v", err)
	}

	if p.Name != "Alice" || p.Email != "a@x.com" || p.Role != user.RoleUser {
		t.Fatalf("unexpected profile: %+v", p)
	}

	// partial update, name only
	w = env.do(http.MethodPut, "/user/profile", `{"name":"Alice B"}`, "Authorization", "Bearer "+token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d: %s", w.Code, w.Body.String())
	}

	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("could not parse updated profile: %v", err)
	}

	if p.Name != "Alice B" || p.Email != "a@x.com" {
		t.Fatalf("partial update went wrong: %+v", p)
	}
}

func TestProfileUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header []string
	}{
		{name: "no token"},
		{name: "garbage token", header: []string{"Authorization", "Bearer garbage"}},
		{
			name: "expired token",
			header: []string{"Authorization", "Bearer " + func() string {
				expired := auth.NewManager("test-secret-key", -time.Minute)
				raw, _ := expired.GenerateToken("u-1", "a@x.com", "user")
				return raw
			}()},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/user/profile", "", tc.header...)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestForgotPassword(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodPost, "/auth/signup",
		`{"name":"Alice","email":"a@x.com","password":"pw123456"}`)

	// unknown address
	w := env.do(http.MethodPost, "/user/forgot-password", `{"email":"nobody@x.com"}`)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown email, got %d", w.Code)
	}

	// happy path stores and mails the same code
	w = env.do(http.MethodPost, "/user/forgot-password", `{"email":"a@x.com"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(env.mailer.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(env.mailer.sent))
	}

	u, _ := env.users.GetByEmail(context.Background(), "a@x.com")

	if u.ResetOTP == nil || *u.ResetOTP != env.mailer.sent[0].OTP {
		t.Fatalf("stored OTP does not match mailed OTP")
	}

	if len(*u.ResetOTP) != 6 {
		t.Fatalf("expected a 6-digit OTP, got %q", *u.ResetOTP)
	}
}

func TestForgotPasswordMailFailureKeepsOTP(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodPost, "/auth/signup",
		`{"name":"Alice","email":"a@x.com","password":"pw123456"}`)

	env.mailer.err = errors.New("smtp down")

	w := env.do(http.MethodPost, "/user/forgot-password", `{"email":"a@x.com"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when mail dispatch fails, got %d", w.Code)
	}

	// the OTP state was persisted before dispatch
	u, _ := env.users.GetByEmail(context.Background(), "a@x.com")

	if u.ResetOTP == nil {
		t.Fatalf("OTP should remain stored after a failed dispatch")
	}
}

func TestVerifyOTPAndReset(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodPost, "/auth/signup",
		`{"name":"Alice","email":"a@x.com","password":"oldpass123"}`)

	env.do(http.MethodPost, "/user/forgot-password", `{"email":"a@x.com"}`)

	otp := env.mailer.sent[0].OTP

	// wrong code first
	wrong := "000000"
	if otp == wrong {
		wrong = "111111"
	}

	w := env.do(http.MethodPost, "/user/verify-otp",
		`{"email":"a@x.com","otp":"`+wrong+`","newPassword":"newpass123"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong otp, got %d", w.Code)
	}

	// right code resets
	w = env.do(http.MethodPost, "/user/verify-otp",
		`{"email":"a@x.com","otp":"`+otp+`","newPassword":"newpass123"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// new password works, old one does not
	if w := env.do(http.MethodPost, "/auth/login",
		`{"email":"a@x.com","password":"newpass123"}`); w.Code != http.StatusOK {
		t.Fatalf("login with new password failed: %d", w.Code)
	}

	if w := env.do(http.MethodPost, "/auth/login",
		`{"email":"a@x.com","password":"oldpass123"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("login with old password still works: %d", w.Code)
	}

	// codes are single use
	w = env.do(http.MethodPost, "/user/verify-otp",
		`{"email":"a@x.com","otp":"`+otp+`","newPassword":"anotherpw123"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on otp replay, got %d", w.Code)
	}

	if code := errorCode(t, w.Body.Bytes()); code != "invalid_otp" {
		t.Fatalf("expected invalid_otp, got %q", code)
	}
}

func TestVerifyOTPExpired(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodPost, "/auth/signup",
		`{"name":"Alice","email":"a@x.com","password":"oldpass123"}`)

	u, _ := env.users.GetByEmail(context.Background(), "a@x.com")

	// plant an already-expired code
	past := time.Now().UTC().Add(-security.OTPValidity)

	if err := env.users.SetResetOTP(context.Background(), u.ID, "123456", past); err != nil {
		t.Fatalf("could not seed expired otp: %v", err)
	}

	w := env.do(http.MethodPost, "/user/verify-otp",
		`{"email":"a@x.com","otp":"123456","newPassword":"newpass123"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for expired otp, got %d", w.Code)
	}

	if code := errorCode(t, w.Body.Bytes()); code != "invalid_otp" {
		t.Fatalf("expected invalid_otp, got %q", code)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/user/logout", `{}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Message == "" {
		t.Fatalf("expected an advisory message, got %s", w.Body.String())
	}
}
