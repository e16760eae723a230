package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/contact-desk/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Pass123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash test password: %v", err)
	}
	return &config.Config{
		AdminUsername:     "Admin",
		AdminPasswordHash: string(hash),
		SessionSecret:     "test_secret",
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	store := memstore.NewStore([]byte(cfg.SessionSecret))
	router.Use(sessions.Sessions(SessionCookieName, store))

	manager := NewManager(cfg)
	router.POST("/api/admin/login", manager.Login)
	router.POST("/api/admin/logout", manager.Logout)
	router.GET("/api/admin/check-auth", manager.CheckAuth)
	router.GET("/api/admin/protected", manager.RequireLogin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextUserKey)})
	})
	return router
}

func doLogin(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doWithCookies(t *testing.T, router *gin.Engine, method, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func checkAuthenticated(t *testing.T, router *gin.Engine, cookies []*http.Cookie) bool {
	t.Helper()
	rec := doWithCookies(t, router, http.MethodGet, "/api/admin/check-auth", cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("check-auth must always return 200, got %d", rec.Code)
	}
	var payload struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse check-auth response: %v", err)
	}
	return payload.Authenticated
}

func TestLoginMissingFields(t *testing.T) {
	router := newTestRouter(t, testConfig(t))
	rec := doLogin(t, router, `{"username":"Admin"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router := newTestRouter(t, testConfig(t))
	rec := doLogin(t, router, `{"username":"Admin","password":"wrongpassword"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if checkAuthenticated(t, router, rec.Result().Cookies()) {
		t.Fatal("failed login must not create a usable session")
	}
}

func TestLoginWrongUsername(t *testing.T) {
	router := newTestRouter(t, testConfig(t))
	rec := doLogin(t, router, `{"username":"root","password":"Pass123"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestLoginWithoutConfiguredCredentials(t *testing.T) {
	router := newTestRouter(t, &config.Config{SessionSecret: "test_secret"})
	rec := doLogin(t, router, `{"username":"Admin","password":"Pass123"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestLoginSuccessAndLogout(t *testing.T) {
	router := newTestRouter(t, testConfig(t))

	rec := doLogin(t, router, `{"username":"Admin","password":"Pass123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected login status: %d body=%s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie on successful login")
	}

	if !checkAuthenticated(t, router, cookies) {
		t.Fatal("expected authenticated session after login")
	}

	protected := doWithCookies(t, router, http.MethodGet, "/api/admin/protected", cookies)
	if protected.Code != http.StatusOK {
		t.Fatalf("unexpected protected status: %d", protected.Code)
	}

	logout := doWithCookies(t, router, http.MethodPost, "/api/admin/logout", cookies)
	if logout.Code != http.StatusOK {
		t.Fatalf("unexpected logout status: %d", logout.Code)
	}

	if checkAuthenticated(t, router, cookies) {
		t.Fatal("session must not authenticate after logout")
	}
	afterLogout := doWithCookies(t, router, http.MethodGet, "/api/admin/protected", cookies)
	if afterLogout.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", afterLogout.Code)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	router := newTestRouter(t, testConfig(t))

	// セッションが存在しない状態でも成功する
	rec := doWithCookies(t, router, http.MethodPost, "/api/admin/logout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	login := doLogin(t, router, `{"username":"Admin","password":"Pass123"}`)
	cookies := login.Result().Cookies()
	for i := 0; i < 2; i++ {
		rec := doWithCookies(t, router, http.MethodPost, "/api/admin/logout", cookies)
		if rec.Code != http.StatusOK {
			t.Fatalf("logout attempt %d: unexpected status %d", i+1, rec.Code)
		}
	}
}

func TestCheckAuthWithoutSession(t *testing.T) {
	router := newTestRouter(t, testConfig(t))
	if checkAuthenticated(t, router, nil) {
		t.Fatal("expected unauthenticated without a session")
	}
}

func TestRequireLoginBlocksUnauthenticated(t *testing.T) {
	router := newTestRouter(t, testConfig(t))
	rec := doWithCookies(t, router, http.MethodGet, "/api/admin/protected", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestSessionAbsoluteExpiry(t *testing.T) {
	original := maxSessionLifetime
	maxSessionLifetime = 10 * time.Millisecond
	t.Cleanup(func() { maxSessionLifetime = original })

	router := newTestRouter(t, testConfig(t))
	rec := doLogin(t, router, `{"username":"Admin","password":"Pass123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected login status: %d", rec.Code)
	}
	cookies := rec.Result().Cookies()

	time.Sleep(1100 * time.Millisecond)

	if checkAuthenticated(t, router, cookies) {
		t.Fatal("expected session to expire")
	}
	protected := doWithCookies(t, router, http.MethodGet, "/api/admin/protected", cookies)
	if protected.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired session, got %d", protected.Code)
	}
}

func TestVerifyRunsFixedCostComparison(t *testing.T) {
	manager := NewManager(testConfig(t))

	if !manager.verify("Admin", "Pass123") {
		t.Fatal("expected correct credentials to verify")
	}
	if manager.verify("Admin", "wrong") {
		t.Fatal("wrong password must not verify")
	}
	// ユーザー名不一致でもパスワードが正しくても認証されない
	if manager.verify("nobody", "Pass123") {
		t.Fatal("wrong username must not verify")
	}
}
