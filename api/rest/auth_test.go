package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mistveil/buildcalc/api/rest"
	"github.com/mistveil/buildcalc/config"
	mw "github.com/mistveil/buildcalc/middleware"
	"github.com/mistveil/buildcalc/model"
	"github.com/mistveil/buildcalc/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T) *gin.Engine {
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{
		JWTSecret: "test-secret",
		JWTTTLH:   72 * time.Hour,
	}
	h := rest.NewAuthHandler(db, c, sec)
	r := gin.New()
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", mw.Auth(sec, c), h.Logout)
	r.POST("/api/auth/refresh", mw.Auth(sec, c), h.Refresh)
	return r
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func loginAs(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	w := postJSON(r, "/api/auth/login", map[string]string{"username": username, "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["token"].(string)
}

func TestLogin_AutoRegister(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(r, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "pass1234",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	assert.NotZero(t, resp["account_id"])

	// Same credentials keep working on the second login.
	w2 := postJSON(r, "/api/auth/login", map[string]string{"username": "alice", "password": "pass1234"})
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	r := newAuthRouter(t)
	loginAs(t, r, "bob")

	w := postJSON(r, "/api/auth/login", map[string]string{"username": "bob", "password": "wrong1234"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_ValidationRejects(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(r, "/api/auth/login", map[string]string{"username": "x", "password": "pass1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "single-char username")

	w = postJSON(r, "/api/auth/login", map[string]string{"username": "validname", "password": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "too-short password")
}

func TestLogin_BannedAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}
	h := rest.NewAuthHandler(db, c, sec)
	r := gin.New()
	r.POST("/api/auth/login", h.Login)

	w := postJSON(r, "/api/auth/login", map[string]string{"username": "bannedacc", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code)

	db.Model(&model.Account{}).Where("username = ?", "bannedacc").Update("status", 0)

	w2 := postJSON(r, "/api/auth/login", map[string]string{"username": "bannedacc", "password": "pass1234"})
	assert.Equal(t, http.StatusForbidden, w2.Code)
}

func TestLogout_InvalidatesSession(t *testing.T) {
	r := newAuthRouter(t)
	token := loginAs(t, r, "dave")

	w := postJSON(r, "/api/auth/logout", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	// The session is gone; the same token no longer passes Auth.
	w2 := postJSON(r, "/api/auth/logout", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestRefresh_RotatesToken(t *testing.T) {
	r := newAuthRouter(t)
	token := loginAs(t, r, "refreshuser")

	w := postJSON(r, "/api/auth/refresh", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	newToken := resp["token"].(string)
	require.NotEmpty(t, newToken)

	// The replacement session works.
	w2 := postJSON(r, "/api/auth/refresh", nil, "Authorization", "Bearer "+newToken)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestRefresh_NoToken(t *testing.T) {
	r := newAuthRouter(t)
	w := postJSON(r, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
