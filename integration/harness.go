package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/mistveil/buildcalc/api/rest"
	"github.com/mistveil/buildcalc/audit"
	"github.com/mistveil/buildcalc/cache"
	"github.com/mistveil/buildcalc/config"
	"github.com/mistveil/buildcalc/game/tree"
	mw "github.com/mistveil/buildcalc/middleware"
	"github.com/mistveil/buildcalc/resource"
	"github.com/mistveil/buildcalc/scheduler"
	"github.com/mistveil/buildcalc/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// TestServer wraps a real HTTP server with every service subsystem wired
// together the way main.go wires them.
type TestServer struct {
	DB       *gorm.DB
	Cache    cache.Cache
	Res      *resource.Loader
	Tree     *tree.Resolved
	Builds   *apirest.BuildHandler
	Sched    *scheduler.Scheduler
	Server   *httptest.Server
	URL      string
	Sec      config.SecurityConfig
	auditSvc *audit.Service
}

// NewTestServer creates a fully wired build service for integration testing.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}
	buildsCfg := config.BuildsConfig{
		MaxPerAccount:  25,
		DecodeCacheTTL: time.Minute,
	}

	res := testutil.SetupTestCatalog(t)
	resolved := testutil.SetupTestTree(t, res)

	auditSvc := audit.New(db, logger)
	sched := scheduler.New(logger)

	authH := apirest.NewAuthHandler(db, c, sec)
	buildH := apirest.NewBuildHandler(db, res, resolved, c, auditSvc, buildsCfg, logger)
	catalogH := apirest.NewCatalogHandler(res, resolved)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(sec, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(sec, c), authH.Refresh)

		buildsG := api.Group("/builds")
		buildsG.POST("/evaluate", buildH.Evaluate)
		buildsG.GET("/top", buildH.Top)
		buildsG.GET("/:id", buildH.Get)
		buildsG.POST("", mw.Auth(sec, c), buildH.Save)
		buildsG.DELETE("/:id", mw.Auth(sec, c), buildH.Delete)

		catalogG := api.Group("/catalog")
		catalogG.GET("/skills", catalogH.Skills)
		catalogG.GET("/gems", catalogH.Gems)
		catalogG.GET("/tree", catalogH.Tree)
		catalogG.GET("/tree/nodes", catalogH.Nodes)
	}

	server := httptest.NewServer(r)

	return &TestServer{
		DB:       db,
		Cache:    c,
		Res:      res,
		Tree:     resolved,
		Builds:   buildH,
		Sched:    sched,
		Server:   server,
		URL:      server.URL,
		Sec:      sec,
		auditSvc: auditSvc,
	}
}

// Close shuts down the test server and flushes the audit queue.
func (ts *TestServer) Close() {
	ts.Sched.Stop()
	ts.auditSvc.Stop(nil)
	ts.Server.Close()
}

// --- HTTP helpers ---

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Delete sends a DELETE request with optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// Login logs in (auto-registers on first call) and returns the token and account ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, accountID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	token = result["token"].(string)
	accountID = int64(result["account_id"].(float64))
	return
}

var testCounter uint64

// UniqueID returns a short unique string suitable for usernames.
func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
