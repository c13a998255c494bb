package rest_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mistveil/buildcalc/api/rest"
	"github.com/mistveil/buildcalc/audit"
	"github.com/mistveil/buildcalc/config"
	gamebuild "github.com/mistveil/buildcalc/game/build"
	mw "github.com/mistveil/buildcalc/middleware"
	"github.com/mistveil/buildcalc/model"
	"github.com/mistveil/buildcalc/resource"
	"github.com/mistveil/buildcalc/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type buildEnv struct {
	r   *gin.Engine
	h   *rest.BuildHandler
	db  *gorm.DB
	res *resource.Loader
}

func newBuildEnv(t *testing.T, maxPerAccount int) *buildEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	res := testutil.SetupTestCatalog(t)
	resolved := testutil.SetupTestTree(t, res)
	logger := zap.NewNop()

	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(nil) })

	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}
	authH := rest.NewAuthHandler(db, c, sec)
	h := rest.NewBuildHandler(db, res, resolved, c, auditSvc, config.BuildsConfig{MaxPerAccount: maxPerAccount}, logger)

	r := gin.New()
	r.Use(mw.TraceID())
	r.POST("/api/auth/login", authH.Login)
	r.POST("/api/builds/evaluate", h.Evaluate)
	r.GET("/api/builds/top", h.Top)
	r.GET("/api/builds/:id", h.Get)
	r.POST("/api/builds", mw.Auth(sec, c), h.Save)
	r.DELETE("/api/builds/:id", mw.Auth(sec, c), h.Delete)

	return &buildEnv{r: r, h: h, db: db, res: res}
}

// exportCode builds a minimal valid fireball build and exports its code.
func exportCode(t *testing.T, env *buildEnv) string {
	t.Helper()
	resolved := testutil.SetupTestTree(t, env.res)
	b := gamebuild.New(env.res, resolved)
	b.Name = "Shared Fireballer"
	b.Class = "Witch"
	b.Skill().SetActiveSkill(env.res.SkillByID("fireball"))
	b.Tree().Allocate(100)
	code, err := b.Export()
	require.NoError(t, err)
	return code
}

func getPath(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func deletePath(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEvaluate_FromCode(t *testing.T) {
	env := newBuildEnv(t, 0)
	code := exportCode(t, env)

	w := postJSON(env.r, "/api/builds/evaluate", gin.H{"code": code})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result        map[string]float64 `json:"result"`
		ModifierCount int                `json:"modifier_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Fireball at level 1 with one 12% spell damage node.
	assert.InDelta(t, 16.8, resp.Result["avg_damage"], 1e-6)
	assert.Equal(t, 1, resp.ModifierCount)
}

func TestEvaluate_FromSnapshot(t *testing.T) {
	env := newBuildEnv(t, 0)

	snap := gamebuild.Snapshot{
		Version: gamebuild.CodecVersion,
		Skill:   gamebuild.SkillSnapshot{ActiveSkillID: "fireball", Level: 1},
	}
	w := postJSON(env.r, "/api/builds/evaluate", gin.H{"snapshot": snap})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result map[string]float64 `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 15.375, resp.Result["avg_with_crit"], 1e-6)
	assert.InDelta(t, 15.375, resp.Result["dps"], 1e-6)
}

func TestEvaluate_MemoizesByCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	res := testutil.SetupTestCatalog(t)
	resolved := testutil.SetupTestTree(t, res)
	logger := zap.NewNop()
	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(nil) })

	h := rest.NewBuildHandler(db, res, resolved, c, auditSvc, config.BuildsConfig{DecodeCacheTTL: time.Minute}, logger)
	r := gin.New()
	r.POST("/api/builds/evaluate", h.Evaluate)

	env := &buildEnv{r: r, h: h, db: db, res: res}
	code := exportCode(t, env)

	w1 := postJSON(r, "/api/builds/evaluate", gin.H{"code": code})
	require.Equal(t, http.StatusOK, w1.Code)
	w2 := postJSON(r, "/api/builds/evaluate", gin.H{"code": code})
	require.Equal(t, http.StatusOK, w2.Code)
	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
}

func TestEvaluate_Rejections(t *testing.T) {
	env := newBuildEnv(t, 0)

	w := postJSON(env.r, "/api/builds/evaluate", gin.H{"code": "!!garbage!!"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = postJSON(env.r, "/api/builds/evaluate", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "neither code nor snapshot")

	w = postJSON(env.r, "/api/builds/evaluate", gin.H{
		"snapshot": gin.H{"version": 99},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "wrong codec version")
}

func TestSave_RequiresAuth(t *testing.T) {
	env := newBuildEnv(t, 0)
	w := postJSON(env.r, "/api/builds", gin.H{"name": "x", "code": exportCode(t, env)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSaveGetDelete_Lifecycle(t *testing.T) {
	env := newBuildEnv(t, 0)
	token := loginAs(t, env.r, "builder")
	code := exportCode(t, env)

	// Save.
	w := postJSON(env.r, "/api/builds", gin.H{"name": "My Fireballer", "code": code},
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	var saved struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.NotZero(t, saved.ID)

	// The row carries metadata extracted from the imported build.
	var row model.SavedBuild
	require.NoError(t, env.db.First(&row, saved.ID).Error)
	assert.Equal(t, "My Fireballer", row.Name)
	assert.Equal(t, "Witch", row.Class)
	assert.Equal(t, "fireball", row.SkillID)
	assert.Equal(t, code, row.Code)

	// Get is public and bumps the view counter.
	path := fmt.Sprintf("/api/builds/%d", saved.ID)
	require.Equal(t, http.StatusOK, getPath(env.r, path).Code)
	require.Equal(t, http.StatusOK, getPath(env.r, path).Code)
	require.NoError(t, env.db.First(&row, saved.ID).Error)
	assert.Equal(t, int64(2), row.Views)

	// Delete by the owner.
	w = deletePath(env.r, path, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, getPath(env.r, path).Code)
}

func TestSave_RejectsInvalidCode(t *testing.T) {
	env := newBuildEnv(t, 0)
	token := loginAs(t, env.r, "sloppy")

	w := postJSON(env.r, "/api/builds", gin.H{"name": "Broken", "code": "not-a-code"},
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = postJSON(env.r, "/api/builds", gin.H{"code": exportCode(t, env)},
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, w.Code, "name is required")
}

func TestSave_PerAccountCap(t *testing.T) {
	env := newBuildEnv(t, 2)
	token := loginAs(t, env.r, "hoarder")
	code := exportCode(t, env)

	for i := 0; i < 2; i++ {
		w := postJSON(env.r, "/api/builds", gin.H{"name": fmt.Sprintf("b%d", i), "code": code},
			"Authorization", "Bearer "+token)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := postJSON(env.r, "/api/builds", gin.H{"name": "one too many", "code": code},
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelete_OwnerOnly(t *testing.T) {
	env := newBuildEnv(t, 0)
	owner := loginAs(t, env.r, "owner")
	other := loginAs(t, env.r, "other")

	w := postJSON(env.r, "/api/builds", gin.H{"name": "mine", "code": exportCode(t, env)},
		"Authorization", "Bearer "+owner)
	require.Equal(t, http.StatusOK, w.Code)
	var saved struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))

	path := fmt.Sprintf("/api/builds/%d", saved.ID)
	assert.Equal(t, http.StatusForbidden, deletePath(env.r, path, "Authorization", "Bearer "+other).Code)
	assert.Equal(t, http.StatusNotFound, deletePath(env.r, "/api/builds/424242", "Authorization", "Bearer "+other).Code)
	assert.Equal(t, http.StatusBadRequest, deletePath(env.r, "/api/builds/abc", "Authorization", "Bearer "+other).Code)
}

func seedBuilds(t *testing.T, env *buildEnv, views ...int64) []int64 {
	t.Helper()
	code := exportCode(t, env)
	ids := make([]int64, 0, len(views))
	for i, v := range views {
		row := model.SavedBuild{
			AccountID: 1,
			Name:      fmt.Sprintf("seed-%d", i),
			Class:     "Witch",
			SkillID:   "fireball",
			Code:      code,
			Views:     v,
		}
		require.NoError(t, env.db.Create(&row).Error)
		ids = append(ids, row.ID)
	}
	return ids
}

func TestTop_ColdCacheFallsBackToDB(t *testing.T) {
	env := newBuildEnv(t, 0)
	ids := seedBuilds(t, env, 5, 50, 20)

	w := getPath(env.r, "/api/builds/top?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Builds []rest.TopEntry `json:"builds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Builds, 2)
	assert.Equal(t, ids[1], resp.Builds[0].BuildID)
	assert.Equal(t, int64(50), resp.Builds[0].Views)
	assert.Equal(t, 1, resp.Builds[0].Rank)
	assert.Equal(t, ids[2], resp.Builds[1].BuildID)
}

func TestTop_ServedFromRankingSet(t *testing.T) {
	env := newBuildEnv(t, 0)
	ids := seedBuilds(t, env, 3, 9)

	// Populate the ZSet the way the scheduler does.
	env.h.RefreshRanking()

	w := getPath(env.r, "/api/builds/top")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Builds []rest.TopEntry `json:"builds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Builds, 2)
	assert.Equal(t, ids[1], resp.Builds[0].BuildID)
	assert.Equal(t, int64(9), resp.Builds[0].Views)

	// A view bump reorders the live set without waiting for a refresh.
	for i := 0; i < 10; i++ {
		getPath(env.r, fmt.Sprintf("/api/builds/%d", ids[0]))
	}
	w = getPath(env.r, "/api/builds/top")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ids[0], resp.Builds[0].BuildID)
}
