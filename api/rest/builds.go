package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mistveil/buildcalc/audit"
	"github.com/mistveil/buildcalc/cache"
	"github.com/mistveil/buildcalc/config"
	gamebuild "github.com/mistveil/buildcalc/game/build"
	"github.com/mistveil/buildcalc/game/tree"
	mw "github.com/mistveil/buildcalc/middleware"
	"github.com/mistveil/buildcalc/model"
	"github.com/mistveil/buildcalc/resource"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const rankingZKey = "ranking:build_views"
const rankingTop = 100

// BuildHandler handles build evaluation, storage, and ranking endpoints.
type BuildHandler struct {
	db     *gorm.DB
	res    *resource.Loader
	tree   *tree.Resolved
	cache  cache.Cache
	audit  *audit.Service
	cfg    config.BuildsConfig
	logger *zap.Logger
}

// NewBuildHandler creates a BuildHandler.
func NewBuildHandler(db *gorm.DB, res *resource.Loader, resolved *tree.Resolved, c cache.Cache, auditSvc *audit.Service, cfg config.BuildsConfig, logger *zap.Logger) *BuildHandler {
	return &BuildHandler{db: db, res: res, tree: resolved, cache: c, audit: auditSvc, cfg: cfg, logger: logger}
}

// restore reconstructs a build from either a transport code or an inline
// snapshot, whichever the request carries.
func (h *BuildHandler) restore(code string, snap *gamebuild.Snapshot) (*gamebuild.Build, error) {
	b := gamebuild.New(h.res, h.tree)
	if code != "" {
		return b, b.Import(code)
	}
	if snap != nil {
		return b, b.Restore(*snap)
	}
	return nil, errors.New("either code or snapshot is required")
}

type evaluateRequest struct {
	Code     string              `json:"code"`
	Snapshot *gamebuild.Snapshot `json:"snapshot"`
}

// Evaluate handles POST /api/builds/evaluate: reconstructs the posted build
// and returns its resolved combat statistics. Code-keyed requests are
// memoized in the cache; evaluation is pure, so identical codes always yield
// identical responses.
func (h *BuildHandler) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	memoKey := "eval:" + req.Code
	if req.Code != "" && h.cfg.DecodeCacheTTL > 0 {
		if cached, err := h.cache.Get(c.Request.Context(), memoKey); err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			return
		}
	}

	b, err := h.restore(req.Code, req.Snapshot)
	if err != nil {
		var importErr *gamebuild.ImportError
		if errors.As(err, &importErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": importErr.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload := gin.H{
		"result":         b.DamageResult(),
		"modifier_count": b.Aggregate().Len(),
	}
	if req.Code != "" && h.cfg.DecodeCacheTTL > 0 {
		if raw, err := json.Marshal(payload); err == nil {
			_ = h.cache.Set(c.Request.Context(), memoKey, string(raw), h.cfg.DecodeCacheTTL)
		}
	}
	c.JSON(http.StatusOK, payload)
}

type saveBuildRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
	Code string `json:"code" binding:"required"`
}

// Save handles POST /api/builds: validates the code with a full import,
// then stores it under the authenticated account.
func (h *BuildHandler) Save(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	start := time.Now()

	var req saveBuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.restore(req.Code, nil)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	var existing []model.SavedBuild
	if err := h.db.Select("id").Where("account_id = ?", accountID).Find(&existing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if h.cfg.MaxPerAccount > 0 && len(existing) >= h.cfg.MaxPerAccount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max builds reached"})
		return
	}

	row := model.SavedBuild{
		AccountID: accountID,
		Name:      req.Name,
		Class:     b.Class,
		Code:      req.Code,
	}
	if active := b.Skill().Active(); active != nil {
		row.SkillID = active.ID
	}
	if err := h.db.Create(&row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.audit.Log(audit.Entry{
		TraceID:    mw.GetTraceID(c),
		AccountID:  &accountID,
		BuildID:    &row.ID,
		Action:     "build_save",
		Request:    gin.H{"name": req.Name},
		Response:   gin.H{"id": row.ID},
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	})

	c.JSON(http.StatusOK, gin.H{"id": row.ID})
}

// Get handles GET /api/builds/:id: returns the stored build and bumps its
// view counter.
func (h *BuildHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var row model.SavedBuild
	if err := h.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "build not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// View bump is best-effort: DB is authoritative, the ZSet mirrors it
	// for the ranking endpoint.
	_ = h.db.Model(&row).Update("views", gorm.Expr("views + 1")).Error
	if _, err := h.cache.ZIncrBy(c.Request.Context(), rankingZKey, 1, strconv.FormatInt(row.ID, 10)); err != nil {
		h.logger.Warn("ranking bump failed", zap.Error(err), zap.Int64("build_id", row.ID))
	}

	c.JSON(http.StatusOK, gin.H{"build": row})
}

// Delete handles DELETE /api/builds/:id. Owner only.
func (h *BuildHandler) Delete(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var row model.SavedBuild
	if err := h.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "build not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if row.AccountID != accountID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your build"})
		return
	}

	if err := h.db.Delete(&row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.audit.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		AccountID: &accountID,
		BuildID:   &row.ID,
		Action:    "build_delete",
		IP:        c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// TopEntry is one row of the most-viewed ranking.
type TopEntry struct {
	Rank    int    `json:"rank"`
	BuildID int64  `json:"build_id"`
	Name    string `json:"name"`
	Class   string `json:"class"`
	SkillID string `json:"skill_id"`
	Views   int64  `json:"views"`
}

// Top handles GET /api/builds/top?limit=20: most-viewed builds, served from
// the ranking ZSet with a DB fallback when the set is cold.
func (h *BuildHandler) Top(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}

	ctx := c.Request.Context()
	members, err := h.cache.ZRevRange(ctx, rankingZKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]TopEntry, 0, len(members))
		for i, m := range members {
			buildID, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			var row model.SavedBuild
			if err := h.db.First(&row, buildID).Error; err != nil {
				continue
			}
			score, _ := h.cache.ZScore(ctx, rankingZKey, m)
			entries = append(entries, TopEntry{
				Rank:    i + 1,
				BuildID: row.ID,
				Name:    row.Name,
				Class:   row.Class,
				SkillID: row.SkillID,
				Views:   int64(score),
			})
		}
		c.JSON(http.StatusOK, gin.H{"builds": entries})
		return
	}

	// Cold cache: serve straight from the DB.
	var rows []model.SavedBuild
	if err := h.db.Order("views desc").Limit(limit).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	entries := make([]TopEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, TopEntry{
			Rank:    i + 1,
			BuildID: row.ID,
			Name:    row.Name,
			Class:   row.Class,
			SkillID: row.SkillID,
			Views:   row.Views,
		})
	}
	c.JSON(http.StatusOK, gin.H{"builds": entries})
}

// RefreshRanking rebuilds the view-count ZSet from the DB. Run periodically
// by the scheduler so the set survives cache restarts.
func (h *BuildHandler) RefreshRanking() {
	var rows []model.SavedBuild
	if err := h.db.Select("id", "views").Order("views desc").Limit(rankingTop).Find(&rows).Error; err != nil {
		h.logger.Error("ranking refresh query failed", zap.Error(err))
		return
	}
	ctx, cancel := contextWithTimeout()
	defer cancel()
	for _, row := range rows {
		if err := h.cache.ZAdd(ctx, rankingZKey, float64(row.Views), strconv.FormatInt(row.ID, 10)); err != nil {
			h.logger.Warn("ranking refresh write failed", zap.Error(err))
			return
		}
	}
}
