package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/mistveil/buildcalc/api/rest"
	"github.com/mistveil/buildcalc/audit"
	"github.com/mistveil/buildcalc/cache"
	"github.com/mistveil/buildcalc/config"
	dbadapter "github.com/mistveil/buildcalc/db"
	"github.com/mistveil/buildcalc/game/tree"
	mw "github.com/mistveil/buildcalc/middleware"
	"github.com/mistveil/buildcalc/model"
	"github.com/mistveil/buildcalc/resource"
	"github.com/mistveil/buildcalc/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		logger.Warn("security.jwt_secret is not set; issued tokens are unsafe for production")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(nil)

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Catalogs ----
	res := resource.NewLoader(cfg.Data.Path)
	if err := res.Load(); err != nil {
		log.Fatalf("catalogs: %v", err)
	}
	logger.Info("Catalogs loaded",
		zap.Int("skills", len(res.Skills)),
		zap.Int("gems", len(res.Gems)),
	)

	// The resolved tree is optional: without it the service still evaluates
	// equipment/skill-only builds (tree ops become no-ops).
	var resolved *tree.Resolved
	if res.Tree != nil {
		resolved, err = tree.Resolve(res.Tree)
		if err != nil {
			log.Fatalf("tree resolve: %v", err)
		}
		logger.Info("Tree resolved",
			zap.String("version", resolved.Version()),
			zap.Int("nodes", resolved.NodeCount()),
		)
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- REST handlers ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	buildH := apirest.NewBuildHandler(db, res, resolved, c, auditSvc, cfg.Builds, logger)
	catalogH := apirest.NewCatalogHandler(res, resolved)

	sched.AddTicker("ranking_refresh", time.Duration(cfg.Builds.RankingRefreshS)*time.Second, buildH.RefreshRanking)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		buildsG := api.Group("/builds")
		buildsG.POST("/evaluate", buildH.Evaluate)
		buildsG.GET("/top", buildH.Top)
		buildsG.GET("/:id", buildH.Get)
		buildsG.POST("", mw.Auth(cfg.Security, c), buildH.Save)
		buildsG.DELETE("/:id", mw.Auth(cfg.Security, c), buildH.Delete)

		catalogG := api.Group("/catalog")
		catalogG.GET("/skills", catalogH.Skills)
		catalogG.GET("/gems", catalogH.Gems)
		catalogG.GET("/tree", catalogH.Tree)
		catalogG.GET("/tree/nodes", catalogH.Nodes)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
