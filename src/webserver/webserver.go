package webserver

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/reunite-app/reunite/src/ai/core"
	"github.com/reunite-app/reunite/src/claims"
	"github.com/reunite-app/reunite/src/config"
	"github.com/reunite-app/reunite/src/evidence"
	"github.com/reunite-app/reunite/src/scoring"
)

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	g.Use(cors.Default())

	svc := buildService(cfg, db, rdb)
	attachRoutes(g, cfg, svc)
	return g
}

func buildService(cfg config.Config, db *gorm.DB, rdb *redis.Client) *claims.Service {
	var store evidence.Store
	switch cfg.EvidenceBackend {
	case "remote":
		store = evidence.NewRemoteStore(cfg.EvidenceStoreURL, cfg.EvidenceStoreToken)
	default:
		local, err := evidence.NewLocalStore(cfg.EvidenceDir, cfg.EvidenceBaseURL)
		if err != nil {
			log.Fatalf("evidence store: %v", err)
		}
		store = local
	}

	var limiter *claims.RateLimiter
	if cfg.SubmitCooldown > 0 {
		limiter = claims.NewRateLimiter(cfg.SubmitCooldown)
		limiter.StartCleanup(cfg.SubmitCooldown * 4)
	}

	ai := scoring.NewAIScorer(core.FactoryConfig{
		Provider:  cfg.AIProvider,
		Model:     cfg.AIModel,
		GeminiKey: cfg.GeminiKey,
		OpenAIKey: cfg.OpenAIKey,
	})

	return claims.NewService(claims.ServiceConfig{
		Store:     claims.NewGormStore(db),
		Evidence:  store,
		AI:        ai,
		Heuristic: scoring.Heuristic{},
		Redis:     rdb,
		Limiter:   limiter,
		AITimeout: cfg.AITimeout,
	})
}

func attachRoutes(g *gin.Engine, cfg config.Config, svc *claims.Service) {
	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	// Locally stored evidence images are served straight from disk.
	if cfg.EvidenceBackend != "remote" {
		g.Static("/uploads", cfg.EvidenceDir)
	}

	h := NewClaims(svc)

	v1 := g.Group("/v1")
	v1.Use(JWT([]byte(cfg.JWTSecret)))
	{
		v1.POST("/posts/:id/claims", h.Submit)
		v1.GET("/claims/incoming", h.ListIncoming)
		v1.GET("/claims/mine", h.ListMine)
		v1.POST("/claims/:id/decision", h.Decide)
		v1.DELETE("/claims/:id", h.Withdraw)
	}
}
