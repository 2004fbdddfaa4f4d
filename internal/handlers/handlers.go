package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gradportrait/internal/config"
	"gradportrait/internal/service"
	"gradportrait/internal/storage"
)

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	portraits *service.PortraitService
	spool     *storage.UploadSpool
	dbPing    func(context.Context) error
	cache     *redis.Client
}

// NewHandlerSet builds the HTTP handlers. dbPing and cache may be nil when the
// configured backend has nothing to ping.
func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, portraits *service.PortraitService, spool *storage.UploadSpool, dbPing func(context.Context) error, cache *redis.Client) HandlerSet {
	return HandlerSet{
		log:       log,
		cfg:       cfg,
		portraits: portraits,
		spool:     spool,
		dbPing:    dbPing,
		cache:     cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	router.POST("/upload", h.Upload)
	router.POST("/photo/:id", h.Photo)
	router.GET("/check-photo/:id", h.CheckPhoto)
	router.GET("/debug-image/:id", h.DebugImage)
}
