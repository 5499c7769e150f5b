package relay

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rpswar/models"
	"rpswar/relay/connection"
	"rpswar/utils"
)

// NewRouter は中継サーバーのルーティングを組み立てる
func NewRouter(manager *Manager, config models.Config, logger *zap.Logger) *gin.Engine {
	if config.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(config.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	upgrader := NewUpgrader(config.AllowedOrigins)
	opts := connection.DefaultOptions()
	if config.MessageRate > 0 {
		opts.MessageRate = config.MessageRate
	}
	if config.MessageBurst > 0 {
		opts.MessageBurst = config.MessageBurst
	}

	router.GET("/ws", func(c *gin.Context) {
		HandleConnections(c.Writer, c.Request, manager, upgrader, opts, logger)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, manager.Snapshot())
	})
	return router
}
