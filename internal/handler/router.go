package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corona-HomeLab/FinSight/internal/middleware"
)

type RouterDeps struct {
	Chat          *ChatHandler
	Sources       *SourceHandler
	JWTSecret     []byte
	RateLimitSecs int
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	if deps.RateLimitSecs > 0 {
		authGroup.Use(middleware.RateLimit(time.Duration(deps.RateLimitSecs) * time.Second))
	}

	authGroup.POST("/chat", deps.Chat.Chat)
	authGroup.GET("/history", deps.Chat.History)

	authGroup.POST("/sources", deps.Sources.Add)
	authGroup.GET("/sources", deps.Sources.List)
	authGroup.DELETE("/sources/:id", deps.Sources.Remove)
	authGroup.POST("/sources/refresh", deps.Sources.Refresh)
}
