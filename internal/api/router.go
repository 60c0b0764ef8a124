package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/relay-bot/internal/api/handler"
)

// NewRouter 只读运维接口
func NewRouter(h *handler.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("relay-bot"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/healthz", h.Healthz)
	v1 := r.Group("/api/v1")
	v1.GET("/stats", h.Stats)
	return r
}
