package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/relay-bot/pkg/response"
)

// Healthz 存活与依赖检查
// @Summary 健康检查
// @Tags 运维
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			response.Unavailable(c, fmt.Errorf("%s: %w", name, err))
			return
		}
	}
	response.Success(c, gin.H{"status": "ok"})
}

// Stats 转发统计
// @Summary 目录规模、关联表规模与转发计数
// @Tags 运维
// @Produce json
// @Success 200 {object} response.Response{data=service.RelayStats}
// @Router /api/v1/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	response.Success(c, h.relayService.Stats(c.Request.Context()))
}
