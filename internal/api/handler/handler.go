package handler

import (
	"context"

	"github.com/d60-Lab/relay-bot/internal/service"
)

// Pinger 健康检查依赖（数据库、Redis）
type Pinger func(ctx context.Context) error

type Handler struct {
	relayService service.RelayService
	checks       map[string]Pinger
}

func NewHandler(relayService service.RelayService, checks map[string]Pinger) *Handler {
	return &Handler{relayService: relayService, checks: checks}
}
