package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"socialmonitor/internal/repository"
)

type PlatformHandler struct {
	Store  repository.Store
	Logger *zap.Logger
}

func (h *PlatformHandler) Register(r *gin.Engine) {
	group := r.Group("/api/platforms")
	group.GET("", h.listPlatforms)
}

// @Summary List supported platforms
// @Tags platforms
// @Success 200 {object} apiResponse
// @Router /api/platforms [get]
func (h *PlatformHandler) listPlatforms(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	platforms, err := h.Store.ListPlatforms(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list platforms failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, platforms, countMeta(len(platforms)))
}
