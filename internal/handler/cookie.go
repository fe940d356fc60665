package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"socialmonitor/internal/credential"
)

type CookieHandler struct {
	Cookies *credential.Store
	Logger  *zap.Logger
}

func (h *CookieHandler) Register(r *gin.Engine) {
	group := r.Group("/api/cookies")
	group.GET("", h.listPlatforms)
	group.PUT("/:platform", h.saveCookie)
	group.DELETE("/:platform", h.deleteCookie)
}

// @Summary List platforms with a saved cookie
// @Tags cookies
// @Success 200 {object} apiResponse
// @Router /api/cookies [get]
func (h *CookieHandler) listPlatforms(c *gin.Context) {
	if h.Cookies == nil {
		Error(c, http.StatusInternalServerError, "credential store unavailable", nil)
		return
	}
	// Cookie values stay server-side; only the platform names go out.
	all := h.Cookies.GetAll(c.Request.Context())
	platforms := make([]string, 0, len(all))
	for platform := range all {
		platforms = append(platforms, platform)
	}
	Ok(c, platforms, countMeta(len(platforms)))
}

type saveCookieRequest struct {
	Cookie string `json:"cookie" binding:"required"`
}

// @Summary Save a platform cookie
// @Tags cookies
// @Param platform path string true "platform code"
// @Param body body saveCookieRequest true "cookie value"
// @Success 200 {object} apiResponse
// @Router /api/cookies/{platform} [put]
func (h *CookieHandler) saveCookie(c *gin.Context) {
	if h.Cookies == nil {
		Error(c, http.StatusInternalServerError, "credential store unavailable", nil)
		return
	}
	platform := strings.TrimSpace(c.Param("platform"))
	if platform == "" {
		Error(c, http.StatusBadRequest, "platform required", nil)
		return
	}
	var req saveCookieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Cookies.Save(c.Request.Context(), platform, req.Cookie); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"platform": platform}, nil)
}

// @Summary Delete a platform cookie
// @Tags cookies
// @Param platform path string true "platform code"
// @Success 200 {object} apiResponse
// @Router /api/cookies/{platform} [delete]
func (h *CookieHandler) deleteCookie(c *gin.Context) {
	if h.Cookies == nil {
		Error(c, http.StatusInternalServerError, "credential store unavailable", nil)
		return
	}
	platform := strings.TrimSpace(c.Param("platform"))
	if platform == "" {
		Error(c, http.StatusBadRequest, "platform required", nil)
		return
	}
	if err := h.Cookies.Delete(c.Request.Context(), platform); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("cookie deleted via api", zap.String("platform", platform))
	}
	Ok(c, gin.H{"platform": platform}, nil)
}
