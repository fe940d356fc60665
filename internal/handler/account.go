package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"socialmonitor/internal/repository"
)

type AccountHandler struct {
	Store  repository.Store
	Logger *zap.Logger
}

func (h *AccountHandler) Register(r *gin.Engine) {
	group := r.Group("/api/accounts")
	group.GET("", h.listAccounts)
	group.PUT("/:id/identity", h.setIdentity)
	group.DELETE("/:id", h.deleteAccount)
}

// @Summary List tracked accounts
// @Tags accounts
// @Param platform_id query int false "filter by platform id"
// @Success 200 {object} apiResponse
// @Router /api/accounts [get]
func (h *AccountHandler) listAccounts(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	platformID := uintQueryPtr(c, "platform_id")
	accounts, err := h.Store.ListAccounts(c.Request.Context(), platformID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list accounts failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, accounts, countMeta(len(accounts)))
}

type setIdentityRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// @Summary Assign an account's cross-platform identity tag
// @Tags accounts
// @Param id path int true "account id"
// @Param body body setIdentityRequest true "identity tag"
// @Success 200 {object} apiResponse
// @Router /api/accounts/{id}/identity [put]
func (h *AccountHandler) setIdentity(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid account id", nil)
		return
	}
	var req setIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	identity := strings.TrimSpace(req.Identity)
	if identity == "" {
		Error(c, http.StatusBadRequest, "identity required", nil)
		return
	}

	account, err := h.Store.GetAccountByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if account == nil {
		Error(c, http.StatusNotFound, "account not found", nil)
		return
	}
	updated, err := h.Store.SetIdentityTag(c.Request.Context(), account.PlatformID, account.UserID, identity)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("set identity failed", zap.Uint("account_id", id), zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if !updated {
		Error(c, http.StatusNotFound, "account not found", nil)
		return
	}
	Ok(c, gin.H{"account_id": id, "identity": identity}, nil)
}

// @Summary Delete an account
// @Tags accounts
// @Param id path int true "account id"
// @Param delete_records query bool false "also delete the account's snapshots"
// @Success 200 {object} apiResponse
// @Router /api/accounts/{id} [delete]
func (h *AccountHandler) deleteAccount(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid account id", nil)
		return
	}
	deleteRecords := boolQueryDefault(c, "delete_records", false)
	deleted, err := h.Store.DeleteAccount(c.Request.Context(), id, deleteRecords)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("delete account failed", zap.Uint("account_id", id), zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if !deleted {
		Error(c, http.StatusNotFound, "account not found", nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("account deleted",
			zap.Uint("account_id", id), zap.Bool("delete_records", deleteRecords))
	}
	Ok(c, gin.H{"account_id": id, "deleted_records": deleteRecords}, nil)
}
