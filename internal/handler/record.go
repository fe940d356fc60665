package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"socialmonitor/internal/repository"
)

type RecordHandler struct {
	Store  repository.Store
	Logger *zap.Logger
}

func (h *RecordHandler) Register(r *gin.Engine) {
	group := r.Group("/api/records")
	group.GET("", h.queryRecords)
	group.GET("/latest", h.latestCount)
	group.DELETE("/:id", h.deleteRecord)
}

// @Summary Query follower snapshots
// @Tags records
// @Param account_id query int false "account id"
// @Param platform_id query int false "platform id"
// @Param platform_ids query string false "comma-separated platform ids"
// @Param identity query string false "identity tag"
// @Param since query string false "RFC3339 lower bound"
// @Param until query string false "RFC3339 upper bound"
// @Param limit query int false "max rows (default 100)"
// @Success 200 {object} apiResponse
// @Router /api/records [get]
func (h *RecordHandler) queryRecords(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	records, err := h.Store.QuerySnapshots(c.Request.Context(), repository.QuerySnapshotsParams{
		AccountID:    uintQueryPtr(c, "account_id"),
		PlatformID:   uintQueryPtr(c, "platform_id"),
		PlatformIDs:  uintsQuery(c, "platform_ids"),
		UserIdentity: strQueryPtr(c, "identity"),
		Since:        timeQueryPtr(c, "since"),
		Until:        timeQueryPtr(c, "until"),
		Limit:        intQuery(c, "limit", 0),
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("query records failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, records, countMeta(len(records)))
}

// @Summary Latest follower count for an account
// @Tags records
// @Param account_id query int true "account id"
// @Success 200 {object} apiResponse
// @Router /api/records/latest [get]
func (h *RecordHandler) latestCount(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	accountID := uintQueryPtr(c, "account_id")
	if accountID == nil {
		Error(c, http.StatusBadRequest, "account_id required", nil)
		return
	}
	count, err := h.Store.LatestFollowerCount(c.Request.Context(), *accountID)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if count == nil {
		Error(c, http.StatusNotFound, "no snapshots for account", nil)
		return
	}
	Ok(c, gin.H{"account_id": *accountID, "follower_count": *count}, nil)
}

// @Summary Delete one snapshot
// @Tags records
// @Param id path int true "snapshot id"
// @Success 200 {object} apiResponse
// @Router /api/records/{id} [delete]
func (h *RecordHandler) deleteRecord(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	id, ok := uint64Param(c, "id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid record id", nil)
		return
	}
	deleted, err := h.Store.DeleteSnapshot(c.Request.Context(), id)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("delete record failed", zap.Uint64("record_id", id), zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if !deleted {
		Error(c, http.StatusNotFound, "record not found", nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("record deleted", zap.Uint64("record_id", id))
	}
	Ok(c, gin.H{"record_id": id}, nil)
}
