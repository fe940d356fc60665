package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"socialmonitor/internal/models"
	"socialmonitor/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var defaultPlatforms = []models.Platform{
	{Name: "微博", Code: "weibo", Description: "微博平台"},
	{Name: "小红书", Code: "xiaohongshu", Description: "小红书平台"},
	{Name: "抖音", Code: "douyin", Description: "抖音平台"},
}

// SeedDefaults inserts the fixed platform registry and one crawl task per
// platform. Idempotent: existing rows (including operator-edited schedule
// times) are left alone.
func (s *Store) SeedDefaults(ctx context.Context, defaultScheduleTime string, scheduleEnabled bool) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(defaultScheduleTime) == "" {
		defaultScheduleTime = "23:59"
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range defaultPlatforms {
			platform := p
			if err := tx.Where(models.Platform{Code: platform.Code}).
				FirstOrCreate(&platform).Error; err != nil {
				return err
			}
			task := models.ScheduleTask{
				TaskName:     platform.Code + "_follower_crawler",
				PlatformID:   platform.ID,
				ScheduleTime: defaultScheduleTime,
				IsEnabled:    scheduleEnabled,
				MaxRetry:     models.DefaultMaxRetry,
				Status:       models.TaskStatusIdle,
			}
			if err := tx.Where(models.ScheduleTask{TaskName: task.TaskName}).
				FirstOrCreate(&task).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetPlatformByCode(ctx context.Context, code string) (*models.Platform, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var item models.Platform
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPlatforms(ctx context.Context) ([]models.Platform, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Platform
	if err := s.db.WithContext(ctx).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpsertAccount inserts the account if absent; otherwise it updates only the
// non-empty fields supplied, so a fetch that returned no display name never
// clobbers a previously stored one. updated_at is refreshed either way.
func (s *Store) UpsertAccount(ctx context.Context, params repository.UpsertAccountParams) (uint, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store not initialized")
	}
	if params.PlatformID == 0 || strings.TrimSpace(params.UserID) == "" {
		return 0, fmt.Errorf("upsert account: platform_id and user_id are required")
	}

	var id uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Account
		err := tx.Where("platform_id = ? AND user_id = ?", params.PlatformID, params.UserID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			identity := params.UserIdentity
			if identity == "" {
				identity = "0"
			}
			item := models.Account{
				PlatformID:   params.PlatformID,
				UserID:       params.UserID,
				Username:     params.Username,
				UserIdentity: identity,
				Avatar:       params.Avatar,
				IsActive:     true,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			id = item.ID
			return nil
		}
		if err != nil {
			return err
		}

		updates := map[string]any{"updated_at": time.Now()}
		if params.Username != "" {
			updates["username"] = params.Username
		}
		if params.UserIdentity != "" {
			updates["user_identity"] = params.UserIdentity
		}
		if params.Avatar != "" {
			updates["avatar"] = params.Avatar
		}
		if err := tx.Model(&models.Account{}).Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		id = existing.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SetIdentityTag touches only user_identity and updated_at.
func (s *Store) SetIdentityTag(ctx context.Context, platformID uint, userID string, tag string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("platform_id = ? AND user_id = ?", platformID, userID).
		Updates(map[string]any{
			"user_identity": tag,
			"updated_at":    time.Now(),
		})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) GetAccount(ctx context.Context, platformID uint, userID string) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Account
	err := s.db.WithContext(ctx).
		Where("platform_id = ? AND user_id = ?", platformID, userID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetAccountByID(ctx context.Context, id uint) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Account
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListAccounts(ctx context.Context, platformID *uint) ([]models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Account{})
	if platformID != nil && *platformID > 0 {
		query = query.Where("platform_id = ?", *platformID)
	}
	var items []models.Account
	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteAccount removes the account row and, when deleteRecords is set, all
// of its follower records in the same transaction. With deleteRecords=false
// the records survive as documented orphans.
func (s *Store) DeleteAccount(ctx context.Context, id uint, deleteRecords bool) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store not initialized")
	}
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if deleteRecords {
			if err := tx.Where("user_id = ?", id).
				Delete(&models.FollowerRecord{}).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&models.Account{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// RecordSnapshot is a pure append. Callers must have upserted the account
// first; the store does not create accounts from snapshot inserts.
func (s *Store) RecordSnapshot(ctx context.Context, item *models.FollowerRecord) (uint64, error) {
	if s == nil || s.db == nil || item == nil {
		return 0, errors.New("store not initialized")
	}
	if item.AccountID == 0 || item.PlatformID == 0 {
		return 0, fmt.Errorf("record snapshot: user_id and platform_id are required")
	}
	if item.RecordTime.IsZero() {
		item.RecordTime = time.Now()
	}
	if item.Status == "" {
		item.Status = models.RecordStatusSuccess
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return 0, err
	}
	return item.ID, nil
}

func (s *Store) QuerySnapshots(ctx context.Context, params repository.QuerySnapshotsParams) ([]models.FollowerRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.FollowerRecord{})
	if params.AccountID != nil && *params.AccountID > 0 {
		query = query.Where("user_id = ?", *params.AccountID)
	}
	if params.PlatformID != nil && *params.PlatformID > 0 {
		query = query.Where("platform_id = ?", *params.PlatformID)
	} else if len(params.PlatformIDs) > 0 {
		query = query.Where("platform_id IN ?", params.PlatformIDs)
	}
	if params.UserIdentity != nil && strings.TrimSpace(*params.UserIdentity) != "" {
		query = query.Where("user_identity = ?", strings.TrimSpace(*params.UserIdentity))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("record_time >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("record_time <= ?", *params.Until)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	var items []models.FollowerRecord
	if err := query.Order("record_time desc, id desc").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// LatestFollowerCount returns the count of the newest snapshot; equal
// record times are broken by insertion order, most recent first.
func (s *Store) LatestFollowerCount(ctx context.Context, accountID uint) (*int64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.FollowerRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", accountID).
		Order("record_time desc, id desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	count := item.FollowerCount
	return &count, nil
}

func (s *Store) DeleteSnapshot(ctx context.Context, id uint64) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store not initialized")
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FollowerRecord{})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) GetTaskByID(ctx context.Context, id uint) (*models.ScheduleTask, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.ScheduleTask
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetTaskByName(ctx context.Context, name string) (*models.ScheduleTask, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var item models.ScheduleTask
	err := s.db.WithContext(ctx).Where("task_name = ?", name).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]models.ScheduleTask, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ScheduleTask
	if err := s.db.WithContext(ctx).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, taskID uint, status string, params repository.UpdateTaskStatusParams) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now(),
	}
	if params.LastRunTime != nil {
		updates["last_run_time"] = *params.LastRunTime
	}
	if params.NextRunTime != nil {
		updates["next_run_time"] = *params.NextRunTime
	}
	if params.RetryCount != nil {
		updates["retry_count"] = *params.RetryCount
	}
	return s.db.WithContext(ctx).Model(&models.ScheduleTask{}).
		Where("id = ?", taskID).
		Updates(updates).Error
}

func (s *Store) UpdateTaskSchedule(ctx context.Context, taskName string, scheduleTime string, enabled *bool) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store not initialized")
	}
	updates := map[string]any{
		"schedule_time": scheduleTime,
		"updated_at":    time.Now(),
	}
	if enabled != nil {
		updates["is_enabled"] = *enabled
	}
	res := s.db.WithContext(ctx).Model(&models.ScheduleTask{}).
		Where("task_name = ?", taskName).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (s *Store) OpenRunLog(ctx context.Context, taskID uint, startTime time.Time) (uint64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store not initialized")
	}
	item := models.TaskLog{
		TaskID:    taskID,
		StartTime: startTime,
		Status:    models.TaskStatusRunning,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return 0, err
	}
	return item.ID, nil
}

func (s *Store) CloseRunLog(ctx context.Context, params repository.CloseRunLogParams) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.WithContext(ctx).Model(&models.TaskLog{}).
		Where("id = ?", params.LogID).
		Updates(map[string]any{
			"end_time":      params.EndTime,
			"status":        params.Status,
			"records_count": params.RecordsCount,
			"success_count": params.SuccessCount,
			"failed_count":  params.FailedCount,
			"error_message": params.ErrorMessage,
		}).Error
}

func (s *Store) ListRunLogs(ctx context.Context, taskID *uint, limit int) ([]models.TaskLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Model(&models.TaskLog{})
	if taskID != nil && *taskID > 0 {
		query = query.Where("task_id = ?", *taskID)
	}
	var items []models.TaskLog
	if err := query.Order("start_time desc, id desc").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) PruneTaskLogs(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if before.IsZero() {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("start_time < ?", before).
		Delete(&models.TaskLog{})
	return res.RowsAffected, res.Error
}
