package credential

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialmonitor/internal/models"
)

// Store keeps exactly one authentication cookie per platform, in its own
// database file. A failed Save means the token is not guaranteed persisted;
// callers get the error, never a panic.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Save upserts the platform's cookie and stamps updated_at.
func (s *Store) Save(ctx context.Context, platform, cookie string) error {
	if s == nil || s.db == nil {
		return errors.New("credential store not initialized")
	}
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return errors.New("platform is required")
	}
	item := models.Cookie{
		Platform:  platform,
		Cookie:    cookie,
		UpdatedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"cookie", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		if s.logger != nil {
			s.logger.Error("save cookie failed", zap.String("platform", platform), zap.Error(err))
		}
		return err
	}
	if s.logger != nil {
		s.logger.Info("cookie saved", zap.String("platform", platform))
	}
	return nil
}

// Get returns the most recently saved cookie for the platform, or false if
// none was ever saved. Lookup errors are logged and reported as absence.
func (s *Store) Get(ctx context.Context, platform string) (string, bool) {
	if s == nil || s.db == nil {
		return "", false
	}
	var item models.Cookie
	err := s.db.WithContext(ctx).
		Where("platform = ?", strings.TrimSpace(platform)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Error("get cookie failed", zap.String("platform", platform), zap.Error(err))
		}
		return "", false
	}
	return item.Cookie, true
}

// GetAll maps platform code to its stored cookie.
func (s *Store) GetAll(ctx context.Context) map[string]string {
	out := map[string]string{}
	if s == nil || s.db == nil {
		return out
	}
	var items []models.Cookie
	if err := s.db.WithContext(ctx).Find(&items).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("list cookies failed", zap.Error(err))
		}
		return out
	}
	for _, item := range items {
		out[item.Platform] = item.Cookie
	}
	return out
}

func (s *Store) Delete(ctx context.Context, platform string) error {
	if s == nil || s.db == nil {
		return errors.New("credential store not initialized")
	}
	err := s.db.WithContext(ctx).
		Where("platform = ?", strings.TrimSpace(platform)).
		Delete(&models.Cookie{}).Error
	if err != nil {
		if s.logger != nil {
			s.logger.Error("delete cookie failed", zap.String("platform", platform), zap.Error(err))
		}
		return err
	}
	if s.logger != nil {
		s.logger.Info("cookie deleted", zap.String("platform", platform))
	}
	return nil
}
