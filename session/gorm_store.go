package session

import (
	"context"
	"errors"
	"time"

	"canteen-api/auth"
	"canteen-api/models"

	"gorm.io/gorm"
)

// GormStore keeps sessions in the sessions table.
type GormStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewGormStore(db *gorm.DB, ttl time.Duration) *GormStore {
	return &GormStore{db: db, ttl: ttl, now: time.Now}
}

func (s *GormStore) WithClock(now func() time.Time) *GormStore {
	s.now = now
	return s
}

func (s *GormStore) Create(ctx context.Context, p auth.Principal) (string, error) {
	sess := models.Session{
		ID:        newID(),
		UserID:    p.UserID,
		Role:      p.Role,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*auth.Principal, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).Where("id = ? AND expires_at > ?", id, s.now()).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &auth.Principal{UserID: sess.UserID, Role: sess.Role}, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Session{}, "id = ?", id).Error
}

// Sweep removes expired sessions and returns how many were deleted.
func (s *GormStore) Sweep(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}
