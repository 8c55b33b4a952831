package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"canteen-api/auth"
	"canteen-api/config"
	"canteen-api/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))
	return db
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, phone+": "+message)
	return nil
}

type fakeEmail struct {
	to  []string
	err error
}

func (f *fakeEmail) SendEmail(_ context.Context, to, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	return nil
}

// denyAfter allows n hits per key and refuses the rest.
type denyAfter struct {
	n    int
	hits map[string]int
}

func (d *denyAfter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	if d.hits == nil {
		d.hits = map[string]int{}
	}
	d.hits[key]++
	return d.hits[key] <= d.n, nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type authFixture struct {
	db     *gorm.DB
	svc    *AuthService
	sms    *fakeSMS
	email  *fakeEmail
	clock  *clock
	tokens *auth.TokenManager
}

func newAuthFixture(t *testing.T, cfg AuthConfig) *authFixture {
	t.Helper()
	f := &authFixture{
		db:    newTestDB(t),
		sms:   &fakeSMS{},
		email: &fakeEmail{},
		clock: &clock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
	}
	f.tokens = auth.NewTokenManager("test-secret", 24*time.Hour).WithClock(f.clock.Now)
	f.svc = NewAuthService(f.db, f.tokens, f.sms, f.email, nil, zap.NewNop(), cfg).WithClock(f.clock.Now)
	return f
}

func seedMenuItem(t *testing.T, db *gorm.DB, name string, price float64, available bool) models.MenuItem {
	t.Helper()
	item := models.MenuItem{
		Name:            name,
		Description:     name + " from the canteen",
		Price:           price,
		Category:        models.CategoryLunch,
		Image:           "https://img.example/" + name + ".jpg",
		IsAvailable:     available,
		PreparationTime: 10,
	}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func seedUser(t *testing.T, db *gorm.DB, phone string, role models.UserRole) *auth.Principal {
	t.Helper()
	u := models.User{Name: "User " + phone, Phone: phone, Role: role}
	require.NoError(t, db.Create(&u).Error)
	return &auth.Principal{UserID: u.ID, Role: u.Role}
}

var errDown = errors.New("gateway down")
