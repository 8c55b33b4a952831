package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"canteen-api/apperr"
	"canteen-api/auth"
	"canteen-api/models"
	"canteen-api/notify"
	"canteen-api/ratelimit"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	codeLength          = 6
	minPasswordLength   = 6
	defaultMaxAttempts  = 5
	defaultLockDuration = 30 * time.Minute
)

type AuthConfig struct {
	OTPTTL              time.Duration
	OTPRateLimitPerHour int
	// ExposeCodes returns codes in responses and skips SMS unless forced.
	ExposeCodes      bool
	MaxLoginAttempts int
	LockDuration     time.Duration
	AdminPhones      []string
}

// AuthResult is a user together with a freshly issued bearer token.
type AuthResult struct {
	User  *models.User
	Token string
}

// CodeResult describes a one-time code request. Code is only set when the
// caller may see it: development mode or failed delivery.
type CodeResult struct {
	IsNewUser bool
	Delivered bool
	Code      string
	Warning   string
}

type RequestCodeInput struct {
	Phone    string
	Name     string
	ForceSMS bool
}

type RegisterInput struct {
	Name     string
	Phone    string
	Password string
	Email    string
}

type AuthService struct {
	db      *gorm.DB
	tokens  *auth.TokenManager
	sms     notify.SMSSender
	email   notify.EmailSender
	limiter ratelimit.Limiter
	log     *zap.Logger
	cfg     AuthConfig
	now     func() time.Time
}

func NewAuthService(
	db *gorm.DB,
	tokens *auth.TokenManager,
	sms notify.SMSSender,
	email notify.EmailSender,
	limiter ratelimit.Limiter,
	log *zap.Logger,
	cfg AuthConfig,
) *AuthService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 10 * time.Minute
	}
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = defaultMaxAttempts
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = defaultLockDuration
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &AuthService{
		db:      db,
		tokens:  tokens,
		sms:     sms,
		email:   email,
		limiter: limiter,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// RequestCode provisions the user if needed, stores a fresh one-time code
// and tries to text it. SMS failures never fail the request.
func (s *AuthService) RequestCode(ctx context.Context, in RequestCodeInput) (*CodeResult, error) {
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return nil, apperr.Validation("Phone number is required")
	}

	db := s.db.WithContext(ctx)
	user, err := s.findByPhone(db, phone)
	isNew := errors.Is(err, apperr.ErrNotFound)
	if err != nil && !isNew {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if isNew && name == "" {
		return nil, apperr.Validation("Name is required for registration")
	}

	ok, err := s.limiter.Allow(ctx, phone, s.cfg.OTPRateLimitPerHour, time.Hour)
	if err != nil {
		s.log.Warn("otp rate limiter unavailable", zap.Error(err))
	} else if !ok {
		return nil, apperr.New(apperr.KindRateLimited, "Too many OTP requests, please try again later")
	}

	code, err := auth.GenerateCode(codeLength)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to generate OTP")
	}
	expiresAt := s.now().Add(s.cfg.OTPTTL)

	if isNew {
		user = &models.User{
			Phone:        phone,
			Name:         name,
			Role:         s.roleFor(phone),
			OTPCode:      code,
			OTPExpiresAt: &expiresAt,
		}
		if err := db.Create(user).Error; err != nil {
			return nil, translateWriteErr(err, "Phone number already registered", "Failed to create user")
		}
	} else {
		user.OTPCode = code
		user.OTPExpiresAt = &expiresAt
		if err := db.Model(user).Select("OTPCode", "OTPExpiresAt").Updates(user).Error; err != nil {
			return nil, apperr.Internal(err, "Failed to store OTP")
		}
	}

	result := &CodeResult{IsNewUser: isNew}
	if s.cfg.ExposeCodes {
		result.Code = code
		if !in.ForceSMS {
			return result, nil
		}
	}

	msg := fmt.Sprintf("Your Campus Canteen verification code is: %s. Valid for %d minutes.", code, int(s.cfg.OTPTTL.Minutes()))
	if err := s.sms.SendSMS(ctx, phone, msg); err != nil {
		s.log.Warn("otp sms delivery failed", zap.String("phone", phone), zap.Error(err))
		result.Code = code
		result.Warning = "SMS service unavailable; use the code included in this response"
		return result, nil
	}
	result.Delivered = true
	return result, nil
}

// VerifyCode checks the stored one-time code. Any failed attempt burns the
// stored code, so a new one must be requested.
func (s *AuthService) VerifyCode(ctx context.Context, phone, code string) (*AuthResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || code == "" {
		return nil, apperr.Validation("Phone number and OTP are required")
	}

	db := s.db.WithContext(ctx)
	user, err := s.findByPhone(db, phone)
	if err != nil {
		return nil, err
	}

	valid := user.OTPCode != "" &&
		user.OTPExpiresAt != nil &&
		!s.now().After(*user.OTPExpiresAt) &&
		subtle.ConstantTimeCompare([]byte(user.OTPCode), []byte(code)) == 1

	hadCode := user.OTPCode != ""
	user.OTPCode = ""
	user.OTPExpiresAt = nil
	if !valid {
		if hadCode {
			if err := db.Model(user).Select("OTPCode", "OTPExpiresAt").Updates(user).Error; err != nil {
				return nil, apperr.Internal(err, "Failed to clear OTP")
			}
		}
		return nil, apperr.New(apperr.KindInvalidOrExpired, "Invalid or expired OTP")
	}

	user.PhoneVerified = true
	if err := db.Model(user).Select("OTPCode", "OTPExpiresAt", "PhoneVerified").Updates(user).Error; err != nil {
		return nil, apperr.Internal(err, "Failed to clear OTP")
	}
	return s.issue(user)
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if name == "" || phone == "" || in.Password == "" {
		return nil, apperr.Validation("Name, phone and password are required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("Password must be at least %d characters long", minPasswordLength)
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("phone = ?", phone).Count(&count).Error; err != nil {
		return nil, apperr.Internal(err, "Failed to check phone")
	}
	if count > 0 {
		return nil, apperr.Conflict("Phone number already registered")
	}
	if email != "" {
		if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return nil, apperr.Internal(err, "Failed to check email")
		}
		if count > 0 {
			return nil, apperr.Conflict("Email already registered")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to hash password")
	}

	user := &models.User{
		Name:         name,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         s.roleFor(phone),
	}
	if email != "" {
		user.Email = &email
	}
	if err := db.Create(user).Error; err != nil {
		return nil, translateWriteErr(err, "Phone number or email already registered", "Failed to create user")
	}
	return s.issue(user)
}

// Login checks a password and enforces the lockout after repeated failures.
func (s *AuthService) Login(ctx context.Context, phone, password string) (*AuthResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return nil, apperr.Validation("Phone number and password are required")
	}

	db := s.db.WithContext(ctx)
	user, err := s.findByPhone(db, phone)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthenticated("Invalid phone or password")
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if user.LockUntil != nil && !user.IsLocked(now) {
		user.LoginAttempts = 0
		user.LockUntil = nil
	}
	if user.IsLocked(now) {
		mins := int(user.LockUntil.Sub(now).Minutes()) + 1
		return nil, apperr.New(apperr.KindLocked,
			"Account locked due to too many failed login attempts. Try again in %d minutes", mins)
	}
	if !user.HasPassword() {
		return nil, apperr.Unauthenticated("Invalid phone or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		user.LoginAttempts++
		if user.LoginAttempts >= s.cfg.MaxLoginAttempts {
			lockUntil := now.Add(s.cfg.LockDuration)
			user.LockUntil = &lockUntil
		}
		if err := db.Model(user).Select("LoginAttempts", "LockUntil").Updates(user).Error; err != nil {
			return nil, apperr.Internal(err, "Failed to record login attempt")
		}
		return nil, apperr.Unauthenticated("Invalid phone or password")
	}

	user.LoginAttempts = 0
	user.LockUntil = nil
	if err := db.Model(user).Select("LoginAttempts", "LockUntil").Updates(user).Error; err != nil {
		return nil, apperr.Internal(err, "Failed to reset login attempts")
	}
	return s.issue(user)
}

// CurrentUser loads the principal's user record.
func (s *AuthService) CurrentUser(ctx context.Context, p *auth.Principal) (*models.User, error) {
	if p == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	var user models.User
	err := s.db.WithContext(ctx).First(&user, p.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to load user")
	}
	return &user, nil
}

// UpdateProfile stores the delivery address and re-issues the token so the
// client holds the new profile flag.
func (s *AuthService) UpdateProfile(ctx context.Context, p *auth.Principal, block, classNumber string) (*AuthResult, error) {
	block = strings.TrimSpace(block)
	classNumber = strings.TrimSpace(classNumber)
	if block == "" || classNumber == "" {
		return nil, apperr.Validation("Block and class number are required")
	}

	user, err := s.CurrentUser(ctx, p)
	if err != nil {
		return nil, err
	}
	user.Block = block
	user.ClassNumber = classNumber
	user.ProfileCompleted = true
	if err := s.db.WithContext(ctx).Model(user).Select("Block", "ClassNumber", "ProfileCompleted").Updates(user).Error; err != nil {
		return nil, apperr.Internal(err, "Failed to update profile")
	}
	return s.issue(user)
}

// RequestEmailVerification attaches email to the account and mails a code.
func (s *AuthService) RequestEmailVerification(ctx context.Context, p *auth.Principal, email string) (*CodeResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, apperr.Validation("Email is required")
	}
	user, err := s.CurrentUser(ctx, p)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&count).Error; err != nil {
		return nil, apperr.Internal(err, "Failed to check email")
	}
	if count > 0 {
		return nil, apperr.Conflict("Email already registered")
	}

	code, err := auth.GenerateCode(codeLength)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to generate verification code")
	}
	expiresAt := s.now().Add(s.cfg.OTPTTL)
	user.Email = &email
	user.EmailVerified = false
	user.EmailCode = code
	user.EmailCodeExpiresAt = &expiresAt
	if err := db.Model(user).Select("Email", "EmailVerified", "EmailCode", "EmailCodeExpiresAt").Updates(user).Error; err != nil {
		return nil, translateWriteErr(err, "Email already registered", "Failed to store verification code")
	}

	result := &CodeResult{}
	if s.cfg.ExposeCodes {
		result.Code = code
	}
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your Campus Canteen email verification code is <strong>%s</strong>. It is valid for %d minutes.</p>",
		user.Name, code, int(s.cfg.OTPTTL.Minutes()))
	if err := s.email.SendEmail(ctx, email, "Verify your email", html); err != nil {
		s.log.Warn("verification email delivery failed", zap.Uint("user_id", user.ID), zap.Error(err))
		result.Code = code
		result.Warning = "Email service unavailable; use the code included in this response"
		return result, nil
	}
	result.Delivered = true
	return result, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, p *auth.Principal, code string) (*models.User, error) {
	if code == "" {
		return nil, apperr.Validation("Verification code is required")
	}
	user, err := s.CurrentUser(ctx, p)
	if err != nil {
		return nil, err
	}
	valid := user.EmailCode != "" &&
		user.EmailCodeExpiresAt != nil &&
		!s.now().After(*user.EmailCodeExpiresAt) &&
		subtle.ConstantTimeCompare([]byte(user.EmailCode), []byte(code)) == 1
	if !valid {
		return nil, apperr.New(apperr.KindInvalidOrExpired, "Invalid or expired verification code")
	}

	user.EmailCode = ""
	user.EmailCodeExpiresAt = nil
	user.EmailVerified = true
	if err := s.db.WithContext(ctx).Model(user).Select("EmailCode", "EmailCodeExpiresAt", "EmailVerified").Updates(user).Error; err != nil {
		return nil, apperr.Internal(err, "Failed to update verification status")
	}
	return user, nil
}

// ListUsers returns every account, optionally filtered by role. Admin only.
func (s *AuthService) ListUsers(ctx context.Context, p *auth.Principal, role models.UserRole) ([]models.User, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("Not authorized")
	}
	query := s.db.WithContext(ctx)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	users := []models.User{}
	if err := query.Order("id asc").Find(&users).Error; err != nil {
		return nil, apperr.Internal(err, "Failed to load users")
	}
	return users, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to generate token")
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) findByPhone(db *gorm.DB, phone string) (*models.User, error) {
	var user models.User
	err := db.Where("phone = ?", phone).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to load user")
	}
	return &user, nil
}

func (s *AuthService) roleFor(phone string) models.UserRole {
	for _, p := range s.cfg.AdminPhones {
		if p == phone {
			return models.RoleAdmin
		}
	}
	return models.RoleStudent
}

func translateWriteErr(err error, conflictMsg, internalMsg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Wrap(apperr.KindConflict, err, conflictMsg)
	}
	return apperr.Internal(err, internalMsg)
}
