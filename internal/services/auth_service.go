package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/swms-manager/internal/config"
	"github.com/swms-manager/internal/db/models"
	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/internal/utils"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxFailedAttempts = 5
	lockoutDuration   = 15 * time.Minute
)

// Claims is the payload of a session token.
type Claims struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// SessionID is the jti of the token, which keys the sessions table.
func (c *Claims) SessionID() string { return c.ID }

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"fullName"`
	CompanyName string `json:"companyName"`
	AcnAbn      string `json:"acnAbn"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"-"`
}

// AuthService registers users, issues session JWTs and tracks the sessions
// behind them so a logout takes effect immediately.
type AuthService struct {
	db      *gorm.DB
	secret  []byte
	issuer  string
	ttl     time.Duration
	minPass int
	maxPass int
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewAuthService(db *gorm.DB, cfg config.SecurityConfig, logger *zap.Logger, metricsCollector *metrics.MetricsCollector) *AuthService {
	return &AuthService{
		db:      db,
		secret:  []byte(cfg.JWTSecret),
		issuer:  cfg.JWTIssuer,
		ttl:     cfg.SessionTimeout,
		minPass: cfg.PasswordMinLength,
		maxPass: cfg.PasswordMaxLength,
		now:     time.Now,
		logger:  logger.With(zap.String("service", "auth_service")),
		metrics: metricsCollector,
	}
}

// Register creates a trial company and its owner in one transaction.
func (as *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		missing = append(missing, "companyName")
	}
	if len(missing) > 0 {
		return nil, &swms.ValidationError{Missing: missing}
	}
	if len(req.Password) < as.minPass || (as.maxPass > 0 && len(req.Password) > as.maxPass) {
		return nil, ErrPasswordPolicy
	}

	hash, err := utils.EncryptPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var user models.User
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrEmailTaken
		}

		company := models.Company{
			Name:               strings.TrimSpace(req.CompanyName),
			AcnAbn:             strings.TrimSpace(req.AcnAbn),
			SubscriptionStatus: models.SubscriptionTrial,
		}
		if err := tx.Create(&company).Error; err != nil {
			return err
		}

		user = models.User{
			Email:        email,
			FullName:     strings.TrimSpace(req.FullName),
			PasswordHash: hash,
			Role:         models.RoleOwner,
			CompanyID:    company.ID,
			ActiveStatus: true,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	as.metrics.IncrementCounter("auth.registrations", nil)
	as.logger.Info("User registered", zap.String("user_id", user.ID), zap.String("company_id", user.CompanyID))
	return &user, nil
}

// Login checks the password, applies the lockout policy and issues a token.
func (as *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*LoginResult, error) {
	start := as.now()
	defer as.metrics.Since("auth.login", start)

	var user models.User
	err := as.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			as.metrics.IncrementCounter("auth.login", map[string]string{"result": "unknown_user"})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.ActiveStatus {
		return nil, ErrInvalidCredentials
	}
	if user.LockoutUntil.After(start) {
		as.metrics.IncrementCounter("auth.login", map[string]string{"result": "locked"})
		return nil, ErrAccountLocked
	}

	if ok, _ := utils.VerifyPassword(user.PasswordHash, password); !ok {
		updates := map[string]interface{}{"failed_attempts": user.FailedAttempts + 1}
		if user.FailedAttempts+1 >= maxFailedAttempts {
			updates["lockout_until"] = start.Add(lockoutDuration)
			updates["failed_attempts"] = 0
			as.logger.Warn("Account locked after repeated failures", zap.String("user_id", user.ID))
		}
		if err := as.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			as.logger.Error("Failed to record login failure", zap.String("user_id", user.ID), zap.Error(err))
		}
		as.metrics.IncrementCounter("auth.login", map[string]string{"result": "bad_password"})
		return nil, ErrInvalidCredentials
	}

	session := models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: start.Add(as.ttl),
	}
	token, err := as.sign(&user, session.ID, start, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		return tx.Model(&user).Updates(map[string]interface{}{
			"failed_attempts": 0,
			"last_login":      start,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	as.metrics.IncrementCounter("auth.login", map[string]string{"result": "ok"})
	as.logger.Info("Created new session",
		zap.String("user_id", user.ID),
		zap.String("session", session.ID[:8]+"..."),
		zap.String("ip_address", ipAddress))
	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt, User: &user}, nil
}

func (as *AuthService) sign(user *models.User, sessionID string, issued, expires time.Time) (string, error) {
	claims := &Claims{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Role:      string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   user.ID,
			Issuer:    as.issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (as *AuthService) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return as.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(as.issuer),
		jwt.WithTimeFunc(as.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return claims, nil
}

// ValidateToken verifies the signature and that the backing session is
// still active.
func (as *AuthService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := as.parse(tokenString)
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := as.db.WithContext(ctx).First(&session, "id = ?", claims.SessionID()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !session.Active(as.now()) {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Logout revokes the session behind a token. Unknown or already revoked
// sessions are not an error.
func (as *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := as.parse(tokenString)
	if err != nil {
		return err
	}
	now := as.now()
	if err := as.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", claims.SessionID()).
		Update("revoked_at", &now).Error; err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	as.logger.Info("Session revoked", zap.String("user_id", claims.UserID))
	return nil
}

// CleanupExpiredSessions deletes sessions past their expiry.
func (as *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	result := as.db.WithContext(ctx).Where("expires_at < ?", as.now()).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		as.metrics.AddCounter("auth.sessions_expired", nil, result.RowsAffected)
	}
	return result.RowsAffected, nil
}
