package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/swms-manager/internal/db/models"
	"github.com/swms-manager/internal/swms"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserProfile is the outward view of a user; the password hash never leaves the service.
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      string    `json:"role"`
	CompanyID string    `json:"companyId"`
	Active    bool      `json:"active"`
	LastLogin time.Time `json:"lastLogin,omitempty"`
}

type UserService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewUserService(db *gorm.DB, logger *zap.Logger) *UserService {
	return &UserService{
		db:     db,
		logger: logger.With(zap.String("service", "user_service")),
	}
}

func profileFromRow(u models.User) UserProfile {
	return UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		CompanyID: u.CompanyID,
		Active:    u.ActiveStatus,
		LastLogin: u.LastLogin,
	}
}

func (us *UserService) Profile(ctx context.Context, userID string) (UserProfile, error) {
	var user models.User
	if err := us.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return UserProfile{}, notFound(err, "user %s", userID)
	}
	return profileFromRow(user), nil
}

// UpdateProfile changes the display name. Email changes are not supported.
func (us *UserService) UpdateProfile(ctx context.Context, userID, fullName string) (UserProfile, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return UserProfile{}, &swms.ValidationError{Missing: []string{"fullName"}}
	}
	res := us.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("full_name", fullName)
	if res.Error != nil {
		return UserProfile{}, fmt.Errorf("failed to update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return UserProfile{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	us.logger.Info("Profile updated", zap.String("user_id", userID))
	return us.Profile(ctx, userID)
}

// ListCompanyUsers returns the members of a company ordered by name.
func (us *UserService) ListCompanyUsers(ctx context.Context, companyID string) ([]UserProfile, error) {
	var rows []models.User
	if err := us.db.WithContext(ctx).Where("company_id = ?", companyID).Order("full_name ASC, email ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]UserProfile, 0, len(rows))
	for _, r := range rows {
		out = append(out, profileFromRow(r))
	}
	return out, nil
}
