package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/swms-manager/internal/db/models"
	"github.com/swms-manager/internal/swms"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type CompanyService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// CompanyUpdate holds the editable branding fields; nil means unchanged.
type CompanyUpdate struct {
	Name   *string `json:"name"`
	AcnAbn *string `json:"acnAbn"`
	Logo   *string `json:"logo"`
	Color  *string `json:"color"`
}

func NewCompanyService(db *gorm.DB, logger *zap.Logger) *CompanyService {
	return &CompanyService{
		db:     db,
		logger: logger.With(zap.String("service", "company_service")),
	}
}

// Summary returns the signed-in user's company along with their role.
func (cs *CompanyService) Summary(ctx context.Context, userID string) (swms.Company, error) {
	var user models.User
	if err := cs.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return swms.Company{}, notFound(err, "user %s", userID)
	}
	company, err := cs.Get(ctx, user.CompanyID)
	if err != nil {
		return swms.Company{}, err
	}
	company.UserRole = string(user.Role)
	return company, nil
}

func (cs *CompanyService) Get(ctx context.Context, companyID string) (swms.Company, error) {
	var row models.Company
	if err := cs.db.WithContext(ctx).First(&row, "id = ?", companyID).Error; err != nil {
		return swms.Company{}, notFound(err, "company %s", companyID)
	}
	return companyFromRow(row), nil
}

func (cs *CompanyService) Update(ctx context.Context, companyID string, upd CompanyUpdate) (swms.Company, error) {
	changes := map[string]interface{}{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return swms.Company{}, &swms.ValidationError{Missing: []string{"name"}}
		}
		changes["name"] = name
	}
	if upd.AcnAbn != nil {
		changes["acn_abn"] = strings.TrimSpace(*upd.AcnAbn)
	}
	if upd.Logo != nil {
		changes["logo"] = strings.TrimSpace(*upd.Logo)
	}
	if upd.Color != nil {
		if !hexColor.MatchString(*upd.Color) {
			return swms.Company{}, fmt.Errorf("%w: color must look like #1e40af", swms.ErrValidation)
		}
		changes["color"] = strings.ToLower(*upd.Color)
	}

	if len(changes) > 0 {
		result := cs.db.WithContext(ctx).Model(&models.Company{}).Where("id = ?", companyID).Updates(changes)
		if result.Error != nil {
			return swms.Company{}, fmt.Errorf("failed to update company %s: %w", companyID, result.Error)
		}
		if result.RowsAffected == 0 {
			return swms.Company{}, fmt.Errorf("%w: company %s", ErrNotFound, companyID)
		}
		cs.logger.Info("Company updated", zap.String("company_id", companyID), zap.Int("fields", len(changes)))
	}
	return cs.Get(ctx, companyID)
}

func companyFromRow(row models.Company) swms.Company {
	return swms.Company{
		ID:                 row.ID,
		Name:               row.Name,
		AcnAbn:             row.AcnAbn,
		Logo:               row.Logo,
		Color:              row.Color,
		SubscriptionStatus: swms.SubscriptionStatus(row.SubscriptionStatus),
	}
}
