package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/swms-manager/internal/api/middleware"
	"github.com/swms-manager/internal/swms"
)

// CompanyLookup resolves the tenant of the signed-in user.
type CompanyLookup interface {
	Get(ctx context.Context, companyID string) (swms.Company, error)
}

func userID(c *gin.Context) string { return c.GetString(middleware.ContextUserID) }
func companyID(c *gin.Context) string { return c.GetString(middleware.ContextCompanyID) }

func currentCompany(c *gin.Context, companies CompanyLookup) (swms.Company, error) {
	company, err := companies.Get(c.Request.Context(), companyID(c))
	if err != nil {
		return swms.Company{}, err
	}
	company.UserRole = c.GetString(middleware.ContextRole)
	return company, nil
}
